// Package handoff persists the ID lists one pipeline stage passes to the next.
package handoff

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a stage has no saved artifact.
var ErrNotFound = errors.New("handoff artifact not found")

// Store saves and loads the output IDs of a stage.
type Store interface {
	Save(ctx context.Context, stage string, ids []int) error
	Load(ctx context.Context, stage string) ([]int, error)
}
