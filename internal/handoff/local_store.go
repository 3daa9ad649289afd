package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type artifact struct {
	Stage   string    `json:"stage"`
	SavedAt time.Time `json:"saved_at"`
	IDs     []int     `json:"ids"`
}

// LocalStore keeps one JSON file per stage under basePath.
type LocalStore struct {
	basePath string
}

func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create handoff directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (ls *LocalStore) path(stage string) (string, error) {
	if stage == "" || strings.ContainsAny(stage, `/\`) || strings.Contains(stage, "..") {
		return "", fmt.Errorf("invalid stage name %q", stage)
	}
	return filepath.Join(ls.basePath, stage+".json"), nil
}

// Save writes the artifact to a temp file and renames it into place so a
// reader never sees a partial list.
func (ls *LocalStore) Save(ctx context.Context, stage string, ids []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := ls.path(stage)
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []int{}
	}

	data, err := json.Marshal(artifact{Stage: stage, SavedAt: time.Now().UTC(), IDs: ids})
	if err != nil {
		return fmt.Errorf("failed to encode handoff for %s: %w", stage, err)
	}

	tmp, err := os.CreateTemp(ls.basePath, stage+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create handoff file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write handoff file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write handoff file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to save handoff file: %w", err)
	}

	return nil
}

func (ls *LocalStore) Load(ctx context.Context, stage string) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := ls.path(stage)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", stage, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read handoff file: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode handoff for %s: %w", stage, err)
	}
	if a.IDs == nil {
		a.IDs = []int{}
	}
	return a.IDs, nil
}
