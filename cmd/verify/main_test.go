package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/moviewarehouse/internal/config"
)

func TestRun_RequiresRawStore(t *testing.T) {
	t.Setenv("MONGO_URI", "")

	err := run(context.Background())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRun_UnreachableRawStoreReturnsError(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://127.0.0.1:1")
	t.Setenv("MONGO_DB_NAME", "tmdb_raw")
	t.Setenv("MONGO_CONNECT_TIMEOUT", "200ms")
	t.Setenv("WAREHOUSE_TYPE", "sqlite")
	t.Setenv("WAREHOUSE_SQLITE_PATH", filepath.Join(t.TempDir(), "warehouse.db"))

	err := run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to raw store")
}
