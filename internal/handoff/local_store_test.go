package handoff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStore(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(tmpDir, "handoff"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	ctx := context.Background()

	t.Run("SaveAndLoad", func(t *testing.T) {
		ids := []int{550, 680, 13}
		if err := store.Save(ctx, "extract_popular_movies", ids); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		got, err := store.Load(ctx, "extract_popular_movies")
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if len(got) != 3 || got[0] != 550 || got[1] != 680 || got[2] != 13 {
			t.Errorf("Expected %v, got %v", ids, got)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := store.Save(ctx, "extract_movie_details", []int{1, 2}); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		if err := store.Save(ctx, "extract_movie_details", []int{3}); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		got, err := store.Load(ctx, "extract_movie_details")
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if len(got) != 1 || got[0] != 3 {
			t.Errorf("Expected [3], got %v", got)
		}

		matches, _ := filepath.Glob(filepath.Join(tmpDir, "handoff", "*.tmp"))
		if len(matches) != 0 {
			t.Errorf("Temp files left behind: %v", matches)
		}
	})

	t.Run("EmptyList", func(t *testing.T) {
		if err := store.Save(ctx, "extract_genres", nil); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		got, err := store.Load(ctx, "extract_genres")
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Expected empty non-nil list, got %#v", got)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := store.Load(ctx, "never_saved")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(tmpDir, "handoff", "broken.json"), []byte("{not json"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		_, err := store.Load(ctx, "broken")
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Expected decode error, got %v", err)
		}
	})

	t.Run("InvalidStage", func(t *testing.T) {
		if err := store.Save(ctx, "../escape", []int{1}); err == nil {
			t.Error("Expected error for path traversal")
		}
		if _, err := store.Load(ctx, "a/b"); err == nil {
			t.Error("Expected error for nested path")
		}
	})
}
