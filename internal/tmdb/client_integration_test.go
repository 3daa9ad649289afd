package tmdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() {
	envPath := filepath.Join("..", "..", ".env")
	_ = godotenv.Load(envPath)
}

func liveClient(t *testing.T) *Client {
	t.Helper()

	apiKey := os.Getenv("TMDB_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping TMDb integration test: TMDB_API_KEY not set")
	}

	return NewClient(Config{APIKey: apiKey, BaseURL: os.Getenv("TMDB_BASE_URL"), PageDelay: DefaultPageDelay}, zap.NewNop())
}

func TestLiveClient_Genres(t *testing.T) {
	client := liveClient(t)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	genres, err := client.Genres(ctx)
	if err != nil {
		t.Fatalf("Genres failed: %v", err)
	}
	if len(genres) == 0 {
		t.Fatal("Expected at least one genre")
	}
	t.Logf("Fetched %d genres", len(genres))
}

func TestLiveClient_MovieDetails(t *testing.T) {
	client := liveClient(t)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	movie, err := client.MovieDetails(ctx, 603)
	if err != nil {
		t.Fatalf("MovieDetails failed: %v", err)
	}
	if movie.ID != 603 {
		t.Errorf("Expected movie ID 603, got %d", movie.ID)
	}
	if movie.Credits.Total() == 0 {
		t.Error("Expected embedded credits")
	}

	t.Logf("Movie: %s (%s), runtime %d", movie.Title, movie.ReleaseDate, movie.Runtime)
}
