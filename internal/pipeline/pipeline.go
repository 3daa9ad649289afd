// Package pipeline runs the four extraction stages that move TMDb data into
// the raw store: genres, popular movies, movie details and credits.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/internal/handoff"
	"github.com/kdimtricp/moviewarehouse/internal/models"
	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
	"github.com/kdimtricp/moviewarehouse/internal/tmdb"
)

// Stage names, in execution order.
const (
	StageGenres  = "extract_genres"
	StagePopular = "extract_popular_movies"
	StageDetails = "extract_movie_details"
	StageCredits = "extract_movie_credits"
)

var Stages = []string{StageGenres, StagePopular, StageDetails, StageCredits}

// inputs maps a stage to the stage whose output it consumes.
var inputs = map[string]string{
	StageDetails: StagePopular,
	StageCredits: StageDetails,
}

const (
	DefaultPages      = 50
	DefaultRetries    = 1
	DefaultRetryDelay = 2 * time.Minute
)

var ErrUnknownStage = errors.New("unknown stage")

// Fetcher is the TMDb surface the stages read from.
type Fetcher interface {
	Genres(ctx context.Context) ([]models.Genre, error)
	PopularMovies(ctx context.Context, pages int) tmdb.PageResult
	MovieDetails(ctx context.Context, movieID int) (*models.Movie, error)
	MovieCredits(ctx context.Context, movieID int) (*models.Credits, error)
}

// Sink is the raw store surface the stages write to.
type Sink interface {
	UpsertGenres(ctx context.Context, genres []models.Genre) rawstore.WriteResult
	UpsertMovies(ctx context.Context, movies []models.Movie) rawstore.WriteResult
	UpsertCompanies(ctx context.Context, companies []models.Company) rawstore.WriteResult
	UpsertCredits(ctx context.Context, movieID int, credits *models.Credits) rawstore.CreditResult
}

type Options struct {
	// Pages is the number of popular listing pages to fetch.
	Pages int
	// MaxDetails caps how many movie IDs the details stage processes.
	// Zero or negative means all of them.
	MaxDetails int
	// Retries is the number of extra attempts a failing stage gets.
	Retries    int
	RetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Pages:      DefaultPages,
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// Result is the outcome of one unit of work inside a stage.
type Result[T any] struct {
	ID    int
	Value T
	Err   error
}

func (r Result[T]) OK() bool { return r.Err == nil }

// Summary describes one completed stage attempt.
type Summary struct {
	Stage       string        `json:"stage"`
	RunID       string        `json:"run_id"`
	Items       int           `json:"items"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Inserted    int           `json:"inserted"`
	Updated     int           `json:"updated"`
	WriteErrors int           `json:"write_errors"`
	Output      []int         `json:"output"`
	Duration    time.Duration `json:"duration"`
}

func (s *Summary) addWrites(r rawstore.WriteResult) {
	s.Inserted += r.Inserted
	s.Updated += r.Updated
	s.WriteErrors += r.Errors
}

type Orchestrator struct {
	fetcher  Fetcher
	sink     Sink
	handoffs handoff.Store
	opts     Options
	log      *zap.Logger
}

func New(fetcher Fetcher, sink Sink, handoffs handoff.Store, opts Options, log *zap.Logger) *Orchestrator {
	if opts.Pages <= 0 {
		opts.Pages = DefaultPages
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Orchestrator{
		fetcher:  fetcher,
		sink:     sink,
		handoffs: handoffs,
		opts:     opts,
		log:      log.Named("pipeline"),
	}
}
