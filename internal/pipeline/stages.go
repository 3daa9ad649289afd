package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/internal/models"
)

func (o *Orchestrator) execute(ctx context.Context, stage string, input []int) (Summary, error) {
	switch stage {
	case StageGenres:
		return o.extractGenres(ctx)
	case StagePopular:
		return o.extractPopular(ctx)
	case StageDetails:
		return o.extractDetails(ctx, input)
	case StageCredits:
		return o.extractCredits(ctx, input)
	default:
		return Summary{}, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
}

// extractGenres fetches the genre list. A failed fetch is logged and the
// stage completes with nothing written.
func (o *Orchestrator) extractGenres(ctx context.Context) (Summary, error) {
	sum := Summary{Stage: StageGenres}

	genres, err := o.fetcher.Genres(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return sum, ctxErr
		}
		o.log.Warn("genre list unavailable", zap.Error(err))
		sum.Failed = 1
	}

	sum.Items = len(genres)
	sum.Succeeded = len(genres)
	sum.addWrites(o.sink.UpsertGenres(ctx, genres))

	sum.Output = make([]int, 0, len(genres))
	for _, g := range genres {
		sum.Output = append(sum.Output, g.ID)
	}
	return sum, nil
}

// extractPopular fetches the popular listing and emits every movie ID once,
// in listing order.
func (o *Orchestrator) extractPopular(ctx context.Context) (Summary, error) {
	sum := Summary{Stage: StagePopular}

	page := o.fetcher.PopularMovies(ctx, o.opts.Pages)
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	for _, f := range page.Failed {
		o.log.Warn("popular page skipped", zap.Int("page", f.Page), zap.Error(f.Err))
	}

	sum.Items = page.Requested
	sum.Failed = len(page.Failed)
	sum.Succeeded = page.Requested - len(page.Failed)
	sum.addWrites(o.sink.UpsertMovies(ctx, page.Movies))

	seen := make(map[int]bool, len(page.Movies))
	sum.Output = make([]int, 0, len(page.Movies))
	for _, m := range page.Movies {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		sum.Output = append(sum.Output, m.ID)
	}
	return sum, nil
}

// fetchDetails fetches one detail record per ID. Failures are kept in the
// result rather than stopping the loop.
func (o *Orchestrator) fetchDetails(ctx context.Context, ids []int) []Result[*models.Movie] {
	results := make([]Result[*models.Movie], 0, len(ids))
	for _, id := range ids {
		movie, err := o.fetcher.MovieDetails(ctx, id)
		results = append(results, Result[*models.Movie]{ID: id, Value: movie, Err: err})
	}
	return results
}

func (o *Orchestrator) extractDetails(ctx context.Context, ids []int) (Summary, error) {
	sum := Summary{Stage: StageDetails}

	if o.opts.MaxDetails > 0 && len(ids) > o.opts.MaxDetails {
		ids = ids[:o.opts.MaxDetails]
	}
	sum.Items = len(ids)
	sum.Output = make([]int, 0, len(ids))

	for i, res := range o.fetchDetails(ctx, ids) {
		if !res.OK() {
			sum.Failed++
			o.log.Warn("movie details skipped", zap.Int("movie_id", res.ID), zap.Error(res.Err))
			continue
		}

		sum.addWrites(o.sink.UpsertMovies(ctx, []models.Movie{*res.Value}))
		if len(res.Value.ProductionCompanies) > 0 {
			sum.addWrites(o.sink.UpsertCompanies(ctx, res.Value.ProductionCompanies))
		}
		sum.Succeeded++
		sum.Output = append(sum.Output, res.ID)

		if (i+1)%10 == 0 {
			o.log.Info("details progress", zap.Int("done", i+1), zap.Int("total", len(ids)))
		}
	}

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

func (o *Orchestrator) fetchCredits(ctx context.Context, ids []int) []Result[*models.Credits] {
	results := make([]Result[*models.Credits], 0, len(ids))
	for _, id := range ids {
		credits, err := o.fetcher.MovieCredits(ctx, id)
		results = append(results, Result[*models.Credits]{ID: id, Value: credits, Err: err})
	}
	return results
}

// extractCredits writes cast and crew for every input movie. Inserted and
// Updated are not split for credits; Succeeded counts the cast and crew
// records written.
func (o *Orchestrator) extractCredits(ctx context.Context, ids []int) (Summary, error) {
	sum := Summary{Stage: StageCredits, Items: len(ids)}
	sum.Output = make([]int, 0, len(ids))

	for _, res := range o.fetchCredits(ctx, ids) {
		if !res.OK() {
			sum.Failed++
			o.log.Warn("movie credits skipped", zap.Int("movie_id", res.ID), zap.Error(res.Err))
			continue
		}

		written := o.sink.UpsertCredits(ctx, res.ID, res.Value)
		sum.Succeeded += written.Total()
		sum.WriteErrors += written.Errors
		sum.Output = append(sum.Output, res.ID)
	}

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	o.log.Info("credits loaded", zap.Int("movies", len(sum.Output)), zap.Int("records", sum.Succeeded))
	return sum, nil
}
