package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/pkg/metrics"
)

// Run executes every stage in order, feeding each stage the output of the
// one before it. A stage that still fails after its retries aborts the run;
// the summaries of the stages that completed are returned with the error.
func (o *Orchestrator) Run(ctx context.Context) ([]Summary, error) {
	runID := uuid.New().String()
	log := o.log.With(zap.String("run_id", runID))
	log.Info("pipeline run started", zap.Int("pages", o.opts.Pages), zap.Int("max_details", o.opts.MaxDetails))

	summaries := make([]Summary, 0, len(Stages))
	var input []int
	for _, stage := range Stages {
		sum, err := o.runWithRetry(ctx, log, runID, stage, input)
		if err != nil {
			log.Error("pipeline run aborted", zap.String("stage", stage), zap.Error(err))
			return summaries, fmt.Errorf("stage %s: %w", stage, err)
		}
		summaries = append(summaries, sum)
		input = sum.Output
	}

	log.Info("pipeline run finished", zap.Int("stages", len(summaries)))
	return summaries, nil
}

// RunStage runs a single stage as its own invocation. Its input, if it has
// one, is loaded from the predecessor's saved artifact.
func (o *Orchestrator) RunStage(ctx context.Context, stage string) (Summary, error) {
	if !knownStage(stage) {
		return Summary{}, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}

	runID := uuid.New().String()
	log := o.log.With(zap.String("run_id", runID))

	var input []int
	if from, ok := inputs[stage]; ok {
		ids, err := o.handoffs.Load(ctx, from)
		if err != nil {
			return Summary{Stage: stage, RunID: runID}, fmt.Errorf("loading input for %s: %w", stage, err)
		}
		input = ids
		log.Info("stage input loaded", zap.String("stage", stage), zap.String("from", from), zap.Int("ids", len(ids)))
	}

	return o.runWithRetry(ctx, log, runID, stage, input)
}

func (o *Orchestrator) runWithRetry(ctx context.Context, log *zap.Logger, runID, stage string, input []int) (Summary, error) {
	attempt := 0
	op := func() (Summary, error) {
		attempt++
		return o.attempt(ctx, log.With(zap.Int("attempt", attempt)), runID, stage, input)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(o.opts.RetryDelay)),
		backoff.WithMaxTries(uint(o.opts.Retries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("stage failed, retrying",
				zap.String("stage", stage),
				zap.Duration("retry_in", next),
				zap.Error(err))
		}),
	)
}

// attempt runs the stage once and persists its output for the next stage.
func (o *Orchestrator) attempt(ctx context.Context, log *zap.Logger, runID, stage string, input []int) (Summary, error) {
	start := time.Now()
	log.Info("stage started", zap.String("stage", stage), zap.Int("input", len(input)))

	sum, err := o.execute(ctx, stage, input)
	if err == nil {
		if saveErr := o.handoffs.Save(ctx, stage, sum.Output); saveErr != nil {
			err = fmt.Errorf("saving output of %s: %w", stage, saveErr)
		}
	}
	if errors.Is(err, ErrUnknownStage) {
		err = backoff.Permanent(err)
	}

	sum.Stage = stage
	sum.RunID = runID
	sum.Duration = time.Since(start)
	metrics.ObserveStage(stage, sum.Duration, err == nil)

	if err != nil {
		return sum, err
	}

	log.Info("stage finished",
		zap.String("stage", stage),
		zap.Int("items", sum.Items),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("inserted", sum.Inserted),
		zap.Int("updated", sum.Updated),
		zap.Int("write_errors", sum.WriteErrors),
		zap.Int("output", len(sum.Output)),
		zap.Duration("duration", sum.Duration))
	return sum, nil
}

func knownStage(stage string) bool {
	for _, s := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}
