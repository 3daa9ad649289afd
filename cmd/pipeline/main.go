package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/internal/config"
	"github.com/kdimtricp/moviewarehouse/internal/handoff"
	"github.com/kdimtricp/moviewarehouse/internal/pipeline"
	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
	"github.com/kdimtricp/moviewarehouse/internal/tmdb"
	"github.com/kdimtricp/moviewarehouse/pkg/logger"
)

func main() {
	var (
		stage      = flag.String("stage", "", "Run a single stage: extract_genres, extract_popular_movies, extract_movie_details or extract_movie_credits")
		pages      = flag.Int("pages", 0, "Popular listing pages to fetch (overrides PIPELINE_PAGES)")
		maxDetails = flag.Int("max-details", 0, "Cap on movies sent to the details stage, 0 for all (overrides PIPELINE_MAX_DETAILS)")
	)
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *stage, set["pages"], *pages, set["max-details"], *maxDetails); err != nil {
		fmt.Fprintln(os.Stderr, "pipeline failed:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, stage string, pagesSet bool, pages int, maxSet bool, maxDetails int) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if pagesSet {
		cfg.Pipeline.Pages = pages
	}
	if maxSet {
		cfg.Pipeline.MaxDetails = maxDetails
	}

	log, err := logger.New(cfg.Logger("pipeline"))
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.RequireTMDB(); err != nil {
		return err
	}
	if err := cfg.RequireMongo(); err != nil {
		return err
	}

	client := tmdb.NewClient(cfg.TMDBClient(), log)
	defer client.Close()

	store, err := rawstore.Open(ctx, cfg.RawStore(), log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	handoffs, err := handoff.NewLocalStore(cfg.Pipeline.HandoffDir)
	if err != nil {
		return err
	}

	orchestrator := pipeline.New(client, store, handoffs, cfg.PipelineOptions(), log)

	if stage != "" {
		sum, err := orchestrator.RunStage(ctx, stage)
		if err != nil {
			log.Error("stage failed", zap.String("stage", stage), zap.Error(err))
			return err
		}
		printSummary(sum)
		return nil
	}

	summaries, err := orchestrator.Run(ctx)
	for _, sum := range summaries {
		printSummary(sum)
	}
	return err
}

func printSummary(s pipeline.Summary) {
	fmt.Printf("%-24s items=%d succeeded=%d failed=%d inserted=%d updated=%d write_errors=%d output=%d (%s)\n",
		s.Stage, s.Items, s.Succeeded, s.Failed, s.Inserted, s.Updated, s.WriteErrors, len(s.Output), s.Duration.Round(time.Millisecond))
}
