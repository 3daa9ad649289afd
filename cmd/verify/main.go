package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kdimtricp/moviewarehouse/internal/config"
	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
	"github.com/kdimtricp/moviewarehouse/internal/warehouse"
	"github.com/kdimtricp/moviewarehouse/pkg/logger"
)

var errOutOfSync = errors.New("raw store and warehouse are out of sync")

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "verify failed:", err)
		os.Exit(1)
	}
	fmt.Println("\nAll tables in sync")
}

// run owns every connection it opens so they are closed on all paths
// before main exits.
func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.RequireMongo(); err != nil {
		return err
	}
	if err := cfg.RequireWarehouse(); err != nil {
		return err
	}

	zlog, err := logger.New(cfg.Logger("verify"))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer zlog.Sync()

	store, err := rawstore.Open(ctx, cfg.RawStore(), zlog)
	if err != nil {
		return fmt.Errorf("failed to connect to raw store: %w", err)
	}
	defer store.Close(context.Background())

	db, err := warehouse.NewDB(ctx, cfg.WarehouseDB())
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer db.Close()

	report, err := db.Verify(ctx, store)
	if err != nil {
		return err
	}

	fmt.Println("Raw store vs warehouse")
	fmt.Println("======================")
	for _, t := range report.Tables {
		mark := "ok"
		if !t.Match {
			mark = "MISMATCH"
		}
		fmt.Printf("%-14s raw=%-8d warehouse=%-8d %s\n", t.Table, t.RawStore, t.Warehouse, mark)
	}

	if !report.OK {
		return fmt.Errorf("%w: %d table(s) differ", errOutOfSync, len(report.Mismatches()))
	}
	return nil
}
