package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/internal/config"
	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
	"github.com/kdimtricp/moviewarehouse/internal/warehouse"
	"github.com/kdimtricp/moviewarehouse/migrations"
	"github.com/kdimtricp/moviewarehouse/pkg/logger"
)

func main() {
	var (
		tables   = flag.String("tables", strings.Join(warehouse.Tables, ","), "Comma separated tables to reload")
		jsonMode = flag.String("json-mode", "", "Nested field storage: text or variant (overrides WAREHOUSE_JSON_MODE)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, splitList(*tables), *jsonMode); err != nil {
		fmt.Fprintln(os.Stderr, "sync failed:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, tables []string, jsonMode string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if jsonMode != "" {
		cfg.Warehouse.JSONMode = jsonMode
	}

	log, err := logger.New(cfg.Logger("sync"))
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.RequireMongo(); err != nil {
		return err
	}
	if err := cfg.RequireWarehouse(); err != nil {
		return err
	}

	store, err := rawstore.Open(ctx, cfg.RawStore(), log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	whCfg := cfg.WarehouseDB()
	db, err := warehouse.NewDB(ctx, whCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := warehouse.NewMigrator(db, log).Run(ctx, migrations.FS); err != nil {
		return err
	}

	syncer, err := warehouse.NewSyncer(db, store, whCfg.JSONMode, log)
	if err != nil {
		return err
	}

	report, err := syncer.SyncTables(ctx, tables)
	for _, t := range report.Tables {
		fmt.Printf("%-14s read=%d inserted=%d failed=%d\n", t.Table, t.Read, t.Inserted, t.Failed)
	}
	if err != nil {
		log.Error("sync aborted", zap.Error(err))
		return err
	}

	log.Info("sync complete", zap.Duration("duration", report.Duration))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
