package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/internal/api"
	"github.com/kdimtricp/moviewarehouse/internal/config"
	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
	"github.com/kdimtricp/moviewarehouse/internal/warehouse"
	"github.com/kdimtricp/moviewarehouse/migrations"
	"github.com/kdimtricp/moviewarehouse/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "server failed:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zlog, err := logger.New(cfg.Logger("server"))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer zlog.Sync()

	app := &api.App{Log: zlog}

	// Verification needs both stores; without them the server still serves
	// /ping and /metrics.
	if cfg.RequireMongo() == nil && cfg.RequireWarehouse() == nil {
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

		migrator := warehouse.NewMigrator(db, zlog)
		app.Verify = func(ctx context.Context) (warehouse.VerifyReport, error) {
			return db.Verify(ctx, store)
		}
		app.MigrationStatus = func(ctx context.Context) ([]warehouse.MigrationStatus, error) {
			return migrator.Status(ctx, migrations.FS)
		}
	} else {
		zlog.Warn("raw store or warehouse not configured, /verify disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Error("shutdown failed", zap.Error(err))
		}
	}()

	zlog.Info("server starting", zap.String("addr", cfg.HTTPAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	zlog.Info("server stopped")
	return nil
}
