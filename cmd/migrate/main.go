package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/internal/config"
	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
	"github.com/kdimtricp/moviewarehouse/internal/warehouse"
	"github.com/kdimtricp/moviewarehouse/migrations"
	"github.com/kdimtricp/moviewarehouse/pkg/logger"
)

func main() {
	var (
		status      = flag.Bool("status", false, "Show migration status only")
		rawstoreIdx = flag.Bool("rawstore", false, "Create the raw store indexes instead of running warehouse migrations")
	)
	flag.Parse()

	if err := run(context.Background(), *status, *rawstoreIdx); err != nil {
		fmt.Fprintln(os.Stderr, "migrate failed:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, status, rawstoreIdx bool) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zlog, err := logger.New(cfg.Logger("migrate"))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer zlog.Sync()

	if rawstoreIdx {
		return ensureIndexes(ctx, cfg, zlog)
	}

	if err := cfg.RequireWarehouse(); err != nil {
		return err
	}

	db, err := warehouse.NewDB(ctx, cfg.WarehouseDB())
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer db.Close()

	migrator := warehouse.NewMigrator(db, zlog)

	if status {
		statuses, err := migrator.Status(ctx, migrations.FS)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}

		fmt.Println("Migration Status:")
		fmt.Println("=================")
		for _, m := range statuses {
			state := "pending"
			if m.Applied {
				state = "applied"
			}
			fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
		}
		return nil
	}

	fmt.Printf("Running migrations against %s...\n", db.Type())
	applied, err := migrator.Run(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	fmt.Printf("Migrations completed successfully (%d applied)\n", applied)
	return nil
}

func ensureIndexes(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	if err := cfg.RequireMongo(); err != nil {
		return err
	}

	store, err := rawstore.Open(ctx, cfg.RawStore(), zlog)
	if err != nil {
		return fmt.Errorf("failed to connect to raw store: %w", err)
	}
	defer store.Close(context.Background())

	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	fmt.Println("Raw store indexes ready")
	return nil
}
