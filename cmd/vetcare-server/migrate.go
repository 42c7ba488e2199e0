package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"vetcare/backend/internal/config"
	"vetcare/backend/internal/store/postgres"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context())
		},
	}
}

func migrate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.StorageDriver != config.StoragePostgres {
		log.Error("migrate requires the postgres storage driver", slog.String("storage", cfg.StorageDriver))
		return errors.New("migrate: storage driver is not postgres")
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		log.Error("migration failed", slog.Any("err", err))
		return err
	}
	if len(applied) == 0 {
		log.Info("database is up to date")
		return nil
	}
	log.Info("migrations applied", slog.Any("versions", applied))
	return nil
}
