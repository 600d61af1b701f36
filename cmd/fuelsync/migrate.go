package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/rboulanger/fuelsync/migrations"
)

func newMigrateCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			sqlDB, err := sql.Open("pgx", cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer sqlDB.Close()

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			if err := goose.UpContext(cmd.Context(), sqlDB, "."); err != nil {
				return fmt.Errorf("applying migrations: %w", err)
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}
