package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rboulanger/fuelsync/internal/importer"
	"github.com/rboulanger/fuelsync/internal/intake"
	"github.com/rboulanger/fuelsync/pkg/db"
)

func newWatchCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the incoming directory and import extracts as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := db.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			imp, err := importer.New(pool, cfg.Import, logger)
			if err != nil {
				return err
			}
			in, err := intake.New(cfg.Import.IncomingDir, logger)
			if err != nil {
				return err
			}

			w := intake.NewWatcher(in, cfg.Watch.Schedule, imp.ImportFile, logger)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
