package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rboulanger/fuelsync/internal/importer"
	"github.com/rboulanger/fuelsync/pkg/db"
)

func newRefsyncCmd(logger *slog.Logger) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "refsync <file>",
		Short: "Sync reference data (customers, contracts, drivers, cards) from an extract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, err := importer.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := db.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			stats, err := importer.NewRefSyncer(pool, cfg.Import, logger).Sync(ctx, kind, args[0])
			if err != nil {
				return err
			}
			if !stats.Clean() {
				return errRowErrors
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "reference kind: customers|contracts|drivers|cards")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}
