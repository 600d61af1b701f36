// Command fuelsync imports fuel-card POS extracts into the reporting
// database: one-shot imports, reference sync, directory watching and
// schema migrations.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rboulanger/fuelsync/pkg/config"
)

// errRowErrors signals a completed run where some rows failed. The
// process exits 1 so schedulers can tell partial from clean.
var errRowErrors = errors.New("completed with row errors")

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "fuelsync",
		Short:         "Fuel-card extract importer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newImportCmd(logger),
		newRefsyncCmd(logger),
		newWatchCmd(logger),
		newMigrateCmd(logger),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errRowErrors) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
