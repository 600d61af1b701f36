package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rboulanger/fuelsync/internal/importer"
	"github.com/rboulanger/fuelsync/pkg/db"
)

func newImportCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|dir>",
		Short: "Import one extract file or every extract in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			paths, err := extractPaths(args[0])
			if err != nil {
				return err
			}

			var total importer.Stats
			for _, path := range paths {
				stats, err := imp.ImportFile(ctx, path)
				total.Add(stats)
				if err != nil {
					return err
				}
			}
			logger.Info("import finished", "files", len(paths),
				"inserted", total.Inserted, "updated", total.Updated,
				"errors", total.SkippedError)
			if !total.Clean() {
				return errRowErrors
			}
			return nil
		},
	}
}

// extractPaths expands a directory argument into its extract files in
// name order; a plain file is returned as-is.
func extractPaths(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}

	entries, err := os.ReadDir(arg)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".txt", ".xlsx", ".xls":
			paths = append(paths, filepath.Join(arg, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no extract files in %s", arg)
	}
	sort.Strings(paths)
	return paths, nil
}
