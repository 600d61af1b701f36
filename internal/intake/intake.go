// Package intake owns the extract file lifecycle on disk: incoming
// files are claimed into processing and land in archive or error.
package intake

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	processingDir = "processing"
	archiveDir    = "archive"
	errorDir      = "error"
)

var extractExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
	".xls":  true,
}

// Intake manages one incoming directory and its lifecycle
// subdirectories.
type Intake struct {
	root   string
	logger *slog.Logger
}

// New prepares the lifecycle directories under root.
func New(root string, logger *slog.Logger) (*Intake, error) {
	for _, d := range []string{processingDir, archiveDir, errorDir} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("preparing %s directory: %w", d, err)
		}
	}
	return &Intake{root: root, logger: logger}, nil
}

// Reclaim moves files left in processing back to incoming. A crashed
// or cancelled run leaves its file there; re-importing it is safe
// because the importer deduplicates on natural keys.
func (i *Intake) Reclaim() (int, error) {
	entries, err := os.ReadDir(filepath.Join(i.root, processingDir))
	if err != nil {
		return 0, fmt.Errorf("reading processing directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(i.root, processingDir, e.Name())
		dst := uniquePath(filepath.Join(i.root, e.Name()))
		if err := os.Rename(src, dst); err != nil {
			return n, fmt.Errorf("reclaiming %s: %w", e.Name(), err)
		}
		i.logger.Info("reclaimed abandoned file", "file", e.Name())
		n++
	}
	return n, nil
}

// Next claims the oldest incoming extract file, moving it into
// processing. An empty path means nothing is waiting.
func (i *Intake) Next() (string, error) {
	entries, err := os.ReadDir(i.root)
	if err != nil {
		return "", fmt.Errorf("reading incoming directory: %w", err)
	}

	type candidate struct {
		name string
		mod  time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !extractExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{name: e.Name(), mod: info.ModTime()})
	}
	if len(files) == 0 {
		return "", nil
	}
	sort.Slice(files, func(a, b int) bool {
		if files[a].mod.Equal(files[b].mod) {
			return files[a].name < files[b].name
		}
		return files[a].mod.Before(files[b].mod)
	})

	src := filepath.Join(i.root, files[0].name)
	dst := uniquePath(filepath.Join(i.root, processingDir, files[0].name))
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("claiming %s: %w", files[0].name, err)
	}
	return dst, nil
}

// Archive moves a processed file out of processing.
func (i *Intake) Archive(path string) error {
	return i.finish(path, archiveDir)
}

// Fail moves a file whose import failed into the error directory for
// operator attention.
func (i *Intake) Fail(path string) error {
	return i.finish(path, errorDir)
}

func (i *Intake) finish(path, dir string) error {
	dst := uniquePath(filepath.Join(i.root, dir, filepath.Base(path)))
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("moving %s to %s: %w", filepath.Base(path), dir, err)
	}
	return nil
}

// uniquePath keeps the original name unless it is already taken, in
// which case a timestamped unique prefix is added.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	dir, base := filepath.Split(path)
	prefix := time.Now().Format("20060102T150405") + "_" + uuid.NewString()[:8]
	return filepath.Join(dir, prefix+"_"+base)
}
