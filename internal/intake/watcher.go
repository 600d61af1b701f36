package intake

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/rboulanger/fuelsync/internal/importer"
)

// ImportFunc runs the import pipeline for one claimed file.
type ImportFunc func(ctx context.Context, path string) (importer.Stats, error)

// Watcher polls the incoming directory on a cron schedule and drains
// it through the importer.
type Watcher struct {
	intake   *Intake
	schedule string
	runFile  ImportFunc
	logger   *slog.Logger
}

func NewWatcher(intake *Intake, schedule string, runFile ImportFunc, logger *slog.Logger) *Watcher {
	return &Watcher{intake: intake, schedule: schedule, runFile: runFile, logger: logger}
}

// Run blocks until the context is cancelled. A poll that is still
// importing when the next tick fires is not overlapped.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.intake.Reclaim(); err != nil {
		return err
	}

	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(w.logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(w.schedule, func() { w.poll(ctx) }); err != nil {
		return err
	}

	c.Start()
	w.logger.Info("watcher started", "schedule", w.schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("watcher stopped")
	return ctx.Err()
}

// poll drains every waiting file in claim order.
func (w *Watcher) poll(ctx context.Context) {
	runID := uuid.NewString()
	for {
		if ctx.Err() != nil {
			return
		}
		path, err := w.intake.Next()
		if err != nil {
			w.logger.Error("claiming next file", "run_id", runID, "error", err)
			return
		}
		if path == "" {
			return
		}

		stats, err := w.runFile(ctx, path)
		if err != nil {
			w.logger.Error("import failed", "run_id", runID, "file", path, "error", err)
			if ctx.Err() != nil {
				// Leave the file in processing; the next start reclaims it.
				return
			}
			if err := w.intake.Fail(path); err != nil {
				w.logger.Error("moving failed file", "run_id", runID, "error", err)
			}
			continue
		}
		if !stats.Clean() {
			w.logger.Warn("file imported with row errors", "run_id", runID, "file", path,
				"errors", stats.SkippedError)
		}
		if err := w.intake.Archive(path); err != nil {
			w.logger.Error("archiving file", "run_id", runID, "error", err)
		}
	}
}
