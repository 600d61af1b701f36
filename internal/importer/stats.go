// Package importer drives the per-file upsert pipeline: read, resolve,
// map, deduplicate, decide, write.
package importer

import "log/slog"

// Stats counts row outcomes for one imported file.
type Stats struct {
	RowsRead         int
	Inserted         int
	Updated          int
	NoOps            int
	SkippedDuplicate int
	SkippedError     int
	SkippedTooOld    int
}

// Add folds another file's counts into a run total.
func (s *Stats) Add(o Stats) {
	s.RowsRead += o.RowsRead
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.NoOps += o.NoOps
	s.SkippedDuplicate += o.SkippedDuplicate
	s.SkippedError += o.SkippedError
	s.SkippedTooOld += o.SkippedTooOld
}

// Clean reports whether every row landed without a row-level error.
func (s Stats) Clean() bool {
	return s.SkippedError == 0
}

func (s Stats) attrs() []any {
	return []any{
		slog.Int("rows", s.RowsRead),
		slog.Int("inserted", s.Inserted),
		slog.Int("updated", s.Updated),
		slog.Int("noops", s.NoOps),
		slog.Int("duplicates", s.SkippedDuplicate),
		slog.Int("errors", s.SkippedError),
		slog.Int("too_old", s.SkippedTooOld),
	}
}
