package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rboulanger/fuelsync/internal/catalog"
	"github.com/rboulanger/fuelsync/internal/extract"
	"github.com/rboulanger/fuelsync/internal/mapper"
	"github.com/rboulanger/fuelsync/internal/resolve"
	"github.com/rboulanger/fuelsync/internal/store"
	"github.com/rboulanger/fuelsync/pkg/config"
)

// DB is what the importer needs from a connection pool.
type DB interface {
	store.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Importer runs the upsert pipeline for transaction extracts.
type Importer struct {
	db     DB
	cfg    config.ImportConfig
	logger *slog.Logger
	minAt  time.Time
}

func New(db DB, cfg config.ImportConfig, logger *slog.Logger) (*Importer, error) {
	imp := &Importer{db: db, cfg: cfg, logger: logger}
	if cfg.MinTransactionDate != "" {
		t, err := time.ParseInLocation("2006-01-02", cfg.MinTransactionDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid minimum transaction date %q: %w", cfg.MinTransactionDate, err)
		}
		imp.minAt = t
	}
	return imp, nil
}

// ImportFile processes one extract file. Row-level failures are counted
// and logged but never abort the file; the returned error is file-level
// (unreadable input, lost database connection, failed commit).
func (imp *Importer) ImportFile(ctx context.Context, path string) (Stats, error) {
	var stats Stats

	rows, err := extract.ReadFile(path)
	if err != nil {
		return stats, fmt.Errorf("reading %s: %w", path, err)
	}

	q := store.Querier(imp.db)
	perFile := imp.cfg.CommitMode == config.CommitPerFile && !imp.cfg.DryRun
	var tx pgx.Tx
	if perFile {
		tx, err = imp.db.Begin(ctx)
		if err != nil {
			return stats, fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback(ctx)
		q = tx
	}

	cat, err := catalog.Load(ctx, q, imp.logger)
	if err != nil {
		return stats, err
	}
	res := resolve.New(cat, imp.logger)
	m := mapper.New(imp.cfg)

	tables := store.TablesFor(imp.cfg.Profile)
	txStore := store.NewTransactionStore(q, tables.Transactions)
	payStore := store.NewPaymentStore(q, tables.Payments)
	enrich := store.NewEnrichmentStore(q)
	if err := enrich.LoadMap(ctx); err != nil {
		return stats, err
	}

	seen, err := txStore.LoadKeys(ctx)
	if err != nil {
		return stats, err
	}
	txID, err := txStore.MaxID(ctx)
	if err != nil {
		return stats, err
	}
	payID, err := payStore.MaxID(ctx)
	if err != nil {
		return stats, err
	}

	// Transactions buffer for one COPY at the end of a per-file scope.
	// Per-row mode writes each fact as it lands.
	var pending []mapper.TransactionFact

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rowNum := i + 2
		stats.RowsRead++

		keys, err := res.Resolve(row, rowNum)
		if err != nil {
			imp.rowError(&stats, path, rowNum, err)
			continue
		}
		txF, payF, err := m.Map(row, keys, rowNum)
		if err != nil {
			imp.rowError(&stats, path, rowNum, err)
			continue
		}

		if !imp.minAt.IsZero() && txF.TransAt.Before(imp.minAt) {
			stats.SkippedTooOld++
			continue
		}

		key := store.NewTxKey(txF.TransAt, txF.TransNumber, txF.DeviceAddress)
		if _, dup := seen[key]; dup {
			stats.SkippedDuplicate++
			imp.logger.Debug("duplicate transaction", "file", path, "row", rowNum,
				"trans_number", txF.TransNumber)
			continue
		}

		txID++
		txF.ID = txID
		payF.TransactionID = txF.ID

		// A row's two facts land together or not at all. Per-row mode
		// opens a short transaction around them; per-file mode brackets
		// the row in a savepoint so a failed statement cannot poison the
		// enclosing file transaction.
		rowQ := q
		var rowTx pgx.Tx
		if !imp.cfg.DryRun {
			if perFile {
				if _, err := tx.Exec(ctx, "SAVEPOINT import_row"); err != nil {
					return stats, fmt.Errorf("starting row scope: %w", err)
				}
			} else {
				rowTx, err = imp.db.Begin(ctx)
				if err != nil {
					return stats, fmt.Errorf("beginning row transaction: %w", err)
				}
				rowQ = rowTx
			}
		}

		out, err := imp.upsertRow(ctx, rowQ, txStore, payStore, enrich, &txF, &payF, perFile, payID)
		if err != nil {
			txID--
			if rowTx != nil {
				_ = rowTx.Rollback(ctx)
			} else if perFile {
				if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT import_row"); rbErr != nil {
					return stats, fmt.Errorf("rolling back row %d: %w", rowNum, rbErr)
				}
			}
			imp.rowError(&stats, path, rowNum, err)
			continue
		}
		if rowTx != nil {
			if err := rowTx.Commit(ctx); err != nil {
				return stats, fmt.Errorf("committing row %d: %w", rowNum, err)
			}
		} else if perFile {
			if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT import_row"); err != nil {
				return stats, fmt.Errorf("releasing row scope: %w", err)
			}
		}

		seen[key] = struct{}{}
		if out.buffered {
			pending = append(pending, txF)
		}
		switch out.decision {
		case store.DecisionInsert:
			payID++
			stats.Inserted++
		case store.DecisionUpdate:
			stats.Updated++
		default:
			stats.NoOps++
		}
		if imp.cfg.DryRun {
			imp.logger.Info("dry run decision", "file", path, "row", rowNum,
				"decision", out.decision.String(), "trans_number", txF.TransNumber)
		}
	}

	if len(pending) > 0 {
		if _, err := txStore.InsertBatch(ctx, pending); err != nil {
			return stats, err
		}
	}
	if perFile {
		if err := tx.Commit(ctx); err != nil {
			return stats, fmt.Errorf("committing %s: %w", path, err)
		}
	}

	imp.logger.Info("file imported", append([]any{slog.String("file", path)}, stats.attrs()...)...)
	return stats, nil
}

// rowOutcome reports what one row's database work produced.
type rowOutcome struct {
	decision store.Decision
	buffered bool
}

// upsertRow runs one row against rowQ: article recovery, enrichment,
// the transaction fact write and the payment decision. The caller owns
// the row scope and unwinds the id counters on error.
func (imp *Importer) upsertRow(ctx context.Context, rowQ store.Querier,
	txStore *store.TransactionStore, payStore *store.PaymentStore, enrich *store.EnrichmentStore,
	txF *mapper.TransactionFact, payF *mapper.PaymentFact, buffer bool, maxPayID int) (rowOutcome, error) {

	var out rowOutcome
	txS := txStore.WithQuerier(rowQ)
	payS := payStore.WithQuerier(rowQ)
	enr := enrich.WithQuerier(rowQ)

	if txF.ArticleID == 0 {
		id, ok, err := enr.ResolveArticleID(ctx, txF.ArticleCode, txF.ArticleDescription, txF.TaxRate)
		if err != nil {
			return out, err
		}
		if ok {
			txF.ArticleID, payF.ArticleID = id, id
		}
	}

	if e, err := enr.Lookup(ctx, payF.CardPAN, payF.TransNumber); err != nil {
		return out, err
	} else if e != nil {
		applyEnrichment(payF, e)
	}

	written := imp.cfg.DryRun
	if imp.cfg.Profile == config.ProfileBackfill && !imp.cfg.DryRun {
		copied, err := txS.CopyLiveRow(ctx, txF.ID, txF.TransAt, txF.TransNumber, txF.TerminalID)
		if err != nil {
			return out, err
		}
		written = copied
	}
	if !written {
		if buffer {
			out.buffered = true
		} else if err := txS.Insert(ctx, *txF); err != nil {
			return out, err
		}
	}

	existing, err := payS.FindExisting(ctx, *payF)
	if err != nil {
		return out, err
	}
	out.decision = store.Decide(existing, *payF)
	if out.decision == store.DecisionUpdate && imp.cfg.Profile == config.ProfileShadow {
		// Shadow runs never touch rows an earlier run wrote; only a
		// backfill is allowed to correct them.
		out.decision = store.DecisionNoOp
	}

	switch out.decision {
	case store.DecisionInsert:
		payF.ID = maxPayID + 1
		if !imp.cfg.DryRun {
			if err := payS.Insert(ctx, *payF); err != nil {
				return out, err
			}
		}
	case store.DecisionUpdate:
		if !imp.cfg.DryRun {
			if err := payS.Update(ctx, existing.ID, *payF); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func (imp *Importer) rowError(stats *Stats, path string, rowNum int, err error) {
	stats.SkippedError++
	imp.logger.Error("row failed", "file", path, "row", rowNum, "error", err)
}

// applyEnrichment overlays recovered driver and vehicle context; the
// extract's own fields stand wherever the source has nothing.
func applyEnrichment(f *mapper.PaymentFact, e *store.Enrichment) {
	if e.EmployeeNumber != nil {
		f.EmployeeNumber = e.EmployeeNumber
	}
	if e.EmployeeName != nil {
		f.EmployeeName = e.EmployeeName
	}
	if e.VehicleID != nil {
		f.VehicleID = e.VehicleID
	}
	if e.LicensePlate != nil {
		f.VehicleLicensePlate = e.LicensePlate
	}
}
