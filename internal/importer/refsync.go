package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/rboulanger/fuelsync/internal/extract"
	"github.com/rboulanger/fuelsync/internal/normalize"
	"github.com/rboulanger/fuelsync/internal/store"
	"github.com/rboulanger/fuelsync/pkg/config"
)

// Kind selects which reference entity a sync run maintains.
type Kind string

const (
	KindCustomers Kind = "customers"
	KindContracts Kind = "contracts"
	KindDrivers   Kind = "drivers"
	KindCards     Kind = "cards"
)

// ParseKind validates a user-supplied kind flag.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCustomers, KindContracts, KindDrivers, KindCards:
		return k, nil
	default:
		return "", fmt.Errorf("unknown reference kind %q", s)
	}
}

// RefSyncer maintains reference tables from the entity columns of an
// extract file. Each file runs in one database transaction.
type RefSyncer struct {
	db     DB
	cfg    config.ImportConfig
	logger *slog.Logger
}

func NewRefSyncer(db DB, cfg config.ImportConfig, logger *slog.Logger) *RefSyncer {
	return &RefSyncer{db: db, cfg: cfg, logger: logger}
}

// Sync reads one extract file and upserts the selected entity. Rows
// repeating the same business number are folded to the first occurrence.
func (s *RefSyncer) Sync(ctx context.Context, kind Kind, path string) (Stats, error) {
	var stats Stats

	rows, err := extract.ReadFile(path)
	if err != nil {
		return stats, fmt.Errorf("reading %s: %w", path, err)
	}

	q := store.Querier(s.db)
	var tx pgx.Tx
	if !s.cfg.DryRun {
		tx, err = s.db.Begin(ctx)
		if err != nil {
			return stats, fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback(ctx)
		q = tx
	}
	ref := store.NewRefStore(q)

	done := make(map[string]struct{})
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rowNum := i + 2
		stats.RowsRead++

		number, ok := keyFor(kind, row)
		if !ok {
			stats.NoOps++
			continue
		}
		if _, seen := done[number]; seen {
			stats.SkippedDuplicate++
			continue
		}
		done[number] = struct{}{}

		if s.cfg.DryRun {
			s.logger.Info("dry run reference row", "kind", string(kind), "row", rowNum, "number", number)
			stats.NoOps++
			continue
		}

		d, err := s.syncOne(ctx, ref, kind, row, number)
		if err != nil {
			stats.SkippedError++
			s.logger.Error("reference row failed", "kind", string(kind), "file", path, "row", rowNum, "error", err)
			continue
		}
		switch d {
		case store.DecisionInsert:
			stats.Inserted++
		case store.DecisionUpdate:
			stats.Updated++
		default:
			stats.NoOps++
		}
	}

	if tx != nil {
		if err := tx.Commit(ctx); err != nil {
			return stats, fmt.Errorf("committing %s: %w", path, err)
		}
	}

	s.logger.Info("reference sync done", append([]any{
		slog.String("kind", string(kind)), slog.String("file", path),
	}, stats.attrs()...)...)
	return stats, nil
}

// keyFor picks the business number column for a kind. Rows without one
// carry nothing to sync.
func keyFor(kind Kind, row extract.Row) (string, bool) {
	var raw string
	switch kind {
	case KindCustomers:
		raw = row.CustomerNumber
	case KindContracts:
		raw = row.ContractNumber
	case KindDrivers:
		raw = row.DriverNumber
	case KindCards:
		raw = row.CardOneNumber
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if kind == KindCards {
		return normalize.CardNumber(raw), true
	}
	return raw, true
}

func (s *RefSyncer) syncOne(ctx context.Context, ref *store.RefStore, kind Kind, row extract.Row, number string) (store.Decision, error) {
	switch kind {
	case KindCustomers:
		return ref.SyncCustomer(ctx, number,
			trimPtr(row.CustomerFirstName), trimPtr(row.CustomerLastName), trimPtr(row.CustomerCompany))

	case KindContracts:
		customer := strings.TrimSpace(row.CustomerNumber)
		if customer == "" {
			return store.DecisionNoOp, nil
		}
		d, resolved, err := ref.SyncContract(ctx, number, customer, trimPtr(row.ContractDescription))
		if err != nil {
			return d, err
		}
		if !resolved {
			s.logger.Warn("contract deferred, customer not onboarded",
				"contract", number, "customer", customer)
		}
		return d, nil

	case KindDrivers:
		return ref.SyncEmployee(ctx, number,
			trimPtr(row.DriverFirstName), trimPtr(row.DriverLastName))

	default:
		exists, err := ref.CardExists(ctx, number)
		if err != nil || exists {
			return store.DecisionNoOp, err
		}
		pan := normalize.PAN(row.CardOnePAN, s.cfg.PANStripEquals)
		staged, err := ref.StagePendingCard(ctx, strPtrOrNil(pan), strPtrOrNil(number), trimPtr(row.CardOneHolder))
		if err != nil {
			return store.DecisionNoOp, err
		}
		if staged {
			return store.DecisionInsert, nil
		}
		return store.DecisionNoOp, nil
	}
}

func trimPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
