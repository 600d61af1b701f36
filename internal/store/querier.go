// Package store holds the Postgres persistence for transaction and
// payment facts and for the reference tables the sync job maintains.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rboulanger/fuelsync/pkg/config"
)

// Querier is the subset of pgx the stores need. *pgxpool.Pool and
// pgx.Tx both satisfy it, so the same store runs inside or outside an
// enclosing transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Tables names the destination tables for one import profile.
type Tables struct {
	Transactions string
	Payments     string
}

// TablesFor picks the destination tables. Shadow and backfill share the
// staging tables; only live touches the canonical ones.
func TablesFor(profile config.Profile) Tables {
	if profile == config.ProfileLive {
		return Tables{Transactions: "transactions", Payments: "payments"}
	}
	return Tables{Transactions: "transactions_shadow", Payments: "payments_shadow"}
}
