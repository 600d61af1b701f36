package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rboulanger/fuelsync/internal/mapper"
)

// TxKey is the natural key used for duplicate detection. Device is -1
// when the row carried no dispenser address, matching how the key is
// read back from the database.
type TxKey struct {
	At     int64
	Number int
	Device int
}

// NewTxKey builds the key from fact fields. The timestamp collapses to
// unix seconds so keys compare by instant, not by location.
func NewTxKey(at time.Time, number int, device *int) TxKey {
	d := -1
	if device != nil {
		d = *device
	}
	return TxKey{At: at.Unix(), Number: number, Device: d}
}

// TransactionStore persists transaction facts into one destination
// table, live or shadow.
type TransactionStore struct {
	q     Querier
	table string
}

func NewTransactionStore(q Querier, table string) *TransactionStore {
	return &TransactionStore{q: q, table: table}
}

// WithQuerier returns a store bound to another querier, typically a
// transaction begun by the caller.
func (s *TransactionStore) WithQuerier(q Querier) *TransactionStore {
	return &TransactionStore{q: q, table: s.table}
}

// LoadKeys reads every natural key in the destination table. The
// importer seeds its duplicate set from this once per run.
func (s *TransactionStore) LoadKeys(ctx context.Context) (map[TxKey]struct{}, error) {
	rows, err := s.q.Query(ctx, fmt.Sprintf(`
		SELECT trans_at, trans_number, COALESCE(device_address, -1)
		FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("loading transaction keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[TxKey]struct{})
	for rows.Next() {
		var at time.Time
		var number, device int
		if err := rows.Scan(&at, &number, &device); err != nil {
			return nil, fmt.Errorf("loading transaction keys: %w", err)
		}
		keys[TxKey{At: at.Unix(), Number: number, Device: device}] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading transaction keys: %w", err)
	}
	return keys, nil
}

// MaxID returns the highest assigned id, zero on an empty table. Ids
// are assigned client side so a file's rows number consecutively.
func (s *TransactionStore) MaxID(ctx context.Context) (int, error) {
	var id int
	err := s.q.QueryRow(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(id), 0) FROM %s`, s.table)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("reading max transaction id: %w", err)
	}
	return id, nil
}

const transactionColumns = `id, trans_at, trans_end_at, trans_number, terminals_id, trans_type,
		quantity, unit_price_sold, unit_price_marked, amount, currency, tax_rate, discount,
		articles_id, article_code, article_description,
		device_address, sub_device_address, tank_number,
		was_exported, exported_common, exported_customer, modified_flag, fleet_import,
		fiscal_doc_type, fiscal_amount, fiscal_discount, fiscal_tax_amount, created_by`

// Insert writes one fact with its pre-assigned id.
func (s *TransactionStore) Insert(ctx context.Context, f mapper.TransactionFact) error {
	_, err := s.q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		s.table, transactionColumns),
		f.ID, f.TransAt, f.TransEndAt, f.TransNumber, f.TerminalID, f.TransType,
		f.Quantity, f.UnitPriceSold, f.UnitPriceMarked, f.Amount, f.Currency, f.TaxRate, f.Discount,
		f.ArticleID, f.ArticleCode, f.ArticleDescription,
		f.DeviceAddress, f.SubDeviceAddress, f.TankNumber,
		f.WasExported, f.ExportedCommon, f.ExportedCustomer, f.ModifiedFlag, f.FleetImport,
		f.FiscalDocType, f.FiscalAmount, f.FiscalDiscount, f.FiscalTaxAmount, mapper.AuditUser)
	if err != nil {
		return fmt.Errorf("inserting transaction %d: %w", f.ID, err)
	}
	return nil
}

var transactionColumnNames = []string{
	"id", "trans_at", "trans_end_at", "trans_number", "terminals_id", "trans_type",
	"quantity", "unit_price_sold", "unit_price_marked", "amount", "currency", "tax_rate", "discount",
	"articles_id", "article_code", "article_description",
	"device_address", "sub_device_address", "tank_number",
	"was_exported", "exported_common", "exported_customer", "modified_flag", "fleet_import",
	"fiscal_doc_type", "fiscal_amount", "fiscal_discount", "fiscal_tax_amount", "created_by",
}

// BulkQuerier adds binary bulk loading. *pgxpool.Pool and pgx.Tx both
// satisfy it.
type BulkQuerier interface {
	Querier
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// InsertBatch bulk-loads facts with COPY. When the underlying querier
// cannot copy it falls back to row inserts.
func (s *TransactionStore) InsertBatch(ctx context.Context, facts []mapper.TransactionFact) (int64, error) {
	bq, ok := s.q.(BulkQuerier)
	if !ok {
		for _, f := range facts {
			if err := s.Insert(ctx, f); err != nil {
				return 0, err
			}
		}
		return int64(len(facts)), nil
	}

	n, err := bq.CopyFrom(ctx, pgx.Identifier{s.table}, transactionColumnNames,
		pgx.CopyFromSlice(len(facts), func(i int) ([]any, error) {
			f := facts[i]
			return []any{
				f.ID, f.TransAt, f.TransEndAt, f.TransNumber, f.TerminalID, f.TransType,
				f.Quantity, f.UnitPriceSold, f.UnitPriceMarked, f.Amount, f.Currency, f.TaxRate, f.Discount,
				f.ArticleID, f.ArticleCode, f.ArticleDescription,
				f.DeviceAddress, f.SubDeviceAddress, f.TankNumber,
				f.WasExported, f.ExportedCommon, f.ExportedCustomer, f.ModifiedFlag, f.FleetImport,
				f.FiscalDocType, f.FiscalAmount, f.FiscalDiscount, f.FiscalTaxAmount, mapper.AuditUser,
			}, nil
		}))
	if err != nil {
		return n, fmt.Errorf("bulk loading transactions: %w", err)
	}
	return n, nil
}

// CopyLiveRow clones one row from the canonical transactions table into
// the shadow table under a new id. Used when a backfill run meets a
// payment whose transaction predates the shadow table.
func (s *TransactionStore) CopyLiveRow(ctx context.Context, id int, at time.Time, number, terminalID int) (bool, error) {
	tag, err := s.q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		SELECT $1, trans_at, trans_end_at, trans_number, terminals_id, trans_type,
			quantity, unit_price_sold, unit_price_marked, amount, currency, tax_rate, discount,
			articles_id, article_code, article_description,
			device_address, sub_device_address, tank_number,
			was_exported, exported_common, exported_customer, modified_flag, fleet_import,
			fiscal_doc_type, fiscal_amount, fiscal_discount, fiscal_tax_amount, created_by
		FROM transactions
		WHERE trans_at = $2 AND trans_number = $3 AND terminals_id = $4
		ORDER BY id
		LIMIT 1`, s.table, transactionColumns),
		id, at, number, terminalID)
	if err != nil {
		return false, fmt.Errorf("copying live transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
