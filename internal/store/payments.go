package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rboulanger/fuelsync/internal/mapper"
)

// Decision is the outcome of matching an incoming payment against the
// destination table.
type Decision int

const (
	DecisionInsert Decision = iota
	DecisionUpdate
	DecisionNoOp
)

func (d Decision) String() string {
	switch d {
	case DecisionInsert:
		return "insert"
	case DecisionUpdate:
		return "update"
	default:
		return "noop"
	}
}

// ExistingPayment carries the columns an incoming fact is compared
// against when the signature already matches a stored row.
type ExistingPayment struct {
	ID                 int
	Quantity           decimal.Decimal
	Amount             decimal.Decimal
	AmountNet          *decimal.Decimal
	AmountTax          *decimal.Decimal
	TaxRate            decimal.Decimal
	ArticleDescription *string
	Currency           *string
	CardPAN            *string
}

// PaymentStore persists payment facts into one destination table.
type PaymentStore struct {
	q     Querier
	table string
}

func NewPaymentStore(q Querier, table string) *PaymentStore {
	return &PaymentStore{q: q, table: table}
}

func (s *PaymentStore) WithQuerier(q Querier) *PaymentStore {
	return &PaymentStore{q: q, table: s.table}
}

func (s *PaymentStore) MaxID(ctx context.Context) (int, error) {
	var id int
	err := s.q.QueryRow(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(id), 0) FROM %s`, s.table)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("reading max payment id: %w", err)
	}
	return id, nil
}

// FindExisting looks up a stored payment matching the incoming fact's
// signature: transaction, number, terminal, article code, device
// addresses, amount and quantity at four decimals, and a timestamp
// within one second. The lowest id wins when several rows match.
func (s *PaymentStore) FindExisting(ctx context.Context, f mapper.PaymentFact) (*ExistingPayment, error) {
	row := s.q.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, quantity, amount, amount_net, amount_tax, tax_rate,
			article_description, currency, card_pan
		FROM %s
		WHERE transactions_id = $1
			AND trans_number = $2
			AND terminals_id = $3
			AND COALESCE(article_code, '') = COALESCE($4, '')
			AND COALESCE(device_address, -1) = COALESCE($5, -1)
			AND COALESCE(sub_device_address, -1) = COALESCE($6, -1)
			AND ROUND(amount, 4) = ROUND($7::numeric, 4)
			AND ROUND(quantity, 4) = ROUND($8::numeric, 4)
			AND ABS(EXTRACT(EPOCH FROM (trans_at - $9::timestamptz))) <= 1
		ORDER BY id
		LIMIT 1`, s.table),
		f.TransactionID, f.TransNumber, f.TerminalID, f.ArticleCode,
		f.DeviceAddress, f.SubDeviceAddress, f.Amount, f.Quantity, f.TransAt)

	var p ExistingPayment
	err := row.Scan(&p.ID, &p.Quantity, &p.Amount, &p.AmountNet, &p.AmountTax,
		&p.TaxRate, &p.ArticleDescription, &p.Currency, &p.CardPAN)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding payment: %w", err)
	}
	return &p, nil
}

// Decide compares an incoming fact against the matched row. A nil
// existing row means insert; a matched row updates only when one of the
// compared columns changed.
func Decide(existing *ExistingPayment, f mapper.PaymentFact) Decision {
	if existing == nil {
		return DecisionInsert
	}
	switch {
	case !existing.Quantity.Equal(f.Quantity),
		!existing.Amount.Equal(f.Amount),
		!eqDecPtr(existing.AmountNet, f.AmountNet),
		!eqDecPtr(existing.AmountTax, f.AmountTax),
		!existing.TaxRate.Equal(f.TaxRate),
		!eqStrPtr(existing.ArticleDescription, f.ArticleDescription),
		!eqStrPtr(existing.Currency, f.Currency),
		!eqStrPtr(existing.CardPAN, f.CardPAN):
		return DecisionUpdate
	}
	return DecisionNoOp
}

const paymentColumns = `id, transactions_id, trans_at, trans_number, terminals_id, tender_code,
		quantity, unit_price_sold, amount, amount_net, amount_tax, tax_rate, currency,
		articles_id, article_code, article_description,
		device_address, sub_device_address, station_code, terminal_number,
		mandators_id, mandator_number, mandator_description,
		contracts_id, contract_number,
		cards_id, card_pan, card_number, card_holder,
		card_two_id, card_two_pan, card_two_number, card_two_holder,
		customers_id, customer_number, customer_name,
		employee_number, employee_name,
		vehicles_id, license_plate, mileage,
		tanks_id, dispenser_number, nozzle_number,
		number, modified_flag, fleet_import, created_by`

// Insert writes one fact with its pre-assigned id.
func (s *PaymentStore) Insert(ctx context.Context, f mapper.PaymentFact) error {
	_, err := s.q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32,
			$33, $34, $35, $36, $37, $38, $39, $40, $41, $42, $43, $44, $45, $46, $47, $48)`,
		s.table, paymentColumns),
		f.ID, f.TransactionID, f.TransAt, f.TransNumber, f.TerminalID, f.TenderCode,
		f.Quantity, f.UnitPriceSold, f.Amount, f.AmountNet, f.AmountTax, f.TaxRate, f.Currency,
		f.ArticleID, f.ArticleCode, f.ArticleDescription,
		f.DeviceAddress, f.SubDeviceAddress, f.StationCode, f.TerminalNumber,
		f.MandatorID, f.MandatorNumber, f.MandatorDescription,
		f.ContractID, f.ContractNumber,
		f.CardID, f.CardPAN, f.CardNumber, f.CardHolder,
		f.CardTwoID, f.CardTwoPAN, f.CardTwoNumber, f.CardTwoHolder,
		f.CustomerID, f.CustomerNumber, f.CustomerName,
		f.EmployeeNumber, f.EmployeeName,
		f.VehicleID, f.VehicleLicensePlate, f.Mileage,
		f.TankID, f.DispenserNumber, f.NozzleNumber,
		f.Number, f.ModifiedFlag, f.FleetImport, mapper.AuditUser)
	if err != nil {
		return fmt.Errorf("inserting payment %d: %w", f.ID, err)
	}
	return nil
}

// Update rewrites the compared columns of a matched row and marks it
// modified. Everything outside the compare set keeps its stored value.
func (s *PaymentStore) Update(ctx context.Context, id int, f mapper.PaymentFact) error {
	_, err := s.q.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET quantity = $2, unit_price_sold = $3, amount = $4, amount_net = $5,
			amount_tax = $6, tax_rate = $7, currency = $8, article_description = $9,
			card_pan = $10, modified_flag = $11, modified_by = $12, modified_at = now()
		WHERE id = $1`, s.table),
		id, f.Quantity, f.UnitPriceSold, f.Amount, f.AmountNet,
		f.AmountTax, f.TaxRate, f.Currency, f.ArticleDescription,
		f.CardPAN, mapper.FlagYes, mapper.AuditUser)
	if err != nil {
		return fmt.Errorf("updating payment %d: %w", id, err)
	}
	return nil
}

func eqDecPtr(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func eqStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
