package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// RefStore maintains the reference tables the extracts are matched
// against. Sync methods compare before writing so an unchanged record
// costs one read and no write.
type RefStore struct {
	q Querier
}

func NewRefStore(q Querier) *RefStore {
	return &RefStore{q: q}
}

// SyncCustomer upserts one customer by its business number.
func (s *RefStore) SyncCustomer(ctx context.Context, number string, firstName, lastName, company *string) (Decision, error) {
	var id int
	var curFirst, curLast, curCompany *string
	err := s.q.QueryRow(ctx, `
		SELECT id, first_name, last_name, company
		FROM customers
		WHERE number = $1
		ORDER BY id
		LIMIT 1`, number).Scan(&id, &curFirst, &curLast, &curCompany)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err := s.q.Exec(ctx, `
			INSERT INTO customers (number, first_name, last_name, company)
			VALUES ($1, $2, $3, $4)`, number, firstName, lastName, company)
		if err != nil {
			return DecisionNoOp, fmt.Errorf("inserting customer %s: %w", number, err)
		}
		return DecisionInsert, nil
	}
	if err != nil {
		return DecisionNoOp, fmt.Errorf("reading customer %s: %w", number, err)
	}

	if eqStrPtr(curFirst, firstName) && eqStrPtr(curLast, lastName) && eqStrPtr(curCompany, company) {
		return DecisionNoOp, nil
	}
	_, err = s.q.Exec(ctx, `
		UPDATE customers SET first_name = $2, last_name = $3, company = $4
		WHERE id = $1`, id, firstName, lastName, company)
	if err != nil {
		return DecisionNoOp, fmt.Errorf("updating customer %s: %w", number, err)
	}
	return DecisionUpdate, nil
}

// SyncContract upserts one contract. A new contract is only created
// once its customer exists; until then the caller should retry on a
// later run.
func (s *RefStore) SyncContract(ctx context.Context, number, customerNumber string, description *string) (Decision, bool, error) {
	var customerID int
	err := s.q.QueryRow(ctx, `
		SELECT id FROM customers WHERE number = $1 ORDER BY id LIMIT 1`,
		customerNumber).Scan(&customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return DecisionNoOp, false, nil
	}
	if err != nil {
		return DecisionNoOp, false, fmt.Errorf("resolving customer %s: %w", customerNumber, err)
	}

	var id, curCustomerID int
	var curDescription *string
	err = s.q.QueryRow(ctx, `
		SELECT id, customers_id, description FROM contracts WHERE number = $1 ORDER BY id LIMIT 1`,
		number).Scan(&id, &curCustomerID, &curDescription)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err := s.q.Exec(ctx, `
			INSERT INTO contracts (number, description, customers_id)
			VALUES ($1, $2, $3)`, number, description, customerID)
		if err != nil {
			return DecisionNoOp, false, fmt.Errorf("inserting contract %s: %w", number, err)
		}
		return DecisionInsert, true, nil
	}
	if err != nil {
		return DecisionNoOp, false, fmt.Errorf("reading contract %s: %w", number, err)
	}

	if curCustomerID == customerID && eqStrPtr(curDescription, description) {
		return DecisionNoOp, true, nil
	}
	_, err = s.q.Exec(ctx, `
		UPDATE contracts SET description = $2, customers_id = $3 WHERE id = $1`, id, description, customerID)
	if err != nil {
		return DecisionNoOp, false, fmt.Errorf("updating contract %s: %w", number, err)
	}
	return DecisionUpdate, true, nil
}

// SyncEmployee upserts one driver record by its business number.
func (s *RefStore) SyncEmployee(ctx context.Context, number string, firstName, lastName *string) (Decision, error) {
	var id int
	var curFirst, curLast *string
	err := s.q.QueryRow(ctx, `
		SELECT id, first_name, last_name
		FROM employees
		WHERE number = $1
		ORDER BY id
		LIMIT 1`, number).Scan(&id, &curFirst, &curLast)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err := s.q.Exec(ctx, `
			INSERT INTO employees (number, first_name, last_name)
			VALUES ($1, $2, $3)`, number, firstName, lastName)
		if err != nil {
			return DecisionNoOp, fmt.Errorf("inserting employee %s: %w", number, err)
		}
		return DecisionInsert, nil
	}
	if err != nil {
		return DecisionNoOp, fmt.Errorf("reading employee %s: %w", number, err)
	}

	if eqStrPtr(curFirst, firstName) && eqStrPtr(curLast, lastName) {
		return DecisionNoOp, nil
	}
	_, err = s.q.Exec(ctx, `
		UPDATE employees SET first_name = $2, last_name = $3
		WHERE id = $1`, id, firstName, lastName)
	if err != nil {
		return DecisionNoOp, fmt.Errorf("updating employee %s: %w", number, err)
	}
	return DecisionUpdate, nil
}

// CardExists reports whether a card with this normalized number is
// already onboarded.
func (s *RefStore) CardExists(ctx context.Context, number string) (bool, error) {
	var id int
	err := s.q.QueryRow(ctx, `
		SELECT id FROM cards WHERE UPPER(TRIM(number)) = $1 ORDER BY id LIMIT 1`,
		number).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking card %s: %w", number, err)
	}
	return true, nil
}

// StagePendingCard records a card number seen in an extract but absent
// from the cards table. The row waits there for manual onboarding.
func (s *RefStore) StagePendingCard(ctx context.Context, pan, number, holder *string) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO cards_saas_pending (pan, number, holder)
		VALUES ($1, $2, $3)
		ON CONFLICT (pan) DO NOTHING`, pan, number, holder)
	if err != nil {
		return false, fmt.Errorf("staging pending card: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
