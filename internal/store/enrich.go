package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rboulanger/fuelsync/internal/normalize"
)

// Enrichment is driver and vehicle context recovered from reference
// data when the extract row carried none.
type Enrichment struct {
	EmployeeNumber *string
	EmployeeName   *string
	VehicleID      *int
	LicensePlate   *string
}

type enrichKey struct {
	pan         string
	transNumber int
}

// EnrichmentStore answers driver/vehicle lookups for payments. The
// mapping table is loaded once per run; PAN lookups hit the database
// and cache per run as well.
type EnrichmentStore struct {
	q Querier

	mapped map[enrichKey]Enrichment
	byPAN  map[string]*Enrichment
}

func NewEnrichmentStore(q Querier) *EnrichmentStore {
	return &EnrichmentStore{q: q, byPAN: make(map[string]*Enrichment)}
}

// WithQuerier returns a store bound to another querier. The caches are
// shared so run-scoped lookups stay warm across row transactions.
func (s *EnrichmentStore) WithQuerier(q Querier) *EnrichmentStore {
	return &EnrichmentStore{q: q, mapped: s.mapped, byPAN: s.byPAN}
}

// LoadMap reads the full card/driver/vehicle mapping table. Keys strip
// the trailing track separator so they match PANs from any source.
func (s *EnrichmentStore) LoadMap(ctx context.Context) error {
	rows, err := s.q.Query(ctx, `
		SELECT card_pan, trans_number, employee_number, employee_name, license_plate
		FROM card_driver_vehicle_map`)
	if err != nil {
		return fmt.Errorf("loading card driver vehicle map: %w", err)
	}
	defer rows.Close()

	s.mapped = make(map[enrichKey]Enrichment)
	for rows.Next() {
		var pan string
		var transNumber int
		var e Enrichment
		if err := rows.Scan(&pan, &transNumber, &e.EmployeeNumber, &e.EmployeeName, &e.LicensePlate); err != nil {
			return fmt.Errorf("loading card driver vehicle map: %w", err)
		}
		s.mapped[enrichKey{pan: normalize.PAN(pan, true), transNumber: transNumber}] = e
	}
	return rows.Err()
}

// Lookup returns the enrichment for a PAN and transaction number. The
// explicit mapping table wins; live card links are the fallback. A nil
// result means the extract's own fields stand.
func (s *EnrichmentStore) Lookup(ctx context.Context, pan *string, transNumber int) (*Enrichment, error) {
	if pan == nil {
		return nil, nil
	}
	key := normalize.PAN(*pan, true)
	if key == "" {
		return nil, nil
	}
	if e, ok := s.mapped[enrichKey{pan: key, transNumber: transNumber}]; ok {
		return &e, nil
	}
	return s.findByPAN(ctx, key)
}

func (s *EnrichmentStore) findByPAN(ctx context.Context, pan string) (*Enrichment, error) {
	if e, ok := s.byPAN[pan]; ok {
		return e, nil
	}

	row := s.q.QueryRow(ctx, `
		SELECT e.number, TRIM(CONCAT(e.first_name, ' ', e.last_name)), v.id, v.license_plate
		FROM cards c
		LEFT JOIN employees e ON e.id = c.employees_id
		LEFT JOIN vehicles v ON v.id = c.vehicles_id
		WHERE c.pan = $1
		ORDER BY c.id
		LIMIT 1`, pan)

	var e Enrichment
	err := row.Scan(&e.EmployeeNumber, &e.EmployeeName, &e.VehicleID, &e.LicensePlate)
	if errors.Is(err, pgx.ErrNoRows) {
		s.byPAN[pan] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up card %s: %w", pan, err)
	}
	if e.EmployeeName != nil && *e.EmployeeName == "" {
		e.EmployeeName = nil
	}
	s.byPAN[pan] = &e
	return &e, nil
}

// ResolveArticleID recovers an article id for rows the extract left
// unnumbered, matching on code, description and tax rate seen in
// earlier payments.
func (s *EnrichmentStore) ResolveArticleID(ctx context.Context, code, description *string, taxRate decimal.Decimal) (int, bool, error) {
	var id int
	err := s.q.QueryRow(ctx, `
		SELECT articles_id FROM article_map_from_payments
		WHERE COALESCE(article_code, '') = COALESCE($1, '')
			AND COALESCE(article_description, '') = COALESCE($2, '')
			AND tax_rate = $3
		ORDER BY articles_id
		LIMIT 1`, code, description, taxRate).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolving article from map: %w", err)
	}
	return id, true, nil
}
