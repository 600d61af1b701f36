// Package catalog loads the reference schema into in-memory indexes for
// the duration of one import run. Reference tables are small (hundreds to
// low thousands of rows) so a full load beats per-row queries by orders
// of magnitude.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/rboulanger/fuelsync/internal/normalize"
)

// Querier is the subset of pgxpool.Pool the loader needs. pgx.Tx and
// pgxmock pools satisfy it too.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Terminal is one POS terminal of a station. Code, Number and AltNumber
// are the three identifiers the upstream may send; any can be empty.
type Terminal struct {
	ID        int
	StationID int
	Code      string
	Number    string
	AltNumber string
}

// Tank is a fuel tank resolved by (station, article).
type Tank struct {
	ID     int
	Number int
}

// Mandator is the billing entity owning a station.
type Mandator struct {
	ID          int
	Number      *string
	Description *string
}

// Customer carries the id and the derived display name (company when
// present, otherwise "first last").
type Customer struct {
	ID          int
	DisplayName *string
}

type tankKey struct {
	stationID int
	articleID int
}

// Catalog holds the reference indexes. Read-only after Load.
type Catalog struct {
	stationByCode      map[string]int
	terminalsByStation map[int][]Terminal
	tankByStatArticle  map[tankKey]Tank
	mandatorByStation  map[int]Mandator
	customerByNumber   map[string]Customer
	contractByNumber   map[string]int
	vehicleByPlate     map[string]int
	cardByNumber       map[string]int
}

// Load reads all reference tables in one pass each. Any query error
// aborts the run; importing against a partial catalog would resolve rows
// wrongly rather than loudly.
func Load(ctx context.Context, q Querier, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		stationByCode:      make(map[string]int),
		terminalsByStation: make(map[int][]Terminal),
		tankByStatArticle:  make(map[tankKey]Tank),
		mandatorByStation:  make(map[int]Mandator),
		customerByNumber:   make(map[string]Customer),
		contractByNumber:   make(map[string]int),
		vehicleByPlate:     make(map[string]int),
		cardByNumber:       make(map[string]int),
	}

	if err := c.loadStations(ctx, q); err != nil {
		return nil, fmt.Errorf("loading stations: %w", err)
	}
	if err := c.loadTerminals(ctx, q); err != nil {
		return nil, fmt.Errorf("loading terminals: %w", err)
	}
	if err := c.loadTanks(ctx, q); err != nil {
		return nil, fmt.Errorf("loading tanks: %w", err)
	}
	if err := c.loadCustomers(ctx, q); err != nil {
		return nil, fmt.Errorf("loading customers: %w", err)
	}
	if err := c.loadContracts(ctx, q); err != nil {
		return nil, fmt.Errorf("loading contracts: %w", err)
	}
	if err := c.loadVehicles(ctx, q); err != nil {
		return nil, fmt.Errorf("loading vehicles: %w", err)
	}
	if err := c.loadCards(ctx, q); err != nil {
		return nil, fmt.Errorf("loading cards: %w", err)
	}

	logger.Info("reference catalog loaded",
		"stations", len(c.stationByCode),
		"stationsWithTerminals", len(c.terminalsByStation),
		"tankCombinations", len(c.tankByStatArticle),
		"customers", len(c.customerByNumber),
		"contracts", len(c.contractByNumber),
		"vehicles", len(c.vehicleByPlate),
		"cards", len(c.cardByNumber),
	)

	return c, nil
}

func (c *Catalog) loadStations(ctx context.Context, q Querier) error {
	rows, err := q.Query(ctx, `
		SELECT s.id, s.station_code, s.mandators_id, m.number, m.description
		FROM stations s
		LEFT JOIN mandators m ON m.id = s.mandators_id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stationID   int
			stationCode string
			mandatorID  *int
			mandNumber  *string
			mandDesc    *string
		)
		if err := rows.Scan(&stationID, &stationCode, &mandatorID, &mandNumber, &mandDesc); err != nil {
			return err
		}
		c.stationByCode[normalize.Key(stationCode)] = stationID
		if mandatorID != nil {
			c.mandatorByStation[stationID] = Mandator{ID: *mandatorID, Number: mandNumber, Description: mandDesc}
		}
	}
	return rows.Err()
}

func (c *Catalog) loadTerminals(ctx context.Context, q Querier) error {
	rows, err := q.Query(ctx, `
		SELECT id, stations_id, code, number, terminal_number
		FROM terminals`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var t Terminal
		var code, number, altNumbr *string
		if err := rows.Scan(&t.ID, &t.StationID, &code, &number, &altNumbr); err != nil {
			return err
		}
		if code != nil {
			t.Code = *code
		}
		if number != nil {
			t.Number = *number
		}
		if altNumbr != nil {
			t.AltNumber = *altNumbr
		}
		c.terminalsByStation[t.StationID] = append(c.terminalsByStation[t.StationID], t)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Deterministic fallback: the lowest terminal id wins.
	for _, terms := range c.terminalsByStation {
		sort.Slice(terms, func(i, j int) bool { return terms[i].ID < terms[j].ID })
	}
	return nil
}

func (c *Catalog) loadTanks(ctx context.Context, q Querier) error {
	rows, err := q.Query(ctx, `
		SELECT id, stations_id, articles_id, number
		FROM tanks`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, stationID, articleID, number int
		if err := rows.Scan(&id, &stationID, &articleID, &number); err != nil {
			return err
		}
		c.tankByStatArticle[tankKey{stationID, articleID}] = Tank{ID: id, Number: number}
	}
	return rows.Err()
}

func (c *Catalog) loadCustomers(ctx context.Context, q Querier) error {
	rows, err := q.Query(ctx, `
		SELECT id, number, company, first_name, last_name
		FROM customers`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var number string
		var company, first, last *string
		if err := rows.Scan(&id, &number, &company, &first, &last); err != nil {
			return err
		}
		c.customerByNumber[normalize.Key(number)] = Customer{
			ID:          id,
			DisplayName: DisplayName(company, first, last),
		}
	}
	return rows.Err()
}

func (c *Catalog) loadContracts(ctx context.Context, q Querier) error {
	rows, err := q.Query(ctx, `SELECT id, number FROM contracts`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var number string
		if err := rows.Scan(&id, &number); err != nil {
			return err
		}
		c.contractByNumber[normalize.Key(number)] = id
	}
	return rows.Err()
}

func (c *Catalog) loadVehicles(ctx context.Context, q Querier) error {
	rows, err := q.Query(ctx, `SELECT id, license_plate FROM vehicles`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var plate *string
		if err := rows.Scan(&id, &plate); err != nil {
			return err
		}
		if plate == nil {
			continue
		}
		key := normalize.Plate(*plate)
		if key == "" {
			continue
		}
		c.vehicleByPlate[key] = id
	}
	return rows.Err()
}

func (c *Catalog) loadCards(ctx context.Context, q Querier) error {
	rows, err := q.Query(ctx, `SELECT id, number FROM cards`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var number *string
		if err := rows.Scan(&id, &number); err != nil {
			return err
		}
		if number == nil {
			continue
		}
		key := normalize.CardNumber(*number)
		if key == "" {
			continue
		}
		c.cardByNumber[key] = id
	}
	return rows.Err()
}

// Station resolves a station code (case-insensitive).
func (c *Catalog) Station(code string) (int, bool) {
	id, ok := c.stationByCode[normalize.Key(code)]
	return id, ok
}

// Terminals returns the station's terminals ordered by id.
func (c *Catalog) Terminals(stationID int) []Terminal {
	return c.terminalsByStation[stationID]
}

// Tank resolves the tank fed by an article at a station.
func (c *Catalog) Tank(stationID, articleID int) (Tank, bool) {
	t, ok := c.tankByStatArticle[tankKey{stationID, articleID}]
	return t, ok
}

// Mandator returns the billing entity for a station.
func (c *Catalog) Mandator(stationID int) (Mandator, bool) {
	m, ok := c.mandatorByStation[stationID]
	return m, ok
}

// Customer resolves a customer number (case-insensitive).
func (c *Catalog) Customer(number string) (Customer, bool) {
	cust, ok := c.customerByNumber[normalize.Key(number)]
	return cust, ok
}

// Contract resolves a contract number (case-insensitive).
func (c *Catalog) Contract(number string) (int, bool) {
	id, ok := c.contractByNumber[normalize.Key(number)]
	return id, ok
}

// Vehicle resolves a raw license plate through plate normalization.
func (c *Catalog) Vehicle(rawPlate string) (int, bool) {
	key := normalize.Plate(rawPlate)
	if key == "" {
		return 0, false
	}
	id, ok := c.vehicleByPlate[key]
	return id, ok
}

// Card resolves a raw card number through card normalization.
func (c *Catalog) Card(rawNumber string) (int, bool) {
	key := normalize.CardNumber(rawNumber)
	if key == "" {
		return 0, false
	}
	id, ok := c.cardByNumber[key]
	return id, ok
}

// DisplayName derives the customer-facing name: the company when set,
// otherwise "first last", otherwise nil.
func DisplayName(company, first, last *string) *string {
	if company != nil && *company != "" {
		return company
	}
	var name string
	if first != nil {
		name = *first
	}
	if last != nil {
		if name != "" && *last != "" {
			name += " "
		}
		name += *last
	}
	if name == "" {
		return nil
	}
	return &name
}
