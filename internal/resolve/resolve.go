// Package resolve turns the raw business keys of an extract row into
// reference ids. Station and terminal must resolve or the row is
// rejected; every other entity degrades to a warning and a nil id so a
// gappy reference schema never blocks the money columns.
package resolve

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rboulanger/fuelsync/internal/catalog"
	"github.com/rboulanger/fuelsync/internal/extract"
)

// Reference is the catalog surface the resolver reads.
type Reference interface {
	Station(code string) (int, bool)
	Terminals(stationID int) []catalog.Terminal
	Tank(stationID, articleID int) (catalog.Tank, bool)
	Mandator(stationID int) (catalog.Mandator, bool)
	Customer(number string) (catalog.Customer, bool)
	Contract(number string) (int, bool)
	Vehicle(rawPlate string) (int, bool)
	Card(rawNumber string) (int, bool)
}

// Keys holds the resolved ids for one row. StationID and TerminalID are
// always set when Resolve returns nil error; ArticleID is 0 when the
// extract carried no article number (the importer may recover it from
// the article map). Everything else is optional.
type Keys struct {
	StationID  int
	TerminalID int
	ArticleID  int

	TankID     *int
	TankNumber *int

	MandatorID          *int
	MandatorNumber      *string
	MandatorDescription *string

	CustomerID   *int
	CustomerName *string

	ContractID *int
	VehicleID  *int
	CardOneID  *int
	CardTwoID  *int
}

type Resolver struct {
	ref    Reference
	logger *slog.Logger
}

func New(ref Reference, logger *slog.Logger) *Resolver {
	return &Resolver{ref: ref, logger: logger}
}

// Resolve maps one extract row onto reference ids. rowNum is the
// 1-based data row number, used in every log line and error.
func (r *Resolver) Resolve(row extract.Row, rowNum int) (Keys, error) {
	var keys Keys

	stationID, ok := r.ref.Station(row.StationCode)
	if !ok {
		return Keys{}, fmt.Errorf("row %d: unknown station code %q", rowNum, row.StationCode)
	}
	keys.StationID = stationID

	terminalID, err := r.resolveTerminal(stationID, row, rowNum)
	if err != nil {
		return Keys{}, err
	}
	keys.TerminalID = terminalID

	articleID, err := parseArticleNumber(row.ArticleNumber, rowNum)
	if err != nil {
		return Keys{}, err
	}
	keys.ArticleID = articleID

	if articleID > 0 {
		if tank, ok := r.ref.Tank(stationID, articleID); ok {
			keys.TankID = &tank.ID
			keys.TankNumber = &tank.Number
		} else {
			r.logger.Warn("no tank for station and article",
				"stationCode", row.StationCode, "articleId", articleID, "row", rowNum)
		}
	} else {
		r.logger.Warn("no article number, skipping tank lookup",
			"stationCode", row.StationCode, "row", rowNum)
	}

	if m, ok := r.ref.Mandator(stationID); ok {
		keys.MandatorID = &m.ID
		keys.MandatorNumber = m.Number
		keys.MandatorDescription = m.Description
	} else {
		r.logger.Warn("no mandator for station",
			"stationCode", row.StationCode, "row", rowNum)
	}

	if row.CustomerNumber != "" {
		if cust, ok := r.ref.Customer(row.CustomerNumber); ok {
			keys.CustomerID = &cust.ID
			keys.CustomerName = cust.DisplayName
		} else {
			r.logger.Warn("no customer for number",
				"customerNumber", row.CustomerNumber, "row", rowNum)
		}
	}

	if row.ContractNumber != "" {
		if id, ok := r.ref.Contract(row.ContractNumber); ok {
			keys.ContractID = &id
		} else {
			r.logger.Warn("no contract for number",
				"contractNumber", row.ContractNumber, "row", rowNum)
		}
	}

	if row.VehicleLicensePlate != "" {
		if id, ok := r.ref.Vehicle(row.VehicleLicensePlate); ok {
			keys.VehicleID = &id
		} else {
			r.logger.Warn("no vehicle for plate",
				"licensePlate", row.VehicleLicensePlate, "row", rowNum)
		}
	}

	if row.CardOneNumber != "" {
		if id, ok := r.ref.Card(row.CardOneNumber); ok {
			keys.CardOneID = &id
		} else {
			r.logger.Warn("no card for number",
				"cardNumber", row.CardOneNumber, "row", rowNum)
		}
	}
	if row.CardTwoNumber != "" {
		if id, ok := r.ref.Card(row.CardTwoNumber); ok {
			keys.CardTwoID = &id
		} else {
			r.logger.Warn("no card for number",
				"cardNumber", row.CardTwoNumber, "row", rowNum)
		}
	}

	return keys, nil
}

// resolveTerminal picks the station terminal the row points at. The
// extract may identify it by code, by number, or by the alternate
// number; priority matches are exact and case-insensitive. When nothing
// matches the lowest-id terminal stands in, with a warning.
func (r *Resolver) resolveTerminal(stationID int, row extract.Row, rowNum int) (int, error) {
	terminals := r.ref.Terminals(stationID)
	if len(terminals) == 0 {
		return 0, fmt.Errorf("row %d: station %q has no terminals", rowNum, row.StationCode)
	}

	if row.TerminalCode != "" {
		for _, t := range terminals {
			if strings.EqualFold(t.Code, row.TerminalCode) {
				return t.ID, nil
			}
		}
	}
	if row.TerminalNumber != "" {
		for _, t := range terminals {
			if strings.EqualFold(t.Number, row.TerminalNumber) {
				return t.ID, nil
			}
		}
		for _, t := range terminals {
			if strings.EqualFold(t.AltNumber, row.TerminalNumber) {
				return t.ID, nil
			}
		}
	}

	// Terminals are sorted by id, so index 0 is the deterministic pick.
	fallback := terminals[0]
	r.logger.Warn("no terminal matches, falling back to lowest id",
		"stationCode", row.StationCode,
		"terminalCode", row.TerminalCode,
		"terminalNumber", row.TerminalNumber,
		"fallbackTerminalId", fallback.ID,
		"row", rowNum)
	return fallback.ID, nil
}

func parseArticleNumber(s string, rowNum int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NULL") {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("row %d: invalid article number %q", rowNum, s)
	}
	return n, nil
}
