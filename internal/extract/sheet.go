package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/extrame/xls"
	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

// maxSheetRows bounds how much of a workbook is read. Extract files top
// out in the tens of thousands of rows.
const maxSheetRows = 200000

// ReadXLSX parses the first sheet of an .xlsx workbook using the same
// header-matched schema as the CSV path.
func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening xlsx workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	return rowsFromRecords(records)
}

// ReadXLS parses a legacy .xls workbook. cp1252 matches what the legacy
// export tooling writes.
func ReadXLS(data []byte) ([]Row, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "cp1252")
	if err != nil {
		return nil, fmt.Errorf("opening xls workbook: %w", err)
	}

	records := workbook.ReadAllCells(maxSheetRows)
	return rowsFromRecords(records)
}

// rowsFromRecords funnels spreadsheet cells through the same gocsv
// unmarshalling as the CSV reader so both formats share one schema.
func rowsFromRecords(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, nil
	}

	// Sheets drop trailing empty cells; pad records to header width so
	// column matching stays positional.
	width := len(records[0])
	for i, rec := range records {
		for len(rec) < width {
			rec = append(rec, "")
		}
		records[i] = rec[:width]
	}

	var rows []Row
	if err := gocsv.UnmarshalCSV(&recordReader{records: records}, &rows); err != nil {
		return nil, fmt.Errorf("parsing sheet rows: %w", err)
	}
	return rows, nil
}

type recordReader struct {
	records [][]string
	pos     int
}

func (r *recordReader) Read() ([]string, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, nil
}

func (r *recordReader) ReadAll() ([][]string, error) {
	rest := r.records[r.pos:]
	r.pos = len(r.records)
	return rest, nil
}
