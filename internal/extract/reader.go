package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/encoding/charmap"
)

// Delimiter used by the upstream extract files.
const Delimiter = ';'

// ReadFile reads an extract file, dispatching on the file extension.
// CSV is the primary format; .xlsx and .xls show up when an operator
// re-exports a feed by hand.
func ReadFile(path string) ([]Row, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		return ReadXLSX(f)
	case ".xls":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return ReadXLS(data)
	default:
		return nil, fmt.Errorf("unsupported extract format %q", filepath.Ext(path))
	}
}

// ReadCSV parses a semicolon-delimited extract stream into rows.
func ReadCSV(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading extract: %w", err)
	}

	data, err = normalizeBytes(data)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = Delimiter
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	var rows []Row
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, fmt.Errorf("parsing extract csv: %w", err)
	}
	return rows, nil
}

// normalizeBytes strips a UTF-8 BOM and transcodes Latin-1 payloads.
// Older terminals still emit ISO 8859-1.
func normalizeBytes(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decoding latin-1 extract: %w", err)
	}
	return decoded, nil
}
