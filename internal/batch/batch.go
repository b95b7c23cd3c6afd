// Package batch holds an uploaded table of candidate signals exactly as it
// was received. Cells are kept as raw strings so that downstream stages can
// distinguish an absent value from a zero.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrNoHeader is returned by ReadCSV when the input has no header row.
var ErrNoHeader = errors.New("batch: csv input has no header row")

// missingTokens are the cell spellings treated as an absent value. The set
// follows the NA spellings produced by the archive exports and common
// spreadsheet tools.
var missingTokens = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

// IsMissing reports whether a raw cell spells an absent value.
func IsMissing(raw string) bool {
	return missingTokens[strings.TrimSpace(raw)]
}

// Batch is an immutable table of named string columns.
type Batch struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New builds a batch from a header and rows. Rows shorter than the header are
// padded with missing cells; longer rows are rejected.
func New(columns []string, rows [][]string) (*Batch, error) {
	b := &Batch{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
		rows:    make([][]string, len(rows)),
	}
	for i, c := range columns {
		name := strings.TrimSpace(c)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := b.index[name]; dup {
			return nil, fmt.Errorf("batch: duplicate column %q", name)
		}
		b.columns[i] = name
		b.index[name] = i
	}
	for i, r := range rows {
		if len(r) > len(columns) {
			return nil, fmt.Errorf("batch: row %d has %d fields, header has %d", i+1, len(r), len(columns))
		}
		row := make([]string, len(columns))
		copy(row, r)
		b.rows[i] = row
	}
	return b, nil
}

// ReadCSV parses a CSV document with a header row. Lines starting with '#'
// are skipped, which lets archive exports with a comment preamble through
// unchanged.
func ReadCSV(r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("batch: read header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("batch: read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}
	return New(header, rows)
}

// Len returns the number of rows.
func (b *Batch) Len() int { return len(b.rows) }

// Columns returns a copy of the header.
func (b *Batch) Columns() []string {
	out := make([]string, len(b.columns))
	copy(out, b.columns)
	return out
}

// Has reports whether the batch carries column col.
func (b *Batch) Has(col string) bool {
	_, ok := b.index[col]
	return ok
}

// Raw returns the raw text of a cell. ok is false when the column is absent
// or the cell spells a missing value.
func (b *Batch) Raw(row int, col string) (string, bool) {
	j, ok := b.index[col]
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(b.rows[row][j])
	if IsMissing(v) {
		return "", false
	}
	return v, true
}

// Float parses a numeric cell. ok is false when the value is missing; err is
// non-nil when a present value is not a number.
func (b *Batch) Float(row int, col string) (v float64, ok bool, err error) {
	raw, ok := b.Raw(row, col)
	if !ok {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("batch: row %d column %q: %q is not a number", row+1, col, raw)
	}
	if math.IsNaN(v) {
		return 0, false, nil
	}
	return v, true, nil
}

// CountMissing returns the number of missing cells in col. An absent column
// counts every row.
func (b *Batch) CountMissing(col string) int {
	n := 0
	for i := range b.rows {
		if _, ok := b.Raw(i, col); !ok {
			n++
		}
	}
	return n
}
