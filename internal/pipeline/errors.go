package pipeline

import (
	"fmt"
	"strings"

	"github.com/banshee-data/exoquest/internal/catalog"
)

// MissingRequiredColumnError reports required columns absent from a batch.
type MissingRequiredColumnError struct {
	Catalog catalog.ID
	Columns []string
}

func (e *MissingRequiredColumnError) Error() string {
	if len(e.Columns) == 1 {
		return fmt.Sprintf("%s batch is missing required column %q", e.Catalog, e.Columns[0])
	}
	return fmt.Sprintf("%s batch is missing %d required columns: %s", e.Catalog, len(e.Columns), strings.Join(e.Columns, ", "))
}

// SchemaMismatchError reports an assembled feature list that differs from
// the one the scaler was fit with.
type SchemaMismatchError struct {
	Catalog catalog.ID
	// Index is the first differing position, or -1 when only the lengths
	// differ.
	Index    int
	Expected string
	Got      string
	Want     int
	Have     int
}

func (e *SchemaMismatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s feature mismatch: scaler expects %d features, pipeline produced %d", e.Catalog, e.Want, e.Have)
	}
	return fmt.Sprintf("%s feature mismatch at position %d: scaler expects %q, pipeline produced %q", e.Catalog, e.Index, e.Expected, e.Got)
}

// InvalidValueError reports a cell that cannot be transformed.
type InvalidValueError struct {
	Catalog catalog.ID
	Column  string
	// Row is the 1-based row position.
	Row    int
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s row %d column %q: value %q %s", e.Catalog, e.Row, e.Column, e.Value, e.Reason)
}
