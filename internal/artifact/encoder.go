package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/banshee-data/exoquest/internal/catalog"
)

// Unknown-category policies.
const (
	// HandleUnknownError rejects a batch containing a category the encoder
	// was not fit with.
	HandleUnknownError = "error"
	// HandleUnknownIgnore encodes an unseen category as an all-zero block.
	HandleUnknownIgnore = "ignore"
)

// EncodedColumn is one categorical column and its categories in encoded
// order.
type EncodedColumn struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// Encoder is a fitted one-hot encoder. Use NewEncoder or json.Unmarshal so
// the category index is built.
type Encoder struct {
	Columns       []EncodedColumn `json:"columns"`
	HandleUnknown string          `json:"handle_unknown"`

	index []map[string]int
}

// NewEncoder builds an encoder over columns.
func NewEncoder(columns []EncodedColumn, handleUnknown string) *Encoder {
	e := &Encoder{Columns: columns, HandleUnknown: handleUnknown}
	e.buildIndex()
	return e
}

// UnmarshalJSON decodes the encoder and builds its category index.
func (e *Encoder) UnmarshalJSON(data []byte) error {
	type plain Encoder
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Encoder(p)
	e.buildIndex()
	return nil
}

func (e *Encoder) buildIndex() {
	e.index = make([]map[string]int, len(e.Columns))
	for i, c := range e.Columns {
		m := make(map[string]int, len(c.Categories))
		for j, cat := range c.Categories {
			if _, dup := m[cat]; !dup {
				m[cat] = j
			}
		}
		e.index[i] = m
	}
}

// Validate checks the encoder covers exactly the categorical columns of
// schema, in order, with a known unknown-category policy. It builds the
// category index if the encoder was assembled by hand.
func (e *Encoder) Validate(schema *catalog.Schema) error {
	if len(e.index) != len(e.Columns) {
		e.buildIndex()
	}
	switch e.HandleUnknown {
	case HandleUnknownError, HandleUnknownIgnore:
	default:
		return fmt.Errorf("encoder handle_unknown %q is not %q or %q", e.HandleUnknown, HandleUnknownError, HandleUnknownIgnore)
	}
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
		if len(c.Categories) == 0 {
			return fmt.Errorf("encoder column %q has no categories", c.Name)
		}
		if len(e.index[i]) != len(c.Categories) {
			return fmt.Errorf("encoder column %q lists a category twice", c.Name)
		}
	}
	if !slices.Equal(names, schema.Categorical) {
		return fmt.Errorf("encoder columns %v do not match %s categorical columns %v", names, schema.Catalog, schema.Categorical)
	}
	return nil
}

// Width returns the total number of encoded columns.
func (e *Encoder) Width() int {
	n := 0
	for _, c := range e.Columns {
		n += len(c.Categories)
	}
	return n
}

// FeatureNames returns "<column>_<category>" for every encoded column, in
// encoder order.
func (e *Encoder) FeatureNames() []string {
	out := make([]string, 0, e.Width())
	for _, c := range e.Columns {
		for _, cat := range c.Categories {
			out = append(out, c.Name+"_"+cat)
		}
	}
	return out
}

// ErrUnknownCategory is returned by Encode when the policy is
// HandleUnknownError and the category was not seen at fit time.
var ErrUnknownCategory = errors.New("unknown category")

// Encode writes the one-hot block for column col into dst, which must have
// len(Columns[col].Categories) entries. An unseen category leaves dst zero
// under HandleUnknownIgnore.
func (e *Encoder) Encode(dst []float64, col int, category string) error {
	for i := range dst {
		dst[i] = 0
	}
	if j, ok := e.index[col][category]; ok {
		dst[j] = 1
		return nil
	}
	if e.HandleUnknown == HandleUnknownIgnore {
		return nil
	}
	return ErrUnknownCategory
}
