// Package results formats predictions for output, pairing each with the
// row's identifier and display fields read from the raw batch.
package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/banshee-data/exoquest/internal/batch"
	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/inference"
)

// MissingMarker is emitted for a display value absent from the raw batch.
const MissingMarker = "N/A"

// Value is a display value: a number or the missing marker.
type Value struct {
	Number  float64
	Missing bool
}

// Num returns a present value.
func Num(v float64) Value { return Value{Number: v} }

// Missing is the absent value.
var Missing = Value{Missing: true}

func (v Value) String() string {
	if v.Missing {
		return MissingMarker
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// MarshalJSON encodes a number, or the marker as a string.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Missing {
		return []byte(strconv.Quote(MissingMarker)), nil
	}
	return []byte(strconv.FormatFloat(v.Number, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a number or the missing marker.
func (v *Value) UnmarshalJSON(data []byte) error {
	if s, err := strconv.Unquote(string(data)); err == nil {
		if s != MissingMarker {
			return fmt.Errorf("results: unexpected display value %q", s)
		}
		*v = Missing
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("results: display value %s is not a number", data)
	}
	*v = Num(n)
	return nil
}

// Field is one named display value.
type Field struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Keys of the fixed members of an encoded PredictionResult. The probability
// key keeps the spelling the web client was built against.
const (
	KeyID             = "id"
	KeyStarID         = "star_id"
	KeyClassification = "classification"
	KeyProbability    = "Porbability Score"
)

// PredictionResult is the output for one input row. It encodes as a flat
// object: the fixed keys followed by one key per display field, in schema
// order.
type PredictionResult struct {
	// Row is the 1-based position in the uploaded batch.
	Row              int
	StarID           string
	Prediction       string
	ProbabilityScore float64
	Fields           []Field
}

func (r PredictionResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, v interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}
	if err := write(KeyID, r.Row); err != nil {
		return nil, err
	}
	if err := write(KeyStarID, r.StarID); err != nil {
		return nil, err
	}
	if err := write(KeyClassification, r.Prediction); err != nil {
		return nil, err
	}
	if err := write(KeyProbability, r.ProbabilityScore); err != nil {
		return nil, err
	}
	for _, f := range r.Fields {
		if err := write(f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the flat form written by MarshalJSON. Keys other than
// the fixed ones become display fields in the order they appear.
func (r *PredictionResult) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil {
		return err
	} else if tok != json.Delim('{') {
		return fmt.Errorf("results: prediction result is not an object")
	}
	var out PredictionResult
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		switch key {
		case KeyID:
			err = dec.Decode(&out.Row)
		case KeyStarID:
			err = dec.Decode(&out.StarID)
		case KeyClassification:
			err = dec.Decode(&out.Prediction)
		case KeyProbability:
			err = dec.Decode(&out.ProbabilityScore)
		default:
			f := Field{Name: key}
			err = dec.Decode(&f.Value)
			out.Fields = append(out.Fields, f)
		}
		if err != nil {
			return fmt.Errorf("results: %s: %w", key, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// Format builds one result per prediction, in batch order. preds must have
// one entry per batch row.
func Format(b *batch.Batch, preds []inference.Prediction, schema *catalog.Schema) ([]PredictionResult, error) {
	if len(preds) != b.Len() {
		return nil, fmt.Errorf("results: %d predictions for %d rows", len(preds), b.Len())
	}
	out := make([]PredictionResult, len(preds))
	for i, p := range preds {
		raw, ok := "", false
		if !schema.ID.Synthetic {
			raw, ok = b.Raw(i, schema.ID.Column)
		}
		fields := make([]Field, len(schema.Display))
		for j, d := range schema.Display {
			fields[j] = Field{Name: d.Label, Value: display(b, i, d)}
		}
		out[i] = PredictionResult{
			Row:              i + 1,
			StarID:           schema.FormatIdentifier(i, raw, !ok),
			Prediction:       p.Label,
			ProbabilityScore: p.Confidence(),
			Fields:           fields,
		}
	}
	return out, nil
}

func display(b *batch.Batch, row int, d catalog.DisplayField) Value {
	v, ok, err := b.Float(row, d.Column)
	if err != nil || !ok || math.IsInf(v, 0) {
		return Missing
	}
	if d.Truncate {
		t := math.Trunc(v)
		if t == 0 {
			t = 0 // drop the sign of -0
		}
		return Num(t)
	}
	return Num(inference.Round(v, d.Decimals))
}

// Tally counts results per label, with every known label present.
func Tally(rs []PredictionResult) map[string]int {
	out := make(map[string]int, len(inference.Labels))
	for _, l := range inference.Labels {
		out[l] = 0
	}
	for _, r := range rs {
		out[r.Prediction]++
	}
	return out
}
