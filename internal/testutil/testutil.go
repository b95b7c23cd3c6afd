// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/exoquest/internal/artifact"
	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/synth"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// DecodeJSON decodes the recorded response body into v.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// Upload describes a multipart form submission. An empty Filename omits the
// file part.
type Upload struct {
	Fields   map[string]string
	Filename string
	Content  string
}

// NewUploadRequest builds a multipart POST to path carrying u.
func NewUploadRequest(t testing.TB, path string, u Upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range u.Fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if u.Filename != "" {
		fw, err := mw.CreateFormFile("file", u.Filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte(u.Content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// SmallSynth returns build options small enough for unit tests.
func SmallSynth(seed uint64) synth.Options {
	return synth.Options{Rows: 30, Trees: 3, MaxDepth: 3, Seed: seed}
}

// SeedArtifacts writes a synthetic artifact set for each id into dst.
func SeedArtifacts(t testing.TB, dst artifact.Sink, ids ...catalog.ID) {
	t.Helper()
	for i, id := range ids {
		schema := catalog.MustSchema(id)
		set, err := synth.Build(schema, SmallSynth(uint64(i+1)))
		if err != nil {
			t.Fatalf("synth %s: %v", id, err)
		}
		if err := artifact.Save(context.Background(), dst, schema, set); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
}

// CatalogCSV renders a CSV with the identifier column of id followed by
// every required column, one row per entry of ids. Every numeric cell holds
// value and every categorical cell the empty string.
func CatalogCSV(id catalog.ID, value string, ids ...string) string {
	schema := catalog.MustSchema(id)
	header := schema.RequiredColumns()
	if schema.ID.Column != "" {
		header = append([]string{schema.ID.Column}, header...)
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(header, ","))
	sb.WriteByte('\n')
	for _, rowID := range ids {
		cells := make([]string, 0, len(header))
		if schema.ID.Column != "" {
			cells = append(cells, rowID)
		}
		for range schema.Numeric {
			cells = append(cells, value)
		}
		for range schema.Categorical {
			cells = append(cells, "")
		}
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteByte('\n')
	}
	return sb.String()
}
