package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/dispatch"
	"github.com/banshee-data/exoquest/internal/pipeline"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp["error"]
}

func TestWriteJSONError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "test error")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %s, want application/json", ct)
	}
	if got := decodeError(t, rec); got != "test error" {
		t.Errorf("error = %s, want 'test error'", got)
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"message": "hello"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["message"] != "hello" {
		t.Errorf("message = %s, want 'hello'", resp["message"])
	}
}

func TestShortcuts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(http.ResponseWriter)
		want  int
	}{
		{"ok", func(w http.ResponseWriter) { WriteJSONOK(w, map[string]int{"n": 1}) }, http.StatusOK},
		{"method", MethodNotAllowed, http.StatusMethodNotAllowed},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "x") }, http.StatusBadRequest},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "x") }, http.StatusNotFound},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "x") }, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		tt.write(rec)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown catalog", &catalog.UnknownCatalogError{Name: "mars"}, http.StatusBadRequest},
		{"wrapped unknown", fmt.Errorf("run: %w", &catalog.UnknownCatalogError{Name: "mars"}), http.StatusBadRequest},
		{"missing column", &pipeline.MissingRequiredColumnError{Catalog: catalog.TESS, Columns: []string{"pl_rade"}}, http.StatusUnprocessableEntity},
		{"mismatch", &pipeline.SchemaMismatchError{Catalog: catalog.Kepler, Index: -1}, http.StatusUnprocessableEntity},
		{"invalid value", &pipeline.InvalidValueError{Catalog: catalog.TESS, Column: "pl_rade", Row: 2}, http.StatusUnprocessableEntity},
		{"unavailable", &dispatch.UnavailableError{Catalog: catalog.K2}, http.StatusServiceUnavailable},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("%s: StatusFor() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(rec, &pipeline.InvalidValueError{Catalog: catalog.TESS, Column: "pl_eqt", Row: 3, Value: "-2", Reason: "is outside the log1p domain (> -1)"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if got := decodeError(t, rec); got != `tess row 3 column "pl_eqt": value "-2" is outside the log1p domain (> -1)` {
		t.Errorf("error = %q", got)
	}

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("secret path /var/lib/x"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := decodeError(t, rec); got == "secret path /var/lib/x" {
		t.Error("internal error details leaked")
	}
}
