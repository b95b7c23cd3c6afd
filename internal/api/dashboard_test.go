package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/testutil"
)

func TestDashboardStats(t *testing.T) {
	f := newFixture(t, false, Options{})
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got DashboardStats
	testutil.DecodeJSON(t, rec, &got)
	assert.Equal(t, ExampleStats(), got)
	assert.Equal(t, 96.9, got.TestingAccuracy[catalog.TESS][5])
	require.Len(t, got.ClassificationDistribution, 3)
	assert.Equal(t, 8956, got.ClassificationDistribution[1].Value)
}

func TestDashboardChart(t *testing.T) {
	f := newFixture(t, false, Options{})
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/api/dashboard/chart", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Model accuracy")
	assert.Contains(t, body, "Feature importance")
}

func TestAccuracyPlot(t *testing.T) {
	f := newFixture(t, false, Options{})
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/api/dashboard/accuracy.png", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", rec.Body.String()[:4])

	rec = f.serve(httptest.NewRequest(http.MethodPost, "/api/dashboard/accuracy.png", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}
