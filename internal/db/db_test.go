package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/exoquest/internal/inference"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}
}

func TestRecordRun_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := RunRecord{
		RunID:       "run-1",
		Catalog:     "demo",
		Demo:        true,
		Total:       4,
		Counts:      map[string]int{inference.Confirmed: 1, inference.Candidate: 2, inference.FalsePositive: 1},
		Synthesized: []string{"koi_depth", "koi_prad"},
		DurationMs:  12.5,
		StartedAt:   started,
	}
	require.NoError(t, db.RecordRun(in))

	runs, err := db.RecentRuns("", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, in, runs[0])
}

func TestRecordRun_DuplicateID(t *testing.T) {
	db := setupTestDB(t)
	r := RunRecord{RunID: "dup", Catalog: "tess", Total: 1, StartedAt: time.Now()}
	require.NoError(t, db.RecordRun(r))
	assert.Error(t, db.RecordRun(r))
	assert.Error(t, db.RecordRun(RunRecord{Catalog: "tess"}))
}

func TestRecentRuns_OrderFilterLimit(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, cat := range []string{"kepler", "tess", "kepler", "k2"} {
		require.NoError(t, db.RecordRun(RunRecord{
			RunID:     string(rune('a' + i)),
			Catalog:   cat,
			Total:     i,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := db.RecentRuns("", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "d", runs[0].RunID)
	assert.Equal(t, "c", runs[1].RunID)

	runs, err = db.RecentRuns("kepler", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "a", runs[1].RunID)
	assert.Nil(t, runs[0].Synthesized)
}

func TestLabelTotals(t *testing.T) {
	db := setupTestDB(t)

	totals, err := db.LabelTotals()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{inference.Confirmed: 0, inference.Candidate: 0, inference.FalsePositive: 0}, totals)

	for i, c := range []map[string]int{
		{inference.Confirmed: 2, inference.Candidate: 1},
		{inference.Candidate: 3, inference.FalsePositive: 4},
	} {
		require.NoError(t, db.RecordRun(RunRecord{RunID: string(rune('x' + i)), Catalog: "k2", Total: 7, Counts: c, StartedAt: time.Now()}))
	}
	totals, err = db.LabelTotals()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{inference.Confirmed: 2, inference.Candidate: 4, inference.FalsePositive: 4}, totals)
}
