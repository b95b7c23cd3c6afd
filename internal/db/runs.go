package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/exoquest/internal/inference"
)

// RunRecord is one completed prediction run.
type RunRecord struct {
	RunID       string         `json:"run_id"`
	Catalog     string         `json:"catalog"`
	Demo        bool           `json:"demo"`
	Total       int            `json:"total"`
	Counts      map[string]int `json:"counts"`
	Synthesized []string       `json:"synthesized,omitempty"`
	DurationMs  float64        `json:"duration_ms"`
	StartedAt   time.Time      `json:"started_at"`
}

// RecordRun stores r. A run id can only be recorded once.
func (db *DB) RecordRun(r RunRecord) error {
	if r.RunID == "" {
		return fmt.Errorf("record run: empty run id")
	}
	_, err := db.Exec(
		`INSERT INTO prediction_runs (
			run_id, catalog, demo, total, confirmed, candidate, false_positive,
			synthesized, duration_ms, started_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Catalog, r.Demo, r.Total,
		r.Counts[inference.Confirmed], r.Counts[inference.Candidate], r.Counts[inference.FalsePositive],
		strings.Join(r.Synthesized, ","), r.DurationMs, r.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. An empty catalog
// matches every catalog.
func (db *DB) RecentRuns(catalog string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT run_id, catalog, demo, total, confirmed, candidate, false_positive,
			synthesized, duration_ms, started_unix_ns
		FROM prediction_runs
		WHERE ? = '' OR catalog = ?
		ORDER BY started_unix_ns DESC, run_id
		LIMIT ?`,
		catalog, catalog, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			r                                   RunRecord
			confirmed, candidate, falsePositive int
			synthesized                         string
			startedNs                           int64
		)
		if err := rows.Scan(
			&r.RunID, &r.Catalog, &r.Demo, &r.Total,
			&confirmed, &candidate, &falsePositive,
			&synthesized, &r.DurationMs, &startedNs,
		); err != nil {
			return nil, err
		}
		r.Counts = map[string]int{
			inference.Confirmed:     confirmed,
			inference.Candidate:     candidate,
			inference.FalsePositive: falsePositive,
		}
		if synthesized != "" {
			r.Synthesized = strings.Split(synthesized, ",")
		}
		r.StartedAt = time.Unix(0, startedNs).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// LabelTotals sums predictions per label over every recorded run.
func (db *DB) LabelTotals() (map[string]int, error) {
	var confirmed, candidate, falsePositive sql.NullInt64
	err := db.QueryRow(
		`SELECT SUM(confirmed), SUM(candidate), SUM(false_positive) FROM prediction_runs`,
	).Scan(&confirmed, &candidate, &falsePositive)
	if err != nil {
		return nil, err
	}
	return map[string]int{
		inference.Confirmed:     int(confirmed.Int64),
		inference.Candidate:     int(candidate.Int64),
		inference.FalsePositive: int(falsePositive.Int64),
	}, nil
}
