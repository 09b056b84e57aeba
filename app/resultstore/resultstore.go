/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package resultstore persists analysis runs and their per-day conversion
// summaries in an embedded sqlite database.
package resultstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// ErrNoRuns is returned when a store has no persisted analysis run yet.
var ErrNoRuns = errors.New("no analysis runs recorded")

// Run is one completed analysis over a store's available days.
type Run struct {
	ID         string    `json:"id"`
	Store      string    `json:"store"`
	CreatedUTC time.Time `json:"created_utc"`
}

// DailySummary is the persisted conversion outcome for one (store, day).
type DailySummary struct {
	RunID string `json:"run_id"`
	Store string `json:"store"`
	Day   string `json:"day"`

	TotalTraffic   int     `json:"total_traffic"`
	VisitCount     int     `json:"visit_count"`
	PassByCount    int     `json:"pass_by_count"`
	ConversionRate float64 `json:"conversion_rate"`
	AvgDwellVisit  float64 `json:"avg_dwell_visit"`
	AvgDwellPassBy float64 `json:"avg_dwell_pass_by"`

	PeakTrafficHour    int `json:"peak_traffic_hour"`
	PeakVisitHour      int `json:"peak_visit_hour"`
	PeakConversionHour int `json:"peak_conversion_hour"`
}

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open results database %s", path)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id            TEXT PRIMARY KEY,
			store         TEXT NOT NULL,
			created_utc   TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS daily_summaries (
			run_id                TEXT NOT NULL,
			store                 TEXT NOT NULL,
			day                   TEXT NOT NULL,
			total_traffic         BIGINT,
			visit_count           BIGINT,
			pass_by_count         BIGINT,
			conversion_rate       DOUBLE,
			avg_dwell_visit       DOUBLE,
			avg_dwell_pass_by     DOUBLE,
			peak_traffic_hour     BIGINT,
			peak_visit_hour       BIGINT,
			peak_conversion_hour  BIGINT,
			PRIMARY KEY (run_id, day),
			FOREIGN KEY (run_id) REFERENCES analysis_runs(id)
		);
		CREATE INDEX IF NOT EXISTS idx_runs_store ON analysis_runs(store, created_utc);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "unable to create results schema")
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (store *Store) Close() error {
	return store.db.Close()
}

// SaveRun records a run and its daily summaries in one transaction.
func (store *Store) SaveRun(ctx context.Context, run Run, summaries []DailySummary) error {
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, store, created_utc) VALUES (?, ?, ?)`,
		run.ID, run.Store, run.CreatedUTC.UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "unable to insert run %s", run.ID)
	}

	for _, summary := range summaries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO daily_summaries (
				run_id, store, day,
				total_traffic, visit_count, pass_by_count,
				conversion_rate, avg_dwell_visit, avg_dwell_pass_by,
				peak_traffic_hour, peak_visit_hour, peak_conversion_hour
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, summary.Store, summary.Day,
			summary.TotalTraffic, summary.VisitCount, summary.PassByCount,
			summary.ConversionRate, summary.AvgDwellVisit, summary.AvgDwellPassBy,
			summary.PeakTrafficHour, summary.PeakVisitHour, summary.PeakConversionHour,
		)
		if err != nil {
			return errors.Wrapf(err, "unable to insert summary for %s %s", summary.Store, summary.Day)
		}
	}

	return errors.Wrap(tx.Commit(), "unable to commit run")
}

// LatestRun returns the most recent run for a store.
func (store *Store) LatestRun(ctx context.Context, name string) (Run, error) {
	row := store.db.QueryRowContext(ctx, `
		SELECT id, store, created_utc FROM analysis_runs
		WHERE store = ?
		ORDER BY created_utc DESC, id DESC
		LIMIT 1`, name)

	var run Run
	if err := row.Scan(&run.ID, &run.Store, &run.CreatedUTC); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, errors.Wrap(ErrNoRuns, name)
		}
		return Run{}, errors.Wrapf(err, "unable to query latest run for %s", name)
	}
	return run, nil
}

// DailySummaries returns the latest run's summaries for a store, ordered by
// day.
func (store *Store) DailySummaries(ctx context.Context, name string) ([]DailySummary, error) {
	run, err := store.LatestRun(ctx, name)
	if err != nil {
		return nil, err
	}

	rows, err := store.db.QueryContext(ctx, `
		SELECT run_id, store, day,
			total_traffic, visit_count, pass_by_count,
			conversion_rate, avg_dwell_visit, avg_dwell_pass_by,
			peak_traffic_hour, peak_visit_hour, peak_conversion_hour
		FROM daily_summaries
		WHERE run_id = ?
		ORDER BY day`, run.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to query summaries for %s", name)
	}
	defer rows.Close()

	var summaries []DailySummary
	for rows.Next() {
		var summary DailySummary
		err = rows.Scan(
			&summary.RunID, &summary.Store, &summary.Day,
			&summary.TotalTraffic, &summary.VisitCount, &summary.PassByCount,
			&summary.ConversionRate, &summary.AvgDwellVisit, &summary.AvgDwellPassBy,
			&summary.PeakTrafficHour, &summary.PeakVisitHour, &summary.PeakConversionHour,
		)
		if err != nil {
			return nil, errors.Wrap(err, "unable to scan summary row")
		}
		summaries = append(summaries, summary)
	}
	return summaries, errors.Wrap(rows.Err(), "unable to read summary rows")
}
