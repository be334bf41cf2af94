package database

import (
	"database/sql"
	"fmt"
)

// InsertQualityBatch persists one completed batch of quality scores and the
// failures encountered while scoring it, in a single transaction. The
// transaction is the checkpoint unit: once it commits, a later run sees
// every title in the batch as done and never re-fetches it.
func (db *DB) InsertQualityBatch(scores []QualityScore, failures []FetchFailure) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}

	for _, s := range scores {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO quality (page_title, rev_id, prediction)
			VALUES (?, ?, ?)`,
			s.PageTitle, s.RevID, s.Prediction,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting score for %q: %w", s.PageTitle, err)
		}
	}

	for _, f := range failures {
		if _, err := tx.Exec(
			`INSERT INTO fetch_failures (stage, page_title, detail)
			VALUES (?, ?, ?)`,
			f.Stage, f.PageTitle, f.Detail,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording failure for %q: %w", f.PageTitle, err)
		}
	}

	return tx.Commit()
}

// GetQuality returns the stored score for a title, nil if not scored yet.
func (db *DB) GetQuality(pageTitle string) (*QualityScore, error) {
	row := db.conn.QueryRow(
		`SELECT page_title, rev_id, prediction, scored_at
		FROM quality WHERE page_title = ?`, pageTitle,
	)

	var q QualityScore
	if err := row.Scan(&q.PageTitle, &q.RevID, &q.Prediction, &q.ScoredAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

// GetScoredTitles returns every title with a persisted quality row.
func (db *DB) GetScoredTitles() ([]string, error) {
	rows, err := db.conn.Query("SELECT page_title FROM quality ORDER BY page_title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// RecordFailure appends a failure outside a score batch, used by the page
// metadata and scrape stages. Failure rows are history; they never block
// a retry on a later run.
func (db *DB) RecordFailure(stage, pageTitle, detail string) error {
	_, err := db.conn.Exec(
		`INSERT INTO fetch_failures (stage, page_title, detail) VALUES (?, ?, ?)`,
		stage, pageTitle, detail,
	)
	return err
}

// GetFailures returns recorded failures, newest first. Empty stage means all.
func (db *DB) GetFailures(stage string) ([]FetchFailure, error) {
	query := `SELECT id, stage, page_title, detail, failed_at FROM fetch_failures`
	var args []any
	if stage != "" {
		query += " WHERE stage = ?"
		args = append(args, stage)
	}
	query += " ORDER BY id DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []FetchFailure
	for rows.Next() {
		var f FetchFailure
		var detail *string
		if err := rows.Scan(&f.ID, &f.Stage, &f.PageTitle, &detail, &f.FailedAt); err != nil {
			return nil, err
		}
		if detail != nil {
			f.Detail = *detail
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
