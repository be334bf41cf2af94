package database

import (
	"database/sql"
	"fmt"
)

// UpsertPage inserts or replaces page metadata for a title.
func (db *DB) UpsertPage(pageTitle string, pageID, revID int64, missing bool) error {
	m := 0
	if missing {
		m = 1
	}
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO pages (page_title, page_id, rev_id, missing)
		VALUES (?, ?, ?, ?)`,
		pageTitle, pageID, revID, m,
	)
	return err
}

// GetPage returns page metadata for a title, nil if not fetched yet.
func (db *DB) GetPage(pageTitle string) (*Page, error) {
	row := db.conn.QueryRow(
		`SELECT page_title, page_id, rev_id, missing, fetched_at
		FROM pages WHERE page_title = ?`, pageTitle,
	)

	var p Page
	var missing int
	if err := row.Scan(&p.PageTitle, &p.PageID, &p.RevID, &missing, &p.FetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.Missing = missing != 0
	return &p, nil
}

// GetPagesNeedingScore returns pages with a revision but no quality row.
// Ordered by title so score batches are deterministic across runs.
func (db *DB) GetPagesNeedingScore() ([]Page, error) {
	rows, err := db.conn.Query(
		`SELECT pg.page_title, pg.page_id, pg.rev_id, pg.missing, pg.fetched_at
		FROM pages pg LEFT JOIN quality q ON pg.page_title = q.page_title
		WHERE q.page_title IS NULL AND pg.missing = 0 AND pg.rev_id > 0
		ORDER BY pg.page_title`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPages(rows)
}

// GetPages returns stored pages that exist on the wiki, ordered by title.
// A limit of 0 or less returns all of them.
func (db *DB) GetPages(limit int) ([]Page, error) {
	query := `SELECT page_title, page_id, rev_id, missing, fetched_at
		FROM pages WHERE missing = 0 AND rev_id > 0
		ORDER BY page_title`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPages(rows)
}

// InvalidatePage records a newer revision for a title and drops its stale
// quality row in the same transaction, so the next quality run rescores it.
func (db *DB) InvalidatePage(pageTitle string, newRevID int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		`UPDATE pages SET rev_id = ?, fetched_at = datetime('now') WHERE page_title = ?`,
		newRevID, pageTitle,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("updating revision for %q: %w", pageTitle, err)
	}
	if _, err := tx.Exec("DELETE FROM quality WHERE page_title = ?", pageTitle); err != nil {
		tx.Rollback()
		return fmt.Errorf("dropping stale score for %q: %w", pageTitle, err)
	}

	return tx.Commit()
}
