package database

import "database/sql"

// InsertReport stores a generated coverage report. Reports accumulate as
// history; each run adds a new row.
func (db *DB) InsertReport(bodyMarkdown string, countryCount, articleCount, unmatchedCount int) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO reports (body_markdown, country_count, article_count, unmatched_count)
		VALUES (?, ?, ?, ?)`,
		bodyMarkdown, countryCount, articleCount, unmatchedCount,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetReport returns a report by ID, nil if it does not exist.
func (db *DB) GetReport(id int64) (*Report, error) {
	row := db.conn.QueryRow(
		`SELECT id, body_markdown, country_count, article_count, unmatched_count, generated_at
		FROM reports WHERE id = ?`, id,
	)
	return scanReport(row)
}

// GetLatestReport returns the most recent report, nil if none exist.
func (db *DB) GetLatestReport() (*Report, error) {
	row := db.conn.QueryRow(
		`SELECT id, body_markdown, country_count, article_count, unmatched_count, generated_at
		FROM reports ORDER BY id DESC LIMIT 1`,
	)
	return scanReport(row)
}

// GetAllReports returns all reports, newest first.
func (db *DB) GetAllReports() ([]Report, error) {
	rows, err := db.conn.Query(
		`SELECT id, body_markdown, country_count, article_count, unmatched_count, generated_at
		FROM reports ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.BodyMarkdown, &r.CountryCount,
			&r.ArticleCount, &r.UnmatchedCount, &r.GeneratedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func scanReport(row *sql.Row) (*Report, error) {
	var r Report
	if err := row.Scan(&r.ID, &r.BodyMarkdown, &r.CountryCount,
		&r.ArticleCount, &r.UnmatchedCount, &r.GeneratedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM politicians", &s.Politicians},
		{"SELECT COUNT(DISTINCT country) FROM politicians", &s.Countries},
		{"SELECT COUNT(*) FROM pages WHERE missing = 0", &s.PagesFetched},
		{"SELECT COUNT(*) FROM pages WHERE missing = 1", &s.PagesMissing},
		{"SELECT COUNT(*) FROM quality", &s.Scored},
		{`SELECT COUNT(*) FROM pages pg LEFT JOIN quality q ON pg.page_title = q.page_title
			WHERE q.page_title IS NULL AND pg.missing = 0 AND pg.rev_id > 0`, &s.PendingScores},
		{"SELECT COUNT(*) FROM fetch_failures", &s.Failures},
		{"SELECT COUNT(*) FROM population WHERE is_region = 0", &s.PopulationRows},
		{"SELECT COUNT(*) FROM population WHERE is_region = 1", &s.Regions},
		{"SELECT COUNT(*) FROM reports", &s.Reports},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}
