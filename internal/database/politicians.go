package database

import "database/sql"

// InsertPolitician inserts a roster entry. Returns the ID on success,
// 0 if the (name, country, page_title) combination already exists.
func (db *DB) InsertPolitician(name, country, pageTitle, source string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO politicians (name, country, page_title, source)
		VALUES (?, ?, ?, ?)`,
		name, country, pageTitle, source,
	)
	if err != nil {
		// Duplicate (name, country, page_title) constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetPoliticians returns all roster entries ordered by country then name.
func (db *DB) GetPoliticians() ([]Politician, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, country, page_title, source, loaded_at
		FROM politicians ORDER BY country, name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var politicians []Politician
	for rows.Next() {
		var p Politician
		if err := rows.Scan(&p.ID, &p.Name, &p.Country, &p.PageTitle, &p.Source, &p.LoadedAt); err != nil {
			return nil, err
		}
		politicians = append(politicians, p)
	}
	return politicians, rows.Err()
}

// GetRosterCountries returns the distinct countries named in the roster.
func (db *DB) GetRosterCountries() ([]string, error) {
	rows, err := db.conn.Query("SELECT DISTINCT country FROM politicians ORDER BY country")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var countries []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

// GetTitlesNeedingInfo returns distinct roster titles with no pages row yet.
// Ordered by title so fetch batches are deterministic across runs.
func (db *DB) GetTitlesNeedingInfo() ([]string, error) {
	rows, err := db.conn.Query(
		`SELECT DISTINCT p.page_title
		FROM politicians p LEFT JOIN pages pg ON p.page_title = pg.page_title
		WHERE pg.page_title IS NULL
		ORDER BY p.page_title`,
	)
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

// GetArticleRecords returns scored articles joined back to their roster
// country. One row per distinct (country, page_title); missing pages and
// unscored articles are excluded.
func (db *DB) GetArticleRecords() ([]ArticleRecord, error) {
	rows, err := db.conn.Query(
		`SELECT DISTINCT p.country, p.page_title, q.rev_id, q.prediction
		FROM politicians p
		JOIN pages pg ON p.page_title = pg.page_title
		JOIN quality q ON p.page_title = q.page_title
		WHERE pg.missing = 0
		ORDER BY p.country, p.page_title`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ArticleRecord
	for rows.Next() {
		var r ArticleRecord
		if err := rows.Scan(&r.Country, &r.PageTitle, &r.RevID, &r.Prediction); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// scanPages reads Page rows from a result set.
func scanPages(rows *sql.Rows) ([]Page, error) {
	var pages []Page
	for rows.Next() {
		var p Page
		var missing int
		if err := rows.Scan(&p.PageTitle, &p.PageID, &p.RevID, &missing, &p.FetchedAt); err != nil {
			return nil, err
		}
		p.Missing = missing != 0
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
