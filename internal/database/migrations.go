package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS politicians (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    country TEXT NOT NULL,
    page_title TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT 'roster',
    loaded_at TEXT DEFAULT (datetime('now')),
    UNIQUE(name, country, page_title)
);

CREATE TABLE IF NOT EXISTS pages (
    page_title TEXT PRIMARY KEY,
    page_id INTEGER DEFAULT 0,
    rev_id INTEGER DEFAULT 0,
    missing INTEGER DEFAULT 0,
    fetched_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS quality (
    page_title TEXT PRIMARY KEY,
    rev_id INTEGER NOT NULL,
    prediction TEXT NOT NULL,
    scored_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fetch_failures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    stage TEXT NOT NULL,
    page_title TEXT NOT NULL,
    detail TEXT,
    failed_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS population (
    geography TEXT PRIMARY KEY,
    region TEXT,
    population INTEGER NOT NULL,
    is_region INTEGER DEFAULT 0,
    loaded_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    body_markdown TEXT NOT NULL,
    country_count INTEGER DEFAULT 0,
    article_count INTEGER DEFAULT 0,
    unmatched_count INTEGER DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_politicians_country ON politicians(country);
CREATE INDEX IF NOT EXISTS idx_politicians_title ON politicians(page_title);
CREATE INDEX IF NOT EXISTS idx_failures_stage ON fetch_failures(stage);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
