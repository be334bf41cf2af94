package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/voglerdaniel/policap/internal/database"
)

// Result holds the results of a roster load.
type Result struct {
	Rows       int
	Loaded     int
	Duplicates int
	Skipped    int
}

// Loader reads delimited roster files into the politicians table.
type Loader struct {
	db *database.DB
}

// NewLoader creates a roster loader.
func NewLoader(db *database.DB) *Loader {
	return &Loader{db: db}
}

// LoadFile loads a roster file. Files ending in .tsv are read as
// tab-separated, everything else as comma-separated.
func (l *Loader) LoadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close()

	comma := ','
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		comma = '\t'
	}
	return l.load(f, comma)
}

// load reads roster rows, cleans each field, and inserts them. Rows with a
// missing name, country or title are skipped and counted; exact duplicates
// are filtered by the politicians unique constraint.
func (l *Loader) load(r io.Reader, comma rune) (*Result, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading roster header: %w", err)
	}

	cols, err := findColumns(header)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading roster row: %w", err)
		}
		result.Rows++

		name := fieldAt(record, cols.name)
		country := fieldAt(record, cols.country)
		title := fieldAt(record, cols.title)
		if title == "" {
			title = titleFromURL(fieldAt(record, cols.url))
		}

		if name == "" || country == "" || title == "" {
			result.Skipped++
			continue
		}

		id, err := l.db.InsertPolitician(name, country, title, "roster")
		if err != nil {
			return nil, fmt.Errorf("inserting %q: %w", name, err)
		}
		if id > 0 {
			result.Loaded++
		} else {
			result.Duplicates++
		}
	}

	log.Printf("Roster load complete: %d rows, %d loaded, %d duplicates, %d skipped",
		result.Rows, result.Loaded, result.Duplicates, result.Skipped)
	return result, nil
}

type columns struct {
	name    int
	country int
	title   int
	url     int
}

func findColumns(header []string) (columns, error) {
	cols := columns{name: -1, country: -1, title: -1, url: -1}
	for i, h := range header {
		switch strings.ToLower(cleanField(h)) {
		case "name", "politician":
			cols.name = i
		case "country":
			cols.country = i
		case "page_title", "article_title", "title":
			cols.title = i
		case "url", "link":
			cols.url = i
		}
	}
	if cols.name < 0 || cols.country < 0 {
		return cols, fmt.Errorf("roster header needs name and country columns, got %v", header)
	}
	if cols.title < 0 && cols.url < 0 {
		return cols, fmt.Errorf("roster header needs a page_title or url column, got %v", header)
	}
	return cols, nil
}

func fieldAt(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return cleanField(record[i])
}

// cleanField trims surrounding whitespace and collapses internal runs.
func cleanField(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// titleFromURL extracts an article title from a wiki URL, e.g.
// https://en.wikipedia.org/wiki/Abdul_Ghafar_Lakanwal becomes
// "Abdul Ghafar Lakanwal". Returns empty for anything else.
func titleFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	const prefix = "/wiki/"
	if !strings.HasPrefix(u.Path, prefix) {
		return ""
	}
	title := strings.TrimPrefix(u.Path, prefix)
	title = strings.ReplaceAll(title, "_", " ")
	return cleanField(title)
}
