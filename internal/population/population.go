package population

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/voglerdaniel/policap/internal/database"
)

// Result holds the results of a population load.
type Result struct {
	Rows      int
	Countries int
	Regions   int
	Skipped   int
}

// Loader reads population datasets into the population table. When millions
// is set, source figures are treated as millions of inhabitants and scaled
// to absolute counts on load.
type Loader struct {
	db       *database.DB
	millions bool
}

// NewLoader creates a population loader.
func NewLoader(db *database.DB, millions bool) *Loader {
	return &Loader{db: db, millions: millions}
}

// entry is one parsed geography before region assignment.
type entry struct {
	geography  string
	population float64
}

// LoadSource loads population data from a file path or an http(s) URL.
func (l *Loader) LoadSource(source string) (*Result, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return l.LoadURL(source)
	}
	return l.LoadFile(source)
}

// LoadFile loads a delimited population file. Files ending in .tsv are read
// as tab-separated, everything else as comma-separated.
func (l *Loader) LoadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening population data: %w", err)
	}
	defer f.Close()

	comma := ','
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		comma = '\t'
	}
	return l.load(f, comma)
}

func (l *Loader) load(r io.Reader, comma rune) (*Result, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading population header: %w", err)
	}
	geoCol, popCol := findColumns(header)

	var entries []entry
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading population row: %w", err)
		}

		geography := fieldAt(record, geoCol)
		value, ok := parseNumber(fieldAt(record, popCol))
		if geography == "" || !ok {
			skipped++
			continue
		}
		entries = append(entries, entry{geography: geography, population: value})
	}

	return l.store(entries, skipped)
}

// store assigns regions, scales figures, and replaces the population table.
func (l *Loader) store(entries []entry, skipped int) (*Result, error) {
	rows := l.assemble(entries)
	if len(rows) == 0 {
		return nil, fmt.Errorf("no population rows parsed")
	}

	if err := l.db.ReplacePopulation(rows); err != nil {
		return nil, fmt.Errorf("storing population: %w", err)
	}

	result := &Result{Rows: len(entries) + skipped, Skipped: skipped}
	for _, r := range rows {
		if r.IsRegion {
			result.Regions++
		} else {
			result.Countries++
		}
	}

	log.Printf("Population load complete: %d countries, %d regions, %d skipped",
		result.Countries, result.Regions, result.Skipped)
	return result, nil
}

// assemble walks entries in source order. ALL-CAPS geographies open a new
// regional rollup; every following country belongs to the nearest preceding
// region.
func (l *Loader) assemble(entries []entry) []database.PopulationRow {
	scale := 1.0
	if l.millions {
		scale = 1e6
	}

	var rows []database.PopulationRow
	region := ""
	for _, e := range entries {
		pop := int64(math.Round(e.population * scale))
		if isRegionName(e.geography) {
			region = e.geography
			rows = append(rows, database.PopulationRow{
				Geography:  e.geography,
				Population: pop,
				IsRegion:   true,
			})
			continue
		}
		rows = append(rows, database.PopulationRow{
			Geography:  e.geography,
			Region:     region,
			Population: pop,
		})
	}
	return rows
}

func findColumns(header []string) (geoCol, popCol int) {
	geoCol, popCol = 0, len(header)-1
	for i, h := range header {
		name := strings.ToLower(cleanField(h))
		switch {
		case name == "geography" || name == "country" || name == "name":
			geoCol = i
		case strings.HasPrefix(name, "population"):
			popCol = i
		}
	}
	return geoCol, popCol
}

func fieldAt(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return cleanField(record[i])
}

func cleanField(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseNumber reads a population figure, tolerating thousands separators.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// isRegionName reports whether a geography is a regional rollup. The source
// marks regions by writing them in ALL CAPS.
func isRegionName(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}
