package population

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// LoadURL fetches an HTML page and loads population data from its first
// table. Publishers that only offer web tables work through this path.
func (l *Loader) LoadURL(pageURL string) (*Result, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequest("GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "policap/0.1 (article coverage research)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching population page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching population page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing population page: %w", err)
	}

	entries, skipped := parseHTMLTable(doc)
	return l.store(entries, skipped)
}

// parseHTMLTable reads geography and population pairs from the first table
// in the document. The first cell of each row names the geography; the
// first numeric cell after it is the population figure.
func parseHTMLTable(doc *goquery.Document) ([]entry, int) {
	var entries []entry
	skipped := 0

	doc.Find("table").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}

		geography := stripFootnote(cleanField(cells.First().Text()))
		if geography == "" || strings.EqualFold(geography, "geography") {
			return
		}

		var population float64
		found := false
		cells.Slice(1, cells.Length()).EachWithBreak(func(_ int, c *goquery.Selection) bool {
			if v, ok := parseNumber(cleanField(c.Text())); ok {
				population = v
				found = true
				return false
			}
			return true
		})

		if !found {
			skipped++
			return
		}
		entries = append(entries, entry{geography: geography, population: population})
	})

	return entries, skipped
}

// stripFootnote drops trailing reference markers like "Kenya[1]".
func stripFootnote(s string) string {
	if i := strings.Index(s, "["); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
