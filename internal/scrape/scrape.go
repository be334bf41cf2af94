package scrape

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/voglerdaniel/policap/internal/config"
	"github.com/voglerdaniel/policap/internal/database"
)

// Result holds the results of a scrape run.
type Result struct {
	Sources    int
	Found      int
	New        int
	Duplicates int
	Failed     int
}

// Scraper collects politician article links from configured list pages and
// adds them to the roster.
type Scraper struct {
	db        *database.DB
	client    *http.Client
	sources   []config.ScrapeSource
	userAgent string
}

// NewScraper creates a scraper for the configured sources.
func NewScraper(db *database.DB, cfg *config.Config) *Scraper {
	return &Scraper{
		db: db,
		client: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		sources:   cfg.Sources.Scrape,
		userAgent: cfg.Wikipedia.UserAgent,
	}
}

// ScrapeSources visits every configured list page and stores each linked
// article as a roster entry with source "scrape". A failed source is
// recorded and skipped; the remaining sources still run.
func (s *Scraper) ScrapeSources() *Result {
	result := &Result{}

	if len(s.sources) == 0 {
		log.Println("No scrape sources configured")
		return result
	}

	for _, src := range s.sources {
		result.Sources++

		titles, err := s.scrapeSource(src.URL)
		if err != nil {
			log.Printf("Error scraping %s: %v", src.URL, err)
			s.db.RecordFailure("scrape", src.URL, err.Error())
			result.Failed++
			continue
		}

		result.Found += len(titles)
		for _, title := range titles {
			id, err := s.db.InsertPolitician(title, src.Country, title, "scrape")
			if err != nil {
				log.Printf("Error storing %s: %v", title, err)
				continue
			}
			if id == 0 {
				result.Duplicates++
			} else {
				result.New++
			}
		}
		log.Printf("Scraped %d article links for %s from %s", len(titles), src.Country, src.URL)
	}

	log.Printf("Scrape complete: %d sources, %d found, %d new, %d duplicates, %d failed",
		result.Sources, result.Found, result.New, result.Duplicates, result.Failed)
	return result
}

// scrapeSource fetches one list page and returns the article titles it
// links to, in page order without duplicates.
func (s *Scraper) scrapeSource(pageURL string) ([]string, error) {
	req, err := http.NewRequest("GET", pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	// MediaWiki pages mark their article body. Everything else goes
	// through readability so navigation links stay out of the roster.
	content := doc.Find("#mw-content-text")
	if content.Length() == 0 {
		parsedURL, _ := url.Parse(pageURL)
		article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
		if err != nil {
			return nil, fmt.Errorf("extracting content: %w", err)
		}
		cdoc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
		if err != nil {
			return nil, fmt.Errorf("parsing content: %w", err)
		}
		content = cdoc.Selection
	}

	var titles []string
	seen := make(map[string]struct{})
	content.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		title := titleFromHref(href)
		if title == "" {
			return
		}
		if _, dup := seen[title]; dup {
			return
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
	})

	return titles, nil
}

// titleFromHref turns a /wiki/ link into an article title. Links into other
// namespaces (Category:, File:, ...) return empty.
func titleFromHref(href string) string {
	href, _, _ = strings.Cut(href, "#")
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	// u.Path arrives percent-decoded.
	const prefix = "/wiki/"
	if !strings.HasPrefix(u.Path, prefix) {
		return ""
	}
	title := strings.TrimPrefix(u.Path, prefix)
	if title == "" || strings.Contains(title, ":") {
		return ""
	}
	title = strings.ReplaceAll(title, "_", " ")
	return strings.Join(strings.Fields(title), " ")
}
