package watch

import (
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/voglerdaniel/policap/internal/config"
	"github.com/voglerdaniel/policap/internal/database"
)

// Staleness is a stored page whose wiki history moved past the revision we
// scored.
type Staleness struct {
	PageTitle string
	StoredRev int64
	LatestRev int64
}

// Result holds the results of a staleness check.
type Result struct {
	Checked int
	Fresh   int
	Failed  int
	Stale   []Staleness
}

// Watcher compares stored revisions against each article's history feed.
type Watcher struct {
	db       *database.DB
	parser   *gofeed.Parser
	feedBase string
}

// NewWatcher creates a watcher using the wiki behind the configured API URL.
func NewWatcher(db *database.DB, cfg *config.Config) *Watcher {
	parser := gofeed.NewParser()
	parser.UserAgent = cfg.Wikipedia.UserAgent
	return &Watcher{
		db:       db,
		parser:   parser,
		feedBase: feedBase(cfg.Wikipedia.APIURL),
	}
}

// CheckStale reads each stored page's history feed and reports pages whose
// latest revision is newer than the one we scored. A limit of 0 or less
// checks every stored page.
func (w *Watcher) CheckStale(limit int) *Result {
	result := &Result{}

	pages, err := w.db.GetPages(limit)
	if err != nil {
		log.Printf("Error getting stored pages: %v", err)
		return result
	}
	if len(pages) == 0 {
		log.Println("No stored pages to check")
		return result
	}

	for _, page := range pages {
		result.Checked++

		feed, err := w.parser.ParseURL(w.historyFeedURL(page.PageTitle))
		if err != nil {
			log.Printf("Error reading history feed for %s: %v", page.PageTitle, err)
			result.Failed++
			continue
		}

		latest := latestRevision(feed)
		if latest == 0 {
			log.Printf("No revision ids in history feed for %s", page.PageTitle)
			result.Failed++
			continue
		}

		if latest > page.RevID {
			result.Stale = append(result.Stale, Staleness{
				PageTitle: page.PageTitle,
				StoredRev: page.RevID,
				LatestRev: latest,
			})
		} else {
			result.Fresh++
		}
	}

	log.Printf("Staleness check complete: %d checked, %d fresh, %d stale, %d failed",
		result.Checked, result.Fresh, len(result.Stale), result.Failed)
	return result
}

// Invalidate moves each stale page to its latest revision and drops the old
// score, so the next quality run fetches a fresh prediction.
func (w *Watcher) Invalidate(entries []Staleness) int {
	invalidated := 0
	for _, e := range entries {
		if err := w.db.InvalidatePage(e.PageTitle, e.LatestRev); err != nil {
			log.Printf("Error invalidating %s: %v", e.PageTitle, err)
			continue
		}
		invalidated++
		log.Printf("Invalidated %s: revision %d is now %d", e.PageTitle, e.StoredRev, e.LatestRev)
	}
	return invalidated
}

func (w *Watcher) historyFeedURL(title string) string {
	params := url.Values{}
	params.Set("title", title)
	params.Set("action", "history")
	params.Set("feed", "atom")
	return w.feedBase + "?" + params.Encode()
}

// feedBase derives the wiki's index.php endpoint from its api.php endpoint.
// Both live in the same script directory on every MediaWiki install.
func feedBase(apiURL string) string {
	if strings.HasSuffix(apiURL, "api.php") {
		return strings.TrimSuffix(apiURL, "api.php") + "index.php"
	}
	return strings.TrimRight(apiURL, "/") + "/index.php"
}

// latestRevision extracts the highest revision id present in a history
// feed. Entry links carry the revision in their diff and oldid parameters.
func latestRevision(feed *gofeed.Feed) int64 {
	var latest int64
	scan := func(raw string) {
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		q := u.Query()
		for _, key := range []string{"diff", "oldid"} {
			if rev, err := strconv.ParseInt(q.Get(key), 10, 64); err == nil && rev > latest {
				latest = rev
			}
		}
	}

	for _, item := range feed.Items {
		scan(item.Link)
		scan(item.GUID)
		for _, l := range item.Links {
			scan(l)
		}
	}
	return latest
}
