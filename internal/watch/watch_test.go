package watch

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mmcdole/gofeed"

	"github.com/voglerdaniel/policap/internal/config"
	"github.com/voglerdaniel/policap/internal/database"
)

// historyFeed renders a minimal MediaWiki history Atom feed whose newest
// entry is the given revision.
func historyFeed(title string, latest int64) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <id>urn:history:%[1]s</id>
  <title>%[1]s - Revision history</title>
  <entry>
    <id>https://en.wikipedia.org/w/index.php?title=%[1]s&amp;diff=prev&amp;oldid=%[2]d</id>
    <title>latest edit</title>
    <link rel="alternate" type="text/html"
      href="https://en.wikipedia.org/w/index.php?title=%[1]s&amp;diff=%[2]d&amp;oldid=%[3]d"/>
    <updated>2026-08-01T10:00:00Z</updated>
  </entry>
  <entry>
    <id>https://en.wikipedia.org/w/index.php?title=%[1]s&amp;diff=prev&amp;oldid=%[3]d</id>
    <title>older edit</title>
    <link rel="alternate" type="text/html"
      href="https://en.wikipedia.org/w/index.php?title=%[1]s&amp;diff=%[3]d&amp;oldid=%[4]d"/>
    <updated>2026-07-01T10:00:00Z</updated>
  </entry>
</feed>`, title, latest, latest-100, latest-200)
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestWatcher(t *testing.T, db *database.DB, handler http.Handler) *Watcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Wikipedia.APIURL = srv.URL + "/w/api.php"
	cfg.Wikipedia.UserAgent = "policap-test"
	return NewWatcher(db, cfg)
}

func TestCheckStaleDetectsNewRevision(t *testing.T) {
	db := openTestDB(t)
	db.UpsertPage("Ada Musa", 1, 200, false)
	db.UpsertPage("Ben Oko", 2, 300, false)

	w := newTestWatcher(t, db, http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/w/index.php" {
			http.NotFound(wr, r)
			return
		}
		q := r.URL.Query()
		if q.Get("action") != "history" || q.Get("feed") != "atom" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(wr, historyFeed(q.Get("title"), 300))
	}))

	result := w.CheckStale(0)

	if result.Checked != 2 || result.Fresh != 1 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Stale) != 1 {
		t.Fatalf("expected 1 stale page, got %d", len(result.Stale))
	}
	s := result.Stale[0]
	if s.PageTitle != "Ada Musa" || s.StoredRev != 200 || s.LatestRev != 300 {
		t.Errorf("unexpected staleness: %+v", s)
	}
}

func TestCheckStaleHonorsLimit(t *testing.T) {
	db := openTestDB(t)
	db.UpsertPage("A", 1, 100, false)
	db.UpsertPage("B", 2, 100, false)
	db.UpsertPage("C", 3, 100, false)

	var requests int
	w := newTestWatcher(t, db, http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(wr, historyFeed(r.URL.Query().Get("title"), 100))
	}))

	result := w.CheckStale(1)

	if result.Checked != 1 || requests != 1 {
		t.Errorf("expected a single check, got %+v after %d requests", result, requests)
	}
}

func TestCheckStaleCountsFeedErrors(t *testing.T) {
	db := openTestDB(t)
	db.UpsertPage("A", 1, 100, false)

	w := newTestWatcher(t, db, http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		wr.WriteHeader(http.StatusInternalServerError)
	}))

	result := w.CheckStale(0)

	if result.Checked != 1 || result.Failed != 1 || len(result.Stale) != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestInvalidateDropsScoreAndBumpsRevision(t *testing.T) {
	db := openTestDB(t)
	db.UpsertPage("Ada Musa", 1, 200, false)
	db.InsertQualityBatch([]database.QualityScore{
		{PageTitle: "Ada Musa", RevID: 200, Prediction: "GA"},
	}, nil)

	w := &Watcher{db: db}
	n := w.Invalidate([]Staleness{{PageTitle: "Ada Musa", StoredRev: 200, LatestRev: 300}})

	if n != 1 {
		t.Fatalf("expected 1 invalidation, got %d", n)
	}
	page, _ := db.GetPage("Ada Musa")
	if page.RevID != 300 {
		t.Errorf("expected revision 300, got %d", page.RevID)
	}
	score, _ := db.GetQuality("Ada Musa")
	if score != nil {
		t.Error("expected stale score dropped")
	}
	pending, _ := db.GetPagesNeedingScore()
	if len(pending) != 1 || pending[0].PageTitle != "Ada Musa" {
		t.Errorf("expected page pending rescore, got %+v", pending)
	}
}

func TestFeedBase(t *testing.T) {
	tests := []struct {
		apiURL string
		want   string
	}{
		{"https://en.wikipedia.org/w/api.php", "https://en.wikipedia.org/w/index.php"},
		{"https://wiki.example.org/api.php", "https://wiki.example.org/index.php"},
		{"https://wiki.example.org/mediawiki/", "https://wiki.example.org/mediawiki/index.php"},
	}
	for _, tt := range tests {
		if got := feedBase(tt.apiURL); got != tt.want {
			t.Errorf("feedBase(%q) = %q, want %q", tt.apiURL, got, tt.want)
		}
	}
}

func TestLatestRevisionScansAllLinks(t *testing.T) {
	feed, err := gofeed.NewParser().ParseString(historyFeed("Ada_Musa", 500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := latestRevision(feed); got != 500 {
		t.Errorf("expected revision 500, got %d", got)
	}

	empty, err := gofeed.NewParser().ParseString(`<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom"><id>urn:empty</id><title>x</title></feed>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := latestRevision(empty); got != 0 {
		t.Errorf("expected 0 for empty feed, got %d", got)
	}
}
