package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/voglerdaniel/policap/internal/config"
	"github.com/voglerdaniel/policap/internal/database"
)

// wikiFixture serves a minimal Action API and quality endpoint for three
// roster titles. Rev 13 can be made to fail so runs can be resumed.
type wikiFixture struct {
	srv *httptest.Server

	mu           sync.Mutex
	apiCalls     int
	predictCalls map[int64]int
	failRev13    bool
}

func newWikiFixture(t *testing.T) *wikiFixture {
	t.Helper()
	f := &wikiFixture{predictCalls: make(map[int64]int)}

	revs := map[string]int64{"Ada Musa": 11, "Ben Oko": 12, "Cara Lune": 13}
	predictions := map[int64]string{11: "FA", 12: "Stub", 13: "GA"}

	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.apiCalls++
		f.mu.Unlock()

		type page struct {
			PageID    int64  `json:"pageid"`
			Title     string `json:"title"`
			LastRevID int64  `json:"lastrevid"`
		}
		var pages []page
		for _, title := range strings.Split(r.URL.Query().Get("titles"), "|") {
			rev, ok := revs[title]
			if !ok {
				continue
			}
			pages = append(pages, page{PageID: rev * 10, Title: title, LastRevID: rev})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"query": map[string]any{"pages": pages},
		})
	})
	mux.HandleFunc("/lw/enwiki-articlequality:predict", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RevID int64 `json:"rev_id"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.predictCalls[body.RevID]++
		fail := f.failRev13 && body.RevID == 13
		f.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"enwiki":{"scores":{"%d":{"articlequality":{"score":{"prediction":"%s"}}}}}}`,
			body.RevID, predictions[body.RevID])
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *wikiFixture) calls(rev int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.predictCalls[rev]
}

func (f *wikiFixture) setFailRev13(fail bool) {
	f.mu.Lock()
	f.failRev13 = fail
	f.mu.Unlock()
}

func writeFixtureFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func testSetup(t *testing.T) (*config.Config, *database.DB, *wikiFixture) {
	t.Helper()
	fixture := newWikiFixture(t)
	dir := t.TempDir()

	rosterPath := writeFixtureFile(t, dir, "roster.csv",
		"name,country,page_title\n"+
			"Ada Musa,Kenya,Ada Musa\n"+
			"Ben Oko,Kenya,Ben Oko\n"+
			"Cara Lune,Narnia,Cara Lune\n")
	popPath := writeFixtureFile(t, dir, "population.csv",
		"geography,population\n"+
			"AFRICA,1400\n"+
			"Kenya,55\n")

	cfg := &config.Config{}
	cfg.Sources.Roster = rosterPath
	cfg.Sources.Population = popPath
	cfg.Sources.PopulationMillions = true
	cfg.Wikipedia.APIURL = fixture.srv.URL + "/w/api.php"
	cfg.Wikipedia.UserAgent = "policap-test"
	cfg.Wikipedia.BatchSize = 2
	cfg.Quality.APIURL = fixture.srv.URL + "/lw"
	cfg.Quality.Model = "enwiki-articlequality"
	cfg.Quality.BatchSize = 2
	cfg.Report.PerPopulation = 1_000_000
	cfg.Report.HighQuality = []string{"FA", "GA"}
	cfg.Report.TopN = 5
	cfg.Output.DataDir = filepath.Join(dir, "data")

	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return cfg, db, fixture
}

func stepNames(r *Result) []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestRunFullPipeline(t *testing.T) {
	cfg, db, fixture := testSetup(t)

	result := New(cfg, db).Run(context.Background())

	want := []string{"Roster", "Population", "Pages", "Quality", "Report"}
	if got := stepNames(result); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected steps: %v", got)
	}
	for _, s := range result.Steps {
		if s.Err != nil {
			t.Errorf("step %s failed: %v", s.Name, s.Err)
		}
	}

	// Batch size 2 over 3 titles means two metadata requests.
	if fixture.apiCalls != 2 {
		t.Errorf("expected 2 metadata requests, got %d", fixture.apiCalls)
	}

	scored, err := db.GetScoredTitles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scored) != 3 {
		t.Errorf("expected 3 scored titles, got %d", len(scored))
	}

	rep, err := db.GetLatestReport()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep == nil {
		t.Fatal("expected a stored report")
	}
	if rep.CountryCount != 1 || rep.ArticleCount != 3 || rep.UnmatchedCount != 1 {
		t.Errorf("unexpected report counts: %+v", rep)
	}

	if _, err := os.Stat(filepath.Join(cfg.Output.DataDir, "coverage_report.md")); err != nil {
		t.Errorf("expected report artifact: %v", err)
	}
}

func TestRunRetriesFailedScoreOnNextRun(t *testing.T) {
	cfg, db, fixture := testSetup(t)
	fixture.setFailRev13(true)

	first := New(cfg, db).Run(context.Background())
	for _, s := range first.Steps {
		if s.Err != nil {
			t.Errorf("step %s failed: %v", s.Name, s.Err)
		}
	}

	scored, _ := db.GetScoredTitles()
	if len(scored) != 2 {
		t.Fatalf("expected 2 scored titles after failing run, got %d", len(scored))
	}
	failures, _ := db.GetFailures("quality")
	if len(failures) != 1 || failures[0].PageTitle != "Cara Lune" {
		t.Fatalf("expected one recorded failure for Cara Lune, got %+v", failures)
	}

	fixture.setFailRev13(false)
	second := New(cfg, db).Run(context.Background())
	for _, s := range second.Steps {
		if s.Err != nil {
			t.Errorf("step %s failed: %v", s.Name, s.Err)
		}
	}

	// Persisted revisions are never re-scored; the failed one is retried.
	if got := fixture.calls(11); got != 1 {
		t.Errorf("expected 1 call for rev 11, got %d", got)
	}
	if got := fixture.calls(12); got != 1 {
		t.Errorf("expected 1 call for rev 12, got %d", got)
	}
	// Run one tries rev 13 twice (retry) before recording the failure.
	if got := fixture.calls(13); got != 3 {
		t.Errorf("expected 3 calls for rev 13, got %d", got)
	}

	rep, _ := db.GetLatestReport()
	if rep == nil || rep.ArticleCount != 3 {
		t.Errorf("expected final report over 3 articles, got %+v", rep)
	}
}

func TestRunCanceledContextSkipsReport(t *testing.T) {
	cfg, db, _ := testSetup(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := New(cfg, db).Run(ctx)

	last := result.Steps[len(result.Steps)-1]
	if last.Name != "Quality" || last.Err == nil {
		t.Errorf("expected run to stop at interrupted quality step, got %v", stepNames(result))
	}

	rep, _ := db.GetLatestReport()
	if rep != nil {
		t.Error("expected no report after interrupted run")
	}
}

func TestDryRunCountsPendingWork(t *testing.T) {
	cfg, db, _ := testSetup(t)

	db.InsertPolitician("Ada Musa", "Kenya", "Ada Musa", "roster")
	db.InsertPolitician("Ben Oko", "Kenya", "Ben Oko", "roster")
	db.UpsertPage("Ada Musa", 110, 11, false)

	result := New(cfg, db).DryRun()

	want := []string{"Roster", "Population", "Pages", "Quality", "Report"}
	if got := stepNames(result); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected steps: %v", got)
	}
	for _, s := range result.Steps {
		if !strings.HasPrefix(s.Summary, "[dry-run]") {
			t.Errorf("step %s summary not marked dry-run: %q", s.Name, s.Summary)
		}
	}

	if !strings.Contains(result.Steps[2].Summary, "1 titles need page metadata") {
		t.Errorf("unexpected pages summary: %q", result.Steps[2].Summary)
	}
	if !strings.Contains(result.Steps[3].Summary, "1 pages need quality scores") {
		t.Errorf("unexpected quality summary: %q", result.Steps[3].Summary)
	}
}

func TestRunIncludesScrapeStepWhenConfigured(t *testing.T) {
	cfg, db, _ := testSetup(t)

	listSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div id="mw-content-text">
			<a href="/wiki/Ada_Musa">Ada Musa</a>
			<a href="/wiki/Dan_Tuku">Dan Tuku</a>
		</div></body></html>`)
	}))
	defer listSrv.Close()
	cfg.Sources.Scrape = []config.ScrapeSource{{Country: "Kenya", URL: listSrv.URL}}

	result := New(cfg, db).Run(context.Background())

	names := stepNames(result)
	if len(names) < 2 || names[1] != "Scrape" {
		t.Fatalf("expected scrape step second, got %v", names)
	}

	politicians, _ := db.GetPoliticians()
	byTitle := make(map[string]string)
	for _, p := range politicians {
		byTitle[p.PageTitle] = p.Source
	}
	if byTitle["Dan Tuku"] != "scrape" {
		t.Errorf("expected scraped entry for Dan Tuku, got %+v", politicians)
	}
	// Ada Musa came from the roster first, so the scrape hit is a duplicate.
	if byTitle["Ada Musa"] != "roster" {
		t.Errorf("expected roster entry for Ada Musa to win, got %q", byTitle["Ada Musa"])
	}
}
