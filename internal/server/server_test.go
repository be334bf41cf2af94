package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voglerdaniel/policap/internal/database"
)

const reportBody = `# Politician Article Coverage by Country

42 scored articles across 2 countries with usable population figures.

## Top 5 countries by coverage

| Country | Population | Articles | Articles per 1,000,000 |
| ------- | ---------- | -------- | ---------------------- |
| Tonga   | 100,000    | 1        | 10.0000                |
| Kenya   | 55,000,000 | 2        | 0.0364                 |
`

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func get(t *testing.T, db *database.DB, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRouteEmpty(t *testing.T) {
	db := openTestDB(t)
	rec := get(t, db, "/")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No reports yet") {
		t.Error("expected empty state message in response body")
	}
}

func TestIndexListsReports(t *testing.T) {
	db := openTestDB(t)
	db.InsertPolitician("Ada Musa", "Kenya", "Ada Musa", "roster")
	id, err := db.InsertReport(reportBody, 2, 42, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := get(t, db, "/")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Report #1") {
		t.Error("expected report link text in response")
	}
	if !strings.Contains(body, "/report/1") {
		t.Errorf("expected link to report %d in response", id)
	}
	if !strings.Contains(body, "roster entries") {
		t.Error("expected stats section in response")
	}
}

func TestReportRouteRendersTables(t *testing.T) {
	db := openTestDB(t)
	db.InsertReport(reportBody, 2, 42, 1)

	rec := get(t, db, "/report/1")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Politician Article Coverage by Country") {
		t.Error("expected report heading in response")
	}
	if !strings.Contains(body, "<table>") {
		t.Error("expected markdown table rendered as HTML table")
	}
	if !strings.Contains(body, "Tonga") {
		t.Error("expected table contents in response")
	}
}

func TestReportLatestRoute(t *testing.T) {
	db := openTestDB(t)
	db.InsertReport("# First", 1, 1, 0)
	db.InsertReport("# Second", 2, 2, 0)

	rec := get(t, db, "/report/latest")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Second") {
		t.Error("expected latest report body in response")
	}
}

func TestReportNotFound(t *testing.T) {
	db := openTestDB(t)

	rec := get(t, db, "/report/999")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Report not found") {
		t.Error("expected not-found message in response")
	}

	rec = get(t, db, "/report/not-a-number")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for malformed id, got %d", rec.Code)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	db := openTestDB(t)
	rec := get(t, db, "/definitely-not-here")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	db := openTestDB(t)
	rec := get(t, db, "/static/style.css")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ".report-list") {
		t.Error("expected CSS content")
	}
}
