package quality

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/voglerdaniel/policap/internal/database"
)

// mockScorer serves canned predictions and records every call. It can fail a
// revision a set number of times and cancel a context after N calls to
// simulate an interrupted run.
type mockScorer struct {
	predictions map[int64]string
	failures    map[int64]int
	calls       []int64
	cancelAfter int
	cancel      context.CancelFunc
}

func (m *mockScorer) Score(_ context.Context, revID int64) (string, error) {
	m.calls = append(m.calls, revID)
	if m.cancel != nil && len(m.calls) == m.cancelAfter {
		m.cancel()
	}
	if m.failures[revID] > 0 {
		m.failures[revID]--
		return "", errors.New("status 503")
	}
	if p, ok := m.predictions[revID]; ok {
		return p, nil
	}
	return "", errors.New("no prediction")
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

func seedPages(t *testing.T, db *database.DB, pages map[string]int64) {
	t.Helper()
	for title, rev := range pages {
		if err := db.UpsertPage(title, rev, rev, false); err != nil {
			t.Fatalf("seeding page %q: %v", title, err)
		}
	}
}

func TestFetchMissingScores(t *testing.T) {
	db := openTestDB(t)
	seedPages(t, db, map[string]int64{"A": 10, "B": 20, "C": 30})

	mock := &mockScorer{predictions: map[int64]string{10: "FA", 20: "Stub", 30: "GA"}}
	fetcher := NewFetcher(db, mock, 2)
	result := fetcher.FetchMissingScores(context.Background())

	if result.Pending != 3 {
		t.Errorf("expected 3 pending, got %d", result.Pending)
	}
	if result.Scored != 3 {
		t.Errorf("expected 3 scored, got %d", result.Scored)
	}
	if result.Batches != 2 {
		t.Errorf("expected 2 batches, got %d", result.Batches)
	}

	score, _ := db.GetQuality("A")
	if score == nil || score.Prediction != "FA" {
		t.Error("expected persisted prediction for A")
	}

	// Union of committed batches covers the input set exactly.
	scored, _ := db.GetScoredTitles()
	if len(scored) != 3 {
		t.Errorf("expected 3 scored titles, got %d", len(scored))
	}
}

func TestInterruptedRunResumesWithoutRefetch(t *testing.T) {
	db := openTestDB(t)
	seedPages(t, db, map[string]int64{"A": 10, "B": 20, "C": 30})

	// Cancel after the first batch of two completes. Titles come back
	// sorted, so the first batch is A and B.
	ctx, cancel := context.WithCancel(context.Background())
	mock := &mockScorer{
		predictions: map[int64]string{10: "FA", 20: "Stub", 30: "GA"},
		cancelAfter: 2,
		cancel:      cancel,
	}

	fetcher := NewFetcher(db, mock, 2)
	result := fetcher.FetchMissingScores(ctx)

	if !result.Interrupted {
		t.Fatal("expected interrupted result")
	}
	if result.Scored != 2 {
		t.Fatalf("expected 2 scored before interruption, got %d", result.Scored)
	}
	if len(mock.calls) != 2 {
		t.Fatalf("expected 2 remote calls before interruption, got %d", len(mock.calls))
	}

	// The resumed run must fetch exactly the one remaining title.
	resumed := &mockScorer{predictions: map[int64]string{30: "GA"}}
	result = NewFetcher(db, resumed, 2).FetchMissingScores(context.Background())

	if result.Pending != 1 {
		t.Errorf("expected 1 pending on resume, got %d", result.Pending)
	}
	if len(resumed.calls) != 1 || resumed.calls[0] != 30 {
		t.Errorf("expected exactly one call for rev 30, got %v", resumed.calls)
	}

	scored, _ := db.GetScoredTitles()
	if len(scored) != 3 {
		t.Errorf("expected all 3 titles scored after resume, got %d", len(scored))
	}
}

func TestRetryOncePerItem(t *testing.T) {
	db := openTestDB(t)
	seedPages(t, db, map[string]int64{"A": 10})

	mock := &mockScorer{
		predictions: map[int64]string{10: "B"},
		failures:    map[int64]int{10: 1},
	}
	result := NewFetcher(db, mock, 50).FetchMissingScores(context.Background())

	if result.Scored != 1 {
		t.Errorf("expected 1 scored after retry, got %d", result.Scored)
	}
	if len(mock.calls) != 2 {
		t.Errorf("expected 2 calls (original plus retry), got %d", len(mock.calls))
	}
}

func TestFailedItemStaysPending(t *testing.T) {
	db := openTestDB(t)
	seedPages(t, db, map[string]int64{"A": 10, "B": 20})

	// A fails both the call and its retry; B succeeds.
	mock := &mockScorer{
		predictions: map[int64]string{20: "C"},
		failures:    map[int64]int{10: 2},
	}
	result := NewFetcher(db, mock, 50).FetchMissingScores(context.Background())

	if result.Scored != 1 || result.Failed != 1 {
		t.Fatalf("expected 1 scored and 1 failed, got %d/%d", result.Scored, result.Failed)
	}

	failures, _ := db.GetFailures("quality")
	if len(failures) != 1 || failures[0].PageTitle != "A" {
		t.Fatalf("expected recorded failure for A, got %v", failures)
	}

	// The failure is recorded but not checkpointed, so A is retried later.
	pending, _ := db.GetPagesNeedingScore()
	if len(pending) != 1 || pending[0].PageTitle != "A" {
		t.Errorf("expected A still pending, got %v", pending)
	}
}

func TestFetchNothingPending(t *testing.T) {
	db := openTestDB(t)
	mock := &mockScorer{}
	result := NewFetcher(db, mock, 50).FetchMissingScores(context.Background())

	if result.Pending != 0 || len(mock.calls) != 0 {
		t.Errorf("expected no work and no calls, got %d pending, %d calls", result.Pending, len(mock.calls))
	}
}
