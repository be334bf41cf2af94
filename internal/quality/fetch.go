package quality

import (
	"context"
	"log"

	"github.com/voglerdaniel/policap/internal/database"
)

// Result holds the results of a quality scoring run.
type Result struct {
	Pending     int
	Scored      int
	Failed      int
	Batches     int
	Interrupted bool
}

// Fetcher scores stored pages that have no persisted quality row yet.
type Fetcher struct {
	db        *database.DB
	scorer    Scorer
	batchSize int
}

// NewFetcher creates a quality fetcher.
func NewFetcher(db *database.DB, scorer Scorer, batchSize int) *Fetcher {
	if batchSize < 1 {
		batchSize = 50
	}
	return &Fetcher{db: db, scorer: scorer, batchSize: batchSize}
}

// FetchMissingScores walks pending pages in fixed-size batches, calling the
// model once per article. Each completed batch is committed before the next
// one starts, so progress survives interruption and a resumed run never
// re-scores a persisted title. Failed items are recorded but not persisted
// as scores, which leaves them pending for the next run.
func (f *Fetcher) FetchMissingScores(ctx context.Context) *Result {
	pending, err := f.db.GetPagesNeedingScore()
	if err != nil {
		log.Printf("Error getting pages needing scores: %v", err)
		return &Result{}
	}

	if len(pending) == 0 {
		log.Println("No articles need quality scores")
		return &Result{}
	}

	totalBatches := (len(pending) + f.batchSize - 1) / f.batchSize
	result := &Result{Pending: len(pending)}
	log.Printf("Scoring %d articles in %d batches of up to %d", len(pending), totalBatches, f.batchSize)

	for start := 0; start < len(pending); start += f.batchSize {
		end := start + f.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		var scores []database.QualityScore
		var failures []database.FetchFailure

		for _, page := range batch {
			if ctx.Err() != nil {
				result.Interrupted = true
				break
			}

			prediction, err := f.scoreWithRetry(ctx, page.RevID)
			if err != nil {
				log.Printf("Scoring failed for %q (rev %d): %v", page.PageTitle, page.RevID, err)
				failures = append(failures, database.FetchFailure{
					Stage:     "quality",
					PageTitle: page.PageTitle,
					Detail:    err.Error(),
				})
				result.Failed++
				continue
			}

			scores = append(scores, database.QualityScore{
				PageTitle:  page.PageTitle,
				RevID:      page.RevID,
				Prediction: prediction,
			})
		}

		if len(scores) > 0 || len(failures) > 0 {
			if err := f.db.InsertQualityBatch(scores, failures); err != nil {
				log.Printf("Error committing score batch: %v", err)
				return result
			}
			result.Scored += len(scores)
			result.Batches++
		}

		if result.Interrupted {
			log.Printf("Scoring interrupted: %d articles committed in %d batches", result.Scored, result.Batches)
			return result
		}

		log.Printf("Committed batch %d of %d (%d scored, %d failed)", result.Batches, totalBatches, len(scores), len(failures))
	}

	log.Printf("Quality scoring complete: %d scored, %d failed in %d batches", result.Scored, result.Failed, result.Batches)
	return result
}

// scoreWithRetry retries a failed call once before giving up on the item.
// Cancellation is not retried.
func (f *Fetcher) scoreWithRetry(ctx context.Context, revID int64) (string, error) {
	prediction, err := f.scorer.Score(ctx, revID)
	if err == nil || ctx.Err() != nil {
		return prediction, err
	}
	return f.scorer.Score(ctx, revID)
}
