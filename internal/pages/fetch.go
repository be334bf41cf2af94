package pages

import (
	"log"

	"github.com/voglerdaniel/policap/internal/database"
)

// InfoClient is the metadata source. Satisfied by *Client.
type InfoClient interface {
	PageInfo(titles []string) ([]PageInfo, error)
}

// Result holds the results of a metadata fetch run.
type Result struct {
	Requested int
	Fetched   int
	Missing   int
	Failed    int
}

// Fetcher fills the pages table for roster titles that lack metadata.
type Fetcher struct {
	db        *database.DB
	client    InfoClient
	batchSize int
}

// NewFetcher creates a metadata fetcher. Batch size is clamped to the
// MediaWiki per-request limit.
func NewFetcher(db *database.DB, client InfoClient, batchSize int) *Fetcher {
	if batchSize < 1 || batchSize > maxTitlesPerQuery {
		batchSize = maxTitlesPerQuery
	}
	return &Fetcher{db: db, client: client, batchSize: batchSize}
}

// FetchMissingInfo queries metadata for every roster title without a pages
// row. Each title ends up either stored (found or missing) or recorded as a
// failure; failed titles stay pending and are retried on the next run.
func (f *Fetcher) FetchMissingInfo() *Result {
	titles, err := f.db.GetTitlesNeedingInfo()
	if err != nil {
		log.Printf("Error getting titles needing metadata: %v", err)
		return &Result{}
	}

	if len(titles) == 0 {
		log.Println("No titles need page metadata")
		return &Result{}
	}

	result := &Result{Requested: len(titles)}
	for start := 0; start < len(titles); start += f.batchSize {
		end := start + f.batchSize
		if end > len(titles) {
			end = len(titles)
		}
		batch := titles[start:end]

		infos, err := f.client.PageInfo(batch)
		if err != nil {
			log.Printf("Metadata query failed for %d titles: %v", len(batch), err)
			for _, t := range batch {
				if dbErr := f.db.RecordFailure("pages", t, err.Error()); dbErr != nil {
					log.Printf("Error recording failure for %q: %v", t, dbErr)
				}
				result.Failed++
			}
			continue
		}

		for _, info := range infos {
			if err := f.db.UpsertPage(info.Title, info.PageID, info.RevID, info.Missing); err != nil {
				log.Printf("Error storing page %q: %v", info.Title, err)
				result.Failed++
				continue
			}
			if info.Missing {
				result.Missing++
				log.Printf("No article found for: %s", info.Title)
			} else {
				result.Fetched++
			}
		}
	}

	log.Printf("Page metadata complete: %d fetched, %d missing, %d failed", result.Fetched, result.Missing, result.Failed)
	return result
}
