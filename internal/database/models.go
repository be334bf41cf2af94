package database

// Politician is one roster entry: a person and the Wikipedia article
// that covers them.
type Politician struct {
	ID        int64
	Name      string
	Country   string
	PageTitle string
	Source    string // "roster" or "scrape"
	LoadedAt  *string
}

// Page holds metadata fetched for an article title.
type Page struct {
	PageTitle string
	PageID    int64
	RevID     int64
	Missing   bool
	FetchedAt *string
}

// QualityScore is a persisted quality prediction for an article revision.
type QualityScore struct {
	PageTitle  string
	RevID      int64
	Prediction string
	ScoredAt   *string
}

// FetchFailure records a remote call that failed for one item.
// Failed items are never checkpointed, so later runs retry them.
type FetchFailure struct {
	ID        int64
	Stage     string // "pages", "quality" or "scrape"
	PageTitle string
	Detail    string
	FailedAt  *string
}

// PopulationRow is one geography from the population dataset. Rows with
// IsRegion set are regional rollups, not countries.
type PopulationRow struct {
	Geography  string
	Region     string
	Population int64
	IsRegion   bool
	LoadedAt   *string
}

// ArticleRecord is a scored article joined back to its roster country.
type ArticleRecord struct {
	Country    string
	PageTitle  string
	RevID      int64
	Prediction string
}

// Report is a stored coverage report.
type Report struct {
	ID             int64
	BodyMarkdown   string
	CountryCount   int
	ArticleCount   int
	UnmatchedCount int
	GeneratedAt    *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Politicians    int
	Countries      int
	PagesFetched   int
	PagesMissing   int
	Scored         int
	PendingScores  int
	Failures       int
	PopulationRows int
	Regions        int
	Reports        int
}
