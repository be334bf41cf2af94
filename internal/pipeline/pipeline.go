package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/voglerdaniel/policap/internal/config"
	"github.com/voglerdaniel/policap/internal/database"
	"github.com/voglerdaniel/policap/internal/pages"
	"github.com/voglerdaniel/policap/internal/population"
	"github.com/voglerdaniel/policap/internal/quality"
	"github.com/voglerdaniel/policap/internal/report"
	"github.com/voglerdaniel/policap/internal/roster"
	"github.com/voglerdaniel/policap/internal/scrape"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps []StepResult
}

// Pipeline orchestrates the full roster-to-report run.
type Pipeline struct {
	cfg *config.Config
	db  *database.DB
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	return &Pipeline{cfg: cfg, db: db}
}

// Run executes every stage in order. The roster stage aborts the run on
// failure since nothing downstream can work without it. An interrupted
// quality stage keeps its completed batches and skips the report.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}
	total := p.stepCount()
	n := 0
	next := func() int { n++; return n }

	step := p.runRoster(next(), total)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	if len(p.cfg.Sources.Scrape) > 0 {
		r.Steps = append(r.Steps, p.runScrape(next(), total))
	}

	r.Steps = append(r.Steps, p.runPopulation(next(), total))
	r.Steps = append(r.Steps, p.runPages(next(), total))

	step = p.runQuality(ctx, next(), total)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	r.Steps = append(r.Steps, p.runReport(next(), total))
	return r
}

// DryRun shows what a run would do without touching the network.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}

	politicians, _ := p.db.GetPoliticians()
	countries, _ := p.db.GetRosterCountries()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Roster",
		Summary: fmt.Sprintf("[dry-run] %d entries across %d countries already stored", len(politicians), len(countries)),
	})

	if len(p.cfg.Sources.Scrape) > 0 {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Scrape",
			Summary: fmt.Sprintf("[dry-run] %d list pages configured", len(p.cfg.Sources.Scrape)),
		})
	}

	popRows, _ := p.db.GetPopulation()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Population",
		Summary: fmt.Sprintf("[dry-run] %d population rows already stored", len(popRows)),
	})

	titles, _ := p.db.GetTitlesNeedingInfo()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Pages",
		Summary: fmt.Sprintf("[dry-run] %d titles need page metadata", len(titles)),
	})

	pending, _ := p.db.GetPagesNeedingScore()
	batches := 0
	if bs := p.cfg.Quality.BatchSize; bs > 0 {
		batches = (len(pending) + bs - 1) / bs
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Quality",
		Summary: fmt.Sprintf("[dry-run] %d pages need quality scores (%d batches)", len(pending), batches),
	})

	latest, _ := p.db.GetLatestReport()
	if latest != nil {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Report",
			Summary: fmt.Sprintf("[dry-run] Would compose a new report; latest is #%d", latest.ID),
		})
	} else {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Report",
			Summary: "[dry-run] Would compose the first report",
		})
	}

	return r
}

func (p *Pipeline) stepCount() int {
	if len(p.cfg.Sources.Scrape) > 0 {
		return 6
	}
	return 5
}

func (p *Pipeline) runRoster(n, total int) StepResult {
	log.Printf("Step %d/%d: Loading roster...", n, total)
	if p.cfg.Sources.Roster == "" {
		return StepResult{Name: "Roster", Summary: "No roster source configured, using stored entries"}
	}
	result, err := roster.NewLoader(p.db).LoadFile(p.cfg.Sources.Roster)
	if err != nil {
		return StepResult{Name: "Roster", Err: err}
	}
	return StepResult{
		Name: "Roster",
		Summary: fmt.Sprintf("Loaded %d new entries (%d rows, %d duplicates, %d skipped)",
			result.Loaded, result.Rows, result.Duplicates, result.Skipped),
	}
}

func (p *Pipeline) runScrape(n, total int) StepResult {
	log.Printf("Step %d/%d: Scraping configured list pages...", n, total)
	result := scrape.NewScraper(p.db, p.cfg).ScrapeSources()
	return StepResult{
		Name: "Scrape",
		Summary: fmt.Sprintf("Found %d article links (%d new, %d duplicates, %d sources failed)",
			result.Found, result.New, result.Duplicates, result.Failed),
	}
}

func (p *Pipeline) runPopulation(n, total int) StepResult {
	log.Printf("Step %d/%d: Loading population data...", n, total)
	if p.cfg.Sources.Population == "" {
		return StepResult{Name: "Population", Summary: "No population source configured, using stored figures"}
	}
	loader := population.NewLoader(p.db, p.cfg.Sources.PopulationMillions)
	result, err := loader.LoadSource(p.cfg.Sources.Population)
	if err != nil {
		return StepResult{Name: "Population", Err: err}
	}
	return StepResult{
		Name: "Population",
		Summary: fmt.Sprintf("Loaded %d countries and %d regions (%d rows skipped)",
			result.Countries, result.Regions, result.Skipped),
	}
}

func (p *Pipeline) runPages(n, total int) StepResult {
	log.Printf("Step %d/%d: Fetching page metadata...", n, total)
	client := pages.NewClient(p.cfg.Wikipedia.APIURL, p.cfg.Wikipedia.UserAgent)
	result := pages.NewFetcher(p.db, client, p.cfg.Wikipedia.BatchSize).FetchMissingInfo()
	return StepResult{
		Name: "Pages",
		Summary: fmt.Sprintf("Fetched metadata for %d of %d titles (%d missing, %d failed)",
			result.Fetched, result.Requested, result.Missing, result.Failed),
	}
}

func (p *Pipeline) runQuality(ctx context.Context, n, total int) StepResult {
	log.Printf("Step %d/%d: Fetching quality scores...", n, total)
	client := quality.NewClient(
		p.cfg.Quality.APIURL,
		p.cfg.Quality.Model,
		p.cfg.Wikipedia.UserAgent,
		p.cfg.QualityAccessToken(),
	)
	result := quality.NewFetcher(p.db, client, p.cfg.Quality.BatchSize).FetchMissingScores(ctx)
	step := StepResult{
		Name: "Quality",
		Summary: fmt.Sprintf("Scored %d of %d pending pages in %d batches (%d failed)",
			result.Scored, result.Pending, result.Batches, result.Failed),
	}
	if result.Interrupted {
		step.Err = ctx.Err()
	}
	return step
}

func (p *Pipeline) runReport(n, total int) StepResult {
	log.Printf("Step %d/%d: Composing report...", n, total)
	rep, err := report.NewComposer(p.db, p.cfg).ComposeReport()
	if err != nil {
		return StepResult{Name: "Report", Err: err}
	}
	return StepResult{
		Name: "Report",
		Summary: fmt.Sprintf("Report #%d: %d countries, %d articles, %d unmatched geographies",
			rep.ID, rep.CountryCount, rep.ArticleCount, rep.UnmatchedCount),
	}
}
