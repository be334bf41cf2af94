package report

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/voglerdaniel/policap/internal/config"
	"github.com/voglerdaniel/policap/internal/database"
	"github.com/voglerdaniel/policap/internal/metrics"
)

// Artifact names written into the data directory.
const (
	DatasetFile = "wp_politicians_by_country.csv"
	NoMatchFile = "wp_countries-no_match.txt"
	ReportFile  = "coverage_report.md"
)

// Composer computes coverage metrics and renders the report.
type Composer struct {
	db            *database.DB
	dataDir       string
	topN          int
	perPopulation int64
	highQuality   []string
}

// NewComposer creates a report composer.
func NewComposer(db *database.DB, cfg *config.Config) *Composer {
	return &Composer{
		db:            db,
		dataDir:       cfg.GetDataDir(),
		topN:          cfg.Report.TopN,
		perPopulation: cfg.Report.PerPopulation,
		highQuality:   cfg.Report.HighQuality,
	}
}

// ComposeReport computes coverage from everything persisted so far, writes
// the dataset, no-match and markdown artifacts, and stores the report.
func (c *Composer) ComposeReport() (*database.Report, error) {
	rosterCountries, err := c.db.GetRosterCountries()
	if err != nil {
		return nil, err
	}
	if len(rosterCountries) == 0 {
		return nil, fmt.Errorf("no roster loaded; run 'policap load roster' first")
	}

	population, err := c.db.GetPopulation()
	if err != nil {
		return nil, err
	}
	if len(population) == 0 {
		return nil, fmt.Errorf("no population data loaded; run 'policap load population' first")
	}

	records, err := c.db.GetArticleRecords()
	if err != nil {
		return nil, err
	}

	res := metrics.Compute(metrics.Input{
		Articles:        records,
		RosterCountries: rosterCountries,
		Population:      population,
		HighQuality:     c.highQuality,
		PerPopulation:   c.perPopulation,
	})

	body := c.assembleBody(res)
	if err := c.writeArtifacts(res, records, body); err != nil {
		return nil, err
	}

	unmatched := len(res.UnmatchedRoster) + len(res.UnmatchedPopulation)
	id, err := c.db.InsertReport(body, len(res.Countries), res.TotalArticles, unmatched)
	if err != nil {
		return nil, err
	}

	log.Printf("Report composed: %d countries, %d articles, %d unmatched geographies",
		len(res.Countries), res.TotalArticles, unmatched)
	return c.db.GetReport(id)
}

func (c *Composer) assembleBody(res *metrics.Result) string {
	per := humanize.Comma(c.perPopulation)
	var sb strings.Builder

	sb.WriteString("# Politician Article Coverage by Country\n\n")
	sb.WriteString(fmt.Sprintf("Generated %s. Rates are per %s inhabitants.\n\n",
		time.Now().Format("January 2, 2006"), per))
	sb.WriteString(fmt.Sprintf("%d scored articles across %d countries with usable population figures.\n\n",
		res.TotalArticles, len(res.Countries)))
	if n := len(res.UnmatchedRoster) + len(res.UnmatchedPopulation); n > 0 {
		sb.WriteString(fmt.Sprintf("%d geographies could not be joined and are excluded from all rates; see %s.\n\n",
			n, NoMatchFile))
	}

	sections := []struct {
		title string
		table string
	}{
		{fmt.Sprintf("Top %d countries by coverage", c.topN),
			coverageTable(rankCountries(res.Countries, c.topN, byArticleRateDesc), per)},
		{fmt.Sprintf("Bottom %d countries by coverage", c.topN),
			coverageTable(rankCountries(res.Countries, c.topN, byArticleRateAsc), per)},
		{fmt.Sprintf("Top %d countries by high quality coverage", c.topN),
			qualityTable(rankCountries(res.Countries, c.topN, byQualityRateDesc), per)},
		{fmt.Sprintf("Bottom %d countries by high quality coverage", c.topN),
			qualityTable(rankCountries(res.Countries, c.topN, byQualityRateAsc), per)},
		{"Regions by coverage",
			regionCoverageTable(rankRegions(res.Regions, byRegionArticleRateDesc), per)},
		{"Regions by high quality coverage",
			regionQualityTable(rankRegions(res.Regions, byRegionQualityRateDesc), per)},
	}

	for _, s := range sections {
		sb.WriteString("## " + s.title + "\n\n")
		if s.table == "" {
			sb.WriteString("No data.\n\n")
			continue
		}
		sb.WriteString(s.table)
		sb.WriteString("\n")
	}

	return sb.String()
}

// writeArtifacts writes the merged dataset, the no-match list, and the
// report body next to the database.
func (c *Composer) writeArtifacts(res *metrics.Result, records []database.ArticleRecord, body string) error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if err := c.writeDataset(res, records); err != nil {
		return err
	}
	if err := c.writeNoMatch(res); err != nil {
		return err
	}

	path := filepath.Join(c.dataDir, ReportFile)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ReportFile, err)
	}
	return nil
}

func (c *Composer) writeDataset(res *metrics.Result, records []database.ArticleRecord) error {
	byCountry := make(map[string]metrics.CountryMetrics, len(res.Countries))
	for _, cm := range res.Countries {
		byCountry[metrics.NormalizeCountry(cm.Country)] = cm
	}

	path := filepath.Join(c.dataDir, DatasetFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", DatasetFile, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"country", "region", "population", "article_title", "revision_id", "article_quality"})
	for _, r := range records {
		cm, ok := byCountry[metrics.NormalizeCountry(r.Country)]
		if !ok {
			// Unmatched countries are reported, not exported.
			continue
		}
		w.Write([]string{
			cm.Country,
			cm.Region,
			strconv.FormatInt(cm.Population, 10),
			r.PageTitle,
			strconv.FormatInt(r.RevID, 10),
			r.Prediction,
		})
	}
	w.Flush()
	return w.Error()
}

func (c *Composer) writeNoMatch(res *metrics.Result) error {
	names := make([]string, 0, len(res.UnmatchedRoster)+len(res.UnmatchedPopulation))
	names = append(names, res.UnmatchedRoster...)
	names = append(names, res.UnmatchedPopulation...)
	sort.Strings(names)

	content := strings.Join(names, "\n")
	if len(names) > 0 {
		content += "\n"
	}

	path := filepath.Join(c.dataDir, NoMatchFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", NoMatchFile, err)
	}
	return nil
}

func rankCountries(countries []metrics.CountryMetrics, n int, less func(a, b metrics.CountryMetrics) bool) []metrics.CountryMetrics {
	ranked := make([]metrics.CountryMetrics, len(countries))
	copy(ranked, countries)
	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func rankRegions(regions []metrics.RegionMetrics, less func(a, b metrics.RegionMetrics) bool) []metrics.RegionMetrics {
	ranked := make([]metrics.RegionMetrics, len(regions))
	copy(ranked, regions)
	sort.SliceStable(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
	return ranked
}

func byArticleRateDesc(a, b metrics.CountryMetrics) bool {
	if a.ArticlesPerCapita != b.ArticlesPerCapita {
		return a.ArticlesPerCapita > b.ArticlesPerCapita
	}
	return a.Country < b.Country
}

func byArticleRateAsc(a, b metrics.CountryMetrics) bool {
	if a.ArticlesPerCapita != b.ArticlesPerCapita {
		return a.ArticlesPerCapita < b.ArticlesPerCapita
	}
	return a.Country < b.Country
}

func byQualityRateDesc(a, b metrics.CountryMetrics) bool {
	if a.HighQualityPerCapita != b.HighQualityPerCapita {
		return a.HighQualityPerCapita > b.HighQualityPerCapita
	}
	return a.Country < b.Country
}

func byQualityRateAsc(a, b metrics.CountryMetrics) bool {
	if a.HighQualityPerCapita != b.HighQualityPerCapita {
		return a.HighQualityPerCapita < b.HighQualityPerCapita
	}
	return a.Country < b.Country
}

func byRegionArticleRateDesc(a, b metrics.RegionMetrics) bool {
	if a.ArticlesPerCapita != b.ArticlesPerCapita {
		return a.ArticlesPerCapita > b.ArticlesPerCapita
	}
	return a.Region < b.Region
}

func byRegionQualityRateDesc(a, b metrics.RegionMetrics) bool {
	if a.HighQualityPerCapita != b.HighQualityPerCapita {
		return a.HighQualityPerCapita > b.HighQualityPerCapita
	}
	return a.Region < b.Region
}

func coverageTable(rows []metrics.CountryMetrics, per string) string {
	if len(rows) == 0 {
		return ""
	}
	headers := []string{"Country", "Population", "Articles", "Articles per " + per}
	cells := make([][]string, 0, len(rows))
	for _, c := range rows {
		cells = append(cells, []string{
			c.Country,
			humanize.Comma(c.Population),
			strconv.Itoa(c.Articles),
			formatRate(c.ArticlesPerCapita),
		})
	}
	return Table(headers, cells)
}

func qualityTable(rows []metrics.CountryMetrics, per string) string {
	if len(rows) == 0 {
		return ""
	}
	headers := []string{"Country", "Population", "High quality", "High quality per " + per}
	cells := make([][]string, 0, len(rows))
	for _, c := range rows {
		cells = append(cells, []string{
			c.Country,
			humanize.Comma(c.Population),
			strconv.Itoa(c.HighQuality),
			formatRate(c.HighQualityPerCapita),
		})
	}
	return Table(headers, cells)
}

func regionCoverageTable(rows []metrics.RegionMetrics, per string) string {
	if len(rows) == 0 {
		return ""
	}
	headers := []string{"Region", "Population", "Articles", "Articles per " + per}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			r.Region,
			humanize.Comma(r.Population),
			strconv.Itoa(r.Articles),
			formatRate(r.ArticlesPerCapita),
		})
	}
	return Table(headers, cells)
}

func regionQualityTable(rows []metrics.RegionMetrics, per string) string {
	if len(rows) == 0 {
		return ""
	}
	headers := []string{"Region", "Population", "High quality", "High quality per " + per}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{
			r.Region,
			humanize.Comma(r.Population),
			strconv.Itoa(r.HighQuality),
			formatRate(r.HighQualityPerCapita),
		})
	}
	return Table(headers, cells)
}

func formatRate(r float64) string {
	return strconv.FormatFloat(r, 'f', 4, 64)
}
