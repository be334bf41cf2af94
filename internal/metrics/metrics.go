package metrics

import (
	"sort"
	"strings"

	"github.com/voglerdaniel/policap/internal/database"
)

// Input carries everything the coverage computation needs.
type Input struct {
	Articles        []database.ArticleRecord
	RosterCountries []string
	Population      []database.PopulationRow
	HighQuality     []string
	PerPopulation   int64
}

// CountryMetrics is per-country article coverage. Rates are expressed per
// Input.PerPopulation inhabitants.
type CountryMetrics struct {
	Country              string
	Region               string
	Population           int64
	Articles             int
	HighQuality          int
	ArticlesPerCapita    float64
	HighQualityPerCapita float64
}

// RegionMetrics aggregates matched countries into their regional rollup.
// The denominator is the region's own population figure, not the sum of its
// matched countries.
type RegionMetrics struct {
	Region               string
	Population           int64
	Articles             int
	HighQuality          int
	ArticlesPerCapita    float64
	HighQualityPerCapita float64
}

// Result is the computed coverage plus everything that could not be joined.
// Countries only appear in Countries when they have a usable (non-zero)
// population figure; everything else lands in the unmatched lists.
type Result struct {
	Countries           []CountryMetrics
	Regions             []RegionMetrics
	UnmatchedRoster     []string
	UnmatchedPopulation []string
	TotalArticles       int
}

// NormalizeCountry folds case and collapses whitespace so that cosmetic
// differences between datasets do not break the join. Spelling differences
// are deliberately left alone; those rows surface as unmatched instead.
func NormalizeCountry(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Compute joins roster countries against population figures and derives
// per-capita coverage. Unmatched keys on either side are reported, never
// guessed at.
func Compute(in Input) *Result {
	high := make(map[string]struct{}, len(in.HighQuality))
	for _, class := range in.HighQuality {
		high[strings.ToUpper(class)] = struct{}{}
	}

	type counts struct {
		articles    int
		highQuality int
	}
	perCountry := make(map[string]*counts)
	for _, a := range in.Articles {
		key := NormalizeCountry(a.Country)
		c := perCountry[key]
		if c == nil {
			c = &counts{}
			perCountry[key] = c
		}
		c.articles++
		if _, ok := high[strings.ToUpper(a.Prediction)]; ok {
			c.highQuality++
		}
	}

	countryPop := make(map[string]database.PopulationRow)
	regionPop := make(map[string]database.PopulationRow)
	for _, p := range in.Population {
		if p.IsRegion {
			regionPop[p.Geography] = p
		} else {
			countryPop[NormalizeCountry(p.Geography)] = p
		}
	}

	result := &Result{TotalArticles: len(in.Articles)}
	matchedPop := make(map[string]struct{})

	rosterSeen := make(map[string]struct{})
	for _, country := range in.RosterCountries {
		key := NormalizeCountry(country)
		if _, dup := rosterSeen[key]; dup {
			continue
		}
		rosterSeen[key] = struct{}{}

		pop, ok := countryPop[key]
		if !ok || pop.Population == 0 {
			result.UnmatchedRoster = append(result.UnmatchedRoster, country)
			continue
		}
		matchedPop[key] = struct{}{}

		c := perCountry[key]
		if c == nil {
			c = &counts{}
		}
		result.Countries = append(result.Countries, CountryMetrics{
			Country:              pop.Geography,
			Region:               pop.Region,
			Population:           pop.Population,
			Articles:             c.articles,
			HighQuality:          c.highQuality,
			ArticlesPerCapita:    rate(c.articles, pop.Population, in.PerPopulation),
			HighQualityPerCapita: rate(c.highQuality, pop.Population, in.PerPopulation),
		})
	}

	for key, pop := range countryPop {
		if _, ok := matchedPop[key]; !ok {
			result.UnmatchedPopulation = append(result.UnmatchedPopulation, pop.Geography)
		}
	}

	sort.Slice(result.Countries, func(i, j int) bool {
		return result.Countries[i].Country < result.Countries[j].Country
	})
	sort.Strings(result.UnmatchedRoster)
	sort.Strings(result.UnmatchedPopulation)

	result.Regions = rollupRegions(result.Countries, regionPop, in.PerPopulation)
	return result
}

// rollupRegions sums matched countries into their regions. Regions without
// matched countries or without a usable population figure are omitted.
func rollupRegions(countries []CountryMetrics, regionPop map[string]database.PopulationRow, perPopulation int64) []RegionMetrics {
	type counts struct {
		articles    int
		highQuality int
	}
	perRegion := make(map[string]*counts)
	for _, c := range countries {
		if c.Region == "" {
			continue
		}
		r := perRegion[c.Region]
		if r == nil {
			r = &counts{}
			perRegion[c.Region] = r
		}
		r.articles += c.Articles
		r.highQuality += c.HighQuality
	}

	var regions []RegionMetrics
	for name, c := range perRegion {
		pop, ok := regionPop[name]
		if !ok || pop.Population == 0 {
			continue
		}
		regions = append(regions, RegionMetrics{
			Region:               name,
			Population:           pop.Population,
			Articles:             c.articles,
			HighQuality:          c.highQuality,
			ArticlesPerCapita:    rate(c.articles, pop.Population, perPopulation),
			HighQualityPerCapita: rate(c.highQuality, pop.Population, perPopulation),
		})
	}

	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Region < regions[j].Region
	})
	return regions
}

func rate(count int, population, perPopulation int64) float64 {
	if population == 0 {
		return 0
	}
	return float64(count) * float64(perPopulation) / float64(population)
}
