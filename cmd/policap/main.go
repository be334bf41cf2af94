package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/voglerdaniel/policap/internal/config"
	"github.com/voglerdaniel/policap/internal/database"
	"github.com/voglerdaniel/policap/internal/pages"
	"github.com/voglerdaniel/policap/internal/pipeline"
	"github.com/voglerdaniel/policap/internal/population"
	"github.com/voglerdaniel/policap/internal/quality"
	"github.com/voglerdaniel/policap/internal/report"
	"github.com/voglerdaniel/policap/internal/roster"
	"github.com/voglerdaniel/policap/internal/scrape"
	"github.com/voglerdaniel/policap/internal/server"
	"github.com/voglerdaniel/policap/internal/watch"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "policap",
	Short:   "Wikipedia politician article coverage by country",
	Long:    "Policap loads politician rosters and population data, fetches article metadata and quality predictions, and reports articles per capita by country and region.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("policap", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/policap/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to point at your roster and population sources.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Roster:")
		fmt.Printf("  Politicians: %d\n", stats.Politicians)
		fmt.Printf("  Countries: %d\n", stats.Countries)
		fmt.Println("\nPages:")
		fmt.Printf("  Fetched: %d\n", stats.PagesFetched)
		fmt.Printf("  Missing on wiki: %d\n", stats.PagesMissing)
		fmt.Println("\nQuality:")
		fmt.Printf("  Scored: %d\n", stats.Scored)
		fmt.Printf("  Pending: %d\n", stats.PendingScores)
		fmt.Println("\nPopulation:")
		fmt.Printf("  Countries: %d\n", stats.PopulationRows)
		fmt.Printf("  Regions: %d\n", stats.Regions)
		fmt.Printf("\nRecorded failures: %d\n", stats.Failures)
		fmt.Printf("Reports: %d\n", stats.Reports)
		return nil
	},
}

// --- load commands ---

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load source datasets into the database",
}

var loadRosterCmd = &cobra.Command{
	Use:   "roster [file]",
	Short: "Load a politician roster from a CSV or TSV file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Sources.Roster
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no roster file given and none configured under sources.roster")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := roster.NewLoader(db).LoadFile(path)
		if err != nil {
			return err
		}

		fmt.Println("Roster load complete:")
		fmt.Printf("  Rows read: %d\n", result.Rows)
		fmt.Printf("  New entries: %d\n", result.Loaded)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		fmt.Printf("  Incomplete rows skipped: %d\n", result.Skipped)
		return nil
	},
}

var populationMillions bool

var loadPopulationCmd = &cobra.Command{
	Use:   "population [file-or-url]",
	Short: "Load population figures from a delimited file or an HTML table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := cfg.Sources.Population
		if len(args) > 0 {
			source = args[0]
		}
		if source == "" {
			return fmt.Errorf("no population source given and none configured under sources.population")
		}

		millions := cfg.Sources.PopulationMillions
		if cmd.Flags().Changed("millions") {
			millions = populationMillions
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := population.NewLoader(db, millions).LoadSource(source)
		if err != nil {
			return err
		}

		fmt.Println("Population load complete:")
		fmt.Printf("  Rows read: %d\n", result.Rows)
		fmt.Printf("  Countries: %d\n", result.Countries)
		fmt.Printf("  Regions: %d\n", result.Regions)
		fmt.Printf("  Rows skipped: %d\n", result.Skipped)
		return nil
	},
}

func init() {
	loadPopulationCmd.Flags().BoolVar(&populationMillions, "millions", false, "Treat source figures as millions of inhabitants")
	loadCmd.AddCommand(loadRosterCmd)
	loadCmd.AddCommand(loadPopulationCmd)
}

// --- scrape command ---

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape configured list pages for politician articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Sources.Scrape) == 0 {
			return fmt.Errorf("no scrape sources configured under sources.scrape")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result := scrape.NewScraper(db, cfg).ScrapeSources()

		fmt.Println("Scrape complete:")
		fmt.Printf("  Sources visited: %d\n", result.Sources)
		fmt.Printf("  Links found: %d\n", result.Found)
		fmt.Printf("  New entries: %d\n", result.New)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		fmt.Printf("  Sources failed: %d\n", result.Failed)
		return nil
	},
}

// --- fetch commands ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch article data from the wiki APIs",
}

var fetchPagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Fetch page metadata for roster titles",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		client := pages.NewClient(cfg.Wikipedia.APIURL, cfg.Wikipedia.UserAgent)
		result := pages.NewFetcher(db, client, cfg.Wikipedia.BatchSize).FetchMissingInfo()

		fmt.Println("Page metadata fetch complete:")
		fmt.Printf("  Requested: %d\n", result.Requested)
		fmt.Printf("  Fetched: %d\n", result.Fetched)
		fmt.Printf("  Missing on wiki: %d\n", result.Missing)
		fmt.Printf("  Failed: %d\n", result.Failed)
		return nil
	},
}

var fetchQualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Fetch quality predictions for stored pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client := quality.NewClient(
			cfg.Quality.APIURL,
			cfg.Quality.Model,
			cfg.Wikipedia.UserAgent,
			cfg.QualityAccessToken(),
		)
		result := quality.NewFetcher(db, client, cfg.Quality.BatchSize).FetchMissingScores(ctx)

		fmt.Println("Quality fetch complete:")
		fmt.Printf("  Pending: %d\n", result.Pending)
		fmt.Printf("  Scored: %d\n", result.Scored)
		fmt.Printf("  Failed: %d\n", result.Failed)
		fmt.Printf("  Batches committed: %d\n", result.Batches)
		if result.Interrupted {
			fmt.Println("\nInterrupted. Completed batches are saved; run again to resume.")
		}
		return nil
	},
}

func init() {
	fetchCmd.AddCommand(fetchPagesCmd)
	fetchCmd.AddCommand(fetchQualityCmd)
}

// --- watch command ---

var (
	watchLimit      int
	watchInvalidate bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Check stored pages against their history feeds for new revisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		watcher := watch.NewWatcher(db, cfg)
		result := watcher.CheckStale(watchLimit)

		fmt.Println("Staleness check complete:")
		fmt.Printf("  Checked: %d\n", result.Checked)
		fmt.Printf("  Fresh: %d\n", result.Fresh)
		fmt.Printf("  Stale: %d\n", len(result.Stale))
		fmt.Printf("  Failed: %d\n", result.Failed)

		for _, s := range result.Stale {
			fmt.Printf("  %s: revision %d is now %d\n", s.PageTitle, s.StoredRev, s.LatestRev)
		}

		if watchInvalidate && len(result.Stale) > 0 {
			n := watcher.Invalidate(result.Stale)
			fmt.Printf("\nInvalidated %d pages; run 'policap fetch quality' to rescore them.\n", n)
		} else if len(result.Stale) > 0 {
			fmt.Println("\nRun again with --invalidate to queue them for rescoring.")
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchLimit, "limit", 0, "Check at most this many pages (0 checks all)")
	watchCmd.Flags().BoolVar(&watchInvalidate, "invalidate", false, "Queue stale pages for rescoring")
}

// --- report command ---

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute coverage metrics and write the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rep, err := report.NewComposer(db, cfg).ComposeReport()
		if err != nil {
			return err
		}

		dataDir := cfg.GetDataDir()
		fmt.Printf("Report #%d composed: %d countries, %d articles, %d unmatched geographies\n",
			rep.ID, rep.CountryCount, rep.ArticleCount, rep.UnmatchedCount)
		fmt.Println("\nArtifacts:")
		fmt.Printf("  %s\n", filepath.Join(dataDir, report.ReportFile))
		fmt.Printf("  %s\n", filepath.Join(dataDir, report.DatasetFile))
		fmt.Printf("  %s\n", filepath.Join(dataDir, report.NoMatchFile))
		fmt.Println("\nRun 'policap serve' to browse reports.")
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: load -> fetch -> score -> report",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := pipeline.New(cfg, db)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(ctx)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !dryRun {
			fmt.Println("\nPipeline complete! Run 'policap serve' to view the report.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if !cmd.Flags().Changed("port") && cfg.Server.Port > 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "policap.db")
	return database.Open(dbPath)
}
