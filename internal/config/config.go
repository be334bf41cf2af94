package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources   Sources   `yaml:"sources"`
	Wikipedia Wikipedia `yaml:"wikipedia"`
	Quality   Quality   `yaml:"quality"`
	Report    Report    `yaml:"report"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Sources struct {
	Roster             string         `yaml:"roster"`
	Population         string         `yaml:"population"`
	PopulationMillions bool           `yaml:"population_millions"`
	Scrape             []ScrapeSource `yaml:"scrape"`
}

type ScrapeSource struct {
	Country string `yaml:"country"`
	URL     string `yaml:"url"`
}

type Wikipedia struct {
	APIURL    string `yaml:"api_url"`
	UserAgent string `yaml:"user_agent"`
	BatchSize int    `yaml:"batch_size"`
}

type Quality struct {
	APIURL         string `yaml:"api_url"`
	Model          string `yaml:"model"`
	BatchSize      int    `yaml:"batch_size"`
	AccessTokenEnv string `yaml:"access_token_env"`
}

type Report struct {
	PerPopulation int64    `yaml:"per_population"`
	HighQuality   []string `yaml:"high_quality"`
	TopN          int      `yaml:"top_n"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for policap.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "policap")
}

// DataDir returns the XDG data directory for policap.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "policap")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/policap/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'policap init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			Roster:             "data/politicians_by_country.csv",
			Population:         "data/population_by_country.csv",
			PopulationMillions: true,
		},
		Wikipedia: Wikipedia{
			APIURL:    "https://en.wikipedia.org/w/api.php",
			UserAgent: "policap/0.1 (article coverage research)",
			BatchSize: 50,
		},
		Quality: Quality{
			APIURL:         "https://api.wikimedia.org/service/lw/inference/v1/models",
			Model:          "enwiki-articlequality",
			BatchSize:      50,
			AccessTokenEnv: "WIKIMEDIA_ACCESS_TOKEN",
		},
		Report: Report{
			PerPopulation: 1_000_000,
			HighQuality:   []string{"FA", "GA"},
			TopN:          10,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects values the pipeline cannot run with.
func (c *Config) validate() error {
	if c.Wikipedia.BatchSize < 1 || c.Wikipedia.BatchSize > 50 {
		return fmt.Errorf("wikipedia.batch_size must be between 1 and 50, got %d", c.Wikipedia.BatchSize)
	}
	if c.Quality.BatchSize < 1 {
		return fmt.Errorf("quality.batch_size must be at least 1, got %d", c.Quality.BatchSize)
	}
	if c.Report.PerPopulation < 1 {
		return fmt.Errorf("report.per_population must be at least 1, got %d", c.Report.PerPopulation)
	}
	for _, s := range c.Sources.Scrape {
		if s.Country == "" || s.URL == "" {
			return fmt.Errorf("scrape sources need both country and url, got country=%q url=%q", s.Country, s.URL)
		}
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// QualityAccessToken reads the inference API token from the configured
// environment variable. Empty means anonymous requests.
func (c *Config) QualityAccessToken() string {
	if c.Quality.AccessTokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Quality.AccessTokenEnv)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
