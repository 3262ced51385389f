// Package config provides configuration loading and validation for the
// service and the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Defaults for the pipeline tunables.
const (
	DefaultMaxQueries        = 5
	DefaultResultsPerQuery   = 10
	DefaultMaxProfiles       = 20
	DefaultEnrichmentTimeout = 5 * time.Minute
	DefaultWorkers           = 2
	DefaultQueueSize         = 64
	DefaultAddr              = ":8080"
	DefaultDatabaseURL       = "sqlite://data/talent.db"
)

// Duration is a time.Duration that reads "90s" / "5m" strings from JSON.
type Duration time.Duration

// UnmarshalJSON accepts a Go duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds")
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalJSON writes the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config is the service configuration. Secrets only come from the
// environment; everything else may also be set in a JSON file.
type Config struct {
	// Server
	Addr string `json:"addr,omitempty"`

	// Storage
	DatabaseURL string `json:"database_url,omitempty"`

	// Pipeline tunables
	MaxQueries        int      `json:"max_queries,omitempty"`
	ResultsPerQuery   int      `json:"results_per_query,omitempty"`
	MaxProfiles       int      `json:"max_profiles,omitempty"`
	EnrichmentTimeout Duration `json:"enrichment_timeout,omitempty"`
	VerifyUseBrowser  bool     `json:"verify_use_browser,omitempty"`

	// Models overrides the generation model per tier ("lite", "standard",
	// "advanced"). File only.
	Models map[string]string `json:"models,omitempty"`

	// Job queue
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`

	Verbose bool `json:"verbose,omitempty"`

	Credentials Credentials `json:"-"`
}

// Defaults returns a Config with every tunable at its default.
func Defaults() Config {
	return Config{
		Addr:              DefaultAddr,
		DatabaseURL:       DefaultDatabaseURL,
		MaxQueries:        DefaultMaxQueries,
		ResultsPerQuery:   DefaultResultsPerQuery,
		MaxProfiles:       DefaultMaxProfiles,
		EnrichmentTimeout: Duration(DefaultEnrichmentTimeout),
		Workers:           DefaultWorkers,
		QueueSize:         DefaultQueueSize,
	}
}

// Load builds the configuration: environment values (falling back to
// Defaults) overlaid by the JSON file at path when path is not empty.
func Load(path string) (*Config, error) {
	env, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return env, env.Validate()
	}

	fileCfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	merged := fileCfg.MergeWithDefaults(*env)
	merged.Credentials = env.Credentials
	merged.VerifyUseBrowser = fileCfg.VerifyUseBrowser || env.VerifyUseBrowser
	merged.Verbose = fileCfg.Verbose || env.Verbose
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// FromEnv reads the configuration from environment variables.
func FromEnv() (*Config, error) {
	cfg := Defaults()
	cfg.Credentials = CredentialsFromEnv()

	cfg.Addr = getEnvString("ADDR", cfg.Addr)
	cfg.DatabaseURL = getEnvString("DATABASE_URL", cfg.DatabaseURL)

	var err error
	if cfg.MaxQueries, err = getEnvInt("PIPELINE_MAX_QUERIES", cfg.MaxQueries); err != nil {
		return nil, err
	}
	if cfg.ResultsPerQuery, err = getEnvInt("PIPELINE_RESULTS_PER_QUERY", cfg.ResultsPerQuery); err != nil {
		return nil, err
	}
	if cfg.MaxProfiles, err = getEnvInt("PIPELINE_MAX_PROFILES", cfg.MaxProfiles); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvInt("JOB_WORKERS", cfg.Workers); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = getEnvInt("JOB_QUEUE_SIZE", cfg.QueueSize); err != nil {
		return nil, err
	}
	if v := os.Getenv("ENRICHMENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ENRICHMENT_TIMEOUT: %w", err)
		}
		cfg.EnrichmentTimeout = Duration(d)
	}
	if v := os.Getenv("VERIFY_USE_BROWSER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid VERIFY_USE_BROWSER: %w", err)
		}
		cfg.VerifyUseBrowser = b
	}

	return &cfg, nil
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values. Credentials are
// checked separately, at job start.
func (c *Config) Validate() error {
	if c.MaxQueries < 0 {
		return fmt.Errorf("config error: 'max_queries' must be non-negative")
	}
	if c.ResultsPerQuery < 0 || c.ResultsPerQuery > 100 {
		return fmt.Errorf("config error: 'results_per_query' must be between 0 and 100")
	}
	if c.MaxProfiles < 0 {
		return fmt.Errorf("config error: 'max_profiles' must be non-negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config error: 'workers' must be non-negative")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("config error: 'queue_size' must be non-negative")
	}
	if c.EnrichmentTimeout < 0 {
		return fmt.Errorf("config error: 'enrichment_timeout' must be non-negative")
	}
	if c.DatabaseURL != "" && !strings.Contains(c.DatabaseURL, ":") {
		return fmt.Errorf("config error: 'database_url' must be a URL")
	}
	for tier, model := range c.Models {
		switch tier {
		case "lite", "standard", "advanced":
		default:
			return fmt.Errorf("config error: unknown model tier %q in 'models'", tier)
		}
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("config error: 'models.%s' is empty", tier)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Addr == "" {
		result.Addr = defaults.Addr
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.Models == nil {
		result.Models = defaults.Models
	}

	// Int fields: use default if zero
	if result.MaxQueries == 0 {
		result.MaxQueries = defaults.MaxQueries
	}
	if result.ResultsPerQuery == 0 {
		result.ResultsPerQuery = defaults.ResultsPerQuery
	}
	if result.MaxProfiles == 0 {
		result.MaxProfiles = defaults.MaxProfiles
	}
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.QueueSize == 0 {
		result.QueueSize = defaults.QueueSize
	}
	if result.EnrichmentTimeout == 0 {
		result.EnrichmentTimeout = defaults.EnrichmentTimeout
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge

	return result
}

func getEnvString(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
