package ratelimit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the budget for one method and path. A Path ending in "/"
// covers every route below it.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int // requests per Window; zero means unlimited
	Window time.Duration
	Burst  int // zero means Limit
}

// Environment variables read by FromEnv.
const (
	EnvEnabled         = "RATE_LIMIT_ENABLED"
	EnvDefaultLimit    = "RATE_LIMIT_DEFAULT_LIMIT"
	EnvDefaultWindow   = "RATE_LIMIT_DEFAULT_WINDOW"
	EnvCleanupInterval = "RATE_LIMIT_CLEANUP_INTERVAL"
	EnvJobsPerHour     = "RATE_LIMIT_JOBS_PER_HOUR"
	EnvWhitelist       = "RATE_LIMIT_WHITELIST"
	EnvBlacklist       = "RATE_LIMIT_BLACKLIST"
)

// FromEnv builds the limiter configuration from the RATE_LIMIT_* variables.
// Unset variables keep their defaults; malformed ones are reported by name.
func FromEnv() (*Config, error) {
	env := envReader{}

	enabled := env.boolean(EnvEnabled, true)
	if !enabled {
		return &Config{Enabled: false}, env.err
	}

	cfg := &Config{
		Enabled:         true,
		DefaultLimit:    env.integer(EnvDefaultLimit, 1000),
		DefaultWindow:   env.duration(EnvDefaultWindow, time.Minute),
		CleanupInterval: env.duration(EnvCleanupInterval, 5*time.Minute),
		Whitelist:       clientSet(os.Getenv(EnvWhitelist)),
		Blacklist:       clientSet(os.Getenv(EnvBlacklist)),
		EndpointConfigs: DefaultEndpointConfigs(),
	}

	if perHour := env.integer(EnvJobsPerHour, 0); perHour > 0 {
		for i := range cfg.EndpointConfigs {
			if cfg.EndpointConfigs[i].Method == "POST" && cfg.EndpointConfigs[i].Path == "/jobs" {
				cfg.EndpointConfigs[i].Limit = perHour
			}
		}
	}

	if env.err != nil {
		return nil, env.err
	}
	return cfg, nil
}

// DefaultEndpointConfigs returns the per-route budgets. A submission starts a
// whole pipeline run, so it gets the tightest one.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/jobs", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/jobs/", Method: "GET", Limit: 600, Window: time.Minute, Burst: 60},
		{Path: "/candidates/", Method: "GET", Limit: 300, Window: time.Minute, Burst: 30},
	}
}

// envReader keeps the first parse failure so FromEnv can report it once.
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (r *envReader) boolean(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *envReader) integer(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	if n < 0 {
		r.fail(key, v, fmt.Errorf("must not be negative"))
		return def
	}
	return n
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	if d <= 0 {
		r.fail(key, v, fmt.Errorf("must be positive"))
		return def
	}
	return d
}

// clientSet turns "a, b,c" into a lookup set of client ids.
func clientSet(list string) map[string]bool {
	set := map[string]bool{}
	for _, id := range strings.Split(list, ",") {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = true
		}
	}
	return set
}
