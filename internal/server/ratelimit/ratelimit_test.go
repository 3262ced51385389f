package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFrozenLimiter returns a limiter whose clock only moves when advance is called.
func newFrozenLimiter(t *testing.T, config *Config) (*Limiter, func(time.Duration)) {
	t.Helper()
	limiter := NewLimiter(config)
	t.Cleanup(limiter.Stop)

	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	limiter.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(d)
	}
	return limiter, advance
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newFrozenLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	})

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
		assert.Equal(t, 9-i, info.Remaining)
	}

	allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
	assert.True(t, info.ResetTime.After(limiter.now()))
}

func TestLimiter_Refill(t *testing.T) {
	limiter, advance := newFrozenLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  60,
		DefaultWindow: time.Minute,
	})

	for i := 0; i < 60; i++ {
		allowed, _ := limiter.Allow("c", "/test", "GET")
		require.True(t, allowed)
	}
	allowed, info := limiter.Allow("c", "/test", "GET")
	require.False(t, allowed)
	assert.InDelta(t, time.Second.Seconds(), info.RetryAfter.Seconds(), 0.01)

	advance(time.Second)
	allowed, _ = limiter.Allow("c", "/test", "GET")
	assert.True(t, allowed)

	allowed, _ = limiter.Allow("c", "/test", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Whitelist(t *testing.T) {
	limiter, _ := newFrozenLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"127.0.0.1": true},
	})

	for i := 0; i < 100; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
		require.True(t, allowed)
		assert.Equal(t, 0, info.Limit)
	}
}

func TestLimiter_Blacklist(t *testing.T) {
	limiter, _ := newFrozenLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Blacklist:     map[string]bool{"192.168.1.1": true},
	})

	allowed, _ := limiter.Allow("192.168.1.1", "/test", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter, _ := newFrozenLimiter(t, &Config{Enabled: false})

	for i := 0; i < 100; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
		require.True(t, allowed)
		assert.Equal(t, 0, info.Limit)
	}
}

func TestLimiter_JobSubmissionIsStrict(t *testing.T) {
	limiter, _ := newFrozenLimiter(t, &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})

	for i := 0; i < 2; i++ {
		allowed, info := limiter.Allow("10.0.0.1", "/jobs", "POST")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
	}
	allowed, info := limiter.Allow("10.0.0.1", "/jobs", "POST")
	assert.False(t, allowed)
	assert.Greater(t, info.RetryAfter, time.Minute)

	// Polling is unaffected by an exhausted submission bucket.
	allowed, info = limiter.Allow("10.0.0.1", "/jobs/abc", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 600, info.Limit)

	// Other clients have their own buckets.
	allowed, _ = limiter.Allow("10.0.0.2", "/jobs", "POST")
	assert.True(t, allowed)
}

func TestLimiter_HealthIsUnlimited(t *testing.T) {
	limiter, _ := newFrozenLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
	})

	for i := 0; i < 20; i++ {
		allowed, _ := limiter.Allow("127.0.0.1", "/health", "GET")
		require.True(t, allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter, _ := newFrozenLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
	})

	var wg sync.WaitGroup
	var allowedCount atomic.Int64
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow("127.0.0.1", "/test", "GET"); allowed {
				allowedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), allowedCount.Load())
}

func TestLimiter_CleanupBuckets(t *testing.T) {
	limiter, advance := newFrozenLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
	})

	for i := 0; i < 10; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/test", "GET")
	}
	advance(2 * time.Hour)
	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/test", "GET")
	}

	limiter.cleanupBuckets(limiter.now().Add(-time.Hour))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.buckets, 5)
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()

	allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)
}

func TestLimiter_StopTwice(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Second, CleanupInterval: time.Minute})
	limiter.Stop()
	assert.NotPanics(t, limiter.Stop)
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		name      string
		path      string
		method    string
		wantLimit int
		wantNil   bool
	}{
		{name: "exact submit", path: "/jobs", method: "POST", wantLimit: 10},
		{name: "prefix poll", path: "/jobs/123", method: "GET", wantLimit: 600},
		{name: "event stream", path: "/jobs/123/events", method: "GET", wantLimit: 600},
		{name: "candidate", path: "/candidates/c1", method: "GET", wantLimit: 300},
		{name: "health", path: "/health", method: "GET", wantLimit: 0},
		{name: "unknown", path: "/other", method: "GET", wantNil: true},
		{name: "method mismatch", path: "/jobs", method: "DELETE", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvEnabled, "true")
	t.Setenv(EnvDefaultLimit, "50")
	t.Setenv(EnvDefaultWindow, "30s")
	t.Setenv(EnvJobsPerHour, "4")
	t.Setenv(EnvWhitelist, "10.0.0.1, 10.0.0.2")
	t.Setenv(EnvBlacklist, "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 50, cfg.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.DefaultWindow)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
	assert.True(t, cfg.Whitelist["10.0.0.2"])
	assert.Empty(t, cfg.Blacklist)

	submit := MatchEndpoint("/jobs", "POST", cfg.EndpointConfigs)
	require.NotNil(t, submit)
	assert.Equal(t, 4, submit.Limit)
}

func TestFromEnv_Disabled(t *testing.T) {
	t.Setenv(EnvEnabled, "false")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{EnvEnabled, "maybe"},
		{EnvDefaultLimit, "lots"},
		{EnvDefaultLimit, "-1"},
		{EnvDefaultWindow, "forever"},
		{EnvCleanupInterval, "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg, err := FromEnv()
			assert.Nil(t, cfg)
			assert.ErrorContains(t, err, tt.key)
		})
	}
}
