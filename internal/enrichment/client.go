package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// DefaultTimeout bounds one enrichment batch. Scraping many profiles is slow.
const DefaultTimeout = 5 * time.Minute

// Source tags raw profiles returned by this client.
const Source = "linkedin-scraper"

// Enricher resolves profile links to full profiles.
type Enricher interface {
	Enrich(ctx context.Context, links []string) ([]types.RawProfile, error)
}

// Config configures Client.
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Client calls the enrichment service with one batch request.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client. A nil logger discards output.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        cfg.URL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type enrichRequest struct {
	ProfileURLs []string `json:"profileUrls"`
}

// Enrich posts links to the service and returns one RawProfile per returned
// element. A missing, non-array or empty response yields no profiles and no
// error; transport and non-2xx failures are returned classified.
func (c *Client) Enrich(ctx context.Context, links []string) ([]types.RawProfile, error) {
	if len(links) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(enrichRequest{ProfileURLs: links})
	if err != nil {
		return nil, fmt.Errorf("failed to encode enrichment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create enrichment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, llm.ClassifyUpstream(fmt.Errorf("enrichment request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.ClassifyUpstream(fmt.Errorf("failed to read enrichment response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, llm.StatusError(resp.StatusCode,
			fmt.Errorf("enrichment service returned %s: %s", resp.Status, truncate(string(data), 200)))
	}

	profiles := decodeProfiles(data, links)
	c.logger.Info("enrichment finished",
		zap.Int("requested", len(links)),
		zap.Int("returned", len(profiles)),
		zap.Duration("elapsed", time.Since(started)))
	return profiles, nil
}

// decodeProfiles accepts either a bare JSON array or an object wrapping it in
// "profiles", "data" or "results". Anything else is zero profiles.
func decodeProfiles(data []byte, links []string) []types.RawProfile {
	items, err := profileArray(data)
	if err != nil || len(items) == 0 {
		return nil
	}

	profiles := make([]types.RawProfile, 0, len(items))
	for i, item := range items {
		if isNull(item) {
			continue
		}
		p := types.RawProfile{Source: Source, Data: item}
		p.URL = profileURL(item)
		if p.URL == "" && i < len(links) && len(items) == len(links) {
			p.URL = links[i]
		}
		profiles = append(profiles, p)
	}
	return profiles
}

func profileArray(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}

	var items []json.RawMessage
	if trimmed[0] == '[' {
		err := json.Unmarshal(trimmed, &items)
		return items, err
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	for _, key := range []string{"profiles", "data", "results"} {
		if raw, ok := wrapper[key]; ok {
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, nil
			}
		}
	}
	return nil, errors.New("no profile array in response")
}

func profileURL(item json.RawMessage) string {
	var fields map[string]any
	if err := json.Unmarshal(item, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"linkedinUrl", "profileUrl", "url", "inputUrl"} {
		if s, ok := fields[key].(string); ok && s != "" {
			if link, ok := CanonicalProfileLink(s); ok {
				return link
			}
			return s
		}
	}
	return ""
}

func isNull(item json.RawMessage) bool {
	return strings.TrimSpace(string(item)) == "null"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
