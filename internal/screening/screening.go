// Package screening filters and ranks raw search results against a hiring
// requirement using the generation service.
package screening

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/prompts"
	"github.com/jonathan/talent-pipeline/internal/schemas"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// Result is the screened candidate pool.
type Result struct {
	Filtered []types.ScreenedCandidate `json:"filtered"`
	Summary  string                    `json:"summary,omitempty"`
}

// Screener judges search snippets with one model call per batch.
type Screener struct {
	client llm.Client
	policy llm.RetryPolicy
	logger *zap.Logger
}

// NewScreener creates a Screener. A nil logger discards output.
func NewScreener(client llm.Client, policy llm.RetryPolicy, logger *zap.Logger) *Screener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Screener{client: client, policy: policy, logger: logger}
}

type screenInput struct {
	Link       string   `json:"link"`
	Title      string   `json:"title"`
	Snippet    string   `json:"snippet"`
	Highlights []string `json:"highlights,omitempty"`
}

type screenResponse struct {
	Summary    string `json:"summary"`
	Candidates []struct {
		Link      string  `json:"link"`
		Title     string  `json:"title"`
		Snippet   string  `json:"snippet"`
		Relevance float64 `json:"relevance"`
		Rationale string  `json:"rationale"`
		Caveat    string  `json:"caveat"`
	} `json:"candidates"`
}

// Screen returns the results the model judged relevant, sorted by relevance.
// Entries whose link was not among the inputs are discarded and relevance is
// clamped to 0-100. A failed model call is returned as an error.
func (s *Screener) Screen(ctx context.Context, requirement string, results []types.SearchResult) (*Result, error) {
	if len(results) == 0 {
		return &Result{}, nil
	}

	inputs := make([]screenInput, len(results))
	known := make(map[string]types.SearchResult, len(results))
	for i, r := range results {
		inputs[i] = screenInput{Link: r.Link, Title: r.Title, Snippet: r.Snippet, Highlights: r.Highlights}
		known[r.Link] = r
	}
	payload, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode search results: %w", err)
	}

	prompt := prompts.Render(prompts.ScreenCandidates, map[string]string{
		"Requirement": requirement,
		"Results":     string(payload),
	})

	var resp screenResponse
	if err := llm.GenerateStructured(ctx, s.client, s.policy, llm.Request{
		Prompt: prompt,
		Tier:   llm.TierLite,
		Schema: schemas.Screening,
	}, &resp); err != nil {
		return nil, fmt.Errorf("screening failed: %w", err)
	}

	out := &Result{Summary: strings.TrimSpace(resp.Summary)}
	seen := make(map[string]bool)
	for _, c := range resp.Candidates {
		link := strings.TrimSpace(c.Link)
		src, ok := known[link]
		if link == "" || !ok {
			s.logger.Warn("screener returned unknown link", zap.String("link", link))
			continue
		}
		if seen[link] {
			continue
		}
		seen[link] = true

		sc := types.ScreenedCandidate{
			Link:      link,
			Title:     firstNonEmpty(c.Title, src.Title),
			Snippet:   firstNonEmpty(c.Snippet, src.Snippet),
			Relevance: ClampRelevance(c.Relevance),
			Rationale: strings.TrimSpace(c.Rationale),
			Caveat:    strings.TrimSpace(c.Caveat),
		}
		out.Filtered = append(out.Filtered, sc)
	}

	sort.SliceStable(out.Filtered, func(i, j int) bool {
		return out.Filtered[i].Relevance > out.Filtered[j].Relevance
	})

	s.logger.Info("screening finished",
		zap.Int("input", len(results)),
		zap.Int("kept", len(out.Filtered)))
	return out, nil
}

// ClampRelevance rounds v and bounds it to 0-100.
func ClampRelevance(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := int(math.Round(v))
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	}
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
