// Package querying turns a free-text hiring requirement into web search queries.
package querying

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/prompts"
	"github.com/jonathan/talent-pipeline/internal/schemas"
)

// SiteFilter restricts a query to public LinkedIn profile pages.
const SiteFilter = "site:linkedin.com/in"

// DefaultMaxQueries is used when the caller passes a non-positive max.
const DefaultMaxQueries = 5

// Generator asks the generation service for search queries.
type Generator struct {
	client llm.Client
	policy llm.RetryPolicy
	logger *zap.Logger
}

// NewGenerator creates a Generator. A nil logger discards output.
func NewGenerator(client llm.Client, policy llm.RetryPolicy, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, policy: policy, logger: logger}
}

type queriesResponse struct {
	Queries []string `json:"queries"`
}

// Generate returns at most maxQueries queries for requirement, each targeting
// LinkedIn profiles. When the model returns no usable query, a single query
// built from the requirement is used instead.
func (g *Generator) Generate(ctx context.Context, requirement string, maxQueries int) ([]string, error) {
	if maxQueries <= 0 {
		maxQueries = DefaultMaxQueries
	}

	prompt := prompts.Render(prompts.GenerateQueries, map[string]string{
		"Requirement": requirement,
		"MaxQueries":  strconv.Itoa(maxQueries),
	})

	var resp queriesResponse
	err := llm.GenerateStructured(ctx, g.client, g.policy, llm.Request{
		Prompt: prompt,
		Tier:   llm.TierLite,
		Schema: schemas.Queries,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("query generation failed: %w", err)
	}

	queries := Normalize(resp.Queries, maxQueries)
	if len(queries) == 0 {
		g.logger.Warn("model returned no queries, searching the requirement directly")
		queries = Normalize([]string{requirement}, 1)
	}
	return queries, nil
}

// Normalize trims, collapses whitespace, adds SiteFilter where missing,
// drops duplicates and caps the list at limit.
func Normalize(raw []string, limit int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(q), SiteFilter) {
			q = SiteFilter + " " + q
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}
