// Package search runs web search queries and collects result snippets.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/talent-pipeline/internal/types"
)

// batchConcurrency caps how many queries run at once.
const batchConcurrency = 3

// Searcher executes one web search query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error)
}

// BatchError reports that every query in a batch failed.
type BatchError struct {
	Queries int
	First   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("all %d search queries failed: %v", e.Queries, e.First)
}

func (e *BatchError) Unwrap() error {
	return e.First
}

// RunBatch runs queries concurrently and returns their results in query order,
// de-duplicated by link. Failed queries are logged and skipped; results a
// query returned alongside its error are kept. An error is returned only when
// every query failed without results.
func RunBatch(ctx context.Context, s Searcher, queries []string, limit int, logger *zap.Logger) ([]types.SearchResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(queries) == 0 {
		return nil, nil
	}

	perQuery := make([][]types.SearchResult, len(queries))
	errs := make([]error, len(queries))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			results, err := s.Search(gCtx, q, limit)
			// A failed query never cancels its siblings.
			errs[i] = err
			for j := range results {
				results[j].Query = q
			}
			perQuery[i] = results
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		if n := len(perQuery[i]); n > 0 {
			logger.Warn("search query returned partial results",
				zap.String("query", queries[i]), zap.Int("results", n), zap.Error(err))
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = err
		}
		logger.Warn("search query failed", zap.String("query", queries[i]), zap.Error(err))
	}
	if failed == len(queries) {
		return nil, &BatchError{Queries: len(queries), First: firstErr}
	}

	seen := make(map[string]bool)
	var merged []types.SearchResult
	for _, results := range perQuery {
		for _, r := range results {
			if r.Link == "" || seen[r.Link] {
				continue
			}
			seen[r.Link] = true
			merged = append(merged, r)
		}
	}

	logger.Info("search batch finished",
		zap.Int("queries", len(queries)),
		zap.Int("failed", failed),
		zap.Int("results", len(merged)))
	return merged, nil
}
