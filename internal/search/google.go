package search

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/types"
)

const (
	// pageSize is the most results the Custom Search API returns per request.
	pageSize = 10
	// maxResults is the deepest the API pages (start + num must stay <= 100).
	maxResults = 100
)

// GoogleSearcher queries the Google Programmable Search (Custom Search JSON) API.
type GoogleSearcher struct {
	svc *customsearch.Service
	cx  string
}

// NewGoogleSearcher creates a searcher for the given API key and engine id.
// Extra client options (endpoint, HTTP client) are passed through.
func NewGoogleSearcher(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*GoogleSearcher, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &GoogleSearcher{svc: svc, cx: cx}, nil
}

// Search returns up to limit results for query, paging 10 at a time.
func (g *GoogleSearcher) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		limit = pageSize
	}
	if limit > maxResults {
		limit = maxResults
	}

	var results []types.SearchResult
	for start := 1; start <= limit; start += pageSize {
		num := min(pageSize, limit-start+1)
		resp, err := g.svc.Cse.List().
			Cx(g.cx).
			Q(query).
			Num(int64(num)).
			Start(int64(start)).
			Context(ctx).
			Do()
		if err != nil {
			return results, llm.ClassifyUpstream(fmt.Errorf("search %q failed: %w", query, err))
		}

		for _, item := range resp.Items {
			results = append(results, types.SearchResult{
				Link:       item.Link,
				Title:      item.Title,
				Snippet:    item.Snippet,
				Highlights: ExtractHighlights(item.HtmlSnippet),
			})
		}
		if len(resp.Items) < num {
			break
		}
	}
	return results, nil
}
