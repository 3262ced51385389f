package types

import "encoding/json"

// SearchResult is one ranked snippet returned by the web search service.
type SearchResult struct {
	Link       string   `json:"link"`
	Title      string   `json:"title"`
	Snippet    string   `json:"snippet"`
	Highlights []string `json:"highlights,omitempty"`
	Query      string   `json:"query,omitempty"`
}

// ScreenedCandidate is a search result the screener judged relevant.
type ScreenedCandidate struct {
	Link      string `json:"link"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Relevance int    `json:"relevance"`
	Rationale string `json:"rationale"`
	Caveat    string `json:"caveat,omitempty"`
}

// RawProfile is an unnormalized profile as returned by an enrichment provider.
// Source names the provider so the structurer knows what shape Data has.
// Nothing downstream of structuring accepts this type.
type RawProfile struct {
	Source string          `json:"source"`
	URL    string          `json:"url,omitempty"`
	Data   json.RawMessage `json:"data"`
}
