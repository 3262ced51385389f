package search

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractHighlights returns the distinct terms the search engine bolded in an
// HTML snippet, in order of appearance.
func ExtractHighlights(htmlSnippet string) []string {
	if strings.TrimSpace(htmlSnippet) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSnippet))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var terms []string
	doc.Find("b, strong, em").Each(func(_ int, s *goquery.Selection) {
		term := strings.Join(strings.Fields(s.Text()), " ")
		key := strings.ToLower(term)
		if term == "" || seen[key] {
			return
		}
		seen[key] = true
		terms = append(terms, term)
	})
	return terms
}
