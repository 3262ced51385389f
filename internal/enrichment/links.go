// Package enrichment extracts profile links from screened candidates and
// resolves them to full profiles through the external enrichment service.
package enrichment

import (
	"regexp"
	"strings"

	"github.com/jonathan/talent-pipeline/internal/types"
)

// profileLinkPattern matches a LinkedIn public profile path, with an optional
// country subdomain, anywhere in a link.
var profileLinkPattern = regexp.MustCompile(`(?i)(?:[a-z]{2,3}\.)?linkedin\.com/in/([^/?#\s]+)`)

// ExtractProfileLinks returns the unique canonical profile links found in the
// screened candidates, in first-seen order. Links that are not LinkedIn
// profiles are dropped.
func ExtractProfileLinks(screened []types.ScreenedCandidate) []string {
	seen := make(map[string]bool)
	var links []string
	for _, c := range screened {
		link, ok := CanonicalProfileLink(c.Link)
		if !ok || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links
}

// CanonicalProfileLink rewrites any LinkedIn profile URL to
// https://www.linkedin.com/in/<slug>.
func CanonicalProfileLink(raw string) (string, bool) {
	m := profileLinkPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	slug := strings.ToLower(strings.TrimSpace(m[1]))
	if slug == "" {
		return "", false
	}
	return "https://www.linkedin.com/in/" + slug, true
}
