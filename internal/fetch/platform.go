package fetch

import (
	"net/url"
	"strings"
)

// Platform is a known public profile host.
type Platform string

const (
	PlatformGitHub   Platform = "github"
	PlatformLinkedIn Platform = "linkedin"
	PlatformUnknown  Platform = "unknown"
)

// selectors says where a platform keeps profile text and what to cut first.
type selectors struct {
	content []string
	noise   []string
}

var (
	genericContent = []string{"main", "article", ".content", "#content"}
	genericNoise   = []string{".cookie-consent", ".social-share", "form"}

	platformSelectors = map[Platform]selectors{
		PlatformGitHub: {
			content: []string{"[itemtype='http://schema.org/Person']", ".js-profile-editable-area", "main"},
			noise:   []string{".js-yearly-contributions", ".js-calendar-graph", ".footer"},
		},
		PlatformLinkedIn: {
			content: []string{".top-card-layout", "main"},
			noise:   []string{".join-form", ".authwall-join-form", ".contextual-sign-in-modal"},
		},
	}
)

// DetectPlatform identifies the profile host of link. Scheme-less links are
// read as https.
func DetectPlatform(link string) Platform {
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "github.com":
		return PlatformGitHub
	case host == "linkedin.com", strings.HasSuffix(host, ".linkedin.com"):
		return PlatformLinkedIn
	default:
		return PlatformUnknown
	}
}

// ContentSelectors lists the elements holding a platform's profile text, most
// specific first.
func ContentSelectors(p Platform) []string {
	if s, ok := platformSelectors[p]; ok {
		return s.content
	}
	return genericContent
}

// NoiseSelectors lists elements removed before text is extracted.
func NoiseSelectors(p Platform) []string {
	out := append([]string(nil), genericNoise...)
	return append(out, platformSelectors[p].noise...)
}
