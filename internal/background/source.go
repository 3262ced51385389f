// Package background cross-checks a candidate's claimed history against a
// public secondary source and flags discrepancies.
package background

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/fetch"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// SourceRecord is what the secondary source says about a person.
type SourceRecord struct {
	Source       string   `json:"source"`
	URL          string   `json:"url"`
	Name         string   `json:"name,omitempty"`
	Login        string   `json:"login,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	Company      string   `json:"company,omitempty"`
	Location     string   `json:"location,omitempty"`
	Repositories []string `json:"repositories,omitempty"`
}

// Source looks up public data for a candidate.
type Source interface {
	Lookup(ctx context.Context, c types.Candidate) (*SourceRecord, error)
}

// UnavailableError means no verification data could be obtained for a
// candidate. It never fails the stage.
type UnavailableError struct {
	Reason string
	Cause  error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// DefaultGitHubBaseURL is where GitHub user pages are served.
const DefaultGitHubBaseURL = "https://github.com"

// GitHubSource reads the public GitHub profile page linked from a candidate.
type GitHubSource struct {
	baseURL string
	fetcher *fetch.Fetcher
}

// NewGitHubSource creates a GitHubSource. useBrowser enables headless Chrome
// rendering when the plain page is too thin.
func NewGitHubSource(client *http.Client, useBrowser bool, logger *zap.Logger) *GitHubSource {
	return &GitHubSource{
		baseURL: DefaultGitHubBaseURL,
		fetcher: fetch.New(fetch.Options{Client: client, UseBrowser: useBrowser, Logger: logger}),
	}
}

// WithBaseURL points the source at another host serving GitHub-shaped pages.
func (g *GitHubSource) WithBaseURL(baseURL string) *GitHubSource {
	g.baseURL = strings.TrimSuffix(baseURL, "/")
	return g
}

// Lookup fetches and parses the candidate's GitHub profile.
func (g *GitHubSource) Lookup(ctx context.Context, c types.Candidate) (*SourceRecord, error) {
	if strings.TrimSpace(c.GitHubURL) == "" {
		return nil, &UnavailableError{Reason: "no github profile linked"}
	}
	login, ok := GitHubLogin(c.GitHubURL)
	if !ok {
		return nil, &UnavailableError{Reason: "github link is not a user profile"}
	}

	profileURL := g.baseURL + "/" + login
	result, err := g.fetcher.Page(ctx, profileURL)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) && fetchErr.NotFound() {
			return nil, &UnavailableError{Reason: "github profile not found"}
		}
		return nil, &UnavailableError{Reason: "github profile could not be fetched", Cause: err}
	}

	record, err := ParseGitHubProfile(result.HTML)
	if err != nil {
		return nil, &UnavailableError{Reason: "github profile could not be parsed", Cause: err}
	}
	record.URL = DefaultGitHubBaseURL + "/" + login
	if record.Name == "" && record.Login == "" {
		return nil, &UnavailableError{Reason: "github profile has no public details"}
	}
	return record, nil
}

// GitHubLogin returns the user name from a github.com profile link.
func GitHubLogin(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if fetch.DetectPlatform(link) != fetch.PlatformGitHub {
		return "", false
	}
	if i := strings.Index(link, "://"); i >= 0 {
		link = link[i+3:]
	}
	parts := strings.Split(link, "/")
	if len(parts) < 2 {
		return "", false
	}
	login := parts[1]
	if i := strings.IndexAny(login, "?#"); i >= 0 {
		login = login[:i]
	}
	if login == "" {
		return "", false
	}
	return login, true
}

// ParseGitHubProfile extracts the vcard and pinned repositories from a GitHub
// user page.
func ParseGitHubProfile(html string) (*SourceRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	text := func(selector string) string {
		return strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
	}

	record := &SourceRecord{
		Source:   "github",
		Name:     text(".vcard-fullname, span.p-name"),
		Login:    text(".vcard-username, span.p-nickname"),
		Bio:      text(".user-profile-bio, div.p-note"),
		Company:  text("[itemprop='worksFor'] .p-org, span.p-org"),
		Location: text("[itemprop='homeLocation'] .p-label, span.p-label"),
	}
	doc.Find(".pinned-item-list-item .repo, .pinned-item-list-item-content span.repo").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			record.Repositories = append(record.Repositories, name)
		}
	})
	return record, nil
}
