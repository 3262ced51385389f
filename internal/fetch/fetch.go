// Package fetch retrieves public web pages and reduces them to text. The
// background verification stage uses it to read secondary profile sources.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; TalentAgent/1.0)"

	maxBodyBytes = 5 << 20
)

// Result is one fetched page.
type Result struct {
	URL         string
	HTML        string
	Text        string
	ContentType string
	StatusCode  int
	Rendered    bool // HTML came from the headless browser
}

// Error describes a failed fetch. StatusCode is zero when no response arrived.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// NotFound reports whether the page does not exist.
func (e *Error) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

// RenderFunc returns the HTML of url after client-side scripts have run.
type RenderFunc func(ctx context.Context, url string) (string, error)

// Options configures a Fetcher. Zero values select the defaults.
type Options struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// UseBrowser re-renders pages whose text is too thin to be a
	// server-rendered profile.
	UseBrowser bool
	// Render replaces the headless Chrome renderer.
	Render RenderFunc
	Logger *zap.Logger
}

// Fetcher downloads pages and extracts their profile text.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	headers    map[string]string
	useBrowser bool
	render     RenderFunc
	logger     *zap.Logger
}

// New builds a Fetcher from opts.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	f := &Fetcher{
		client:     opts.Client,
		userAgent:  opts.UserAgent,
		headers:    opts.Headers,
		useBrowser: opts.UseBrowser,
		render:     opts.Render,
		logger:     opts.Logger,
	}
	if f.render == nil {
		f.render = chromeRenderer(opts.Timeout, opts.UserAgent, opts.Logger)
	}
	return f
}

// Get downloads link. A non-200 response returns both the result and an *Error.
func (f *Fetcher) Get(ctx context.Context, link string) (*Result, error) {
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &Error{URL: link, Message: "invalid URL", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, &Error{URL: link, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: link, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{URL: link, StatusCode: resp.StatusCode, Message: "failed to read body", Cause: err}
	}

	res := &Result{
		URL:         link,
		HTML:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}
	if resp.StatusCode != http.StatusOK {
		return res, &Error{URL: link, StatusCode: resp.StatusCode, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return res, nil
}

// Page downloads link and fills Result.Text using the platform's selectors.
// With UseBrowser set, thin pages are rendered again and the richer text wins;
// a rendering failure keeps the plain result.
func (f *Fetcher) Page(ctx context.Context, link string) (*Result, error) {
	res, err := f.Get(ctx, link)
	if err != nil {
		return res, err
	}

	platform := DetectPlatform(link)
	if res.Text, err = MainText(res.HTML, platform); err != nil {
		return res, &Error{URL: link, StatusCode: res.StatusCode, Message: "failed to extract text", Cause: err}
	}
	if !f.useBrowser || !NeedsRendering(res.Text) {
		return res, nil
	}

	f.logger.Debug("page text is thin, rendering in browser",
		zap.String("url", link), zap.Int("chars", len(res.Text)))
	html, err := f.render(ctx, link)
	if err != nil {
		f.logger.Warn("browser rendering failed", zap.String("url", link), zap.Error(err))
		return res, nil
	}
	if text, err := MainText(html, platform); err == nil && len(text) > len(res.Text) {
		res.HTML, res.Text, res.Rendered = html, text, true
	}
	return res, nil
}

// MainText strips navigation and platform noise from html and returns the
// text of the first matching content element, or of the body.
func MainText(html string, platform Platform) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript, .ad, .cookie-banner, .popup").Remove()
	doc.Find(strings.Join(NoiseSelectors(platform), ", ")).Remove()

	content := doc.Find("body")
	for _, sel := range ContentSelectors(platform) {
		if found := doc.Find(sel); found.Length() > 0 {
			content = found.First()
			break
		}
	}
	return compactLines(content.Text()), nil
}

// compactLines trims every line and drops blank ones.
func compactLines(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
