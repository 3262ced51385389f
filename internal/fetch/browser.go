package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// MinContentLength is the shortest extracted text taken as a complete
// server-rendered page.
const MinContentLength = 500

// NeedsRendering reports whether text is too short to be the real page.
func NeedsRendering(text string) bool {
	return len(strings.TrimSpace(text)) < MinContentLength
}

// chromeRenderer renders pages in headless Chrome, which must be installed.
func chromeRenderer(timeout time.Duration, userAgent string, logger *zap.Logger) RenderFunc {
	return func(ctx context.Context, link string) (string, error) {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(userAgent),
		)...)
		defer cancelAlloc()

		tabCtx, cancelTab := chromedp.NewContext(allocCtx)
		defer cancelTab()
		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
		defer cancelTimeout()

		var html string
		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(link),
			chromedp.WaitReady("body"),
			chromedp.Sleep(2*time.Second),
			chromedp.OuterHTML("html", &html),
		); err != nil {
			return "", fmt.Errorf("render %s: %w", link, err)
		}

		logger.Debug("rendered page", zap.String("url", link), zap.Int("bytes", len(html)))
		return html, nil
	}
}
