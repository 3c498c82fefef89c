package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jonathan/cv-adaptor/internal/logging"
)

// MinContentLength is the minimum extracted text length to consider HTTP fetch successful.
// Shorter content indicates a JavaScript-rendered page.
const MinContentLength = 500

// DefaultBrowserTimeout bounds a headless browser render.
const DefaultBrowserTimeout = 30 * time.Second

// Renderer returns the rendered HTML of a page
type Renderer func(ctx context.Context, url string) (string, error)

// ShouldUseBrowser returns true if the extracted text is too short.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// NewBrowserRenderer returns a Renderer backed by headless Chrome.
// Requires Chrome/Chromium to be installed on the system.
func NewBrowserRenderer(timeout time.Duration, logger *zap.Logger) Renderer {
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}
	logger = logging.OrNop(logger)
	return func(ctx context.Context, url string) (string, error) {
		return renderWithBrowser(ctx, url, timeout, logger)
	}
}

func renderWithBrowser(ctx context.Context, url string, timeout time.Duration, logger *zap.Logger) (string, error) {
	logger.Debug("starting headless browser", zap.String("url", url))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(3*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// cookie banners; absence is fine
			_ = chromedp.Click(`button[id*="accept"], button[class*="accept"]`, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	logger.Debug("browser rendered page", zap.String("url", url), zap.Int("html_bytes", len(html)))
	return html, nil
}
