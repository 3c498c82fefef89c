package fetch

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/cv-adaptor/internal/logging"
)

// ErrNoContent is returned when a page yields no readable text.
var ErrNoContent = errors.New("no readable content")

// JobPosting is the text of a job posting page.
type JobPosting struct {
	URL      string   `json:"url"`
	Platform Platform `json:"platform"`
	Text     string   `json:"text"`
	Rendered bool     `json:"rendered"`
}

// JobOptions configures JobText.
type JobOptions struct {
	Fetch *Options
	// Render is used when the static page is too short to be the posting.
	// Nil disables the browser fallback.
	Render Renderer
	Logger *zap.Logger
}

// JobText fetches a job posting and extracts its text. Pages whose static
// text is shorter than MinContentLength are re-rendered when a Renderer is
// configured; the longer of the two extractions wins.
func JobText(ctx context.Context, urlStr string, opts JobOptions) (*JobPosting, error) {
	logger := logging.OrNop(opts.Logger).With(zap.String("url", urlStr))
	platform := DetectPlatform(urlStr)
	content := PlatformContentSelectors(platform)
	noise := PlatformNoiseSelectors(platform)

	posting := &JobPosting{URL: urlStr, Platform: platform}

	res, fetchErr := URL(ctx, urlStr, opts.Fetch)
	if fetchErr == nil {
		text, err := ExtractMainText(res.HTML, content, noise...)
		if err != nil {
			return nil, &Error{URL: urlStr, Message: "failed to extract text", Cause: err}
		}
		posting.Text = text
	} else {
		if errors.Is(fetchErr, ErrInvalidURL) {
			return nil, fetchErr
		}
		logger.Warn("static fetch failed", zap.Error(fetchErr))
	}

	if opts.Render != nil && ShouldUseBrowser(posting.Text) {
		logger.Info("falling back to browser rendering",
			zap.String("platform", string(platform)),
			zap.Int("static_length", len(posting.Text)))
		html, err := opts.Render(ctx, urlStr)
		if err != nil {
			logger.Warn("browser rendering failed", zap.Error(err))
		} else if text, err := ExtractMainText(html, content, noise...); err == nil && len(text) > len(posting.Text) {
			posting.Text = text
			posting.Rendered = true
		}
	}

	if strings.TrimSpace(posting.Text) == "" {
		if fetchErr != nil {
			return nil, fetchErr
		}
		return nil, &Error{URL: urlStr, Message: "page has no text", Cause: ErrNoContent}
	}
	return posting, nil
}
