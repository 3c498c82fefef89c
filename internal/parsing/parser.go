// Package parsing turns raw CV and job posting text into structured records.
//
// Each document gets a bounded number of generation attempts. A failed attempt
// (transport error, missing JSON, schema violation) is retried with a notice
// describing the previous errors; when every attempt fails a minimal valid
// record is returned so the pipeline can continue.
package parsing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/cv-adaptor/internal/llm"
	"github.com/jonathan/cv-adaptor/internal/logging"
	"github.com/jonathan/cv-adaptor/internal/prompts"
	"github.com/jonathan/cv-adaptor/internal/schemas"
	"github.com/jonathan/cv-adaptor/internal/stepresult"
	"github.com/jonathan/cv-adaptor/internal/types"
)

// DefaultMaxAttempts is the number of generation attempts per document
const DefaultMaxAttempts = 3

// FallbackSummary is the summary placed on a CV that could not be parsed
const FallbackSummary = "Unable to fully parse CV. Please review the original document."

// FallbackJobTitle is the title placed on a job posting that could not be parsed
const FallbackJobTitle = "Position"

// Parser extracts structured records with bounded retry
type Parser struct {
	client      llm.Client
	logger      *zap.Logger
	maxAttempts int
}

// Option configures a Parser
type Option func(*Parser)

// WithMaxAttempts overrides the number of generation attempts
func WithMaxAttempts(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a parser backed by client
func NewParser(client llm.Client, opts ...Option) *Parser {
	p := &Parser{client: client, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.StepLogger(p.logger, "parse_documents", "", client.Model(llm.TierStandard))
	return p
}

// ParseCV extracts a CandidateProfile from CV text
func (p *Parser) ParseCV(ctx context.Context, cvText string) stepresult.Result[*types.CandidateProfile] {
	var profile *types.CandidateProfile
	err := p.extract(ctx, "parse-cv", "CVText", cvText, schemas.CandidateProfile, func(raw string) error {
		var out types.CandidateProfile
		if err := llm.DecodeStructured(raw, schemas.CandidateProfile, &out); err != nil {
			return err
		}
		cleanProfile(&out)
		profile = &out
		return nil
	})
	if err != nil {
		p.logger.Warn("CV extraction fell back to minimal profile", zap.Error(err))
		return stepresult.Failed(FallbackProfile(), err)
	}
	return stepresult.OK(profile)
}

// ParseJobDescription extracts JobRequirements from job posting text.
// RawText always holds the verbatim input.
func (p *Parser) ParseJobDescription(ctx context.Context, jobText string) stepresult.Result[*types.JobRequirements] {
	var job *types.JobRequirements
	err := p.extract(ctx, "parse-job", "JobText", jobText, schemas.JobRequirements, func(raw string) error {
		var out types.JobRequirements
		if err := llm.DecodeStructured(raw, schemas.JobRequirements, &out); err != nil {
			return err
		}
		cleanJob(&out)
		out.RawText = jobText
		job = &out
		return nil
	})
	if err != nil {
		p.logger.Warn("job extraction fell back to minimal requirements", zap.Error(err))
		return stepresult.Failed(FallbackJobRequirements(jobText), err)
	}
	return stepresult.OK(job)
}

// extract runs up to maxAttempts generation calls, handing each response to decode
func (p *Parser) extract(ctx context.Context, promptKey, textKey, text string, schema schemas.Name, decode func(raw string) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction cancelled at attempt %d: %w", attempt, err)
		}

		prompt, err := buildPrompt(promptKey, textKey, text, attempt, lastErr)
		if err != nil {
			return err
		}

		p.logger.Debug("extraction attempt",
			zap.String("schema", string(schema)),
			zap.Int("attempt", attempt),
			zap.Int("prompt_length", len(prompt)))

		raw, err := p.client.Generate(ctx, prompt, llm.Options{Tier: llm.TierStandard, JSON: true})
		if err != nil {
			lastErr = &llm.APICallError{Message: "failed to generate content from LLM", Cause: err}
		} else if err := decode(raw); err != nil {
			lastErr = err
			p.logger.Debug("extraction response rejected",
				zap.Int("attempt", attempt),
				zap.String("response_preview", logging.TruncateForLog(raw, 200)),
				zap.Error(err))
		} else {
			return nil
		}
	}

	return fmt.Errorf("extraction failed after %d attempts: %w", p.maxAttempts, lastErr)
}

// buildPrompt renders the extraction prompt, appending the retry notice after the first attempt
func buildPrompt(promptKey, textKey, text string, attempt int, lastErr error) (string, error) {
	notice := ""
	if attempt > 1 {
		var err error
		notice, err = prompts.Render("parsing.json", "retry-notice", map[string]string{
			"Errors": describeError(lastErr),
		})
		if err != nil {
			return "", err
		}
	}

	return prompts.Render("parsing.json", promptKey, map[string]string{
		textKey:       text,
		"RetryNotice": notice,
	})
}

// describeError summarizes the previous failure for the retry notice
func describeError(err error) string {
	var validationErr *schemas.ValidationError
	if errors.As(err, &validationErr) {
		return "Errors: " + validationErr.Summary()
	}
	var parseErr *llm.ParseError
	if errors.As(err, &parseErr) {
		return "Errors: " + parseErr.Error()
	}
	return ""
}

// FallbackProfile returns the minimal valid profile used when extraction fails
func FallbackProfile() *types.CandidateProfile {
	profile := &types.CandidateProfile{Summary: FallbackSummary}
	profile.Normalize()
	return profile
}

// FallbackJobRequirements returns the minimal valid requirements used when extraction fails
func FallbackJobRequirements(jobText string) *types.JobRequirements {
	job := &types.JobRequirements{
		Title:           FallbackJobTitle,
		ExperienceLevel: "Mid",
		RawText:         jobText,
	}
	job.Normalize()
	return job
}
