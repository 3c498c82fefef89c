// Package validation checks rewritten CV content for factual consistency and
// keyword coverage.
package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/cv-adaptor/internal/facts"
	"github.com/jonathan/cv-adaptor/internal/llm"
	"github.com/jonathan/cv-adaptor/internal/logging"
	"github.com/jonathan/cv-adaptor/internal/prompts"
	"github.com/jonathan/cv-adaptor/internal/schemas"
	"github.com/jonathan/cv-adaptor/internal/stepresult"
	"github.com/jonathan/cv-adaptor/internal/types"
)

// FactsQuery is the broad query used to re-retrieve original facts
const FactsQuery = "All experience, achievements, and metrics"

// MissingKeywordFeedback is the rewrite feedback of a fallback report with gaps
const MissingKeywordFeedback = "Please integrate missing keywords"

// maxReportedKeywords caps the missing-keyword issues of a fallback report
const maxReportedKeywords = 5

// Issue types
const (
	IssueMissingKeyword     = "missing_keyword"
	IssueFactualError       = "factual_error"
	IssueStyleInconsistency = "style_inconsistency"
	IssueHallucination      = "hallucination"
)

// Retriever is the fact lookup used to verify rewritten content
type Retriever interface {
	Retrieve(ctx context.Context, ns facts.Namespace, query string, k int) []string
	Facts(ns facts.Namespace) []facts.Fact
}

// Validator produces QAReport records
type Validator struct {
	client llm.Client
	facts  Retriever
	logger *zap.Logger
}

// NewValidator creates a validator
func NewValidator(client llm.Client, retriever Retriever, logger *zap.Logger) *Validator {
	return &Validator{
		client: client,
		facts:  retriever,
		logger: logging.StepLogger(logger, "qa_validate", "", client.Model(llm.TierStandard)),
	}
}

// Validate checks rewritten against the original facts and requiredKeywords.
// It always returns a report; on failure the report comes from Fallback.
func (v *Validator) Validate(ctx context.Context, rewritten *types.RewrittenSection, requiredKeywords []string, job *types.JobRequirements) stepresult.Result[*types.QAReport] {
	original := v.facts.Retrieve(ctx, facts.NamespaceCV, FactsQuery, 0)
	if len(original) == 0 {
		for _, f := range v.facts.Facts(facts.NamespaceCV) {
			original = append(original, f.Text)
		}
	}

	prompt, err := BuildPrompt(rewritten, requiredKeywords, job, original)
	if err != nil {
		return v.fallback(rewritten, requiredKeywords, err)
	}

	v.logger.Debug("qa prompt built",
		zap.Int("prompt_length", len(prompt)),
		zap.Int("original_facts", len(original)),
		zap.Int("required_keywords", len(requiredKeywords)))

	var report types.QAReport
	if _, err := llm.GenerateStructured(ctx, v.client, prompt, llm.Options{Tier: llm.TierStandard}, schemas.QAReport, &report); err != nil {
		return v.fallback(rewritten, requiredKeywords, err)
	}

	v.logger.Info("qa validated",
		zap.Bool("passed", report.Passed),
		zap.Float64("overall_score", report.OverallScore),
		zap.Int("issues", len(report.Issues)))
	return stepresult.OK(&report)
}

// BuildPrompt renders the validation prompt
func BuildPrompt(rewritten *types.RewrittenSection, requiredKeywords []string, job *types.JobRequirements, originalFacts []string) (string, error) {
	experience, err := json.MarshalIndent(rewritten.Experience, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize experience: %w", err)
	}

	return prompts.Render("validation.json", "validate-cv", map[string]string{
		"OriginalFacts":    strings.Join(originalFacts, "\n"),
		"Summary":          rewritten.Summary,
		"Experience":       string(experience),
		"Skills":           strings.Join(rewritten.Skills, ", "),
		"RequiredKeywords": strings.Join(requiredKeywords, ", "),
		"JobRequirements":  fmt.Sprintf("Title: %s, Skills: %s", job.Title, strings.Join(job.KeySkills, ", ")),
	})
}

// Fallback checks keyword coverage by case-insensitive substring search over
// the summary, serialized experience and skills. Factual and style checks
// cannot be verified without generation and are reported as passing.
func Fallback(rewritten *types.RewrittenSection, requiredKeywords []string) *types.QAReport {
	content := strings.ToLower(searchableText(rewritten))

	found := []string{}
	missing := []string{}
	for _, kw := range requiredKeywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			found = append(found, kw)
		} else {
			missing = append(missing, kw)
		}
	}

	issues := []types.QAIssue{}
	for i, kw := range missing {
		if i == maxReportedKeywords {
			break
		}
		issues = append(issues, types.QAIssue{
			Section:      "overall",
			IssueType:    IssueMissingKeyword,
			Description:  fmt.Sprintf("Required keyword '%s' not found in rewritten content", kw),
			Severity:     types.SeverityMajor,
			SuggestedFix: fmt.Sprintf("Integrate '%s' naturally into relevant sections", kw),
		})
	}

	score := 100.0
	if len(requiredKeywords) > 0 {
		score = float64(len(found)) * 100 / float64(len(requiredKeywords))
	}

	feedback := ""
	if len(missing) > 0 {
		feedback = MissingKeywordFeedback
	}

	return &types.QAReport{
		Passed:                  len(missing) == 0,
		OverallScore:            score,
		Issues:                  issues,
		KeywordsVerified:        found,
		MissingKeywords:         missing,
		FactualConsistencyCheck: true,
		StyleConsistencyCheck:   true,
		FeedbackForRewrite:      feedback,
	}
}

// searchableText flattens the rewrite for keyword matching. HTML escaping is
// off so keywords like "R&D" match their own text.
func searchableText(rewritten *types.RewrittenSection) string {
	var experience bytes.Buffer
	enc := json.NewEncoder(&experience)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rewritten.Experience); err != nil {
		experience.Reset()
	}
	return rewritten.Summary + " " + strings.TrimSpace(experience.String()) + " " + strings.Join(rewritten.Skills, " ")
}

func (v *Validator) fallback(rewritten *types.RewrittenSection, requiredKeywords []string, cause error) stepresult.Result[*types.QAReport] {
	report := Fallback(rewritten, requiredKeywords)
	v.logger.Warn("qa fell back to keyword check",
		zap.Error(cause),
		zap.Strings("missing_keywords", report.MissingKeywords))
	return stepresult.Failed(report, cause)
}
