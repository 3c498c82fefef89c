// Package rewriting tailors CV sections to a job posting.
//
// Rewrites are grounded in facts retrieved from the candidate's own CV and can
// carry feedback from a previous validation pass.
package rewriting

import (
	"context"
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

// FallbackNote is the single modification recorded on a fallback rewrite
const FallbackNote = "Fallback rewrite due to error"

const (
	noFacts           = "No specific facts retrieved"
	defaultStyle      = "Use professional, concise tone"
	defaultJobTitle   = "the position"
	factKeywords      = 5
	promptKeywords    = 10
	promptGaps        = 5
	promptDuties      = 3
	promptKeySkills   = 3
	styleExperiences  = 2
	styleAchievements = 2
)

// Retriever is the fact lookup used to ground rewrites
type Retriever interface {
	Retrieve(ctx context.Context, ns facts.Namespace, query string, k int) []string
}

// Rewriter produces RewrittenSection records
type Rewriter struct {
	client llm.Client
	facts  Retriever
	logger *zap.Logger
}

// NewRewriter creates a rewriter
func NewRewriter(client llm.Client, retriever Retriever, logger *zap.Logger) *Rewriter {
	return &Rewriter{
		client: client,
		facts:  retriever,
		logger: logging.StepLogger(logger, "rewrite_cv", "", client.Model(llm.TierAdvanced)),
	}
}

// FactsQuery is the retrieval query used to ground a rewrite
func FactsQuery(report *types.MatchGapReport) string {
	return fmt.Sprintf("Experience and skills related to %s", strings.Join(firstN(report.TargetKeywords, factKeywords), ", "))
}

// Rewrite generates tailored sections. feedback is the latest QA feedback and
// may be empty. It always returns sections; on failure they come from Fallback.
func (r *Rewriter) Rewrite(ctx context.Context, profile *types.CandidateProfile, job *types.JobRequirements, report *types.MatchGapReport, feedback string) stepresult.Result[*types.RewrittenSection] {
	cvFacts := r.facts.Retrieve(ctx, facts.NamespaceCV, FactsQuery(report), 0)

	prompt, err := BuildPrompt(profile, job, report, cvFacts, feedback)
	if err != nil {
		return r.fallback(profile, err)
	}

	r.logger.Debug("rewrite prompt built",
		zap.Int("prompt_length", len(prompt)),
		zap.Int("cv_facts", len(cvFacts)),
		zap.Bool("has_feedback", feedback != ""))

	var section types.RewrittenSection
	if _, err := llm.GenerateStructured(ctx, r.client, prompt, llm.Options{Tier: llm.TierAdvanced}, schemas.RewrittenSection, &section); err != nil {
		return r.fallback(profile, err)
	}

	r.logger.Info("cv rewritten",
		zap.Int("experience_entries", len(section.Experience)),
		zap.Strings("keywords_integrated", section.KeywordsIntegrated))
	return stepresult.OK(&section)
}

// BuildPrompt renders the rewrite prompt
func BuildPrompt(profile *types.CandidateProfile, job *types.JobRequirements, report *types.MatchGapReport, cvFacts []string, feedback string) (string, error) {
	qaFeedback := ""
	if strings.TrimSpace(feedback) != "" {
		rendered, err := prompts.Render("rewriting.json", "qa-feedback", map[string]string{"Feedback": feedback})
		if err != nil {
			return "", err
		}
		qaFeedback = rendered
	}

	title := job.Title
	if strings.TrimSpace(title) == "" {
		title = defaultJobTitle
	}

	factText := noFacts
	if len(cvFacts) > 0 {
		factText = strings.Join(cvFacts, "\n")
	}

	return prompts.Render("rewriting.json", "rewrite-cv", map[string]string{
		"CVFacts":          factText,
		"JobTitle":         title,
		"RequiredSkills":   strings.Join(job.KeySkills, ", "),
		"Responsibilities": strings.Join(firstN(job.Responsibilities, promptDuties), ", "),
		"TargetKeywords":   strings.Join(firstN(report.TargetKeywords, promptKeywords), ", "),
		"SkillGaps":        strings.Join(report.GapSkills(promptGaps), ", "),
		"StyleExamples":    StyleExamples(profile),
		"QAFeedback":       qaFeedback,
		"KeySkills":        strings.Join(firstN(job.KeySkills, promptKeySkills), ", "),
	})
}

// StyleExamples lists up to two achievements from each of the first two
// experience entries as "- " bullets
func StyleExamples(profile *types.CandidateProfile) string {
	var bullets []string
	for _, exp := range firstN(profile.Experience, styleExperiences) {
		for _, achievement := range firstN(exp.Achievements, styleAchievements) {
			bullets = append(bullets, "- "+achievement)
		}
	}
	if len(bullets) == 0 {
		return defaultStyle
	}
	return strings.Join(bullets, "\n")
}

// Fallback returns the original experience and skills with a fallback note
func Fallback(profile *types.CandidateProfile) *types.RewrittenSection {
	return &types.RewrittenSection{
		Summary:            fmt.Sprintf("Professional with experience in %s", strings.Join(firstN(profile.Skills, 3), ", ")),
		Experience:         types.CloneExperience(profile.Experience),
		Skills:             append([]string{}, profile.Skills...),
		KeywordsIntegrated: []string{},
		ModificationsMade:  []string{FallbackNote},
	}
}

func (r *Rewriter) fallback(profile *types.CandidateProfile, cause error) stepresult.Result[*types.RewrittenSection] {
	r.logger.Warn("rewrite fell back to original content", zap.Error(cause))
	return stepresult.Failed(Fallback(profile), cause)
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
