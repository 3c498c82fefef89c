// Package analysis produces a section-by-section improvement report for a CV
// without rewriting it.
package analysis

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

// FallbackSection is the only section analysed when generation fails
const FallbackSection = "Skills"

const (
	none           = "None listed"
	noFacts        = "No specific facts retrieved"
	maxGaps        = 5
	maxQuickWins   = 3
	promptKeywords = 10
)

// Retriever is the fact lookup used to ground an analysis
type Retriever interface {
	Retrieve(ctx context.Context, ns facts.Namespace, query string, k int) []string
}

// Analyzer produces CVAnalysisReport records
type Analyzer struct {
	client llm.Client
	facts  Retriever
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(client llm.Client, retriever Retriever, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		facts:  retriever,
		logger: logging.StepLogger(logger, "analyze_cv", "", client.Model(llm.TierAdvanced)),
	}
}

// Analyze reviews the profile against the job. It always returns a report; on
// failure the report comes from Fallback.
func (a *Analyzer) Analyze(ctx context.Context, profile *types.CandidateProfile, job *types.JobRequirements, report *types.MatchGapReport) stepresult.Result[*types.CVAnalysisReport] {
	query := fmt.Sprintf("Experience and skills related to %s", strings.Join(firstN(report.TargetKeywords, 5), ", "))
	cvFacts := a.facts.Retrieve(ctx, facts.NamespaceCV, query, 0)

	prompt, err := BuildPrompt(profile, job, report, cvFacts)
	if err != nil {
		return a.fallback(report, err)
	}

	a.logger.Debug("analysis prompt built",
		zap.Int("prompt_length", len(prompt)),
		zap.Int("cv_facts", len(cvFacts)))

	var out types.CVAnalysisReport
	if _, err := llm.GenerateStructured(ctx, a.client, prompt, llm.Options{Tier: llm.TierAdvanced}, schemas.AnalysisReport, &out); err != nil {
		return a.fallback(report, err)
	}

	a.logger.Info("cv analysed",
		zap.Int("sections", len(out.SectionAnalyses)),
		zap.Int("critical_gaps", len(out.CriticalGaps)))
	return stepresult.OK(&out)
}

// BuildPrompt renders the analysis prompt
func BuildPrompt(profile *types.CandidateProfile, job *types.JobRequirements, report *types.MatchGapReport, cvFacts []string) (string, error) {
	return prompts.Render("analysis.json", "analyze-cv", map[string]string{
		"CVFacts":          joinOr(cvFacts, "\n", noFacts),
		"Summary":          orDefault(profile.Summary, none),
		"Experience":       FormatExperience(profile.Experience),
		"Skills":           joinOr(profile.Skills, ", ", none),
		"Education":        formatEducation(profile.Education),
		"Certifications":   joinOr(profile.Certifications, ", ", none),
		"Projects":         joinOr(profile.Projects, ", ", none),
		"JobTitle":         orDefault(job.Title, "the position"),
		"ExperienceLevel":  orDefault(job.ExperienceLevel, "Not specified"),
		"RequiredSkills":   joinOr(job.KeySkills, ", ", none),
		"Responsibilities": joinOr(job.Responsibilities, ", ", none),
		"RelevanceScore":   fmt.Sprintf("%.1f", report.RelevanceScore),
		"MatchedSkills":    joinOr(report.MatchedSkills, ", ", none),
		"SkillGaps":        joinOr(report.GapSkills(0), ", ", none),
		"TargetKeywords":   joinOr(firstN(report.TargetKeywords, promptKeywords), ", ", none),
	})
}

// FormatExperience renders experience entries with their achievements and metrics
func FormatExperience(entries []types.Experience) string {
	if len(entries) == 0 {
		return none
	}
	var b strings.Builder
	for i, exp := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s at %s (%s)\n", exp.Position, exp.Company, exp.Duration)
		if exp.Description != "" {
			fmt.Fprintf(&b, "  %s\n", exp.Description)
		}
		for _, achievement := range exp.Achievements {
			fmt.Fprintf(&b, "  * %s\n", achievement)
		}
		if len(exp.Metrics) > 0 {
			fmt.Fprintf(&b, "  Metrics: %s\n", strings.Join(exp.Metrics, "; "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatEducation(entries []types.Education) string {
	if len(entries) == 0 {
		return none
	}
	parts := make([]string, 0, len(entries))
	for _, edu := range entries {
		degree := edu.Degree
		if edu.Field != "" {
			degree += " in " + edu.Field
		}
		parts = append(parts, fmt.Sprintf("%s, %s (%s)", degree, edu.Institution, edu.Duration))
	}
	return strings.Join(parts, "; ")
}

// Fallback builds a skills-only report from the match report
func Fallback(report *types.MatchGapReport) *types.CVAnalysisReport {
	gaps := report.GapSkills(maxGaps)

	priority := types.PriorityLow
	if len(gaps) > 0 {
		priority = types.PriorityHigh
	}

	quickWins := make([]string, 0, maxQuickWins)
	for _, gap := range firstN(gaps, maxQuickWins) {
		quickWins = append(quickWins, fmt.Sprintf("Add '%s' to your skills if you have experience with it", gap))
	}

	return &types.CVAnalysisReport{
		OverallAssessment: fmt.Sprintf("Automated skill comparison: %d matched skills and %d skill gaps.", len(report.MatchedSkills), len(report.SkillGaps)),
		RelevanceScore:    report.RelevanceScore,
		SectionAnalyses: []types.SectionAnalysis{{
			SectionName:   FallbackSection,
			CurrentStatus: fmt.Sprintf("Covers %d of the job's key skills", len(report.MatchedSkills)),
			ItemsToAdd:    append([]string{}, gaps...),
			ItemsToRemove: []string{},
			ItemsToModify: []string{},
			KeywordsToAdd: append([]string{}, gaps...),
			Priority:      priority,
		}},
		CriticalGaps:         gaps,
		StrengthsToEmphasize: append([]string{}, report.MatchedSkills...),
		QuickWins:            quickWins,
	}
}

func (a *Analyzer) fallback(report *types.MatchGapReport, cause error) stepresult.Result[*types.CVAnalysisReport] {
	a.logger.Warn("analysis fell back to skill gap report", zap.Error(cause))
	return stepresult.Failed(Fallback(report), cause)
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func joinOr(items []string, sep, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, sep)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
