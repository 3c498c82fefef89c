// Package scoring computes the relevance of a candidate to a job posting.
package scoring

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

// noContext is the placeholder used when retrieval returns nothing
const noContext = "No specific context retrieved"

// Retriever is the fact lookup used to ground scoring
type Retriever interface {
	RetrieveMulti(ctx context.Context, ns facts.Namespace, queries []string) []string
}

// Scorer produces a MatchGapReport
type Scorer struct {
	client llm.Client
	facts  Retriever
	logger *zap.Logger
}

// NewScorer creates a scorer
func NewScorer(client llm.Client, retriever Retriever, logger *zap.Logger) *Scorer {
	return &Scorer{
		client: client,
		facts:  retriever,
		logger: logging.StepLogger(logger, "score_match", "", client.Model(llm.TierStandard)),
	}
}

// Queries returns the retrieval queries for a job: title, top skills, industry
func Queries(job *types.JobRequirements) []string {
	industry := job.Industry
	if strings.TrimSpace(industry) == "" {
		industry = "the industry"
	}
	return []string{
		fmt.Sprintf("Skills and experience related to %s", job.Title),
		fmt.Sprintf("Achievements relevant to %s", strings.Join(firstN(job.KeySkills, 3), ", ")),
		fmt.Sprintf("Experience in %s", industry),
	}
}

// Score scores the profile against the job. It always returns a report; on
// generation failure the report comes from Fallback.
func (s *Scorer) Score(ctx context.Context, profile *types.CandidateProfile, job *types.JobRequirements) stepresult.Result[*types.MatchGapReport] {
	queries := Queries(job)
	cvContext := s.facts.RetrieveMulti(ctx, facts.NamespaceCV, queries)
	jdContext := s.facts.RetrieveMulti(ctx, facts.NamespaceJD, queries)

	prompt, err := prompts.Render("scoring.json", "score-match", map[string]string{
		"CVContext":       joinOr(cvContext, "\n", noContext),
		"JobContext":      joinOr(jdContext, "\n", noContext),
		"CandidateSkills": strings.Join(profile.Skills, ", "),
		"RequiredSkills":  strings.Join(job.KeySkills, ", "),
	})
	if err != nil {
		return s.fallback(profile, job, err)
	}

	s.logger.Debug("scoring prompt built",
		zap.Int("prompt_length", len(prompt)),
		zap.Int("cv_facts", len(cvContext)),
		zap.Int("jd_facts", len(jdContext)))

	var report types.MatchGapReport
	if _, err := llm.GenerateStructured(ctx, s.client, prompt, llm.Options{Tier: llm.TierStandard}, schemas.MatchReport, &report); err != nil {
		return s.fallback(profile, job, err)
	}

	s.logger.Info("match scored",
		zap.Float64("relevance_score", report.RelevanceScore),
		zap.String("recommendation", report.Recommendation))
	return stepresult.OK(&report)
}

func (s *Scorer) fallback(profile *types.CandidateProfile, job *types.JobRequirements, cause error) stepresult.Result[*types.MatchGapReport] {
	report := Fallback(profile, job)
	s.logger.Warn("scoring fell back to keyword matching",
		zap.Error(cause),
		zap.Float64("relevance_score", report.RelevanceScore))
	return stepresult.Failed(report, cause)
}

func firstN(items []string, n int) []string {
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
