package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/cv-adaptor/internal/analysis"
	"github.com/jonathan/cv-adaptor/internal/facts"
	"github.com/jonathan/cv-adaptor/internal/llm"
	"github.com/jonathan/cv-adaptor/internal/parsing"
	"github.com/jonathan/cv-adaptor/internal/rewriting"
	"github.com/jonathan/cv-adaptor/internal/scoring"
	"github.com/jonathan/cv-adaptor/internal/stepresult"
	"github.com/jonathan/cv-adaptor/internal/types"
	"github.com/jonathan/cv-adaptor/internal/validation"
)

// Parser extracts structured records from raw text
type Parser interface {
	ParseCV(ctx context.Context, text string) stepresult.Result[*types.CandidateProfile]
	ParseJobDescription(ctx context.Context, text string) stepresult.Result[*types.JobRequirements]
}

// Scorer produces the match report
type Scorer interface {
	Score(ctx context.Context, profile *types.CandidateProfile, job *types.JobRequirements) stepresult.Result[*types.MatchGapReport]
}

// Rewriter produces tailored CV sections
type Rewriter interface {
	Rewrite(ctx context.Context, profile *types.CandidateProfile, job *types.JobRequirements, report *types.MatchGapReport, feedback string) stepresult.Result[*types.RewrittenSection]
}

// Analyzer produces the improvement report
type Analyzer interface {
	Analyze(ctx context.Context, profile *types.CandidateProfile, job *types.JobRequirements, report *types.MatchGapReport) stepresult.Result[*types.CVAnalysisReport]
}

// Validator checks a rewritten draft
type Validator interface {
	Validate(ctx context.Context, rewritten *types.RewrittenSection, requiredKeywords []string, job *types.JobRequirements) stepresult.Result[*types.QAReport]
}

// FactIndex stores the parsed documents for retrieval
type FactIndex interface {
	IndexProfile(ctx context.Context, p *types.CandidateProfile) error
	IndexJob(ctx context.Context, j *types.JobRequirements) error
}

// Steps holds the step implementations of one run, bound to its fact store
type Steps struct {
	Facts     FactIndex
	Parser    Parser
	Scorer    Scorer
	Rewriter  Rewriter
	Analyzer  Analyzer
	Validator Validator
}

// StepFactory builds the steps of a run around that run's fact store
type StepFactory func(store *facts.Store) Steps

// Clients holds one generation client per role
type Clients struct {
	Parser   llm.Client
	Scoring  llm.Client
	Rewriter llm.Client
	QA       llm.Client
}

// ClientsFromRegistry resolves the client of every role
func ClientsFromRegistry(ctx context.Context, registry *llm.Registry) (Clients, error) {
	var clients Clients
	targets := []struct {
		role llm.Role
		dst  *llm.Client
	}{
		{llm.RoleParser, &clients.Parser},
		{llm.RoleScoring, &clients.Scoring},
		{llm.RoleRewriter, &clients.Rewriter},
		{llm.RoleQA, &clients.QA},
	}
	for _, target := range targets {
		client, err := registry.For(ctx, target.role)
		if err != nil {
			return Clients{}, fmt.Errorf("failed to create %s client: %w", target.role, err)
		}
		*target.dst = client
	}
	return clients, nil
}

// NewStepFactory wires the generation-backed steps to clients
func NewStepFactory(clients Clients, logger *zap.Logger, extractionAttempts int) StepFactory {
	parser := parsing.NewParser(clients.Parser,
		parsing.WithMaxAttempts(extractionAttempts),
		parsing.WithLogger(logger))

	return func(store *facts.Store) Steps {
		return Steps{
			Facts:     store,
			Parser:    parser,
			Scorer:    scoring.NewScorer(clients.Scoring, store, logger),
			Rewriter:  rewriting.NewRewriter(clients.Rewriter, store, logger),
			Analyzer:  analysis.NewAnalyzer(clients.Rewriter, store, logger),
			Validator: validation.NewValidator(clients.QA, store, logger),
		}
	}
}
