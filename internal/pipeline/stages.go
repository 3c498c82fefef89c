package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/cv-adaptor/internal/logging"
	"github.com/jonathan/cv-adaptor/internal/pipeline/steps"
)

func (r *run) parse(ctx context.Context) (Update, error) {
	if strings.TrimSpace(r.state.CVText) == "" {
		return nil, &InputError{Field: "cv_text", Message: "No CV text provided"}
	}
	if strings.TrimSpace(r.state.JobText) == "" {
		return nil, &InputError{Field: "job_description", Message: "No job description provided"}
	}

	profile := r.steps.Parser.ParseCV(ctx, r.state.CVText)
	if profile.Value == nil {
		return nil, &PreconditionError{Step: steps.ParseDocuments, Message: "Parsing produced no candidate profile", Cause: profile.Err}
	}
	r.noteFallback(steps.ParseDocuments, "cv", profile.Err)
	if err := r.steps.Facts.IndexProfile(ctx, profile.Value); err != nil {
		r.logger.Warn("failed to index CV facts", zap.Error(err))
	}

	job := r.steps.Parser.ParseJobDescription(ctx, r.state.JobText)
	if job.Value == nil {
		return nil, &PreconditionError{Step: steps.ParseDocuments, Message: "Parsing produced no job requirements", Cause: job.Err}
	}
	r.noteFallback(steps.ParseDocuments, "job", job.Err)
	if err := r.steps.Facts.IndexJob(ctx, job.Value); err != nil {
		r.logger.Warn("failed to index job facts", zap.Error(err))
	}

	r.emit(steps.ParseDocuments, fmt.Sprintf("Parsed CV with %d experience entries and job %q", len(profile.Value.Experience), job.Value.Title))
	return ParseUpdate{Profile: profile.Value, Requirements: job.Value}, nil
}

func (r *run) score(ctx context.Context) Update {
	s := r.state
	report := r.steps.Scorer.Score(ctx, s.Profile, s.Requirements)
	r.noteFallback(steps.ScoreMatch, "", report.Err)

	if report.Value != nil {
		r.emit(steps.ScoreMatch, fmt.Sprintf("Relevance score: %.1f (%s)", report.Value.RelevanceScore, report.Value.Recommendation))
	}
	return ScoreUpdate{Report: report.Value}
}

func (r *run) rewrite(ctx context.Context) Update {
	s := r.state
	feedback := ""
	if s.QAReport != nil && !s.QAReport.Passed {
		feedback = s.QAReport.FeedbackForRewrite
	}

	section := r.steps.Rewriter.Rewrite(ctx, s.Profile, s.Requirements, s.MatchReport, feedback)
	r.noteFallback(steps.RewriteCV, "", section.Err)

	if section.Value != nil {
		r.emit(steps.RewriteCV, fmt.Sprintf("Rewrote %d experience entries", len(section.Value.Experience)))
	}
	return RewriteUpdate{Section: section.Value}
}

func (r *run) analyze(ctx context.Context) Update {
	s := r.state
	report := r.steps.Analyzer.Analyze(ctx, s.Profile, s.Requirements, s.MatchReport)
	r.noteFallback(steps.AnalyzeCV, "", report.Err)

	if report.Value != nil {
		r.emit(steps.AnalyzeCV, fmt.Sprintf("Analyzed %d sections", len(report.Value.SectionAnalyses)))
	}
	return AnalyzeUpdate{Report: report.Value}
}

func (r *run) validate(ctx context.Context) Update {
	s := r.state
	report := r.steps.Validator.Validate(ctx, s.Rewritten, s.MatchReport.TargetKeywords, s.Requirements)
	r.noteFallback(steps.QAValidate, "", report.Err)

	if report.Value != nil {
		r.emit(steps.QAValidate, fmt.Sprintf("QA pass %d: passed=%t score=%.1f", s.QAIterations+1, report.Value.Passed, report.Value.OverallScore))
	}
	return QAUpdate{Report: report.Value}
}

func (r *run) finalize() (Update, error) {
	s := r.state
	if err := steps.ValidateDependencies(steps.Finalize, s.Has); err != nil {
		return nil, &PreconditionError{Step: steps.Finalize, Message: preconditionMessage(steps.Finalize), Cause: err}
	}

	if s.Variant == VariantAnalyze {
		if s.Analysis == nil || s.MatchReport == nil {
			return nil, &PreconditionError{Step: steps.Finalize, Message: preconditionMessage(steps.Finalize)}
		}
		return FinalizeUpdate{AnalysisOutput: FinalizeAnalysis(s.Profile, s.Requirements, s.Analysis, s.MatchReport)}, nil
	}
	return FinalizeUpdate{AdaptedCV: FinalizeAdaptation(s.Profile, s.Rewritten, s.MatchReport, s.QAReport)}, nil
}

// noteFallback logs and records a step that substituted its fallback value
func (r *run) noteFallback(stage steps.Name, document string, err error) {
	if err == nil {
		return
	}
	name := string(stage)
	if document != "" {
		name += ":" + document
	}
	r.logger.Warn("step used fallback", zap.String(logging.FieldStep, name), zap.Error(err))
	r.state.recordFallback(name)
}
