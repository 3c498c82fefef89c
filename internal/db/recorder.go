package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/cv-adaptor/internal/pipeline"
)

type artifact struct {
	name    string
	content any
}

// runRow is the column set written for a finished run
type runRow struct {
	ID             uuid.UUID
	Variant        string
	Status         string
	JobTitle       string
	Company        string
	RelevanceScore *float64
	QAPassed       *bool
	QAIterations   int
	CurrentStep    string
	Errors         []string
	Fallbacks      []string
}

func newRunRow(res *pipeline.Result) (runRow, error) {
	id, err := uuid.Parse(res.RunID)
	if err != nil {
		return runRow{}, fmt.Errorf("invalid run id %q: %w", res.RunID, err)
	}
	row := runRow{
		ID:           id,
		Variant:      string(res.Variant),
		Status:       StatusFailed,
		QAIterations: res.QAIterations,
		CurrentStep:  res.CurrentStep,
		Errors:       append([]string{}, res.Errors...),
		Fallbacks:    append([]string{}, res.Fallbacks...),
	}
	if res.Success {
		row.Status = StatusSucceeded
	}
	if res.Requirements != nil {
		row.JobTitle = res.Requirements.Title
		row.Company = res.Requirements.Company
	}
	if res.MatchReport != nil {
		score := res.MatchReport.RelevanceScore
		row.RelevanceScore = &score
	}
	if res.Variant == pipeline.VariantAdapt && res.QAReport != nil {
		passed := res.QAReport.Passed
		row.QAPassed = &passed
	}
	return row, nil
}

// artifactsFor lists the non-nil records of a result in write order
func artifactsFor(res *pipeline.Result) []artifact {
	var out []artifact
	add := func(name string, present bool, content any) {
		if present {
			out = append(out, artifact{name: name, content: content})
		}
	}
	add(ArtifactProfile, res.Profile != nil, res.Profile)
	add(ArtifactRequirements, res.Requirements != nil, res.Requirements)
	add(ArtifactMatchReport, res.MatchReport != nil, res.MatchReport)
	add(ArtifactQAReport, res.QAReport != nil, res.QAReport)
	switch res.Variant {
	case pipeline.VariantAnalyze:
		add(ArtifactOutput, res.AnalysisOutput != nil, res.AnalysisOutput)
	default:
		add(ArtifactOutput, res.AdaptedCV != nil, res.AdaptedCV)
	}
	return out
}

// RecordRun stores a finished run and its artifacts in one transaction.
// It implements pipeline.Recorder.
func (db *DB) RecordRun(ctx context.Context, res *pipeline.Result) error {
	if res == nil {
		return nil
	}
	row, err := newRunRow(res)
	if err != nil {
		return err
	}
	errs, err := json.Marshal(row.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}
	fallbacks, err := json.Marshal(row.Fallbacks)
	if err != nil {
		return fmt.Errorf("failed to marshal fallbacks: %w", err)
	}

	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO runs (id, variant, status, job_title, company, relevance_score, qa_passed,
			                   qa_iterations, current_step, errors, fallbacks, completed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
			 ON CONFLICT (id) DO UPDATE SET
			   status = EXCLUDED.status, job_title = EXCLUDED.job_title, company = EXCLUDED.company,
			   relevance_score = EXCLUDED.relevance_score, qa_passed = EXCLUDED.qa_passed,
			   qa_iterations = EXCLUDED.qa_iterations, current_step = EXCLUDED.current_step,
			   errors = EXCLUDED.errors, fallbacks = EXCLUDED.fallbacks, completed_at = NOW()`,
			row.ID, row.Variant, row.Status, row.JobTitle, row.Company, row.RelevanceScore,
			row.QAPassed, row.QAIterations, row.CurrentStep, errs, fallbacks,
		)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}

		for _, a := range artifactsFor(res) {
			content, err := json.Marshal(a.content)
			if err != nil {
				return fmt.Errorf("failed to marshal artifact %s: %w", a.name, err)
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO run_artifacts (run_id, name, content)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (run_id, name) DO UPDATE SET content = EXCLUDED.content, created_at = NOW()`,
				row.ID, a.name, content,
			)
			if err != nil {
				return fmt.Errorf("failed to save artifact %s: %w", a.name, err)
			}
		}
		return nil
	})
}

var _ pipeline.Recorder = (*DB)(nil)
