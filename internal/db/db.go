// Package db provides PostgreSQL persistence for finished pipeline runs.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// GetArtifact retrieves a JSON artifact by run ID and name. A missing
// artifact returns nil content and no error.
func (db *DB) GetArtifact(ctx context.Context, runID uuid.UUID, name string) ([]byte, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM run_artifacts WHERE run_id = $1 AND name = $2`,
		runID, name,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", name, err)
	}
	return content, nil
}

// LoadArtifact unmarshals an artifact into dst, reporting whether it existed
func (db *DB) LoadArtifact(ctx context.Context, runID uuid.UUID, name string, dst any) (bool, error) {
	content, err := db.GetArtifact(ctx, runID, name)
	if err != nil || content == nil {
		return false, err
	}
	if err := json.Unmarshal(content, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal artifact %s: %w", name, err)
	}
	return true, nil
}

const runColumns = `id, variant, status, job_title, company, relevance_score, qa_passed,
	qa_iterations, current_step, errors, fallbacks, created_at, completed_at`

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	var errs, fallbacks []byte
	if err := row.Scan(&run.ID, &run.Variant, &run.Status, &run.JobTitle, &run.Company,
		&run.RelevanceScore, &run.QAPassed, &run.QAIterations, &run.CurrentStep,
		&errs, &fallbacks, &run.CreatedAt, &run.CompletedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(errs, &run.Errors); err != nil {
		return nil, fmt.Errorf("failed to decode errors: %w", err)
	}
	if err := json.Unmarshal(fallbacks, &run.Fallbacks); err != nil {
		return nil, fmt.Errorf("failed to decode fallbacks: %w", err)
	}
	return &run, nil
}

// GetRun retrieves a run by ID. A missing run returns nil and no error.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	run, err := scanRun(db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves recent runs, newest first
func (db *DB) ListRuns(ctx context.Context, filters RunFilters) ([]Run, error) {
	limit := filters.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE ($1 = '' OR variant = $1) AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC LIMIT $3`,
		filters.Variant, filters.Status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run and all its artifacts (via cascade)
func (db *DB) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}
