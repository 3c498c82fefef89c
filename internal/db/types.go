package db

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Artifact names stored per run
const (
	ArtifactProfile      = "profile"
	ArtifactRequirements = "requirements"
	ArtifactMatchReport  = "match_report"
	ArtifactQAReport     = "qa_report"
	ArtifactOutput       = "output"
)

// List limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// Run represents a stored pipeline run
type Run struct {
	ID             uuid.UUID  `json:"id"`
	Variant        string     `json:"variant"`
	Status         string     `json:"status"`
	JobTitle       string     `json:"job_title"`
	Company        string     `json:"company"`
	RelevanceScore *float64   `json:"relevance_score,omitempty"`
	QAPassed       *bool      `json:"qa_passed,omitempty"`
	QAIterations   int        `json:"qa_iterations"`
	CurrentStep    string     `json:"current_step"`
	Errors         []string   `json:"errors"`
	Fallbacks      []string   `json:"fallbacks"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RunFilters holds optional filters for listing runs
type RunFilters struct {
	Variant string
	Status  string
	Limit   int
}
