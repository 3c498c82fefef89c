package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemasCompile(t *testing.T) {
	for _, name := range []Name{CandidateProfile, JobRequirements, MatchReport, RewrittenSection, AnalysisReport, QAReport} {
		_, err := load(name)
		assert.NoError(t, err, name)
	}
}

func TestValidate_MatchReport(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{
			name: "valid report",
			json: `{"relevance_score": 72, "recommendation": "optimize", "skill_gaps": [{"skill": "Go", "importance": "Required", "present_in_cv": false}]}`,
		},
		{
			name:    "score out of range",
			json:    `{"relevance_score": 140, "recommendation": "proceed"}`,
			wantErr: true,
		},
		{
			name:    "unknown recommendation",
			json:    `{"relevance_score": 50, "recommendation": "hire"}`,
			wantErr: true,
		},
		{
			name:    "score as string",
			json:    `{"relevance_score": "72", "recommendation": "optimize"}`,
			wantErr: true,
		},
		{
			name:    "not JSON",
			json:    `Sorry, I can't`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(MatchReport, tt.json)
			if tt.wantErr {
				var validationErr *ValidationError
				require.True(t, errors.As(err, &validationErr), "expected ValidationError, got %v", err)
				assert.NotEmpty(t, validationErr.Errors)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_CandidateProfileAllowsNulls(t *testing.T) {
	doc := `{"contact": {"name": "Jane", "email": null}, "summary": null, "skills": ["Go"], "projects": null}`
	assert.NoError(t, Validate(CandidateProfile, doc))
}

func TestValidate_JobRequirementsNeedsTitle(t *testing.T) {
	err := Validate(JobRequirements, `{"experience_level": "Mid"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
}

func TestDecode(t *testing.T) {
	var out struct {
		Passed       bool    `json:"passed"`
		OverallScore float64 `json:"overall_score"`
	}
	err := Decode(QAReport, `{"passed": true, "overall_score": 97.5, "factual_consistency_check": true, "style_consistency_check": true}`, &out)
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Equal(t, 97.5, out.OverallScore)
}

func TestValidationError_Summary(t *testing.T) {
	err := &ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	assert.Equal(t, "a: bad; b: worse", err.Summary())
	assert.Contains(t, err.Error(), "1. a: bad")
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name": "x"}`))
	assert.Error(t, ValidateJSONString(schema, `{}`))

	var loadErr *SchemaLoadError
	assert.True(t, errors.As(ValidateJSONString(`{"type": 12}`, `{}`), &loadErr))
}
