//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateProfile_NormalizeFillsCollections(t *testing.T) {
	var profile CandidateProfile
	require.NoError(t, json.Unmarshal([]byte(`{"contact":{},"experience":[{"company":"Acme","position":"Eng","duration":"2020","description":"x"}]}`), &profile))

	profile.Normalize()

	data, err := json.Marshal(profile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")
	assert.Empty(t, profile.Skills)
	assert.NotNil(t, profile.Experience[0].Achievements)
}

func TestCandidateProfile_CloneIsDeep(t *testing.T) {
	original := &CandidateProfile{
		Skills:     []string{"Go"},
		Experience: []Experience{{Company: "Acme", Achievements: []string{"Shipped"}}},
	}

	clone := original.Clone()
	clone.Skills[0] = "Rust"
	clone.Experience[0].Achievements[0] = "Changed"

	assert.Equal(t, "Go", original.Skills[0])
	assert.Equal(t, "Shipped", original.Experience[0].Achievements[0])
}

func TestMatchGapReport_Validate(t *testing.T) {
	tests := []struct {
		name    string
		report  MatchGapReport
		wantErr bool
	}{
		{
			name:   "valid report",
			report: MatchGapReport{RelevanceScore: 72.5, Recommendation: RecommendationOptimize},
		},
		{
			name:    "score above range",
			report:  MatchGapReport{RelevanceScore: 120, Recommendation: RecommendationProceed},
			wantErr: true,
		},
		{
			name:    "unknown recommendation",
			report:  MatchGapReport{RelevanceScore: 50, Recommendation: "maybe"},
			wantErr: true,
		},
		{
			name: "gap without skill name",
			report: MatchGapReport{
				RelevanceScore: 50,
				Recommendation: RecommendationOptimize,
				SkillGaps:      []SkillGap{{Importance: "Required"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.report.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMatchGapReport_GapSkills(t *testing.T) {
	report := MatchGapReport{SkillGaps: []SkillGap{{Skill: "A"}, {Skill: "B"}, {Skill: "C"}}}

	assert.Equal(t, []string{"A", "B"}, report.GapSkills(2))
	assert.Equal(t, []string{"A", "B", "C"}, report.GapSkills(0))
}

func TestJobRequirements_ValidateRequiresTitleAndLevel(t *testing.T) {
	job := JobRequirements{Title: "Backend Engineer", ExperienceLevel: "Senior"}
	assert.NoError(t, job.Validate())

	job.Title = ""
	assert.Error(t, job.Validate())
}

func TestCVAnalysisReport_NormalizeDefaultsPriority(t *testing.T) {
	report := CVAnalysisReport{SectionAnalyses: []SectionAnalysis{{SectionName: "Skills"}}}

	report.Normalize()

	assert.Equal(t, PriorityMedium, report.SectionAnalyses[0].Priority)
	assert.NoError(t, report.Validate())
}
