package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-adaptor/internal/facts"
	"github.com/jonathan/cv-adaptor/internal/llm"
	"github.com/jonathan/cv-adaptor/internal/types"
)

type fakeClient struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeClient) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}
func (f *fakeClient) Model(llm.ModelTier) string { return "fake-model" }
func (f *fakeClient) Close() error               { return nil }

type fakeRetriever struct{ results []string }

func (r *fakeRetriever) Retrieve(context.Context, facts.Namespace, string, int) []string {
	return r.results
}

func sampleInputs() (*types.CandidateProfile, *types.JobRequirements, *types.MatchGapReport) {
	profile := &types.CandidateProfile{
		Summary: "Backend developer",
		Skills:  []string{"Python", "Docker", "AWS"},
		Experience: []types.Experience{{
			Company:      "Acme",
			Position:     "Engineer",
			Duration:     "2020-2023",
			Description:  "Built data services",
			Achievements: []string{"Cut costs 30%"},
			Metrics:      []string{"30% cost reduction"},
		}},
		Education: []types.Education{{Institution: "MIT", Degree: "BSc", Field: "Computer Science", Duration: "2014-2018"}},
	}
	job := &types.JobRequirements{
		Title:           "Senior Python Developer",
		ExperienceLevel: "Senior",
		KeySkills:       []string{"Python", "Django", "Docker", "AWS", "Kubernetes"},
	}
	report := &types.MatchGapReport{
		RelevanceScore: 60,
		SkillGaps:      []types.SkillGap{{Skill: "Django"}, {Skill: "Kubernetes"}},
		MatchedSkills:  []string{"Python", "Docker", "AWS"},
		TargetKeywords: []string{"Python", "Django"},
		Recommendation: types.RecommendationOptimize,
	}
	return profile, job, report
}

func TestFormatExperience(t *testing.T) {
	profile, _, _ := sampleInputs()

	assert.Equal(t,
		"- Engineer at Acme (2020-2023)\n  Built data services\n  * Cut costs 30%\n  Metrics: 30% cost reduction",
		FormatExperience(profile.Experience))
	assert.Equal(t, "None listed", FormatExperience(nil))
}

func TestBuildPrompt(t *testing.T) {
	profile, job, report := sampleInputs()

	prompt, err := BuildPrompt(profile, job, report, nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Relevance Score: 60.0")
	assert.Contains(t, prompt, "Skill Gaps: Django, Kubernetes")
	assert.Contains(t, prompt, "Education: BSc in Computer Science, MIT (2014-2018)")
	assert.Contains(t, prompt, "Certifications: None listed")
	assert.Contains(t, prompt, "Experience Level: Senior")
	assert.NotContains(t, prompt, "{{.")
}

func TestAnalyze_Generated(t *testing.T) {
	profile, job, report := sampleInputs()
	client := &fakeClient{response: `{"overall_assessment": "Solid fit", "relevance_score": 60, "section_analyses": [{"section_name": "Experience", "current_status": "Good", "items_to_add": ["Django project"]}], "critical_gaps": ["Django"], "strengths_to_emphasize": ["AWS"], "quick_wins": ["Add Kubernetes course"]}`}

	result := NewAnalyzer(client, &fakeRetriever{results: []string{"Technical Skills: Python"}}, nil).Analyze(context.Background(), profile, job, report)

	require.False(t, result.UsedFallback())
	assert.Equal(t, "Solid fit", result.Value.OverallAssessment)
	require.Len(t, result.Value.SectionAnalyses, 1)
	assert.Equal(t, types.PriorityMedium, result.Value.SectionAnalyses[0].Priority)
	assert.Equal(t, []string{}, result.Value.SectionAnalyses[0].ItemsToRemove)
	assert.Contains(t, client.prompts[0], "Technical Skills: Python")
}

func TestAnalyze_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
	}{
		{name: "transport error", client: &fakeClient{err: errors.New("timeout")}},
		{name: "no JSON", client: &fakeClient{response: "sorry"}},
		{name: "bad priority", client: &fakeClient{response: `{"overall_assessment": "ok", "relevance_score": 50, "section_analyses": [{"section_name": "Skills", "current_status": "ok", "priority": "urgent"}]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, job, report := sampleInputs()

			result := NewAnalyzer(tt.client, &fakeRetriever{}, nil).Analyze(context.Background(), profile, job, report)

			require.True(t, result.UsedFallback())
			assert.Error(t, result.Err)
			assert.Equal(t, FallbackSection, result.Value.SectionAnalyses[0].SectionName)
		})
	}
}

func TestFallback(t *testing.T) {
	_, _, report := sampleInputs()

	out := Fallback(report)

	assert.Equal(t, 60.0, out.RelevanceScore)
	require.Len(t, out.SectionAnalyses, 1)
	section := out.SectionAnalyses[0]
	assert.Equal(t, "Skills", section.SectionName)
	assert.Equal(t, types.PriorityHigh, section.Priority)
	assert.Equal(t, []string{"Django", "Kubernetes"}, section.ItemsToAdd)
	assert.Equal(t, []string{"Django", "Kubernetes"}, section.KeywordsToAdd)
	assert.Equal(t, []string{"Django", "Kubernetes"}, out.CriticalGaps)
	assert.Equal(t, []string{"Python", "Docker", "AWS"}, out.StrengthsToEmphasize)
	assert.Len(t, out.QuickWins, 2)
	assert.NoError(t, out.Validate())
}

func TestFallback_NoGaps(t *testing.T) {
	out := Fallback(&types.MatchGapReport{RelevanceScore: 100, MatchedSkills: []string{"Go"}})

	assert.Equal(t, types.PriorityLow, out.SectionAnalyses[0].Priority)
	assert.Equal(t, []string{}, out.CriticalGaps)
	assert.Equal(t, []string{}, out.QuickWins)
}
