package rewriting

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

type fakeRetriever struct {
	results []string
	queries []string
}

func (r *fakeRetriever) Retrieve(_ context.Context, ns facts.Namespace, query string, _ int) []string {
	if ns == facts.NamespaceCV {
		r.queries = append(r.queries, query)
	}
	return r.results
}

func sampleInputs() (*types.CandidateProfile, *types.JobRequirements, *types.MatchGapReport) {
	profile := &types.CandidateProfile{
		Contact: types.ContactInfo{Name: "Ada Lovelace"},
		Skills:  []string{"Python", "Docker", "AWS", "SQL"},
		Experience: []types.Experience{
			{Company: "Acme", Position: "Engineer", Duration: "2020-2023", Achievements: []string{"Cut costs 30%", "Led migration", "Mentored 4"}},
			{Company: "Globex", Position: "Developer", Duration: "2018-2020", Achievements: []string{"Built API"}},
			{Company: "Initech", Position: "Intern", Duration: "2017", Achievements: []string{"Fixed bugs"}},
		},
	}
	job := &types.JobRequirements{
		Title:            "Backend Engineer",
		KeySkills:        []string{"Python", "Django", "Kubernetes", "AWS"},
		Responsibilities: []string{"Build services", "Own deployments", "Review code", "Write docs"},
	}
	profile.Normalize()
	report := &types.MatchGapReport{
		RelevanceScore: 70,
		TargetKeywords: []string{"Python", "Django", "Kubernetes", "AWS", "CI/CD", "REST"},
		SkillGaps:      []types.SkillGap{{Skill: "Django"}, {Skill: "Kubernetes"}},
		Recommendation: types.RecommendationOptimize,
	}
	return profile, job, report
}

func TestFactsQuery(t *testing.T) {
	_, _, report := sampleInputs()
	assert.Equal(t, "Experience and skills related to Python, Django, Kubernetes, AWS, CI/CD", FactsQuery(report))
}

func TestStyleExamples(t *testing.T) {
	tests := []struct {
		name     string
		profile  *types.CandidateProfile
		expected string
	}{
		{
			name: "first two achievements of first two entries",
			profile: func() *types.CandidateProfile {
				p, _, _ := sampleInputs()
				return p
			}(),
			expected: "- Cut costs 30%\n- Led migration\n- Built API",
		},
		{
			name:     "no achievements",
			profile:  &types.CandidateProfile{Experience: []types.Experience{{Company: "Acme"}}},
			expected: "Use professional, concise tone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StyleExamples(tt.profile))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	profile, job, report := sampleInputs()

	prompt, err := BuildPrompt(profile, job, report, nil, "")
	require.NoError(t, err)
	assert.Contains(t, prompt, "No specific facts retrieved")
	assert.Contains(t, prompt, "Key Responsibilities: Build services, Own deployments, Review code\n")
	assert.Contains(t, prompt, "Django, Kubernetes")
	assert.Contains(t, prompt, "emphasizing Backend Engineer skills and Python, Django, Kubernetes")
	assert.NotContains(t, prompt, "QA FEEDBACK FOR REVISION")
	assert.NotContains(t, prompt, "{{.")

	prompt, err = BuildPrompt(profile, job, report, []string{"fact one", "fact two"}, "Add Kubernetes")
	require.NoError(t, err)
	assert.Contains(t, prompt, "fact one\nfact two")
	assert.Contains(t, prompt, "QA FEEDBACK FOR REVISION:\nAdd Kubernetes")
}

func TestBuildPrompt_DefaultsJobTitle(t *testing.T) {
	profile, job, report := sampleInputs()
	job.Title = ""

	prompt, err := BuildPrompt(profile, job, report, nil, "")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Title: the position")
}

func TestRewrite_Generated(t *testing.T) {
	profile, job, report := sampleInputs()
	client := &fakeClient{response: "Here you go:\n```json\n" + `{"summary": "Backend engineer with Python and AWS", "experience": [{"company": "Acme", "position": "Engineer", "duration": "2020-2023", "description": "Python services on AWS"}], "skills": ["Python", "AWS"], "keywords_integrated": ["Python", "AWS"], "modifications_made": ["Reordered skills"]}` + "\n```"}
	retriever := &fakeRetriever{results: []string{"Technical Skills: Python, Docker, AWS, SQL"}}

	result := NewRewriter(client, retriever, nil).Rewrite(context.Background(), profile, job, report, "")

	require.False(t, result.UsedFallback())
	assert.Equal(t, "Backend engineer with Python and AWS", result.Value.Summary)
	require.Len(t, result.Value.Experience, 1)
	assert.Equal(t, []string{}, result.Value.Experience[0].Achievements)
	assert.Equal(t, []string{"Python", "AWS"}, result.Value.KeywordsIntegrated)
	assert.Equal(t, []string{FactsQuery(report)}, retriever.queries)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Technical Skills: Python, Docker, AWS, SQL")
}

func TestRewrite_CarriesFeedback(t *testing.T) {
	profile, job, report := sampleInputs()
	client := &fakeClient{err: errors.New("unavailable")}

	_ = NewRewriter(client, &fakeRetriever{}, nil).Rewrite(context.Background(), profile, job, report, "Mention Kubernetes in the summary")

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Mention Kubernetes in the summary")
	assert.Contains(t, client.prompts[0], "Please address these specific issues in your rewrite.")
}

func TestRewrite_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
	}{
		{name: "transport error", client: &fakeClient{err: errors.New("timeout")}},
		{name: "no JSON", client: &fakeClient{response: "I cannot do that"}},
		{name: "missing required fields", client: &fakeClient{response: `{"summary": "only a summary"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, job, report := sampleInputs()

			result := NewRewriter(tt.client, &fakeRetriever{}, nil).Rewrite(context.Background(), profile, job, report, "")

			require.True(t, result.UsedFallback())
			assert.Error(t, result.Err)
			assert.Equal(t, "Professional with experience in Python, Docker, AWS", result.Value.Summary)
			assert.Equal(t, profile.Experience, result.Value.Experience)
			assert.Equal(t, profile.Skills, result.Value.Skills)
			assert.Equal(t, []string{}, result.Value.KeywordsIntegrated)
			assert.Equal(t, []string{FallbackNote}, result.Value.ModificationsMade)
		})
	}
}

func TestFallback_DoesNotAliasProfile(t *testing.T) {
	profile, _, _ := sampleInputs()

	section := Fallback(profile)
	section.Experience[0].Achievements[0] = "changed"
	section.Skills[0] = "changed"

	assert.Equal(t, "Cut costs 30%", profile.Experience[0].Achievements[0])
	assert.Equal(t, "Python", profile.Skills[0])
}
