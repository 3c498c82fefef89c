package parsing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/cv-adaptor/internal/llm"
)

// fakeClient returns scripted responses in order, repeating the last one
type fakeClient struct {
	responses []string
	errs      []error
	prompts   []string
}

func (f *fakeClient) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func (f *fakeClient) Model(llm.ModelTier) string { return "fake-model" }
func (f *fakeClient) Close() error               { return nil }

const sampleCVResponse = `Here you go:
{
  "contact": {"name": "Alex Chen", "email": "alex@example.com", "github": null},
  "summary": "Backend engineer",
  "experience": [{
    "company": "TechCorp",
    "position": "Senior Engineer",
    "duration": "2020 - Present",
    "description": "Built APIs",
    "achievements": ["Cut latency by 40%"],
    "skills_used": ["Python", " python ", "Docker"],
    "metrics": ["40%"]
  }],
  "skills": ["Python", "Docker", "AWS", "docker"]
}`

func TestParseCV_Success(t *testing.T) {
	client := &fakeClient{responses: []string{sampleCVResponse}}
	parser := NewParser(client)

	result := parser.ParseCV(context.Background(), "cv text")

	require.False(t, result.UsedFallback())
	profile := result.Value
	assert.Equal(t, "Alex Chen", profile.Contact.Name)
	assert.Equal(t, []string{"Python", "Docker", "AWS"}, profile.Skills)
	assert.Equal(t, []string{"Python", "Docker"}, profile.Experience[0].SkillsUsed)
	assert.NotNil(t, profile.Education)
	assert.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "cv text")
	assert.NotContains(t, client.prompts[0], "PREVIOUS ERROR")
}

func TestParseCV_NonJSONExhaustsAttemptsThenFallsBack(t *testing.T) {
	client := &fakeClient{responses: []string{"I'm sorry, I can't read that document."}}
	core, logs := observer.New(zapcore.WarnLevel)
	parser := NewParser(client, WithLogger(zap.New(core)))

	result := parser.ParseCV(context.Background(), "cv text")

	require.True(t, result.UsedFallback())
	require.Error(t, result.Err)
	assert.Len(t, client.prompts, DefaultMaxAttempts)
	assert.Equal(t, FallbackSummary, result.Value.Summary)
	assert.Empty(t, result.Value.Experience)
	assert.NotNil(t, result.Value.Skills)
	assert.Equal(t, 1, logs.FilterMessageSnippet("fell back").Len())
}

func TestParseCV_RetryNoticeOnlyAfterFirstAttempt(t *testing.T) {
	client := &fakeClient{responses: []string{`{"summary": "missing contact"}`}}
	parser := NewParser(client)

	_ = parser.ParseCV(context.Background(), "cv text")

	require.Len(t, client.prompts, 3)
	assert.NotContains(t, client.prompts[0], "PREVIOUS ERROR")
	for _, prompt := range client.prompts[1:] {
		assert.Contains(t, prompt, "PREVIOUS ERROR: The last response had validation errors")
		assert.Contains(t, prompt, "contact is required")
	}
}

func TestParseCV_RecoversOnSecondAttempt(t *testing.T) {
	client := &fakeClient{
		responses: []string{"", sampleCVResponse},
		errs:      []error{errors.New("503 unavailable")},
	}
	parser := NewParser(client)

	result := parser.ParseCV(context.Background(), "cv text")

	assert.False(t, result.UsedFallback())
	assert.Len(t, client.prompts, 2)
}

func TestParseCV_MaxAttemptsOption(t *testing.T) {
	client := &fakeClient{responses: []string{"nope"}}
	parser := NewParser(client, WithMaxAttempts(1))

	result := parser.ParseCV(context.Background(), "cv text")

	assert.True(t, result.UsedFallback())
	assert.Len(t, client.prompts, 1)
}

func TestParseCV_CancelledContext(t *testing.T) {
	client := &fakeClient{responses: []string{sampleCVResponse}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewParser(client).ParseCV(ctx, "cv text")

	assert.True(t, result.UsedFallback())
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Empty(t, client.prompts)
}

func TestParseJobDescription_RawTextIsVerbatimInput(t *testing.T) {
	jobText := "Senior Python Developer at CloudScale\nRequirements: Python, Django"
	client := &fakeClient{responses: []string{`{
		"title": "Senior Python Developer",
		"company": "CloudScale",
		"experience_level": "Senior",
		"key_skills": ["Python", "Django"],
		"requirements": [{"category": "Technical Skills", "requirement": "5+ years Python", "importance": "Required", "keywords": ["Python"]}],
		"raw_text": "something the model made up"
	}`}}

	result := NewParser(client).ParseJobDescription(context.Background(), jobText)

	require.False(t, result.UsedFallback())
	assert.Equal(t, jobText, result.Value.RawText)
	assert.Equal(t, []string{"Python", "Django"}, result.Value.KeySkills)
	assert.NotNil(t, result.Value.Responsibilities)
}

func TestParseJobDescription_Fallback(t *testing.T) {
	client := &fakeClient{responses: []string{`{"company": "NoTitle Inc"}`}}

	result := NewParser(client).ParseJobDescription(context.Background(), "job text")

	require.True(t, result.UsedFallback())
	assert.Len(t, client.prompts, 3)
	assert.Equal(t, FallbackJobTitle, result.Value.Title)
	assert.Equal(t, "Mid", result.Value.ExperienceLevel)
	assert.Equal(t, "job text", result.Value.RawText)
	assert.Empty(t, result.Value.KeySkills)
}

func TestCleanList(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil", input: nil, expected: []string{}},
		{name: "trims and collapses", input: []string{"  Machine   Learning "}, expected: []string{"Machine Learning"}},
		{name: "dedupes case-insensitively", input: []string{"AWS", "aws", "Go"}, expected: []string{"AWS", "Go"}},
		{name: "drops empty", input: []string{"", "  ", "SQL"}, expected: []string{"SQL"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanList(tt.input))
		})
	}
}
