package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get("parsing.json", "parse-cv")
	require.NoError(t, err)
	assert.Contains(t, prompt, "expert CV parser")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get("parsing.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestFormat(t *testing.T) {
	template := "Hello {{.Name}}, welcome to {{.Company}}! {{.Unknown}}"
	data := map[string]string{
		"Name":    "Alice",
		"Company": "Acme Corp",
	}

	assert.Equal(t, "Hello Alice, welcome to Acme Corp! {{.Unknown}}", Format(template, data))
}

func TestFormat_ValuesAreNotReexpanded(t *testing.T) {
	result := Format("{{.A}} {{.B}}", map[string]string{"A": "{{.B}}", "B": "b"})
	assert.Equal(t, "{{.B}} b", result)
}

func TestRender_MissingValue(t *testing.T) {
	ClearCache()

	_, err := Render("rewriting.json", "qa-feedback", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Feedback")
}

func TestRender_QAFeedback(t *testing.T) {
	ClearCache()

	out, err := Render("rewriting.json", "qa-feedback", map[string]string{"Feedback": "Add Kubernetes"})
	require.NoError(t, err)
	assert.Contains(t, out, "QA FEEDBACK FOR REVISION:\nAdd Kubernetes")
	assert.Contains(t, out, "Please address these specific issues")
}

func TestAllPromptFilesParse(t *testing.T) {
	ClearCache()

	files := map[string][]string{
		"parsing.json":    {"parse-cv", "parse-job", "retry-notice"},
		"scoring.json":    {"score-match"},
		"rewriting.json":  {"qa-feedback", "rewrite-cv"},
		"analysis.json":   {"analyze-cv"},
		"validation.json": {"validate-cv"},
	}

	for file, want := range files {
		keys, err := List(file)
		require.NoError(t, err, file)
		assert.Equal(t, want, keys, file)
	}
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders("{{.B}} and {{.A}} and {{.B}} but not {{ .C }}")
	assert.Equal(t, []string{"A", "B"}, names)
}
