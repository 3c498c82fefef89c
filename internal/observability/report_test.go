package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-adaptor/internal/types"
)

func sampleAnalysis() *types.CVAnalysisReport {
	return &types.CVAnalysisReport{
		OverallAssessment:    "Strong backend profile.",
		CriticalGaps:         []string{"Kubernetes"},
		StrengthsToEmphasize: []string{"Go"},
		QuickWins:            []string{"Add Kubernetes", "Quantify impact"},
		SectionAnalyses: []types.SectionAnalysis{
			{SectionName: "Education", Priority: types.PriorityLow, CurrentStatus: "Fine"},
			{SectionName: "Skills", Priority: types.PriorityHigh, CurrentStatus: "Sparse",
				ItemsToAdd: []string{"Kubernetes"}, KeywordsToAdd: []string{"Kubernetes", "Helm"}},
			{SectionName: "Summary", Priority: "MEDIUM", CurrentStatus: "Generic", ItemsToModify: []string{"Lead with Go"}},
			{SectionName: "Hobbies", Priority: "someday"},
		},
	}
}

func TestFormatAnalysisReport(t *testing.T) {
	out := FormatAnalysisReport(sampleAnalysis(), &types.MatchGapReport{RelevanceScore: 72.25})
	rule := strings.Repeat("=", 80)

	assert.True(t, strings.HasPrefix(out, rule+"\nCV ANALYSIS REPORT\n"+rule+"\n"))
	assert.Contains(t, out, "OVERALL ASSESSMENT\n"+strings.Repeat("-", 80)+"\nStrong backend profile.")
	assert.Contains(t, out, "Relevance Score: 72.2%")
	assert.Contains(t, out, "1. Add Kubernetes\n2. Quantify impact")
	assert.Contains(t, out, "CRITICAL GAPS\n"+strings.Repeat("-", 80)+"\n• Kubernetes")
	assert.Contains(t, out, "STRENGTHS TO EMPHASIZE")
	assert.Contains(t, out, "SKILLS [Priority: HIGH]")
	assert.Contains(t, out, "Items to Add:\n  • Kubernetes")
	assert.Contains(t, out, "Keywords to Add: Kubernetes, Helm")
	assert.Contains(t, out, "Items to Modify:\n  • Lead with Go")
	assert.NotContains(t, out, "Items to Remove:")
	assert.True(t, strings.HasSuffix(out, rule+"\nEND OF REPORT\n"+rule))

	skills := strings.Index(out, "SKILLS [")
	summary := strings.Index(out, "SUMMARY [")
	education := strings.Index(out, "EDUCATION [")
	hobbies := strings.Index(out, "HOBBIES [")
	require.True(t, skills > 0 && summary > 0 && education > 0 && hobbies > 0)
	assert.Less(t, skills, summary)
	assert.Less(t, summary, education)
	assert.Less(t, education, hobbies)
}

func TestFormatAnalysisReport_WithoutMatch(t *testing.T) {
	report := &types.CVAnalysisReport{OverallAssessment: "Thin CV."}
	out := FormatAnalysisReport(report, nil)

	assert.NotContains(t, out, "Relevance Score")
	assert.NotContains(t, out, "QUICK WINS")
	assert.NotContains(t, out, "CRITICAL GAPS")
	assert.Contains(t, out, "DETAILED SECTION ANALYSIS")
}

func TestFormatAnalysisReport_DoesNotReorderInput(t *testing.T) {
	report := sampleAnalysis()
	_ = FormatAnalysisReport(report, nil)
	assert.Equal(t, "Education", report.SectionAnalyses[0].SectionName)
}
