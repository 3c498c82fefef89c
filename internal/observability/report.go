package observability

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/cv-adaptor/internal/types"
)

const reportWidth = 80

var priorityRank = map[string]int{
	types.PriorityHigh:   0,
	types.PriorityMedium: 1,
	types.PriorityLow:    2,
}

// FormatAnalysisReport renders an analysis report as plain text for download.
// match may be nil, in which case the relevance line is omitted.
func FormatAnalysisReport(report *types.CVAnalysisReport, match *types.MatchGapReport) string {
	heavy := strings.Repeat("=", reportWidth)
	light := strings.Repeat("-", reportWidth)

	var lines []string
	add := func(l ...string) { lines = append(lines, l...) }

	add(heavy, "CV ANALYSIS REPORT", heavy, "")
	if report == nil {
		report = &types.CVAnalysisReport{}
	}

	add("OVERALL ASSESSMENT", light, report.OverallAssessment, "")
	if match != nil {
		add(fmt.Sprintf("Relevance Score: %.1f%%", match.RelevanceScore), "")
	}

	if len(report.QuickWins) > 0 {
		add("QUICK WINS", light)
		for i, win := range report.QuickWins {
			add(fmt.Sprintf("%d. %s", i+1, win))
		}
		add("")
	}
	if len(report.CriticalGaps) > 0 {
		add("CRITICAL GAPS", light)
		for _, gap := range report.CriticalGaps {
			add("• " + gap)
		}
		add("")
	}
	if len(report.StrengthsToEmphasize) > 0 {
		add("STRENGTHS TO EMPHASIZE", light)
		for _, s := range report.StrengthsToEmphasize {
			add("• " + s)
		}
		add("")
	}

	add("DETAILED SECTION ANALYSIS", heavy)
	for _, section := range sortedSections(report.SectionAnalyses) {
		add("",
			fmt.Sprintf("%s [Priority: %s]", strings.ToUpper(section.SectionName), strings.ToUpper(section.Priority)),
			light,
			"Current Status: "+section.CurrentStatus,
			"")
		for _, group := range []struct {
			label string
			items []string
		}{
			{"Items to Add:", section.ItemsToAdd},
			{"Items to Remove:", section.ItemsToRemove},
			{"Items to Modify:", section.ItemsToModify},
		} {
			if len(group.items) == 0 {
				continue
			}
			add(group.label)
			for _, item := range group.items {
				add("  • " + item)
			}
			add("")
		}
		if len(section.KeywordsToAdd) > 0 {
			add("Keywords to Add: "+strings.Join(section.KeywordsToAdd, ", "), "")
		}
	}

	add(heavy, "END OF REPORT", heavy)
	return strings.Join(lines, "\n")
}

// sortedSections orders sections high, medium, low; unknown priorities go last.
func sortedSections(sections []types.SectionAnalysis) []types.SectionAnalysis {
	out := append([]types.SectionAnalysis(nil), sections...)
	rank := func(p string) int {
		if r, ok := priorityRank[strings.ToLower(p)]; ok {
			return r
		}
		return len(priorityRank)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Priority) < rank(out[j].Priority)
	})
	return out
}
