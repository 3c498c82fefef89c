// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/cv-adaptor/internal/pipeline"
	"github.com/jonathan/cv-adaptor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// writeList appends up to limit items as bullets with an overflow note.
func writeList(sb *strings.Builder, heading string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	for _, item := range items[:min(len(items), limit)] {
		sb.WriteString(fmt.Sprintf("  • %s\n", item))
	}
	if len(items) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-limit))
	}
}

// PrintCandidateProfile outputs a summary of the parsed CV.
func (p *Printer) PrintCandidateProfile(profile *types.CandidateProfile) {
	if profile == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name:        %s\n", profile.Contact.Name))
	sb.WriteString(fmt.Sprintf("Positions:   %d\n", len(profile.Experience)))
	sb.WriteString(fmt.Sprintf("Education:   %d\n\n", len(profile.Education)))
	for i, exp := range profile.Experience {
		if i == maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more positions\n", len(profile.Experience)-maxItemsToShow))
			break
		}
		sb.WriteString(fmt.Sprintf("• %s at %s\n", exp.Position, exp.Company))
	}
	writeList(&sb, "Skills", profile.Skills, maxItemsToShow)

	p.printBox("PARSED CV", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJobRequirements outputs a summary of the parsed job description.
func (p *Printer) PrintJobRequirements(job *types.JobRequirements) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title:    %s\n", job.Title))
	if job.Company != "" {
		sb.WriteString(fmt.Sprintf("Company:  %s\n", job.Company))
	}
	sb.WriteString(fmt.Sprintf("Level:    %s\n\n", job.ExperienceLevel))

	var required []string
	for _, req := range job.Requirements {
		if req.Importance == types.ImportanceRequired {
			required = append(required, req.Requirement)
		}
	}
	writeList(&sb, "Required", required, maxItemsToShow)
	writeList(&sb, "Key skills", job.KeySkills, maxItemsToShow)

	p.printBox("PARSED JOB REQUIREMENTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMatchReport outputs the relevance score and skill gaps.
func (p *Printer) PrintMatchReport(match *types.MatchGapReport) {
	if match == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Relevance:       %.1f%%\n", match.RelevanceScore))
	sb.WriteString(fmt.Sprintf("Recommendation:  %s\n\n", match.Recommendation))
	writeList(&sb, "Matched", match.MatchedSkills, maxItemsToShow)

	gaps := make([]string, 0, len(match.SkillGaps))
	for _, gap := range match.SkillGaps {
		line := gap.Skill
		if gap.Importance != "" {
			line += " (" + gap.Importance + ")"
		}
		gaps = append(gaps, line)
	}
	writeList(&sb, "Gaps", gaps, maxItemsToShow)

	p.printBox("MATCH REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRewrittenSection outputs the rewritten summary and integrated keywords.
func (p *Printer) PrintRewrittenSection(section *types.RewrittenSection) {
	if section == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(truncate(section.Summary, 3*(boxWidth-4)) + "\n\n")
	writeList(&sb, "Keywords integrated", section.KeywordsIntegrated, maxItemsToShow)
	writeList(&sb, "Modifications", section.ModificationsMade, 3)

	p.printBox("REWRITTEN CV", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintQAReport outputs the validation verdict and its issues.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintQAReport(qa *types.QAReport, iterations int) {
	if qa == nil {
		return
	}
	if qa.Passed && len(qa.Issues) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, fmt.Sprintf("✅ QA PASSED (score %.1f, %d iterations)", qa.OverallScore, iterations))
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Passed: %t  Score: %.1f  Iterations: %d\n\n", qa.Passed, qa.OverallScore, iterations))
	for i, issue := range qa.Issues {
		sb.WriteString(fmt.Sprintf("⚠ %s [%s]\n", issue.IssueType, issue.Severity))
		sb.WriteString(fmt.Sprintf("  %s\n", truncate(issue.Description, boxWidth-6)))
		if i < len(qa.Issues)-1 {
			sb.WriteString("\n")
		}
	}
	writeList(&sb, "Missing keywords", qa.MissingKeywords, maxItemsToShow)

	p.printBox("QA REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintResult outputs every record carried by a run result.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintResult(result *pipeline.Result) {
	if result == nil {
		return
	}
	p.PrintCandidateProfile(result.Profile)
	p.PrintJobRequirements(result.Requirements)
	p.PrintMatchReport(result.MatchReport)
	if result.Variant == pipeline.VariantAdapt {
		p.PrintQAReport(result.QAReport, result.QAIterations)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", result.RunID))
	sb.WriteString(fmt.Sprintf("Success:  %t\n", result.Success))
	sb.WriteString(fmt.Sprintf("Stopped:  %s\n", result.CurrentStep))
	writeList(&sb, "Fallbacks", result.Fallbacks, maxItemsToShow)
	writeList(&sb, "Errors", result.Errors, maxItemsToShow)
	p.printBox("RUN SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// Progress returns a callback that prints one line per pipeline event.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) Progress() pipeline.ProgressCallback {
	return func(event pipeline.ProgressEvent) {
		fmt.Fprintf(p.out, "[%s] %s: %s\n", event.Category, event.Step, event.Message)
	}
}
