package pipeline

import (
	"github.com/jonathan/cv-adaptor/internal/types"
)

// UnmodifiedNote annotates a CV returned without rewriting
const UnmodifiedNote = "Original CV returned without modifications"

// FinalizeAdaptation assembles the adapted CV. When rewriting ran, the latest
// draft replaces summary, experience and skills; education, certifications,
// projects and languages always come from the original profile. Without a
// draft the original profile is returned with UnmodifiedNote.
func FinalizeAdaptation(profile *types.CandidateProfile, rewritten *types.RewrittenSection, match *types.MatchGapReport, qa *types.QAReport) *types.AdaptedCV {
	original := profile.Clone()
	original.Normalize()

	score := 0.0
	if match != nil {
		score = match.RelevanceScore
	}

	out := &types.AdaptedCV{
		Contact:        original.Contact,
		Summary:        original.Summary,
		Experience:     original.Experience,
		Education:      original.Education,
		Skills:         original.Skills,
		Certifications: original.Certifications,
		Projects:       original.Projects,
		Languages:      original.Languages,
		RelevanceScore: score,
	}

	if rewritten == nil {
		out.QAPassed = true
		out.AdaptationNotes = []string{UnmodifiedNote}
		return out
	}

	if rewritten.Summary != "" {
		out.Summary = rewritten.Summary
	}
	out.Experience = types.CloneExperience(rewritten.Experience)
	out.Skills = append([]string{}, rewritten.Skills...)
	out.QAPassed = qa != nil && qa.Passed
	out.AdaptationNotes = append([]string{}, rewritten.ModificationsMade...)
	return out
}

// FinalizeAnalysis assembles the analysis output
func FinalizeAnalysis(profile *types.CandidateProfile, job *types.JobRequirements, analysis *types.CVAnalysisReport, match *types.MatchGapReport) *types.AnalysisOutput {
	out := &types.AnalysisOutput{
		AnalysisReport: *analysis,
		MatchReport:    *match,
	}
	if profile != nil {
		out.CandidateName = profile.Contact.Name
	}
	if job != nil {
		out.JobTitle = job.Title
	}
	return out
}
