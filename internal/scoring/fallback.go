package scoring

import "github.com/jonathan/cv-adaptor/internal/types"

// NoRequirementsScore is the fallback score when the job lists no required skills
const NoRequirementsScore = 50.0

// optimizeThreshold separates "optimize" from "major_gaps" in the fallback
const optimizeThreshold = 50.0

// Fallback scores by exact skill overlap without generation.
// score = |matched| / |required| * 100, with matched and gaps listed in job order.
func Fallback(profile *types.CandidateProfile, job *types.JobRequirements) *types.MatchGapReport {
	candidate := make(map[string]bool, len(profile.Skills))
	for _, skill := range profile.Skills {
		candidate[skill] = true
	}

	required := unique(job.KeySkills)
	matched := []string{}
	gaps := []types.SkillGap{}
	for _, skill := range required {
		if candidate[skill] {
			matched = append(matched, skill)
			continue
		}
		gaps = append(gaps, types.SkillGap{
			Skill:       skill,
			Importance:  types.ImportanceRequired,
			PresentInCV: false,
		})
	}

	score := NoRequirementsScore
	if len(required) > 0 {
		score = float64(len(matched)) * 100 / float64(len(required))
	}

	recommendation := types.RecommendationMajorGaps
	if score >= optimizeThreshold {
		recommendation = types.RecommendationOptimize
	}

	return &types.MatchGapReport{
		RelevanceScore: score,
		SkillGaps:      gaps,
		MatchedSkills:  matched,
		TargetKeywords: required,
		FocusAreas:     []string{"Skills", "Experience"},
		Recommendation: recommendation,
		Reasoning:      "Basic keyword matching analysis",
	}
}

func unique(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
