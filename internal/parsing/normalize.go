package parsing

import (
	"strings"

	"github.com/jonathan/cv-adaptor/internal/types"
)

// CleanList trims entries, drops empty ones and removes case-insensitive
// duplicates, keeping the first spelling seen.
func CleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.Join(strings.Fields(item), " ")
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func cleanProfile(p *types.CandidateProfile) {
	p.Skills = CleanList(p.Skills)
	p.Certifications = CleanList(p.Certifications)
	p.Languages = CleanList(p.Languages)
	for i := range p.Experience {
		p.Experience[i].SkillsUsed = CleanList(p.Experience[i].SkillsUsed)
	}
}

func cleanJob(j *types.JobRequirements) {
	j.KeySkills = CleanList(j.KeySkills)
	for i := range j.Requirements {
		j.Requirements[i].Keywords = CleanList(j.Requirements[i].Keywords)
	}
}
