package facts

import (
	"fmt"
	"strings"

	"github.com/jonathan/cv-adaptor/internal/types"
)

// Fact kinds
const (
	KindSummary        = "summary"
	KindExperience     = "experience"
	KindAchievement    = "achievement"
	KindMetric         = "metric"
	KindSkills         = "skills"
	KindEducation      = "education"
	KindCertification  = "certification"
	KindProject        = "project"
	KindJobInfo        = "basic_info"
	KindRequirement    = "requirement"
	KindResponsibility = "responsibility"
)

// ProfileFacts decomposes a candidate profile into atomic retrievable statements
func ProfileFacts(p *types.CandidateProfile) []Fact {
	if p == nil {
		return nil
	}

	var out []Fact
	add := func(kind, text string) {
		out = append(out, newFact(NamespaceCV, kind, text))
	}

	if s := strings.TrimSpace(p.Summary); s != "" {
		add(KindSummary, "Professional Summary: "+s)
	}

	for _, exp := range p.Experience {
		add(KindExperience, strings.TrimSpace(fmt.Sprintf("Position: %s at %s (%s). %s", exp.Position, exp.Company, exp.Duration, exp.Description)))
		for _, a := range exp.Achievements {
			add(KindAchievement, fmt.Sprintf("Achievement at %s: %s", exp.Company, a))
		}
		for _, m := range exp.Metrics {
			add(KindMetric, fmt.Sprintf("Metric from %s: %s", exp.Company, m))
		}
		if len(exp.SkillsUsed) > 0 {
			add(KindSkills, fmt.Sprintf("Skills used at %s: %s", exp.Company, strings.Join(exp.SkillsUsed, ", ")))
		}
	}

	for _, edu := range p.Education {
		add(KindEducation, fmt.Sprintf("Education: %s in %s from %s (%s)", edu.Degree, orNA(edu.Field), edu.Institution, edu.Duration))
	}

	if len(p.Skills) > 0 {
		add(KindSkills, "Technical Skills: "+strings.Join(p.Skills, ", "))
	}
	for _, c := range p.Certifications {
		add(KindCertification, "Certification: "+c)
	}
	for _, pr := range p.Projects {
		add(KindProject, "Project: "+pr)
	}

	return out
}

// JobFacts decomposes job requirements into atomic retrievable statements
func JobFacts(j *types.JobRequirements) []Fact {
	if j == nil {
		return nil
	}

	out := []Fact{newFact(NamespaceJD, KindJobInfo,
		fmt.Sprintf("Job Title: %s at %s. Experience Level: %s", j.Title, orNA(j.Company), j.ExperienceLevel))}

	for _, req := range j.Requirements {
		text := fmt.Sprintf("%s (%s): %s", req.Category, req.Importance, req.Requirement)
		if len(req.Keywords) > 0 {
			text += " Keywords: " + strings.Join(req.Keywords, ", ")
		}
		out = append(out, newFact(NamespaceJD, KindRequirement, text))
	}

	if len(j.KeySkills) > 0 {
		out = append(out, newFact(NamespaceJD, KindSkills, "Required Skills: "+strings.Join(j.KeySkills, ", ")))
	}
	for _, r := range j.Responsibilities {
		out = append(out, newFact(NamespaceJD, KindResponsibility, "Responsibility: "+r))
	}

	return out
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
