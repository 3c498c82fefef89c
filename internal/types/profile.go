// Package types provides type definitions for the structured records exchanged between pipeline steps.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// ContactInfo holds the contact block of a CV
type ContactInfo struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Location  string `json:"location,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	GitHub    string `json:"github,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
}

// Experience represents a single work experience entry
type Experience struct {
	Company      string   `json:"company"`
	Position     string   `json:"position"`
	Duration     string   `json:"duration"`
	Description  string   `json:"description"`
	Achievements []string `json:"achievements"`
	SkillsUsed   []string `json:"skills_used"`
	Metrics      []string `json:"metrics"` // Quantifiable results, e.g. "reduced latency 40%"
}

// Education represents a single education entry
type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field,omitempty"`
	Duration    string `json:"duration"`
	GPA         string `json:"gpa,omitempty"`
}

// CandidateProfile is the structured form of a CV produced by the parser
type CandidateProfile struct {
	Contact        ContactInfo  `json:"contact"`
	Summary        string       `json:"summary,omitempty"`
	Experience     []Experience `json:"experience"`
	Education      []Education  `json:"education"`
	Skills         []string     `json:"skills"`
	Certifications []string     `json:"certifications"`
	Projects       []string     `json:"projects"`
	Languages      []string     `json:"languages"`
}

// Normalize replaces nil collections with empty ones so the profile never
// serializes absent lists.
func (p *CandidateProfile) Normalize() {
	if p.Experience == nil {
		p.Experience = []Experience{}
	}
	for i := range p.Experience {
		p.Experience[i].normalize()
	}
	if p.Education == nil {
		p.Education = []Education{}
	}
	p.Skills = nonNil(p.Skills)
	p.Certifications = nonNil(p.Certifications)
	p.Projects = nonNil(p.Projects)
	p.Languages = nonNil(p.Languages)
}

func (e *Experience) normalize() {
	e.Achievements = nonNil(e.Achievements)
	e.SkillsUsed = nonNil(e.SkillsUsed)
	e.Metrics = nonNil(e.Metrics)
}

// Clone returns a deep copy of the profile
func (p *CandidateProfile) Clone() *CandidateProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Experience = CloneExperience(p.Experience)
	out.Education = append([]Education{}, p.Education...)
	out.Skills = cloneStrings(p.Skills)
	out.Certifications = cloneStrings(p.Certifications)
	out.Projects = cloneStrings(p.Projects)
	out.Languages = cloneStrings(p.Languages)
	return &out
}

// CloneExperience deep-copies a list of experience entries
func CloneExperience(in []Experience) []Experience {
	out := make([]Experience, len(in))
	for i, exp := range in {
		exp.Achievements = cloneStrings(exp.Achievements)
		exp.SkillsUsed = cloneStrings(exp.SkillsUsed)
		exp.Metrics = cloneStrings(exp.Metrics)
		out[i] = exp
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func cloneStrings(s []string) []string {
	return append([]string{}, s...)
}
