package types

// Recommendation values attached to a match report
const (
	RecommendationProceed   = "proceed"
	RecommendationOptimize  = "optimize"
	RecommendationMajorGaps = "major_gaps"
)

// SkillGap is a job skill the candidate does not evidence
type SkillGap struct {
	Skill             string `json:"skill" validate:"required"`
	Importance        string `json:"importance"`
	PresentInCV       bool   `json:"present_in_cv"`
	SuggestedEvidence string `json:"suggested_evidence,omitempty"`
}

// MatchGapReport is the scoring step's output. It is produced once per run.
type MatchGapReport struct {
	RelevanceScore float64    `json:"relevance_score" validate:"gte=0,lte=100"`
	SkillGaps      []SkillGap `json:"skill_gaps" validate:"dive"`
	MatchedSkills  []string   `json:"matched_skills"`
	TargetKeywords []string   `json:"target_keywords"`
	FocusAreas     []string   `json:"focus_areas"`
	Recommendation string     `json:"recommendation" validate:"required,oneof=proceed optimize major_gaps"`
	Reasoning      string     `json:"reasoning,omitempty"`
}

// Validate checks score range and recommendation value
func (m *MatchGapReport) Validate() error {
	return validate.Struct(m)
}

// Normalize replaces nil collections with empty ones
func (m *MatchGapReport) Normalize() {
	if m.SkillGaps == nil {
		m.SkillGaps = []SkillGap{}
	}
	m.MatchedSkills = nonNil(m.MatchedSkills)
	m.TargetKeywords = nonNil(m.TargetKeywords)
	m.FocusAreas = nonNil(m.FocusAreas)
}

// GapSkills returns the names of the first n skill gaps (all when n <= 0)
func (m *MatchGapReport) GapSkills(n int) []string {
	gaps := m.SkillGaps
	if n > 0 && len(gaps) > n {
		gaps = gaps[:n]
	}
	names := make([]string, 0, len(gaps))
	for _, g := range gaps {
		names = append(names, g.Skill)
	}
	return names
}
