package types

// RewrittenSection is the rewrite step's output. A new instance is produced on
// every refinement iteration.
type RewrittenSection struct {
	Summary            string       `json:"summary"`
	Experience         []Experience `json:"experience"`
	Skills             []string     `json:"skills"`
	KeywordsIntegrated []string     `json:"keywords_integrated"`
	ModificationsMade  []string     `json:"modifications_made"`
}

// Normalize replaces nil collections with empty ones
func (r *RewrittenSection) Normalize() {
	if r.Experience == nil {
		r.Experience = []Experience{}
	}
	for i := range r.Experience {
		r.Experience[i].normalize()
	}
	r.Skills = nonNil(r.Skills)
	r.KeywordsIntegrated = nonNil(r.KeywordsIntegrated)
	r.ModificationsMade = nonNil(r.ModificationsMade)
}

// Priority values for a section analysis
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// SectionAnalysis holds recommendations for one CV section
type SectionAnalysis struct {
	SectionName   string   `json:"section_name" validate:"required"`
	CurrentStatus string   `json:"current_status"`
	ItemsToAdd    []string `json:"items_to_add"`
	ItemsToRemove []string `json:"items_to_remove"`
	ItemsToModify []string `json:"items_to_modify"`
	KeywordsToAdd []string `json:"keywords_to_add"`
	Priority      string   `json:"priority" validate:"oneof=high medium low"`
}

// CVAnalysisReport is the analyze step's output
type CVAnalysisReport struct {
	OverallAssessment    string            `json:"overall_assessment"`
	RelevanceScore       float64           `json:"relevance_score" validate:"gte=0,lte=100"`
	SectionAnalyses      []SectionAnalysis `json:"section_analyses" validate:"dive"`
	CriticalGaps         []string          `json:"critical_gaps"`
	StrengthsToEmphasize []string          `json:"strengths_to_emphasize"`
	QuickWins            []string          `json:"quick_wins"`
}

// Validate checks score range and section priorities
func (r *CVAnalysisReport) Validate() error {
	return validate.Struct(r)
}

// Normalize replaces nil collections with empty ones and defaults section priority
func (r *CVAnalysisReport) Normalize() {
	if r.SectionAnalyses == nil {
		r.SectionAnalyses = []SectionAnalysis{}
	}
	for i := range r.SectionAnalyses {
		s := &r.SectionAnalyses[i]
		if s.Priority == "" {
			s.Priority = PriorityMedium
		}
		s.ItemsToAdd = nonNil(s.ItemsToAdd)
		s.ItemsToRemove = nonNil(s.ItemsToRemove)
		s.ItemsToModify = nonNil(s.ItemsToModify)
		s.KeywordsToAdd = nonNil(s.KeywordsToAdd)
	}
	r.CriticalGaps = nonNil(r.CriticalGaps)
	r.StrengthsToEmphasize = nonNil(r.StrengthsToEmphasize)
	r.QuickWins = nonNil(r.QuickWins)
}
