package types

// AdaptedCV is the terminal record of the adaptation variant
type AdaptedCV struct {
	Contact         ContactInfo  `json:"contact"`
	Summary         string       `json:"summary"`
	Experience      []Experience `json:"experience"`
	Education       []Education  `json:"education"`
	Skills          []string     `json:"skills"`
	Certifications  []string     `json:"certifications"`
	Projects        []string     `json:"projects"`
	Languages       []string     `json:"languages"`
	RelevanceScore  float64      `json:"relevance_score"`
	QAPassed        bool         `json:"qa_passed"`
	AdaptationNotes []string     `json:"adaptation_notes"`
}

// AnalysisOutput is the terminal record of the analysis variant
type AnalysisOutput struct {
	AnalysisReport CVAnalysisReport `json:"analysis_report"`
	MatchReport    MatchGapReport   `json:"match_report"`
	CandidateName  string           `json:"candidate_name,omitempty"`
	JobTitle       string           `json:"job_title,omitempty"`
}
