package types

// Severity values for QA issues
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"
)

// QAIssue is a single problem found by the validation step
type QAIssue struct {
	Section      string `json:"section"`    // summary, experience, skills, overall
	IssueType    string `json:"issue_type"` // missing_keyword, factual_error, style_inconsistency, hallucination
	Description  string `json:"description"`
	Severity     string `json:"severity" validate:"oneof=critical major minor"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// QAReport is the validation step's output for one validation pass
type QAReport struct {
	Passed                  bool      `json:"passed"`
	OverallScore            float64   `json:"overall_score" validate:"gte=0,lte=100"`
	Issues                  []QAIssue `json:"issues" validate:"dive"`
	KeywordsVerified        []string  `json:"keywords_verified"`
	MissingKeywords         []string  `json:"missing_keywords"`
	FactualConsistencyCheck bool      `json:"factual_consistency_check"`
	StyleConsistencyCheck   bool      `json:"style_consistency_check"`
	FeedbackForRewrite      string    `json:"feedback_for_rewrite,omitempty"`
}

// Validate checks score range and issue severities
func (q *QAReport) Validate() error {
	return validate.Struct(q)
}

// Normalize replaces nil collections with empty ones
func (q *QAReport) Normalize() {
	if q.Issues == nil {
		q.Issues = []QAIssue{}
	}
	q.KeywordsVerified = nonNil(q.KeywordsVerified)
	q.MissingKeywords = nonNil(q.MissingKeywords)
}
