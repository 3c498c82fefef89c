package pipeline

import (
	"encoding/json"

	"github.com/jonathan/cv-adaptor/internal/pipeline/steps"
	"github.com/jonathan/cv-adaptor/internal/types"
)

// Variant selects the adaptation or analysis graph
type Variant string

// Variants
const (
	VariantAdapt   Variant = "adapt"
	VariantAnalyze Variant = "analyze"
)

// State is the envelope threaded through one run. Records stay nil until the
// stage producing them has run. Only the orchestrator mutates it, through Apply.
type State struct {
	RunID   string
	Variant Variant
	CVText  string
	JobText string

	Profile      *types.CandidateProfile
	Requirements *types.JobRequirements
	MatchReport  *types.MatchGapReport
	Rewritten    *types.RewrittenSection
	Analysis     *types.CVAnalysisReport
	QAReport     *types.QAReport

	AdaptedCV      *types.AdaptedCV
	AnalysisOutput *types.AnalysisOutput

	QAIterations int
	Errors       []string
	Fallbacks    []string
	Current      steps.Name
}

// Has reports whether a named record is present
func (s *State) Has(record string) bool {
	switch record {
	case steps.RecordProfile:
		return s.Profile != nil
	case steps.RecordRequirements:
		return s.Requirements != nil
	case steps.RecordMatchReport:
		return s.MatchReport != nil
	case steps.RecordRewritten:
		return s.Rewritten != nil
	case steps.RecordAnalysis:
		return s.Analysis != nil
	case steps.RecordQAReport:
		return s.QAReport != nil
	}
	return false
}

// Apply merges a stage's update into the state
func (s *State) Apply(u Update) {
	if u != nil {
		u.apply(s)
	}
}

func (s *State) recordError(err error) {
	s.Errors = append(s.Errors, err.Error())
}

func (s *State) recordFallback(step string) {
	s.Fallbacks = append(s.Fallbacks, step)
}

// Update is the output of one stage
type Update interface {
	apply(*State)
}

// ParseUpdate carries the parsed documents
type ParseUpdate struct {
	Profile      *types.CandidateProfile
	Requirements *types.JobRequirements
}

func (u ParseUpdate) apply(s *State) {
	s.Profile = u.Profile
	s.Requirements = u.Requirements
}

// ScoreUpdate carries the run's match report
type ScoreUpdate struct {
	Report *types.MatchGapReport
}

func (u ScoreUpdate) apply(s *State) {
	s.MatchReport = u.Report
}

// RewriteUpdate replaces the previous draft
type RewriteUpdate struct {
	Section *types.RewrittenSection
}

func (u RewriteUpdate) apply(s *State) {
	s.Rewritten = u.Section
}

// AnalyzeUpdate carries the analysis report
type AnalyzeUpdate struct {
	Report *types.CVAnalysisReport
}

func (u AnalyzeUpdate) apply(s *State) {
	s.Analysis = u.Report
}

// QAUpdate replaces the previous QA report and counts one validation pass
type QAUpdate struct {
	Report *types.QAReport
}

func (u QAUpdate) apply(s *State) {
	s.QAReport = u.Report
	s.QAIterations++
}

// FinalizeUpdate carries the terminal record
type FinalizeUpdate struct {
	AdaptedCV      *types.AdaptedCV
	AnalysisOutput *types.AnalysisOutput
}

func (u FinalizeUpdate) apply(s *State) {
	s.AdaptedCV = u.AdaptedCV
	s.AnalysisOutput = u.AnalysisOutput
}

// Result is the envelope returned to the caller of a run
type Result struct {
	RunID          string
	Variant        Variant
	Success        bool
	AdaptedCV      *types.AdaptedCV
	AnalysisOutput *types.AnalysisOutput
	MatchReport    *types.MatchGapReport
	QAReport       *types.QAReport
	QAIterations   int
	Errors         []string
	Fallbacks      []string
	CurrentStep    string

	// Parsed inputs, kept for persistence and verbose output
	Profile      *types.CandidateProfile
	Requirements *types.JobRequirements
}

// newResult builds the envelope. A run succeeds when no error was recorded
// and a terminal record exists.
func newResult(s *State) *Result {
	hasOutput := s.AdaptedCV != nil || s.AnalysisOutput != nil
	return &Result{
		RunID:          s.RunID,
		Variant:        s.Variant,
		Success:        len(s.Errors) == 0 && hasOutput,
		AdaptedCV:      s.AdaptedCV,
		AnalysisOutput: s.AnalysisOutput,
		MatchReport:    s.MatchReport,
		QAReport:       s.QAReport,
		QAIterations:   s.QAIterations,
		Errors:         append([]string{}, s.Errors...),
		Fallbacks:      append([]string{}, s.Fallbacks...),
		CurrentStep:    string(s.Current),
		Profile:        s.Profile,
		Requirements:   s.Requirements,
	}
}

// MarshalJSON writes the envelope with the terminal record under the key of
// the run's variant.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"run_id":        r.RunID,
		"variant":       r.Variant,
		"success":       r.Success,
		"match_report":  r.MatchReport,
		"qa_iterations": r.QAIterations,
		"errors":        nonNil(r.Errors),
		"current_step":  r.CurrentStep,
	}
	if r.Variant == VariantAnalyze {
		out["analysis_output"] = r.AnalysisOutput
	} else {
		out["adapted_cv"] = r.AdaptedCV
		out["qa_report"] = r.QAReport
	}
	if len(r.Fallbacks) > 0 {
		out["fallbacks"] = r.Fallbacks
	}
	return json.Marshal(out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
