// Package steps provides the stage definitions and dependency checks of the
// CV adaptation pipeline.
package steps

import (
	"fmt"
	"sort"
	"strings"
)

// Name identifies a pipeline stage
type Name string

// Stage names
const (
	ParseDocuments Name = "parse_documents"
	ScoreMatch     Name = "score_match"
	RewriteCV      Name = "rewrite_cv"
	AnalyzeCV      Name = "analyze_cv"
	QAValidate     Name = "qa_validate"
	Finalize       Name = "finalize"
	HandleError    Name = "handle_error"
)

// Stage categories, used to group progress events
const (
	CategoryIngestion  = "ingestion"
	CategoryScoring    = "scoring"
	CategoryGeneration = "generation"
	CategoryValidation = "validation"
	CategoryOutput     = "output"
)

// Records held in pipeline state
const (
	RecordProfile      = "candidate_profile"
	RecordRequirements = "job_requirements"
	RecordMatchReport  = "match_report"
	RecordRewritten    = "rewritten_sections"
	RecordAnalysis     = "analysis_report"
	RecordQAReport     = "qa_report"
)

// StepDefinition defines metadata for a pipeline stage
type StepDefinition struct {
	Name         Name
	Category     string
	Dependencies []string // records that must be present before the stage runs
	Produces     []string
	Terminal     bool
	Description  string
}

// StepRegistry holds all stage definitions
var StepRegistry = map[Name]StepDefinition{
	ParseDocuments: {
		Name:         ParseDocuments,
		Category:     CategoryIngestion,
		Dependencies: []string{},
		Produces:     []string{RecordProfile, RecordRequirements},
		Description:  "Parsing CV and job description",
	},
	ScoreMatch: {
		Name:         ScoreMatch,
		Category:     CategoryScoring,
		Dependencies: []string{RecordProfile, RecordRequirements},
		Produces:     []string{RecordMatchReport},
		Description:  "Scoring CV against job requirements",
	},
	RewriteCV: {
		Name:         RewriteCV,
		Category:     CategoryGeneration,
		Dependencies: []string{RecordProfile, RecordRequirements, RecordMatchReport},
		Produces:     []string{RecordRewritten},
		Description:  "Rewriting CV sections",
	},
	AnalyzeCV: {
		Name:         AnalyzeCV,
		Category:     CategoryGeneration,
		Dependencies: []string{RecordProfile, RecordRequirements, RecordMatchReport},
		Produces:     []string{RecordAnalysis},
		Description:  "Analyzing CV sections",
	},
	QAValidate: {
		Name:         QAValidate,
		Category:     CategoryValidation,
		Dependencies: []string{RecordRewritten, RecordMatchReport, RecordRequirements},
		Produces:     []string{RecordQAReport},
		Description:  "Validating rewritten content",
	},
	Finalize: {
		Name:         Finalize,
		Category:     CategoryOutput,
		Dependencies: []string{RecordProfile},
		Produces:     []string{},
		Terminal:     true,
		Description:  "Assembling final output",
	},
	HandleError: {
		Name:         HandleError,
		Category:     CategoryOutput,
		Dependencies: []string{},
		Produces:     []string{},
		Terminal:     true,
		Description:  "Run aborted",
	},
}

// DependencyError represents a missing upstream record
type DependencyError struct {
	Step                Name
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: missing dependencies: %s", e.Step, strings.Join(e.MissingDependencies, ", "))
}

// ValidateDependencies checks that every record the stage depends on is present
func ValidateDependencies(stepName Name, present func(record string) bool) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if !present(dep) {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}
	return nil
}

// Lookup returns the definition of a stage
func Lookup(name Name) (StepDefinition, bool) {
	def, ok := StepRegistry[name]
	return def, ok
}

// Names returns all registered stage names in sorted order
func Names() []Name {
	names := make([]Name, 0, len(StepRegistry))
	for name := range StepRegistry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
