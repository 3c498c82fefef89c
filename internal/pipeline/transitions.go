package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/cv-adaptor/internal/pipeline/steps"
)

// Condition is the outcome of a stage that selects the next stage
type Condition string

// Routing conditions
const (
	CondContinue           Condition = "continue"
	CondError              Condition = "error"
	CondHighScore          Condition = "high_score"
	CondProceed            Condition = "proceed"
	CondOptimize           Condition = "optimize"
	CondLowScore           Condition = "fail"
	CondAnalyze            Condition = "analyze"
	CondPassed             Condition = "pass"
	CondRefine             Condition = "refine"
	CondMaxIterations      Condition = "max_iterations"
	CondRefinementDisabled Condition = "refinement_disabled"
)

// TransitionTable maps stage × condition to the next stage
type TransitionTable map[steps.Name]map[Condition]steps.Name

// stageConditions lists every condition the router can emit per stage
var stageConditions = map[steps.Name][]Condition{
	steps.ParseDocuments: {CondContinue, CondError},
	steps.ScoreMatch:     {CondHighScore, CondProceed, CondOptimize, CondLowScore, CondAnalyze, CondError},
	steps.RewriteCV:      {CondContinue, CondError},
	steps.AnalyzeCV:      {CondContinue, CondError},
	steps.QAValidate:     {CondMaxIterations, CondPassed, CondRefinementDisabled, CondRefine, CondError},
}

// DefaultTransitions is the adaptation and analysis graph
func DefaultTransitions() TransitionTable {
	return TransitionTable{
		steps.ParseDocuments: {
			CondContinue: steps.ScoreMatch,
			CondError:    steps.HandleError,
		},
		steps.ScoreMatch: {
			CondHighScore: steps.Finalize,
			CondProceed:   steps.RewriteCV,
			CondOptimize:  steps.RewriteCV,
			CondLowScore:  steps.Finalize,
			CondAnalyze:   steps.AnalyzeCV,
			CondError:     steps.HandleError,
		},
		steps.RewriteCV: {
			CondContinue: steps.QAValidate,
			CondError:    steps.HandleError,
		},
		steps.AnalyzeCV: {
			CondContinue: steps.Finalize,
			CondError:    steps.HandleError,
		},
		steps.QAValidate: {
			CondMaxIterations:      steps.Finalize,
			CondPassed:             steps.Finalize,
			CondRefinementDisabled: steps.Finalize,
			CondRefine:             steps.RewriteCV,
			CondError:              steps.HandleError,
		},
	}
}

// Validate checks that every non-terminal stage maps every condition it can
// emit to a registered stage and that terminal stages have no outgoing edges.
func (t TransitionTable) Validate() error {
	var problems []string

	for _, name := range steps.Names() {
		def := steps.StepRegistry[name]
		edges, ok := t[name]
		if def.Terminal {
			if ok && len(edges) > 0 {
				problems = append(problems, fmt.Sprintf("terminal stage %s has outgoing transitions", name))
			}
			continue
		}
		if !ok {
			problems = append(problems, fmt.Sprintf("stage %s has no transitions", name))
			continue
		}
		for _, cond := range stageConditions[name] {
			if _, ok := edges[cond]; !ok {
				problems = append(problems, fmt.Sprintf("stage %s does not handle condition %s", name, cond))
			}
		}
	}

	for from, edges := range t {
		if _, ok := steps.StepRegistry[from]; !ok {
			problems = append(problems, fmt.Sprintf("unknown stage %s", from))
		}
		for cond, to := range edges {
			if _, ok := steps.StepRegistry[to]; !ok {
				problems = append(problems, fmt.Sprintf("stage %s routes %s to unknown stage %s", from, cond, to))
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid transition table: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Next returns the stage that follows from on cond
func (t TransitionTable) Next(from steps.Name, cond Condition) (steps.Name, error) {
	to, ok := t[from][cond]
	if !ok {
		return "", fmt.Errorf("no transition from %s on %s", from, cond)
	}
	return to, nil
}
