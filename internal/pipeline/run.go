// Package pipeline orchestrates CV adaptation and analysis runs.
//
// A run is a finite-state machine over the stages in package steps. Each stage
// returns an Update that is applied to the run's State, and a Condition that
// selects the next stage from the TransitionTable. Generation failures are
// absorbed by the steps' fallbacks; only missing inputs and missing upstream
// records route to handle_error.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/cv-adaptor/internal/facts"
	"github.com/jonathan/cv-adaptor/internal/logging"
	"github.com/jonathan/cv-adaptor/internal/pipeline/steps"
)

// proceedThreshold separates the "proceed" and "optimize" rewrite bands
const proceedThreshold = 70.0

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunOptions holds per-run options
type RunOptions struct {
	OnProgress ProgressCallback
}

// Settings holds the routing policy
type Settings struct {
	HighScoreThreshold   float64
	MinRelevanceScore    float64
	MaxQAIterations      int
	EnableSelfCorrection bool
}

// DefaultSettings returns the default routing policy
func DefaultSettings() Settings {
	return Settings{
		HighScoreThreshold:   95,
		MinRelevanceScore:    50,
		MaxQAIterations:      2,
		EnableSelfCorrection: true,
	}
}

// Recorder persists finished runs
type Recorder interface {
	RecordRun(ctx context.Context, res *Result) error
}

// Orchestrator runs the stage graph
type Orchestrator struct {
	settings    Settings
	newSteps    StepFactory
	newStore    func() *facts.Store
	transitions TransitionTable
	recorder    Recorder
	logger      *zap.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithFactStore replaces the constructor of the per-run fact store
func WithFactStore(newStore func() *facts.Store) Option {
	return func(o *Orchestrator) { o.newStore = newStore }
}

// WithTransitions replaces the transition table
func WithTransitions(t TransitionTable) Option {
	return func(o *Orchestrator) { o.transitions = t }
}

// WithRecorder persists every finished run
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New creates an orchestrator. It fails when the transition table is not total
// or the settings are inconsistent.
func New(settings Settings, factory StepFactory, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		settings:    settings,
		newSteps:    factory,
		transitions: DefaultTransitions(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrNop(o.logger)
	if o.newStore == nil {
		logger := o.logger
		o.newStore = func() *facts.Store { return facts.NewStore(nil, facts.WithLogger(logger)) }
	}

	if factory == nil {
		return nil, fmt.Errorf("step factory is required")
	}
	if settings.MaxQAIterations < 1 {
		return nil, fmt.Errorf("max QA iterations must be at least 1, got %d", settings.MaxQAIterations)
	}
	if settings.MinRelevanceScore > settings.HighScoreThreshold {
		return nil, fmt.Errorf("min relevance score %.1f exceeds high score threshold %.1f", settings.MinRelevanceScore, settings.HighScoreThreshold)
	}
	if err := o.transitions.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Adapt runs the adaptation graph
func (o *Orchestrator) Adapt(ctx context.Context, cvText, jobText string, opts RunOptions) *Result {
	return o.run(ctx, VariantAdapt, cvText, jobText, opts)
}

// Analyze runs the analysis graph
func (o *Orchestrator) Analyze(ctx context.Context, cvText, jobText string, opts RunOptions) *Result {
	return o.run(ctx, VariantAnalyze, cvText, jobText, opts)
}

// run holds one execution. The fact store is created per run so concurrent
// runs never share grounding context.
type run struct {
	o      *Orchestrator
	steps  Steps
	state  *State
	opts   RunOptions
	logger *zap.Logger
}

func (o *Orchestrator) run(ctx context.Context, variant Variant, cvText, jobText string, opts RunOptions) *Result {
	runID := uuid.New().String()
	r := &run{
		o:     o,
		steps: o.newSteps(o.newStore()),
		state: &State{
			RunID:   runID,
			Variant: variant,
			CVText:  cvText,
			JobText: jobText,
			Current: steps.ParseDocuments,
		},
		opts:   opts,
		logger: o.logger.With(zap.String(logging.FieldRunID, runID), zap.String("variant", string(variant))),
	}

	r.logger.Info("run started")
	r.emit(steps.ParseDocuments, fmt.Sprintf("Starting CV %s workflow", variantLabel(variant)))

	stage := steps.ParseDocuments
	for {
		r.state.Current = stage
		def := steps.StepRegistry[stage]
		if def.Terminal {
			r.terminal(ctx, stage)
			break
		}

		r.emit(stage, def.Description)
		cond := r.execute(ctx, stage)

		next, err := o.transitions.Next(stage, cond)
		if err != nil {
			r.state.recordError(err)
			next = steps.HandleError
		}
		r.logger.Info("stage transition",
			zap.String("from", string(stage)),
			zap.String("to", string(next)),
			zap.String("condition", string(cond)))
		stage = next
	}

	res := newResult(r.state)
	r.logger.Info("run finished",
		zap.Bool("success", res.Success),
		zap.String("current_step", res.CurrentStep),
		zap.Int("qa_iterations", res.QAIterations),
		zap.Strings("errors", res.Errors))

	if o.recorder != nil {
		if err := o.recorder.RecordRun(ctx, res); err != nil {
			r.logger.Warn("failed to persist run", zap.Error(err))
		}
	}
	return res
}

// execute runs a non-terminal stage and classifies its outcome
func (r *run) execute(ctx context.Context, stage steps.Name) Condition {
	if stage != steps.ParseDocuments {
		if err := steps.ValidateDependencies(stage, r.state.Has); err != nil {
			r.state.recordError(&PreconditionError{Step: stage, Message: preconditionMessage(stage), Cause: err})
			return CondError
		}
	}

	var (
		update Update
		err    error
	)
	switch stage {
	case steps.ParseDocuments:
		update, err = r.parse(ctx)
	case steps.ScoreMatch:
		update = r.score(ctx)
	case steps.RewriteCV:
		update = r.rewrite(ctx)
	case steps.AnalyzeCV:
		update = r.analyze(ctx)
	case steps.QAValidate:
		update = r.validate(ctx)
	default:
		err = fmt.Errorf("stage %s has no implementation", stage)
	}
	if err != nil {
		r.state.recordError(err)
		return CondError
	}

	r.state.Apply(update)
	cond := r.route(stage)
	if cond == CondError {
		r.state.recordError(&PreconditionError{Step: stage, Message: fmt.Sprintf("%s produced no record", stage)})
	}
	return cond
}

// route selects the outcome condition of a completed stage from the state
func (r *run) route(stage steps.Name) Condition {
	s := r.state
	switch stage {
	case steps.ParseDocuments:
		if s.Profile == nil || s.Requirements == nil {
			return CondError
		}
		return CondContinue

	case steps.ScoreMatch:
		if s.MatchReport == nil {
			return CondError
		}
		if s.Variant == VariantAnalyze {
			return CondAnalyze
		}
		return ScoreCondition(s.MatchReport.RelevanceScore, r.o.settings)

	case steps.RewriteCV:
		if s.Rewritten == nil {
			return CondError
		}
		return CondContinue

	case steps.AnalyzeCV:
		if s.Analysis == nil {
			return CondError
		}
		return CondContinue

	case steps.QAValidate:
		if s.QAReport == nil {
			return CondError
		}
		return QACondition(s.QAReport.Passed, s.QAIterations, r.o.settings)
	}
	return CondError
}

// ScoreCondition places a relevance score in its band
func ScoreCondition(score float64, settings Settings) Condition {
	switch {
	case score >= settings.HighScoreThreshold:
		return CondHighScore
	case score < settings.MinRelevanceScore:
		return CondLowScore
	case score >= proceedThreshold:
		return CondProceed
	default:
		return CondOptimize
	}
}

// QACondition decides whether a validation pass ends the refinement loop. The
// iteration bound is checked before the verdict.
func QACondition(passed bool, iterations int, settings Settings) Condition {
	switch {
	case iterations >= settings.MaxQAIterations:
		return CondMaxIterations
	case passed:
		return CondPassed
	case !settings.EnableSelfCorrection:
		return CondRefinementDisabled
	default:
		return CondRefine
	}
}

func (r *run) terminal(ctx context.Context, stage steps.Name) {
	if stage == steps.HandleError {
		r.logger.Warn("run aborted", zap.Strings("errors", r.state.Errors))
		r.emit(stage, "Run aborted: "+strings.Join(r.state.Errors, "; "))
		return
	}

	update, err := r.finalize()
	if err != nil {
		r.state.recordError(err)
		r.state.Current = steps.HandleError
		r.emit(steps.HandleError, "Run aborted: "+err.Error())
		return
	}
	r.state.Apply(update)
	r.emit(stage, "Workflow completed")
}

// emit delivers a progress event. A panicking callback is logged and ignored.
func (r *run) emit(stage steps.Name, message string) {
	if r.opts.OnProgress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("progress callback panicked", zap.Any("panic", rec))
		}
	}()
	r.opts.OnProgress(ProgressEvent{
		Step:     string(stage),
		Category: steps.StepRegistry[stage].Category,
		Message:  message,
		RunID:    r.state.RunID,
	})
}

func preconditionMessage(stage steps.Name) string {
	switch stage {
	case steps.ScoreMatch:
		return "Missing parsed data for scoring"
	case steps.RewriteCV:
		return "Missing data for rewriting"
	case steps.AnalyzeCV:
		return "Missing data for analysis"
	case steps.QAValidate:
		return "No rewritten content to validate"
	case steps.Finalize:
		return "Missing data for finalization"
	}
	return fmt.Sprintf("Missing data for %s", stage)
}

func variantLabel(v Variant) string {
	if v == VariantAnalyze {
		return "analysis"
	}
	return "adaptation"
}
