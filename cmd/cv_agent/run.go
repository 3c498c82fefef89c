package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-adaptor/internal/ingestion"
	"github.com/jonathan/cv-adaptor/internal/observability"
	"github.com/jonathan/cv-adaptor/internal/pipeline"
)

var (
	runCVFile  string
	runJobFile string
	runJobURL  string
	runOutFile string
	runVerbose bool
	reportFile string
)

var adaptCmd = &cobra.Command{
	Use:   "adapt",
	Short: "Rewrite a CV for a job posting under QA review",
	Long:  "Parse the CV and job posting, score the match, rewrite the CV toward the job, and validate the rewrite against the candidate's facts.",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Produce an improvement report for a CV against a job posting",
	Long:  "Parse the CV and job posting, score the match, and produce a section-by-section improvement report instead of a rewritten CV.",
}

func init() {
	// RunE is assigned here because runPipeline refers back to these commands
	adaptCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd.Context(), pipeline.VariantAdapt)
	}
	analyzeCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runPipeline(cmd.Context(), pipeline.VariantAnalyze)
	}
	for _, cmd := range []*cobra.Command{adaptCmd, analyzeCmd} {
		flags := cmd.Flags()
		flags.StringVar(&runCVFile, "cv", "", "Path to the CV (.txt, .pdf or .docx)")
		flags.StringVar(&runJobFile, "job", "", "Path to the job posting (.txt, .pdf or .docx)")
		flags.StringVar(&runJobURL, "job-url", "", "URL of the job posting")
		flags.StringVarP(&runOutFile, "out", "o", "", "Write the result JSON to this file instead of stdout")
		flags.BoolVarP(&runVerbose, "verbose", "v", false, "Print progress and boxed summaries to stderr")
		flags.Float64("high-score-threshold", 0, "Skip rewriting at or above this relevance score")
		flags.Float64("min-relevance-score", 0, "Stop with a report below this relevance score")
		flags.Int("max-qa-iterations", 0, "Maximum rewrite and QA rounds")
		_ = cmd.MarkFlagRequired("cv")
		cmd.MarkFlagsMutuallyExclusive("job", "job-url")
		cmd.MarkFlagsOneRequired("job", "job-url")
		rootCmd.AddCommand(cmd)
	}
	analyzeCmd.Flags().StringVar(&reportFile, "report", "", "Also write the plain-text analysis report to this file")
}

// bindWorkflowFlags lets explicitly set flags override configured thresholds
func bindWorkflowFlags(cmd *cobra.Command, s pipeline.Settings) pipeline.Settings {
	flags := cmd.Flags()
	if flags.Changed("high-score-threshold") {
		s.HighScoreThreshold, _ = flags.GetFloat64("high-score-threshold")
	}
	if flags.Changed("min-relevance-score") {
		s.MinRelevanceScore, _ = flags.GetFloat64("min-relevance-score")
	}
	if flags.Changed("max-qa-iterations") {
		s.MaxQAIterations, _ = flags.GetInt("max-qa-iterations")
	}
	return s
}

// loadJobText reads the posting from a file or fetches it from a URL
func loadJobText(ctx context.Context, rt *runtime) (string, error) {
	if runJobURL != "" {
		doc, err := ingestion.FromURL(ctx, runJobURL, jobOptions(rt.cfg, rt.logger))
		if err != nil {
			return "", fmt.Errorf("failed to fetch job posting: %w", err)
		}
		return doc.Text, nil
	}
	doc, err := ingestion.FromFile(runJobFile)
	if err != nil {
		return "", fmt.Errorf("failed to read job posting: %w", err)
	}
	return doc.Text, nil
}

func runPipeline(ctx context.Context, variant pipeline.Variant) error {
	cmd := adaptCmd
	if variant == pipeline.VariantAnalyze {
		cmd = analyzeCmd
	}

	cv, err := ingestion.FromFile(runCVFile)
	if err != nil {
		return fmt.Errorf("failed to read CV: %w", err)
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	jobText, err := loadJobText(ctx, rt)
	if err != nil {
		return err
	}

	orch, err := rt.orchestrator(bindWorkflowFlags(cmd, cfg.PipelineSettings()))
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	printer := observability.NewPrinter(os.Stderr)
	var opts pipeline.RunOptions
	if runVerbose {
		opts.OnProgress = printer.Progress()
	}

	var res *pipeline.Result
	if variant == pipeline.VariantAnalyze {
		res = orch.Analyze(ctx, cv.Text, jobText, opts)
	} else {
		res = orch.Adapt(ctx, cv.Text, jobText, opts)
	}
	if runVerbose {
		printer.PrintResult(res)
	}

	if err := writeResult(res, runOutFile); err != nil {
		return err
	}
	if variant == pipeline.VariantAnalyze && reportFile != "" && res.AnalysisOutput != nil {
		out := res.AnalysisOutput
		text := observability.FormatAnalysisReport(&out.AnalysisReport, &out.MatchReport)
		if err := os.WriteFile(reportFile, []byte(text), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		_, _ = fmt.Fprintf(os.Stderr, "Report: %s\n", reportFile)
	}

	if !res.Success {
		return fmt.Errorf("run %s stopped at %s: %d error(s)", res.RunID, res.CurrentStep, len(res.Errors))
	}
	return nil
}

// writeResult writes the envelope as indented JSON to path, or stdout when empty
func writeResult(res *pipeline.Result, path string) error {
	jsonBytes, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if path == "" {
		_, err = fmt.Fprintln(os.Stdout, string(jsonBytes))
		return err
	}
	if err := os.WriteFile(path, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, _ = fmt.Fprintf(os.Stderr, "Output: %s\n", path)
	return nil
}
