package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/jonathan/cv-adaptor/internal/ingestion"
	"github.com/jonathan/cv-adaptor/internal/observability"
	"github.com/jonathan/cv-adaptor/internal/pipeline"
)

const (
	maxRunBodyBytes    = 1 << 20
	maxUploadBodyBytes = ingestion.MaxDocumentBytes + 1<<20
	progressBuffer     = 64
)

// RunRequest is the body of the adapt and analyze endpoints
type RunRequest struct {
	CVText   string         `json:"cv_text"`
	JobText  string         `json:"job_text,omitempty"`
	JobURL   string         `json:"job_url,omitempty"`
	Workflow map[string]any `json:"workflow,omitempty"`
}

// workflowOverrides are the per-request routing knobs. Absent keys keep the
// server defaults.
type workflowOverrides struct {
	HighScoreThreshold   *float64 `mapstructure:"high_score_threshold"`
	MinRelevanceScore    *float64 `mapstructure:"min_relevance_score"`
	MaxQAIterations      *float64 `mapstructure:"max_qa_iterations"`
	EnableSelfCorrection *bool    `mapstructure:"enable_self_correction"`
}

// FetchJobRequest is the body of /v1/fetch-job
type FetchJobRequest struct {
	URL string `json:"url"`
}

// TextResponse carries extracted or fetched text
type TextResponse struct {
	Text     string              `json:"text"`
	Metadata *ingestion.Metadata `json:"metadata"`
}

// applyOverrides returns base with the request's workflow keys applied
func applyOverrides(base pipeline.Settings, raw map[string]any) (pipeline.Settings, error) {
	if len(raw) == 0 {
		return base, nil
	}

	var o workflowOverrides
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &o,
		ErrorUnused: true,
	})
	if err != nil {
		return base, err
	}
	if err := dec.Decode(raw); err != nil {
		return base, &ErrValidation{Field: "workflow", Message: err.Error()}
	}

	s := base
	if o.HighScoreThreshold != nil {
		s.HighScoreThreshold = *o.HighScoreThreshold
	}
	if o.MinRelevanceScore != nil {
		s.MinRelevanceScore = *o.MinRelevanceScore
	}
	if o.MaxQAIterations != nil {
		n := *o.MaxQAIterations
		if n != math.Trunc(n) {
			return base, &ErrValidation{Field: "workflow.max_qa_iterations", Message: "must be a whole number"}
		}
		s.MaxQAIterations = int(n)
	}
	if o.EnableSelfCorrection != nil {
		s.EnableSelfCorrection = *o.EnableSelfCorrection
	}

	switch {
	case s.HighScoreThreshold < 0 || s.HighScoreThreshold > 100:
		return base, &ErrValidation{Field: "workflow.high_score_threshold", Message: "must be between 0 and 100"}
	case s.MinRelevanceScore < 0 || s.MinRelevanceScore > s.HighScoreThreshold:
		return base, &ErrValidation{Field: "workflow.min_relevance_score", Message: "must be between 0 and high_score_threshold"}
	case s.MaxQAIterations < 1:
		return base, &ErrValidation{Field: "workflow.max_qa_iterations", Message: "must be at least 1"}
	}
	return s, nil
}

// prepareRun decodes the request, resolves the job text and picks a runner
func (s *Server) prepareRun(w http.ResponseWriter, r *http.Request) (Runner, string, string, error) {
	var req RunRequest
	body := http.MaxBytesReader(w, r.Body, maxRunBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", "", err
		}
		return nil, "", "", &ErrValidation{Field: "body", Message: "invalid JSON"}
	}

	if strings.TrimSpace(req.CVText) == "" {
		return nil, "", "", &ErrValidation{Field: "cv_text", Message: "is required"}
	}
	hasText := strings.TrimSpace(req.JobText) != ""
	hasURL := strings.TrimSpace(req.JobURL) != ""
	switch {
	case hasText && hasURL:
		return nil, "", "", &ErrValidation{Field: "job_url", Message: "cannot be combined with job_text"}
	case !hasText && !hasURL:
		return nil, "", "", &ErrValidation{Field: "job_text", Message: "job_text or job_url is required"}
	}

	jobText := req.JobText
	if hasURL {
		doc, err := s.fetchJob(r.Context(), req.JobURL)
		if err != nil {
			return nil, "", "", err
		}
		jobText = doc.Text
	}

	runner := s.runner
	if len(req.Workflow) > 0 {
		settings, err := applyOverrides(s.cfg.Settings, req.Workflow)
		if err != nil {
			return nil, "", "", err
		}
		if runner, err = s.newRunner(settings); err != nil {
			return nil, "", "", fmt.Errorf("building runner: %w", err)
		}
	}
	return runner, req.CVText, jobText, nil
}

func (s *Server) handleAdapt(w http.ResponseWriter, r *http.Request) {
	runner, cvText, jobText, err := s.prepareRun(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	res := runner.Adapt(ctx, cvText, jobText, pipeline.RunOptions{})
	s.logRun(res)
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	runner, cvText, jobText, err := s.prepareRun(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	res := runner.Analyze(ctx, cvText, jobText, pipeline.RunOptions{})
	s.logRun(res)

	if r.URL.Query().Get("format") == "text" && res.AnalysisOutput != nil {
		out := res.AnalysisOutput
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, observability.FormatAnalysisReport(&out.AnalysisReport, &out.MatchReport)) //nolint:errcheck
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleStream runs a pipeline variant and streams progress as SSE
func (s *Server) handleStream(variant pipeline.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runner, cvText, jobText, err := s.prepareRun(w, r)
		if err != nil {
			s.fail(w, err)
			return
		}

		sse, err := NewSSEWriter(w)
		if err != nil {
			s.errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()

		events := make(chan pipeline.ProgressEvent, progressBuffer)
		done := make(chan *pipeline.Result, 1)
		// the run must never wait on a slow client
		opts := pipeline.RunOptions{OnProgress: func(e pipeline.ProgressEvent) {
			select {
			case events <- e:
			default:
				s.logger.Warn("dropped progress event",
					zap.String("run_id", e.RunID),
					zap.String("step", e.Step))
			}
		}}

		go func() {
			if variant == pipeline.VariantAnalyze {
				done <- runner.Analyze(ctx, cvText, jobText, opts)
			} else {
				done <- runner.Adapt(ctx, cvText, jobText, opts)
			}
		}()

		for {
			select {
			case e := <-events:
				if err := sse.WriteEvent("progress", e); err != nil {
					s.logger.Warn("client went away", zap.Error(err))
					cancel()
				}
			case res := <-done:
				for drained := false; !drained; {
					select {
					case e := <-events:
						sse.WriteEvent("progress", e) //nolint:errcheck
					default:
						drained = true
					}
				}
				s.logRun(res)
				sse.WriteEvent("result", res) //nolint:errcheck
				sse.WriteComplete(res.RunID, res.Success)
				return
			}
		}
	}
}

func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodyBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, err)
			return
		}
		s.fail(w, &ErrValidation{Field: "file", Message: "multipart field is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, err)
		return
	}
	doc, err := ingestion.FromBytes(data, header.Filename)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, TextResponse{Text: doc.Text, Metadata: doc.Metadata})
}

func (s *Server) handleFetchJob(w http.ResponseWriter, r *http.Request) {
	var req FetchJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRunBodyBytes)).Decode(&req); err != nil {
		s.fail(w, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.fail(w, &ErrValidation{Field: "url", Message: "is required"})
		return
	}

	doc, err := s.fetchJob(r.Context(), req.URL)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, TextResponse{Text: doc.Text, Metadata: doc.Metadata})
}

func (s *Server) logRun(res *pipeline.Result) {
	s.logger.Info("run finished",
		zap.String("run_id", res.RunID),
		zap.String("variant", string(res.Variant)),
		zap.Bool("success", res.Success),
		zap.String("current_step", res.CurrentStep),
		zap.Int("errors", len(res.Errors)),
		zap.Strings("fallbacks", res.Fallbacks))
}
