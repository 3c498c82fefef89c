package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-adaptor/internal/fetch"
	"github.com/jonathan/cv-adaptor/internal/ingestion"
	"github.com/jonathan/cv-adaptor/internal/pipeline"
	"github.com/jonathan/cv-adaptor/internal/server/ratelimit"
	"github.com/jonathan/cv-adaptor/internal/types"
)

type fakeRunner struct {
	settings pipeline.Settings
	calls    []string
	jobText  string

	// extra progress events emitted before afterEvents runs
	extraEvents int
	afterEvents func()
}

func (f *fakeRunner) Adapt(_ context.Context, cvText, jobText string, opts pipeline.RunOptions) *pipeline.Result {
	return f.run(pipeline.VariantAdapt, jobText, opts)
}

func (f *fakeRunner) Analyze(_ context.Context, cvText, jobText string, opts pipeline.RunOptions) *pipeline.Result {
	return f.run(pipeline.VariantAnalyze, jobText, opts)
}

func (f *fakeRunner) run(variant pipeline.Variant, jobText string, opts pipeline.RunOptions) *pipeline.Result {
	f.calls = append(f.calls, string(variant))
	f.jobText = jobText
	if opts.OnProgress != nil {
		opts.OnProgress(pipeline.ProgressEvent{Step: "parse", Category: "ingestion", Message: "parsed", RunID: "run-1"})
		opts.OnProgress(pipeline.ProgressEvent{Step: "score", Category: "analysis", Message: "scored", RunID: "run-1"})
		for i := 0; i < f.extraEvents; i++ {
			opts.OnProgress(pipeline.ProgressEvent{Step: "rewrite", Category: "generation", Message: fmt.Sprintf("chunk %d", i), RunID: "run-1"})
		}
	}
	if f.afterEvents != nil {
		f.afterEvents()
	}
	res := &pipeline.Result{RunID: "run-1", Variant: variant, Success: true, CurrentStep: "end"}
	if variant == pipeline.VariantAnalyze {
		res.AnalysisOutput = &types.AnalysisOutput{
			AnalysisReport: types.CVAnalysisReport{OverallAssessment: "solid"},
			MatchReport:    types.MatchGapReport{RelevanceScore: 80},
		}
	} else {
		res.AdaptedCV = &types.AdaptedCV{}
	}
	return res
}

type harness struct {
	srv     *Server
	runners []*fakeRunner
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{}
	if cfg.Settings == (pipeline.Settings{}) {
		cfg.Settings = pipeline.DefaultSettings()
	}
	factory := func(s pipeline.Settings) (Runner, error) {
		r := &fakeRunner{settings: s}
		h.runners = append(h.runners, r)
		return r, nil
	}
	srv, err := New(cfg, factory, opts...)
	require.NoError(t, err)
	t.Cleanup(srv.limiter.Stop)
	h.srv = srv
	return h
}

func (h *harness) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body) //nolint:errcheck
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresFactory(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestNew_FactoryError(t *testing.T) {
	_, err := New(Config{}, func(pipeline.Settings) (Runner, error) { return nil, errors.New("no key") })
	assert.ErrorContains(t, err, "no key")
}

func TestHealth(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdapt(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(http.MethodPost, "/v1/adapt", RunRequest{CVText: "cv", JobText: "job"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, "adapt", body["variant"])
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "adapted_cv")
	assert.Equal(t, []string{"adapt"}, h.runners[0].calls)
}

func TestAnalyze_Formats(t *testing.T) {
	h := newHarness(t, Config{})

	rec := h.do(http.MethodPost, "/v1/analyze", RunRequest{CVText: "cv", JobText: "job"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"analysis_output"`)

	rec = h.do(http.MethodPost, "/v1/analyze?format=text", RunRequest{CVText: "cv", JobText: "job"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "CV ANALYSIS REPORT")
	assert.Contains(t, rec.Body.String(), "Relevance Score: 80.0%")
}

func TestRun_Validation(t *testing.T) {
	h := newHarness(t, Config{})
	tests := []struct {
		name string
		body any
		want string
	}{
		{"missing cv", RunRequest{JobText: "job"}, "cv_text"},
		{"missing job", RunRequest{CVText: "cv"}, "job_text"},
		{"both job sources", RunRequest{CVText: "cv", JobText: "job", JobURL: "https://x.test"}, "job_url"},
		{"bad override type", RunRequest{CVText: "cv", JobText: "job", Workflow: map[string]any{"max_qa_iterations": "two"}}, "workflow"},
		{"unknown override", RunRequest{CVText: "cv", JobText: "job", Workflow: map[string]any{"temperature": 1}}, "workflow"},
		{"min above high", RunRequest{CVText: "cv", JobText: "job", Workflow: map[string]any{"min_relevance_score": 99}}, "min_relevance_score"},
		{"zero iterations", RunRequest{CVText: "cv", JobText: "job", Workflow: map[string]any{"max_qa_iterations": 0}}, "max_qa_iterations"},
		{"fractional iterations", RunRequest{CVText: "cv", JobText: "job", Workflow: map[string]any{"max_qa_iterations": 1.9}}, "whole number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(http.MethodPost, "/v1/adapt", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/adapt", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		h.srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRun_WorkflowOverridesBuildNewRunner(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(http.MethodPost, "/v1/adapt", RunRequest{
		CVText:   "cv",
		JobText:  "job",
		Workflow: map[string]any{"max_qa_iterations": 4, "enable_self_correction": false},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.runners, 2)

	got := h.runners[1].settings
	assert.Equal(t, 4, got.MaxQAIterations)
	assert.False(t, got.EnableSelfCorrection)
	assert.Equal(t, 95.0, got.HighScoreThreshold)
	assert.Empty(t, h.runners[0].calls)
}

func TestRun_JobURL(t *testing.T) {
	fetcher := func(_ context.Context, url string) (*ingestion.Document, error) {
		if url == "https://jobs.test/broken" {
			return nil, &fetch.Error{URL: url, Message: "HTTP status 500"}
		}
		if url == "notaurl" {
			return nil, &fetch.Error{URL: url, Message: "unsupported URL", Cause: fetch.ErrInvalidURL}
		}
		return &ingestion.Document{Text: "fetched posting"}, nil
	}
	h := newHarness(t, Config{}, WithJobFetcher(fetcher))

	rec := h.do(http.MethodPost, "/v1/adapt", RunRequest{CVText: "cv", JobURL: "https://jobs.test/1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fetched posting", h.runners[0].jobText)

	rec = h.do(http.MethodPost, "/v1/adapt", RunRequest{CVText: "cv", JobURL: "https://jobs.test/broken"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = h.do(http.MethodPost, "/v1/adapt", RunRequest{CVText: "cv", JobURL: "notaurl"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStream(t *testing.T) {
	h := newHarness(t, Config{})
	for _, path := range []string{"/v1/adapt/stream", "/v1/analyze/stream"} {
		t.Run(path, func(t *testing.T) {
			rec := h.do(http.MethodPost, path, RunRequest{CVText: "cv", JobText: "job"})
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

			body := rec.Body.String()
			assert.Equal(t, 2, strings.Count(body, "event: progress\n"))
			parse := strings.Index(body, `"step":"parse"`)
			score := strings.Index(body, `"step":"score"`)
			result := strings.Index(body, "event: result\n")
			complete := strings.Index(body, "event: complete\n")
			assert.True(t, parse >= 0 && parse < score && score < result && result < complete, body)
			assert.Contains(t, body, `"run_id":"run-1","success":true`)
		})
	}
}

// stalledWriter holds every body write until release is closed
type stalledWriter struct {
	*httptest.ResponseRecorder
	release chan struct{}
}

func (w *stalledWriter) Write(b []byte) (int, error) {
	<-w.release
	return w.ResponseRecorder.Write(b)
}

func TestStream_SlowClientDoesNotStallRun(t *testing.T) {
	h := newHarness(t, Config{})
	w := &stalledWriter{ResponseRecorder: httptest.NewRecorder(), release: make(chan struct{})}
	runner := h.runners[0]
	runner.extraEvents = progressBuffer + 10
	runner.afterEvents = func() { close(w.release) }

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(RunRequest{CVText: "cv", JobText: "job"}))
	req := httptest.NewRequest(http.MethodPost, "/v1/adapt/stream", &buf)

	done := make(chan struct{})
	go func() {
		h.srv.Handler().ServeHTTP(w, req)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish while the client was stalled")
	}

	body := w.Body.String()
	assert.Contains(t, body, "event: result\n")
	assert.Contains(t, body, "event: complete\n")
	assert.Less(t, strings.Count(body, "event: progress\n"), runner.extraEvents+2)
}

func TestStream_ValidationBeforeStreaming(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(http.MethodPost, "/v1/adapt/stream", RunRequest{CVText: "cv"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEqual(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func multipartRequest(t *testing.T, field, name string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/v1/extract-text", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestExtractText(t *testing.T) {
	h := newHarness(t, Config{})
	tests := []struct {
		name   string
		field  string
		file   string
		data   []byte
		status int
	}{
		{"text file", "file", "cv.txt", []byte("Jane Doe\n\nGo engineer"), http.StatusOK},
		{"unsupported extension", "file", "cv.rtf", []byte("{\\rtf1}"), http.StatusUnsupportedMediaType},
		{"empty document", "file", "cv.txt", []byte("   "), http.StatusUnprocessableEntity},
		{"missing field", "", "", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.srv.Handler().ServeHTTP(rec, multipartRequest(t, tt.field, tt.file, tt.data))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, multipartRequest(t, "file", "cv.txt", []byte("Jane Doe\n\nGo engineer")))
	var out TextResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Jane Doe\n\nGo engineer", out.Text)
	require.NotNil(t, out.Metadata)
	assert.Equal(t, "cv.txt", out.Metadata.Source)
	assert.NotEmpty(t, out.Metadata.Hash)
}

func TestFetchJob(t *testing.T) {
	fetcher := func(_ context.Context, url string) (*ingestion.Document, error) {
		return &ingestion.Document{Text: "posting", Metadata: &ingestion.Metadata{Source: url, Platform: "lever"}}, nil
	}
	h := newHarness(t, Config{}, WithJobFetcher(fetcher))

	rec := h.do(http.MethodPost, "/v1/fetch-job", FetchJobRequest{URL: "https://jobs.lever.co/acme/1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"platform":"lever"`)

	rec = h.do(http.MethodPost, "/v1/fetch-job", FetchJobRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthProtectsAPI(t *testing.T) {
	secret := "0123456789abcdef-secret"
	h := newHarness(t, Config{JWTSecret: secret, TokenHours: 1})

	rec := h.do(http.MethodPost, "/v1/adapt", RunRequest{CVText: "cv", JobText: "job"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// health stays open
	rec = h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	token, err := NewTokenService(secret, 1).GenerateToken("cli")
	require.NoError(t, err)
	rec = h.do(http.MethodPost, "/v1/adapt", RunRequest{CVText: "cv", JobText: "job"}, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, Config{RateLimit: ratelimit.Config{RPS: 0.001, Burst: 2}})

	for i := 0; i < 2; i++ {
		rec := h.do(http.MethodPost, "/v1/fetch-job", FetchJobRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "request %d", i)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := h.do(http.MethodPost, "/v1/fetch-job", FetchJobRequest{})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")

	rec = h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := newHarness(t, Config{AllowedOrigins: []string{"https://app.test"}})

	rec := h.do(http.MethodOptions, "/v1/adapt", nil, "Origin", "https://app.test")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = h.do(http.MethodGet, "/health", nil, "Origin", "https://evil.test")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	open := newHarness(t, Config{})
	rec = open.do(http.MethodGet, "/health", nil, "Origin", "https://any.test")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ErrValidation{Field: "x", Message: "bad"}, http.StatusBadRequest},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{&ingestion.ExtractError{Format: "rtf", Message: "cannot extract", Cause: ingestion.ErrUnsupportedFormat}, http.StatusUnsupportedMediaType},
		{&ingestion.ExtractError{Format: "pdf", Message: "cannot extract", Cause: ingestion.ErrEmptyDocument}, http.StatusUnprocessableEntity},
		{&fetch.Error{URL: "x", Message: "unsupported URL", Cause: fetch.ErrInvalidURL}, http.StatusBadRequest},
		{&fetch.Error{URL: "x", Message: "HTTP status 404"}, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", &ErrValidation{}), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}
