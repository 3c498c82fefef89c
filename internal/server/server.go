// Package server provides the HTTP API for CV adaptation and analysis.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/cv-adaptor/internal/fetch"
	"github.com/jonathan/cv-adaptor/internal/ingestion"
	"github.com/jonathan/cv-adaptor/internal/logging"
	"github.com/jonathan/cv-adaptor/internal/pipeline"
	"github.com/jonathan/cv-adaptor/internal/server/middleware"
	"github.com/jonathan/cv-adaptor/internal/server/ratelimit"
)

// Runner executes pipeline runs. *pipeline.Orchestrator implements it.
type Runner interface {
	Adapt(ctx context.Context, cvText, jobText string, opts pipeline.RunOptions) *pipeline.Result
	Analyze(ctx context.Context, cvText, jobText string, opts pipeline.RunOptions) *pipeline.Result
}

// RunnerFactory builds a Runner for the given workflow settings.
type RunnerFactory func(settings pipeline.Settings) (Runner, error)

// JobFetcher retrieves and cleans a job posting.
type JobFetcher func(ctx context.Context, url string) (*ingestion.Document, error)

// Config holds server configuration
type Config struct {
	Port           int
	AllowedOrigins []string
	RequestTimeout time.Duration
	Settings       pipeline.Settings
	RateLimit      ratelimit.Config
	JWTSecret      string
	TokenHours     int
}

// Server represents the HTTP server
type Server struct {
	cfg        Config
	newRunner  RunnerFactory
	runner     Runner
	fetchJob   JobFetcher
	logger     *zap.Logger
	limiter    *ratelimit.Limiter
	tokens     *TokenService
	handler    http.Handler
	httpServer *http.Server
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and error logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithJobFetcher replaces the job posting retriever
func WithJobFetcher(f JobFetcher) Option {
	return func(s *Server) { s.fetchJob = f }
}

// New creates a new server instance
func New(cfg Config, newRunner RunnerFactory, opts ...Option) (*Server, error) {
	if newRunner == nil {
		return nil, errors.New("server: runner factory is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Minute
	}

	s := &Server{cfg: cfg, newRunner: newRunner}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)
	if s.fetchJob == nil {
		s.fetchJob = func(ctx context.Context, url string) (*ingestion.Document, error) {
			return ingestion.FromURL(ctx, url, fetch.JobOptions{Logger: s.logger})
		}
	}

	runner, err := newRunner(cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	s.runner = runner
	s.limiter = ratelimit.NewLimiter(cfg.RateLimit)
	if cfg.JWTSecret != "" {
		s.tokens = NewTokenService(cfg.JWTSecret, cfg.TokenHours)
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/adapt", s.handleAdapt)
	api.HandleFunc("POST /v1/adapt/stream", s.handleStream(pipeline.VariantAdapt))
	api.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	api.HandleFunc("POST /v1/analyze/stream", s.handleStream(pipeline.VariantAnalyze))
	api.HandleFunc("POST /v1/extract-text", s.handleExtractText)
	api.HandleFunc("POST /v1/fetch-job", s.handleFetchJob)

	var apiHandler http.Handler = api
	if s.tokens != nil {
		apiHandler = middleware.Auth(s.tokens, func(w http.ResponseWriter, _ *http.Request) {
			s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		})(apiHandler)
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /health", s.handleHealth)
	root.Handle("/v1/", s.withRateLimit(apiHandler))

	s.handler = s.withLogging(s.withCORS(root))
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.limiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer s.limiter.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers. An empty allow list admits every origin.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(s.cfg.AllowedOrigins) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case slices.Contains(s.cfg.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients that exhaust their token bucket
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.limiter.Allow(clientID(r))
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		}
		if !allowed {
			retry := max(1, int(info.RetryAfter.Round(time.Second).Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			s.logger.Warn("rate limit exceeded", zap.String("client", clientID(r)), zap.String("path", r.URL.Path))
			s.jsonResponse(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"retry_after": retry,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status and keeps streaming working
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// clientID uses the remote IP. Forwarded headers are not trusted.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err onto a status code and logs server-side failures
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.errorResponse(w, status, err.Error())
}
