package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jonathan/cv-adaptor/internal/config"
	"github.com/jonathan/cv-adaptor/internal/db"
	"github.com/jonathan/cv-adaptor/internal/facts"
	"github.com/jonathan/cv-adaptor/internal/fetch"
	"github.com/jonathan/cv-adaptor/internal/llm"
	"github.com/jonathan/cv-adaptor/internal/logging"
	"github.com/jonathan/cv-adaptor/internal/pipeline"
)

func mustBind(key string, flag *pflag.Flag) {
	if err := settings.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag.Name, err))
	}
}

// runtime owns the long-lived collaborators of one CLI invocation
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *llm.Registry
	steps    pipeline.StepFactory
	embedder facts.Embedder
	database *db.DB
	closers  []func() error
}

// newLogger builds the configured logger without touching any provider
func newLogger(c *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(c.Log.JSON, c.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// newRuntime resolves every generation client and the optional database
func newRuntime(ctx context.Context, c *config.Config) (*runtime, error) {
	logger, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: c, logger: logger}

	regCfg, err := c.RegistryConfig()
	if err != nil {
		return nil, err
	}
	rt.registry = llm.NewRegistry(regCfg)
	rt.closers = append(rt.closers, rt.registry.Close)

	clients, err := pipeline.ClientsFromRegistry(ctx, rt.registry)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.steps = pipeline.NewStepFactory(clients, logger, c.Workflow.ExtractionAttempts)

	if rt.embedder, err = rt.newEmbedder(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	if c.Database.URL != "" {
		database, err := db.Connect(ctx, c.Database.URL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			rt.Close()
			return nil, err
		}
		rt.database = database
		rt.closers = append(rt.closers, func() error { database.Close(); return nil })
	}
	return rt, nil
}

func (rt *runtime) newEmbedder(ctx context.Context) (facts.Embedder, error) {
	if rt.cfg.Facts.Embedder != "gemini" {
		return facts.NewHashEmbedder(rt.cfg.Facts.Dimensions), nil
	}
	if rt.cfg.LLM.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini embedder requires GEMINI_API_KEY")
	}
	client, err := llm.NewGeminiClient(ctx, llm.DefaultGeminiConfig(), rt.cfg.LLM.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	rt.closers = append(rt.closers, client.Close)
	return facts.NewGeminiEmbedder(client, rt.cfg.Facts.EmbeddingModel), nil
}

// orchestrator builds a runner for the given routing policy
func (rt *runtime) orchestrator(s pipeline.Settings) (*pipeline.Orchestrator, error) {
	topK := rt.cfg.Facts.TopK
	opts := []pipeline.Option{
		pipeline.WithLogger(rt.logger),
		pipeline.WithFactStore(func() *facts.Store {
			return facts.NewStore(rt.embedder, facts.WithTopK(topK), facts.WithLogger(rt.logger))
		}),
	}
	if rt.database != nil {
		opts = append(opts, pipeline.WithRecorder(rt.database))
	}
	return pipeline.New(s, rt.steps, opts...)
}

// jobOptions configures job posting retrieval from the fetch section
func jobOptions(c *config.Config, logger *zap.Logger) fetch.JobOptions {
	opts := fetch.JobOptions{
		Fetch:  &fetch.Options{Timeout: c.Fetch.Timeout},
		Logger: logger,
	}
	if c.Fetch.UseBrowser {
		opts.Render = fetch.NewBrowserRenderer(c.Fetch.BrowserTimeout, logger)
	}
	return opts
}

// Close releases clients in reverse order of creation
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", zap.Error(err))
		}
	}
	rt.closers = nil
	_ = rt.logger.Sync()
}
