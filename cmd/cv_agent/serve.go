package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-adaptor/internal/ingestion"
	"github.com/jonathan/cv-adaptor/internal/pipeline"
	"github.com/jonathan/cv-adaptor/internal/server"
	"github.com/jonathan/cv-adaptor/internal/server/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for adapting and analyzing CVs.`,
	RunE:  runServe,
}

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token signed with the configured JWT secret",
	RunE: func(_ *cobra.Command, _ []string) error {
		if !cfg.Server.Auth.Enabled() {
			return fmt.Errorf("server.auth.jwt_secret is not set")
		}
		token, err := server.NewTokenService(cfg.Server.Auth.JWTSecret, cfg.Server.Auth.ExpirationHours).GenerateToken(tokenSubject)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, token)
		return err
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	mustBind("server.port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "Subject recorded in the token")
	rootCmd.AddCommand(tokenCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	srvCfg := server.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Settings:       cfg.PipelineSettings(),
		RateLimit: ratelimit.Config{
			RPS:   cfg.Server.RateLimit.RPS,
			Burst: cfg.Server.RateLimit.Burst,
		},
		JWTSecret:  cfg.Server.Auth.JWTSecret,
		TokenHours: cfg.Server.Auth.ExpirationHours,
	}
	factory := func(s pipeline.Settings) (server.Runner, error) {
		return rt.orchestrator(s)
	}
	fetchJob := func(ctx context.Context, url string) (*ingestion.Document, error) {
		return ingestion.FromURL(ctx, url, jobOptions(cfg, rt.logger))
	}

	srv, err := server.New(srvCfg, factory, server.WithLogger(rt.logger), server.WithJobFetcher(fetchJob))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start(ctx)
}
