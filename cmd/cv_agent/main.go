// Package main provides the cv_agent CLI for adapting and analyzing CVs against job postings.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonathan/cv-adaptor/internal/config"
)

var (
	configPath string
	settings   = viper.New()
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cv_agent",
	Short: "Adapt and analyze CVs against job postings",
	Long:  "cv_agent parses a CV and a job posting, scores the match, then either rewrites the CV under QA review or produces an improvement report.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.Load(settings, configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML, JSON or TOML config file")
	flags.Bool("debug", false, "Enable debug logging")
	flags.Bool("log-json", false, "Emit logs as JSON")
	mustBind("log.debug", flags.Lookup("debug"))
	mustBind("log.json", flags.Lookup("log-json"))
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
