package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-adaptor/internal/ingestion"
)

var (
	extractInFile string
	fetchURL      string
	textOutFile   string
	textWithMeta  bool
)

var extractTextCmd = &cobra.Command{
	Use:   "extract-text",
	Short: "Extract clean text from a .txt, .pdf or .docx file",
	RunE: func(_ *cobra.Command, _ []string) error {
		doc, err := ingestion.FromFile(extractInFile)
		if err != nil {
			return err
		}
		return writeDocument(doc)
	},
}

var fetchJobCmd = &cobra.Command{
	Use:   "fetch-job",
	Short: "Fetch a job posting URL and print its main text",
	Long:  "Fetch a job posting, strip navigation and boilerplate using platform-aware selectors, and fall back to a headless browser for script-rendered pages when enabled.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		doc, err := ingestion.FromURL(cmd.Context(), fetchURL, jobOptions(cfg, logger))
		if err != nil {
			return err
		}
		return writeDocument(doc)
	},
}

func init() {
	extractTextCmd.Flags().StringVarP(&extractInFile, "in", "i", "", "Path to the input document")
	_ = extractTextCmd.MarkFlagRequired("in")

	fetchJobCmd.Flags().StringVar(&fetchURL, "url", "", "Job posting URL")
	fetchJobCmd.Flags().Bool("browser", false, "Render with headless Chrome when the static page has too little text")
	_ = fetchJobCmd.MarkFlagRequired("url")
	mustBind("fetch.use_browser", fetchJobCmd.Flags().Lookup("browser"))

	for _, cmd := range []*cobra.Command{extractTextCmd, fetchJobCmd} {
		cmd.Flags().StringVarP(&textOutFile, "out", "o", "", "Write the text to this file instead of stdout")
		cmd.Flags().BoolVar(&textWithMeta, "metadata", false, "Print the document metadata as JSON to stderr")
		rootCmd.AddCommand(cmd)
	}
}

func writeDocument(doc *ingestion.Document) error {
	if textWithMeta {
		meta, err := json.MarshalIndent(doc.Metadata, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		_, _ = fmt.Fprintln(os.Stderr, string(meta))
	}
	if textOutFile == "" {
		_, err := fmt.Fprintln(os.Stdout, doc.Text)
		return err
	}
	if err := os.WriteFile(textOutFile, []byte(doc.Text), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
