package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/cv-adaptor/internal/fetch"
)

// Document is cleaned text ready to be handed to the pipeline.
type Document struct {
	Text     string    `json:"text"`
	Metadata *Metadata `json:"metadata"`
}

// FromBytes extracts and cleans a document whose format is taken from name.
func FromBytes(data []byte, name string) (*Document, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return nil, &ExtractError{Format: Format(filepath.Ext(name)), Message: "cannot extract", Cause: err}
	}
	raw, err := ExtractText(data, format)
	if err != nil {
		return nil, err
	}
	text := CleanText(raw)
	meta := NewMetadata(text, filepath.Base(name))
	meta.Format = format
	meta.Bytes = len(data)
	return &Document{Text: text, Metadata: meta}, nil
}

// FromFile reads path and extracts its text.
func FromFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return FromBytes(data, path)
}

// FromURL fetches a job posting and cleans its text.
func FromURL(ctx context.Context, url string, opts fetch.JobOptions) (*Document, error) {
	posting, err := fetch.JobText(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	text := CleanText(posting.Text)
	meta := NewMetadata(text, url)
	meta.Platform = string(posting.Platform)
	meta.Rendered = posting.Rendered
	return &Document{Text: text, Metadata: meta}, nil
}
