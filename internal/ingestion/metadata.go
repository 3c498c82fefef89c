package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Metadata describes where an ingested document came from.
type Metadata struct {
	Source     string `json:"source,omitempty"` // file name or URL
	Format     Format `json:"format,omitempty"`
	Platform   string `json:"platform,omitempty"`
	Rendered   bool   `json:"rendered,omitempty"`
	Bytes      int    `json:"bytes,omitempty"`
	Characters int    `json:"characters"`
	Timestamp  string `json:"timestamp"` // RFC3339
	Hash       string `json:"hash"`      // SHA256 of the cleaned text
}

// NewMetadata creates Metadata for cleaned content with the current timestamp.
func NewMetadata(content, source string) *Metadata {
	return &Metadata{
		Source:     source,
		Characters: len([]rune(content)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Hash:       computeHash(content),
	}
}

func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// ToJSON marshals Metadata to pretty-printed JSON
func (m *Metadata) ToJSON() ([]byte, error) {
	jsonBytes, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata to JSON: %w", err)
	}
	return jsonBytes, nil
}
