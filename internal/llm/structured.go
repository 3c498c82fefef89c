package llm

import (
	"context"

	"github.com/jonathan/cv-adaptor/internal/schemas"
)

// GenerateStructured runs one generation call and decodes the first balanced
// JSON object of the response into out, enforcing the named schema.
// It returns the raw response text alongside any error.
func GenerateStructured(ctx context.Context, client Client, prompt string, opts Options, schema schemas.Name, out any) (string, error) {
	opts.JSON = true
	raw, err := client.Generate(ctx, prompt, opts)
	if err != nil {
		return "", &APICallError{Message: "failed to generate content from LLM", Cause: err}
	}
	return raw, DecodeStructured(raw, schema, out)
}

// DecodeStructured extracts, schema-validates and decodes a record from raw
// model output. Records implementing Normalize are normalized and records
// implementing Validate are checked after decoding.
func DecodeStructured(raw string, schema schemas.Name, out any) error {
	span, ok := ExtractJSONObject(CleanJSONBlock(raw))
	if !ok {
		return &ParseError{Message: "no JSON object found in response"}
	}

	if err := schemas.Decode(schema, span, out); err != nil {
		return err
	}

	if n, ok := out.(interface{ Normalize() }); ok {
		n.Normalize()
	}
	if v, ok := out.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return &ParseError{Message: "record failed validation", Cause: err}
		}
	}
	return nil
}
