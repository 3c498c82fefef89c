package facts

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder turns texts into vectors. Implementations must return one vector per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DefaultHashDimensions is the vector size of a HashEmbedder built with zero dimensions
const DefaultHashDimensions = 256

// HashEmbedder is a deterministic bag-of-words embedder based on feature hashing.
// It needs no network access and ranks by lexical overlap.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder with the given dimensions
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed implements Embedder
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dims)
	for _, token := range tokenize(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(token))
		sum := hasher.Sum32()
		idx := int(sum % uint32(h.dims))
		// signed feature hashing
		if sum&(1<<31) != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	normalize(v)
	return v
}

// stopwords carry no signal for fact lookup
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "at": true, "for": true, "from": true, "in": true,
	"of": true, "on": true, "or": true, "the": true, "to": true, "with": true, "related": true,
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// geminiEmbedClient is the subset of llm.GeminiClient used for embeddings
type geminiEmbedClient interface {
	Embed(ctx context.Context, modelName string, texts []string) ([][]float32, error)
}

// geminiBatchLimit is the maximum number of texts per batch embedding request
const geminiBatchLimit = 100

// GeminiEmbedder embeds facts with a Gemini embedding model
type GeminiEmbedder struct {
	client geminiEmbedClient
	model  string
}

// NewGeminiEmbedder creates an embedder using the given client and model, e.g. "text-embedding-004"
func NewGeminiEmbedder(client geminiEmbedClient, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

// Embed implements Embedder, splitting large inputs into batches
func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchLimit {
		end := min(start+geminiBatchLimit, len(texts))
		vectors, err := g.client.Embed(ctx, g.model, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}
