// Package facts indexes structured records as atomic statements and answers
// semantic lookups over them.
//
// A Store holds two namespaces, one for CV facts and one for job posting
// facts. Indexing a namespace replaces its contents. Retrieval never fails:
// an empty namespace or a failed search yields no results.
package facts

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cv-adaptor/internal/logging"
	"github.com/jonathan/cv-adaptor/internal/types"
)

// Namespace partitions facts by source document
type Namespace string

// Namespaces
const (
	NamespaceCV Namespace = "cv"
	NamespaceJD Namespace = "jd"
)

// DefaultTopK is the number of facts returned by a retrieval when no k is given
const DefaultTopK = 5

// factIDSpace scopes deterministic fact IDs
var factIDSpace = uuid.MustParse("6f1c2a9e-3b7d-4d8e-9a51-2c4f0e8b7d13")

// Fact is one retrievable statement
type Fact struct {
	ID        uuid.UUID `json:"id"`
	Namespace Namespace `json:"namespace"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
}

func newFact(ns Namespace, kind, text string) Fact {
	return Fact{
		ID:        uuid.NewSHA1(factIDSpace, []byte(string(ns)+"\x00"+text)),
		Namespace: ns,
		Kind:      kind,
		Text:      text,
	}
}

type entry struct {
	fact   Fact
	vector []float32
}

// Store is an in-memory, namespaced vector index. It is safe for concurrent use,
// but a single Store should serve a single pipeline run.
type Store struct {
	embedder Embedder
	topK     int
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[Namespace][]entry
}

// Option configures a Store
type Option func(*Store)

// WithTopK sets the default number of results per retrieval
func WithTopK(k int) Option {
	return func(s *Store) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store. A nil embedder selects the HashEmbedder.
func NewStore(embedder Embedder, opts ...Option) *Store {
	if embedder == nil {
		embedder = NewHashEmbedder(0)
	}
	s := &Store{
		embedder: embedder,
		topK:     DefaultTopK,
		entries:  make(map[Namespace][]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithFields(s.logger, zap.String("component", "facts"))
	return s
}

// IndexProfile replaces the CV namespace with facts derived from the profile
func (s *Store) IndexProfile(ctx context.Context, p *types.CandidateProfile) error {
	return s.Index(ctx, NamespaceCV, ProfileFacts(p))
}

// IndexJob replaces the job namespace with facts derived from the requirements
func (s *Store) IndexJob(ctx context.Context, j *types.JobRequirements) error {
	return s.Index(ctx, NamespaceJD, JobFacts(j))
}

// Index replaces every fact in ns with the given facts. Duplicate texts are
// stored once. On embedding failure the namespace is left empty.
func (s *Store) Index(ctx context.Context, ns Namespace, facts []Fact) error {
	unique := make([]Fact, 0, len(facts))
	seen := make(map[uuid.UUID]bool, len(facts))
	for _, f := range facts {
		f.Namespace = ns
		if f.ID == uuid.Nil {
			f = newFact(ns, f.Kind, f.Text)
		}
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		unique = append(unique, f)
	}

	var vectors [][]float32
	var embedErr error
	if len(unique) > 0 {
		texts := make([]string, len(unique))
		for i, f := range unique {
			texts[i] = f.Text
		}
		vectors, embedErr = s.embedder.Embed(ctx, texts)
		if embedErr == nil && len(vectors) != len(unique) {
			embedErr = fmt.Errorf("embedder returned %d vectors for %d facts", len(vectors), len(unique))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if embedErr != nil {
		delete(s.entries, ns)
		return fmt.Errorf("failed to index %s facts: %w", ns, embedErr)
	}

	entries := make([]entry, len(unique))
	for i, f := range unique {
		entries[i] = entry{fact: f, vector: vectors[i]}
	}
	s.entries[ns] = entries

	s.logger.Debug("indexed facts", zap.String("namespace", string(ns)), zap.Int("count", len(entries)))
	return nil
}

// Len returns the number of facts in ns
func (s *Store) Len(ns Namespace) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[ns])
}

// Facts returns a copy of every fact in ns in index order
func (s *Store) Facts(ns Namespace) []Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Fact, len(s.entries[ns]))
	for i, e := range s.entries[ns] {
		out[i] = e.fact
	}
	return out
}

// Retrieve returns up to k fact texts from ns, most similar to query first.
// k <= 0 uses the store default. Ties keep index order.
func (s *Store) Retrieve(ctx context.Context, ns Namespace, query string, k int) []string {
	if k <= 0 {
		k = s.topK
	}

	s.mu.RLock()
	entries := s.entries[ns]
	s.mu.RUnlock()

	if len(entries) == 0 {
		return []string{}
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		s.logger.Warn("fact retrieval failed",
			zap.String("namespace", string(ns)),
			zap.String("query", logging.TruncateForLog(query, 80)),
			zap.Error(err))
		return []string{}
	}
	qv := vectors[0]

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(entries))
	for i, e := range entries {
		ranked[i] = scored{idx: i, score: cosine(qv, e.vector)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = entries[ranked[i].idx].fact.Text
	}
	return out
}

// RetrieveMulti runs one retrieval per query concurrently and merges the
// results in query order, dropping exact-text duplicates.
func (s *Store) RetrieveMulti(ctx context.Context, ns Namespace, queries []string) []string {
	results := make([][]string, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, q := range queries {
		g.Go(func() error {
			results[i] = s.Retrieve(gctx, ns, q, 0)
			return nil
		})
	}
	_ = g.Wait()

	merged := []string{}
	seen := make(map[string]bool)
	for _, batch := range results {
		for _, text := range batch {
			if seen[text] {
				continue
			}
			seen[text] = true
			merged = append(merged, text)
		}
	}
	return merged
}
