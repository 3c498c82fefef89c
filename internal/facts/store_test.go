package facts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-adaptor/internal/types"
)

func sampleProfile() *types.CandidateProfile {
	return &types.CandidateProfile{
		Summary: "Backend engineer with 6 years of experience",
		Experience: []types.Experience{{
			Company:      "TechCorp",
			Position:     "Senior Engineer",
			Duration:     "2020 - Present",
			Description:  "Built payment APIs",
			Achievements: []string{"Reduced latency by 40%"},
			SkillsUsed:   []string{"Python", "Docker"},
			Metrics:      []string{"40% latency reduction"},
		}},
		Education:      []types.Education{{Institution: "MIT", Degree: "BSc", Duration: "2012 - 2016"}},
		Skills:         []string{"Python", "Docker", "AWS"},
		Certifications: []string{"AWS Solutions Architect"},
		Projects:       []string{"Open source CLI for log parsing"},
	}
}

func texts(facts []Fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.Text
	}
	return out
}

func TestProfileFacts_AtomicStatements(t *testing.T) {
	got := texts(ProfileFacts(sampleProfile()))

	assert.Equal(t, []string{
		"Professional Summary: Backend engineer with 6 years of experience",
		"Position: Senior Engineer at TechCorp (2020 - Present). Built payment APIs",
		"Achievement at TechCorp: Reduced latency by 40%",
		"Metric from TechCorp: 40% latency reduction",
		"Skills used at TechCorp: Python, Docker",
		"Education: BSc in N/A from MIT (2012 - 2016)",
		"Technical Skills: Python, Docker, AWS",
		"Certification: AWS Solutions Architect",
		"Project: Open source CLI for log parsing",
	}, got)
}

func TestJobFacts_AtomicStatements(t *testing.T) {
	job := &types.JobRequirements{
		Title:           "Senior Python Developer",
		ExperienceLevel: "Senior",
		Requirements: []types.JobRequirement{
			{Category: "Technical Skills", Requirement: "5+ years Python", Importance: "Required", Keywords: []string{"Python", "Django"}},
			{Category: "Soft Skills", Requirement: "Mentoring", Importance: "Preferred"},
		},
		KeySkills:        []string{"Python", "Kubernetes"},
		Responsibilities: []string{"Design microservices"},
	}

	assert.Equal(t, []string{
		"Job Title: Senior Python Developer at N/A. Experience Level: Senior",
		"Technical Skills (Required): 5+ years Python Keywords: Python, Django",
		"Soft Skills (Preferred): Mentoring",
		"Required Skills: Python, Kubernetes",
		"Responsibility: Design microservices",
	}, texts(JobFacts(job)))
}

func TestStore_RetrieveEmptyNamespace(t *testing.T) {
	store := NewStore(nil)

	result := store.Retrieve(context.Background(), NamespaceCV, "anything", 3)

	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestStore_RetrieveExactMatchRanksFirst(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.IndexProfile(context.Background(), sampleProfile()))

	result := store.Retrieve(context.Background(), NamespaceCV, "Certification: AWS Solutions Architect", 3)

	require.Len(t, result, 3)
	assert.Equal(t, "Certification: AWS Solutions Architect", result[0])
}

func TestStore_RetrieveDefaultTopK(t *testing.T) {
	store := NewStore(nil, WithTopK(2))
	require.NoError(t, store.IndexProfile(context.Background(), sampleProfile()))

	assert.Len(t, store.Retrieve(context.Background(), NamespaceCV, "python", 0), 2)
	assert.Len(t, store.Retrieve(context.Background(), NamespaceCV, "python", 100), 9)
}

func TestStore_ReindexReplacesFacts(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	require.NoError(t, store.IndexProfile(ctx, sampleProfile()))

	second := &types.CandidateProfile{Skills: []string{"Rust", "Go"}}
	require.NoError(t, store.IndexProfile(ctx, second))

	assert.Equal(t, 1, store.Len(NamespaceCV))
	result := store.Retrieve(ctx, NamespaceCV, "Python Docker AWS experience", 10)
	assert.Equal(t, []string{"Technical Skills: Rust, Go"}, result)
}

func TestStore_NamespacesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	require.NoError(t, store.IndexProfile(ctx, sampleProfile()))
	require.NoError(t, store.IndexJob(ctx, &types.JobRequirements{Title: "Engineer", ExperienceLevel: "Mid"}))

	assert.Equal(t, 9, store.Len(NamespaceCV))
	assert.Equal(t, 1, store.Len(NamespaceJD))
}

func TestStore_IndexDeduplicatesTexts(t *testing.T) {
	store := NewStore(nil)
	profile := &types.CandidateProfile{Certifications: []string{"CKA", "CKA"}}

	require.NoError(t, store.IndexProfile(context.Background(), profile))

	assert.Equal(t, 1, store.Len(NamespaceCV))
}

type failingEmbedder struct {
	mu    sync.Mutex
	fail  bool
	inner *HashEmbedder
}

func (f *failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("embedding service down")
	}
	return f.inner.Embed(ctx, texts)
}

func TestStore_RetrieveSwallowsSearchFailure(t *testing.T) {
	embedder := &failingEmbedder{inner: NewHashEmbedder(64)}
	store := NewStore(embedder)
	require.NoError(t, store.IndexProfile(context.Background(), sampleProfile()))

	embedder.fail = true
	result := store.Retrieve(context.Background(), NamespaceCV, "python", 3)

	assert.Empty(t, result)
}

func TestStore_FailedIndexClearsNamespace(t *testing.T) {
	embedder := &failingEmbedder{inner: NewHashEmbedder(64)}
	store := NewStore(embedder)
	require.NoError(t, store.IndexProfile(context.Background(), sampleProfile()))

	embedder.fail = true
	err := store.IndexProfile(context.Background(), sampleProfile())

	require.Error(t, err)
	assert.Equal(t, 0, store.Len(NamespaceCV))
}

func TestStore_RetrieveMultiDedupesInQueryOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	require.NoError(t, store.IndexJob(ctx, &types.JobRequirements{
		Title:            "Data Engineer",
		ExperienceLevel:  "Mid",
		KeySkills:        []string{"Spark", "SQL"},
		Responsibilities: []string{"Own ETL pipelines"},
	}))

	queries := []string{"Responsibility: Own ETL pipelines", "Required Skills: Spark, SQL", "Spark"}
	merged := store.RetrieveMulti(ctx, NamespaceJD, queries)

	first := store.Retrieve(ctx, NamespaceJD, queries[0], 0)
	assert.Equal(t, first, merged, "every fact is returned by the first query, so order follows it")
	assert.Len(t, merged, 3)
}

func TestStore_RetrieveMultiEmptyStore(t *testing.T) {
	merged := NewStore(nil).RetrieveMulti(context.Background(), NamespaceCV, []string{"a", "b"})
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
}

type recordingEmbedClient struct {
	batches []int
}

func (r *recordingEmbedClient) Embed(_ context.Context, model string, texts []string) ([][]float32, error) {
	if model == "" {
		return nil, fmt.Errorf("model required")
	}
	r.batches = append(r.batches, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestGeminiEmbedder_Batches(t *testing.T) {
	client := &recordingEmbedClient{}
	embedder := NewGeminiEmbedder(client, "text-embedding-004")

	input := make([]string, 230)
	vectors, err := embedder.Embed(context.Background(), input)

	require.NoError(t, err)
	assert.Len(t, vectors, 230)
	assert.Equal(t, []int{100, 100, 30}, client.batches)
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	embedder := NewHashEmbedder(32)
	a, _ := embedder.Embed(context.Background(), []string{"Kubernetes and Docker"})
	b, _ := embedder.Embed(context.Background(), []string{"docker KUBERNETES"})

	assert.InDelta(t, 1.0, cosine(a[0], b[0]), 1e-6)
}
