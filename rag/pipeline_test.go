package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/insight/ai/mock"
	"github.com/poiesic/insight/batch"
	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile(id string, age int) core.Record {
	return core.DeriveSummary(core.Record{
		CustomerID:        id,
		Age:               age,
		Gender:            "Female",
		Country:           "Canada",
		Income:            50000,
		ProductQuality:    7,
		ServiceQuality:    8,
		PurchaseFrequency: 12,
		FeedbackScore:     "High",
		LoyaltyLevel:      "Gold",
		SatisfactionScore: 88.5,
	})
}

// fixedEmbedder maps each record summary to a fixed 2-d vector and every
// other text (the query) to [1, 0].
func fixedEmbedder(vectors map[string][]float32) *mock.MockEmbedder {
	return mock.NewMockEmbedder().
		WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i, text := range texts {
				out[i] = vectors[text]
			}
			return out, nil
		}).
		WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0}, nil
		})
}

type threeProfiles struct {
	records  []core.Record
	embedder *mock.MockEmbedder
	index    *index.Index
}

func setupThreeProfiles(t *testing.T) threeProfiles {
	t.Helper()
	records := []core.Record{profile("c1", 25), profile("c2", 40), profile("c3", 61)}
	embedder := fixedEmbedder(map[string][]float32{
		records[0].Summary: {1, 0},
		records[1].Summary: {0, 1},
		records[2].Summary: {1, 1},
	})

	cfg := batch.DefaultConfig()
	cfg.ChunkSize = 2
	cfg.RequestsPerSecond = 0
	be, err := batch.NewEmbedder(embedder, cfg)
	require.NoError(t, err)
	defer be.Release()

	result, err := be.EmbedAll(context.Background(), records)
	require.NoError(t, err)

	idx := index.New()
	require.NoError(t, idx.Insert(result.Entries...))
	return threeProfiles{records: records, embedder: embedder, index: idx}
}

func TestPipeline_EndToEnd(t *testing.T) {
	s := setupThreeProfiles(t)
	generator := mock.NewMockGenerator("customers in their twenties are loyal")

	p, err := NewPipeline(s.embedder, s.index, generator)
	require.NoError(t, err)

	hits, err := p.Retrieve(context.Background(), "who is loyal?", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, s.records[0], hits[0].Record)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	response, err := p.Run(context.Background(), "who is loyal?", 2)
	require.NoError(t, err)
	assert.Equal(t, "customers in their twenties are loyal", response)

	want := "Analysis Query: who is loyal?\n\nRelevant Customer Profiles for Context:\n" +
		"* Similarity Score: 1.00\n" + s.records[0].Summary + "\n" +
		"* Similarity Score: 0.71\n" + s.records[2].Summary + "\n"
	assert.Equal(t, want, generator.LastPrompt())
}

func TestPipeline_ResponseReturnedUnmodified(t *testing.T) {
	s := setupThreeProfiles(t)
	raw := "  **Patterns**\n\n- one\n- two\n\n"
	p, err := NewPipeline(s.embedder, s.index, mock.NewMockGenerator(raw))
	require.NoError(t, err)

	response, err := p.Run(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Equal(t, raw, response)
}

func TestPipeline_StageErrors(t *testing.T) {
	s := setupThreeProfiles(t)

	t.Run("embedding failure is a retrieval error", func(t *testing.T) {
		embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("connection refused")
		})
		generator := mock.NewMockGenerator("unused")
		p, err := NewPipeline(embedder, s.index, generator)
		require.NoError(t, err)

		_, err = p.Run(context.Background(), "q", 1)
		assert.ErrorIs(t, err, core.ErrRetrieval)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Zero(t, generator.CallCount())
	})

	t.Run("generation failure", func(t *testing.T) {
		generator := &mock.MockGenerator{GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("model overloaded")
		}}
		p, err := NewPipeline(s.embedder, s.index, generator)
		require.NoError(t, err)

		_, err = p.Run(context.Background(), "q", 1)
		assert.ErrorIs(t, err, core.ErrGeneration)
		assert.NotErrorIs(t, err, core.ErrRetrieval)
	})

	t.Run("negative k", func(t *testing.T) {
		p, err := NewPipeline(s.embedder, s.index, mock.NewMockGenerator(""))
		require.NoError(t, err)

		_, err = p.Run(context.Background(), "q", -1)
		assert.ErrorIs(t, err, core.ErrQuery)
	})

	t.Run("empty query", func(t *testing.T) {
		p, err := NewPipeline(s.embedder, s.index, mock.NewMockGenerator(""))
		require.NoError(t, err)

		_, err = p.Retrieve(context.Background(), "   ", 1)
		assert.ErrorIs(t, err, core.ErrQuery)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("query dimension mismatch", func(t *testing.T) {
		embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		})
		p, err := NewPipeline(embedder, s.index, mock.NewMockGenerator(""))
		require.NoError(t, err)

		_, err = p.Retrieve(context.Background(), "q", 1)
		assert.ErrorIs(t, err, core.ErrQuery)
	})
}

func TestPipeline_ZeroKGeneratesWithoutContext(t *testing.T) {
	s := setupThreeProfiles(t)
	generator := mock.NewMockGenerator("ok")
	p, err := NewPipeline(s.embedder, s.index, generator)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, "Analysis Query: q\n\nRelevant Customer Profiles for Context:\n", generator.LastPrompt())
}

func TestPipeline_Timeout(t *testing.T) {
	s := setupThreeProfiles(t)
	generator := &mock.MockGenerator{GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	p, err := NewPipeline(s.embedder, s.index, generator, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "q", 1)
	assert.ErrorIs(t, err, core.ErrGeneration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type recordingMonitor struct {
	events []string
}

func (m *recordingMonitor) Start(id, query string) {
	m.events = append(m.events, "start:"+query)
}
func (m *recordingMonitor) AfterQueryEmbedding(dimension int) {
	m.events = append(m.events, "embedded")
}
func (m *recordingMonitor) AfterRetrieval(hits []core.SearchResult) {
	m.events = append(m.events, "retrieved")
}
func (m *recordingMonitor) AfterPrompt(prompt string) {
	m.events = append(m.events, "prompt")
}
func (m *recordingMonitor) Finish(response string, err error) {
	m.events = append(m.events, "finish:"+response)
}

func TestPipeline_Monitor(t *testing.T) {
	s := setupThreeProfiles(t)
	monitor := &recordingMonitor{}
	p, err := NewPipeline(s.embedder, s.index, mock.NewMockGenerator("done"), WithMonitor(monitor))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"start:q", "embedded", "retrieved", "prompt", "finish:done"}, monitor.events)
}

func TestPipeline_PromptFormatter(t *testing.T) {
	s := setupThreeProfiles(t)
	generator := mock.NewMockGenerator("ok")
	format := func(query string, hits []core.SearchResult) string {
		return strings.ToUpper(query)
	}
	p, err := NewPipeline(s.embedder, s.index, generator, WithPromptFormatter(format))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "why", 1)
	require.NoError(t, err)
	assert.Equal(t, "WHY", generator.LastPrompt())
}

func TestNewPipeline_Validation(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	generator := mock.NewMockGenerator("")
	idx := index.New()

	_, err := NewPipeline(nil, idx, generator)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = NewPipeline(embedder, nil, generator)
	assert.ErrorIs(t, err, ErrSearcherRequired)
	_, err = NewPipeline(embedder, idx, nil)
	assert.ErrorIs(t, err, ErrGeneratorRequired)
	_, err = NewPipeline(embedder, idx, generator, WithTimeout(-time.Second))
	assert.ErrorIs(t, err, core.ErrConfig)
}
