package insight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/insight/ai/mock"
	"github.com/poiesic/insight/batch"
	"github.com/poiesic/insight/config"
	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/ingestion"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Batch.ChunkSize = 4
	cfg.Batch.Workers = 2
	rps := 0.0
	cfg.Batch.RequestsPerSecond = &rps
	return cfg
}

func newTestEngine(t *testing.T, cfg config.Config, provider *mock.MockProvider, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithProvider(provider)}, opts...)
	e, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return e
}

func mockProvider() *mock.MockProvider {
	return mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockGenerator("analysis")).(*mock.MockProvider)
}

func TestEngine_IndexAndQuery(t *testing.T) {
	provider := mockProvider()
	e := newTestEngine(t, testConfig(), provider)
	defer e.Close()

	records := ingestion.Generate(10, 7)
	result, err := e.Index(context.Background(), records)
	require.NoError(t, err)
	assert.True(t, result.Complete())
	assert.Equal(t, 10, e.VectorIndex().Len())
	assert.Equal(t, 3, provider.GetMockEmbedder().CallCount())

	// The query text equals a stored summary, so that profile ranks first
	hits, err := e.Search(context.Background(), records[4].Summary, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, records[4].CustomerID, hits[0].Record.CustomerID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)

	answer, err := e.Query(context.Background(), records[4].Summary, 3)
	require.NoError(t, err)
	assert.Equal(t, "analysis", answer)
	assert.Contains(t, provider.GetMockGenerator().LastPrompt(), records[4].Summary)
}

func TestEngine_ReindexSkipsCommittedBatches(t *testing.T) {
	provider := mockProvider()
	e := newTestEngine(t, testConfig(), provider)
	defer e.Close()

	records := ingestion.Generate(8, 1)
	_, err := e.Index(context.Background(), records)
	require.NoError(t, err)
	calls := provider.GetMockEmbedder().CallCount()

	result, err := e.Index(context.Background(), records)
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.Equal(t, calls, provider.GetMockEmbedder().CallCount())
	assert.Equal(t, 8, e.VectorIndex().Len())
}

func TestEngine_FailFastReportsBatch(t *testing.T) {
	records := ingestion.Generate(10, 3)
	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		for _, text := range texts {
			if text == records[5].Summary {
				return nil, errors.New("rate limited")
			}
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, 8)
		}
		return out, nil
	})
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockGenerator("")).(*mock.MockProvider)

	cfg := testConfig()
	cfg.Batch.Policy = "fail-fast"
	e := newTestEngine(t, cfg, provider)
	defer e.Close()

	result, err := e.Index(context.Background(), records)
	var batchErr *core.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.Index)
	assert.Len(t, result.Entries, 4)
	assert.Equal(t, 4, e.VectorIndex().Len())
}

func TestEngine_PersistsAndRestores(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "db")
	cfg.Storage.CacheEmbeddings = true
	records := ingestion.Generate(6, 11)

	first := mockProvider()
	e := newTestEngine(t, cfg, first)
	_, err := e.Index(context.Background(), records)
	require.NoError(t, err)
	before, err := e.Search(context.Background(), "loyal customers", 6)
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.True(t, first.Closed())

	second := mockProvider()
	e = newTestEngine(t, cfg, second)
	defer e.Close()

	assert.Equal(t, 6, e.VectorIndex().Len())
	embedCalls := second.GetMockEmbedder().CallCount()

	result, err := e.Index(context.Background(), records)
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.Equal(t, embedCalls, second.GetMockEmbedder().CallCount(), "restored batches are not re-embedded")

	after, err := e.Search(context.Background(), "loyal customers", 6)
	require.NoError(t, err)
	assert.Equal(t, before, after, "restored index ranks identically")
}

func TestEngine_MixedDimensionBatchIsNotPersisted(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "db")
	cfg.Batch.Policy = "skip"
	cfg.Batch.MaxAttempts = 1
	records := ingestion.Generate(4, 3)

	embedder := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1, 0, 0}
		}
		vectors[len(vectors)-1] = []float32{1, 0}
		return vectors, nil
	})
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockGenerator("analysis")).(*mock.MockProvider)

	e := newTestEngine(t, cfg, provider)
	result, err := e.Index(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.ErrorIs(t, result.Failed[0], core.ErrDimensionMismatch)
	assert.Equal(t, "embedded 0 of 4 records in 1 batches, 1 skipped", result.Summary())

	count, err := e.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	require.NoError(t, e.Close())

	// The store stays usable and the dropped batch is embedded again
	e = newTestEngine(t, cfg, mockProvider())
	defer e.Close()
	assert.Zero(t, e.VectorIndex().Len())

	result, err = e.Index(context.Background(), records)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 4)
	assert.Equal(t, 4, e.VectorIndex().Len())
}

func TestEngine_CommitRejectsMixedDimensions(t *testing.T) {
	e := newTestEngine(t, testConfig(), mockProvider(), WithInMemoryStorage())
	defer e.Close()

	batches, err := batch.Partition(ingestion.Generate(2, 5), 2)
	require.NoError(t, err)
	entries := []core.Entry{
		{Record: batches[0].Records[0], Vector: []float32{1, 0, 0}},
		{Record: batches[0].Records[1], Vector: []float32{0, 1}},
	}

	err = e.commit(context.Background(), batches[0], entries)
	require.ErrorIs(t, err, core.ErrDimensionMismatch)

	count, err := e.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	saved, err := e.repo.HasBatch(context.Background(), batches[0].Key)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Zero(t, e.VectorIndex().Len())
}

func TestEngine_IndexFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, ingestion.Write(f, ingestion.Generate(5, 2)))
	require.NoError(t, f.Close())

	e := newTestEngine(t, testConfig(), mockProvider(), WithInMemoryStorage())
	defer e.Close()

	result, err := e.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, result.Entries, 5)
	assert.Equal(t, "embedded 5 of 5 records in 2 batches, 0 skipped", result.Summary())
}

func TestEngine_IndexFileIngestionError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("CustomerID,Age\nc1,abc\n"), 0o600))

	provider := mockProvider()
	e := newTestEngine(t, testConfig(), provider)
	defer e.Close()

	_, err := e.IndexFile(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrIngestion)
	assert.Zero(t, provider.GetMockEmbedder().CallCount())
}

func TestEngine_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Batch.ChunkSize = 0

	_, err := New(context.Background(), cfg, WithProvider(mockProvider()))
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestEngine_Progress(t *testing.T) {
	var sb strings.Builder
	e := newTestEngine(t, testConfig(), mockProvider(), WithProgress(&sb))
	defer e.Close()

	_, err := e.Index(context.Background(), ingestion.Generate(4, 5))
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "4/4")
}
