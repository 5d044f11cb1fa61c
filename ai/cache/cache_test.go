package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/insight/ai/mock"
	"github.com/poiesic/insight/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	vectors map[core.ID][]float32
	failPut bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{vectors: map[core.ID][]float32{}}
}

func (c *memoryCache) GetVector(ctx context.Context, key core.ID) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vectors[key]
	return v, ok, nil
}

func (c *memoryCache) PutVector(ctx context.Context, key core.ID, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPut {
		return errors.New("disk full")
	}
	c.vectors[key] = vector
	return nil
}

func TestEmbedder_OnlyMissesReachProvider(t *testing.T) {
	inner := mock.NewMockEmbedder()
	store := newMemoryCache()
	e := New(inner, store, "nomic-embed-text")
	ctx := context.Background()

	first, err := e.EmbedTexts(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, inner.Batches())

	second, err := e.EmbedTexts(ctx, []string{"b", "c", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, inner.Batches())

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, mock.DeterministicVector("c", mock.DefaultDimension), second[1])
}

func TestEmbedder_AllHits(t *testing.T) {
	inner := mock.NewMockEmbedder()
	e := New(inner, newMemoryCache(), "m")
	ctx := context.Background()

	_, err := e.EmbedText(ctx, "x")
	require.NoError(t, err)
	_, err = e.EmbedText(ctx, "x")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.CallCount())
}

func TestEmbedder_ModelIsPartOfKey(t *testing.T) {
	store := newMemoryCache()
	innerA := mock.NewMockEmbedder()
	innerB := mock.NewMockEmbedder()

	_, err := New(innerA, store, "model-a").EmbedText(context.Background(), "x")
	require.NoError(t, err)
	_, err = New(innerB, store, "model-b").EmbedText(context.Background(), "x")
	require.NoError(t, err)

	assert.Equal(t, 1, innerB.CallCount())
}

func TestEmbedder_ProviderErrorPropagates(t *testing.T) {
	inner := mock.NewMockEmbedder().WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("unavailable")
	})
	e := New(inner, newMemoryCache(), "m")

	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	assert.EqualError(t, err, "unavailable")
}

func TestEmbedder_CacheWriteFailureIsNotFatal(t *testing.T) {
	store := newMemoryCache()
	store.failPut = true
	e := New(mock.NewMockEmbedder(), store, "m")

	vectors, err := e.EmbedTexts(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
}
