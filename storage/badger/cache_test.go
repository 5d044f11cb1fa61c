package badger

import (
	"context"
	"testing"

	"github.com/poiesic/insight/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorCache_GetPut(t *testing.T) {
	repo, cache, backend, err := NewMemoryStore()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()
	ctx := context.Background()
	key := core.IDFromContent("Customer Profile: 30 year old")

	_, found, err := cache.GetVector(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.PutVector(ctx, key, []float32{0.5, 0.25}))

	vector, found, err := cache.GetVector(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []float32{0.5, 0.25}, vector)

	require.NoError(t, cache.PutVector(ctx, key, []float32{1}))
	vector, _, err = cache.GetVector(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vector)
}

func TestVectorCache_DoesNotLeakIntoEntries(t *testing.T) {
	repo, cache, backend, err := NewMemoryStore()
	require.NoError(t, err)
	defer func() {
		repo.Close()
		backend.Close()
	}()
	ctx := context.Background()

	require.NoError(t, cache.PutVector(ctx, core.ID(7), []float32{1, 2}))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
