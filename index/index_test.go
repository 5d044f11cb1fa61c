package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/insight/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, vector ...float32) core.Entry {
	return core.Entry{Record: core.Record{CustomerID: id}, Vector: vector}
}

func resultIDs(results []core.SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Record.CustomerID
	}
	return ids
}

func TestQuery_RanksBySimilarity(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(
		entry("a", 1, 0),
		entry("b", 0, 1),
		entry("c", 1, 1),
	))

	results, err := idx.Query([]float32{1, 0}, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "b"}, resultIDs(results))
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.7071, results[1].Score, 1e-4)
	assert.InDelta(t, 0.0, results[2].Score, 1e-6)
}

func TestQuery_IdenticalVectorScoresOne(t *testing.T) {
	idx := New()
	v := []float32{0.3, -0.2, 0.9, 0.1}
	require.NoError(t, idx.Insert(entry("x", v...), entry("y", 0.1, 0.1, 0.1, 0.1)))

	results, err := idx.Query(v, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].Record.CustomerID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestQuery_TiesKeepInsertionOrder(t *testing.T) {
	idx := New()
	for i := range 10 {
		require.NoError(t, idx.Insert(entry(fmt.Sprintf("r%d", i), 1, 1)))
	}

	results, err := idx.Query([]float32{2, 2}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "r1", "r2", "r3"}, resultIDs(results))
}

func TestQuery_ResultLength(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(entry("a", 1, 0), entry("b", 0, 1)))

	tests := []struct {
		k    int
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{50, 2},
	}
	for _, tt := range tests {
		results, err := idx.Query([]float32{1, 0}, tt.k)
		require.NoError(t, err)
		assert.Len(t, results, tt.want, "k=%d", tt.k)
	}
}

func TestQuery_ScoresNonIncreasing(t *testing.T) {
	idx := New()
	for i := range 50 {
		x := float32(i%7) - 3
		y := float32(i%5) - 2
		require.NoError(t, idx.Insert(entry(fmt.Sprintf("r%d", i), x, y, 1)))
	}

	results, err := idx.Query([]float32{1, -1, 0.5}, 50)
	require.NoError(t, err)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestQuery_Errors(t *testing.T) {
	idx := New()

	results, err := idx.Query([]float32{1, 0}, 3)
	require.NoError(t, err, "empty index is not an error")
	assert.Empty(t, results)

	_, err = idx.Query([]float32{1, 0}, -1)
	assert.ErrorIs(t, err, core.ErrQuery)

	require.NoError(t, idx.Insert(entry("a", 1, 0)))
	_, err = idx.Query([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, core.ErrQuery)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestInsert_DimensionMismatchIsAtomic(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(entry("a", 1, 0)))

	err := idx.Insert(entry("b", 0, 1), entry("c", 1, 1, 1))
	require.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.Equal(t, 1, idx.Len())

	err = idx.Insert(entry("d"))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestInsert_KeepsDuplicates(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(entry("a", 1, 0), entry("a", 1, 0)))

	results, err := idx.Query([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a"}, resultIDs(results))
	assert.Equal(t, 2, idx.Dimension())
}

func TestInsert_CopiesVectors(t *testing.T) {
	idx := New()
	v := []float32{1, 0}
	require.NoError(t, idx.Insert(entry("a", v...)))
	v[0] = -1

	results, err := idx.Query([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	entries := idx.Entries()
	entries[0].Vector[0] = 42
	assert.Equal(t, []float32{1, 0}, idx.Entries()[0].Vector)
}

func TestCommit_Idempotent(t *testing.T) {
	idx := New()
	key := core.IDFromContent("batch-0")

	ok, err := idx.Commit(key, entry("a", 1, 0), entry("b", 0, 1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, idx.Committed(key))

	ok, err = idx.Commit(key, entry("a", 1, 0), entry("b", 0, 1))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, idx.Len())
}

func TestCommit_FailedCommitIsNotRecorded(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(entry("a", 1, 0)))

	key := core.IDFromContent("bad")
	_, err := idx.Commit(key, entry("b", 1, 0, 0))
	require.Error(t, err)
	assert.False(t, idx.Committed(key))
}

func TestIndex_ConcurrentAccess(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert(entry("seed", 1, 0)))

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 50 {
				_, err := idx.Commit(core.IDFromContent(fmt.Sprintf("%d-%d", w, i)), entry(fmt.Sprintf("%d-%d", w, i), 0, 1))
				assert.NoError(t, err)
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				results, err := idx.Query([]float32{1, 0}, 1)
				assert.NoError(t, err)
				assert.Equal(t, "seed", results[0].Record.CustomerID)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 401, idx.Len())
}

func TestWithMetric(t *testing.T) {
	idx := New(WithMetric(Euclidean))
	require.NoError(t, idx.Insert(entry("near", 1, 1), entry("far", 10, 10)))

	results, err := idx.Query([]float32{0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "far"}, resultIDs(results))
	assert.Equal(t, "euclidean", idx.Metric().Name())

	assert.Equal(t, Cosine, New(WithMetric(nil)).Metric())
}
