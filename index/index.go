package index

import (
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/metrics"
)

// Index is an exact in-memory vector index over embedded records.
//
// Entries keep their insertion order. Query ranks by score and breaks ties
// by that order, so results are deterministic for a given insertion history.
type Index struct {
	mu        sync.RWMutex
	metric    Metric
	dimension int
	entries   []core.Entry
	committed map[core.ID]struct{}
}

// Option configures an Index.
type Option func(*Index)

// WithMetric sets the similarity metric. Default is Cosine.
func WithMetric(m Metric) Option {
	return func(idx *Index) {
		if m != nil {
			idx.metric = m
		}
	}
}

// New creates an empty index. The dimension is fixed by the first entry inserted.
func New(opts ...Option) *Index {
	idx := &Index{
		metric:    Cosine,
		committed: make(map[core.ID]struct{}),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Insert appends entries. Duplicate records are kept as distinct entries.
// Either all entries are inserted or, on a dimension mismatch, none are.
func (idx *Index) Insert(entries ...core.Entry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.insertLocked(entries)
}

// Commit inserts the entries of one batch atomically. A key that was already
// committed is a no-op and reports false, so a retried or restored batch is
// never indexed twice.
func (idx *Index) Commit(key core.ID, entries ...core.Entry) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.committed[key]; ok {
		return false, nil
	}
	if err := idx.insertLocked(entries); err != nil {
		return false, err
	}
	idx.committed[key] = struct{}{}
	return true, nil
}

// Committed reports whether a batch with key has been committed.
func (idx *Index) Committed(key core.ID) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.committed[key]
	return ok
}

func (idx *Index) insertLocked(entries []core.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	dim := idx.dimension
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	for i, e := range entries {
		if len(e.Vector) == 0 || len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %d (%s) has %d dimensions, index has %d",
				core.ErrDimensionMismatch, i, e.Record.CustomerID, len(e.Vector), dim)
		}
	}

	idx.dimension = dim
	for _, e := range entries {
		idx.entries = append(idx.entries, core.Entry{Record: e.Record, Vector: slices.Clone(e.Vector)})
	}
	metrics.IndexEntries.Set(float64(len(idx.entries)))
	return nil
}

// Query returns the k entries most similar to vector, best first.
// The result has min(k, Len()) elements. k == 0 and an empty index both
// yield an empty result. A negative k or a vector whose length differs from
// the index dimension is a core.ErrQuery error.
func (idx *Index) Query(vector []float32, k int) ([]core.SearchResult, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: k must not be negative, got %d", core.ErrQuery, k)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k == 0 || len(idx.entries) == 0 {
		return []core.SearchResult{}, nil
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: %w: query has %d dimensions, index has %d",
			core.ErrQuery, core.ErrDimensionMismatch, len(vector), idx.dimension)
	}

	type scored struct {
		pos   int
		score float32
	}
	scores := make([]scored, len(idx.entries))
	for i, e := range idx.entries {
		scores[i] = scored{pos: i, score: idx.metric.Similarity(vector, e.Vector)}
	}

	// Stable so equal scores keep insertion order
	slices.SortStableFunc(scores, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})

	k = min(k, len(scores))
	results := make([]core.SearchResult, k)
	for i := range k {
		results[i] = core.SearchResult{
			Record: idx.entries[scores[i].pos].Record,
			Score:  scores[i].score,
		}
	}
	return results, nil
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Dimension returns the vector length fixed by the first insert, or 0 if empty.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

// Entries returns a copy of every entry in insertion order.
func (idx *Index) Entries() []core.Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]core.Entry, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = core.Entry{Record: e.Record, Vector: slices.Clone(e.Vector)}
	}
	return out
}

// Metric returns the similarity metric in use.
func (idx *Index) Metric() Metric {
	return idx.metric
}
