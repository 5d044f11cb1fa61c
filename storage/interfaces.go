package storage

import (
	"context"

	"github.com/poiesic/insight/core"
)

// EntryRepository persists committed index batches so a process can restore
// its vector index without re-embedding.
// Implementations must be thread-safe and support concurrent access.
type EntryRepository interface {
	// SaveBatch atomically stores all entries of one committed batch under key.
	// Returns ErrDuplicateKey if key was saved before; nothing is written in that case.
	SaveBatch(ctx context.Context, key core.ID, entries []core.Entry) error

	// HasBatch reports whether a batch with key has been saved.
	HasBatch(ctx context.Context, key core.ID) (bool, error)

	// LoadEntries returns every saved entry in commit order, and within a
	// batch in record order.
	LoadEntries(ctx context.Context) ([]core.Entry, error)

	// Count returns the number of saved entries.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the repository. It does not close the
	// underlying backend.
	Close() error
}

// VectorCache memoizes embeddings by content hash of the embedded text.
type VectorCache interface {
	// GetVector returns the cached vector for key. The boolean is false on a miss.
	GetVector(ctx context.Context, key core.ID) ([]float32, bool, error)

	// PutVector stores vector under key, replacing any previous value.
	PutVector(ctx context.Context, key core.ID, vector []float32) error
}
