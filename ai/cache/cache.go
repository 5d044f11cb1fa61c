// Package cache provides an ai.Embedder decorator that memoizes vectors in a
// storage.VectorCache, keyed by content hash of the embedded text.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/insight/ai"
	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/metrics"
	"github.com/poiesic/insight/storage"
)

// Embedder wraps another ai.Embedder. Only cache misses reach the wrapped
// embedder, and EmbedTexts sends all misses of a call as one batch.
type Embedder struct {
	next   ai.Embedder
	store  storage.VectorCache
	model  string
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// New returns a caching embedder. model is mixed into cache keys so vectors
// from different embedding models never collide.
func New(next ai.Embedder, store storage.VectorCache, model string) *Embedder {
	return &Embedder{
		next:   next,
		store:  store,
		model:  model,
		logger: slog.Default().With("component", "embedding-cache"),
	}
}

func (e *Embedder) key(text string) core.ID {
	return core.IDFromContent(e.model + "\x00" + text)
}

// EmbedText returns a cached vector or embeds and stores it.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts resolves cached vectors and embeds the remainder in one call.
// Cache read or write failures are logged and treated as misses.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var (
		missing    []string
		missingIdx []int
	)

	for i, text := range texts {
		vector, found, err := e.store.GetVector(ctx, e.key(text))
		if err != nil {
			e.logger.Warn("cache read failed", "err", err)
		}
		if found {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			vectors[i] = vector
			continue
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	embedded, err := e.next.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(missing))
	}

	for j, vector := range embedded {
		i := missingIdx[j]
		vectors[i] = vector
		if err := e.store.PutVector(ctx, e.key(texts[i]), vector); err != nil {
			e.logger.Warn("cache write failed", "err", err)
		}
	}

	e.logger.Debug("embedded texts", "total", len(texts), "misses", len(missing))
	return vectors, nil
}
