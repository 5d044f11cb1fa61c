// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package insight wires the record store, batch embedder, vector index,
// persistence and query pipeline into a single Engine.
package insight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/insight/ai"
	"github.com/poiesic/insight/ai/cache"
	"github.com/poiesic/insight/ai/direct"
	"github.com/poiesic/insight/ai/openai"
	"github.com/poiesic/insight/batch"
	"github.com/poiesic/insight/config"
	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/index"
	"github.com/poiesic/insight/ingestion"
	"github.com/poiesic/insight/rag"
	"github.com/poiesic/insight/storage"
	"github.com/poiesic/insight/storage/badger"
)

// Engine owns one vector index and everything needed to fill and query it.
type Engine struct {
	cfg      config.Config
	provider ai.AIProvider
	embedder ai.Embedder
	batcher  *batch.Embedder
	index    *index.Index
	pipeline *rag.Pipeline
	backend  *badger.Backend
	repo     *badger.EntryRepository
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	progress io.Writer
	monitor  rag.Monitor
	logger   *slog.Logger
	inMemory bool
}

// WithProvider uses provider instead of building one from the ai config section.
// The Engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithProgress reports indexing progress to w.
func WithProgress(w io.Writer) Option {
	return func(o *engineOptions) {
		o.progress = w
	}
}

// WithMonitor installs query stage hooks.
func WithMonitor(m rag.Monitor) Option {
	return func(o *engineOptions) {
		o.monitor = m
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithInMemoryStorage persists to an in-memory badger store instead of
// storage.path. Useful for tests of the persistence path.
func WithInMemoryStorage() Option {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// New builds an Engine from cfg. When storage is configured, previously
// committed entries are restored into the index before New returns.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Engine, error) {
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	e := &Engine{
		cfg:    cfg,
		logger: options.logger.With("component", "engine"),
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = newProvider(cfg)
		if err != nil {
			return nil, err
		}
	}
	e.provider = provider
	e.embedder = provider.Embedder()

	if err := e.openStorage(cfg, options); err != nil {
		e.Close()
		return nil, err
	}

	metric, err := cfg.Metric()
	if err != nil {
		e.Close()
		return nil, err
	}
	e.index = index.New(index.WithMetric(metric))

	if err := e.restore(ctx); err != nil {
		e.Close()
		return nil, err
	}

	batchCfg, err := cfg.BatchConfig()
	if err != nil {
		e.Close()
		return nil, err
	}
	batchOpts := []batch.Option{
		batch.WithLogger(options.logger),
		batch.WithCommitter(batch.CommitFunc(e.commit)),
	}
	if options.progress != nil {
		batchOpts = append(batchOpts, batch.WithProgress(options.progress))
	}
	e.batcher, err = batch.NewEmbedder(e.embedder, batchCfg, batchOpts...)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.pipeline, err = rag.NewPipeline(e.embedder, e.index, provider.Generator(),
		rag.WithLogger(options.logger),
		rag.WithTimeout(cfg.QueryTimeout()),
		rag.WithMonitor(options.monitor),
	)
	if err != nil {
		e.Close()
		return nil, err
	}

	return e, nil
}

func newProvider(cfg config.Config) (ai.AIProvider, error) {
	aiCfg := cfg.AIConfig()
	switch cfg.AI.Provider {
	case "direct":
		return direct.NewProvider(aiCfg)
	case "openai", "":
		return openai.NewProvider(aiCfg)
	default:
		return nil, fmt.Errorf("%w: unknown ai provider %q", core.ErrConfig, cfg.AI.Provider)
	}
}

func (e *Engine) openStorage(cfg config.Config, options *engineOptions) error {
	if cfg.Storage.Path == "" && !options.inMemory {
		return nil
	}

	backendOpts := []badger.BackendOption{badger.WithBackendLogger(options.logger)}
	if options.inMemory {
		backendOpts = append(backendOpts, badger.InMemory())
	}
	backend, err := badger.OpenBackend(cfg.Storage.Path, backendOpts...)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	e.backend = backend

	repo, err := badger.NewEntryRepository(backend)
	if err != nil {
		return fmt.Errorf("open entry repository: %w", err)
	}
	e.repo = repo

	if cfg.Storage.CacheEmbeddings {
		e.embedder = cache.New(e.embedder, badger.NewVectorCache(backend), cfg.AI.EmbeddingModel)
	}
	return nil
}

func (e *Engine) restore(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}
	entries, err := e.repo.LoadEntries(ctx)
	if err != nil {
		return fmt.Errorf("restore index: %w", err)
	}
	if err := e.index.Insert(entries...); err != nil {
		return fmt.Errorf("restore index: %w", err)
	}
	if len(entries) > 0 {
		e.logger.Info("restored index", "entries", len(entries), "dimension", e.index.Dimension())
	}
	return nil
}

// commit persists a succeeded batch and then adds it to the index. It is
// called by the batch embedder in input order.
func (e *Engine) commit(ctx context.Context, b batch.Batch, entries []core.Entry) error {
	if err := e.checkDimensions(entries); err != nil {
		return err
	}

	if e.repo != nil {
		err := e.repo.SaveBatch(ctx, b.Key, entries)
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return err
		}
	}

	added, err := e.index.Commit(b.Key, entries...)
	if err != nil {
		return err
	}
	if !added {
		e.logger.Debug("batch already indexed", "batch", b.Index)
	}
	return nil
}

// checkDimensions rejects a batch the index would refuse, before anything
// is written to storage.
func (e *Engine) checkDimensions(entries []core.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	dim := e.index.Dimension()
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	for i, entry := range entries {
		if len(entry.Vector) == 0 || len(entry.Vector) != dim {
			return fmt.Errorf("%w: entry %d (%s) has %d dimensions, want %d",
				core.ErrDimensionMismatch, i, entry.Record.CustomerID, len(entry.Vector), dim)
		}
	}
	return nil
}

// Index embeds records and adds them to the index. Batches whose content
// was committed before, in this process or a previous one, are skipped
// without calling the provider.
func (e *Engine) Index(ctx context.Context, records []core.Record) (*batch.Result, error) {
	batches, err := batch.Partition(records, e.batcher.Config().ChunkSize)
	if err != nil {
		return nil, err
	}

	pending := make([]batch.Batch, 0, len(batches))
	for _, b := range batches {
		done, err := e.committed(ctx, b.Key)
		if err != nil {
			return nil, err
		}
		if !done {
			pending = append(pending, b)
		}
	}
	if skipped := len(batches) - len(pending); skipped > 0 {
		e.logger.Info("skipping batches already indexed", "batches", skipped)
	}

	return e.batcher.EmbedBatches(ctx, pending)
}

// IndexFile loads a CSV file and indexes its records.
func (e *Engine) IndexFile(ctx context.Context, path string) (*batch.Result, error) {
	records, err := ingestion.LoadFile(path)
	if err != nil {
		return nil, err
	}
	store, err := ingestion.NewStore(records)
	if err != nil {
		return nil, err
	}
	e.logger.Info("loaded records", "path", path, "records", store.Len())
	return e.Index(ctx, store.Records())
}

func (e *Engine) committed(ctx context.Context, key core.ID) (bool, error) {
	if e.index.Committed(key) {
		return true, nil
	}
	if e.repo == nil {
		return false, nil
	}
	return e.repo.HasBatch(ctx, key)
}

// Query answers an analysis question using the k most similar profiles.
func (e *Engine) Query(ctx context.Context, query string, k int) (string, error) {
	return e.pipeline.Run(ctx, query, k)
}

// Search returns the k most similar profiles without generating an answer.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]core.SearchResult, error) {
	return e.pipeline.Retrieve(ctx, query, k)
}

// Pipeline returns the query pipeline.
func (e *Engine) Pipeline() *rag.Pipeline {
	return e.pipeline
}

// VectorIndex returns the underlying index.
func (e *Engine) VectorIndex() *index.Index {
	return e.index
}

// Close releases the worker pool, provider and storage.
func (e *Engine) Close() error {
	if e.batcher != nil {
		e.batcher.Release()
	}

	var errs []error
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Error("error closing entry repository", "err", err)
			errs = append(errs, err)
		}
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
