package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/insight/ai"
	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/metrics"
)

// Pipeline runs retrieval-augmented analysis queries.
type Pipeline struct {
	embedder  ai.Embedder
	searcher  Searcher
	generator ai.Generator
	format    PromptFormatter
	monitor   Monitor
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "rag")
		return nil
	}
}

// WithTimeout bounds every Run and Retrieve call. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			return fmt.Errorf("%w: query timeout must not be negative", core.ErrConfig)
		}
		p.timeout = d
		return nil
	}
}

// WithMonitor installs stage hooks.
func WithMonitor(m Monitor) Option {
	return func(p *Pipeline) error {
		if m == nil {
			m = &noopMonitor{}
		}
		p.monitor = m
		return nil
	}
}

// WithPromptFormatter replaces FormatPrompt.
func WithPromptFormatter(f PromptFormatter) Option {
	return func(p *Pipeline) error {
		if f == nil {
			f = FormatPrompt
		}
		p.format = f
		return nil
	}
}

// NewPipeline creates a pipeline. All three services are required.
func NewPipeline(embedder ai.Embedder, searcher Searcher, generator ai.Generator, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	p := &Pipeline{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		format:    FormatPrompt,
		monitor:   &noopMonitor{},
		logger:    slog.Default().With("component", "rag"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Run answers query using the k most similar profiles as context and
// returns the generator's response unmodified.
func (p *Pipeline) Run(ctx context.Context, query string, k int) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	id := uuid.NewString()
	logger := p.logger.With("query_id", id)
	start := time.Now()
	p.monitor.Start(id, query)

	response, err := p.run(ctx, logger, query, k)
	p.monitor.Finish(response, err)

	metrics.QueryDuration.WithLabelValues("run").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(stageOf(err), "error").Inc()
		logger.Error("query failed", "err", err)
		return "", err
	}
	metrics.QueriesTotal.WithLabelValues("run", "ok").Inc()
	logger.Info("query answered", "duration", time.Since(start), "response_chars", len(response))
	return response, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, query string, k int) (string, error) {
	hits, err := p.retrieve(ctx, logger, query, k)
	if err != nil {
		return "", err
	}

	prompt := p.format(query, hits)
	p.monitor.AfterPrompt(prompt)

	genStart := time.Now()
	response, err := p.generator.Generate(ctx, prompt)
	metrics.QueryDuration.WithLabelValues("generate").Observe(time.Since(genStart).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrGeneration, err)
	}
	return response, nil
}

// Retrieve runs the embedding and retrieval stages only.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int) ([]core.SearchResult, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	logger := p.logger.With("query_id", uuid.NewString())
	hits, err := p.retrieve(ctx, logger, query, k)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(stageOf(err), "error").Inc()
		return nil, err
	}
	metrics.QueriesTotal.WithLabelValues("retrieve", "ok").Inc()
	return hits, nil
}

func (p *Pipeline) retrieve(ctx context.Context, logger *slog.Logger, query string, k int) ([]core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrQuery, ErrEmptyQuery)
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: k must not be negative, got %d", core.ErrQuery, k)
	}

	embedStart := time.Now()
	vector, err := EmbedQuery(ctx, p.embedder, query)
	metrics.QueryDuration.WithLabelValues("embed").Observe(time.Since(embedStart).Seconds())
	if err != nil {
		return nil, err
	}
	p.monitor.AfterQueryEmbedding(len(vector))

	hits, err := Retrieve(p.searcher, vector, k)
	if err != nil {
		return nil, err
	}
	p.monitor.AfterRetrieval(hits)

	if len(hits) > 0 {
		metrics.RetrievalTopScore.Observe(float64(hits[0].Score))
		logger.Debug("retrieved profiles", "hits", len(hits), "top_score", hits[0].Score, "k", k)
	} else {
		logger.Debug("retrieved no profiles", "k", k)
	}
	return hits, nil
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return context.WithCancel(ctx)
}

func stageOf(err error) string {
	switch {
	case errors.Is(err, core.ErrQuery):
		return "query"
	case errors.Is(err, core.ErrRetrieval):
		return "embed"
	case errors.Is(err, core.ErrGeneration):
		return "generate"
	default:
		return "unknown"
	}
}
