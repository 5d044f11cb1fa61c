package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/insight/ai"
	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/metrics"
	"golang.org/x/time/rate"
)

// Config holds the batch embedding settings.
type Config struct {
	// ChunkSize is the number of records per provider call.
	ChunkSize int

	// Workers is the number of batches embedded concurrently.
	Workers int

	// Policy selects fail-fast or skip-and-continue handling of failed batches.
	Policy Policy

	// MaxAttempts is the number of provider calls allowed per batch.
	MaxAttempts int

	// RetryDelay is the base delay for exponential backoff between attempts.
	RetryDelay time.Duration

	// BatchTimeout bounds each provider call. Zero means no timeout.
	BatchTimeout time.Duration

	// RequestsPerSecond limits provider calls across all workers. Zero means unlimited.
	RequestsPerSecond float64

	// Normalize scales every vector to unit length.
	Normalize bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	return Config{
		ChunkSize:         100,
		Workers:           workers,
		Policy:            SkipAndContinue,
		MaxAttempts:       1,
		RetryDelay:        time.Second,
		RequestsPerSecond: 5,
	}
}

// Validate reports the first invalid setting as a core.ErrConfig error.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrConfig, c.ChunkSize)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", core.ErrConfig, c.Workers)
	case c.Policy != FailFast && c.Policy != SkipAndContinue:
		return fmt.Errorf("%w: batch failure policy must be set", core.ErrConfig)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("%w: max attempts must be positive, got %d", core.ErrConfig, c.MaxAttempts)
	case c.RetryDelay < 0, c.BatchTimeout < 0, c.RequestsPerSecond < 0:
		return fmt.Errorf("%w: retry delay, batch timeout and request rate must not be negative", core.ErrConfig)
	}
	return nil
}

// Committer receives each succeeded batch, in input order, before the run
// moves on to the next one. A commit error fails the batch.
type Committer interface {
	Commit(ctx context.Context, b Batch, entries []core.Entry) error
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(ctx context.Context, b Batch, entries []core.Entry) error

// Commit calls f.
func (f CommitFunc) Commit(ctx context.Context, b Batch, entries []core.Entry) error {
	return f(ctx, b, entries)
}

// Embedder runs batches against an ai.Embedder.
type Embedder struct {
	embedder  ai.Embedder
	cfg       Config
	pool      *ants.Pool
	limiter   *rate.Limiter
	committer Committer
	progress  io.Writer
	logger    *slog.Logger
}

// Option configures an Embedder.
type Option func(*Embedder) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "batch-embedder")
		return nil
	}
}

// WithCommitter sets the sink that succeeded batches are committed to.
func WithCommitter(c Committer) Option {
	return func(e *Embedder) error {
		e.committer = c
		return nil
	}
}

// WithProgress reports progress to w during each run.
func WithProgress(w io.Writer) Option {
	return func(e *Embedder) error {
		e.progress = w
		return nil
	}
}

// NewEmbedder validates cfg and creates an Embedder with its worker pool.
// Call Release when done.
func NewEmbedder(embedder ai.Embedder, cfg Config, opts ...Option) (*Embedder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", core.ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Embedder{
		embedder: embedder,
		cfg:      cfg,
		logger:   slog.Default().With("component", "batch-embedder"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(cfg.Workers, ants.WithPanicHandler(func(p any) {
		e.logger.Error("batch worker panicked", "panic", p)
	}))
	if err != nil {
		return nil, err
	}
	e.pool = pool

	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return e, nil
}

// Release stops the worker pool.
func (e *Embedder) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Config returns the configuration the Embedder was created with.
func (e *Embedder) Config() Config {
	return e.cfg
}

// EmbedAll partitions records by the configured chunk size and embeds every batch.
func (e *Embedder) EmbedAll(ctx context.Context, records []core.Record) (*Result, error) {
	batches, err := Partition(records, e.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	return e.EmbedBatches(ctx, batches)
}

// EmbedBatches embeds already partitioned batches.
//
// Under FailFast the returned error is the *core.BatchError of the lowest
// failing batch, and the Result holds only batches before it. Under
// SkipAndContinue failed batches are listed in Result.Failed and the error
// is nil unless ctx was cancelled.
func (e *Embedder) EmbedBatches(ctx context.Context, batches []Batch) (*Result, error) {
	total := 0
	for _, b := range batches {
		total += len(b.Records)
	}
	result := &Result{
		Batches: make([]Outcome, len(batches)),
		Records: total,
	}
	if len(batches) == 0 {
		return result, nil
	}

	// Each batch has its own context so a fail-fast abort cancels only the
	// batches after the failing one.
	ctxs := make([]context.Context, len(batches))
	cancels := make([]context.CancelFunc, len(batches))
	for i := range batches {
		ctxs[i], cancels[i] = context.WithCancel(ctx)
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()
	abortAfter := func(i int) {
		for _, cancel := range cancels[i+1:] {
			cancel()
		}
	}

	var tracker *ProgressTracker
	if e.progress != nil {
		tracker = NewProgressTracker(e.progress, total, e.cfg.ChunkSize)
		tracker.Start()
	}

	entries := make([][]core.Entry, len(batches))
	seq := &sequencer{ready: make([]bool, len(batches))}
	seq.flush = func(i int) {
		e.settle(ctx, func() { abortAfter(i) }, seq, batches[i], &result.Batches[i], &entries[i])
	}

	for i, b := range batches {
		// Overwritten by runBatch unless the worker panics
		result.Batches[i] = Outcome{Index: b.Index, Size: len(b.Records), Status: StatusFailed, Err: errWorkerPanic}
	}

	var wg sync.WaitGroup
	for i := range batches {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer seq.done(i)

			entries[i], result.Batches[i] = e.runBatch(ctxs[i], batches[i])
			if result.Batches[i].Status == StatusFailed && e.cfg.Policy == FailFast {
				abortAfter(i)
			}
			if tracker != nil {
				tracker.Increment(len(batches[i].Records), result.Batches[i].Status != StatusSucceeded)
			}
		}
		if err := e.pool.Submit(task); err != nil {
			wg.Done()
			result.Batches[i] = Outcome{Index: batches[i].Index, Size: len(batches[i].Records), Status: StatusCancelled, Err: err}
			seq.done(i)
		}
	}
	wg.Wait()

	if tracker != nil {
		tracker.Finish()
	}

	for i, o := range result.Batches {
		metrics.BatchesTotal.WithLabelValues(o.Status.String()).Inc()
		switch o.Status {
		case StatusSucceeded:
			result.Entries = append(result.Entries, entries[i]...)
		case StatusFailed:
			result.Failed = append(result.Failed, &core.BatchError{
				Index:     batches[i].Index,
				RecordIDs: batches[i].IDs(),
				Err:       o.Err,
			})
		}
	}
	metrics.EmbeddedRecordsTotal.Add(float64(len(result.Entries)))

	e.logger.Info("embedding run finished", "summary", result.Summary(), "policy", e.cfg.Policy.String())

	if e.cfg.Policy == FailFast && len(result.Failed) > 0 {
		return result, result.Failed[0]
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	return result, nil
}

// runBatch embeds one batch. It only touches its own batch and returns its
// entries and outcome.
func (e *Embedder) runBatch(ctx context.Context, b Batch) ([]core.Entry, Outcome) {
	out := Outcome{Index: b.Index, Size: len(b.Records)}
	if err := ctx.Err(); err != nil {
		out.Status = StatusCancelled
		out.Err = err
		return nil, out
	}

	start := time.Now()
	texts := b.Texts()
	var vectors [][]float32

	err := RetryWithBackoff(ctx, func() error {
		out.Attempts++
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if e.cfg.BatchTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, e.cfg.BatchTimeout)
		}
		defer cancel()

		v, err := e.embedder.EmbedTexts(callCtx, texts)
		if err != nil {
			return err
		}
		if len(v) != len(texts) {
			return fmt.Errorf("%w: provider returned %d vectors for %d records", ErrVectorCount, len(v), len(texts))
		}
		for i := range v {
			if len(v[i]) == 0 {
				return fmt.Errorf("%w: record %s", ErrEmptyVector, b.Records[i].CustomerID)
			}
			if len(v[i]) != len(v[0]) {
				return fmt.Errorf("%w: record %s has %d dimensions, record %s has %d",
					core.ErrDimensionMismatch, b.Records[i].CustomerID, len(v[i]), b.Records[0].CustomerID, len(v[0]))
			}
		}
		vectors = v
		return nil
	}, e.cfg.MaxAttempts, e.cfg.RetryDelay)

	out.Duration = time.Since(start)
	metrics.BatchDuration.Observe(out.Duration.Seconds())

	if err != nil {
		out.Err = err
		out.Status = StatusFailed
		if ctx.Err() != nil {
			out.Status = StatusCancelled
		}
		return nil, out
	}

	entries := make([]core.Entry, len(b.Records))
	for i, r := range b.Records {
		vector := vectors[i]
		if e.cfg.Normalize {
			vector = NormalizeVector(vector)
		}
		entries[i] = core.Entry{Record: r, Vector: vector}
	}

	e.logger.Debug("embedded batch", "batch", b.Index, "records", len(b.Records), "attempts", out.Attempts, "duration", out.Duration)
	return entries, out
}

// settle runs in input order once batch b and every batch before it have
// finished. It commits b, or discards it after a fail-fast abort.
func (e *Embedder) settle(ctx context.Context, abort context.CancelFunc, seq *sequencer, b Batch, out *Outcome, entries *[]core.Entry) {
	if seq.halted {
		if out.Status == StatusSucceeded {
			out.Status = StatusCancelled
			out.Err = errAborted
		}
		*entries = nil
		return
	}

	if out.Status == StatusSucceeded && e.committer != nil {
		if err := e.committer.Commit(ctx, b, *entries); err != nil {
			out.Err = fmt.Errorf("commit: %w", err)
			out.Status = StatusFailed
			if ctx.Err() != nil {
				out.Status = StatusCancelled
			}
			*entries = nil
		}
	}

	switch out.Status {
	case StatusFailed:
		if e.cfg.Policy == FailFast {
			e.logger.Error("batch failed, aborting", "batch", b.Index, "records", b.IDs(), "err", out.Err)
			seq.halted = true
			abort()
			return
		}
		e.logger.Warn("skipping failed batch", "batch", b.Index, "records", b.IDs(), "err", out.Err)
	case StatusCancelled:
		if e.cfg.Policy == FailFast {
			seq.halted = true
		}
	}
}

// sequencer calls flush for each index in ascending order, as soon as that
// index and all lower ones are done.
type sequencer struct {
	mu     sync.Mutex
	next   int
	ready  []bool
	halted bool
	flush  func(i int)
}

func (s *sequencer) done(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready[i] = true
	for s.next < len(s.ready) && s.ready[s.next] {
		s.flush(s.next)
		s.next++
	}
}
