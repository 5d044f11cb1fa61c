// Package batch embeds records in fixed-size batches with one provider call
// per batch.
//
// Batches run concurrently on a worker pool, but each batch writes only its
// own result slot and results are assembled (and optionally committed) in
// input order. A batch that fails is handled by the configured Policy:
// FailFast aborts the run and reports the lowest failing batch, while
// SkipAndContinue drops every record of the failed batch and carries on.
// A batch is never split; its vectors are accepted or rejected together.
//
// The package also supports retries with exponential backoff, request rate
// limiting, per-attempt timeouts, vector normalization and progress
// reporting.
package batch
