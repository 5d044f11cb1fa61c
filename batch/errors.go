package batch

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrVectorCount is returned when a provider response does not contain
	// exactly one vector per record.
	ErrVectorCount = errors.New("vector count mismatch")

	// ErrEmptyVector is returned when a provider response contains an empty vector.
	ErrEmptyVector = errors.New("empty vector")

	// errAborted marks batches discarded after a fail-fast abort.
	errAborted = errors.New("aborted after earlier batch failure")

	errWorkerPanic = errors.New("batch worker panicked")
)
