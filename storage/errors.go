package storage

import "errors"

var (
	// ErrDuplicateKey is returned by SaveBatch for a batch key that was
	// already saved.
	ErrDuplicateKey = errors.New("batch already saved")

	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed wraps mus-go encode and decode failures.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData means a stored value ended before all of its fields
	// were read.
	ErrTruncatedData = errors.New("truncated data")
)
