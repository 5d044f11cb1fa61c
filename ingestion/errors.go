package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/insight/core"
)

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrNotFinite is returned for a decimal cell holding NaN or an infinity.
	ErrNotFinite = errors.New("not a finite number")

	// ErrDuplicateRecord is returned when two records share a CustomerID.
	ErrDuplicateRecord = errors.New("duplicate customer id")
)

// ingestionError annotates err with its source position.
func ingestionError(line, column int, err error) error {
	if column > 0 {
		return fmt.Errorf("%w: line %d, column %d: %w", core.ErrIngestion, line, column, err)
	}
	return fmt.Errorf("%w: line %d: %w", core.ErrIngestion, line, err)
}
