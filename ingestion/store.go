package ingestion

import (
	"fmt"

	"github.com/poiesic/insight/core"
)

// Store is an immutable, in-memory collection of loaded records.
// It is safe for concurrent reads.
type Store struct {
	records []core.Record
	byID    map[string]int
}

// NewStore copies records into a Store, deriving any missing summaries.
// Duplicate customer identifiers are rejected.
func NewStore(records []core.Record) (*Store, error) {
	s := &Store{
		records: make([]core.Record, len(records)),
		byID:    make(map[string]int, len(records)),
	}
	for i, r := range records {
		if _, dup := s.byID[r.CustomerID]; dup {
			// +2: header line and 1-based numbering
			return nil, ingestionError(i+2, 0, fmt.Errorf("%w: %s", ErrDuplicateRecord, r.CustomerID))
		}
		if r.Summary == "" {
			r = core.DeriveSummary(r)
		}
		s.records[i] = r
		s.byID[r.CustomerID] = i
	}
	return s, nil
}

// Records returns a copy of the records in load order.
func (s *Store) Records() []core.Record {
	out := make([]core.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given customer identifier.
func (s *Store) Get(customerID string) (core.Record, bool) {
	i, ok := s.byID[customerID]
	if !ok {
		return core.Record{}, false
	}
	return s.records[i], true
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Summaries returns the profile summaries in load order.
func (s *Store) Summaries() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Summary
	}
	return out
}
