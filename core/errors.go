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


package core

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline stage errors. Every error returned by the indexing and query
// packages wraps exactly one of these so callers can tell stages apart.
var (
	// ErrIngestion indicates a malformed record source.
	ErrIngestion = errors.New("ingestion error")

	// ErrConfig indicates an invalid batch size, retrieval size or other setting.
	ErrConfig = errors.New("config error")

	// ErrEmbedding indicates a provider failure while embedding a batch.
	ErrEmbedding = errors.New("embedding error")

	// ErrQuery indicates invalid retrieval parameters.
	ErrQuery = errors.New("query error")

	// ErrRetrieval indicates the query text could not be embedded.
	ErrRetrieval = errors.New("retrieval error")

	// ErrGeneration indicates the downstream text-generation step failed.
	ErrGeneration = errors.New("generation error")
)

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyCustomerID indicates the CustomerID field is empty.
	ErrEmptyCustomerID = errors.New("customer id cannot be empty")

	// ErrOutOfRange indicates a numeric attribute outside its allowed range.
	ErrOutOfRange = errors.New("value out of range")

	// ErrDimensionMismatch indicates a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// BatchError reports a failed embedding batch with enough context to
// re-process it.
type BatchError struct {
	// Index is the 0-based position of the batch in the partition.
	Index int

	// RecordIDs lists the CustomerIDs of every record in the batch.
	RecordIDs []string

	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%v: batch %d [%s]: %v",
		ErrEmbedding, e.Index, strings.Join(e.RecordIDs, ","), e.Err)
}

// Unwrap exposes both ErrEmbedding and the provider cause to errors.Is/As.
func (e *BatchError) Unwrap() []error {
	return []error{ErrEmbedding, e.Err}
}
