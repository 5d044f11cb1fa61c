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

// Package storage provides the persistence abstraction layer for insight.
//
// Two concerns are persisted:
//
//   - EntryRepository: committed index batches, so a restarted process can
//     rebuild its vector index in the original commit order without calling
//     the embedding provider again. Batches are keyed by a content hash of
//     their records, which makes re-running an interrupted indexing job safe.
//   - VectorCache: embeddings memoized by content hash of the embedded text.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return interface types where the
// caller only needs the abstraction:
//
//	repo, err := badger.NewEntryRepository(backend) // storage.EntryRepository
//
// # Serialization
//
// Values are encoded with mus-go primitives (varint integers, raw floats and
// length-prefixed strings). See MarshalEntry and MarshalVector.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
