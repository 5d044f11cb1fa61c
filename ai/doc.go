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


// Package ai provides abstractions for the AI services used by insight.
//
// The indexing and query packages depend only on the interfaces declared
// here, never on a concrete provider:
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: Produces a completion for a formatted prompt
//   - AIProvider: Aggregates both for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: langchaingo client for OpenAI-compatible APIs (default)
//   - ai/direct: go-openai client calling the REST API directly
//   - ai/cache: Embedder decorator that memoizes vectors in a storage.VectorCache
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, direct.NewProvider, etc.) return
// INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder, mock.NewMockGenerator) return CONCRETE types so tests
// can inject behavior and read call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("https://api.openai.com/v1"), ai.WithAPIKey(key))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, summaries)
//	answer, err := provider.Generator().Generate(ctx, prompt)
package ai
