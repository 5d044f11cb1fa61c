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

// Package rag answers analysis questions about indexed customer profiles.
//
// A query runs through four stages, each usable on its own:
//
//  1. EmbedQuery turns the question into a vector
//  2. Retrieve asks a Searcher for the top-k most similar profiles
//  3. FormatPrompt combines the question and the retrieved profiles
//  4. the ai.Generator answers the prompt
//
// Pipeline.Run chains them and Pipeline.Retrieve stops after stage 2.
package rag
