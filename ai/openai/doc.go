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

// Package openai is the default ai.AIProvider, built on langchaingo.
//
// It talks to any server exposing the OpenAI embeddings and chat completion
// endpoints: OpenAI itself, Ollama, vLLM or LocalAI. Embeddings go
// through langchaingo's embeddings package, which splits very large inputs
// into several requests. Generation sends the configured preamble as a system message
// followed by the prompt.
//
//	provider, err := openai.NewProvider(ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),
//	    ai.WithGeneratorModel("qwen2.5:3b"),
//	))
package openai
