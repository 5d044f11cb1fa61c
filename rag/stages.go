package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/insight/ai"
	"github.com/poiesic/insight/core"
)

// Searcher returns the k stored entries most similar to a vector.
// *index.Index satisfies it.
type Searcher interface {
	Query(vector []float32, k int) ([]core.SearchResult, error)
}

// PromptFormatter renders the generation prompt for a query and its hits.
type PromptFormatter func(query string, hits []core.SearchResult) string

// ExampleQueries are the stock analysis questions run by `insight query --examples`.
var ExampleQueries = []string{
	"What patterns do you see in high-income customers with low satisfaction scores?",
	"Analyze the relationship between purchase frequency and loyalty levels.",
	"What characteristics define our most satisfied customers?",
	"Identify potential churn risks based on customer patterns.",
}

// EmbedQuery embeds the query text. Any failure is a core.ErrRetrieval error.
func EmbedQuery(ctx context.Context, embedder ai.Embedder, query string) ([]float32, error) {
	vector, err := embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", core.ErrRetrieval, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: embed query: provider returned an empty vector", core.ErrRetrieval)
	}
	return vector, nil
}

// Retrieve returns the top-k hits for vector. Searcher errors such as an
// invalid k are passed through unchanged.
func Retrieve(searcher Searcher, vector []float32, k int) ([]core.SearchResult, error) {
	return searcher.Query(vector, k)
}

// FormatPrompt renders the query followed by each hit's score and summary.
// With no hits the context section is empty.
func FormatPrompt(query string, hits []core.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("Analysis Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nRelevant Customer Profiles for Context:\n")
	for _, hit := range hits {
		fmt.Fprintf(&sb, "* Similarity Score: %.2f\n%s\n", hit.Score, hit.Record.Summary)
	}
	return sb.String()
}
