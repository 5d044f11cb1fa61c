package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/insight/ai/mock"
	"github.com/poiesic/insight/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPrompt(t *testing.T) {
	hits := []core.SearchResult{
		{Record: core.Record{Summary: "first profile"}, Score: 0.9876},
		{Record: core.Record{Summary: "second profile"}, Score: 0.5},
	}

	got := FormatPrompt("Who churns?", hits)
	want := "Analysis Query: Who churns?\n\nRelevant Customer Profiles for Context:\n" +
		"* Similarity Score: 0.99\nfirst profile\n" +
		"* Similarity Score: 0.50\nsecond profile\n"
	assert.Equal(t, want, got)
	assert.Equal(t, got, FormatPrompt("Who churns?", hits), "formatting is pure")
}

func TestEmbedQuery(t *testing.T) {
	vector, err := EmbedQuery(context.Background(), mock.NewMockEmbedder(), "query")
	require.NoError(t, err)
	assert.Len(t, vector, mock.DefaultDimension)

	empty := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, nil
	})
	_, err = EmbedQuery(context.Background(), empty, "query")
	assert.ErrorIs(t, err, core.ErrRetrieval)

	failing := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("boom")
	})
	_, err = EmbedQuery(context.Background(), failing, "query")
	assert.ErrorIs(t, err, core.ErrRetrieval)
}

type stubSearcher struct {
	hits []core.SearchResult
	err  error
}

func (s stubSearcher) Query(vector []float32, k int) ([]core.SearchResult, error) {
	return s.hits, s.err
}

func TestRetrieve_PassesThroughSearcher(t *testing.T) {
	hits := []core.SearchResult{{Score: 1}}
	got, err := Retrieve(stubSearcher{hits: hits}, []float32{1}, 1)
	require.NoError(t, err)
	assert.Equal(t, hits, got)

	_, err = Retrieve(stubSearcher{err: core.ErrQuery}, []float32{1}, 1)
	assert.ErrorIs(t, err, core.ErrQuery)
}

func TestExampleQueries(t *testing.T) {
	assert.Len(t, ExampleQueries, 4)
}
