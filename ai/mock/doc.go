// Package mock provides in-process doubles for the ai interfaces.
//
// MockEmbedder returns DeterministicVector for each text unless a custom
// function is injected, and records every EmbedTexts batch so tests can
// assert how records were chunked:
//
//	emb := mock.NewMockEmbedder().
//	    WithEmbedTextsFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
//	        return nil, errors.New("provider down")
//	    })
//	_ = emb.Batches() // one []string per call
//
// MockGenerator returns a fixed response and keeps the last prompt it saw.
// MockProvider bundles both and reports whether Close was called.
package mock
