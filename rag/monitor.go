package rag

import "github.com/poiesic/insight/core"

// Monitor provides hooks to observe a query as it moves through the pipeline.
// Implement this interface to trace intermediate results, e.g. in a CLI.
type Monitor interface {
	Start(id, query string)
	AfterQueryEmbedding(dimension int)
	AfterRetrieval(hits []core.SearchResult)
	AfterPrompt(prompt string)
	Finish(response string, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                   {}
func (n *noopMonitor) AfterQueryEmbedding(_ int)           {}
func (n *noopMonitor) AfterRetrieval(_ []core.SearchResult) {}
func (n *noopMonitor) AfterPrompt(_ string)                {}
func (n *noopMonitor) Finish(_ string, _ error)            {}
