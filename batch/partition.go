package batch

import (
	"fmt"
	"strings"

	"github.com/poiesic/insight/core"
)

// Batch is a contiguous slice of the input records.
type Batch struct {
	// Index is the 0-based position of the batch in the partition.
	Index int

	// Offset is the position of the first record in the input.
	Offset int

	Records []core.Record

	// Key is a content hash of the batch's records, used to make commits
	// idempotent across retries and restarts.
	Key core.ID
}

// Partition splits records into ceil(len(records)/chunkSize) contiguous
// batches. Only the last batch may be smaller than chunkSize.
func Partition(records []core.Record, chunkSize int) ([]Batch, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrConfig, chunkSize)
	}

	batches := make([]Batch, 0, (len(records)+chunkSize-1)/chunkSize)
	for offset := 0; offset < len(records); offset += chunkSize {
		end := min(offset+chunkSize, len(records))
		b := Batch{
			Index:   len(batches),
			Offset:  offset,
			Records: records[offset:end:end],
		}
		b.Key = b.contentKey()
		batches = append(batches, b)
	}
	return batches, nil
}

// IDs returns the customer identifiers of the batch's records.
func (b Batch) IDs() []string {
	ids := make([]string, len(b.Records))
	for i, r := range b.Records {
		ids[i] = r.CustomerID
	}
	return ids
}

// Texts returns the summaries sent to the embedding provider.
func (b Batch) Texts() []string {
	texts := make([]string, len(b.Records))
	for i, r := range b.Records {
		texts[i] = r.Summary
	}
	return texts
}

func (b Batch) contentKey() core.ID {
	var sb strings.Builder
	for _, r := range b.Records {
		sb.WriteString(r.CustomerID)
		sb.WriteByte(0x1f)
		sb.WriteString(r.Summary)
		sb.WriteByte(0x1e)
	}
	return core.IDFromContent(sb.String())
}
