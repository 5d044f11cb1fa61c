package batch

import (
	"fmt"
	"testing"

	"github.com/poiesic/insight/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRecords(n int) []core.Record {
	records := make([]core.Record, n)
	for i := range records {
		records[i] = core.DeriveSummary(core.Record{
			CustomerID: fmt.Sprintf("c%d", i),
			Age:        20 + i,
		})
	}
	return records
}

func TestPartition_Sizes(t *testing.T) {
	tests := []struct {
		n, chunk int
		sizes    []int
	}{
		{5, 2, []int{2, 2, 1}},
		{4, 2, []int{2, 2}},
		{3, 10, []int{3}},
		{1, 1, []int{1}},
		{0, 3, []int{}},
		{7, 3, []int{3, 3, 1}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d chunk=%d", tt.n, tt.chunk), func(t *testing.T) {
			records := makeRecords(tt.n)
			batches, err := Partition(records, tt.chunk)
			require.NoError(t, err)

			sizes := make([]int, len(batches))
			for i, b := range batches {
				sizes[i] = len(b.Records)
				assert.Equal(t, i, b.Index)
			}
			assert.Equal(t, tt.sizes, sizes)
			assert.Len(t, batches, (tt.n+tt.chunk-1)/tt.chunk)
		})
	}
}

func TestPartition_ContiguousAndOrdered(t *testing.T) {
	records := makeRecords(7)
	batches, err := Partition(records, 3)
	require.NoError(t, err)

	var flattened []core.Record
	for _, b := range batches {
		assert.Equal(t, len(flattened), b.Offset)
		flattened = append(flattened, b.Records...)
	}
	assert.Equal(t, records, flattened)
}

func TestPartition_InvalidChunkSize(t *testing.T) {
	for _, chunk := range []int{0, -1} {
		_, err := Partition(makeRecords(3), chunk)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfig)
	}
}

func TestBatchKey_ContentDerived(t *testing.T) {
	records := makeRecords(4)

	a, err := Partition(records, 2)
	require.NoError(t, err)
	b, err := Partition(records, 2)
	require.NoError(t, err)

	assert.Equal(t, a[0].Key, b[0].Key)
	assert.NotEqual(t, a[0].Key, a[1].Key)

	changed := append([]core.Record(nil), records...)
	changed[0] = core.DeriveSummary(core.Record{CustomerID: "c0", Age: 99})
	c, err := Partition(changed, 2)
	require.NoError(t, err)
	assert.NotEqual(t, a[0].Key, c[0].Key)
	assert.Equal(t, a[1].Key, c[1].Key)
}

func TestBatch_IDsAndTexts(t *testing.T) {
	batches, err := Partition(makeRecords(3), 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"c0", "c1", "c2"}, batches[0].IDs())
	texts := batches[0].Texts()
	require.Len(t, texts, 3)
	assert.Contains(t, texts[1], "21 year old")
}
