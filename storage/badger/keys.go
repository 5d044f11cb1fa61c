package badger

import (
	"encoding/binary"

	"github.com/poiesic/insight/core"
)

// Key prefixes for different data types
const (
	entryPrefix  = "entry:"
	batchPrefix  = "batch:"
	vectorPrefix = "vec:"
	entrySeq     = "entryseq"
)

// makeEntryKey generates a composite key for one entry of a committed batch.
// Format: prefix:sequence:position
func makeEntryKey(seq uint64, position int) []byte {
	buf := make([]byte, len(entryPrefix)+12) // 8 bytes for sequence + 4 bytes for position
	offset := copy(buf, entryPrefix)
	// Write in BigEndian order so lexicographic sort follows commit order
	binary.BigEndian.PutUint64(buf[offset:], seq)
	offset += 8
	binary.BigEndian.PutUint32(buf[offset:], uint32(position))
	return buf
}

// makeBatchKey generates the ledger key for a batch content hash.
func makeBatchKey(key core.ID) []byte {
	return makeIDKey(batchPrefix, key)
}

// makeVectorKey generates the cache key for an embedded text hash.
func makeVectorKey(key core.ID) []byte {
	return makeIDKey(vectorPrefix, key)
}

func makeIDKey(prefix string, id core.ID) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
