package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/storage"
)

// EntryRepository implements storage.EntryRepository for BadgerDB.
// Each saved batch takes the next value of a sequence, and its entries are
// keyed by (sequence, position) so iteration yields commit order.
type EntryRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.EntryRepository = (*EntryRepository)(nil)

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(backend *Backend) (*EntryRepository, error) {
	seq, err := backend.Sequence(entrySeq)
	if err != nil {
		return nil, err
	}

	return &EntryRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the sequence.
func (r *EntryRepository) Close() error {
	return r.seq.Release()
}

// SaveBatch stores entries and the ledger record for key in one transaction.
func (r *EntryRepository) SaveBatch(ctx context.Context, key core.ID, entries []core.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		ledgerKey := makeBatchKey(key)
		if _, err := tx.Get(ledgerKey); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		seq, err := r.seq.Next()
		if err != nil {
			return err
		}

		for i := range entries {
			if err := tx.Set(makeEntryKey(seq, i), storage.MarshalEntry(&entries[i])); err != nil {
				return err
			}
		}
		return tx.Set(ledgerKey, storage.MarshalID(core.ID(seq)))
	})
}

// HasBatch reports whether key is in the ledger.
func (r *EntryRepository) HasBatch(ctx context.Context, key core.ID) (bool, error) {
	found := false
	err := r.backend.View(func(tx *badger.Txn) error {
		_, err := tx.Get(makeBatchKey(key))
		if err == nil {
			found = true
			return nil
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	return found, err
}

// LoadEntries reads all entries in key order.
func (r *EntryRepository) LoadEntries(ctx context.Context) ([]core.Entry, error) {
	var entries []core.Entry

	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				entry, err := storage.UnmarshalEntry(val)
				if err != nil {
					return err
				}
				entries = append(entries, *entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of stored entries without decoding them.
func (r *EntryRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}
