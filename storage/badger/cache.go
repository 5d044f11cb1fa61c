package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/insight/core"
	"github.com/poiesic/insight/storage"
)

// VectorCache implements storage.VectorCache for BadgerDB.
type VectorCache struct {
	backend *Backend
}

var _ storage.VectorCache = (*VectorCache)(nil)

// NewVectorCache creates a cache sharing backend with other repositories.
func NewVectorCache(backend *Backend) *VectorCache {
	return &VectorCache{backend: backend}
}

// GetVector returns the cached vector for key.
func (c *VectorCache) GetVector(ctx context.Context, key core.ID) ([]float32, bool, error) {
	var vector []float32
	err := c.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeVectorKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			vector, unmarshalErr = storage.UnmarshalVector(val)
			return unmarshalErr
		})
	})
	if err != nil {
		return nil, false, err
	}
	return vector, vector != nil, nil
}

// PutVector stores vector under key.
func (c *VectorCache) PutVector(ctx context.Context, key core.ID, vector []float32) error {
	return c.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeVectorKey(key), storage.MarshalVector(vector))
	})
}
