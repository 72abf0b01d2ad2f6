package storage

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEntities = []byte("entities")

// BoltDB stores every key in a single bucket of a BoltDB file.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (and initialises) the Bolt file at path.
func NewBoltDB(path string, options *bolt.Options) (*BoltDB, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("bolt path required")
	}
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(trimmed, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntities)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Put(key []byte, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntities).Put(key, value)
	})
}

// PutBatch writes everything in a single Bolt transaction.
func (b *BoltDB) PutBatch(writes []Write) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntities)
		for _, w := range writes {
			if err := bucket.Put(w.Key, w.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEntities).Get(key)
		if raw == nil {
			return ErrNotFound
		}
		// Bolt values are only valid for the life of the transaction.
		out = bytes.Clone(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BoltDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketEntities).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			if err := fn(bytes.Clone(k), bytes.Clone(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying Bolt database handle.
func (b *BoltDB) Close() {
	if b == nil || b.db == nil {
		return
	}
	_ = b.db.Close()
}
