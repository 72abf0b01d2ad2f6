package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by every backend when a key is missing.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// The indexer keeps every projected entity behind this interface so the
// backend (in-memory, LevelDB, Bolt or SQL) can be chosen at startup.
type Database interface {
	Put(key []byte, value []byte) error
	// Get returns ErrNotFound when the key is absent.
	Get(key []byte) ([]byte, error)
	// Iterate visits every key with the given prefix in ascending key order.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	// PutBatch stores every write or none of them.
	PutBatch(writes []Write) error
	Close() // A way to gracefully shut down the database connection.
}

// Write is one key/value pair of an atomic batch.
type Write struct {
	Key   []byte
	Value []byte
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = bytes.Clone(value)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(value), nil
}

func (db *MemDB) PutBatch(writes []Write) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, w := range writes {
		db.data[string(w.Key)] = bytes.Clone(w.Value)
	}
	return nil
}

func (db *MemDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	db.mu.RLock()
	keys := make([]string, 0, len(db.data))
	for key := range db.data {
		if strings.HasPrefix(key, string(prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, key := range keys {
		values[i] = bytes.Clone(db.data[key])
	}
	db.mu.RUnlock()

	for i, key := range keys {
		if err := fn([]byte(key), values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("leveldb path required")
	}
	db, err := leveldb.OpenFile(filepath.Clean(trimmed), nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// PutBatch commits writes in one synced LevelDB batch.
func (ldb *LevelDB) PutBatch(writes []Write) error {
	batch := new(leveldb.Batch)
	for _, w := range writes {
		batch.Put(w.Key, w.Value)
	}
	return ldb.db.Write(batch, &opt.WriteOptions{Sync: true})
}

// Iterate walks the keys sharing prefix.
func (ldb *LevelDB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	iter := ldb.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		// The iterator reuses its buffers between steps.
		if err := fn(bytes.Clone(iter.Key()), bytes.Clone(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}
