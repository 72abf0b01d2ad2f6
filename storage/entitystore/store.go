// Package entitystore persists projected entities as JSON documents keyed by
// kind and id on top of any storage.Database backend.
package entitystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"logbook/storage"
)

const keySeparator = "/"

// ErrBatchOpen is returned by Begin while a previous batch is still staged.
var ErrBatchOpen = errors.New("entity store: batch already open")

// Store is the load/save adapter shared by every projection component. It is
// not safe for concurrent use while a batch is open.
type Store struct {
	db storage.Database
	// staged holds encoded saves between Begin and Commit; nil outside a batch.
	staged map[string][]byte
}

// New wraps db.
func New(db storage.Database) *Store {
	return &Store{db: db}
}

func key(kind, id string) []byte {
	return []byte(kind + keySeparator + id)
}

// Load decodes the entity stored under kind/id into out. A missing entity is
// reported as found=false with a nil error; any other failure is returned.
func (s *Store) Load(kind, id string, out any) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("entity store not configured")
	}
	k := key(kind, id)
	if raw, ok := s.staged[string(k)]; ok {
		if err := json.Unmarshal(raw, out); err != nil {
			return false, fmt.Errorf("decode %s %s: %w", kind, id, err)
		}
		return true, nil
	}
	raw, err := s.db.Get(k)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return true, nil
}

// Save overwrites the entity stored under kind/id.
func (s *Store) Save(kind, id string, entity any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("entity store not configured")
	}
	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	if s.staged != nil {
		s.staged[string(key(kind, id))] = raw
		return nil
	}
	if err := s.db.Put(key(kind, id), raw); err != nil {
		return fmt.Errorf("save %s %s: %w", kind, id, err)
	}
	return nil
}

// Begin stages every following Save in memory until Commit writes them in
// one atomic batch. Loads observe staged entities.
func (s *Store) Begin() error {
	if s.staged != nil {
		return ErrBatchOpen
	}
	s.staged = map[string][]byte{}
	return nil
}

// Commit writes the staged entities atomically and closes the batch. The
// batch is closed even when the write fails.
func (s *Store) Commit() error {
	staged := s.staged
	s.staged = nil
	if len(staged) == 0 {
		return nil
	}
	writes := make([]storage.Write, 0, len(staged))
	for k, v := range staged {
		writes = append(writes, storage.Write{Key: []byte(k), Value: v})
	}
	sort.Slice(writes, func(i, j int) bool { return string(writes[i].Key) < string(writes[j].Key) })
	if err := s.db.PutBatch(writes); err != nil {
		return fmt.Errorf("commit %d entities: %w", len(writes), err)
	}
	return nil
}

// Discard drops the staged entities.
func (s *Store) Discard() {
	s.staged = nil
}

// Each visits every committed entity of kind in key order, passing the id
// and the raw JSON document.
func (s *Store) Each(kind string, fn func(id string, raw json.RawMessage) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("entity store not configured")
	}
	prefix := kind + keySeparator
	return s.db.Iterate([]byte(prefix), func(k, v []byte) error {
		return fn(strings.TrimPrefix(string(k), prefix), json.RawMessage(v))
	})
}
