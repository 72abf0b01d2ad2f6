package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	dir := t.TempDir()

	level, err := NewLevelDB(filepath.Join(dir, "level"))
	require.NoError(t, err)
	t.Cleanup(level.Close)

	bolt, err := NewBoltDB(filepath.Join(dir, "entities.bolt"), nil)
	require.NoError(t, err)
	t.Cleanup(bolt.Close)

	return map[string]Database{
		"memory":  NewMemDB(),
		"leveldb": level,
		"bolt":    bolt,
	}
}

func TestDatabaseMissingKey(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("logbook/1"))
			require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
		})
	}
}

func TestDatabasePutOverwrites(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("account/0xaa"), []byte(`{"balance":"1"}`)))
			require.NoError(t, db.Put([]byte("account/0xaa"), []byte(`{"balance":"2"}`)))
			got, err := db.Get([]byte("account/0xaa"))
			require.NoError(t, err)
			require.Equal(t, `{"balance":"2"}`, string(got))
		})
	}
}

func TestDatabaseIteratePrefix(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("logbook/2"), []byte("b")))
			require.NoError(t, db.Put([]byte("logbook/1"), []byte("a")))
			require.NoError(t, db.Put([]byte("fork/1-2"), []byte("f")))

			var keys []string
			err := db.Iterate([]byte("logbook/"), func(key, value []byte) error {
				keys = append(keys, string(key))
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, []string{"logbook/1", "logbook/2"}, keys)
		})
	}
}

func TestDatabaseIterateStopsOnError(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("content/1"), []byte("x")))
	require.NoError(t, db.Put([]byte("content/2"), []byte("y")))
	stop := errors.New("stop")
	calls := 0
	err := db.Iterate([]byte("content/"), func(key, value []byte) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, calls)
}

func TestOpenKVRejectsUnknownBackend(t *testing.T) {
	_, err := OpenKV("redis", "")
	require.Error(t, err)
}

func TestDatabasePutBatch(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("logbook/1"), []byte("old")))
			require.NoError(t, db.PutBatch([]Write{
				{Key: []byte("logbook/1"), Value: []byte("new")},
				{Key: []byte("cursor/head"), Value: []byte(`{"nextBlock":5}`)},
			}))
			got, err := db.Get([]byte("logbook/1"))
			require.NoError(t, err)
			require.Equal(t, "new", string(got))
			got, err = db.Get([]byte("cursor/head"))
			require.NoError(t, err)
			require.Equal(t, `{"nextBlock":5}`, string(got))
		})
	}
}
