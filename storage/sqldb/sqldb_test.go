package sqldb

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"logbook/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn, err := FileDSN(filepath.Join(t.TempDir(), "logbook.sqlite"))
	require.NoError(t, err)
	db, err := Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestSQLiteRoundTrip(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Get([]byte("content/0x01"))
	require.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, db.Put([]byte("content/0x01"), []byte("first")))
	require.NoError(t, db.Put([]byte("content/0x01"), []byte("second")))
	got, err := db.Get([]byte("content/0x01"))
	require.NoError(t, err)
	require.Equal(t, "second", string(got))
}

func TestSQLiteIterateEscapesWildcards(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Put([]byte("a_b/1"), []byte("1")))
	require.NoError(t, db.Put([]byte("axb/2"), []byte("2")))

	var keys []string
	err := db.Iterate([]byte("a_b/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a_b/1"}, keys)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
}

func TestSQLitePutBatch(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Put([]byte("fork/1-2"), []byte("old")))
	require.NoError(t, db.PutBatch([]storage.Write{
		{Key: []byte("fork/1-2"), Value: []byte("new")},
		{Key: []byte("logbook/2"), Value: []byte("child")},
	}))
	got, err := db.Get([]byte("fork/1-2"))
	require.NoError(t, err)
	require.Equal(t, "new", string(got))
	got, err = db.Get([]byte("logbook/2"))
	require.NoError(t, err)
	require.Equal(t, "child", string(got))
}
