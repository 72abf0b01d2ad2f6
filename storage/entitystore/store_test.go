package entitystore

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"logbook/core/types"
	"logbook/storage"
)

type failingDB struct {
	storage.Database
	err error
}

func (f failingDB) Get([]byte) ([]byte, error) { return nil, f.err }
func (f failingDB) Put([]byte, []byte) error   { return f.err }

func TestLoadMissingIsAbsent(t *testing.T) {
	store := New(storage.NewMemDB())
	var account types.Account
	found, err := store.Load(types.KindAccount, "0xaa", &account)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSaveThenLoadKeepsUint256(t *testing.T) {
	store := New(storage.NewMemDB())
	account := types.Account{ID: "0xaa", Balance: uint256.MustFromDecimal("115792089237316195423570985008687907853269984665640564039457584007913129639935")}
	require.NoError(t, store.Save(types.KindAccount, account.ID, &account))

	var loaded types.Account
	found, err := store.Load(types.KindAccount, "0xaa", &loaded)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, account.Balance.Dec(), loaded.Balance.Dec())
}

func TestBackendFailuresSurface(t *testing.T) {
	boom := errors.New("disk gone")
	store := New(failingDB{err: boom})

	_, err := store.Load(types.KindLogbook, "1", &types.Logbook{})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, store.Save(types.KindLogbook, "1", &types.Logbook{}), boom)
}

func TestEachScopesToKind(t *testing.T) {
	store := New(storage.NewMemDB())
	require.NoError(t, store.Save(types.KindFork, "1-2", types.Fork{ID: "1-2"}))
	require.NoError(t, store.Save(types.KindFork, "1-3", types.Fork{ID: "1-3"}))
	require.NoError(t, store.Save(types.KindLogbook, "1", types.Logbook{ID: "1"}))

	var ids []string
	err := store.Each(types.KindFork, func(id string, raw json.RawMessage) error {
		var fork types.Fork
		require.NoError(t, json.Unmarshal(raw, &fork))
		require.Equal(t, id, fork.ID)
		ids = append(ids, id)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"1-2", "1-3"}, ids)
}

func TestBatchStagesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	store := New(db)
	require.NoError(t, store.Begin())
	require.ErrorIs(t, store.Begin(), ErrBatchOpen)
	require.NoError(t, store.Save(types.KindLogbook, "1", types.Logbook{ID: "1", TransferCount: 1}))

	var logbook types.Logbook
	found, err := store.Load(types.KindLogbook, "1", &logbook)
	require.NoError(t, err)
	require.True(t, found, "staged entities are visible to loads")
	require.Equal(t, uint64(1), logbook.TransferCount)

	_, err = db.Get([]byte("logbook/1"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Commit())
	_, err = db.Get([]byte("logbook/1"))
	require.NoError(t, err)
}

func TestDiscardDropsStagedEntities(t *testing.T) {
	store := New(storage.NewMemDB())
	require.NoError(t, store.Begin())
	require.NoError(t, store.Save(types.KindFork, "1-2", types.Fork{ID: "1-2"}))
	store.Discard()

	found, err := store.Load(types.KindFork, "1-2", &types.Fork{})
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, store.Begin(), "discard closes the batch")
}

type batchFailingDB struct {
	*storage.MemDB
	err error
}

func (b batchFailingDB) PutBatch([]storage.Write) error { return b.err }

func TestFailedCommitWritesNothing(t *testing.T) {
	boom := errors.New("fsync failed")
	db := batchFailingDB{MemDB: storage.NewMemDB(), err: boom}
	store := New(db)
	require.NoError(t, store.Begin())
	require.NoError(t, store.Save(types.KindAccount, "0xaa", types.Account{ID: "0xaa"}))
	require.ErrorIs(t, store.Commit(), boom)

	found, err := store.Load(types.KindAccount, "0xaa", &types.Account{})
	require.NoError(t, err)
	require.False(t, found)
}
