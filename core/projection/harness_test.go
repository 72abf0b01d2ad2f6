package projection

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"logbook/core/events"
	"logbook/core/types"
	"logbook/storage"
	"logbook/storage/entitystore"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type fakeReader struct {
	uris     map[string]string
	logs     map[string][]common.Hash
	uriCalls int
}

func newFakeReader() *fakeReader {
	return &fakeReader{uris: map[string]string{}, logs: map[string][]common.Hash{}}
}

func (f *fakeReader) TokenURI(_ context.Context, _ common.Address, tokenID *big.Int) string {
	f.uriCalls++
	return f.uris[tokenID.String()]
}

func (f *fakeReader) Logs(_ context.Context, _ common.Address, tokenID *big.Int) []common.Hash {
	return f.logs[tokenID.String()]
}

type recordingObserver struct {
	applied map[string]int
	skipped map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{applied: map[string]int{}, skipped: map[string]int{}}
}

func (o *recordingObserver) Applied(eventType string, _ time.Duration) { o.applied[eventType]++ }
func (o *recordingObserver) Skipped(_, reason string)                  { o.skipped[reason]++ }

type harness struct {
	t        *testing.T
	store    *entitystore.Store
	reader   *fakeReader
	observer *recordingObserver
	d        *Dispatcher
	block    uint64
}

func newHarness(t *testing.T, mode DonationIDMode) *harness {
	t.Helper()
	store := entitystore.New(storage.NewMemDB())
	reader := newFakeReader()
	observer := newRecordingObserver()
	d, err := New(Config{Store: store, Reader: reader, Observer: observer, DonationIDs: mode})
	require.NoError(t, err)
	return &harness{t: t, store: store, reader: reader, observer: observer, d: d}
}

// meta places each event in its own block.
func (h *harness) meta() events.Meta {
	h.block++
	return events.Meta{
		Contract:       testContract,
		BlockNumber:    h.block,
		BlockTimestamp: 1_700_000_000 + h.block,
		TxHash:         common.BigToHash(new(big.Int).SetUint64(h.block)),
	}
}

func (h *harness) apply(evt events.LogEvent) {
	h.t.Helper()
	require.NoError(h.t, h.d.Apply(context.Background(), evt))
}

func (h *harness) mint(token int64, owner common.Address) {
	h.apply(events.Transfer{Meta: h.meta(), To: owner, TokenID: big.NewInt(token)})
}

func (h *harness) announce(body string, author common.Address) common.Hash {
	hash := crypto.Keccak256Hash([]byte(body))
	h.apply(events.Content{Meta: h.meta(), Author: author, ContentHash: hash, Content: []byte(body)})
	return hash
}

// publish returns the publication id.
func (h *harness) publish(token int64, hash common.Hash) string {
	meta := h.meta()
	h.apply(events.Publish{Meta: meta, TokenID: big.NewInt(token), ContentHash: hash})
	return meta.LogID()
}

func (h *harness) fork(from, to int64, end common.Hash, amount int64) {
	h.apply(events.Fork{Meta: h.meta(), TokenID: big.NewInt(from), NewTokenID: big.NewInt(to), Owner: bob, End: end, Amount: big.NewInt(amount)})
}

func (h *harness) logbook(id string) *types.Logbook {
	h.t.Helper()
	var logbook types.Logbook
	found, err := h.store.Load(types.KindLogbook, id, &logbook)
	require.NoError(h.t, err)
	require.True(h.t, found, "logbook %s missing", id)
	return &logbook
}

func (h *harness) content(id common.Hash) *types.Content {
	h.t.Helper()
	var content types.Content
	found, err := h.store.Load(types.KindContent, ContentID(id), &content)
	require.NoError(h.t, err)
	require.True(h.t, found, "content %s missing", id.Hex())
	return &content
}

func (h *harness) publication(id string) *types.Publication {
	h.t.Helper()
	var pub types.Publication
	found, err := h.store.Load(types.KindPublication, id, &pub)
	require.NoError(h.t, err)
	require.True(h.t, found, "publication %s missing", id)
	return &pub
}

func (h *harness) balance(addr common.Address) *uint256.Int {
	h.t.Helper()
	var account types.Account
	found, err := h.store.Load(types.KindAccount, AccountID(addr), &account)
	require.NoError(h.t, err)
	require.True(h.t, found, "account %s missing", addr.Hex())
	return account.Balance
}

func (h *harness) exists(kind, id string) bool {
	h.t.Helper()
	var raw map[string]any
	found, err := h.store.Load(kind, id, &raw)
	require.NoError(h.t, err)
	return found
}

func requireCountersConsistent(t *testing.T, store *entitystore.Store) {
	t.Helper()
	err := store.Each(types.KindLogbook, func(id string, raw json.RawMessage) error {
		var logbook types.Logbook
		if err := json.Unmarshal(raw, &logbook); err != nil {
			return err
		}
		require.Equal(t, uint64(len(logbook.Publications)), logbook.PublicationCount, "logbook %s", id)
		return nil
	})
	require.NoError(t, err)
}
