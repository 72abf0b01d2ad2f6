package events

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"logbook/core/types"
)

func TestMetaBeforeOrdersByBlockTxLog(t *testing.T) {
	base := Meta{BlockNumber: 10, TxIndex: 2, LogIndex: 5}
	require.True(t, base.Before(Meta{BlockNumber: 11}))
	require.True(t, base.Before(Meta{BlockNumber: 10, TxIndex: 3}))
	require.True(t, base.Before(Meta{BlockNumber: 10, TxIndex: 2, LogIndex: 6}))
	require.False(t, base.Before(base))
	require.False(t, base.Before(Meta{BlockNumber: 9, TxIndex: 9, LogIndex: 9}))
}

func TestMetaLogIDAppendsHexIndex(t *testing.T) {
	tx := common.HexToHash("0xabc")
	meta := Meta{TxHash: tx, LogIndex: 26}
	require.Equal(t, tx.Hex()+"0x1a", meta.LogID())
	require.Equal(t, tx.Hex()+"0x0", Meta{TxHash: tx}.LogID())
}

func TestForkSurvivesWireEnvelope(t *testing.T) {
	fork := Fork{
		Meta: Meta{
			Contract:       common.HexToAddress("0x00000000000000000000000000000000000000aa"),
			BlockNumber:    42,
			BlockTimestamp: 1700000000,
			TxHash:         common.HexToHash("0x01"),
			TxIndex:        1,
			LogIndex:       3,
		},
		TokenID:    big.NewInt(1),
		NewTokenID: big.NewInt(2),
		Owner:      common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		End:        common.HexToHash("0xdead"),
		Amount:     big.NewInt(1000),
	}
	decoded, err := FromWire(fork.Event())
	require.NoError(t, err)
	require.Equal(t, fork, decoded)
}

func TestContentKeepsEmptyBody(t *testing.T) {
	content := Content{ContentHash: common.HexToHash("0x02"), Content: []byte{}}
	decoded, err := FromWire(content.Event())
	require.NoError(t, err)
	require.Empty(t, decoded.(Content).Content)
}

func TestFromWireRejectsUnknownType(t *testing.T) {
	_, err := FromWire(&types.Event{Type: "logbook.burn"})
	require.True(t, errors.Is(err, ErrUnknownType))
}

func TestFromWireReportsBadAttribute(t *testing.T) {
	evt := Publish{TokenID: big.NewInt(1)}.Event()
	evt.Attributes["contentHash"] = "0x1234"
	_, err := FromWire(evt)
	require.ErrorContains(t, err, "contentHash")
}

func TestFromWireReportsMissingAttribute(t *testing.T) {
	evt := Withdraw{Amount: big.NewInt(1)}.Event()
	delete(evt.Attributes, "account")
	_, err := FromWire(evt)
	require.ErrorContains(t, err, `missing attribute "account"`)
}
