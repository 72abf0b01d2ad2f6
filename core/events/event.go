package events

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"logbook/core/types"
)

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
}

// LogEvent is a decoded contract log together with its chain provenance.
type LogEvent interface {
	Event
	Metadata() Meta
	// Event renders the wire envelope used by replay files.
	Event() *types.Event
}

// Meta locates a log in the canonical chain order.
type Meta struct {
	Contract       common.Address
	BlockNumber    uint64
	BlockTimestamp uint64
	TxHash         common.Hash
	TxIndex        uint
	LogIndex       uint
}

// Metadata satisfies LogEvent for every event embedding Meta.
func (m Meta) Metadata() Meta { return m }

// Before reports whether m sorts strictly before other in block, transaction,
// log order.
func (m Meta) Before(other Meta) bool {
	if m.BlockNumber != other.BlockNumber {
		return m.BlockNumber < other.BlockNumber
	}
	if m.TxIndex != other.TxIndex {
		return m.TxIndex < other.TxIndex
	}
	return m.LogIndex < other.LogIndex
}

// LogID is the per-log identifier: transaction hash followed by the hex log index.
func (m Meta) LogID() string {
	return m.TxHash.Hex() + hexutil.EncodeUint64(uint64(m.LogIndex))
}

func (m Meta) String() string {
	return fmt.Sprintf("block=%d tx=%s log=%d", m.BlockNumber, m.TxHash.Hex(), m.LogIndex)
}

func (m Meta) attributes() map[string]string {
	return map[string]string{
		"contract":  strings.ToLower(m.Contract.Hex()),
		"block":     strconv.FormatUint(m.BlockNumber, 10),
		"timestamp": strconv.FormatUint(m.BlockTimestamp, 10),
		"txHash":    m.TxHash.Hex(),
		"txIndex":   strconv.FormatUint(uint64(m.TxIndex), 10),
		"logIndex":  strconv.FormatUint(uint64(m.LogIndex), 10),
	}
}

type metaKey struct{}

// WithMeta attaches the position of the event being applied to ctx so that
// contract reads can be pinned to its block.
func WithMeta(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// MetaFromContext returns the meta stored by WithMeta.
func MetaFromContext(ctx context.Context) (Meta, bool) {
	meta, ok := ctx.Value(metaKey{}).(Meta)
	return meta, ok
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
