package events

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"logbook/core/types"
)

// ErrUnknownType is returned for wire envelopes with an unrecognised type.
var ErrUnknownType = errors.New("events: unknown event type")

// attrReader collects the first parse failure so decoders stay linear.
type attrReader struct {
	attrs map[string]string
	err   error
}

func (r *attrReader) raw(key string) string {
	value, ok := r.attrs[key]
	if !ok && r.err == nil {
		r.err = fmt.Errorf("missing attribute %q", key)
	}
	return strings.TrimSpace(value)
}

func (r *attrReader) uint(key string) uint64 {
	raw := r.raw(key)
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("attribute %q: %w", key, err)
	}
	return v
}

func (r *attrReader) bigint(key string) *big.Int {
	raw := r.raw(key)
	if r.err != nil {
		return nil
	}
	v, ok := new(big.Int).SetString(raw, 0)
	if !ok || v.Sign() < 0 {
		r.err = fmt.Errorf("attribute %q: invalid integer %q", key, raw)
		return nil
	}
	return v
}

func (r *attrReader) address(key string) common.Address {
	raw := r.raw(key)
	if r.err != nil {
		return common.Address{}
	}
	if !common.IsHexAddress(raw) {
		r.err = fmt.Errorf("attribute %q: invalid address %q", key, raw)
		return common.Address{}
	}
	return common.HexToAddress(raw)
}

func (r *attrReader) hash(key string) common.Hash {
	raw := r.raw(key)
	if r.err != nil {
		return common.Hash{}
	}
	decoded, err := hexutil.Decode(raw)
	if err != nil || len(decoded) != common.HashLength {
		r.err = fmt.Errorf("attribute %q: invalid hash %q", key, raw)
		return common.Hash{}
	}
	return common.BytesToHash(decoded)
}

func (r *attrReader) bytes(key string) []byte {
	raw := r.raw(key)
	if r.err != nil {
		return nil
	}
	decoded, err := hexutil.Decode(raw)
	if err != nil {
		r.err = fmt.Errorf("attribute %q: %w", key, err)
	}
	return decoded
}

func (r *attrReader) meta() Meta {
	return Meta{
		Contract:       r.address("contract"),
		BlockNumber:    r.uint("block"),
		BlockTimestamp: r.uint("timestamp"),
		TxHash:         r.hash("txHash"),
		TxIndex:        uint(r.uint("txIndex")),
		LogIndex:       uint(r.uint("logIndex")),
	}
}

// FromWire rebuilds a typed event from its wire envelope.
func FromWire(evt *types.Event) (LogEvent, error) {
	if evt == nil {
		return nil, fmt.Errorf("events: nil envelope")
	}
	r := &attrReader{attrs: evt.Attributes}
	var out LogEvent
	switch evt.Type {
	case TypeTransfer:
		out = Transfer{Meta: r.meta(), From: r.address("from"), To: r.address("to"), TokenID: r.bigint("tokenId")}
	case TypeContent:
		out = Content{Meta: r.meta(), Author: r.address("author"), ContentHash: r.hash("contentHash"), Content: r.bytes("content")}
	case TypePublish:
		out = Publish{Meta: r.meta(), TokenID: r.bigint("tokenId"), ContentHash: r.hash("contentHash")}
	case TypeSetTitle:
		out = SetTitle{Meta: r.meta(), TokenID: r.bigint("tokenId"), Title: evt.Attributes["title"]}
	case TypeSetDescription:
		out = SetDescription{Meta: r.meta(), TokenID: r.bigint("tokenId"), Description: evt.Attributes["description"]}
	case TypeSetForkPrice:
		out = SetForkPrice{Meta: r.meta(), TokenID: r.bigint("tokenId"), Amount: r.bigint("amount")}
	case TypeFork:
		out = Fork{
			Meta:       r.meta(),
			TokenID:    r.bigint("tokenId"),
			NewTokenID: r.bigint("newTokenId"),
			Owner:      r.address("owner"),
			End:        r.hash("end"),
			Amount:     r.bigint("amount"),
		}
	case TypeDonate:
		out = Donate{Meta: r.meta(), TokenID: r.bigint("tokenId"), Donor: r.address("donor"), Amount: r.bigint("amount")}
	case TypePay:
		purpose := r.uint("purpose")
		if r.err == nil && purpose > 255 {
			r.err = fmt.Errorf("attribute %q: out of range", "purpose")
		}
		out = Pay{
			Meta:      r.meta(),
			TokenID:   r.bigint("tokenId"),
			Sender:    r.address("sender"),
			Recipient: r.address("recipient"),
			Amount:    r.bigint("amount"),
			Purpose:   uint8(purpose),
		}
	case TypeWithdraw:
		out = Withdraw{Meta: r.meta(), Account: r.address("account"), Amount: r.bigint("amount")}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, evt.Type)
	}
	if r.err != nil {
		return nil, fmt.Errorf("events: decode %s: %w", evt.Type, r.err)
	}
	return out, nil
}
