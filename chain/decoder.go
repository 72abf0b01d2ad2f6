package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"logbook/core/events"
)

// ErrUnknownLog is returned for logs whose topic0 is not a Logbook event.
var ErrUnknownLog = errors.New("chain: unknown log signature")

// Decoder turns raw contract logs into typed projection events.
type Decoder struct {
	abi abi.ABI
}

func NewDecoder() (*Decoder, error) {
	parsed, err := LogbookABI()
	if err != nil {
		return nil, fmt.Errorf("parse logbook abi: %w", err)
	}
	return &Decoder{abi: parsed}, nil
}

// Topics returns the topic0 filter matching every decodable event.
func (d *Decoder) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(d.abi.Events))
	for _, event := range d.abi.Events {
		topics = append(topics, event.ID)
	}
	return topics
}

// Decode unpacks log. The block timestamp is not part of a log and must be
// supplied by the caller.
func (d *Decoder) Decode(log gethtypes.Log, timestamp uint64) (events.LogEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("%w: no topics", ErrUnknownLog)
	}
	event, err := d.abi.EventByID(log.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLog, log.Topics[0].Hex())
	}

	values := make(map[string]any, len(event.Inputs))
	if err := d.abi.UnpackIntoMap(values, event.Name, log.Data); err != nil {
		return nil, fmt.Errorf("unpack %s data: %w", event.Name, err)
	}
	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("unpack %s topics: %w", event.Name, err)
	}

	meta := events.Meta{
		Contract:       log.Address,
		BlockNumber:    log.BlockNumber,
		BlockTimestamp: timestamp,
		TxHash:         log.TxHash,
		TxIndex:        log.TxIndex,
		LogIndex:       log.Index,
	}
	v := fields{event: event.Name, values: values}
	var out events.LogEvent
	switch event.Name {
	case "Transfer":
		out = events.Transfer{Meta: meta, From: v.address("from"), To: v.address("to"), TokenID: v.bigint("tokenId")}
	case "Content":
		out = events.Content{Meta: meta, Author: v.address("author"), ContentHash: v.hash("contentHash"), Content: []byte(v.str("content"))}
	case "Publish":
		out = events.Publish{Meta: meta, TokenID: v.bigint("tokenId"), ContentHash: v.hash("contentHash")}
	case "SetTitle":
		out = events.SetTitle{Meta: meta, TokenID: v.bigint("tokenId"), Title: v.str("title")}
	case "SetDescription":
		out = events.SetDescription{Meta: meta, TokenID: v.bigint("tokenId"), Description: v.str("description")}
	case "SetForkPrice":
		out = events.SetForkPrice{Meta: meta, TokenID: v.bigint("tokenId"), Amount: v.bigint("amount")}
	case "Fork":
		out = events.Fork{
			Meta:       meta,
			TokenID:    v.bigint("tokenId"),
			NewTokenID: v.bigint("newTokenId"),
			Owner:      v.address("owner"),
			End:        v.hash("end"),
			Amount:     v.bigint("amount"),
		}
	case "Donate":
		out = events.Donate{Meta: meta, TokenID: v.bigint("tokenId"), Donor: v.address("donor"), Amount: v.bigint("amount")}
	case "Pay":
		out = events.Pay{
			Meta:      meta,
			TokenID:   v.bigint("tokenId"),
			Sender:    v.address("sender"),
			Recipient: v.address("recipient"),
			Amount:    v.bigint("amount"),
			Purpose:   v.uint8("purpose"),
		}
	case "Withdraw":
		out = events.Withdraw{Meta: meta, Account: v.address("account"), Amount: v.bigint("amount")}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownLog, event.Name)
	}
	if v.err != nil {
		return nil, v.err
	}
	return out, nil
}

// fields reads typed values out of an unpacked argument map, keeping the
// first mismatch.
type fields struct {
	event  string
	values map[string]any
	err    error
}

func (f *fields) fail(name string, got any) {
	if f.err == nil {
		f.err = fmt.Errorf("%s.%s: unexpected value %T", f.event, name, got)
	}
}

func (f *fields) address(name string) common.Address {
	v, ok := f.values[name].(common.Address)
	if !ok {
		f.fail(name, f.values[name])
	}
	return v
}

func (f *fields) bigint(name string) *big.Int {
	v, ok := f.values[name].(*big.Int)
	if !ok {
		f.fail(name, f.values[name])
		return new(big.Int)
	}
	return v
}

func (f *fields) hash(name string) common.Hash {
	v, ok := f.values[name].([32]byte)
	if !ok {
		f.fail(name, f.values[name])
	}
	return common.Hash(v)
}

func (f *fields) str(name string) string {
	v, ok := f.values[name].(string)
	if !ok {
		f.fail(name, f.values[name])
	}
	return v
}

func (f *fields) uint8(name string) uint8 {
	v, ok := f.values[name].(uint8)
	if !ok {
		f.fail(name, f.values[name])
	}
	return v
}
