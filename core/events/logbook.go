package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"logbook/core/types"
)

const (
	TypeTransfer       = "logbook.transfer"
	TypeContent        = "logbook.content"
	TypePublish        = "logbook.publish"
	TypeSetTitle       = "logbook.set_title"
	TypeSetDescription = "logbook.set_description"
	TypeSetForkPrice   = "logbook.set_fork_price"
	TypeFork           = "logbook.fork"
	TypeDonate         = "logbook.donate"
	TypePay            = "logbook.pay"
	TypeWithdraw       = "logbook.withdraw"
)

// Transfer is the ERC-721 ownership transfer; the first one for a token mints
// the logbook.
type Transfer struct {
	Meta
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := e.attributes()
	attrs["from"] = formatAddress(e.From)
	attrs["to"] = formatAddress(e.To)
	attrs["tokenId"] = formatAmount(e.TokenID)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

// Content announces a log body and its author.
type Content struct {
	Meta
	Author      common.Address
	ContentHash common.Hash
	Content     []byte
}

func (Content) EventType() string { return TypeContent }

func (e Content) Event() *types.Event {
	attrs := e.attributes()
	attrs["author"] = formatAddress(e.Author)
	attrs["contentHash"] = e.ContentHash.Hex()
	attrs["content"] = hexutil.Encode(e.Content)
	return &types.Event{Type: TypeContent, Attributes: attrs}
}

// Publish attaches a previously announced content to a logbook.
type Publish struct {
	Meta
	TokenID     *big.Int
	ContentHash common.Hash
}

func (Publish) EventType() string { return TypePublish }

func (e Publish) Event() *types.Event {
	attrs := e.attributes()
	attrs["tokenId"] = formatAmount(e.TokenID)
	attrs["contentHash"] = e.ContentHash.Hex()
	return &types.Event{Type: TypePublish, Attributes: attrs}
}

type SetTitle struct {
	Meta
	TokenID *big.Int
	Title   string
}

func (SetTitle) EventType() string { return TypeSetTitle }

func (e SetTitle) Event() *types.Event {
	attrs := e.attributes()
	attrs["tokenId"] = formatAmount(e.TokenID)
	attrs["title"] = e.Title
	return &types.Event{Type: TypeSetTitle, Attributes: attrs}
}

type SetDescription struct {
	Meta
	TokenID     *big.Int
	Description string
}

func (SetDescription) EventType() string { return TypeSetDescription }

func (e SetDescription) Event() *types.Event {
	attrs := e.attributes()
	attrs["tokenId"] = formatAmount(e.TokenID)
	attrs["description"] = e.Description
	return &types.Event{Type: TypeSetDescription, Attributes: attrs}
}

type SetForkPrice struct {
	Meta
	TokenID *big.Int
	Amount  *big.Int
}

func (SetForkPrice) EventType() string { return TypeSetForkPrice }

func (e SetForkPrice) Event() *types.Event {
	attrs := e.attributes()
	attrs["tokenId"] = formatAmount(e.TokenID)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeSetForkPrice, Attributes: attrs}
}

// Fork mints NewTokenID as a child of TokenID, cut after the log End.
type Fork struct {
	Meta
	TokenID    *big.Int
	NewTokenID *big.Int
	Owner      common.Address
	End        common.Hash
	Amount     *big.Int
}

func (Fork) EventType() string { return TypeFork }

func (e Fork) Event() *types.Event {
	attrs := e.attributes()
	attrs["tokenId"] = formatAmount(e.TokenID)
	attrs["newTokenId"] = formatAmount(e.NewTokenID)
	attrs["owner"] = formatAddress(e.Owner)
	attrs["end"] = e.End.Hex()
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeFork, Attributes: attrs}
}

type Donate struct {
	Meta
	TokenID *big.Int
	Donor   common.Address
	Amount  *big.Int
}

func (Donate) EventType() string { return TypeDonate }

func (e Donate) Event() *types.Event {
	attrs := e.attributes()
	attrs["tokenId"] = formatAmount(e.TokenID)
	attrs["donor"] = formatAddress(e.Donor)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeDonate, Attributes: attrs}
}

// Pay records a royalty payment. Purpose 0 is a fork fee, anything else a donation share.
type Pay struct {
	Meta
	TokenID   *big.Int
	Sender    common.Address
	Recipient common.Address
	Amount    *big.Int
	Purpose   uint8
}

func (Pay) EventType() string { return TypePay }

func (e Pay) Event() *types.Event {
	attrs := e.attributes()
	attrs["tokenId"] = formatAmount(e.TokenID)
	attrs["sender"] = formatAddress(e.Sender)
	attrs["recipient"] = formatAddress(e.Recipient)
	attrs["amount"] = formatAmount(e.Amount)
	attrs["purpose"] = strconv.FormatUint(uint64(e.Purpose), 10)
	return &types.Event{Type: TypePay, Attributes: attrs}
}

type Withdraw struct {
	Meta
	Account common.Address
	Amount  *big.Int
}

func (Withdraw) EventType() string { return TypeWithdraw }

func (e Withdraw) Event() *types.Event {
	attrs := e.attributes()
	attrs["account"] = formatAddress(e.Account)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeWithdraw, Attributes: attrs}
}
