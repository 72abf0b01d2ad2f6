package types

import "github.com/holiman/uint256"

// Entity kinds, used as key prefixes by the entity store.
const (
	KindAccount     = "account"
	KindContent     = "content"
	KindLogbook     = "logbook"
	KindPublication = "publication"
	KindDonation    = "donation"
	KindPayment     = "payment"
	KindFork        = "fork"
	KindCursor      = "cursor"
)

// Kinds lists every projected entity kind in export order.
var Kinds = []string{
	KindAccount,
	KindContent,
	KindLogbook,
	KindPublication,
	KindDonation,
	KindPayment,
	KindFork,
}

// Account tracks the withdrawable royalty balance of an address.
type Account struct {
	ID      string       `json:"id"`
	Balance *uint256.Int `json:"balance"`
}

// NewAccount returns a zero-balance account.
func NewAccount(id string) *Account {
	return &Account{ID: id, Balance: new(uint256.Int)}
}
