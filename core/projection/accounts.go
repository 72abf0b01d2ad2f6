package projection

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"logbook/core/types"
	"logbook/storage/entitystore"
)

// ErrBalanceOverflow is returned when a credit would wrap a 256-bit balance.
var ErrBalanceOverflow = errors.New("projection: account balance overflow")

// Accounts is the lazily populated balance ledger.
type Accounts struct {
	store *entitystore.Store
}

func NewAccounts(store *entitystore.Store) *Accounts {
	return &Accounts{store: store}
}

// Load returns the stored account, or found=false.
func (a *Accounts) Load(id string) (*types.Account, bool, error) {
	account := &types.Account{}
	found, err := a.store.Load(types.KindAccount, id, account)
	if err != nil || !found {
		return nil, found, err
	}
	if account.Balance == nil {
		account.Balance = new(uint256.Int)
	}
	return account, true, nil
}

// GetOrCreate loads the account, persisting a zero-balance one on first touch.
func (a *Accounts) GetOrCreate(id string) (*types.Account, error) {
	account, found, err := a.Load(id)
	if err != nil {
		return nil, err
	}
	if found {
		return account, nil
	}
	account = types.NewAccount(id)
	if err := a.store.Save(types.KindAccount, id, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Credit adds amount to the balance of id.
func (a *Accounts) Credit(id string, amount *uint256.Int) (*types.Account, error) {
	account, err := a.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return account, nil
	}
	balance, overflow := new(uint256.Int).AddOverflow(account.Balance, amount)
	if overflow {
		return nil, fmt.Errorf("%w: %s", ErrBalanceOverflow, id)
	}
	account.Balance = balance
	if err := a.store.Save(types.KindAccount, id, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Reset zeroes the balance after a withdrawal. An account with no history is
// already zero, so found=false is not an error.
func (a *Accounts) Reset(id string) (bool, error) {
	account, found, err := a.Load(id)
	if err != nil || !found {
		return false, err
	}
	account.Balance = new(uint256.Int)
	if err := a.store.Save(types.KindAccount, id, account); err != nil {
		return false, err
	}
	return true, nil
}
