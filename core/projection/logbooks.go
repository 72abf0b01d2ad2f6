package projection

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"logbook/core/types"
	"logbook/storage/entitystore"
)

// Logbooks is the container registry. A logbook is Unseen until its first
// transfer and Active afterwards; only Transfer may create one.
type Logbooks struct {
	store *entitystore.Store
	uris  URIResolver
}

func NewLogbooks(store *entitystore.Store, uris URIResolver) *Logbooks {
	return &Logbooks{store: store, uris: uris}
}

func (l *Logbooks) Load(id string) (*types.Logbook, bool, error) {
	logbook := &types.Logbook{}
	found, err := l.store.Load(types.KindLogbook, id, logbook)
	if err != nil || !found {
		return nil, found, err
	}
	if logbook.ForkPrice == nil {
		logbook.ForkPrice = new(uint256.Int)
	}
	if logbook.Publications == nil {
		logbook.Publications = []string{}
	}
	return logbook, true, nil
}

func (l *Logbooks) Save(logbook *types.Logbook) error {
	return l.store.Save(types.KindLogbook, logbook.ID, logbook)
}

// Transfer activates an unseen logbook or hands an active one to owner.
// The display URI is re-read in both cases.
func (l *Logbooks) Transfer(ctx context.Context, contract common.Address, tokenID *big.Int, owner string, at uint64) (*types.Logbook, bool, error) {
	id := ContainerID(tokenID)
	logbook, found, err := l.Load(id)
	if err != nil {
		return nil, false, err
	}
	if !found {
		logbook = &types.Logbook{
			ID:           id,
			ForkPrice:    new(uint256.Int),
			Publications: []string{},
			CreatedAt:    at,
		}
	} else {
		logbook.TransferCount++
	}
	logbook.Owner = owner
	logbook.ExternalURI = l.resolveURI(ctx, contract, tokenID)
	if err := l.Save(logbook); err != nil {
		return nil, false, err
	}
	return logbook, !found, nil
}

func (l *Logbooks) SetTitle(id, title string) (bool, error) {
	return l.mutate(id, func(logbook *types.Logbook) { logbook.Title = title })
}

func (l *Logbooks) SetDescription(id, description string) (bool, error) {
	return l.mutate(id, func(logbook *types.Logbook) { logbook.Description = description })
}

func (l *Logbooks) SetForkPrice(id string, price *uint256.Int) (bool, error) {
	return l.mutate(id, func(logbook *types.Logbook) {
		if price == nil {
			logbook.ForkPrice = new(uint256.Int)
			return
		}
		logbook.ForkPrice = price.Clone()
	})
}

func (l *Logbooks) IncrementForkCount(id string) (bool, error) {
	return l.mutate(id, func(logbook *types.Logbook) { logbook.ForkCount++ })
}

func (l *Logbooks) IncrementDonationCount(id string) (bool, error) {
	return l.mutate(id, func(logbook *types.Logbook) { logbook.DonationCount++ })
}

// AppendPublication adds pubID to the end of the logbook's publications.
func (l *Logbooks) AppendPublication(ctx context.Context, contract common.Address, tokenID *big.Int, pubID string, at uint64) (bool, error) {
	logbook, found, err := l.Load(ContainerID(tokenID))
	if err != nil || !found {
		return false, err
	}
	logbook.Publications = append(logbook.Publications, pubID)
	logbook.PublicationCount = uint64(len(logbook.Publications))
	logbook.LastPublishedAt = at
	logbook.ExternalURI = l.resolveURI(ctx, contract, tokenID)
	return true, l.Save(logbook)
}

// mutate re-loads id and persists fn's change; unseen logbooks are left alone.
func (l *Logbooks) mutate(id string, fn func(*types.Logbook)) (bool, error) {
	logbook, found, err := l.Load(id)
	if err != nil || !found {
		return false, err
	}
	fn(logbook)
	return true, l.Save(logbook)
}

func (l *Logbooks) resolveURI(ctx context.Context, contract common.Address, tokenID *big.Int) string {
	if l.uris == nil {
		return ""
	}
	return l.uris.TokenURI(ctx, contract, tokenID)
}
