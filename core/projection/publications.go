package projection

import (
	"logbook/core/types"
	"logbook/storage/entitystore"
)

// Publications is the append-only ledger of publish events.
type Publications struct {
	store *entitystore.Store
}

func NewPublications(store *entitystore.Store) *Publications {
	return &Publications{store: store}
}

func (p *Publications) Load(id string) (*types.Publication, bool, error) {
	pub := &types.Publication{}
	found, err := p.store.Load(types.KindPublication, id, pub)
	if err != nil || !found {
		return nil, found, err
	}
	return pub, true, nil
}

// RecordIfAbsent persists pub unless its id is already taken.
func (p *Publications) RecordIfAbsent(pub types.Publication) (*types.Publication, bool, error) {
	existing, found, err := p.Load(pub.ID)
	if err != nil {
		return nil, false, err
	}
	if found {
		return existing, false, nil
	}
	if pub.Containers == nil {
		pub.Containers = []string{}
	}
	pub.ContainerCount = uint64(len(pub.Containers))
	if err := p.store.Save(types.KindPublication, pub.ID, &pub); err != nil {
		return nil, false, err
	}
	return &pub, true, nil
}

// Inherit adds container to the publication's container set. It returns
// found=false when the publication is unknown; a container already present
// leaves the record untouched.
func (p *Publications) Inherit(id, container string) (bool, error) {
	pub, found, err := p.Load(id)
	if err != nil || !found {
		return false, err
	}
	var added bool
	pub.Containers, added = types.AppendUnique(pub.Containers, container)
	if !added {
		return true, nil
	}
	pub.ContainerCount++
	return true, p.store.Save(types.KindPublication, id, pub)
}
