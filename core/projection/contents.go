package projection

import (
	"logbook/core/types"
	"logbook/storage/entitystore"
)

// Contents is the write-once registry of authored log bodies.
type Contents struct {
	store *entitystore.Store
}

func NewContents(store *entitystore.Store) *Contents {
	return &Contents{store: store}
}

func (c *Contents) Load(id string) (*types.Content, bool, error) {
	content := &types.Content{}
	found, err := c.store.Load(types.KindContent, id, content)
	if err != nil || !found {
		return nil, found, err
	}
	return content, true, nil
}

// RecordIfAbsent stores a new content. A replayed announcement returns the
// existing record untouched with created=false.
func (c *Contents) RecordIfAbsent(id, author string, body []byte, createdAt uint64) (*types.Content, bool, error) {
	existing, found, err := c.Load(id)
	if err != nil {
		return nil, false, err
	}
	if found {
		return existing, false, nil
	}
	content := &types.Content{
		ID:         id,
		Author:     author,
		Body:       body,
		Containers: []string{},
		CreatedAt:  createdAt,
	}
	if err := c.store.Save(types.KindContent, id, content); err != nil {
		return nil, false, err
	}
	return content, true, nil
}

// Published records that container published the content: the first
// publication pins FirstContainer, and the container joins the content's set.
func (c *Contents) Published(id, container string) (bool, error) {
	return c.mutate(id, func(content *types.Content) bool {
		changed := false
		if content.FirstContainer == "" {
			content.FirstContainer = container
			changed = true
		}
		return link(content, container) || changed
	})
}

// Link adds container to the content's container set; repeated links are no-ops.
func (c *Contents) Link(id, container string) (bool, error) {
	return c.mutate(id, func(content *types.Content) bool {
		return link(content, container)
	})
}

func link(content *types.Content, container string) bool {
	var added bool
	content.Containers, added = types.AppendUnique(content.Containers, container)
	if added {
		content.ContainerCount++
	}
	return added
}

// mutate re-loads id, applies fn and persists when fn reports a change.
// found=false means the content does not exist.
func (c *Contents) mutate(id string, fn func(*types.Content) bool) (bool, error) {
	content, found, err := c.Load(id)
	if err != nil || !found {
		return false, err
	}
	if !fn(content) {
		return true, nil
	}
	return true, c.store.Save(types.KindContent, id, content)
}
