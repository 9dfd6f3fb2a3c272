// Package relation manages the ordered junction set between one owning tier
// and its linked abilities. The editor works entirely in memory; the set is
// persisted only on an explicit save through the catalog store.
package relation

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownAbility indicates that an ability id does not resolve in the
	// catalog loaded alongside the editor.
	ErrUnknownAbility = errors.New("relation: unknown ability")
	// ErrMissingNameLookup indicates the editor was built without a catalog lookup.
	ErrMissingNameLookup = errors.New("relation: ability name lookup is required")
)

// Link is one junction entry. DisplayName is a denormalized copy of the
// ability's catalog name taken at link time; uniqueness is always by
// AbilityID, never by name.
type Link struct {
	AbilityID   int64  `json:"ability_id"`
	DisplayName string `json:"display_name"`
	Order       int    `json:"order"`
}

// LinkPayload is the persistable shape of one link, stripped of the
// denormalized display name.
type LinkPayload struct {
	AbilityID int64 `json:"ability_id"`
	Order     int   `json:"order"`
}

// NameLookup resolves an ability id to its current catalog name.
type NameLookup func(abilityID int64) (string, bool)

// EditorConfig describes the inputs required to open a tier for editing.
type EditorConfig struct {
	Links []Link
	Names NameLookup
}

// Editor holds the in-memory ordered link set for one owning tier.
type Editor struct {
	links     []Link
	nextOrder int
	names     NameLookup
}

// NewEditor hydrates an editor from persisted links, or an empty set for a
// new tier. The link set is re-sorted on construction so the ordering
// invariant holds from the start.
func NewEditor(cfg EditorConfig) (*Editor, error) {
	if cfg.Names == nil {
		return nil, ErrMissingNameLookup
	}
	links := make([]Link, len(cfg.Links))
	copy(links, cfg.Links)
	editor := &Editor{
		links:     links,
		nextOrder: len(links),
		names:     cfg.Names,
	}
	editor.resort()
	return editor, nil
}

// Add appends a link for the ability at the given order and re-sorts the set.
// Adding an ability that is already linked is a no-op. The display name is
// refreshed from the catalog at add time; a stale denormalized name is never
// trusted.
func (e *Editor) Add(abilityID int64, order int) error {
	if e.contains(abilityID) {
		return nil
	}
	name, ok := e.names(abilityID)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownAbility, abilityID)
	}
	e.links = append(e.links, Link{
		AbilityID:   abilityID,
		DisplayName: name,
		Order:       order,
	})
	e.resort()
	e.nextOrder = order + 1
	return nil
}

// Remove drops the matching link if present. Removing an absent ability is
// not an error.
func (e *Editor) Remove(abilityID int64) {
	for i, link := range e.links {
		if link.AbilityID == abilityID {
			e.links = append(e.links[:i], e.links[i+1:]...)
			return
		}
	}
}

// SetOrder updates the matching link's order and re-sorts the set. Ties are
// broken by current sequence position through the stable sort. An absent
// ability id is a no-op.
func (e *Editor) SetOrder(abilityID int64, newOrder int) {
	for i := range e.links {
		if e.links[i].AbilityID == abilityID {
			e.links[i].Order = newOrder
			e.resort()
			return
		}
	}
}

// Links returns a copy of the current ordered link set.
func (e *Editor) Links() []Link {
	copied := make([]Link, len(e.links))
	copy(copied, e.links)
	return copied
}

// NextOrder suggests the order value for the next add.
func (e *Editor) NextOrder() int {
	return e.nextOrder
}

// Payload returns the ordered {abilityId, order} pairs for submission to the
// owning tier's save operation.
func (e *Editor) Payload() []LinkPayload {
	payload := make([]LinkPayload, 0, len(e.links))
	for _, link := range e.links {
		payload = append(payload, LinkPayload{AbilityID: link.AbilityID, Order: link.Order})
	}
	return payload
}

func (e *Editor) contains(abilityID int64) bool {
	for _, link := range e.links {
		if link.AbilityID == abilityID {
			return true
		}
	}
	return false
}

func (e *Editor) resort() {
	sort.SliceStable(e.links, func(i, j int) bool {
		return e.links[i].Order < e.links[j].Order
	})
}
