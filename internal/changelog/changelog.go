// Package changelog implements ChangeLog (spec.md §4.4's C3): the
// commit unit a session presents to the manager — ordered, deduped
// added/modified/deleted item-state sets plus modified reference
// bundles, with replay (push) and post-commit (persisted) semantics.
//
// A ChangeLog is owned by one session and is not safe for concurrent
// use, exactly as spec.md §4.4 states; all synchronization happens one
// layer up, in the manager.
package changelog

import (
	"github.com/google/uuid"

	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/refs"
)

// set is an insertion-ordered, dedupe-by-id collection of item states.
type set struct {
	order []itemid.ID
	byID  map[itemid.ID]*itemstate.State
}

func newSet() set {
	return set{byID: make(map[itemid.ID]*itemstate.State)}
}

func (s *set) add(state *itemstate.State) {
	id := state.ID()
	if _, ok := s.byID[id]; !ok {
		s.order = append(s.order, id)
	}
	s.byID[id] = state
}

func (s *set) list() []*itemstate.State {
	out := make([]*itemstate.State, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *set) get(id itemid.ID) (*itemstate.State, bool) {
	st, ok := s.byID[id]
	return st, ok
}

// ChangeLog groups one session's pending mutations.
type ChangeLog struct {
	added    set
	modified set
	deleted  set

	refOrder []uuid.UUID
	refsByID map[uuid.UUID]*refs.NodeReferences
}

// New returns an empty change log.
func New() *ChangeLog {
	return &ChangeLog{
		added:    newSet(),
		modified: newSet(),
		deleted:  newSet(),
		refsByID: make(map[uuid.UUID]*refs.NodeReferences),
	}
}

// Added records s as added.
func (c *ChangeLog) Added(s *itemstate.State) { c.added.add(s) }

// Modified records s as modified.
func (c *ChangeLog) Modified(s *itemstate.State) { c.modified.add(s) }

// Deleted records s as deleted.
func (c *ChangeLog) Deleted(s *itemstate.State) { c.deleted.add(s) }

// ModifiedRefs records r as a modified reference bundle, keyed by its
// target UUID.
func (c *ChangeLog) ModifiedRefs(r *refs.NodeReferences) {
	target := r.Target
	if _, ok := c.refsByID[target]; !ok {
		c.refOrder = append(c.refOrder, target)
	}
	c.refsByID[target] = r
}

// AddedItems returns the added items in insertion order.
func (c *ChangeLog) AddedItems() []*itemstate.State { return c.added.list() }

// ModifiedItems returns the modified items in insertion order.
func (c *ChangeLog) ModifiedItems() []*itemstate.State { return c.modified.list() }

// DeletedItems returns the deleted items in insertion order.
func (c *ChangeLog) DeletedItems() []*itemstate.State { return c.deleted.list() }

// ModifiedRefBundles returns the modified reference bundles in
// insertion order.
func (c *ChangeLog) ModifiedRefBundles() []*refs.NodeReferences {
	out := make([]*refs.NodeReferences, 0, len(c.refOrder))
	for _, target := range c.refOrder {
		out = append(out, c.refsByID[target])
	}
	return out
}

// Get looks up id across all three item sets.
func (c *ChangeLog) Get(id itemid.ID) (*itemstate.State, bool) {
	if s, ok := c.added.get(id); ok {
		return s, true
	}
	if s, ok := c.modified.get(id); ok {
		return s, true
	}
	if s, ok := c.deleted.get(id); ok {
		return s, true
	}
	return nil, false
}

// IsDeleted reports whether id is recorded as deleted in this log —
// used by Phase A's reference-target check (spec.md §4.2).
func (c *ChangeLog) IsDeleted(id itemid.ID) bool {
	_, ok := c.deleted.get(id)
	return ok
}

// allItems returns every item state across the three sets, in
// added-modified-deleted order.
func (c *ChangeLog) allItems() []*itemstate.State {
	out := make([]*itemstate.State, 0, len(c.added.order)+len(c.modified.order)+len(c.deleted.order))
	out = append(out, c.added.list()...)
	out = append(out, c.modified.list()...)
	out = append(out, c.deleted.list()...)
	return out
}

// Push copies every connected transient item's working data into its
// overlayed shared peer (spec.md §4.2 Phase D). Items without a
// connected peer are skipped — Push is called by the manager only after
// Phase B's reconnection has run.
func (c *ChangeLog) Push() error {
	for _, s := range c.allItems() {
		if s.Overlayed() == nil {
			continue
		}
		if err := s.Push(); err != nil {
			return err
		}
	}
	return nil
}

// Persisted invokes the post-commit status transition (spec.md §4.2
// Phase F) on every connected item's shared peer.
func (c *ChangeLog) Persisted() {
	for _, s := range c.allItems() {
		if shared := s.Overlayed(); shared != nil {
			shared.Persisted()
		}
	}
}

// Reset clears the log, returning it to the empty state for reuse.
func (c *ChangeLog) Reset() {
	c.added = newSet()
	c.modified = newSet()
	c.deleted = newSet()
	c.refOrder = nil
	c.refsByID = make(map[uuid.UUID]*refs.NodeReferences)
}

// Empty reports whether the log has no pending mutations at all.
func (c *ChangeLog) Empty() bool {
	return len(c.added.order) == 0 && len(c.modified.order) == 0 &&
		len(c.deleted.order) == 0 && len(c.refOrder) == 0
}
