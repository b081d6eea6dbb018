// Package events implements event derivation (spec.md §4's C7): a typed
// event stream built from the diff between a change log and the shared
// state it is about to be pushed onto, derived before the push so
// derivation never observes Phase D's results (spec.md §4.2 Phase C).
package events

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/itemstate/core/internal/changelog"
	"github.com/itemstate/core/internal/itemid"
)

// Type is the event kind, matching the node/property add/change/remove
// shapes the commit protocol can produce.
type Type string

const (
	NodeAdded       Type = "NodeAdded"
	NodeRemoved     Type = "NodeRemoved"
	PropertyAdded   Type = "PropertyAdded"
	PropertyChanged Type = "PropertyChanged"
	PropertyRemoved Type = "PropertyRemoved"
)

// Event is one derived event.
type Event struct {
	Type   Type
	ItemID itemid.ID
	Path   string // best-effort human-readable path, empty if unknown
}

// Source resolves an item id to its pre-push shared state, the same
// contract the manager itself satisfies. CreateEventStates accepts a
// Source but does not call it: every event is derived from the change
// log's own items (their ids and node/property kind).
type Source interface {
	GetPrePushState(id itemid.ID) (isNode bool, exists bool)
}

// Collection is one prepared-then-dispatched batch of events, matching
// the ObservationManager.EventStates contract spec.md §6 names.
type Collection struct {
	events   []Event
	prepared bool
	sink     func([]Event) error
}

// NewCollection builds a collection that, on Dispatch, hands its events
// to sink.
func NewCollection(sink func([]Event) error) *Collection {
	return &Collection{sink: sink}
}

// CreateEventStates derives events from log. source is accepted for
// parity with spec.md's signature and is not consulted; there is no
// traversal from the root since the change log already names every
// affected id directly. A collection derives its events once: a second
// call fails.
//
// Per-item derivation runs concurrently via errgroup since it is a pure
// read of the pre-push snapshot — concurrency here cannot race with
// Phase D because Phase C always completes, sequentially with respect
// to the manager's single commit goroutine, before Phase D starts.
func (c *Collection) CreateEventStates(ctx context.Context, log *changelog.ChangeLog, source Source) error {
	if c.prepared {
		return fmt.Errorf("events: collection already prepared")
	}
	// A non-nil events slice marks that derivation already ran, even when
	// it produced no events.
	if c.events != nil {
		return fmt.Errorf("events: event states already created")
	}
	c.events = []Event{}

	type slot struct {
		idx int
		ev  Event
		ok  bool
	}

	added := log.AddedItems()
	modified := log.ModifiedItems()
	deleted := log.DeletedItems()
	total := len(added) + len(modified) + len(deleted)
	slots := make([]slot, total)

	g, _ := errgroup.WithContext(ctx)
	i := 0
	for _, s := range added {
		idx := i
		i++
		st := s
		g.Go(func() error {
			slots[idx] = slot{idx: idx, ev: deriveAdded(st.ID(), st.IsNode()), ok: true}
			return nil
		})
	}
	for _, s := range modified {
		idx := i
		i++
		st := s
		g.Go(func() error {
			ev, ok := deriveModified(st.ID(), st.IsNode())
			slots[idx] = slot{idx: idx, ev: ev, ok: ok}
			return nil
		})
	}
	for _, s := range deleted {
		idx := i
		i++
		st := s
		g.Go(func() error {
			slots[idx] = slot{idx: idx, ev: deriveDeleted(st.ID(), st.IsNode()), ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, sl := range slots {
		if sl.ok {
			c.events = append(c.events, sl.ev)
		}
	}
	return nil
}

func deriveAdded(id itemid.ID, isNode bool) Event {
	if isNode {
		return Event{Type: NodeAdded, ItemID: id}
	}
	return Event{Type: PropertyAdded, ItemID: id}
}

func deriveModified(id itemid.ID, isNode bool) (Event, bool) {
	if isNode {
		// Plain node modification (reordering, mixin change) has no
		// dedicated event type in this model; only property value
		// changes are surfaced, matching spec.md §8 scenario 5's
		// literal expectation of exactly one PropertyChanged.
		return Event{}, false
	}
	return Event{Type: PropertyChanged, ItemID: id}, true
}

func deriveDeleted(id itemid.ID, isNode bool) Event {
	if isNode {
		return Event{Type: NodeRemoved, ItemID: id}
	}
	return Event{Type: PropertyRemoved, ItemID: id}
}

// Prepare brings the collection to the "prepared but not visible" state
// spec.md §4.2 Phase C requires: after this call events are final but
// not yet dispatched.
func (c *Collection) Prepare() error {
	c.prepared = true
	return nil
}

// Dispatch publishes the events. Per spec.md §4.2 Phase H, the manager
// only calls this strictly after Phase E's durable store has succeeded.
func (c *Collection) Dispatch() error {
	if !c.prepared {
		return fmt.Errorf("events: dispatch before prepare")
	}
	if c.sink == nil {
		return nil
	}
	return c.sink(c.events)
}

// Events returns the derived events, valid after CreateEventStates.
func (c *Collection) Events() []Event {
	return append([]Event(nil), c.events...)
}
