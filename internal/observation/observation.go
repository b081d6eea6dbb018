// Package observation defines the observation-manager contract the
// manager consumes (spec.md §6): a factory for one prepared-then-
// dispatched event collection per commit.
package observation

import (
	"github.com/itemstate/core/internal/events"
)

// Manager is the observation-manager collaborator.
type Manager interface {
	CreateEventStateCollection() *events.Collection
}

// EventStateSource is re-exported so callers outside internal/events
// don't need to import that package just to satisfy CreateEventStates.
type EventStateSource = events.Source

// DefaultManager is a Manager that hands every collection's events to a
// single sink function — the shape a single-process library caller
// wants, as opposed to the teacher's network-distributed observation
// fanout.
type DefaultManager struct {
	Sink func([]events.Event) error
}

// NewDefaultManager builds a Manager whose collections dispatch to sink.
func NewDefaultManager(sink func([]events.Event) error) *DefaultManager {
	return &DefaultManager{Sink: sink}
}

func (m *DefaultManager) CreateEventStateCollection() *events.Collection {
	return events.NewCollection(m.Sink)
}
