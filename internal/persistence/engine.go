// Package persistence defines the persistence engine contract the
// manager consumes (spec.md §6): per-id load, existence probing,
// NEW-status construction with no I/O, and one atomic change-log store.
// Byte-level storage is explicitly out of scope for the core (spec.md
// §1); this package is the seam, plus two concrete engines
// (internal/persistence/memstore, internal/persistence/sqlitepersist).
package persistence

import (
	"context"
	"errors"

	"github.com/itemstate/core/internal/changelog"
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/refs"
)

// ErrNoSuchItem is returned by Load* when the requested id is not
// present in durable storage.
var ErrNoSuchItem = errors.New("persistence: no such item")

// Engine is the persistence engine contract.
type Engine interface {
	// LoadNode loads a node's durable state. Returns ErrNoSuchItem if
	// id is not a node or is not present.
	LoadNode(ctx context.Context, id itemid.ID) (*itemstate.NodeData, string, error)

	// LoadProperty loads a property's durable state. Returns
	// ErrNoSuchItem if id is not a property or is not present.
	LoadProperty(ctx context.Context, id itemid.ID) (*itemstate.PropertyData, string, error)

	// LoadNodeReferences loads the reference bundle for id. Returns
	// ErrNoSuchItem on a miss — callers fall back to virtual providers
	// and finally to a fresh empty bundle (spec.md §4.2).
	LoadNodeReferences(ctx context.Context, id refs.NodeReferencesID) (*refs.NodeReferences, error)

	// Exists reports whether id is present in durable storage. Per
	// spec.md §7, probing errors are swallowed by implementations and
	// treated as "not present" — the interface deliberately has no
	// error return so callers cannot accidentally propagate one.
	Exists(id itemid.ID) bool

	// CreateNew returns a fresh NEW-status node peer for id. No I/O.
	CreateNew(id itemid.ID) *itemstate.NodeData

	// CreateNewProperty returns a fresh NEW-status property peer. No I/O.
	CreateNewProperty(id itemid.ID) *itemstate.PropertyData

	// Store durably persists the shared-side change log as one atomic
	// unit. On error, no observable persisted change occurred.
	Store(ctx context.Context, log *changelog.ChangeLog) error
}
