// Package virtual defines the virtual-provider capability (spec.md
// §4.3's C6): a pluggable overlay that owns its own subtree and
// arbitrary extra item IDs, composed into the manager's resolution
// order ahead of or behind persistence depending on the operation
// (spec.md §4.2's get_item_state resolution order).
package virtual

import (
	"github.com/google/uuid"

	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/refs"
	"github.com/itemstate/core/internal/values"
)

// Provider is the capability trait spec.md §4.3 enumerates.
type Provider interface {
	// IsVirtualRoot reports whether id is this provider's virtual root.
	IsVirtualRoot(id itemid.ID) bool
	// VirtualRootID returns the node id this provider overlays at.
	VirtualRootID() itemid.ID

	HasItemState(id itemid.ID) bool
	GetItemState(id itemid.ID) (*itemstate.State, error)

	HasNodeState(id itemid.ID) bool
	GetNodeState(id itemid.ID) (*itemstate.State, error)

	HasPropertyState(id itemid.ID) bool
	GetPropertyState(id itemid.ID) (*itemstate.State, error)

	GetNodeReferences(id refs.NodeReferencesID) (*refs.NodeReferences, error)
	// SetNodeReferences accepts bundle r if its target belongs to this
	// provider, returning true if it was accepted.
	SetNodeReferences(r *refs.NodeReferences) bool

	CreateNodeState(parent uuid.UUID, name itemid.QName, id uuid.UUID, typeName string) (*itemstate.State, error)
	CreatePropertyState(parent uuid.UUID, name itemid.QName, typ values.Type, multiValued bool) (*itemstate.State, error)
}
