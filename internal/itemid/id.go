// Package itemid defines the identity model for items in the shared
// item-state manager: UUIDs for nodes, namespace-qualified names for
// properties, and the tagged ItemId variant that addresses either.
package itemid

import (
	"fmt"

	"github.com/google/uuid"
)

// kind discriminates the two ID shapes. Unexported: callers go through
// NodeID/PropertyID and the IsNode/NodeUUID/PropertyParent/PropertyName
// accessors rather than constructing or branching on it directly.
type kind uint8

const (
	kindNode kind = iota
	kindProperty
)

// ID is a tagged variant over the two item identities the repository
// knows about: a node, addressed by its own UUID, or a property,
// addressed by its parent node's UUID plus a qualified name. ID is a
// plain comparable value (safe as a map key, safe to copy) so the cache
// and change log can use it directly as an identity key.
type ID struct {
	k      kind
	node   uuid.UUID // set when k == kindNode
	parent uuid.UUID // set when k == kindProperty
	name   QName     // set when k == kindProperty
}

// NodeID builds the identity of the node with the given UUID.
func NodeID(u uuid.UUID) ID {
	return ID{k: kindNode, node: u}
}

// PropertyID builds the identity of the property named name on the node
// identified by parent.
func PropertyID(parent uuid.UUID, name QName) ID {
	return ID{k: kindProperty, parent: parent, name: name}
}

// IsNode is the total predicate spec.md §3 calls denotes_node(): every
// ID is either a node ID or a property ID, never neither.
func (id ID) IsNode() bool {
	return id.k == kindNode
}

// NodeUUID returns the node's UUID and true when id denotes a node.
func (id ID) NodeUUID() (uuid.UUID, bool) {
	if id.k != kindNode {
		return uuid.Nil, false
	}
	return id.node, true
}

// PropertyParent returns the owning node's UUID and true when id denotes
// a property.
func (id ID) PropertyParent() (uuid.UUID, bool) {
	if id.k != kindProperty {
		return uuid.Nil, false
	}
	return id.parent, true
}

// PropertyName returns the property's qualified name and true when id
// denotes a property.
func (id ID) PropertyName() (QName, bool) {
	if id.k != kindProperty {
		return QName{}, false
	}
	return id.name, true
}

// ParentUUID returns the UUID of the node this item lives under: the
// node's own UUID is not its parent, so this only makes sense for
// properties. Present as a convenience for callers that already checked
// IsNode.
func (id ID) ParentUUID() uuid.UUID {
	return id.parent
}

// String renders id for logs and error messages. Never parsed back.
func (id ID) String() string {
	if id.k == kindNode {
		return fmt.Sprintf("node:%s", id.node)
	}
	return fmt.Sprintf("prop:%s/%s", id.parent, id.name)
}
