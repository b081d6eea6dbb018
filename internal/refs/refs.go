// Package refs implements the reference-bundle model from spec.md §3:
// the set of REFERENCE-property back-pointers to a target node, keyed
// by the target's UUID.
package refs

import (
	"github.com/google/uuid"

	"github.com/itemstate/core/internal/itemid"
)

// NodeReferencesID identifies a reference bundle by the UUID of the node
// it points at.
type NodeReferencesID struct {
	Target uuid.UUID
}

// NewNodeReferencesID builds the bundle ID for target.
func NewNodeReferencesID(target uuid.UUID) NodeReferencesID {
	return NodeReferencesID{Target: target}
}

// NodeReferences is the set of PropertyIds that hold a REFERENCE value
// pointing at Target. Bundles are loaded on demand and, per spec.md §3,
// never cached by the core — the commit path is the only writer and it
// reads fresh per commit.
type NodeReferences struct {
	Target    uuid.UUID
	Referrers []itemid.ID
}

// NewNodeReferences builds an empty bundle for target, the shape
// get_node_references returns on an all-miss lookup (spec.md §4.2).
func NewNodeReferences(target uuid.UUID) *NodeReferences {
	return &NodeReferences{Target: target}
}

// ID returns the bundle's identity.
func (r *NodeReferences) ID() NodeReferencesID {
	return NewNodeReferencesID(r.Target)
}

// IsEmpty reports whether the bundle has no remaining references —
// spec.md §3 invariant 5 and §4.2 Phase A step 3 both special-case this.
func (r *NodeReferences) IsEmpty() bool {
	return r == nil || len(r.Referrers) == 0
}

// Add appends a referrer. Dedupes by identity.
func (r *NodeReferences) Add(referrer itemid.ID) {
	for _, existing := range r.Referrers {
		if existing == referrer {
			return
		}
	}
	r.Referrers = append(r.Referrers, referrer)
}

// Remove drops a referrer if present.
func (r *NodeReferences) Remove(referrer itemid.ID) {
	for i, existing := range r.Referrers {
		if existing == referrer {
			r.Referrers = append(r.Referrers[:i], r.Referrers[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy, so callers can hand out bundles without
// letting recipients mutate the caller's copy.
func (r *NodeReferences) Clone() *NodeReferences {
	if r == nil {
		return nil
	}
	cp := &NodeReferences{Target: r.Target}
	cp.Referrers = append(cp.Referrers, r.Referrers...)
	return cp
}
