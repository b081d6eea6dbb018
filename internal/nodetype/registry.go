// Package nodetype defines the node-type registry contract the manager
// consumes as a read-only oracle (spec.md §6): what a root node's type
// is, and what a type's mandatory default children/properties are. The
// registry itself — schema parsing — is out of scope (spec.md §1); only
// the lookup surface lives here, plus a small in-memory implementation
// for bootstrap and tests.
package nodetype

import (
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/values"
)

// PropertyDefinition describes a mandatory default property a node of a
// given type must carry (SPEC_FULL.md supplement 1).
type PropertyDefinition struct {
	Name        itemid.QName
	Type        values.Type
	MultiValued bool
	Defaults    []values.Value
}

// Registry is the read-only node-type oracle consumed by the manager.
type Registry interface {
	// RootType returns the node type name the repository root must
	// have. Empty means the registry has no root definition — the
	// manager treats that as SchemaFailure at bootstrap.
	RootType() string

	// MandatoryProperties returns the mandatory default properties for
	// typeName, in the order they should be created.
	MandatoryProperties(typeName string) []PropertyDefinition
}
