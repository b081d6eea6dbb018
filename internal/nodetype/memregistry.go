package nodetype

import (
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/values"
)

// JCRNamespace is the conventional "jcr:" namespace URI used by the
// bootstrap properties in spec.md §8 scenario 1.
const JCRNamespace = "http://www.jcp.org/jcr/1.0"

// MemRegistry is a small in-memory Registry, good enough to bootstrap a
// manager and exercise it in tests without a real schema-parsing
// collaborator.
type MemRegistry struct {
	rootType  string
	mandatory map[string][]PropertyDefinition
}

// NewMemRegistry builds a registry whose root type is rootType and which
// declares rep:root's single mandatory property, jcr:primaryType, a NAME
// value equal to rootType — spec.md §8 scenario 1.
func NewMemRegistry(rootType string) *MemRegistry {
	primaryType := PropertyDefinition{
		Name: itemid.NewQName(JCRNamespace, "primaryType"),
		Type: values.TypeName,
	}
	return &MemRegistry{
		rootType: rootType,
		mandatory: map[string][]PropertyDefinition{
			rootType: {primaryType},
		},
	}
}

func (r *MemRegistry) RootType() string { return r.rootType }

func (r *MemRegistry) MandatoryProperties(typeName string) []PropertyDefinition {
	return r.mandatory[typeName]
}

// DeclareMandatory registers additional mandatory properties for
// typeName, for tests that need more than the root type.
func (r *MemRegistry) DeclareMandatory(typeName string, defs ...PropertyDefinition) {
	r.mandatory[typeName] = append(r.mandatory[typeName], defs...)
}
