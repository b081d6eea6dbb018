package manager

import (
	"context"
	"fmt"

	"github.com/itemstate/core/internal/changelog"
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/nodetype"
	"github.com/itemstate/core/internal/values"
)

// bootstrap creates the repository root if persistence doesn't already
// have it, populating its mandatory properties from the registry
// (SPEC_FULL.md supplement 1). A registry with no root type, or a root
// type with no mandatory properties, is SchemaFailure: spec.md §8
// scenario 1 requires the root to carry at least jcr:primaryType.
func (m *Manager) bootstrap(ctx context.Context, rootTypeName string) error {
	if m.persist.Exists(m.rootID) {
		return nil
	}
	if rootTypeName == "" {
		rootTypeName = m.registry.RootType()
	}
	if rootTypeName == "" {
		return fmt.Errorf("%w: registry has no root type", ErrSchemaFailure)
	}
	mandatory := m.registry.MandatoryProperties(rootTypeName)
	if len(mandatory) == 0 {
		return fmt.Errorf("%w: type %q declares no mandatory properties", ErrSchemaFailure, rootTypeName)
	}

	rootUUID, _ := m.rootID.NodeUUID()
	rootData := m.persist.CreateNew(m.rootID)
	rootData.UUID = rootUUID
	rootData.HasParent = false
	rootData.NodeTypeName = rootTypeName

	log := changelog.New()
	rootState := itemstate.NewNodeState(m.rootID, itemstate.StatusNew, rootData, "")
	log.Added(rootState)

	for _, def := range mandatory {
		propID := itemid.PropertyID(rootUUID, def.Name)
		propData := m.persist.CreateNewProperty(propID)
		propData.Name = def.Name
		propData.ParentUUID = rootUUID
		propData.Type = def.Type
		propData.MultiValued = def.MultiValued
		propData.Values = append(propData.Values, defaultPropertyValues(def, rootTypeName)...)
		rootData.PropertyNames = append(rootData.PropertyNames, def.Name.Local)
		log.Added(itemstate.NewPropertyState(propID, itemstate.StatusNew, propData, ""))
	}

	if err := m.persist.Store(ctx, log); err != nil {
		return fmt.Errorf("%w: bootstrap: %v", ErrPersistenceFailure, err)
	}
	return nil
}

// defaultPropertyValues picks the value a mandatory property bootstraps
// with when the registry declares no explicit default. jcr:primaryType
// (a NAME property) defaults to the node's own type name — spec.md §8
// scenario 1's literal expectation.
func defaultPropertyValues(def nodetype.PropertyDefinition, rootTypeName string) []values.Value {
	if len(def.Defaults) > 0 {
		return def.Defaults
	}
	if def.Type == values.TypeName {
		return []values.Value{values.NewName(itemid.NewQName("", rootTypeName))}
	}
	return nil
}
