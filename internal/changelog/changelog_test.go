package changelog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/refs"
)

func TestAddedDedupesByID(t *testing.T) {
	id := itemid.NodeID(uuid.New())
	log := New()
	log.Added(itemstate.NewNodeState(id, itemstate.StatusNew, &itemstate.NodeData{}, ""))
	log.Added(itemstate.NewNodeState(id, itemstate.StatusNew, &itemstate.NodeData{NodeTypeName: "second"}, ""))

	items := log.AddedItems()
	require.Len(t, items, 1)
	data, _ := items[0].Node()
	assert.Equal(t, "second", data.NodeTypeName, "re-adding the same id replaces the prior entry")
}

func TestGetSpansAllThreeSets(t *testing.T) {
	log := New()
	added := itemid.NodeID(uuid.New())
	modified := itemid.NodeID(uuid.New())
	deleted := itemid.NodeID(uuid.New())

	log.Added(itemstate.NewNodeState(added, itemstate.StatusNew, &itemstate.NodeData{}, ""))
	log.Modified(itemstate.NewNodeState(modified, itemstate.StatusExisting, &itemstate.NodeData{}, ""))
	log.Deleted(itemstate.NewNodeState(deleted, itemstate.StatusExisting, &itemstate.NodeData{}, ""))

	for _, id := range []itemid.ID{added, modified, deleted} {
		_, ok := log.Get(id)
		assert.True(t, ok, "Get must find %s", id)
	}
	_, ok := log.Get(itemid.NodeID(uuid.New()))
	assert.False(t, ok)
}

func TestIsDeleted(t *testing.T) {
	log := New()
	id := itemid.NodeID(uuid.New())
	log.Deleted(itemstate.NewNodeState(id, itemstate.StatusExisting, &itemstate.NodeData{}, ""))

	assert.True(t, log.IsDeleted(id))
	assert.False(t, log.IsDeleted(itemid.NodeID(uuid.New())))
}

func TestPushRequiresConnection(t *testing.T) {
	log := New()
	id := itemid.NodeID(uuid.New())
	transient := itemstate.NewNodeState(id, itemstate.StatusNew, &itemstate.NodeData{NodeTypeName: "x"}, "")
	log.Added(transient)

	// Unconnected items are skipped, not an error.
	require.NoError(t, log.Push())

	shared := itemstate.NewNodeState(id, itemstate.StatusNew, &itemstate.NodeData{}, "")
	require.NoError(t, transient.Connect(shared))
	require.NoError(t, log.Push())

	data, _ := shared.Node()
	assert.Equal(t, "x", data.NodeTypeName)
}

func TestPersistedDrivesConnectedSharedPeers(t *testing.T) {
	log := New()
	id := itemid.NodeID(uuid.New())
	shared := itemstate.NewNodeState(id, itemstate.StatusNew, &itemstate.NodeData{}, "")
	transient := itemstate.NewNodeState(id, itemstate.StatusNew, &itemstate.NodeData{}, "")
	require.NoError(t, transient.Connect(shared))
	log.Added(transient)

	log.Persisted()
	assert.Equal(t, itemstate.StatusExisting, shared.Status())
}

func TestResetClearsEverything(t *testing.T) {
	log := New()
	log.Added(itemstate.NewNodeState(itemid.NodeID(uuid.New()), itemstate.StatusNew, &itemstate.NodeData{}, ""))
	log.ModifiedRefs(refs.NewNodeReferences(uuid.New()))
	assert.False(t, log.Empty())

	log.Reset()
	assert.True(t, log.Empty())
}

func TestModifiedRefBundlesOrderedByInsertion(t *testing.T) {
	log := New()
	a := uuid.New()
	b := uuid.New()
	log.ModifiedRefs(refs.NewNodeReferences(a))
	log.ModifiedRefs(refs.NewNodeReferences(b))

	bundles := log.ModifiedRefBundles()
	require.Len(t, bundles, 2)
	assert.Equal(t, a, bundles[0].Target)
	assert.Equal(t, b, bundles[1].Target)
}
