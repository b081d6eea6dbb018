package memstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemstate/core/internal/changelog"
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/persistence"
	"github.com/itemstate/core/internal/refs"
)

func TestExistsFalseBeforeStore(t *testing.T) {
	s := New()
	assert.False(t, s.Exists(itemid.NodeID(uuid.New())))
}

func TestStoreThenLoadNode(t *testing.T) {
	s := New()
	id := itemid.NodeID(uuid.New())
	u, _ := id.NodeUUID()

	log := changelog.New()
	log.Added(itemstate.NewNodeState(id, itemstate.StatusNew, &itemstate.NodeData{UUID: u, NodeTypeName: "nt:unstructured"}, "def-1"))
	require.NoError(t, s.Store(context.Background(), log))

	assert.True(t, s.Exists(id))
	data, defID, err := s.LoadNode(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "nt:unstructured", data.NodeTypeName)
	assert.Equal(t, "def-1", defID)
}

func TestLoadMissingNodeIsNoSuchItem(t *testing.T) {
	s := New()
	_, _, err := s.LoadNode(context.Background(), itemid.NodeID(uuid.New()))
	assert.ErrorIs(t, err, persistence.ErrNoSuchItem)
}

func TestStoreDeleteRemovesItem(t *testing.T) {
	s := New()
	id := itemid.NodeID(uuid.New())
	u, _ := id.NodeUUID()

	addLog := changelog.New()
	addLog.Added(itemstate.NewNodeState(id, itemstate.StatusNew, &itemstate.NodeData{UUID: u}, ""))
	require.NoError(t, s.Store(context.Background(), addLog))

	delLog := changelog.New()
	delLog.Deleted(itemstate.NewNodeState(id, itemstate.StatusExistingRemoved, &itemstate.NodeData{UUID: u}, ""))
	require.NoError(t, s.Store(context.Background(), delLog))

	assert.False(t, s.Exists(id))
}

func TestLoadNodeReferencesRoundTrip(t *testing.T) {
	s := New()
	target := uuid.New()
	referrer := itemid.PropertyID(uuid.New(), itemid.NewQName("", "ref"))

	bundle := refs.NewNodeReferences(target)
	bundle.Add(referrer)

	log := changelog.New()
	log.ModifiedRefs(bundle)
	require.NoError(t, s.Store(context.Background(), log))

	got, err := s.LoadNodeReferences(context.Background(), refs.NewNodeReferencesID(target))
	require.NoError(t, err)
	assert.Equal(t, []itemid.ID{referrer}, got.Referrers)
}

func TestLoadNodeReferencesMissingIsNoSuchItem(t *testing.T) {
	s := New()
	_, err := s.LoadNodeReferences(context.Background(), refs.NewNodeReferencesID(uuid.New()))
	assert.ErrorIs(t, err, persistence.ErrNoSuchItem)
}

func TestStoreIsAllOrNothingPerCall(t *testing.T) {
	s := New()
	id1 := itemid.NodeID(uuid.New())
	id2 := itemid.NodeID(uuid.New())
	u1, _ := id1.NodeUUID()
	u2, _ := id2.NodeUUID()

	log := changelog.New()
	log.Added(itemstate.NewNodeState(id1, itemstate.StatusNew, &itemstate.NodeData{UUID: u1}, ""))
	log.Added(itemstate.NewNodeState(id2, itemstate.StatusNew, &itemstate.NodeData{UUID: u2}, ""))
	require.NoError(t, s.Store(context.Background(), log))

	assert.True(t, s.Exists(id1))
	assert.True(t, s.Exists(id2))
}
