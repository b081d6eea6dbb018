package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemstate/core/internal/changelog"
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
)

type fakeSource struct{}

func (fakeSource) GetPrePushState(itemid.ID) (bool, bool) { return true, true }

func TestCreateEventStatesOneNodeAddedOnePropertyChanged(t *testing.T) {
	log := changelog.New()

	nodeID := itemid.NodeID(uuid.New())
	log.Added(itemstate.NewNodeState(nodeID, itemstate.StatusNew, &itemstate.NodeData{}, ""))

	propID := itemid.PropertyID(uuid.New(), itemid.NewQName("", "title"))
	log.Modified(itemstate.NewPropertyState(propID, itemstate.StatusExisting, &itemstate.PropertyData{}, ""))

	c := NewCollection(nil)
	require.NoError(t, c.CreateEventStates(context.Background(), log, fakeSource{}))

	evs := c.Events()
	require.Len(t, evs, 2)

	var gotAdded, gotChanged bool
	for _, ev := range evs {
		switch ev.Type {
		case NodeAdded:
			gotAdded = true
			assert.Equal(t, nodeID, ev.ItemID)
		case PropertyChanged:
			gotChanged = true
			assert.Equal(t, propID, ev.ItemID)
		}
	}
	assert.True(t, gotAdded)
	assert.True(t, gotChanged)
}

func TestModifiedNodeProducesNoEvent(t *testing.T) {
	log := changelog.New()
	log.Modified(itemstate.NewNodeState(itemid.NodeID(uuid.New()), itemstate.StatusExisting, &itemstate.NodeData{}, ""))

	c := NewCollection(nil)
	require.NoError(t, c.CreateEventStates(context.Background(), log, fakeSource{}))
	assert.Empty(t, c.Events())
}

func TestDeletedItemsProduceRemovedEvents(t *testing.T) {
	log := changelog.New()
	nodeID := itemid.NodeID(uuid.New())
	propID := itemid.PropertyID(uuid.New(), itemid.NewQName("", "x"))
	log.Deleted(itemstate.NewNodeState(nodeID, itemstate.StatusExisting, &itemstate.NodeData{}, ""))
	log.Deleted(itemstate.NewPropertyState(propID, itemstate.StatusExisting, &itemstate.PropertyData{}, ""))

	c := NewCollection(nil)
	require.NoError(t, c.CreateEventStates(context.Background(), log, fakeSource{}))

	var types []Type
	for _, ev := range c.Events() {
		types = append(types, ev.Type)
	}
	assert.ElementsMatch(t, []Type{NodeRemoved, PropertyRemoved}, types)
}

func TestDispatchBeforePrepareFails(t *testing.T) {
	c := NewCollection(nil)
	err := c.Dispatch()
	assert.Error(t, err)
}

func TestPrepareThenDispatchCallsSink(t *testing.T) {
	var dispatched []Event
	c := NewCollection(func(evs []Event) error {
		dispatched = evs
		return nil
	})

	log := changelog.New()
	log.Added(itemstate.NewNodeState(itemid.NodeID(uuid.New()), itemstate.StatusNew, &itemstate.NodeData{}, ""))
	require.NoError(t, c.CreateEventStates(context.Background(), log, fakeSource{}))
	require.NoError(t, c.Prepare())
	require.NoError(t, c.Dispatch())

	assert.Len(t, dispatched, 1)
}

func TestCreateEventStatesTwiceFails(t *testing.T) {
	c := NewCollection(nil)
	log := changelog.New()
	require.NoError(t, c.CreateEventStates(context.Background(), log, fakeSource{}))
	err := c.CreateEventStates(context.Background(), log, fakeSource{})
	assert.Error(t, err)
}
