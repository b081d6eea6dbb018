package observation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemstate/core/internal/changelog"
	"github.com/itemstate/core/internal/events"
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
)

type fakeSource struct{}

func (fakeSource) GetPrePushState(itemid.ID) (bool, bool) { return true, false }

func TestDefaultManagerRoutesToSink(t *testing.T) {
	var got []events.Event
	mgr := NewDefaultManager(func(evs []events.Event) error {
		got = evs
		return nil
	})

	log := changelog.New()
	log.Added(itemstate.NewNodeState(itemid.NodeID(uuid.New()), itemstate.StatusNew, &itemstate.NodeData{}, ""))

	c := mgr.CreateEventStateCollection()
	require.NoError(t, c.CreateEventStates(context.Background(), log, fakeSource{}))
	require.NoError(t, c.Prepare())
	require.NoError(t, c.Dispatch())

	assert.Len(t, got, 1)
}

func TestDefaultManagerNilSinkIsSafe(t *testing.T) {
	mgr := NewDefaultManager(nil)
	c := mgr.CreateEventStateCollection()
	require.NoError(t, c.Prepare())
	assert.NoError(t, c.Dispatch())
}
