package manager

import (
	"errors"

	"go.uber.org/zap"

	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/statecache"
)

// The manager registers itself as the itemstate.Listener on every state
// it loads or creates (loadLocal, Phase B's reconnection). These four
// methods are the notification side of spec.md §5's lifecycle contract.

// StateCreated caches s, now that it has reached EXISTING. Phase B only
// registers the manager as a listener on added items; this callback is
// where they enter the cache. Idempotent: a state whose id is already
// cached is left alone.
func (m *Manager) StateCreated(s *itemstate.State) {
	if err := m.cache.Cache(s); err != nil && !errors.Is(err, statecache.ErrAlreadyCached) {
		m.logger.Error("manager: cache on state_created", zap.Error(err))
	}
}

// StateModified is a no-op: the cache already holds s by reference, so
// there is nothing to update.
func (m *Manager) StateModified(*itemstate.State) {}

// StateDestroyed evicts s from the cache. The eviction callback
// (statecache.New's onEvict) detaches the manager as s's listener.
func (m *Manager) StateDestroyed(s *itemstate.State) {
	m.cache.Evict(s.ID())
}

// StateDiscarded handles an externally caused invalidation (a virtual
// provider replacing its root) exactly like StateDestroyed — spec.md
// §4.2: "the manager's response to state_discarded is identical to
// state_destroyed."
func (m *Manager) StateDiscarded(s *itemstate.State) {
	m.StateDestroyed(s)
}
