package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/itemstate/core/internal/changelog"
	"github.com/itemstate/core/internal/events"
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/observation"
	"github.com/itemstate/core/internal/refs"
)

// GetPrePushState satisfies events.Source: it reports whether an id is
// already known, and as what shape, before Phase D's push makes any
// shared-side change visible. Phase C passes the manager as the Source;
// CreateEventStates derives its events from the change log alone and
// does not call this method.
func (m *Manager) GetPrePushState(id itemid.ID) (isNode bool, exists bool) {
	return id.IsNode(), m.hasItemStateLocked(id)
}

// Store runs the eight-phase commit protocol of spec.md §4.2 over log,
// the single global commit serialization point (spec.md §5). obs may be
// nil, in which case no events are derived or dispatched.
func (m *Manager) Store(ctx context.Context, log *changelog.ChangeLog, obs observation.Manager) (err error) {
	start := time.Now()
	m.mu.Lock()
	m.metrics.recordMutexWait(ctx, time.Since(start))
	defer m.mu.Unlock()

	defer func() {
		m.metrics.recordCommit(ctx, err == nil)
	}()

	if m.poisoned {
		return ErrManagerPoisoned
	}

	sharedLog := changelog.New()

	// Phase A: reference validation and splitting.
	virtualRefs, err := m.phaseAValidateRefs(log, sharedLog)
	if err != nil {
		return err
	}

	// Phase B: reconnection.
	if err := m.phaseBReconnect(ctx, log, sharedLog); err != nil {
		return err
	}

	// Phase C: event preparation, a pure read of the pre-push shared
	// state — must run before Phase D pushes anything.
	var collection *events.Collection
	if obs != nil {
		collection = obs.CreateEventStateCollection()
		if err := collection.CreateEventStates(ctx, log, m); err != nil {
			return fmt.Errorf("manager: commit: phase C: %w", err)
		}
		if err := collection.Prepare(); err != nil {
			return fmt.Errorf("manager: commit: phase C: %w", err)
		}
	}

	// Phase D: push transient data onto the connected shared peers.
	if err := log.Push(); err != nil {
		return fmt.Errorf("manager: commit: phase D: %w", err)
	}

	// Phase E: durable store. A failure here poisons the manager
	// (SPEC_FULL.md supplement 2's fail-stop decision) since shared
	// in-memory state may now be ahead of what is durable.
	if err := m.persist.Store(ctx, sharedLog); err != nil {
		m.poisoned = true
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	// Phase F: publication. Fires state_created/state_modified/
	// state_destroyed, which in turn drive this manager's own
	// StateCreated/StateDestroyed listener methods.
	for _, s := range sharedLog.AddedItems() {
		s.Persisted()
	}
	for _, s := range sharedLog.ModifiedItems() {
		s.Persisted()
	}
	for _, s := range sharedLog.DeletedItems() {
		s.Persisted()
	}

	// Phase G: virtual reference handoff. Bundles no provider claims are
	// silently dropped — nothing in spec.md §4.2 asks for an error here,
	// since a bundle only reaches virtualRefs when some provider already
	// claimed it in Phase A.
	for _, r := range virtualRefs {
		for _, p := range m.providersSnapshot() {
			if p.SetNodeReferences(r) {
				break
			}
		}
	}

	// Phase H: event dispatch, strictly after durable store succeeded.
	if collection != nil {
		if err := collection.Dispatch(); err != nil {
			return fmt.Errorf("manager: commit: phase H: %w", err)
		}
	}

	log.Reset()
	return nil
}

// phaseAValidateRefs classifies each modified reference bundle in log:
// claimed by a virtual provider (set aside into the returned slice, not
// entered into sharedLog), or resolved locally (entered into sharedLog,
// after checking a non-empty bundle's target actually resolves
// somewhere — spec.md §4.2 Phase A, §3 invariant 5).
func (m *Manager) phaseAValidateRefs(log, sharedLog *changelog.ChangeLog) ([]*refs.NodeReferences, error) {
	var virtualRefs []*refs.NodeReferences

	for _, bundle := range log.ModifiedRefBundles() {
		targetID := itemid.NodeID(bundle.Target)
		claimed := false
		for _, p := range m.providersSnapshot() {
			if safeProviderHas(p, targetID) {
				claimed = true
				break
			}
		}
		if claimed {
			virtualRefs = append(virtualRefs, bundle)
			continue
		}

		if !bundle.IsEmpty() {
			_, inLog := log.Get(targetID)
			resolvable := (inLog && !log.IsDeleted(targetID)) || m.hasItemStateLocked(targetID)
			if !resolvable {
				return nil, fmt.Errorf("%w: target %s", ErrReferentialIntegrity, targetID)
			}
		}

		sharedLog.ModifiedRefs(bundle)
	}

	return virtualRefs, nil
}

// phaseBReconnect binds every transient item in log to a shared peer:
// added items get a freshly allocated shared peer from persistence,
// modified/deleted items connect to their existing shared peer. Each
// connected shared peer is recorded into sharedLog, the unit Phase E
// persists.
func (m *Manager) phaseBReconnect(ctx context.Context, log, sharedLog *changelog.ChangeLog) error {
	for _, t := range log.AddedItems() {
		id := t.ID()
		shared, err := m.newSharedPeer(t)
		if err != nil {
			return fmt.Errorf("manager: commit: phase B: %s: %w", id, err)
		}
		shared.AddListener(m)
		if err := t.Connect(shared); err != nil {
			return fmt.Errorf("manager: commit: phase B: %s: %w", id, errAlreadyConnected)
		}
		sharedLog.Added(shared)
	}

	for _, t := range log.ModifiedItems() {
		id := t.ID()
		shared, err := m.getItemStateLocked(ctx, id)
		if err != nil {
			return fmt.Errorf("manager: commit: phase B: modified %s: %w", id, err)
		}
		if err := t.Connect(shared); err != nil {
			return fmt.Errorf("manager: commit: phase B: %s: %w", id, errAlreadyConnected)
		}
		shared.MarkModified()
		sharedLog.Modified(shared)
	}

	for _, t := range log.DeletedItems() {
		id := t.ID()
		shared, err := m.getItemStateLocked(ctx, id)
		if err != nil {
			return fmt.Errorf("manager: commit: phase B: deleted %s: %w", id, err)
		}
		if err := t.Connect(shared); err != nil {
			return fmt.Errorf("manager: commit: phase B: %s: %w", id, errAlreadyConnected)
		}
		shared.MarkRemoved()
		sharedLog.Deleted(shared)
	}

	return nil
}

// newSharedPeer allocates the NEW-status shared peer an added transient
// item connects to, via the persistence engine's no-I/O constructors.
func (m *Manager) newSharedPeer(t *itemstate.State) (*itemstate.State, error) {
	id := t.ID()
	if id.IsNode() {
		data := m.persist.CreateNew(id)
		return itemstate.NewNodeState(id, itemstate.StatusNew, data, t.DefinitionID()), nil
	}
	data := m.persist.CreateNewProperty(id)
	return itemstate.NewPropertyState(id, itemstate.StatusNew, data, t.DefinitionID()), nil
}
