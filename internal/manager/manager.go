// Package manager implements the shared item-state manager (spec.md
// §4.2's C5): the focus of this module. It resolves ids to shared item
// states, composes virtual providers, runs the commit protocol, and
// notifies listeners — all under the single coarse mutex spec.md §5
// calls for.
package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/nodetype"
	"github.com/itemstate/core/internal/persistence"
	"github.com/itemstate/core/internal/refs"
	"github.com/itemstate/core/internal/statecache"
	"github.com/itemstate/core/internal/virtual"
)

// Manager is the shared item-state manager.
type Manager struct {
	mu sync.Mutex

	cache    *statecache.Cache
	persist  persistence.Engine
	registry nodetype.Registry

	providers atomic.Pointer[[]virtual.Provider]

	rootID itemid.ID
	logger *zap.Logger
	poisoned bool

	metrics *metrics
}

// New constructs a Manager backed by persist and registry, bootstrapping
// the repository root if it does not already exist in persistence
// (spec.md §3 Lifecycle). meter may be nil.
func New(ctx context.Context, persist persistence.Engine, registry nodetype.Registry, cfg Config, meter metric.Meter) (*Manager, error) {
	m := &Manager{
		persist:  persist,
		registry: registry,
		rootID:   itemid.NodeID(cfg.RootUUID),
		logger:   cfg.logger(),
		metrics:  newMetrics(meter),
	}
	empty := []virtual.Provider{}
	m.providers.Store(&empty)

	// The eviction hook only detaches the manager as a listener. Re-entry
	// into the cache itself always happens one level up, from
	// StateDestroyed/StateDiscarded, never from inside this callback, so
	// there is no risk of the cache's internal lock being re-entered
	// while already held.
	cache, err := statecache.New(cfg.CacheCapacity, func(_ itemid.ID, s *itemstate.State) {
		s.RemoveListener(m)
	})
	if err != nil {
		return nil, fmt.Errorf("manager: new: %w", err)
	}
	m.cache = cache

	if err := m.bootstrap(ctx, cfg.RootTypeName); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) providersSnapshot() []virtual.Provider {
	p := m.providers.Load()
	if p == nil {
		return nil
	}
	return *p
}

// AddVirtualProvider appends p to the provider list. Registration order
// is stable and defines overlay precedence (spec.md §4.2). The list is
// copy-on-write (spec.md §9) so concurrent GetItemState calls never see
// a torn read.
func (m *Manager) AddVirtualProvider(p virtual.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.providersSnapshot()
	next := make([]virtual.Provider, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, p)
	m.providers.Store(&next)
}

// GetItemState resolves id following spec.md §4.2's order: virtual root
// match, then local cache/persistence, then provider HasItemState in
// registration order, else ErrNoSuchItem.
func (m *Manager) GetItemState(ctx context.Context, id itemid.ID) (*itemstate.State, error) {
	start := time.Now()
	m.mu.Lock()
	m.metrics.recordMutexWait(ctx, time.Since(start))
	defer m.mu.Unlock()

	if m.poisoned {
		return nil, ErrManagerPoisoned
	}
	return m.getItemStateLocked(ctx, id)
}

func (m *Manager) getItemStateLocked(ctx context.Context, id itemid.ID) (*itemstate.State, error) {
	providers := m.providersSnapshot()

	for _, p := range providers {
		if p.IsVirtualRoot(id) {
			s, err := safeProviderGet(p, id)
			if err != nil {
				return nil, fmt.Errorf("%w: virtual root %s: %v", ErrNoSuchItem, id, err)
			}
			return s, nil
		}
	}

	if s, ok := m.cache.Retrieve(id); ok {
		return s, nil
	}
	if m.persist.Exists(id) {
		return m.loadLocal(ctx, id)
	}

	for _, p := range providers {
		if safeProviderHas(p, id) {
			s, err := safeProviderGet(p, id)
			if err != nil {
				continue
			}
			return s, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoSuchItem, id)
}

// loadLocal loads id from persistence, caches it as EXISTING, registers
// the manager as its listener, and returns it.
func (m *Manager) loadLocal(ctx context.Context, id itemid.ID) (*itemstate.State, error) {
	var s *itemstate.State
	if id.IsNode() {
		data, defID, err := m.persist.LoadNode(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNoSuchItem, id, err)
		}
		s = itemstate.NewNodeState(id, itemstate.StatusExisting, data, defID)
	} else {
		data, defID, err := m.persist.LoadProperty(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNoSuchItem, id, err)
		}
		s = itemstate.NewPropertyState(id, itemstate.StatusExisting, data, defID)
	}
	s.AddListener(m)
	if err := m.cache.Cache(s); err != nil {
		return nil, fmt.Errorf("manager: load %s: %w", id, err)
	}
	return s, nil
}

// HasItemState is GetItemState's boolean-returning sibling. It never
// errors: persistence existence-probe failures and provider failures are
// both swallowed and treated as "not present" (spec.md §7) since the
// commit path re-verifies before it matters.
func (m *Manager) HasItemState(id itemid.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return false
	}
	return m.hasItemStateLocked(id)
}

func (m *Manager) hasItemStateLocked(id itemid.ID) bool {
	providers := m.providersSnapshot()
	for _, p := range providers {
		if p.IsVirtualRoot(id) {
			return true
		}
	}
	if m.cache.IsCached(id) {
		return true
	}
	if m.persist.Exists(id) {
		return true
	}
	for _, p := range providers {
		if safeProviderHas(p, id) {
			return true
		}
	}
	return false
}

// GetNodeReferences loads the reference bundle for target: persistence
// first, then each virtual provider in registration order, else a fresh
// empty bundle. Never cached, per spec.md §3.
func (m *Manager) GetNodeReferences(ctx context.Context, target refs.NodeReferencesID) (*refs.NodeReferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poisoned {
		return nil, ErrManagerPoisoned
	}
	return m.getNodeReferencesLocked(ctx, target)
}

func (m *Manager) getNodeReferencesLocked(ctx context.Context, target refs.NodeReferencesID) (*refs.NodeReferences, error) {
	if r, err := m.persist.LoadNodeReferences(ctx, target); err == nil {
		return r, nil
	}
	for _, p := range m.providersSnapshot() {
		if r, err := p.GetNodeReferences(target); err == nil {
			return r, nil
		}
	}
	return refs.NewNodeReferences(target.Target), nil
}

// Dispose evicts all cached states and detaches all listeners.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.EvictAll()
}

// Reload clears the poisoned flag and the cache, so the next
// GetItemState call re-reads everything from persistence. This is the
// fail-stop recovery path SPEC_FULL.md picks for a Phase E failure.
func (m *Manager) Reload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.EvictAll()
	m.poisoned = false
}

// safeProviderHas treats a panicking provider as "not present"
// (ProviderFailure, spec.md §7).
func safeProviderHas(p virtual.Provider, id itemid.ID) (has bool) {
	defer func() {
		if recover() != nil {
			has = false
		}
	}()
	return p.HasItemState(id)
}

// safeProviderGet treats a panicking provider the same way.
func safeProviderGet(p virtual.Provider, id itemid.ID) (s *itemstate.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("provider panic: %v", r)
		}
	}()
	return p.GetItemState(id)
}
