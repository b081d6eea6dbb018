// Package memstore is an in-memory persistence.Engine, used to
// bootstrap and exercise the manager in tests and in the demo binary
// without a real database.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/itemstate/core/internal/changelog"
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/persistence"
	"github.com/itemstate/core/internal/refs"
)

type nodeRecord struct {
	data         *itemstate.NodeData
	definitionID string
}

type propRecord struct {
	data         *itemstate.PropertyData
	definitionID string
}

// Store is a mutex-guarded in-memory table of node/property/reference
// records, keyed exactly the way durable storage would be.
type Store struct {
	mu    sync.Mutex
	nodes map[itemid.ID]nodeRecord
	props map[itemid.ID]propRecord
	refs  map[refs.NodeReferencesID]*refs.NodeReferences
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes: make(map[itemid.ID]nodeRecord),
		props: make(map[itemid.ID]propRecord),
		refs:  make(map[refs.NodeReferencesID]*refs.NodeReferences),
	}
}

func (s *Store) LoadNode(_ context.Context, id itemid.ID) (*itemstate.NodeData, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.nodes[id]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", persistence.ErrNoSuchItem, id)
	}
	cp := *rec.data
	return &cp, rec.definitionID, nil
}

func (s *Store) LoadProperty(_ context.Context, id itemid.ID) (*itemstate.PropertyData, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.props[id]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", persistence.ErrNoSuchItem, id)
	}
	cp := *rec.data
	return &cp, rec.definitionID, nil
}

func (s *Store) LoadNodeReferences(_ context.Context, id refs.NodeReferencesID) (*refs.NodeReferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refs[id]
	if !ok {
		return nil, fmt.Errorf("%w: refs for %s", persistence.ErrNoSuchItem, id.Target)
	}
	return r.Clone(), nil
}

func (s *Store) Exists(id itemid.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.IsNode() {
		_, ok := s.nodes[id]
		return ok
	}
	_, ok := s.props[id]
	return ok
}

func (s *Store) CreateNew(id itemid.ID) *itemstate.NodeData {
	u, _ := id.NodeUUID()
	return &itemstate.NodeData{UUID: u}
}

func (s *Store) CreateNewProperty(id itemid.ID) *itemstate.PropertyData {
	parent, _ := id.PropertyParent()
	name, _ := id.PropertyName()
	return &itemstate.PropertyData{Name: name, ParentUUID: parent}
}

// Store durably applies log as one atomic unit: every added/modified
// node and property is written, every deleted one is removed, and every
// modified reference bundle is recorded. Nothing partially applies —
// the whole function holds the store's mutex for its duration, matching
// the persistence contract's all-or-nothing requirement (spec.md §6).
func (s *Store) Store(_ context.Context, log *changelog.ChangeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range log.AddedItems() {
		s.writeLocked(st)
	}
	for _, st := range log.ModifiedItems() {
		s.writeLocked(st)
	}
	for _, st := range log.DeletedItems() {
		id := st.ID()
		delete(s.nodes, id)
		delete(s.props, id)
	}
	for _, r := range log.ModifiedRefBundles() {
		if r.IsEmpty() {
			delete(s.refs, r.ID())
			continue
		}
		s.refs[r.ID()] = r.Clone()
	}
	return nil
}

func (s *Store) writeLocked(st *itemstate.State) {
	id := st.ID()
	if node, ok := st.Node(); ok {
		cp := *node
		s.nodes[id] = nodeRecord{data: &cp, definitionID: st.DefinitionID()}
		return
	}
	if prop, ok := st.Property(); ok {
		cp := *prop
		s.props[id] = propRecord{data: &cp, definitionID: st.DefinitionID()}
	}
}
