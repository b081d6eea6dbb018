// Package itemstate implements ItemState (spec.md §3-§4.2's C2): the
// in-memory representation of a node or property, its status machine,
// its transient/shared overlay linkage, and its listener set.
package itemstate

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/values"
)

// ErrAlreadyConnected is returned by Connect when the transient state is
// already bound to a shared peer — spec.md §4.2 Phase B: "reconnecting
// while already connected is an error."
var ErrAlreadyConnected = errors.New("itemstate: already connected to a shared state")

// ChildEntry is one entry in a node's ordered child list: spec.md §3
// "ordered list of child-node entries (qname, uuid, index-in-sibling-group)".
type ChildEntry struct {
	Name  itemid.QName
	UUID  uuid.UUID
	Index int // 1-based, ascending per same-name sibling group (invariant 6)
}

// NodeData holds the node-specific fields from spec.md §3.
type NodeData struct {
	UUID           uuid.UUID
	HasParent      bool
	ParentUUID     uuid.UUID
	NodeTypeName   string
	MixinTypeNames []string
	Children       []ChildEntry
	PropertyNames  []string
}

// AddChild appends a child entry, assigning the next ascending index for
// its name within c's existing children (invariant 6).
func (d *NodeData) AddChild(name itemid.QName, id uuid.UUID) ChildEntry {
	maxIdx := 0
	for _, c := range d.Children {
		if c.Name == name && c.Index > maxIdx {
			maxIdx = c.Index
		}
	}
	entry := ChildEntry{Name: name, UUID: id, Index: maxIdx + 1}
	d.Children = append(d.Children, entry)
	return entry
}

// RemoveChildByUUID removes the child entry with the given UUID, if any.
func (d *NodeData) RemoveChildByUUID(id uuid.UUID) {
	for i, c := range d.Children {
		if c.UUID == id {
			d.Children = append(d.Children[:i], d.Children[i+1:]...)
			return
		}
	}
}

// clone returns a deep copy, used by push to give the shared peer its
// own storage rather than aliasing the transient's slices.
func (d *NodeData) clone() *NodeData {
	if d == nil {
		return nil
	}
	cp := *d
	cp.MixinTypeNames = append([]string(nil), d.MixinTypeNames...)
	cp.Children = append([]ChildEntry(nil), d.Children...)
	cp.PropertyNames = append([]string(nil), d.PropertyNames...)
	return &cp
}

// PropertyData holds the property-specific fields from spec.md §3.
type PropertyData struct {
	Name        itemid.QName
	ParentUUID  uuid.UUID
	Type        values.Type
	MultiValued bool
	Values      []values.Value
}

func (d *PropertyData) clone() *PropertyData {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Values = append([]values.Value(nil), d.Values...)
	return &cp
}

// State is an item state: a node or a property, shared or transient.
// A transient overlay and the shared state it overlays share the same
// ID (invariant 2) but are distinct *State values connected through
// overlayed.
type State struct {
	mu sync.RWMutex

	id           itemid.ID
	status       Status
	isNode       bool
	definitionID string

	node *NodeData
	prop *PropertyData

	overlayed *State // non-nil when this state is a transient overlay

	listeners map[Listener]struct{}
}

// NewNodeState constructs a node item state. status is normally NEW (a
// fresh transient addition) or EXISTING (just loaded/created shared
// state); the manager is responsible for picking the right one.
func NewNodeState(id itemid.ID, status Status, data *NodeData, definitionID string) *State {
	return &State{
		id:           id,
		status:       status,
		isNode:       true,
		definitionID: definitionID,
		node:         data,
	}
}

// NewPropertyState constructs a property item state.
func NewPropertyState(id itemid.ID, status Status, data *PropertyData, definitionID string) *State {
	return &State{
		id:           id,
		status:       status,
		isNode:       false,
		definitionID: definitionID,
		prop:         data,
	}
}

func (s *State) ID() itemid.ID { return s.id }

func (s *State) IsNode() bool { return s.isNode }

func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *State) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *State) DefinitionID() string { return s.definitionID }

// Node returns the node data and true if s is a node state.
func (s *State) Node() (*NodeData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.node, s.isNode
}

// Property returns the property data and true if s is a property state.
func (s *State) Property() (*PropertyData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prop, !s.isNode
}

// Overlayed returns the shared peer this transient state overlays, or
// nil if s is not a transient overlay.
func (s *State) Overlayed() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlayed
}

// Connect binds the transient state s to its shared peer. One-shot: a
// second call returns ErrAlreadyConnected (spec.md §4.2 Phase B).
func (s *State) Connect(shared *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlayed != nil {
		return ErrAlreadyConnected
	}
	s.overlayed = shared
	return nil
}

// Push copies s's working data into its overlayed shared peer (spec.md
// §4.2 Phase D). It is a value copy, not an identity swap: the shared
// state keeps its own storage so concurrent readers holding a reference
// to it never see a half-written value.
func (s *State) Push() error {
	s.mu.RLock()
	shared := s.overlayed
	isNode := s.isNode
	var nodeCopy *NodeData
	var propCopy *PropertyData
	if isNode {
		nodeCopy = s.node.clone()
	} else {
		propCopy = s.prop.clone()
	}
	s.mu.RUnlock()

	if shared == nil {
		return errors.New("itemstate: push without a connected shared peer")
	}

	shared.mu.Lock()
	if isNode {
		shared.node = nodeCopy
	} else {
		shared.prop = propCopy
	}
	shared.mu.Unlock()
	return nil
}

// Persisted transitions a *shared* state's status following a
// successful durable store (spec.md §4.2 Phase F) and fires the
// matching listener notification. It is a no-op transition table: any
// status outside {NEW, EXISTING_MODIFIED, EXISTING_REMOVED} is left
// alone (nothing in the commit protocol pushes other statuses through
// here).
func (s *State) Persisted() {
	s.mu.Lock()
	status := s.status
	switch status {
	case StatusNew:
		s.status = StatusExisting
	case StatusExistingModified:
		s.status = StatusExisting
	}
	s.mu.Unlock()

	switch status {
	case StatusNew:
		s.notifyCreated()
	case StatusExistingModified:
		s.notifyModified()
	case StatusExistingRemoved:
		s.notifyDestroyed()
	}
}

// Discard signals an externally caused invalidation of a shared state
// (e.g. a virtual provider replacing its root). spec.md §4.2: the
// manager's response to state_discarded is identical to state_destroyed.
func (s *State) Discard() {
	s.notifyDiscarded()
}

// AddListener registers l. Duplicate-safe and order-independent per
// spec.md §5.
func (s *State) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[Listener]struct{}, 1)
	}
	s.listeners[l] = struct{}{}
}

// RemoveListener detaches l, if registered.
func (s *State) RemoveListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, l)
}

func (s *State) snapshotListeners() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Listener, 0, len(s.listeners))
	for l := range s.listeners {
		out = append(out, l)
	}
	return out
}

func (s *State) notifyCreated() {
	for _, l := range s.snapshotListeners() {
		l.StateCreated(s)
	}
}

func (s *State) notifyModified() {
	for _, l := range s.snapshotListeners() {
		l.StateModified(s)
	}
}

func (s *State) notifyDestroyed() {
	for _, l := range s.snapshotListeners() {
		l.StateDestroyed(s)
	}
}

func (s *State) notifyDiscarded() {
	for _, l := range s.snapshotListeners() {
		l.StateDiscarded(s)
	}
}

// MarkModified transitions a shared EXISTING state to EXISTING_MODIFIED,
// the status it holds from Phase B's reconnection until Phase F's publish.
func (s *State) MarkModified() {
	s.mu.Lock()
	if s.status == StatusExisting {
		s.status = StatusExistingModified
	}
	s.mu.Unlock()
}

// MarkRemoved transitions a shared state to EXISTING_REMOVED, readied
// for destruction at Phase F.
func (s *State) MarkRemoved() {
	s.setStatus(StatusExistingRemoved)
}
