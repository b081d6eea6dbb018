// Package memprovider implements a small in-memory virtual.Provider: a
// version-history-shaped subtree that owns a virtual root plus whatever
// extra node/property IDs it is told to hold, and its own reference
// bundles, entirely independent of the primary persistence engine.
//
// Grounded on the teacher's internal/storage/ephemeral store, which is
// the same shape of idea one layer down: a second store, disposable and
// separate from the primary ledger, that the rest of the system treats
// as an overlay rather than folding into the main backend.
package memprovider

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/refs"
	"github.com/itemstate/core/internal/values"
)

// Provider is an in-memory virtual-namespace overlay.
type Provider struct {
	mu       sync.Mutex
	rootID   itemid.ID
	rootType string

	nodes map[itemid.ID]*itemstate.State
	props map[itemid.ID]*itemstate.State
	refs  map[refs.NodeReferencesID]*refs.NodeReferences
}

// New builds a provider whose virtual root is rootUUID, typed rootType
// (e.g. "rep:versionStorage").
func New(rootUUID uuid.UUID, rootType string) *Provider {
	rootID := itemid.NodeID(rootUUID)
	p := &Provider{
		rootID:   rootID,
		rootType: rootType,
		nodes:    make(map[itemid.ID]*itemstate.State),
		props:    make(map[itemid.ID]*itemstate.State),
		refs:     make(map[refs.NodeReferencesID]*refs.NodeReferences),
	}
	p.nodes[rootID] = itemstate.NewNodeState(rootID, itemstate.StatusExisting, &itemstate.NodeData{
		UUID:         rootUUID,
		NodeTypeName: rootType,
	}, "")
	return p
}

func (p *Provider) IsVirtualRoot(id itemid.ID) bool { return id == p.rootID }

func (p *Provider) VirtualRootID() itemid.ID { return p.rootID }

func (p *Provider) HasItemState(id itemid.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id.IsNode() {
		_, ok := p.nodes[id]
		return ok
	}
	_, ok := p.props[id]
	return ok
}

func (p *Provider) GetItemState(id itemid.ID) (*itemstate.State, error) {
	if id.IsNode() {
		return p.GetNodeState(id)
	}
	return p.GetPropertyState(id)
}

func (p *Provider) HasNodeState(id itemid.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.nodes[id]
	return ok
}

func (p *Provider) GetNodeState(id itemid.ID) (*itemstate.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.nodes[id]
	if !ok {
		return nil, fmt.Errorf("memprovider: no such node %s", id)
	}
	return s, nil
}

func (p *Provider) HasPropertyState(id itemid.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.props[id]
	return ok
}

func (p *Provider) GetPropertyState(id itemid.ID) (*itemstate.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.props[id]
	if !ok {
		return nil, fmt.Errorf("memprovider: no such property %s", id)
	}
	return s, nil
}

func (p *Provider) GetNodeReferences(id refs.NodeReferencesID) (*refs.NodeReferences, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.refs[id]
	if !ok {
		return nil, fmt.Errorf("memprovider: no references for %s", id.Target)
	}
	return r.Clone(), nil
}

// SetNodeReferences accepts r only if its target is a node this
// provider owns.
func (p *Provider) SetNodeReferences(r *refs.NodeReferences) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.nodes[itemid.NodeID(r.Target)]; !ok {
		return false
	}
	p.refs[r.ID()] = r.Clone()
	return true
}

// CreateNodeState adds a node to this provider's owned set, parented
// under parent (which must already belong to this provider, normally
// the virtual root).
func (p *Provider) CreateNodeState(parent uuid.UUID, name itemid.QName, id uuid.UUID, typeName string) (*itemstate.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	nodeID := itemid.NodeID(id)
	if _, exists := p.nodes[nodeID]; exists {
		return nil, fmt.Errorf("memprovider: node %s already exists", id)
	}
	s := itemstate.NewNodeState(nodeID, itemstate.StatusExisting, &itemstate.NodeData{
		UUID:         id,
		HasParent:    true,
		ParentUUID:   parent,
		NodeTypeName: typeName,
	}, "")
	p.nodes[nodeID] = s
	if parentState, ok := p.nodes[itemid.NodeID(parent)]; ok {
		if pd, _ := parentState.Node(); pd != nil {
			pd.AddChild(name, id)
		}
	}
	return s, nil
}

// CreatePropertyState adds a property to this provider's owned set.
func (p *Provider) CreatePropertyState(parent uuid.UUID, name itemid.QName, typ values.Type, multiValued bool) (*itemstate.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	propID := itemid.PropertyID(parent, name)
	if _, exists := p.props[propID]; exists {
		return nil, fmt.Errorf("memprovider: property %s already exists", propID)
	}
	s := itemstate.NewPropertyState(propID, itemstate.StatusExisting, &itemstate.PropertyData{
		Name:        name,
		ParentUUID:  parent,
		Type:        typ,
		MultiValued: multiValued,
	}, "")
	p.props[propID] = s
	return s, nil
}
