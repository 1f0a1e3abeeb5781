/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

// Package registry keeps a node's local view of mesh membership: its own
// name plus the metadata advertised by every known peer. Membership is
// eventually consistent across the mesh; each registry only promises
// serialized reads and writes on its own node.
package registry

import (
	"sort"

	"github.com/sasha-s/go-deadlock"

	"github.com/please-mesh/please/rpccore"
)

// Metadata is the opaque key/value map a node advertises to its peers.
type Metadata map[string]interface{}

type Registry struct {
	lock  deadlock.RWMutex
	self  rpccore.NodeID
	nodes map[rpccore.NodeID]Metadata
}

// New builds a registry containing only the node itself. selfMeta may be
// nil, which is recorded as an empty metadata map.
func New(self rpccore.NodeID, selfMeta Metadata) *Registry {
	if selfMeta == nil {
		selfMeta = Metadata{}
	}
	return &Registry{
		self:  self,
		nodes: map[rpccore.NodeID]Metadata{self: selfMeta},
	}
}

func (r *Registry) SelfName() rpccore.NodeID {
	return r.self
}

// Get returns a copy of the full node -> metadata map, self included.
func (r *Registry) Get() map[rpccore.NodeID]Metadata {
	r.lock.RLock()
	defer r.lock.RUnlock()
	nodes := make(map[rpccore.NodeID]Metadata, len(r.nodes))
	for name, meta := range r.nodes {
		nodes[name] = meta
	}
	return nodes
}

// GetNode returns the metadata of one node.
func (r *Registry) GetNode(name rpccore.NodeID) (Metadata, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	meta, ok := r.nodes[name]
	return meta, ok
}

// Names returns all known node names in ascending order, self included.
func (r *Registry) Names() []rpccore.NodeID {
	r.lock.RLock()
	names := make([]rpccore.NodeID, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	r.lock.RUnlock()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (r *Registry) SelfMetadata() Metadata {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.nodes[r.self]
}

func (r *Registry) SetSelfMetadata(meta Metadata) {
	r.SetPeerMetadata(r.self, meta)
}

func (r *Registry) SetPeerMetadata(name rpccore.NodeID, meta Metadata) {
	if meta == nil {
		meta = Metadata{}
	}
	r.lock.Lock()
	r.nodes[name] = meta
	r.lock.Unlock()
}

// Replace commits a new peer map wholesale, as produced by a ping or sync
// cycle. The node itself is always retained; a self entry in peers
// overrides the current self metadata.
func (r *Registry) Replace(peers map[rpccore.NodeID]Metadata) {
	r.lock.Lock()
	defer r.lock.Unlock()
	selfMeta, ok := peers[r.self]
	if !ok {
		selfMeta = r.nodes[r.self]
	}
	nodes := make(map[rpccore.NodeID]Metadata, len(peers)+1)
	for name, meta := range peers {
		if meta == nil {
			meta = Metadata{}
		}
		nodes[name] = meta
	}
	nodes[r.self] = selfMeta
	r.nodes = nodes
}
