package mesh

import (
	"github.com/please-mesh/please/registry"
	"github.com/please-mesh/please/rpccore"
)

// syncCycle propagates transitive membership: fetch each peer's view of the
// mesh and union it into ours, later responses winning on conflicts.
// Unreachable peers are skipped; dropping dead peers is the ping task's
// job, so membership a node learned here survives until a ping cycle
// disproves it.
func (n *Node) syncCycle() {
	self := n.registry.SelfName()
	current := n.registry.Get()

	merged := make(map[rpccore.NodeID]registry.Metadata, len(current))
	for id, meta := range current {
		if id != self {
			merged[id] = meta
		}
	}
	for id := range current {
		if id == self {
			continue
		}
		nodes, err := n.remoteRegistryGet(id)
		if err != nil {
			continue
		}
		for name, meta := range nodes {
			if name != self {
				merged[name] = meta
			}
		}
	}

	n.registry.Replace(merged)
}
