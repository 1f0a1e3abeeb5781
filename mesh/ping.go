package mesh

import (
	"sort"

	metrics "github.com/armon/go-metrics"

	"github.com/please-mesh/please/registry"
	"github.com/please-mesh/please/rpccore"
)

// pingCycle converges liveness: probe every candidate peer, rebuild the
// registry from the ones that answered, advertise ourselves to them, and
// persist the reachable list when it changed.
func (n *Node) pingCycle() {
	logger := n.logger.WithField("task", "ping")
	self := n.registry.SelfName()

	// candidate set: persisted list + current registry + configured
	// referrals, minus ourselves
	candidates := make(map[rpccore.NodeID]bool)
	for _, id := range n.persistedSeeds {
		candidates[id] = true
	}
	for id := range n.registry.Get() {
		candidates[id] = true
	}
	for _, id := range n.cfg.ReferralList() {
		candidates[id] = true
	}
	delete(candidates, self)

	peers := make(map[rpccore.NodeID]registry.Metadata)
	for id := range candidates {
		if !n.rpcNode.Ping(id) {
			continue
		}
		meta, ok := n.registry.GetNode(id)
		if !ok {
			var err error
			meta, err = n.remoteMetadata(id)
			if err != nil {
				logger.Debugf("Unable to fetch metadata from %v: %v", id, err)
				continue
			}
		}
		peers[id] = meta
	}

	n.registry.Replace(peers)
	metrics.SetGauge([]string{"please", "peers"}, float32(len(peers)))

	// let every reachable peer learn of us, off the cycle's critical path
	for id := range peers {
		go func(id rpccore.NodeID) {
			_ = n.pushSelfMetadata(id)
		}(id)
	}

	reachable := make([]rpccore.NodeID, 0, len(peers))
	for id := range peers {
		reachable = append(reachable, id)
	}
	sort.Slice(reachable, func(i, j int) bool { return reachable[i] < reachable[j] })
	if !sameNodeList(reachable, n.persistedSeeds) {
		if err := n.savePersistedSeeds(reachable); err != nil {
			// in-memory state is unaffected by persistence failures
			logger.Errorf("Unable to persist node list: %v", err)
		} else {
			n.persistedSeeds = reachable
		}
	}
}

// loadPersistedSeeds reads the node list left behind by a previous run.
// Unreadable or malformed content is treated as an empty list.
func (n *Node) loadPersistedSeeds() []rpccore.NodeID {
	var names []string
	hasData, err := n.persist.Load(&names)
	if err != nil {
		n.logger.Warnf("Ignoring unreadable persisted node list: %v", err)
		return nil
	}
	if !hasData {
		return nil
	}
	seeds := make([]rpccore.NodeID, 0, len(names))
	for _, name := range names {
		seeds = append(seeds, rpccore.NodeID(name))
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i] < seeds[j] })
	return seeds
}

func (n *Node) savePersistedSeeds(seeds []rpccore.NodeID) error {
	names := make([]string, 0, len(seeds))
	for _, id := range seeds {
		names = append(names, string(id))
	}
	return n.persist.Save(names)
}

func sameNodeList(a, b []rpccore.NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
