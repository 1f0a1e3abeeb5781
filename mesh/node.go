/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

package mesh

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/please-mesh/please/config"
	"github.com/please-mesh/please/pstorage"
	"github.com/please-mesh/please/registry"
	"github.com/please-mesh/please/resolver"
	"github.com/please-mesh/please/rpccore"
	"github.com/please-mesh/please/store"
)

// taskRestartDelay spaces out restarts of a crashed task loop.
const taskRestartDelay = time.Second

// Node is one mesh participant: the registry, the request store, the
// resolver and the four periodic tasks, all sharing a single rpccore node.
type Node struct {
	cfg      *config.Config
	logger   *logrus.Entry
	rpcNode  rpccore.Node
	registry *registry.Registry
	store    *store.Store
	resolver *resolver.Resolver
	callers  *callerTable
	persist  pstorage.PersistentStorage

	// persistedSeeds mirrors the node list on disk; only the ping task
	// touches it after Start.
	persistedSeeds []rpccore.NodeID

	lock    sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New wires a node together. The resolver decides which requests this node
// is capable of executing; persist holds the reachable node list across
// restarts. A nil logger falls back to a fresh logrus instance.
func New(cfg *config.Config, rpcNode rpccore.Node, res *resolver.Resolver,
	persist pstorage.PersistentStorage, logger *logrus.Logger) *Node {
	if logger == nil {
		logger = logrus.New()
	}
	n := &Node{
		cfg:      cfg,
		rpcNode:  rpcNode,
		resolver: res,
		persist:  persist,
		callers:  newCallerTable(),
		logger:   logger.WithFields(logrus.Fields{"nodeID": rpcNode.NodeID()}),
		stop:     make(chan struct{}),
	}
	n.registry = registry.New(rpcNode.NodeID(), registry.Metadata(cfg.Metadata))
	n.store = store.New(cfg, res, remoteStore{n}, n.logger)
	rpcNode.RegisterRawRequestCallback(n.handleRPCCallAndLogError)
	return n
}

// Start loads the persisted node list and launches the periodic tasks.
func (n *Node) Start() {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.started {
		return
	}
	n.started = true
	n.persistedSeeds = n.loadPersistedSeeds()

	n.runTask("ping", n.cfg.PingInterval(), n.pingCycle)
	n.runTask("sync", n.cfg.SyncInterval(), n.syncCycle)
	n.runTask("assign_requests", n.cfg.AssignInterval(), n.assignCycle)
	n.runTask("handle_requests", n.cfg.HandleInterval(), n.handleCycle)
	n.logger.Info("Node started.")
}

// Shutdown stops the periodic tasks and waits for their loops to exit.
// In-flight workers are not awaited; their late results are discarded by
// the caller table.
func (n *Node) Shutdown() {
	n.lock.Lock()
	defer n.lock.Unlock()
	if !n.started {
		return
	}
	close(n.stop)
	n.wg.Wait()
	n.started = false
	n.stop = make(chan struct{})
	n.logger.Info("Node stopped.")
}

// runTask supervises one periodic task: the cycle runs every interval, and
// a panicking loop is restarted after taskRestartDelay instead of taking
// the node down.
func (n *Node) runTask(name string, interval time.Duration, cycle func()) {
	logger := n.logger.WithField("task", name)
	stop := n.stop
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			if done := runTaskLoop(logger, stop, interval, cycle); done {
				return
			}
			select {
			case <-stop:
				return
			case <-time.After(taskRestartDelay):
				logger.Warn("Restarting task loop.")
			}
		}
	}()
}

func runTaskLoop(logger *logrus.Entry, stop chan struct{}, interval time.Duration, cycle func()) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Task loop crashed: %v", r)
			done = false
		}
	}()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return true
		case <-ticker.C:
			cycle()
		}
	}
}

// Registry exposes the node's membership view.
func (n *Node) Registry() *registry.Registry {
	return n.registry
}

// Store exposes the node's request store.
func (n *Node) Store() *store.Store {
	return n.store
}

func (n *Node) NodeID() rpccore.NodeID {
	return n.rpcNode.NodeID()
}

// BaseBusynessIncrease biases this node away from new work. A delta <= 0
// applies the default step.
func (n *Node) BaseBusynessIncrease(delta int) {
	n.store.BaseBusynessIncrease(delta)
}

// BaseBusynessDecrease biases this node towards new work. A delta <= 0
// applies the default step.
func (n *Node) BaseBusynessDecrease(delta int) {
	n.store.BaseBusynessDecrease(delta)
}

// Info returns a snapshot of the node state for inspection tooling.
func (n *Node) Info() map[string]interface{} {
	pending, handling := n.store.Get()
	return map[string]interface{}{
		"nodeID":       n.NodeID(),
		"peers":        n.registry.Names(),
		"pending":      len(pending),
		"handling":     len(handling),
		"baseBusyness": n.store.BaseBusyness(),
		"busyness":     n.store.Busyness(),
	}
}
