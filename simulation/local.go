/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

// Package simulation runs a whole mesh inside one process on the channel
// based rpc network, for tests and for the interactive CLI.
package simulation

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/please-mesh/please/config"
	"github.com/please-mesh/please/mesh"
	"github.com/please-mesh/please/pstorage"
	"github.com/please-mesh/please/resolver"
	"github.com/please-mesh/please/rpccore"
)

// fast latencies so a simulated mesh converges in tens of milliseconds
const (
	simPingLatency   = 50
	simSyncLatency   = 100
	simAssignLatency = 5
	simHandleLatency = 5

	simRPCTimeout = 4 * time.Second
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Out = os.Stdout
}

// Cluster is a set of mesh nodes sharing one in-process network. Configs
// and resolvers may be adjusted between NewCluster and Start.
type Cluster struct {
	network   *rpccore.ChanNetwork
	names     []rpccore.NodeID
	configs   map[rpccore.NodeID]*config.Config
	resolvers map[rpccore.NodeID]*resolver.Resolver
	storages  map[rpccore.NodeID]pstorage.PersistentStorage
	nodes     map[rpccore.NodeID]*mesh.Node
	loggers   map[rpccore.NodeID]*logrus.Logger
}

// NewCluster builds an unstarted cluster. Every node is seeded with
// referrals to all the others; tests that need a sparser topology overwrite
// the referrals before Start.
func NewCluster(names []rpccore.NodeID) (*Cluster, error) {
	if len(names) == 0 {
		return nil, errors.Errorf("the number of nodes should be positive, but got %v", len(names))
	}
	c := &Cluster{
		network:   rpccore.NewChanNetwork(simRPCTimeout),
		names:     names,
		configs:   make(map[rpccore.NodeID]*config.Config),
		resolvers: make(map[rpccore.NodeID]*resolver.Resolver),
		storages:  make(map[rpccore.NodeID]pstorage.PersistentStorage),
		nodes:     make(map[rpccore.NodeID]*mesh.Node),
		loggers:   make(map[rpccore.NodeID]*logrus.Logger),
	}
	for _, name := range names {
		referrals := make([]string, 0, len(names)-1)
		for _, other := range names {
			if other != name {
				referrals = append(referrals, string(other))
			}
		}
		c.configs[name] = &config.Config{
			NodeID:        name,
			Referrals:     strings.Join(referrals, ","),
			PingLatency:   simPingLatency,
			SyncLatency:   simSyncLatency,
			AssignLatency: simAssignLatency,
			HandleLatency: simHandleLatency,
		}
		c.resolvers[name] = resolver.New()
		c.storages[name] = pstorage.NewMemoryBasedPersistentStorage()

		logger := logrus.New()
		logger.Out = os.Stdout
		logger.SetLevel(logrus.WarnLevel)
		c.loggers[name] = logger
	}
	return c, nil
}

// Start creates and starts every mesh node.
func (c *Cluster) Start() error {
	for _, name := range c.names {
		rpcNode, err := c.network.NewNode(name)
		if err != nil {
			return errors.Wrapf(err, "failed to allocate node %v", name)
		}
		c.nodes[name] = mesh.New(c.configs[name], rpcNode,
			c.resolvers[name], c.storages[name], c.loggers[name])
	}
	for _, name := range c.names {
		c.nodes[name].Start()
	}
	return nil
}

// RunLocally builds and starts an n node cluster with generated names.
func RunLocally(n int) *Cluster {
	log.Info("Starting simulation locally ...")
	names := make([]rpccore.NodeID, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, rpccore.NodeID(fmt.Sprintf("n%v@local", i)))
	}
	c, err := NewCluster(names)
	if err != nil {
		log.Panicln(err)
	}
	for _, name := range names {
		registerDemoFunctions(c.resolvers[name])
	}
	if err := c.Start(); err != nil {
		log.Panicln(err)
	}
	return c
}

// registerDemoFunctions gives interactively started clusters something to
// call: please.echo at a few arities and strings.upcase.
func registerDemoFunctions(res *resolver.Resolver) {
	echo := func(args []interface{}) (interface{}, error) {
		return args, nil
	}
	for arity := 0; arity <= 3; arity++ {
		res.Register("please", "echo", arity, echo)
	}
	res.Register("strings", "upcase", 1, func(args []interface{}) (interface{}, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, errors.Errorf("want a string, got %T", args[0])
		}
		return strings.ToUpper(s), nil
	})
}

func (c *Cluster) Node(name rpccore.NodeID) *mesh.Node {
	return c.nodes[name]
}

func (c *Cluster) Config(name rpccore.NodeID) *config.Config {
	return c.configs[name]
}

func (c *Cluster) Resolver(name rpccore.NodeID) *resolver.Resolver {
	return c.resolvers[name]
}

func (c *Cluster) Network() *rpccore.ChanNetwork {
	return c.network
}

func (c *Cluster) NodeIDs() []rpccore.NodeID {
	names := make([]rpccore.NodeID, len(c.names))
	copy(names, c.names)
	return names
}

// StopAll shuts down every node, then the network.
func (c *Cluster) StopAll() {
	for _, name := range c.names {
		if node := c.nodes[name]; node != nil {
			node.Shutdown()
		}
	}
	c.network.Shutdown()
}

// Wait sleeps for the given number of seconds, logging the pause.
func (c *Cluster) Wait(sec int) {
	if sec <= 0 {
		log.Warnf("Seconds to wait should be positive integer, not %v", sec)
		return
	}
	log.Infof("Sleeping for %v second(s)", sec)
	time.Sleep(time.Duration(sec) * time.Second)
}

// NodeInfo collects every node's Info snapshot.
func (c *Cluster) NodeInfo() map[rpccore.NodeID]map[string]interface{} {
	m := make(map[rpccore.NodeID]map[string]interface{})
	for name, node := range c.nodes {
		m[name] = node.Info()
	}
	return m
}
