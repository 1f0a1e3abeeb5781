package simulation

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-mesh/please/config"
	"github.com/please-mesh/please/mesh"
	"github.com/please-mesh/please/resolver"
	"github.com/please-mesh/please/rpccore"
)

func rejectBias(module, function string) config.BiasMap {
	return config.BiasMap{module: {function: {Reject: true}}}
}

func registerUpcase(res *resolver.Resolver) {
	res.Register("strings", "upcase", 1, func(args []interface{}) (interface{}, error) {
		return strings.ToUpper(args[0].(string)), nil
	})
}

func registerSquare(res *resolver.Resolver) {
	res.Register("math", "square", 1, func(args []interface{}) (interface{}, error) {
		n := args[0].(int)
		return n * n, nil
	})
}

func TestSingleNodeEcho(t *testing.T) {
	c, err := NewCluster([]rpccore.NodeID{"a@h"})
	require.NoError(t, err)
	registerUpcase(c.Resolver("a@h"))
	require.NoError(t, c.Start())
	defer c.StopAll()

	res, err := c.Node("a@h").MakeItSo("strings", "upcase", []interface{}{"hi"})
	require.NoError(t, err)
	assert.Equal(t, "HI", res.Value)
	assert.Equal(t, rpccore.NodeID("a@h"), res.Executor)
}

func TestDelegation(t *testing.T) {
	c, err := NewCluster([]rpccore.NodeID{"a@h", "b@h"})
	require.NoError(t, err)
	// only b@h is capable of math.square
	registerSquare(c.Resolver("b@h"))
	require.NoError(t, c.Start())
	defer c.StopAll()

	res, err := c.Node("a@h").MakeItSo("math", "square", []interface{}{7})
	require.NoError(t, err)
	assert.Equal(t, 49, res.Value)
	assert.Equal(t, rpccore.NodeID("b@h"), res.Executor)
}

func TestCapabilityFilter(t *testing.T) {
	c, err := NewCluster([]rpccore.NodeID{"a@h", "b@h"})
	require.NoError(t, err)
	// resolvable on both nodes, but a@h rejects it outright
	registerSquare(c.Resolver("a@h"))
	registerSquare(c.Resolver("b@h"))
	c.Config("a@h").BusynessOffsets = rejectBias("math", "square")
	require.NoError(t, c.Start())
	defer c.StopAll()

	for i := 0; i < 3; i++ {
		res, err := c.Node("a@h").MakeItSo("math", "square", []interface{}{3})
		require.NoError(t, err)
		assert.Equal(t, 9, res.Value)
		assert.Equal(t, rpccore.NodeID("b@h"), res.Executor)
	}
}

func TestLoadPreference(t *testing.T) {
	c, err := NewCluster([]rpccore.NodeID{"a@h", "b@h", "c@h"})
	require.NoError(t, err)
	registerSquare(c.Resolver("a@h"))
	registerSquare(c.Resolver("b@h"))
	require.NoError(t, c.Start())
	defer c.StopAll()

	c.Node("a@h").BaseBusynessIncrease(1000)

	for i := 0; i < 10; i++ {
		res, err := c.Node("c@h").MakeItSo("math", "square", []interface{}{i})
		require.NoError(t, err)
		assert.Equal(t, i*i, res.Value)
		assert.Equal(t, rpccore.NodeID("b@h"), res.Executor,
			"call %v should land on the idle node", i)
	}
}

func TestCallTimeout(t *testing.T) {
	c, err := NewCluster([]rpccore.NodeID{"a@h"})
	require.NoError(t, err)
	c.Resolver("a@h").Register("math", "sleepy", 0, func(args []interface{}) (interface{}, error) {
		time.Sleep(2 * time.Second)
		return 42, nil
	})
	require.NoError(t, c.Start())
	defer c.StopAll()

	_, err = c.Node("a@h").MakeItSo("math", "sleepy", nil,
		mesh.WithTimeout(100*time.Millisecond))
	assert.Equal(t, mesh.ErrTimeout, errors.Cause(err))
}

func TestExecutionError(t *testing.T) {
	c, err := NewCluster([]rpccore.NodeID{"a@h", "b@h"})
	require.NoError(t, err)
	c.Resolver("b@h").Register("math", "fail", 0, func(args []interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, c.Start())
	defer c.StopAll()

	_, err = c.Node("a@h").MakeItSo("math", "fail", nil)
	require.Error(t, err)
	execErr, ok := err.(*mesh.ExecutionError)
	require.True(t, ok, "want *mesh.ExecutionError, got %T", err)
	assert.Equal(t, rpccore.NodeID("b@h"), execErr.Executor)
	assert.Contains(t, execErr.Info, "boom")
}

func TestExecutionPanic(t *testing.T) {
	c, err := NewCluster([]rpccore.NodeID{"a@h"})
	require.NoError(t, err)
	c.Resolver("a@h").Register("math", "explode", 0, func(args []interface{}) (interface{}, error) {
		panic("kaboom")
	})
	require.NoError(t, c.Start())
	defer c.StopAll()

	_, err = c.Node("a@h").MakeItSo("math", "explode", nil)
	require.Error(t, err)
	execErr, ok := err.(*mesh.ExecutionError)
	require.True(t, ok, "want *mesh.ExecutionError, got %T", err)
	assert.Contains(t, execErr.Info, "kaboom")
}

func TestMembershipTransitivity(t *testing.T) {
	c, err := NewCluster([]rpccore.NodeID{"a@h", "b@h", "c@h"})
	require.NoError(t, err)
	// a seeds only b, b seeds only c
	c.Config("a@h").Referrals = "b@h"
	c.Config("b@h").Referrals = "c@h"
	c.Config("c@h").Referrals = ""
	require.NoError(t, c.Start())
	defer c.StopAll()

	require.Eventually(t, func() bool {
		_, ok := c.Node("a@h").Registry().GetNode("c@h")
		return ok
	}, 3*time.Second, 20*time.Millisecond,
		"a@h should learn of c@h through b@h")
}

func TestDeadPeerDropped(t *testing.T) {
	c, err := NewCluster([]rpccore.NodeID{"a@h", "b@h"})
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.StopAll()

	require.Eventually(t, func() bool {
		_, ok := c.Node("a@h").Registry().GetNode("b@h")
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	c.Network().SetOffline("b@h", true)

	require.Eventually(t, func() bool {
		_, ok := c.Node("a@h").Registry().GetNode("b@h")
		return !ok
	}, 3*time.Second, 20*time.Millisecond,
		"an unresponsive peer should fall out of the registry")
}

func TestMetadataExchange(t *testing.T) {
	c, err := NewCluster([]rpccore.NodeID{"a@h", "b@h"})
	require.NoError(t, err)
	c.Config("a@h").Metadata = map[string]interface{}{"zone": "eu"}
	require.NoError(t, c.Start())
	defer c.StopAll()

	require.Eventually(t, func() bool {
		meta, ok := c.Node("b@h").Registry().GetNode("a@h")
		return ok && meta["zone"] == "eu"
	}, 3*time.Second, 20*time.Millisecond,
		"b@h should learn a@h's advertised metadata")
}

func TestRunLocally(t *testing.T) {
	c := RunLocally(3)
	defer c.StopAll()

	require.Eventually(t, func() bool {
		for _, id := range c.NodeIDs() {
			if len(c.Node(id).Registry().Names()) != 3 {
				return false
			}
		}
		return true
	}, 3*time.Second, 20*time.Millisecond, "full mesh should converge")

	info := c.NodeInfo()
	assert.Len(t, info, 3)
}

func TestEmpty(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Should not accept size zero")
		}
	}()
	RunLocally(0)
}
