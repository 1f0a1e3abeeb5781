package functests

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/please-mesh/please/config"
	"github.com/please-mesh/please/mesh"
	"github.com/please-mesh/please/resolver"
	"github.com/please-mesh/please/rpccore"
	"github.com/please-mesh/please/simulation"
)

func registerUpcase(res *resolver.Resolver) {
	res.Register("strings", "upcase", 1, func(args []interface{}) (interface{}, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, errors.Errorf("want a string, got %T", args[0])
		}
		return strings.ToUpper(s), nil
	})
}

func registerSquare(res *resolver.Resolver) {
	res.Register("math", "square", 1, func(args []interface{}) (interface{}, error) {
		n, ok := args[0].(int)
		if !ok {
			return nil, errors.Errorf("want an int, got %T", args[0])
		}
		return n * n, nil
	})
}

func expectExecutor(res *mesh.CallResult, want rpccore.NodeID) error {
	if res.Executor != want {
		return errors.Errorf("executed on %v, want %v", res.Executor, want)
	}
	return nil
}

func caseSingleNodeEcho() error {
	c, err := simulation.NewCluster([]rpccore.NodeID{"a@h"})
	if err != nil {
		return err
	}
	registerUpcase(c.Resolver("a@h"))
	if err := c.Start(); err != nil {
		return err
	}
	defer c.StopAll()

	res, err := c.Node("a@h").MakeItSo("strings", "upcase", []interface{}{"hi"})
	if err != nil {
		return err
	}
	if res.Value != "HI" {
		return errors.Errorf("got %v, want HI", res.Value)
	}
	return expectExecutor(res, "a@h")
}

func caseDelegation() error {
	c, err := simulation.NewCluster([]rpccore.NodeID{"a@h", "b@h"})
	if err != nil {
		return err
	}
	registerSquare(c.Resolver("b@h"))
	if err := c.Start(); err != nil {
		return err
	}
	defer c.StopAll()

	res, err := c.Node("a@h").MakeItSo("math", "square", []interface{}{7})
	if err != nil {
		return err
	}
	if res.Value != 49 {
		return errors.Errorf("got %v, want 49", res.Value)
	}
	return expectExecutor(res, "b@h")
}

func caseCapabilityFilter() error {
	c, err := simulation.NewCluster([]rpccore.NodeID{"a@h", "b@h"})
	if err != nil {
		return err
	}
	registerSquare(c.Resolver("a@h"))
	registerSquare(c.Resolver("b@h"))
	c.Config("a@h").BusynessOffsets = config.BiasMap{
		"math": {"square": {Reject: true}},
	}
	if err := c.Start(); err != nil {
		return err
	}
	defer c.StopAll()

	res, err := c.Node("a@h").MakeItSo("math", "square", []interface{}{3})
	if err != nil {
		return err
	}
	if res.Value != 9 {
		return errors.Errorf("got %v, want 9", res.Value)
	}
	return expectExecutor(res, "b@h")
}

func caseLoadPreference() error {
	c, err := simulation.NewCluster([]rpccore.NodeID{"a@h", "b@h", "c@h"})
	if err != nil {
		return err
	}
	registerSquare(c.Resolver("a@h"))
	registerSquare(c.Resolver("b@h"))
	if err := c.Start(); err != nil {
		return err
	}
	defer c.StopAll()

	c.Node("a@h").BaseBusynessIncrease(1000)
	for i := 0; i < 10; i++ {
		res, err := c.Node("c@h").MakeItSo("math", "square", []interface{}{i})
		if err != nil {
			return err
		}
		if err := expectExecutor(res, "b@h"); err != nil {
			return errors.Wrapf(err, "call %v", i)
		}
	}
	return nil
}

func caseCallerTimeout() error {
	c, err := simulation.NewCluster([]rpccore.NodeID{"a@h"})
	if err != nil {
		return err
	}
	c.Resolver("a@h").Register("math", "sleepy", 0, func(args []interface{}) (interface{}, error) {
		time.Sleep(2 * time.Second)
		return 42, nil
	})
	if err := c.Start(); err != nil {
		return err
	}
	defer c.StopAll()

	_, err = c.Node("a@h").MakeItSo("math", "sleepy", nil,
		mesh.WithTimeout(100*time.Millisecond))
	if errors.Cause(err) != mesh.ErrTimeout {
		return errors.Errorf("got %v, want %v", err, mesh.ErrTimeout)
	}
	return nil
}

func caseExecutionError() error {
	c, err := simulation.NewCluster([]rpccore.NodeID{"a@h", "b@h"})
	if err != nil {
		return err
	}
	c.Resolver("b@h").Register("math", "fail", 0, func(args []interface{}) (interface{}, error) {
		return nil, errors.New("boom")
	})
	if err := c.Start(); err != nil {
		return err
	}
	defer c.StopAll()

	_, err = c.Node("a@h").MakeItSo("math", "fail", nil)
	execErr, ok := err.(*mesh.ExecutionError)
	if !ok {
		return errors.Errorf("want an execution error, got %v", err)
	}
	if execErr.Executor != "b@h" {
		return errors.Errorf("failure reported on %v, want b@h", execErr.Executor)
	}
	if !strings.Contains(execErr.Info, "boom") {
		return errors.Errorf("error info %q should carry the cause", execErr.Info)
	}
	return nil
}

func caseMembershipTransitivity() error {
	c, err := simulation.NewCluster([]rpccore.NodeID{"a@h", "b@h", "c@h"})
	if err != nil {
		return err
	}
	c.Config("a@h").Referrals = "b@h"
	c.Config("b@h").Referrals = "c@h"
	c.Config("c@h").Referrals = ""
	if err := c.Start(); err != nil {
		return err
	}
	defer c.StopAll()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Node("a@h").Registry().GetNode("c@h"); ok {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return errors.New("a@h never learned of c@h")
}
