/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/please-mesh/please/config"
	"github.com/please-mesh/please/mesh"
	"github.com/please-mesh/please/pstorage"
	"github.com/please-mesh/please/resolver"
	"github.com/please-mesh/please/rpccore"
)

// StartNodeFromFile runs a mesh node over TCP based on a JSON config file
// until SIGINT/SIGTERM.
func StartNodeFromFile(configFilepath string) error {
	cfg, err := config.ReadFromFile(configFilepath)
	if err != nil {
		return err
	}
	if cfg.NodeID == "" {
		return errors.New("config is missing node_id")
	}

	fl := flock.New(configFilepath)
	if locked, _ := fl.TryLock(); !locked {
		return errors.New("Unable to lock the config file," +
			" make sure there isn't another instance running.")
	}
	defer func() {
		_ = fl.Unlock()
	}()

	// new tcp network
	n := rpccore.NewTCPNetwork(cfg.RPCTimeout())
	node, err := n.NewLocalNode(cfg.NodeID, cfg.NodeAddrMap[cfg.NodeID], cfg.ListenAddr)
	if err != nil {
		return err
	}
	for nodeID, addr := range cfg.NodeAddrMap {
		if nodeID != cfg.NodeID {
			if err := n.NewRemoteNode(nodeID, addr); err != nil {
				return err
			}
		}
	}

	// set logger
	logger := logrus.New()
	logger.Out = os.Stdout

	// create directory for the persisted node list if needed
	persistDir := filepath.Dir(cfg.PersistFilePath())
	if _, err := os.Stat(persistDir); os.IsNotExist(err) {
		if err := os.MkdirAll(persistDir, os.ModePerm); err != nil {
			return err
		}
	}
	persist := pstorage.NewFileBasedPersistentStorage(cfg.PersistFilePath())

	res := resolver.New()
	registerBuiltins(res)

	m := mesh.New(cfg, node, res, persist, logger)
	m.Start()

	// wait for stop signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	fmt.Println("Shutting down node...")
	m.Shutdown()
	time.Sleep(2 * time.Second)
	node.Shutdown()
	return nil
}

// registerBuiltins installs the functions every node answers out of the
// box. please.echo doubles as a mesh-level health check.
func registerBuiltins(res *resolver.Resolver) {
	echo := func(args []interface{}) (interface{}, error) {
		return args, nil
	}
	for arity := 0; arity <= 3; arity++ {
		res.Register("please", "echo", arity, echo)
	}
}
