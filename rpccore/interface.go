/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

// Package rpccore provides an abstract layer over the low level rpc
// implementation. Serialization && dispatcher should be implemented in the
// upper level. There are two implementations, one is based on TCP and the
// other one is a mocked version based on channel for testing.
package rpccore

// NodeID representing the ID of a mesh node
type NodeID string

// Callback representing the function that handles the RPC call
type Callback func(source NodeID, method string, data []byte) ([]byte, error)

// Node representing the node
type Node interface {
	// NodeID gets the node's ID
	NodeID() NodeID

	// SendRawRequest invokes an RPC method on the target node
	SendRawRequest(target NodeID, method string, data []byte) ([]byte, error)

	// Ping reports whether the target node currently answers a liveness probe
	Ping(target NodeID) bool

	// RegisterRawRequestCallback let nodes to register methods
	// that will be called when receiving a RPC
	RegisterRawRequestCallback(callback Callback)
}
