/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

// Package mesh wires the registry, the request store and the four periodic
// tasks into a running node, and exposes the caller-facing surface.
package mesh

import (
	"github.com/please-mesh/please/rpccore"
	"github.com/please-mesh/please/store"
)

const (
	// RequestsChannelTag marks every envelope delivered to a waiting
	// caller.
	RequestsChannelTag = "please_requests"

	ResponseTag = "response"
	ErrorTag    = "error"
)

// Envelope is the message shipped from the executing node back to the
// waiting caller on the origin node. Result carries the value on success;
// Request and ErrorInfo are set on failures instead.
type Envelope struct {
	Channel      string
	Tag          string
	ID           string
	Request      *store.Request
	Executor     rpccore.NodeID
	Result       interface{}
	ErrorInfo    string
	CallerHandle string
}
