/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

package store

import (
	"github.com/google/uuid"

	"github.com/please-mesh/please/rpccore"
)

// Request is a deferred invocation record routed across the mesh. Origin
// never changes after creation; only the handling membership moves between
// nodes.
type Request struct {
	ID           string
	Origin       rpccore.NodeID
	CallerHandle string
	Module       string
	Function     string
	Args         []interface{}
}

// NewRequest mints a request originated on the given node. callerHandle
// addresses the waiting caller on the origin node and is opaque everywhere
// else.
func NewRequest(origin rpccore.NodeID, callerHandle, module, function string, args []interface{}) Request {
	return Request{
		ID:           uuid.New().String(),
		Origin:       origin,
		CallerHandle: callerHandle,
		Module:       module,
		Function:     function,
		Args:         args,
	}
}

// Arity is the number of arguments, which selects the callable overload.
func (r Request) Arity() int {
	return len(r.Args)
}
