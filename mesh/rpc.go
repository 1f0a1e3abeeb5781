/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

package mesh

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/pkg/errors"

	"github.com/please-mesh/please/registry"
	"github.com/please-mesh/please/rpccore"
	"github.com/please-mesh/please/store"
)

const (
	rpcMethodRegistryGet        = "rg"
	rpcMethodMetadata           = "md"
	rpcMethodPushMetadata       = "pm"
	rpcMethodAcceptancePriority = "ap"
	rpcMethodInsertHandling     = "ih"
	rpcMethodRemoveRequest      = "rm"
	rpcMethodDeliver            = "dv"
	rpcMethodApply              = "ax"
)

func init() {
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
	gob.Register(registry.Metadata{})
}

type registryGetReq struct{}

type registryGetRes struct {
	Nodes map[rpccore.NodeID]registry.Metadata
}

type metadataReq struct{}

type metadataRes struct {
	Metadata registry.Metadata
}

type pushMetadataReq struct {
	Metadata registry.Metadata
}

type acceptancePriorityReq struct {
	Request store.Request
}

type acceptancePriorityRes struct {
	Eligible bool
	Priority int
}

type insertHandlingReq struct {
	Request store.Request
}

type removeRequestReq struct {
	ID string
}

type deliverReq struct {
	Envelope Envelope
}

type applyReq struct {
	Module   string
	Function string
	Args     []interface{}
}

type applyRes struct {
	Result interface{}
	Errmsg string
}

type ackRes struct{}

// callRPCAndLogError takes arguments and traces error value if occurs
func (n *Node) callRPCAndLogError(target rpccore.NodeID, method string, req, res interface{}) error {
	err := n.callRPC(target, method, req, res)
	if err != nil {
		n.logger.Tracef("RPC call failed. \n target: %v, method: %v, err: %v",
			target, method, err)
	}
	return err
}

// callRPC takes arguments and returns error value if occurs
func (n *Node) callRPC(target rpccore.NodeID, method string, req, res interface{}) error {
	var buf bytes.Buffer
	// encode request data
	err := gob.NewEncoder(&buf).Encode(req)
	if err != nil {
		return errors.WithStack(err)
	}
	// send raw request
	resData, err := n.rpcNode.SendRawRequest(target, method, buf.Bytes())
	if err != nil {
		// already wrapped
		return err
	}
	// decode response data
	err = gob.NewDecoder(bytes.NewReader(resData)).Decode(res)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// handleRPCCallAndLogError takes arguments and returns response data and error value if occurs
func (n *Node) handleRPCCallAndLogError(source rpccore.NodeID, method string, data []byte) ([]byte, error) {
	res, err := n.handleRPCCall(source, method, data)
	if err != nil {
		n.logger.Debugf("Handle RPC call failed. \n source: %v, method: %v, error: %v",
			source, method, err)
	}
	return res, err
}

// handleRPCCall decodes the method-specific request, applies it against the
// local components and encodes the response.
func (n *Node) handleRPCCall(source rpccore.NodeID, method string, data []byte) ([]byte, error) {
	switch method {
	case rpcMethodRegistryGet:
		var req registryGetReq
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return encode(registryGetRes{Nodes: n.registry.Get()})
	case rpcMethodMetadata:
		var req metadataReq
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return encode(metadataRes{Metadata: n.registry.SelfMetadata()})
	case rpcMethodPushMetadata:
		var req pushMetadataReq
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		n.registry.SetPeerMetadata(source, req.Metadata)
		return encode(ackRes{})
	case rpcMethodAcceptancePriority:
		var req acceptancePriorityReq
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		priority, eligible := n.store.AcceptancePriority(req.Request)
		return encode(acceptancePriorityRes{Eligible: eligible, Priority: priority})
	case rpcMethodInsertHandling:
		var req insertHandlingReq
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		n.store.InsertHandling(req.Request)
		return encode(ackRes{})
	case rpcMethodRemoveRequest:
		var req removeRequestReq
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		n.store.Remove(req.ID)
		return encode(ackRes{})
	case rpcMethodDeliver:
		var req deliverReq
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		// a late envelope whose caller already gave up is dropped here
		if !n.callers.deliver(req.Envelope) {
			n.logger.Debugf("Discarding envelope for gone caller %v.",
				req.Envelope.CallerHandle)
		}
		return encode(ackRes{})
	case rpcMethodApply:
		var req applyReq
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		result, err := n.resolver.Apply(req.Module, req.Function, req.Args)
		res := applyRes{Result: result}
		if err != nil {
			res.Errmsg = err.Error()
		}
		return encode(res)
	default:
		return nil, errors.New(fmt.Sprintf("Unsupport method: %v", method))
	}
}

func decode(data []byte, req interface{}) error {
	return errors.WithStack(gob.NewDecoder(bytes.NewReader(data)).Decode(req))
}

func encode(res interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(res)
	return buf.Bytes(), errors.WithStack(err)
}

func (n *Node) remoteRegistryGet(target rpccore.NodeID) (map[rpccore.NodeID]registry.Metadata, error) {
	var res registryGetRes
	if err := n.callRPCAndLogError(target, rpcMethodRegistryGet, registryGetReq{}, &res); err != nil {
		return nil, err
	}
	return res.Nodes, nil
}

func (n *Node) remoteMetadata(target rpccore.NodeID) (registry.Metadata, error) {
	var res metadataRes
	if err := n.callRPCAndLogError(target, rpcMethodMetadata, metadataReq{}, &res); err != nil {
		return nil, err
	}
	return res.Metadata, nil
}

// pushSelfMetadata advertises this node's metadata into the target's
// registry, so the target learns of us even if it was not seeding us.
func (n *Node) pushSelfMetadata(target rpccore.NodeID) error {
	var res ackRes
	req := pushMetadataReq{Metadata: n.registry.SelfMetadata()}
	return n.callRPCAndLogError(target, rpcMethodPushMetadata, req, &res)
}

func (n *Node) remoteAcceptancePriority(target rpccore.NodeID, req store.Request) (int, bool, error) {
	var res acceptancePriorityRes
	err := n.callRPCAndLogError(target, rpcMethodAcceptancePriority,
		acceptancePriorityReq{Request: req}, &res)
	if err != nil {
		return 0, false, err
	}
	return res.Priority, res.Eligible, nil
}

func (n *Node) remoteInsertHandling(target rpccore.NodeID, req store.Request) error {
	var res ackRes
	return n.callRPCAndLogError(target, rpcMethodInsertHandling,
		insertHandlingReq{Request: req}, &res)
}

func (n *Node) remoteRemoveRequest(target rpccore.NodeID, id string) error {
	var res ackRes
	return n.callRPCAndLogError(target, rpcMethodRemoveRequest,
		removeRequestReq{ID: id}, &res)
}

func (n *Node) remoteDeliver(target rpccore.NodeID, env Envelope) error {
	var res ackRes
	return n.callRPCAndLogError(target, rpcMethodDeliver,
		deliverReq{Envelope: env}, &res)
}

// remoteStore adapts the node's RPC surface to the store.Remote interface,
// short-circuiting calls addressed to the node itself.
type remoteStore struct {
	n *Node
}

func (r remoteStore) InsertHandling(target rpccore.NodeID, req store.Request) error {
	if target == r.n.registry.SelfName() {
		r.n.store.InsertHandling(req)
		return nil
	}
	return r.n.remoteInsertHandling(target, req)
}

func (r remoteStore) RemoveRequest(target rpccore.NodeID, id string) error {
	if target == r.n.registry.SelfName() {
		r.n.store.Remove(id)
		return nil
	}
	return r.n.remoteRemoveRequest(target, id)
}
