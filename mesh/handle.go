package mesh

import (
	metrics "github.com/armon/go-metrics"

	"github.com/please-mesh/please/store"
)

// handleCycle spawns one worker per handling request and immediately drops
// the dispatched requests from the local store, so each request runs here
// at most once. Workers run concurrently; the cycle never awaits them.
func (n *Node) handleCycle() {
	handling := n.store.GetHandling()
	metrics.SetGauge([]string{"please", "handling"}, float32(len(handling)))
	metrics.SetGauge([]string{"please", "busyness"}, float32(n.store.Busyness()))
	if len(handling) == 0 {
		return
	}
	ids := make([]string, 0, len(handling))
	for _, req := range handling {
		go n.executeRequest(req)
		ids = append(ids, req.ID)
	}
	n.store.DropDispatched(ids)
	metrics.IncrCounter([]string{"please", "handle", "spawned"}, float32(len(ids)))
}

// executeRequest invokes the function and ships the result back to the
// waiting caller on the origin node, then clears the request from the
// originator's store. If this worker dies before sending, the caller's
// receive window handles it; there is no retry.
func (n *Node) executeRequest(req store.Request) {
	logger := n.logger.WithField("task", "handle_requests")
	self := n.registry.SelfName()

	result, err := n.resolver.Apply(req.Module, req.Function, req.Args)
	var env Envelope
	if err != nil {
		reqCopy := req
		env = Envelope{
			Channel:      RequestsChannelTag,
			Tag:          ErrorTag,
			ID:           req.ID,
			Request:      &reqCopy,
			Executor:     self,
			ErrorInfo:    err.Error(),
			CallerHandle: req.CallerHandle,
		}
		metrics.IncrCounter([]string{"please", "handle", "errors"}, 1)
	} else {
		env = Envelope{
			Channel:      RequestsChannelTag,
			Tag:          ResponseTag,
			ID:           req.ID,
			Executor:     self,
			Result:       result,
			CallerHandle: req.CallerHandle,
		}
	}

	if req.Origin == self {
		if !n.callers.deliver(env) {
			logger.Debugf("Discarding envelope for gone caller %v.", req.CallerHandle)
		}
		n.store.Remove(req.ID)
		return
	}
	if err := n.remoteDeliver(req.Origin, env); err != nil {
		logger.Debugf("Unable to deliver result of %v to %v: %v",
			req.ID, req.Origin, err)
	}
	if err := n.remoteRemoveRequest(req.Origin, req.ID); err != nil {
		logger.Debugf("Unable to clear %v on %v: %v", req.ID, req.Origin, err)
	}
}
