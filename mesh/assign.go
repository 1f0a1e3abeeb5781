package mesh

import (
	metrics "github.com/armon/go-metrics"

	"github.com/please-mesh/please/rpccore"
)

// assignCycle schedules pending requests: every known node (self included)
// is asked for its acceptance priority, and the highest bidder gets the
// request, either by a local pick or by delegation. Requests nobody is
// willing to take stay pending for the next cycle.
func (n *Node) assignCycle() {
	pending := n.store.GetPending()
	metrics.SetGauge([]string{"please", "pending"}, float32(len(pending)))
	if len(pending) == 0 {
		return
	}
	logger := n.logger.WithField("task", "assign_requests")
	self := n.registry.SelfName()
	// ascending name order makes the tie-break deterministic per cycle
	names := n.registry.Names()

	for _, req := range pending {
		var winner rpccore.NodeID
		var best int
		found := false
		for _, id := range names {
			var priority int
			var eligible bool
			if id == self {
				priority, eligible = n.store.AcceptancePriority(req)
			} else {
				var err error
				priority, eligible, err = n.remoteAcceptancePriority(id, req)
				// an errored peer counts as ineligible
				eligible = eligible && err == nil
			}
			if eligible && (!found || priority > best) {
				winner, best, found = id, priority, true
			}
		}
		if !found {
			continue
		}
		if winner == self {
			if err := n.store.Pick(req.ID); err != nil {
				logger.Debugf("Lost the pick race for %v: %v", req.ID, err)
				continue
			}
			metrics.IncrCounter([]string{"please", "assign", "picked"}, 1)
		} else {
			if err := n.store.Delegate(winner, req); err != nil {
				logger.Debugf("Unable to delegate %v to %v: %v", req.ID, winner, err)
				continue
			}
			metrics.IncrCounter([]string{"please", "assign", "delegated"}, 1)
		}
		logger.Tracef("Assigned %v.%v/%v to %v (priority %v).",
			req.Module, req.Function, req.Arity(), winner, best)
	}
}
