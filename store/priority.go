package store

// AcceptancePriority scores a request against this node's own state. The
// second return value is false when the node is ineligible: the function is
// not locally resolvable, or the configured offset is "reject". Higher
// scores are preferred across the mesh; negating busyness makes "least
// busy, most eager" the maximum.
func (s *Store) AcceptancePriority(req Request) (int, bool) {
	if !s.res.Resolvable(req.Module, req.Function, req.Arity()) {
		return 0, false
	}
	base := s.BaseBusyness()
	offset, ok := s.cfg.BusynessOffsets.Lookup(req.Module, req.Function)
	if !ok {
		return -base, true
	}
	if offset.Reject {
		return 0, false
	}
	return -(base + offset.Value), true
}

// BusynessWeight is the request's contribution to this node's load while it
// is being handled. False when the function is not locally resolvable or
// its weight is configured as "reject"; an absent weight defaults to
// DefaultBusynessWeight.
func (s *Store) BusynessWeight(req Request) (int, bool) {
	if !s.res.Resolvable(req.Module, req.Function, req.Arity()) {
		return 0, false
	}
	weight, ok := s.cfg.BusynessWeights.Lookup(req.Module, req.Function)
	if !ok {
		return DefaultBusynessWeight, true
	}
	if weight.Reject {
		return 0, false
	}
	return weight.Value, true
}
