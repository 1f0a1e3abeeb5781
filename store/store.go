/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

// Package store tracks the requests a node originated (pending) and the
// requests it is executing (handling), together with the node's base
// busyness. All state transitions are serialized; operations that need
// remote data compute it before taking the lock.
package store

import (
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/please-mesh/please/config"
	"github.com/please-mesh/please/resolver"
	"github.com/please-mesh/please/rpccore"
)

const (
	// DefaultBusynessStep is the bump applied by the base busyness
	// increase/decrease helpers when no explicit delta is given.
	DefaultBusynessStep = 100

	// DefaultBusynessWeight applies to handling requests with no
	// configured weight.
	DefaultBusynessWeight = 100
)

// Remote is the narrow surface the store needs on other nodes: inserting a
// delegated request into the target's handling list and removing a finished
// request from the originator.
type Remote interface {
	InsertHandling(target rpccore.NodeID, req Request) error
	RemoveRequest(target rpccore.NodeID, id string) error
}

type Store struct {
	lock         deadlock.Mutex
	pending      []Request
	handling     []Request
	baseBusyness int

	cfg    *config.Config
	res    *resolver.Resolver
	remote Remote
	logger *logrus.Entry
}

func New(cfg *config.Config, res *resolver.Resolver, remote Remote, logger *logrus.Entry) *Store {
	return &Store{cfg: cfg, res: res, remote: remote, logger: logger}
}

// Add prepends req to pending, first dropping any entry with the same id
// from either list. Re-adding is therefore idempotent on id.
func (s *Store) Add(req Request) {
	s.lock.Lock()
	s.pending = append([]Request{req}, removeByID(s.pending, req.ID)...)
	s.handling = removeByID(s.handling, req.ID)
	s.lock.Unlock()
}

// Remove deletes the request from both lists. No-op if absent.
func (s *Store) Remove(id string) {
	s.lock.Lock()
	s.pending = removeByID(s.pending, id)
	s.handling = removeByID(s.handling, id)
	s.lock.Unlock()
}

// Pick moves the request from pending to handling. An id not currently in
// pending is an error: either a lost assignment race or an unknown id.
func (s *Store) Pick(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i, req := range s.pending {
		if req.ID == id {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			s.handling = append([]Request{req}, removeByID(s.handling, id)...)
			return nil
		}
	}
	return errors.Errorf("request not found in pending: %v", id)
}

// Delegate pushes req onto the target peer's handling list and, only once
// the remote insert succeeded, drops it locally. On remote failure the
// request stays pending and will be retried on a later assignment cycle.
// The remote call runs before the lock is taken; see the package comment.
func (s *Store) Delegate(target rpccore.NodeID, req Request) error {
	if err := s.remote.InsertHandling(target, req); err != nil {
		return errors.Wrapf(err, "delegate %v to %v", req.ID, target)
	}
	s.lock.Lock()
	s.pending = removeByID(s.pending, req.ID)
	s.handling = removeByID(s.handling, req.ID)
	s.lock.Unlock()
	return nil
}

// InsertHandling places a request directly into the handling list, dropping
// any same-id entry first. This is the operation a delegating originator
// invokes on its chosen executor.
func (s *Store) InsertHandling(req Request) {
	s.lock.Lock()
	s.pending = removeByID(s.pending, req.ID)
	s.handling = append([]Request{req}, removeByID(s.handling, req.ID)...)
	s.lock.Unlock()
}

// DropDispatched removes the given ids from both lists. The handle task
// calls this right after spawning workers so each request runs locally at
// most once.
func (s *Store) DropDispatched(ids []string) {
	s.lock.Lock()
	for _, id := range ids {
		s.pending = removeByID(s.pending, id)
		s.handling = removeByID(s.handling, id)
	}
	s.lock.Unlock()
}

// Get returns snapshots of both lists.
func (s *Store) Get() (pending []Request, handling []Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return copyRequests(s.pending), copyRequests(s.handling)
}

func (s *Store) GetPending() []Request {
	s.lock.Lock()
	defer s.lock.Unlock()
	return copyRequests(s.pending)
}

func (s *Store) GetHandling() []Request {
	s.lock.Lock()
	defer s.lock.Unlock()
	return copyRequests(s.handling)
}

// GetByID finds a request in either list.
func (s *Store) GetByID(id string) (Request, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, req := range s.pending {
		if req.ID == id {
			return req, true
		}
	}
	for _, req := range s.handling {
		if req.ID == id {
			return req, true
		}
	}
	return Request{}, false
}

// Busyness is the scheduling load signal: base busyness plus the busyness
// weight of every handling request. Requests whose weight does not resolve
// contribute nothing.
func (s *Store) Busyness() int {
	s.lock.Lock()
	base := s.baseBusyness
	handling := copyRequests(s.handling)
	s.lock.Unlock()
	total := base
	for _, req := range handling {
		if w, ok := s.BusynessWeight(req); ok {
			total += w
		}
	}
	return total
}

func (s *Store) BaseBusyness() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.baseBusyness
}

// BaseBusynessIncrease raises the base busyness by delta, or by
// DefaultBusynessStep when delta <= 0.
func (s *Store) BaseBusynessIncrease(delta int) {
	if delta <= 0 {
		delta = DefaultBusynessStep
	}
	s.lock.Lock()
	s.baseBusyness += delta
	s.lock.Unlock()
}

// BaseBusynessDecrease lowers the base busyness by delta, or by
// DefaultBusynessStep when delta <= 0. Base busyness is signed and has no
// bound.
func (s *Store) BaseBusynessDecrease(delta int) {
	if delta <= 0 {
		delta = DefaultBusynessStep
	}
	s.lock.Lock()
	s.baseBusyness -= delta
	s.lock.Unlock()
}

func removeByID(reqs []Request, id string) []Request {
	kept := reqs[:0:len(reqs)]
	for _, req := range reqs {
		if req.ID != id {
			kept = append(kept, req)
		}
	}
	return kept
}

func copyRequests(reqs []Request) []Request {
	cp := make([]Request, len(reqs))
	copy(cp, reqs)
	return cp
}
