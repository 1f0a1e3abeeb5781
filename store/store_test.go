package store

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-mesh/please/config"
	"github.com/please-mesh/please/resolver"
	"github.com/please-mesh/please/rpccore"
)

type fakeRemote struct {
	inserted map[rpccore.NodeID][]Request
	removed  map[rpccore.NodeID][]string
	fail     bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		inserted: make(map[rpccore.NodeID][]Request),
		removed:  make(map[rpccore.NodeID][]string),
	}
}

func (f *fakeRemote) InsertHandling(target rpccore.NodeID, req Request) error {
	if f.fail {
		return errors.New("peer unreachable")
	}
	f.inserted[target] = append(f.inserted[target], req)
	return nil
}

func (f *fakeRemote) RemoveRequest(target rpccore.NodeID, id string) error {
	if f.fail {
		return errors.New("peer unreachable")
	}
	f.removed[target] = append(f.removed[target], id)
	return nil
}

func newTestStore(cfg *config.Config) (*Store, *resolver.Resolver, *fakeRemote) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	res := resolver.New()
	res.Register("math", "square", 1, func(args []interface{}) (interface{}, error) {
		n := args[0].(int)
		return n * n, nil
	})
	remote := newFakeRemote()
	logger := logrus.New().WithField("nodeID", "a@h")
	return New(cfg, res, remote, logger), res, remote
}

func squareReq() Request {
	return NewRequest("a@h", "caller-1", "math", "square", []interface{}{7})
}

func TestAddIsIdempotentOnID(t *testing.T) {
	s, _, _ := newTestStore(nil)
	req := squareReq()
	s.Add(req)
	s.Add(req)

	pending, handling := s.Get()
	assert.Len(t, pending, 1)
	assert.Len(t, handling, 0)

	// re-adding pulls the request back out of handling too
	require.NoError(t, s.Pick(req.ID))
	s.Add(req)
	pending, handling = s.Get()
	assert.Len(t, pending, 1)
	assert.Len(t, handling, 0)
}

func TestAddPrepends(t *testing.T) {
	s, _, _ := newTestStore(nil)
	first := squareReq()
	second := squareReq()
	s.Add(first)
	s.Add(second)
	pending := s.GetPending()
	require.Len(t, pending, 2)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestPickMovesToHandling(t *testing.T) {
	s, _, _ := newTestStore(nil)
	req := squareReq()
	s.Add(req)
	require.NoError(t, s.Pick(req.ID))

	pending, handling := s.Get()
	assert.Len(t, pending, 0)
	require.Len(t, handling, 1)
	assert.Equal(t, req.ID, handling[0].ID)

	// the picked request is still found by id, now in handling
	got, ok := s.GetByID(req.ID)
	require.True(t, ok)
	assert.Equal(t, req.ID, got.ID)
}

func TestPickUnknownIDFails(t *testing.T) {
	s, _, _ := newTestStore(nil)
	assert.Error(t, s.Pick("no-such-id"))

	// picking twice loses the race the second time
	req := squareReq()
	s.Add(req)
	require.NoError(t, s.Pick(req.ID))
	assert.Error(t, s.Pick(req.ID))
}

func TestRemove(t *testing.T) {
	s, _, _ := newTestStore(nil)
	req := squareReq()
	s.Add(req)
	s.Remove(req.ID)
	_, ok := s.GetByID(req.ID)
	assert.False(t, ok)

	// no-op when absent
	s.Remove(req.ID)
}

func TestDelegate(t *testing.T) {
	s, _, remote := newTestStore(nil)
	req := squareReq()
	s.Add(req)

	require.NoError(t, s.Delegate("b@h", req))
	require.Len(t, remote.inserted["b@h"], 1)
	assert.Equal(t, req.ID, remote.inserted["b@h"][0].ID)

	pending, handling := s.Get()
	assert.Len(t, pending, 0)
	assert.Len(t, handling, 0)
}

func TestDelegateRemoteFailureKeepsPending(t *testing.T) {
	s, _, remote := newTestStore(nil)
	remote.fail = true
	req := squareReq()
	s.Add(req)

	assert.Error(t, s.Delegate("b@h", req))
	pending := s.GetPending()
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)
}

func TestInsertHandling(t *testing.T) {
	s, _, _ := newTestStore(nil)
	req := squareReq()
	s.InsertHandling(req)
	handling := s.GetHandling()
	require.Len(t, handling, 1)

	// idempotent on id
	s.InsertHandling(req)
	assert.Len(t, s.GetHandling(), 1)
}

func TestDropDispatched(t *testing.T) {
	s, _, _ := newTestStore(nil)
	a, b := squareReq(), squareReq()
	s.InsertHandling(a)
	s.InsertHandling(b)
	s.DropDispatched([]string{a.ID, b.ID})
	assert.Len(t, s.GetHandling(), 0)
}

func TestBusyness(t *testing.T) {
	cfg := &config.Config{
		BusynessWeights: config.BiasMap{"math": {"square": {Value: 250}}},
	}
	s, res, _ := newTestStore(cfg)
	res.Register("math", "cube", 1, func(args []interface{}) (interface{}, error) {
		n := args[0].(int)
		return n * n * n, nil
	})

	assert.Equal(t, 0, s.Busyness())

	s.BaseBusynessIncrease(0) // default step
	assert.Equal(t, DefaultBusynessStep, s.BaseBusyness())

	sq := squareReq()
	cube := NewRequest("a@h", "caller-2", "math", "cube", []interface{}{3})
	s.InsertHandling(sq)   // configured weight 250
	s.InsertHandling(cube) // default weight 100

	want := DefaultBusynessStep + 250 + DefaultBusynessWeight
	assert.Equal(t, want, s.Busyness())

	s.BaseBusynessDecrease(300)
	assert.Equal(t, DefaultBusynessStep-300, s.BaseBusyness())
	assert.Equal(t, want-300, s.Busyness())
}

func TestBusynessWeight(t *testing.T) {
	cfg := &config.Config{
		BusynessWeights: config.BiasMap{
			"math": {"square": {Value: 42}, "cube": {Reject: true}},
		},
	}
	s, res, _ := newTestStore(cfg)
	res.Register("math", "cube", 1, func(args []interface{}) (interface{}, error) {
		return nil, nil
	})
	res.Register("math", "id", 1, func(args []interface{}) (interface{}, error) {
		return args[0], nil
	})

	w, ok := s.BusynessWeight(squareReq())
	require.True(t, ok)
	assert.Equal(t, 42, w)

	// absent weight defaults
	w, ok = s.BusynessWeight(NewRequest("a@h", "c", "math", "id", []interface{}{1}))
	require.True(t, ok)
	assert.Equal(t, DefaultBusynessWeight, w)

	// "reject" weight
	_, ok = s.BusynessWeight(NewRequest("a@h", "c", "math", "cube", []interface{}{1}))
	assert.False(t, ok)

	// unresolvable
	_, ok = s.BusynessWeight(NewRequest("a@h", "c", "math", "missing", []interface{}{1}))
	assert.False(t, ok)
}

func TestAcceptancePriority(t *testing.T) {
	cfg := &config.Config{
		BusynessOffsets: config.BiasMap{
			"math": {"square": {Value: 500}, "cube": {Reject: true}},
		},
	}
	s, res, _ := newTestStore(cfg)
	res.Register("math", "cube", 1, func(args []interface{}) (interface{}, error) {
		return nil, nil
	})
	res.Register("math", "id", 1, func(args []interface{}) (interface{}, error) {
		return args[0], nil
	})
	s.BaseBusynessIncrease(100)

	// absent offset: -base
	p, ok := s.AcceptancePriority(NewRequest("a@h", "c", "math", "id", []interface{}{1}))
	require.True(t, ok)
	assert.Equal(t, -100, p)

	// configured offset: -(base + offset)
	p, ok = s.AcceptancePriority(squareReq())
	require.True(t, ok)
	assert.Equal(t, -600, p)

	// "reject" offset: ineligible
	_, ok = s.AcceptancePriority(NewRequest("a@h", "c", "math", "cube", []interface{}{1}))
	assert.False(t, ok)

	// unresolvable: ineligible
	_, ok = s.AcceptancePriority(NewRequest("a@h", "c", "math", "missing", []interface{}{1}))
	assert.False(t, ok)

	// wrong arity: ineligible
	_, ok = s.AcceptancePriority(NewRequest("a@h", "c", "math", "square", []interface{}{1, 2}))
	assert.False(t, ok)
}

func TestRequestIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		req := squareReq()
		assert.False(t, seen[req.ID])
		seen[req.ID] = true
	}
}
