package mesh

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"

	"github.com/please-mesh/please/rpccore"
	"github.com/please-mesh/please/store"
)

// DefaultCallTimeout is the caller-side receive window of MakeItSo.
const DefaultCallTimeout = 5000 * time.Millisecond

// ErrTimeout is returned when the receive window elapses before a result
// arrives. The mesh may still execute the request; its late result is
// silently discarded.
var ErrTimeout = errors.New("request timed out")

// ExecutionError reports a failure inside the invoked function, including
// which node it occurred on.
type ExecutionError struct {
	Executor rpccore.NodeID
	Info     string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed on %v: %v", e.Executor, e.Info)
}

// CallResult is a successful MakeItSo outcome.
type CallResult struct {
	Value    interface{}
	Executor rpccore.NodeID
}

type callOptions struct {
	timeout time.Duration
}

type CallOption func(*callOptions)

// WithTimeout overrides the caller-side receive window.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// callerTable maps caller handles to the channels their envelopes should be
// delivered on. The handle is just a string, so it travels inside requests
// across the mesh and routes the response back here.
type callerTable struct {
	lock    deadlock.Mutex
	waiters map[string]chan Envelope
}

func newCallerTable() *callerTable {
	return &callerTable{waiters: make(map[string]chan Envelope)}
}

func (t *callerTable) register() (string, chan Envelope) {
	handle := uuid.New().String()
	ch := make(chan Envelope, 1)
	t.lock.Lock()
	t.waiters[handle] = ch
	t.lock.Unlock()
	return handle, ch
}

func (t *callerTable) unregister(handle string) {
	t.lock.Lock()
	delete(t.waiters, handle)
	t.lock.Unlock()
}

// deliver hands the envelope to its waiting caller. Envelopes for unknown
// or already-satisfied handles are dropped, which covers both the abandoned
// caller and duplicate execution.
func (t *callerTable) deliver(env Envelope) bool {
	t.lock.Lock()
	ch, ok := t.waiters[env.CallerHandle]
	t.lock.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- env:
		return true
	default:
		return false
	}
}

// MakeItSo asks the mesh to compute module.function(args) and waits for the
// result. The request may be executed on any capable node; the returned
// CallResult reports which one. Timeouts surface as ErrTimeout, failures
// inside the function as *ExecutionError.
func (n *Node) MakeItSo(module, function string, args []interface{}, opts ...CallOption) (*CallResult, error) {
	o := callOptions{timeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	handle, ch := n.callers.register()
	defer n.callers.unregister(handle)

	req := store.NewRequest(n.registry.SelfName(), handle, module, function, args)
	n.store.Add(req)

	select {
	case env := <-ch:
		if env.Tag == ErrorTag {
			return nil, &ExecutionError{Executor: env.Executor, Info: env.ErrorInfo}
		}
		return &CallResult{Value: env.Result, Executor: env.Executor}, nil
	case <-time.After(o.timeout):
		return nil, ErrTimeout
	}
}
