/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

// Package resolver maps symbolic module.function/arity names onto local
// callables. Each node resolves requests against its own table only; a name
// that does not resolve simply makes the node ineligible for that request.
package resolver

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
)

// Func is a callable registered under a module.function/arity name.
type Func func(args []interface{}) (interface{}, error)

type Resolver struct {
	lock  deadlock.RWMutex
	funcs map[string]Func
}

func New() *Resolver {
	return &Resolver{funcs: make(map[string]Func)}
}

// Register makes fn resolvable as module.function with the given arity.
// Re-registering the same name replaces the previous callable.
func (r *Resolver) Register(module, function string, arity int, fn Func) {
	r.lock.Lock()
	r.funcs[key(module, function, arity)] = fn
	r.lock.Unlock()
}

// Resolve looks up the callable for module.function/arity.
func (r *Resolver) Resolve(module, function string, arity int) (Func, bool) {
	r.lock.RLock()
	fn, ok := r.funcs[key(module, function, arity)]
	r.lock.RUnlock()
	return fn, ok
}

// Resolvable reports whether module.function/arity has a local callable.
func (r *Resolver) Resolvable(module, function string, arity int) bool {
	_, ok := r.Resolve(module, function, arity)
	return ok
}

// Apply resolves module.function by the arity of args and invokes it.
// A panic inside the callable is captured and returned as an error.
func (r *Resolver) Apply(module, function string, args []interface{}) (result interface{}, err error) {
	fn, ok := r.Resolve(module, function, len(args))
	if !ok {
		return nil, errors.Errorf(
			"unable to resolve %v.%v/%v", module, function, len(args))
	}
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = errors.Errorf("%v.%v/%v panicked: %v",
				module, function, len(args), rec)
		}
	}()
	return fn(args)
}

func key(module, function string, arity int) string {
	return fmt.Sprintf("%v.%v/%v", module, function, arity)
}
