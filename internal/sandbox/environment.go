package sandbox

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dop251/goja"

	"github.com/roach88/scriptengine/internal/compiler"
)

// binding is one entry of the environment. owner is the runtime that
// produced value; values are only valid inside their owner.
type binding struct {
	value goja.Value
	owner *goja.Runtime
}

// Environment is the process-wide binding table plus the capability table
// installed into every runtime.
type Environment struct {
	caps     compiler.Capabilities
	bindings map[string]binding

	// ctx is the context of the request currently executing. Bridges read
	// it so calls into older runtimes are interrupted with the request.
	ctx context.Context
}

// New creates an empty environment whose runtimes carry caps.
func New(caps compiler.Capabilities) *Environment {
	return &Environment{
		caps:     caps,
		bindings: make(map[string]binding),
		ctx:      context.Background(),
	}
}

// Capabilities returns the capability table installed into every runtime.
func (e *Environment) Capabilities() compiler.Capabilities {
	return e.caps
}

// Names returns the bound names in sorted order.
func (e *Environment) Names() []string {
	return slices.Sorted(maps.Keys(e.bindings))
}

// Len returns the number of bindings.
func (e *Environment) Len() int {
	return len(e.bindings)
}

// Lookup returns the exported Go value bound to name.
func (e *Environment) Lookup(name string) (any, bool) {
	b, ok := e.bindings[name]
	if !ok {
		return nil, false
	}
	var v any
	if err := try(b.owner, func() { v = b.value.Export() }); err != nil {
		return nil, true
	}
	return v, true
}

// Load runs unit in a fresh runtime seeded with a copy of the environment
// and merges the globals it defines. It returns the merged names in sorted
// order.
//
// If the unit throws, Load returns *ExecutionError and the environment is
// unchanged.
func (e *Environment) Load(ctx context.Context, unit *compiler.Unit) ([]string, error) {
	restore := e.enter(ctx)
	defer restore()

	rt, err := compiler.NewRuntime(e.caps)
	if err != nil {
		return nil, err
	}
	before, err := e.install(ctx, rt, unit)
	if err != nil {
		return nil, err
	}

	err = run(ctx, rt, func() error {
		_, err := rt.RunProgram(unit.Program())
		return err
	})
	if err != nil {
		return nil, executionError(ctx, rt, unit, err)
	}

	var locals map[string]goja.Value
	err = guard(ctx, rt, func() error {
		locals = collect(rt, before)
		return nil
	})
	if err != nil {
		return nil, executionError(ctx, rt, unit, err)
	}

	names := slices.Sorted(maps.Keys(locals))
	for _, name := range names {
		e.bindings[name] = binding{value: locals[name], owner: rt}
	}
	return names, nil
}

// enter makes ctx the current request context until the returned function
// is called.
func (e *Environment) enter(ctx context.Context) func() {
	prev := e.ctx
	e.ctx = ctx
	return func() { e.ctx = prev }
}

func (e *Environment) context() context.Context {
	return e.ctx
}

// install copies the environment into rt and returns a snapshot of its
// globals. Copying reads objects of earlier runtimes, so it runs guarded
// against each owner; a failure is reported against unit.
func (e *Environment) install(ctx context.Context, rt *goja.Runtime, unit *compiler.Unit) (map[string]goja.Value, error) {
	c := e.newCopier()
	global := rt.GlobalObject()
	for _, name := range e.Names() {
		b := e.bindings[name]
		var v goja.Value
		err := guard(ctx, b.owner, func() error {
			v = c.value(b.owner, rt, b.value, nil)
			return nil
		})
		if err != nil {
			return nil, executionError(ctx, b.owner, unit, err)
		}
		if err := global.Set(name, v); err != nil {
			return nil, executionError(ctx, rt, unit, fmt.Errorf("install binding %q: %w", name, err))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var before map[string]goja.Value
	err := guard(ctx, rt, func() error {
		before = snapshot(rt)
		return nil
	})
	if err != nil {
		return nil, executionError(ctx, rt, unit, err)
	}
	return before, nil
}

func snapshot(rt *goja.Runtime) map[string]goja.Value {
	global := rt.GlobalObject()
	names := global.GetOwnPropertyNames()
	out := make(map[string]goja.Value, len(names))
	for _, name := range names {
		out[name] = global.Get(name)
	}
	return out
}

// collect returns the globals of rt that are new or differ from before.
func collect(rt *goja.Runtime, before map[string]goja.Value) map[string]goja.Value {
	out := make(map[string]goja.Value)
	global := rt.GlobalObject()
	for _, name := range global.GetOwnPropertyNames() {
		v := global.Get(name)
		if v == nil {
			continue
		}
		if prev, ok := before[name]; ok && prev != nil && v.SameAs(prev) {
			continue
		}
		out[name] = v
	}
	return out
}

// executionError converts an error from a run in rt into *ExecutionError,
// unless the run was stopped by ctx.
func executionError(ctx context.Context, rt *goja.Runtime, unit *compiler.Unit, err error) error {
	if ctx.Err() != nil {
		return err
	}
	name, message := describe(ctx, rt, err)
	return &ExecutionError{Unit: unit.Name(), Name: name, Message: message}
}

// describe returns the name and message of err, thrown in rt. Reading them
// may run getters of the thrown value; if those throw too, a generic
// description is returned.
func describe(ctx context.Context, rt *goja.Runtime, err error) (name, message string) {
	var exc *goja.Exception
	if !errors.As(err, &exc) {
		return compiler.ExceptionParts(err)
	}
	name, message = "Error", "exception could not be described"
	_ = guard(ctx, rt, func() error {
		name, message = compiler.ExceptionParts(err)
		return nil
	})
	return name, message
}
