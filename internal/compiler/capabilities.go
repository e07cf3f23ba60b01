package compiler

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/dop251/goja"
)

// DefaultMaxCallStack bounds recursion depth inside untrusted code.
const DefaultMaxCallStack = 500

// Capability produces the value bound under a capability name in a
// freshly created runtime.
type Capability func(rt *goja.Runtime) any

// Capabilities is the table of host bindings installed into every runtime,
// together with the standard globals removed from it.
//
// The zero value installs nothing and removes nothing.
type Capabilities struct {
	bindings     map[string]Capability
	denied       []string
	maxCallStack int
}

// NewCapabilities returns an empty table.
func NewCapabilities() Capabilities {
	return Capabilities{bindings: make(map[string]Capability)}
}

// With returns a copy of c with name bound to fn.
func (c Capabilities) With(name string, fn Capability) Capabilities {
	out := c.clone()
	out.bindings[name] = fn
	return out
}

// Without returns a copy of c that removes the named globals from every
// runtime.
func (c Capabilities) Without(names ...string) Capabilities {
	out := c.clone()
	for _, name := range names {
		if !slices.Contains(out.denied, name) {
			out.denied = append(out.denied, name)
		}
	}
	return out
}

// WithMaxCallStack returns a copy of c with the call stack bound set.
// Zero or negative selects DefaultMaxCallStack.
func (c Capabilities) WithMaxCallStack(n int) Capabilities {
	out := c.clone()
	out.maxCallStack = n
	return out
}

// Names returns the bound capability names in sorted order.
func (c Capabilities) Names() []string {
	return slices.Sorted(maps.Keys(c.bindings))
}

// Denied returns the removed globals.
func (c Capabilities) Denied() []string {
	return slices.Clone(c.denied)
}

// MaxCallStack returns the effective call stack bound.
func (c Capabilities) MaxCallStack() int {
	if c.maxCallStack <= 0 {
		return DefaultMaxCallStack
	}
	return c.maxCallStack
}

func (c Capabilities) clone() Capabilities {
	out := Capabilities{
		bindings:     make(map[string]Capability, len(c.bindings)+1),
		denied:       slices.Clone(c.denied),
		maxCallStack: c.maxCallStack,
	}
	maps.Copy(out.bindings, c.bindings)
	return out
}

// SafeBase returns the fixed capability set every environment starts from.
//
// Removed: eval and the Function constructor, the two ways to compile
// code at runtime past the compiler.
//
// Bound:
//
//	log(...values)  writes the values to the engine's diagnostic log (stderr)
func SafeBase() Capabilities {
	return NewCapabilities().
		Without("eval", "Function").
		With("log", logCapability)
}

func logCapability(rt *goja.Runtime) any {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		slog.Info("script log", "message", strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// blockConstructorAccess closes the path to the Function constructor via
// any function's prototype chain.
const blockConstructorAccess = `(function() {
	try {
		Object.defineProperty(Object.getPrototypeOf(function() {}), 'constructor', {
			value: function() { throw new TypeError('Function constructor is disabled'); },
			writable: false,
			configurable: false
		});
	} catch (e) {}
})();`

// NewRuntime creates a hardened runtime carrying the capabilities in c.
func NewRuntime(c Capabilities) (*goja.Runtime, error) {
	rt := goja.New()
	rt.SetMaxCallStackSize(c.MaxCallStack())

	if _, err := rt.RunString(blockConstructorAccess); err != nil {
		return nil, fmt.Errorf("harden runtime: %w", err)
	}

	global := rt.GlobalObject()
	for _, name := range c.denied {
		if err := global.Delete(name); err != nil {
			return nil, fmt.Errorf("remove global %q: %w", name, err)
		}
	}

	for _, name := range c.Names() {
		if err := rt.Set(name, c.bindings[name](rt)); err != nil {
			return nil, fmt.Errorf("bind capability %q: %w", name, err)
		}
	}

	return rt, nil
}
