package sandbox

import (
	"context"
	"errors"
	"reflect"
	"strconv"

	"github.com/dop251/goja"
)

// bridgeFactory builds the function a bridged callable appears as. It
// dispatches plain calls and new to the two natives it is given, so a
// bridged constructor still works with new.
var bridgeFactory = goja.MustCompile("bridge", `(function (call, construct) {
	return function (...args) {
		if (new.target !== undefined) {
			return construct(args);
		}
		return call(this, args);
	};
})`, true)

// copier moves values from one runtime into another.
// seen maps source objects to their copies so shared and cyclic structure
// is preserved.
type copier struct {
	env       *Environment
	ctx       context.Context
	seen      map[*goja.Object]*goja.Object
	factories map[*goja.Runtime]goja.Callable
}

func (e *Environment) newCopier() *copier {
	return &copier{
		env:       e,
		ctx:       e.context(),
		seen:      make(map[*goja.Object]*goja.Object),
		factories: make(map[*goja.Runtime]goja.Callable),
	}
}

// value returns a value usable in dst equivalent to v from src.
// this is the object v was read from, used as the receiver when v is a
// function.
//
// Plain data (objects whose prototype is Object.prototype or null, arrays,
// errors) is copied. Functions are bridged and other objects, such as
// class instances, are reached through a remote so their prototype and
// state stay in src. Properties whose getters throw are left out of the
// copy.
//
// value reads script-controlled properties of src and must be called
// under guard for src.
func (c *copier) value(src, dst *goja.Runtime, v, this goja.Value) goja.Value {
	if src == dst {
		return v
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return v
	}
	if out, ok := c.seen[obj]; ok {
		return out
	}

	if r := asRemote(obj); r != nil {
		if r.src == dst {
			return r.obj
		}
		out := c.remote(r.src, dst, r.obj)
		c.seen[obj] = out
		return out
	}

	if fn, ok := goja.AssertFunction(obj); ok {
		ctor, _ := goja.AssertConstructor(obj)
		out := c.bridge(src, dst, fn, ctor, this)
		c.seen[obj] = out
		return out
	}

	switch obj.ClassName() {
	case "Array":
		out := dst.NewArray()
		c.seen[obj] = out
		n := c.get(src, obj, "length").ToInteger()
		for i := int64(0); i < n; i++ {
			key := strconv.FormatInt(i, 10)
			_ = out.Set(key, c.value(src, dst, c.get(src, obj, key), obj))
		}
		return out
	case "Object":
		if !plain(src, obj) {
			out := c.remote(src, dst, obj)
			c.seen[obj] = out
			return out
		}
		out := dst.NewObject()
		c.seen[obj] = out
		for _, key := range c.keys(src, obj) {
			_ = out.Set(key, c.value(src, dst, c.get(src, obj, key), obj))
		}
		return out
	case "Error":
		name, message := "Error", ""
		if n := c.get(src, obj, "name"); !goja.IsUndefined(n) {
			name = n.String()
		}
		if m := c.get(src, obj, "message"); !goja.IsUndefined(m) {
			message = m.String()
		}
		out := newError(dst, name, message)
		c.seen[obj] = out
		return out
	default:
		var exported any
		if err := try(src, func() { exported = obj.Export() }); err != nil {
			return goja.Undefined()
		}
		out := dst.ToValue(exported)
		if o, ok := out.(*goja.Object); ok {
			c.seen[obj] = o
		}
		return out
	}
}

// get reads key from obj, owned by rt. A getter that throws, or a read
// after the request context is done, yields undefined.
func (c *copier) get(rt *goja.Runtime, obj *goja.Object, key string) goja.Value {
	if c.ctx.Err() != nil {
		return goja.Undefined()
	}
	var v goja.Value
	if err := try(rt, func() { v = obj.Get(key) }); err != nil || v == nil {
		return goja.Undefined()
	}
	return v
}

func (c *copier) keys(rt *goja.Runtime, obj *goja.Object) []string {
	var keys []string
	if err := try(rt, func() { keys = obj.Keys() }); err != nil {
		return nil
	}
	return keys
}

// plain reports whether obj is an ordinary data object of rt.
func plain(rt *goja.Runtime, obj *goja.Object) bool {
	var proto *goja.Object
	if err := try(rt, func() { proto = obj.Prototype() }); err != nil {
		return false
	}
	return proto == nil || proto.SameAs(rt.NewObject().Prototype())
}

func (c *copier) remote(src, dst *goja.Runtime, obj *goja.Object) *goja.Object {
	return dst.NewDynamicObject(&remote{env: c.env, src: src, dst: dst, obj: obj})
}

// bridge wraps fn, owned by src, as a function callable from dst. ctor is
// nil when fn cannot be used with new. this is the receiver for plain
// calls unless the caller passes a remote of a src object.
func (c *copier) bridge(src, dst *goja.Runtime, fn goja.Callable, ctor goja.Constructor, this goja.Value) *goja.Object {
	if this == nil {
		this = goja.Undefined()
	}
	env := c.env

	call := dst.ToValue(func(fc goja.FunctionCall) goja.Value {
		recv := this
		if obj, ok := fc.Argument(0).(*goja.Object); ok {
			if r := asRemote(obj); r != nil && r.src == src {
				recv = r.obj
			}
		}
		args := env.arguments(dst, src, fc.Argument(1))
		return env.call(src, dst, func() (goja.Value, error) {
			return fn(recv, args...)
		})
	})
	construct := dst.ToValue(func(fc goja.FunctionCall) goja.Value {
		if ctor == nil {
			panic(dst.NewTypeError("bridged function is not a constructor"))
		}
		args := env.arguments(dst, src, fc.Argument(0))
		return env.call(src, dst, func() (goja.Value, error) {
			obj, err := ctor(nil, args...)
			if err != nil {
				return nil, err
			}
			return obj, nil
		})
	})

	factory, err := c.factory(dst)
	if err == nil {
		var out goja.Value
		out, err = factory(goja.Undefined(), call, construct)
		if obj, ok := out.(*goja.Object); ok && err == nil {
			return obj
		}
	}

	// Without the factory the bridge still supports plain calls.
	return dst.ToValue(func(fc goja.FunctionCall) goja.Value {
		in := env.newCopier()
		args := make([]goja.Value, len(fc.Arguments))
		for i, arg := range fc.Arguments {
			args[i] = in.value(dst, src, arg, nil)
		}
		return env.call(src, dst, func() (goja.Value, error) {
			return fn(this, args...)
		})
	}).ToObject(dst)
}

func (c *copier) factory(rt *goja.Runtime) (goja.Callable, error) {
	if f, ok := c.factories[rt]; ok {
		return f, nil
	}
	v, err := rt.RunProgram(bridgeFactory)
	if err != nil {
		return nil, err
	}
	f, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("bridge factory is not a function")
	}
	c.factories[rt] = f
	return f, nil
}

// arguments copies the elements of argv, an array of dst, into src.
func (e *Environment) arguments(dst, src *goja.Runtime, argv goja.Value) []goja.Value {
	arr, ok := argv.(*goja.Object)
	if !ok {
		return nil
	}
	c := e.newCopier()
	n := c.get(dst, arr, "length").ToInteger()
	args := make([]goja.Value, 0, n)
	for i := int64(0); i < n; i++ {
		args = append(args, c.value(dst, src, c.get(dst, arr, strconv.FormatInt(i, 10)), nil))
	}
	return args
}

// call runs fn in src and copies its result into dst. It must be called
// from a native function of dst: an exception from src is rethrown there
// with the same name and message.
func (e *Environment) call(src, dst *goja.Runtime, fn func() (goja.Value, error)) goja.Value {
	ctx := e.context()
	var out goja.Value
	err := guard(ctx, src, func() error {
		result, err := fn()
		if err != nil {
			return err
		}
		out = e.newCopier().value(src, dst, result, nil)
		return nil
	})
	if err != nil {
		name, message := describe(ctx, src, err)
		panic(newError(dst, name, message))
	}
	if out == nil {
		return goja.Undefined()
	}
	return out
}

var remoteType = reflect.TypeOf((*remote)(nil))

// remote is an object of src seen from dst. Every read and write goes to
// the original object, so instances keep their prototype methods and
// their state is shared between libraries the same way function state is.
type remote struct {
	env      *Environment
	src, dst *goja.Runtime
	obj      *goja.Object
}

func asRemote(obj *goja.Object) *remote {
	if obj.ExportType() != remoteType {
		return nil
	}
	r, _ := obj.Export().(*remote)
	return r
}

func (r *remote) Get(key string) goja.Value {
	var out goja.Value
	r.do(func() {
		if v := r.obj.Get(key); v != nil {
			out = r.env.newCopier().value(r.src, r.dst, v, r.obj)
		}
	})
	return out
}

func (r *remote) Set(key string, val goja.Value) bool {
	v := r.env.newCopier().value(r.dst, r.src, val, nil)
	var err error
	r.do(func() { err = r.obj.Set(key, v) })
	return err == nil
}

func (r *remote) Has(key string) bool {
	var ok bool
	r.do(func() { ok = r.obj.Get(key) != nil })
	return ok
}

func (r *remote) Delete(key string) bool {
	var err error
	r.do(func() { err = r.obj.Delete(key) })
	return err == nil
}

func (r *remote) Keys() []string {
	var keys []string
	r.do(func() { keys = r.obj.Keys() })
	return keys
}

// do runs fn against the original object. A throw in src is rethrown in
// dst, where the remote is being used.
func (r *remote) do(fn func()) {
	ctx := r.env.context()
	err := guard(ctx, r.src, func() error {
		fn()
		return nil
	})
	if err != nil {
		name, message := describe(ctx, r.src, err)
		panic(newError(r.dst, name, message))
	}
}

// newError builds an Error object in rt carrying name and message.
func newError(rt *goja.Runtime, name, message string) *goja.Object {
	obj, err := rt.New(rt.Get("Error"), rt.ToValue(message))
	if err != nil {
		obj = rt.NewObject()
		_ = obj.Set("message", message)
	}
	_ = obj.Set("name", name)
	return obj
}
