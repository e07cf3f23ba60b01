package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/roach88/scriptengine/internal/compiler"
)

// Invoke runs unit in a copy of the environment, then calls the global
// function main with args and returns its result as a JSON-compatible value.
// Arguments reach the function as plain JavaScript values, as if parsed from
// JSON. A result of undefined is returned as nil.
//
// Invoke never changes the environment.
func (e *Environment) Invoke(ctx context.Context, unit *compiler.Unit, main string, args []any) (any, error) {
	restore := e.enter(ctx)
	defer restore()

	rt, err := compiler.NewRuntime(e.caps)
	if err != nil {
		return nil, err
	}

	// Captured before bindings are installed and the unit runs so neither
	// can replace them.
	codec, ok := rt.Get("JSON").(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("JSON unavailable")
	}
	parse, ok := goja.AssertFunction(codec.Get("parse"))
	if !ok {
		return nil, fmt.Errorf("JSON.parse unavailable")
	}
	stringify, ok := goja.AssertFunction(codec.Get("stringify"))
	if !ok {
		return nil, fmt.Errorf("JSON.stringify unavailable")
	}

	jsArgs := make([]goja.Value, len(args))
	for i, arg := range args {
		encoded, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d: %w", i, err)
		}
		v, err := parse(goja.Undefined(), rt.ToValue(string(encoded)))
		if err != nil {
			return nil, fmt.Errorf("decode argument %d: %w", i, err)
		}
		jsArgs[i] = v
	}

	if _, err := e.install(ctx, rt, unit); err != nil {
		return nil, err
	}

	err = run(ctx, rt, func() error {
		_, err := rt.RunProgram(unit.Program())
		return err
	})
	if err != nil {
		return nil, executionError(ctx, rt, unit, err)
	}

	var (
		encoded   goja.Value
		unencoded error
	)
	err = guard(ctx, rt, func() error {
		fn, ok := goja.AssertFunction(rt.GlobalObject().Get(main))
		if !ok {
			return &NotCallableError{Name: main, Reason: "is not a function"}
		}
		result, err := fn(goja.Undefined(), jsArgs...)
		if err != nil {
			return err
		}

		encoded, unencoded = stringify(goja.Undefined(), result)
		return nil
	})
	if err != nil {
		if notCallable, ok := err.(*NotCallableError); ok {
			return nil, notCallable
		}
		return nil, executionError(ctx, rt, unit, err)
	}
	if unencoded != nil {
		if ctx.Err() != nil {
			return nil, interruption(ctx, unencoded)
		}
		name, message := describe(ctx, rt, unencoded)
		return nil, &ResultError{Message: name + ": " + message}
	}

	if encoded == nil || goja.IsUndefined(encoded) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(encoded.String())))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
