package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// run executes fn against rt, interrupting the runtime if ctx is cancelled
// before fn returns. An interruption caused by ctx is reported as an error
// wrapping ctx.Err().
func run(ctx context.Context, rt *goja.Runtime, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		rt.Interrupt(ctx.Err())
	})
	err := fn()
	if !stop() {
		rt.ClearInterrupt()
	}
	return interruption(ctx, err)
}

func interruption(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) && ctx.Err() != nil {
		return fmt.Errorf("script interrupted: %w", ctx.Err())
	}
	return err
}

// try calls fn as a native function of rt. Exceptions thrown by getters and
// proxy traps that fn runs into are returned as *goja.Exception instead of
// unwinding the Go stack.
func try(rt *goja.Runtime, fn func()) error {
	call, _ := goja.AssertFunction(rt.ToValue(func(goja.FunctionCall) goja.Value {
		fn()
		return goja.Undefined()
	}))
	_, err := call(goja.Undefined())
	return err
}

// guard is try under run: fn may read script-controlled properties of rt's
// objects, and ctx bounds how long that takes.
func guard(ctx context.Context, rt *goja.Runtime, fn func() error) error {
	var inner error
	err := run(ctx, rt, func() error {
		return try(rt, func() { inner = fn() })
	})
	if err != nil {
		return err
	}
	return interruption(ctx, inner)
}
