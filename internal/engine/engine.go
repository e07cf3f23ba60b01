package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/scriptengine/internal/compiler"
	"github.com/roach88/scriptengine/internal/journal"
	"github.com/roach88/scriptengine/internal/limits"
	"github.com/roach88/scriptengine/internal/sandbox"
	"github.com/roach88/scriptengine/internal/wire"
)

// Limiter applies process resource ceilings.
// Implemented by *limits.Process (production) and fakes in tests.
type Limiter interface {
	SetCPU(seconds uint64) error
	SetMemory(bytes uint64) error
}

// Recorder receives a record of each handled request and each merged
// library. Implemented by *journal.Journal.
type Recorder interface {
	RecordExchange(ctx context.Context, ex journal.Exchange) error
	RecordLibrary(ctx context.Context, lib journal.Library) error
}

// handler processes one decoded request.
type handler func(ctx context.Context, req wire.Request) (any, error)

// errExit is returned by the exit handler to stop the loop.
var errExit = errors.New("exit requested")

// Engine is the request loop and the state it owns.
//
// Serve must be called from one goroutine. Breach may be called from any
// goroutine.
type Engine struct {
	out      *wire.Writer
	env      *sandbox.Environment
	limiter  Limiter
	recorder Recorder
	exit     func(code int)
	readFile func(path string) ([]byte, error)

	handlers map[string]handler
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLimiter replaces the process limiter.
// Default: limits.NewProcess armed with a trap that calls Breach.
func WithLimiter(l Limiter) EngineOption {
	return func(e *Engine) {
		e.limiter = l
	}
}

// WithRecorder sends a record of every exchange to r.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithEnvironment replaces the default environment built from
// compiler.SafeBase.
func WithEnvironment(env *sandbox.Environment) EngineOption {
	return func(e *Engine) {
		e.env = env
	}
}

// WithExitFunc replaces os.Exit for the CPU trap.
func WithExitFunc(exit func(code int)) EngineOption {
	return func(e *Engine) {
		e.exit = exit
	}
}

// New creates an Engine writing responses to out.
func New(out io.Writer, opts ...EngineOption) *Engine {
	e := &Engine{
		out:      wire.NewWriter(out),
		exit:     os.Exit,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.env == nil {
		e.env = sandbox.New(compiler.SafeBase())
	}
	if e.limiter == nil {
		e.limiter = limits.NewProcess(limits.NewTrap(e.Breach))
	}

	e.handlers = map[string]handler{
		"exit":        e.handleExit,
		"loadlibrary": e.handleLoadLibrary,
		"validate":    e.handleValidate,
		"setcpulimit": e.handleSetCPULimit,
		"setmemlimit": e.handleSetMemLimit,
		"invoke":      e.handleInvoke,
	}
	return e
}

// Environment returns the environment the engine loads libraries into.
func (e *Engine) Environment() *sandbox.Environment {
	return e.env
}

// Breach writes the CPU trap notice and terminates the process with
// status 1.
func (e *Engine) Breach() {
	_ = e.out.Write(wire.TrapNotice{Success: false, Code: int(CodeCPUTrap)})
	e.exit(1)
}

// Serve handles requests from in until the exit opcode, end of input, or
// cancellation of ctx.
//
// Returns nil on exit and end of input, ctx.Err() on cancellation, and any
// unanticipated handler or output error.
//
// The next line is read only after the previous response is written.
// Cancellation is observed while waiting for input and while scripts run.
func (e *Engine) Serve(ctx context.Context, in io.Reader) error {
	reader := bufio.NewReader(in)
	results := make(chan readResult, 1)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		go func() {
			line, err := reader.ReadBytes('\n')
			results <- readResult{line: line, err: err}
		}()

		var r readResult
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r = <-results:
		}

		if len(r.line) > 0 {
			stop, err := e.handle(ctx, bytes.TrimRight(r.line, "\r\n"))
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}

		if errors.Is(r.err, io.EOF) {
			slog.Debug("end of input")
			return nil
		}
		if r.err != nil {
			return fmt.Errorf("read request: %w", r.err)
		}
	}
}

type readResult struct {
	line []byte
	err  error
}

// handle processes one request line and writes its response.
// stop is true when the exit opcode was received.
func (e *Engine) handle(ctx context.Context, line []byte) (stop bool, err error) {
	start := time.Now()

	opcode, result, err := e.dispatch(ctx, line)
	if errors.Is(err, errExit) {
		slog.Debug("exit requested")
		return true, nil
	}

	ex := journal.Exchange{Opcode: opcode, RequestHash: wire.RequestHash(line)}
	var response any
	if err == nil {
		response = wire.Success{Result: result}
		ex.Status = wire.StatusSuccess
	} else if ee, ok := AsEngineError(err); ok {
		response = ee.Failure()
		ex.Status = wire.StatusError
		ex.Code = int(ee.Code)
	} else {
		return false, fmt.Errorf("handle %q: %w", opcode, err)
	}

	if err := e.out.Write(response); err != nil {
		return false, fmt.Errorf("write response: %w", err)
	}

	ex.Duration = time.Since(start)
	slog.Debug("request handled",
		"opcode", opcode,
		"status", ex.Status,
		"code", ex.Code,
		"duration", ex.Duration,
	)
	e.recordExchange(ctx, ex)
	return false, nil
}

// dispatch decodes line, validates the envelope and runs the handler.
func (e *Engine) dispatch(ctx context.Context, line []byte) (string, any, error) {
	req, err := wire.Decode(line)
	if err != nil {
		return "", nil, NewInvalidJSON()
	}

	opcode, err := req.Opcode()
	switch {
	case errors.Is(err, wire.ErrMissingOpcode):
		return "", nil, NewMissingOpcode()
	case err != nil:
		return "", nil, NewInvalidOpcode()
	}

	h, ok := e.handlers[opcode]
	if !ok {
		return opcode, nil, NewInvalidOpcode()
	}

	result, err := h(ctx, req)
	var attrErr *wire.AttributeError
	if errors.As(err, &attrErr) {
		if attrErr.Missing {
			return opcode, nil, NewMissingAttribute(attrErr.Name)
		}
		return opcode, nil, NewInvalidAttribute(attrErr.Name, attrErr.Reason)
	}
	return opcode, result, err
}

func (e *Engine) recordExchange(ctx context.Context, ex journal.Exchange) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordExchange(ctx, ex); err != nil {
		slog.Warn("journal write failed", "opcode", ex.Opcode, "error", err)
	}
}

func (e *Engine) recordLibrary(ctx context.Context, lib journal.Library) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordLibrary(ctx, lib); err != nil {
		slog.Warn("journal write failed", "library", lib.Path, "error", err)
	}
}
