package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/scriptengine/internal/compiler"
	"github.com/roach88/scriptengine/internal/journal"
	"github.com/roach88/scriptengine/internal/limits"
	"github.com/roach88/scriptengine/internal/sandbox"
	"github.com/roach88/scriptengine/internal/wire"
)

// Library identifies a library file to load.
type Library struct {
	Path string
	Name string
}

func (e *Engine) handleExit(context.Context, wire.Request) (any, error) {
	return nil, errExit
}

func (e *Engine) handleLoadLibrary(ctx context.Context, req wire.Request) (any, error) {
	path, err := req.String("library_path")
	if err != nil {
		return nil, err
	}
	name, err := req.OptionalString("library_name", DefaultLibraryName)
	if err != nil {
		return nil, err
	}
	funcs, err := req.OptionalCollection("interface_functs")
	if err != nil {
		return nil, err
	}
	if funcs != nil {
		// Host callbacks are not wired; the declaration is accepted and logged.
		slog.Debug("interface functions declared", "library", path, "interface_functs", funcs)
	}

	if err := e.loadLibrary(ctx, Library{Path: path, Name: name}); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

// loadLibrary reads, compiles and runs the library at lib.Path and merges
// its globals into the environment. On any failure the environment is
// unchanged.
func (e *Engine) loadLibrary(ctx context.Context, lib Library) error {
	source, err := e.readFile(lib.Path)
	if err != nil {
		return NewLibraryRead(lib.Path, readReason(err))
	}

	unit, err := compiler.Compile(string(source), lib.Name)
	if err != nil {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return NewLibraryCompilation(lib.Path, compileErr.Diagnostics)
		}
		return err
	}

	names, err := e.env.Load(ctx, unit)
	if err != nil {
		var execErr *sandbox.ExecutionError
		if errors.As(err, &execErr) {
			return NewLibraryExecution(lib.Path, execErr.Error())
		}
		return err
	}

	slog.Info("library loaded", "path", lib.Path, "name", lib.Name, "bindings", len(names))
	e.recordLibrary(ctx, journal.Library{
		Path:       lib.Path,
		Name:       lib.Name,
		SourceHash: wire.LibraryHash(source),
		Bindings:   names,
	})
	return nil
}

// readReason returns the OS-level reason of a read failure without the
// operation and path prefix, capitalized the way strerror(3) spells it
// ("No such file or directory").
func readReason(err error) string {
	reason := err.Error()
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		reason = pathErr.Err.Error()
	}
	r, size := utf8.DecodeRuneInString(reason)
	if r == utf8.RuneError {
		return reason
	}
	return string(unicode.ToUpper(r)) + reason[size:]
}

// Preload loads libs in order before serving.
// Stops at the first library that fails.
func (e *Engine) Preload(ctx context.Context, libs []Library) error {
	for _, lib := range libs {
		if lib.Name == "" {
			lib.Name = DefaultLibraryName
		}
		if err := e.loadLibrary(ctx, lib); err != nil {
			return fmt.Errorf("preload %s: %w", lib.Path, err)
		}
	}
	return nil
}

// ValidationResult is the result of the validate opcode.
type ValidationResult struct {
	Valid bool `json:"valid"`

	// Errors is an empty object when Valid, otherwise the diagnostics list.
	Errors any `json:"errors"`
}

// Validate compiles source and reports whether it is valid.
// Compilation failure is a result, not an error.
func Validate(source string) (ValidationResult, error) {
	_, err := compiler.Compile(source, compiler.DefaultName)
	if err == nil {
		return ValidationResult{Valid: true, Errors: map[string]any{}}, nil
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return ValidationResult{Valid: false, Errors: compileErr.Diagnostics}, nil
	}
	return ValidationResult{}, err
}

func (e *Engine) handleValidate(_ context.Context, req wire.Request) (any, error) {
	source, err := req.String("source")
	if err != nil {
		return nil, err
	}
	return Validate(source)
}

func (e *Engine) handleSetCPULimit(_ context.Context, req wire.Request) (any, error) {
	limit, err := limitAttribute(req)
	if err != nil {
		return nil, err
	}
	if err := e.limiter.SetCPU(limit); err != nil {
		return nil, limitError(err)
	}
	return map[string]any{}, nil
}

func (e *Engine) handleSetMemLimit(_ context.Context, req wire.Request) (any, error) {
	limit, err := limitAttribute(req)
	if err != nil {
		return nil, err
	}
	if err := e.limiter.SetMemory(limit); err != nil {
		return nil, limitError(err)
	}
	return map[string]any{}, nil
}

// limitAttribute reads the non-negative integer "limit" attribute.
func limitAttribute(req wire.Request) (uint64, error) {
	limit, err := req.Int("limit")
	if err != nil {
		return 0, err
	}
	if limit < 0 {
		return 0, NewInvalidAttribute("limit", "'limit' must be non-negative")
	}
	return uint64(limit), nil
}

// limitError reports limits the process cannot apply as invalid values.
// Other failures are unanticipated.
func limitError(err error) error {
	var limitErr *limits.LimitError
	if errors.As(err, &limitErr) || errors.Is(err, limits.ErrUnsupported) {
		return NewInvalidAttribute("limit", err.Error())
	}
	return err
}

func (e *Engine) handleInvoke(ctx context.Context, req wire.Request) (any, error) {
	source, err := req.String("source")
	if err != nil {
		return nil, err
	}
	main, err := req.String("main")
	if err != nil {
		return nil, err
	}
	args, err := req.OptionalArray("args")
	if err != nil {
		return nil, err
	}

	unit, err := compiler.Compile(source, compiler.DefaultName)
	if err != nil {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return nil, NewCompilation(compileErr.Diagnostics)
		}
		return nil, err
	}

	result, err := e.env.Invoke(ctx, unit, main, args)
	if err != nil {
		var (
			notCallable *sandbox.NotCallableError
			execErr     *sandbox.ExecutionError
			resultErr   *sandbox.ResultError
		)
		switch {
		case errors.As(err, &notCallable):
			return nil, NewInvalidAttribute("main", fmt.Sprintf("'%s' is not a function", main))
		case errors.As(err, &execErr):
			return nil, NewInvocation(execErr.Error())
		case errors.As(err, &resultErr):
			return nil, NewInvocation(resultErr.Message)
		}
		return nil, err
	}
	return result, nil
}

// ApplyLimits sets the startup limits. A zero value leaves that limit
// unchanged.
func (e *Engine) ApplyLimits(cpuSeconds, memoryBytes uint64) error {
	if cpuSeconds > 0 {
		if err := e.limiter.SetCPU(cpuSeconds); err != nil {
			return fmt.Errorf("apply cpu limit: %w", err)
		}
	}
	if memoryBytes > 0 {
		if err := e.limiter.SetMemory(memoryBytes); err != nil {
			return fmt.Errorf("apply memory limit: %w", err)
		}
	}
	return nil
}
