package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
)

// DefaultName is the unit name used in diagnostics when the caller gives none.
const DefaultName = "<script>"

// Unit is a compiled source fragment. It holds no mutable state and may be
// run any number of times, in any runtime.
type Unit struct {
	name    string
	program *goja.Program
}

// Name returns the name the unit was compiled under.
func (u *Unit) Name() string {
	return u.name
}

// Program returns the compiled goja program.
func (u *Unit) Program() *goja.Program {
	return u.program
}

// CompileError reports source that could not be compiled.
type CompileError struct {
	// Name is the unit name passed to Compile.
	Name string

	// Diagnostics lists every problem found, in source order.
	// Never empty.
	Diagnostics []string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Name, strings.Join(e.Diagnostics, "; "))
}

// Compile parses and compiles source in strict mode.
func Compile(source, name string) (*Unit, error) {
	if name == "" {
		name = DefaultName
	}

	ast, err := parser.ParseFile(nil, name, source, 0)
	if err != nil {
		return nil, &CompileError{Name: name, Diagnostics: diagnostics(err)}
	}

	program, err := goja.CompileAST(ast, true)
	if err != nil {
		return nil, &CompileError{Name: name, Diagnostics: diagnostics(err)}
	}

	return &Unit{name: name, program: program}, nil
}

// diagnostics flattens a parser or compiler error into diagnostic lines.
func diagnostics(err error) []string {
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		out := make([]string, 0, len(list))
		for _, e := range list {
			out = append(out, formatDiagnostic(e.Position.Line, e.Position.Column, e.Message))
		}
		return out
	}

	var single *parser.Error
	if errors.As(err, &single) {
		return []string{formatDiagnostic(single.Position.Line, single.Position.Column, single.Message)}
	}

	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		if syntaxErr.File != nil {
			pos := syntaxErr.File.Position(syntaxErr.Offset)
			return []string{formatDiagnostic(pos.Line, pos.Column, syntaxErr.Message)}
		}
		return []string{"SyntaxError: " + syntaxErr.Message}
	}

	return []string{"SyntaxError: " + err.Error()}
}

func formatDiagnostic(line, column int, message string) string {
	return fmt.Sprintf("Line %d:%d: SyntaxError: %s", line, column, message)
}
