package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/scriptengine/internal/wire"
)

// Code is the stable numeric code of an error response.
type Code int

const (
	// CodeInvalidJSON: the request line is not a JSON object.
	CodeInvalidJSON Code = 10

	// CodeMissingOpcode: the request has no opcode.
	CodeMissingOpcode Code = 11

	// CodeInvalidOpcode: the opcode is not a string or not a known opcode.
	CodeInvalidOpcode Code = 12

	// CodeMissingAttribute: a required attribute is absent.
	CodeMissingAttribute Code = 13

	// CodeInvalidAttribute: an attribute has the wrong type or value.
	CodeInvalidAttribute Code = 14

	// CodeLibraryRead: the library file could not be read.
	CodeLibraryRead Code = 20

	// CodeLibraryCompilation: the library source does not compile.
	CodeLibraryCompilation Code = 21

	// CodeLibraryExecution: the library threw while running its top level.
	CodeLibraryExecution Code = 22

	// CodeCompilation: invoked source does not compile.
	CodeCompilation Code = 30

	// CodeInvocation: invoked code threw or returned a non-JSON value.
	CodeInvocation Code = 31

	// CodeCPUTrap is reserved for the out-of-band CPU limit notice.
	CodeCPUTrap Code = 99
)

// Family groups error codes.
type Family string

const (
	FamilyInput       Family = "input"
	FamilyLibrary     Family = "library"
	FamilyInterpreter Family = "interpreter"
)

// DefaultLibraryName is the name reported for a library loaded without a
// library_name.
const DefaultLibraryName = "<library code>"

// EngineError is an anticipated failure that becomes an error response.
//
// Construct with the New* functions. Values are never modified after
// construction.
type EngineError struct {
	Code Code

	// Attribute names the offending attribute (13, 14).
	Attribute string

	// Reason explains an invalid attribute (14).
	Reason string

	// LibraryPath is the requested library path (20, 21, 22).
	LibraryPath string

	// Detail is the OS reason (20) or "Name: message" of a JavaScript
	// exception (22, 31).
	Detail string

	// Diagnostics is the compiler output (21, 30).
	Diagnostics []string
}

func NewInvalidJSON() *EngineError   { return &EngineError{Code: CodeInvalidJSON} }
func NewMissingOpcode() *EngineError { return &EngineError{Code: CodeMissingOpcode} }
func NewInvalidOpcode() *EngineError { return &EngineError{Code: CodeInvalidOpcode} }

func NewMissingAttribute(name string) *EngineError {
	return &EngineError{Code: CodeMissingAttribute, Attribute: name}
}

func NewInvalidAttribute(name, reason string) *EngineError {
	return &EngineError{Code: CodeInvalidAttribute, Attribute: name, Reason: reason}
}

func NewLibraryRead(path, reason string) *EngineError {
	return &EngineError{Code: CodeLibraryRead, LibraryPath: path, Detail: reason}
}

func NewLibraryCompilation(path string, diagnostics []string) *EngineError {
	return &EngineError{Code: CodeLibraryCompilation, LibraryPath: path, Diagnostics: diagnostics}
}

func NewLibraryExecution(path, message string) *EngineError {
	return &EngineError{Code: CodeLibraryExecution, LibraryPath: path, Detail: message}
}

func NewCompilation(diagnostics []string) *EngineError {
	return &EngineError{Code: CodeCompilation, Diagnostics: diagnostics}
}

func NewInvocation(message string) *EngineError {
	return &EngineError{Code: CodeInvocation, Detail: message}
}

// Family returns the family of e's code.
func (e *EngineError) Family() Family {
	switch {
	case e.Code >= 10 && e.Code < 20:
		return FamilyInput
	case e.Code >= 20 && e.Code < 30:
		return FamilyLibrary
	default:
		return FamilyInterpreter
	}
}

// Failure converts e into its wire envelope.
func (e *EngineError) Failure() wire.Failure {
	switch e.Code {
	case CodeInvalidJSON:
		return wire.Failure{Code: int(e.Code), Message: "Invalid JSON"}
	case CodeMissingOpcode:
		return wire.Failure{Code: int(e.Code), Message: "Missing opcode"}
	case CodeInvalidOpcode:
		return wire.Failure{Code: int(e.Code), Message: "Invalid opcode"}
	case CodeMissingAttribute:
		return wire.Failure{
			Code:    int(e.Code),
			Message: "Missing attribute",
			Fields:  map[string]any{"attribute_name": e.Attribute},
		}
	case CodeInvalidAttribute:
		return wire.Failure{
			Code:    int(e.Code),
			Message: "Invalid attribute: " + e.Reason,
			Fields:  map[string]any{"attribute_name": e.Attribute},
		}
	case CodeLibraryRead:
		return wire.Failure{
			Code:    int(e.Code),
			Message: e.Detail,
			Fields:  map[string]any{"library_path": e.LibraryPath},
		}
	case CodeLibraryCompilation:
		return wire.Failure{
			Code:    int(e.Code),
			Message: "Library compilation error",
			Fields:  map[string]any{"library_path": e.LibraryPath, "errors": diagnostics(e.Diagnostics)},
		}
	case CodeLibraryExecution:
		return wire.Failure{
			Code:    int(e.Code),
			Message: e.Detail,
			Fields:  map[string]any{"library_path": e.LibraryPath},
		}
	case CodeCompilation:
		return wire.Failure{
			Code:    int(e.Code),
			Message: "Compilation error",
			Fields:  map[string]any{"errors": diagnostics(e.Diagnostics)},
		}
	case CodeInvocation:
		return wire.Failure{Code: int(e.Code), Message: e.Detail}
	default:
		panic(fmt.Sprintf("engine: no response shape for code %d", e.Code))
	}
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	f := e.Failure()
	var b strings.Builder
	fmt.Fprintf(&b, "%s error %d: %s", e.Family(), f.Code, f.Message)
	if e.Attribute != "" {
		fmt.Fprintf(&b, " (attribute=%s)", e.Attribute)
	}
	if e.LibraryPath != "" {
		fmt.Fprintf(&b, " (library=%s)", e.LibraryPath)
	}
	return b.String()
}

func diagnostics(d []string) []string {
	if d == nil {
		return []string{}
	}
	return d
}

// AsEngineError extracts an EngineError from err's chain.
func AsEngineError(err error) (*EngineError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsLibraryError reports whether err is a library family EngineError.
// Uses errors.As to handle wrapped errors.
func IsLibraryError(err error) bool {
	ee, ok := AsEngineError(err)
	return ok && ee.Family() == FamilyLibrary
}
