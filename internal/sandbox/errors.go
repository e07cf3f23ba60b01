package sandbox

import "fmt"

// ExecutionError reports an exception thrown by untrusted code while a unit
// ran or while an invoked function executed.
type ExecutionError struct {
	// Unit is the name the failing unit was compiled under.
	Unit string

	// Name is the JavaScript error name, e.g. "TypeError".
	Name string

	// Message is the JavaScript error message.
	Message string
}

func (e *ExecutionError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// NotCallableError reports an invocation whose entry point is missing or is
// not a function.
type NotCallableError struct {
	Name   string
	Reason string
}

func (e *NotCallableError) Error() string {
	return fmt.Sprintf("%q %s", e.Name, e.Reason)
}

// ResultError reports a return value that cannot be represented as JSON.
type ResultError struct {
	Message string
}

func (e *ResultError) Error() string {
	return "result is not JSON-representable: " + e.Message
}
