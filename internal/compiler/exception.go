package compiler

import (
	"errors"

	"github.com/dop251/goja"
)

// ExceptionParts splits an error raised by a runtime into the JavaScript
// error name and message. Non-Error throws (throw "boom") report "Error".
//
// Reading name and message of a thrown object may run its getters, which
// can throw in turn as a *goja.Exception panic. Callers that format values
// thrown by untrusted code do so inside a native call of the owning runtime.
func ExceptionParts(err error) (name, message string) {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		val := exc.Value()
		if obj, ok := val.(*goja.Object); ok {
			name = stringProp(obj, "name")
			message = stringProp(obj, "message")
			if name != "" {
				return name, message
			}
		}
		if val != nil {
			return "Error", val.String()
		}
		return "Error", exc.Error()
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return "InterruptedError", interrupted.Error()
	}

	return "Error", err.Error()
}

// ExceptionMessage formats an error raised by a runtime as "Name: message".
func ExceptionMessage(err error) string {
	name, message := ExceptionParts(err)
	if message == "" {
		return name
	}
	return name + ": " + message
}

func stringProp(obj *goja.Object, key string) string {
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
