package compiler

import (
	"errors"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runErr(t *testing.T, src string) error {
	t.Helper()
	rt := goja.New()
	_, err := rt.RunString(src)
	require.Error(t, err)
	return err
}

func TestExceptionParts(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
		wantMsg string
	}{
		{"type error", "throw new TypeError('bad type')", "TypeError", "bad type"},
		{"plain error", "throw new Error('boom')", "Error", "boom"},
		{"string throw", "throw 'just a string'", "Error", "just a string"},
		{"reference error", "undefinedThing()", "ReferenceError", "undefinedThing is not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, msg := ExceptionParts(runErr(t, tt.src))
			assert.Equal(t, tt.wantErr, name)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestExceptionMessage(t *testing.T) {
	assert.Equal(t, "RangeError: out of range", ExceptionMessage(runErr(t, "throw new RangeError('out of range')")))
	assert.Equal(t, "Error: plain", ExceptionMessage(errors.New("plain")))
}

func TestExceptionParts_Interrupted(t *testing.T) {
	rt := goja.New()
	rt.Interrupt("stop")
	_, err := rt.RunString("for (;;) {}")
	require.Error(t, err)

	name, _ := ExceptionParts(err)
	assert.Equal(t, "InterruptedError", name)
}
