package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Valid(t *testing.T) {
	unit, err := Compile("function add(a, b) { return a + b; }", "math.js")
	require.NoError(t, err)
	assert.Equal(t, "math.js", unit.Name())
	assert.NotNil(t, unit.Program())
}

func TestCompile_DefaultName(t *testing.T) {
	unit, err := Compile("var x = 1;", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, unit.Name())
}

func TestCompile_SyntaxError(t *testing.T) {
	_, err := Compile("function broken( {", "broken.js")
	require.Error(t, err)

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, "broken.js", compileErr.Name)
	require.NotEmpty(t, compileErr.Diagnostics)
	for _, d := range compileErr.Diagnostics {
		assert.True(t, strings.HasPrefix(d, "Line 1:"), d)
		assert.Contains(t, d, "SyntaxError")
	}
}

func TestCompile_ReportsLineNumbers(t *testing.T) {
	_, err := Compile("var a = 1;\nvar b = 2;\nvar = 3;", "")
	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.True(t, strings.HasPrefix(compileErr.Diagnostics[0], "Line 3:"), compileErr.Diagnostics[0])
}

func TestCompile_StrictMode(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"with statement", "var o = {}; with (o) { }"},
		{"duplicate let", "let x = 1; let x = 2;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.source, "")
			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr))
			assert.NotEmpty(t, compileErr.Diagnostics)
		})
	}
}

func TestCompile_IsPure(t *testing.T) {
	src := "var counter = 0; function bump() { counter++; return counter; }"
	a, err := Compile(src, "")
	require.NoError(t, err)
	b, err := Compile(src, "")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestCompileError_Error(t *testing.T) {
	err := &CompileError{Name: "lib.js", Diagnostics: []string{"a", "b"}}
	assert.Equal(t, "compile lib.js: a; b", err.Error())
}
