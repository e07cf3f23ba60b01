package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scriptengine/internal/compiler"
)

func TestInvoke_PassesJSONArguments(t *testing.T) {
	env := New(compiler.SafeBase())

	unit := mustCompile(t, "function main(a, b) { return {sum: a.x + b, keys: Object.keys(a)}; }")
	args := []any{map[string]any{"x": json.Number("2")}, json.Number("3")}

	out, err := env.Invoke(context.Background(), unit, "main", args)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sum": json.Number("5"), "keys": []any{"x"}}, out)
}

func TestInvoke_UsesEnvironment(t *testing.T) {
	env := New(compiler.SafeBase())
	load(t, env, "function greet(name) { return 'hello ' + name; }")

	out, err := env.Invoke(context.Background(), mustCompile(t, "function main(n) { return greet(n); }"), "main", []any{"world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestInvoke_DoesNotChangeEnvironment(t *testing.T) {
	env := New(compiler.SafeBase())
	load(t, env, "var base = 1;")

	out, err := env.Invoke(context.Background(), mustCompile(t, "var leaked = 2; base = 9; function main() {}"), "main", nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	assert.Equal(t, []string{"base"}, env.Names())
	assert.EqualValues(t, 1, lookup(t, env, "base"))
}

func TestInvoke_NotCallable(t *testing.T) {
	env := New(compiler.SafeBase())

	tests := []struct {
		name   string
		source string
	}{
		{"missing", "var other = 1;"},
		{"not a function", "var main = 42;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Invoke(context.Background(), mustCompile(t, tt.source), "main", nil)
			var notCallable *NotCallableError
			require.True(t, errors.As(err, &notCallable))
			assert.Equal(t, "main", notCallable.Name)
		})
	}
}

func TestInvoke_Throw(t *testing.T) {
	env := New(compiler.SafeBase())

	_, err := env.Invoke(context.Background(), mustCompile(t, "function main() { throw new Error('bad input'); }"), "main", nil)
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "Error: bad input", execErr.Error())
}

func TestInvoke_UnrepresentableResult(t *testing.T) {
	env := New(compiler.SafeBase())

	_, err := env.Invoke(context.Background(), mustCompile(t, "function main() { var o = {}; o.self = o; return o; }"), "main", nil)
	var resultErr *ResultError
	require.True(t, errors.As(err, &resultErr))
	assert.Contains(t, resultErr.Message, "TypeError")
}
