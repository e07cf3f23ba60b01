package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.js")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidate_Valid(t *testing.T) {
	path := writeScript(t, "function ok() { return 1; }")

	out, err := runRoot(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
}

func TestValidate_ValidJSON(t *testing.T) {
	path := writeScript(t, "var x = 1;")

	out, err := runRoot(t, "validate", path, "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"valid":true,"errors":{}}}`, out)
}

func TestValidate_Invalid(t *testing.T) {
	path := writeScript(t, "function broken( {")

	out, err := runRoot(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "SyntaxError")
}

func TestValidate_InvalidJSON(t *testing.T) {
	path := writeScript(t, "function broken( {")

	out, err := runRoot(t, "validate", path, "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Valid  bool     `json:"valid"`
			Errors []string `json:"errors"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Errors)
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := runRoot(t, "validate", filepath.Join(t.TempDir(), "nope.js"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}
