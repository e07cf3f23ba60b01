package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"exit error", NewExitError(ExitFailure, "invalid"), ExitFailure},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "bad")), ExitCommandError},
		{"plain error", errors.New("boom"), ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	cause := errors.New("disk gone")
	err := WrapExitError(ExitCommandError, "failed to open journal", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "failed to open journal: disk gone", err.Error())
}

func TestOutputFormatter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error(ErrCodeNotFound, "missing", map[string]string{"path": "x"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestOutputFormatter_VerboseLogToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	f.VerboseLog("loading %d", 3)

	assert.Empty(t, out.String())
	assert.Equal(t, "loading 3\n", errOut.String())
}
