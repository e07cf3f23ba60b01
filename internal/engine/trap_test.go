//go:build linux

package engine

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trapHelperEnv = "SCRIPTENGINE_TRAP_HELPER"

// TestCPUTrapHelper is the child process for TestCPUTrap. It serves stdin
// with the real process limiter and os.Exit.
func TestCPUTrapHelper(t *testing.T) {
	if os.Getenv(trapHelperEnv) != "1" {
		t.Skip("helper process")
	}
	e := New(os.Stdout)
	_ = e.Serve(context.Background(), os.Stdin)
	os.Exit(0)
}

func TestCPUTrap(t *testing.T) {
	if testing.Short() {
		t.Skip("spins for over a second of CPU time")
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestCPUTrapHelper$")
	cmd.Env = append(os.Environ(), trapHelperEnv+"=1")
	cmd.Stdin = strings.NewReader(strings.Join([]string{
		`{"opcode": "setcpulimit", "limit": 1}`,
		`{"opcode": "invoke", "source": "function main() { for (;;) {} }", "main": "main"}`,
		`{"opcode": "validate", "source": "1"}`,
	}, "\n") + "\n")

	out, err := cmd.Output()

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "expected non-zero exit, got %v", err)
	assert.Equal(t, 1, exitErr.ExitCode())

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"status":"success","result":{}}`, lines[0])
	assert.Equal(t, `{"success":false,"code":99}`, lines[1])
}

func TestExitHelper(t *testing.T) {
	if os.Getenv(trapHelperEnv) != "exit" {
		t.Skip("helper process")
	}
	e := New(os.Stdout)
	if err := e.Serve(context.Background(), os.Stdin); err != nil {
		os.Exit(2)
	}
	os.Exit(0)
}

func TestExitOpcode_ProcessStatus(t *testing.T) {
	cmd := exec.Command(os.Args[0], "-test.run=^TestExitHelper$")
	cmd.Env = append(os.Environ(), trapHelperEnv+"=exit")
	cmd.Stdin = strings.NewReader(`{"opcode": "exit"}` + "\n" + `{"opcode": "validate", "source": "1"}` + "\n")

	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(out)))
}
