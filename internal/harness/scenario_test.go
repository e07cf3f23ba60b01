package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario := loadTestScenario(t, "libraries")

	assert.Equal(t, "libraries", scenario.Name)
	assert.NotEmpty(t, scenario.Description)
	assert.True(t, filepath.IsAbs(scenario.Libs) || filepath.Base(scenario.Libs) == "libs")
	assert.Len(t, scenario.Steps, 9)
	assert.Equal(t, ExpectNone, scenario.Steps[8].Expect.Status)
}

func TestLoadScenario_ResolvesLibs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "fixtures"), 0o755))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: s
description: d
libs: fixtures
steps:
  - send: '{"opcode": "exit"}'
`), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fixtures"), scenario.Libs)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: s
description: d
step:
  - send: x
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nsteps:\n  - send: x\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: s\nsteps:\n  - send: x\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			content: "name: s\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "missing libs directory",
			content: "name: s\ndescription: d\nlibs: nowhere\nsteps:\n  - send: x\n",
			wantErr: "libs directory",
		},
		{
			name:    "exit before last step",
			content: "name: s\ndescription: d\nsteps:\n  - send: '{\"opcode\": \"exit\"}'\n  - send: x\n",
			wantErr: "steps[0]: exit must be the last step",
		},
		{
			name:    "unknown status",
			content: "name: s\ndescription: d\nsteps:\n  - send: x\n    expect:\n      status: maybe\n",
			wantErr: `unknown status "maybe"`,
		},
		{
			name:    "code on success",
			content: "name: s\ndescription: d\nsteps:\n  - send: x\n    expect:\n      status: success\n      code: 10\n",
			wantErr: "apply to errors only",
		},
		{
			name:    "unknown assertion",
			content: "name: s\ndescription: d\nsteps:\n  - send: x\nassertions:\n  - type: final_state\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "bound without names",
			content: "name: s\ndescription: d\nsteps:\n  - send: x\nassertions:\n  - type: bound\n",
			wantErr: "names are required for bound",
		},
		{
			name:    "limit resource",
			content: "name: s\ndescription: d\nsteps:\n  - send: x\nassertions:\n  - type: limit\n    resource: disk\n",
			wantErr: "resource must be cpu or memory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
