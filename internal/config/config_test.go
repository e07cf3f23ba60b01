package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scriptengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvJournal, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvJournal, "")
	t.Setenv(EnvLogLevel, "")

	path := writeConfig(t, `
limits:
  cpu_seconds: 10
  memory_bytes: 536870912
libraries:
  - path: libs/base.js
    name: base
  - path: /abs/extra.js
journal:
  path: /tmp/journal.db
log:
  level: debug
  format: json
sandbox:
  max_call_stack: 200
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(10), cfg.Limits.CPUSeconds)
	assert.Equal(t, int64(512<<20), cfg.Limits.MemoryBytes)
	assert.Equal(t, []LibraryConfig{
		{Path: filepath.Join(filepath.Dir(path), "libs/base.js"), Name: "base"},
		{Path: "/abs/extra.js"},
	}, cfg.Libraries)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Path)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 200, cfg.Sandbox.MaxCallStack)
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeConfig(t, "limits:\n  cpu_second: 10\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpu_second")
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Setenv(EnvLogLevel, "")

	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"negative cpu", "limits:\n  cpu_seconds: -1\n", "cpu_seconds"},
		{"negative memory", "limits:\n  memory_bytes: -5\n", "memory_bytes"},
		{"bad level", "log:\n  level: verbose\n", "level"},
		{"bad format", "log:\n  format: xml\n", "format"},
		{"empty library path", "libraries:\n  - name: nameless\n", "path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "got %v", err)
			assert.NotEmpty(t, validationErr.Problems)
			assert.Contains(t, validationErr.Error(), tt.field)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvJournal, "/var/lib/scriptengine.db")
	t.Setenv(EnvLogLevel, "WARN")

	cfg, err := Load(writeConfig(t, "journal:\n  path: ignored.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/scriptengine.db", cfg.Journal.Path)
	assert.Equal(t, slog.LevelWarn, cfg.Log.SlogLevel())
}

func TestLoad_EnvOverrideValidated(t *testing.T) {
	t.Setenv(EnvLogLevel, "loud")

	_, err := Load("")
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{EnvJournal: "j.db"}

	ApplyEnv(cfg, func(k string) string { return env[k] })

	assert.Equal(t, "j.db", cfg.Journal.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv(EnvJournal, "")
	os.Unsetenv(EnvJournal)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvJournal+"=from-dotenv.db\n"), 0o644))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-dotenv.db", os.Getenv(EnvJournal))

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
