// Package config loads the scriptengine configuration file.
//
// A configuration file is YAML. It is decoded strictly (unknown keys are
// errors), overridden from the environment, then checked against an
// embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables that override file settings.
const (
	EnvJournal  = "SCRIPTENGINE_JOURNAL"
	EnvLogLevel = "SCRIPTENGINE_LOG_LEVEL"
)

// Config is the root configuration.
type Config struct {
	Limits    LimitsConfig    `json:"limits" yaml:"limits"`
	Libraries []LibraryConfig `json:"libraries,omitempty" yaml:"libraries,omitempty"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Sandbox   SandboxConfig   `json:"sandbox" yaml:"sandbox"`
}

// LimitsConfig holds resource limits applied at startup. Zero values leave
// the corresponding limit unchanged.
type LimitsConfig struct {
	CPUSeconds  int64 `json:"cpu_seconds,omitempty" yaml:"cpu_seconds,omitempty"`
	MemoryBytes int64 `json:"memory_bytes,omitempty" yaml:"memory_bytes,omitempty"`
}

// LibraryConfig names a library preloaded at startup.
type LibraryConfig struct {
	Path string `json:"path" yaml:"path"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// JournalConfig configures the SQLite journal.
type JournalConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"` // Empty disables the journal.
}

// LogConfig configures the diagnostic log on stderr.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error. Default: info.
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // text or json. Default: text.
}

// SandboxConfig configures script runtimes.
type SandboxConfig struct {
	MaxCallStack int `json:"max_call_stack,omitempty" yaml:"max_call_stack,omitempty"`
}

// SlogLevel returns the configured level as a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidationError lists the schema violations of a configuration.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment. Variables already set are not overwritten.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads the configuration at path, or the defaults when path is
// empty, then applies environment overrides and validates the result.
// Relative library paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	cfg := Default()
	source := "<defaults>"

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}

		base := filepath.Dir(path)
		for i, lib := range cfg.Libraries {
			if lib.Path != "" && !filepath.IsAbs(lib.Path) {
				cfg.Libraries[i].Path = filepath.Join(base, lib.Path)
			}
		}
		source = path
	}

	ApplyEnv(cfg, os.Getenv)

	if err := Validate(cfg, source); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from environment variables read through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvJournal); v != "" {
		cfg.Journal.Path = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// Validate checks cfg against the embedded schema.
func Validate(cfg *Config, source string) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(cfg)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		problems := []string{}
		for _, e := range errors.Errors(err) {
			problems = append(problems, e.Error())
		}
		return &ValidationError{Source: source, Problems: problems}
	}
	return nil
}
