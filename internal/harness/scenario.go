package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scriptengine/internal/wire"
)

// LibsVar is replaced by the scenario's library directory in request lines.
const LibsVar = "$LIBS"

// Scenario is a scripted conversation with the engine.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Libs is the directory substituted for $LIBS, relative to the
	// scenario file.
	Libs string `yaml:"libs,omitempty"`

	// HardLimits are the hard ceilings the fake limiter enforces.
	// Zero means unlimited.
	HardLimits HardLimits `yaml:"hard_limits,omitempty"`

	// Steps are sent in order, one request line each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the state after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// HardLimits configures the fake limiter.
type HardLimits struct {
	CPU    uint64 `yaml:"cpu,omitempty"`
	Memory uint64 `yaml:"memory,omitempty"`
}

// Step is one request line and its expected response.
type Step struct {
	// Send is the raw request line. It need not be valid JSON.
	Send string `yaml:"send"`

	// Expect checks the response. If nil, any response is accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a response.
type Expect struct {
	// Status is "success", "error", or "none" for requests that produce
	// no response.
	Status string `yaml:"status"`

	// Code is the expected error code. Zero skips the check.
	Code int `yaml:"code,omitempty"`

	// Message must equal the error message exactly.
	Message string `yaml:"message,omitempty"`

	// MessageContains must appear in the error message.
	MessageContains string `yaml:"message_contains,omitempty"`

	// Result is matched against the success result. Objects match as a
	// subset; everything else matches exactly.
	Result any `yaml:"result,omitempty"`

	// Fields are matched against the extra fields of an error response.
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Expectation status values.
const (
	ExpectSuccess = "success"
	ExpectError   = "error"
	ExpectNone    = "none"
)

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "bound": every name in Names is in the environment
	// - "unbound": no name in Names is in the environment
	// - "exchange_count": the journal holds Count exchanges matching
	//   Opcode and Code
	// - "library_count": the journal holds Count library loads
	// - "limit": the last applied Resource limit is Value
	Type string `yaml:"type"`

	// Names are binding names (used by bound and unbound).
	Names []string `yaml:"names,omitempty"`

	// Opcode filters exchanges; empty matches every opcode.
	Opcode string `yaml:"opcode,omitempty"`

	// Code filters exchanges by error code; nil matches every code.
	Code *int `yaml:"code,omitempty"`

	// Count is the expected number of records.
	Count int `yaml:"count,omitempty"`

	// Resource is "cpu" or "memory" (used by limit).
	Resource string `yaml:"resource,omitempty"`

	// Value is the expected applied limit (used by limit).
	Value uint64 `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertBound         = "bound"
	AssertUnbound       = "unbound"
	AssertExchangeCount = "exchange_count"
	AssertLibraryCount  = "library_count"
	AssertLimit         = "limit"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Libs != "" && !filepath.IsAbs(scenario.Libs) {
		scenario.Libs = filepath.Join(filepath.Dir(path), scenario.Libs)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	if s.Libs != "" {
		info, err := os.Stat(s.Libs)
		if err != nil {
			return fmt.Errorf("libs directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("libs %s is not a directory", s.Libs)
		}
	}

	for i, step := range s.Steps {
		if isExit(step.Send) && i != len(s.Steps)-1 {
			return fmt.Errorf("steps[%d]: exit must be the last step", i)
		}
		if step.Expect == nil {
			continue
		}
		switch step.Expect.Status {
		case ExpectSuccess, ExpectError, ExpectNone:
		default:
			return fmt.Errorf("steps[%d].expect: unknown status %q", i, step.Expect.Status)
		}
		if step.Expect.Status != ExpectError && (step.Expect.Code != 0 || step.Expect.Message != "" || step.Expect.Fields != nil) {
			return fmt.Errorf("steps[%d].expect: code, message and fields apply to errors only", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertBound, AssertUnbound:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names are required for %s", index, a.Type)
		}
	case AssertExchangeCount, AssertLibraryCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertLimit:
		if a.Resource != "cpu" && a.Resource != "memory" {
			return fmt.Errorf("assertions[%d]: resource must be cpu or memory", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// isExit reports whether line is an exit request.
func isExit(line string) bool {
	req, err := wire.Decode([]byte(line))
	if err != nil {
		return false
	}
	opcode, err := req.Opcode()
	return err == nil && opcode == "exit"
}
