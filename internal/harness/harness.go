package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/roach88/scriptengine/internal/engine"
	"github.com/roach88/scriptengine/internal/journal"
	"github.com/roach88/scriptengine/internal/limits"
)

// SessionID is the journal session every scenario runs under.
const SessionID = "harness-session"

// Exchange is one step as sent and answered.
type Exchange struct {
	// Request is the step's line before $LIBS expansion.
	Request string `json:"request"`

	// Response is the response line with the library directory replaced
	// by $LIBS. Empty when the request produced no response.
	Response string `json:"response,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Exchanges []Exchange `json:"exchanges"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// Journal records, with paths rewritten like responses.
	Journal   []journal.Exchange `json:"-"`
	Libraries []journal.Library  `json:"-"`

	// Bindings are the environment's names after the last step.
	Bindings []string `json:"bindings"`

	// Exited is true when the scenario ended with the exit opcode.
	Exited bool `json:"exited"`
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Limiter is a fake engine.Limiter that records applied limits and
// enforces configured hard ceilings.
type Limiter struct {
	hard   HardLimits
	cpu    uint64
	memory uint64
}

// NewLimiter creates a Limiter with the given hard ceilings.
func NewLimiter(hard HardLimits) *Limiter {
	return &Limiter{hard: hard}
}

// SetCPU records seconds unless it exceeds the hard CPU ceiling.
func (l *Limiter) SetCPU(seconds uint64) error {
	if l.hard.CPU > 0 && seconds > l.hard.CPU {
		return &limits.LimitError{Resource: "cpu", Requested: seconds, Hard: l.hard.CPU}
	}
	l.cpu = seconds
	return nil
}

// SetMemory records bytes unless it exceeds the hard memory ceiling.
func (l *Limiter) SetMemory(bytes uint64) error {
	if l.hard.Memory > 0 && bytes > l.hard.Memory {
		return &limits.LimitError{Resource: "memory", Requested: bytes, Hard: l.hard.Memory}
	}
	l.memory = bytes
	return nil
}

// Applied returns the last applied limit for resource, "cpu" or "memory".
func (l *Limiter) Applied(resource string) uint64 {
	if resource == "cpu" {
		return l.cpu
	}
	return l.memory
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh engine with a fresh in-memory journal.
// An error is returned only when the harness itself fails; failed
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	j, err := journal.Open(":memory:", journal.WithIDGenerator(journal.NewFixedGenerator(SessionID)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	if _, err := j.StartSession(ctx, "harness"); err != nil {
		return nil, err
	}

	limiter := NewLimiter(scenario.HardLimits)
	var out bytes.Buffer
	eng := engine.New(&out,
		engine.WithLimiter(limiter),
		engine.WithRecorder(j),
		engine.WithExitFunc(func(code int) {}),
	)

	var input strings.Builder
	for _, step := range scenario.Steps {
		input.WriteString(expand(step.Send, scenario.Libs))
		input.WriteByte('\n')
	}
	if err := eng.Serve(ctx, strings.NewReader(input.String())); err != nil {
		return nil, fmt.Errorf("engine stopped: %w", err)
	}

	result := &Result{Pass: true, Exchanges: []Exchange{}}
	responses := splitLines(out.String())
	next := 0
	for i, step := range scenario.Steps {
		ex := Exchange{Request: step.Send}
		if isExit(step.Send) {
			result.Exited = true
		} else {
			if next >= len(responses) {
				return nil, fmt.Errorf("steps[%d]: no response", i)
			}
			ex.Response = collapse(responses[next], scenario.Libs)
			next++
		}
		result.Exchanges = append(result.Exchanges, ex)

		if step.Expect != nil {
			if err := checkExpect(step.Expect, ex.Response); err != nil {
				result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			}
		}
	}
	if next != len(responses) {
		return nil, fmt.Errorf("%d unexpected response line(s)", len(responses)-next)
	}

	if result.Journal, err = j.Exchanges(ctx, SessionID); err != nil {
		return nil, err
	}
	if result.Libraries, err = j.Libraries(ctx, SessionID); err != nil {
		return nil, err
	}
	for i := range result.Libraries {
		result.Libraries[i].Path = collapse(result.Libraries[i].Path, scenario.Libs)
	}
	result.Bindings = eng.Environment().Names()

	actx := &AssertionContext{
		Environment: eng.Environment(),
		Limiter:     limiter,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func expand(line, libs string) string {
	if libs == "" {
		return line
	}
	return strings.ReplaceAll(line, LibsVar, libs)
}

func collapse(line, libs string) string {
	if libs == "" {
		return line
	}
	return strings.ReplaceAll(line, libs, LibsVar)
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
