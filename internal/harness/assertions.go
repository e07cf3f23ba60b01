package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/roach88/scriptengine/internal/journal"
	"github.com/roach88/scriptengine/internal/sandbox"
	"github.com/roach88/scriptengine/internal/wire"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type      string     // Assertion type for categorization
	Expected  string     // Human-readable expected outcome
	Actual    string     // Human-readable actual outcome
	Exchanges []Exchange // Full conversation for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nConversation:\n")
	for i, ex := range e.Exchanges {
		fmt.Fprintf(&buf, "  [%d] > %s\n", i+1, ex.Request)
		if ex.Response != "" {
			fmt.Fprintf(&buf, "      < %s\n", ex.Response)
		}
	}

	return buf.String()
}

// AssertionContext provides the state assertions are evaluated against.
type AssertionContext struct {
	Environment *sandbox.Environment
	Limiter     *Limiter
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertBound, AssertUnbound:
			if actx == nil || actx.Environment == nil {
				err = fmt.Errorf("assertion[%d]: %s requires an environment", i, assertion.Type)
			} else {
				err = assertBindings(actx.Environment, assertion, result.Exchanges)
			}
		case AssertExchangeCount:
			err = assertExchangeCount(result.Journal, assertion, result.Exchanges)
		case AssertLibraryCount:
			if len(result.Libraries) != assertion.Count {
				err = &AssertionError{
					Type:      AssertLibraryCount,
					Expected:  fmt.Sprintf("%d library load(s)", assertion.Count),
					Actual:    fmt.Sprintf("%d library load(s)", len(result.Libraries)),
					Exchanges: result.Exchanges,
				}
			}
		case AssertLimit:
			if actx == nil || actx.Limiter == nil {
				err = fmt.Errorf("assertion[%d]: limit requires a limiter", i)
			} else if got := actx.Limiter.Applied(assertion.Resource); got != assertion.Value {
				err = &AssertionError{
					Type:      AssertLimit,
					Expected:  fmt.Sprintf("%s limit %d", assertion.Resource, assertion.Value),
					Actual:    fmt.Sprintf("%s limit %d", assertion.Resource, got),
					Exchanges: result.Exchanges,
				}
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertBindings checks that names are all bound (bound) or all absent
// (unbound).
func assertBindings(env *sandbox.Environment, assertion Assertion, exchanges []Exchange) error {
	want := assertion.Type == AssertBound

	var wrong []string
	for _, name := range assertion.Names {
		if _, ok := env.Lookup(name); ok != want {
			wrong = append(wrong, name)
		}
	}
	if len(wrong) == 0 {
		return nil
	}

	actual := "unbound: "
	if !want {
		actual = "bound: "
	}
	return &AssertionError{
		Type:      assertion.Type,
		Expected:  fmt.Sprintf("%s %v", assertion.Type, assertion.Names),
		Actual:    actual + strings.Join(wrong, ", "),
		Exchanges: exchanges,
	}
}

// assertExchangeCount checks how many journal exchanges match the
// assertion's opcode and code filters.
func assertExchangeCount(records []journal.Exchange, assertion Assertion, exchanges []Exchange) error {
	count := 0
	for _, rec := range records {
		if assertion.Opcode != "" && rec.Opcode != assertion.Opcode {
			continue
		}
		if assertion.Code != nil && rec.Code != *assertion.Code {
			continue
		}
		count++
	}
	if count == assertion.Count {
		return nil
	}

	filter := "any opcode"
	if assertion.Opcode != "" {
		filter = fmt.Sprintf("opcode %q", assertion.Opcode)
	}
	if assertion.Code != nil {
		filter += fmt.Sprintf(", code %d", *assertion.Code)
	}
	return &AssertionError{
		Type:      AssertExchangeCount,
		Expected:  fmt.Sprintf("%d exchange(s) with %s", assertion.Count, filter),
		Actual:    fmt.Sprintf("%d exchange(s)", count),
		Exchanges: exchanges,
	}
}

// checkExpect validates one response line against an expectation.
func checkExpect(expect *Expect, line string) error {
	if expect.Status == ExpectNone {
		if line != "" {
			return fmt.Errorf("expected no response, got %s", line)
		}
		return nil
	}
	if line == "" {
		return fmt.Errorf("expected %s response, got none", expect.Status)
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(line)))
	decoder.UseNumber()
	var response map[string]any
	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}

	if status, _ := response["status"].(string); status != expect.Status {
		return fmt.Errorf("status: expected %q, got %q in %s", expect.Status, status, line)
	}

	if expect.Status == wire.StatusSuccess {
		if expect.Result != nil && !matchValue(response["result"], expect.Result) {
			return fmt.Errorf("result: expected %v, got %s", expect.Result, line)
		}
		return nil
	}

	if expect.Code != 0 && !matchValue(response["code"], expect.Code) {
		return fmt.Errorf("code: expected %d, got %s", expect.Code, line)
	}
	message, _ := response["message"].(string)
	if expect.Message != "" && message != expect.Message {
		return fmt.Errorf("message: expected %q, got %q", expect.Message, message)
	}
	if expect.MessageContains != "" && !strings.Contains(message, expect.MessageContains) {
		return fmt.Errorf("message: expected to contain %q, got %q", expect.MessageContains, message)
	}
	for key, want := range expect.Fields {
		got, ok := response[key]
		if !ok {
			return fmt.Errorf("field %q missing from %s", key, line)
		}
		if !matchValue(got, want) {
			return fmt.Errorf("field %q: expected %v, got %v", key, want, got)
		}
	}
	return nil
}

// matchValue compares a decoded JSON value with a YAML expectation.
// Objects match as a subset; arrays match element by element; numbers
// compare by value.
func matchValue(actual, expected any) bool {
	if expected == nil {
		return actual == nil
	}

	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for key, want := range exp {
			got, exists := act[key]
			if !exists || !matchValue(got, want) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchValue(act[i], exp[i]) {
				return false
			}
		}
		return true
	}

	if want, ok := number(expected); ok {
		got, ok := number(actual)
		return ok && got == want
	}
	return reflect.DeepEqual(actual, expected)
}

// number converts the numeric types produced by the JSON and YAML
// decoders to float64.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	}
	return 0, false
}
