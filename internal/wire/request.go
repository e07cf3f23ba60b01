package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors returned while decoding a request envelope.
var (
	// ErrMalformed indicates the line is not a JSON object.
	ErrMalformed = errors.New("malformed request")

	// ErrMissingOpcode indicates the request has no "opcode" field.
	ErrMissingOpcode = errors.New("missing opcode")

	// ErrOpcodeType indicates the "opcode" field is not a string.
	ErrOpcodeType = errors.New("opcode is not a string")
)

// OpcodeField is the envelope field selecting the handler.
const OpcodeField = "opcode"

// AttributeError reports a missing or mistyped request attribute.
// Every typed accessor on Request returns this type so handlers validate
// their fields the same way.
type AttributeError struct {
	// Name is the attribute that failed validation.
	Name string

	// Missing is true when the attribute is absent.
	Missing bool

	// Reason explains why a present attribute is invalid.
	Reason string
}

func (e *AttributeError) Error() string {
	if e.Missing {
		return fmt.Sprintf("missing attribute %q", e.Name)
	}
	return fmt.Sprintf("invalid attribute %q: %s", e.Name, e.Reason)
}

// Request is a decoded request envelope.
// Numbers are kept as json.Number so integer attributes can be told apart
// from fractional ones.
type Request struct {
	fields map[string]any
	raw    []byte
}

// Decode parses one request line.
// Returns ErrMalformed if the line is not a single JSON object.
func Decode(line []byte) (Request, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	// Trailing garbage after the object is malformed too.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Request{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}

	fields, ok := v.(map[string]any)
	if !ok {
		return Request{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	raw := make([]byte, len(line))
	copy(raw, line)
	return Request{fields: fields, raw: raw}, nil
}

// NewRequest builds a request from already-decoded fields.
// Used by tests and by the startup preloader.
func NewRequest(fields map[string]any) Request {
	return Request{fields: fields}
}

// Raw returns the original request line, or nil for constructed requests.
func (r Request) Raw() []byte {
	return r.raw
}

// Opcode returns the request's opcode.
func (r Request) Opcode() (string, error) {
	v, ok := r.fields[OpcodeField]
	if !ok {
		return "", ErrMissingOpcode
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrOpcodeType
	}
	return s, nil
}

// Has reports whether the attribute is present.
func (r Request) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Value returns the attribute as decoded, without type checks.
func (r Request) Value(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// String returns a required string attribute.
func (r Request) String(name string) (string, error) {
	v, ok := r.fields[name]
	if !ok {
		return "", &AttributeError{Name: name, Missing: true}
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(name, "string")
	}
	return s, nil
}

// OptionalString returns a string attribute, or def when it is absent.
func (r Request) OptionalString(name, def string) (string, error) {
	if !r.Has(name) {
		return def, nil
	}
	return r.String(name)
}

// Int returns a required integer attribute.
// Fractional numbers, booleans and numeric strings are rejected.
func (r Request) Int(name string) (int64, error) {
	v, ok := r.fields[name]
	if !ok {
		return 0, &AttributeError{Name: name, Missing: true}
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, typeError(name, "int")
	}
	i, err := n.Int64()
	if err != nil {
		return 0, typeError(name, "int")
	}
	return i, nil
}

// OptionalArray returns an array attribute, or an empty slice when absent.
func (r Request) OptionalArray(name string) ([]any, error) {
	v, ok := r.fields[name]
	if !ok {
		return []any{}, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, typeError(name, "array")
	}
	return arr, nil
}

// OptionalCollection returns an object or array attribute, or nil when absent.
func (r Request) OptionalCollection(name string) (any, error) {
	v, ok := r.fields[name]
	if !ok {
		return nil, nil
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	default:
		return nil, typeError(name, "object")
	}
}

func typeError(name, typ string) *AttributeError {
	return &AttributeError{
		Name:   name,
		Reason: fmt.Sprintf("'%s' must be of type '%s'", name, typ),
	}
}
