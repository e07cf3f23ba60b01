package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Success is the envelope written when a handler returns normally.
type Success struct {
	Result any
}

// MarshalJSON emits {"status":"success","result":...}.
// The result field is always present, even when nil.
func (s Success) MarshalJSON() ([]byte, error) {
	result, err := marshalValue(s.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"status":"success","result":`)
	buf.Write(result)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Failure is the envelope written when a handler reports a structured error.
type Failure struct {
	Code    int
	Message string

	// Fields holds kind-specific extra fields, emitted after message in
	// sorted key order.
	Fields map[string]any
}

// MarshalJSON emits {"status":"error","code":N,"message":S,...fields}.
func (f Failure) MarshalJSON() ([]byte, error) {
	msg, err := marshalValue(f.Message)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"status":"error","code":%d,"message":`, f.Code)
	buf.Write(msg)

	keys := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key, err := marshalValue(k)
		if err != nil {
			return nil, err
		}
		val, err := marshalValue(f.Fields[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", k, err)
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// TrapNotice is the fixed out-of-band message written when the CPU-time
// ceiling is crossed. It is not a Success or Failure envelope.
type TrapNotice struct {
	Success bool `json:"success"`
	Code    int  `json:"code"`
}

// marshalValue encodes v without HTML escaping and without the trailing
// newline json.Encoder adds.
func marshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
