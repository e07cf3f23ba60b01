package wire

import (
	"fmt"
	"io"
	"sync"
)

// Writer serializes messages to an output stream, one JSON object per line.
//
// Thread-safety: Write is safe for concurrent use. The engine loop and the
// CPU-limit trap share one Writer so a trap notice can never interleave
// with a half-written response.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter creates a Writer on out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Write encodes v and writes it followed by a newline in a single call
// to the underlying writer.
func (w *Writer) Write(v any) error {
	line, err := marshalValue(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.out.Write(line); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
