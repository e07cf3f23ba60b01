package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("journal: no session started")

// Exchange is one handled request.
type Exchange struct {
	// Seq is assigned by the journal when the exchange is recorded.
	Seq int64

	Opcode string

	// Status is "success" or "error".
	Status string

	// Code is the error code, or 0 on success.
	Code int

	// RequestHash is the content hash of the request line.
	RequestHash string

	Duration time.Duration
}

// Library is one library merged into the environment.
type Library struct {
	// Seq is assigned by the journal when the library is recorded.
	Seq int64

	Path       string
	Name       string
	SourceHash string

	// Bindings lists the names the library defined, sorted.
	Bindings []string
}

// StartSession inserts a new session row and makes it current.
// Sequence numbers restart at 1.
func (j *Journal) StartSession(ctx context.Context, version string) (string, error) {
	id := j.ids.Generate()

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, pid, version, started_at)
		VALUES (?, ?, ?, ?)
	`,
		id,
		os.Getpid(),
		version,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}

	j.session = id
	j.clock = NewClock()
	return id, nil
}

// RecordExchange appends ex to the current session.
func (j *Journal) RecordExchange(ctx context.Context, ex Exchange) error {
	if j.session == "" {
		return ErrNoSession
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO exchanges
		(session_id, seq, opcode, status, code, request_hash, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		j.session,
		j.clock.Next(),
		ex.Opcode,
		ex.Status,
		ex.Code,
		ex.RequestHash,
		ex.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	return nil
}

// RecordLibrary appends lib to the current session.
func (j *Journal) RecordLibrary(ctx context.Context, lib Library) error {
	if j.session == "" {
		return ErrNoSession
	}

	bindings := lib.Bindings
	if bindings == nil {
		bindings = []string{}
	}
	bindingsJSON, err := json.Marshal(bindings)
	if err != nil {
		return fmt.Errorf("record library: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO libraries
		(session_id, seq, path, name, source_hash, bindings)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		j.session,
		j.clock.Next(),
		lib.Path,
		lib.Name,
		lib.SourceHash,
		string(bindingsJSON),
	)
	if err != nil {
		return fmt.Errorf("record library: %w", err)
	}
	return nil
}
