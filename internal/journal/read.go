package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Session describes one serving session.
type Session struct {
	ID        string
	PID       int
	Version   string
	StartedAt string
}

// Sessions returns every session, oldest first.
// UUIDv7 ids sort by creation time.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.queryContext(ctx, `
		SELECT id, pid, version, started_at
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.PID, &s.Version, &s.StartedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Exchanges returns the exchanges of session in seq order.
// Returns an empty slice, not nil, when there are none.
func (j *Journal) Exchanges(ctx context.Context, session string) ([]Exchange, error) {
	rows, err := j.queryContext(ctx, `
		SELECT seq, opcode, status, code, request_hash, duration_us
		FROM exchanges
		WHERE session_id = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	exchanges := []Exchange{}
	for rows.Next() {
		var ex Exchange
		var micros int64
		if err := rows.Scan(&ex.Seq, &ex.Opcode, &ex.Status, &ex.Code, &ex.RequestHash, &micros); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.Duration = time.Duration(micros) * time.Microsecond
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return exchanges, nil
}

// Libraries returns the libraries of session in seq order.
func (j *Journal) Libraries(ctx context.Context, session string) ([]Library, error) {
	rows, err := j.queryContext(ctx, `
		SELECT seq, path, name, source_hash, bindings
		FROM libraries
		WHERE session_id = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query libraries: %w", err)
	}
	defer rows.Close()

	libraries := []Library{}
	for rows.Next() {
		var lib Library
		var bindings string
		if err := rows.Scan(&lib.Seq, &lib.Path, &lib.Name, &lib.SourceHash, &bindings); err != nil {
			return nil, fmt.Errorf("scan library: %w", err)
		}
		if err := json.Unmarshal([]byte(bindings), &lib.Bindings); err != nil {
			return nil, fmt.Errorf("decode library bindings: %w", err)
		}
		libraries = append(libraries, lib)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate libraries: %w", err)
	}
	return libraries, nil
}
