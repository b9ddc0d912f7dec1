package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// LogSink writes audit events to the service log as structured records.
// It is the default sink when nothing else is configured.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a zerolog-backed audit sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Write emits the event as a single structured log line.
func (s *LogSink) Write(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	s.logger.Info().
		Str("audit_id", event.ID).
		Str("action", event.Action).
		Str("resource_type", event.ResourceType).
		Str("resource_id", event.ResourceID).
		Str("status", event.Status).
		RawJSON("event", payload).
		Msg("audit")
	return nil
}

// FileSink appends audit events as JSON lines to a local file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (or creates) the audit log file for appending.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileSink{file: f}, nil
}

// Write appends one JSON line per event.
func (s *FileSink) Write(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.file.Close()
}

const auditSchemaSQL = `
CREATE TABLE IF NOT EXISTS audit_log (
    id            text PRIMARY KEY,
    occurred_at   timestamptz NOT NULL,
    request_id    text NOT NULL DEFAULT '',
    actor         jsonb NOT NULL,
    source        jsonb NOT NULL,
    action        text NOT NULL,
    resource_type text NOT NULL,
    resource_id   text NOT NULL,
    environment   text NOT NULL DEFAULT '',
    before_state  jsonb,
    after_state   jsonb,
    changes       jsonb,
    status        text NOT NULL,
    error_message text NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_log_occurred_at_idx ON audit_log (occurred_at);
`

// PostgresSink persists audit events next to the rule set data. Used when
// the store backend is postgres and no audit file is configured.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink creates a PostgreSQL audit sink on an existing pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, auditSchemaSQL); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

// Write inserts the event into the audit_log table.
func (s *PostgresSink) Write(ctx context.Context, event Event) error {
	actor, err := json.Marshal(event.Actor)
	if err != nil {
		return fmt.Errorf("failed to marshal actor: %w", err)
	}
	source, err := json.Marshal(event.Source)
	if err != nil {
		return fmt.Errorf("failed to marshal source: %w", err)
	}

	before, err := marshalState(event.BeforeState)
	if err != nil {
		return err
	}
	after, err := marshalState(event.AfterState)
	if err != nil {
		return err
	}
	changes, err := marshalState(event.Changes)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_log (
			id, occurred_at, request_id, actor, source,
			action, resource_type, resource_id, environment,
			before_state, after_state, changes, status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		event.ID, event.OccurredAt, event.RequestID, actor, source,
		event.Action, event.ResourceType, event.ResourceID, event.Environment,
		before, after, changes, event.Status, event.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// marshalState serializes an optional state map, keeping nil as SQL NULL.
func marshalState(state map[string]any) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return b, nil
}
