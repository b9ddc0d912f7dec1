package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/condgate/condgate/internal/auth"
)

// Action constants for audit logging
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ResourceType constants for audit logging
const (
	ResourceTypeRuleSet = "ruleset"
	ResourceTypeAPIKey  = "api_key"
	ResourceTypeSystem  = "system"
)

// Status constants for audit logging
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ActorKind constants for audit logging
const (
	ActorKindAPIKey = "api_key"
	ActorKindSystem = "system"
)

// Clock interface for testable time operations
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator interface for testable ID generation
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator implements IDGenerator using UUID v4
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// Redactor interface for removing sensitive data
type Redactor interface {
	Redact(data map[string]any) map[string]any
}

// DefaultRedactor scrubs well-known sensitive keys plus any extras from
// config (AUDIT_REDACT_KEYS).
type DefaultRedactor struct {
	sensitiveKeys []string
}

func NewDefaultRedactor(extra ...string) *DefaultRedactor {
	keys := []string{
		"password", "secret", "token", "api_key", "key_hash",
		"authorization", "cookie", "session",
	}
	return &DefaultRedactor{
		sensitiveKeys: append(keys, extra...),
	}
}

func (r *DefaultRedactor) Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	redacted := make(map[string]any)
	for k, v := range data {
		isSensitive := false
		for _, sensitive := range r.sensitiveKeys {
			if k == sensitive {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			redacted[k] = "[REDACTED]"
		} else if nested, ok := v.(map[string]any); ok {
			redacted[k] = r.Redact(nested)
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

// Actor represents who performed the action
type Actor struct {
	Kind    string `json:"kind"` // api_key, system
	ID      string `json:"id,omitempty"`
	Display string `json:"display"` // Human-readable identifier
}

// Source represents request metadata
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Event represents a canonical audit event
type Event struct {
	ID           string         `json:"id"`
	OccurredAt   time.Time      `json:"occurred_at"`
	RequestID    string         `json:"request_id,omitempty"`
	Actor        Actor          `json:"actor"`
	Source       Source         `json:"source"`
	Action       string         `json:"action"`        // created, updated, deleted
	ResourceType string         `json:"resource_type"` // ruleset, api_key, system
	ResourceID   string         `json:"resource_id"`
	Environment  string         `json:"environment,omitempty"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	Status       string         `json:"status"` // success, failure
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Sink defines the interface for persisting audit events
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Service provides asynchronous audit logging. Events are queued and
// written by a single background worker; logging never blocks a request.
type Service struct {
	sink     Sink
	clock    Clock
	idgen    IDGenerator
	redactor Redactor
	logger   zerolog.Logger
	queue    chan Event
	stopCh   chan struct{}
	done     chan struct{}
	closed   int32 // atomic flag to prevent double-close
	dropped  atomic.Int64
}

// NewService creates a new audit service. clock, idgen, and redactor may
// be nil to use the defaults.
func NewService(sink Sink, clock Clock, idgen IDGenerator, redactor Redactor, queueSize int, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	if redactor == nil {
		redactor = NewDefaultRedactor()
	}

	s := &Service{
		sink:     sink,
		clock:    clock,
		idgen:    idgen,
		redactor: redactor,
		logger:   logger,
		queue:    make(chan Event, queueSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	go s.worker()

	return s
}

// worker processes audit events in the background
func (s *Service) worker() {
	defer close(s.done)
	for {
		select {
		case event := <-s.queue:
			s.write(event)
		case <-s.stopCh:
			// Drain remaining events before stopping
			for {
				select {
				case event := <-s.queue:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.Write(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("resource_type", event.ResourceType).Str("resource_id", event.ResourceID).Msg("failed to write audit event")
	}
}

// Close gracefully shuts down the audit service. It stops the background
// worker after draining any queued events. Safe to call multiple times.
func (s *Service) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil // Already closed
	}
	close(s.stopCh)
	<-s.done
	return nil
}

// Dropped reports how many events were discarded because the queue was full.
func (s *Service) Dropped() int64 {
	return s.dropped.Load()
}

// Log queues an audit event for asynchronous processing
func (s *Service) Log(event Event) {
	if event.ID == "" {
		event.ID = s.idgen.Generate()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}

	// Redact sensitive data in states
	if event.BeforeState != nil {
		event.BeforeState = s.redactor.Redact(event.BeforeState)
	}
	if event.AfterState != nil {
		event.AfterState = s.redactor.Redact(event.AfterState)
	}

	// Try to queue, drop if full
	select {
	case s.queue <- event:
	default:
		s.dropped.Add(1)
		s.logger.Warn().Str("resource_type", event.ResourceType).Str("resource_id", event.ResourceID).Msg("audit queue full, dropping event")
	}
}

// actorFromContext derives the acting identity from auth context values.
func actorFromContext(ctx context.Context) Actor {
	if keyID, ok := auth.GetAPIKeyIDFromContext(ctx); ok && keyID != "" {
		display := keyID
		if len(display) > 8 {
			display = display[:8]
		}
		return Actor{
			Kind:    ActorKindAPIKey,
			ID:      keyID,
			Display: "api_key:" + display,
		}
	}
	if _, ok := auth.GetRoleFromContext(ctx); ok {
		// Authenticated via the static admin key; there is no key ID.
		return Actor{
			Kind:    ActorKindAPIKey,
			Display: "admin_key",
		}
	}
	return Actor{
		Kind:    ActorKindSystem,
		Display: "system",
	}
}

// ComputeChanges computes the difference between before and after states
func ComputeChanges(before, after map[string]any) map[string]any {
	if before == nil && after == nil {
		return nil
	}
	if before == nil {
		before = make(map[string]any)
	}
	if after == nil {
		after = make(map[string]any)
	}

	changes := make(map[string]any)

	// Check for changes in after (new or modified values)
	for key, afterVal := range after {
		beforeVal, existedBefore := before[key]

		// Values compare by JSON form so numeric types do not matter
		beforeJSON, _ := json.Marshal(beforeVal)
		afterJSON, _ := json.Marshal(afterVal)

		if !existedBefore || string(beforeJSON) != string(afterJSON) {
			changes[key] = map[string]any{
				"before": beforeVal,
				"after":  afterVal,
			}
		}
	}

	// Check for removed keys
	for key, beforeVal := range before {
		if _, existsAfter := after[key]; !existsAfter {
			changes[key] = map[string]any{
				"before": beforeVal,
				"after":  nil,
			}
		}
	}

	if len(changes) == 0 {
		return nil
	}

	return changes
}
