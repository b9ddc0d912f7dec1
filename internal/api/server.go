package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/condgate/condgate/internal/audit"
	"github.com/condgate/condgate/internal/auth"
	"github.com/condgate/condgate/internal/snapshot"
	"github.com/condgate/condgate/internal/store"
	"github.com/condgate/condgate/internal/webhook"
)

// maxRequestBodySize caps mutating and evaluation request bodies.
const maxRequestBodySize = 1 << 20 // 1 MB

// Server serves one environment's rule sets: reads and evaluations come
// from the compiled snapshot, mutations go through the store and trigger
// a rebuild.
type Server struct {
	store     store.Store
	snapshots *snapshot.Manager
	env       string
	salt      string
	adminKey  string
	keyStore  auth.KeyStore
	auth      *auth.Authenticator
	audit     *audit.Service
	webhooks  *webhook.Dispatcher
	logger    zerolog.Logger

	rateLimit  int
	rateWindow time.Duration
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithLogger sets the server logger. Defaults to a no-op logger, which is
// what tests want.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithSnapshots supplies an externally owned snapshot manager, so store
// watchers and the server share the same one.
func WithSnapshots(m *snapshot.Manager) Option {
	return func(s *Server) { s.snapshots = m }
}

// WithKeyStore enables stored API keys alongside the static admin key.
func WithKeyStore(ks auth.KeyStore) Option {
	return func(s *Server) { s.keyStore = ks }
}

// WithSampleSalt sets the salt for deterministic subject bucketing.
func WithSampleSalt(salt string) Option {
	return func(s *Server) { s.salt = salt }
}

// WithAudit enables audit logging of mutations.
func WithAudit(svc *audit.Service) Option {
	return func(s *Server) { s.audit = svc }
}

// WithWebhooks enables webhook notifications for mutations.
func WithWebhooks(d *webhook.Dispatcher) Option {
	return func(s *Server) { s.webhooks = d }
}

// WithEvalRateLimit enables per-IP rate limiting on the evaluate endpoint.
// A limit of 0 disables it.
func WithEvalRateLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimit = limit
		s.rateWindow = window
	}
}

// NewServer creates a server for one store and environment. adminKey is
// the static write-access key; further keys come in via WithKeyStore.
func NewServer(st store.Store, env, adminKey string, opts ...Option) *Server {
	s := &Server{
		store:    st,
		env:      env,
		adminKey: adminKey,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.snapshots == nil {
		s.snapshots = snapshot.NewManager(st, env, s.logger)
	}
	s.auth = auth.NewAuthenticator(s.keyStore, adminKey)
	return s
}

// RebuildSnapshot recompiles the served environment's snapshot from the
// store. Mutating handlers call it after every write; callers wiring a
// store watcher call it on change notifications.
func (s *Server) RebuildSnapshot(ctx context.Context) error {
	return s.snapshots.Rebuild(ctx)
}

// auditRuleSet records a rule set mutation. No-op unless auditing is
// configured.
func (s *Server) auditRuleSet(r *http.Request, action, key string, before, after map[string]any, errMsg string) {
	if s.audit == nil {
		return
	}
	builder := audit.NewEventBuilder(r).
		ForResource(audit.ResourceTypeRuleSet, key).
		WithAction(action).
		WithEnvironment(s.env).
		WithBeforeState(before).
		WithAfterState(after)
	if before != nil && after != nil {
		builder = builder.WithChanges(audit.ComputeChanges(before, after))
	}
	if errMsg != "" {
		builder = builder.Failure(errMsg)
	}
	s.audit.Log(builder.Build())
}

// notifyRuleSet dispatches a webhook event for a successful mutation.
// No-op unless webhooks are configured.
func (s *Server) notifyRuleSet(r *http.Request, key string, before, after map[string]any) {
	if s.webhooks == nil {
		return
	}
	builder := webhook.NewEventBuilder(r).
		ForRuleSet(key, s.env).
		WithStates(before, after)
	if before != nil && after != nil {
		builder = builder.WithChanges(audit.ComputeChanges(before, after))
	}
	s.webhooks.Dispatch(builder.Build())
}
