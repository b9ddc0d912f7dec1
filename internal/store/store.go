package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup or delete names a rule set that
// does not exist in the store.
var ErrNotFound = errors.New("ruleset not found")

// ErrReadOnly is returned by backends that cannot accept writes, such as
// the file-backed store.
var ErrReadOnly = errors.New("store is read-only")

// Store defines the interface for rule set persistence operations.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// ListRuleSets retrieves all rule sets for the given environment.
	// Returns an empty slice if none are found.
	ListRuleSets(ctx context.Context, env string) ([]RuleSet, error)

	// GetRuleSet retrieves a single rule set by key and environment.
	// Returns ErrNotFound if no such rule set exists.
	GetRuleSet(ctx context.Context, key, env string) (*RuleSet, error)

	// UpsertRuleSet creates or updates a rule set. If a rule set with the
	// same key and environment exists, it is replaced.
	UpsertRuleSet(ctx context.Context, params UpsertParams) error

	// DeleteRuleSet removes a rule set by key and environment.
	// Returns ErrNotFound if no such rule set exists.
	DeleteRuleSet(ctx context.Context, key, env string) error

	// HealthCheck reports whether the backing storage is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the store.
	// After Close is called, the store should not be used.
	Close() error
}

// Watcher is implemented by backends that can push change notifications.
// The snapshot layer uses it to rebuild without polling; backends that
// cannot watch simply don't implement it.
type Watcher interface {
	// Watch invokes onChange after every externally observed change until
	// ctx is cancelled. Notifications are best-effort and may coalesce.
	Watch(ctx context.Context, onChange func()) error
}

// RuleSet is a named, environment-scoped rule with delivery controls.
// Rule holds the serialized condition tree; a nil Rule means the rule set
// matches every subject (subject to Enabled and Sample).
type RuleSet struct {
	Key         string          `json:"key"`
	Description string          `json:"description"`
	Enabled     bool            `json:"enabled"`
	Sample      int32           `json:"sample"` // Percentage of matching subjects kept (0-100)
	Rule        json.RawMessage `json:"rule,omitempty"`
	Env         string          `json:"env"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// UpsertParams contains the parameters for upserting a rule set.
type UpsertParams struct {
	Key         string          `json:"key"`
	Description string          `json:"description"`
	Enabled     bool            `json:"enabled"`
	Sample      int32           `json:"sample"`
	Rule        json.RawMessage `json:"rule,omitempty"`
	Env         string          `json:"env"`
}
