package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent access.
// This implementation is suitable for development, testing, or single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	rulesets map[memoryKey]RuleSet
}

// memoryKey scopes a rule set to its environment, mirroring the
// composite primary key the Postgres backend uses.
type memoryKey struct {
	key string
	env string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rulesets: make(map[memoryKey]RuleSet),
	}
}

// ListRuleSets retrieves all rule sets for the given environment,
// sorted by key for stable output.
func (m *MemoryStore) ListRuleSets(ctx context.Context, env string) ([]RuleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]RuleSet, 0, len(m.rulesets))
	for k, rs := range m.rulesets {
		if k.env == env {
			result = append(result, rs)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// GetRuleSet retrieves a single rule set by key and environment.
func (m *MemoryStore) GetRuleSet(ctx context.Context, key, env string) (*RuleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rs, exists := m.rulesets[memoryKey{key: key, env: env}]
	if !exists {
		return nil, ErrNotFound
	}

	return &rs, nil
}

// UpsertRuleSet creates or updates a rule set in memory.
func (m *MemoryStore) UpsertRuleSet(ctx context.Context, params UpsertParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rulesets[memoryKey{key: params.Key, env: params.Env}] = RuleSet{
		Key:         params.Key,
		Description: params.Description,
		Enabled:     params.Enabled,
		Sample:      params.Sample,
		Rule:        params.Rule,
		Env:         params.Env,
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

// DeleteRuleSet removes a rule set from memory.
func (m *MemoryStore) DeleteRuleSet(ctx context.Context, key, env string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey{key: key, env: env}
	if _, exists := m.rulesets[k]; !exists {
		return ErrNotFound
	}
	delete(m.rulesets, k)
	return nil
}

// HealthCheck always succeeds for the in-memory store.
func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
