package auth

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Key is a stored API key. The plaintext is never persisted; Hash holds
// the bcrypt digest produced at generation time.
type Key struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Role       Role       `json:"role" yaml:"role"`
	Hash       string     `json:"hash" yaml:"hash"`
	Enabled    bool       `json:"enabled" yaml:"enabled"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty" yaml:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty" yaml:"last_used_at,omitempty"`
}

// KeyStore defines the interface for API key lookup during authentication.
type KeyStore interface {
	// ListKeys returns all stored keys, enabled or not.
	ListKeys(ctx context.Context) ([]Key, error)
	// TouchKey records that the key with the given ID was just used.
	TouchKey(ctx context.Context, id string) error
}

// MemoryKeyStore is an in-memory KeyStore. The server loads it from the
// API_KEYS_FILE at startup; tests construct it directly.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]Key
}

// NewMemoryKeyStore creates an empty in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]Key)}
}

// Add stores a key, assigning a random ID if none is set. It returns the
// ID under which the key was stored.
func (s *MemoryKeyStore) Add(key Key) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	s.keys[key.ID] = key
	return key.ID
}

// ListKeys returns all keys sorted by name.
func (s *MemoryKeyStore) ListKeys(ctx context.Context) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Key, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// TouchKey sets the key's last-used timestamp to now.
func (s *MemoryKeyStore) TouchKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok {
		return fmt.Errorf("api key %s not found", id)
	}
	now := time.Now().UTC()
	k.LastUsedAt = &now
	s.keys[id] = k
	return nil
}

// keyFileEntry mirrors Key for YAML loading. Enabled is a pointer so an
// omitted field defaults to true instead of the zero value.
type keyFileEntry struct {
	ID        string     `yaml:"id"`
	Name      string     `yaml:"name"`
	Role      string     `yaml:"role"`
	Hash      string     `yaml:"hash"`
	Enabled   *bool      `yaml:"enabled"`
	ExpiresAt *time.Time `yaml:"expires_at"`
}

type keyFileDocument struct {
	Keys []keyFileEntry `yaml:"keys"`
}

// LoadKeysFile reads a YAML key file into a MemoryKeyStore. Entries
// produced by `condgate keygen` can be pasted in under the `keys:` list.
func LoadKeysFile(path string) (*MemoryKeyStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var doc keyFileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse key file %s: %w", path, err)
	}

	store := NewMemoryKeyStore()
	for i, entry := range doc.Keys {
		if entry.Hash == "" {
			return nil, fmt.Errorf("key file %s: entry %d is missing a hash", path, i)
		}
		if !ValidateRole(entry.Role) {
			return nil, fmt.Errorf("key file %s: entry %d has invalid role %q", path, i, entry.Role)
		}
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		store.Add(Key{
			ID:        entry.ID,
			Name:      entry.Name,
			Role:      Role(entry.Role),
			Hash:      entry.Hash,
			Enabled:   enabled,
			ExpiresAt: entry.ExpiresAt,
		})
	}
	return store, nil
}
