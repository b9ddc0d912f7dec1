package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk YAML shape: a single document with a
// top-level rulesets sequence.
type fileDocument struct {
	RuleSets []fileRuleSet `yaml:"rulesets"`
}

type fileRuleSet struct {
	Key         string         `yaml:"key"`
	Env         string         `yaml:"env"`
	Description string         `yaml:"description"`
	Enabled     bool           `yaml:"enabled"`
	Sample      *int32         `yaml:"sample"`
	Rule        map[string]any `yaml:"rule"`
}

// FileStore serves rule sets from a YAML file on disk. It is read-only:
// mutations must happen by editing the file, which Watch picks up via
// fsnotify. Suitable for GitOps-style deployments where rule sets are
// versioned alongside configuration.
type FileStore struct {
	path   string
	logger zerolog.Logger

	mu       sync.RWMutex
	rulesets map[memoryKey]RuleSet
	loadedAt time.Time
}

// NewFileStore loads the YAML file at path and returns a store backed by it.
func NewFileStore(path string, logger zerolog.Logger) (*FileStore, error) {
	f := &FileStore{
		path:     path,
		logger:   logger,
		rulesets: make(map[memoryKey]RuleSet),
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// load re-reads the file and swaps the in-memory view. On parse errors
// the previous view is kept.
func (f *FileStore) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read rule file: %w", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse rule file %s: %w", f.path, err)
	}

	now := time.Now().UTC()
	if info, err := os.Stat(f.path); err == nil {
		now = info.ModTime().UTC()
	}

	next := make(map[memoryKey]RuleSet, len(doc.RuleSets))
	for i, entry := range doc.RuleSets {
		if entry.Key == "" {
			return fmt.Errorf("parse rule file %s: rulesets[%d] missing key", f.path, i)
		}
		env := entry.Env
		if env == "" {
			env = "prod"
		}
		sample := int32(100)
		if entry.Sample != nil {
			sample = *entry.Sample
		}
		rs := RuleSet{
			Key:         entry.Key,
			Description: entry.Description,
			Enabled:     entry.Enabled,
			Sample:      sample,
			Env:         env,
			UpdatedAt:   now,
		}
		if entry.Rule != nil {
			rule, err := json.Marshal(entry.Rule)
			if err != nil {
				return fmt.Errorf("parse rule file %s: rulesets[%d] rule: %w", f.path, i, err)
			}
			rs.Rule = rule
		}
		next[memoryKey{key: rs.Key, env: rs.Env}] = rs
	}

	f.mu.Lock()
	f.rulesets = next
	f.loadedAt = now
	f.mu.Unlock()
	return nil
}

// ListRuleSets retrieves all rule sets for the given environment from the
// last successfully loaded file contents.
func (f *FileStore) ListRuleSets(ctx context.Context, env string) ([]RuleSet, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]RuleSet, 0, len(f.rulesets))
	for k, rs := range f.rulesets {
		if k.env == env {
			result = append(result, rs)
		}
	}
	return result, nil
}

// GetRuleSet retrieves a single rule set by key and environment.
func (f *FileStore) GetRuleSet(ctx context.Context, key, env string) (*RuleSet, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	rs, exists := f.rulesets[memoryKey{key: key, env: env}]
	if !exists {
		return nil, ErrNotFound
	}
	return &rs, nil
}

// UpsertRuleSet is rejected: the file store only changes when the file does.
func (f *FileStore) UpsertRuleSet(ctx context.Context, params UpsertParams) error {
	return ErrReadOnly
}

// DeleteRuleSet is rejected: the file store only changes when the file does.
func (f *FileStore) DeleteRuleSet(ctx context.Context, key, env string) error {
	return ErrReadOnly
}

// HealthCheck verifies the backing file is still readable.
func (f *FileStore) HealthCheck(ctx context.Context) error {
	_, err := os.Stat(f.path)
	return err
}

// Close is a no-op; the watcher goroutine exits with its context.
func (f *FileStore) Close() error {
	return nil
}

// Watch reloads the file and invokes onChange whenever it is rewritten.
// The parent directory is watched rather than the file itself so that
// editors and config tools that replace the file via rename are seen.
func (f *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(f.path) {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
					continue
				}
				if err := f.load(); err != nil {
					f.logger.Error().Err(err).Str("path", f.path).Msg("rule file reload failed; keeping previous rule sets")
					continue
				}
				f.logger.Info().Str("path", f.path).Msg("rule file reloaded")
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Error().Err(err).Msg("rule file watcher error")
			}
		}
	}()
	return nil
}
