package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore keeps rule sets in a JetStream key-value bucket so multiple
// condgate instances share one source of truth without a SQL database.
// Entries are keyed "<env>.<key>" and hold the JSON-encoded RuleSet.
type NATSStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NewNATSStore connects to the NATS server at url and opens (or creates)
// the named key-value bucket.
func NewNATSStore(ctx context.Context, url, bucket string) (*NATSStore, error) {
	nc, err := nats.Connect(url,
		nats.Name("condgate"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "condgate rule sets",
			History:     5,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open bucket %q: %w", bucket, err)
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

// entryKey builds the bucket key for a rule set. Keys and environments are
// validated upstream to [a-zA-Z0-9_-], so the dot separator is unambiguous.
func entryKey(key, env string) string {
	return env + "." + key
}

// ListRuleSets retrieves all rule sets for the given environment from the bucket.
func (n *NATSStore) ListRuleSets(ctx context.Context, env string) ([]RuleSet, error) {
	lister, err := n.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bucket keys: %w", err)
	}
	defer lister.Stop()

	prefix := env + "."
	result := make([]RuleSet, 0)
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := n.kv.Get(ctx, key)
		if err != nil {
			// Deleted between listing and fetch.
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("get %q: %w", key, err)
		}
		var rs RuleSet
		if err := json.Unmarshal(entry.Value(), &rs); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		result = append(result, rs)
	}
	return result, nil
}

// GetRuleSet retrieves a single rule set by key and environment from the bucket.
func (n *NATSStore) GetRuleSet(ctx context.Context, key, env string) (*RuleSet, error) {
	entry, err := n.kv.Get(ctx, entryKey(key, env))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ruleset %q: %w", key, err)
	}

	var rs RuleSet
	if err := json.Unmarshal(entry.Value(), &rs); err != nil {
		return nil, fmt.Errorf("decode ruleset %q: %w", key, err)
	}
	return &rs, nil
}

// UpsertRuleSet creates or updates a rule set in the bucket.
func (n *NATSStore) UpsertRuleSet(ctx context.Context, params UpsertParams) error {
	rs := RuleSet{
		Key:         params.Key,
		Description: params.Description,
		Enabled:     params.Enabled,
		Sample:      params.Sample,
		Rule:        params.Rule,
		Env:         params.Env,
		UpdatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("encode ruleset %q: %w", params.Key, err)
	}
	if _, err := n.kv.Put(ctx, entryKey(params.Key, params.Env), data); err != nil {
		return fmt.Errorf("put ruleset %q: %w", params.Key, err)
	}
	return nil
}

// DeleteRuleSet removes a rule set from the bucket.
func (n *NATSStore) DeleteRuleSet(ctx context.Context, key, env string) error {
	k := entryKey(key, env)
	if _, err := n.kv.Get(ctx, k); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get ruleset %q: %w", key, err)
	}
	if err := n.kv.Delete(ctx, k); err != nil {
		return fmt.Errorf("delete ruleset %q: %w", key, err)
	}
	return nil
}

// HealthCheck reports whether the NATS connection is up.
func (n *NATSStore) HealthCheck(ctx context.Context) error {
	if !n.nc.IsConnected() {
		return errors.New("nats connection lost")
	}
	return nil
}

// Close closes the NATS connection.
func (n *NATSStore) Close() error {
	n.nc.Close()
	return nil
}

// Watch invokes onChange for every put or delete observed on the bucket,
// from any instance. The initial replay is skipped; only live updates fire.
func (n *NATSStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := n.kv.WatchAll(ctx, jetstream.UpdatesOnly())
	if err != nil {
		return fmt.Errorf("watch bucket: %w", err)
	}

	go func() {
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				onChange()
			}
		}
	}()
	return nil
}
