package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	condgate "github.com/condgate/condgate"
	"github.com/condgate/condgate/internal/store"
	"github.com/condgate/condgate/internal/telemetry"
)

// Compiled pairs a stored rule set with its parsed condition tree.
// Node is nil when the rule set has no rule (match-all). Err is set when
// the stored tree failed to parse; such rule sets stay visible in the
// snapshot but evaluate to an error.
type Compiled struct {
	RuleSet store.RuleSet
	Node    condgate.Node
	Err     error
}

// Snapshot is an immutable point-in-time view of one environment's rule
// sets. Handlers read whichever snapshot was current when their request
// started; rebuilds swap the pointer, they never mutate.
type Snapshot struct {
	ETag      string                   `json:"etag"`
	RuleSets  map[string]store.RuleSet `json:"rulesets"`
	UpdatedAt time.Time                `json:"updatedAt"`

	compiled map[string]Compiled
}

// Compiled returns the parsed form of one rule set.
func (s *Snapshot) Compiled(key string) (Compiled, bool) {
	c, ok := s.compiled[key]
	return c, ok
}

// Manager owns the current snapshot for one environment and rebuilds it
// from the store on demand.
type Manager struct {
	store  store.Store
	env    string
	logger zerolog.Logger

	current atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs map[subCh]struct{}
}

// NewManager creates a manager bound to one store and environment.
// Call Rebuild to populate the first snapshot.
func NewManager(st store.Store, env string, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  st,
		env:    env,
		logger: logger,
		subs:   make(map[subCh]struct{}),
	}
}

// Load returns the current snapshot. Before the first rebuild it returns
// an empty snapshot rather than nil so handlers never need a nil check.
func (m *Manager) Load() *Snapshot {
	if s := m.current.Load(); s != nil {
		return s
	}
	return &Snapshot{
		RuleSets:  map[string]store.RuleSet{},
		UpdatedAt: time.Now().UTC(),
		compiled:  map[string]Compiled{},
	}
}

// Rebuild lists the store, compiles every rule tree, and atomically swaps
// in the new snapshot. Subscribers are notified with the new ETag.
func (m *Manager) Rebuild(ctx context.Context) error {
	rulesets, err := m.store.ListRuleSets(ctx, m.env)
	if err != nil {
		return fmt.Errorf("list rulesets: %w", err)
	}

	views := make(map[string]store.RuleSet, len(rulesets))
	compiled := make(map[string]Compiled, len(rulesets))
	for _, rs := range rulesets {
		views[rs.Key] = rs
		c := Compiled{RuleSet: rs}
		if len(rs.Rule) > 0 {
			node, err := condgate.FromJSON(rs.Rule)
			if err != nil {
				m.logger.Error().Err(err).Str("key", rs.Key).Msg("stored rule does not parse; evaluations will report an error")
				telemetry.RuleParseFailures.Inc()
				c.Err = err
			} else {
				c.Node = node
			}
		}
		compiled[rs.Key] = c
	}

	blob, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	sum := sha256.Sum256(blob)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`

	s := &Snapshot{
		ETag:      etag,
		RuleSets:  views,
		UpdatedAt: time.Now().UTC(),
		compiled:  compiled,
	}
	m.current.Store(s)
	telemetry.SnapshotRebuilds.Inc()
	telemetry.SnapshotRuleSets.Set(float64(len(views)))
	m.publishUpdate(s.ETag)
	return nil
}
