package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/condgate/condgate/internal/db"
)

// Options selects and configures a storage backend.
type Options struct {
	Backend    string // "memory", "postgres", "file", or "nats"
	DSN        string // postgres connection string
	RuleFile   string // path to the YAML rule file
	NATSURL    string
	NATSBucket string
	Logger     zerolog.Logger
}

// NewStore creates a store for the configured backend.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		pool, err := db.NewPool(ctx, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("create postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		s := NewPostgresStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	case "file":
		return NewFileStore(opts.RuleFile, opts.Logger)
	case "nats":
		return NewNATSStore(ctx, opts.NATSURL, opts.NATSBucket)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", opts.Backend)
	}
}
