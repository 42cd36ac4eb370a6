package checkpoint

import (
	"context"
	"fmt"

	"github.com/dnw3/synaptic-sub002/pkg/graph/config"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// DefaultSQLitePath is used when a sqlite section has no path.
const DefaultSQLitePath = "checkpoints.db"

// Open builds a Store from a config section such as:
//
//	backend: redis
//	url: ${REDIS_URL}
//	prefix: "agent:"
//	ttl: 24h
//
// backend defaults to memory. sqlite reads path; redis reads url (required),
// prefix and ttl.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch backend := cfg.String("backend", BackendMemory); backend {
	case BackendMemory:
		return NewMemoryStore(), nil

	case BackendSQLite:
		return NewSQLiteStore(cfg.String("path", DefaultSQLitePath))

	case BackendRedis:
		url := cfg.String("url", "")
		if url == "" {
			return nil, fmt.Errorf("checkpoint: redis backend requires url")
		}
		return DialRedis(ctx, url,
			WithKeyPrefix(cfg.String("prefix", DefaultRedisPrefix)),
			WithTTL(cfg.Duration("ttl", 0)),
		)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
