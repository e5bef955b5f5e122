package cartstore

import (
	"github.com/ariefcatur/go-cart-lifecycle/internal/config"
	"github.com/ariefcatur/go-cart-lifecycle/internal/redisx"
	"github.com/redis/go-redis/v9"
	"log"
	"time"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Options struct {
	// Backend forces "memory" or "redis". Empty defers to config.
	Backend string
	// TTL overrides CART_TTL_SECONDS and DefaultTTL.
	TTL time.Duration
	// RemoteClient is used instead of building one from config credentials.
	RemoteClient redis.Cmdable
}

// New picks exactly one backend and never fails: any missing prerequisite for
// redis degrades to memory. Order: opts.Backend, cfg.CartBackend, then redis
// when credentials are configured, else memory.
func New(opts Options, cfg config.Config) Store {
	ttl := ResolveTTL(opts.TTL, cfg.CartTTLSeconds)

	backend := opts.Backend
	if backend == "" {
		backend = cfg.CartBackend
	}
	if backend == "" {
		if opts.RemoteClient != nil || cfg.HasRedis() {
			backend = BackendRedis
		} else {
			backend = BackendMemory
		}
	}

	switch backend {
	case BackendRedis:
		if opts.RemoteClient != nil {
			return NewRedisStore(opts.RemoteClient, ttl, NewMemoryStore(ttl))
		}
		rdb := clientFromConfig(cfg)
		if rdb == nil {
			log.Printf("cartstore: redis backend requested without credentials, using memory")
			return NewMemoryStore(ttl)
		}
		s := NewRedisStore(rdb, ttl, NewMemoryStore(ttl))
		s.owned = rdb
		return s
	case BackendMemory:
		return NewMemoryStore(ttl)
	default:
		log.Printf("cartstore: unknown backend %q, using memory", backend)
		return NewMemoryStore(ttl)
	}
}

func clientFromConfig(cfg config.Config) *redis.Client {
	if cfg.RedisURL != "" {
		c, err := redisx.NewFromURL(cfg.RedisURL)
		if err == nil {
			return c
		}
		log.Printf("cartstore: invalid REDIS_URL: %v", err)
	}
	if cfg.RedisAddr != "" {
		return redisx.New(cfg.RedisAddr, cfg.RedisPassword)
	}
	return nil
}
