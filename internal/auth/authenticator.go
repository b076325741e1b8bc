package auth

import (
	"context"
	"sync"
	"time"

	"coldchain-monitor/pipeline/internal/config"
	"coldchain-monitor/pipeline/internal/store"
)

type cacheEntry struct {
	entityID  string
	expiresAt time.Time
}

// Authenticator validates gateway API keys: static config keys first,
// then a local TTL cache, then a Redis lookup that repopulates the cache.
type Authenticator struct {
	localCache sync.Map
	redis      *store.RedisStore
	ttl        time.Duration
	staticKeys map[string]bool
}

func NewAuthenticator(cfg *config.Config, redis *store.RedisStore) *Authenticator {
	staticKeys := make(map[string]bool, len(cfg.ValidAPIKeys))
	for _, k := range cfg.ValidAPIKeys {
		if k != "" {
			staticKeys[k] = true
		}
	}

	return &Authenticator{
		redis:      redis,
		ttl:        time.Duration(cfg.AuthCacheTTLSeconds) * time.Second,
		staticKeys: staticKeys,
	}
}

func (a *Authenticator) Validate(ctx context.Context, apiKey string) bool {
	if a.staticKeys[apiKey] {
		return true
	}

	if raw, ok := a.localCache.Load(apiKey); ok {
		entry := raw.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return true
		}
		a.localCache.Delete(apiKey)
	}

	entityID, err := a.redis.GetAPIKey(ctx, apiKey)
	if err != nil || entityID == "" {
		return false
	}

	a.localCache.Store(apiKey, cacheEntry{
		entityID:  entityID,
		expiresAt: time.Now().Add(a.ttl),
	})

	return true
}
