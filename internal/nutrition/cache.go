package nutrition

import (
	"context"
	"log"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/suPer8Hu/macrolog/internal/store/redisstore"
)

// HotCache sits in front of the food_cache table. Failures are misses.
type HotCache interface {
	Get(ctx context.Context, key string) (Facts, bool)
	Set(ctx context.Context, key string, f Facts)
}

// MemoryCache is the in-process hot cache used when Redis is not configured.
type MemoryCache struct {
	c *cache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: cache.New(ttl, 10*time.Minute)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (Facts, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return Facts{}, false
	}
	f, ok := v.(Facts)
	return f, ok
}

func (m *MemoryCache) Set(_ context.Context, key string, f Facts) {
	m.c.Set(key, f, cache.DefaultExpiration)
}

// JSONStore is the part of redisstore.Store the hot cache uses.
type JSONStore interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

var _ JSONStore = (*redisstore.Store)(nil)

// RedisCache shares the hot cache between the server and the worker.
type RedisCache struct {
	rs  JSONStore
	ttl time.Duration
}

func NewRedisCache(rs JSONStore, ttl time.Duration) *RedisCache {
	return &RedisCache{rs: rs, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (Facts, bool) {
	var f Facts
	found, err := r.rs.GetJSON(ctx, "nutrition:"+key, &f)
	if err != nil {
		log.Printf("nutrition: redis get key=%q err=%v", key, err)
		return Facts{}, false
	}
	return f, found
}

func (r *RedisCache) Set(ctx context.Context, key string, f Facts) {
	if err := r.rs.SetJSON(ctx, "nutrition:"+key, f, r.ttl); err != nil {
		log.Printf("nutrition: redis set key=%q err=%v", key, err)
	}
}
