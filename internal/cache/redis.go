package cache

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the distributed Store backend. TTL and eviction are native to
// redis, so only hit/miss accounting lives here; counters are per-process.
type Redis struct {
	client  *redis.Client
	baseTTL time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewRedis(client *redis.Client, baseTTL time.Duration) *Redis {
	return &Redis{client: client, baseTTL: baseTTL}
}

func (r *Redis) key(domain Domain, key string) string {
	return "cache:" + string(domain) + ":" + key
}

func (r *Redis) Get(ctx context.Context, domain Domain, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.key(domain, key)).Bytes()
	if err == redis.Nil {
		r.misses.Add(1)
		return nil, false
	}
	if err != nil {
		// A cache backend fault is never fatal; treat as a miss.
		log.Printf("[CACHE] redis get failed domain=%s: %v", domain, err)
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return val, true
}

func (r *Redis) Set(ctx context.Context, domain Domain, key string, value []byte) {
	if err := r.client.Set(ctx, r.key(domain, key), value, ttlFor(domain, r.baseTTL)).Err(); err != nil {
		log.Printf("[CACHE] redis set failed domain=%s: %v", domain, err)
	}
}

func (r *Redis) Stats() Stats {
	return Stats{
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
	}
}
