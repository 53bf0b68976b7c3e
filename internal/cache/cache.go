// Package cache is the keyed, TTL-based result store sitting in front of
// the AI calls. Three domains keep vision, retrieval and full-assessment
// results isolated from each other; caching is a pure optimization and
// disabling it must not change any observable response field except
// performance.cached.
package cache

import (
	"context"
	"time"
)

// Domain scopes keys so a write in one domain is never observable in another.
type Domain string

const (
	DomainVision     Domain = "vision"
	DomainRAG        Domain = "rag"
	DomainAssessment Domain = "assessment"
)

// ragTTLMultiplier: knowledge-base content changes far less often than a
// given photo's uniqueness, so retrieval entries live longer.
const ragTTLMultiplier = 2

// Stats are diagnostic counters; they never gate correctness.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Total returns the number of lookups observed.
func (s Stats) Total() uint64 { return s.Hits + s.Misses }

// HitRate returns hits over total lookups, 0 when nothing was looked up.
func (s Stats) HitRate() float64 {
	t := s.Total()
	if t == 0 {
		return 0
	}
	return float64(s.Hits) / float64(t)
}

// Store is the cache port. Values are opaque payloads (JSON bytes); entries
// are owned by the store and only ever replaced wholesale on a fresh write.
type Store interface {
	Get(ctx context.Context, domain Domain, key string) ([]byte, bool)
	Set(ctx context.Context, domain Domain, key string, value []byte)
	Stats() Stats
}

// Clock abstraction so expiry is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ttlFor resolves the per-domain TTL from the configured base.
func ttlFor(domain Domain, base time.Duration) time.Duration {
	if domain == DomainRAG {
		return base * ragTTLMultiplier
	}
	return base
}

// Disabled is a store that never hits; wired when caching is configured off.
type Disabled struct{}

func (Disabled) Get(context.Context, Domain, string) ([]byte, bool) { return nil, false }
func (Disabled) Set(context.Context, Domain, string, []byte)        {}
func (Disabled) Stats() Stats                                       { return Stats{} }
