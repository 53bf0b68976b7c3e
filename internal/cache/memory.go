package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// defaultSweepEvery: opportunistic eviction sweep cadence, counted in writes.
const defaultSweepEvery = 100

type entry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
	domain    Domain
}

// Memory is the in-process Store. Eviction is lazy (checked on read) plus a
// sweep every N writes; no background timer.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]entry
	baseTTL    time.Duration
	sweepEvery int
	writes     int
	clock      Clock

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewMemory(baseTTL time.Duration, clock Clock) *Memory {
	if clock == nil {
		clock = systemClock{}
	}
	return &Memory{
		entries:    make(map[string]entry),
		baseTTL:    baseTTL,
		sweepEvery: defaultSweepEvery,
		clock:      clock,
	}
}

func (m *Memory) Get(_ context.Context, domain Domain, key string) ([]byte, bool) {
	k := string(domain) + ":" + key
	m.mu.Lock()
	e, ok := m.entries[k]
	if ok && m.clock.Now().After(e.expiresAt) {
		delete(m.entries, k)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return e.value, true
}

func (m *Memory) Set(_ context.Context, domain Domain, key string, value []byte) {
	now := m.clock.Now()
	k := string(domain) + ":" + key
	m.mu.Lock()
	m.entries[k] = entry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttlFor(domain, m.baseTTL)),
		domain:    domain,
	}
	m.writes++
	if m.writes%m.sweepEvery == 0 {
		m.sweepLocked(now)
	}
	m.mu.Unlock()
}

func (m *Memory) sweepLocked(now time.Time) {
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

func (m *Memory) Stats() Stats {
	m.mu.Lock()
	n := len(m.entries)
	m.mu.Unlock()
	return Stats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Entries: n,
	}
}
