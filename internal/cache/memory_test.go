package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestMemory(t *testing.T, ttl time.Duration) (*Memory, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemory(ttl, clk), clk
}

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t, time.Minute)

	m.Set(ctx, DomainVision, "k1", []byte("v1"))
	got, ok := m.Get(ctx, DomainVision, "k1")
	if !ok || !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("expected hit with v1, got ok=%v val=%q", ok, got)
	}

	if _, ok := m.Get(ctx, DomainVision, "absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestMemory_DomainIsolation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t, time.Minute)

	// A RAG write must not be observable as a vision hit for the same key.
	m.Set(ctx, DomainRAG, "mold damage", []byte("rag-result"))
	if _, ok := m.Get(ctx, DomainVision, "mold damage"); ok {
		t.Error("rag write leaked into vision domain")
	}
	if _, ok := m.Get(ctx, DomainAssessment, "mold damage"); ok {
		t.Error("rag write leaked into assessment domain")
	}
	if _, ok := m.Get(ctx, DomainRAG, "mold damage"); !ok {
		t.Error("rag entry missing in its own domain")
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory(t, time.Minute)

	m.Set(ctx, DomainVision, "k", []byte("v"))
	m.Set(ctx, DomainRAG, "q", []byte("r"))

	// Past base TTL: vision expired, rag (2x TTL) still alive.
	clk.advance(90 * time.Second)
	if _, ok := m.Get(ctx, DomainVision, "k"); ok {
		t.Error("vision entry should be expired")
	}
	if _, ok := m.Get(ctx, DomainRAG, "q"); !ok {
		t.Error("rag entry should still be alive at 1.5x base TTL")
	}

	clk.advance(60 * time.Second)
	if _, ok := m.Get(ctx, DomainRAG, "q"); ok {
		t.Error("rag entry should be expired past 2x base TTL")
	}
}

func TestMemory_LazyEvictionRemovesEntry(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory(t, time.Minute)

	m.Set(ctx, DomainVision, "k", []byte("v"))
	clk.advance(2 * time.Minute)
	m.Get(ctx, DomainVision, "k")

	if n := m.Stats().Entries; n != 0 {
		t.Errorf("expired entry not evicted on read, entries=%d", n)
	}
}

func TestMemory_SweepOnWrites(t *testing.T) {
	ctx := context.Background()
	m, clk := newTestMemory(t, time.Minute)
	m.sweepEvery = 10

	for i := 0; i < 5; i++ {
		m.Set(ctx, DomainVision, string(rune('a'+i)), []byte("v"))
	}
	clk.advance(2 * time.Minute)

	// Writes 6..10 trigger the sweep on the 10th; stale entries go away
	// without any read touching them.
	for i := 5; i < 10; i++ {
		m.Set(ctx, DomainVision, string(rune('a'+i)), []byte("v"))
	}
	if n := m.Stats().Entries; n != 5 {
		t.Errorf("expected sweep to leave 5 fresh entries, got %d", n)
	}
}

func TestMemory_Stats(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(t, time.Minute)

	m.Set(ctx, DomainVision, "k", []byte("v"))
	m.Get(ctx, DomainVision, "k")
	m.Get(ctx, DomainVision, "k")
	m.Get(ctx, DomainVision, "nope")

	s := m.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("stats = %+v, want 2 hits / 1 miss", s)
	}
	if got := s.HitRate(); got < 0.66 || got > 0.67 {
		t.Errorf("hit rate = %f, want ~0.667", got)
	}
}

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	var d Disabled
	d.Set(ctx, DomainVision, "k", []byte("v"))
	if _, ok := d.Get(ctx, DomainVision, "k"); ok {
		t.Error("disabled store must never hit")
	}
}

func TestHashImage(t *testing.T) {
	a := bytes.Repeat([]byte{0xAA}, 1024)
	b := bytes.Repeat([]byte{0xAA}, 1024)
	if HashImage(a) != HashImage(b) {
		t.Error("identical buffers must hash identically")
	}

	c := bytes.Repeat([]byte{0xAA}, 1025)
	if HashImage(a) == HashImage(c) {
		t.Error("different lengths must hash differently")
	}

	d := append([]byte{0xBB}, bytes.Repeat([]byte{0xAA}, 1023)...)
	if HashImage(a) == HashImage(d) {
		t.Error("differing leading bytes must hash differently")
	}

	// Documented collision tradeoff: same size, same 16-byte edges,
	// different middle. The fingerprint does not distinguish these.
	e := bytes.Repeat([]byte{0xAA}, 1024)
	e[512] = 0xCC
	if HashImage(a) != HashImage(e) {
		t.Error("fingerprint is defined over length+edges only")
	}

	// Short buffers (under the edge window) still hash by full content.
	if HashImage([]byte{1, 2, 3}) == HashImage([]byte{1, 2, 4}) {
		t.Error("short buffers must hash by content")
	}
}

func TestHashQuery(t *testing.T) {
	if HashQuery("Mold Damage") != HashQuery("  mold damage  ") {
		t.Error("query hash must be case-folded and trimmed")
	}
	if HashQuery("mold damage") == HashQuery("fire damage") {
		t.Error("distinct queries must hash differently")
	}
}
