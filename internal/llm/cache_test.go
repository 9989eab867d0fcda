package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newLocalCache(t *testing.T, maxLocal int) *Cache {
	t.Helper()
	c := NewCache(context.Background(), CacheOptions{MaxLocal: maxLocal})
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := newLocalCache(t, 8)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Set(ctx, "k", "v")
	got, ok := c.Get(ctx, "k")
	if !ok || got != "v" {
		t.Fatalf("Get = %q, %v; want v, true", got, ok)
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	ctx := context.Background()
	c := newLocalCache(t, 2)

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	c.Set(ctx, "c", "3")

	if c.Size() != 2 {
		t.Fatalf("Size = %d, want 2", c.Size())
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Error("newest entry missing")
	}
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := newLocalCache(t, 8)

	c.Set(ctx, "k", "v")
	c.mu.Lock()
	c.local["k"].expiresAt = time.Now().Add(-time.Second)
	c.mu.Unlock()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expired entry should miss")
	}
}

func TestCachedClientHitSkipsProvider(t *testing.T) {
	ctx := context.Background()
	script := NewScript("first answer")
	client := WithCache(script, newLocalCache(t, 8))

	got, err := client.CompleteWithSystem(ctx, "sys", "question")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if got != "first answer" {
		t.Fatalf("got %q", got)
	}

	// Script has one reply; a second provider call would error.
	got, err = client.CompleteWithSystem(ctx, "sys", "question")
	if err != nil {
		t.Fatalf("second call should hit cache: %v", err)
	}
	if got != "first answer" {
		t.Errorf("cached = %q, want first answer", got)
	}
	if n := len(script.Calls()); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
}

func TestCachedClientDistinctPrompts(t *testing.T) {
	ctx := context.Background()
	script := NewScript("one", "two")
	client := WithCache(script, newLocalCache(t, 8))

	a, _ := client.Complete(ctx, "first")
	b, _ := client.Complete(ctx, "second")
	if a == b {
		t.Errorf("distinct prompts must not collide: %q vs %q", a, b)
	}
}

func TestCachedClientErrorNotCached(t *testing.T) {
	ctx := context.Background()
	script := NewScript()
	script.Fail(errors.New("provider down"))
	cache := newLocalCache(t, 8)
	client := WithCache(script, cache)

	if _, err := client.Complete(ctx, "q"); err == nil {
		t.Fatal("expected provider error")
	}
	if cache.Size() != 0 {
		t.Error("failed completion must not be cached")
	}
}

func TestWithCacheNil(t *testing.T) {
	script := NewScript("x")
	if got := WithCache(script, nil); got != Client(script) {
		t.Error("nil cache should return inner client unchanged")
	}
}
