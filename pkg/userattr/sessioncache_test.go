package userattr

import (
	"context"
	"testing"
	"time"
)

func TestSessionCacheSetGet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := NewSessionCache(ctx, NewMemoryCacheDriver())
	defer cache.Close()

	attrs := &UserAttributes{Resolved: map[string]any{"office": "NYC"}}
	if err := cache.Set(ctx, "sess1", attrs); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := cache.Get(ctx, "sess1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Resolved["office"] != "NYC" {
		t.Errorf("Resolved[office] = %v, want NYC", got.Resolved["office"])
	}
}

func TestSessionCacheInvalidate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := NewSessionCache(ctx, NewMemoryCacheDriver())
	defer cache.Close()

	_ = cache.Set(ctx, "sess1", &UserAttributes{})
	if err := cache.Invalidate(ctx, "sess1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := cache.Get(ctx, "sess1"); err != ErrAttributesNotFound {
		t.Errorf("Get after Invalidate = %v, want ErrAttributesNotFound", err)
	}
}

func TestSessionCacheInvalidateAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := NewSessionCache(ctx, NewMemoryCacheDriver())
	defer cache.Close()

	_ = cache.Set(ctx, "sess1", &UserAttributes{})
	_ = cache.Set(ctx, "sess2", &UserAttributes{})
	if err := cache.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if _, err := cache.Get(ctx, "sess1"); err != ErrAttributesNotFound {
		t.Error("sess1 should be gone after InvalidateAll")
	}
	if _, err := cache.Get(ctx, "sess2"); err != ErrAttributesNotFound {
		t.Error("sess2 should be gone after InvalidateAll")
	}
}

func TestSessionCacheGCEvictsExpired(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := NewSessionCache(ctx, NewMemoryCacheDriver())
	defer cache.Close()

	oldMax := CacheMaxAge
	CacheMaxAge = time.Millisecond
	defer func() { CacheMaxAge = oldMax }()

	_ = cache.Set(ctx, "sess1", &UserAttributes{})
	time.Sleep(5 * time.Millisecond)

	if err := cache.GC(); err != nil {
		t.Fatalf("GC: %v", err)
	}
	if _, err := cache.Get(ctx, "sess1"); err != ErrAttributesNotFound {
		t.Error("expired session should have been GC'd")
	}
}

func TestUserAttributesStableJSON(t *testing.T) {
	a := &UserAttributes{Resolved: map[string]any{"k": "v"}}
	s1, err := a.StableJSON()
	if err != nil {
		t.Fatalf("StableJSON: %v", err)
	}
	s2, _ := a.StableJSON()
	if s1 != s2 {
		t.Error("StableJSON should be deterministic across calls")
	}
}
