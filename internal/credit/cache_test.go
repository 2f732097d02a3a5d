package credit_test

import (
	"context"
	"testing"
	"time"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/credit"
)

func TestMemoryCache_HitWithinTTL(t *testing.T) {
	cache := credit.NewMemoryCache(30 * time.Second)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "alice"); ok {
		t.Fatal("empty cache should miss")
	}

	cache.Set(ctx, "alice", 5)
	balance, ok := cache.Get(ctx, "alice")
	if !ok || balance != 5 {
		t.Errorf("expected hit with 5, got %d (ok=%v)", balance, ok)
	}
}

func TestMemoryCache_ExpiresAfterTTL(t *testing.T) {
	cache := credit.NewMemoryCache(30 * time.Second)
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	cache.Set(ctx, "alice", 5)

	now = now.Add(29 * time.Second)
	if _, ok := cache.Get(ctx, "alice"); !ok {
		t.Error("entry should still be live just inside the TTL")
	}

	now = now.Add(2 * time.Second)
	if _, ok := cache.Get(ctx, "alice"); ok {
		t.Error("entry should be gone after the TTL")
	}
}

func TestMemoryCache_Invalidate(t *testing.T) {
	cache := credit.NewMemoryCache(30 * time.Second)
	ctx := context.Background()

	cache.Set(ctx, "alice", 5)
	cache.Invalidate(ctx, "alice")

	if _, ok := cache.Get(ctx, "alice"); ok {
		t.Error("invalidated entry should miss")
	}

	// Invalidating a missing entry is a no-op.
	cache.Invalidate(ctx, "nobody")
}
