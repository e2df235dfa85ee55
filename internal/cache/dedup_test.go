package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryMarkOnce(t *testing.T) {
	c := NewMemoryDedupCache()
	ctx := context.Background()

	first, err := c.MarkOnce(ctx, "notify:abc", time.Minute)
	if err != nil {
		t.Fatalf("MarkOnce error = %v", err)
	}
	if !first {
		t.Error("first MarkOnce should win")
	}

	second, err := c.MarkOnce(ctx, "notify:abc", time.Minute)
	if err != nil {
		t.Fatalf("MarkOnce error = %v", err)
	}
	if second {
		t.Error("second MarkOnce within TTL should lose")
	}

	other, _ := c.MarkOnce(ctx, "notify:def", time.Minute)
	if !other {
		t.Error("different key should win")
	}
}

func TestMemoryMarkOnceExpiry(t *testing.T) {
	c := NewMemoryDedupCache()
	ctx := context.Background()

	if won, _ := c.MarkOnce(ctx, "k", time.Millisecond); !won {
		t.Fatal("first MarkOnce should win")
	}
	time.Sleep(5 * time.Millisecond)
	if won, _ := c.MarkOnce(ctx, "k", time.Minute); !won {
		t.Error("MarkOnce after expiry should win again")
	}
}

func TestMemoryClear(t *testing.T) {
	c := NewMemoryDedupCache()
	ctx := context.Background()

	c.MarkOnce(ctx, "k", time.Minute)
	if err := c.Clear(ctx, "k"); err != nil {
		t.Fatalf("Clear error = %v", err)
	}
	if won, _ := c.MarkOnce(ctx, "k", time.Minute); !won {
		t.Error("MarkOnce after Clear should win")
	}
}
