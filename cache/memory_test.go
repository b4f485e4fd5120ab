package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/qorebase/tiercache/types"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	if err := store.Set(ctx, "key", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "value" {
		t.Fatalf("Get returned %q, want %q", value, "value")
	}
}

func TestMemoryStoreMiss(t *testing.T) {
	store := NewMemoryStore(nil, nil)

	if _, err := store.Get(context.Background(), "absent"); !types.IsError(err, types.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryStoreSetValidation(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	if err := store.Set(ctx, "", []byte("v"), time.Minute); !types.IsError(err, types.ErrCacheKeyEmpty) {
		t.Fatalf("empty key: expected ErrCacheKeyEmpty, got %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatal("zero ttl accepted")
	}
	if err := store.Set(ctx, "k", []byte("v"), -time.Second); err == nil {
		t.Fatal("negative ttl accepted")
	}
}

func TestMemoryStoreReturnsCopy(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	original := []byte("value")
	if err := store.Set(ctx, "key", original, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	original[0] = 'X'
	first, _ := store.Get(ctx, "key")
	if string(first) != "value" {
		t.Fatalf("store shares memory with caller's slice: %q", first)
	}

	first[0] = 'Y'
	second, _ := store.Get(ctx, "key")
	if string(second) != "value" {
		t.Fatalf("Get result shares memory with stored entry: %q", second)
	}
}

func TestMemoryStoreBoundedEviction(t *testing.T) {
	store := NewMemoryStore(nil, &types.FallbackStoreConfig{MaxEntries: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("key-%d", i)
		if err := store.Set(ctx, key, []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set %s failed: %v", key, err)
		}
	}

	// one past capacity evicts the oldest-inserted entry only
	if err := store.Set(ctx, "key-3", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set key-3 failed: %v", err)
	}

	if store.Len() != 3 {
		t.Fatalf("store holds %d entries, want 3", store.Len())
	}
	if _, err := store.Get(ctx, "key-0"); !types.IsError(err, types.ErrCacheMiss) {
		t.Fatalf("oldest entry survived eviction: %v", err)
	}
	for _, key := range []string{"key-1", "key-2", "key-3"} {
		if _, err := store.Get(ctx, key); err != nil {
			t.Fatalf("entry %s unexpectedly evicted: %v", key, err)
		}
	}
}

func TestMemoryStoreOverwriteRefreshesOrder(t *testing.T) {
	store := NewMemoryStore(nil, &types.FallbackStoreConfig{MaxEntries: 2})
	ctx := context.Background()

	store.Set(ctx, "a", []byte("1"), time.Minute)
	store.Set(ctx, "b", []byte("1"), time.Minute)

	// overwriting "a" makes "b" the oldest
	store.Set(ctx, "a", []byte("2"), time.Minute)
	store.Set(ctx, "c", []byte("1"), time.Minute)

	if _, err := store.Get(ctx, "b"); !types.IsError(err, types.ErrCacheMiss) {
		t.Fatalf("expected b evicted, got %v", err)
	}
	value, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("overwritten entry evicted: %v", err)
	}
	if string(value) != "2" {
		t.Fatalf("overwrite kept stale value %q", value)
	}
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	store.Set(ctx, "short", []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, err := store.Get(ctx, "short"); !types.IsError(err, types.ErrCacheMiss) {
		t.Fatalf("expired entry still served: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expired entry not removed on read, len=%d", store.Len())
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	store.Set(ctx, "short-1", []byte("v"), 10*time.Millisecond)
	store.Set(ctx, "short-2", []byte("v"), 10*time.Millisecond)
	store.Set(ctx, "long", []byte("v"), time.Minute)
	time.Sleep(20 * time.Millisecond)

	if removed := store.Sweep(); removed != 2 {
		t.Fatalf("Sweep removed %d entries, want 2", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("store holds %d entries after sweep, want 1", store.Len())
	}
}

func TestMemoryStoreDeletePattern(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	store.Set(ctx, "app:GET:/bookings:t/acme:-", []byte("v"), time.Minute)
	store.Set(ctx, "app:GET:/bookings:t/acme:page=2", []byte("v"), time.Minute)
	store.Set(ctx, "app:GET:/bookings:t/globex:-", []byte("v"), time.Minute)

	removed, err := store.DeletePattern(ctx, "app:GET:/bookings:t/acme:*")
	if err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed %d entries, want 2", removed)
	}
	if _, err := store.Get(ctx, "app:GET:/bookings:t/globex:-"); err != nil {
		t.Fatalf("other tenant's entry purged: %v", err)
	}
}

func TestMemoryStoreDeletePatternEmpty(t *testing.T) {
	store := NewMemoryStore(nil, nil)

	if _, err := store.DeletePattern(context.Background(), ""); !types.IsError(err, types.ErrPatternEmpty) {
		t.Fatalf("expected ErrPatternEmpty, got %v", err)
	}
}

func TestMemoryStoreFlush(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	store.Set(ctx, "a", []byte("v"), time.Minute)
	store.Set(ctx, "b", []byte("v"), time.Minute)

	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("store holds %d entries after flush", store.Len())
	}

	// flushed store keeps working
	if err := store.Set(ctx, "c", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set after flush failed: %v", err)
	}
}
