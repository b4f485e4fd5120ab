package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/qorebase/tiercache/logger"
	"github.com/qorebase/tiercache/types"
)

// stubStore is a scriptable primary tier for exercising the engine's
// fail-open behavior without a live Redis.
type stubStore struct {
	data    map[string][]byte
	failing bool
}

var errStoreDown = errors.New("store down")

func newStubStore() *stubStore {
	return &stubStore{data: make(map[string][]byte)}
}

func (s *stubStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.failing {
		return nil, errStoreDown
	}
	value, exists := s.data[key]
	if !exists {
		return nil, types.ErrCacheMiss
	}
	return value, nil
}

func (s *stubStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if s.failing {
		return errStoreDown
	}
	s.data[key] = value
	return nil
}

func (s *stubStore) Delete(_ context.Context, key string) error {
	if s.failing {
		return errStoreDown
	}
	delete(s.data, key)
	return nil
}

func (s *stubStore) DeletePattern(_ context.Context, pattern string) (int, error) {
	if s.failing {
		return 0, errStoreDown
	}
	removed := 0
	for key := range s.data {
		if MatchPattern(pattern, key) {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}

func (s *stubStore) Flush(_ context.Context) error {
	if s.failing {
		return errStoreDown
	}
	s.data = make(map[string][]byte)
	return nil
}

func (s *stubStore) Ping(_ context.Context) error {
	if s.failing {
		return errStoreDown
	}
	return nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	engine, err := NewEngine(context.Background(), logger.NewZapWrapper(zap.NewNop()), nil, nil, &types.CacheConfig{
		Enabled:  true,
		Primary:  &types.PrimaryStoreConfig{Enabled: false},
		Fallback: &types.FallbackStoreConfig{MaxEntries: 100},
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestEngineFallbackOnlyRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.Set(ctx, "key", []byte("value"), time.Minute)

	value, found := engine.Get(ctx, "key")
	if !found {
		t.Fatal("expected hit")
	}
	if string(value) != "value" {
		t.Fatalf("Get returned %q, want %q", value, "value")
	}

	stats := engine.Stats()
	if stats.Hits != 1 {
		t.Fatalf("hits = %d, want 1", stats.Hits)
	}
}

func TestEngineMissCounted(t *testing.T) {
	engine := newTestEngine(t)

	if _, found := engine.Get(context.Background(), "absent"); found {
		t.Fatal("expected miss")
	}
	if stats := engine.Stats(); stats.Misses != 1 {
		t.Fatalf("misses = %d, want 1", stats.Misses)
	}
}

func TestEnginePrimaryMissIsAuthoritative(t *testing.T) {
	engine := newTestEngine(t)
	primary := newStubStore()
	engine.primary = primary
	ctx := context.Background()

	// the fallback holds the key but the healthy primary says miss
	if err := engine.fallback.Set(ctx, "key", []byte("stale"), time.Minute); err != nil {
		t.Fatalf("fallback Set failed: %v", err)
	}

	if _, found := engine.Get(ctx, "key"); found {
		t.Fatal("primary miss must not fall through to the fallback")
	}
}

func TestEngineFailsOpenToFallback(t *testing.T) {
	engine := newTestEngine(t)
	primary := newStubStore()
	engine.primary = primary
	ctx := context.Background()

	engine.Set(ctx, "key", []byte("value"), time.Minute)

	primary.failing = true

	value, found := engine.Get(ctx, "key")
	if !found {
		t.Fatal("primary outage must degrade to the fallback tier, not to a miss")
	}
	if string(value) != "value" {
		t.Fatalf("Get returned %q, want %q", value, "value")
	}

	stats := engine.Stats()
	if stats.Errors == 0 {
		t.Fatal("primary failure not counted")
	}
	if stats.Hits != 1 {
		t.Fatalf("hits = %d, want 1", stats.Hits)
	}
}

func TestEngineSetWritesBothTiers(t *testing.T) {
	engine := newTestEngine(t)
	primary := newStubStore()
	engine.primary = primary
	ctx := context.Background()

	engine.Set(ctx, "key", []byte("value"), time.Minute)

	if _, exists := primary.data["key"]; !exists {
		t.Fatal("primary tier not written")
	}
	if _, err := engine.fallback.Get(ctx, "key"); err != nil {
		t.Fatalf("fallback tier not written: %v", err)
	}
}

func TestEngineSetSurvivesPrimaryFailure(t *testing.T) {
	engine := newTestEngine(t)
	primary := newStubStore()
	primary.failing = true
	engine.primary = primary
	ctx := context.Background()

	engine.Set(ctx, "key", []byte("value"), time.Minute)

	if _, err := engine.fallback.Get(ctx, "key"); err != nil {
		t.Fatalf("fallback write skipped on primary failure: %v", err)
	}
	if stats := engine.Stats(); stats.Errors == 0 {
		t.Fatal("primary set failure not counted")
	}
}

func TestEngineDeletePatternPurgesBothTiers(t *testing.T) {
	engine := newTestEngine(t)
	primary := newStubStore()
	engine.primary = primary
	ctx := context.Background()

	engine.Set(ctx, "app:GET:/bookings:t/acme:-", []byte("v"), time.Minute)
	engine.Set(ctx, "app:GET:/bookings:t/acme:page=2", []byte("v"), time.Minute)
	engine.Set(ctx, "app:GET:/bookings:t/globex:-", []byte("v"), time.Minute)

	engine.DeletePattern(ctx, "app:GET:/bookings:t/acme:*")

	if len(primary.data) != 1 {
		t.Fatalf("primary holds %d entries, want 1", len(primary.data))
	}
	if engine.fallback.Len() != 1 {
		t.Fatalf("fallback holds %d entries, want 1", engine.fallback.Len())
	}
	if _, found := engine.Get(ctx, "app:GET:/bookings:t/globex:-"); !found {
		t.Fatal("other tenant's entry purged")
	}
}

func TestEngineFlush(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.Set(ctx, "a", []byte("v"), time.Minute)
	engine.Set(ctx, "b", []byte("v"), time.Minute)
	engine.Flush(ctx)

	if engine.fallback.Len() != 0 {
		t.Fatalf("fallback holds %d entries after flush", engine.fallback.Len())
	}
}

func TestEngineIgnoresInvalidWrites(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.Set(ctx, "", []byte("v"), time.Minute)
	engine.Set(ctx, "key", nil, time.Minute)
	engine.Set(ctx, "key", []byte("v"), 0)

	if engine.fallback.Len() != 0 {
		t.Fatalf("invalid writes landed in the store, len=%d", engine.fallback.Len())
	}
}

func TestEngineLifecycle(t *testing.T) {
	engine := newTestEngine(t)

	if err := engine.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !engine.IsRunning() {
		t.Fatal("engine not running after Start")
	}
	if err := engine.Start(); err == nil {
		t.Fatal("double Start accepted")
	}
	if err := engine.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if engine.IsRunning() {
		t.Fatal("engine still running after Stop")
	}
	if err := engine.Stop(); err == nil {
		t.Fatal("double Stop accepted")
	}
}

func TestEngineResetStats(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	engine.Set(ctx, "key", []byte("v"), time.Minute)
	engine.Get(ctx, "key")
	engine.Get(ctx, "absent")
	engine.RecordInvalidation()

	stats := engine.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Invalidations != 1 {
		t.Fatalf("unexpected snapshot %+v", stats)
	}

	engine.ResetStats()
	if stats := engine.Stats(); stats != (types.CacheStatSnapshot{}) {
		t.Fatalf("stats not reset: %+v", stats)
	}
}
