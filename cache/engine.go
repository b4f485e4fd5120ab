package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/qorebase/tiercache/types"
)

const defaultOperationTimeout = 2 * time.Second

// Engine is the dual-tier cache. The primary tier (Redis) is authoritative:
// a miss there is a miss, the fallback is consulted only when the primary
// itself fails or is not configured. Writes land in the fallback
// unconditionally so a primary outage degrades to in-process caching
// instead of no caching at all.
//
// Every operation is total. Store failures are counted, logged and
// swallowed; callers never see them.
type Engine struct {
	ctx       context.Context
	logger    types.Logger
	metrics   types.MetricsManager
	primary   types.CacheStore
	fallback  *MemoryStore
	stats     *Statistics
	opTimeout time.Duration
	running   int32
}

func NewEngine(ctx context.Context, logger types.Logger, metrics types.MetricsManager, health types.HealthManager, config *types.CacheConfig) (*Engine, error) {
	fallback := NewMemoryStore(logger, config.Fallback)

	var primary types.CacheStore
	if config.Primary != nil && config.Primary.Enabled {
		store, err := NewRedisStore(config.Primary)
		if err != nil {
			return nil, types.WrapError(err, "failed to create primary cache store")
		}
		primary = store
	}

	opTimeout := config.OperationTimeout.Std()
	if opTimeout <= 0 {
		opTimeout = defaultOperationTimeout
	}

	engine := &Engine{
		ctx:       ctx,
		logger:    logger,
		metrics:   metrics,
		primary:   primary,
		fallback:  fallback,
		stats:     NewStatistics(),
		opTimeout: opTimeout,
	}

	if health != nil {
		engine.registerHealthCheckers(health)
	}

	return engine, nil
}

func (e *Engine) Start() error {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	if e.primary != nil {
		ctx, cancel := context.WithTimeout(e.ctx, e.opTimeout)
		defer cancel()

		if err := e.primary.Ping(ctx); err != nil {
			// reachable later is fine, the engine fails open until then
			e.logger.Warn("Primary cache store unreachable at startup", zap.Error(err))
		}
	}

	return nil
}

func (e *Engine) Stop() error {
	if !atomic.CompareAndSwapInt32(&e.running, 1, 0) {
		return types.ErrServerNotRunning
	}

	if closer, ok := e.primary.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			e.logger.Warn("Failed to close primary cache store", zap.Error(err))
		}
	}

	return nil
}

func (e *Engine) IsRunning() bool {
	return atomic.LoadInt32(&e.running) == 1
}

func (e *Engine) Get(ctx context.Context, key string) ([]byte, bool) {
	start := time.Now()
	value, found := e.get(ctx, key)
	e.recordMetric("get", hitResult(found), time.Since(start))
	return value, found
}

func (e *Engine) get(ctx context.Context, key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	if e.primary != nil {
		value, err := e.primary.Get(ctx, key)
		if err == nil {
			e.stats.Hit()
			return value, true
		}
		if types.IsError(err, types.ErrCacheMiss) {
			// the primary answered; its miss is authoritative
			e.stats.Miss()
			return nil, false
		}

		e.stats.Error()
		e.logger.Error("Primary cache get failed, falling back", zap.String("key", key), zap.Error(err))
	}

	value, err := e.fallback.Get(ctx, key)
	if err != nil {
		e.stats.Miss()
		return nil, false
	}

	e.stats.Hit()
	return value, true
}

func (e *Engine) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if key == "" || len(value) == 0 || ttl <= 0 {
		return
	}

	start := time.Now()
	result := "success"

	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	if err := e.fallback.Set(ctx, key, value, ttl); err != nil {
		e.stats.Error()
		e.logger.Error("Fallback cache set failed", zap.String("key", key), zap.Error(err))
		result = "error"
	}

	if e.primary != nil {
		if err := e.primary.Set(ctx, key, value, ttl); err != nil {
			e.stats.Error()
			e.logger.Error("Primary cache set failed", zap.String("key", key), zap.Error(err))
			result = "error"
		}
	}

	e.recordMetric("set", result, time.Since(start))
}

func (e *Engine) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}

	start := time.Now()
	result := "success"

	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	if err := e.fallback.Delete(ctx, key); err != nil {
		e.stats.Error()
		e.logger.Error("Fallback cache delete failed", zap.String("key", key), zap.Error(err))
		result = "error"
	}

	if e.primary != nil {
		if err := e.primary.Delete(ctx, key); err != nil {
			e.stats.Error()
			e.logger.Error("Primary cache delete failed", zap.String("key", key), zap.Error(err))
			result = "error"
		}
	}

	e.recordMetric("delete", result, time.Since(start))
}

// DeletePattern purges both tiers. A primary failure here means stale
// entries may survive a mutation, so it is logged at error severity.
func (e *Engine) DeletePattern(ctx context.Context, pattern string) {
	if pattern == "" {
		return
	}

	start := time.Now()
	result := "success"

	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	removed, err := e.fallback.DeletePattern(ctx, pattern)
	if err != nil {
		e.stats.Error()
		e.logger.Error("Fallback cache purge failed", zap.String("pattern", pattern), zap.Error(err))
		result = "error"
	}

	if e.primary != nil {
		primaryRemoved, err := e.primary.DeletePattern(ctx, pattern)
		if err != nil {
			e.stats.Error()
			e.logger.Error("Primary cache purge failed, stale entries may remain",
				zap.String("pattern", pattern), zap.Error(err))
			result = "error"
		}
		removed += primaryRemoved
	}

	e.logger.Debug("Cache purge completed",
		zap.String("pattern", pattern), zap.Int("removed", removed))
	e.recordMetric("delete_pattern", result, time.Since(start))
}

func (e *Engine) Flush(ctx context.Context) {
	start := time.Now()
	result := "success"

	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	if err := e.fallback.Flush(ctx); err != nil {
		e.stats.Error()
		e.logger.Error("Fallback cache flush failed", zap.Error(err))
		result = "error"
	}

	if e.primary != nil {
		if err := e.primary.Flush(ctx); err != nil {
			e.stats.Error()
			e.logger.Error("Primary cache flush failed", zap.Error(err))
			result = "error"
		}
	}

	e.recordMetric("flush", result, time.Since(start))
}

func (e *Engine) Stats() types.CacheStatSnapshot {
	return e.stats.Snapshot()
}

func (e *Engine) ResetStats() {
	e.stats.Reset()
}

// Fallback exposes the in-process tier for maintenance sweeps.
func (e *Engine) Fallback() *MemoryStore {
	return e.fallback
}

func (e *Engine) RecordInvalidation() {
	e.stats.Invalidation()
}

func (e *Engine) registerHealthCheckers(health types.HealthManager) {
	if e.primary != nil {
		health.RegisterChecker("cache_primary", func(ctx context.Context) types.HealthCheck {
			check := types.HealthCheck{Name: "cache_primary", Status: types.StatusHealthy}
			if err := e.primary.Ping(ctx); err != nil {
				check.Status = types.StatusUnhealthy
				check.Message = err.Error()
			}
			return check
		})
	}

	health.RegisterChecker("cache_fallback", func(ctx context.Context) types.HealthCheck {
		check := types.HealthCheck{Name: "cache_fallback", Status: types.StatusHealthy}
		size := e.fallback.Len()
		max := e.fallback.MaxEntries()
		check.Message = fmt.Sprintf("%d/%d entries", size, max)
		return check
	})
}

func (e *Engine) recordMetric(operation, result string, duration time.Duration) {
	if e.metrics == nil {
		return
	}

	opCounter := e.metrics.Counter("cache_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
	})
	opCounter.Inc()

	opDuration := e.metrics.Histogram("cache_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"operation": operation},
	)
	opDuration.Observe(duration.Seconds())
}

func hitResult(found bool) string {
	if found {
		return "hit"
	}
	return "miss"
}

var _ types.CacheEngine = (*Engine)(nil)
