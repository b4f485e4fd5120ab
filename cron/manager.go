package cron

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/qorebase/tiercache/cache"
	"github.com/qorebase/tiercache/types"
)

const (
	defaultSweepSchedule = "@every 5m"
	defaultStatsSchedule = "@every 1m"
)

// Manager runs the periodic cache maintenance jobs: an eager expiry sweep
// of the fallback tier and a statistics snapshot exported to logs and
// gauges. Neither job is load-bearing; lazy expiry and the pull-based
// metrics endpoint keep working without them.
type Manager struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  types.Logger
	metrics types.MetricsManager
	engine  *cache.Engine
	config  *types.MaintenanceConfig
	cron    *cron.Cron
	running int32
}

func NewManager(ctx context.Context, logger types.Logger, metrics types.MetricsManager, engine *cache.Engine, config *types.MaintenanceConfig) (*Manager, error) {
	if config == nil {
		config = &types.MaintenanceConfig{}
	}

	timezone := time.UTC
	if config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			logger.Warn("Unknown maintenance timezone, using UTC", zap.String("timezone", config.Timezone))
		} else {
			timezone = loc
		}
	}

	managerCtx, cancel := context.WithCancel(ctx)

	manager := &Manager{
		ctx:     managerCtx,
		cancel:  cancel,
		logger:  logger,
		metrics: metrics,
		engine:  engine,
		config:  config,
		cron: cron.New(
			cron.WithLocation(timezone),
			cron.WithChain(cron.Recover(cronLogger{logger: logger})),
		),
	}

	if err := manager.registerJobs(); err != nil {
		cancel()
		return nil, err
	}

	return manager, nil
}

func (m *Manager) Start() error {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	m.cron.Start()
	m.logger.Info("Maintenance scheduler started")
	return nil
}

func (m *Manager) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return types.ErrServerNotRunning
	}

	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		m.logger.Warn("Maintenance jobs did not finish before shutdown timeout")
	}

	m.cancel()
	m.logger.Info("Maintenance scheduler stopped")
	return nil
}

func (m *Manager) IsRunning() bool {
	return atomic.LoadInt32(&m.running) == 1
}

func (m *Manager) registerJobs() error {
	sweepSchedule := m.config.SweepSchedule
	if sweepSchedule == "" {
		sweepSchedule = defaultSweepSchedule
	}

	statsSchedule := m.config.StatsSchedule
	if statsSchedule == "" {
		statsSchedule = defaultStatsSchedule
	}

	if _, err := m.cron.AddFunc(sweepSchedule, m.runSweep); err != nil {
		return types.Errorf(types.ErrCronScheduleInvalid, "sweep schedule %q: %v", sweepSchedule, err)
	}

	if _, err := m.cron.AddFunc(statsSchedule, m.reportStats); err != nil {
		return types.Errorf(types.ErrCronScheduleInvalid, "stats schedule %q: %v", statsSchedule, err)
	}

	return nil
}

func (m *Manager) runSweep() {
	start := time.Now()
	expired := m.engine.Fallback().Sweep()

	if expired > 0 {
		m.logger.Info("Fallback cache sweep removed expired entries",
			zap.Int("expired", expired),
			zap.Duration("duration", time.Since(start)))
	}

	m.metrics.Gauge("cache_fallback_entries", nil).Set(float64(m.engine.Fallback().Len()))
}

func (m *Manager) reportStats() {
	snapshot := m.engine.Stats()

	m.metrics.Gauge("cache_hits_total", nil).Set(float64(snapshot.Hits))
	m.metrics.Gauge("cache_misses_total", nil).Set(float64(snapshot.Misses))
	m.metrics.Gauge("cache_errors_total", nil).Set(float64(snapshot.Errors))
	m.metrics.Gauge("cache_invalidations_total", nil).Set(float64(snapshot.Invalidations))

	m.logger.Debug("Cache statistics",
		zap.Uint64("hits", snapshot.Hits),
		zap.Uint64("misses", snapshot.Misses),
		zap.Uint64("errors", snapshot.Errors),
		zap.Uint64("invalidations", snapshot.Invalidations),
		zap.Int("fallback_entries", m.engine.Fallback().Len()))
}

type cronLogger struct {
	logger types.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

var _ types.LifecycleManager = (*Manager)(nil)
