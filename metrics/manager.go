package metrics

import (
	"context"
	"time"

	"github.com/qorebase/tiercache/types"
)

// NewMetricsManager returns the prometheus-backed manager when metrics are
// enabled and a no-op manager otherwise, so callers never branch on the
// config themselves.
func NewMetricsManager(ctx context.Context, logger types.Logger, config *types.MetricsConfig) (types.MetricsManager, error) {
	if config == nil || !config.Enabled {
		return NewNoopMetrics(), nil
	}

	return NewPrometheusMetrics(ctx, logger, config)
}

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (n *NoopMetrics) Start() error                      { return nil }
func (n *NoopMetrics) Stop() error                       { return nil }
func (n *NoopMetrics) IsRunning() bool                   { return true }
func (n *NoopMetrics) RegisterRoutes(_ types.HTTPRouter) {}

func (n *NoopMetrics) Counter(string, map[string]string) types.Counter {
	return noopCounter{}
}
func (n *NoopMetrics) Gauge(string, map[string]string) types.Gauge {
	return noopGauge{}
}
func (n *NoopMetrics) Histogram(string, []float64, map[string]string) types.Histogram {
	return noopHistogram{}
}

type noopCounter struct{}

func (noopCounter) Inc()         {}
func (noopCounter) Add(float64)  {}
func (noopCounter) Get() float64 { return 0 }

type noopGauge struct{}

func (noopGauge) Set(float64)  {}
func (noopGauge) Inc()         {}
func (noopGauge) Dec()         {}
func (noopGauge) Get() float64 { return 0 }

type noopHistogram struct{}

func (noopHistogram) Observe(float64)           {}
func (noopHistogram) ObserveDuration(time.Time) {}

var _ types.MetricsManager = (*NoopMetrics)(nil)
