package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qorebase/tiercache/types"
	"github.com/qorebase/tiercache/utils"
)

const defaultHealthPath = "/health"

type Manager struct {
	ctx          context.Context
	cancel       context.CancelFunc
	logger       types.Logger
	service      types.ServiceInfo
	path         string
	checkers     map[string]types.HealthChecker
	startTime    time.Time
	mu           sync.RWMutex
	running      int32
	checkTimeout time.Duration
}

func NewManager(ctx context.Context, logger types.Logger, service types.ServiceInfo, config *types.HealthConfig) *Manager {
	managerCtx, cancel := context.WithCancel(ctx)

	path := defaultHealthPath
	if config != nil && config.Path != "" {
		path = config.Path
	}

	return &Manager{
		ctx:          managerCtx,
		cancel:       cancel,
		logger:       logger,
		service:      service,
		path:         path,
		checkers:     make(map[string]types.HealthChecker),
		checkTimeout: 5 * time.Second,
	}
}

func (hm *Manager) Start() error {
	if !atomic.CompareAndSwapInt32(&hm.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	hm.startTime = time.Now()
	hm.logger.Info("Health manager started")
	return nil
}

func (hm *Manager) Stop() error {
	if !atomic.CompareAndSwapInt32(&hm.running, 1, 0) {
		return types.ErrServerNotRunning
	}

	hm.cancel()

	hm.mu.Lock()
	hm.checkers = make(map[string]types.HealthChecker)
	hm.mu.Unlock()

	hm.logger.Info("Health manager stopped")
	return nil
}

func (hm *Manager) IsRunning() bool {
	return atomic.LoadInt32(&hm.running) == 1
}

func (hm *Manager) RegisterChecker(name string, checker types.HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checkers[name] = checker
}

func (hm *Manager) RegisterRoutes(router types.HTTPRouter) {
	config := &types.RouteConfig{
		Timeout:             5 * time.Second,
		DisabledMiddlewares: []string{"cache"},
	}

	if err := router.Add(fasthttp.MethodGet, hm.path, hm.handleHealth, config); err != nil {
		hm.logger.Error("Failed to register health route", zap.Error(err))
	}
}

func (hm *Manager) Check(ctx context.Context) types.HealthReport {
	hm.mu.RLock()
	checkers := make(map[string]types.HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	hm.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, hm.checkTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(checkCtx)
	results := make(map[string]types.HealthCheck, len(checkers))
	var resultMu sync.Mutex

	for name, checker := range checkers {
		name, checker := name, checker
		g.Go(func() error {
			result := hm.executeCheck(gCtx, name, checker)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		hm.logger.Warn("Health checks incomplete", zap.Error(err))
	}

	return hm.buildReport(results)
}

func (hm *Manager) handleHealth(ctx *fasthttp.RequestCtx) {
	if !hm.IsRunning() {
		ctx.Error("health manager is not running", fasthttp.StatusServiceUnavailable)
		return
	}

	report := hm.Check(ctx)

	body, err := utils.Marshal(report)
	if err != nil {
		hm.logger.Error("Failed to encode health report", zap.Error(err))
		utils.CreateErrorResponse(ctx)
		return
	}

	status := fasthttp.StatusOK
	if report.Status == types.StatusUnhealthy {
		status = fasthttp.StatusServiceUnavailable
	}

	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func (hm *Manager) executeCheck(ctx context.Context, name string, checker types.HealthChecker) types.HealthCheck {
	start := time.Now()

	resultChan := make(chan types.HealthCheck, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- types.HealthCheck{
					Name:    name,
					Status:  types.StatusUnhealthy,
					Message: fmt.Sprintf("health check panicked: %v", r),
				}
			}
		}()

		resultChan <- checker(ctx)
	}()

	var result types.HealthCheck
	select {
	case result = <-resultChan:
	case <-ctx.Done():
		result = types.HealthCheck{
			Name:    name,
			Status:  types.StatusUnhealthy,
			Message: "health check timeout",
		}
	}

	result.Name = name
	result.LastCheck = time.Now()
	result.Duration = time.Since(start)
	return result
}

func (hm *Manager) buildReport(results map[string]types.HealthCheck) types.HealthReport {
	overallStatus := types.StatusHealthy
	for _, result := range results {
		switch result.Status {
		case types.StatusUnhealthy:
			overallStatus = types.StatusUnhealthy
		case types.StatusUnknown:
			if overallStatus == types.StatusHealthy {
				overallStatus = types.StatusUnknown
			}
		}
	}

	return types.HealthReport{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.startTime),
		Service:   hm.service,
		Checks:    results,
	}
}

var _ types.HealthManager = (*Manager)(nil)
