package service

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qorebase/tiercache/cache"
	"github.com/qorebase/tiercache/config"
	"github.com/qorebase/tiercache/cron"
	"github.com/qorebase/tiercache/health"
	"github.com/qorebase/tiercache/logger"
	"github.com/qorebase/tiercache/metrics"
	"github.com/qorebase/tiercache/middleware"
	"github.com/qorebase/tiercache/server"
	"github.com/qorebase/tiercache/types"
)

// Service wires the caching subsystem together with explicit dependency
// injection: every component receives its collaborators at construction
// and the service is the single lifecycle owner. Construction order is
// config, logger, metrics, health, cache engine, policies, invalidation,
// middlewares, router, server, maintenance; shutdown runs in reverse.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc

	configManager *config.ConfigurationManager
	logger        types.Logger
	loggerManager types.LoggerManager
	metrics       types.MetricsManager
	healthManager types.HealthManager
	engine        *cache.Engine
	keys          *cache.KeyBuilder
	policies      *cache.PolicyTable
	invalidator   *cache.Invalidator
	middlewares   *middleware.Manager
	router        *server.Router
	httpServer    *server.HTTPServer
	maintenance   *cron.Manager

	done    chan struct{}
	running int32
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)

	s := &Service{
		ctx:    serviceCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if err := s.build(configPath); err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

func (s *Service) build(configPath string) error {
	configManager, err := config.NewConfigurationManager(s.ctx, configPath)
	if err != nil {
		return types.WrapError(err, "failed to create config manager")
	}
	s.configManager = configManager
	cfg := configManager.GetConfig()

	loggerManager, err := logger.NewManager(s.ctx, configManager)
	if err != nil {
		return types.WrapError(err, "failed to create logger")
	}
	s.loggerManager = loggerManager
	s.logger = loggerManager

	metricsManager, err := metrics.NewMetricsManager(s.ctx, s.logger, cfg.Metrics)
	if err != nil {
		return types.WrapError(err, "failed to create metrics manager")
	}
	s.metrics = metricsManager

	s.healthManager = health.NewManager(s.ctx, s.logger, types.ServiceInfo{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, cfg.Health)

	engine, err := cache.NewEngine(s.ctx, s.logger, s.metrics, s.healthManager, cfg.Cache)
	if err != nil {
		return types.WrapError(err, "failed to create cache engine")
	}
	s.engine = engine

	s.keys = cache.NewKeyBuilder(cfg.Cache.Namespace)

	s.policies = cache.NewPolicyTable(cfg.Cache.DefaultTTL.Std(), cfg.Policies)

	invalidator, err := cache.NewInvalidator(engine, s.logger, cfg.Cache.Namespace, cfg.Invalidation)
	if err != nil {
		return types.WrapError(err, "failed to build invalidation rules")
	}
	s.invalidator = invalidator

	s.middlewares = middleware.NewManager(s.logger)
	if err := s.registerMiddlewares(cfg); err != nil {
		return types.WrapError(err, "failed to register middlewares")
	}

	s.router = server.NewRouter()

	admin := server.NewAdminHandler(s.logger, engine)
	if err := admin.RegisterRoutes(s.router); err != nil {
		return types.WrapError(err, "failed to register admin routes")
	}

	if cfg.Health == nil || cfg.Health.Enabled {
		s.healthManager.RegisterRoutes(s.router)
	}
	s.metrics.RegisterRoutes(s.router)

	s.httpServer = server.NewHTTPServer(s.ctx, s.logger, s.middlewares, s.router, cfg.Server.HTTP)

	if cfg.Maintenance == nil || cfg.Maintenance.Enabled {
		maintenance, err := cron.NewManager(s.ctx, s.logger, s.metrics, engine, cfg.Maintenance)
		if err != nil {
			return types.WrapError(err, "failed to create maintenance scheduler")
		}
		s.maintenance = maintenance
	}

	return nil
}

func (s *Service) registerMiddlewares(cfg *types.ServiceConfig) error {
	mwConfig := cfg.Middlewares
	if mwConfig == nil || !mwConfig.Enabled {
		return s.middlewares.Finalize()
	}

	if mwConfig.Recovery != nil && mwConfig.Recovery.Enabled {
		if err := s.middlewares.Register(middleware.NewRecoveryMiddleware(s.logger, s.metrics, mwConfig.Recovery)); err != nil {
			return err
		}
	}

	if mwConfig.Logging != nil && mwConfig.Logging.Enabled {
		if err := s.middlewares.Register(middleware.NewLoggingMiddleware(s.logger, s.metrics, mwConfig.Logging)); err != nil {
			return err
		}
	}

	if cfg.Cache.Enabled && mwConfig.Cache != nil && mwConfig.Cache.Enabled {
		cacheMw := middleware.NewCacheMiddleware(
			s.ctx,
			s.logger,
			s.metrics,
			s.engine,
			s.keys,
			s.policies,
			s.invalidator,
			cfg.Cache,
			mwConfig.Cache,
		)
		if err := s.middlewares.Register(cacheMw); err != nil {
			return err
		}
	}

	return s.middlewares.Finalize()
}

// Router exposes route registration to the embedding application.
func (s *Service) Router() types.HTTPRouter {
	return s.router
}

func (s *Service) Logger() types.Logger {
	return s.logger
}

func (s *Service) CacheEngine() types.CacheEngine {
	return s.engine
}

func (s *Service) Invalidator() types.InvalidationEngine {
	return s.invalidator
}

func (s *Service) Start() error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	type component struct {
		name    string
		manager types.LifecycleManager
	}

	components := []component{
		{"config", s.configManager},
		{"logger", s.loggerManager},
		{"metrics", s.metrics},
		{"health", s.healthManager},
		{"cache engine", s.engine},
	}
	if s.maintenance != nil {
		components = append(components, component{"maintenance", s.maintenance})
	}
	components = append(components, component{"http server", s.httpServer})

	for _, component := range components {
		if err := component.manager.Start(); err != nil {
			s.logger.Error("Failed to start component",
				zap.String("component", component.name), logger.CauseField(err))
			atomic.StoreInt32(&s.running, 0)
			return types.WrapError(err, "failed to start "+component.name)
		}
	}

	s.logger.Info("Service started",
		zap.String("name", s.configManager.GetConfig().Name),
		zap.String("version", s.configManager.GetConfig().Version))

	return nil
}

// Run starts the service and blocks until SIGINT/SIGTERM or Stop.
func (s *Service) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		s.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-s.ctx.Done():
	case <-s.done:
	}

	return s.Stop()
}

func (s *Service) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return types.ErrServiceIsNotRunning
	}

	defer s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// the server stops first so no new requests race the draining engine
	s.stopComponent("http server", s.httpServer)
	if s.maintenance != nil {
		s.stopComponent("maintenance", s.maintenance)
	}

	g, _ := errgroup.WithContext(shutdownCtx)
	g.Go(func() error {
		s.stopComponent("cache engine", s.engine)
		return nil
	})
	g.Go(func() error {
		s.stopComponent("health", s.healthManager)
		return nil
	})
	g.Go(func() error {
		s.stopComponent("metrics", s.metrics)
		return nil
	})
	_ = g.Wait()

	s.stopComponent("config", s.configManager)
	s.stopComponent("logger", s.loggerManager)

	close(s.done)
	return nil
}

func (s *Service) IsRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}

func (s *Service) stopComponent(name string, manager types.LifecycleManager) {
	if manager == nil {
		return
	}
	if err := manager.Stop(); err != nil {
		s.logger.Warn("Component stop reported an error",
			zap.String("component", name), logger.CauseField(err))
	}
}

var _ types.LifecycleManager = (*Service)(nil)
