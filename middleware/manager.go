package middleware

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/qorebase/tiercache/types"
)

const MaxMiddlewares = 64

// Manager holds the registered middlewares ordered by weight and composes
// them into a next-func chain per request. Registration is closed by
// Finalize; after that the ordered slice is read-only and Execute needs no
// locking.
type Manager struct {
	logger    types.Logger
	ordered   []types.MiddlewareEntry
	byName    map[string]*types.MiddlewareEntry
	mu        sync.Mutex
	finalized int32
}

func NewManager(logger types.Logger) *Manager {
	return &Manager{
		logger: logger,
		byName: make(map[string]*types.MiddlewareEntry),
	}
}

func (m *Manager) Register(middleware types.Middleware) error {
	if middleware == nil {
		return types.ErrMiddlewareInvalidType
	}

	if atomic.LoadInt32(&m.finalized) == 1 {
		return types.NewErrorf("cannot register middleware after finalization")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.byName) >= MaxMiddlewares {
		return types.NewErrorf("maximum middleware count exceeded: %d", MaxMiddlewares)
	}

	name := middleware.Name()
	if _, exists := m.byName[name]; exists {
		return types.NewErrorf("middleware %q already registered", name)
	}

	m.byName[name] = &types.MiddlewareEntry{
		Name:       name,
		Middleware: middleware,
		Weight:     middleware.Weight(),
	}

	return nil
}

func (m *Manager) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !atomic.CompareAndSwapInt32(&m.finalized, 0, 1) {
		return types.NewErrorf("middleware configuration already finalized")
	}

	weights := make(map[int]string, len(m.byName))
	for name, entry := range m.byName {
		if existing, exists := weights[entry.Weight]; exists {
			return types.NewErrorf("duplicate weight %d for middlewares %q and %q",
				entry.Weight, existing, name)
		}
		weights[entry.Weight] = name
	}

	m.ordered = make([]types.MiddlewareEntry, 0, len(m.byName))
	for _, entry := range m.byName {
		m.ordered = append(m.ordered, *entry)
	}

	sort.Slice(m.ordered, func(i, j int) bool {
		return m.ordered[i].Weight < m.ordered[j].Weight
	})

	names := make([]string, len(m.ordered))
	for i, entry := range m.ordered {
		names[i] = entry.Name
	}
	m.logger.Info("Middleware chain finalized", zap.Strings("order", names))

	return nil
}

func (m *Manager) Execute(ctx *fasthttp.RequestCtx, handler func(*fasthttp.RequestCtx), config *types.RouteConfig) {
	if atomic.LoadInt32(&m.finalized) == 0 || len(m.ordered) == 0 {
		handler(ctx)
		return
	}

	active := m.activeFor(config)
	if len(active) == 0 {
		handler(ctx)
		return
	}

	var index int
	var next func(*fasthttp.RequestCtx)
	next = func(ctx *fasthttp.RequestCtx) {
		if index >= len(active) {
			handler(ctx)
			return
		}
		mw := active[index]
		index++
		mw.Handle(ctx, next, config)
	}

	next(ctx)
}

func (m *Manager) activeFor(config *types.RouteConfig) []types.Middleware {
	if config == nil || len(config.DisabledMiddlewares) == 0 {
		active := make([]types.Middleware, len(m.ordered))
		for i, entry := range m.ordered {
			active[i] = entry.Middleware
		}
		return active
	}

	disabled := make(map[string]struct{}, len(config.DisabledMiddlewares))
	for _, name := range config.DisabledMiddlewares {
		disabled[name] = struct{}{}
	}

	active := make([]types.Middleware, 0, len(m.ordered))
	for _, entry := range m.ordered {
		if _, skip := disabled[entry.Name]; skip {
			continue
		}
		active = append(active, entry.Middleware)
	}
	return active
}

var _ types.MiddlewareManager = (*Manager)(nil)
