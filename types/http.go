package types

import (
	"time"

	"github.com/valyala/fasthttp"
)

type FastHTTPHandler func(ctx *fasthttp.RequestCtx)

type HTTPServer interface {
	LifecycleManager
}

type HTTPRouter interface {
	Add(method, path string, handler FastHTTPHandler, config *RouteConfig) error
	Lookup(method, path []byte) (FastHTTPHandler, *RouteConfig, map[string]string)
	Routes() []*RouteDefinition
}

// ScopeStrategy selects how the tenant discriminator for a route's cache key
// is resolved. The set is closed on purpose: routes pick a strategy by
// category instead of supplying ad hoc key functions.
type ScopeStrategy string

const (
	ScopeStrategyGlobal ScopeStrategy = "global"
	ScopeStrategyTenant ScopeStrategy = "tenant"
	ScopeStrategyUser   ScopeStrategy = "user"
)

type RouteConfig struct {
	Cache               *CacheRouteConfig
	Timeout             time.Duration
	Middlewares         []string
	DisabledMiddlewares []string
}

// CacheRouteConfig declares how responses of one route participate in the
// cache: which policy category they belong to and which scope strategy keys
// them. TTL overrides the policy table when set.
type CacheRouteConfig struct {
	Enabled  bool
	Category string
	Scope    ScopeStrategy
	TTL      time.Duration
}

type RouteDefinition struct {
	Method  string
	Path    string
	Handler FastHTTPHandler
	Config  *RouteConfig
}
