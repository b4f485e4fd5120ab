package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/qorebase/tiercache/cache"
	"github.com/qorebase/tiercache/types"
	"github.com/qorebase/tiercache/utils"
)

const (
	headerCacheStatus  = "X-Cache"
	headerAge          = "Age"
	headerETag         = "ETag"
	headerIfNoneMatch  = "If-None-Match"
	headerCacheControl = "Cache-Control"

	cacheStatusHit  = "HIT"
	cacheStatusMiss = "MISS"

	mutationReportKey = "tiercache.mutation"
)

// response headers that are per-connection or recomputed on replay
var uncachedHeaders = map[string]struct{}{
	"Connection":        {},
	"Content-Length":    {},
	"Transfer-Encoding": {},
	"Date":              {},
	"Set-Cookie":        {},
}

type CacheMiddlewareConfig struct {
	Coalesce bool `json:"coalesce"`
}

// CacheMiddleware serves GET responses from the cache engine and reports
// mutations to the invalidation engine. Per request it runs the classify,
// key-build, lookup, execute, gate, store sequence; the store step is
// asynchronous and detached from the request lifecycle.
type CacheMiddleware struct {
	logger      types.Logger
	metrics     types.MetricsManager
	engine      types.CacheEngine
	keys        *cache.KeyBuilder
	policies    *cache.PolicyTable
	invalidator types.InvalidationEngine
	maxPayload  int
	weight      int
	// storeCtx outlives any single request so detached writes complete
	// even when the caller disconnects mid-store
	storeCtx context.Context
	group    *singleflight.Group
}

func NewCacheMiddleware(
	storeCtx context.Context,
	logger types.Logger,
	metrics types.MetricsManager,
	engine types.CacheEngine,
	keys *cache.KeyBuilder,
	policies *cache.PolicyTable,
	invalidator types.InvalidationEngine,
	cacheConfig *types.CacheConfig,
	itemConfig *types.MiddlewareItemConfig,
) *CacheMiddleware {
	mwConfig := &CacheMiddlewareConfig{}
	if itemConfig != nil && itemConfig.Params != nil {
		if err := utils.UnmarshalConfig(itemConfig.Params, mwConfig); err != nil {
			logger.Error("Failed to unmarshal cache middleware config", zap.Error(err))
		}
	}

	weight := 40
	if itemConfig != nil && itemConfig.Weight > 0 {
		weight = itemConfig.Weight
	}

	maxPayload := 1 << 20
	if cacheConfig != nil && cacheConfig.MaxPayloadBytes > 0 {
		maxPayload = cacheConfig.MaxPayloadBytes
	}

	mw := &CacheMiddleware{
		logger:      logger,
		metrics:     metrics,
		engine:      engine,
		keys:        keys,
		policies:    policies,
		invalidator: invalidator,
		maxPayload:  maxPayload,
		weight:      weight,
		storeCtx:    storeCtx,
	}

	if mwConfig.Coalesce {
		mw.group = &singleflight.Group{}
	}

	return mw
}

func (c *CacheMiddleware) Name() string { return "cache" }
func (c *CacheMiddleware) Weight() int  { return c.weight }

func (c *CacheMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), config *types.RouteConfig) {
	if config == nil || config.Cache == nil || !config.Cache.Enabled {
		next(ctx)
		return
	}

	scope, ok := c.resolveScope(ctx, config.Cache.Scope)
	if !ok {
		// ambiguous scope must never degrade into a shared key
		c.logger.Debug("Cache skipped, request scope unresolved",
			zap.String("path", string(ctx.Path())),
			zap.String("strategy", string(config.Cache.Scope)))
		next(ctx)
		return
	}

	if string(ctx.Method()) != fasthttp.MethodGet {
		c.handleMutation(ctx, next, config, scope)
		return
	}

	key, err := c.buildKey(ctx, scope)
	if err != nil {
		c.logger.Error("Failed to build cache key",
			zap.String("path", string(ctx.Path())), zap.Error(err))
		next(ctx)
		return
	}

	if entry, found := c.lookup(ctx, key); found {
		c.renderHit(ctx, entry, config.Cache)
		return
	}

	ctx.Response.Header.Set(headerCacheStatus, cacheStatusMiss)

	if c.group != nil {
		c.executeCoalesced(ctx, next, config, key, scope)
		return
	}

	next(ctx)
	c.capture(ctx, config.Cache, key)
}

// ReportMutation records which resource a mutating handler touched. The
// middleware reads the report after the handler returns successfully and
// fans it out to the invalidation engine.
func ReportMutation(ctx *fasthttp.RequestCtx, category, resourceID string) {
	ctx.SetUserValue(mutationReportKey, &mutationReport{
		Category:   category,
		ResourceID: resourceID,
	})
}

type mutationReport struct {
	Category   string
	ResourceID string
}

func (c *CacheMiddleware) handleMutation(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), config *types.RouteConfig, scope types.Scope) {
	next(ctx)

	if ctx.Response.StatusCode() >= fasthttp.StatusBadRequest {
		return
	}

	report, _ := ctx.UserValue(mutationReportKey).(*mutationReport)
	if report == nil {
		// the handler did not report; fall back to the route's category
		if config.Cache.Category == "" {
			return
		}
		report = &mutationReport{Category: config.Cache.Category}
	}

	// invalidation runs before the response leaves, so the caller's next
	// read observes post-mutation data
	c.invalidator.OnMutation(ctx, report.Category, report.ResourceID, scope)
}

func (c *CacheMiddleware) buildKey(ctx *fasthttp.RequestCtx, scope types.Scope) (string, error) {
	query := make(map[string][]string)
	ctx.QueryArgs().VisitAll(func(k, v []byte) {
		name := string(k)
		query[name] = append(query[name], string(v))
	})

	return c.keys.Build(string(ctx.Method()), string(ctx.Path()), query, scope)
}

func (c *CacheMiddleware) lookup(ctx *fasthttp.RequestCtx, key string) (*types.CachedResponse, bool) {
	raw, found := c.engine.Get(ctx, key)
	if !found {
		return nil, false
	}

	entry := &types.CachedResponse{}
	if err := utils.Unmarshal(raw, entry); err != nil {
		c.logger.Error("Dropping corrupt cache entry",
			zap.String("key", key), zap.Error(err))
		c.engine.Delete(ctx, key)
		return nil, false
	}

	return entry, true
}

func (c *CacheMiddleware) renderHit(ctx *fasthttp.RequestCtx, entry *types.CachedResponse, routeCache *types.CacheRouteConfig) {
	age := int(time.Since(entry.StoredAt).Seconds())
	if age < 0 {
		age = 0
	}

	ctx.Response.Header.Set(headerCacheStatus, cacheStatusHit)
	ctx.Response.Header.Set(headerAge, strconv.Itoa(age))
	if entry.ETag != "" {
		ctx.Response.Header.Set(headerETag, entry.ETag)
	}
	ctx.Response.Header.Set(headerCacheControl, "max-age="+strconv.Itoa(int(c.resolveTTL(routeCache).Seconds())))

	if entry.ETag != "" && c.matchesETag(ctx, entry.ETag) {
		ctx.SetStatusCode(fasthttp.StatusNotModified)
		ctx.Response.ResetBody()
		return
	}

	ctx.SetStatusCode(entry.Status)
	for name, value := range entry.Headers {
		ctx.Response.Header.Set(name, value)
	}
	ctx.SetBody(entry.Body)
}

func (c *CacheMiddleware) matchesETag(ctx *fasthttp.RequestCtx, etag string) bool {
	ifNoneMatch := string(ctx.Request.Header.Peek(headerIfNoneMatch))
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimSpace(candidate) == etag {
			return true
		}
	}
	return false
}

func (c *CacheMiddleware) executeCoalesced(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), config *types.RouteConfig, key string, scope types.Scope) {
	executed := false

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		executed = true
		next(ctx)
		return c.capture(ctx, config.Cache, key), nil
	})

	if executed || err != nil {
		return
	}

	// a concurrent request produced the response; replay it without
	// invoking the handler again
	if entry, ok := result.(*types.CachedResponse); ok && entry != nil {
		c.renderHit(ctx, entry, config.Cache)
		return
	}

	next(ctx)
	c.capture(ctx, config.Cache, key)
}

// capture runs the gate checks and, when they pass, stores the response
// envelope asynchronously. Returns the envelope so coalesced waiters can
// replay it.
func (c *CacheMiddleware) capture(ctx *fasthttp.RequestCtx, routeCache *types.CacheRouteConfig, key string) *types.CachedResponse {
	if !c.shouldStore(ctx) {
		return nil
	}

	body := make([]byte, len(ctx.Response.Body()))
	copy(body, ctx.Response.Body())

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`

	entry := &types.CachedResponse{
		Status:   ctx.Response.StatusCode(),
		Headers:  c.collectHeaders(ctx),
		Body:     body,
		ETag:     etag,
		StoredAt: time.Now(),
		Category: routeCache.Category,
	}

	ctx.Response.Header.Set(headerETag, etag)

	encoded, err := utils.Marshal(entry)
	if err != nil {
		c.logger.Error("Failed to encode cache entry",
			zap.String("key", key), zap.Error(err))
		return nil
	}

	ttl := c.resolveTTL(routeCache)

	// detached write: the response to the current caller is not delayed,
	// and caller cancellation does not abort the store
	go func() {
		c.engine.Set(c.storeCtx, key, encoded, ttl)
	}()

	return entry
}

func (c *CacheMiddleware) shouldStore(ctx *fasthttp.RequestCtx) bool {
	if ctx.Response.StatusCode() >= fasthttp.StatusBadRequest {
		return false
	}

	bodyLen := len(ctx.Response.Body())
	if bodyLen == 0 || bodyLen > c.maxPayload {
		return false
	}

	cacheControl := strings.ToLower(string(ctx.Response.Header.Peek(headerCacheControl)))
	if strings.Contains(cacheControl, "no-store") ||
		strings.Contains(cacheControl, "no-cache") ||
		strings.Contains(cacheControl, "private") {
		return false
	}

	// per-caller state in the response means the key does not fully
	// describe the response identity
	if len(ctx.Response.Header.Peek("Set-Cookie")) > 0 {
		return false
	}

	return true
}

func (c *CacheMiddleware) collectHeaders(ctx *fasthttp.RequestCtx) map[string]string {
	headers := make(map[string]string)
	ctx.Response.Header.VisitAll(func(k, v []byte) {
		name := string(k)
		if _, skip := uncachedHeaders[name]; skip {
			return
		}
		if name == headerCacheStatus || name == headerAge {
			return
		}
		headers[name] = string(v)
	})
	return headers
}

func (c *CacheMiddleware) resolveTTL(routeCache *types.CacheRouteConfig) time.Duration {
	if routeCache.TTL > 0 {
		return routeCache.TTL
	}
	return c.policies.Resolve(routeCache.Category).TTL
}

func (c *CacheMiddleware) resolveScope(ctx *fasthttp.RequestCtx, strategy types.ScopeStrategy) (types.Scope, bool) {
	switch strategy {
	case types.ScopeStrategyGlobal:
		return types.GlobalScope(), true
	case types.ScopeStrategyTenant:
		if id := scopeValue(ctx, "tenant_id", "X-Tenant-ID"); id != "" {
			return types.TenantScope(id), true
		}
		return types.Scope{}, false
	case types.ScopeStrategyUser:
		if id := scopeValue(ctx, "user_id", "X-User-ID"); id != "" {
			return types.UserScope(id), true
		}
		return types.Scope{}, false
	default:
		return types.Scope{}, false
	}
}

// scopeValue prefers the identity resolved by upstream auth (a user value)
// over the raw request header.
func scopeValue(ctx *fasthttp.RequestCtx, userValueKey, header string) string {
	if v, ok := ctx.UserValue(userValueKey).(string); ok && v != "" {
		return v
	}
	return string(ctx.Request.Header.Peek(header))
}

var _ types.Middleware = (*CacheMiddleware)(nil)
