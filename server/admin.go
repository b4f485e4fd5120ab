package server

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/qorebase/tiercache/types"
	"github.com/qorebase/tiercache/utils"
)

// AdminHandler exposes the operational cache surface: a read-only
// statistics snapshot, explicit purge (everything or one glob pattern)
// and an explicit counter reset. These routes bypass the cache middleware.
type AdminHandler struct {
	logger types.Logger
	engine types.CacheEngine
}

type purgeRequest struct {
	Pattern string `json:"pattern"`
}

type purgeResponse struct {
	Purged  string `json:"purged"`
	Pattern string `json:"pattern,omitempty"`
}

func NewAdminHandler(logger types.Logger, engine types.CacheEngine) *AdminHandler {
	return &AdminHandler{
		logger: logger,
		engine: engine,
	}
}

func (a *AdminHandler) RegisterRoutes(router types.HTTPRouter) error {
	adminConfig := &types.RouteConfig{
		DisabledMiddlewares: []string{"cache"},
	}

	if err := router.Add(fasthttp.MethodGet, "/internal/cache/stats", a.handleStats, adminConfig); err != nil {
		return err
	}
	if err := router.Add(fasthttp.MethodPost, "/internal/cache/purge", a.handlePurge, adminConfig); err != nil {
		return err
	}
	return router.Add(fasthttp.MethodPost, "/internal/cache/stats/reset", a.handleStatsReset, adminConfig)
}

func (a *AdminHandler) handleStats(ctx *fasthttp.RequestCtx) {
	a.writeJSON(ctx, fasthttp.StatusOK, a.engine.Stats())
}

func (a *AdminHandler) handlePurge(ctx *fasthttp.RequestCtx) {
	request := &purgeRequest{}
	if body := ctx.PostBody(); len(body) > 0 {
		if err := utils.Unmarshal(body, request); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			a.writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{"error": "invalid purge request body"})
			return
		}
	}

	if request.Pattern == "" {
		a.engine.Flush(ctx)
		a.logger.Info("Admin purged entire cache")
		a.writeJSON(ctx, fasthttp.StatusOK, purgeResponse{Purged: "all"})
		return
	}

	a.engine.DeletePattern(ctx, request.Pattern)
	a.logger.Info("Admin purged cache pattern", zap.String("pattern", request.Pattern))
	a.writeJSON(ctx, fasthttp.StatusOK, purgeResponse{Purged: "pattern", Pattern: request.Pattern})
}

func (a *AdminHandler) handleStatsReset(ctx *fasthttp.RequestCtx) {
	a.engine.ResetStats()
	a.logger.Info("Admin reset cache statistics")
	a.writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "reset"})
}

func (a *AdminHandler) writeJSON(ctx *fasthttp.RequestCtx, status int, payload interface{}) {
	body, err := utils.Marshal(payload)
	if err != nil {
		utils.CreateErrorResponse(ctx)
		return
	}

	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
