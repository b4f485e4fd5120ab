package middleware

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/qorebase/tiercache/types"
	"github.com/qorebase/tiercache/utils"
)

type LoggingMiddleware struct {
	logger        types.Logger
	metrics       types.MetricsManager
	loggingConfig *LoggingConfig
	weight        int
}

type LoggingConfig struct {
	LogLevel   string `json:"log_level"`
	LogHeaders bool   `json:"log_headers"`
}

func NewLoggingMiddleware(logger types.Logger, metrics types.MetricsManager, itemConfig *types.MiddlewareItemConfig) *LoggingMiddleware {
	loggingConfig := &LoggingConfig{
		LogLevel: "info",
	}

	if itemConfig != nil && itemConfig.Params != nil {
		if err := utils.UnmarshalConfig(itemConfig.Params, loggingConfig); err != nil {
			logger.Error("Failed to unmarshal logging middleware config", zap.Error(err))
		}
	}

	weight := 20
	if itemConfig != nil && itemConfig.Weight > 0 {
		weight = itemConfig.Weight
	}

	return &LoggingMiddleware{
		logger:        logger,
		metrics:       metrics,
		loggingConfig: loggingConfig,
		weight:        weight,
	}
}

func (l *LoggingMiddleware) Name() string { return "logging" }
func (l *LoggingMiddleware) Weight() int  { return l.weight }

func (l *LoggingMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	start := time.Now()

	requestID := string(ctx.Request.Header.Peek("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.NewString()
		ctx.Request.Header.Set("X-Request-ID", requestID)
	}
	ctx.Response.Header.Set("X-Request-ID", requestID)

	next(ctx)

	duration := time.Since(start)
	status := ctx.Response.StatusCode()

	fields := []zap.Field{
		zap.String("method", string(ctx.Method())),
		zap.String("path", string(ctx.Path())),
		zap.Int("status", status),
		zap.Duration("duration", duration),
		zap.String("remote_addr", l.remoteAddr(ctx)),
		zap.String("request_id", requestID),
	}

	if query := ctx.QueryArgs().QueryString(); len(query) > 0 {
		fields = append(fields, zap.ByteString("query", query))
	}

	if cacheStatus := ctx.Response.Header.Peek("X-Cache"); len(cacheStatus) > 0 {
		fields = append(fields, zap.ByteString("cache", cacheStatus))
	}

	if l.metrics != nil {
		l.metrics.Counter("http_requests_total", map[string]string{
			"method": string(ctx.Method()),
			"status": statusClass(status),
		}).Inc()
		l.metrics.Histogram("http_request_duration_seconds",
			[]float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0},
			map[string]string{"method": string(ctx.Method())},
		).Observe(duration.Seconds())
	}

	switch {
	case status >= fasthttp.StatusInternalServerError:
		l.logger.Error("Request completed", fields...)
	case status >= fasthttp.StatusBadRequest:
		l.logger.Warn("Request completed", fields...)
	default:
		l.logWithLevel("Request completed", fields...)
	}
}

func (l *LoggingMiddleware) remoteAddr(ctx *fasthttp.RequestCtx) string {
	if forwarded := string(ctx.Request.Header.Peek("X-Forwarded-For")); forwarded != "" {
		if comma := strings.Index(forwarded, ","); comma > 0 {
			return strings.TrimSpace(forwarded[:comma])
		}
		return forwarded
	}
	return ctx.RemoteIP().String()
}

func (l *LoggingMiddleware) logWithLevel(msg string, fields ...zap.Field) {
	switch l.loggingConfig.LogLevel {
	case "debug":
		l.logger.Debug(msg, fields...)
	case "warn":
		l.logger.Warn(msg, fields...)
	default:
		l.logger.Info(msg, fields...)
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var _ types.Middleware = (*LoggingMiddleware)(nil)
