package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrServerNotRunning     = errors.New("server not running")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrRouteExists          = errors.New("route already registered")
	ErrHandlerIsNil         = errors.New("handler is nil")
)

var (
	ErrCacheMiss             = errors.New("cache miss")
	ErrCacheKeyEmpty         = errors.New("cache key empty")
	ErrCacheConnectionFailed = errors.New("cache connection failed")
	ErrCacheIsDisabled       = errors.New("cache is disabled")
	ErrScopeMissing          = errors.New("tenant scope missing")
	ErrPatternEmpty          = errors.New("pattern empty")
	ErrPayloadTooLarge       = errors.New("payload too large")
)

var (
	ErrMiddlewareInvalidType = errors.New("middleware invalid type")
	ErrMiddlewareDuplicate   = errors.New("middleware already registered")
)

var (
	ErrMetricsIsDisabled  = errors.New("metrics manager is disabled")
	ErrMetricsNotRunning  = errors.New("metrics manager not running")
	ErrMetricsTypeUnknown = errors.New("metrics type unknown")
)

var (
	ErrHealthCheckFailed = errors.New("health check failed")
	ErrCheckExists       = errors.New("health check already registered")
)

var (
	ErrCronScheduleInvalid = errors.New("cron schedule invalid")
	ErrCronJobNameIsEmpty  = errors.New("cron job name is empty")
)

var (
	ErrServiceIsNotRunning = errors.New("service is not running")
	ErrLogFileIsEmpty      = errors.New("log file is empty")
	ErrLogFileWrongFormat  = errors.New("log file wrong format")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
