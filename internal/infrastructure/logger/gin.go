package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Gin context keys shared with the HTTP middleware
const (
	GinRequestIDKey = "request_id"
	GinLoggerKey    = "logger"
)

// AccessLogOption configures AccessLog
type AccessLogOption func(*accessLog)

type accessLog struct {
	base        *zap.Logger
	actorHeader string
	skip        map[string]bool
}

// WithActorHeader names the header carrying the acting clinician
func WithActorHeader(name string) AccessLogOption {
	return func(a *accessLog) { a.actorHeader = name }
}

// WithSkipPaths suppresses the access line for successful requests to paths,
// typically health probes. The request logger is still installed.
func WithSkipPaths(paths ...string) AccessLogOption {
	return func(a *accessLog) {
		for _, p := range paths {
			a.skip[p] = true
		}
	}
}

// AccessLog installs a request-scoped logger carrying the request id and the
// actor in both the gin and request contexts, then writes one access line
// per request at a level matching the response status.
func AccessLog(base *zap.Logger, opts ...AccessLogOption) gin.HandlerFunc {
	a := &accessLog{base: base, actorHeader: "X-User-ID", skip: map[string]bool{}}
	for _, opt := range opts {
		opt(a)
	}
	return a.handle
}

func (a *accessLog) handle(c *gin.Context) {
	begin := time.Now()
	route := c.Request.URL.Path

	ctx, reqLog := WithRequestID(c.Request.Context(),
		a.base.With(zap.String("method", c.Request.Method), zap.String("path", route)),
		c.GetString(GinRequestIDKey))
	if actor := c.GetHeader(a.actorHeader); actor != "" {
		ctx, reqLog = WithUserID(ctx, reqLog, actor)
	}
	c.Request = c.Request.WithContext(ctx)
	c.Set(GinLoggerKey, reqLog)

	c.Next()

	status := c.Writer.Status()
	if status < http.StatusBadRequest && a.skip[route] {
		return
	}
	fields := []zap.Field{
		zap.Int("status", status),
		zap.Duration("latency", time.Since(begin)),
		zap.String("client_ip", c.ClientIP()),
		zap.Int("bytes", c.Writer.Size()),
	}
	if q := c.Request.URL.RawQuery; q != "" {
		fields = append(fields, zap.String("query", q))
	}
	if fp := c.FullPath(); fp != "" && fp != route {
		fields = append(fields, zap.String("route", fp))
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
	}

	switch {
	case status >= http.StatusInternalServerError:
		reqLog.Error("HTTP Request", fields...)
	case status >= http.StatusBadRequest:
		reqLog.Warn("HTTP Request", fields...)
	default:
		reqLog.Info("HTTP Request", fields...)
	}
}

// Recovery turns a handler panic into a 500 error envelope and logs the stack
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := c.GetString(GinRequestIDKey)
			log.Error("Panic recovered",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "INTERNAL_ERROR",
					"message":    "internal server error",
					"request_id": requestID,
					"timestamp":  time.Now().UTC(),
				},
			})
		}()
		c.Next()
	}
}

// GetGinLogger returns the request logger, or a no-op logger outside AccessLog
func GetGinLogger(c *gin.Context) *zap.Logger {
	if zl, ok := c.Value(GinLoggerKey).(*zap.Logger); ok {
		return zl
	}
	return zap.NewNop()
}
