package obs

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Longer incoming ids are replaced rather than logged.
	maxRequestIDLen = 64
)

// Middleware holds the gin handlers every route shares.
type Middleware struct {
	Logger *slog.Logger
}

type requestIDKey struct{}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID reuses the caller's X-Request-ID when it looks sane and mints a
// uuid otherwise. The id is echoed back and stored on the request context.
func (m Middleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey{}, id))
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// LoggerMiddleware writes one access line per request. 5xx is logged as an
// error and 4xx as a warning.
func (m Middleware) LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.Logger == nil {
			c.Next()
			return
		}
		started := time.Now()
		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(started)),
			slog.String("request_id", RequestIDFromContext(ctx)),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
		}
		m.Logger.LogAttrs(ctx, levelFor(status), "http", attrs...)
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Recovery answers 500 with the error body shape the API uses elsewhere.
func (m Middleware) Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rec any) {
		if m.Logger != nil {
			m.Logger.ErrorContext(c.Request.Context(), "panic recovered",
				"panic", rec,
				"route", c.FullPath(),
				"request_id", RequestIDFromContext(c.Request.Context()),
			)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"kind": "internal", "error": "internal error"})
	})
}
