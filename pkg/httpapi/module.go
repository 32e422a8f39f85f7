package httpapi

import (
	"net/http"
	"time"

	"knowledge-ledger/pkg/config"
	"knowledge-ledger/pkg/health"
	"knowledge-ledger/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewEngine),
	fx.Invoke(registerHealthEndpoints),
)

// NewEngine builds the gin engine every HTTP handler registers on.
func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.CustomRecovery(recovered),
		middleware.RequestID(),
		accessLog(),
		middleware.Channel(),
		middleware.Error(),
	)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})
	return r
}

func registerHealthEndpoints(r *gin.Engine, h health.HealthService) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/liveness", h.Liveness)
	r.GET("/health/readiness", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func recovered(c *gin.Context, p any) {
	zap.L().Error("recovered from panic in HTTP handler",
		zap.String("path", c.Request.URL.Path),
		zap.Any("panic", p),
		zap.Stack("stack"),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{"code": "INTERNAL", "message": "internal server error"},
	})
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", middleware.GetRequestID(c.Request.Context())),
			zap.String("client_ip", c.ClientIP()),
		}
		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			zap.L().Error("http request", fields...)
		case c.Request.URL.Path == "/healthz", c.Request.URL.Path == "/metrics":
			zap.L().Debug("http request", fields...)
		default:
			zap.L().Info("http request", fields...)
		}
	}
}
