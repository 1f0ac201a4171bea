package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"obraflow/pkg/auth"
	"obraflow/pkg/otel"
	"obraflow/pkg/rbac"
	"obraflow/schedule-service/internal/handler"
)

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connected is implemented by *mq.Consumer and *mq.Publisher.
type Connected interface {
	IsConnected() bool
}

type RouterDeps struct {
	Handler   *handler.ScheduleHandler
	Logger    *zap.Logger
	DB        Pinger
	MQ        []Connected
	JWTSecret string
	APIKeys   auth.KeyRing
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(RequestLogger(deps.Logger))

	healthy := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	r.GET("/healthz", healthy)
	r.HEAD("/healthz", healthy)
	r.GET("/health", healthy)

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}
		for _, conn := range deps.MQ {
			if conn != nil && !conn.IsConnected() {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/schedules", AuthMiddleware(deps.JWTSecret, deps.APIKeys))
	api.POST("/preview", RequirePermission(rbac.PermissionReadSchedule), deps.Handler.Preview)
	api.POST("/:id/recalculate", RequirePermission(rbac.PermissionRecalculateSchedule), deps.Handler.Recalculate)
	api.GET("/:id/recalculations", RequirePermission(rbac.PermissionReadSchedule), deps.Handler.History)
	return r
}
