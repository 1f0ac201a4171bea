package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"obraflow/pkg/auth"
	"obraflow/pkg/metrics"
	"obraflow/pkg/rbac"
	"obraflow/pkg/trace"
	"obraflow/schedule-service/internal/handler"
)

const apiKeyHeader = "X-API-Key"

// TraceMiddleware 读取或生成 trace_id，写入 context 与响应头
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := trace.FromHeaders(c.GetHeader)
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName, traceID)
		c.Next()
	}
}

// RequestLogger 请求日志与 HTTP 延迟指标
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		latency := time.Since(start)
		status := c.Writer.Status()
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(status), latency)

		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
	}
}

// AuthMiddleware accepts a bearer JWT or a configured API key.
func AuthMiddleware(jwtSecret string, keys auth.KeyRing) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(apiKeyHeader); raw != "" {
			claims, ok := keys.Authenticate(raw)
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
				return
			}
			c.Set(handler.ClaimsKey, claims)
			c.Next()
			return
		}

		token := auth.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := auth.ParseToken(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(handler.ClaimsKey, claims)
		c.Next()
	}
}

// RequirePermission checks the caller's role against the rbac table.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := ""
		if v, ok := c.Get(handler.ClaimsKey); ok {
			if claims, ok := v.(*auth.Claims); ok {
				role = claims.Role
			}
		}

		if err := rbac.CheckPermission(role, permission); err != nil {
			var denied *rbac.PermissionDeniedError
			if errors.As(err, &denied) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "permission check failed"})
			return
		}
		c.Next()
	}
}
