package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/moldpark_backend/metrics"
	"github.com/mmdatafocus/moldpark_backend/utils"
	"github.com/sirupsen/logrus"
)

const CorrelationHeader = "x-correlation-id"

// CorrelationMiddleware generates a correlation id once per request and attaches it to the context.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(CorrelationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header(CorrelationHeader, cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// MetricsMiddleware counts requests by matched route so path parameters do not explode the label set.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// ErrorLogger logs the errors handlers attached to the gin context, tagged with
// who made the request. The session token itself is never logged.
func ErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		ctx := c.Request.Context()
		fields := logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}
		if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
			fields["correlation_id"] = cid
		}
		if username, ok := utils.GetUsernameFromContext(ctx); ok {
			fields["username"] = username
		}
		if role, ok := utils.GetRoleFromContext(ctx); ok {
			fields["role"] = role
		}
		_, session := utils.GetTokenFromContext(ctx)
		fields["session"] = session
		logger.WithFields(fields).Error(c.Errors.String())
	}
}
