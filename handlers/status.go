package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/moldpark_backend/config"
	"github.com/mmdatafocus/moldpark_backend/middlewares"
	"github.com/mmdatafocus/moldpark_backend/monitor"
	"github.com/mmdatafocus/moldpark_backend/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// StatusReader is what the status endpoints read. *monitor.StatusService implements it.
type StatusReader interface {
	SystemStatus(ctx context.Context) (monitor.SystemStatus, error)
	Pipeline(ctx context.Context) (monitor.Pipeline, error)
	Alerts(ctx context.Context) (monitor.AlertList, error)
	HealthCheck(ctx context.Context) (string, error)
	NotificationStatus(ctx context.Context, userID uint, isAdmin bool) (monitor.NotificationStatus, error)
}

// ObjectCache is the slice of config.Redis used to cache summaries.
type ObjectCache interface {
	GetObject(ctx context.Context, key string, dest interface{}) (bool, error)
	SetObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error
}

const (
	pipelineCacheKey = "status:pipeline"
	alertsCacheKey   = "status:alerts"
)

type StatusHandler struct {
	status   StatusReader
	cache    ObjectCache
	cacheTTL time.Duration
	limiter  *rate.Limiter
	logger   *logrus.Logger
}

type StatusOption func(*StatusHandler)

// WithCache caches the pipeline and alert summaries for ttl.
func WithCache(c ObjectCache, ttl time.Duration) StatusOption {
	return func(h *StatusHandler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// WithHealthCheckLimit throttles the health check endpoint to one run per every and burst.
func WithHealthCheckLimit(every time.Duration, burst int) StatusOption {
	return func(h *StatusHandler) { h.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

func NewStatusHandler(status StatusReader, logger *logrus.Logger, opts ...StatusOption) *StatusHandler {
	h := &StatusHandler{
		status:  status,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the monitoring API under r.
func (h *StatusHandler) Register(r gin.IRouter) {
	api := r.Group("/api")
	authed := api.Group("", middlewares.RequireAuth())
	authed.GET("/system/status", h.systemStatus)
	authed.GET("/production/pipeline", h.pipeline)
	authed.GET("/alerts", h.alerts)
	authed.GET("/notifications/status", h.notificationStatus)
	api.POST("/health-check", middlewares.RequireAdmin(), h.healthCheck)
}

func (h *StatusHandler) fail(c *gin.Context, funcName string, err error) {
	config.LogError(h.logger, "handlers", funcName, c.FullPath(), nil, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *StatusHandler) systemStatus(c *gin.Context) {
	out, err := h.status.SystemStatus(c.Request.Context())
	if err != nil {
		h.fail(c, "systemStatus", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *StatusHandler) pipeline(c *gin.Context) {
	var out monitor.Pipeline
	if h.cached(c.Request.Context(), pipelineCacheKey, &out) {
		c.JSON(http.StatusOK, out)
		return
	}
	out, err := h.status.Pipeline(c.Request.Context())
	if err != nil {
		h.fail(c, "pipeline", err)
		return
	}
	h.store(c.Request.Context(), pipelineCacheKey, out)
	c.JSON(http.StatusOK, out)
}

func (h *StatusHandler) alerts(c *gin.Context) {
	var out monitor.AlertList
	if h.cached(c.Request.Context(), alertsCacheKey, &out) {
		c.JSON(http.StatusOK, out)
		return
	}
	out, err := h.status.Alerts(c.Request.Context())
	if err != nil {
		h.fail(c, "alerts", err)
		return
	}
	h.store(c.Request.Context(), alertsCacheKey, out)
	c.JSON(http.StatusOK, out)
}

func (h *StatusHandler) notificationStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := utils.GetUserIdFromContext(ctx)
	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	out, err := h.status.NotificationStatus(ctx, userID, isAdmin)
	if err != nil {
		h.fail(c, "notificationStatus", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *StatusHandler) healthCheck(c *gin.Context) {
	if !h.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "health check is throttled, try again shortly"})
		return
	}
	text, err := h.status.HealthCheck(c.Request.Context())
	if err != nil {
		config.LogError(h.logger, "handlers", "healthCheck", "HealthCheck", nil, err)
		if errors.Is(err, monitor.ErrDatabaseDown) {
			c.String(http.StatusInternalServerError, "Health check failed: %v\n", err)
			return
		}
		c.String(http.StatusInternalServerError, "Health check error: %v\n", err)
		return
	}
	c.String(http.StatusOK, text)
}

// cache failures only cost a recomputation
func (h *StatusHandler) cached(ctx context.Context, key string, dest interface{}) bool {
	if h.cache == nil {
		return false
	}
	ok, err := h.cache.GetObject(ctx, key, dest)
	if err != nil {
		h.logger.WithFields(logrus.Fields{"module": "handlers", "key": key}).Warn("cache read failed: " + err.Error())
		return false
	}
	return ok
}

func (h *StatusHandler) store(ctx context.Context, key string, obj interface{}) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetObject(ctx, key, obj, h.cacheTTL); err != nil {
		h.logger.WithFields(logrus.Fields{"module": "handlers", "key": key}).Warn("cache write failed: " + err.Error())
	}
}
