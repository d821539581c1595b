package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/moldpark_backend/config"
	"github.com/mmdatafocus/moldpark_backend/handlers"
	"github.com/mmdatafocus/moldpark_backend/metrics"
	"github.com/mmdatafocus/moldpark_backend/middlewares"
	"github.com/mmdatafocus/moldpark_backend/workflow"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

func main() {
	s, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}
	logger := config.NewLogger(s)
	metrics.Register()
	if s.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Shutdown coordination.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Until the database is connected every API request gets 503.
	var api atomic.Pointer[http.Handler]
	r := gin.New()
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		h := api.Load()
		if h == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		(*h).ServeHTTP(c.Writer, c.Request)
	})

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + s.Port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	rt, err := workflow.Open(sigCtx, s, logger, workflow.OpenOptions{})
	if err != nil {
		config.LogError(logger, "server.go", "main", "workflow.Open", nil, err)
		shutdown(srv, logger)
		os.Exit(1)
	}
	defer rt.Close()

	var handler http.Handler = newAPIRouter(s, rt, logger)
	api.Store(&handler)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("monitoring API listening on :", s.Port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}
	shutdown(srv, logger)
}

func newAPIRouter(s config.Settings, rt *workflow.Runtime, logger *logrus.Logger) *gin.Engine {
	r := gin.New()

	corsConfig := cors.DefaultConfig()
	// In production only CORS_ALLOWED_ORIGINS may call us; an empty list denies all.
	if s.IsProduction() {
		corsConfig.AllowOrigins = s.CORSOrigins
		if corsConfig.AllowOrigins == nil {
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.MetricsMiddleware())
	r.Use(middlewares.AuthMiddleware([]byte(s.APISecret)))

	var opts []handlers.StatusOption
	if rt.Redis != nil {
		r.Use(middlewares.SessionMiddleware(rt.Redis, rt.Store))
		if s.RateLimitRequests > 0 {
			window := time.Duration(s.RateLimitWindow) * time.Second
			r.Use(middlewares.NewRateLimiter(rt.Redis.Client, int64(s.RateLimitRequests), window).Middleware())
		}
		opts = append(opts, handlers.WithCache(rt.Redis, workflow.CacheTTL))
	} else if s.RateLimitRequests > 0 {
		logger.WithFields(logrus.Fields{"field": "ratelimit"}).Warn("RATE_LIMIT_MAX_REQUESTS set but redis is unavailable; rate limiting disabled")
	}

	r.Use(middlewares.ErrorLogger(logger))
	r.Use(gin.Recovery())

	handlers.NewStatusHandler(rt.Jobs.Status(), logger, opts...).Register(r)
	r.NoRoute(customNotFoundHandler)
	return r
}

func shutdown(srv *http.Server, logger *logrus.Logger) {
	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
