package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"skeenode/pkg/agent"
	"skeenode/pkg/api/middleware"
	"skeenode/pkg/auth"
	"skeenode/pkg/coordination"
	"skeenode/pkg/cronschedule"
	"skeenode/pkg/logger"
	"skeenode/pkg/observability"
	"skeenode/pkg/pipeline"
	"skeenode/pkg/provider"
	"skeenode/pkg/store"
)

// Server encapsulates the HTTP API server and its dependencies.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	jobStore      store.JobStore
	scheduleStore store.ScheduleStore
	pipeline      *pipeline.Pipeline
	agents        *agent.Registry
	providers     *provider.Registry
	coordinator   coordination.Coordinator
	election      coordination.Election
	auth          *middleware.AuthConfig
	tracer        *tracing.Provider
	scheduler     *cronschedule.Scheduler
}

// Config holds API server configuration.
type Config struct {
	Port          string
	JobStore      store.JobStore
	ScheduleStore store.ScheduleStore
	Pipeline      *pipeline.Pipeline
	Agents        *agent.Registry
	Providers     *provider.Registry
	Coordinator   coordination.Coordinator
	Election      coordination.Election

	// Auth, when non-nil, turns on JWT/API-key authentication for the
	// /api/v1 route group. Nil leaves the API open, matching the
	// teacher's own default of AUTH_ENABLED=false.
	Auth *middleware.AuthConfig

	// Tracer, when non-nil, wraps every request in a span.
	Tracer *tracing.Provider

	// Scheduler backs the run-now endpoint, which submits a schedule's
	// job on demand without waiting for its next cron firing.
	Scheduler *cronschedule.Scheduler
}

// NewServer creates a new API server with all dependencies.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware stack (order matters)
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(requestLogger())
	router.Use(middleware.RateLimitMiddleware())
	router.Use(middleware.BodySizeLimitMiddleware(1 << 20)) // 1MB body limit
	if cfg.Tracer != nil {
		router.Use(tracingMiddleware(cfg.Tracer))
	}

	s := &Server{
		router:        router,
		jobStore:      cfg.JobStore,
		scheduleStore: cfg.ScheduleStore,
		pipeline:      cfg.Pipeline,
		agents:        cfg.Agents,
		providers:     cfg.Providers,
		coordinator:   cfg.Coordinator,
		election:      cfg.Election,
		auth:          cfg.Auth,
		tracer:        cfg.Tracer,
		scheduler:     cfg.Scheduler,
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	logger.Get().Info("starting API server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Get().Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	if s.auth != nil {
		v1.Use(middleware.AuthMiddleware(*s.auth))
	}
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", s.submitJob)
			jobs.GET("", s.listJobs)
			jobs.GET("/:id", s.getJob)
			jobs.DELETE("/:id", s.deleteJob)
		}

		schedules := v1.Group("/schedules")
		{
			schedules.POST("", s.createSchedule)
			schedules.GET("", s.listSchedules)
			schedules.GET("/:id", s.getSchedule)
			schedules.PATCH("/:id", s.updateSchedule)
			schedules.DELETE("/:id", s.deleteSchedule)
			schedules.POST("/:id/run", s.runScheduleNow)
		}

		agents := v1.Group("/agents")
		{
			agents.GET("", s.listAgents)
		}

		providers := v1.Group("/providers")
		{
			providers.GET("", s.listProviders)
		}

		cluster := v1.Group("/cluster")
		{
			cluster.GET("/nodes", s.listNodes)
			cluster.GET("/leader", s.getLeader)
		}
	}
}

// requestLogger is a middleware that logs HTTP requests.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Get().Info("request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// tracingMiddleware wraps each request in a span named after its route.
func tracingMiddleware(tracer *tracing.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.StartSpan(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			tracing.SetError(ctx, fmt.Errorf("handler returned status %d", c.Writer.Status()))
		}
	}
}

// ownerIDFromRequest resolves the caller's identity for ownership
// filtering. When auth is enabled, the authenticated JWT/API-key
// subject always wins; unauthenticated deployments fall back to the
// owner_id query parameter so single-tenant or trusted-network setups
// can still scope requests without standing up auth.
func ownerIDFromRequest(c *gin.Context) string {
	if claims, ok := middleware.GetUserFromContext(c); ok {
		return claims.UserID
	}
	return c.Query("owner_id")
}

// healthCheck returns server health status with dependency checks.
func (s *Server) healthCheck(c *gin.Context) {
	deps := map[string]bool{
		"postgres": s.jobStore != nil,
		"pipeline": s.pipeline != nil,
		"etcd":     s.coordinator != nil,
	}

	healthy := true
	for _, ok := range deps {
		if !ok {
			healthy = false
			break
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().UTC(),
	})
}
