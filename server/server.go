package server

import (
	"context"
	"net/http"
	"time"

	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option configures a Server
type Option func(*Server)

// WithAllowReset enables POST /api/v1/reset and PUT /api/v1/snapshot
func WithAllowReset(allow bool) Option {
	return func(s *Server) { s.allowReset = allow }
}

// WithClock replaces time.Now for assigned createdAt values
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithIDFunc replaces the id generator for records posted without an id
func WithIDFunc(fn func() string) Option {
	return func(s *Server) { s.newID = fn }
}

// Server exposes a storage.Backend over REST
type Server struct {
	backend    storage.Backend
	echo       *echo.Echo
	registry   *prometheus.Registry
	metrics    *metrics
	allowReset bool
	now        func() time.Time
	newID      func() string
}

// New creates a server over backend
func New(backend storage.Backend, opts ...Option) *Server {
	s := &Server{
		backend:  backend,
		registry: prometheus.NewRegistry(),
		now:      time.Now,
		newID:    newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.registry)

	s.setupEcho()

	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(s.metrics.middleware)

	// Health check
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	// API v1
	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/snapshot", s.handleSnapshot)
	api.POST("/reset", s.handleReset)
	api.PUT("/snapshot", s.handleReplace)

	for _, entity := range storageEntities {
		g := api.Group("/" + string(entity))
		g.GET("", s.handleList(entity))
		g.POST("", s.handleCreate(entity))
		g.PUT("/:id", s.handleUpdate(entity))
		g.DELETE("/:id", s.handleDelete(entity))
	}

	s.echo = e
}

// Close closes the backend
func (s *Server) Close() error {
	return s.backend.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	logger.Info("Server listening",
		logger.F("addr", addr),
		logger.F("backend", s.backend.Name()),
		logger.F("reset_enabled", s.allowReset))
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
