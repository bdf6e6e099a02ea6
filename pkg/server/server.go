package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	graphrag "github.com/soundprediction/graphrag"
	"github.com/soundprediction/graphrag/pkg/config"
	"github.com/soundprediction/graphrag/pkg/server/handlers"
	"github.com/soundprediction/graphrag/pkg/telemetry"
)

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	router   *gin.Engine
	client   graphrag.GraphRAG
	server   *http.Server
	recorder *telemetry.Recorder
}

// New creates a new server instance
func New(cfg *config.Config, client graphrag.GraphRAG) *Server {
	return &Server{
		config: cfg,
		client: client,
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	// Set gin mode
	gin.SetMode(s.config.Server.Mode)

	// Create router
	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	if s.config.Telemetry.Enabled && s.config.Telemetry.ParquetPath != "" {
		if recorder, err := telemetry.NewRecorder(s.config.Telemetry.ParquetPath); err == nil {
			s.recorder = recorder
			s.router.Use(telemetryMiddleware(recorder))
		}
	}

	// Setup routes
	s.setupRoutes()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.client)
	ingestHandler := handlers.NewIngestHandler(s.client)
	communityHandler := handlers.NewCommunityHandler(s.client)
	queryHandler := handlers.NewQueryHandler(s.client)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/ingest", ingestHandler.Ingest)

		communities := v1.Group("/communities")
		{
			communities.GET("", communityHandler.List)
			communities.POST("/build", communityHandler.Build)
			communities.POST("/reports", communityHandler.GenerateReports)
			communities.POST("/reports/dispatch", communityHandler.DispatchReports)
		}

		v1.POST("/query", queryHandler.Answer)
	}
}

// Router returns the configured router, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.recorder != nil {
		if err := s.recorder.Flush(); err != nil {
			fmt.Printf("failed to flush telemetry: %v\n", err)
		}
	}
	return s.server.Shutdown(ctx)
}

// telemetryMiddleware records one timed event per API request.
func telemetryMiddleware(recorder *telemetry.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		} else if c.Writer.Status() >= http.StatusInternalServerError {
			err = fmt.Errorf("status %d", c.Writer.Status())
		}
		recorder.Observe(c.Request.Method, c.FullPath(), start, err)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
