package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"financials-sync/src/logger"
	"financials-sync/src/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRecentFailures = 50

// -----------------------------------------------------------------------------
// StatusServer
// -----------------------------------------------------------------------------

// StatusServer exposes run progress over REST, Prometheus and a websocket
// feed. It is the synchronizer's progress reporter.
type StatusServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MStatusMessage
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once

	// Live run state
	status     models.MRunStatus
	stateMutex sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewStatusServer(cfg *models.MConfig, logger *logger.Logger) *StatusServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &StatusServer{
		Config:  cfg,
		Logger:  logger,
		engine:  gin.New(),
		clients: make(map[*Client]struct{}),
		// Buffered so Report never waits on slow subscribers
		broadcast:  make(chan *models.MStatusMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		status:     models.MRunStatus{Failures: []models.MSyncUnit{}},
	}

	s.engine.Use(gin.Recovery())

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *StatusServer) setupRoutes() {
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/progress", s.getProgress)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------

// Handler exposes the router, mainly for tests.
func (s *StatusServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and serves until Stop. It returns nil after a clean stop,
// including when Stop was called first.
func (s *StatusServer) Start() error {
	s.Logger.Info("Starting status server on %s", s.http.Addr)

	go s.handleWebsockets()

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *StatusServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.quit) })
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *StatusServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	running := s.status.Running
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": connections,
		"running":     running,
	})
}

// -----------------------------------------------------------------------------

func (s *StatusServer) getProgress(c *gin.Context) {
	c.JSON(http.StatusOK, s.Snapshot())
}

// -----------------------------------------------------------------------------

func (s *StatusServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"exchange":                s.Config.Quote.Exchange,
		"session_timeout_seconds": s.Config.Quote.SessionTimeoutSeconds,
		"complete_on_first_delta": s.Config.Quote.CompleteOnFirstDelta,
		"rate_limit_seconds":      s.Config.Sync.RateLimitSeconds,
		"max_retries":             s.Config.Sync.MaxRetries,
		"retry_delay_seconds":     s.Config.Sync.RetryDelaySeconds,
		"interval_hours":          s.Config.Schedule.IntervalHours,
	})
}
