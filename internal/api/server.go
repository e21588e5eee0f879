package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"activation-server/internal/auth"
	"activation-server/internal/database"
	"activation-server/internal/entitlement"
	"activation-server/internal/events"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RateLimiter provides simple in-memory rate limiting per key
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	// Filter out old requests
	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	repo        *database.Repository
	service     *entitlement.Service
	eventBus    *events.EventBus
	authService *auth.Service
	config      ServerConfig
	rateLimiter *RateLimiter // Protects the public device endpoints from brute force
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowOrigins   []string
}

// NewServer creates a new API server
func NewServer(
	config ServerConfig,
	repo *database.Repository,
	service *entitlement.Service,
	eventBus *events.EventBus,
	authService *auth.Service,
) *Server {
	// Set Gin mode
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	if len(config.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8088"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		repo:        repo,
		service:     service,
		eventBus:    eventBus,
		authService: authService,
		config:      config,
		rateLimiter: NewRateLimiter(60, time.Minute), // 60 requests per minute per device code
	}

	server.setupRoutes()

	// Initialize the WebSocket hub for real-time audit broadcasting
	InitWebSocket(eventBus)

	return server
}

// rateLimitMiddleware limits requests on the public device endpoints,
// keyed by device code when present, falling back to client IP.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("code")
		if key == "" {
			key = c.ClientIP()
		}

		if !s.rateLimiter.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": "too many requests, please slow down",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	jwtManager := s.authService.GetJWTManager()

	api := s.router.Group("/api/v1")

	// Public device endpoints (authenticated by device code + pin, not JWT)
	devices := api.Group("/devices")
	devices.Use(s.rateLimitMiddleware())
	{
		devices.POST("/register", s.handleRegisterDevice)
		devices.POST("/authenticate", s.handleAuthenticateDevice)
		devices.GET("/:code/status", s.handleDeviceStatus)
	}

	// Admin endpoints
	admin := api.Group("/admin")
	admin.POST("/login", s.handleAdminLogin)

	adminAuth := admin.Group("")
	adminAuth.Use(auth.Middleware(jwtManager), auth.RequireAdmin())
	{
		adminAuth.GET("/devices", s.handleListDevices)
		adminAuth.GET("/devices/:id", s.handleGetDevice)
		adminAuth.GET("/devices/:id/history", s.handleDeviceHistory)
		adminAuth.POST("/devices/:id/ban", s.handleBanDevice)
		adminAuth.POST("/devices/:id/unban", s.handleUnbanDevice)
		adminAuth.POST("/devices/:id/prolong", s.handleProlongDevice)
		adminAuth.POST("/devices/:id/lifetime", s.handleGrantLifetime)
		adminAuth.POST("/devices/:id/expire", s.handleExpireDevice)
		adminAuth.POST("/devices/trial", s.handleAdminStartTrial)
		adminAuth.POST("/devices/trial/batch", s.handleBatchStartTrial)

		adminAuth.GET("/resellers", s.handleListResellers)
		adminAuth.POST("/resellers", s.handleCreateReseller)
		adminAuth.GET("/resellers/:id", s.handleGetReseller)
		adminAuth.POST("/resellers/:id/topup", s.handleTopUpReseller)

		adminAuth.GET("/stats", s.handleGetStats)
		adminAuth.GET("/events/ws", s.handleWebSocket)
	}

	// Reseller endpoints
	reseller := api.Group("/reseller")
	reseller.POST("/login", s.handleResellerLogin)

	resellerAuth := reseller.Group("")
	resellerAuth.Use(auth.Middleware(jwtManager), auth.RequireReseller())
	{
		resellerAuth.GET("/me", s.handleResellerMe)
		resellerAuth.GET("/devices", s.handleResellerDevices)
		resellerAuth.POST("/activate", s.handleResellerActivate)
		resellerAuth.POST("/activate/batch", s.handleResellerBatchActivate)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "healthy",
	})
}

// domainError maps a domain or auth failure onto the HTTP response.
// Infrastructure errors become opaque 500s; their details stay in logs.
func domainError(c *gin.Context, err error) {
	if authErr, ok := err.(auth.AuthError); ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   authErr.Code,
			"message": authErr.Message,
		})
		return
	}

	status := http.StatusInternalServerError
	switch entitlement.KindOf(err) {
	case entitlement.KindNotFound:
		status = http.StatusNotFound
	case entitlement.KindConflict:
		status = http.StatusConflict
	case entitlement.KindInsufficientCredits:
		status = http.StatusPaymentRequired
	case entitlement.KindForbidden:
		status = http.StatusForbidden
	case entitlement.KindInvalidInput:
		status = http.StatusBadRequest
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("Internal error handling %s: %v", c.FullPath(), err)
		message = "internal server error"
	}

	c.JSON(status, gin.H{
		"error":   entitlement.CodeOf(err),
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// badRequest reports a malformed request body or parameter
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "INVALID_REQUEST",
		"message": err.Error(),
	})
}
