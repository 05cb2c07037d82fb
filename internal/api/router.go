// Package api wires together all HTTP routes for the console backend.
//
// Route grouping:
//   - System routes (/, /api/health, /ready, /version) are public.
//   - /api/auth/register and /api/auth/login are public but sit behind the stricter
//     per-IP auth rate limiter.
//   - Everything else under /api requires a bearer token and only ever sees the
//     caller's own models and deployments.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/next-cloud-ai/console/internal/api/account"
	"github.com/next-cloud-ai/console/internal/api/aimodels"
	"github.com/next-cloud-ai/console/internal/api/dashboard"
	"github.com/next-cloud-ai/console/internal/api/deployments"
	"github.com/next-cloud-ai/console/internal/auth"
	"github.com/next-cloud-ai/console/internal/config"
	"github.com/next-cloud-ai/console/internal/db/repositories"
	"github.com/next-cloud-ai/console/internal/middleware"
	"github.com/next-cloud-ai/console/internal/safego"
)

// Version is the server release reported by /version and /api/health
var Version = "1.0.0"

const (
	serverName = "Next Cloud AI"
	apiVersion = "v1"
)

// BackgroundServices holds resources that must be released during graceful shutdown.
// The caller (cmd/server) calls Shutdown after the HTTP server has drained.
type BackgroundServices struct {
	rateLimiters []middleware.Limiter
	redisClient  *redis.Client
	auditWrites  *safego.Group
}

// Shutdown waits for pending audit writes, then stops limiters and closes redis
func (bg *BackgroundServices) Shutdown(ctx context.Context) {
	slog.Info("stopping background services")
	if bg.auditWrites != nil {
		if err := bg.auditWrites.Wait(ctx); err != nil {
			slog.Warn("audit writes still pending at shutdown", "error", err)
		}
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sqlx.DB) (*gin.Engine, *BackgroundServices, error) {
	bg := &BackgroundServices{auditWrites: &safego.Group{}}

	secret, err := auth.ResolveSecret(cfg.Auth.JWT.Secret)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.Auth.JWT.TTL, cfg.Auth.JWT.Issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	hasher, err := auth.NewPasswordHasher(cfg.Auth.Password.Algorithm, cfg.Auth.Password.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	modelRepo := repositories.NewModelRepository(db)
	deploymentRepo := repositories.NewDeploymentRepository(db, cfg.Deployments.EndpointBaseURL, cfg.Deployments.APIKeyPrefix)
	statsRepo := repositories.NewStatsRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Handlers
	accountHandler, err := account.NewHandler(userRepo, hasher, tokens)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create account handler: %w", err)
	}
	modelHandler := aimodels.NewHandler(modelRepo)
	deploymentHandler := deployments.NewHandler(deploymentRepo)
	statsHandler := dashboard.NewStatsHandler(statsRepo)

	apiLimiter, authLimiter, err := newLimiters(cfg, bg)
	if err != nil {
		return nil, nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	startedAt := time.Now()
	router.GET("/", rootHandler())
	router.GET("/version", versionHandler())
	router.GET("/ready", readinessHandler(db))

	apiGroup := router.Group("/api")
	if apiLimiter != nil {
		apiGroup.Use(middleware.RateLimitMiddleware(apiLimiter))
	}
	apiGroup.GET("/health", healthCheckHandler(db, startedAt))

	authGroup := apiGroup.Group("/auth")
	{
		public := authGroup.Group("")
		if authLimiter != nil {
			public.Use(middleware.RateLimitMiddleware(authLimiter))
		}
		public.POST("/register", accountHandler.Register)
		public.POST("/login", accountHandler.Login)

		authGroup.GET("/me", middleware.AuthMiddleware(tokens), accountHandler.Me)
	}

	protected := apiGroup.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	if cfg.Audit.Enabled {
		protected.Use(middleware.AuditMiddleware(auditRepo, bg.auditWrites))
	}
	{
		protected.GET("/models", modelHandler.List)
		protected.POST("/models", modelHandler.Create)
		protected.GET("/models/:id", modelHandler.Get)

		protected.GET("/deployments", deploymentHandler.List)
		protected.POST("/deployments", deploymentHandler.Create)

		protected.GET("/stats", statsHandler.GetStats)
	}

	router.NoRoute(notFoundHandler())
	router.NoMethod(notFoundHandler())

	return router, bg, nil
}

// newLimiters builds the API-wide and auth limiters. Both are nil when rate limiting is off.
func newLimiters(cfg *config.Config, bg *BackgroundServices) (middleware.Limiter, middleware.Limiter, error) {
	rl := cfg.Security.RateLimiting
	if !rl.Enabled {
		return nil, nil, nil
	}

	apiCfg := middleware.DefaultRateLimitConfig()
	if rl.RequestsPerMinute > 0 {
		apiCfg.RequestsPerMinute = rl.RequestsPerMinute
	}
	if rl.Burst > 0 {
		apiCfg.BurstSize = rl.Burst
	}
	authCfg := middleware.AuthRateLimitConfig()
	if rl.AuthRequestsPerMinute > 0 {
		authCfg.RequestsPerMinute = rl.AuthRequestsPerMinute
	}
	if rl.AuthBurst > 0 {
		authCfg.BurstSize = rl.AuthBurst
	}

	if rl.Backend == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := middleware.NewRedisClient(ctx, rl.Redis.Addr, rl.Redis.Password, rl.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", rl.Redis.Addr, err)
		}
		bg.redisClient = client
		slog.Info("rate limiting enabled", "backend", "redis", "addr", rl.Redis.Addr)
		return middleware.NewRedisLimiter(client, apiCfg, "ratelimit:api:"),
			middleware.NewRedisLimiter(client, authCfg, "ratelimit:auth:"), nil
	}

	apiLimiter := middleware.NewMemoryLimiter(apiCfg)
	authLimiter := middleware.NewMemoryLimiter(authCfg)
	bg.rateLimiters = append(bg.rateLimiters, apiLimiter, authLimiter)
	slog.Info("rate limiting enabled", "backend", "memory",
		"requests_per_minute", apiCfg.RequestsPerMinute, "auth_requests_per_minute", authCfg.RequestsPerMinute)
	return apiLimiter, authLimiter, nil
}

// @Summary      Service index
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message, version, timestamp, endpoints"
// @Router       / [get]
func rootHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   serverName + " API Server",
			"version":   Version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"endpoints": gin.H{
				"health":      "/api/health",
				"auth":        "/api/auth",
				"models":      "/api/models",
				"deployments": "/api/deployments",
				"stats":       "/api/stats",
			},
		})
	}
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, server, version, uptime, timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /api/health [get]
func healthCheckHandler(db *sqlx.DB, startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"server":    serverName,
			"version":   Version,
			"uptime":    time.Since(startedAt).Seconds(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
func readinessHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": gin.H{"database": "unhealthy"},
				"error":  "database not ready",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": gin.H{"database": "healthy"},
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": apiVersion,
		})
	}
}

func notFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Endpoint not found",
			"message": fmt.Sprintf("The route %s %s does not exist", c.Request.Method, c.Request.URL.Path),
		})
	}
}

// LoggerMiddleware logs one structured record per request through the default slog
// handler, which telemetry.SetupLogger configures as JSON or text.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", middleware.GetRequestID(c)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS. Credentials are only allowed for explicitly listed origins.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := cfg.Security.CORS.AllowedMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "OPTIONS"}
	}
	allowMethods := strings.Join(methods, ", ")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		wildcard, listed := false, false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			switch allowedOrigin {
			case "*":
				wildcard = true
			case origin:
				listed = origin != ""
			}
		}

		switch {
		case listed:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		case wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		}
		if listed || wildcard {
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
