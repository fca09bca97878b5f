// Package api wires together all HTTP routes for the Sentinel DLP backend.
//
// Route grouping philosophy:
//   - The login, registration, and password-reset endpoints under /api/v1/auth
//     are unauthenticated but carry a stricter rate limit than the rest of the
//     API to slow brute force and reset-token farming.
//   - Everything else under /api/v1/ requires a bearer token; each route group
//     additionally declares the roles allowed to call it. All authenticated
//     mutations pass through the audit middleware.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/sentinel-dlp/sentinel-dlp/internal/api/handlers"
	"github.com/sentinel-dlp/sentinel-dlp/internal/audit"
	"github.com/sentinel-dlp/sentinel-dlp/internal/auth"
	"github.com/sentinel-dlp/sentinel-dlp/internal/config"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
	"github.com/sentinel-dlp/sentinel-dlp/internal/jobs"
	"github.com/sentinel-dlp/sentinel-dlp/internal/middleware"
	"github.com/sentinel-dlp/sentinel-dlp/internal/services"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	classifierJob *jobs.AlertClassifierJob
	shipper       *audit.MultiShipper
	redisClient   *redis.Client
	rateLimiters  []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.classifierJob != nil {
		bg.classifierJob.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Warn("failed to close audit shippers", "error", err)
		}
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	logger := slog.Default()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	policyRepo := repositories.NewPolicyRepository(db)
	alertRepo := repositories.NewAlertRepository(db)
	incidentRepo := repositories.NewIncidentRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Redis backs the cross-replica auth rate limiter and the classification
	// cache. Both degrade gracefully when it is not configured.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// Initialize services
	notifier := services.NewNotifier(&cfg.Notifications, cfg.Server.GetPublicURL(), logger)
	userService := services.NewUserService(userRepo, &cfg.Auth, notifier, logger)
	policyService := services.NewPolicyService(policyRepo, logger)
	alertService := services.NewAlertService(alertRepo, logger)
	incidentService := services.NewIncidentService(incidentRepo, logger)
	mlClient := services.NewMLClient(&cfg.ML, redisClient, logger)

	// Start the alert auto-classification job
	classifierJob := jobs.NewAlertClassifierJob(alertRepo, mlClient, &cfg.ML, logger)
	go classifierJob.Start(context.Background())

	// Initialize audit log shipping
	shipper := newAuditShipper(cfg)

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint
	router.GET("/ready", readinessHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Initialize rate limiters
	rl := cfg.Security.RateLimiting
	generalCfg := middleware.DefaultRateLimitConfig()
	if rl.RequestsPerMinute > 0 {
		generalCfg.RequestsPerMinute = rl.RequestsPerMinute
	}
	if rl.Burst > 0 {
		generalCfg.BurstSize = rl.Burst
	}
	authCfg := middleware.AuthRateLimitConfig()
	if rl.AuthRequestsPerMinute > 0 {
		authCfg.RequestsPerMinute = rl.AuthRequestsPerMinute
		authCfg.BurstSize = rl.AuthRequestsPerMinute
	}
	generalRateLimiter := middleware.NewRateLimiter(generalCfg)
	authRateLimiter := middleware.NewRateLimiter(authCfg)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(cfg, userService)
	userHandlers := handlers.NewUserHandlers(userService)
	policyHandlers := handlers.NewPolicyHandlers(policyService)
	alertHandlers := handlers.NewAlertHandlers(alertService)
	incidentHandlers := handlers.NewIncidentHandlers(incidentService)
	auditHandlers := handlers.NewAuditHandlers(auditRepo)

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints (no auth required, strictly rate limited)
		authGroup := apiV1.Group("/auth")
		if rl.Enabled {
			authGroup.Use(middleware.AuthRateLimitMiddleware(redisClient, authRateLimiter, authCfg.RequestsPerMinute))
		}
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.POST("/forgotpassword", authHandlers.ForgotPasswordHandler())
			authGroup.PUT("/resetpassword/:token", authHandlers.ResetPasswordHandler())
		}

		// Authenticated-only endpoints
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(middleware.AuthMiddleware(userRepo))
		if rl.Enabled {
			authenticatedGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		}
		if cfg.Audit.Enabled {
			// Audit all authenticated actions
			authenticatedGroup.Use(middleware.AuditMiddlewareWithShipper(auditRepo, shipper, &cfg.Audit))
		}
		{
			authenticatedGroup.GET("/auth/me", authHandlers.MeHandler())

			// User management (Admin and above)
			usersGroup := authenticatedGroup.Group("/users")
			usersGroup.Use(middleware.RequireRoles(auth.UserManageRoles))
			{
				usersGroup.GET("", userHandlers.ListUsersHandler())
				usersGroup.GET("/:id", userHandlers.GetUserHandler())
				usersGroup.POST("", userHandlers.CreateUserHandler())
				usersGroup.PUT("/:id", userHandlers.UpdateUserHandler())
				usersGroup.DELETE("/:id", userHandlers.DeleteUserHandler())
			}

			// Enforcement policies: analysts may read, admins may write
			policiesGroup := authenticatedGroup.Group("/policies")
			{
				policiesGroup.GET("", middleware.RequireRoles(auth.PolicyReadRoles), policyHandlers.ListPoliciesHandler())
				policiesGroup.GET("/:id", middleware.RequireRoles(auth.PolicyReadRoles), policyHandlers.GetPolicyHandler())
				policiesGroup.POST("", middleware.RequireRoles(auth.PolicyWriteRoles), policyHandlers.CreatePolicyHandler())
				policiesGroup.PUT("/:id", middleware.RequireRoles(auth.PolicyWriteRoles), policyHandlers.UpdatePolicyHandler())
				policiesGroup.DELETE("/:id", middleware.RequireRoles(auth.PolicyWriteRoles), policyHandlers.DeletePolicyHandler())
			}

			// Detection alerts: analysts triage, admins may delete
			alertsGroup := authenticatedGroup.Group("/alerts")
			{
				alertsGroup.GET("", middleware.RequireRoles(auth.AlertTriageRoles), alertHandlers.ListAlertsHandler())
				alertsGroup.GET("/:id", middleware.RequireRoles(auth.AlertTriageRoles), alertHandlers.GetAlertHandler())
				alertsGroup.POST("", middleware.RequireRoles(auth.AlertTriageRoles), alertHandlers.CreateAlertHandler())
				alertsGroup.PUT("/:id", middleware.RequireRoles(auth.AlertTriageRoles), alertHandlers.UpdateAlertHandler())
				alertsGroup.DELETE("/:id", middleware.RequireRoles(auth.AlertManageRoles), alertHandlers.DeleteAlertHandler())
			}

			// Escalated incidents: responders manage, admins may delete
			incidentsGroup := authenticatedGroup.Group("/incidents")
			{
				incidentsGroup.GET("", middleware.RequireRoles(auth.IncidentRoles), incidentHandlers.ListIncidentsHandler())
				incidentsGroup.GET("/:id", middleware.RequireRoles(auth.IncidentRoles), incidentHandlers.GetIncidentHandler())
				incidentsGroup.POST("", middleware.RequireRoles(auth.IncidentRoles), incidentHandlers.CreateIncidentHandler())
				incidentsGroup.PUT("/:id", middleware.RequireRoles(auth.IncidentRoles), incidentHandlers.UpdateIncidentHandler())
				incidentsGroup.POST("/:id/comments", middleware.RequireRoles(auth.IncidentRoles), incidentHandlers.AddCommentHandler())
				incidentsGroup.DELETE("/:id", middleware.RequireRoles(auth.IncidentDeleteRoles), incidentHandlers.DeleteIncidentHandler())
			}

			// Audit trail (SuperAdmin only)
			auditGroup := authenticatedGroup.Group("/audit")
			auditGroup.Use(middleware.RequireRoles(auth.AuditReadRoles))
			{
				auditGroup.GET("", auditHandlers.ListAuditLogsHandler())
				auditGroup.GET("/:id", auditHandlers.GetAuditLogHandler())
			}
		}
	}

	bg := &BackgroundServices{
		classifierJob: classifierJob,
		shipper:       shipper,
		redisClient:   redisClient,
		rateLimiters:  []*middleware.RateLimiter{authRateLimiter, generalRateLimiter},
	}

	return router, bg
}

// newAuditShipper builds the multi-shipper from the audit.shippers config.
// Returns nil when no shipper is enabled or construction fails; audit entries
// are still written to the database either way.
func newAuditShipper(cfg *config.Config) *audit.MultiShipper {
	configs := make([]audit.ShipperConfig, 0, len(cfg.Audit.Shippers))
	for _, sc := range cfg.Audit.Shippers {
		if !sc.Enabled {
			continue
		}
		out := audit.ShipperConfig{Enabled: true, Type: sc.Type}
		if sc.Webhook != nil {
			out.Webhook = &audit.WebhookConfig{
				URL:     sc.Webhook.URL,
				Headers: sc.Webhook.Headers,
				Timeout: time.Duration(sc.Webhook.TimeoutSecs) * time.Second,
			}
		}
		if sc.File != nil {
			out.File = &audit.FileConfig{Path: sc.File.Path}
		}
		configs = append(configs, out)
	}
	if len(configs) == 0 {
		return nil
	}

	shipper, err := audit.NewMultiShipper(configs)
	if err != nil {
		slog.Error("failed to initialize audit shippers", "error", err)
		return nil
	}
	return shipper
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", fmt.Sprintf("%v", requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
