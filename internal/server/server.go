// Package server contains the HTTP handlers for the dispatch API.
package server

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"dispatch/internal/cache"
	"dispatch/internal/config"
	"dispatch/internal/database"
	"dispatch/internal/featureflags"
	"dispatch/internal/jobs"
	"dispatch/internal/lifecycle"
	"dispatch/internal/mail"
	"dispatch/internal/middleware"
	"dispatch/internal/models"
	"dispatch/internal/notifications"
	"dispatch/internal/notify"
	"dispatch/internal/repository"
	"dispatch/internal/service"
	"dispatch/internal/sla"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	tokenIssuer   = "dispatch-api"
	tokenAudience = "dispatch-client"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo         repository.UserRepository
	partnerRepo      repository.PartnerRepository
	branchRepo       repository.BranchRepository
	requestRepo      repository.RequestRepository
	assignmentRepo   repository.AssignmentRepository
	statusLogRepo    repository.StatusLogRepository
	notificationRepo repository.NotificationRepository
	settingRepo      repository.SettingRepository

	notifier     *notifications.Notifier
	featureFlags *featureflags.Manager
	mailer       mail.Mailer
	dispatcher   *notify.Dispatcher
	scheduler    *jobs.Scheduler

	machine   *lifecycle.Machine
	slaPolicy *sla.Policy

	requestService      *service.RequestService
	partnerService      *service.PartnerService
	notificationService *service.NotificationService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Initialize Redis
	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	partnerRepo := repository.NewPartnerRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	statusLogRepo := repository.NewStatusLogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Initialize Prometheus metrics
	prom := middleware.InitMetrics("dispatch-api")

	server := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   prom,
		userRepo:         userRepo,
		partnerRepo:      partnerRepo,
		branchRepo:       branchRepo,
		requestRepo:      requestRepo,
		assignmentRepo:   assignmentRepo,
		statusLogRepo:    statusLogRepo,
		notificationRepo: notificationRepo,
		settingRepo:      settingRepo,
		featureFlags:     featureflags.NewManager(cfg.FeatureFlags),
	}

	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}
	server.mailer = buildMailer(cfg)

	server.machine = lifecycle.NewMachine(db)
	server.slaPolicy = sla.NewPolicy(settingRepo, middleware.Logger)

	fanout := notify.NewFanout(
		userRepo, requestRepo, notificationRepo, settingRepo,
		server.mailer, server.notifier, server.featureFlags, middleware.Logger,
	)
	server.dispatcher = notify.NewDispatcher(fanout, cfg.NotifyBuffer, middleware.Logger)

	server.requestService = service.NewRequestService(
		requestRepo, branchRepo, assignmentRepo, statusLogRepo,
		server.machine, server.slaPolicy, server.dispatcher,
	)
	server.partnerService = service.NewPartnerService(partnerRepo, branchRepo, userRepo, settingRepo)
	server.notificationService = service.NewNotificationService(notificationRepo)

	server.scheduler = jobs.NewScheduler(middleware.Logger)
	server.scheduler.Register(jobs.NewSLASweep(
		requestRepo, server.machine, server.dispatcher, cfg.SLASweepInterval, middleware.Logger,
	))

	return server, nil
}

// buildMailer selects the SMTP relay when configured, otherwise the
// log-only mailer used in development.
func buildMailer(cfg *config.Config) mail.Mailer {
	if cfg.SMTPAddr == "" {
		return &mail.LogMailer{Log: middleware.Logger}
	}
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		host := cfg.SMTPAddr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, host)
	}
	return &mail.SMTPMailer{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom, Auth: auth}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Dispatch Backend Metrics Dashboard",
	}))

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)

	// Public browse routes
	api.Get("/branches/suggest", middleware.RateLimit(
		s.redis, 30, time.Minute, "suggest_branch"), s.SuggestBranch)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	// Request lifecycle routes
	requests := protected.Group("/requests")
	requests.Post("/", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_request"), s.CreateRequest)
	requests.Get("/", s.ListRequests)
	// Specific routes before the generic /:id ones
	requests.Get("/number/:number", s.GetRequestByNumber)
	requests.Post("/:id/assign", s.AdminRequired(), s.AssignRequest)
	requests.Post("/:id/status", s.UpdateRequestStatus)
	requests.Post("/:id/close", s.AdminRequired(), s.CloseRequest)
	requests.Post("/:id/rate", s.RateRequest)
	requests.Get("/:id/timeline", s.GetRequestTimeline)
	requests.Get("/:id", s.GetRequest)

	// Notification routes
	notificationsGroup := protected.Group("/notifications")
	notificationsGroup.Get("/", s.ListNotifications)
	notificationsGroup.Get("/unread-count", s.UnreadNotificationCount)
	notificationsGroup.Post("/:id/read", s.MarkNotificationRead)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/partners", s.CreatePartner)
	admin.Get("/partners", s.ListPartners)
	admin.Get("/partners/:id", s.GetPartner)
	admin.Put("/partners/:id/categories", s.SetPartnerCategories)
	admin.Post("/partners/:id/branches", s.CreateBranch)
	admin.Get("/partners/:id/branches", s.ListBranches)
	admin.Put("/branches/:id/active", s.SetBranchActive)
	admin.Post("/branches/:id/members", s.AddBranchMember)
	admin.Put("/settings/sla-timeout", s.SetSLATimeout)
	admin.Put("/settings/ops-emails", s.SetOpsEmails)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis is optional; notifications degrade to DB rows only.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userType is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userType, _ := c.Locals("userType").(string)
		if userType != string(models.UserTypeAdmin) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}
		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		// Parse and validate token
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			// Validate signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		// Extract claims
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		// Validate issuer and audience
		if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != tokenIssuer {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token issuer"))
		}
		if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != tokenAudience {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token audience"))
		}

		// Extract user ID from subject claim
		sub, ok := claims["sub"].(string)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid subject claim"))
		}

		userID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		// Check JTI for revocation
		if jti, exists := claims["jti"].(string); exists && jti != "" {
			if s.redis != nil {
				isBlacklisted, err := s.redis.Exists(c.Context(), "blacklist:"+jti).Result()
				if err == nil && isBlacklisted > 0 {
					return models.RespondWithError(c, fiber.StatusUnauthorized,
						models.NewUnauthorizedError("Token has been revoked"))
				}
			}
		}

		// Store identity in context
		c.Locals("userID", uint(userID))
		if userType, ok := claims["typ"].(string); ok {
			c.Locals("userType", userType)
		}
		if pidStr, ok := claims["pid"].(string); ok && pidStr != "" {
			if pid, err := strconv.ParseUint(pidStr, 10, 32); err == nil {
				c.Locals("partnerID", uint(pid))
			}
		}

		// Sync to UserContext for logging and downstream services
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, uint(userID))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Dispatch API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Custom error handler
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Background workers
	s.dispatcher.Start(s.shutdownCtx)
	s.scheduler.Start(s.shutdownCtx)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop background workers
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Drain the notification queue and wait for jobs
	if s.dispatcher != nil {
		if err := s.dispatcher.Shutdown(ctx); err != nil {
			log.Printf("error shutting down notification dispatcher: %v", err)
		}
	}
	if s.scheduler != nil {
		s.scheduler.Wait()
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
