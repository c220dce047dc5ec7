package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/railtatkal/tatkal-backend/internal/config"
	"github.com/railtatkal/tatkal-backend/internal/database"
	"github.com/railtatkal/tatkal-backend/internal/handlers"
	"github.com/railtatkal/tatkal-backend/internal/middleware"
	"github.com/railtatkal/tatkal-backend/internal/services"
	"github.com/railtatkal/tatkal-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Tatkal booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	store := database.NewStore(db.DB, logger)

	// Booking cache is optional
	redisClient := newRedisClient(cfg.Redis, logger)
	var bookingCache *services.BookingCache
	if redisClient != nil {
		defer redisClient.Close()
		bookingCache = services.NewBookingCache(redisClient, cfg.Redis.BookingCacheTTL, logger)
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	gateway := services.NewCheckoutGateway(cfg.Payment, logger)
	if !gateway.IsConfigured() {
		logger.Warn("Payment gateway not configured - gateway payments will be rejected")
	}

	walletService := services.NewWalletService(store, cfg.Payment.Currency, logger)
	orchestrator := services.NewBookingOrchestratorService(
		store,
		walletService,
		gateway,
		services.NewRandomIDGenerator(),
		bookingCache,
		services.BookingOrchestratorConfig{
			Currency:         cfg.Payment.Currency,
			SessionTTL:       cfg.Payment.SessionTTL,
			VerifySignatures: cfg.Payment.VerifySignatures,
			MaxListLimit:     100,
		},
		logger,
	)
	ticketService := services.NewTicketService(cfg.Payment.Currency)

	// Stale payment sessions
	expiryService := services.NewPaymentExpiryService(
		store,
		bookingCache,
		cfg.Payment.SweepSchedule,
		cfg.Payment.SessionTTL,
		logger,
	)
	if err := expiryService.Start(); err != nil {
		logger.Fatalf("Failed to start payment expiry service: %v", err)
	}

	logger.Info("Services initialized")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(orchestrator, ticketService, logger)
	paymentHandler := handlers.NewPaymentHandler(orchestrator, logger)
	walletHandler := handlers.NewWalletHandler(walletService, cfg.Payment.Currency, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(requestLogger(logger))

	// CORS configuration
	allowAll := len(cfg.CORS.AllowedOrigins) == 1 && cfg.CORS.AllowedOrigins[0] == "*"
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     append(cfg.CORS.AllowedHeaders, middleware.RequestIDHeader),
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: !allowAll,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db, redisClient))

	authMiddleware := middleware.AuthMiddleware(jwtService, logger)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Gateway callback (public, signature-verified)
		v1.POST("/payments/callback", paymentHandler.PaymentCallback)

		bookings := v1.Group("/bookings")
		bookings.Use(authMiddleware)
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
			bookings.GET("/:id/ticket", bookingHandler.GetTicket)
		}

		payments := v1.Group("/payments")
		payments.Use(authMiddleware)
		{
			payments.POST("/initiate", paymentHandler.InitiatePayment)
			payments.GET("/:id/status", paymentHandler.GetPaymentStatus)
		}

		profiles := v1.Group("/profiles")
		profiles.Use(authMiddleware)
		{
			profiles.GET("/:id/wallet", walletHandler.GetBalance)
			profiles.POST("/:id/wallet/deposit", walletHandler.Deposit)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop the sweeper before the pool closes
	expiryService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// newRedisClient connects the booking cache, or returns nil when it is disabled
// or unreachable
func newRedisClient(cfg config.RedisConfig, logger *logrus.Logger) *redis.Client {
	if cfg.URL == "" {
		logger.Info("REDIS_URL not set - booking cache disabled")
		return nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.WithError(err).Warn("Invalid REDIS_URL - booking cache disabled")
		return nil
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable - booking cache disabled")
		client.Close()
		return nil
	}

	logger.WithField("ttl", cfg.BookingCacheTTL.String()).Info("Booking cache enabled")
	return client
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"request_id": middleware.GetRequestID(c),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		// Add user context if available
		if userID, exists := c.Get("user_id"); exists {
			fields["user_id"] = userID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db *database.PostgresDB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.Healthy(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		cacheStatus := "disabled"
		if redisClient != nil {
			cacheStatus = "healthy"
			// Cache failures degrade to database reads
			if err := redisClient.Ping(ctx).Err(); err != nil {
				cacheStatus = "unhealthy"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"cache":     cacheStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
