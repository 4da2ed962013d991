package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	integrationapp "github.com/posbridge/backend/internal/application/integration"
	menuapp "github.com/posbridge/backend/internal/application/menu"
	"github.com/posbridge/backend/internal/domain/integration"
	"github.com/posbridge/backend/internal/infrastructure/cache"
	"github.com/posbridge/backend/internal/infrastructure/config"
	"github.com/posbridge/backend/internal/infrastructure/delivery"
	"github.com/posbridge/backend/internal/infrastructure/logger"
	"github.com/posbridge/backend/internal/infrastructure/persistence"
	"github.com/posbridge/backend/internal/infrastructure/scheduler"
	"github.com/posbridge/backend/internal/infrastructure/telemetry"
	"github.com/posbridge/backend/internal/infrastructure/webhook"
	"github.com/posbridge/backend/internal/interfaces/http/handler"
	"github.com/posbridge/backend/internal/interfaces/http/middleware"
	"github.com/posbridge/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting POS Bridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Mirror structured logs to the collector alongside traces and metrics
	logsProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Warn("Failed to initialize log export", zap.Error(err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := logsProvider.Shutdown(ctx); err != nil {
				log.Error("Error shutting down logger provider", zap.Error(err))
			}
		}()
		if logsProvider.IsEnabled() {
			otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
				ServiceName:    cfg.Telemetry.ServiceName,
				LoggerProvider: logsProvider,
				Level:          zapcore.InfoLevel,
			})
			log = telemetry.NewBridgedLogger(log.Core(), otelCore, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
		}
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Database query tracing (otelgorm + slow query detection)
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	// Database query and connection pool metrics
	if cfg.Telemetry.Enabled {
		dbMetrics, err := telemetry.NewDBMetrics(meterProvider.Meter("gorm"), telemetry.DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err != nil {
			log.Warn("Failed to create database metrics", zap.Error(err))
		} else if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
			log.Warn("Failed to register database metrics plugin", zap.Error(err))
		} else if sqlDB, derr := db.DB.DB(); derr == nil {
			dbMetrics.SetSQLDB(sqlDB)
			dbMetrics.StartPoolStatsCollection(context.Background())
			defer dbMetrics.Stop()
		}
	}

	// Initialize repositories
	credentialRepo := persistence.NewGormCredentialRepository(db.DB)
	platformOrderRepo := persistence.NewGormPlatformOrderRepository(db.DB)
	productMappingRepo := persistence.NewGormProductMappingRepository(db.DB)
	deadLetterRepo := persistence.NewGormDeadLetterRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	menuItemRepo := persistence.NewGormMenuItemRepository(db.DB)
	menuCategoryRepo := persistence.NewGormMenuCategoryRepository(db.DB)
	ticketRepo := persistence.NewGormTicketRepository(db.DB)

	// Idempotency store: Redis with in-memory fallback for development
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Webhook signature verification and source IP allowlisting
	verifier := webhook.NewVerifier(log)
	ipAllowlist := webhook.NewIPAllowlist(log)

	// Platform adapter registry
	registry, err := delivery.NewRegistry(delivery.Config{
		Trendyol:    delivery.TrendyolConfig{BaseURL: cfg.Delivery.TrendyolBaseURL},
		Yemeksepeti: delivery.YemeksepetiConfig{BaseURL: cfg.Delivery.YemeksepetiBaseURL},
		Getir:       delivery.GetirConfig{BaseURL: cfg.Delivery.GetirBaseURL},
		Migros:      delivery.MigrosConfig{BaseURL: cfg.Delivery.MigrosBaseURL},
		Fuudy:       delivery.FuudyConfig{BaseURL: cfg.Delivery.FuudyBaseURL},
	}, delivery.Dependencies{
		Credentials: credentialRepo,
		Verifier:    verifier,
		IPAllowlist: ipAllowlist,
		Logger:      log,
	})
	if err != nil {
		log.Fatal("Failed to build platform registry", zap.Error(err))
	}

	// Initialize application services
	menuService := menuapp.NewService(menuItemRepo, menuCategoryRepo, ticketRepo, log)
	orderService := integrationapp.NewOrderIntegrationService(
		registry,
		platformOrderRepo,
		credentialRepo,
		deadLetterRepo,
		syncLogRepo,
		idempotencyStore,
		menuService,
		log,
	)
	menuSyncService := integrationapp.NewMenuSyncService(
		registry,
		productMappingRepo,
		syncLogRepo,
		credentialRepo,
		menuService,
		log,
	)
	credentialService := integrationapp.NewCredentialService(registry, credentialRepo, log)
	productMappingService := integrationapp.NewProductMappingService(productMappingRepo)

	// Initialize background workers
	pollExecutor := scheduler.NewPollExecutor(
		registry,
		credentialRepo,
		syncLogRepo,
		func(ctx context.Context, tenantID uuid.UUID, order *integration.PlatformOrder) (bool, error) {
			return orderService.HandlePolledOrder(ctx, tenantID, order)
		},
		log,
	)
	pollScheduler, err := scheduler.NewPollScheduler(scheduler.PollSchedulerConfig{
		Enabled:           cfg.Polling.Enabled,
		MaxConcurrentJobs: cfg.Polling.MaxConcurrentJobs,
		JobTimeout:        cfg.Polling.JobTimeout,
		RetryAttempts:     cfg.Polling.RetryAttempts,
		RetryDelay:        cfg.Polling.RetryDelay,
		PollInterval:      cfg.Polling.PollInterval,
	}, pollExecutor, log)
	if err != nil {
		log.Fatal("Failed to create poll scheduler", zap.Error(err))
	}
	pollTrigger := scheduler.NewPollTrigger(scheduler.PollTriggerConfig{
		CheckInterval: cfg.Polling.TriggerCheckInterval,
	}, pollScheduler, credentialRepo, log)

	deadLetterWorker := scheduler.NewDeadLetterWorker(scheduler.DeadLetterWorkerConfig{
		Enabled:       cfg.DeadLetter.Enabled,
		CheckInterval: cfg.DeadLetter.CheckInterval,
		BatchSize:     cfg.DeadLetter.BatchSize,
		RetryTimeout:  cfg.DeadLetter.RetryTimeout,
		PurgeHour:     cfg.DeadLetter.PurgeHour,
	}, deadLetterRepo, orderService.ReprocessDeadLetter, log)

	reconcileWorker := scheduler.NewReconcileWorker(scheduler.ReconcileWorkerConfig{
		Enabled:  cfg.Reconcile.Enabled,
		Interval: cfg.Reconcile.Interval,
		Window:   cfg.Reconcile.Window,
		Timeout:  cfg.Reconcile.Timeout,
	}, orderService, log)

	if cfg.Polling.Enabled {
		if err := pollScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start poll scheduler", zap.Error(err))
		}
		defer func() {
			if err := pollScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping poll scheduler", zap.Error(err))
			}
		}()
		if err := pollTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start poll trigger", zap.Error(err))
		}
		defer func() {
			if err := pollTrigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping poll trigger", zap.Error(err))
			}
		}()
		log.Info("Order polling started",
			zap.Int("max_concurrent_jobs", cfg.Polling.MaxConcurrentJobs),
			zap.Duration("poll_interval", cfg.Polling.PollInterval),
		)
	}

	if cfg.DeadLetter.Enabled {
		if err := deadLetterWorker.Start(context.Background()); err != nil {
			log.Fatal("Failed to start dead-letter worker", zap.Error(err))
		}
		defer func() {
			if err := deadLetterWorker.Stop(context.Background()); err != nil {
				log.Error("Error stopping dead-letter worker", zap.Error(err))
			}
		}()
		log.Info("Dead-letter worker started",
			zap.Duration("check_interval", cfg.DeadLetter.CheckInterval),
			zap.Int("batch_size", cfg.DeadLetter.BatchSize),
		)
	}

	if cfg.Reconcile.Enabled {
		if err := reconcileWorker.Start(context.Background()); err != nil {
			log.Fatal("Failed to start reconcile worker", zap.Error(err))
		}
		defer func() {
			if err := reconcileWorker.Stop(context.Background()); err != nil {
				log.Error("Error stopping reconcile worker", zap.Error(err))
			}
		}()
		log.Info("Reconcile worker started",
			zap.Duration("interval", cfg.Reconcile.Interval),
			zap.Duration("window", cfg.Reconcile.Window),
		)
	}

	// Initialize HTTP handlers
	webhookHandler := handler.NewWebhookHandler(orderService)
	platformOrderHandler := handler.NewPlatformOrderHandler(orderService)
	credentialsHandler := handler.NewPlatformCredentialsHandler(credentialService)
	menuSyncHandler := handler.NewMenuSyncHandler(menuSyncService)
	productMappingHandler := handler.NewProductMappingHandler(productMappingService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Tenant resolution: header first, subdomain as fallback. Webhook
	// endpoints carry X-Tenant-ID too (each platform's webhook URL is
	// registered per tenant), so no skip prefix is needed for them.
	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Logger = log
	tenantConfig.SkipPaths = []string{
		"/api/v1/ping",
		"/api/v1/system/ping",
		"/api/v1/system/info",
	}
	r.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))

	// Webhook ingestion (one endpoint per platform, keyed by path param)
	webhookRoutes := router.NewDomainGroup("webhooks", "/webhooks")
	webhookRoutes.POST("/:platform", webhookHandler.Receive)

	// Integration management (credentials, polling, restaurant status, menu sync)
	integrationRoutes := router.NewDomainGroup("integrations", "/integrations")
	integrationRoutes.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "integration service ready"})
	})
	integrationRoutes.GET("/credentials", credentialsHandler.List)
	integrationRoutes.GET("/credentials/:platform", credentialsHandler.Get)
	integrationRoutes.PUT("/credentials/:platform", credentialsHandler.Configure)
	integrationRoutes.POST("/credentials/:platform/test", credentialsHandler.TestConnection)
	integrationRoutes.PUT("/credentials/:platform/polling", credentialsHandler.SetPolling)
	integrationRoutes.GET("/credentials/:platform/restaurant-status", credentialsHandler.GetRestaurantStatus)
	integrationRoutes.PUT("/credentials/:platform/restaurant-status", credentialsHandler.SetRestaurantStatus)
	integrationRoutes.POST("/sync/:platform/menu", menuSyncHandler.SyncMenu)
	integrationRoutes.POST("/sync/:platform/availability", menuSyncHandler.SyncAvailability)
	integrationRoutes.POST("/sync/:platform/price", menuSyncHandler.SyncPrice)
	integrationRoutes.GET("/sync/:platform/status", menuSyncHandler.GetSyncStatus)

	// Platform orders (inbound order lifecycle)
	orderRoutes := router.NewDomainGroup("platform-orders", "/platform-orders")
	orderRoutes.GET("", platformOrderHandler.List)
	orderRoutes.GET("/:id", platformOrderHandler.GetByID)
	orderRoutes.POST("/:id/accept", platformOrderHandler.Accept)
	orderRoutes.POST("/:id/reject", platformOrderHandler.Reject)
	orderRoutes.POST("/:id/status", platformOrderHandler.UpdateStatus)

	// Product mappings (local menu item <-> platform product)
	mappingRoutes := router.NewDomainGroup("product-mappings", "/product-mappings")
	mappingRoutes.POST("", productMappingHandler.Create)
	mappingRoutes.POST("/batch", productMappingHandler.CreateBatch)
	mappingRoutes.GET("", productMappingHandler.List)
	mappingRoutes.GET("/:id", productMappingHandler.GetByID)
	mappingRoutes.PUT("/:id", productMappingHandler.Update)
	mappingRoutes.DELETE("/:id", productMappingHandler.Delete)

	// Register all domain groups
	r.Register(webhookRoutes).
		Register(integrationRoutes).
		Register(orderRoutes).
		Register(mappingRoutes)

	// System routes
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		body := gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		}
		if stats, err := db.Stats(); err == nil {
			body["db_pool"] = gin.H{
				"open":    stats.OpenConnections,
				"in_use":  stats.InUse,
				"idle":    stats.Idle,
				"waiting": stats.WaitCount,
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
