package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	catalogapp "github.com/syncengine/backend/internal/application/catalog"
	eventapp "github.com/syncengine/backend/internal/application/event"
	syncapp "github.com/syncengine/backend/internal/application/sync"
	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
	"github.com/syncengine/backend/internal/infrastructure/cache"
	"github.com/syncengine/backend/internal/infrastructure/channels"
	"github.com/syncengine/backend/internal/infrastructure/config"
	"github.com/syncengine/backend/internal/infrastructure/event"
	"github.com/syncengine/backend/internal/infrastructure/logger"
	"github.com/syncengine/backend/internal/infrastructure/persistence"
	"github.com/syncengine/backend/internal/infrastructure/scheduler"
	"github.com/syncengine/backend/internal/interfaces/http/handler"
	"github.com/syncengine/backend/internal/interfaces/http/middleware"
	"github.com/syncengine/backend/internal/interfaces/http/router"
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
		_ = log.Sync()
	}()

	log.Info("Starting sync engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database connection with a GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database ready", zap.String("driver", cfg.Database.Driver))

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	channelRepo := persistence.NewGormChannelRepository(db.DB)
	operationStore := persistence.NewGormOperationStore(db.DB)
	conflictRepo := persistence.NewGormConflictRepository(db.DB)
	eventStore := event.NewGormEventStore(db.DB)

	// Event dispatcher
	dispatcher := event.NewDispatcher(eventStore, event.DispatcherConfig{
		DispatchInterval: cfg.Event.DispatchInterval,
		BatchSize:        cfg.Event.BatchSize,
	}, log)

	// Delivery adapters, one per channel kind
	adapters := syncdomain.NewAdapterRegistry()
	channels.RegisterAll(adapters, &http.Client{Timeout: 30 * time.Second}, log)

	// Operation scheduler
	syncScheduler := scheduler.NewSyncScheduler(operationStore, channelRepo, adapters, scheduler.Config{
		Enabled:      cfg.Scheduler.Enabled,
		TickInterval: cfg.Scheduler.TickInterval,
		BatchLimit:   cfg.Scheduler.BatchLimit,
		BaseBackoff:  cfg.Scheduler.BaseBackoff,
		MaxBackoff:   cfg.Scheduler.MaxBackoff,
	}, log)

	// Application services
	productService := catalogapp.NewProductService(productRepo, dispatcher, log)
	logService := eventapp.NewLogService(dispatcher, eventStore)
	syncService := syncapp.NewService(channelRepo, operationStore, productRepo, syncScheduler, log)
	conflictService := syncapp.NewConflictService(conflictRepo, channelRepo, productRepo, dispatcher, syncapp.ConflictConfig{
		DetectionWindow: cfg.Conflict.DetectionWindow,
		DefaultPolicy:   syncdomain.ResolutionPolicy(cfg.Conflict.DefaultPolicy),
	}, log)
	metricsCollector := syncapp.NewMetricsCollector(operationStore, channelRepo, eventStore, conflictRepo, log)

	// Fan-out consumer turns product events into per-channel operations.
	// Dispatch is at-least-once and high-priority kinds arrive twice on
	// purpose, so the consumer always runs behind dedupe. The config flag
	// only chooses the backing store, never turns dedupe off.
	fanOut := syncapp.NewProductChangeConsumer(channelRepo, operationStore, productRepo, syncScheduler, log)
	var dedupeStore shared.IdempotencyStore
	if cfg.Event.DedupeEnabled {
		factory := cache.NewDedupeStoreFactory(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cache.WithLogger(log), cache.WithInMemoryFallback(true))

		dedupeStore, err = factory.CreateStore()
		if err != nil {
			log.Fatal("Failed to create dedupe store", zap.Error(err))
		}
	} else {
		dedupeStore = cache.NewInMemoryDedupeStore()
	}
	consumer := event.NewIdempotentConsumer(fanOut, dedupeStore, log,
		event.WithDedupeConfig(shared.IdempotencyConfig{
			TTL:     cfg.Event.DedupeTTL,
			Enabled: true,
		}),
	)
	if err := dispatcher.Subscribe(consumer); err != nil {
		log.Fatal("Failed to subscribe fan-out consumer", zap.Error(err))
	}

	// Start background loops
	runCtx := context.Background()
	if err := dispatcher.Start(runCtx); err != nil {
		log.Fatal("Failed to start event dispatcher", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		if err := syncScheduler.Start(runCtx); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
	}

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	middleware.SetupValidator()
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Handlers
	productHandler := handler.NewProductHandler(productService)
	channelHandler := handler.NewChannelHandler(syncService)
	syncHandler := handler.NewSyncHandler(syncService, metricsCollector)
	eventHandler := handler.NewEventHandler(logService)
	conflictHandler := handler.NewConflictHandler(conflictService)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	catalogRoutes := router.NewDomainGroup("catalog", "/catalog")
	catalogRoutes.POST("/products", productHandler.Create)
	catalogRoutes.GET("/products", productHandler.List)
	catalogRoutes.GET("/products/:id", productHandler.GetByID)
	catalogRoutes.PUT("/products/:id", productHandler.Update)
	catalogRoutes.PUT("/products/:id/price", productHandler.SetPrice)
	catalogRoutes.POST("/products/:id/inventory/adjust", productHandler.AdjustInventory)
	catalogRoutes.PUT("/products/:id/inventory", productHandler.SetInventory)
	catalogRoutes.POST("/products/:id/deactivate", productHandler.Deactivate)
	r.Register(catalogRoutes)

	channelRoutes := router.NewDomainGroup("channels", "/channels")
	channelRoutes.POST("", channelHandler.Register)
	channelRoutes.GET("", channelHandler.List)
	channelRoutes.GET("/:id", channelHandler.GetByID)
	channelRoutes.POST("/:id/activate", channelHandler.Activate)
	channelRoutes.POST("/:id/deactivate", channelHandler.Deactivate)
	r.Register(channelRoutes)

	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.POST("/operations", syncHandler.Schedule)
	syncRoutes.GET("/operations/:id", syncHandler.GetOperation)
	syncRoutes.GET("/products/:id/status", syncHandler.ProductStatus)
	syncRoutes.GET("/metrics", syncHandler.Metrics)
	r.Register(syncRoutes)

	eventRoutes := router.NewDomainGroup("events", "/events")
	eventRoutes.POST("", eventHandler.Append)
	eventRoutes.GET("/aggregates/:id", eventHandler.History)
	eventRoutes.POST("/replay", eventHandler.Replay)
	eventRoutes.GET("/statistics", eventHandler.Statistics)
	r.Register(eventRoutes)

	conflictRoutes := router.NewDomainGroup("conflicts", "/conflicts")
	conflictRoutes.POST("/observations", conflictHandler.RecordObservation)
	conflictRoutes.GET("", conflictHandler.List)
	conflictRoutes.GET("/:id", conflictHandler.GetByID)
	conflictRoutes.POST("/:id/resolve", conflictHandler.Resolve)
	r.Register(conflictRoutes)

	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if cfg.Scheduler.Enabled {
		if err := syncScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler shutdown error", zap.Error(err))
		}
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Error("Dispatcher shutdown error", zap.Error(err))
	}
	if dedupeStore != nil {
		if err := dedupeStore.Close(); err != nil {
			log.Error("Dedupe store close error", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports process and database health
func healthHandler(db *persistence.Database) gin.HandlerFunc {
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
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
