package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/audit"
	"github.com/veridist/compliance-engine/internal/cache"
	"github.com/veridist/compliance-engine/internal/config"
	"github.com/veridist/compliance-engine/internal/database"
	"github.com/veridist/compliance-engine/internal/events"
	"github.com/veridist/compliance-engine/internal/handlers"
	"github.com/veridist/compliance-engine/internal/metrics"
	"github.com/veridist/compliance-engine/internal/override"
	"github.com/veridist/compliance-engine/internal/validation"
)

const serviceName = "compliance-engine"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := setupLogging(cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting compliance engine",
		zap.String("service", serviceName),
		zap.String("environment", cfg.Environment))

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Repositories
	transactionRepo := database.NewTransactionRepository(db, logger)
	customerRepo := database.NewCustomerRepository(db, logger)
	licenceRepo := database.NewLicenceRepository(db, logger)
	thresholdRepo := database.NewThresholdRepository(db, logger)
	substanceRepo := database.NewSubstanceRepository(db, logger)
	auditRepo := database.NewAuditRepository(db, logger)

	var thresholds validation.ThresholdReader = thresholdRepo
	if cfg.Redis.Enabled {
		thresholdCache, err := cache.NewThresholdCache(cfg.Redis, thresholdRepo, logger)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer thresholdCache.Close()
		thresholds = thresholdCache
	}

	var publisher *events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewPublisher(cfg.Kafka, logger)
		defer publisher.Close()
	}

	auditor := audit.NewRecorder(auditRepo, logger)
	collector := metrics.NewCollector()

	engine := validation.NewEngine(customerRepo, licenceRepo, transactionRepo, thresholds, substanceRepo, logger)

	var validationPublisher validation.Publisher
	var overridePublisher override.Publisher
	if publisher != nil {
		validationPublisher = publisher
		overridePublisher = publisher
	}

	validationService := validation.NewService(engine, transactionRepo, auditor, validationPublisher, collector, logger)
	overrideService := override.NewService(transactionRepo, auditor, overridePublisher, collector, logger)

	// HTTP server
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := handlers.NewHandler(validationService, overrideService, transactionRepo, logger)
	handler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down compliance engine")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("Compliance engine stopped")
}

func setupLogging(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = level

	return zapCfg.Build()
}
