// Package main provides the main entry point for the phishing simulation campaign engine
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/phishguard/phishsim/app/handlers"
	"github.com/phishguard/phishsim/app/middleware"
	"github.com/phishguard/phishsim/app/router"
	"github.com/phishguard/phishsim/app/scheduler"
	"github.com/phishguard/phishsim/app/services"
	businessflow "github.com/phishguard/phishsim/business_flow"
	"github.com/phishguard/phishsim/config"
	"github.com/phishguard/phishsim/models"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/phishguard/phishsim/repository"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting PhishSim campaign engine...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers before the HTTP server so no new work is
	// produced while the server drains
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the default logger to stdout and a rotated file
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var out io.Writer = rotated
	if cfg.Output == "both" {
		out = io.MultiWriter(os.Stdout, rotated)
	}
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// migrateDatabase applies the schema for all engine models
func migrateDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.DirectoryUser{},
		&models.Campaign{},
		&models.Recipient{},
		&models.TrackingEvent{},
		&models.Webhook{},
		&models.WebhookDelivery{},
		&models.AuditLog{},
	)
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	rc := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s:%d (db=%d)", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity
// issues in the logs. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeTransport selects the outbound email transport
func initializeTransport(cfg config.DispatchConfig) services.EmailTransport {
	switch cfg.TransportMode {
	case "mock":
		return services.NewMockEmailTransport(nil)
	default:
		log.Printf("Unknown transport mode %q, falling back to mock", cfg.TransportMode)
		return services.NewMockEmailTransport(nil)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := migrateDatabase(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))
	}

	// Repositories
	campaignRepo := repository.NewCampaignRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	eventRepo := repository.NewTrackingEventRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)
	deliveryRepo := repository.NewWebhookDeliveryRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services
	tokenService, err := services.NewTokenService(cfg.JWT.SecretKey, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	emitter := services.NewChannelEmitter(cfg.Dispatch.EventBuffer, nil)
	transport := initializeTransport(cfg.Dispatch)
	links := services.NewTrackingLinkBuilder(cfg.Tracking.PublicBaseURL)

	// Dispatch engine and webhook worker
	engine := scheduler.NewEngine(campaignRepo, recipientRepo, eventRepo, transport, links, emitter, cfg.Dispatch.PollInterval)
	worker := scheduler.NewWebhookWorker(webhookRepo, deliveryRepo, emitter, cfg.Webhook.PollInterval)

	// Business flows
	resolver := businessflow.NewTargetResolver(directoryRepo)
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, recipientRepo, directoryRepo, auditRepo, resolver, emitter, engine, db)
	trackingFlow := businessflow.NewTrackingFlow(recipientRepo, campaignRepo, eventRepo, auditRepo, emitter, rc, nil)
	statsFlow := businessflow.NewStatsFlow(campaignRepo, recipientRepo, eventRepo)
	webhookFlow := businessflow.NewWebhookFlow(webhookRepo, deliveryRepo, auditRepo)

	engine.SetStartScheduledFunc(campaignFlow.StartScheduledCampaign)

	stopFuncs = append(stopFuncs, engine.Start(context.Background()))
	stopFuncs = append(stopFuncs, worker.Start(context.Background()))

	// Handlers and router
	campaignHandler := handlers.NewCampaignHandler(campaignFlow, statsFlow)
	webhookHandler := handlers.NewWebhookHandler(webhookFlow)
	trackingHandler := handlers.NewTrackingHandler(trackingFlow, cfg.Tracking.DefaultRedirectURL)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	r := router.NewFiberRouter(campaignHandler, webhookHandler, trackingHandler, authMiddleware, cfg.Security.AllowedOrigins)

	return &Application{
		router:    r,
		config:    cfg,
		server:    r.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
