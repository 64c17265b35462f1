package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	billingapp "github.com/lingobridge/backend/internal/application/billing"
	"github.com/lingobridge/backend/internal/infrastructure/billing"
	"github.com/lingobridge/backend/internal/infrastructure/config"
	"github.com/lingobridge/backend/internal/infrastructure/logger"
	"github.com/lingobridge/backend/internal/infrastructure/persistence"
	"github.com/lingobridge/backend/internal/infrastructure/scheduler"
	"github.com/lingobridge/backend/internal/interfaces/http/handler"
	"github.com/lingobridge/backend/internal/interfaces/http/middleware"
	"github.com/lingobridge/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const version = "1.0.0"

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

	log.Info("Starting LingoBridge Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize Stripe client
	stripeCfg := &billing.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		IsTestMode:    cfg.Stripe.IsTestMode,
	}
	if err := stripeCfg.Validate(); err != nil {
		log.Fatal("Invalid Stripe configuration", zap.Error(err))
	}
	stripeCfg.InitStripeClient()
	log.Info("Stripe client initialized", zap.Bool("test_mode", stripeCfg.IsTestMode))

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	eventRepo := persistence.NewGormWebhookEventRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)

	// Initialize application services
	webhookService := billingapp.NewWebhookService(billingapp.WebhookServiceConfig{
		Verifier:  billing.NewSignatureVerifier(cfg.Stripe.WebhookSecret),
		Events:    eventRepo,
		Ledger:    paymentRepo,
		Linker:    billingapp.NewInvoiceLinker(invoiceRepo, log),
		Processor: billingapp.NewLoggingPaymentProcessor(log),
		Logger:    log,
	})

	// Background dispatcher: the webhook endpoint acknowledges deliveries
	// before any of the pipeline work runs
	dispatcher := billingapp.NewDispatcher(billingapp.DispatcherConfig{
		Service:        webhookService,
		Logger:         log,
		Workers:        cfg.Webhook.Workers,
		QueueSize:      cfg.Webhook.QueueSize,
		HandlerTimeout: cfg.Webhook.HandlerTimeout,
	})
	dispatcher.Start()

	// Retention scheduler purges webhook events past their retention window
	retention := scheduler.NewRetentionScheduler(eventRepo, log, scheduler.RetentionSchedulerConfig{
		Enabled:       cfg.Retention.Enabled,
		PurgeInterval: cfg.Retention.PurgeInterval,
		PurgeTimeout:  5 * time.Minute,
	})
	if err := retention.Start(context.Background()); err != nil {
		log.Fatal("Failed to start retention scheduler", zap.Error(err))
	}

	// Setup HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		gin.Recovery(),
		middleware.BodyLimit(1<<20),
	)

	// Health endpoints outside the versioned API
	engine.GET("/health", healthHandler(db))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewStripeWebhookHandler(webhookService, dispatcher)).
		Register(handler.NewSystemHandler(cfg.App.Name, version))
	r.Setup()

	// Create HTTP server with config
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Drain queued webhook events before stopping; payments already
	// acknowledged to Stripe must not be lost on the floor
	if err := dispatcher.Shutdown(ctx); err != nil {
		log.Error("Webhook dispatcher shutdown timed out", zap.Error(err))
	}
	if err := retention.Stop(ctx); err != nil {
		log.Error("Retention scheduler shutdown timed out", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports liveness plus database reachability
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
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
