package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCCTP/burngate/internal/config"
	"github.com/GoCCTP/burngate/internal/handler"
	"github.com/GoCCTP/burngate/internal/middleware"
	"github.com/GoCCTP/burngate/internal/pkg/logger"
	"github.com/GoCCTP/burngate/internal/repository"
	"github.com/GoCCTP/burngate/internal/service"
	"github.com/GoCCTP/burngate/internal/stream"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	logger.SetLevel(cfg.Server.LogLevel)

	// 2. Initialize Persistence
	// Usage counters and idempotency records (Redis > Memory)
	var usageRepo service.UsageRepo
	var idempotencyStore middleware.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			usageRepo = redisClient
			idempotencyStore = repository.NewRedisIdempotencyStore(
				redisClient, time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if idempotencyStore == nil {
		idempotencyStore = middleware.NewInMemIdempotencyStore()
	}
	if usageRepo == nil {
		usageRepo = service.NewMemUsageStore()
	}

	// Audit Persistence (Postgres > Local File)
	var auditRepo service.AuditRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			pgRepo := repository.NewPostgresAuditRepo(db)
			auditRepo = pgRepo
			if days := cfg.Database.AuditRetentionDays; days > 0 {
				go runAuditRetention(pgRepo, time.Duration(days)*24*time.Hour)
			}
		} else {
			logger.Error("⚠️ Failed to connect to DB, audit logs will be file-only", "error", err)
		}
	}

	auditSvc, err := service.NewAuditService("./logs", auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	// 3. Initialize Core Services
	hub := stream.NewHub()

	facilitator, err := service.NewFacilitator(cfg, usageRepo, hub)
	if err != nil {
		log.Fatalf("Failed to initialize facilitator: %v", err)
	}

	// 4. Initialize Handlers
	transferHandler := handler.NewTransferHandler(facilitator)
	auditHandler := handler.NewAuditHandler(auditSvc)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(auditSvc))

	r.GET("/", transferHandler.Root)
	r.GET("/health", transferHandler.Health)
	r.GET("/extract-destination/:nonce", transferHandler.ExtractDestination)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/events", hub.Handle)

	// Transfer routes pay gas, so they get the full protective stack.
	transfers := r.Group("/")
	transfers.Use(middleware.AuthMiddleware(cfg))
	transfers.Use(middleware.RateLimitMiddleware(cfg.Facilitator.RateLimitRPS, cfg.Facilitator.RateLimitBurst))
	transfers.Use(middleware.IdempotencyMiddleware(idempotencyStore))
	{
		transfers.POST("/transfer", transferHandler.Transfer)
		transfers.POST("/transfer-from-nonce", transferHandler.TransferFromNonce)
	}

	// Operator-only audit trail.
	r.GET("/audit", middleware.AuthMiddleware(cfg), auditHandler.List)

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 BurnGate started", "port", cfg.Server.Port, "account", facilitator.Account().Hex())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Drain HTTP first: in-flight requests still log audit entries.
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	hub.Close()
	facilitator.Close()
	auditSvc.Close()

	logger.Info("Server exiting")
}

// runAuditRetention prunes old audit rows once a day.
func runAuditRetention(repo *repository.PostgresAuditRepo, retention time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if err := repo.Cleanup(context.Background(), retention); err != nil {
			logger.Warn("audit retention cleanup failed", "error", err)
		}
	}
}
