package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"custody-sweep.backend/internal/config"
	"custody-sweep.backend/internal/infrastructure/blockchain"
	"custody-sweep.backend/internal/infrastructure/jobs"
	"custody-sweep.backend/internal/infrastructure/repositories"
	"custody-sweep.backend/internal/interfaces/http/handlers"
	"custody-sweep.backend/internal/interfaces/http/middleware"
	"custody-sweep.backend/internal/observability"
	"custody-sweep.backend/internal/usecases"
	"custody-sweep.backend/pkg/logger"
	"custody-sweep.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	newChainClient = func(rpcURL string) (usecases.ChainClient, error) {
		return blockchain.NewEVMClient(rpcURL)
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := loadCfg()

	// Initialize Logger
	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Initialize Redis
	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	// Set Gin mode
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database using GORM
	dsn := cfg.Database.URL()
	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("⚠️ Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("✅ Connected to PostgreSQL via GORM")
	}

	// Initialize chain client
	chainClient, err := newChainClient(cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to chain RPC: %w", err)
	}

	energy := blockchain.NewHTTPEnergyProvisioner(cfg.Energy.BaseURL, cfg.Energy.Timeout)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Initialize repositories
	walletRepo := repositories.NewMasterWalletRepository(db)
	addrRepo := repositories.NewDepositAddressRepository(db)
	queueRepo := repositories.NewSweepQueueRepository(db)
	logRepo := repositories.NewSweepLogRepository(db)

	// Initialize usecases
	vaultUsecase := usecases.NewVaultUsecase(walletRepo, cfg.Security.SeedEncryptionKey)
	allocatorUsecase := usecases.NewAllocatorUsecase(walletRepo, addrRepo, vaultUsecase)
	eligibilityUsecase := usecases.NewEligibilityUsecase(
		addrRepo, walletRepo, queueRepo, logRepo,
		chainClient, redis.SweepLocker{}, cfg.Sweep, cfg.Chain.MinConfirmations, metrics,
	)
	executor := usecases.NewSweepExecutor(
		addrRepo, walletRepo, queueRepo, logRepo,
		vaultUsecase, chainClient, energy, cfg.Chain.BroadcastTimeout, metrics,
	)
	retryCtrl := usecases.NewRetryController(
		queueRepo, logRepo, walletRepo, chainClient,
		cfg.Sweep.MaxAttempts, cfg.Sweep.BackoffBase, cfg.Sweep.BackoffCap,
		cfg.Sweep.ReconcileGrace, metrics,
	)
	queryUsecase := usecases.NewSweepQueryUsecase(queueRepo, logRepo, metrics)

	// Initialize handlers
	tenantHandler := handlers.NewTenantHandler(vaultUsecase)
	addressHandler := handlers.NewAddressHandler(allocatorUsecase, eligibilityUsecase)
	sweepHandler := handlers.NewSweepHandler(eligibilityUsecase, queryUsecase, redis.SetEmergencyStop, redis.ClearEmergencyStop)

	// Start background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := jobs.NewSweepScheduler(
		queueRepo, executor, retryCtrl, redis.EmergencyStopped,
		cfg.Sweep.Workers, cfg.Sweep.ClaimInterval, cfg.Sweep.BatchMaxSize, cfg.Sweep.BatchMaxWait,
	)
	go scheduler.Start(ctx)

	reconciler := jobs.NewReconciliationJob(retryCtrl, cfg.Sweep.ReconcileInterval)
	go reconciler.Start(ctx)

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	registerHealthRoute(r)
	registerMetricsRoute(r, registry)
	registerAPIV1Routes(r, routeDeps{
		tenantHandler:  tenantHandler,
		addressHandler: addressHandler,
		sweepHandler:   sweepHandler,
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		scheduler.Stop()
		reconciler.Stop()
		cancel()
	}()

	// Start server
	log.Printf("🚀 Custody Sweep Backend starting on port %s", cfg.Server.Port)
	log.Printf("📚 API: http://localhost:%s/api/v1", cfg.Server.Port)
	log.Printf("❤️ Health: http://localhost:%s/health", cfg.Server.Port)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
