package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/adapter/chain/evm"
	httpHandler "marketplace-settlement/internal/adapter/http/handler"
	"marketplace-settlement/internal/adapter/http/middleware"
	pgStorage "marketplace-settlement/internal/adapter/storage/postgres"
	redisStorage "marketplace-settlement/internal/adapter/storage/redis"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/internal/service"
	"marketplace-settlement/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Int64("chain_id", cfg.Chain.ChainID).
		Msg("Starting marketplace settlement service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	assetRepo := pgStorage.NewAssetRepo(pool)
	listingRepo := pgStorage.NewListingRepo(pool)
	settlementRepo := pgStorage.NewSettlementRepo(pool)
	batchRepo := pgStorage.NewBatchRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	chainCache := redisStorage.NewChainCache(rdb, cfg.Cache.GasPriceTTL, cfg.Cache.BlockNumberTTL)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)

	// Chain endpoints
	primary, err := evm.Dial(ctx, "primary", cfg.Chain.PrimaryRPCURL, cfg.Chain, chainCache, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to dial primary chain endpoint")
	}
	defer primary.Close()
	primary.UseSignerLock(nonceStore)
	if primary.From() == (common.Address{}) {
		log.Warn().Msg("No signer key configured, on-chain settlement will fail")
	} else {
		log.Info().Str("signer", primary.From().Hex()).Msg("Custody signer loaded")
	}

	healthCheckers := []ports.HealthChecker{
		pgStorage.NewHealthCheck(pool),
		redisStorage.NewHealthCheck(rdb),
		primary,
	}

	// A nil *evm.Client must not reach the services as a non-nil interface.
	var fallback ports.ChainClient
	if cfg.Chain.FallbackRPCURL != "" {
		fb, err := evm.Dial(ctx, "fallback", cfg.Chain.FallbackRPCURL, cfg.Chain, chainCache, log)
		if err != nil {
			log.Warn().Err(err).Msg("Fallback chain endpoint unavailable, continuing without it")
		} else {
			defer fb.Close()
			fb.UseSignerLock(nonceStore)
			fallback = fb
			healthCheckers = append(healthCheckers, fb)
		}
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	// Core pipeline
	retrier := service.NewRetrier(service.RetryPolicyFromConfig(cfg.Retry), metrics, log)
	monitor := service.NewMonitorService(primary, service.MonitorConfigFromChain(cfg.Chain), metrics, log)
	marketplaceSvc := service.NewMarketplaceService(listingRepo, assetRepo, ledgerRepo, transactor, log)
	settlementSvc := service.NewSettlementService(service.SettlementDeps{
		Settlements: settlementRepo,
		Listings:    listingRepo,
		Ledger:      ledgerRepo,
		Assets:      assetRepo,
		Transactor:  transactor,
		Cache:       idempotencyCache,
		Primary:     primary,
		Fallback:    fallback,
		Retrier:     retrier,
		Tracker:     monitor,
		Metrics:     metrics,
	}, log)

	batchTracker := service.NewBatchTracker(batchRepo, log)
	batchSvc := service.NewBatchService(batchTracker, primary, fallback, retrier, metrics, service.BatchServiceConfig{
		Workers:       cfg.Batch.Workers,
		TokenContract: cfg.Chain.TokenContract,
	}, log)

	if n, err := batchSvc.RecoverInterrupted(ctx); err != nil {
		log.Warn().Err(err).Msg("Batch recovery failed")
	} else if n > 0 {
		log.Warn().Int("batches", n).Msg("Marked interrupted batches as failed")
	}

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Background workers
	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		monitor.Run(ctx)
	}()
	go func() {
		defer workers.Done()
		settlementSvc.Run(ctx, cfg.Chain.RecheckInterval)
	}()

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		MarketplaceSvc: marketplaceSvc,
		SettlementSvc:  settlementSvc,
		BatchSvc:       batchSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		HTTPMetrics:    middleware.NewHTTPMetrics(reg),
		Gatherer:       reg,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight batch items finish; anything left is recovered on next start.
	batchSvc.Close()
	cancel()
	monitor.Close()
	workers.Wait()

	log.Info().Msg("Server exited")
}
