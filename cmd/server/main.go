// Package main provides the API server entry point for the wallet gateway.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zkrex/zkrex/internal/adapter"
	"github.com/zkrex/zkrex/internal/api"
	"github.com/zkrex/zkrex/internal/config"
	"github.com/zkrex/zkrex/internal/identity"
	"github.com/zkrex/zkrex/internal/logging"
	"github.com/zkrex/zkrex/internal/service"
	"github.com/zkrex/zkrex/internal/storage"
	"github.com/zkrex/zkrex/internal/wallet"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Connect to Redis
	redis, err := storage.NewRedisCache(&cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	// History lives in Postgres when configured, otherwise in Redis.
	var historyStore storage.HistoryStore = storage.NewRedisHistoryStore(redis)
	if cfg.Postgres.Enabled() {
		postgres, err := storage.NewPostgresDB(&cfg.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()
		historyStore = storage.NewPostgresHistoryStore(postgres)
		logger.Info("Using Postgres history store")
	}

	// Initialize the chain reader with RPC failover
	provider, err := adapter.NewRPCProvider(cfg.Chain.RPCPrimary, cfg.Chain.RPCSecondary)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create RPC provider")
	}
	reader, err := adapter.NewEthereumReader(cfg.Chain.Network, provider)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create chain reader")
	}
	logger.WithFields(map[string]interface{}{
		"network": cfg.Chain.Network,
		"rpc":     cfg.Chain.RPCPrimary,
	}).Info("Chain reader initialized")

	// Initialize services
	recordStore := storage.NewVerificationStore(redis, cfg.Verification.CacheNamespace)
	verificationService := service.NewVerificationService(recordStore, reader, cfg.Verification, logger)
	balanceService := service.NewBalanceService(
		reader,
		cfg.Chain.NativeDescriptor(),
		cfg.Tokens.CuratedTokens(),
		cfg.Chain.RequestTimeout,
		logger,
	)
	historyService := service.NewHistoryService(historyStore, cfg.Chain.Network)

	verifier, err := identity.NewHTTPVerifier(cfg.Verification.VerifierEndpoint, cfg.Verification.ScopeSeed, cfg.Verification.MinimumAge)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create proof verifier")
	}

	walletSource := wallet.NewSource()

	// Background watchers: wallet address changes drive balance refreshes and
	// verification re-mounts; store events keep concurrent instances in sync.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go balanceService.Watch(ctx, walletSource.Subscribe())
	go func() {
		addresses := walletSource.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case address := <-addresses:
				verificationService.Mount(ctx, address)
			}
		}
	}()
	go func() {
		if err := verificationService.WatchStore(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Warn("Verification store watcher stopped")
		}
	}()

	verificationService.Mount(ctx, walletSource.Current().Address)

	server := api.NewServer(
		cfg.Server,
		cfg.RateLimit,
		cfg.Chain.Network,
		balanceService,
		verificationService,
		historyService,
		verifier,
		walletSource,
		logger,
	)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
