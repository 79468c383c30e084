package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/api"
	"github.com/verdikta/external-adapter/internal/arbitration"
	"github.com/verdikta/external-adapter/internal/commit"
	"github.com/verdikta/external-adapter/internal/config"
	"github.com/verdikta/external-adapter/internal/ipfs"
	"github.com/verdikta/external-adapter/internal/jury"
	"github.com/verdikta/external-adapter/internal/justification"
	"github.com/verdikta/external-adapter/internal/logging"
	"github.com/verdikta/external-adapter/internal/manifest"
	"github.com/verdikta/external-adapter/internal/monitoring"
	"github.com/verdikta/external-adapter/internal/workdir"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting Verdikta arbitration external adapter",
		zap.String("ai_node_url", cfg.AINodeURL),
		zap.String("ipfs_gateway", cfg.IPFSGatewayURL),
		zap.Duration("reveal_ttl", cfg.RevealTTL()),
		zap.Duration("request_deadline", cfg.RequestDeadline()))

	metrics := monitoring.NewMetrics()

	ipfsClient := ipfs.NewClient(cfg.IPFSGatewayURL, cfg.PinningServiceURL, cfg.PinningKey, logger.Named("ipfs"))

	workdirs, err := workdir.NewManager(cfg.WorkDir, logger.Named("workdir"))
	if err != nil {
		logger.Fatal("workdir setup failed", zap.Error(err))
	}

	pipeline := arbitration.New(
		manifest.NewResolver(ipfsClient, logger.Named("resolver")),
		jury.NewHTTPClient(cfg.AINodeURL, cfg.AITimeout(), logger.Named("jury")),
		justification.NewPublisher(ipfsClient, logger.Named("publisher")),
		commit.NewCache(cfg.RevealTTL(), logger.Named("commit-cache")),
		workdirs,
		metrics,
		logger.Named("pipeline"),
	)

	server := api.NewServer(cfg, pipeline, metrics, logger.Named("api"))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
