// Command router runs the stateless fleet router that sits in front of
// a set of matching engine shards, forwarding each order to the shard
// that owns its symbol.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rishav/order-matching-engine/internal/config"
	"github.com/rishav/order-matching-engine/internal/metrics"
	"github.com/rishav/order-matching-engine/internal/router"
)

func main() {
	configPath := flag.String("config", "", "Path to router config file (optional; env vars always apply)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadRouterConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load router config", zap.Error(err))
	}

	reg := metrics.NewRouterRegistry()

	addr := ":" + strconv.Itoa(cfg.ListenPort)
	rt := router.New(addr, cfg, reg, logger)

	metricsServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.MetricsPort),
		Handler: reg.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped with error", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("router listening", zap.String("addr", addr), zap.Int("shards", len(cfg.ShardURLs)))
		errCh <- rt.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("router stopped with error", zap.Error(err))
		}
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	if err := rt.Shutdown(); err != nil {
		logger.Error("router shutdown error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	logger.Info("router stopped")
}
