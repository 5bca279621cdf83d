// Command server runs a single matching engine shard: one process
// owning a fixed set of symbols, its own ring buffer, order books,
// write-ahead log, and match-event publisher.
//
// Architecture Overview:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│   Client    │────▶│  Ingress    │────▶│  Sequencer  │
//	│  (Router)   │     │  (HTTP API) │     │ (Ring Buf)  │
//	└─────────────┘     └─────────────┘     └──────┬──────┘
//	                                                │
//	                                                ▼
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│  Kafka      │◀────│   Event     │◀────│  OrderBook  │
//	│  Publisher  │     │   Handler   │────▶│   + Matcher │
//	└─────────────┘     └──────┬──────┘     └─────────────┘
//	                           │
//	                           ▼
//	                    ┌─────────────┐
//	                    │  WAL (mmap) │
//	                    └─────────────┘
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
	"github.com/rishav/order-matching-engine/internal/disruptor"
	"github.com/rishav/order-matching-engine/internal/handler"
	"github.com/rishav/order-matching-engine/internal/ingress"
	"github.com/rishav/order-matching-engine/internal/matching"
	"github.com/rishav/order-matching-engine/internal/metrics"
	"github.com/rishav/order-matching-engine/internal/publisher"
	"github.com/rishav/order-matching-engine/internal/wal"
)

// Shard wires together one matching engine process: the ring buffer and
// its single consumer, the order book set, the write-ahead log, the
// match-event publisher, and the ingress HTTP surface.
type Shard struct {
	cfg *config.ShardConfig

	books      *matching.OrderBookSet
	log        *wal.WAL
	pub        *publisher.Publisher
	reg        *metrics.ShardRegistry
	ringBuf    *disruptor.RingBuffer
	sequencer  *disruptor.Sequencer
	processor  *disruptor.Processor
	evtHandler *handler.Handler
	ingress    *ingress.Server

	metricsServer *http.Server
	logger        *zap.Logger
}

// NewShard builds every shard component from cfg but starts nothing.
func NewShard(cfg *config.ShardConfig, logger *zap.Logger) (*Shard, error) {
	reg := metrics.NewShardRegistry(cfg.ShardID)

	log, err := wal.Open(wal.Config{
		Path:      cfg.WALPath,
		SizeBytes: cfg.WALSizeBytes(),
	}, logger)
	if err != nil {
		return nil, err
	}

	pub, err := publisher.New(publisher.Config{
		Brokers: []string{cfg.BrokerAddress},
		Topic:   cfg.PublishTopic,
	}, cfg.ShardID, reg, logger)
	if err != nil {
		return nil, err
	}

	books := matching.NewOrderBookSet(cfg.Symbols)
	evtHandler := handler.New(cfg.ShardID, books, log, pub, reg, logger)

	ringBuf := disruptor.NewRingBuffer(disruptor.Config{BufferSize: cfg.RingBufferSize})
	sequencer := disruptor.NewSequencer(ringBuf)
	processor := disruptor.NewProcessor(ringBuf, evtHandler, logger, func(recovered interface{}) {
		reg.OrdersRejectedTotal.WithLabelValues(cfg.ShardID, "panic").Inc()
	})

	ingressAddr := ":" + strconv.Itoa(cfg.SubmitPort)
	ingressServer := ingress.New(ingressAddr, cfg.ShardID, books, sequencer, evtHandler, logger)

	metricsServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.MetricsPort),
		Handler: reg.Handler(),
	}

	return &Shard{
		cfg:           cfg,
		books:         books,
		log:           log,
		pub:           pub,
		reg:           reg,
		ringBuf:       ringBuf,
		sequencer:     sequencer,
		processor:     processor,
		evtHandler:    evtHandler,
		ingress:       ingressServer,
		metricsServer: metricsServer,
		logger:        logger,
	}, nil
}

// Start launches the consumer goroutine, the metrics HTTP server, and
// finally the ingress HTTP server. The processor must be running before
// ingress accepts traffic, or published slots could sit unconsumed.
func (s *Shard) Start() error {
	s.logger.Info("starting shard",
		zap.String("shardId", s.cfg.ShardID),
		zap.Strings("symbols", s.cfg.Symbols),
		zap.Uint64("ringBufferSize", s.cfg.RingBufferSize))

	s.processor.Start()

	go func() {
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server stopped with error", zap.Error(err))
		}
	}()

	return s.ingress.ListenAndServe()
}

// Shutdown drains the shard in the order that prevents data loss:
//  1. stop accepting new HTTP requests
//  2. stop the consumer goroutine (already-published slots are drained first)
//  3. force the write-ahead log and flush the publisher
//  4. stop the metrics server
func (s *Shard) Shutdown() {
	s.logger.Info("shutting down shard", zap.String("shardId", s.cfg.ShardID))

	if err := s.ingress.Shutdown(); err != nil {
		s.logger.Error("ingress shutdown error", zap.Error(err))
	}

	s.processor.Shutdown()

	s.evtHandler.Shutdown()

	if err := s.log.Close(); err != nil {
		s.logger.Error("wal close error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("metrics server shutdown error", zap.Error(err))
	}
}

func main() {
	configPath := flag.String("config", "", "Path to shard config file (optional; env vars always apply)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadShardConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load shard config", zap.Error(err))
	}
	logger = logger.With(zap.String("shard_id", cfg.ShardID))

	shard, err := NewShard(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build shard", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- shard.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("shard stopped with error", zap.Error(err))
		}
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shard.Shutdown()
	logger.Info("shard stopped")
}
