// Package ingress implements the shard's HTTP surface: order submission,
// bulk test seeding, and a health check. Submission claims a sequencer
// slot first and validates the payload second: a validation failure
// after the slot is already claimed still publishes it, marked REJECT,
// so the consumer never stalls waiting on a slot that was never filled.
// The handler returns as soon as the slot is published — it never waits
// for matching.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rishav/order-matching-engine/internal/disruptor"
	"github.com/rishav/order-matching-engine/internal/handler"
	"github.com/rishav/order-matching-engine/internal/matching"
)

// Server is the shard's ingress HTTP surface.
type Server struct {
	shardID    string
	books      *matching.OrderBookSet
	sequencer  *disruptor.Sequencer
	handler    *handler.Handler
	logger     *zap.Logger
	httpServer *http.Server
}

// New builds an ingress server listening on addr.
func New(addr string, shardID string, books *matching.OrderBookSet, sequencer *disruptor.Sequencer, h *handler.Handler, logger *zap.Logger) *Server {
	s := &Server{
		shardID:   shardID,
		books:     books,
		sequencer: sequencer,
		handler:   h,
		logger:    logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/orders", s.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/seed", s.handleSeed).Methods(http.MethodPost)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts the HTTP server; it blocks until Shutdown is
// called or a fatal listener error occurs.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops accepting new requests, the first step of
// the shard's shutdown sequence.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	seq, err := s.sequencer.Next()
	if err != nil {
		s.logger.Warn("ring buffer full, rejecting submission")
		writeJSON(w, http.StatusServiceUnavailable, rejectResponse{
			Status: "REJECTED",
			Reason: "Ring buffer full",
		})
		return
	}

	var env orderEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.sequencer.PublishReject(seq, "malformed request body")
		writeRejected(w, http.StatusBadRequest, "", "malformed request body")
		return
	}

	order, err := env.toOrder()
	if err != nil {
		s.sequencer.PublishReject(seq, err.Error())
		writeRejected(w, http.StatusBadRequest, env.OrderId, err.Error())
		return
	}

	if !s.books.Owns(order.Symbol) {
		s.sequencer.PublishReject(seq, "unknown symbol")
		writeRejected(w, http.StatusBadRequest, string(order.Id), "unknown symbol")
		return
	}

	admitTime := time.Now()
	s.sequencer.Publish(seq, order, admitTime.UnixNano())

	writeJSON(w, http.StatusOK, submitResponse{
		Status:    "ACCEPTED",
		OrderId:   env.OrderId,
		ShardId:   s.shardID,
		Timestamp: admitTime.UnixMilli(),
	})
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRejected(w, http.StatusBadRequest, "", "malformed request body")
		return
	}

	seeded := 0
	for _, env := range req.Orders {
		order, err := env.toOrder()
		if err != nil {
			s.logger.Warn("skipping malformed seed order", zap.String("orderId", env.OrderId), zap.Error(err))
			continue
		}
		if reason, ok := s.handler.SeedOrder(order); !ok {
			s.logger.Warn("skipping rejected seed order", zap.String("orderId", env.OrderId), zap.String("reason", reason))
			continue
		}
		seeded++
	}

	writeJSON(w, http.StatusOK, seedResponse{Seeded: seeded})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "UP", ShardId: s.shardID})
}

type submitResponse struct {
	Status    string `json:"status"`
	OrderId   string `json:"orderId"`
	ShardId   string `json:"shardId"`
	Timestamp int64  `json:"timestamp"`
}

type rejectResponse struct {
	Status  string `json:"status"`
	OrderId string `json:"orderId,omitempty"`
	Reason  string `json:"reason"`
}

type healthResponse struct {
	Status  string `json:"status"`
	ShardId string `json:"shardId"`
}

type seedResponse struct {
	Seeded int `json:"seeded"`
}

func writeRejected(w http.ResponseWriter, status int, orderId, reason string) {
	writeJSON(w, status, rejectResponse{Status: "REJECTED", OrderId: orderId, Reason: reason})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
