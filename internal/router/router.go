// Package router implements the stateless fleet router: a single HTTP
// surface in front of many shards that forwards each order to the one
// shard owning its symbol, verbatim, and proxies the shard's response
// back unmodified. It holds no order state of its own.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rishav/order-matching-engine/internal/config"
	"github.com/rishav/order-matching-engine/internal/metrics"
)

// symbolEnvelope is the minimal shape the router needs to read from a
// submitted order body to decide which shard owns it. The rest of the
// body is forwarded untouched.
type symbolEnvelope struct {
	Symbol string `json:"symbol"`
}

// Router is the fleet's stateless entry point.
type Router struct {
	cfg        *config.RouterConfig
	client     *http.Client
	metrics    *metrics.RouterRegistry
	logger     *zap.Logger
	httpServer *http.Server
}

// New builds a router listening on addr.
func New(addr string, cfg *config.RouterConfig, reg *metrics.RouterRegistry, logger *zap.Logger) *Router {
	r := &Router{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.ShardTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        200,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		metrics: reg,
	}

	mr := mux.NewRouter()
	mr.HandleFunc("/orders", r.handleSubmit).Methods(http.MethodPost)
	mr.HandleFunc("/seed", r.handleSeed).Methods(http.MethodPost)
	mr.HandleFunc("/health", r.handleHealth).Methods(http.MethodGet)

	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mr,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.ShardTimeout + 5*time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return r
}

// ListenAndServe blocks serving the router's HTTP surface until Shutdown
// is called or a fatal listener error occurs.
func (r *Router) ListenAndServe() error {
	err := r.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops accepting new requests.
func (r *Router) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.httpServer.Shutdown(ctx)
}

func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) {
	requestID := uuid.NewString()
	start := time.Now()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		r.reject(w, requestID, metrics.ReasonUnknownSymbol, http.StatusBadRequest, "malformed request body")
		return
	}

	var env symbolEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Symbol == "" {
		r.countError(metrics.ReasonUnknownSymbol)
		r.reject(w, requestID, metrics.ReasonUnknownSymbol, http.StatusBadRequest, "symbol is required")
		return
	}

	shardID, ok := r.cfg.SymbolToShard[env.Symbol]
	if !ok {
		r.countError(metrics.ReasonUnknownSymbol)
		r.reject(w, requestID, metrics.ReasonUnknownSymbol, http.StatusBadRequest, "unknown symbol")
		return
	}

	r.proxy(w, req, requestID, shardID, "/orders", body, start)
}

func (r *Router) handleSeed(w http.ResponseWriter, req *http.Request) {
	requestID := uuid.NewString()
	start := time.Now()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		r.reject(w, requestID, metrics.ReasonUnknownSymbol, http.StatusBadRequest, "malformed request body")
		return
	}

	if requested := req.URL.Query().Get("shard"); requested != "" {
		if _, ok := r.cfg.ShardURLs[requested]; ok {
			r.proxy(w, req, requestID, requested, "/seed", body, start)
			return
		}
		r.countError(metrics.ReasonUnknownSymbol)
		r.reject(w, requestID, metrics.ReasonUnknownSymbol, http.StatusBadRequest, "unknown shard")
		return
	}

	// No shard named: broadcast to every shard in the fleet.
	var totalSeeded int
	for shardID := range r.cfg.ShardURLs {
		resp, err := r.forward(req.Context(), shardID, "/seed", body)
		if err != nil {
			r.logger.Warn("seed broadcast failed for shard", zap.String("shard", shardID), zap.Error(err))
			continue
		}
		var decoded struct {
			Seeded int `json:"seeded"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
		resp.Body.Close()
		totalSeeded += decoded.Seeded
	}
	writeJSON(w, http.StatusOK, map[string]int{"seeded": totalSeeded})
	r.metrics.RequestsTotal.WithLabelValues("broadcast", "2xx").Inc()
	r.metrics.RequestDuration.WithLabelValues("broadcast").Observe(time.Since(start).Seconds())
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// proxy forwards body to shardID's target path and relays the response
// back to the caller verbatim, recording router metrics along the way.
func (r *Router) proxy(w http.ResponseWriter, req *http.Request, requestID, shardID, path string, body []byte, start time.Time) {
	resp, err := r.forward(req.Context(), shardID, path, body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.countError(metrics.ReasonTimeout)
			r.reject(w, requestID, metrics.ReasonTimeout, http.StatusGatewayTimeout, "shard request timed out")
			return
		}
		r.countError(metrics.ReasonShardUnavailable)
		r.reject(w, requestID, metrics.ReasonShardUnavailable, http.StatusBadGateway, "shard unreachable")
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		r.countError(metrics.ReasonShardUnavailable)
		r.reject(w, requestID, metrics.ReasonShardUnavailable, http.StatusBadGateway, "failed reading shard response")
		return
	}

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("X-Request-Id", requestID)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)

	r.metrics.RequestsTotal.WithLabelValues(shardID, statusClass(resp.StatusCode)).Inc()
	r.metrics.RequestDuration.WithLabelValues(shardID).Observe(time.Since(start).Seconds())
}

func (r *Router) forward(ctx context.Context, shardID, path string, body []byte) (*http.Response, error) {
	baseURL, ok := r.cfg.ShardURLs[shardID]
	if !ok {
		return nil, errors.New("router: unknown shard " + shardID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ShardTimeout)
	defer cancel()

	proxyReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	proxyReq.Header.Set("Content-Type", "application/json")

	return r.client.Do(proxyReq)
}

func (r *Router) countError(reason string) {
	r.metrics.RoutingErrorsTotal.WithLabelValues(reason).Inc()
}

func (r *Router) reject(w http.ResponseWriter, requestID, reason string, status int, message string) {
	r.logger.Warn("routing rejected", zap.String("requestId", requestID), zap.String("reason", reason), zap.String("message", message))
	writeJSON(w, status, map[string]string{
		"status":  "REJECTED",
		"reason":  message,
		"request": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}
