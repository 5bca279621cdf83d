package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rishav/order-matching-engine/internal/config"
	"github.com/rishav/order-matching-engine/internal/metrics"
)

func newTestRouter(t *testing.T, shardURLs map[string]string, symbolToShard map[string]string, timeout time.Duration) *Router {
	t.Helper()
	cfg := &config.RouterConfig{
		ShardURLs:     shardURLs,
		SymbolToShard: symbolToShard,
		ShardTimeout:  timeout,
	}
	reg := metrics.NewRouterRegistry()
	return New("", cfg, reg, zap.NewNop())
}

func TestHandleSubmit_RoutesToOwningShard(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ACCEPTED", "orderId": "o1"})
	}))
	defer backend.Close()

	rt := newTestRouter(t, map[string]string{"shard-1": backend.URL}, map[string]string{"AAPL": "shard-1"}, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/orders", jsonBody(map[string]interface{}{"orderId": "o1", "symbol": "AAPL"}))
	rec := httptest.NewRecorder()
	rt.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ACCEPTED", resp["status"])
}

func TestHandleSubmit_UnknownSymbolReturns400(t *testing.T) {
	rt := newTestRouter(t, map[string]string{"shard-1": "http://unused"}, map[string]string{"AAPL": "shard-1"}, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/orders", jsonBody(map[string]interface{}{"orderId": "o1", "symbol": "TSLA"}))
	rec := httptest.NewRecorder()
	rt.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmit_ShardTimeoutReturns504(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	rt := newTestRouter(t, map[string]string{"shard-1": backend.URL}, map[string]string{"AAPL": "shard-1"}, 5*time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, "/orders", jsonBody(map[string]interface{}{"orderId": "o1", "symbol": "AAPL"}))
	rec := httptest.NewRecorder()
	rt.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestHandleSubmit_ShardUnreachableReturns502(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backendURL := backend.URL
	backend.Close() // closed before the request so dialing it fails

	rt := newTestRouter(t, map[string]string{"shard-1": backendURL}, map[string]string{"AAPL": "shard-1"}, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/orders", jsonBody(map[string]interface{}{"orderId": "o1", "symbol": "AAPL"}))
	rec := httptest.NewRecorder()
	rt.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleSeed_TargetedShardProxies(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/seed", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]int{"seeded": 3})
	}))
	defer backend.Close()

	rt := newTestRouter(t, map[string]string{"shard-1": backend.URL}, map[string]string{"AAPL": "shard-1"}, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/seed?shard=shard-1", jsonBody(map[string]interface{}{"orders": []interface{}{}}))
	rec := httptest.NewRecorder()
	rt.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp["seeded"])
}

func TestHandleSeed_BroadcastsToAllShardsWhenUntargeted(t *testing.T) {
	backend1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"seeded": 2})
	}))
	defer backend1.Close()
	backend2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"seeded": 5})
	}))
	defer backend2.Close()

	rt := newTestRouter(t, map[string]string{"shard-1": backend1.URL, "shard-2": backend2.URL},
		map[string]string{"AAPL": "shard-1", "TSLA": "shard-2"}, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/seed", jsonBody(map[string]interface{}{"orders": []interface{}{}}))
	rec := httptest.NewRecorder()
	rt.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp["seeded"])
}

func TestHandleHealth_ReportsUp(t *testing.T) {
	rt := newTestRouter(t, map[string]string{}, map[string]string{}, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	rt.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func jsonBody(v interface{}) io.Reader {
	payload, _ := json.Marshal(v)
	return bytes.NewReader(payload)
}
