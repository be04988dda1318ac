package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xandpulse/config"
	"xandpulse/models"
)

func testPRPCConfig() *config.Config {
	return &config.Config{PRPC: config.PRPCConfig{DefaultPort: 6000, Timeout: 2, MaxRetries: 3}}
}

// rpcServer answers JSON-RPC calls with handler's result or error.
func rpcServer(t *testing.T, handler func(method string) (any, *models.RPCError)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req models.RPCRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "2.0", req.JSONRPC)

		result, rpcErr := handler(req.Method)
		resp := models.RPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
		if result != nil {
			raw, err := json.Marshal(result)
			assert.NoError(t, err)
			resp.Result = raw
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, strings.TrimPrefix(srv.URL, "http://")
}

func TestPRPCClientGetStats(t *testing.T) {
	_, addr := rpcServer(t, func(method string) (any, *models.RPCError) {
		assert.Equal(t, "get-stats", method)
		return models.StatsResponse{Uptime: 1234, ActiveStreams: 2, CPUPercent: 12.5}, nil
	})

	stats, err := NewPRPCClient(testPRPCConfig()).GetStats(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), stats.Uptime)
	assert.Equal(t, 2, stats.ActiveStreams)
	assert.Equal(t, 12.5, stats.CPUPercent)
}

func TestPRPCClientGetPodsAndVersion(t *testing.T) {
	_, addr := rpcServer(t, func(method string) (any, *models.RPCError) {
		switch method {
		case "get-pods-with-stats":
			return models.PodsWithStatsResponse{
				Pods:       []models.PodWithStats{{Address: "1.2.3.4:9001", Pubkey: "abc", Version: "1.16.14"}},
				TotalCount: 1,
			}, nil
		case "get-version":
			return models.VersionResponse{Version: "1.16.14"}, nil
		}
		return nil, &models.RPCError{Code: -32601, Message: "Method not found"}
	})
	client := NewPRPCClient(testPRPCConfig())

	pods, err := client.GetPodsWithStats(context.Background(), addr)
	require.NoError(t, err)
	require.Len(t, pods.Pods, 1)
	assert.Equal(t, "abc", pods.Pods[0].Pubkey)

	ver, err := client.GetVersion(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, "1.16.14", ver.Version)
}

func TestPRPCClientRPCError(t *testing.T) {
	_, addr := rpcServer(t, func(string) (any, *models.RPCError) {
		return nil, &models.RPCError{Code: -32601, Message: "Method not found"}
	})

	_, err := NewPRPCClient(testPRPCConfig()).GetPodsWithStats(context.Background(), addr)
	require.Error(t, err)
	assert.True(t, IsMethodNotFound(err))

	var rpcErr *models.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "Method not found", rpcErr.Message)
}

func TestPRPCClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(models.RPCResponse{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"uptime":5}`)})
	}))
	defer srv.Close()

	stats, err := NewPRPCClient(testPRPCConfig()).GetStats(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Uptime)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPRPCClientHTTPError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewPRPCClient(testPRPCConfig()).GetStats(context.Background(), strings.TrimPrefix(srv.URL, "http://"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http error 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestPRPCClientCanceledContext(t *testing.T) {
	_, addr := rpcServer(t, func(string) (any, *models.RPCError) {
		return models.StatsResponse{}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPRPCClient(testPRPCConfig()).GetStats(ctx, addr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPRPCClientEndpoint(t *testing.T) {
	c := NewPRPCClient(testPRPCConfig())
	assert.Equal(t, "1.2.3.4:6000", c.endpoint("1.2.3.4"))
	assert.Equal(t, "1.2.3.4:7000", c.endpoint("1.2.3.4:7000"))
}
