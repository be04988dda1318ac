package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"xandpulse/config"
	"xandpulse/models"
)

const (
	methodGetVersion       = "get-version"
	methodGetStats         = "get-stats"
	methodGetPodsWithStats = "get-pods-with-stats"
)

// PRPCClient speaks JSON-RPC 2.0 to pNode endpoints.
type PRPCClient struct {
	defaultPort int
	httpClient  *retryablehttp.Client
}

func NewPRPCClient(cfg *config.Config) *PRPCClient {
	timeout := cfg.PRPCTimeoutDuration()
	if timeout <= 0 || timeout > 15*time.Second {
		timeout = 10 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = max(cfg.PRPC.MaxRetries-1, 0)
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	client.HTTPClient.Timeout = timeout
	client.HTTPClient.Transport = &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	// Final error carries the last status instead of retryablehttp's
	// "giving up" wrapper.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &PRPCClient{
		defaultPort: cfg.PRPC.DefaultPort,
		httpClient:  client,
	}
}

// endpoint adds the default pRPC port when addr has none.
func (c *PRPCClient) endpoint(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil || c.defaultPort == 0 {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(c.defaultPort))
}

// Call issues method against addr. Connection errors, 5xx and 429 are
// retried; an RPC-level error is returned as *models.RPCError.
func (c *PRPCClient) Call(ctx context.Context, addr, method string, params any) (*models.RPCResponse, error) {
	body, err := json.Marshal(models.RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/rpc", c.endpoint(addr))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error %d from %s %s", resp.StatusCode, method, addr)
	}

	var rpcResp models.RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return &rpcResp, rpcResp.Error
	}
	return &rpcResp, nil
}

func callInto[T any](ctx context.Context, c *PRPCClient, addr, method string) (*T, error) {
	resp, err := c.Call(ctx, addr, method, nil)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s result from %s: %w", method, addr, err)
	}
	return &out, nil
}

func (c *PRPCClient) GetVersion(ctx context.Context, addr string) (*models.VersionResponse, error) {
	return callInto[models.VersionResponse](ctx, c, addr, methodGetVersion)
}

func (c *PRPCClient) GetStats(ctx context.Context, addr string) (*models.StatsResponse, error) {
	return callInto[models.StatsResponse](ctx, c, addr, methodGetStats)
}

func (c *PRPCClient) GetPodsWithStats(ctx context.Context, addr string) (*models.PodsWithStatsResponse, error) {
	return callInto[models.PodsWithStatsResponse](ctx, c, addr, methodGetPodsWithStats)
}

// IsMethodNotFound reports whether err is the JSON-RPC "method not found"
// error, which older pNodes return for get-pods-with-stats.
func IsMethodNotFound(err error) bool {
	var rpcErr *models.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == -32601
}
