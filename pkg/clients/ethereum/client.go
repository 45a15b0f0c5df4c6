package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/internal/config"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/metricsTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const jsonRPCVersion = "2.0"

type EthereumClientConfig struct {
	BaseUrl            string
	ChainId            uint64
	Timeout            time.Duration
	RateLimit          float64
	RateLimitBurst     int
	UseNativeBatchCall bool
}

func DefaultNativeCallEthereumClientConfig() *EthereumClientConfig {
	return &EthereumClientConfig{
		Timeout:            config.DefaultEthereumTimeout,
		RateLimit:          config.DefaultEthereumRateLimit,
		RateLimitBurst:     config.DefaultEthereumRateBurst,
		UseNativeBatchCall: true,
	}
}

// ConvertGlobalConfigToEthereumConfig builds the client config for one chain.
func ConvertGlobalConfigToEthereumConfig(cfg *config.EthereumRpcConfig, chainId uint64, baseUrl string) *EthereumClientConfig {
	return &EthereumClientConfig{
		BaseUrl:            baseUrl,
		ChainId:            chainId,
		Timeout:            cfg.Timeout,
		RateLimit:          cfg.RateLimit,
		RateLimitBurst:     cfg.RateLimitBurst,
		UseNativeBatchCall: cfg.UseNativeBatchCall,
	}
}

type Client struct {
	httpClient   *http.Client
	clientConfig *EthereumClientConfig
	limiter      *rate.Limiter
	metricsSink  *metrics.MetricsSink
	Logger       *zap.Logger
}

func NewClient(cfg *EthereumClientConfig, l *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	l.Sugar().Debugw("Creating ethereum client",
		zap.String("url", cfg.BaseUrl),
		zap.Uint64("chainId", cfg.ChainId),
		zap.Duration("timeout", cfg.Timeout),
	)

	return &Client{
		httpClient:   &http.Client{},
		clientConfig: cfg,
		limiter:      rate.NewLimiter(limit, burst),
		Logger:       l,
	}
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) SetMetricsSink(sink *metrics.MetricsSink) {
	c.metricsSink = sink
}

func (c *Client) GetConfig() *EthereumClientConfig {
	return c.clientConfig
}

func (c *Client) recordRequest(method string, status string, start time.Time) {
	labels := []metricsTypes.MetricsLabel{
		{Name: "method", Value: method},
		{Name: "chain_id", Value: strconv.FormatUint(c.clientConfig.ChainId, 10)},
		{Name: "status", Value: status},
	}
	c.metricsSink.Incr(metricsTypes.Metric_Incr_EthereumRequest, labels, 1)
	c.metricsSink.Timing(metricsTypes.Metric_Timing_EthereumDuration, time.Since(start), labels)
}

func unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", stakingTypes.ErrRpcUnavailable, fmt.Sprintf(format, args...))
}

// post sends one JSON-RPC payload and returns the raw response body.
// Every failure here means the node could not be reached or did not answer properly.
func (c *Client) post(ctx context.Context, method string, payload interface{}) (body []byte, err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.recordRequest(method, status, start)
	}()

	if c.clientConfig.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.clientConfig.Timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, unavailable("rate limiter wait failed: %v", err)
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.clientConfig.BaseUrl, bytes.NewReader(requestBody))
	if err != nil {
		return nil, unavailable("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.Logger.Sugar().Debugw("Sending ethereum request",
		zap.String("method", method),
		zap.Uint64("chainId", c.clientConfig.ChainId),
	)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("request failed: %v", err)
	}
	defer res.Body.Close()

	body, err = io.ReadAll(res.Body)
	if err != nil {
		return nil, unavailable("failed to read response body: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, unavailable("received http status %d", res.StatusCode)
	}
	return body, nil
}

// Call sends a single request. A JSON-RPC error object is returned as *RPCError.
func (c *Client) Call(ctx context.Context, rpcRequest *RPCRequest) (*RPCResponse, error) {
	body, err := c.post(ctx, rpcRequest.Method, rpcRequest)
	if err != nil {
		return nil, err
	}

	var response RPCResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, unavailable("malformed response: %v", err)
	}
	if response.Error != nil {
		return nil, response.Error
	}
	if response.Result == nil {
		return nil, unavailable("response has neither result nor error")
	}
	return &response, nil
}

// BatchCall sends every request in one HTTP round trip. Responses are returned in request
// order; per-request JSON-RPC errors are left on RPCResponse.Error for the caller.
func (c *Client) BatchCall(ctx context.Context, requests []*RPCRequest) ([]*RPCResponse, error) {
	if len(requests) == 0 {
		return []*RPCResponse{}, nil
	}

	body, err := c.post(ctx, "batch", requests)
	if err != nil {
		return nil, err
	}

	var responses []*RPCResponse
	if err := json.Unmarshal(body, &responses); err != nil {
		// some nodes answer a whole batch with a single error object
		var single RPCResponse
		if singleErr := json.Unmarshal(body, &single); singleErr == nil && single.Error != nil {
			return nil, unavailable("batch rejected: %v", single.Error)
		}
		return nil, unavailable("malformed batch response: %v", err)
	}

	byId := make(map[uint]*RPCResponse, len(responses))
	for _, r := range responses {
		if r == nil {
			continue
		}
		byId[r.ID] = r
	}

	ordered := make([]*RPCResponse, len(requests))
	for i, req := range requests {
		r, ok := byId[req.ID]
		if !ok {
			return nil, unavailable("missing response for request id %d", req.ID)
		}
		ordered[i] = r
	}
	return ordered, nil
}

// ClassifyCallError maps an eth_call failure onto the error taxonomy: reverts are
// encoding errors, everything else means the node is unavailable.
func ClassifyCallError(err error) error {
	if rpcErr, ok := err.(*RPCError); ok {
		if rpcErr.IsRevert() {
			return fmt.Errorf("%w: %w", stakingTypes.ErrCallEncoding, rpcErr)
		}
		return fmt.Errorf("%w: %w", stakingTypes.ErrRpcUnavailable, rpcErr)
	}
	return err
}

// EthCall executes a read-only call against the latest block and returns the raw return data.
func (c *Client) EthCall(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	res, err := c.Call(ctx, GetEthCallRequest(to, data, 1))
	if err != nil {
		return nil, ClassifyCallError(err)
	}
	out, err := RPCMethod_call.ResponseParser(res.Result)
	if err != nil {
		return nil, unavailable("malformed eth_call result: %v", err)
	}
	return out, nil
}

func (c *Client) ChainId(ctx context.Context) (uint64, error) {
	res, err := c.Call(ctx, GetChainIdRequest(1))
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			return 0, fmt.Errorf("%w: %w", stakingTypes.ErrRpcUnavailable, rpcErr)
		}
		return 0, err
	}
	id, err := RPCMethod_chainId.ResponseParser(res.Result)
	if err != nil {
		return 0, unavailable("malformed eth_chainId result: %v", err)
	}
	return id, nil
}
