package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jarcoal/httpmock"
	"github.com/pearl-agents/staking-sidecar/internal/config"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/logger"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rpcUrl = "http://gnosis.rpc.local:8545"

func setup(t *testing.T) *Client {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)

	ethConfig := DefaultNativeCallEthereumClientConfig()
	ethConfig.BaseUrl = rpcUrl
	ethConfig.ChainId = 100
	ethConfig.Timeout = 200 * time.Millisecond

	client := NewClient(ethConfig, l)
	client.SetHttpClient(&http.Client{Transport: httpmock.DefaultTransport})
	return client
}

func Test_EthereumClient(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := setup(t)
	target := common.HexToAddress("0x9338b5153AE39BB89f50468E608eD9d764B755fD")

	t.Run("Should return eth_call return data", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl, func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			var rpcReq RPCRequest
			if err := json.Unmarshal(body, &rpcReq); err != nil {
				return httpmock.NewStringResponse(400, ""), nil
			}
			assert.Equal(t, "eth_call", rpcReq.Method)
			assert.Equal(t, "latest", rpcReq.Params[1])
			return httpmock.NewStringResponse(200, `{"jsonrpc":"2.0","id":1,"result":"0x000000000000000000000000000000000000000000000000000000000000002a"}`), nil
		})

		out, err := client.EthCall(context.Background(), target, []byte{0x01, 0x02})
		assert.Nil(t, err)
		assert.Len(t, out, 32)
		assert.Equal(t, byte(0x2a), out[31])
	})
	t.Run("Should classify reverts as call encoding errors", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl,
			httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"error":{"code":3,"message":"execution reverted","data":"0x"}}`))

		_, err := client.EthCall(context.Background(), target, []byte{0x01})
		assert.True(t, errors.Is(err, stakingTypes.ErrCallEncoding))

		var rpcErr *RPCError
		assert.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, 3, rpcErr.Code)
	})
	t.Run("Should classify other rpc errors as unavailable", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl,
			httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"limit exceeded"}}`))

		_, err := client.EthCall(context.Background(), target, []byte{0x01})
		assert.True(t, errors.Is(err, stakingTypes.ErrRpcUnavailable))
	})
	t.Run("Should return unavailable for a 502", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl, httpmock.NewStringResponder(502, `bad gateway`))

		_, err := client.EthCall(context.Background(), target, []byte{0x01})
		assert.True(t, errors.Is(err, stakingTypes.ErrRpcUnavailable))
		assert.Equal(t, stakingTypes.ErrorKind_Unavailable, stakingTypes.ClassifyError(err))
	})
	t.Run("Should return unavailable for malformed json", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl, httpmock.NewStringResponder(200, `<html>`))

		_, err := client.EthCall(context.Background(), target, []byte{0x01})
		assert.True(t, errors.Is(err, stakingTypes.ErrRpcUnavailable))
	})
	t.Run("Should return unavailable when the request times out", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl, func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

		start := time.Now()
		_, err := client.EthCall(context.Background(), target, []byte{0x01})
		assert.True(t, errors.Is(err, stakingTypes.ErrRpcUnavailable))
		assert.Less(t, time.Since(start), 5*time.Second)
	})
	t.Run("Should return the chain id", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl, httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"result":"0x64"}`))

		id, err := client.ChainId(context.Background())
		assert.Nil(t, err)
		assert.Equal(t, uint64(100), id)
	})
}

func Test_EthereumClientBatchCall(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := setup(t)
	target := common.HexToAddress("0x9338b5153AE39BB89f50468E608eD9d764B755fD")

	t.Run("Should return responses in request order", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl, httpmock.NewStringResponder(200, `[
			{"jsonrpc":"2.0","id":2,"result":"0x02"},
			{"jsonrpc":"2.0","id":0,"result":"0x00"},
			{"jsonrpc":"2.0","id":1,"error":{"code":3,"message":"execution reverted"}}
		]`))

		requests := []*RPCRequest{
			GetEthCallRequest(target, []byte{0x00}, 0),
			GetEthCallRequest(target, []byte{0x01}, 1),
			GetEthCallRequest(target, []byte{0x02}, 2),
		}
		responses, err := client.BatchCall(context.Background(), requests)
		assert.Nil(t, err)
		assert.Len(t, responses, 3)
		assert.Equal(t, uint(0), responses[0].ID)
		assert.Equal(t, uint(1), responses[1].ID)
		assert.NotNil(t, responses[1].Error)
		assert.Equal(t, uint(2), responses[2].ID)

		out, err := RPCMethod_call.ResponseParser(responses[2].Result)
		assert.Nil(t, err)
		assert.Equal(t, []byte{0x02}, out)
		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})
	t.Run("Should return unavailable when a response is missing", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl, httpmock.NewStringResponder(200, `[{"jsonrpc":"2.0","id":0,"result":"0x00"}]`))

		_, err := client.BatchCall(context.Background(), []*RPCRequest{
			GetEthCallRequest(target, []byte{0x00}, 0),
			GetEthCallRequest(target, []byte{0x01}, 1),
		})
		assert.True(t, errors.Is(err, stakingTypes.ErrRpcUnavailable))
	})
	t.Run("Should return unavailable when the batch is rejected", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl, httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"batch too large"}}`))

		_, err := client.BatchCall(context.Background(), []*RPCRequest{GetEthCallRequest(target, []byte{0x00}, 0)})
		assert.True(t, errors.Is(err, stakingTypes.ErrRpcUnavailable))
	})
	t.Run("Should not touch the network for an empty batch", func(t *testing.T) {
		httpmock.Reset()

		responses, err := client.BatchCall(context.Background(), []*RPCRequest{})
		assert.Nil(t, err)
		assert.Len(t, responses, 0)
		assert.Equal(t, 0, httpmock.GetTotalCallCount())
	})
}

func Test_ClientPool(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	registry, err := chainRegistry.LoadChainRegistry("", map[uint64]string{100: rpcUrl}, l)
	require.Nil(t, err)

	pool := NewClientPool(registry, &config.EthereumRpcConfig{Timeout: time.Second}, nil, l)

	t.Run("Should hold a client per chain", func(t *testing.T) {
		c, err := pool.GetClient(100)
		assert.Nil(t, err)
		assert.Equal(t, rpcUrl, c.GetConfig().BaseUrl)
		assert.Equal(t, uint64(100), c.GetConfig().ChainId)

		_, err = pool.GetClient(1)
		assert.True(t, errors.Is(err, stakingTypes.ErrUnknownProgramOrChain))
	})
}
