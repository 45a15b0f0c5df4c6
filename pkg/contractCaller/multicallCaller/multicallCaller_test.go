package multicallCaller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jarcoal/httpmock"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/clients/ethereum"
	"github.com/pearl-agents/staking-sidecar/pkg/contractAbi"
	"github.com/pearl-agents/staking-sidecar/pkg/contractCaller"
	"github.com/pearl-agents/staking-sidecar/pkg/logger"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const rpcUrl = "http://gnosis.rpc.local:8545"

type fixture struct {
	caller   *MulticallCaller
	registry *chainRegistry.ChainRegistry
	abis     map[contractAbi.ContractRole]*abi.ABI
	l        *zap.Logger
}

func setup(t *testing.T) *fixture {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)

	registry, err := chainRegistry.LoadChainRegistry("", map[uint64]string{100: rpcUrl}, l)
	require.Nil(t, err)

	ethConfig := ethereum.DefaultNativeCallEthereumClientConfig()
	ethConfig.BaseUrl = rpcUrl
	ethConfig.ChainId = 100
	client := ethereum.NewClient(ethConfig, l)
	client.SetHttpClient(&http.Client{Transport: httpmock.DefaultTransport})

	abis, err := contractAbi.LoadRoleAbis(l)
	require.Nil(t, err)

	pool := ethereum.NewClientPoolFromClients(map[uint64]*ethereum.Client{100: client})
	return &fixture{
		caller:   NewMulticallCaller(pool, registry, l),
		registry: registry,
		abis:     abis,
		l:        l,
	}
}

func rpcResult(data []byte) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"result":"%s"}`, hexutil.Encode(data))
}

func mustPackOutputs(t *testing.T, a *abi.ABI, method string, values ...interface{}) []byte {
	out, err := a.Methods[method].Outputs.Pack(values...)
	require.Nil(t, err)
	return out
}

// decodeAggregate3Request returns the targets of the aggregate3 call in a request body.
func decodeAggregate3Request(t *testing.T, multicallAbi *abi.ABI, body []byte) []common.Address {
	var req ethereum.RPCRequest
	require.Nil(t, json.Unmarshal(body, &req))
	msg := req.Params[0].(map[string]interface{})
	data, err := hexutil.Decode(msg["data"].(string))
	require.Nil(t, err)

	values, err := multicallAbi.Methods[aggregate3].Inputs.Unpack(data[4:])
	require.Nil(t, err)
	calls := *abi.ConvertType(values[0], new([]aggregate3Call)).(*[]aggregate3Call)

	targets := make([]common.Address, 0, len(calls))
	for _, c := range calls {
		assert.True(t, c.AllowFailure)
		targets = append(targets, c.Target)
	}
	return targets
}

func Test_MulticallCaller(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	f := setup(t)
	stakingAbi := f.abis[contractAbi.ContractRole_StakingInstance]
	checkerAbi := f.abis[contractAbi.ContractRole_ActivityChecker]
	multicallAbi := f.abis[contractAbi.ContractRole_Multicall3]

	staking := common.HexToAddress("0xeF44Fb0842DDeF59D37f85D61A1eF492bbA6135d")
	checker := common.HexToAddress("0x155547857680A6D51bebC5603397488988DEb1c8")

	calls := []*contractCaller.Call{
		contractCaller.NewCall(checker, checkerAbi, "livenessRatio"),
		contractCaller.NewCall(staking, stakingAbi, "livenessPeriod"),
		contractCaller.NewCall(checker, checkerAbi, "getMultisigNonces", common.HexToAddress("0x00000000000000000000000000000000000000aa")),
	}

	t.Run("Should return results in input order from a single eth_call", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl, func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			targets := decodeAggregate3Request(t, multicallAbi, body)
			assert.Equal(t, []common.Address{checker, staking, checker}, targets)

			out := mustPackOutputs(t, multicallAbi, aggregate3, []aggregate3Result{
				{Success: true, ReturnData: mustPackOutputs(t, checkerAbi, "livenessRatio", big.NewInt(11574074074074))},
				{Success: true, ReturnData: mustPackOutputs(t, stakingAbi, "livenessPeriod", big.NewInt(86400))},
				{Success: true, ReturnData: mustPackOutputs(t, checkerAbi, "getMultisigNonces", []*big.Int{big.NewInt(5), big.NewInt(3)})},
			})
			return httpmock.NewStringResponse(200, rpcResult(out)), nil
		})

		results, err := f.caller.BatchRead(context.Background(), 100, calls)
		assert.Nil(t, err)
		assert.Len(t, results, 3)

		ratio, err := results[0].BigInt(0)
		assert.Nil(t, err)
		assert.Equal(t, "11574074074074", ratio.String())

		period, err := results[1].BigInt(0)
		assert.Nil(t, err)
		assert.Equal(t, "86400", period.String())

		nonces, err := results[2].BigIntSlice(0)
		assert.Nil(t, err)
		assert.Equal(t, []*big.Int{big.NewInt(5), big.NewInt(3)}, nonces)

		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})
	t.Run("Should fail with a call encoding error when a sub call reverts", func(t *testing.T) {
		httpmock.Reset()
		out := mustPackOutputs(t, multicallAbi, aggregate3, []aggregate3Result{
			{Success: true, ReturnData: mustPackOutputs(t, checkerAbi, "livenessRatio", big.NewInt(1))},
			{Success: false, ReturnData: []byte{}},
			{Success: true, ReturnData: mustPackOutputs(t, checkerAbi, "getMultisigNonces", []*big.Int{})},
		})
		httpmock.RegisterResponder("POST", rpcUrl, httpmock.NewStringResponder(200, rpcResult(out)))

		results, err := f.caller.BatchRead(context.Background(), 100, calls)
		assert.Nil(t, results)
		assert.True(t, errors.Is(err, stakingTypes.ErrCallEncoding))
	})
	t.Run("Should fail with a call encoding error on empty return data", func(t *testing.T) {
		httpmock.Reset()
		out := mustPackOutputs(t, multicallAbi, aggregate3, []aggregate3Result{
			{Success: true, ReturnData: mustPackOutputs(t, checkerAbi, "livenessRatio", big.NewInt(1))},
			{Success: true, ReturnData: []byte{}},
			{Success: true, ReturnData: mustPackOutputs(t, checkerAbi, "getMultisigNonces", []*big.Int{})},
		})
		httpmock.RegisterResponder("POST", rpcUrl, httpmock.NewStringResponder(200, rpcResult(out)))

		_, err := f.caller.BatchRead(context.Background(), 100, calls)
		assert.True(t, errors.Is(err, stakingTypes.ErrCallEncoding))
	})
	t.Run("Should fail with a call encoding error when the result count mismatches", func(t *testing.T) {
		httpmock.Reset()
		out := mustPackOutputs(t, multicallAbi, aggregate3, []aggregate3Result{
			{Success: true, ReturnData: mustPackOutputs(t, checkerAbi, "livenessRatio", big.NewInt(1))},
		})
		httpmock.RegisterResponder("POST", rpcUrl, httpmock.NewStringResponder(200, rpcResult(out)))

		_, err := f.caller.BatchRead(context.Background(), 100, calls)
		assert.True(t, errors.Is(err, stakingTypes.ErrCallEncoding))
	})
	t.Run("Should fail with rpc unavailable on a 502", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", rpcUrl, httpmock.NewStringResponder(502, "bad gateway"))

		_, err := f.caller.BatchRead(context.Background(), 100, calls)
		assert.True(t, errors.Is(err, stakingTypes.ErrRpcUnavailable))
	})
	t.Run("Should reject malformed calls before touching the network", func(t *testing.T) {
		httpmock.Reset()

		bad := [][]*contractCaller.Call{
			{contractCaller.NewCall(staking, stakingAbi, "doesNotExist")},
			{contractCaller.NewCall(staking, stakingAbi, "getServiceInfo", "not a number")},
			{contractCaller.NewCall(common.Address{}, stakingAbi, "livenessPeriod")},
			{contractCaller.NewCall(staking, nil, "livenessPeriod")},
		}
		for _, b := range bad {
			_, err := f.caller.BatchRead(context.Background(), 100, b)
			assert.True(t, errors.Is(err, stakingTypes.ErrCallEncoding), b[0].String())
		}
		assert.Equal(t, 0, httpmock.GetTotalCallCount())
	})
	t.Run("Should return an empty result for an empty batch", func(t *testing.T) {
		httpmock.Reset()

		results, err := f.caller.BatchRead(context.Background(), 100, []*contractCaller.Call{})
		assert.Nil(t, err)
		assert.Len(t, results, 0)
		assert.Equal(t, 0, httpmock.GetTotalCallCount())
	})
	t.Run("Should fail for unknown chains", func(t *testing.T) {
		_, err := f.caller.BatchRead(context.Background(), 1, calls)
		assert.True(t, errors.Is(err, stakingTypes.ErrUnknownProgramOrChain))
	})
}
