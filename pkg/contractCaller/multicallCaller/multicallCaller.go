// Package multicallCaller batches contract reads through Multicall3's aggregate3 so a whole
// batch costs a single eth_call.
package multicallCaller

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/clients/ethereum"
	"github.com/pearl-agents/staking-sidecar/pkg/contractAbi"
	"github.com/pearl-agents/staking-sidecar/pkg/contractCaller"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"go.uber.org/zap"
)

const aggregate3 = "aggregate3"

type aggregate3Call struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type aggregate3Result struct {
	Success    bool
	ReturnData []byte
}

type MulticallCaller struct {
	ClientPool *ethereum.ClientPool
	Registry   *chainRegistry.ChainRegistry
	Logger     *zap.Logger
}

func NewMulticallCaller(pool *ethereum.ClientPool, registry *chainRegistry.ChainRegistry, l *zap.Logger) *MulticallCaller {
	return &MulticallCaller{
		ClientPool: pool,
		Registry:   registry,
		Logger:     l,
	}
}

func (mc *MulticallCaller) BatchRead(ctx context.Context, chainId uint64, calls []*contractCaller.Call) ([]*contractCaller.CallResult, error) {
	if len(calls) == 0 {
		return []*contractCaller.CallResult{}, nil
	}

	multicall, err := mc.Registry.GetContractRef(chainId, contractAbi.ContractRole_Multicall3, "")
	if err != nil {
		return nil, err
	}
	client, err := mc.ClientPool.GetClient(chainId)
	if err != nil {
		return nil, err
	}

	aggregateCalls := make([]aggregate3Call, 0, len(calls))
	for _, call := range calls {
		data, err := call.Pack()
		if err != nil {
			return nil, err
		}
		aggregateCalls = append(aggregateCalls, aggregate3Call{
			Target:       call.Address,
			AllowFailure: true,
			CallData:     data,
		})
	}

	data, err := multicall.Abi.Pack(aggregate3, aggregateCalls)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to pack aggregate3: %v", stakingTypes.ErrCallEncoding, err)
	}

	mc.Logger.Sugar().Debugw("Sending multicall",
		zap.Uint64("chainId", chainId),
		zap.Int("calls", len(calls)),
	)

	out, err := client.EthCall(ctx, multicall.Address, data)
	if err != nil {
		return nil, err
	}

	results, err := decodeAggregate3(multicall.Abi, out)
	if err != nil {
		return nil, err
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("%w: multicall returned %d results for %d calls", stakingTypes.ErrCallEncoding, len(results), len(calls))
	}

	decoded := make([]*contractCaller.CallResult, len(calls))
	for i, res := range results {
		if !res.Success {
			return nil, fmt.Errorf("%w: %s reverted", stakingTypes.ErrCallEncoding, calls[i])
		}
		r, err := calls[i].Unpack(res.ReturnData)
		if err != nil {
			return nil, err
		}
		decoded[i] = r
	}
	return decoded, nil
}

func decodeAggregate3(multicallAbi *abi.ABI, out []byte) (results []aggregate3Result, err error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty multicall return data", stakingTypes.ErrCallEncoding)
	}
	values, err := multicallAbi.Unpack(aggregate3, out)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unpack aggregate3: %v", stakingTypes.ErrCallEncoding, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: aggregate3 returned %d values", stakingTypes.ErrCallEncoding, len(values))
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: unexpected aggregate3 result %T", stakingTypes.ErrCallEncoding, values[0])
		}
	}()
	results = *abi.ConvertType(values[0], new([]aggregate3Result)).(*[]aggregate3Result)
	return results, nil
}
