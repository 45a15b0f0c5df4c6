// Package batchCaller sends every contract read as its own eth_call inside one JSON-RPC
// batch request. It is used for nodes where Multicall3 is not an option.
package batchCaller

import (
	"context"
	"fmt"

	"github.com/pearl-agents/staking-sidecar/pkg/clients/ethereum"
	"github.com/pearl-agents/staking-sidecar/pkg/contractCaller"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"go.uber.org/zap"
)

type BatchCaller struct {
	ClientPool *ethereum.ClientPool
	Logger     *zap.Logger
}

func NewBatchCaller(pool *ethereum.ClientPool, l *zap.Logger) *BatchCaller {
	return &BatchCaller{
		ClientPool: pool,
		Logger:     l,
	}
}

func (bc *BatchCaller) BatchRead(ctx context.Context, chainId uint64, calls []*contractCaller.Call) ([]*contractCaller.CallResult, error) {
	if len(calls) == 0 {
		return []*contractCaller.CallResult{}, nil
	}

	client, err := bc.ClientPool.GetClient(chainId)
	if err != nil {
		return nil, err
	}

	requests := make([]*ethereum.RPCRequest, 0, len(calls))
	for i, call := range calls {
		data, err := call.Pack()
		if err != nil {
			return nil, err
		}
		requests = append(requests, ethereum.GetEthCallRequest(call.Address, data, uint(i)))
	}

	bc.Logger.Sugar().Debugw("Sending batch call",
		zap.Uint64("chainId", chainId),
		zap.Int("calls", len(calls)),
	)

	responses, err := client.BatchCall(ctx, requests)
	if err != nil {
		return nil, err
	}

	results := make([]*contractCaller.CallResult, len(calls))
	for i, res := range responses {
		if res.Error != nil {
			return nil, fmt.Errorf("%s: %w", calls[i], ethereum.ClassifyCallError(res.Error))
		}
		out, err := ethereum.RPCMethod_call.ResponseParser(res.Result)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: malformed result: %v", stakingTypes.ErrRpcUnavailable, calls[i], err)
		}
		r, err := calls[i].Unpack(out)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}
