package ethereum

import (
	"github.com/pearl-agents/staking-sidecar/internal/config"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ClientPool holds one JSON-RPC client per configured chain.
type ClientPool struct {
	clients map[uint64]*Client
}

func NewClientPool(registry *chainRegistry.ChainRegistry, cfg *config.EthereumRpcConfig, sink *metrics.MetricsSink, l *zap.Logger) *ClientPool {
	clients := make(map[uint64]*Client)
	for _, chain := range registry.ListChains() {
		client := NewClient(ConvertGlobalConfigToEthereumConfig(cfg, chain.ChainId, chain.RpcUrl), l)
		client.SetMetricsSink(sink)
		clients[chain.ChainId] = client
	}
	return &ClientPool{clients: clients}
}

// NewClientPoolFromClients is used when clients are built elsewhere, e.g. in tests.
func NewClientPoolFromClients(clients map[uint64]*Client) *ClientPool {
	return &ClientPool{clients: clients}
}

func (p *ClientPool) GetClient(chainId uint64) (*Client, error) {
	c, ok := p.clients[chainId]
	if !ok {
		return nil, errors.Wrapf(stakingTypes.ErrUnknownProgramOrChain, "no rpc client for chain %d", chainId)
	}
	return c, nil
}
