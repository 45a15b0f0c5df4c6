package cmd

import (
	"fmt"

	"github.com/pearl-agents/staking-sidecar/internal/config"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/clients/ethereum"
	"github.com/pearl-agents/staking-sidecar/pkg/contractCaller"
	"github.com/pearl-agents/staking-sidecar/pkg/contractCaller/batchCaller"
	"github.com/pearl-agents/staking-sidecar/pkg/contractCaller/multicallCaller"
	"github.com/pearl-agents/staking-sidecar/pkg/logger"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics"
	"github.com/pearl-agents/staking-sidecar/pkg/rewards"
	"go.uber.org/zap"
)

// stakingDeps is everything a command needs to read staking programs.
type stakingDeps struct {
	cfg         *config.Config
	logger      *zap.Logger
	sink        *metrics.MetricsSink
	registry    *chainRegistry.ChainRegistry
	aggregators *rewards.AggregatorSet
}

func newStakingDeps(cfg *config.Config, sink *metrics.MetricsSink, l *zap.Logger) (*stakingDeps, error) {
	registry, err := chainRegistry.LoadChainRegistry(cfg.RegistryConfig.File, cfg.EthereumRpcConfig.RpcUrls, l)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain registry: %w", err)
	}

	pool := ethereum.NewClientPool(registry, &cfg.EthereumRpcConfig, sink, l)

	var caller contractCaller.IContractCaller
	if cfg.EthereumRpcConfig.UseNativeBatchCall {
		caller = batchCaller.NewBatchCaller(pool, l)
	} else {
		caller = multicallCaller.NewMulticallCaller(pool, registry, l)
	}

	aggregators, err := rewards.NewAggregatorSet(registry, caller, sink, nil, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregators: %w", err)
	}

	return &stakingDeps{
		cfg:         cfg,
		logger:      l,
		sink:        sink,
		registry:    registry,
		aggregators: aggregators,
	}, nil
}

// setupCommand reads the config and builds a logger and staking dependencies for one-shot
// commands that do not export metrics.
func setupCommand() (*stakingDeps, error) {
	cfg := config.NewConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, err
	}
	return newStakingDeps(cfg, nil, l)
}
