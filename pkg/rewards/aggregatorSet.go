package rewards

import (
	"fmt"
	"time"

	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/contractCaller"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type aggregatorKey struct {
	chainId uint64
	family  stakingTypes.AgentFamily
}

// AggregatorSet holds one aggregator for every (chain, agent family) pair the registry's
// programs declare.
type AggregatorSet struct {
	registry    *chainRegistry.ChainRegistry
	aggregators map[aggregatorKey]*StakingRewardsAggregator
	logger      *zap.Logger
}

func NewAggregatorSet(
	registry *chainRegistry.ChainRegistry,
	caller contractCaller.IContractCaller,
	ms *metrics.MetricsSink,
	clock func() time.Time,
	l *zap.Logger,
) (*AggregatorSet, error) {
	set := &AggregatorSet{
		registry:    registry,
		aggregators: make(map[aggregatorKey]*StakingRewardsAggregator),
		logger:      l,
	}

	for _, chain := range registry.ListChains() {
		programs, err := registry.ListStakingPrograms(chain.ChainId)
		if err != nil {
			return nil, err
		}
		for _, program := range programs {
			for _, family := range program.AgentsSupported {
				key := aggregatorKey{chainId: chain.ChainId, family: family}
				if _, ok := set.aggregators[key]; ok {
					continue
				}
				agg, err := NewStakingRewardsAggregator(&AggregatorConfig{
					ChainId: chain.ChainId,
					Family:  family,
					Clock:   clock,
				}, registry, caller, ms, l)
				if err != nil {
					return nil, fmt.Errorf("failed to create aggregator for chain %d family '%s': %w", chain.ChainId, family, err)
				}
				set.aggregators[key] = agg
			}
		}
	}
	l.Sugar().Infow("Created staking rewards aggregators", zap.Int("count", len(set.aggregators)))
	return set, nil
}

// Get returns the aggregator for a chain and agent family.
func (s *AggregatorSet) Get(chainId uint64, family stakingTypes.AgentFamily) (*StakingRewardsAggregator, error) {
	agg, ok := s.aggregators[aggregatorKey{chainId: chainId, family: family}]
	if !ok {
		return nil, errors.Wrapf(stakingTypes.ErrProgramNotFound, "no aggregator for agent family '%s' on chain %d", family, chainId)
	}
	return agg, nil
}

// ForProgram returns the aggregator of the program's first supported agent family.
func (s *AggregatorSet) ForProgram(chainId uint64, programId string) (StakedAgentAggregator, error) {
	program, err := s.registry.GetStakingProgram(chainId, programId)
	if err != nil {
		return nil, errors.Wrapf(stakingTypes.ErrProgramNotFound, "program '%s' on chain %d", programId, chainId)
	}
	return s.Get(chainId, program.AgentsSupported[0])
}

func (s *AggregatorSet) Len() int {
	return len(s.aggregators)
}
