// Package rewards reads a staking program's contracts and derives a service's reward standing
// and eligibility from them.
package rewards

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/contractCaller"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/metricsTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type StakedAgentAggregator interface {
	GetStakingRewardsSnapshot(ctx context.Context, service stakingTypes.ServiceIdentity, programId string) (*stakingTypes.StakingRewardsSnapshot, error)
	GetStakingContractDetails(ctx context.Context, programId string) (*stakingTypes.StakingContractDetails, error)
	GetServiceStakingDetails(ctx context.Context, service stakingTypes.ServiceIdentity, programId string) (*stakingTypes.ServiceStakingDetails, error)
	GetServiceRegistryInfo(ctx context.Context, service stakingTypes.ServiceIdentity, programId string) (*stakingTypes.ServiceRegistryInfo, error)
}

type AggregatorConfig struct {
	ChainId uint64
	Family  stakingTypes.AgentFamily

	// Clock defaults to time.Now
	Clock func() time.Time
}

// StakingRewardsAggregator serves the staking programs of one agent family on one chain.
// It holds no mutable state; every method is safe to call concurrently.
type StakingRewardsAggregator struct {
	chain       *chainRegistry.ChainEndpoint
	family      *chainRegistry.AgentFamily
	registry    *chainRegistry.ChainRegistry
	caller      contractCaller.IContractCaller
	metricsSink *metrics.MetricsSink
	clock       func() time.Time
	logger      *zap.Logger
}

func NewStakingRewardsAggregator(
	cfg *AggregatorConfig,
	registry *chainRegistry.ChainRegistry,
	caller contractCaller.IContractCaller,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) (*StakingRewardsAggregator, error) {
	chain, err := registry.GetChain(cfg.ChainId)
	if err != nil {
		return nil, err
	}
	family, err := registry.GetAgentFamily(cfg.Family)
	if err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &StakingRewardsAggregator{
		chain:       chain,
		family:      family,
		registry:    registry,
		caller:      caller,
		metricsSink: ms,
		clock:       clock,
		logger:      l,
	}, nil
}

func (a *StakingRewardsAggregator) ChainId() uint64 {
	return a.chain.ChainId
}

func (a *StakingRewardsAggregator) Family() stakingTypes.AgentFamily {
	return a.family.Name
}

// resolveProgram returns the program when it exists on this aggregator's chain and supports its family.
func (a *StakingRewardsAggregator) resolveProgram(programId string) (*chainRegistry.StakingProgram, error) {
	program, err := a.registry.GetStakingProgram(a.chain.ChainId, programId)
	if err != nil {
		return nil, errors.Wrapf(stakingTypes.ErrProgramNotFound, "program '%s' on chain %d", programId, a.chain.ChainId)
	}
	if !program.SupportsFamily(a.family.Name) {
		return nil, errors.Wrapf(stakingTypes.ErrProgramNotFound, "program '%s' on chain %d does not support agent family '%s'",
			programId, a.chain.ChainId, a.family.Name)
	}
	return program, nil
}

func (a *StakingRewardsAggregator) observe(programId string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(stakingTypes.ClassifyError(err))
	}
	labels := []metricsTypes.MetricsLabel{
		{Name: "chain_id", Value: strconv.FormatUint(a.chain.ChainId, 10)},
		{Name: "program_id", Value: programId},
		{Name: "result", Value: result},
	}
	a.metricsSink.Incr(metricsTypes.Metric_Incr_Aggregation, labels, 1)
	a.metricsSink.Timing(metricsTypes.Metric_Timing_AggregationDuration, time.Since(start), labels)
}

func (a *StakingRewardsAggregator) nowSeconds() (time.Time, *big.Int) {
	now := a.clock()
	return now, big.NewInt(now.Unix())
}

func serviceIdArg(service stakingTypes.ServiceIdentity) *big.Int {
	return new(big.Int).SetUint64(service.ServiceId)
}

type stakingServiceInfo struct {
	Multisig   common.Address
	Owner      common.Address
	Nonces     []*big.Int
	TsStart    *big.Int
	Reward     *big.Int
	Inactivity *big.Int
}

func decodeServiceInfo(res *contractCaller.CallResult) (*stakingServiceInfo, error) {
	info := &stakingServiceInfo{}
	if err := res.Into(0, info); err != nil {
		return nil, err
	}
	return info, nil
}

// bigIntResults reads the single *big.Int return value of each result.
func bigIntResults(results []*contractCaller.CallResult) ([]*big.Int, error) {
	values := make([]*big.Int, len(results))
	for i, r := range results {
		v, err := r.BigInt(0)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func (a *StakingRewardsAggregator) batchRead(ctx context.Context, calls []*contractCaller.Call) ([]*contractCaller.CallResult, error) {
	results, err := a.caller.BatchRead(ctx, a.chain.ChainId, calls)
	if err != nil {
		return nil, err
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("%w: expected %d results, got %d", stakingTypes.ErrCallEncoding, len(calls), len(results))
	}
	return results, nil
}

// GetStakingRewardsSnapshot reads the staking program's current epoch parameters and the
// service's activity since the last checkpoint.
//
// Services that were never staked have an empty nonce history; for those the activity
// checker is not read and the snapshot reports them as not eligible.
func (a *StakingRewardsAggregator) GetStakingRewardsSnapshot(
	ctx context.Context,
	service stakingTypes.ServiceIdentity,
	programId string,
) (snapshot *stakingTypes.StakingRewardsSnapshot, err error) {
	start := time.Now()
	defer func() { a.observe(programId, start, err) }()

	program, err := a.resolveProgram(programId)
	if err != nil {
		return nil, err
	}
	observedAt, now := a.nowSeconds()

	staking := program.StakingInstance
	checker := program.ActivityChecker
	id := serviceIdArg(service)

	results, err := a.batchRead(ctx, []*contractCaller.Call{
		contractCaller.NewCall(checker.Address, checker.Abi, "livenessRatio"),
		contractCaller.NewCall(staking.Address, staking.Abi, "getServiceInfo", id),
		contractCaller.NewCall(staking.Address, staking.Abi, "livenessPeriod"),
		contractCaller.NewCall(staking.Address, staking.Abi, "rewardsPerSecond"),
		contractCaller.NewCall(staking.Address, staking.Abi, "calculateStakingReward", id),
		contractCaller.NewCall(staking.Address, staking.Abi, "minStakingDeposit"),
		contractCaller.NewCall(staking.Address, staking.Abi, "tsCheckpoint"),
	})
	if err != nil {
		return nil, err
	}

	info, err := decodeServiceInfo(results[1])
	if err != nil {
		return nil, err
	}
	values, err := bigIntResults([]*contractCaller.CallResult{
		results[0], results[2], results[3], results[4], results[5], results[6],
	})
	if err != nil {
		return nil, err
	}
	livenessRatio, livenessPeriod, rewardsPerSecond, accrued, minStakingDeposit, tsCheckpoint :=
		values[0], values[1], values[2], values[3], values[4], values[5]

	snapshot = &stakingTypes.StakingRewardsSnapshot{
		ChainId:   a.chain.ChainId,
		ProgramId: program.Id,
		ServiceId: service.ServiceId,
		Multisig:  service.Multisig,
		Token:     program.Token,

		LivenessPeriod:               livenessPeriod,
		TsCheckpoint:                 tsCheckpoint,
		RewardsPerSecond:             rewardsPerSecond,
		LivenessRatio:                livenessRatio,
		NoncesAtCheckpoint:           info.Nonces,
		AccruedServiceStakingRewards: accrued,
		MinStakingDeposit:            minStakingDeposit,

		MinimumStakedAmount:      MinimumStakedAmount(minStakingDeposit, program.MinimumStakeMultiplier()),
		AvailableRewardsForEpoch: AvailableRewardsForEpoch(rewardsPerSecond, livenessPeriod, tsCheckpoint, now),
		ObservedAt:               observedAt,
	}

	if len(info.Nonces) == 0 {
		a.logger.Sugar().Debugw("Service has no staking history",
			zap.Uint64("chainId", a.chain.ChainId),
			zap.String("programId", program.Id),
			zap.Uint64("serviceId", service.ServiceId),
		)
		return snapshot, nil
	}
	snapshot.HasStakingHistory = true

	if utils.IsNullAddress(service.Multisig) {
		return nil, errors.Wrapf(stakingTypes.ErrInvalidArgument, "service %d has staking history but no multisig", service.ServiceId)
	}

	nonceResults, err := a.batchRead(ctx, []*contractCaller.Call{
		contractCaller.NewCall(checker.Address, checker.Abi, "getMultisigNonces", service.Multisig),
	})
	if err != nil {
		return nil, err
	}
	currentNonces, err := nonceResults[0].BigIntSlice(0)
	if err != nil {
		return nil, err
	}
	snapshot.CurrentNonces = currentNonces

	eligibility, err := EvaluateEligibility(&EligibilityInput{
		NoncesAtCheckpoint:           info.Nonces,
		CurrentNonces:                currentNonces,
		ActivityNonceIndex:           a.family.ActivityNonceIndex,
		LivenessPeriod:               livenessPeriod,
		LivenessRatio:                livenessRatio,
		TsCheckpoint:                 tsCheckpoint,
		Now:                          now,
		CheckpointSafetyMargin:       a.chain.CheckpointSafetyMarginSeconds(),
		RequiredActivitySafetyMargin: a.family.RequiredActivitySafetyMargin,
	})
	if err != nil {
		return nil, fmt.Errorf("service %d in program '%s': %w", service.ServiceId, program.Id, err)
	}
	snapshot.ObservedActivity = eligibility.ObservedActivity
	snapshot.RequiredActivity = eligibility.RequiredActivity
	snapshot.IsEligibleForRewards = eligibility.IsEligible

	a.logger.Sugar().Debugw("Computed staking rewards snapshot",
		zap.Uint64("chainId", a.chain.ChainId),
		zap.String("programId", program.Id),
		zap.Uint64("serviceId", service.ServiceId),
		zap.String("observedActivity", eligibility.ObservedActivity.String()),
		zap.String("requiredActivity", eligibility.RequiredActivity.String()),
		zap.Bool("eligible", eligibility.IsEligible),
	)
	return snapshot, nil
}
