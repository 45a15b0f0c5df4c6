package rewards

import (
	"context"
	"math/big"
	"time"

	"github.com/pearl-agents/staking-sidecar/pkg/contractAbi"
	"github.com/pearl-agents/staking-sidecar/pkg/contractCaller"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/utils"
	"go.uber.org/zap"
)

// GetStakingContractDetails reads the program-wide parameters of a staking contract: capacity,
// reward rate, epoch and the APY a fully subscribed program pays on the minimum stake.
func (a *StakingRewardsAggregator) GetStakingContractDetails(ctx context.Context, programId string) (details *stakingTypes.StakingContractDetails, err error) {
	start := time.Now()
	defer func() { a.observe(programId, start, err) }()

	program, err := a.resolveProgram(programId)
	if err != nil {
		return nil, err
	}
	staking := program.StakingInstance

	results, err := a.batchRead(ctx, []*contractCaller.Call{
		contractCaller.NewCall(staking.Address, staking.Abi, "maxNumServices"),
		contractCaller.NewCall(staking.Address, staking.Abi, "getServiceIds"),
		contractCaller.NewCall(staking.Address, staking.Abi, "minStakingDuration"),
		contractCaller.NewCall(staking.Address, staking.Abi, "minStakingDeposit"),
		contractCaller.NewCall(staking.Address, staking.Abi, "rewardsPerSecond"),
		contractCaller.NewCall(staking.Address, staking.Abi, "livenessPeriod"),
		contractCaller.NewCall(staking.Address, staking.Abi, "epochCounter"),
		contractCaller.NewCall(staking.Address, staking.Abi, "availableRewards"),
		contractCaller.NewCall(staking.Address, staking.Abi, "tsCheckpoint"),
	})
	if err != nil {
		return nil, err
	}

	serviceIds, err := results[1].BigIntSlice(0)
	if err != nil {
		return nil, err
	}
	values, err := bigIntResults(append([]*contractCaller.CallResult{results[0]}, results[2:]...))
	if err != nil {
		return nil, err
	}
	maxNumServices, minStakingDuration, minStakingDeposit, rewardsPerSecond, livenessPeriod, epochCounter, availableRewards, tsCheckpoint :=
		values[0], values[1], values[2], values[3], values[4], values[5], values[6], values[7]

	availableSlots := new(big.Int).Sub(maxNumServices, big.NewInt(int64(len(serviceIds))))
	if availableSlots.Sign() < 0 {
		availableSlots.SetInt64(0)
	}
	minimumStakedAmount := MinimumStakedAmount(minStakingDeposit, program.MinimumStakeMultiplier())

	details = &stakingTypes.StakingContractDetails{
		ChainId:                 a.chain.ChainId,
		ProgramId:               program.Id,
		Token:                   program.Token,
		MaxNumServices:          maxNumServices,
		ServiceIds:              serviceIds,
		AvailableSlots:          availableSlots,
		MinStakingDuration:      minStakingDuration,
		MinStakingDeposit:       minStakingDeposit,
		MinimumStakedAmount:     minimumStakedAmount,
		RewardsPerSecond:        rewardsPerSecond,
		LivenessPeriod:          livenessPeriod,
		RewardsPerWorkPeriod:    new(big.Int).Mul(rewardsPerSecond, livenessPeriod),
		EpochCounter:            epochCounter,
		AvailableRewards:        availableRewards,
		TsCheckpoint:            tsCheckpoint,
		NextCheckpointTimestamp: new(big.Int).Add(tsCheckpoint, livenessPeriod),
		Apy:                     Apy(rewardsPerSecond, maxNumServices, minimumStakedAmount),
	}

	a.logger.Sugar().Debugw("Fetched staking contract details",
		zap.Uint64("chainId", a.chain.ChainId),
		zap.String("programId", program.Id),
		zap.String("apy", details.Apy.String()),
		zap.String("availableSlots", availableSlots.String()),
	)
	return details, nil
}

// GetServiceStakingDetails reads where a service is in its staking lifecycle and when it may unstake.
func (a *StakingRewardsAggregator) GetServiceStakingDetails(
	ctx context.Context,
	service stakingTypes.ServiceIdentity,
	programId string,
) (details *stakingTypes.ServiceStakingDetails, err error) {
	start := time.Now()
	defer func() { a.observe(programId, start, err) }()

	program, err := a.resolveProgram(programId)
	if err != nil {
		return nil, err
	}
	_, now := a.nowSeconds()
	staking := program.StakingInstance
	id := serviceIdArg(service)

	results, err := a.batchRead(ctx, []*contractCaller.Call{
		contractCaller.NewCall(staking.Address, staking.Abi, "getStakingState", id),
		contractCaller.NewCall(staking.Address, staking.Abi, "getServiceInfo", id),
		contractCaller.NewCall(staking.Address, staking.Abi, "minStakingDuration"),
	})
	if err != nil {
		return nil, err
	}

	state, err := results[0].Uint8(0)
	if err != nil {
		return nil, err
	}
	info, err := decodeServiceInfo(results[1])
	if err != nil {
		return nil, err
	}
	minStakingDuration, err := results[2].BigInt(0)
	if err != nil {
		return nil, err
	}

	tsStart := zeroIfNil(info.TsStart)
	canUnstakeAt := new(big.Int)
	stakedForMinimum := false
	if tsStart.Sign() > 0 {
		canUnstakeAt.Add(tsStart, minStakingDuration)
		stakedForMinimum = now.Cmp(canUnstakeAt) >= 0
	}

	return &stakingTypes.ServiceStakingDetails{
		ChainId:                    a.chain.ChainId,
		ProgramId:                  program.Id,
		ServiceId:                  service.ServiceId,
		StakingState:               stakingTypes.StakingState(state),
		TsStart:                    tsStart,
		MinStakingDuration:         minStakingDuration,
		CanUnstakeAt:               canUnstakeAt,
		IsStakedForMinimumDuration: stakedForMinimum,
	}, nil
}

// GetServiceRegistryInfo reads the service's registration state and the bond it must post in
// the program's staking token.
func (a *StakingRewardsAggregator) GetServiceRegistryInfo(
	ctx context.Context,
	service stakingTypes.ServiceIdentity,
	programId string,
) (info *stakingTypes.ServiceRegistryInfo, err error) {
	start := time.Now()
	defer func() { a.observe(programId, start, err) }()

	program, err := a.resolveProgram(programId)
	if err != nil {
		return nil, err
	}
	registry, err := a.registry.GetContractRef(a.chain.ChainId, contractAbi.ContractRole_ServiceRegistry, program.Id)
	if err != nil {
		return nil, err
	}
	tokenUtility, err := a.registry.GetContractRef(a.chain.ChainId, contractAbi.ContractRole_ServiceRegistryTokenUtility, program.Id)
	if err != nil {
		return nil, err
	}
	id := serviceIdArg(service)

	results, err := a.batchRead(ctx, []*contractCaller.Call{
		contractCaller.NewCall(registry.Address, registry.Abi, "mapServices", id),
		contractCaller.NewCall(tokenUtility.Address, tokenUtility.Abi, "mapServiceIdTokenDeposit", id),
		contractCaller.NewCall(tokenUtility.Address, tokenUtility.Abi, "getAgentBond", id, new(big.Int).SetUint64(program.AgentId)),
	})
	if err != nil {
		return nil, err
	}

	multisig, err := results[0].Address(1)
	if err != nil {
		return nil, err
	}
	numAgentInstances, err := results[0].Uint32(5)
	if err != nil {
		return nil, err
	}
	state, err := results[0].Uint8(6)
	if err != nil {
		return nil, err
	}
	bondToken, err := results[1].Address(0)
	if err != nil {
		return nil, err
	}
	securityDeposit, err := results[1].BigInt(1)
	if err != nil {
		return nil, err
	}
	agentBond, err := results[2].BigInt(0)
	if err != nil {
		return nil, err
	}

	if !utils.IsNullAddress(service.Multisig) && multisig != service.Multisig {
		a.logger.Sugar().Warnw("Registry multisig differs from the requested service multisig",
			zap.Uint64("chainId", a.chain.ChainId),
			zap.Uint64("serviceId", service.ServiceId),
			zap.String("registryMultisig", multisig.Hex()),
			zap.String("requestedMultisig", service.Multisig.Hex()),
		)
	}

	return &stakingTypes.ServiceRegistryInfo{
		ChainId:           a.chain.ChainId,
		ServiceId:         service.ServiceId,
		ServiceState:      stakingTypes.ServiceState(state),
		Multisig:          multisig,
		NumAgentInstances: numAgentInstances,
		BondToken:         bondToken,
		SecurityDeposit:   securityDeposit,
		AgentBond:         agentBond,
	}, nil
}

var _ StakedAgentAggregator = (*StakingRewardsAggregator)(nil)
