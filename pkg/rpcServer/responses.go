package rpcServer

import (
	"math/big"
	"time"

	"github.com/pearl-agents/staking-sidecar/internal/types/numbers"
	"github.com/pearl-agents/staking-sidecar/pkg/chainRegistry"
	"github.com/pearl-agents/staking-sidecar/pkg/rewardsPoller"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
)

// Amounts are rendered as base-10 strings: raw values in the token's smallest unit,
// *Display values in whole tokens.

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func bigStrings(values []*big.Int) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, bigString(v))
	}
	return out
}

func displayString(v *big.Int, token stakingTypes.Token) string {
	if v == nil {
		return ""
	}
	return numbers.FormatUnits(v, token.Decimals)
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestId string `json:"requestId,omitempty"`
}

type ChainResponse struct {
	ChainId                       uint64 `json:"chainId"`
	Name                          string `json:"name"`
	NativeToken                   string `json:"nativeToken"`
	Multicall3                    string `json:"multicall3"`
	CheckpointSafetyMarginSeconds int64  `json:"checkpointSafetyMarginSeconds"`
}

func NewChainResponse(c *chainRegistry.ChainEndpoint) *ChainResponse {
	return &ChainResponse{
		ChainId:                       c.ChainId,
		Name:                          c.Name,
		NativeToken:                   c.NativeToken,
		Multicall3:                    c.Multicall3.Hex(),
		CheckpointSafetyMarginSeconds: c.CheckpointSafetyMarginSeconds().Int64(),
	}
}

type ProgramResponse struct {
	Id                string   `json:"id"`
	Name              string   `json:"name"`
	ChainId           uint64   `json:"chainId"`
	StakingInstance   string   `json:"stakingInstance"`
	ActivityChecker   string   `json:"activityChecker"`
	TokenSymbol       string   `json:"tokenSymbol"`
	TokenDecimals     int32    `json:"tokenDecimals"`
	NumAgentInstances uint64   `json:"numAgentInstances"`
	AgentId           uint64   `json:"agentId"`
	AgentsSupported   []string `json:"agentsSupported"`
	Deprecated        bool     `json:"deprecated"`
}

func NewProgramResponse(p *chainRegistry.StakingProgram) *ProgramResponse {
	families := make([]string, 0, len(p.AgentsSupported))
	for _, f := range p.AgentsSupported {
		families = append(families, string(f))
	}
	return &ProgramResponse{
		Id:                p.Id,
		Name:              p.Name,
		ChainId:           p.ChainId,
		StakingInstance:   p.StakingInstance.Address.Hex(),
		ActivityChecker:   p.ActivityChecker.Address.Hex(),
		TokenSymbol:       p.Token.Symbol,
		TokenDecimals:     p.Token.Decimals,
		NumAgentInstances: p.NumAgentInstances,
		AgentId:           p.AgentId,
		AgentsSupported:   families,
		Deprecated:        p.Deprecated,
	}
}

type SnapshotResponse struct {
	ChainId       uint64 `json:"chainId"`
	ProgramId     string `json:"programId"`
	ServiceId     uint64 `json:"serviceId"`
	Multisig      string `json:"multisig"`
	TokenSymbol   string `json:"tokenSymbol"`
	TokenDecimals int32  `json:"tokenDecimals"`

	LivenessPeriod               string   `json:"livenessPeriod"`
	TsCheckpoint                 string   `json:"tsCheckpoint"`
	RewardsPerSecond             string   `json:"rewardsPerSecond"`
	LivenessRatio                string   `json:"livenessRatio"`
	NoncesAtCheckpoint           []string `json:"noncesAtCheckpoint"`
	CurrentNonces                []string `json:"currentNonces"`
	AccruedServiceStakingRewards string   `json:"accruedServiceStakingRewards"`
	MinStakingDeposit            string   `json:"minStakingDeposit"`
	MinimumStakedAmount          string   `json:"minimumStakedAmount"`
	AvailableRewardsForEpoch     string   `json:"availableRewardsForEpoch"`
	RequiredActivity             string   `json:"requiredActivity,omitempty"`
	ObservedActivity             string   `json:"observedActivity,omitempty"`
	HasStakingHistory            bool     `json:"hasStakingHistory"`
	IsEligibleForRewards         bool     `json:"isEligibleForRewards"`

	AccruedServiceStakingRewardsDisplay string `json:"accruedServiceStakingRewardsDisplay"`
	MinimumStakedAmountDisplay          string `json:"minimumStakedAmountDisplay"`
	AvailableRewardsForEpochDisplay     string `json:"availableRewardsForEpochDisplay"`

	ObservedAt time.Time `json:"observedAt"`
}

func NewSnapshotResponse(s *stakingTypes.StakingRewardsSnapshot) *SnapshotResponse {
	if s == nil {
		return nil
	}
	return &SnapshotResponse{
		ChainId:       s.ChainId,
		ProgramId:     s.ProgramId,
		ServiceId:     s.ServiceId,
		Multisig:      s.Multisig.Hex(),
		TokenSymbol:   s.Token.Symbol,
		TokenDecimals: s.Token.Decimals,

		LivenessPeriod:               bigString(s.LivenessPeriod),
		TsCheckpoint:                 bigString(s.TsCheckpoint),
		RewardsPerSecond:             bigString(s.RewardsPerSecond),
		LivenessRatio:                bigString(s.LivenessRatio),
		NoncesAtCheckpoint:           bigStrings(s.NoncesAtCheckpoint),
		CurrentNonces:                bigStrings(s.CurrentNonces),
		AccruedServiceStakingRewards: bigString(s.AccruedServiceStakingRewards),
		MinStakingDeposit:            bigString(s.MinStakingDeposit),
		MinimumStakedAmount:          bigString(s.MinimumStakedAmount),
		AvailableRewardsForEpoch:     bigString(s.AvailableRewardsForEpoch),
		RequiredActivity:             bigString(s.RequiredActivity),
		ObservedActivity:             bigString(s.ObservedActivity),
		HasStakingHistory:            s.HasStakingHistory,
		IsEligibleForRewards:         s.IsEligibleForRewards,

		AccruedServiceStakingRewardsDisplay: s.AccruedServiceStakingRewardsDisplay().String(),
		MinimumStakedAmountDisplay:          s.MinimumStakedAmountDisplay().String(),
		AvailableRewardsForEpochDisplay:     s.AvailableRewardsForEpochDisplay().String(),

		ObservedAt: s.ObservedAt.UTC(),
	}
}

type ContractDetailsResponse struct {
	ChainId                     uint64   `json:"chainId"`
	ProgramId                   string   `json:"programId"`
	TokenSymbol                 string   `json:"tokenSymbol"`
	MaxNumServices              string   `json:"maxNumServices"`
	ServiceIds                  []string `json:"serviceIds"`
	AvailableSlots              string   `json:"availableSlots"`
	MinStakingDuration          string   `json:"minStakingDuration"`
	MinStakingDeposit           string   `json:"minStakingDeposit"`
	MinimumStakedAmount         string   `json:"minimumStakedAmount"`
	MinimumStakedAmountDisplay  string   `json:"minimumStakedAmountDisplay"`
	RewardsPerSecond            string   `json:"rewardsPerSecond"`
	LivenessPeriod              string   `json:"livenessPeriod"`
	RewardsPerWorkPeriod        string   `json:"rewardsPerWorkPeriod"`
	RewardsPerWorkPeriodDisplay string   `json:"rewardsPerWorkPeriodDisplay"`
	EpochCounter                string   `json:"epochCounter"`
	AvailableRewards            string   `json:"availableRewards"`
	AvailableRewardsDisplay     string   `json:"availableRewardsDisplay"`
	TsCheckpoint                string   `json:"tsCheckpoint"`
	NextCheckpointTimestamp     string   `json:"nextCheckpointTimestamp"`
	Apy                         string   `json:"apy"`
}

func NewContractDetailsResponse(d *stakingTypes.StakingContractDetails) *ContractDetailsResponse {
	return &ContractDetailsResponse{
		ChainId:                     d.ChainId,
		ProgramId:                   d.ProgramId,
		TokenSymbol:                 d.Token.Symbol,
		MaxNumServices:              bigString(d.MaxNumServices),
		ServiceIds:                  bigStrings(d.ServiceIds),
		AvailableSlots:              bigString(d.AvailableSlots),
		MinStakingDuration:          bigString(d.MinStakingDuration),
		MinStakingDeposit:           bigString(d.MinStakingDeposit),
		MinimumStakedAmount:         bigString(d.MinimumStakedAmount),
		MinimumStakedAmountDisplay:  displayString(d.MinimumStakedAmount, d.Token),
		RewardsPerSecond:            bigString(d.RewardsPerSecond),
		LivenessPeriod:              bigString(d.LivenessPeriod),
		RewardsPerWorkPeriod:        bigString(d.RewardsPerWorkPeriod),
		RewardsPerWorkPeriodDisplay: displayString(d.RewardsPerWorkPeriod, d.Token),
		EpochCounter:                bigString(d.EpochCounter),
		AvailableRewards:            bigString(d.AvailableRewards),
		AvailableRewardsDisplay:     displayString(d.AvailableRewards, d.Token),
		TsCheckpoint:                bigString(d.TsCheckpoint),
		NextCheckpointTimestamp:     bigString(d.NextCheckpointTimestamp),
		Apy:                         d.Apy.String(),
	}
}

type ServiceStakingResponse struct {
	ChainId                    uint64 `json:"chainId"`
	ProgramId                  string `json:"programId"`
	ServiceId                  uint64 `json:"serviceId"`
	StakingState               string `json:"stakingState"`
	TsStart                    string `json:"tsStart"`
	MinStakingDuration         string `json:"minStakingDuration"`
	CanUnstakeAt               string `json:"canUnstakeAt"`
	IsStakedForMinimumDuration bool   `json:"isStakedForMinimumDuration"`
}

func NewServiceStakingResponse(d *stakingTypes.ServiceStakingDetails) *ServiceStakingResponse {
	return &ServiceStakingResponse{
		ChainId:                    d.ChainId,
		ProgramId:                  d.ProgramId,
		ServiceId:                  d.ServiceId,
		StakingState:               d.StakingState.String(),
		TsStart:                    bigString(d.TsStart),
		MinStakingDuration:         bigString(d.MinStakingDuration),
		CanUnstakeAt:               bigString(d.CanUnstakeAt),
		IsStakedForMinimumDuration: d.IsStakedForMinimumDuration,
	}
}

type ServiceRegistryResponse struct {
	ChainId           uint64 `json:"chainId"`
	ServiceId         uint64 `json:"serviceId"`
	ServiceState      string `json:"serviceState"`
	Multisig          string `json:"multisig"`
	NumAgentInstances uint32 `json:"numAgentInstances"`
	BondToken         string `json:"bondToken"`
	SecurityDeposit   string `json:"securityDeposit"`
	AgentBond         string `json:"agentBond"`
}

func NewServiceRegistryResponse(i *stakingTypes.ServiceRegistryInfo) *ServiceRegistryResponse {
	return &ServiceRegistryResponse{
		ChainId:           i.ChainId,
		ServiceId:         i.ServiceId,
		ServiceState:      i.ServiceState.String(),
		Multisig:          i.Multisig.Hex(),
		NumAgentInstances: i.NumAgentInstances,
		BondToken:         i.BondToken.Hex(),
		SecurityDeposit:   bigString(i.SecurityDeposit),
		AgentBond:         bigString(i.AgentBond),
	}
}

type PollResultResponse struct {
	ChainId       uint64            `json:"chainId"`
	ProgramId     string            `json:"programId"`
	ServiceId     uint64            `json:"serviceId"`
	Name          string            `json:"name,omitempty"`
	Stale         bool              `json:"stale"`
	ErrorKind     string            `json:"errorKind,omitempty"`
	Error         string            `json:"error,omitempty"`
	UpdatedAt     *time.Time        `json:"updatedAt,omitempty"`
	LastAttemptAt time.Time         `json:"lastAttemptAt"`
	CycleId       string            `json:"cycleId"`
	Snapshot      *SnapshotResponse `json:"snapshot"`
}

func NewPollResultResponse(r *rewardsPoller.PollResult) *PollResultResponse {
	res := &PollResultResponse{
		ChainId:       r.Service.ChainId,
		ProgramId:     r.Service.ProgramId,
		ServiceId:     r.Service.Service.ServiceId,
		Name:          r.Service.Name,
		Stale:         r.Stale,
		ErrorKind:     string(r.ErrorKind),
		Error:         r.Error,
		LastAttemptAt: r.LastAttemptAt.UTC(),
		CycleId:       r.CycleId,
		Snapshot:      NewSnapshotResponse(r.Snapshot),
	}
	if !r.UpdatedAt.IsZero() {
		updated := r.UpdatedAt.UTC()
		res.UpdatedAt = &updated
	}
	return res
}
