// Package stakingTypes holds the domain types shared by the registry, the aggregator and its consumers.
package stakingTypes

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/internal/types/numbers"
	"github.com/shopspring/decimal"
)

// AgentFamily names a kind of autonomous agent (trader, memeooorr, ...).
type AgentFamily string

// ServiceIdentity is one user's deployed agent instance on a chain.
// It is supplied by the service backend and treated as opaque input.
type ServiceIdentity struct {
	ServiceId uint64
	Multisig  common.Address
}

func (s ServiceIdentity) String() string {
	return fmt.Sprintf("%d@%s", s.ServiceId, s.Multisig.Hex())
}

type Token struct {
	Symbol   string
	Decimals int32
}

// StakingState mirrors the staking contract's StakingState enum.
type StakingState uint8

const (
	StakingState_Unstaked StakingState = 0
	StakingState_Staked   StakingState = 1
	StakingState_Evicted  StakingState = 2
)

func (s StakingState) String() string {
	switch s {
	case StakingState_Unstaked:
		return "unstaked"
	case StakingState_Staked:
		return "staked"
	case StakingState_Evicted:
		return "evicted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ServiceState mirrors the service registry's ServiceState enum.
type ServiceState uint8

const (
	ServiceState_NonExistent          ServiceState = 0
	ServiceState_PreRegistration      ServiceState = 1
	ServiceState_ActiveRegistration   ServiceState = 2
	ServiceState_FinishedRegistration ServiceState = 3
	ServiceState_Deployed             ServiceState = 4
	ServiceState_TerminatedBonded     ServiceState = 5
)

func (s ServiceState) String() string {
	switch s {
	case ServiceState_NonExistent:
		return "non_existent"
	case ServiceState_PreRegistration:
		return "pre_registration"
	case ServiceState_ActiveRegistration:
		return "active_registration"
	case ServiceState_FinishedRegistration:
		return "finished_registration"
	case ServiceState_Deployed:
		return "deployed"
	case ServiceState_TerminatedBonded:
		return "terminated_bonded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// StakingRewardsSnapshot is a point-in-time, advisory read of a service's standing in a
// staking program. It is recomputed on every poll and never written anywhere.
// All amounts are raw on-chain integers; use the *Display accessors for rendering.
type StakingRewardsSnapshot struct {
	ChainId   uint64
	ProgramId string
	ServiceId uint64
	Multisig  common.Address
	Token     Token

	LivenessPeriod               *big.Int
	TsCheckpoint                 *big.Int
	RewardsPerSecond             *big.Int
	LivenessRatio                *big.Int
	NoncesAtCheckpoint           []*big.Int
	CurrentNonces                []*big.Int
	AccruedServiceStakingRewards *big.Int
	MinStakingDeposit            *big.Int

	MinimumStakedAmount      *big.Int
	AvailableRewardsForEpoch *big.Int
	RequiredActivity         *big.Int
	ObservedActivity         *big.Int
	HasStakingHistory        bool
	IsEligibleForRewards     bool

	ObservedAt time.Time
}

func (s *StakingRewardsSnapshot) AvailableRewardsForEpochDisplay() decimal.Decimal {
	return numbers.ToDisplayDecimal(s.AvailableRewardsForEpoch, s.Token.Decimals)
}

func (s *StakingRewardsSnapshot) MinimumStakedAmountDisplay() decimal.Decimal {
	return numbers.ToDisplayDecimal(s.MinimumStakedAmount, s.Token.Decimals)
}

func (s *StakingRewardsSnapshot) AccruedServiceStakingRewardsDisplay() decimal.Decimal {
	return numbers.ToDisplayDecimal(s.AccruedServiceStakingRewards, s.Token.Decimals)
}

// StakingContractDetails describes a staking program's contract as a whole.
type StakingContractDetails struct {
	ChainId   uint64
	ProgramId string
	Token     Token

	MaxNumServices          *big.Int
	ServiceIds              []*big.Int
	AvailableSlots          *big.Int
	MinStakingDuration      *big.Int
	MinStakingDeposit       *big.Int
	MinimumStakedAmount     *big.Int
	RewardsPerSecond        *big.Int
	LivenessPeriod          *big.Int
	RewardsPerWorkPeriod    *big.Int
	EpochCounter            *big.Int
	AvailableRewards        *big.Int
	TsCheckpoint            *big.Int
	NextCheckpointTimestamp *big.Int
	Apy                     decimal.Decimal
}

// ServiceStakingDetails describes where a service stands in its staking lifecycle.
type ServiceStakingDetails struct {
	ChainId                    uint64
	ProgramId                  string
	ServiceId                  uint64
	StakingState               StakingState
	TsStart                    *big.Int
	MinStakingDuration         *big.Int
	CanUnstakeAt               *big.Int
	IsStakedForMinimumDuration bool
}

// ServiceRegistryInfo is the registry side of a service: its state, bond and deposit.
type ServiceRegistryInfo struct {
	ChainId           uint64
	ServiceId         uint64
	ServiceState      ServiceState
	Multisig          common.Address
	NumAgentInstances uint32
	BondToken         common.Address
	SecurityDeposit   *big.Int
	AgentBond         *big.Int
}

// WatchedService is a service a poller refreshes every cycle.
type WatchedService struct {
	ChainId   uint64
	ProgramId string
	Service   ServiceIdentity
	// Name is a display label, empty for statically configured services.
	Name string
}

func (w WatchedService) String() string {
	return fmt.Sprintf("%d/%s/%d", w.ChainId, w.ProgramId, w.Service.ServiceId)
}
