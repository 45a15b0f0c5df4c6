package rewards

import (
	"fmt"
	"math/big"

	"github.com/pearl-agents/staking-sidecar/internal/types/numbers"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/shopspring/decimal"
)

// SecondsPerYear is the 365 day year staking APYs are quoted in.
const SecondsPerYear = 31_536_000

type EligibilityInput struct {
	NoncesAtCheckpoint []*big.Int
	CurrentNonces      []*big.Int
	ActivityNonceIndex int

	LivenessPeriod *big.Int
	LivenessRatio  *big.Int
	TsCheckpoint   *big.Int
	Now            *big.Int

	CheckpointSafetyMargin       *big.Int
	RequiredActivitySafetyMargin *big.Int
}

type EligibilityResult struct {
	ObservedActivity *big.Int
	RequiredActivity *big.Int
	IsEligible       bool
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// elapsedSinceCheckpoint is now - tsCheckpoint, clamped at zero.
func elapsedSinceCheckpoint(tsCheckpoint *big.Int, now *big.Int) *big.Int {
	elapsed := new(big.Int).Sub(now, zeroIfNil(tsCheckpoint))
	if elapsed.Sign() < 0 {
		return new(big.Int)
	}
	return elapsed
}

// EvaluateEligibility compares the activity a service showed since the last checkpoint with
// the activity the liveness ratio demands:
//
//	observed = current[idx] - checkpoint[idx]                       (clamped at 0)
//	elapsed  = max(livenessPeriod, now - tsCheckpoint) + checkpointSafetyMargin
//	required = ceil(elapsed * livenessRatio / 1e18) + requiredActivitySafetyMargin
//
// All arithmetic is integer arithmetic on the raw on-chain values.
func EvaluateEligibility(in *EligibilityInput) (*EligibilityResult, error) {
	idx := in.ActivityNonceIndex
	if idx < 0 || idx >= len(in.NoncesAtCheckpoint) || idx >= len(in.CurrentNonces) {
		return nil, fmt.Errorf("%w: activity nonce index %d out of range (checkpoint nonces %d, current nonces %d)",
			stakingTypes.ErrCallEncoding, idx, len(in.NoncesAtCheckpoint), len(in.CurrentNonces))
	}

	observed := new(big.Int).Sub(zeroIfNil(in.CurrentNonces[idx]), zeroIfNil(in.NoncesAtCheckpoint[idx]))
	if observed.Sign() < 0 {
		observed.SetInt64(0)
	}

	elapsed := new(big.Int).Set(numbers.MaxBig(zeroIfNil(in.LivenessPeriod), elapsedSinceCheckpoint(in.TsCheckpoint, in.Now)))
	elapsed.Add(elapsed, zeroIfNil(in.CheckpointSafetyMargin))

	required := new(big.Int).Mul(elapsed, zeroIfNil(in.LivenessRatio))
	required = numbers.CeilDiv(required, numbers.WadScale)
	required.Add(required, zeroIfNil(in.RequiredActivitySafetyMargin))

	return &EligibilityResult{
		ObservedActivity: observed,
		RequiredActivity: required,
		IsEligible:       observed.Cmp(required) >= 0,
	}, nil
}

// AvailableRewardsForEpoch is max(rps * livenessPeriod, rps * max(0, now - tsCheckpoint)).
func AvailableRewardsForEpoch(rewardsPerSecond, livenessPeriod, tsCheckpoint, now *big.Int) *big.Int {
	rps := zeroIfNil(rewardsPerSecond)
	perPeriod := new(big.Int).Mul(rps, zeroIfNil(livenessPeriod))
	sinceCheckpoint := new(big.Int).Mul(rps, elapsedSinceCheckpoint(tsCheckpoint, now))
	return new(big.Int).Set(numbers.MaxBig(perPeriod, sinceCheckpoint))
}

// MinimumStakedAmount is multiplier * minStakingDeposit: one deposit plus one bond per agent instance.
func MinimumStakedAmount(minStakingDeposit *big.Int, multiplier *big.Int) *big.Int {
	return new(big.Int).Mul(zeroIfNil(minStakingDeposit), multiplier)
}

// Apy is rps * SecondsPerYear * 100 / (maxNumServices * minimumStakedAmount), rounded to two
// places. It is zero when the program has no capacity or no stake requirement.
func Apy(rewardsPerSecond, maxNumServices, minimumStakedAmount *big.Int) decimal.Decimal {
	denominator := new(big.Int).Mul(zeroIfNil(maxNumServices), zeroIfNil(minimumStakedAmount))
	if denominator.Sign() == 0 {
		return decimal.Zero
	}
	rewardsPerYear := new(big.Int).Mul(zeroIfNil(rewardsPerSecond), big.NewInt(SecondsPerYear))
	numerator := new(big.Int).Mul(rewardsPerYear, big.NewInt(100))

	return decimal.NewFromBigInt(numerator, 0).
		Div(decimal.NewFromBigInt(denominator, 0)).
		Round(2)
}
