package incentives

import (
	"math/big"

	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
)

// BalanceChange is sent by the money market before a collateral position
// changes. The amounts are the scaled values prior to the change.
type BalanceChange struct {
	UserAddr                string      `json:"user_addr"`
	AccountID               string      `json:"account_id,omitempty"`
	Denom                   string      `json:"denom"`
	UserAmountScaledBefore  sdkmath.Int `json:"user_amount_scaled_before"`
	TotalAmountScaledBefore sdkmath.Int `json:"total_amount_scaled_before"`
}

// SetAssetIncentive schedules an emission of RewardDenom to depositors of
// CollateralDenom. The full budget, EmissionPerSecond times Duration, must
// be attached.
type SetAssetIncentive struct {
	CollateralDenom   string      `json:"collateral_denom"`
	RewardDenom       string      `json:"reward_denom"`
	EmissionPerSecond sdkmath.Int `json:"emission_per_second"`
	StartTime         uint64      `json:"start_time"`
	Duration          uint64      `json:"duration"`
}

// ClaimRewards pays every accrued reward of (sender, AccountID).
type ClaimRewards struct {
	AccountID string `json:"account_id,omitempty"`
}

// StakeLp stakes the attached LP coin for a credit account.
type StakeLp struct {
	AccountID string `json:"account_id"`
}

// UnstakeLp returns staked LP coins to the credit manager.
type UnstakeLp struct {
	AccountID string     `json:"account_id"`
	LpCoin    types.Coin `json:"lp_coin"`
}

// FundLpRewards distributes the attached coins across the current stakers of
// LpDenom.
type FundLpRewards struct {
	LpDenom string `json:"lp_denom"`
}

// Emission describes one scheduled reward stream.
type Emission struct {
	CollateralDenom   string      `json:"collateral_denom"`
	RewardDenom       string      `json:"reward_denom"`
	EmissionPerSecond sdkmath.Int `json:"emission_per_second"`
	StartTime         uint64      `json:"start_time"`
	EndTime           uint64      `json:"end_time"`
}

type emissionRecord struct {
	PerSecond *big.Int
	Start     uint64
	End       uint64
}

type indexRecord struct {
	Index       *big.Int
	LastUpdated uint64
}

type userRecord struct {
	Index     *big.Int
	Unclaimed *big.Int
}

type userReward struct {
	index     sdkmath.LegacyDec
	unclaimed sdkmath.Int
}

func (r userRecord) decode() userReward {
	return userReward{index: types.BigToDec(r.Index), unclaimed: types.BigToInt(r.Unclaimed)}
}

func (u userReward) encode() userRecord {
	return userRecord{Index: types.DecToBig(u.index), Unclaimed: types.IntToBig(u.unclaimed)}
}
