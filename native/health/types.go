package health

import (
	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
	"creditchain/native/params"
)

// Kind selects which risk parameters apply to an account.
type Kind uint8

const (
	KindDefault Kind = iota
	KindHighLeveredStrategy
)

func (k Kind) String() string {
	if k == KindHighLeveredStrategy {
		return "high_levered_strategy"
	}
	return "default"
}

// BorrowTarget is where borrowed coins end up for the borrow estimate.
type BorrowTarget uint8

const (
	// BorrowTargetDeposit keeps the borrowed coins in the account, where they
	// count as collateral.
	BorrowTargetDeposit BorrowTarget = iota
	// BorrowTargetWallet sends the borrowed coins out of the account.
	BorrowTargetWallet
)

// Debt is an outstanding borrow in underlying units.
type Debt struct {
	Denom            string      `json:"denom"`
	Amount           sdkmath.Int `json:"amount"`
	Uncollateralized bool        `json:"uncollateralized,omitempty"`
}

// VaultPosition values a vault position in its base denom. SharesBase is
// the base amount redeemable for the unlocked and locked shares;
// UnlockingBase is the amount sitting in unlocking buckets.
type VaultPosition struct {
	Vault         string      `json:"vault"`
	BaseDenom     string      `json:"base_denom"`
	SharesBase    sdkmath.Int `json:"shares_base"`
	UnlockingBase sdkmath.Int `json:"unlocking_base"`
}

// Positions lists every collateral source and debt of one account.
type Positions struct {
	Deposits types.Coins     `json:"deposits"`
	Lends    types.Coins     `json:"lends"`
	Debts    []Debt          `json:"debts"`
	Vaults   []VaultPosition `json:"vaults"`
	StakedLP types.Coins     `json:"staked_lp"`
}

// HasDebt reports whether any collateralized debt is outstanding.
func (p Positions) HasDebt() bool {
	for _, d := range p.Debts {
		if !d.Uncollateralized && !d.Amount.IsNil() && d.Amount.IsPositive() {
			return true
		}
	}
	return false
}

// Values is the result of a health computation. Health factors are nil
// when the account has no collateralized debt.
type Values struct {
	TotalDebtValue                         sdkmath.Int        `json:"total_debt_value"`
	TotalCollateralValue                   sdkmath.Int        `json:"total_collateral_value"`
	MaxLTVAdjustedCollateral               sdkmath.Int        `json:"max_ltv_adjusted_collateral"`
	LiquidationThresholdAdjustedCollateral sdkmath.Int        `json:"liquidation_threshold_adjusted_collateral"`
	MaxLTVHealthFactor                     *sdkmath.LegacyDec `json:"max_ltv_health_factor,omitempty"`
	LiquidationHealthFactor                *sdkmath.LegacyDec `json:"liquidation_health_factor,omitempty"`
	Liquidatable                           bool               `json:"liquidatable"`
	AboveMaxLTV                            bool               `json:"above_max_ltv"`
}

// Computer is a pure valuation over positions, parameters and prices.
type Computer struct {
	Kind         Kind
	Positions    Positions
	AssetParams  map[string]params.AssetParams
	VaultConfigs map[string]params.VaultConfig
	Prices       map[string]sdkmath.LegacyDec
	// EnforceWhitelist zeroes the max-LTV weight of assets and vaults that
	// are not whitelisted for credit accounts.
	EnforceWhitelist bool
}
