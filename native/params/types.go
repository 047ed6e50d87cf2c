package params

import (
	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
)

// LiquidationBonus parameterises the dynamic liquidation bonus
// lb = clamp(starting_lb + slope * (1 - hf), min_lb, max_lb).
type LiquidationBonus struct {
	StartingLB sdkmath.LegacyDec `json:"starting_lb"`
	Slope      sdkmath.LegacyDec `json:"slope"`
	MinLB      sdkmath.LegacyDec `json:"min_lb"`
	MaxLB      sdkmath.LegacyDec `json:"max_lb"`
}

// HlsCorrelation names an asset an HLS debt may be paired with. Exactly one
// of Denom or Vault is set.
type HlsCorrelation struct {
	Denom string `json:"denom,omitempty"`
	Vault string `json:"vault,omitempty"`
}

// HlsParams are the stricter ratios applied to High-Leverage-Strategy
// accounts together with the correlated-asset list.
type HlsParams struct {
	MaxLoanToValue       sdkmath.LegacyDec `json:"max_loan_to_value"`
	LiquidationThreshold sdkmath.LegacyDec `json:"liquidation_threshold"`
	Correlations         []HlsCorrelation  `json:"correlations"`
}

// Correlated reports whether c appears in the correlation list.
func (h *HlsParams) Correlated(c HlsCorrelation) bool {
	if h == nil {
		return false
	}
	for _, existing := range h.Correlations {
		if existing == c {
			return true
		}
	}
	return false
}

// CreditManagerSettings gate the use of an asset inside credit accounts.
type CreditManagerSettings struct {
	Whitelisted bool       `json:"whitelisted"`
	Hls         *HlsParams `json:"hls,omitempty"`
}

// RedBankSettings gate deposits and borrows in the money market.
type RedBankSettings struct {
	DepositEnabled bool `json:"deposit_enabled"`
	BorrowEnabled  bool `json:"borrow_enabled"`
}

// AssetParams are the risk parameters of one denom.
type AssetParams struct {
	Denom                  string                `json:"denom"`
	CreditManager          CreditManagerSettings `json:"credit_manager"`
	RedBank                RedBankSettings       `json:"red_bank"`
	MaxLoanToValue         sdkmath.LegacyDec     `json:"max_loan_to_value"`
	LiquidationThreshold   sdkmath.LegacyDec     `json:"liquidation_threshold"`
	LiquidationBonus       LiquidationBonus      `json:"liquidation_bonus"`
	ProtocolLiquidationFee sdkmath.LegacyDec     `json:"protocol_liquidation_fee"`
	DepositCap             sdkmath.Int           `json:"deposit_cap"`
}

// VaultConfig holds the risk parameters of a vault's share token.
type VaultConfig struct {
	Addr                 string            `json:"addr"`
	DepositCap           types.Coin        `json:"deposit_cap"`
	MaxLoanToValue       sdkmath.LegacyDec `json:"max_loan_to_value"`
	LiquidationThreshold sdkmath.LegacyDec `json:"liquidation_threshold"`
	Whitelisted          bool              `json:"whitelisted"`
	Hls                  *HlsParams        `json:"hls,omitempty"`
}

// Pauses toggles user-facing mutations per module.
type Pauses struct {
	RedBank       bool `json:"red_bank"`
	CreditManager bool `json:"credit_manager"`
	Swapper       bool `json:"swapper"`
	Zapper        bool `json:"zapper"`
	Vaults        bool `json:"vaults"`
}

// Module names understood by Pauses.IsPaused.
const (
	ModuleRedBank       = "redbank"
	ModuleCreditManager = "creditmanager"
	ModuleSwapper       = "swapper"
	ModuleZapper        = "zapper"
	ModuleVaults        = "vaults"
)

// IsPaused implements common.PauseView.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case ModuleRedBank:
		return p.RedBank
	case ModuleCreditManager:
		return p.CreditManager
	case ModuleSwapper:
		return p.Swapper
	case ModuleZapper:
		return p.Zapper
	case ModuleVaults:
		return p.Vaults
	default:
		return false
	}
}
