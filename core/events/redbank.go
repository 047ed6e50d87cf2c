package events

import (
	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
)

const (
	// TypeMarketInitialized is emitted when the owner lists a new market.
	TypeMarketInitialized = "redbank.market_initialized"
	// TypeMarketUpdated is emitted when market parameters change.
	TypeMarketUpdated = "redbank.market_updated"
	// TypeInterestAccrued is emitted when indexes advance and reserves are minted.
	TypeInterestAccrued = "redbank.interest_accrued"
	// TypeRedBankDeposit is emitted for every collateral deposit.
	TypeRedBankDeposit = "redbank.deposit"
	// TypeRedBankWithdraw is emitted for every collateral withdrawal.
	TypeRedBankWithdraw = "redbank.withdraw"
	// TypeRedBankBorrow is emitted for every borrow.
	TypeRedBankBorrow = "redbank.borrow"
	// TypeRedBankRepay is emitted for every repayment.
	TypeRedBankRepay = "redbank.repay"
	// TypeRedBankLiquidation is emitted when a money-market user is liquidated.
	TypeRedBankLiquidation = "redbank.liquidate"
	// TypeCollateralStatus is emitted when a user toggles an asset as collateral.
	TypeCollateralStatus = "redbank.collateral_status"
	// TypeUncollateralizedLimit is emitted when the owner sets a credit line.
	TypeUncollateralizedLimit = "redbank.uncollateralized_limit"
)

type MarketInitialized struct {
	Denom string
}

func (MarketInitialized) EventType() string { return TypeMarketInitialized }

func (e MarketInitialized) Event() *types.Event {
	return &types.Event{Type: TypeMarketInitialized, Attributes: map[string]string{"denom": e.Denom}}
}

type MarketUpdated struct {
	Denom         string
	ReserveFactor sdkmath.LegacyDec
}

func (MarketUpdated) EventType() string { return TypeMarketUpdated }

func (e MarketUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketUpdated,
		Attributes: map[string]string{
			"denom":          e.Denom,
			"reserve_factor": decimal(e.ReserveFactor),
		},
	}
}

type InterestAccrued struct {
	Denom          string
	BorrowIndex    sdkmath.LegacyDec
	LiquidityIndex sdkmath.LegacyDec
	ProtocolReward sdkmath.Int
}

func (InterestAccrued) EventType() string { return TypeInterestAccrued }

func (e InterestAccrued) Event() *types.Event {
	return &types.Event{
		Type: TypeInterestAccrued,
		Attributes: map[string]string{
			"denom":           e.Denom,
			"borrow_index":    decimal(e.BorrowIndex),
			"liquidity_index": decimal(e.LiquidityIndex),
			"protocol_reward": amount(e.ProtocolReward),
		},
	}
}

// RedBankAction records a deposit, withdraw, borrow or repay. Type selects
// which.
type RedBankAction struct {
	Type      string
	Sender    string
	User      string
	AccountID string
	Coin      types.Coin
	Recipient string
}

func (e RedBankAction) EventType() string { return e.Type }

func (e RedBankAction) Event() *types.Event {
	attrs := map[string]string{
		"sender": trim(e.Sender),
		"user":   trim(e.User),
		"amount": e.Coin.String(),
	}
	if e.AccountID != "" {
		attrs["account_id"] = e.AccountID
	}
	if e.Recipient != "" {
		attrs["recipient"] = trim(e.Recipient)
	}
	return &types.Event{Type: e.Type, Attributes: attrs}
}

type RedBankLiquidation struct {
	Liquidator       string
	User             string
	DebtRepaid       types.Coin
	CollateralSeized types.Coin
	ProtocolFee      types.Coin
	HealthFactor     sdkmath.LegacyDec
	Bonus            sdkmath.LegacyDec
}

func (RedBankLiquidation) EventType() string { return TypeRedBankLiquidation }

func (e RedBankLiquidation) Event() *types.Event {
	return &types.Event{
		Type: TypeRedBankLiquidation,
		Attributes: map[string]string{
			"liquidator":        trim(e.Liquidator),
			"user":              trim(e.User),
			"debt_repaid":       e.DebtRepaid.String(),
			"collateral_seized": e.CollateralSeized.String(),
			"protocol_fee":      e.ProtocolFee.String(),
			"health_factor":     decimal(e.HealthFactor),
			"bonus":             decimal(e.Bonus),
		},
	}
}

type CollateralStatus struct {
	User    string
	Denom   string
	Enabled bool
}

func (CollateralStatus) EventType() string { return TypeCollateralStatus }

func (e CollateralStatus) Event() *types.Event {
	enabled := "false"
	if e.Enabled {
		enabled = "true"
	}
	return &types.Event{
		Type:       TypeCollateralStatus,
		Attributes: map[string]string{"user": trim(e.User), "denom": e.Denom, "enabled": enabled},
	}
}

type UncollateralizedLimit struct {
	User  string
	Denom string
	Limit sdkmath.Int
}

func (UncollateralizedLimit) EventType() string { return TypeUncollateralizedLimit }

func (e UncollateralizedLimit) Event() *types.Event {
	return &types.Event{
		Type:       TypeUncollateralizedLimit,
		Attributes: map[string]string{"user": trim(e.User), "denom": e.Denom, "limit": amount(e.Limit)},
	}
}
