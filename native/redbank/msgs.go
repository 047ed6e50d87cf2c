package redbank

import (
	sdkmath "cosmossdk.io/math"
)

// MarketParams are the owner-controlled settings of a market.
type MarketParams struct {
	ReserveFactor     sdkmath.LegacyDec `json:"reserve_factor"`
	InterestRateModel InterestRateModel `json:"interest_rate_model"`
}

// InitAsset lists a new market. Owner only.
type InitAsset struct {
	Denom  string       `json:"denom"`
	Params MarketParams `json:"params"`
}

// UpdateAsset changes the settings of a listed market. Owner only; nil
// fields are left as they are.
type UpdateAsset struct {
	Denom             string             `json:"denom"`
	ReserveFactor     *sdkmath.LegacyDec `json:"reserve_factor,omitempty"`
	InterestRateModel *InterestRateModel `json:"interest_rate_model,omitempty"`
}

// UpdateUncollateralizedLoanLimit sets the credit line of a user in one
// denom. Owner only.
type UpdateUncollateralizedLoanLimit struct {
	User     string      `json:"user"`
	Denom    string      `json:"denom"`
	NewLimit sdkmath.Int `json:"new_limit"`
}

// UpdateMigrationGuard locks or unlocks every user-facing mutation. Owner
// only.
type UpdateMigrationGuard struct {
	Lock bool `json:"lock"`
}

// Deposit adds the attached coin to the collateral of the sender, or of
// OnBehalfOf when set.
type Deposit struct {
	AccountID  string `json:"account_id,omitempty"`
	OnBehalfOf string `json:"on_behalf_of,omitempty"`
}

// Withdraw removes collateral. A nil Amount withdraws everything.
type Withdraw struct {
	Denom              string       `json:"denom"`
	Amount             *sdkmath.Int `json:"amount,omitempty"`
	Recipient          string       `json:"recipient,omitempty"`
	AccountID          string       `json:"account_id,omitempty"`
	LiquidationRelated bool         `json:"liquidation_related,omitempty"`
}

// Borrow lends Amount of Denom to the sender, paying Recipient when set.
type Borrow struct {
	Denom     string      `json:"denom"`
	Amount    sdkmath.Int `json:"amount"`
	Recipient string      `json:"recipient,omitempty"`
	AccountID string      `json:"account_id,omitempty"`
}

// Repay pays down debt with the attached coin. Any excess is refunded.
type Repay struct {
	OnBehalfOf string `json:"on_behalf_of,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
}

// UpdateAssetCollateralStatus toggles whether a deposit backs borrows.
type UpdateAssetCollateralStatus struct {
	Denom  string `json:"denom"`
	Enable bool   `json:"enable"`
}

// Liquidate repays debt of an unhealthy User with the attached coin and
// seizes CollateralDenom in return. The seized collateral is credited to
// Recipient, or the sender, as a collateral position.
type Liquidate struct {
	User            string `json:"user"`
	CollateralDenom string `json:"collateral_denom"`
	Recipient       string `json:"recipient,omitempty"`
}

// CollateralTransfer is one leg of TransferCollateral.
type CollateralTransfer struct {
	AccountID string      `json:"account_id"`
	Amount    sdkmath.Int `json:"amount"`
}

// TransferCollateral moves lent collateral between credit accounts. Credit
// manager only.
type TransferCollateral struct {
	Denom         string               `json:"denom"`
	FromAccountID string               `json:"from_account_id"`
	To            []CollateralTransfer `json:"to"`
}
