package events

import (
	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
)

const (
	// TypeCreditAccountCreated is emitted when a credit account token is minted.
	TypeCreditAccountCreated = "creditmanager.account_created"
	// TypeCreditAccountAction is emitted for every action of a batch.
	TypeCreditAccountAction = "creditmanager.action"
	// TypeCoinBalanceUpdated is emitted when coins of unknown amount are
	// credited to an account after an external call.
	TypeCoinBalanceUpdated = "creditmanager.coin_balance_updated"
	// TypeCreditAccountLiquidation is emitted when a credit account is liquidated.
	TypeCreditAccountLiquidation = "creditmanager.liquidate"
	// TypeCreditManagerConfigUpdated is emitted when the owner changes the config.
	TypeCreditManagerConfigUpdated = "creditmanager.config_updated"
)

type CreditAccountCreated struct {
	AccountID string
	Owner     string
	Kind      string
}

func (CreditAccountCreated) EventType() string { return TypeCreditAccountCreated }

func (e CreditAccountCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeCreditAccountCreated,
		Attributes: map[string]string{
			"account_id": e.AccountID,
			"owner":      trim(e.Owner),
			"kind":       e.Kind,
		},
	}
}

type CreditAccountAction struct {
	AccountID string
	Action    string
	Coins     types.Coins
}

func (CreditAccountAction) EventType() string { return TypeCreditAccountAction }

func (e CreditAccountAction) Event() *types.Event {
	return &types.Event{
		Type: TypeCreditAccountAction,
		Attributes: map[string]string{
			"account_id": e.AccountID,
			"action":     e.Action,
			"coins":      e.Coins.String(),
		},
	}
}

type CoinBalanceUpdated struct {
	AccountID string
	Credited  types.Coin
}

func (CoinBalanceUpdated) EventType() string { return TypeCoinBalanceUpdated }

func (e CoinBalanceUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeCoinBalanceUpdated,
		Attributes: map[string]string{
			"account_id": e.AccountID,
			"credited":   e.Credited.String(),
		},
	}
}

type CreditAccountLiquidation struct {
	LiquidatorAccountID string
	LiquidateeAccountID string
	Bucket              string
	DebtRepaid          types.Coin
	CollateralSeized    types.Coin
	ProtocolFee         types.Coin
	HealthFactor        sdkmath.LegacyDec
	Bonus               sdkmath.LegacyDec
}

func (CreditAccountLiquidation) EventType() string { return TypeCreditAccountLiquidation }

func (e CreditAccountLiquidation) Event() *types.Event {
	return &types.Event{
		Type: TypeCreditAccountLiquidation,
		Attributes: map[string]string{
			"liquidator_account_id": e.LiquidatorAccountID,
			"liquidatee_account_id": e.LiquidateeAccountID,
			"bucket":                e.Bucket,
			"debt_repaid":           e.DebtRepaid.String(),
			"collateral_seized":     e.CollateralSeized.String(),
			"protocol_fee":          e.ProtocolFee.String(),
			"health_factor":         decimal(e.HealthFactor),
			"bonus":                 decimal(e.Bonus),
		},
	}
}

type CreditManagerConfigUpdated struct {
	By string
}

func (CreditManagerConfigUpdated) EventType() string { return TypeCreditManagerConfigUpdated }

func (e CreditManagerConfigUpdated) Event() *types.Event {
	return &types.Event{Type: TypeCreditManagerConfigUpdated, Attributes: map[string]string{"by": trim(e.By)}}
}
