package creditmanager

import (
	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
)

// CallbackMsg is an internal step queued by UpdateCreditAccount. Each one
// runs as a self-call after the previous step and its sub-messages finish.
type CallbackMsg interface {
	callbackName() string
}

type WithdrawFromAccount struct {
	AccountID string
	Coin      ActionCoin
	Recipient string
}

type BorrowIntoAccount struct {
	AccountID string
	Coin      types.Coin
}

type RepayDebt struct {
	AccountID string
	Coin      ActionCoin
}

// RepayForRecipient pays the debt of RecipientAccountID with coins of
// BenefactorAccountID.
type RepayForRecipient struct {
	BenefactorAccountID string
	RecipientAccountID  string
	Coin                ActionCoin
}

type LendCoin struct {
	AccountID string
	Coin      ActionCoin
}

type ReclaimCoin struct {
	AccountID string
	Coin      ActionCoin
}

type ClaimAccountRewards struct {
	AccountID string
}

type SwapCoin struct {
	AccountID string
	CoinIn    ActionCoin
	DenomOut  string
	Slippage  sdkmath.LegacyDec
	Route     []string
}

type EnterVaultCoin struct {
	AccountID string
	Vault     string
	Coin      ActionCoin
}

type ExitVaultShares struct {
	AccountID string
	Vault     string
	Amount    sdkmath.Int
}

type RequestUnlock struct {
	AccountID string
	Vault     string
	Amount    sdkmath.Int
}

type ExitUnlocked struct {
	AccountID  string
	Vault      string
	PositionID uint64
}

type LiquidateAccount struct {
	LiquidatorAccountID string
	LiquidateeAccountID string
	DebtCoin            types.Coin
	Request             LiquidateRequest
}

type ProvideLp struct {
	AccountID  string
	CoinsIn    []ActionCoin
	LpTokenOut string
	Slippage   sdkmath.LegacyDec
}

type WithdrawLp struct {
	AccountID string
	LpToken   ActionCoin
	Slippage  sdkmath.LegacyDec
}

type StakeLpCoin struct {
	AccountID string
	LpCoin    ActionCoin
}

type UnstakeLpCoin struct {
	AccountID string
	LpCoin    ActionCoin
}

type RefundAll struct {
	AccountID string
	Recipient string
}

// UpdateCoinBalance credits the account with whatever the credit manager
// received in PreviousBalance.Denom since the balance was recorded.
type UpdateCoinBalance struct {
	AccountID       string
	PreviousBalance types.Coin
}

// UpdateVaultCoinBalance credits the account with the vault shares minted
// since PreviousTotalBalance was recorded.
type UpdateVaultCoinBalance struct {
	AccountID            string
	Vault                string
	PreviousTotalBalance sdkmath.Int
}

type AssertHlsRules struct {
	AccountID string
}

// AssertMaxLTV compares the max-LTV health factor with the one recorded
// before the batch. A nil PrevHealthFactor means the account had no debt.
type AssertMaxLTV struct {
	AccountID        string
	PrevHealthFactor *sdkmath.LegacyDec
}

type AssertDepositCaps struct {
	Denoms []string
}

type AssertLiquidationImproved struct {
	AccountID        string
	PrevHealthFactor sdkmath.LegacyDec
}

type RemoveReentrancyGuard struct{}

func (WithdrawFromAccount) callbackName() string       { return "withdraw" }
func (BorrowIntoAccount) callbackName() string         { return "borrow" }
func (RepayDebt) callbackName() string                 { return "repay" }
func (RepayForRecipient) callbackName() string         { return "repay_for_recipient" }
func (LendCoin) callbackName() string                  { return "lend" }
func (ReclaimCoin) callbackName() string               { return "reclaim" }
func (ClaimAccountRewards) callbackName() string       { return "claim_rewards" }
func (SwapCoin) callbackName() string                  { return "swap_exact_in" }
func (EnterVaultCoin) callbackName() string            { return "enter_vault" }
func (ExitVaultShares) callbackName() string           { return "exit_vault" }
func (RequestUnlock) callbackName() string             { return "request_vault_unlock" }
func (ExitUnlocked) callbackName() string              { return "exit_vault_unlocked" }
func (LiquidateAccount) callbackName() string          { return "liquidate" }
func (ProvideLp) callbackName() string                 { return "provide_liquidity" }
func (WithdrawLp) callbackName() string                { return "withdraw_liquidity" }
func (StakeLpCoin) callbackName() string               { return "stake_lp" }
func (UnstakeLpCoin) callbackName() string             { return "unstake_lp" }
func (RefundAll) callbackName() string                 { return "refund_all_coin_balances" }
func (UpdateCoinBalance) callbackName() string         { return "update_coin_balance" }
func (UpdateVaultCoinBalance) callbackName() string    { return "update_vault_coin_balance" }
func (AssertHlsRules) callbackName() string            { return "assert_hls_rules" }
func (AssertMaxLTV) callbackName() string              { return "assert_max_ltv" }
func (AssertDepositCaps) callbackName() string         { return "assert_deposit_caps" }
func (AssertLiquidationImproved) callbackName() string { return "assert_liquidation_improved" }
func (RemoveReentrancyGuard) callbackName() string     { return "remove_reentrancy_guard" }
