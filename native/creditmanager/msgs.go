package creditmanager

import (
	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
)

// UpdateCreditAccount runs Actions in order against AccountID. An empty
// AccountID creates a new account of AccountKind (Default when nil).
type UpdateCreditAccount struct {
	AccountID   string       `json:"account_id,omitempty"`
	AccountKind *AccountKind `json:"account_kind,omitempty"`
	Actions     []Action     `json:"actions"`
}

// UpdateConfig changes the configuration. Only the owner may send it.
type UpdateConfig struct {
	Owner                 *string            `json:"owner,omitempty"`
	MaxUnlockingPositions *uint64            `json:"max_unlocking_positions,omitempty"`
	MaxSlippage           *sdkmath.LegacyDec `json:"max_slippage,omitempty"`
	RewardsCollector      *RewardsCollector  `json:"rewards_collector,omitempty"`
}

// Callback wraps an internal step of a batch. The credit manager only
// accepts callbacks from itself.
type Callback struct {
	Msg CallbackMsg `json:"msg"`
}

// Action is one step of UpdateCreditAccount.
type Action interface {
	actionName() string
}

// Deposit credits an attached coin to the account.
type Deposit struct {
	Coin types.Coin `json:"coin"`
}

// Withdraw sends coins from the account. Recipient defaults to the caller.
type Withdraw struct {
	Coin      ActionCoin `json:"coin"`
	Recipient string     `json:"recipient,omitempty"`
}

// Borrow takes a loan from the money market into the account.
type Borrow struct {
	Coin types.Coin `json:"coin"`
}

// Repay pays down debt from the account balance. With RecipientAccountID
// set the debt of that account is repaid instead.
type Repay struct {
	RecipientAccountID string     `json:"recipient_account_id,omitempty"`
	Coin               ActionCoin `json:"coin"`
}

// Lend moves coins from the account into the money market.
type Lend struct {
	Coin ActionCoin `json:"coin"`
}

// Reclaim withdraws lent coins back into the account.
type Reclaim struct {
	Coin ActionCoin `json:"coin"`
}

// ClaimRewards collects incentives earned by lends and LP stakes.
type ClaimRewards struct{}

// SwapExactIn swaps CoinIn for at least estimate*(1-Slippage) of DenomOut.
type SwapExactIn struct {
	CoinIn   ActionCoin        `json:"coin_in"`
	DenomOut string            `json:"denom_out"`
	Slippage sdkmath.LegacyDec `json:"slippage"`
	Route    []string          `json:"route,omitempty"`
}

// EnterVault deposits base coins into a vault for shares.
type EnterVault struct {
	Vault string     `json:"vault"`
	Coin  ActionCoin `json:"coin"`
}

// ExitVault redeems unlocked shares of a vault without lockup.
type ExitVault struct {
	Vault  string      `json:"vault"`
	Amount sdkmath.Int `json:"amount"`
}

// RequestVaultUnlock starts the lockup of locked shares.
type RequestVaultUnlock struct {
	Vault  string      `json:"vault"`
	Amount sdkmath.Int `json:"amount"`
}

// ExitVaultUnlocked withdraws a matured unlocking position.
type ExitVaultUnlocked struct {
	ID    uint64 `json:"id"`
	Vault string `json:"vault"`
}

// LiquidateRequest selects the collateral bucket a liquidation seizes.
// Vault is set only for vault requests.
type LiquidateRequest struct {
	Bucket       Bucket            `json:"bucket"`
	Denom        string            `json:"denom,omitempty"`
	Vault        string            `json:"vault,omitempty"`
	PositionType VaultPositionType `json:"position_type,omitempty"`
}

// Bucket is the collateral source of a liquidation.
type Bucket uint8

const (
	BucketDeposit Bucket = iota
	BucketLend
	BucketVault
)

func (b Bucket) String() string {
	switch b {
	case BucketLend:
		return "lend"
	case BucketVault:
		return "vault"
	default:
		return "deposit"
	}
}

// LiquidateDeposit requests deposited coins of denom.
func LiquidateDeposit(denom string) LiquidateRequest {
	return LiquidateRequest{Bucket: BucketDeposit, Denom: denom}
}

// LiquidateLend requests lent coins of denom.
func LiquidateLend(denom string) LiquidateRequest {
	return LiquidateRequest{Bucket: BucketLend, Denom: denom}
}

// LiquidateVault requests a bucket of a vault position.
func LiquidateVault(vault string, t VaultPositionType) LiquidateRequest {
	return LiquidateRequest{Bucket: BucketVault, Vault: vault, PositionType: t}
}

// Liquidate repays debt of another account with coins of this account and
// takes collateral at a bonus.
type Liquidate struct {
	LiquidateeAccountID string           `json:"liquidatee_account_id"`
	DebtCoin            types.Coin       `json:"debt_coin"`
	Request             LiquidateRequest `json:"request"`
}

// ProvideLiquidity turns CoinsIn into LP tokens.
type ProvideLiquidity struct {
	CoinsIn    []ActionCoin      `json:"coins_in"`
	LpTokenOut string            `json:"lp_token_out"`
	Slippage   sdkmath.LegacyDec `json:"slippage"`
}

// WithdrawLiquidity turns LP tokens back into the pool coins.
type WithdrawLiquidity struct {
	LpToken  ActionCoin        `json:"lp_token"`
	Slippage sdkmath.LegacyDec `json:"slippage"`
}

// StakeLp stakes LP tokens for incentives.
type StakeLp struct {
	LpCoin ActionCoin `json:"lp_coin"`
}

// UnstakeLp returns staked LP tokens to the account.
type UnstakeLp struct {
	LpCoin ActionCoin `json:"lp_coin"`
}

// RefundAllCoinBalances sends every deposited coin to the caller.
type RefundAllCoinBalances struct{}

func (Deposit) actionName() string               { return "deposit" }
func (Withdraw) actionName() string              { return "withdraw" }
func (Borrow) actionName() string                { return "borrow" }
func (Repay) actionName() string                 { return "repay" }
func (Lend) actionName() string                  { return "lend" }
func (Reclaim) actionName() string               { return "reclaim" }
func (ClaimRewards) actionName() string          { return "claim_rewards" }
func (SwapExactIn) actionName() string           { return "swap_exact_in" }
func (EnterVault) actionName() string            { return "enter_vault" }
func (ExitVault) actionName() string             { return "exit_vault" }
func (RequestVaultUnlock) actionName() string    { return "request_vault_unlock" }
func (ExitVaultUnlocked) actionName() string     { return "exit_vault_unlocked" }
func (Liquidate) actionName() string             { return "liquidate" }
func (ProvideLiquidity) actionName() string      { return "provide_liquidity" }
func (WithdrawLiquidity) actionName() string     { return "withdraw_liquidity" }
func (StakeLp) actionName() string               { return "stake_lp" }
func (UnstakeLp) actionName() string             { return "unstake_lp" }
func (RefundAllCoinBalances) actionName() string { return "refund_all_coin_balances" }
