// Package creditmanager implements credit accounts: NFT-owned sub-accounts
// that batch deposits, borrows, swaps, vault and LP operations and are
// health-checked once per batch. Actions that touch other contracts run as
// self-callbacks so every step observes the effects of the previous one.
package creditmanager

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/types"
	"creditchain/native/accountnft"
	"creditchain/native/common"
	"creditchain/native/oracle"
	"creditchain/native/params"
	"creditchain/native/redbank"
	"creditchain/native/vaults"
	"creditchain/native/zapper"
	"creditchain/observability"
)

const moduleName = params.ModuleCreditManager

// ParamsSource is the read-only view of the parameters registry.
type ParamsSource interface {
	AssetParams(ctx *core.Context, denom string) (params.AssetParams, error)
	VaultConfig(ctx *core.Context, addr string) (params.VaultConfig, error)
	TargetHealthFactor(ctx *core.Context) (sdkmath.LegacyDec, error)
	MaxCloseFactor(ctx *core.Context) (sdkmath.LegacyDec, error)
	common.PauseSource
}

// PriceSource resolves oracle prices.
type PriceSource interface {
	Price(ctx *core.Context, denom string, kind oracle.Kind) (sdkmath.LegacyDec, error)
}

// RedBank is the money market view used for debts, lends and caps.
type RedBank interface {
	Market(ctx *core.Context, denom string) (redbank.Market, error)
	UnderlyingLiquidityAmount(ctx *core.Context, denom string, scaled sdkmath.Int) (sdkmath.Int, error)
	UserDebt(ctx *core.Context, user, accountID, denom string) (redbank.Debt, error)
	UserDebts(ctx *core.Context, user, accountID string) ([]redbank.Debt, error)
	UserCollateral(ctx *core.Context, user, accountID, denom string) (redbank.Collateral, error)
	UserCollaterals(ctx *core.Context, user, accountID string) ([]redbank.Collateral, error)
}

// AccountRegistry resolves credit account ownership.
type AccountRegistry interface {
	NextID(ctx *core.Context) (string, error)
	OwnerOf(ctx *core.Context, tokenID string) (string, error)
	Tokens(ctx *core.Context, owner string) ([]string, error)
}

// Ledger reads bank balances.
type Ledger interface {
	Balance(ctx *core.Context, addr, denom string) (sdkmath.Int, error)
}

// Incentives reports rewards and LP stakes.
type Incentives interface {
	UnclaimedRewards(ctx *core.Context, user, accountID string) (types.Coins, error)
	StakedLp(ctx *core.Context, user, accountID, lpDenom string) (sdkmath.Int, error)
	StakedLpPositions(ctx *core.Context, user, accountID string) (types.Coins, error)
}

// Swapper quotes swaps.
type Swapper interface {
	EstimateExactIn(ctx *core.Context, coinIn types.Coin, denomOut string, route []string) (sdkmath.Int, error)
}

// Zapper quotes liquidity provision.
type Zapper interface {
	Pool(ctx *core.Context, lpDenom string) (zapper.Pool, error)
	EstimateProvideLiquidity(ctx *core.Context, lpDenom string, coinsIn types.Coins) (sdkmath.Int, error)
	EstimateWithdrawLiquidity(ctx *core.Context, lp types.Coin) (types.Coins, error)
}

// Vault is the read side of a share vault.
type Vault interface {
	Config() vaults.Config
	TotalBase(ctx *core.Context) (sdkmath.Int, error)
	PreviewRedeem(ctx *core.Context, shares sdkmath.Int) (sdkmath.Int, error)
	NextLockupID(ctx *core.Context) (uint64, error)
}

// Deps bundles the collaborators of the engine.
type Deps struct {
	Params     ParamsSource
	Prices     PriceSource
	RedBank    RedBank
	Accounts   AccountRegistry
	Ledger     Ledger
	Incentives Incentives
	Swapper    Swapper
	Zapper     Zapper
}

// Engine is the credit manager.
type Engine struct {
	addrs      common.Addresses
	deps       Deps
	vaults     map[string]Vault
	reentrancy common.FlagGuard
}

// NewEngine returns a credit manager bound to its collaborators.
func NewEngine(addrs common.Addresses, deps Deps) *Engine {
	return &Engine{
		addrs:      addrs,
		deps:       deps,
		vaults:     make(map[string]Vault),
		reentrancy: common.NewFlagGuard("creditmanager_reentrancy"),
	}
}

// RegisterVault makes a vault known to the engine. Vaults still need a
// whitelisted config in the parameters registry before they accept deposits.
func (e *Engine) RegisterVault(v Vault) {
	e.vaults[v.Config().Addr] = v
}

func (e *Engine) self() string { return e.addrs.CreditManager }

// InitGenesis stores the configuration.
func (e *Engine) InitGenesis(ctx *core.Context, cfg Config) error {
	return e.storeConfig(ctx, cfg)
}

// Execute implements core.Handler.
func (e *Engine) Execute(ctx *core.Context, info core.MessageInfo, msg any) (*core.Response, error) {
	switch m := msg.(type) {
	case UpdateCreditAccount:
		return e.updateCreditAccount(ctx, info, m)
	case UpdateConfig:
		return e.updateConfig(ctx, info, m)
	case Callback:
		if info.Sender != e.self() {
			return nil, errorsmod.Wrapf(cerrors.ErrExternalInvocation, "creditmanager: callback from %s", info.Sender)
		}
		return e.callback(ctx, m.Msg)
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "creditmanager: %T", msg)
	}
}

func (e *Engine) updateConfig(ctx *core.Context, info core.MessageInfo, m UpdateConfig) (*core.Response, error) {
	cfg, err := e.Config(ctx)
	if err != nil {
		return nil, err
	}
	if info.Sender != cfg.Owner {
		return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "creditmanager: %s is not the owner", info.Sender)
	}
	if m.Owner != nil {
		cfg.Owner = *m.Owner
	}
	if m.MaxUnlockingPositions != nil {
		cfg.MaxUnlockingPositions = *m.MaxUnlockingPositions
	}
	if m.MaxSlippage != nil {
		cfg.MaxSlippage = *m.MaxSlippage
	}
	if m.RewardsCollector != nil {
		if _, err := e.AccountKind(ctx, m.RewardsCollector.AccountID); err != nil {
			return nil, err
		}
		cfg.RewardsCollector = *m.RewardsCollector
	}
	if err := e.storeConfig(ctx, cfg); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.CreditManagerConfigUpdated{By: info.Sender})
	return core.NewResponse(), nil
}

func (e *Engine) callback(ctx *core.Context, msg CallbackMsg) (*core.Response, error) {
	switch m := msg.(type) {
	case WithdrawFromAccount:
		return e.withdraw(ctx, m)
	case BorrowIntoAccount:
		return e.borrow(ctx, m)
	case RepayDebt:
		return e.repay(ctx, m.AccountID, m.AccountID, m.Coin)
	case RepayForRecipient:
		return e.repay(ctx, m.BenefactorAccountID, m.RecipientAccountID, m.Coin)
	case LendCoin:
		return e.lend(ctx, m)
	case ReclaimCoin:
		return e.reclaim(ctx, m)
	case ClaimAccountRewards:
		return e.claimRewards(ctx, m)
	case SwapCoin:
		return e.swap(ctx, m)
	case EnterVaultCoin:
		return e.enterVault(ctx, m)
	case ExitVaultShares:
		return e.exitVault(ctx, m)
	case RequestUnlock:
		return e.requestUnlock(ctx, m)
	case ExitUnlocked:
		return e.exitUnlocked(ctx, m)
	case LiquidateAccount:
		return e.liquidate(ctx, m)
	case ProvideLp:
		return e.provideLiquidity(ctx, m)
	case WithdrawLp:
		return e.withdrawLiquidity(ctx, m)
	case StakeLpCoin:
		return e.stakeLp(ctx, m)
	case UnstakeLpCoin:
		return e.unstakeLp(ctx, m)
	case RefundAll:
		return e.refundAll(ctx, m)
	case UpdateCoinBalance:
		return e.updateCoinBalance(ctx, m)
	case UpdateVaultCoinBalance:
		return e.updateVaultCoinBalance(ctx, m)
	case AssertHlsRules:
		return core.NewResponse(), e.assertHlsRules(ctx, m.AccountID)
	case AssertMaxLTV:
		return core.NewResponse(), e.assertMaxLTV(ctx, m)
	case AssertDepositCaps:
		return core.NewResponse(), e.assertDepositCaps(ctx, m.Denoms)
	case AssertLiquidationImproved:
		return core.NewResponse(), e.assertLiquidationImproved(ctx, m)
	case RemoveReentrancyGuard:
		return core.NewResponse(), e.reentrancy.TryUnlock(ctx.Store())
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "creditmanager: callback %T", msg)
	}
}

// queue appends a self-callback to resp.
func (e *Engine) queue(resp *core.Response, msg CallbackMsg) {
	resp.AddExecute(e.self(), Callback{Msg: msg})
}

func (e *Engine) updateCreditAccount(ctx *core.Context, info core.MessageInfo, m UpdateCreditAccount) (*core.Response, error) {
	if err := common.GuardContext(ctx, e.deps.Params, moduleName); err != nil {
		return nil, err
	}
	resp := core.NewResponse()
	accountID := m.AccountID
	var kind AccountKind
	if accountID == "" {
		created, k, err := e.createAccount(ctx, info.Sender, m.AccountKind, resp)
		if err != nil {
			return nil, err
		}
		accountID, kind = created, k
	} else {
		k, err := e.authorize(ctx, info.Sender, accountID, m.Actions)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	if len(m.Actions) == 0 {
		resp.Data = accountID
		return resp, nil
	}
	if err := e.reentrancy.TryLock(ctx.Store()); err != nil {
		return nil, err
	}

	var prevHF *sdkmath.LegacyDec
	healthChecked := needsHealthCheck(accountID, m.Actions)
	if healthChecked {
		values, err := e.health(ctx, accountID, oracle.KindDefault)
		if err != nil {
			return nil, err
		}
		prevHF = values.MaxLTVHealthFactor
	}

	received := info.Funds
	capDenoms := map[string]struct{}{}
	for _, action := range m.Actions {
		switch a := action.(type) {
		case Deposit:
			var err error
			received, err = e.deposit(ctx, accountID, a.Coin, received)
			if err != nil {
				return nil, err
			}
			capDenoms[a.Coin.Denom] = struct{}{}
		case SwapExactIn:
			capDenoms[a.DenomOut] = struct{}{}
		}
		msg, err := e.actionCallback(ctx, info.Sender, accountID, action)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			e.queue(resp, msg)
		}
		observability.Protocol().RecordAction(action.actionName())
	}
	if !received.Empty() {
		return nil, errorsmod.Wrapf(cerrors.ErrExtraFundsReceived, "creditmanager: %s not used by any deposit", received)
	}

	if kind.Type == KindHighLeveredStrategy {
		e.queue(resp, AssertHlsRules{AccountID: accountID})
	}
	if healthChecked {
		e.queue(resp, AssertMaxLTV{AccountID: accountID, PrevHealthFactor: prevHF})
	}
	denoms := make([]string, 0, len(capDenoms))
	for d := range capDenoms {
		denoms = append(denoms, d)
	}
	sort.Strings(denoms)
	e.queue(resp, AssertDepositCaps{Denoms: denoms})
	e.queue(resp, RemoveReentrancyGuard{})
	resp.Data = accountID
	return resp, nil
}

// needsHealthCheck is false when the batch can only make the account
// healthier.
func needsHealthCheck(accountID string, actions []Action) bool {
	for _, action := range actions {
		switch a := action.(type) {
		case Deposit:
		case Repay:
			if a.RecipientAccountID != "" && a.RecipientAccountID != accountID {
				return true
			}
		default:
			return true
		}
	}
	return false
}

func (e *Engine) createAccount(ctx *core.Context, sender string, requested *AccountKind, resp *core.Response) (string, AccountKind, error) {
	kind := AccountKind{Type: KindDefault}
	if requested != nil {
		kind = *requested
	}
	switch kind.Type {
	case KindDefault, KindHighLeveredStrategy:
		kind.VaultAddr = ""
	case KindFundManager:
		if kind.VaultAddr == "" || kind.VaultAddr != sender {
			return "", AccountKind{}, errorsmod.Wrap(cerrors.ErrUnauthorized, "creditmanager: fund manager accounts are created by their vault")
		}
	default:
		return "", AccountKind{}, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: unknown account kind %d", kind.Type)
	}
	id, err := e.deps.Accounts.NextID(ctx)
	if err != nil {
		return "", AccountKind{}, err
	}
	if err := e.setAccountKind(ctx, id, kind); err != nil {
		return "", AccountKind{}, err
	}
	resp.AddExecute(e.addrs.AccountNFT, accountnft.Mint{Owner: sender})
	ctx.EmitEvent(events.CreditAccountCreated{AccountID: id, Owner: sender, Kind: kind.String()})
	ctx.Logger().Debug("credit account created", "account_id", id, "owner", sender, "kind", kind.String())
	return id, kind, nil
}

// authorize checks that sender may run actions on accountID. The vault of
// a fund manager account may do anything; the NFT owner may not move coins
// in or out of it.
func (e *Engine) authorize(ctx *core.Context, sender, accountID string, actions []Action) (AccountKind, error) {
	kind, err := e.AccountKind(ctx, accountID)
	if err != nil {
		return AccountKind{}, err
	}
	if kind.Type == KindFundManager && sender == kind.VaultAddr {
		return kind, nil
	}
	owner, err := e.deps.Accounts.OwnerOf(ctx, accountID)
	if err != nil {
		return AccountKind{}, err
	}
	if sender != owner {
		return AccountKind{}, errorsmod.Wrapf(cerrors.ErrUnauthorized, "creditmanager: %s does not own account %s", sender, accountID)
	}
	if kind.Type == KindFundManager {
		for _, action := range actions {
			switch action.(type) {
			case Deposit, Withdraw, RefundAllCoinBalances:
				return AccountKind{}, errorsmod.Wrapf(cerrors.ErrUnauthorized, "creditmanager: %s is reserved for the vault of account %s", action.actionName(), accountID)
			}
		}
	}
	return kind, nil
}

// deposit credits coin out of the attached funds and returns what is left.
func (e *Engine) deposit(ctx *core.Context, accountID string, coin types.Coin, received types.Coins) (types.Coins, error) {
	if err := coin.Validate(); err != nil || !coin.Amount.IsPositive() {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: invalid deposit %s", coin)
	}
	if err := e.requireWhitelisted(ctx, coin.Denom); err != nil {
		return nil, err
	}
	rest, ok := received.SafeSub(coin)
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrExtraFundsReceived, "creditmanager: deposit of %s not attached, received %s", coin, received)
	}
	if err := e.incrementCoin(ctx, accountID, coin); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.CreditAccountAction{AccountID: accountID, Action: "deposit", Coins: types.NewCoins(coin)})
	return rest, nil
}

func (e *Engine) requireWhitelisted(ctx *core.Context, denom string) error {
	ap, err := e.deps.Params.AssetParams(ctx, denom)
	if err != nil {
		return err
	}
	if !ap.CreditManager.Whitelisted {
		return errorsmod.Wrapf(cerrors.ErrNotWhitelisted, "creditmanager: %s", denom)
	}
	return nil
}

// actionCallback validates an action and returns the callback that runs it.
// Deposits have no callback.
func (e *Engine) actionCallback(ctx *core.Context, sender, accountID string, action Action) (CallbackMsg, error) {
	switch a := action.(type) {
	case Deposit:
		return nil, nil
	case Withdraw:
		if err := a.Coin.validate(); err != nil {
			return nil, err
		}
		recipient := a.Recipient
		if recipient == "" {
			recipient = sender
		}
		return WithdrawFromAccount{AccountID: accountID, Coin: a.Coin, Recipient: recipient}, nil
	case Borrow:
		if err := a.Coin.Validate(); err != nil || !a.Coin.Amount.IsPositive() {
			return nil, errorsmod.Wrapf(cerrors.ErrInvalidBorrowAmount, "creditmanager: %s", a.Coin)
		}
		return BorrowIntoAccount{AccountID: accountID, Coin: a.Coin}, nil
	case Repay:
		if err := a.Coin.validate(); err != nil {
			return nil, err
		}
		if a.RecipientAccountID != "" && a.RecipientAccountID != accountID {
			if _, err := e.AccountKind(ctx, a.RecipientAccountID); err != nil {
				return nil, err
			}
			return RepayForRecipient{BenefactorAccountID: accountID, RecipientAccountID: a.RecipientAccountID, Coin: a.Coin}, nil
		}
		return RepayDebt{AccountID: accountID, Coin: a.Coin}, nil
	case Lend:
		if err := a.Coin.validate(); err != nil {
			return nil, err
		}
		return LendCoin{AccountID: accountID, Coin: a.Coin}, nil
	case Reclaim:
		if err := a.Coin.validate(); err != nil {
			return nil, err
		}
		return ReclaimCoin{AccountID: accountID, Coin: a.Coin}, nil
	case ClaimRewards:
		return ClaimAccountRewards{AccountID: accountID}, nil
	case SwapExactIn:
		if err := a.CoinIn.validate(); err != nil {
			return nil, err
		}
		if err := types.ValidateDenom(a.DenomOut); err != nil || a.DenomOut == a.CoinIn.Denom {
			return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: invalid swap output %q", a.DenomOut)
		}
		return SwapCoin{AccountID: accountID, CoinIn: a.CoinIn, DenomOut: a.DenomOut, Slippage: a.Slippage, Route: a.Route}, nil
	case EnterVault:
		if err := a.Coin.validate(); err != nil {
			return nil, err
		}
		return EnterVaultCoin{AccountID: accountID, Vault: a.Vault, Coin: a.Coin}, nil
	case ExitVault:
		if err := positive(a.Amount); err != nil {
			return nil, err
		}
		return ExitVaultShares{AccountID: accountID, Vault: a.Vault, Amount: a.Amount}, nil
	case RequestVaultUnlock:
		if err := positive(a.Amount); err != nil {
			return nil, err
		}
		return RequestUnlock{AccountID: accountID, Vault: a.Vault, Amount: a.Amount}, nil
	case ExitVaultUnlocked:
		return ExitUnlocked{AccountID: accountID, Vault: a.Vault, PositionID: a.ID}, nil
	case Liquidate:
		if err := a.DebtCoin.Validate(); err != nil || !a.DebtCoin.Amount.IsPositive() {
			return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: invalid debt coin %s", a.DebtCoin)
		}
		return LiquidateAccount{LiquidatorAccountID: accountID, LiquidateeAccountID: a.LiquidateeAccountID, DebtCoin: a.DebtCoin, Request: a.Request}, nil
	case ProvideLiquidity:
		if len(a.CoinsIn) == 0 {
			return nil, errorsmod.Wrap(cerrors.ErrValidation, "creditmanager: no coins to provide")
		}
		for _, c := range a.CoinsIn {
			if err := c.validate(); err != nil {
				return nil, err
			}
		}
		return ProvideLp{AccountID: accountID, CoinsIn: a.CoinsIn, LpTokenOut: a.LpTokenOut, Slippage: a.Slippage}, nil
	case WithdrawLiquidity:
		if err := a.LpToken.validate(); err != nil {
			return nil, err
		}
		return WithdrawLp{AccountID: accountID, LpToken: a.LpToken, Slippage: a.Slippage}, nil
	case StakeLp:
		if err := a.LpCoin.validate(); err != nil {
			return nil, err
		}
		return StakeLpCoin{AccountID: accountID, LpCoin: a.LpCoin}, nil
	case UnstakeLp:
		if err := a.LpCoin.validate(); err != nil {
			return nil, err
		}
		return UnstakeLpCoin{AccountID: accountID, LpCoin: a.LpCoin}, nil
	case RefundAllCoinBalances:
		return RefundAll{AccountID: accountID, Recipient: sender}, nil
	case nil:
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "creditmanager: nil action")
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "creditmanager: action %T", action)
	}
}

func positive(v sdkmath.Int) error {
	if v.IsNil() || !v.IsPositive() {
		return errorsmod.Wrap(cerrors.ErrValidation, "creditmanager: amount must be positive")
	}
	return nil
}
