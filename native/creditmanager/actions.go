package creditmanager

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/types"
	"creditchain/native/incentives"
	"creditchain/native/redbank"
	"creditchain/native/swapper"
	"creditchain/native/zapper"
)

func emitAction(ctx *core.Context, accountID, action string, coins ...types.Coin) {
	ctx.EmitEvent(events.CreditAccountAction{AccountID: accountID, Action: action, Coins: types.NewCoins(coins...)})
}

// resolveAgainst resolves c against an available amount held outside the
// account's coin balance.
func resolveAgainst(c ActionCoin, available sdkmath.Int, what string) (types.Coin, error) {
	amount := c.Amount.resolve(available)
	if !amount.IsPositive() || amount.GT(available) {
		return types.Coin{}, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "creditmanager: %s %s%s available, requested %s", what, available, c.Denom, amount)
	}
	return types.NewCoin(c.Denom, amount), nil
}

func (e *Engine) withdraw(ctx *core.Context, m WithdrawFromAccount) (*core.Response, error) {
	coin, err := e.resolveCoin(ctx, m.AccountID, m.Coin)
	if err != nil {
		return nil, err
	}
	if err := e.decrementCoin(ctx, m.AccountID, coin); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "withdraw", coin)
	return core.NewResponse().AddBankSend(m.Recipient, coin), nil
}

func (e *Engine) borrow(ctx *core.Context, m BorrowIntoAccount) (*core.Response, error) {
	if err := e.requireWhitelisted(ctx, m.Coin.Denom); err != nil {
		return nil, err
	}
	if err := e.incrementCoin(ctx, m.AccountID, m.Coin); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "borrow", m.Coin)
	return core.NewResponse().AddExecute(e.addrs.RedBank, redbank.Borrow{
		Denom:     m.Coin.Denom,
		Amount:    m.Coin.Amount,
		AccountID: m.AccountID,
	}), nil
}

// repay pays the debt of debtorID with coins of payerID, capped at the debt.
func (e *Engine) repay(ctx *core.Context, payerID, debtorID string, c ActionCoin) (*core.Response, error) {
	debt, err := e.deps.RedBank.UserDebt(ctx, e.self(), debtorID, c.Denom)
	if err != nil {
		return nil, err
	}
	if !debt.Amount.IsPositive() {
		return nil, errorsmod.Wrapf(cerrors.ErrNoDebt, "creditmanager: account %s owes no %s", debtorID, c.Denom)
	}
	balance, err := e.coinBalance(ctx, payerID, c.Denom)
	if err != nil {
		return nil, err
	}
	amount := sdkmath.MinInt(c.Amount.resolve(balance), debt.Amount)
	coin := types.NewCoin(c.Denom, amount)
	if !amount.IsPositive() {
		return nil, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "creditmanager: account %s holds no %s", payerID, c.Denom)
	}
	if err := e.decrementCoin(ctx, payerID, coin); err != nil {
		return nil, err
	}
	emitAction(ctx, debtorID, "repay", coin)
	return core.NewResponse().AddExecute(e.addrs.RedBank, redbank.Repay{AccountID: debtorID}, coin), nil
}

func (e *Engine) lend(ctx *core.Context, m LendCoin) (*core.Response, error) {
	coin, err := e.resolveCoin(ctx, m.AccountID, m.Coin)
	if err != nil {
		return nil, err
	}
	if err := e.decrementCoin(ctx, m.AccountID, coin); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "lend", coin)
	return core.NewResponse().AddExecute(e.addrs.RedBank, redbank.Deposit{AccountID: m.AccountID}, coin), nil
}

func (e *Engine) reclaim(ctx *core.Context, m ReclaimCoin) (*core.Response, error) {
	lent, err := e.deps.RedBank.UserCollateral(ctx, e.self(), m.AccountID, m.Coin.Denom)
	if err != nil {
		return nil, err
	}
	coin, err := resolveAgainst(m.Coin, lent.Amount, "lent")
	if err != nil {
		return nil, err
	}
	if err := e.incrementCoin(ctx, m.AccountID, coin); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "reclaim", coin)
	amount := coin.Amount
	return core.NewResponse().AddExecute(e.addrs.RedBank, redbank.Withdraw{
		Denom:     coin.Denom,
		Amount:    &amount,
		AccountID: m.AccountID,
	}), nil
}

func (e *Engine) claimRewards(ctx *core.Context, m ClaimAccountRewards) (*core.Response, error) {
	rewards, err := e.deps.Incentives.UnclaimedRewards(ctx, e.self(), m.AccountID)
	if err != nil {
		return nil, err
	}
	if rewards.Empty() {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: account %s has no rewards to claim", m.AccountID)
	}
	resp := core.NewResponse().AddExecute(e.addrs.Incentives, incentives.ClaimRewards{AccountID: m.AccountID})
	if err := e.queueBalanceUpdates(ctx, resp, m.AccountID, rewards.Denoms()); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "claim_rewards", rewards...)
	return resp, nil
}

// queueBalanceUpdates records the current bank balance of every denom and
// queues the callbacks crediting whatever arrives after it.
func (e *Engine) queueBalanceUpdates(ctx *core.Context, resp *core.Response, accountID string, denoms []string) error {
	for _, denom := range denoms {
		prev, err := e.deps.Ledger.Balance(ctx, e.self(), denom)
		if err != nil {
			return err
		}
		e.queue(resp, UpdateCoinBalance{AccountID: accountID, PreviousBalance: types.NewCoin(denom, prev)})
	}
	return nil
}

func (e *Engine) updateCoinBalance(ctx *core.Context, m UpdateCoinBalance) (*core.Response, error) {
	current, err := e.deps.Ledger.Balance(ctx, e.self(), m.PreviousBalance.Denom)
	if err != nil {
		return nil, err
	}
	prev := m.PreviousBalance.Amount
	if prev.IsNil() {
		prev = sdkmath.ZeroInt()
	}
	if current.LTE(prev) {
		return core.NewResponse(), nil
	}
	credited := types.NewCoin(m.PreviousBalance.Denom, current.Sub(prev))
	if err := e.incrementCoin(ctx, m.AccountID, credited); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.CoinBalanceUpdated{AccountID: m.AccountID, Credited: credited})
	return core.NewResponse(), nil
}

// checkSlippage bounds the caller's slippage by the configured maximum.
func (e *Engine) checkSlippage(ctx *core.Context, slippage sdkmath.LegacyDec) error {
	if slippage.IsNil() || slippage.IsNegative() {
		return errorsmod.Wrap(cerrors.ErrValidation, "creditmanager: slippage must not be negative")
	}
	cfg, err := e.Config(ctx)
	if err != nil {
		return err
	}
	if slippage.GT(cfg.MaxSlippage) {
		return errorsmod.Wrapf(cerrors.ErrSlippageExceeded, "creditmanager: slippage %s above max %s", slippage, cfg.MaxSlippage)
	}
	return nil
}

// minReceive applies slippage to an estimate, rounding down.
func minReceive(estimate sdkmath.Int, slippage sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.LegacyOneDec().Sub(slippage).MulInt(estimate).TruncateInt()
}

func (e *Engine) swap(ctx *core.Context, m SwapCoin) (*core.Response, error) {
	if err := e.checkSlippage(ctx, m.Slippage); err != nil {
		return nil, err
	}
	if err := e.requireWhitelisted(ctx, m.DenomOut); err != nil {
		return nil, err
	}
	coin, err := e.resolveCoin(ctx, m.AccountID, m.CoinIn)
	if err != nil {
		return nil, err
	}
	estimate, err := e.deps.Swapper.EstimateExactIn(ctx, coin, m.DenomOut, m.Route)
	if err != nil {
		return nil, err
	}
	if err := e.decrementCoin(ctx, m.AccountID, coin); err != nil {
		return nil, err
	}
	resp := core.NewResponse().AddExecute(e.addrs.Swapper, swapper.SwapExactIn{
		DenomOut:   m.DenomOut,
		MinReceive: minReceive(estimate, m.Slippage),
		Route:      m.Route,
	}, coin)
	if err := e.queueBalanceUpdates(ctx, resp, m.AccountID, []string{m.DenomOut}); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "swap_exact_in", coin)
	return resp, nil
}

func (e *Engine) provideLiquidity(ctx *core.Context, m ProvideLp) (*core.Response, error) {
	if err := e.checkSlippage(ctx, m.Slippage); err != nil {
		return nil, err
	}
	if err := e.requireWhitelisted(ctx, m.LpTokenOut); err != nil {
		return nil, err
	}
	var coins types.Coins
	for _, c := range m.CoinsIn {
		coin, err := e.resolveCoin(ctx, m.AccountID, c)
		if err != nil {
			return nil, err
		}
		if err := e.decrementCoin(ctx, m.AccountID, coin); err != nil {
			return nil, err
		}
		coins = coins.Add(coin)
	}
	estimate, err := e.deps.Zapper.EstimateProvideLiquidity(ctx, m.LpTokenOut, coins)
	if err != nil {
		return nil, err
	}
	resp := core.NewResponse().AddExecute(e.addrs.Zapper, zapper.ProvideLiquidity{
		LpTokenOut: m.LpTokenOut,
		MinReceive: minReceive(estimate, m.Slippage),
	}, coins...)
	if err := e.queueBalanceUpdates(ctx, resp, m.AccountID, []string{m.LpTokenOut}); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "provide_liquidity", coins...)
	return resp, nil
}

func (e *Engine) withdrawLiquidity(ctx *core.Context, m WithdrawLp) (*core.Response, error) {
	if err := e.checkSlippage(ctx, m.Slippage); err != nil {
		return nil, err
	}
	lp, err := e.resolveCoin(ctx, m.AccountID, m.LpToken)
	if err != nil {
		return nil, err
	}
	pool, err := e.deps.Zapper.Pool(ctx, lp.Denom)
	if err != nil {
		return nil, err
	}
	estimate, err := e.deps.Zapper.EstimateWithdrawLiquidity(ctx, lp)
	if err != nil {
		return nil, err
	}
	var mins types.Coins
	for _, c := range estimate {
		mins = mins.Add(types.NewCoin(c.Denom, minReceive(c.Amount, m.Slippage)))
	}
	if err := e.decrementCoin(ctx, m.AccountID, lp); err != nil {
		return nil, err
	}
	resp := core.NewResponse().AddExecute(e.addrs.Zapper, zapper.WithdrawLiquidity{MinReceive: mins}, lp)
	if err := e.queueBalanceUpdates(ctx, resp, m.AccountID, pool.Denoms); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "withdraw_liquidity", lp)
	return resp, nil
}

func (e *Engine) stakeLp(ctx *core.Context, m StakeLpCoin) (*core.Response, error) {
	coin, err := e.resolveCoin(ctx, m.AccountID, m.LpCoin)
	if err != nil {
		return nil, err
	}
	if err := e.decrementCoin(ctx, m.AccountID, coin); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "stake_lp", coin)
	return core.NewResponse().AddExecute(e.addrs.Incentives, incentives.StakeLp{AccountID: m.AccountID}, coin), nil
}

func (e *Engine) unstakeLp(ctx *core.Context, m UnstakeLpCoin) (*core.Response, error) {
	staked, err := e.deps.Incentives.StakedLp(ctx, e.self(), m.AccountID, m.LpCoin.Denom)
	if err != nil {
		return nil, err
	}
	coin, err := resolveAgainst(m.LpCoin, staked, "staked")
	if err != nil {
		return nil, err
	}
	if err := e.incrementCoin(ctx, m.AccountID, coin); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "unstake_lp", coin)
	return core.NewResponse().AddExecute(e.addrs.Incentives, incentives.UnstakeLp{AccountID: m.AccountID, LpCoin: coin}), nil
}

func (e *Engine) refundAll(ctx *core.Context, m RefundAll) (*core.Response, error) {
	coins, err := e.coinBalances(ctx, m.AccountID)
	if err != nil {
		return nil, err
	}
	for _, c := range coins {
		if err := e.setCoinBalance(ctx, m.AccountID, c.Denom, sdkmath.ZeroInt()); err != nil {
			return nil, err
		}
	}
	emitAction(ctx, m.AccountID, "refund_all_coin_balances", coins...)
	return core.NewResponse().AddBankSend(m.Recipient, coins...), nil
}
