package redbank

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/types"
	"creditchain/native/oracle"
)

func (e *Engine) deposit(ctx *core.Context, info core.MessageInfo, m Deposit) (*core.Response, error) {
	if err := e.guard(ctx); err != nil {
		return nil, err
	}
	coin, err := singleCoin(info)
	if err != nil {
		return nil, err
	}
	if err := e.checkAccount(info.Sender, m.AccountID); err != nil {
		return nil, err
	}
	owner := info.Sender
	if m.OnBehalfOf != "" {
		if e.isCreditManager(m.OnBehalfOf) && !e.isCreditManager(info.Sender) {
			return nil, errorsmod.Wrap(cerrors.ErrUnauthorized, "redbank: cannot deposit on behalf of the credit manager")
		}
		owner = m.OnBehalfOf
	}
	ap, err := e.params.AssetParams(ctx, coin.Denom)
	if err != nil {
		return nil, err
	}
	if !ap.RedBank.DepositEnabled {
		return nil, errorsmod.Wrapf(cerrors.ErrDepositNotEnabled, "%s", coin.Denom)
	}

	resp := core.NewResponse()
	market, err := e.accrue(ctx, resp, coin.Denom)
	if err != nil {
		return nil, err
	}
	total, err := market.UnderlyingCollateral()
	if err != nil {
		return nil, err
	}
	if total.Add(coin.Amount).GT(ap.DepositCap) {
		return nil, errorsmod.Wrapf(cerrors.ErrDepositCapExceeded, "%s: %s + %s above cap %s", coin.Denom, total, coin.Amount, ap.DepositCap)
	}
	scaled, err := ToScaled(coin.Amount, market.LiquidityIndex, Truncate)
	if err != nil {
		return nil, err
	}
	if scaled.IsZero() {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "redbank: deposit rounds to zero")
	}
	// A deposit made for someone else never re-enables their collateral.
	user := userID{addr: owner, accountID: m.AccountID}
	if err := e.addCollateral(ctx, resp, &market, user, scaled, owner == info.Sender); err != nil {
		return nil, err
	}
	if err := e.finish(ctx, &market); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.RedBankAction{Type: events.TypeRedBankDeposit, Sender: info.Sender, User: owner, AccountID: m.AccountID, Coin: coin})
	return resp, nil
}

func (e *Engine) withdraw(ctx *core.Context, info core.MessageInfo, m Withdraw) (*core.Response, error) {
	if err := e.guard(ctx); err != nil {
		return nil, err
	}
	if err := e.checkAccount(info.Sender, m.AccountID); err != nil {
		return nil, err
	}
	if m.LiquidationRelated && !e.isCreditManager(info.Sender) {
		return nil, errorsmod.Wrap(cerrors.ErrUnauthorized, "redbank: liquidation withdrawals are reserved for the credit manager")
	}
	user := userID{addr: info.Sender, accountID: m.AccountID}
	resp := core.NewResponse()
	market, err := e.accrue(ctx, resp, m.Denom)
	if err != nil {
		return nil, err
	}
	rec, ok, err := e.loadCollateral(ctx, user, m.Denom)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrNoCollateral, "%s has no %s collateral", info.Sender, m.Denom)
	}
	held := types.BigToInt(rec.AmountScaled)
	underlying, err := ToUnderlying(held, market.LiquidityIndex, Truncate)
	if err != nil {
		return nil, err
	}
	amount := underlying
	if m.Amount != nil {
		if !m.Amount.IsPositive() {
			return nil, errorsmod.Wrap(cerrors.ErrValidation, "redbank: withdraw amount must be positive")
		}
		amount = sdkmath.MinInt(*m.Amount, underlying)
	}
	if amount.IsZero() {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "redbank: nothing to withdraw")
	}
	scaled := held
	if amount.LT(underlying) {
		if scaled, err = ToScaled(amount, market.LiquidityIndex, Truncate); err != nil {
			return nil, err
		}
		if scaled.IsZero() {
			return nil, errorsmod.Wrap(cerrors.ErrValidation, "redbank: withdraw rounds to zero")
		}
	}
	available, err := market.AvailableLiquidity()
	if err != nil {
		return nil, err
	}
	if amount.GT(available) {
		return nil, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "redbank: %s%s available", available, m.Denom)
	}
	if err := e.removeCollateral(ctx, resp, &market, user, scaled); err != nil {
		return nil, err
	}
	if err := e.finish(ctx, &market); err != nil {
		return nil, err
	}
	if rec.Enabled && !e.isCreditManager(info.Sender) {
		if err := e.assertLiquidationHealthy(ctx, user, cerrors.ErrInvalidHealthFactorAfterWithdraw); err != nil {
			return nil, err
		}
	}
	recipient := info.Sender
	if m.Recipient != "" {
		recipient = m.Recipient
	}
	coin := types.NewCoin(m.Denom, amount)
	ctx.EmitEvent(events.RedBankAction{Type: events.TypeRedBankWithdraw, Sender: info.Sender, User: info.Sender, AccountID: m.AccountID, Coin: coin, Recipient: recipient})
	return resp.AddBankSend(recipient, coin), nil
}

func (e *Engine) assertLiquidationHealthy(ctx *core.Context, u userID, kind error) error {
	values, err := e.healthOf(ctx, u, oracle.KindDefault)
	if err != nil {
		return err
	}
	if values.Liquidatable {
		return errorsmod.Wrapf(kind, "health factor %s", values.LiquidationHealthFactor)
	}
	return nil
}

func (e *Engine) borrow(ctx *core.Context, info core.MessageInfo, m Borrow) (*core.Response, error) {
	if err := e.guard(ctx); err != nil {
		return nil, err
	}
	if err := e.checkAccount(info.Sender, m.AccountID); err != nil {
		return nil, err
	}
	if m.Amount.IsNil() || !m.Amount.IsPositive() {
		return nil, errorsmod.Wrap(cerrors.ErrInvalidBorrowAmount, "amount must be positive")
	}
	ap, err := e.params.AssetParams(ctx, m.Denom)
	if err != nil {
		return nil, err
	}
	if !ap.RedBank.BorrowEnabled {
		return nil, errorsmod.Wrapf(cerrors.ErrBorrowNotEnabled, "%s", m.Denom)
	}
	resp := core.NewResponse()
	market, err := e.accrue(ctx, resp, m.Denom)
	if err != nil {
		return nil, err
	}
	available, err := market.AvailableLiquidity()
	if err != nil {
		return nil, err
	}
	if m.Amount.GT(available) {
		return nil, errorsmod.Wrapf(cerrors.ErrInvalidBorrowAmount, "%s%s requested, %s available", m.Amount, m.Denom, available)
	}

	user := userID{addr: info.Sender, accountID: m.AccountID}
	uncollateralized := false
	if !e.isCreditManager(info.Sender) {
		limit, err := e.uncollateralizedLimit(ctx, info.Sender, m.Denom)
		if err != nil {
			return nil, err
		}
		if limit.IsPositive() {
			uncollateralized = true
			rec, _, err := e.loadDebt(ctx, user, m.Denom)
			if err != nil {
				return nil, err
			}
			owed, err := ToUnderlying(types.BigToInt(rec.AmountScaled), market.BorrowIndex, Ceil)
			if err != nil {
				return nil, err
			}
			if owed.Add(m.Amount).GT(limit) {
				return nil, errorsmod.Wrapf(cerrors.ErrUncollateralizedLimitExceeded, "limit %s%s", limit, m.Denom)
			}
		}
	}
	scaled, err := ToScaled(m.Amount, market.BorrowIndex, Ceil)
	if err != nil {
		return nil, err
	}
	if err := e.addDebt(ctx, &market, user, scaled, uncollateralized); err != nil {
		return nil, err
	}
	if err := e.finish(ctx, &market); err != nil {
		return nil, err
	}
	if !uncollateralized && !e.isCreditManager(info.Sender) {
		values, err := e.healthOf(ctx, user, oracle.KindDefault)
		if err != nil {
			return nil, err
		}
		if values.AboveMaxLTV {
			return nil, errorsmod.Wrapf(cerrors.ErrBorrowExceedsCollateral, "max ltv health factor %s", values.MaxLTVHealthFactor)
		}
	}
	recipient := info.Sender
	if m.Recipient != "" {
		recipient = m.Recipient
	}
	coin := types.NewCoin(m.Denom, m.Amount)
	ctx.EmitEvent(events.RedBankAction{Type: events.TypeRedBankBorrow, Sender: info.Sender, User: info.Sender, AccountID: m.AccountID, Coin: coin, Recipient: recipient})
	return resp.AddBankSend(recipient, coin), nil
}

func (e *Engine) repay(ctx *core.Context, info core.MessageInfo, m Repay) (*core.Response, error) {
	if err := e.guard(ctx); err != nil {
		return nil, err
	}
	coin, err := singleCoin(info)
	if err != nil {
		return nil, err
	}
	if err := e.checkAccount(info.Sender, m.AccountID); err != nil {
		return nil, err
	}
	owner := info.Sender
	if m.OnBehalfOf != "" {
		if e.isCreditManager(m.OnBehalfOf) && !e.isCreditManager(info.Sender) {
			return nil, errorsmod.Wrap(cerrors.ErrRepayOnBehalfOfCreditManager, "redbank")
		}
		owner = m.OnBehalfOf
	}
	user := userID{addr: owner, accountID: m.AccountID}
	resp := core.NewResponse()
	market, err := e.accrue(ctx, resp, coin.Denom)
	if err != nil {
		return nil, err
	}
	repaid, err := e.applyRepay(ctx, &market, user, coin.Amount)
	if err != nil {
		return nil, err
	}
	if err := e.finish(ctx, &market); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.RedBankAction{Type: events.TypeRedBankRepay, Sender: info.Sender, User: owner, AccountID: m.AccountID, Coin: types.NewCoin(coin.Denom, repaid)})
	if refund := coin.Amount.Sub(repaid); refund.IsPositive() {
		resp.AddBankSend(info.Sender, types.NewCoin(coin.Denom, refund))
	}
	return resp, nil
}

// applyRepay reduces the debt of u by at most offered and returns the
// amount applied.
func (e *Engine) applyRepay(ctx *core.Context, market *Market, u userID, offered sdkmath.Int) (sdkmath.Int, error) {
	rec, ok, err := e.loadDebt(ctx, u, market.Denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	held := types.BigToInt(rec.AmountScaled)
	if !ok || held.IsZero() {
		return sdkmath.Int{}, errorsmod.Wrapf(cerrors.ErrNoDebt, "%s owes no %s", u.addr, market.Denom)
	}
	owed, err := ToUnderlying(held, market.BorrowIndex, Ceil)
	if err != nil {
		return sdkmath.Int{}, err
	}
	repaid := sdkmath.MinInt(offered, owed)
	scaled := held
	if repaid.LT(owed) {
		if scaled, err = ToScaled(repaid, market.BorrowIndex, Ceil); err != nil {
			return sdkmath.Int{}, err
		}
		scaled = sdkmath.MinInt(scaled, held)
	}
	if err := e.reduceDebt(ctx, market, u, rec, scaled); err != nil {
		return sdkmath.Int{}, err
	}
	return repaid, nil
}

func (e *Engine) updateCollateralStatus(ctx *core.Context, info core.MessageInfo, m UpdateAssetCollateralStatus) (*core.Response, error) {
	if err := e.guard(ctx); err != nil {
		return nil, err
	}
	user := userID{addr: info.Sender}
	rec, ok, err := e.loadCollateral(ctx, user, m.Denom)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrNoCollateral, "%s has no %s collateral", info.Sender, m.Denom)
	}
	if rec.Enabled == m.Enable {
		return core.NewResponse(), nil
	}
	rec.Enabled = m.Enable
	if err := ctx.Store().KVPut(collateralKey(user, m.Denom), rec); err != nil {
		return nil, err
	}
	if !m.Enable {
		if err := e.assertLiquidationHealthy(ctx, user, cerrors.ErrInvalidHealthFactorAfterDisable); err != nil {
			return nil, err
		}
	}
	ctx.EmitEvent(events.CollateralStatus{User: info.Sender, Denom: m.Denom, Enabled: m.Enable})
	return core.NewResponse(), nil
}
