package redbank

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/types"
	"creditchain/native/liquidation"
	"creditchain/native/oracle"
	"creditchain/observability"
)

func (e *Engine) liquidate(ctx *core.Context, info core.MessageInfo, m Liquidate) (*core.Response, error) {
	if err := e.guard(ctx); err != nil {
		return nil, err
	}
	debtCoin, err := singleCoin(info)
	if err != nil {
		return nil, err
	}
	if m.User == info.Sender {
		return nil, errorsmod.Wrap(cerrors.ErrSelfLiquidation, "redbank")
	}
	if e.isCreditManager(m.User) {
		return nil, errorsmod.Wrap(cerrors.ErrUnauthorized, "redbank: credit accounts are liquidated through the credit manager")
	}
	limit, err := e.uncollateralizedLimit(ctx, m.User, debtCoin.Denom)
	if err != nil {
		return nil, err
	}
	if limit.IsPositive() {
		return nil, errorsmod.Wrapf(cerrors.ErrNotLiquidatable, "%s holds a %s credit line", m.User, debtCoin.Denom)
	}

	liquidatee := userID{addr: m.User}
	resp := core.NewResponse()
	debtMarket, err := e.accrue(ctx, resp, debtCoin.Denom)
	if err != nil {
		return nil, err
	}
	collMarket := &debtMarket
	if m.CollateralDenom != debtCoin.Denom {
		cm, err := e.accrue(ctx, resp, m.CollateralDenom)
		if err != nil {
			return nil, err
		}
		collMarket = &cm
	}

	coll, ok, err := e.loadCollateral(ctx, liquidatee, m.CollateralDenom)
	if err != nil {
		return nil, err
	}
	if !ok || !coll.Enabled {
		return nil, errorsmod.Wrapf(cerrors.ErrNoCollateral, "%s has no enabled %s collateral", m.User, m.CollateralDenom)
	}
	debt, ok, err := e.loadDebt(ctx, liquidatee, debtCoin.Denom)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrNoDebt, "%s owes no %s", m.User, debtCoin.Denom)
	}

	computer, err := e.computer(ctx, liquidatee, oracle.KindLiquidation)
	if err != nil {
		return nil, err
	}
	before, err := computer.Compute()
	if err != nil {
		return nil, err
	}
	if !before.Liquidatable {
		return nil, errorsmod.Wrapf(cerrors.ErrNotLiquidatable, "%s is healthy", m.User)
	}

	collParams, err := e.params.AssetParams(ctx, m.CollateralDenom)
	if err != nil {
		return nil, err
	}
	thf, err := e.params.TargetHealthFactor(ctx)
	if err != nil {
		return nil, err
	}
	maxCF, err := e.params.MaxCloseFactor(ctx)
	if err != nil {
		return nil, err
	}
	owed, err := ToUnderlying(types.BigToInt(debt.AmountScaled), debtMarket.BorrowIndex, Ceil)
	if err != nil {
		return nil, err
	}
	held := types.BigToInt(coll.AmountScaled)
	available, err := ToUnderlying(held, collMarket.LiquidityIndex, Truncate)
	if err != nil {
		return nil, err
	}
	res, err := liquidation.Compute(liquidation.Input{
		Requested:            debtCoin.Amount,
		Debt:                 owed,
		Collateral:           available,
		DebtPrice:            computer.Prices[debtCoin.Denom],
		CollateralPrice:      computer.Prices[m.CollateralDenom],
		HealthFactor:         *before.LiquidationHealthFactor,
		TotalCollateralValue: before.TotalCollateralValue,
		TotalDebtValue:       before.TotalDebtValue,
		CollateralParams:     collParams,
		TargetHF:             thf,
		MaxCloseFactor:       maxCF,
	})
	if err != nil {
		return nil, err
	}

	repaid, err := e.applyRepay(ctx, &debtMarket, liquidatee, res.DebtToRepay)
	if err != nil {
		return nil, err
	}

	seized := held
	if res.CollateralSeized.LT(available) {
		if seized, err = ToScaled(res.CollateralSeized, collMarket.LiquidityIndex, Ceil); err != nil {
			return nil, err
		}
		seized = sdkmath.MinInt(seized, held)
	}
	feeScaled, err := ToScaled(res.ProtocolFee, collMarket.LiquidityIndex, Truncate)
	if err != nil {
		return nil, err
	}
	feeScaled = sdkmath.MinInt(feeScaled, seized)
	if err := e.removeCollateral(ctx, resp, collMarket, liquidatee, seized); err != nil {
		return nil, err
	}
	recipient := info.Sender
	if m.Recipient != "" {
		recipient = m.Recipient
	}
	if toLiquidator := seized.Sub(feeScaled); toLiquidator.IsPositive() {
		if err := e.addCollateral(ctx, resp, collMarket, userID{addr: recipient}, toLiquidator, recipient == info.Sender); err != nil {
			return nil, err
		}
	}
	if feeScaled.IsPositive() {
		if err := e.addCollateral(ctx, resp, collMarket, userID{addr: e.addrs.RewardsCollector}, feeScaled, false); err != nil {
			return nil, err
		}
	}
	if err := e.finish(ctx, &debtMarket); err != nil {
		return nil, err
	}
	if collMarket != &debtMarket {
		if err := e.finish(ctx, collMarket); err != nil {
			return nil, err
		}
	}

	after, err := e.healthOf(ctx, liquidatee, oracle.KindLiquidation)
	if err != nil {
		return nil, err
	}
	// Debt free is the only outcome that needs no strictly higher factor.
	if after.LiquidationHealthFactor != nil && !after.LiquidationHealthFactor.GT(*before.LiquidationHealthFactor) {
		return nil, errorsmod.Wrapf(cerrors.ErrHealthNotImproved, "%s -> %s", before.LiquidationHealthFactor, after.LiquidationHealthFactor)
	}

	observability.Protocol().RecordLiquidation(moduleName, "collateral")
	ctx.EmitEvent(events.RedBankLiquidation{
		Liquidator:       info.Sender,
		User:             m.User,
		DebtRepaid:       types.NewCoin(debtCoin.Denom, repaid),
		CollateralSeized: types.NewCoin(m.CollateralDenom, res.CollateralSeized),
		ProtocolFee:      types.NewCoin(m.CollateralDenom, res.ProtocolFee),
		HealthFactor:     *before.LiquidationHealthFactor,
		Bonus:            res.Bonus,
	})
	if refund := debtCoin.Amount.Sub(repaid); refund.IsPositive() {
		resp.AddBankSend(info.Sender, types.NewCoin(debtCoin.Denom, refund))
	}
	return resp, nil
}

// transferCollateral moves collateral between credit accounts of the
// credit manager. When the legs add up to the whole position the rounding
// remainder goes with the last leg.
func (e *Engine) transferCollateral(ctx *core.Context, info core.MessageInfo, m TransferCollateral) (*core.Response, error) {
	if !e.isCreditManager(info.Sender) {
		return nil, errorsmod.Wrap(cerrors.ErrUnauthorized, "redbank: collateral transfers are reserved for the credit manager")
	}
	if len(m.To) == 0 {
		return core.NewResponse(), nil
	}
	resp := core.NewResponse()
	market, err := e.accrue(ctx, resp, m.Denom)
	if err != nil {
		return nil, err
	}
	from := userID{addr: info.Sender, accountID: m.FromAccountID}
	rec, ok, err := e.loadCollateral(ctx, from, m.Denom)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrNoCollateral, "account %s has no %s lent", m.FromAccountID, m.Denom)
	}
	held := types.BigToInt(rec.AmountScaled)
	underlying, err := ToUnderlying(held, market.LiquidityIndex, Truncate)
	if err != nil {
		return nil, err
	}
	total := sdkmath.ZeroInt()
	legs := make([]sdkmath.Int, len(m.To))
	for i, t := range m.To {
		if t.Amount.IsNil() || !t.Amount.IsPositive() {
			return nil, errorsmod.Wrap(cerrors.ErrValidation, "redbank: transfer amount must be positive")
		}
		total = total.Add(t.Amount)
		if legs[i], err = ToScaled(t.Amount, market.LiquidityIndex, Truncate); err != nil {
			return nil, err
		}
	}
	if total.GT(underlying) {
		return nil, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "account %s lent %s%s", m.FromAccountID, underlying, m.Denom)
	}
	moved := sdkmath.ZeroInt()
	for _, l := range legs {
		moved = moved.Add(l)
	}
	if total.Equal(underlying) {
		legs[len(legs)-1] = legs[len(legs)-1].Add(held.Sub(moved))
		moved = held
	}
	if err := e.removeCollateral(ctx, resp, &market, from, moved); err != nil {
		return nil, err
	}
	for i, t := range m.To {
		if legs[i].IsZero() {
			continue
		}
		to := userID{addr: info.Sender, accountID: t.AccountID}
		if err := e.addCollateral(ctx, resp, &market, to, legs[i], true); err != nil {
			return nil, err
		}
	}
	if err := e.finish(ctx, &market); err != nil {
		return nil, err
	}
	return resp, nil
}
