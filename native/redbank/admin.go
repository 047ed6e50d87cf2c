package redbank

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/state"
	"creditchain/core/types"
)

func (e *Engine) initAsset(ctx *core.Context, info core.MessageInfo, m InitAsset) (*core.Response, error) {
	if err := e.requireOwner(ctx, info.Sender); err != nil {
		return nil, err
	}
	if err := types.ValidateDenom(m.Denom); err != nil {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, err.Error())
	}
	if err := validateReserveFactor(m.Params.ReserveFactor); err != nil {
		return nil, err
	}
	if err := m.Params.InterestRateModel.Validate(); err != nil {
		return nil, err
	}
	if _, err := e.loadMarket(ctx, m.Denom); err == nil {
		return nil, errorsmod.Wrapf(cerrors.ErrAssetAlreadyInitialized, "market %s", m.Denom)
	} else if !errorsmod.IsOf(err, cerrors.ErrAssetNotInitialized) {
		return nil, err
	}
	market := Market{
		Denom:                 m.Denom,
		LiquidityIndex:        sdkmath.LegacyOneDec(),
		BorrowIndex:           sdkmath.LegacyOneDec(),
		ReserveFactor:         m.Params.ReserveFactor,
		CollateralTotalScaled: sdkmath.ZeroInt(),
		DebtTotalScaled:       sdkmath.ZeroInt(),
		IndexesLastUpdated:    ctx.BlockTime(),
		InterestRateModel:     m.Params.InterestRateModel,
	}
	if err := e.finish(ctx, &market); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.MarketInitialized{Denom: m.Denom})
	return core.NewResponse(), nil
}

func (e *Engine) updateAsset(ctx *core.Context, info core.MessageInfo, m UpdateAsset) (*core.Response, error) {
	if err := e.requireOwner(ctx, info.Sender); err != nil {
		return nil, err
	}
	resp := core.NewResponse()
	// Interest up to now accrues under the old settings.
	market, err := e.accrue(ctx, resp, m.Denom)
	if err != nil {
		return nil, err
	}
	if m.ReserveFactor != nil {
		if err := validateReserveFactor(*m.ReserveFactor); err != nil {
			return nil, err
		}
		market.ReserveFactor = *m.ReserveFactor
	}
	if m.InterestRateModel != nil {
		if err := m.InterestRateModel.Validate(); err != nil {
			return nil, err
		}
		market.InterestRateModel = *m.InterestRateModel
	}
	if err := e.finish(ctx, &market); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.MarketUpdated{Denom: m.Denom, ReserveFactor: market.ReserveFactor})
	return resp, nil
}

func (e *Engine) updateLimit(ctx *core.Context, info core.MessageInfo, m UpdateUncollateralizedLoanLimit) (*core.Response, error) {
	if err := e.requireOwner(ctx, info.Sender); err != nil {
		return nil, err
	}
	if m.NewLimit.IsNil() || m.NewLimit.IsNegative() {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "redbank: limit must be non-negative")
	}
	if e.isCreditManager(m.User) {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "redbank: the credit manager cannot hold a credit line")
	}
	if _, err := e.loadMarket(ctx, m.Denom); err != nil {
		return nil, err
	}
	current, err := e.uncollateralizedLimit(ctx, m.User, m.Denom)
	if err != nil {
		return nil, err
	}
	user := userID{addr: m.User}
	debt, hasDebt, err := e.loadDebt(ctx, user, m.Denom)
	if err != nil {
		return nil, err
	}
	if current.IsZero() && m.NewLimit.IsPositive() && hasDebt && !debt.Uncollateralized {
		return nil, errorsmod.Wrapf(cerrors.ErrUserHasCollateralizedDebt, "%s owes %s", m.User, m.Denom)
	}
	key := state.Key(limitPrefix, m.User, m.Denom)
	if m.NewLimit.IsZero() {
		err = ctx.Store().KVDelete(key)
	} else {
		err = ctx.Store().KVPut(key, types.IntToBig(m.NewLimit))
	}
	if err != nil {
		return nil, err
	}
	if hasDebt {
		debt.Uncollateralized = m.NewLimit.IsPositive()
		if err := ctx.Store().KVPut(debtKey(user, m.Denom), debt); err != nil {
			return nil, err
		}
	}
	ctx.EmitEvent(events.UncollateralizedLimit{User: m.User, Denom: m.Denom, Limit: m.NewLimit})
	return core.NewResponse(), nil
}
