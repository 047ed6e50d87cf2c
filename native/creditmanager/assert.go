package creditmanager

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/native/oracle"
	"creditchain/native/params"
)

// assertHlsRules requires every debt of an HLS account to carry HLS
// parameters and every collateral to be the debt denom or correlated to it.
func (e *Engine) assertHlsRules(ctx *core.Context, accountID string) error {
	pos, err := e.Positions(ctx, accountID)
	if err != nil {
		return err
	}
	var collateral []params.HlsCorrelation
	for _, denoms := range [][]string{pos.Deposits.Denoms(), pos.Lends.Denoms(), pos.StakedLP.Denoms()} {
		for _, d := range denoms {
			collateral = append(collateral, params.HlsCorrelation{Denom: d})
		}
	}
	for _, v := range pos.Vaults {
		collateral = append(collateral, params.HlsCorrelation{Vault: v.Vault})
	}
	for _, debt := range pos.Debts {
		ap, err := e.deps.Params.AssetParams(ctx, debt.Denom)
		if err != nil {
			return err
		}
		hls := ap.CreditManager.Hls
		if hls == nil {
			return errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: %s cannot be borrowed by hls accounts", debt.Denom)
		}
		for _, c := range collateral {
			if c.Denom == debt.Denom || hls.Correlated(c) {
				continue
			}
			return errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: %s%s is not correlated with debt %s", c.Denom, c.Vault, debt.Denom)
		}
	}
	return nil
}

// assertMaxLTV accepts the batch when the account ends at or above the
// max-LTV threshold, or when it started below it and did not get worse.
func (e *Engine) assertMaxLTV(ctx *core.Context, m AssertMaxLTV) error {
	values, err := e.health(ctx, m.AccountID, oracle.KindDefault)
	if err != nil {
		return err
	}
	current := values.MaxLTVHealthFactor
	if current == nil {
		return nil
	}
	prev := m.PrevHealthFactor
	if prev == nil || prev.GTE(sdkmath.LegacyOneDec()) {
		if current.LT(sdkmath.LegacyOneDec()) {
			return errorsmod.Wrapf(cerrors.ErrAboveMaxLTV, "creditmanager: account %s health factor %s", m.AccountID, current)
		}
		return nil
	}
	if current.LT(*prev) {
		return errorsmod.Wrapf(cerrors.ErrHealthNotImproved, "creditmanager: account %s health factor %s below %s", m.AccountID, current, prev)
	}
	return nil
}

// assertDepositCaps checks that the coins held by credit accounts plus the
// money market collateral stay within the asset deposit cap.
func (e *Engine) assertDepositCaps(ctx *core.Context, denoms []string) error {
	for _, denom := range denoms {
		ap, err := e.deps.Params.AssetParams(ctx, denom)
		if err != nil {
			return err
		}
		if ap.DepositCap.IsNil() {
			continue
		}
		total, err := e.deps.Ledger.Balance(ctx, e.self(), denom)
		if err != nil {
			return err
		}
		market, err := e.deps.RedBank.Market(ctx, denom)
		switch {
		case err == nil:
			lent, err := e.deps.RedBank.UnderlyingLiquidityAmount(ctx, denom, market.CollateralTotalScaled)
			if err != nil {
				return err
			}
			total = total.Add(lent)
		case errorsmod.IsOf(err, cerrors.ErrAssetNotInitialized):
		default:
			return err
		}
		if total.GT(ap.DepositCap) {
			return errorsmod.Wrapf(cerrors.ErrDepositCapExceeded, "creditmanager: %s total %s above cap %s", denom, total, ap.DepositCap)
		}
	}
	return nil
}

// assertLiquidationImproved requires a liquidation to leave the account
// strictly healthier, or debt free.
func (e *Engine) assertLiquidationImproved(ctx *core.Context, m AssertLiquidationImproved) error {
	values, err := e.health(ctx, m.AccountID, oracle.KindLiquidation)
	if err != nil {
		return err
	}
	if values.LiquidationHealthFactor == nil {
		return nil
	}
	if !values.LiquidationHealthFactor.GT(m.PrevHealthFactor) {
		return errorsmod.Wrapf(cerrors.ErrHealthNotImproved, "creditmanager: account %s health factor %s, was %s", m.AccountID, values.LiquidationHealthFactor, m.PrevHealthFactor)
	}
	return nil
}
