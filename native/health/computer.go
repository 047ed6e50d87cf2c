package health

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	cerrors "creditchain/core/errors"
)

// weights are the effective ratios applied to one collateral source.
type weights struct {
	maxLTV sdkmath.LegacyDec
	liqLT  sdkmath.LegacyDec
}

func (c *Computer) price(denom string) (sdkmath.LegacyDec, error) {
	p, ok := c.Prices[denom]
	if !ok || p.IsNil() {
		return sdkmath.LegacyDec{}, errorsmod.Wrapf(cerrors.ErrPriceNotFound, "%s", denom)
	}
	return p, nil
}

func (c *Computer) coinWeights(denom string) (weights, error) {
	ap, ok := c.AssetParams[denom]
	if !ok {
		return weights{}, errorsmod.Wrapf(cerrors.ErrAssetNotInitialized, "asset params for %s", denom)
	}
	w := weights{maxLTV: ap.MaxLoanToValue, liqLT: ap.LiquidationThreshold}
	if c.Kind == KindHighLeveredStrategy {
		hls := ap.CreditManager.Hls
		if hls == nil {
			return weights{}, errorsmod.Wrapf(cerrors.ErrValidation, "%s has no hls params", denom)
		}
		w = weights{maxLTV: hls.MaxLoanToValue, liqLT: hls.LiquidationThreshold}
	}
	if c.EnforceWhitelist && !ap.CreditManager.Whitelisted {
		w.maxLTV = sdkmath.LegacyZeroDec()
	}
	return w, nil
}

func (c *Computer) vaultWeights(vault string) (weights, error) {
	vc, ok := c.VaultConfigs[vault]
	if !ok {
		return weights{}, errorsmod.Wrapf(cerrors.ErrNotWhitelisted, "vault %s has no config", vault)
	}
	w := weights{maxLTV: vc.MaxLoanToValue, liqLT: vc.LiquidationThreshold}
	if c.Kind == KindHighLeveredStrategy {
		if vc.Hls == nil {
			return weights{}, errorsmod.Wrapf(cerrors.ErrValidation, "vault %s has no hls params", vault)
		}
		w = weights{maxLTV: vc.Hls.MaxLoanToValue, liqLT: vc.Hls.LiquidationThreshold}
	}
	if c.EnforceWhitelist && !vc.Whitelisted {
		w.maxLTV = sdkmath.LegacyZeroDec()
	}
	return w, nil
}

// CoinValue returns floor(amount * price).
func CoinValue(amount sdkmath.Int, price sdkmath.LegacyDec) sdkmath.Int {
	return price.MulInt(amount).TruncateInt()
}

// DebtValue returns ceil(amount * price).
func DebtValue(amount sdkmath.Int, price sdkmath.LegacyDec) sdkmath.Int {
	return price.MulInt(amount).Ceil().TruncateInt()
}

func weighted(value sdkmath.Int, ratio sdkmath.LegacyDec) sdkmath.Int {
	return ratio.MulInt(value).TruncateInt()
}

type sums struct {
	collateral, maxLTV, liq sdkmath.Int
}

func (s *sums) add(value sdkmath.Int, w weights) {
	s.collateral = s.collateral.Add(value)
	s.maxLTV = s.maxLTV.Add(weighted(value, w.maxLTV))
	s.liq = s.liq.Add(weighted(value, w.liqLT))
}

func (c *Computer) addCoin(s *sums, denom string, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsZero() {
		return nil
	}
	p, err := c.price(denom)
	if err != nil {
		return err
	}
	w, err := c.coinWeights(denom)
	if err != nil {
		return err
	}
	s.add(CoinValue(amount, p), w)
	return nil
}

// Compute returns the health values of the positions.
func (c *Computer) Compute() (Values, error) {
	s := sums{collateral: sdkmath.ZeroInt(), maxLTV: sdkmath.ZeroInt(), liq: sdkmath.ZeroInt()}
	for _, coin := range c.Positions.Deposits {
		if err := c.addCoin(&s, coin.Denom, coin.Amount); err != nil {
			return Values{}, err
		}
	}
	for _, coin := range c.Positions.Lends {
		if err := c.addCoin(&s, coin.Denom, coin.Amount); err != nil {
			return Values{}, err
		}
	}
	for _, coin := range c.Positions.StakedLP {
		if err := c.addCoin(&s, coin.Denom, coin.Amount); err != nil {
			return Values{}, err
		}
	}
	for _, v := range c.Positions.Vaults {
		if !v.SharesBase.IsNil() && v.SharesBase.IsPositive() {
			p, err := c.price(v.BaseDenom)
			if err != nil {
				return Values{}, err
			}
			w, err := c.vaultWeights(v.Vault)
			if err != nil {
				return Values{}, err
			}
			s.add(CoinValue(v.SharesBase, p), w)
		}
		if err := c.addCoin(&s, v.BaseDenom, v.UnlockingBase); err != nil {
			return Values{}, err
		}
	}

	debt := sdkmath.ZeroInt()
	for _, d := range c.Positions.Debts {
		if d.Uncollateralized || d.Amount.IsNil() || d.Amount.IsZero() {
			continue
		}
		p, err := c.price(d.Denom)
		if err != nil {
			return Values{}, err
		}
		debt = debt.Add(DebtValue(d.Amount, p))
	}

	out := Values{
		TotalDebtValue:                         debt,
		TotalCollateralValue:                   s.collateral,
		MaxLTVAdjustedCollateral:               s.maxLTV,
		LiquidationThresholdAdjustedCollateral: s.liq,
	}
	if debt.IsPositive() {
		debtDec := sdkmath.LegacyNewDecFromInt(debt)
		maxHF := sdkmath.LegacyNewDecFromInt(s.maxLTV).QuoTruncate(debtDec)
		liqHF := sdkmath.LegacyNewDecFromInt(s.liq).QuoTruncate(debtDec)
		out.MaxLTVHealthFactor = &maxHF
		out.LiquidationHealthFactor = &liqHF
		out.AboveMaxLTV = maxHF.LT(sdkmath.LegacyOneDec())
		out.Liquidatable = liqHF.LT(sdkmath.LegacyOneDec())
	}
	return out, nil
}

// MaxWithdrawAmountEstimate returns how much of a deposit can leave the
// account while the max-LTV health factor stays at or above one.
func (c *Computer) MaxWithdrawAmountEstimate(denom string) (sdkmath.Int, error) {
	deposit := c.Positions.Deposits.AmountOf(denom)
	if deposit.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	values, err := c.Compute()
	if err != nil {
		return sdkmath.Int{}, err
	}
	if values.TotalDebtValue.IsZero() {
		return deposit, nil
	}
	w, err := c.coinWeights(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if w.maxLTV.IsZero() {
		return deposit, nil
	}
	headroom := values.MaxLTVAdjustedCollateral.Sub(values.TotalDebtValue).SubRaw(1)
	if !headroom.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	p, err := c.price(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	max := sdkmath.LegacyNewDecFromInt(headroom).Quo(p.Mul(w.maxLTV)).TruncateInt()
	return sdkmath.MinInt(deposit, max), nil
}

// MaxBorrowAmountEstimate returns how much of denom can be borrowed while
// the max-LTV health factor stays at or above one.
func (c *Computer) MaxBorrowAmountEstimate(denom string, target BorrowTarget) (sdkmath.Int, error) {
	ap, ok := c.AssetParams[denom]
	if !ok {
		return sdkmath.Int{}, errorsmod.Wrapf(cerrors.ErrAssetNotInitialized, "asset params for %s", denom)
	}
	if c.EnforceWhitelist && !ap.CreditManager.Whitelisted {
		return sdkmath.ZeroInt(), nil
	}
	values, err := c.Compute()
	if err != nil {
		return sdkmath.Int{}, err
	}
	if values.AboveMaxLTV {
		return sdkmath.ZeroInt(), nil
	}
	headroom := values.MaxLTVAdjustedCollateral.Sub(values.TotalDebtValue).SubRaw(1)
	if !headroom.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	p, err := c.price(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	divisor := p
	if target == BorrowTargetDeposit {
		w, err := c.coinWeights(denom)
		if err != nil {
			return sdkmath.Int{}, err
		}
		divisor = sdkmath.LegacyOneDec().Sub(w.maxLTV).Mul(p)
	}
	return sdkmath.LegacyNewDecFromInt(headroom).Quo(divisor).TruncateInt(), nil
}
