// Package liquidation holds the close-factor, bonus and amount math shared
// by the money market and the credit manager.
package liquidation

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	cerrors "creditchain/core/errors"
	"creditchain/native/params"
)

// Bonus returns the dynamic liquidation bonus for an account at health
// factor hf whose collateralization ratio is cr:
//
//	clamp(starting_lb + slope * (1 - hf), min_lb, max(min(cr - 1, max_lb), min_lb))
func Bonus(lb params.LiquidationBonus, hf, cr sdkmath.LegacyDec) sdkmath.LegacyDec {
	one := sdkmath.LegacyOneDec()
	raw := lb.StartingLB
	if hf.LT(one) {
		raw = raw.Add(lb.Slope.Mul(one.Sub(hf)))
	}
	upper := sdkmath.LegacyMinDec(cr.Sub(one), lb.MaxLB)
	upper = sdkmath.LegacyMaxDec(upper, lb.MinLB)
	return sdkmath.LegacyMaxDec(lb.MinLB, sdkmath.LegacyMinDec(raw, upper))
}

// CloseFactor returns the share of a debt a liquidator may repay so that
// the account lands near the target health factor.
func CloseFactor(targetHF, hf, collateralLT, lb, maxCloseFactor sdkmath.LegacyDec) sdkmath.LegacyDec {
	one := sdkmath.LegacyOneDec()
	denom := targetHF.Sub(one.Add(lb).Mul(collateralLT))
	if !denom.IsPositive() {
		return maxCloseFactor
	}
	cf := targetHF.Sub(hf).Quo(denom)
	if cf.IsNegative() {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyMinDec(cf, maxCloseFactor)
}

// Input describes one liquidation request.
type Input struct {
	// Requested is the debt amount offered by the liquidator.
	Requested sdkmath.Int
	// Debt is the outstanding debt in the repaid denom.
	Debt sdkmath.Int
	// Collateral is the available amount of the seized denom.
	Collateral sdkmath.Int

	DebtPrice       sdkmath.LegacyDec
	CollateralPrice sdkmath.LegacyDec

	// HealthFactor is the liquidation health factor before repayment.
	HealthFactor sdkmath.LegacyDec
	// TotalCollateralValue and TotalDebtValue give the collateralization ratio.
	TotalCollateralValue sdkmath.Int
	TotalDebtValue       sdkmath.Int

	CollateralParams params.AssetParams
	TargetHF         sdkmath.LegacyDec
	MaxCloseFactor   sdkmath.LegacyDec
}

// Result is the outcome of Compute.
type Result struct {
	DebtToRepay sdkmath.Int
	// CollateralSeized is the full amount taken from the liquidatee.
	CollateralSeized sdkmath.Int
	// LiquidatorCollateral is CollateralSeized minus the protocol fee.
	LiquidatorCollateral sdkmath.Int
	// ProtocolFee is the protocol_liquidation_fee share of CollateralSeized.
	ProtocolFee sdkmath.Int
	Bonus       sdkmath.LegacyDec
	CloseFactor sdkmath.LegacyDec
}

// Compute returns the debt to repay and the collateral to seize. A request
// that rounds to nothing is rejected.
func Compute(in Input) (Result, error) {
	if in.TotalDebtValue.IsZero() {
		return Result{}, errorsmod.Wrap(cerrors.ErrNotLiquidatable, "no debt")
	}
	if !in.CollateralPrice.IsPositive() || !in.DebtPrice.IsPositive() {
		return Result{}, errorsmod.Wrap(cerrors.ErrPriceNotFound, "liquidation prices must be positive")
	}
	cr := sdkmath.LegacyNewDecFromInt(in.TotalCollateralValue).Quo(sdkmath.LegacyNewDecFromInt(in.TotalDebtValue))
	lb := Bonus(in.CollateralParams.LiquidationBonus, in.HealthFactor, cr)
	cf := CloseFactor(in.TargetHF, in.HealthFactor, in.CollateralParams.LiquidationThreshold, lb, in.MaxCloseFactor)

	maxRepay := cf.MulInt(in.Debt).TruncateInt()
	debt := sdkmath.MinInt(in.Requested, maxRepay)

	onePlusLB := sdkmath.LegacyOneDec().Add(lb)
	debtValue := in.DebtPrice.MulInt(debt)
	coll := debtValue.Mul(onePlusLB).Quo(in.CollateralPrice).TruncateInt()
	if coll.GT(in.Collateral) {
		coll = in.Collateral
		collValue := in.CollateralPrice.MulInt(coll)
		debt = collValue.Quo(onePlusLB).Quo(in.DebtPrice).TruncateInt()
	}
	if !coll.IsPositive() || !debt.IsPositive() {
		return Result{}, errorsmod.Wrapf(cerrors.ErrValidation, "liquidation rounds to %s debt and %s collateral", debt, coll)
	}

	fee := in.CollateralParams.ProtocolLiquidationFee.MulInt(coll).TruncateInt()
	return Result{
		DebtToRepay:          debt,
		CollateralSeized:     coll,
		LiquidatorCollateral: coll.Sub(fee),
		ProtocolFee:          fee,
		Bonus:                lb,
		CloseFactor:          cf,
	}, nil
}
