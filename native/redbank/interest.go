package redbank

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	cerrors "creditchain/core/errors"
)

// InterestRateModel is a two-slope model with a kink at the optimal
// utilization rate.
type InterestRateModel struct {
	// OptimalUtilizationRate is the kink where Slope2 starts to apply.
	OptimalUtilizationRate sdkmath.LegacyDec `json:"optimal_utilization_rate"`
	// Base is the borrow rate at zero utilization.
	Base   sdkmath.LegacyDec `json:"base"`
	Slope1 sdkmath.LegacyDec `json:"slope_1"`
	Slope2 sdkmath.LegacyDec `json:"slope_2"`
}

// Validate checks u* <= 1 and slope_1 < slope_2.
func (m InterestRateModel) Validate() error {
	for name, d := range map[string]sdkmath.LegacyDec{
		"optimal_utilization_rate": m.OptimalUtilizationRate,
		"base":                     m.Base,
		"slope_1":                  m.Slope1,
		"slope_2":                  m.Slope2,
	} {
		if d.IsNil() || d.IsNegative() {
			return errorsmod.Wrapf(cerrors.ErrValidation, "interest rate model: %s must be non-negative", name)
		}
	}
	if m.OptimalUtilizationRate.GT(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrap(cerrors.ErrValidation, "interest rate model: optimal utilization rate must be <= 1")
	}
	if m.Slope1.GTE(m.Slope2) {
		return errorsmod.Wrap(cerrors.ErrValidation, "interest rate model: slope_1 must be below slope_2")
	}
	return nil
}

// BorrowRate returns the annual borrow rate at utilization u.
func (m InterestRateModel) BorrowRate(u sdkmath.LegacyDec) sdkmath.LegacyDec {
	one := sdkmath.LegacyOneDec()
	if u.LTE(m.OptimalUtilizationRate) {
		if m.OptimalUtilizationRate.IsZero() {
			return m.Base
		}
		return m.Base.Add(m.Slope1.Mul(u).Quo(m.OptimalUtilizationRate))
	}
	excess := u.Sub(m.OptimalUtilizationRate).Quo(one.Sub(m.OptimalUtilizationRate))
	return m.Base.Add(m.Slope1).Add(m.Slope2.Mul(excess))
}

// Rates returns the borrow and liquidity rates at utilization u. The
// liquidity rate is what depositors earn after the reserve factor.
func (m InterestRateModel) Rates(u, reserveFactor sdkmath.LegacyDec) (borrow, liquidity sdkmath.LegacyDec) {
	borrow = m.BorrowRate(u)
	liquidity = borrow.Mul(u).Mul(sdkmath.LegacyOneDec().Sub(reserveFactor))
	return borrow, liquidity
}

func validateReserveFactor(rf sdkmath.LegacyDec) error {
	if rf.IsNil() || rf.IsNegative() || rf.GTE(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrap(cerrors.ErrValidation, "reserve factor must be in [0, 1)")
	}
	return nil
}
