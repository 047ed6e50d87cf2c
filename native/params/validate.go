package params

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	cerrors "creditchain/core/errors"
	"creditchain/core/types"
	"creditchain/crypto"
)

func invalid(format string, args ...any) error {
	return errorsmod.Wrapf(cerrors.ErrValidation, format, args...)
}

func checkDec(name string, d sdkmath.LegacyDec, lo, hi sdkmath.LegacyDec, hiInclusive bool) error {
	if d.IsNil() {
		return invalid("%s must be set", name)
	}
	if d.LT(lo) {
		return invalid("%s %s below %s", name, d, lo)
	}
	if (hiInclusive && d.GT(hi)) || (!hiInclusive && d.GTE(hi)) {
		return invalid("%s %s out of range", name, d)
	}
	return nil
}

// Validate checks the liquidation bonus predicates.
func (lb LiquidationBonus) Validate() error {
	zero, one := sdkmath.LegacyZeroDec(), sdkmath.LegacyOneDec()
	if err := checkDec("starting_lb", lb.StartingLB, zero, one, true); err != nil {
		return err
	}
	if lb.Slope.IsNil() || lb.Slope.LT(one) {
		return invalid("liquidation bonus slope must be >= 1")
	}
	if err := checkDec("min_lb", lb.MinLB, zero, one, true); err != nil {
		return err
	}
	if err := checkDec("max_lb", lb.MaxLB, zero, one, true); err != nil {
		return err
	}
	if lb.MinLB.GT(lb.MaxLB) {
		return invalid("min_lb %s above max_lb %s", lb.MinLB, lb.MaxLB)
	}
	return nil
}

// Validate checks HLS ratios and correlations.
func (h *HlsParams) Validate() error {
	if h == nil {
		return nil
	}
	zero, one := sdkmath.LegacyZeroDec(), sdkmath.LegacyOneDec()
	if err := checkDec("hls max_loan_to_value", h.MaxLoanToValue, zero, one, false); err != nil {
		return err
	}
	if err := checkDec("hls liquidation_threshold", h.LiquidationThreshold, zero, one, true); err != nil {
		return err
	}
	if h.LiquidationThreshold.LTE(h.MaxLoanToValue) {
		return invalid("hls liquidation_threshold must exceed max_loan_to_value")
	}
	for _, c := range h.Correlations {
		if (c.Denom == "") == (c.Vault == "") {
			return invalid("hls correlation must name exactly one of denom or vault")
		}
		if c.Denom != "" {
			if err := types.ValidateDenom(c.Denom); err != nil {
				return invalid("hls correlation: %v", err)
			}
		}
		if c.Vault != "" {
			if err := crypto.ValidateAddress(c.Vault); err != nil {
				return invalid("hls correlation vault: %v", err)
			}
		}
	}
	return nil
}

// Validate checks every asset parameter predicate.
func (p AssetParams) Validate() error {
	if err := types.ValidateDenom(p.Denom); err != nil {
		return invalid("%v", err)
	}
	zero, one := sdkmath.LegacyZeroDec(), sdkmath.LegacyOneDec()
	if err := checkDec("max_loan_to_value", p.MaxLoanToValue, zero, one, false); err != nil {
		return err
	}
	if err := checkDec("liquidation_threshold", p.LiquidationThreshold, zero, one, true); err != nil {
		return err
	}
	if p.LiquidationThreshold.LTE(p.MaxLoanToValue) {
		return invalid("liquidation_threshold %s must exceed max_loan_to_value %s", p.LiquidationThreshold, p.MaxLoanToValue)
	}
	if err := p.LiquidationBonus.Validate(); err != nil {
		return err
	}
	if err := checkDec("protocol_liquidation_fee", p.ProtocolLiquidationFee, zero, one, false); err != nil {
		return err
	}
	if p.DepositCap.IsNil() || p.DepositCap.IsNegative() {
		return invalid("deposit_cap must be non-negative")
	}
	return p.CreditManager.Hls.Validate()
}

// Validate checks the vault configuration predicates.
func (v VaultConfig) Validate() error {
	if err := crypto.ValidateAddress(v.Addr); err != nil {
		return invalid("vault addr: %v", err)
	}
	if err := v.DepositCap.Validate(); err != nil {
		return invalid("vault deposit cap: %v", err)
	}
	zero, one := sdkmath.LegacyZeroDec(), sdkmath.LegacyOneDec()
	if err := checkDec("vault max_loan_to_value", v.MaxLoanToValue, zero, one, false); err != nil {
		return err
	}
	if err := checkDec("vault liquidation_threshold", v.LiquidationThreshold, zero, one, true); err != nil {
		return err
	}
	if v.LiquidationThreshold.LTE(v.MaxLoanToValue) {
		return invalid("vault liquidation_threshold must exceed max_loan_to_value")
	}
	return v.Hls.Validate()
}

// ValidateTargetHealthFactor requires a target strictly above one.
func ValidateTargetHealthFactor(thf sdkmath.LegacyDec) error {
	if thf.IsNil() || thf.LTE(sdkmath.LegacyOneDec()) {
		return invalid("target health factor must be > 1")
	}
	if thf.GT(sdkmath.LegacyNewDec(2)) {
		return invalid("target health factor must be <= 2")
	}
	return nil
}

// ValidateMaxCloseFactor requires a fraction in (0, 1].
func ValidateMaxCloseFactor(cf sdkmath.LegacyDec) error {
	if cf.IsNil() || !cf.IsPositive() || cf.GT(sdkmath.LegacyOneDec()) {
		return invalid("max close factor must be in (0, 1]")
	}
	return nil
}

func (c HlsCorrelation) String() string {
	if c.Vault != "" {
		return fmt.Sprintf("vault:%s", c.Vault)
	}
	return fmt.Sprintf("coin:%s", c.Denom)
}
