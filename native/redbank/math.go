package redbank

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/holiman/uint256"

	cerrors "creditchain/core/errors"
)

// Rounding selects how scaled conversions round.
type Rounding uint8

const (
	Truncate Rounding = iota
	Ceil
)

// SecondsPerYear is the accrual period that rates are expressed over.
const SecondsPerYear = 31_536_000

// ScalingFactor is applied to every scaled amount so that index drift does
// not eat precision.
var ScalingFactor = uint256.NewInt(1_000_000)

var (
	// decimalOne is 10^18, the raw value of LegacyDec one.
	decimalOne = uint256.NewInt(1_000_000_000_000_000_000)
	scaledOne  = new(uint256.Int).Mul(ScalingFactor, decimalOne)
)

func toUint(x sdkmath.Int) (*uint256.Int, error) {
	if x.IsNil() {
		return new(uint256.Int), nil
	}
	if x.IsNegative() {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "negative amount %s", x)
	}
	v, overflow := uint256.FromBig(x.BigInt())
	if overflow || v.BitLen() > 128 {
		return nil, errorsmod.Wrapf(cerrors.ErrOverflow, "amount %s exceeds 128 bits", x)
	}
	return v, nil
}

func indexRaw(index sdkmath.LegacyDec) (*uint256.Int, error) {
	if index.IsNil() || !index.IsPositive() {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "index must be positive")
	}
	v, overflow := uint256.FromBig(index.BigInt())
	if overflow {
		return nil, errorsmod.Wrapf(cerrors.ErrOverflow, "index %s", index)
	}
	return v, nil
}

// mulDiv returns x*y/d with a 512-bit intermediate product.
func mulDiv(x, y, d *uint256.Int, mode Rounding) (sdkmath.Int, error) {
	q, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return sdkmath.Int{}, errorsmod.Wrap(cerrors.ErrOverflow, "scaled conversion")
	}
	if mode == Ceil && !new(uint256.Int).MulMod(x, y, d).IsZero() {
		if _, of := q.AddOverflow(q, uint256.NewInt(1)); of {
			return sdkmath.Int{}, errorsmod.Wrap(cerrors.ErrOverflow, "scaled conversion")
		}
	}
	if q.BitLen() > 128 {
		return sdkmath.Int{}, errorsmod.Wrap(cerrors.ErrOverflow, "scaled amount exceeds 128 bits")
	}
	return sdkmath.NewIntFromBigInt(q.ToBig()), nil
}

// ToScaled converts an underlying amount to its scaled representation:
// amount * S / index.
func ToScaled(amount sdkmath.Int, index sdkmath.LegacyDec, mode Rounding) (sdkmath.Int, error) {
	x, err := toUint(amount)
	if err != nil {
		return sdkmath.Int{}, err
	}
	idx, err := indexRaw(index)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return mulDiv(x, scaledOne, idx, mode)
}

// ToUnderlying converts a scaled amount back: scaled * index / S.
func ToUnderlying(scaled sdkmath.Int, index sdkmath.LegacyDec, mode Rounding) (sdkmath.Int, error) {
	x, err := toUint(scaled)
	if err != nil {
		return sdkmath.Int{}, err
	}
	idx, err := indexRaw(index)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return mulDiv(x, idx, scaledOne, mode)
}

// accrueIndex returns index * (1 + rate * elapsed / year).
func accrueIndex(index, rate sdkmath.LegacyDec, elapsed uint64) sdkmath.LegacyDec {
	if elapsed == 0 || rate.IsZero() {
		return index
	}
	growth := rate.MulInt64(int64(elapsed)).QuoInt64(SecondsPerYear)
	return index.MulTruncate(sdkmath.LegacyOneDec().Add(growth))
}
