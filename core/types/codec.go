package types

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Records persisted with RLP carry *big.Int fields; these helpers convert to
// and from the fixed-point types used by the engines.

// IntToBig converts an amount for storage. Nil amounts encode as zero.
func IntToBig(x sdkmath.Int) *big.Int {
	if x.IsNil() {
		return new(big.Int)
	}
	return x.BigInt()
}

// BigToInt converts a stored amount back. Nil values decode as zero.
func BigToInt(b *big.Int) sdkmath.Int {
	if b == nil {
		return sdkmath.ZeroInt()
	}
	return sdkmath.NewIntFromBigInt(b)
}

// DecToBig stores a decimal as its 18-digit scaled integer.
func DecToBig(d sdkmath.LegacyDec) *big.Int {
	if d.IsNil() {
		return new(big.Int)
	}
	return d.BigInt()
}

// BigToDec restores a decimal stored with DecToBig.
func BigToDec(b *big.Int) sdkmath.LegacyDec {
	if b == nil {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDecFromBigIntWithPrec(b, sdkmath.LegacyPrecision)
}
