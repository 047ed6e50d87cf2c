package redbank

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	cerrors "creditchain/core/errors"
)

func dec(s string) sdkmath.LegacyDec { return sdkmath.LegacyMustNewDecFromStr(s) }

func TestScaledRoundTrip(t *testing.T) {
	indexes := []string{"1", "1.000000000000000001", "1.0125", "3.333333333333333333", "17.5"}
	amounts := []int64{0, 1, 7, 999_999, 123_456_789_012}
	for _, idx := range indexes {
		for _, a := range amounts {
			x := sdkmath.NewInt(a)
			s, err := ToScaled(x, dec(idx), Truncate)
			require.NoError(t, err)
			back, err := ToUnderlying(s, dec(idx), Truncate)
			require.NoError(t, err)
			require.True(t, back.LTE(x), "truncate %s at %s gave %s", x, idx, back)
			require.True(t, x.Sub(back).LTE(sdkmath.OneInt()), "truncate %s at %s gave %s", x, idx, back)

			s, err = ToScaled(x, dec(idx), Ceil)
			require.NoError(t, err)
			back, err = ToUnderlying(s, dec(idx), Ceil)
			require.NoError(t, err)
			require.True(t, back.GTE(x), "ceil %s at %s gave %s", x, idx, back)
		}
	}
}

func TestScaledOverflow(t *testing.T) {
	huge := sdkmath.NewIntFromUint64(1).BigInt()
	huge.Lsh(huge, 130)
	_, err := ToScaled(sdkmath.NewIntFromBigInt(huge), dec("1"), Truncate)
	require.ErrorIs(t, err, cerrors.ErrOverflow)

	max128 := sdkmath.NewIntFromUint64(1).BigInt()
	max128.Lsh(max128, 127)
	_, err = ToScaled(sdkmath.NewIntFromBigInt(max128), dec("1"), Truncate)
	require.ErrorIs(t, err, cerrors.ErrOverflow)

	_, err = ToScaled(sdkmath.NewInt(1), sdkmath.LegacyZeroDec(), Truncate)
	require.ErrorIs(t, err, cerrors.ErrValidation)
}

func TestInterestRateModel(t *testing.T) {
	m := InterestRateModel{
		OptimalUtilizationRate: dec("0.8"),
		Base:                   dec("0.01"),
		Slope1:                 dec("0.2"),
		Slope2:                 dec("1"),
	}
	require.NoError(t, m.Validate())

	require.True(t, dec("0.01").Equal(m.BorrowRate(sdkmath.LegacyZeroDec())))
	require.True(t, dec("0.11").Equal(m.BorrowRate(dec("0.4"))))
	require.True(t, dec("0.21").Equal(m.BorrowRate(dec("0.8"))))
	require.True(t, dec("0.71").Equal(m.BorrowRate(dec("0.9"))))

	borrow, liquidity := m.Rates(dec("0.4"), dec("0.1"))
	require.True(t, dec("0.11").Equal(borrow))
	require.True(t, dec("0.0396").Equal(liquidity))

	bad := m
	bad.Slope2 = dec("0.2")
	require.ErrorIs(t, bad.Validate(), cerrors.ErrValidation)
	bad = m
	bad.OptimalUtilizationRate = dec("1.1")
	require.ErrorIs(t, bad.Validate(), cerrors.ErrValidation)
}

func TestAccrueIndex(t *testing.T) {
	require.True(t, dec("1.0125").Equal(accrueIndex(dec("1"), dec("0.0125"), SecondsPerYear)))
	require.True(t, dec("1").Equal(accrueIndex(dec("1"), dec("0.5"), 0)))
}
