package liquidation

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	cerrors "creditchain/core/errors"
	"creditchain/native/params"
)

func dec(s string) sdkmath.LegacyDec { return sdkmath.LegacyMustNewDecFromStr(s) }

func TestBonus(t *testing.T) {
	lb := params.LiquidationBonus{StartingLB: dec("0.05"), Slope: dec("2"), MinLB: dec("0.05"), MaxLB: dec("0.2")}
	cases := []struct {
		name   string
		hf, cr string
		want   string
	}{
		{"slope applies", "0.95", "2", "0.15"},
		{"capped by collateralization", "0.95", "1.08", "0.08"},
		{"floor at min", "0.95", "1.01", "0.05"},
		{"capped by max", "0.5", "3", "0.2"},
		{"healthy uses starting", "1.2", "3", "0.05"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Bonus(lb, dec(tc.hf), dec(tc.cr))
			require.True(t, dec(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestCloseFactor(t *testing.T) {
	require.True(t, dec("0.5").Equal(CloseFactor(dec("1.1"), dec("0.9"), dec("0.8"), dec("0.1"), dec("0.5"))))
	require.True(t, dec("0.909090909090909091").Equal(CloseFactor(dec("1.1"), dec("0.9"), dec("0.8"), dec("0.1"), dec("1"))))
	require.True(t, CloseFactor(dec("1.1"), dec("1.2"), dec("0.8"), dec("0.1"), dec("1")).IsZero())
	require.True(t, dec("0.7").Equal(CloseFactor(dec("1.1"), dec("0.9"), dec("1"), dec("0.2"), dec("0.7"))))
}

func baseInput() Input {
	return Input{
		Requested:            sdkmath.NewInt(100),
		Debt:                 sdkmath.NewInt(90),
		Collateral:           sdkmath.NewInt(1000),
		DebtPrice:            dec("10"),
		CollateralPrice:      dec("1"),
		HealthFactor:         dec("0.9"),
		TotalCollateralValue: sdkmath.NewInt(1000),
		TotalDebtValue:       sdkmath.NewInt(900),
		CollateralParams: params.AssetParams{
			Denom:                  "uosmo",
			LiquidationThreshold:   dec("0.8"),
			LiquidationBonus:       params.LiquidationBonus{StartingLB: dec("0"), Slope: dec("2"), MinLB: dec("0"), MaxLB: dec("0.1")},
			ProtocolLiquidationFee: dec("0.1"),
		},
		TargetHF:       dec("1.1"),
		MaxCloseFactor: dec("0.5"),
	}
}

func TestComputeCapsByCloseFactor(t *testing.T) {
	res, err := Compute(baseInput())
	require.NoError(t, err)
	require.True(t, dec("0.1").Equal(res.Bonus))
	require.Equal(t, int64(45), res.DebtToRepay.Int64())
	require.Equal(t, int64(495), res.CollateralSeized.Int64())
	require.Equal(t, int64(49), res.ProtocolFee.Int64())
	require.Equal(t, int64(446), res.LiquidatorCollateral.Int64())
}

func TestComputeLimitedByCollateral(t *testing.T) {
	in := baseInput()
	in.Collateral = sdkmath.NewInt(200)
	res, err := Compute(in)
	require.NoError(t, err)
	require.Equal(t, int64(200), res.CollateralSeized.Int64())
	require.Equal(t, int64(18), res.DebtToRepay.Int64())
	require.Equal(t, int64(20), res.ProtocolFee.Int64())
	require.Equal(t, int64(180), res.LiquidatorCollateral.Int64())
}

// The protocol takes its fee from the whole seized amount, not only from
// the bonus.
func TestComputeSplitsSeizedCollateral(t *testing.T) {
	cases := []struct {
		name        string
		rate        string
		seized, fee int64
	}{
		{"ten percent", "0.1", 495, 49},
		{"no fee", "0", 495, 0},
		{"half", "0.5", 495, 247},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput()
			in.CollateralParams.ProtocolLiquidationFee = dec(tc.rate)
			res, err := Compute(in)
			require.NoError(t, err)
			require.Equal(t, tc.seized, res.CollateralSeized.Int64())
			require.Equal(t, tc.fee, res.ProtocolFee.Int64())
			require.Equal(t, tc.seized-tc.fee, res.LiquidatorCollateral.Int64())
		})
	}

	in := baseInput()
	in.Requested = sdkmath.NewInt(1_000)
	in.Debt = sdkmath.NewInt(1_000)
	in.Collateral = sdkmath.NewInt(100_000)
	in.DebtPrice = dec("1")
	in.TotalCollateralValue = sdkmath.NewInt(100_000)
	in.TotalDebtValue = sdkmath.NewInt(1_000)
	in.CollateralParams.LiquidationThreshold = dec("0.7")
	in.TargetHF = dec("1.2")
	in.MaxCloseFactor = dec("1")
	res, err := Compute(in)
	require.NoError(t, err)
	require.Equal(t, int64(697), res.DebtToRepay.Int64())
	require.Equal(t, int64(766), res.CollateralSeized.Int64())
	require.Equal(t, int64(76), res.ProtocolFee.Int64())
	require.Equal(t, int64(690), res.LiquidatorCollateral.Int64())
}

func TestComputeRejectsZeroRepay(t *testing.T) {
	in := baseInput()
	in.Debt = sdkmath.NewInt(4)
	in.MaxCloseFactor = dec("0.1")
	_, err := Compute(in)
	require.ErrorIs(t, err, cerrors.ErrValidation)
}

func TestComputeRejectsDegenerateRounding(t *testing.T) {
	in := baseInput()
	in.Requested = sdkmath.NewInt(1)
	in.DebtPrice = dec("1")
	in.CollateralPrice = dec("1000")
	in.CollateralParams.LiquidationBonus = params.LiquidationBonus{StartingLB: dec("0"), Slope: dec("1"), MinLB: dec("0"), MaxLB: dec("0")}
	_, err := Compute(in)
	require.ErrorIs(t, err, cerrors.ErrValidation)
}

func TestComputeWithoutDebt(t *testing.T) {
	in := baseInput()
	in.TotalDebtValue = sdkmath.ZeroInt()
	_, err := Compute(in)
	require.ErrorIs(t, err, cerrors.ErrNotLiquidatable)
}
