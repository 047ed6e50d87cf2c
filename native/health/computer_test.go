package health

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	cerrors "creditchain/core/errors"
	"creditchain/core/types"
	"creditchain/native/params"
)

func asset(denom, ltv, lt string, whitelisted bool) params.AssetParams {
	return params.AssetParams{
		Denom:                denom,
		CreditManager:        params.CreditManagerSettings{Whitelisted: whitelisted},
		MaxLoanToValue:       sdkmath.LegacyMustNewDecFromStr(ltv),
		LiquidationThreshold: sdkmath.LegacyMustNewDecFromStr(lt),
	}
}

func newComputer() *Computer {
	return &Computer{
		Positions: Positions{
			Deposits: types.NewCoins(types.NewInt64Coin("uosmo", 1000)),
			Debts:    []Debt{{Denom: "uatom", Amount: sdkmath.NewInt(30)}},
		},
		AssetParams: map[string]params.AssetParams{
			"uosmo": asset("uosmo", "0.5", "0.6", true),
			"uatom": asset("uatom", "0.7", "0.75", true),
		},
		Prices: map[string]sdkmath.LegacyDec{
			"uosmo": sdkmath.LegacyOneDec(),
			"uatom": sdkmath.LegacyNewDec(10),
		},
		EnforceWhitelist: true,
	}
}

func TestComputeHealthFactors(t *testing.T) {
	c := newComputer()
	v, err := c.Compute()
	require.NoError(t, err)
	require.Equal(t, int64(1000), v.TotalCollateralValue.Int64())
	require.Equal(t, int64(300), v.TotalDebtValue.Int64())
	require.Equal(t, int64(500), v.MaxLTVAdjustedCollateral.Int64())
	require.Equal(t, int64(600), v.LiquidationThresholdAdjustedCollateral.Int64())
	require.Equal(t, "1.666666666666666666", v.MaxLTVHealthFactor.String())
	require.Equal(t, "2.000000000000000000", v.LiquidationHealthFactor.String())
	require.False(t, v.Liquidatable)
	require.False(t, v.AboveMaxLTV)
}

func TestComputeWithoutDebt(t *testing.T) {
	c := newComputer()
	c.Positions.Debts = nil
	v, err := c.Compute()
	require.NoError(t, err)
	require.Nil(t, v.MaxLTVHealthFactor)
	require.Nil(t, v.LiquidationHealthFactor)
	require.False(t, v.Liquidatable)
}

func TestUncollateralizedDebtIsIgnored(t *testing.T) {
	c := newComputer()
	c.Positions.Debts[0].Uncollateralized = true
	v, err := c.Compute()
	require.NoError(t, err)
	require.True(t, v.TotalDebtValue.IsZero())
	require.False(t, c.Positions.HasDebt())
}

func TestDebtValueRoundsUp(t *testing.T) {
	p := sdkmath.LegacyMustNewDecFromStr("0.3")
	require.Equal(t, int64(4), DebtValue(sdkmath.NewInt(11), p).Int64())
	require.Equal(t, int64(3), CoinValue(sdkmath.NewInt(11), p).Int64())
}

func TestWhitelistEnforcement(t *testing.T) {
	c := newComputer()
	ap := c.AssetParams["uosmo"]
	ap.CreditManager.Whitelisted = false
	c.AssetParams["uosmo"] = ap

	v, err := c.Compute()
	require.NoError(t, err)
	require.True(t, v.MaxLTVAdjustedCollateral.IsZero())
	require.Equal(t, int64(600), v.LiquidationThresholdAdjustedCollateral.Int64())
	require.True(t, v.AboveMaxLTV)

	c.EnforceWhitelist = false
	v, err = c.Compute()
	require.NoError(t, err)
	require.Equal(t, int64(500), v.MaxLTVAdjustedCollateral.Int64())
}

func TestHighLeveredStrategyRequiresHlsParams(t *testing.T) {
	c := newComputer()
	c.Kind = KindHighLeveredStrategy
	_, err := c.Compute()
	require.ErrorIs(t, err, cerrors.ErrValidation)

	ap := c.AssetParams["uosmo"]
	ap.CreditManager.Hls = &params.HlsParams{
		MaxLoanToValue:       sdkmath.LegacyMustNewDecFromStr("0.8"),
		LiquidationThreshold: sdkmath.LegacyMustNewDecFromStr("0.85"),
	}
	c.AssetParams["uosmo"] = ap
	v, err := c.Compute()
	require.NoError(t, err)
	require.Equal(t, int64(800), v.MaxLTVAdjustedCollateral.Int64())
}

func TestVaultLegs(t *testing.T) {
	c := newComputer()
	c.Positions.Vaults = []VaultPosition{{
		Vault:         "vault1",
		BaseDenom:     "uosmo",
		SharesBase:    sdkmath.NewInt(100),
		UnlockingBase: sdkmath.NewInt(50),
	}}
	c.VaultConfigs = map[string]params.VaultConfig{
		"vault1": {
			Addr:                 "vault1",
			MaxLoanToValue:       sdkmath.LegacyMustNewDecFromStr("0.4"),
			LiquidationThreshold: sdkmath.LegacyMustNewDecFromStr("0.5"),
			Whitelisted:          true,
		},
	}
	v, err := c.Compute()
	require.NoError(t, err)
	require.Equal(t, int64(1150), v.TotalCollateralValue.Int64())
	// 500 deposits + 40 shares + 25 unlocking
	require.Equal(t, int64(565), v.MaxLTVAdjustedCollateral.Int64())
	require.Equal(t, int64(680), v.LiquidationThresholdAdjustedCollateral.Int64())
}

func TestMissingPrice(t *testing.T) {
	c := newComputer()
	delete(c.Prices, "uatom")
	_, err := c.Compute()
	require.ErrorIs(t, err, cerrors.ErrPriceNotFound)
}

func TestMaxWithdrawEstimate(t *testing.T) {
	c := newComputer()
	amt, err := c.MaxWithdrawAmountEstimate("uosmo")
	require.NoError(t, err)
	require.Equal(t, int64(398), amt.Int64())

	c.Positions.Deposits = types.NewCoins(types.NewInt64Coin("uosmo", 602))
	v, err := c.Compute()
	require.NoError(t, err)
	require.False(t, v.AboveMaxLTV)

	c.Positions.Debts = nil
	amt, err = c.MaxWithdrawAmountEstimate("uosmo")
	require.NoError(t, err)
	require.Equal(t, int64(602), amt.Int64())

	amt, err = c.MaxWithdrawAmountEstimate("uatom")
	require.NoError(t, err)
	require.True(t, amt.IsZero())
}

func TestMaxBorrowEstimate(t *testing.T) {
	c := newComputer()
	wallet, err := c.MaxBorrowAmountEstimate("uatom", BorrowTargetWallet)
	require.NoError(t, err)
	require.Equal(t, int64(19), wallet.Int64())

	deposit, err := c.MaxBorrowAmountEstimate("uatom", BorrowTargetDeposit)
	require.NoError(t, err)
	require.Equal(t, int64(66), deposit.Int64())

	ap := c.AssetParams["uatom"]
	ap.CreditManager.Whitelisted = false
	c.AssetParams["uatom"] = ap
	none, err := c.MaxBorrowAmountEstimate("uatom", BorrowTargetWallet)
	require.NoError(t, err)
	require.True(t, none.IsZero())
}
