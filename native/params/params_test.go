package params

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/state"
	"creditchain/core/types"
	"creditchain/crypto"
	"creditchain/storage"
)

func newTestContext() *core.Context {
	return core.NewContext(context.Background(), core.Env{Height: 1}, state.NewManager(storage.NewMemDB()), nil)
}

func sampleAsset(denom string) AssetParams {
	return AssetParams{
		Denom:                denom,
		CreditManager:        CreditManagerSettings{Whitelisted: true},
		RedBank:              RedBankSettings{DepositEnabled: true, BorrowEnabled: true},
		MaxLoanToValue:       sdkmath.LegacyMustNewDecFromStr("0.6"),
		LiquidationThreshold: sdkmath.LegacyMustNewDecFromStr("0.7"),
		LiquidationBonus: LiquidationBonus{
			StartingLB: sdkmath.LegacyMustNewDecFromStr("0.01"),
			Slope:      sdkmath.LegacyMustNewDecFromStr("2"),
			MinLB:      sdkmath.LegacyZeroDec(),
			MaxLB:      sdkmath.LegacyMustNewDecFromStr("0.05"),
		},
		ProtocolLiquidationFee: sdkmath.LegacyMustNewDecFromStr("0.02"),
		DepositCap:             sdkmath.NewInt(1_000_000_000),
	}
}

func TestAssetParamsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *AssetParams)
	}{
		{"lt not above ltv", func(p *AssetParams) { p.LiquidationThreshold = p.MaxLoanToValue }},
		{"lt above one", func(p *AssetParams) { p.LiquidationThreshold = sdkmath.LegacyMustNewDecFromStr("1.01") }},
		{"slope below one", func(p *AssetParams) { p.LiquidationBonus.Slope = sdkmath.LegacyMustNewDecFromStr("0.5") }},
		{"min above max", func(p *AssetParams) { p.LiquidationBonus.MinLB = sdkmath.LegacyMustNewDecFromStr("0.1") }},
		{"fee of one", func(p *AssetParams) { p.ProtocolLiquidationFee = sdkmath.LegacyOneDec() }},
		{"negative cap", func(p *AssetParams) { p.DepositCap = sdkmath.NewInt(-1) }},
		{"bad denom", func(p *AssetParams) { p.Denom = "1bad" }},
		{"hls lt below ltv", func(p *AssetParams) {
			p.CreditManager.Hls = &HlsParams{
				MaxLoanToValue:       sdkmath.LegacyMustNewDecFromStr("0.9"),
				LiquidationThreshold: sdkmath.LegacyMustNewDecFromStr("0.8"),
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := sampleAsset("uatom")
			tc.mutate(&p)
			if err := p.Validate(); !errors.Is(err, cerrors.ErrValidation) {
				t.Fatalf("unexpected error: got %v want ErrValidation", err)
			}
		})
	}
	require.NoError(t, sampleAsset("uatom").Validate())
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := newTestContext()
	store := NewStore(ctx.Store())

	_, err := store.AssetParams("uosmo")
	require.ErrorIs(t, err, cerrors.ErrAssetNotInitialized)

	require.NoError(t, store.SetAssetParams(sampleAsset("uosmo")))
	require.NoError(t, store.SetAssetParams(sampleAsset("uatom")))
	got, err := store.AssetParams("uosmo")
	require.NoError(t, err)
	require.True(t, got.LiquidationThreshold.Equal(sdkmath.LegacyMustNewDecFromStr("0.7")))
	require.Equal(t, "1000000000", got.DepositCap.String())

	all, err := store.AllAssetParams()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "uatom", all[0].Denom)

	cf, err := store.MaxCloseFactor()
	require.NoError(t, err)
	require.True(t, cf.Equal(sdkmath.LegacyOneDec()))

	require.ErrorIs(t, store.SetTargetHealthFactor(sdkmath.LegacyOneDec()), cerrors.ErrValidation)
	require.NoError(t, store.SetTargetHealthFactor(sdkmath.LegacyMustNewDecFromStr("1.2")))
}

func TestEngineOwnerOnly(t *testing.T) {
	ctx := newTestContext()
	engine := NewEngine()
	owner := crypto.ModuleAddress("owner")
	require.NoError(t, engine.InitGenesis(ctx, owner, sdkmath.LegacyMustNewDecFromStr("1.1"), sdkmath.LegacyMustNewDecFromStr("0.5"), nil, nil))

	_, err := engine.Execute(ctx, core.MessageInfo{Sender: crypto.ModuleAddress("mallory")}, UpdateAssetParams{Params: sampleAsset("uatom")})
	require.ErrorIs(t, err, cerrors.ErrUnauthorized)

	_, err = engine.Execute(ctx, core.MessageInfo{Sender: owner}, UpdateAssetParams{Params: sampleAsset("uatom")})
	require.NoError(t, err)
	_, err = engine.Execute(ctx, core.MessageInfo{Sender: owner}, SetPaused{Pauses: Pauses{RedBank: true}})
	require.NoError(t, err)

	pauses, err := engine.Pauses(ctx)
	require.NoError(t, err)
	require.True(t, pauses.IsPaused(ModuleRedBank))
	require.False(t, pauses.IsPaused(ModuleCreditManager))
	require.Len(t, ctx.Events(), 2)
}

func TestVaultConfigValidation(t *testing.T) {
	cfg := VaultConfig{
		Addr:                 crypto.ModuleAddress("vault"),
		DepositCap:           types.NewInt64Coin("uusdc", 1_000_000),
		MaxLoanToValue:       sdkmath.LegacyMustNewDecFromStr("0.5"),
		LiquidationThreshold: sdkmath.LegacyMustNewDecFromStr("0.6"),
		Whitelisted:          true,
	}
	require.NoError(t, cfg.Validate())
	cfg.Addr = "cosmos1xyz"
	require.ErrorIs(t, cfg.Validate(), cerrors.ErrValidation)
}
