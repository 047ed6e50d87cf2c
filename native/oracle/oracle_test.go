package oracle

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/state"
	"creditchain/storage"
)

func contextAt(store *state.Manager, time uint64) *core.Context {
	return core.NewContext(context.Background(), core.Env{Height: 1, Time: time}, store, nil)
}

func TestPriceKindsAndStaleness(t *testing.T) {
	store := state.NewManager(storage.NewMemDB())
	ctx := contextAt(store, 1_000)
	engine := NewEngine()
	require.NoError(t, engine.InitGenesis(ctx, Config{Owner: "owner", MaxAge: 60}))

	liq := sdkmath.LegacyMustNewDecFromStr("11.5")
	_, err := engine.Execute(ctx, core.MessageInfo{Sender: "owner"}, SetPrice{Denom: "uatom", Price: sdkmath.LegacyNewDec(12), LiquidationPrice: &liq})
	require.NoError(t, err)
	_, err = engine.Execute(ctx, core.MessageInfo{Sender: "owner"}, SetPrice{Denom: "uusdc", Price: sdkmath.LegacyOneDec()})
	require.NoError(t, err)

	p, err := engine.Price(ctx, "uatom", KindDefault)
	require.NoError(t, err)
	require.True(t, p.Equal(sdkmath.LegacyNewDec(12)))
	p, err = engine.Price(ctx, "uatom", KindLiquidation)
	require.NoError(t, err)
	require.True(t, p.Equal(liq))
	p, err = engine.Price(ctx, "uusdc", KindLiquidation)
	require.NoError(t, err)
	require.True(t, p.Equal(sdkmath.LegacyOneDec()))

	_, err = engine.Price(ctx, "uosmo", KindDefault)
	require.ErrorIs(t, err, cerrors.ErrPriceNotFound)

	_, err = engine.Price(contextAt(store, 1_061), "uatom", KindDefault)
	require.ErrorIs(t, err, cerrors.ErrStalePrice)

	all, err := engine.AllPrices(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "uatom", all[0].Denom)
}

func TestSetPriceOwnerOnly(t *testing.T) {
	ctx := contextAt(state.NewManager(storage.NewMemDB()), 1)
	engine := NewEngine()
	require.NoError(t, engine.InitGenesis(ctx, Config{Owner: "owner"}))

	_, err := engine.Execute(ctx, core.MessageInfo{Sender: "mallory"}, SetPrice{Denom: "uatom", Price: sdkmath.LegacyOneDec()})
	require.ErrorIs(t, err, cerrors.ErrUnauthorized)
	_, err = engine.Execute(ctx, core.MessageInfo{Sender: "owner"}, SetPrice{Denom: "uatom", Price: sdkmath.LegacyZeroDec()})
	require.ErrorIs(t, err, cerrors.ErrValidation)
}
