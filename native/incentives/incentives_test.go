package incentives

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/state"
	"creditchain/core/types"
	"creditchain/native/common"
	"creditchain/storage"
)

type fixedCollateral struct {
	user, total sdkmath.Int
}

func (f fixedCollateral) UserCollateralScaled(*core.Context, string, string, string) (sdkmath.Int, error) {
	return f.user, nil
}

func (f fixedCollateral) TotalCollateralScaled(*core.Context, string) (sdkmath.Int, error) {
	return f.total, nil
}

var testAddrs = common.Addresses{RedBank: "redbank", CreditManager: "cm"}

func at(store *state.Manager, time uint64) *core.Context {
	return core.NewContext(context.Background(), core.Env{Time: time}, store, nil)
}

func TestCollateralEmissionAccrual(t *testing.T) {
	store := state.NewManager(storage.NewMemDB())
	engine := NewEngine(testAddrs)
	engine.SetCollateralView(fixedCollateral{user: sdkmath.NewInt(500), total: sdkmath.NewInt(1000)})
	require.NoError(t, engine.InitGenesis(at(store, 100), "owner"))

	funds := types.NewCoins(types.NewInt64Coin("umars", 1000))
	_, err := engine.Execute(at(store, 100), core.MessageInfo{Sender: "owner", Funds: funds}, SetAssetIncentive{
		CollateralDenom:   "uusdc",
		RewardDenom:       "umars",
		EmissionPerSecond: sdkmath.NewInt(10),
		Duration:          100,
	})
	require.NoError(t, err)

	_, err = engine.Execute(at(store, 150), core.MessageInfo{Sender: "mallory"}, BalanceChange{UserAddr: "alice", Denom: "uusdc"})
	require.ErrorIs(t, err, cerrors.ErrUnauthorized)

	_, err = engine.Execute(at(store, 150), core.MessageInfo{Sender: "redbank"}, BalanceChange{
		UserAddr:                "alice",
		Denom:                   "uusdc",
		UserAmountScaledBefore:  sdkmath.NewInt(500),
		TotalAmountScaledBefore: sdkmath.NewInt(1000),
	})
	require.NoError(t, err)

	pending, err := engine.UnclaimedRewards(at(store, 200), "alice", "")
	require.NoError(t, err)
	require.Equal(t, "500umars", pending.String())

	resp, err := engine.Execute(at(store, 300), core.MessageInfo{Sender: "alice"}, ClaimRewards{})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	require.Equal(t, core.BankMsg{To: "alice", Amount: types.NewCoins(types.NewInt64Coin("umars", 500))}, resp.Messages[0])

	pending, err = engine.UnclaimedRewards(at(store, 400), "alice", "")
	require.NoError(t, err)
	require.True(t, pending.Empty())
}

func TestLpStakingRewards(t *testing.T) {
	store := state.NewManager(storage.NewMemDB())
	engine := NewEngine(testAddrs)
	ctx := at(store, 10)

	lp := types.NewInt64Coin("ulp", 300)
	_, err := engine.Execute(ctx, core.MessageInfo{Sender: "alice", Funds: types.NewCoins(lp)}, StakeLp{AccountID: "1"})
	require.ErrorIs(t, err, cerrors.ErrUnauthorized)

	_, err = engine.Execute(ctx, core.MessageInfo{Sender: "cm", Funds: types.NewCoins(lp)}, StakeLp{AccountID: "1"})
	require.NoError(t, err)
	_, err = engine.Execute(ctx, core.MessageInfo{Sender: "cm", Funds: types.NewCoins(types.NewInt64Coin("ulp", 100))}, StakeLp{AccountID: "2"})
	require.NoError(t, err)

	_, err = engine.Execute(ctx, core.MessageInfo{Sender: "anyone", Funds: types.NewCoins(types.NewInt64Coin("uastro", 40))}, FundLpRewards{LpDenom: "ulp"})
	require.NoError(t, err)

	pending, err := engine.UnclaimedRewards(ctx, "cm", "1")
	require.NoError(t, err)
	require.Equal(t, "30uastro", pending.String())

	resp, err := engine.Execute(ctx, core.MessageInfo{Sender: "cm"}, UnstakeLp{AccountID: "2", LpCoin: types.NewInt64Coin("ulp", 100)})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)

	staked, err := engine.StakedLp(ctx, "cm", "2", "ulp")
	require.NoError(t, err)
	require.True(t, staked.IsZero())

	pending, err = engine.UnclaimedRewards(ctx, "cm", "2")
	require.NoError(t, err)
	require.Equal(t, "10uastro", pending.String())

	resp, err = engine.Execute(ctx, core.MessageInfo{Sender: "cm"}, ClaimRewards{AccountID: "1"})
	require.NoError(t, err)
	require.Equal(t, core.BankMsg{To: "cm", Amount: types.NewCoins(types.NewInt64Coin("uastro", 30))}, resp.Messages[0])
}
