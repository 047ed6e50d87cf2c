package bank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/state"
	"creditchain/core/types"
	"creditchain/storage"
)

func newTestContext() *core.Context {
	return core.NewContext(context.Background(), core.Env{Height: 1, Time: 1_700_000_000}, state.NewManager(storage.NewMemDB()), nil)
}

func TestMintSendBurn(t *testing.T) {
	ctx := newTestContext()
	bank := NewEngine()

	require.NoError(t, bank.Mint(ctx, "alice", types.NewCoins(types.NewInt64Coin("uatom", 100), types.NewInt64Coin("uusdc", 5))))
	require.NoError(t, bank.Send(ctx, "alice", "bob", types.NewCoins(types.NewInt64Coin("uatom", 40))))

	bal, err := bank.Balance(ctx, "alice", "uatom")
	require.NoError(t, err)
	require.Equal(t, int64(60), bal.Int64())

	bobs, err := bank.Balances(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, "40uatom", bobs.String())

	require.NoError(t, bank.Burn(ctx, "bob", types.NewCoins(types.NewInt64Coin("uatom", 40))))
	supply, err := bank.Supply(ctx, "uatom")
	require.NoError(t, err)
	require.Equal(t, int64(60), supply.Int64())

	bobs, err = bank.Balances(ctx, "bob")
	require.NoError(t, err)
	require.True(t, bobs.Empty())
}

func TestSendInsufficientFunds(t *testing.T) {
	ctx := newTestContext()
	bank := NewEngine()
	require.NoError(t, bank.Mint(ctx, "alice", types.NewCoins(types.NewInt64Coin("uatom", 1))))

	err := bank.Send(ctx, "alice", "bob", types.NewCoins(types.NewInt64Coin("uatom", 2)))
	if !errors.Is(err, cerrors.ErrInsufficientFunds) {
		t.Fatalf("unexpected error: got %v want ErrInsufficientFunds", err)
	}
}

func TestExecuteMsgSend(t *testing.T) {
	ctx := newTestContext()
	bank := NewEngine()
	require.NoError(t, bank.Mint(ctx, "alice", types.NewCoins(types.NewInt64Coin("uatom", 10))))

	_, err := bank.Execute(ctx, core.MessageInfo{Sender: "alice"}, MsgSend{To: "carol", Amount: types.NewCoins(types.NewInt64Coin("uatom", 3))})
	require.NoError(t, err)
	bal, err := bank.Balance(ctx, "carol", "uatom")
	require.NoError(t, err)
	require.Equal(t, int64(3), bal.Int64())
	require.Len(t, ctx.Events(), 2)
}
