package core

import (
	"context"
	"errors"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"

	cerrors "creditchain/core/errors"
	"creditchain/core/types"
	"creditchain/storage"
)

type memBank struct{}

func (memBank) Send(ctx *Context, from, to string, amount types.Coins) error {
	for _, c := range amount {
		var have uint64
		key := []byte("bal/" + from + "/" + c.Denom)
		if _, err := ctx.Store().KVGet(key, &have); err != nil {
			return err
		}
		if have < c.Amount.Uint64() {
			return cerrors.ErrInsufficientFunds
		}
		if err := ctx.Store().KVPut(key, have-c.Amount.Uint64()); err != nil {
			return err
		}
		var dst uint64
		dstKey := []byte("bal/" + to + "/" + c.Denom)
		if _, err := ctx.Store().KVGet(dstKey, &dst); err != nil {
			return err
		}
		if err := ctx.Store().KVPut(dstKey, dst+c.Amount.Uint64()); err != nil {
			return err
		}
	}
	return nil
}

type recordMsg struct{ Value string }

type failMsg struct{}

type selfCallMsg struct{}

func newTestExecutor(t *testing.T) (*Executor, *[]string) {
	t.Helper()
	db := storage.NewMemDB()
	exec := NewExecutor(db, nil)
	exec.SetBank(memBank{})
	var order []string
	exec.Register("recorder", "contract", HandlerFunc(func(ctx *Context, info MessageInfo, msg any) (*Response, error) {
		switch m := msg.(type) {
		case recordMsg:
			order = append(order, m.Value)
			if err := ctx.Store().KVPut([]byte("last"), m.Value); err != nil {
				return nil, err
			}
			if m.Value == "outer" {
				return NewResponse().
					AddExecute("contract", recordMsg{Value: "first"}).
					AddExecute("contract", recordMsg{Value: "second"}), nil
			}
			if m.Value == "first" {
				return NewResponse().AddExecute("contract", recordMsg{Value: "first.child"}), nil
			}
			return NewResponse(), nil
		case failMsg:
			return nil, errorsmod.Wrap(cerrors.ErrValidation, "boom")
		case selfCallMsg:
			return NewResponse().
				AddExecute("contract", recordMsg{Value: "written"}).
				AddExecute("contract", failMsg{}), nil
		}
		return nil, cerrors.ErrUnknownMessage
	}))
	return exec, &order
}

func TestExecutorRunsSubMessagesDepthFirst(t *testing.T) {
	exec, order := newTestExecutor(t)
	res, err := exec.Execute(context.Background(), Env{Height: 1, Time: 10}, "alice", "contract", recordMsg{Value: "outer"}, nil)
	require.NoError(t, err)
	require.Len(t, res.TxHash, 64)
	require.Equal(t, []string{"outer", "first", "first.child", "second"}, *order)
}

func TestExecutorRevertsWholeBatch(t *testing.T) {
	exec, _ := newTestExecutor(t)
	_, err := exec.Execute(context.Background(), Env{Height: 1}, "alice", "contract", selfCallMsg{}, nil)
	if !errors.Is(err, cerrors.ErrValidation) {
		t.Fatalf("unexpected error: got %v want ErrValidation", err)
	}
	err = exec.Query(context.Background(), Env{}, func(ctx *Context) error {
		var last string
		ok, err := ctx.Store().KVGet([]byte("last"), &last)
		if err != nil {
			return err
		}
		if ok {
			t.Fatalf("write from reverted batch is visible: %q", last)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestExecutorUnknownContractAndFunds(t *testing.T) {
	exec, _ := newTestExecutor(t)
	_, err := exec.Execute(context.Background(), Env{}, "alice", "nowhere", recordMsg{}, nil)
	require.ErrorIs(t, err, cerrors.ErrUnknownContract)

	_, err = exec.Execute(context.Background(), Env{}, "alice", "contract", recordMsg{Value: "x"}, types.NewCoins(types.NewInt64Coin("uatom", 1)))
	require.ErrorIs(t, err, cerrors.ErrInsufficientFunds)
}

func TestExecutorNotifiesListeners(t *testing.T) {
	exec, _ := newTestExecutor(t)
	var seen []string
	exec.Subscribe(func(r Result) { seen = append(seen, r.TxHash) })
	res, err := exec.Execute(context.Background(), Env{Height: 2}, "alice", "contract", recordMsg{Value: "solo"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{res.TxHash}, seen)

	_, err = exec.Execute(context.Background(), Env{Height: 2}, "alice", "contract", failMsg{}, nil)
	require.Error(t, err)
	require.Len(t, seen, 1)
}
