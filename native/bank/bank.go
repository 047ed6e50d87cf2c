package bank

import (
	"fmt"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/state"
	"creditchain/core/types"
)

const (
	balancePrefix = "bank/balance/"
	supplyPrefix  = "bank/supply/"
)

// MsgSend transfers coins from the sender to To.
type MsgSend struct {
	To     string      `json:"to"`
	Amount types.Coins `json:"amount"`
}

// Engine is the multi-denomination coin ledger. Balances are keyed by
// (address, denom) so the balances of one address can be listed by prefix.
type Engine struct{}

// NewEngine returns the bank engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Balance returns the amount of denom held by addr.
func (e *Engine) Balance(ctx *core.Context, addr, denom string) (sdkmath.Int, error) {
	var raw *big.Int
	ok, err := ctx.Store().KVGet(state.Key(balancePrefix, addr, denom), &raw)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("bank: load balance: %w", err)
	}
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	return types.BigToInt(raw), nil
}

// Balances lists every non-zero balance of addr.
func (e *Engine) Balances(ctx *core.Context, addr string) (types.Coins, error) {
	var out types.Coins
	err := ctx.Store().KVIterate(state.Key(balancePrefix, addr), func(key, value []byte) error {
		parts := state.SplitKey(balancePrefix, key)
		if len(parts) != 2 {
			return fmt.Errorf("bank: malformed balance key %q", key)
		}
		var raw *big.Int
		if err := rlp.DecodeBytes(value, &raw); err != nil {
			return err
		}
		out = append(out, types.NewCoin(parts[1], types.BigToInt(raw)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return types.NewCoins(out...), nil
}

// Supply returns the total issued amount of denom.
func (e *Engine) Supply(ctx *core.Context, denom string) (sdkmath.Int, error) {
	var raw *big.Int
	if _, err := ctx.Store().KVGet(state.Key(supplyPrefix, denom), &raw); err != nil {
		return sdkmath.Int{}, err
	}
	return types.BigToInt(raw), nil
}

// Send moves amount from one address to another.
func (e *Engine) Send(ctx *core.Context, from, to string, amount types.Coins) error {
	if amount.Empty() {
		return nil
	}
	if from == to {
		return nil
	}
	for _, c := range amount {
		if err := e.sub(ctx, from, c); err != nil {
			return err
		}
		if err := e.add(ctx, to, c); err != nil {
			return err
		}
	}
	ctx.EmitEvent(events.BankTransfer{From: from, To: to, Amount: amount})
	return nil
}

// Mint creates coins at addr.
func (e *Engine) Mint(ctx *core.Context, to string, amount types.Coins) error {
	for _, c := range amount {
		if err := e.add(ctx, to, c); err != nil {
			return err
		}
		if err := e.adjustSupply(ctx, c.Denom, c.Amount); err != nil {
			return err
		}
	}
	if !amount.Empty() {
		ctx.EmitEvent(events.BankMint{To: to, Amount: amount})
	}
	return nil
}

// Burn destroys coins held by addr.
func (e *Engine) Burn(ctx *core.Context, from string, amount types.Coins) error {
	for _, c := range amount {
		if err := e.sub(ctx, from, c); err != nil {
			return err
		}
		if err := e.adjustSupply(ctx, c.Denom, c.Amount.Neg()); err != nil {
			return err
		}
	}
	if !amount.Empty() {
		ctx.EmitEvent(events.BankBurn{From: from, Amount: amount})
	}
	return nil
}

// Execute handles user transfers addressed to the bank module.
func (e *Engine) Execute(ctx *core.Context, info core.MessageInfo, msg any) (*core.Response, error) {
	switch m := msg.(type) {
	case MsgSend:
		if err := m.Amount.Validate(); err != nil {
			return nil, errorsmod.Wrap(cerrors.ErrValidation, err.Error())
		}
		if err := e.Send(ctx, info.Sender, m.To, m.Amount); err != nil {
			return nil, err
		}
		return core.NewResponse(), nil
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "bank: %T", msg)
	}
}

func (e *Engine) add(ctx *core.Context, addr string, c types.Coin) error {
	bal, err := e.Balance(ctx, addr, c.Denom)
	if err != nil {
		return err
	}
	return e.setBalance(ctx, addr, c.Denom, bal.Add(c.Amount))
}

func (e *Engine) sub(ctx *core.Context, addr string, c types.Coin) error {
	bal, err := e.Balance(ctx, addr, c.Denom)
	if err != nil {
		return err
	}
	if bal.LT(c.Amount) {
		return errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "%s has %s%s, needs %s", addr, bal, c.Denom, c)
	}
	return e.setBalance(ctx, addr, c.Denom, bal.Sub(c.Amount))
}

func (e *Engine) setBalance(ctx *core.Context, addr, denom string, amount sdkmath.Int) error {
	key := state.Key(balancePrefix, addr, denom)
	if amount.IsZero() {
		return ctx.Store().KVDelete(key)
	}
	return ctx.Store().KVPut(key, types.IntToBig(amount))
}

func (e *Engine) adjustSupply(ctx *core.Context, denom string, delta sdkmath.Int) error {
	supply, err := e.Supply(ctx, denom)
	if err != nil {
		return err
	}
	next := supply.Add(delta)
	if next.IsNegative() {
		return errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "supply of %s", denom)
	}
	return ctx.Store().KVPut(state.Key(supplyPrefix, denom), types.IntToBig(next))
}
