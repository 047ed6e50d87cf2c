package zapper

import (
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/state"
	"creditchain/core/types"
	"creditchain/native/common"
	"creditchain/native/oracle"
)

const moduleName = "zapper"

var (
	ownerKey   = []byte("zapper/owner")
	poolPrefix = "zapper/pool/"
)

// PriceSource resolves oracle prices.
type PriceSource interface {
	Price(ctx *core.Context, denom string, kind oracle.Kind) (sdkmath.LegacyDec, error)
}

// Ledger mints and burns LP tokens and reads reserves.
type Ledger interface {
	Balance(ctx *core.Context, addr, denom string) (sdkmath.Int, error)
	Supply(ctx *core.Context, denom string) (sdkmath.Int, error)
	Mint(ctx *core.Context, to string, amount types.Coins) error
	Burn(ctx *core.Context, from string, amount types.Coins) error
}

// CreatePool registers a pool. Owner only.
type CreatePool struct {
	LpDenom string   `json:"lp_denom"`
	Denoms  []string `json:"denoms"`
}

// ProvideLiquidity deposits the attached coins and mints LpTokenOut.
type ProvideLiquidity struct {
	LpTokenOut string      `json:"lp_token_out"`
	MinReceive sdkmath.Int `json:"min_receive"`
}

// WithdrawLiquidity burns the attached LP coin and returns the pro-rata
// share of the pool reserves.
type WithdrawLiquidity struct {
	MinReceive types.Coins `json:"min_receive"`
}

// Pool is a liquidity pool of the zapper.
type Pool struct {
	LpDenom string   `json:"lp_denom"`
	Denoms  []string `json:"denoms"`
}

// Engine mints LP tokens valued by the oracle and redeems them against the
// pool reserves it holds.
type Engine struct {
	self   string
	prices PriceSource
	ledger Ledger
	pauses common.PauseSource
}

// NewEngine returns a zapper deployed at self.
func NewEngine(self string, prices PriceSource, ledger Ledger, pauses common.PauseSource) *Engine {
	return &Engine{self: self, prices: prices, ledger: ledger, pauses: pauses}
}

// InitGenesis stores the owner and the initial pools.
func (e *Engine) InitGenesis(ctx *core.Context, owner string, pools []Pool) error {
	if err := ctx.Store().KVPut(ownerKey, owner); err != nil {
		return err
	}
	for _, p := range pools {
		if err := e.createPool(ctx, CreatePool{LpDenom: p.LpDenom, Denoms: p.Denoms}); err != nil {
			return err
		}
	}
	return nil
}

// Execute implements core.Handler.
func (e *Engine) Execute(ctx *core.Context, info core.MessageInfo, msg any) (*core.Response, error) {
	switch m := msg.(type) {
	case CreatePool:
		var owner string
		if _, err := ctx.Store().KVGet(ownerKey, &owner); err != nil {
			return nil, err
		}
		if info.Sender != owner {
			return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "zapper: %s is not the owner", info.Sender)
		}
		return core.NewResponse(), e.createPool(ctx, m)
	case ProvideLiquidity:
		if err := common.GuardContext(ctx, e.pauses, moduleName); err != nil {
			return nil, err
		}
		return e.provide(ctx, info, m)
	case WithdrawLiquidity:
		if err := common.GuardContext(ctx, e.pauses, moduleName); err != nil {
			return nil, err
		}
		return e.withdraw(ctx, info, m)
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "zapper: %T", msg)
	}
}

func (e *Engine) createPool(ctx *core.Context, m CreatePool) error {
	if err := types.ValidateDenom(m.LpDenom); err != nil {
		return errorsmod.Wrap(cerrors.ErrValidation, err.Error())
	}
	if len(m.Denoms) < 2 {
		return errorsmod.Wrap(cerrors.ErrValidation, "zapper: pools need at least two denoms")
	}
	denoms := append([]string(nil), m.Denoms...)
	sort.Strings(denoms)
	for i, d := range denoms {
		if err := types.ValidateDenom(d); err != nil {
			return errorsmod.Wrap(cerrors.ErrValidation, err.Error())
		}
		if i > 0 && denoms[i-1] == d {
			return errorsmod.Wrapf(cerrors.ErrValidation, "zapper: duplicate denom %s", d)
		}
	}
	return ctx.Store().KVPut(state.Key(poolPrefix, m.LpDenom), denoms)
}

// Pool loads the pool minting lpDenom.
func (e *Engine) Pool(ctx *core.Context, lpDenom string) (Pool, error) {
	var denoms []string
	ok, err := ctx.Store().KVGet(state.Key(poolPrefix, lpDenom), &denoms)
	if err != nil {
		return Pool{}, err
	}
	if !ok {
		return Pool{}, errorsmod.Wrapf(cerrors.ErrValidation, "zapper: unknown pool %s", lpDenom)
	}
	return Pool{LpDenom: lpDenom, Denoms: denoms}, nil
}

func (p Pool) has(denom string) bool {
	for _, d := range p.Denoms {
		if d == denom {
			return true
		}
	}
	return false
}

// EstimateProvideLiquidity returns the LP amount minted for coinsIn.
func (e *Engine) EstimateProvideLiquidity(ctx *core.Context, lpDenom string, coinsIn types.Coins) (sdkmath.Int, error) {
	pool, err := e.Pool(ctx, lpDenom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if coinsIn.Empty() {
		return sdkmath.Int{}, errorsmod.Wrap(cerrors.ErrValidation, "zapper: no coins provided")
	}
	value := sdkmath.LegacyZeroDec()
	for _, c := range coinsIn {
		if !pool.has(c.Denom) {
			return sdkmath.Int{}, errorsmod.Wrapf(cerrors.ErrValidation, "zapper: %s is not in pool %s", c.Denom, lpDenom)
		}
		p, err := e.prices.Price(ctx, c.Denom, oracle.KindDefault)
		if err != nil {
			return sdkmath.Int{}, err
		}
		value = value.Add(p.MulInt(c.Amount))
	}
	lpPrice, err := e.prices.Price(ctx, lpDenom, oracle.KindDefault)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return value.Quo(lpPrice).TruncateInt(), nil
}

// EstimateWithdrawLiquidity returns the reserves paid for lp.
func (e *Engine) EstimateWithdrawLiquidity(ctx *core.Context, lp types.Coin) (types.Coins, error) {
	pool, err := e.Pool(ctx, lp.Denom)
	if err != nil {
		return nil, err
	}
	supply, err := e.ledger.Supply(ctx, lp.Denom)
	if err != nil {
		return nil, err
	}
	if !supply.IsPositive() || supply.LT(lp.Amount) {
		return nil, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "zapper: lp supply %s", supply)
	}
	var out types.Coins
	for _, d := range pool.Denoms {
		reserve, err := e.ledger.Balance(ctx, e.self, d)
		if err != nil {
			return nil, err
		}
		out = out.Add(types.NewCoin(d, reserve.Mul(lp.Amount).Quo(supply)))
	}
	return out, nil
}

func (e *Engine) provide(ctx *core.Context, info core.MessageInfo, m ProvideLiquidity) (*core.Response, error) {
	minted, err := e.EstimateProvideLiquidity(ctx, m.LpTokenOut, info.Funds)
	if err != nil {
		return nil, err
	}
	if !m.MinReceive.IsNil() && minted.LT(m.MinReceive) {
		return nil, errorsmod.Wrapf(cerrors.ErrSlippageExceeded, "zapper: %s%s below minimum %s", minted, m.LpTokenOut, m.MinReceive)
	}
	if !minted.IsPositive() {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "zapper: provide yields nothing")
	}
	lp := types.NewCoin(m.LpTokenOut, minted)
	if err := e.ledger.Mint(ctx, info.Sender, types.NewCoins(lp)); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.LiquidityProvided{Sender: info.Sender, CoinsIn: info.Funds, LpOut: lp})
	return core.NewResponse(), nil
}

func (e *Engine) withdraw(ctx *core.Context, info core.MessageInfo, m WithdrawLiquidity) (*core.Response, error) {
	if len(info.Funds) != 1 {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "zapper: attach exactly one lp coin")
	}
	lp := info.Funds[0]
	// the burned coins are already held by the zapper; reserves are read
	// before the burn changes the supply
	out, err := e.EstimateWithdrawLiquidity(ctx, lp)
	if err != nil {
		return nil, err
	}
	for _, want := range m.MinReceive {
		if out.AmountOf(want.Denom).LT(want.Amount) {
			return nil, errorsmod.Wrapf(cerrors.ErrSlippageExceeded, "zapper: %s below minimum %s", out, want)
		}
	}
	if err := e.ledger.Burn(ctx, e.self, types.NewCoins(lp)); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.LiquidityWithdrawn{Sender: info.Sender, LpIn: lp, CoinsOut: out})
	return core.NewResponse().AddBankSend(info.Sender, out...), nil
}
