package swapper

import (
	"fmt"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/types"
	"creditchain/native/common"
	"creditchain/native/oracle"
)

const moduleName = "swapper"

var configKey = []byte("swapper/config")

// PriceSource resolves oracle prices.
type PriceSource interface {
	Price(ctx *core.Context, denom string, kind oracle.Kind) (sdkmath.LegacyDec, error)
}

// SwapExactIn sells the attached coin for DenomOut. Route lists optional
// intermediate denoms; every hop pays the fee.
type SwapExactIn struct {
	DenomOut   string      `json:"denom_out"`
	MinReceive sdkmath.Int `json:"min_receive"`
	Route      []string    `json:"route,omitempty"`
}

// UpdateConfig replaces the swapper configuration.
type UpdateConfig struct {
	Config Config `json:"config"`
}

// Config holds the owner and the per-hop fee.
type Config struct {
	Owner string            `json:"owner"`
	Fee   sdkmath.LegacyDec `json:"fee"`
}

type configRecord struct {
	Owner string
	Fee   *big.Int
}

// Engine is an oracle-priced swap venue paying out of its own reserves.
type Engine struct {
	prices PriceSource
	pauses common.PauseSource
}

// NewEngine returns a swapper priced by prices.
func NewEngine(prices PriceSource, pauses common.PauseSource) *Engine {
	return &Engine{prices: prices, pauses: pauses}
}

// InitGenesis stores the configuration.
func (e *Engine) InitGenesis(ctx *core.Context, cfg Config) error {
	return e.storeConfig(ctx, cfg)
}

func (e *Engine) storeConfig(ctx *core.Context, cfg Config) error {
	if cfg.Fee.IsNil() || cfg.Fee.IsNegative() || cfg.Fee.GTE(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrap(cerrors.ErrValidation, "swapper: fee must be in [0, 1)")
	}
	return ctx.Store().KVPut(configKey, configRecord{Owner: cfg.Owner, Fee: types.DecToBig(cfg.Fee)})
}

// Config returns the stored configuration.
func (e *Engine) Config(ctx *core.Context) (Config, error) {
	var rec configRecord
	ok, err := ctx.Store().KVGet(configKey, &rec)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, fmt.Errorf("swapper: not configured")
	}
	return Config{Owner: rec.Owner, Fee: types.BigToDec(rec.Fee)}, nil
}

// Execute implements core.Handler.
func (e *Engine) Execute(ctx *core.Context, info core.MessageInfo, msg any) (*core.Response, error) {
	switch m := msg.(type) {
	case SwapExactIn:
		return e.swap(ctx, info, m)
	case UpdateConfig:
		cfg, err := e.Config(ctx)
		if err != nil {
			return nil, err
		}
		if info.Sender != cfg.Owner {
			return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "swapper: %s is not the owner", info.Sender)
		}
		return core.NewResponse(), e.storeConfig(ctx, m.Config)
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "swapper: %T", msg)
	}
}

func (e *Engine) swap(ctx *core.Context, info core.MessageInfo, m SwapExactIn) (*core.Response, error) {
	if err := common.GuardContext(ctx, e.pauses, moduleName); err != nil {
		return nil, err
	}
	if len(info.Funds) != 1 {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "swapper: attach exactly one coin")
	}
	coinIn := info.Funds[0]
	out, err := e.EstimateExactIn(ctx, coinIn, m.DenomOut, m.Route)
	if err != nil {
		return nil, err
	}
	if !m.MinReceive.IsNil() && out.LT(m.MinReceive) {
		return nil, errorsmod.Wrapf(cerrors.ErrSlippageExceeded, "swapper: %s%s below minimum %s", out, m.DenomOut, m.MinReceive)
	}
	if !out.IsPositive() {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "swapper: swap yields nothing")
	}
	coinOut := types.NewCoin(m.DenomOut, out)
	ctx.EmitEvent(events.Swapped{Sender: info.Sender, CoinIn: coinIn, CoinOut: coinOut})
	return core.NewResponse().AddBankSend(info.Sender, coinOut), nil
}

// EstimateExactIn prices a swap of coinIn into denomOut through route.
func (e *Engine) EstimateExactIn(ctx *core.Context, coinIn types.Coin, denomOut string, route []string) (sdkmath.Int, error) {
	if coinIn.Denom == denomOut {
		return sdkmath.Int{}, errorsmod.Wrap(cerrors.ErrValidation, "swapper: denom in equals denom out")
	}
	cfg, err := e.Config(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	hops := append(append([]string{coinIn.Denom}, route...), denomOut)
	amount := coinIn.Amount
	keep := sdkmath.LegacyOneDec().Sub(cfg.Fee)
	for i := 1; i < len(hops); i++ {
		pIn, err := e.prices.Price(ctx, hops[i-1], oracle.KindDefault)
		if err != nil {
			return sdkmath.Int{}, err
		}
		pOut, err := e.prices.Price(ctx, hops[i], oracle.KindDefault)
		if err != nil {
			return sdkmath.Int{}, err
		}
		amount = sdkmath.LegacyNewDecFromInt(amount).Mul(pIn).Mul(keep).Quo(pOut).TruncateInt()
	}
	return amount, nil
}
