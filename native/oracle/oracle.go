package oracle

import (
	"fmt"
	"math/big"
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/state"
	"creditchain/core/types"
)

var (
	pricePrefix = "oracle/price/"
	configKey   = []byte("oracle/config")
)

// Kind selects which price a consumer needs. Liquidations may use a
// dedicated, more conservative feed.
type Kind uint8

const (
	KindDefault Kind = iota
	KindLiquidation
)

func (k Kind) String() string {
	if k == KindLiquidation {
		return "liquidation"
	}
	return "default"
}

// SetPrice records a price for denom. LiquidationPrice is optional.
type SetPrice struct {
	Denom            string             `json:"denom"`
	Price            sdkmath.LegacyDec  `json:"price"`
	LiquidationPrice *sdkmath.LegacyDec `json:"liquidation_price,omitempty"`
}

// RemovePrice drops a price source.
type RemovePrice struct {
	Denom string `json:"denom"`
}

// UpdateConfig changes the owner or the freshness window.
type UpdateConfig struct {
	Owner  *string `json:"owner,omitempty"`
	MaxAge *uint64 `json:"max_age,omitempty"`
}

// Config is the oracle configuration. MaxAge is in seconds; zero disables
// the staleness check.
type Config struct {
	Owner  string
	MaxAge uint64
}

// PriceResponse is returned by price queries.
type PriceResponse struct {
	Denom string            `json:"denom"`
	Price sdkmath.LegacyDec `json:"price"`
}

type priceRecord struct {
	Price            *big.Int
	LiquidationPrice *big.Int
	HasLiquidation   bool
	UpdatedAt        uint64
}

// Engine serves prices denominated in the base denom. Price aggregation is
// performed off chain; the engine only stores the latest quote per denom.
type Engine struct{}

// NewEngine returns the oracle engine.
func NewEngine() *Engine {
	return &Engine{}
}

// InitGenesis stores the initial configuration.
func (e *Engine) InitGenesis(ctx *core.Context, cfg Config) error {
	return ctx.Store().KVPut(configKey, cfg)
}

// Config returns the stored configuration.
func (e *Engine) Config(ctx *core.Context) (Config, error) {
	var cfg Config
	if _, err := ctx.Store().KVGet(configKey, &cfg); err != nil {
		return Config{}, fmt.Errorf("oracle: load config: %w", err)
	}
	return cfg, nil
}

// Execute implements core.Handler.
func (e *Engine) Execute(ctx *core.Context, info core.MessageInfo, msg any) (*core.Response, error) {
	cfg, err := e.Config(ctx)
	if err != nil {
		return nil, err
	}
	if info.Sender != cfg.Owner {
		return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "oracle: %s is not the owner", info.Sender)
	}
	switch m := msg.(type) {
	case SetPrice:
		return core.NewResponse(), e.setPrice(ctx, m)
	case RemovePrice:
		if err := ctx.Store().KVDelete(state.Key(pricePrefix, m.Denom)); err != nil {
			return nil, err
		}
		return core.NewResponse(), nil
	case UpdateConfig:
		if m.Owner != nil {
			cfg.Owner = *m.Owner
		}
		if m.MaxAge != nil {
			cfg.MaxAge = *m.MaxAge
		}
		return core.NewResponse(), ctx.Store().KVPut(configKey, cfg)
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "oracle: %T", msg)
	}
}

func (e *Engine) setPrice(ctx *core.Context, m SetPrice) error {
	if err := types.ValidateDenom(m.Denom); err != nil {
		return errorsmod.Wrap(cerrors.ErrValidation, err.Error())
	}
	if m.Price.IsNil() || !m.Price.IsPositive() {
		return errorsmod.Wrapf(cerrors.ErrValidation, "oracle: price for %s must be positive", m.Denom)
	}
	rec := priceRecord{Price: types.DecToBig(m.Price), UpdatedAt: ctx.BlockTime()}
	if m.LiquidationPrice != nil {
		if m.LiquidationPrice.IsNil() || !m.LiquidationPrice.IsPositive() {
			return errorsmod.Wrapf(cerrors.ErrValidation, "oracle: liquidation price for %s must be positive", m.Denom)
		}
		rec.LiquidationPrice = types.DecToBig(*m.LiquidationPrice)
		rec.HasLiquidation = true
	} else {
		rec.LiquidationPrice = new(big.Int)
	}
	if err := ctx.Store().KVPut(state.Key(pricePrefix, m.Denom), rec); err != nil {
		return err
	}
	ctx.EmitEvent(events.PriceUpdated{Denom: m.Denom, Price: m.Price})
	return nil
}

// Price returns the price of denom for the requested kind.
func (e *Engine) Price(ctx *core.Context, denom string, kind Kind) (sdkmath.LegacyDec, error) {
	var rec priceRecord
	ok, err := ctx.Store().KVGet(state.Key(pricePrefix, denom), &rec)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if !ok {
		return sdkmath.LegacyDec{}, errorsmod.Wrapf(cerrors.ErrPriceNotFound, "%s", denom)
	}
	cfg, err := e.Config(ctx)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if cfg.MaxAge > 0 && ctx.BlockTime() > rec.UpdatedAt+cfg.MaxAge {
		return sdkmath.LegacyDec{}, errorsmod.Wrapf(cerrors.ErrStalePrice, "%s updated at %d", denom, rec.UpdatedAt)
	}
	if kind == KindLiquidation && rec.HasLiquidation {
		return types.BigToDec(rec.LiquidationPrice), nil
	}
	return types.BigToDec(rec.Price), nil
}

// Prices resolves every denom, failing on the first missing price.
func (e *Engine) Prices(ctx *core.Context, kind Kind, denoms ...string) (map[string]sdkmath.LegacyDec, error) {
	out := make(map[string]sdkmath.LegacyDec, len(denoms))
	for _, denom := range denoms {
		if _, ok := out[denom]; ok {
			continue
		}
		p, err := e.Price(ctx, denom, kind)
		if err != nil {
			return nil, err
		}
		out[denom] = p
	}
	return out, nil
}

// AllPrices lists every stored default price ordered by denom, ignoring
// staleness.
func (e *Engine) AllPrices(ctx *core.Context) ([]PriceResponse, error) {
	var out []PriceResponse
	err := ctx.Store().KVIterate([]byte(pricePrefix), func(key, value []byte) error {
		parts := state.SplitKey(pricePrefix, key)
		if len(parts) != 1 {
			return fmt.Errorf("oracle: malformed key %q", key)
		}
		var rec priceRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return err
		}
		out = append(out, PriceResponse{Denom: parts[0], Price: types.BigToDec(rec.Price)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out, nil
}
