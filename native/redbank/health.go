package redbank

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"creditchain/core"
	"creditchain/core/types"
	"creditchain/native/health"
	"creditchain/native/oracle"
	"creditchain/native/params"
)

// marketCache memoises accrued markets for the duration of one call.
type marketCache map[string]Market

func (e *Engine) cachedMarket(ctx *core.Context, cache marketCache, denom string) (Market, error) {
	if m, ok := cache[denom]; ok {
		return m, nil
	}
	m, err := e.marketNow(ctx, denom)
	if err != nil {
		return Market{}, err
	}
	cache[denom] = m
	return m, nil
}

// positions collects the enabled collateral and every debt of u in
// underlying units.
func (e *Engine) positions(ctx *core.Context, u userID) (health.Positions, error) {
	cache := marketCache{}
	var out health.Positions
	err := e.iterate(ctx, collateralPrefix, u, func(denom string, value []byte) error {
		var rec collateralRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return err
		}
		if !rec.Enabled {
			return nil
		}
		m, err := e.cachedMarket(ctx, cache, denom)
		if err != nil {
			return err
		}
		amount, err := ToUnderlying(types.BigToInt(rec.AmountScaled), m.LiquidityIndex, Truncate)
		if err != nil {
			return err
		}
		out.Deposits = out.Deposits.Add(types.NewCoin(denom, amount))
		return nil
	})
	if err != nil {
		return health.Positions{}, err
	}
	err = e.iterate(ctx, debtPrefix, u, func(denom string, value []byte) error {
		var rec debtRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return err
		}
		m, err := e.cachedMarket(ctx, cache, denom)
		if err != nil {
			return err
		}
		amount, err := ToUnderlying(types.BigToInt(rec.AmountScaled), m.BorrowIndex, Ceil)
		if err != nil {
			return err
		}
		out.Debts = append(out.Debts, health.Debt{Denom: denom, Amount: amount, Uncollateralized: rec.Uncollateralized})
		return nil
	})
	if err != nil {
		return health.Positions{}, err
	}
	return out, nil
}

// computer builds the health computer of a money-market user. Credit
// account whitelists do not apply here.
func (e *Engine) computer(ctx *core.Context, u userID, kind oracle.Kind) (*health.Computer, error) {
	pos, err := e.positions(ctx, u)
	if err != nil {
		return nil, err
	}
	c := &health.Computer{
		Kind:         health.KindDefault,
		Positions:    pos,
		AssetParams:  map[string]params.AssetParams{},
		VaultConfigs: map[string]params.VaultConfig{},
		Prices:       map[string]sdkmath.LegacyDec{},
	}
	denoms := pos.Deposits.Denoms()
	for _, d := range pos.Debts {
		if !d.Uncollateralized {
			denoms = append(denoms, d.Denom)
		}
	}
	for _, denom := range denoms {
		if _, ok := c.Prices[denom]; ok {
			continue
		}
		ap, err := e.params.AssetParams(ctx, denom)
		if err != nil {
			return nil, err
		}
		price, err := e.prices.Price(ctx, denom, kind)
		if err != nil {
			return nil, err
		}
		c.AssetParams[denom] = ap
		c.Prices[denom] = price
	}
	return c, nil
}

func (e *Engine) healthOf(ctx *core.Context, u userID, kind oracle.Kind) (health.Values, error) {
	c, err := e.computer(ctx, u, kind)
	if err != nil {
		return health.Values{}, err
	}
	return c.Compute()
}
