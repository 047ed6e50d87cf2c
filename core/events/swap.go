package events

import "creditchain/core/types"

const (
	// TypeSwapped is emitted for every executed swap.
	TypeSwapped = "swapper.swapped"
	// TypeLiquidityProvided is emitted when LP tokens are minted.
	TypeLiquidityProvided = "zapper.provided"
	// TypeLiquidityWithdrawn is emitted when LP tokens are burned.
	TypeLiquidityWithdrawn = "zapper.withdrawn"
)

type Swapped struct {
	Sender  string
	CoinIn  types.Coin
	CoinOut types.Coin
}

func (Swapped) EventType() string { return TypeSwapped }

func (e Swapped) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapped,
		Attributes: map[string]string{
			"sender":   trim(e.Sender),
			"coin_in":  e.CoinIn.String(),
			"coin_out": e.CoinOut.String(),
		},
	}
}

type LiquidityProvided struct {
	Sender  string
	CoinsIn types.Coins
	LpOut   types.Coin
}

func (LiquidityProvided) EventType() string { return TypeLiquidityProvided }

func (e LiquidityProvided) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityProvided,
		Attributes: map[string]string{
			"sender":   trim(e.Sender),
			"coins_in": e.CoinsIn.String(),
			"lp_out":   e.LpOut.String(),
		},
	}
}

type LiquidityWithdrawn struct {
	Sender   string
	LpIn     types.Coin
	CoinsOut types.Coins
}

func (LiquidityWithdrawn) EventType() string { return TypeLiquidityWithdrawn }

func (e LiquidityWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidityWithdrawn,
		Attributes: map[string]string{
			"sender":    trim(e.Sender),
			"lp_in":     e.LpIn.String(),
			"coins_out": e.CoinsOut.String(),
		},
	}
}
