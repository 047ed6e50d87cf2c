package events

import (
	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
)

// TypePriceUpdated is emitted when the oracle stores a new quote.
const TypePriceUpdated = "oracle.price_updated"

type PriceUpdated struct {
	Denom string
	Price sdkmath.LegacyDec
}

func (PriceUpdated) EventType() string { return TypePriceUpdated }

func (e PriceUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypePriceUpdated,
		Attributes: map[string]string{"denom": trim(e.Denom), "price": decimal(e.Price)},
	}
}
