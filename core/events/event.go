package events

import (
	"strings"

	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
)

// Event represents a structured state change emitted by the protocol.
type Event interface {
	EventType() string
	Event() *types.Event
}

func amount(x sdkmath.Int) string {
	if x.IsNil() {
		return "0"
	}
	return x.String()
}

func decimal(d sdkmath.LegacyDec) string {
	if d.IsNil() {
		return "0"
	}
	return d.String()
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
