package types

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	sdkmath "cosmossdk.io/math"
)

var (
	denomPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9/:._-]{1,127}$`)
	coinPattern  = regexp.MustCompile(`^([0-9]+)([a-zA-Z][a-zA-Z0-9/:._-]{1,127})$`)
)

// ValidateDenom checks the denomination format used across the protocol.
func ValidateDenom(denom string) error {
	if !denomPattern.MatchString(denom) {
		return fmt.Errorf("invalid denom %q", denom)
	}
	return nil
}

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string      `json:"denom"`
	Amount sdkmath.Int `json:"amount"`
}

// NewCoin builds a coin, normalising a nil amount to zero.
func NewCoin(denom string, amount sdkmath.Int) Coin {
	if amount.IsNil() {
		amount = sdkmath.ZeroInt()
	}
	return Coin{Denom: denom, Amount: amount}
}

// NewInt64Coin is a convenience constructor for tests and genesis.
func NewInt64Coin(denom string, amount int64) Coin {
	return Coin{Denom: denom, Amount: sdkmath.NewInt(amount)}
}

// ParseCoin reads the "<amount><denom>" form written by String.
func ParseCoin(s string) (Coin, error) {
	m := coinPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Coin{}, fmt.Errorf("invalid coin %q", s)
	}
	amount, ok := sdkmath.NewIntFromString(m[1])
	if !ok {
		return Coin{}, fmt.Errorf("invalid coin amount %q", m[1])
	}
	return Coin{Denom: m[2], Amount: amount}, nil
}

func (c Coin) String() string {
	if c.Amount.IsNil() {
		return "0" + c.Denom
	}
	return c.Amount.String() + c.Denom
}

// IsZero reports whether the amount is zero or unset.
func (c Coin) IsZero() bool {
	return c.Amount.IsNil() || c.Amount.IsZero()
}

// Validate checks the denom and that the amount is not negative.
func (c Coin) Validate() error {
	if err := ValidateDenom(c.Denom); err != nil {
		return err
	}
	if c.Amount.IsNil() || c.Amount.IsNegative() {
		return fmt.Errorf("negative amount for %s", c.Denom)
	}
	return nil
}

// Coins is a set of coins sorted by denom with no zero or duplicate entries.
type Coins []Coin

// NewCoins sanitises the input: equal denoms are merged, zero entries dropped
// and the result sorted.
func NewCoins(coins ...Coin) Coins {
	var out Coins
	return out.Add(coins...)
}

// AmountOf returns the amount held of denom.
func (cs Coins) AmountOf(denom string) sdkmath.Int {
	for _, c := range cs {
		if c.Denom == denom {
			return c.Amount
		}
	}
	return sdkmath.ZeroInt()
}

// Add returns a new set with others merged in.
func (cs Coins) Add(others ...Coin) Coins {
	merged := make(map[string]sdkmath.Int, len(cs)+len(others))
	for _, c := range append(append(Coins{}, cs...), others...) {
		if c.IsZero() {
			continue
		}
		if prev, ok := merged[c.Denom]; ok {
			merged[c.Denom] = prev.Add(c.Amount)
			continue
		}
		merged[c.Denom] = c.Amount
	}
	out := make(Coins, 0, len(merged))
	for denom, amount := range merged {
		out = append(out, Coin{Denom: denom, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out
}

// SafeSub subtracts c and reports false when the balance would go negative.
func (cs Coins) SafeSub(c Coin) (Coins, bool) {
	if c.IsZero() {
		return cs, true
	}
	have := cs.AmountOf(c.Denom)
	if have.LT(c.Amount) {
		return cs, false
	}
	out := make(Coins, 0, len(cs))
	for _, existing := range cs {
		if existing.Denom != c.Denom {
			out = append(out, existing)
			continue
		}
		if rest := existing.Amount.Sub(c.Amount); rest.IsPositive() {
			out = append(out, Coin{Denom: c.Denom, Amount: rest})
		}
	}
	return out, true
}

// Empty reports whether the set holds nothing.
func (cs Coins) Empty() bool {
	return len(cs) == 0
}

// Denoms lists the denominations in sorted order.
func (cs Coins) Denoms() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Denom
	}
	return out
}

// Validate checks every coin and the set invariants.
func (cs Coins) Validate() error {
	for i, c := range cs {
		if err := c.Validate(); err != nil {
			return err
		}
		if c.IsZero() {
			return fmt.Errorf("zero amount for %s", c.Denom)
		}
		if i > 0 && cs[i-1].Denom >= c.Denom {
			return fmt.Errorf("coins not sorted or duplicated at %s", c.Denom)
		}
	}
	return nil
}

func (cs Coins) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}
