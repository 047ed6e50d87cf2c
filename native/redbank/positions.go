package redbank

import (
	"fmt"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/state"
	"creditchain/core/types"
)

// userID identifies a position holder. Credit accounts share the credit
// manager's address and are told apart by accountID.
type userID struct {
	addr      string
	accountID string
}

// Collateral is a user's deposit in one market.
type Collateral struct {
	Denom        string      `json:"denom"`
	AmountScaled sdkmath.Int `json:"amount_scaled"`
	Amount       sdkmath.Int `json:"amount"`
	Enabled      bool        `json:"enabled"`
}

// Debt is a user's borrow in one market.
type Debt struct {
	Denom            string      `json:"denom"`
	AmountScaled     sdkmath.Int `json:"amount_scaled"`
	Amount           sdkmath.Int `json:"amount"`
	Uncollateralized bool        `json:"uncollateralized"`
}

type collateralRecord struct {
	AmountScaled *big.Int
	Enabled      bool
}

type debtRecord struct {
	AmountScaled     *big.Int
	Uncollateralized bool
}

func collateralKey(u userID, denom string) []byte {
	return state.Key(collateralPrefix, u.addr, u.accountID, denom)
}

func debtKey(u userID, denom string) []byte {
	return state.Key(debtPrefix, u.addr, u.accountID, denom)
}

func (e *Engine) loadCollateral(ctx *core.Context, u userID, denom string) (collateralRecord, bool, error) {
	var rec collateralRecord
	ok, err := ctx.Store().KVGet(collateralKey(u, denom), &rec)
	if err != nil {
		return collateralRecord{}, false, fmt.Errorf("redbank: load collateral: %w", err)
	}
	return rec, ok, nil
}

func (e *Engine) loadDebt(ctx *core.Context, u userID, denom string) (debtRecord, bool, error) {
	var rec debtRecord
	ok, err := ctx.Store().KVGet(debtKey(u, denom), &rec)
	if err != nil {
		return debtRecord{}, false, fmt.Errorf("redbank: load debt: %w", err)
	}
	return rec, ok, nil
}

// addCollateral credits scaled collateral to u and notifies incentives with
// the balances before the change. New positions start enabled only when
// enableIfNew is set.
func (e *Engine) addCollateral(ctx *core.Context, resp *core.Response, m *Market, u userID, scaled sdkmath.Int, enableIfNew bool) error {
	rec, ok, err := e.loadCollateral(ctx, u, m.Denom)
	if err != nil {
		return err
	}
	if !ok {
		rec.Enabled = enableIfNew
	}
	before := types.BigToInt(rec.AmountScaled)
	e.notifyIncentives(resp, u, m.Denom, before, m.CollateralTotalScaled)
	rec.AmountScaled = types.IntToBig(before.Add(scaled))
	m.CollateralTotalScaled = m.CollateralTotalScaled.Add(scaled)
	return ctx.Store().KVPut(collateralKey(u, m.Denom), rec)
}

// removeCollateral debits scaled collateral from u and deletes the position
// once it is empty.
func (e *Engine) removeCollateral(ctx *core.Context, resp *core.Response, m *Market, u userID, scaled sdkmath.Int) error {
	rec, ok, err := e.loadCollateral(ctx, u, m.Denom)
	if err != nil {
		return err
	}
	if !ok {
		return errorsmod.Wrapf(cerrors.ErrNoCollateral, "%s has no %s collateral", u.addr, m.Denom)
	}
	before := types.BigToInt(rec.AmountScaled)
	if scaled.GT(before) {
		return errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "collateral %s below %s", before, scaled)
	}
	e.notifyIncentives(resp, u, m.Denom, before, m.CollateralTotalScaled)
	m.CollateralTotalScaled = m.CollateralTotalScaled.Sub(scaled)
	left := before.Sub(scaled)
	if left.IsZero() {
		return ctx.Store().KVDelete(collateralKey(u, m.Denom))
	}
	rec.AmountScaled = types.IntToBig(left)
	return ctx.Store().KVPut(collateralKey(u, m.Denom), rec)
}

func (e *Engine) notifyIncentives(resp *core.Response, u userID, denom string, userBefore, totalBefore sdkmath.Int) {
	if e.addrs.Incentives == "" {
		return
	}
	resp.AddExecute(e.addrs.Incentives, balanceChange(u, denom, userBefore, totalBefore))
}

func (e *Engine) addDebt(ctx *core.Context, m *Market, u userID, scaled sdkmath.Int, uncollateralized bool) error {
	rec, ok, err := e.loadDebt(ctx, u, m.Denom)
	if err != nil {
		return err
	}
	if !ok {
		rec.Uncollateralized = uncollateralized
	}
	rec.AmountScaled = types.IntToBig(types.BigToInt(rec.AmountScaled).Add(scaled))
	m.DebtTotalScaled = m.DebtTotalScaled.Add(scaled)
	return ctx.Store().KVPut(debtKey(u, m.Denom), rec)
}

func (e *Engine) reduceDebt(ctx *core.Context, m *Market, u userID, rec debtRecord, scaled sdkmath.Int) error {
	current := types.BigToInt(rec.AmountScaled)
	if scaled.GT(current) {
		scaled = current
	}
	if scaled.GT(m.DebtTotalScaled) {
		m.DebtTotalScaled = sdkmath.ZeroInt()
	} else {
		m.DebtTotalScaled = m.DebtTotalScaled.Sub(scaled)
	}
	left := current.Sub(scaled)
	if left.IsZero() {
		return ctx.Store().KVDelete(debtKey(u, m.Denom))
	}
	rec.AmountScaled = types.IntToBig(left)
	return ctx.Store().KVPut(debtKey(u, m.Denom), rec)
}

// iterate visits every record of u under prefix keyed by denom.
func (e *Engine) iterate(ctx *core.Context, prefix string, u userID, fn func(denom string, value []byte) error) error {
	return ctx.Store().KVIterate(state.Key(prefix, u.addr, u.accountID), func(key, value []byte) error {
		parts := state.SplitKey(prefix, key)
		if len(parts) != 3 {
			return fmt.Errorf("redbank: malformed key %q", key)
		}
		return fn(parts[2], value)
	})
}

func (e *Engine) uncollateralizedLimit(ctx *core.Context, user, denom string) (sdkmath.Int, error) {
	var raw *big.Int
	if _, err := ctx.Store().KVGet(state.Key(limitPrefix, user, denom), &raw); err != nil {
		return sdkmath.Int{}, err
	}
	return types.BigToInt(raw), nil
}
