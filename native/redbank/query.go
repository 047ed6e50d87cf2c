package redbank

import (
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/types"
	"creditchain/native/health"
	"creditchain/native/oracle"
)

// UserPosition summarises the collateral, debts and health of a user.
type UserPosition struct {
	Collaterals []Collateral  `json:"collaterals"`
	Debts       []Debt        `json:"debts"`
	Health      health.Values `json:"health"`
}

// Market returns the market of denom with interest accrued to now.
func (e *Engine) Market(ctx *core.Context, denom string) (Market, error) {
	return e.marketNow(ctx, denom)
}

// UserCollateral returns the collateral of (user, accountID) in denom. An
// absent position is reported as zero.
func (e *Engine) UserCollateral(ctx *core.Context, user, accountID, denom string) (Collateral, error) {
	m, err := e.marketNow(ctx, denom)
	if err != nil {
		return Collateral{}, err
	}
	rec, _, err := e.loadCollateral(ctx, userID{addr: user, accountID: accountID}, denom)
	if err != nil {
		return Collateral{}, err
	}
	return collateralView(m, denom, rec)
}

func collateralView(m Market, denom string, rec collateralRecord) (Collateral, error) {
	scaled := types.BigToInt(rec.AmountScaled)
	amount, err := ToUnderlying(scaled, m.LiquidityIndex, Truncate)
	if err != nil {
		return Collateral{}, err
	}
	return Collateral{Denom: denom, AmountScaled: scaled, Amount: amount, Enabled: rec.Enabled}, nil
}

// UserCollaterals lists every collateral position of (user, accountID).
func (e *Engine) UserCollaterals(ctx *core.Context, user, accountID string) ([]Collateral, error) {
	cache := marketCache{}
	var out []Collateral
	err := e.iterate(ctx, collateralPrefix, userID{addr: user, accountID: accountID}, func(denom string, value []byte) error {
		var rec collateralRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return err
		}
		m, err := e.cachedMarket(ctx, cache, denom)
		if err != nil {
			return err
		}
		c, err := collateralView(m, denom, rec)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

// UserDebt returns the debt of (user, accountID) in denom, rounded up.
func (e *Engine) UserDebt(ctx *core.Context, user, accountID, denom string) (Debt, error) {
	m, err := e.marketNow(ctx, denom)
	if err != nil {
		return Debt{}, err
	}
	rec, _, err := e.loadDebt(ctx, userID{addr: user, accountID: accountID}, denom)
	if err != nil {
		return Debt{}, err
	}
	return debtView(m, denom, rec)
}

func debtView(m Market, denom string, rec debtRecord) (Debt, error) {
	scaled := types.BigToInt(rec.AmountScaled)
	amount, err := ToUnderlying(scaled, m.BorrowIndex, Ceil)
	if err != nil {
		return Debt{}, err
	}
	return Debt{Denom: denom, AmountScaled: scaled, Amount: amount, Uncollateralized: rec.Uncollateralized}, nil
}

// UserDebts lists every debt of (user, accountID).
func (e *Engine) UserDebts(ctx *core.Context, user, accountID string) ([]Debt, error) {
	cache := marketCache{}
	var out []Debt
	err := e.iterate(ctx, debtPrefix, userID{addr: user, accountID: accountID}, func(denom string, value []byte) error {
		var rec debtRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return err
		}
		m, err := e.cachedMarket(ctx, cache, denom)
		if err != nil {
			return err
		}
		d, err := debtView(m, denom, rec)
		if err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	return out, err
}

// UserPosition returns the positions and health of (user, accountID).
func (e *Engine) UserPosition(ctx *core.Context, user, accountID string) (UserPosition, error) {
	colls, err := e.UserCollaterals(ctx, user, accountID)
	if err != nil {
		return UserPosition{}, err
	}
	debts, err := e.UserDebts(ctx, user, accountID)
	if err != nil {
		return UserPosition{}, err
	}
	values, err := e.healthOf(ctx, userID{addr: user, accountID: accountID}, oracle.KindDefault)
	if err != nil {
		return UserPosition{}, err
	}
	return UserPosition{Collaterals: colls, Debts: debts, Health: values}, nil
}

// UncollateralizedLoanLimit returns the credit line of user in denom.
func (e *Engine) UncollateralizedLoanLimit(ctx *core.Context, user, denom string) (sdkmath.Int, error) {
	return e.uncollateralizedLimit(ctx, user, denom)
}

// UnderlyingLiquidityAmount converts a scaled collateral amount to
// underlying units at the current index.
func (e *Engine) UnderlyingLiquidityAmount(ctx *core.Context, denom string, scaled sdkmath.Int) (sdkmath.Int, error) {
	m, err := e.marketNow(ctx, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return ToUnderlying(scaled, m.LiquidityIndex, Truncate)
}

// UnderlyingDebtAmount converts a scaled debt amount to underlying units.
func (e *Engine) UnderlyingDebtAmount(ctx *core.Context, denom string, scaled sdkmath.Int) (sdkmath.Int, error) {
	m, err := e.marketNow(ctx, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return ToUnderlying(scaled, m.BorrowIndex, Ceil)
}

// ScaledLiquidityAmount converts an underlying deposit to scaled units.
func (e *Engine) ScaledLiquidityAmount(ctx *core.Context, denom string, amount sdkmath.Int) (sdkmath.Int, error) {
	m, err := e.marketNow(ctx, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return ToScaled(amount, m.LiquidityIndex, Truncate)
}

// ScaledDebtAmount converts an underlying borrow to scaled units.
func (e *Engine) ScaledDebtAmount(ctx *core.Context, denom string, amount sdkmath.Int) (sdkmath.Int, error) {
	m, err := e.marketNow(ctx, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return ToScaled(amount, m.BorrowIndex, Ceil)
}

// AvailableLiquidity returns what can currently be borrowed or withdrawn.
func (e *Engine) AvailableLiquidity(ctx *core.Context, denom string) (sdkmath.Int, error) {
	m, err := e.marketNow(ctx, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return m.AvailableLiquidity()
}

// UserCollateralScaled implements incentives.CollateralView.
func (e *Engine) UserCollateralScaled(ctx *core.Context, user, accountID, denom string) (sdkmath.Int, error) {
	rec, _, err := e.loadCollateral(ctx, userID{addr: user, accountID: accountID}, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return types.BigToInt(rec.AmountScaled), nil
}

// TotalCollateralScaled implements incentives.CollateralView.
func (e *Engine) TotalCollateralScaled(ctx *core.Context, denom string) (sdkmath.Int, error) {
	m, err := e.loadMarket(ctx, denom)
	if errors.Is(err, cerrors.ErrAssetNotInitialized) {
		return sdkmath.ZeroInt(), nil
	}
	if err != nil {
		return sdkmath.Int{}, err
	}
	return m.CollateralTotalScaled, nil
}
