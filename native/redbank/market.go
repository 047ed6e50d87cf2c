package redbank

import (
	"fmt"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/state"
	"creditchain/core/types"
	"creditchain/native/incentives"
	"creditchain/observability"
)

// Market is the per-denom lending state.
type Market struct {
	Denom                 string            `json:"denom"`
	LiquidityIndex        sdkmath.LegacyDec `json:"liquidity_index"`
	BorrowIndex           sdkmath.LegacyDec `json:"borrow_index"`
	LiquidityRate         sdkmath.LegacyDec `json:"liquidity_rate"`
	BorrowRate            sdkmath.LegacyDec `json:"borrow_rate"`
	ReserveFactor         sdkmath.LegacyDec `json:"reserve_factor"`
	CollateralTotalScaled sdkmath.Int       `json:"collateral_total_scaled"`
	DebtTotalScaled       sdkmath.Int       `json:"debt_total_scaled"`
	IndexesLastUpdated    uint64            `json:"indexes_last_updated"`
	InterestRateModel     InterestRateModel `json:"interest_rate_model"`
}

type marketRecord struct {
	Denom                 string
	LiquidityIndex        *big.Int
	BorrowIndex           *big.Int
	LiquidityRate         *big.Int
	BorrowRate            *big.Int
	ReserveFactor         *big.Int
	CollateralTotalScaled *big.Int
	DebtTotalScaled       *big.Int
	IndexesLastUpdated    uint64
	OptimalUtilization    *big.Int
	Base                  *big.Int
	Slope1                *big.Int
	Slope2                *big.Int
}

func (m Market) record() marketRecord {
	return marketRecord{
		Denom:                 m.Denom,
		LiquidityIndex:        types.DecToBig(m.LiquidityIndex),
		BorrowIndex:           types.DecToBig(m.BorrowIndex),
		LiquidityRate:         types.DecToBig(m.LiquidityRate),
		BorrowRate:            types.DecToBig(m.BorrowRate),
		ReserveFactor:         types.DecToBig(m.ReserveFactor),
		CollateralTotalScaled: types.IntToBig(m.CollateralTotalScaled),
		DebtTotalScaled:       types.IntToBig(m.DebtTotalScaled),
		IndexesLastUpdated:    m.IndexesLastUpdated,
		OptimalUtilization:    types.DecToBig(m.InterestRateModel.OptimalUtilizationRate),
		Base:                  types.DecToBig(m.InterestRateModel.Base),
		Slope1:                types.DecToBig(m.InterestRateModel.Slope1),
		Slope2:                types.DecToBig(m.InterestRateModel.Slope2),
	}
}

func (r marketRecord) market() Market {
	return Market{
		Denom:                 r.Denom,
		LiquidityIndex:        types.BigToDec(r.LiquidityIndex),
		BorrowIndex:           types.BigToDec(r.BorrowIndex),
		LiquidityRate:         types.BigToDec(r.LiquidityRate),
		BorrowRate:            types.BigToDec(r.BorrowRate),
		ReserveFactor:         types.BigToDec(r.ReserveFactor),
		CollateralTotalScaled: types.BigToInt(r.CollateralTotalScaled),
		DebtTotalScaled:       types.BigToInt(r.DebtTotalScaled),
		IndexesLastUpdated:    r.IndexesLastUpdated,
		InterestRateModel: InterestRateModel{
			OptimalUtilizationRate: types.BigToDec(r.OptimalUtilization),
			Base:                   types.BigToDec(r.Base),
			Slope1:                 types.BigToDec(r.Slope1),
			Slope2:                 types.BigToDec(r.Slope2),
		},
	}
}

// UnderlyingCollateral returns the total deposited amount, rounded down.
func (m Market) UnderlyingCollateral() (sdkmath.Int, error) {
	return ToUnderlying(m.CollateralTotalScaled, m.LiquidityIndex, Truncate)
}

// UnderlyingDebt returns the total borrowed amount, rounded up.
func (m Market) UnderlyingDebt() (sdkmath.Int, error) {
	return ToUnderlying(m.DebtTotalScaled, m.BorrowIndex, Ceil)
}

// AvailableLiquidity is the collateral not lent out. Coins sent to the
// module outside of Deposit are not counted.
func (m Market) AvailableLiquidity() (sdkmath.Int, error) {
	coll, err := m.UnderlyingCollateral()
	if err != nil {
		return sdkmath.Int{}, err
	}
	debt, err := m.UnderlyingDebt()
	if err != nil {
		return sdkmath.Int{}, err
	}
	if debt.GTE(coll) {
		return sdkmath.ZeroInt(), nil
	}
	return coll.Sub(debt), nil
}

// Utilization returns debt over collateral, capped at one.
func (m Market) Utilization() (sdkmath.LegacyDec, error) {
	coll, err := m.UnderlyingCollateral()
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if coll.IsZero() {
		return sdkmath.LegacyZeroDec(), nil
	}
	debt, err := m.UnderlyingDebt()
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	u := sdkmath.LegacyNewDecFromInt(debt).QuoInt(coll)
	return sdkmath.LegacyMinDec(u, sdkmath.LegacyOneDec()), nil
}

// updateRates recomputes both rates from the current utilization.
func (m *Market) updateRates() error {
	u, err := m.Utilization()
	if err != nil {
		return err
	}
	m.BorrowRate, m.LiquidityRate = m.InterestRateModel.Rates(u, m.ReserveFactor)
	return nil
}

// accrued returns the market with indexes advanced to now and the protocol
// reward owed to the rewards collector in underlying units.
func (m Market) accrued(now uint64) (Market, sdkmath.Int, error) {
	if now <= m.IndexesLastUpdated {
		return m, sdkmath.ZeroInt(), nil
	}
	elapsed := now - m.IndexesLastUpdated
	next := m
	next.BorrowIndex = accrueIndex(m.BorrowIndex, m.BorrowRate, elapsed)
	next.LiquidityIndex = accrueIndex(m.LiquidityIndex, m.LiquidityRate, elapsed)
	next.IndexesLastUpdated = now

	reward := sdkmath.ZeroInt()
	if m.ReserveFactor.IsPositive() && m.DebtTotalScaled.IsPositive() {
		before, err := ToUnderlying(m.DebtTotalScaled, m.BorrowIndex, Truncate)
		if err != nil {
			return Market{}, sdkmath.Int{}, err
		}
		after, err := ToUnderlying(m.DebtTotalScaled, next.BorrowIndex, Truncate)
		if err != nil {
			return Market{}, sdkmath.Int{}, err
		}
		if after.GT(before) {
			reward = m.ReserveFactor.MulInt(after.Sub(before)).TruncateInt()
		}
	}
	return next, reward, nil
}

func (e *Engine) loadMarket(ctx *core.Context, denom string) (Market, error) {
	var rec marketRecord
	ok, err := ctx.Store().KVGet(state.Key(marketPrefix, denom), &rec)
	if err != nil {
		return Market{}, fmt.Errorf("redbank: load market: %w", err)
	}
	if !ok {
		return Market{}, errorsmod.Wrapf(cerrors.ErrAssetNotInitialized, "market %s", denom)
	}
	return rec.market(), nil
}

func (e *Engine) saveMarket(ctx *core.Context, m Market) error {
	return ctx.Store().KVPut(state.Key(marketPrefix, m.Denom), m.record())
}

// accrue advances the stored market to the block time and mints the
// protocol reward to the rewards collector.
func (e *Engine) accrue(ctx *core.Context, resp *core.Response, denom string) (Market, error) {
	m, err := e.loadMarket(ctx, denom)
	if err != nil {
		return Market{}, err
	}
	next, reward, err := m.accrued(ctx.BlockTime())
	if err != nil {
		return Market{}, err
	}
	if next.IndexesLastUpdated == m.IndexesLastUpdated {
		return m, nil
	}
	if reward.IsPositive() {
		scaled, err := ToScaled(reward, next.LiquidityIndex, Truncate)
		if err != nil {
			return Market{}, err
		}
		if scaled.IsPositive() {
			collector := userID{addr: e.addrs.RewardsCollector}
			if err := e.addCollateral(ctx, resp, &next, collector, scaled, false); err != nil {
				return Market{}, err
			}
		}
	}
	if err := e.saveMarket(ctx, next); err != nil {
		return Market{}, err
	}
	observability.Protocol().RecordAccrual(denom)
	ctx.EmitEvent(events.InterestAccrued{
		Denom:          denom,
		BorrowIndex:    next.BorrowIndex,
		LiquidityIndex: next.LiquidityIndex,
		ProtocolReward: reward,
	})
	return next, nil
}

// finish recomputes rates and stores the market after a mutation.
func (e *Engine) finish(ctx *core.Context, m *Market) error {
	if err := m.updateRates(); err != nil {
		return err
	}
	return e.saveMarket(ctx, *m)
}

// marketNow returns the market as it would be after accrual at the current
// block time, without writing anything.
func (e *Engine) marketNow(ctx *core.Context, denom string) (Market, error) {
	m, err := e.loadMarket(ctx, denom)
	if err != nil {
		return Market{}, err
	}
	next, _, err := m.accrued(ctx.BlockTime())
	return next, err
}

// Markets lists every market at the current block time.
func (e *Engine) Markets(ctx *core.Context) ([]Market, error) {
	var denoms []string
	err := ctx.Store().KVIterate([]byte(marketPrefix), func(key, _ []byte) error {
		parts := state.SplitKey(marketPrefix, key)
		if len(parts) == 1 {
			denoms = append(denoms, parts[0])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Market, 0, len(denoms))
	for _, d := range denoms {
		m, err := e.marketNow(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func balanceChange(user userID, denom string, userBefore, totalBefore sdkmath.Int) incentives.BalanceChange {
	return incentives.BalanceChange{
		UserAddr:                user.addr,
		AccountID:               user.accountID,
		Denom:                   denom,
		UserAmountScaledBefore:  userBefore,
		TotalAmountScaledBefore: totalBefore,
	}
}
