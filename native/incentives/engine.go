package incentives

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/state"
	"creditchain/core/types"
	"creditchain/native/common"
)

const (
	emissionPrefix = "incentives/emission/"
	indexPrefix    = "incentives/index/"
	userPrefix     = "incentives/user/"
	lpTotalPrefix  = "incentives/lp/total/"
	lpStakePrefix  = "incentives/lp/stake/"
	lpIndexPrefix  = "incentives/lp/index/"
	lpUserPrefix   = "incentives/lp/user/"
)

var ownerKey = []byte("incentives/owner")

// CollateralView exposes the scaled collateral balances of the money market.
type CollateralView interface {
	UserCollateralScaled(ctx *core.Context, user, accountID, denom string) (sdkmath.Int, error)
	TotalCollateralScaled(ctx *core.Context, denom string) (sdkmath.Int, error)
}

// Engine distributes collateral incentives and LP staking rewards. Both use
// a cumulative per-unit index so that accrual is independent of the number
// of participants.
type Engine struct {
	addrs      common.Addresses
	collateral CollateralView
}

// NewEngine returns the incentives engine.
func NewEngine(addrs common.Addresses) *Engine {
	return &Engine{addrs: addrs}
}

// SetCollateralView wires the money-market balances used by claims.
func (e *Engine) SetCollateralView(v CollateralView) { e.collateral = v }

// InitGenesis stores the owner.
func (e *Engine) InitGenesis(ctx *core.Context, owner string) error {
	return ctx.Store().KVPut(ownerKey, owner)
}

// Execute implements core.Handler.
func (e *Engine) Execute(ctx *core.Context, info core.MessageInfo, msg any) (*core.Response, error) {
	switch m := msg.(type) {
	case BalanceChange:
		if info.Sender != e.addrs.RedBank {
			return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "incentives: balance change from %s", info.Sender)
		}
		return core.NewResponse(), e.balanceChange(ctx, m)
	case SetAssetIncentive:
		return e.setAssetIncentive(ctx, info, m)
	case ClaimRewards:
		return e.claim(ctx, info.Sender, m.AccountID)
	case StakeLp:
		return e.stake(ctx, info, m)
	case UnstakeLp:
		return e.unstake(ctx, info, m)
	case FundLpRewards:
		return e.fundLp(ctx, info, m)
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "incentives: %T", msg)
	}
}

func (e *Engine) owner(ctx *core.Context) (string, error) {
	var owner string
	if _, err := ctx.Store().KVGet(ownerKey, &owner); err != nil {
		return "", err
	}
	return owner, nil
}

func (e *Engine) setAssetIncentive(ctx *core.Context, info core.MessageInfo, m SetAssetIncentive) (*core.Response, error) {
	owner, err := e.owner(ctx)
	if err != nil {
		return nil, err
	}
	if info.Sender != owner {
		return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "incentives: %s is not the owner", info.Sender)
	}
	if m.EmissionPerSecond.IsNil() || !m.EmissionPerSecond.IsPositive() || m.Duration == 0 {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "incentives: emission and duration must be positive")
	}
	budget := m.EmissionPerSecond.MulRaw(int64(m.Duration))
	if !info.Funds.AmountOf(m.RewardDenom).Equal(budget) || len(info.Funds) != 1 {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "incentives: expected %s%s attached", budget, m.RewardDenom)
	}
	start := m.StartTime
	if start < ctx.BlockTime() {
		start = ctx.BlockTime()
	}
	if e.collateral == nil {
		return nil, fmt.Errorf("incentives: collateral view not configured")
	}
	total, err := e.collateral.TotalCollateralScaled(ctx, m.CollateralDenom)
	if err != nil {
		return nil, err
	}
	existing, ok, err := e.emission(ctx, m.CollateralDenom, m.RewardDenom)
	if err != nil {
		return nil, err
	}
	if ok && existing.End > ctx.BlockTime() {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "incentives: %s emission for %s still running", m.RewardDenom, m.CollateralDenom)
	}
	// settle the index under the old schedule before replacing it
	if _, err := e.updateIndex(ctx, m.CollateralDenom, m.RewardDenom, total, true); err != nil {
		return nil, err
	}
	rec := emissionRecord{PerSecond: types.IntToBig(m.EmissionPerSecond), Start: start, End: start + m.Duration}
	if err := ctx.Store().KVPut(state.Key(emissionPrefix, m.CollateralDenom, m.RewardDenom), rec); err != nil {
		return nil, err
	}
	return core.NewResponse(), nil
}

func (e *Engine) emission(ctx *core.Context, collateral, reward string) (emissionRecord, bool, error) {
	var rec emissionRecord
	ok, err := ctx.Store().KVGet(state.Key(emissionPrefix, collateral, reward), &rec)
	return rec, ok, err
}

// rewardDenoms lists the reward streams configured for a collateral denom.
func (e *Engine) rewardDenoms(ctx *core.Context, collateral string) ([]string, error) {
	var out []string
	err := ctx.Store().KVIterate(state.Key(emissionPrefix, collateral), func(key, _ []byte) error {
		parts := state.SplitKey(emissionPrefix, key)
		if len(parts) == 2 {
			out = append(out, parts[1])
		}
		return nil
	})
	return out, err
}

// Emissions lists every configured stream.
func (e *Engine) Emissions(ctx *core.Context) ([]Emission, error) {
	var out []Emission
	err := ctx.Store().KVIterate([]byte(emissionPrefix), func(key, value []byte) error {
		parts := state.SplitKey(emissionPrefix, key)
		if len(parts) != 2 {
			return fmt.Errorf("incentives: malformed key %q", key)
		}
		var rec emissionRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return err
		}
		out = append(out, Emission{
			CollateralDenom:   parts[0],
			RewardDenom:       parts[1],
			EmissionPerSecond: types.BigToInt(rec.PerSecond),
			StartTime:         rec.Start,
			EndTime:           rec.End,
		})
		return nil
	})
	return out, err
}

// updateIndex advances the per-unit index of (collateral, reward) to the
// current block time. When persist is false the result is computed only.
func (e *Engine) updateIndex(ctx *core.Context, collateral, reward string, totalScaled sdkmath.Int, persist bool) (sdkmath.LegacyDec, error) {
	key := state.Key(indexPrefix, collateral, reward)
	var rec indexRecord
	if _, err := ctx.Store().KVGet(key, &rec); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	index := types.BigToDec(rec.Index)
	em, ok, err := e.emission(ctx, collateral, reward)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	now := ctx.BlockTime()
	if ok && totalScaled.IsPositive() {
		from, to := rec.LastUpdated, now
		if from < em.Start {
			from = em.Start
		}
		if to > em.End {
			to = em.End
		}
		if to > from {
			emitted := types.BigToInt(em.PerSecond).MulRaw(int64(to - from))
			index = index.Add(sdkmath.LegacyNewDecFromInt(emitted).QuoInt(totalScaled))
		}
	}
	if persist {
		rec = indexRecord{Index: types.DecToBig(index), LastUpdated: now}
		if err := ctx.Store().KVPut(key, rec); err != nil {
			return sdkmath.LegacyDec{}, err
		}
	}
	return index, nil
}

func (e *Engine) loadUser(ctx *core.Context, key []byte) (userReward, error) {
	var rec userRecord
	if _, err := ctx.Store().KVGet(key, &rec); err != nil {
		return userReward{}, err
	}
	return rec.decode(), nil
}

func accrue(u userReward, index sdkmath.LegacyDec, amount sdkmath.Int) userReward {
	if index.GT(u.index) && amount.IsPositive() {
		u.unclaimed = u.unclaimed.Add(index.Sub(u.index).MulInt(amount).TruncateInt())
	}
	u.index = index
	return u
}

func (e *Engine) balanceChange(ctx *core.Context, m BalanceChange) error {
	rewards, err := e.rewardDenoms(ctx, m.Denom)
	if err != nil {
		return err
	}
	for _, reward := range rewards {
		index, err := e.updateIndex(ctx, m.Denom, reward, m.TotalAmountScaledBefore, true)
		if err != nil {
			return err
		}
		key := state.Key(userPrefix, m.UserAddr, m.AccountID, m.Denom, reward)
		u, err := e.loadUser(ctx, key)
		if err != nil {
			return err
		}
		if err := ctx.Store().KVPut(key, accrue(u, index, m.UserAmountScaledBefore).encode()); err != nil {
			return err
		}
	}
	return nil
}

// collectCollateral accrues and optionally zeroes every collateral reward of
// (user, accountID).
func (e *Engine) collectCollateral(ctx *core.Context, user, accountID string, persist bool) (types.Coins, error) {
	emissions, err := e.Emissions(ctx)
	if err != nil {
		return nil, err
	}
	if len(emissions) > 0 && e.collateral == nil {
		return nil, fmt.Errorf("incentives: collateral view not configured")
	}
	var out types.Coins
	for _, em := range emissions {
		total, err := e.collateral.TotalCollateralScaled(ctx, em.CollateralDenom)
		if err != nil {
			return nil, err
		}
		userScaled, err := e.collateral.UserCollateralScaled(ctx, user, accountID, em.CollateralDenom)
		if err != nil {
			return nil, err
		}
		index, err := e.updateIndex(ctx, em.CollateralDenom, em.RewardDenom, total, persist)
		if err != nil {
			return nil, err
		}
		key := state.Key(userPrefix, user, accountID, em.CollateralDenom, em.RewardDenom)
		u, err := e.loadUser(ctx, key)
		if err != nil {
			return nil, err
		}
		u = accrue(u, index, userScaled)
		out = out.Add(types.NewCoin(em.RewardDenom, u.unclaimed))
		if persist {
			u.unclaimed = sdkmath.ZeroInt()
			if err := ctx.Store().KVPut(key, u.encode()); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (e *Engine) claim(ctx *core.Context, user, accountID string) (*core.Response, error) {
	if accountID != "" && user != e.addrs.CreditManager {
		return nil, errorsmod.Wrap(cerrors.ErrUnauthorized, "incentives: account ids are reserved for the credit manager")
	}
	rewards, err := e.collectCollateral(ctx, user, accountID, true)
	if err != nil {
		return nil, err
	}
	lpRewards, err := e.collectLp(ctx, user, accountID, true)
	if err != nil {
		return nil, err
	}
	rewards = rewards.Add(lpRewards...)
	resp := core.NewResponse()
	if !rewards.Empty() {
		resp.AddBankSend(user, rewards...)
		ctx.EmitEvent(events.RewardsClaimed{User: user, AccountID: accountID, Amount: rewards})
	}
	return resp, nil
}

// UnclaimedRewards returns what ClaimRewards would pay now.
func (e *Engine) UnclaimedRewards(ctx *core.Context, user, accountID string) (types.Coins, error) {
	rewards, err := e.collectCollateral(ctx, user, accountID, false)
	if err != nil {
		return nil, err
	}
	lpRewards, err := e.collectLp(ctx, user, accountID, false)
	if err != nil {
		return nil, err
	}
	return rewards.Add(lpRewards...), nil
}
