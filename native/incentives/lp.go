package incentives

import (
	"fmt"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/state"
	"creditchain/core/types"
)

func (e *Engine) requireCreditManager(sender string) error {
	if sender != e.addrs.CreditManager {
		return errorsmod.Wrapf(cerrors.ErrUnauthorized, "incentives: lp staking is reserved for the credit manager, got %s", sender)
	}
	return nil
}

func (e *Engine) loadInt(ctx *core.Context, key []byte) (sdkmath.Int, error) {
	var raw *big.Int
	if _, err := ctx.Store().KVGet(key, &raw); err != nil {
		return sdkmath.Int{}, err
	}
	return types.BigToInt(raw), nil
}

func (e *Engine) storeInt(ctx *core.Context, key []byte, v sdkmath.Int) error {
	if v.IsZero() {
		return ctx.Store().KVDelete(key)
	}
	return ctx.Store().KVPut(key, types.IntToBig(v))
}

// lpRewardDenoms lists reward denoms ever funded for lpDenom.
func (e *Engine) lpRewardDenoms(ctx *core.Context, lpDenom string) ([]string, error) {
	var out []string
	err := ctx.Store().KVIterate(state.Key(lpIndexPrefix, lpDenom), func(key, _ []byte) error {
		if parts := state.SplitKey(lpIndexPrefix, key); len(parts) == 2 {
			out = append(out, parts[1])
		}
		return nil
	})
	return out, err
}

func (e *Engine) lpIndex(ctx *core.Context, lpDenom, reward string) (sdkmath.LegacyDec, error) {
	var raw *big.Int
	if _, err := ctx.Store().KVGet(state.Key(lpIndexPrefix, lpDenom, reward), &raw); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return types.BigToDec(raw), nil
}

// settleLp brings every reward stream of one stake up to date.
func (e *Engine) settleLp(ctx *core.Context, user, accountID, lpDenom string, staked sdkmath.Int, claim bool) (types.Coins, error) {
	rewards, err := e.lpRewardDenoms(ctx, lpDenom)
	if err != nil {
		return nil, err
	}
	var out types.Coins
	for _, reward := range rewards {
		index, err := e.lpIndex(ctx, lpDenom, reward)
		if err != nil {
			return nil, err
		}
		key := state.Key(lpUserPrefix, user, accountID, lpDenom, reward)
		u, err := e.loadUser(ctx, key)
		if err != nil {
			return nil, err
		}
		u = accrue(u, index, staked)
		out = out.Add(types.NewCoin(reward, u.unclaimed))
		if claim {
			u.unclaimed = sdkmath.ZeroInt()
		}
		if err := ctx.Store().KVPut(key, u.encode()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *Engine) stake(ctx *core.Context, info core.MessageInfo, m StakeLp) (*core.Response, error) {
	if err := e.requireCreditManager(info.Sender); err != nil {
		return nil, err
	}
	if len(info.Funds) != 1 {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "incentives: stake exactly one lp coin")
	}
	coin := info.Funds[0]
	stakeKey := state.Key(lpStakePrefix, info.Sender, m.AccountID, coin.Denom)
	staked, err := e.loadInt(ctx, stakeKey)
	if err != nil {
		return nil, err
	}
	if _, err := e.settleLp(ctx, info.Sender, m.AccountID, coin.Denom, staked, false); err != nil {
		return nil, err
	}
	if err := e.storeInt(ctx, stakeKey, staked.Add(coin.Amount)); err != nil {
		return nil, err
	}
	totalKey := state.Key(lpTotalPrefix, coin.Denom)
	total, err := e.loadInt(ctx, totalKey)
	if err != nil {
		return nil, err
	}
	if err := e.storeInt(ctx, totalKey, total.Add(coin.Amount)); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.LpStaked{AccountID: m.AccountID, Coin: coin})
	return core.NewResponse(), nil
}

func (e *Engine) unstake(ctx *core.Context, info core.MessageInfo, m UnstakeLp) (*core.Response, error) {
	if err := e.requireCreditManager(info.Sender); err != nil {
		return nil, err
	}
	stakeKey := state.Key(lpStakePrefix, info.Sender, m.AccountID, m.LpCoin.Denom)
	staked, err := e.loadInt(ctx, stakeKey)
	if err != nil {
		return nil, err
	}
	if m.LpCoin.Amount.IsNil() || !m.LpCoin.Amount.IsPositive() || staked.LT(m.LpCoin.Amount) {
		return nil, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "incentives: staked %s%s", staked, m.LpCoin.Denom)
	}
	if _, err := e.settleLp(ctx, info.Sender, m.AccountID, m.LpCoin.Denom, staked, false); err != nil {
		return nil, err
	}
	if err := e.storeInt(ctx, stakeKey, staked.Sub(m.LpCoin.Amount)); err != nil {
		return nil, err
	}
	totalKey := state.Key(lpTotalPrefix, m.LpCoin.Denom)
	total, err := e.loadInt(ctx, totalKey)
	if err != nil {
		return nil, err
	}
	if err := e.storeInt(ctx, totalKey, total.Sub(m.LpCoin.Amount)); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.LpUnstaked{AccountID: m.AccountID, Coin: m.LpCoin})
	return core.NewResponse().AddBankSend(info.Sender, m.LpCoin), nil
}

func (e *Engine) fundLp(ctx *core.Context, info core.MessageInfo, m FundLpRewards) (*core.Response, error) {
	if info.Funds.Empty() {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "incentives: no rewards attached")
	}
	total, err := e.loadInt(ctx, state.Key(lpTotalPrefix, m.LpDenom))
	if err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "incentives: nothing staked in %s", m.LpDenom)
	}
	for _, c := range info.Funds {
		index, err := e.lpIndex(ctx, m.LpDenom, c.Denom)
		if err != nil {
			return nil, err
		}
		index = index.Add(sdkmath.LegacyNewDecFromInt(c.Amount).QuoInt(total))
		if err := ctx.Store().KVPut(state.Key(lpIndexPrefix, m.LpDenom, c.Denom), types.DecToBig(index)); err != nil {
			return nil, err
		}
	}
	return core.NewResponse(), nil
}

// collectLp accrues every LP reward of (user, accountID), including rewards
// left behind by stakes that were fully withdrawn.
func (e *Engine) collectLp(ctx *core.Context, user, accountID string, claim bool) (types.Coins, error) {
	records := make(map[string]userReward)
	var order []string
	err := ctx.Store().KVIterate(state.Key(lpUserPrefix, user, accountID), func(key, value []byte) error {
		var rec userRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return err
		}
		records[string(key)] = rec.decode()
		order = append(order, string(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	stakes, err := e.StakedLpPositions(ctx, user, accountID)
	if err != nil {
		return nil, err
	}
	for _, s := range stakes {
		rewards, err := e.lpRewardDenoms(ctx, s.Denom)
		if err != nil {
			return nil, err
		}
		for _, reward := range rewards {
			index, err := e.lpIndex(ctx, s.Denom, reward)
			if err != nil {
				return nil, err
			}
			key := string(state.Key(lpUserPrefix, user, accountID, s.Denom, reward))
			u, ok := records[key]
			if !ok {
				u = userReward{index: sdkmath.LegacyZeroDec(), unclaimed: sdkmath.ZeroInt()}
				order = append(order, key)
			}
			records[key] = accrue(u, index, s.Amount)
		}
	}
	var out types.Coins
	for _, key := range order {
		u := records[key]
		parts := state.SplitKey(lpUserPrefix, []byte(key))
		if len(parts) != 4 {
			return nil, fmt.Errorf("incentives: malformed lp reward key %q", key)
		}
		out = out.Add(types.NewCoin(parts[3], u.unclaimed))
		if claim {
			u.unclaimed = sdkmath.ZeroInt()
			if err := ctx.Store().KVPut([]byte(key), u.encode()); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// StakedLp returns the staked amount of lpDenom.
func (e *Engine) StakedLp(ctx *core.Context, user, accountID, lpDenom string) (sdkmath.Int, error) {
	return e.loadInt(ctx, state.Key(lpStakePrefix, user, accountID, lpDenom))
}

// StakedLpPositions lists every LP stake of (user, accountID).
func (e *Engine) StakedLpPositions(ctx *core.Context, user, accountID string) (types.Coins, error) {
	var out types.Coins
	err := ctx.Store().KVIterate(state.Key(lpStakePrefix, user, accountID), func(key, value []byte) error {
		parts := state.SplitKey(lpStakePrefix, key)
		if len(parts) != 3 {
			return fmt.Errorf("incentives: malformed stake key %q", key)
		}
		var raw *big.Int
		if err := rlp.DecodeBytes(value, &raw); err != nil {
			return err
		}
		out = append(out, types.NewCoin(parts[2], types.BigToInt(raw)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return types.NewCoins(out...), nil
}
