package creditmanager

import (
	"fmt"
	"math/big"
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/state"
	"creditchain/core/types"
)

const (
	kindPrefix  = "cm/kind/"
	coinPrefix  = "cm/coin/"
	vaultPrefix = "cm/vault/"
)

var configKey = []byte("cm/config")

// Config returns the stored configuration.
func (e *Engine) Config(ctx *core.Context) (Config, error) {
	var rec configRecord
	ok, err := ctx.Store().KVGet(configKey, &rec)
	if err != nil {
		return Config{}, fmt.Errorf("creditmanager: load config: %w", err)
	}
	if !ok {
		return Config{}, fmt.Errorf("creditmanager: config not initialised")
	}
	return rec.config(), nil
}

func (e *Engine) storeConfig(ctx *core.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return ctx.Store().KVPut(configKey, cfg.record())
}

// AccountKind returns the kind of an account or ErrAccountNotFound.
func (e *Engine) AccountKind(ctx *core.Context, accountID string) (AccountKind, error) {
	var rec kindRecord
	ok, err := ctx.Store().KVGet(state.Key(kindPrefix, accountID), &rec)
	if err != nil {
		return AccountKind{}, fmt.Errorf("creditmanager: load kind: %w", err)
	}
	if !ok {
		return AccountKind{}, errorsmod.Wrapf(cerrors.ErrAccountNotFound, "credit account %s", accountID)
	}
	return AccountKind{Type: KindType(rec.Type), VaultAddr: rec.VaultAddr}, nil
}

func (e *Engine) setAccountKind(ctx *core.Context, accountID string, kind AccountKind) error {
	return ctx.Store().KVPut(state.Key(kindPrefix, accountID), kindRecord{Type: uint8(kind.Type), VaultAddr: kind.VaultAddr})
}

func coinKey(accountID, denom string) []byte {
	return state.Key(coinPrefix, accountID, denom)
}

func (e *Engine) coinBalance(ctx *core.Context, accountID, denom string) (sdkmath.Int, error) {
	var raw *big.Int
	if _, err := ctx.Store().KVGet(coinKey(accountID, denom), &raw); err != nil {
		return sdkmath.Int{}, fmt.Errorf("creditmanager: load balance: %w", err)
	}
	return types.BigToInt(raw), nil
}

func (e *Engine) setCoinBalance(ctx *core.Context, accountID, denom string, amount sdkmath.Int) error {
	if amount.IsZero() {
		return ctx.Store().KVDelete(coinKey(accountID, denom))
	}
	return ctx.Store().KVPut(coinKey(accountID, denom), types.IntToBig(amount))
}

// coinBalances lists the deposited coins of an account ordered by denom.
func (e *Engine) coinBalances(ctx *core.Context, accountID string) (types.Coins, error) {
	var out types.Coins
	err := ctx.Store().KVIterate(state.Key(coinPrefix, accountID), func(key, value []byte) error {
		parts := state.SplitKey(coinPrefix, key)
		if len(parts) != 2 {
			return fmt.Errorf("creditmanager: malformed key %q", key)
		}
		var raw *big.Int
		if err := rlp.DecodeBytes(value, &raw); err != nil {
			return err
		}
		out = append(out, types.NewCoin(parts[1], types.BigToInt(raw)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return types.NewCoins(out...), nil
}

func (e *Engine) incrementCoin(ctx *core.Context, accountID string, coin types.Coin) error {
	if coin.Amount.IsZero() {
		return nil
	}
	current, err := e.coinBalance(ctx, accountID, coin.Denom)
	if err != nil {
		return err
	}
	return e.setCoinBalance(ctx, accountID, coin.Denom, current.Add(coin.Amount))
}

func (e *Engine) decrementCoin(ctx *core.Context, accountID string, coin types.Coin) error {
	current, err := e.coinBalance(ctx, accountID, coin.Denom)
	if err != nil {
		return err
	}
	if current.LT(coin.Amount) {
		return errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "account %s holds %s%s, needs %s", accountID, current, coin.Denom, coin.Amount)
	}
	return e.setCoinBalance(ctx, accountID, coin.Denom, current.Sub(coin.Amount))
}

// resolveCoin turns an ActionCoin into an exact coin bounded by the
// account balance.
func (e *Engine) resolveCoin(ctx *core.Context, accountID string, c ActionCoin) (types.Coin, error) {
	balance, err := e.coinBalance(ctx, accountID, c.Denom)
	if err != nil {
		return types.Coin{}, err
	}
	amount := c.Amount.resolve(balance)
	if !amount.IsPositive() {
		return types.Coin{}, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "account %s holds no %s", accountID, c.Denom)
	}
	if amount.GT(balance) {
		return types.Coin{}, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "account %s holds %s%s, needs %s", accountID, balance, c.Denom, amount)
	}
	return types.NewCoin(c.Denom, amount), nil
}

func vaultKey(accountID, vault string) []byte {
	return state.Key(vaultPrefix, accountID, vault)
}

func (r vaultRecord) position(vault, baseDenom string) VaultPosition {
	pos := VaultPosition{
		Vault:    vault,
		Unlocked: types.BigToInt(r.Unlocked),
		Locked:   types.BigToInt(r.Locked),
	}
	for _, u := range r.Unlocking {
		pos.Unlocking = append(pos.Unlocking, UnlockingPosition{
			ID:        u.ID,
			Coin:      types.NewCoin(baseDenom, types.BigToInt(u.Amount)),
			ReleaseAt: u.ReleaseAt,
		})
	}
	return pos
}

func (e *Engine) baseDenom(vault string) string {
	if v, ok := e.vaults[vault]; ok {
		return v.Config().BaseDenom
	}
	return ""
}

func (e *Engine) vaultPosition(ctx *core.Context, accountID, vault string) (VaultPosition, error) {
	var rec vaultRecord
	if _, err := ctx.Store().KVGet(vaultKey(accountID, vault), &rec); err != nil {
		return VaultPosition{}, fmt.Errorf("creditmanager: load vault position: %w", err)
	}
	return rec.position(vault, e.baseDenom(vault)), nil
}

// setVaultPosition stores pos with unlocking positions ordered by release
// time, deleting the record once it is empty.
func (e *Engine) setVaultPosition(ctx *core.Context, accountID string, pos VaultPosition) error {
	if pos.empty() {
		return ctx.Store().KVDelete(vaultKey(accountID, pos.Vault))
	}
	sortUnlocking(pos.Unlocking)
	rec := vaultRecord{Unlocked: types.IntToBig(pos.Unlocked), Locked: types.IntToBig(pos.Locked)}
	for _, u := range pos.Unlocking {
		rec.Unlocking = append(rec.Unlocking, unlockingRecord{ID: u.ID, Amount: types.IntToBig(u.Coin.Amount), ReleaseAt: u.ReleaseAt})
	}
	return ctx.Store().KVPut(vaultKey(accountID, pos.Vault), rec)
}

func (e *Engine) vaultPositions(ctx *core.Context, accountID string) ([]VaultPosition, error) {
	var out []VaultPosition
	err := ctx.Store().KVIterate(state.Key(vaultPrefix, accountID), func(key, value []byte) error {
		parts := state.SplitKey(vaultPrefix, key)
		if len(parts) != 2 {
			return fmt.Errorf("creditmanager: malformed key %q", key)
		}
		var rec vaultRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return err
		}
		out = append(out, rec.position(parts[1], e.baseDenom(parts[1])))
		return nil
	})
	return out, err
}

func sortUnlocking(list []UnlockingPosition) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].ReleaseAt != list[j].ReleaseAt {
			return list[i].ReleaseAt < list[j].ReleaseAt
		}
		return list[i].ID < list[j].ID
	})
}

// drainUnlocking takes amount from the unlocking positions in ascending
// release time, emptying each position before touching the next. It returns
// the remaining positions and the amount taken from each drained id.
func drainUnlocking(list []UnlockingPosition, amount sdkmath.Int) ([]UnlockingPosition, []UnlockingPosition, error) {
	sorted := append([]UnlockingPosition(nil), list...)
	sortUnlocking(sorted)
	left := amount
	var kept, taken []UnlockingPosition
	for _, u := range sorted {
		if !left.IsPositive() {
			kept = append(kept, u)
			continue
		}
		take := sdkmath.MinInt(left, u.Coin.Amount)
		left = left.Sub(take)
		taken = append(taken, UnlockingPosition{ID: u.ID, Coin: types.NewCoin(u.Coin.Denom, take), ReleaseAt: u.ReleaseAt})
		if rest := u.Coin.Amount.Sub(take); rest.IsPositive() {
			kept = append(kept, UnlockingPosition{ID: u.ID, Coin: types.NewCoin(u.Coin.Denom, rest), ReleaseAt: u.ReleaseAt})
		}
	}
	if left.IsPositive() {
		return nil, nil, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "unlocking positions short by %s", left)
	}
	return kept, taken, nil
}
