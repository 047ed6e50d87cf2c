package creditmanager

import (
	errorsmod "cosmossdk.io/errors"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/types"
	"creditchain/native/vaults"
)

func (e *Engine) vault(addr string) (Vault, error) {
	v, ok := e.vaults[addr]
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrNotWhitelisted, "creditmanager: unknown vault %s", addr)
	}
	return v, nil
}

func (e *Engine) enterVault(ctx *core.Context, m EnterVaultCoin) (*core.Response, error) {
	v, err := e.vault(m.Vault)
	if err != nil {
		return nil, err
	}
	vc, err := e.deps.Params.VaultConfig(ctx, m.Vault)
	if err != nil {
		return nil, err
	}
	if !vc.Whitelisted {
		return nil, errorsmod.Wrapf(cerrors.ErrNotWhitelisted, "creditmanager: vault %s", m.Vault)
	}
	info := v.Config()
	if m.Coin.Denom != info.BaseDenom {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: vault %s takes %s, not %s", m.Vault, info.BaseDenom, m.Coin.Denom)
	}
	coin, err := e.resolveCoin(ctx, m.AccountID, m.Coin)
	if err != nil {
		return nil, err
	}
	total, err := v.TotalBase(ctx)
	if err != nil {
		return nil, err
	}
	if !vc.DepositCap.Amount.IsNil() && total.Add(coin.Amount).GT(vc.DepositCap.Amount) {
		return nil, errorsmod.Wrapf(cerrors.ErrVaultDepositCapExceeded, "creditmanager: vault %s holds %s, cap %s", m.Vault, total, vc.DepositCap)
	}
	if err := e.decrementCoin(ctx, m.AccountID, coin); err != nil {
		return nil, err
	}
	prev, err := e.deps.Ledger.Balance(ctx, e.self(), info.VaultToken)
	if err != nil {
		return nil, err
	}
	resp := core.NewResponse().AddExecute(m.Vault, vaults.Deposit{}, coin)
	e.queue(resp, UpdateVaultCoinBalance{AccountID: m.AccountID, Vault: m.Vault, PreviousTotalBalance: prev})
	emitAction(ctx, m.AccountID, "enter_vault", coin)
	return resp, nil
}

// updateVaultCoinBalance credits the shares minted since the previous
// balance. Shares of vaults with a lockup start locked.
func (e *Engine) updateVaultCoinBalance(ctx *core.Context, m UpdateVaultCoinBalance) (*core.Response, error) {
	v, err := e.vault(m.Vault)
	if err != nil {
		return nil, err
	}
	info := v.Config()
	current, err := e.deps.Ledger.Balance(ctx, e.self(), info.VaultToken)
	if err != nil {
		return nil, err
	}
	minted := current.Sub(m.PreviousTotalBalance)
	if !minted.IsPositive() {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: vault %s minted no shares", m.Vault)
	}
	pos, err := e.vaultPosition(ctx, m.AccountID, m.Vault)
	if err != nil {
		return nil, err
	}
	if info.Lockup == 0 {
		pos.Unlocked = pos.Unlocked.Add(minted)
	} else {
		pos.Locked = pos.Locked.Add(minted)
	}
	if err := e.setVaultPosition(ctx, m.AccountID, pos); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.CoinBalanceUpdated{AccountID: m.AccountID, Credited: types.NewCoin(info.VaultToken, minted)})
	return core.NewResponse(), nil
}

func (e *Engine) exitVault(ctx *core.Context, m ExitVaultShares) (*core.Response, error) {
	v, err := e.vault(m.Vault)
	if err != nil {
		return nil, err
	}
	info := v.Config()
	if info.Lockup > 0 {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: vault %s has a lockup, request an unlock", m.Vault)
	}
	pos, err := e.vaultPosition(ctx, m.AccountID, m.Vault)
	if err != nil {
		return nil, err
	}
	if pos.Unlocked.LT(m.Amount) {
		return nil, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "creditmanager: %s unlocked shares of %s, requested %s", pos.Unlocked, m.Vault, m.Amount)
	}
	pos.Unlocked = pos.Unlocked.Sub(m.Amount)
	if err := e.setVaultPosition(ctx, m.AccountID, pos); err != nil {
		return nil, err
	}
	shares := types.NewCoin(info.VaultToken, m.Amount)
	resp := core.NewResponse().AddExecute(m.Vault, vaults.Redeem{}, shares)
	if err := e.queueBalanceUpdates(ctx, resp, m.AccountID, []string{info.BaseDenom}); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "exit_vault", shares)
	return resp, nil
}

func (e *Engine) requestUnlock(ctx *core.Context, m RequestUnlock) (*core.Response, error) {
	v, err := e.vault(m.Vault)
	if err != nil {
		return nil, err
	}
	info := v.Config()
	if info.Lockup == 0 {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: vault %s has no lockup", m.Vault)
	}
	cfg, err := e.Config(ctx)
	if err != nil {
		return nil, err
	}
	pos, err := e.vaultPosition(ctx, m.AccountID, m.Vault)
	if err != nil {
		return nil, err
	}
	if pos.Locked.LT(m.Amount) {
		return nil, errorsmod.Wrapf(cerrors.ErrInsufficientFunds, "creditmanager: %s locked shares of %s, requested %s", pos.Locked, m.Vault, m.Amount)
	}
	if uint64(len(pos.Unlocking)) >= cfg.MaxUnlockingPositions {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: account %s already has %d unlocking positions in %s", m.AccountID, len(pos.Unlocking), m.Vault)
	}
	id, err := v.NextLockupID(ctx)
	if err != nil {
		return nil, err
	}
	base, err := v.PreviewRedeem(ctx, m.Amount)
	if err != nil {
		return nil, err
	}
	pos.Locked = pos.Locked.Sub(m.Amount)
	pos.Unlocking = append(pos.Unlocking, UnlockingPosition{
		ID:        id,
		Coin:      types.NewCoin(info.BaseDenom, base),
		ReleaseAt: ctx.BlockTime() + info.Lockup,
	})
	if err := e.setVaultPosition(ctx, m.AccountID, pos); err != nil {
		return nil, err
	}
	shares := types.NewCoin(info.VaultToken, m.Amount)
	emitAction(ctx, m.AccountID, "request_vault_unlock", shares)
	return core.NewResponse().AddExecute(m.Vault, vaults.RequestUnlock{}, shares), nil
}

func (e *Engine) exitUnlocked(ctx *core.Context, m ExitUnlocked) (*core.Response, error) {
	pos, err := e.vaultPosition(ctx, m.AccountID, m.Vault)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, u := range pos.Unlocking {
		if u.ID == m.PositionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: account %s has no unlocking position %d in %s", m.AccountID, m.PositionID, m.Vault)
	}
	u := pos.Unlocking[idx]
	if ctx.BlockTime() < u.ReleaseAt {
		return nil, errorsmod.Wrapf(cerrors.ErrUnlockNotReady, "creditmanager: position %d releases at %d", u.ID, u.ReleaseAt)
	}
	pos.Unlocking = append(pos.Unlocking[:idx], pos.Unlocking[idx+1:]...)
	if err := e.setVaultPosition(ctx, m.AccountID, pos); err != nil {
		return nil, err
	}
	if err := e.incrementCoin(ctx, m.AccountID, u.Coin); err != nil {
		return nil, err
	}
	emitAction(ctx, m.AccountID, "exit_vault_unlocked", u.Coin)
	return core.NewResponse().AddExecute(m.Vault, vaults.WithdrawUnlocked{LockupID: u.ID}), nil
}
