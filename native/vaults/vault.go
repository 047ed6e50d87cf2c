package vaults

import (
	"fmt"
	"math/big"
	"sort"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/state"
	"creditchain/core/types"
	"creditchain/crypto"
	"creditchain/native/common"
)

const moduleName = "vaults"

// InitialSharesPerBase is the share amount minted per base unit on the first
// deposit into an empty vault.
const InitialSharesPerBase = 1_000_000

// Ledger mints and burns vault tokens.
type Ledger interface {
	Supply(ctx *core.Context, denom string) (sdkmath.Int, error)
	Mint(ctx *core.Context, to string, amount types.Coins) error
	Burn(ctx *core.Context, from string, amount types.Coins) error
}

// Config describes one vault deployment. Lockup is in seconds; zero means
// shares can be redeemed immediately.
type Config struct {
	Addr           string   `json:"addr" toml:"addr"`
	BaseDenom      string   `json:"base_denom" toml:"base_denom"`
	VaultToken     string   `json:"vault_token" toml:"vault_token"`
	Lockup         uint64   `json:"lockup" toml:"lockup"`
	ForceWithdraws []string `json:"force_withdraw_whitelist" toml:"force_withdraw_whitelist"`
}

// Address derives the deployment address of a named vault.
func Address(name string) string {
	return crypto.ModuleAddress("vault/" + name)
}

// Validate checks the deployment predicates.
func (c Config) Validate() error {
	if err := crypto.ValidateAddress(c.Addr); err != nil {
		return errorsmod.Wrapf(cerrors.ErrValidation, "vaults: addr: %v", err)
	}
	if err := types.ValidateDenom(c.BaseDenom); err != nil {
		return errorsmod.Wrapf(cerrors.ErrValidation, "vaults: base denom: %v", err)
	}
	if err := types.ValidateDenom(c.VaultToken); err != nil {
		return errorsmod.Wrapf(cerrors.ErrValidation, "vaults: vault token: %v", err)
	}
	if c.BaseDenom == c.VaultToken {
		return errorsmod.Wrapf(cerrors.ErrValidation, "vaults: vault token must differ from %s", c.BaseDenom)
	}
	return nil
}

// Deposit mints vault tokens for the attached base coin.
type Deposit struct{}

// Redeem burns the attached vault tokens of an unlocked vault.
type Redeem struct {
	Recipient string `json:"recipient,omitempty"`
}

// RequestUnlock burns the attached vault tokens and starts a lockup.
type RequestUnlock struct{}

// WithdrawUnlocked pays out a matured lockup.
type WithdrawUnlocked struct {
	LockupID uint64 `json:"lockup_id"`
}

// ForceWithdrawUnlocking pays out part or all of a lockup before release.
// Only whitelisted callers may use it.
type ForceWithdrawUnlocking struct {
	LockupID uint64       `json:"lockup_id"`
	Amount   *sdkmath.Int `json:"amount,omitempty"`
}

// Lockup is a pending unlock.
type Lockup struct {
	ID        uint64     `json:"id"`
	Owner     string     `json:"owner"`
	Coin      types.Coin `json:"coin"`
	ReleaseAt uint64     `json:"release_at"`
}

type lockupRecord struct {
	Owner     string
	Amount    *big.Int
	ReleaseAt uint64
}

// Info summarises a vault.
type Info struct {
	Config      Config      `json:"config"`
	TotalBase   sdkmath.Int `json:"total_base"`
	TotalShares sdkmath.Int `json:"total_shares"`
}

// Engine is one vault instance. Strategy returns are outside the protocol;
// the vault simply holds its base coins.
type Engine struct {
	cfg    Config
	ledger Ledger
	pauses common.PauseSource
}

// NewEngine returns the vault deployed with cfg.
func NewEngine(cfg Config, ledger Ledger, pauses common.PauseSource) *Engine {
	return &Engine{cfg: cfg, ledger: ledger, pauses: pauses}
}

// Config returns the deployment configuration.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) key(parts ...string) []byte {
	return state.Key("vaults/", append([]string{e.cfg.Addr}, parts...)...)
}

// Execute implements core.Handler.
func (e *Engine) Execute(ctx *core.Context, info core.MessageInfo, msg any) (*core.Response, error) {
	if err := common.GuardContext(ctx, e.pauses, moduleName); err != nil {
		return nil, err
	}
	switch m := msg.(type) {
	case Deposit:
		return e.deposit(ctx, info)
	case Redeem:
		return e.redeem(ctx, info, m)
	case RequestUnlock:
		return e.requestUnlock(ctx, info)
	case WithdrawUnlocked:
		return e.withdrawUnlocked(ctx, info, m)
	case ForceWithdrawUnlocking:
		return e.forceWithdraw(ctx, info, m)
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "vault: %T", msg)
	}
}

func (e *Engine) singleCoin(info core.MessageInfo, denom string) (types.Coin, error) {
	if len(info.Funds) != 1 || info.Funds[0].Denom != denom {
		return types.Coin{}, errorsmod.Wrapf(cerrors.ErrValidation, "vault: attach exactly one %s coin", denom)
	}
	return info.Funds[0], nil
}

// TotalBase returns the base amount backing the outstanding shares.
func (e *Engine) TotalBase(ctx *core.Context) (sdkmath.Int, error) {
	var raw *big.Int
	if _, err := ctx.Store().KVGet(e.key("total_base"), &raw); err != nil {
		return sdkmath.Int{}, err
	}
	return types.BigToInt(raw), nil
}

func (e *Engine) setTotalBase(ctx *core.Context, v sdkmath.Int) error {
	return ctx.Store().KVPut(e.key("total_base"), types.IntToBig(v))
}

// ConvertToShares returns the shares minted for base.
func (e *Engine) ConvertToShares(ctx *core.Context, base sdkmath.Int) (sdkmath.Int, error) {
	totalBase, err := e.TotalBase(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	supply, err := e.ledger.Supply(ctx, e.cfg.VaultToken)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if supply.IsZero() || totalBase.IsZero() {
		return base.MulRaw(InitialSharesPerBase), nil
	}
	return base.Mul(supply).Quo(totalBase), nil
}

// PreviewRedeem returns the base amount paid for shares.
func (e *Engine) PreviewRedeem(ctx *core.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	totalBase, err := e.TotalBase(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	supply, err := e.ledger.Supply(ctx, e.cfg.VaultToken)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if supply.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return shares.Mul(totalBase).Quo(supply), nil
}

// Info returns the vault summary.
func (e *Engine) Info(ctx *core.Context) (Info, error) {
	totalBase, err := e.TotalBase(ctx)
	if err != nil {
		return Info{}, err
	}
	supply, err := e.ledger.Supply(ctx, e.cfg.VaultToken)
	if err != nil {
		return Info{}, err
	}
	return Info{Config: e.cfg, TotalBase: totalBase, TotalShares: supply}, nil
}

func (e *Engine) deposit(ctx *core.Context, info core.MessageInfo) (*core.Response, error) {
	coin, err := e.singleCoin(info, e.cfg.BaseDenom)
	if err != nil {
		return nil, err
	}
	shares, err := e.ConvertToShares(ctx, coin.Amount)
	if err != nil {
		return nil, err
	}
	if !shares.IsPositive() {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "vault: deposit too small")
	}
	totalBase, err := e.TotalBase(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.setTotalBase(ctx, totalBase.Add(coin.Amount)); err != nil {
		return nil, err
	}
	minted := types.NewCoin(e.cfg.VaultToken, shares)
	if err := e.ledger.Mint(ctx, info.Sender, types.NewCoins(minted)); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.VaultDeposited{Vault: e.cfg.Addr, Sender: info.Sender, Base: coin, Shares: minted})
	return core.NewResponse(), nil
}

// burnShares removes shares held by the vault and returns their base value.
func (e *Engine) burnShares(ctx *core.Context, shares types.Coin) (sdkmath.Int, error) {
	base, err := e.PreviewRedeem(ctx, shares.Amount)
	if err != nil {
		return sdkmath.Int{}, err
	}
	totalBase, err := e.TotalBase(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if err := e.ledger.Burn(ctx, e.cfg.Addr, types.NewCoins(shares)); err != nil {
		return sdkmath.Int{}, err
	}
	if err := e.setTotalBase(ctx, totalBase.Sub(base)); err != nil {
		return sdkmath.Int{}, err
	}
	return base, nil
}

func (e *Engine) redeem(ctx *core.Context, info core.MessageInfo, m Redeem) (*core.Response, error) {
	if e.cfg.Lockup > 0 {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "vault: locked vaults require RequestUnlock")
	}
	shares, err := e.singleCoin(info, e.cfg.VaultToken)
	if err != nil {
		return nil, err
	}
	base, err := e.burnShares(ctx, shares)
	if err != nil {
		return nil, err
	}
	recipient := info.Sender
	if m.Recipient != "" {
		recipient = m.Recipient
	}
	out := types.NewCoin(e.cfg.BaseDenom, base)
	ctx.EmitEvent(events.VaultRedeemed{Vault: e.cfg.Addr, Recipient: recipient, Shares: shares, Base: out})
	return core.NewResponse().AddBankSend(recipient, out), nil
}

// NextLockupID returns the id the next RequestUnlock will assign.
func (e *Engine) NextLockupID(ctx *core.Context) (uint64, error) {
	var next uint64
	ok, err := ctx.Store().KVGet(e.key("next_lockup"), &next)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	return next, nil
}

func (e *Engine) requestUnlock(ctx *core.Context, info core.MessageInfo) (*core.Response, error) {
	if e.cfg.Lockup == 0 {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "vault: unlocked vaults redeem directly")
	}
	shares, err := e.singleCoin(info, e.cfg.VaultToken)
	if err != nil {
		return nil, err
	}
	base, err := e.burnShares(ctx, shares)
	if err != nil {
		return nil, err
	}
	id, err := e.NextLockupID(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Store().KVPut(e.key("next_lockup"), id+1); err != nil {
		return nil, err
	}
	rec := lockupRecord{Owner: info.Sender, Amount: types.IntToBig(base), ReleaseAt: ctx.BlockTime() + e.cfg.Lockup}
	if err := ctx.Store().KVPut(e.lockupKey(id), rec); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.VaultUnlockRequested{Vault: e.cfg.Addr, Owner: info.Sender, LockupID: id, Base: types.NewCoin(e.cfg.BaseDenom, base), ReleaseAt: rec.ReleaseAt})
	return core.NewResponse(), nil
}

func (e *Engine) lockupKey(id uint64) []byte {
	return e.key("lockup", fmt.Sprintf("%020d", id))
}

// Lockup loads one lockup.
func (e *Engine) Lockup(ctx *core.Context, id uint64) (Lockup, error) {
	var rec lockupRecord
	ok, err := ctx.Store().KVGet(e.lockupKey(id), &rec)
	if err != nil {
		return Lockup{}, err
	}
	if !ok {
		return Lockup{}, errorsmod.Wrapf(cerrors.ErrValidation, "vault: lockup %d not found", id)
	}
	return Lockup{ID: id, Owner: rec.Owner, Coin: types.NewCoin(e.cfg.BaseDenom, types.BigToInt(rec.Amount)), ReleaseAt: rec.ReleaseAt}, nil
}

// Lockups lists the lockups of owner by id.
func (e *Engine) Lockups(ctx *core.Context, owner string) ([]Lockup, error) {
	var out []Lockup
	err := ctx.Store().KVIterate(e.key("lockup"), func(key, value []byte) error {
		var rec lockupRecord
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return err
		}
		if rec.Owner != owner {
			return nil
		}
		parts := state.SplitKey("vaults/", key)
		var id uint64
		if _, err := fmt.Sscanf(parts[len(parts)-1], "%d", &id); err != nil {
			return fmt.Errorf("vault: malformed lockup key %q", key)
		}
		out = append(out, Lockup{ID: id, Owner: rec.Owner, Coin: types.NewCoin(e.cfg.BaseDenom, types.BigToInt(rec.Amount)), ReleaseAt: rec.ReleaseAt})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (e *Engine) withdrawUnlocked(ctx *core.Context, info core.MessageInfo, m WithdrawUnlocked) (*core.Response, error) {
	lock, err := e.Lockup(ctx, m.LockupID)
	if err != nil {
		return nil, err
	}
	if lock.Owner != info.Sender {
		return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "vault: lockup %d belongs to %s", m.LockupID, lock.Owner)
	}
	if ctx.BlockTime() < lock.ReleaseAt {
		return nil, errorsmod.Wrapf(cerrors.ErrUnlockNotReady, "vault: lockup %d releases at %d", m.LockupID, lock.ReleaseAt)
	}
	if err := ctx.Store().KVDelete(e.lockupKey(m.LockupID)); err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.VaultUnlocked{Vault: e.cfg.Addr, Owner: lock.Owner, LockupID: lock.ID, Base: lock.Coin})
	return core.NewResponse().AddBankSend(info.Sender, lock.Coin), nil
}

func (e *Engine) forceWithdraw(ctx *core.Context, info core.MessageInfo, m ForceWithdrawUnlocking) (*core.Response, error) {
	allowed := false
	for _, addr := range e.cfg.ForceWithdraws {
		if addr == info.Sender {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "vault: %s may not force withdraw", info.Sender)
	}
	lock, err := e.Lockup(ctx, m.LockupID)
	if err != nil {
		return nil, err
	}
	if lock.Owner != info.Sender {
		return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "vault: lockup %d belongs to %s", m.LockupID, lock.Owner)
	}
	amount := lock.Coin.Amount
	if m.Amount != nil {
		if m.Amount.IsNil() || !m.Amount.IsPositive() || m.Amount.GT(amount) {
			return nil, errorsmod.Wrapf(cerrors.ErrValidation, "vault: force withdraw amount must be in (0, %s]", amount)
		}
		amount = *m.Amount
	}
	rest := lock.Coin.Amount.Sub(amount)
	if rest.IsZero() {
		err = ctx.Store().KVDelete(e.lockupKey(m.LockupID))
	} else {
		err = ctx.Store().KVPut(e.lockupKey(m.LockupID), lockupRecord{Owner: lock.Owner, Amount: types.IntToBig(rest), ReleaseAt: lock.ReleaseAt})
	}
	if err != nil {
		return nil, err
	}
	out := types.NewCoin(e.cfg.BaseDenom, amount)
	ctx.EmitEvent(events.VaultUnlocked{Vault: e.cfg.Addr, Owner: lock.Owner, LockupID: lock.ID, Base: out})
	return core.NewResponse().AddBankSend(info.Sender, out), nil
}
