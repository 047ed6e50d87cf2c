package params

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/crypto"
	"creditchain/native/common"
)

// UpdateAssetParams inserts or replaces the parameters of one denom.
type UpdateAssetParams struct {
	Params AssetParams `json:"params"`
}

// UpdateVaultConfig inserts or replaces the configuration of one vault.
type UpdateVaultConfig struct {
	Config VaultConfig `json:"config"`
}

// UpdateTargetHealthFactor sets the health factor liquidations aim for.
type UpdateTargetHealthFactor struct {
	Value sdkmath.LegacyDec `json:"value"`
}

// UpdateMaxCloseFactor sets the ceiling on the liquidatable debt fraction.
type UpdateMaxCloseFactor struct {
	Value sdkmath.LegacyDec `json:"value"`
}

// SetPaused replaces the module pause switches.
type SetPaused struct {
	Pauses Pauses `json:"pauses"`
}

// UpdateOwner hands the registry to a new owner.
type UpdateOwner struct {
	Owner string `json:"owner"`
}

// Engine is the parameters registry contract. Mutations are owner-only; the
// query helpers are used directly by the other engines.
type Engine struct{}

// NewEngine returns the registry engine.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) store(ctx *core.Context) *Store {
	return NewStore(ctx.Store())
}

// Execute implements core.Handler.
func (e *Engine) Execute(ctx *core.Context, info core.MessageInfo, msg any) (*core.Response, error) {
	store := e.store(ctx)
	owner, err := store.Owner()
	if err != nil {
		return nil, err
	}
	if owner == "" || info.Sender != owner {
		return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "params: %s is not the owner", info.Sender)
	}
	var key string
	switch m := msg.(type) {
	case UpdateAssetParams:
		key = "asset/" + m.Params.Denom
		err = store.SetAssetParams(m.Params)
	case UpdateVaultConfig:
		key = "vault/" + m.Config.Addr
		err = store.SetVaultConfig(m.Config)
	case UpdateTargetHealthFactor:
		key = keyTargetHealthFactor
		err = store.SetTargetHealthFactor(m.Value)
	case UpdateMaxCloseFactor:
		key = keyMaxCloseFactor
		err = store.SetMaxCloseFactor(m.Value)
	case SetPaused:
		key = keyPauses
		err = store.SetPauses(m.Pauses)
	case UpdateOwner:
		if verr := crypto.ValidateAddress(m.Owner); verr != nil {
			return nil, errorsmod.Wrap(cerrors.ErrValidation, verr.Error())
		}
		key = keyOwner
		err = store.SetOwner(m.Owner)
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "params: %T", msg)
	}
	if err != nil {
		return nil, err
	}
	ctx.EmitEvent(events.ParamsUpdated{Key: key, By: info.Sender})
	return core.NewResponse(), nil
}

// AssetParams loads the parameters of denom.
func (e *Engine) AssetParams(ctx *core.Context, denom string) (AssetParams, error) {
	return e.store(ctx).AssetParams(denom)
}

// AllAssetParams lists every asset.
func (e *Engine) AllAssetParams(ctx *core.Context) ([]AssetParams, error) {
	return e.store(ctx).AllAssetParams()
}

// VaultConfig loads the configuration of a vault.
func (e *Engine) VaultConfig(ctx *core.Context, addr string) (VaultConfig, error) {
	return e.store(ctx).VaultConfig(addr)
}

// AllVaultConfigs lists every vault configuration.
func (e *Engine) AllVaultConfigs(ctx *core.Context) ([]VaultConfig, error) {
	return e.store(ctx).AllVaultConfigs()
}

// TargetHealthFactor returns the liquidation target health factor.
func (e *Engine) TargetHealthFactor(ctx *core.Context) (sdkmath.LegacyDec, error) {
	return e.store(ctx).TargetHealthFactor()
}

// MaxCloseFactor returns the close factor ceiling.
func (e *Engine) MaxCloseFactor(ctx *core.Context) (sdkmath.LegacyDec, error) {
	return e.store(ctx).MaxCloseFactor()
}

// Pauses returns the module pause switches.
func (e *Engine) Pauses(ctx *core.Context) (Pauses, error) {
	return e.store(ctx).Pauses()
}

// PauseView implements common.PauseSource.
func (e *Engine) PauseView(ctx *core.Context) (common.PauseView, error) {
	return e.Pauses(ctx)
}

// Owner returns the registry owner.
func (e *Engine) Owner(ctx *core.Context) (string, error) {
	return e.store(ctx).Owner()
}

// InitGenesis seeds the registry without owner checks.
func (e *Engine) InitGenesis(ctx *core.Context, owner string, thf, maxCloseFactor sdkmath.LegacyDec, assets []AssetParams, vaults []VaultConfig) error {
	store := e.store(ctx)
	if err := store.SetOwner(owner); err != nil {
		return err
	}
	if err := store.SetTargetHealthFactor(thf); err != nil {
		return err
	}
	if err := store.SetMaxCloseFactor(maxCloseFactor); err != nil {
		return err
	}
	for _, p := range assets {
		if err := store.SetAssetParams(p); err != nil {
			return err
		}
	}
	for _, v := range vaults {
		if err := store.SetVaultConfig(v); err != nil {
			return err
		}
	}
	return nil
}
