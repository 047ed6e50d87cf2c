package params

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	cerrors "creditchain/core/errors"
)

const (
	assetPrefix           = "asset/"
	vaultPrefix           = "vault/"
	keyTargetHealthFactor = "target_health_factor"
	keyMaxCloseFactor     = "max_close_factor"
	keyPauses             = "system/pauses"
	keyOwner              = "owner"
)

// StoreState is the subset of the state manager the registry persists through.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
	ParamStoreIterate(prefix string, fn func(name string, value []byte) error) error
}

// Store provides typed access to the parameters registry. Values are stored
// JSON-encoded so operators can inspect them with generic tooling.
type Store struct {
	state StoreState
}

// NewStore wraps the provided state.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

func (s *Store) put(name string, value any) error {
	st, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("params: encode %s: %w", name, err)
	}
	return st.ParamStoreSet(name, encoded)
}

func (s *Store) get(name string, out any) (bool, error) {
	st, err := s.withState()
	if err != nil {
		return false, err
	}
	raw, ok, err := st.ParamStoreGet(name)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("params: decode %s: %w", name, err)
	}
	return true, nil
}

// SetAssetParams validates and stores p.
func (s *Store) SetAssetParams(p AssetParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.put(assetPrefix+p.Denom, p)
}

// AssetParams loads the parameters of denom. A missing entry returns
// ErrAssetNotInitialized.
func (s *Store) AssetParams(denom string) (AssetParams, error) {
	var p AssetParams
	ok, err := s.get(assetPrefix+denom, &p)
	if err != nil {
		return AssetParams{}, err
	}
	if !ok {
		return AssetParams{}, errorsmod.Wrapf(cerrors.ErrAssetNotInitialized, "asset params for %s", denom)
	}
	return p, nil
}

// AllAssetParams lists every configured asset ordered by denom.
func (s *Store) AllAssetParams() ([]AssetParams, error) {
	st, err := s.withState()
	if err != nil {
		return nil, err
	}
	var out []AssetParams
	err = st.ParamStoreIterate(assetPrefix, func(name string, value []byte) error {
		var p AssetParams
		if err := json.Unmarshal(value, &p); err != nil {
			return fmt.Errorf("params: decode %s: %w", name, err)
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out, nil
}

// SetVaultConfig validates and stores cfg.
func (s *Store) SetVaultConfig(cfg VaultConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.put(vaultPrefix+cfg.Addr, cfg)
}

// VaultConfig loads the configuration of the vault at addr.
func (s *Store) VaultConfig(addr string) (VaultConfig, error) {
	var cfg VaultConfig
	ok, err := s.get(vaultPrefix+addr, &cfg)
	if err != nil {
		return VaultConfig{}, err
	}
	if !ok {
		return VaultConfig{}, errorsmod.Wrapf(cerrors.ErrNotWhitelisted, "vault %s has no config", addr)
	}
	return cfg, nil
}

// AllVaultConfigs lists every configured vault ordered by address.
func (s *Store) AllVaultConfigs() ([]VaultConfig, error) {
	st, err := s.withState()
	if err != nil {
		return nil, err
	}
	var out []VaultConfig
	err = st.ParamStoreIterate(vaultPrefix, func(name string, value []byte) error {
		var cfg VaultConfig
		if err := json.Unmarshal(value, &cfg); err != nil {
			return fmt.Errorf("params: decode %s: %w", strings.TrimPrefix(name, vaultPrefix), err)
		}
		out = append(out, cfg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out, nil
}

// SetTargetHealthFactor validates and stores the liquidation target.
func (s *Store) SetTargetHealthFactor(thf sdkmath.LegacyDec) error {
	if err := ValidateTargetHealthFactor(thf); err != nil {
		return err
	}
	return s.put(keyTargetHealthFactor, thf)
}

// TargetHealthFactor returns the configured target. Unset registries fail.
func (s *Store) TargetHealthFactor() (sdkmath.LegacyDec, error) {
	var thf sdkmath.LegacyDec
	ok, err := s.get(keyTargetHealthFactor, &thf)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if !ok {
		return sdkmath.LegacyDec{}, errorsmod.Wrap(cerrors.ErrValidation, "target health factor not configured")
	}
	return thf, nil
}

// SetMaxCloseFactor validates and stores the close factor ceiling.
func (s *Store) SetMaxCloseFactor(cf sdkmath.LegacyDec) error {
	if err := ValidateMaxCloseFactor(cf); err != nil {
		return err
	}
	return s.put(keyMaxCloseFactor, cf)
}

// MaxCloseFactor returns the close factor ceiling, one when unset.
func (s *Store) MaxCloseFactor() (sdkmath.LegacyDec, error) {
	var cf sdkmath.LegacyDec
	ok, err := s.get(keyMaxCloseFactor, &cf)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if !ok {
		return sdkmath.LegacyOneDec(), nil
	}
	return cf, nil
}

// SetPauses stores the module pause switches.
func (s *Store) SetPauses(p Pauses) error {
	return s.put(keyPauses, p)
}

// Pauses returns the module pause switches.
func (s *Store) Pauses() (Pauses, error) {
	var p Pauses
	if _, err := s.get(keyPauses, &p); err != nil {
		return Pauses{}, err
	}
	return p, nil
}

// SetOwner stores the registry owner.
func (s *Store) SetOwner(owner string) error {
	return s.put(keyOwner, owner)
}

// Owner returns the registry owner, empty when unset.
func (s *Store) Owner() (string, error) {
	var owner string
	if _, err := s.get(keyOwner, &owner); err != nil {
		return "", err
	}
	return owner, nil
}
