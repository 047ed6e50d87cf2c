package config

import (
	"fmt"
	"log/slog"
	"strings"

	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
	"creditchain/crypto"
	"creditchain/native/params"
	"creditchain/native/redbank"
)

// Validate checks the node settings and the genesis section.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ChainID) == "" {
		return fmt.Errorf("ChainID must be set")
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.Level: %w", err)
	}
	return c.Genesis.Validate()
}

// Validate checks addresses, decimal ranges and duplicate names.
func (g Genesis) Validate() error {
	if err := crypto.ValidateAddress(g.Owner); err != nil {
		return fmt.Errorf("genesis.Owner: %w", err)
	}
	thf, err := ParseDec("genesis.TargetHealthFactor", g.TargetHealthFactor)
	if err != nil {
		return err
	}
	if err := params.ValidateTargetHealthFactor(thf); err != nil {
		return fmt.Errorf("genesis.TargetHealthFactor: %w", err)
	}
	mcf, err := ParseDec("genesis.MaxCloseFactor", g.MaxCloseFactor)
	if err != nil {
		return err
	}
	if err := params.ValidateMaxCloseFactor(mcf); err != nil {
		return fmt.Errorf("genesis.MaxCloseFactor: %w", err)
	}
	fee, err := ParseDec("genesis.SwapFee", g.SwapFee)
	if err != nil {
		return err
	}
	if fee.IsNegative() || fee.GTE(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("genesis.SwapFee must be in [0, 1)")
	}
	slip, err := ParseDec("genesis.MaxSlippage", g.MaxSlippage)
	if err != nil {
		return err
	}
	if !slip.IsPositive() || slip.GTE(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("genesis.MaxSlippage must be in (0, 1)")
	}
	if g.MaxUnlockingPositions == 0 {
		return fmt.Errorf("genesis.MaxUnlockingPositions must be positive")
	}

	seen := make(map[string]struct{}, len(g.Assets))
	for _, a := range g.Assets {
		if _, dup := seen[a.Denom]; dup {
			return fmt.Errorf("genesis.assets: duplicate denom %s", a.Denom)
		}
		seen[a.Denom] = struct{}{}
	}
	assets, err := g.AssetParams()
	if err != nil {
		return err
	}
	for _, p := range assets {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("genesis.assets.%s: %w", p.Denom, err)
		}
	}
	prices, err := g.Prices()
	if err != nil {
		return err
	}
	for _, p := range prices {
		if !p.Price.IsPositive() {
			return fmt.Errorf("genesis.assets.%s.Price must be positive", p.Denom)
		}
	}
	markets, err := g.Markets()
	if err != nil {
		return err
	}
	for _, m := range markets {
		if err := validateMarket(m); err != nil {
			return fmt.Errorf("genesis.assets.%s.market: %w", m.Denom, err)
		}
	}

	names := make(map[string]struct{}, len(g.Vaults))
	for _, v := range g.Vaults {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("genesis.vaults: name must be set")
		}
		if _, dup := names[v.Name]; dup {
			return fmt.Errorf("genesis.vaults: duplicate vault %s", v.Name)
		}
		names[v.Name] = struct{}{}
		if _, listed := seen[v.BaseDenom]; !listed {
			return fmt.Errorf("genesis.vaults.%s: base denom %s is not a listed asset", v.Name, v.BaseDenom)
		}
	}
	for name, dep := range g.VaultDeployments() {
		if err := dep.Validate(); err != nil {
			return fmt.Errorf("genesis.vaults.%s: %w", name, err)
		}
	}
	vaultCfgs, err := g.VaultConfigs()
	if err != nil {
		return err
	}
	for i, vc := range vaultCfgs {
		if err := vc.Validate(); err != nil {
			return fmt.Errorf("genesis.vaults.%s: %w", g.Vaults[i].Name, err)
		}
	}

	lps := make(map[string]struct{}, len(g.Pools))
	for _, p := range g.Pools {
		if err := types.ValidateDenom(p.LpDenom); err != nil {
			return fmt.Errorf("genesis.pools: %w", err)
		}
		if _, dup := lps[p.LpDenom]; dup {
			return fmt.Errorf("genesis.pools: duplicate lp denom %s", p.LpDenom)
		}
		lps[p.LpDenom] = struct{}{}
		if len(p.Denoms) < 2 {
			return fmt.Errorf("genesis.pools.%s: needs at least two denoms", p.LpDenom)
		}
	}

	for i, b := range g.Balances {
		if err := crypto.ValidateAddress(b.Address); err != nil {
			return fmt.Errorf("genesis.balances[%d].Address: %w", i, err)
		}
		if err := types.ValidateDenom(b.Denom); err != nil {
			return fmt.Errorf("genesis.balances[%d].Denom: %w", i, err)
		}
	}
	_, err = g.InitialBalances()
	return err
}

func validateMarket(m redbank.InitAsset) error {
	rf := m.Params.ReserveFactor
	if rf.IsNegative() || rf.GTE(sdkmath.LegacyOneDec()) {
		return fmt.Errorf("ReserveFactor must be in [0, 1)")
	}
	return m.Params.InterestRateModel.Validate()
}
