package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"creditchain/crypto"
	"creditchain/native/vaults"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "credit-local", cfg.ChainID)
	require.NoError(t, cfg.Validate())

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Genesis.Owner, again.Genesis.Owner)
	require.Len(t, again.Genesis.Assets, len(cfg.Genesis.Assets))
}

func TestLoadParsesGenesis(t *testing.T) {
	owner := crypto.ModuleAddress("owner")
	path := writeConfig(t, `ChainID = "credit-test"
DataDir = "./data"

[logging]
Level = "debug"
File = "node.log"

[genesis]
Owner = "`+owner+`"
TargetHealthFactor = "1.1"
MaxCloseFactor = "0.4"

[[genesis.assets]]
Denom = "uosmo"
Price = "0.5"
LiquidationPrice = "0.45"
Whitelisted = true
DepositEnabled = true
BorrowEnabled = true
MaxLoanToValue = "0.55"
LiquidationThreshold = "0.65"
DepositCap = "1000000"

[genesis.assets.market]
ReserveFactor = "0.1"
OptimalUtilizationRate = "0.8"
Base = "0"
Slope1 = "0.2"
Slope2 = "2"

[[genesis.assets]]
Denom = "uatom"
Price = "10"
Whitelisted = true
MaxLoanToValue = "0.7"
LiquidationThreshold = "0.8"
DepositCap = "500"

[genesis.assets.hls]
MaxLoanToValue = "0.85"
LiquidationThreshold = "0.9"
Correlations = ["stuatom", "vault/atom"]

[[genesis.vaults]]
Name = "atom"
BaseDenom = "uatom"
VaultToken = "vatom"
Lockup = 86400
DepositCap = "1000"
MaxLoanToValue = "0.5"
LiquidationThreshold = "0.6"
Whitelisted = true

[[genesis.pools]]
LpDenom = "gamm/pool/1"
Denoms = ["uatom", "uosmo"]

[[genesis.balances]]
Address = "`+owner+`"
Denom = "uosmo"
Amount = "100"

[[genesis.balances]]
Address = "`+owner+`"
Denom = "uosmo"
Amount = "50"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "credit-test", cfg.ChainID)
	require.Equal(t, 100, cfg.Logging.MaxSizeMB)
	require.Equal(t, "0.05", cfg.Genesis.MaxSlippage)

	assets, err := cfg.Genesis.AssetParams()
	require.NoError(t, err)
	require.Len(t, assets, 2)
	require.True(t, assets[0].RedBank.BorrowEnabled)
	require.Equal(t, sdkmath.NewInt(1_000_000), assets[0].DepositCap)
	require.NotNil(t, assets[1].CreditManager.Hls)
	require.Equal(t, vaults.Address("atom"), assets[1].CreditManager.Hls.Correlations[1].Vault)

	prices, err := cfg.Genesis.Prices()
	require.NoError(t, err)
	require.NotNil(t, prices[0].LiquidationPrice)
	require.Nil(t, prices[1].LiquidationPrice)

	markets, err := cfg.Genesis.Markets()
	require.NoError(t, err)
	require.Len(t, markets, 1)
	require.Equal(t, "uosmo", markets[0].Denom)

	vcs, err := cfg.Genesis.VaultConfigs()
	require.NoError(t, err)
	require.Equal(t, "uatom", vcs[0].DepositCap.Denom)
	require.Equal(t, uint64(86400), cfg.Genesis.VaultDeployments()["atom"].Lockup)

	balances, err := cfg.Genesis.InitialBalances()
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(150), balances[owner].AmountOf("uosmo"))
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "ChainID = \"x\"\nValidatorKey = \"abc\"\n")
	_, err := Load(path)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "ValidatorKey"))
}

func TestGenesisValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *Genesis)
		want   string
	}{
		{"bad owner", func(g *Genesis) { g.Owner = "nope" }, "Owner"},
		{"target health factor at one", func(g *Genesis) { g.TargetHealthFactor = "1" }, "TargetHealthFactor"},
		{"close factor above one", func(g *Genesis) { g.MaxCloseFactor = "1.5" }, "MaxCloseFactor"},
		{"zero slippage", func(g *Genesis) { g.MaxSlippage = "0" }, "MaxSlippage"},
		{"duplicate denom", func(g *Genesis) { g.Assets = append(g.Assets, g.Assets[0]) }, "duplicate denom"},
		{"threshold below ltv", func(g *Genesis) { g.Assets[0].LiquidationThreshold = "0.5" }, "liquidation_threshold"},
		{"bad decimal", func(g *Genesis) { g.Assets[0].MaxLoanToValue = "abc" }, "invalid decimal"},
		{"zero price", func(g *Genesis) { g.Assets[0].Price = "0" }, "Price"},
		{"slopes inverted", func(g *Genesis) { g.Assets[0].Market.Slope2 = "0.01" }, "slope_1"},
		{"vault over unknown asset", func(g *Genesis) {
			g.Vaults = []Vault{{Name: "x", BaseDenom: "uunknown", VaultToken: "vx", DepositCap: "1", MaxLoanToValue: "0.1", LiquidationThreshold: "0.2"}}
		}, "not a listed asset"},
		{"pool with one denom", func(g *Genesis) { g.Pools = []Pool{{LpDenom: "lp", Denoms: []string{"uosmo"}}} }, "two denoms"},
		{"negative balance", func(g *Genesis) { g.Balances[0].Amount = "-1" }, "invalid amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := DefaultGenesis()
			g.applyDefaults()
			require.NoError(t, g.Validate())
			tt.mutate(&g)
			err := g.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}
