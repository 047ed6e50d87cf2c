package app

import (
	"context"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"

	"creditchain/config"
	"creditchain/core"
	"creditchain/core/types"
	"creditchain/native/creditmanager"
	"creditchain/native/oracle"
	"creditchain/native/params"
	"creditchain/native/redbank"
	"creditchain/native/swapper"
	"creditchain/native/vaults"
	"creditchain/native/zapper"
)

// VaultGenesis deploys one vault and lists its shares as collateral.
type VaultGenesis struct {
	Name   string
	Config vaults.Config
	Params params.VaultConfig
}

// Genesis is the initial state of the protocol.
type Genesis struct {
	Time                  uint64
	Owner                 string
	TargetHealthFactor    sdkmath.LegacyDec
	MaxCloseFactor        sdkmath.LegacyDec
	OracleMaxAge          uint64
	SwapFee               sdkmath.LegacyDec
	MaxUnlockingPositions uint64
	MaxSlippage           sdkmath.LegacyDec
	Assets                []params.AssetParams
	Prices                []oracle.SetPrice
	Markets               []redbank.InitAsset
	Vaults                []VaultGenesis
	Pools                 []zapper.Pool
	Balances              map[string]types.Coins
}

// GenesisFromConfig converts the TOML genesis section.
func GenesisFromConfig(g config.Genesis) (Genesis, error) {
	if err := g.Validate(); err != nil {
		return Genesis{}, err
	}
	out := Genesis{
		Time:                  g.Time,
		Owner:                 g.Owner,
		OracleMaxAge:          g.OracleMaxAge,
		MaxUnlockingPositions: g.MaxUnlockingPositions,
		Pools:                 g.ZapperPools(),
	}
	var err error
	if out.TargetHealthFactor, err = config.ParseDec("TargetHealthFactor", g.TargetHealthFactor); err != nil {
		return Genesis{}, err
	}
	if out.MaxCloseFactor, err = config.ParseDec("MaxCloseFactor", g.MaxCloseFactor); err != nil {
		return Genesis{}, err
	}
	if out.SwapFee, err = config.ParseDec("SwapFee", g.SwapFee); err != nil {
		return Genesis{}, err
	}
	if out.MaxSlippage, err = config.ParseDec("MaxSlippage", g.MaxSlippage); err != nil {
		return Genesis{}, err
	}
	if out.Assets, err = g.AssetParams(); err != nil {
		return Genesis{}, err
	}
	if out.Prices, err = g.Prices(); err != nil {
		return Genesis{}, err
	}
	if out.Markets, err = g.Markets(); err != nil {
		return Genesis{}, err
	}
	if out.Balances, err = g.InitialBalances(); err != nil {
		return Genesis{}, err
	}
	vaultParams, err := g.VaultConfigs()
	if err != nil {
		return Genesis{}, err
	}
	deployments := g.VaultDeployments()
	for i, v := range g.Vaults {
		out.Vaults = append(out.Vaults, VaultGenesis{Name: v.Name, Config: deployments[v.Name], Params: vaultParams[i]})
	}
	return out, nil
}

// InitGenesis deploys the vaults, writes every module's initial state in one
// transaction, then lists prices and markets and opens the rewards collector
// credit account through regular messages.
func (a *App) InitGenesis(ctx context.Context, g Genesis) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.SetTime(g.Time)

	vaultCfgs := make([]params.VaultConfig, 0, len(g.Vaults))
	for _, v := range g.Vaults {
		deployed, err := a.AddVault(v.Name, v.Config)
		if err != nil {
			return err
		}
		vc := v.Params
		vc.Addr = deployed.Config().Addr
		vaultCfgs = append(vaultCfgs, vc)
	}

	if err := a.Update(ctx, func(c *core.Context) error { return a.writeGenesis(c, g, vaultCfgs) }); err != nil {
		return err
	}

	for _, p := range g.Prices {
		if _, err := a.Execute(ctx, g.Owner, a.Addresses.Oracle, p); err != nil {
			return fmt.Errorf("genesis: price %s: %w", p.Denom, err)
		}
	}
	for _, m := range g.Markets {
		if _, err := a.Execute(ctx, g.Owner, a.Addresses.RedBank, m); err != nil {
			return fmt.Errorf("genesis: market %s: %w", m.Denom, err)
		}
	}

	res, err := a.Execute(ctx, a.Addresses.RewardsCollector, a.Addresses.CreditManager, creditmanager.UpdateCreditAccount{})
	if err != nil {
		return fmt.Errorf("genesis: rewards collector account: %w", err)
	}
	accountID, ok := res.Data.(string)
	if !ok {
		return fmt.Errorf("genesis: rewards collector account id missing")
	}
	collector := creditmanager.RewardsCollector{Address: a.Addresses.RewardsCollector, AccountID: accountID}
	if _, err := a.Execute(ctx, g.Owner, a.Addresses.CreditManager, creditmanager.UpdateConfig{RewardsCollector: &collector}); err != nil {
		return fmt.Errorf("genesis: rewards collector config: %w", err)
	}
	a.logger.Info("genesis applied",
		"chain_id", a.Env().ChainID,
		"assets", len(g.Assets),
		"markets", len(g.Markets),
		"vaults", len(g.Vaults),
		"rewards_collector_account", accountID)
	return nil
}

func (a *App) writeGenesis(c *core.Context, g Genesis, vaultCfgs []params.VaultConfig) error {
	if err := a.Params.InitGenesis(c, g.Owner, g.TargetHealthFactor, g.MaxCloseFactor, g.Assets, vaultCfgs); err != nil {
		return fmt.Errorf("genesis: params: %w", err)
	}
	if err := a.Oracle.InitGenesis(c, oracle.Config{Owner: g.Owner, MaxAge: g.OracleMaxAge}); err != nil {
		return fmt.Errorf("genesis: oracle: %w", err)
	}
	if err := a.RedBank.InitGenesis(c, g.Owner); err != nil {
		return fmt.Errorf("genesis: redbank: %w", err)
	}
	if err := a.Incentives.InitGenesis(c, g.Owner); err != nil {
		return fmt.Errorf("genesis: incentives: %w", err)
	}
	if err := a.Swapper.InitGenesis(c, swapper.Config{Owner: g.Owner, Fee: g.SwapFee}); err != nil {
		return fmt.Errorf("genesis: swapper: %w", err)
	}
	if err := a.Zapper.InitGenesis(c, g.Owner, g.Pools); err != nil {
		return fmt.Errorf("genesis: zapper: %w", err)
	}
	cmCfg := creditmanager.Config{
		Owner:                 g.Owner,
		MaxUnlockingPositions: g.MaxUnlockingPositions,
		MaxSlippage:           g.MaxSlippage,
		RewardsCollector:      creditmanager.RewardsCollector{Address: a.Addresses.RewardsCollector},
	}
	if err := a.CreditManager.InitGenesis(c, cmCfg); err != nil {
		return fmt.Errorf("genesis: creditmanager: %w", err)
	}
	addrs := make([]string, 0, len(g.Balances))
	for addr := range g.Balances {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		if err := a.Bank.Mint(c, addr, g.Balances[addr]); err != nil {
			return fmt.Errorf("genesis: balance %s: %w", addr, err)
		}
	}
	return nil
}
