package config

import (
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"

	"creditchain/core/types"
	"creditchain/crypto"
	"creditchain/native/oracle"
	"creditchain/native/params"
	"creditchain/native/redbank"
	"creditchain/native/vaults"
	"creditchain/native/zapper"
)

// DefaultGenesis is the development genesis written next to a fresh config.
func DefaultGenesis() Genesis {
	owner := crypto.ModuleAddress("owner")
	market := func() *Market {
		return &Market{
			ReserveFactor:          "0.1",
			OptimalUtilizationRate: "0.8",
			Base:                   "0",
			Slope1:                 "0.07",
			Slope2:                 "0.45",
		}
	}
	return Genesis{
		Owner:        owner,
		OracleMaxAge: 0,
		Assets: []Asset{
			{
				Denom: "uosmo", Price: "1", Whitelisted: true, DepositEnabled: true, BorrowEnabled: true,
				MaxLoanToValue: "0.6", LiquidationThreshold: "0.7", DepositCap: "1000000000000", Market: market(),
			},
			{
				Denom: "uatom", Price: "10", Whitelisted: true, DepositEnabled: true, BorrowEnabled: true,
				MaxLoanToValue: "0.7", LiquidationThreshold: "0.78", DepositCap: "1000000000000", Market: market(),
			},
			{
				Denom: "uusdc", Price: "1", Whitelisted: true, DepositEnabled: true, BorrowEnabled: true,
				MaxLoanToValue: "0.8", LiquidationThreshold: "0.85", DepositCap: "1000000000000", Market: market(),
			},
		},
		Balances: []Balance{
			{Address: owner, Denom: "uosmo", Amount: "1000000000000"},
			{Address: owner, Denom: "uatom", Amount: "1000000000000"},
			{Address: owner, Denom: "uusdc", Amount: "1000000000000"},
		},
	}
}

// ParseDec parses a decimal field; name labels the error.
func ParseDec(name, raw string) (sdkmath.LegacyDec, error) {
	d, err := sdkmath.LegacyNewDecFromStr(strings.TrimSpace(raw))
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%s: invalid decimal %q: %w", name, raw, err)
	}
	return d, nil
}

// ParseInt parses a non-negative integer field.
func ParseInt(name, raw string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(strings.TrimSpace(raw))
	if !ok || v.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%s: invalid amount %q", name, raw)
	}
	return v, nil
}

func (h *Hls) params(field string) (*params.HlsParams, error) {
	if h == nil {
		return nil, nil
	}
	ltv, err := ParseDec(field+".hls.MaxLoanToValue", h.MaxLoanToValue)
	if err != nil {
		return nil, err
	}
	lt, err := ParseDec(field+".hls.LiquidationThreshold", h.LiquidationThreshold)
	if err != nil {
		return nil, err
	}
	out := &params.HlsParams{MaxLoanToValue: ltv, LiquidationThreshold: lt}
	for _, c := range h.Correlations {
		if name, ok := strings.CutPrefix(c, "vault/"); ok {
			out.Correlations = append(out.Correlations, params.HlsCorrelation{Vault: vaults.Address(name)})
			continue
		}
		out.Correlations = append(out.Correlations, params.HlsCorrelation{Denom: c})
	}
	return out, nil
}

// AssetParams converts the asset section into registry parameters.
func (g Genesis) AssetParams() ([]params.AssetParams, error) {
	out := make([]params.AssetParams, 0, len(g.Assets))
	for _, a := range g.Assets {
		field := "assets." + a.Denom
		p := params.AssetParams{
			Denom:         a.Denom,
			CreditManager: params.CreditManagerSettings{Whitelisted: a.Whitelisted},
			RedBank:       params.RedBankSettings{DepositEnabled: a.DepositEnabled, BorrowEnabled: a.BorrowEnabled},
		}
		var err error
		decs := []struct {
			dst  *sdkmath.LegacyDec
			name string
			raw  string
		}{
			{&p.MaxLoanToValue, "MaxLoanToValue", a.MaxLoanToValue},
			{&p.LiquidationThreshold, "LiquidationThreshold", a.LiquidationThreshold},
			{&p.LiquidationBonus.StartingLB, "BonusStartingLB", a.BonusStartingLB},
			{&p.LiquidationBonus.Slope, "BonusSlope", a.BonusSlope},
			{&p.LiquidationBonus.MinLB, "BonusMinLB", a.BonusMinLB},
			{&p.LiquidationBonus.MaxLB, "BonusMaxLB", a.BonusMaxLB},
			{&p.ProtocolLiquidationFee, "ProtocolLiquidationFee", a.ProtocolLiquidationFee},
		}
		for _, d := range decs {
			if *d.dst, err = ParseDec(field+"."+d.name, d.raw); err != nil {
				return nil, err
			}
		}
		if p.DepositCap, err = ParseInt(field+".DepositCap", a.DepositCap); err != nil {
			return nil, err
		}
		if p.CreditManager.Hls, err = a.Hls.params(field); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Prices converts the asset prices into oracle messages.
func (g Genesis) Prices() ([]oracle.SetPrice, error) {
	out := make([]oracle.SetPrice, 0, len(g.Assets))
	for _, a := range g.Assets {
		price, err := ParseDec("assets."+a.Denom+".Price", a.Price)
		if err != nil {
			return nil, err
		}
		msg := oracle.SetPrice{Denom: a.Denom, Price: price}
		if a.LiquidationPrice != "" {
			lp, err := ParseDec("assets."+a.Denom+".LiquidationPrice", a.LiquidationPrice)
			if err != nil {
				return nil, err
			}
			msg.LiquidationPrice = &lp
		}
		out = append(out, msg)
	}
	return out, nil
}

// Markets converts the assets that carry a market section into money
// market listings.
func (g Genesis) Markets() ([]redbank.InitAsset, error) {
	var out []redbank.InitAsset
	for _, a := range g.Assets {
		if a.Market == nil {
			continue
		}
		field := "assets." + a.Denom + ".market"
		var mp redbank.MarketParams
		var err error
		decs := []struct {
			dst  *sdkmath.LegacyDec
			name string
			raw  string
		}{
			{&mp.ReserveFactor, "ReserveFactor", a.Market.ReserveFactor},
			{&mp.InterestRateModel.OptimalUtilizationRate, "OptimalUtilizationRate", a.Market.OptimalUtilizationRate},
			{&mp.InterestRateModel.Base, "Base", a.Market.Base},
			{&mp.InterestRateModel.Slope1, "Slope1", a.Market.Slope1},
			{&mp.InterestRateModel.Slope2, "Slope2", a.Market.Slope2},
		}
		for _, d := range decs {
			if *d.dst, err = ParseDec(field+"."+d.name, d.raw); err != nil {
				return nil, err
			}
		}
		out = append(out, redbank.InitAsset{Denom: a.Denom, Params: mp})
	}
	return out, nil
}

// VaultDeployments returns the vault adapters to deploy, keyed by name.
func (g Genesis) VaultDeployments() map[string]vaults.Config {
	out := make(map[string]vaults.Config, len(g.Vaults))
	for _, v := range g.Vaults {
		out[v.Name] = vaults.Config{
			Addr:       vaults.Address(v.Name),
			BaseDenom:  v.BaseDenom,
			VaultToken: v.VaultToken,
			Lockup:     v.Lockup,
		}
	}
	return out
}

// VaultConfigs converts the vault section into registry parameters.
func (g Genesis) VaultConfigs() ([]params.VaultConfig, error) {
	out := make([]params.VaultConfig, 0, len(g.Vaults))
	for _, v := range g.Vaults {
		field := "vaults." + v.Name
		vc := params.VaultConfig{Addr: vaults.Address(v.Name), Whitelisted: v.Whitelisted}
		var err error
		if vc.MaxLoanToValue, err = ParseDec(field+".MaxLoanToValue", v.MaxLoanToValue); err != nil {
			return nil, err
		}
		if vc.LiquidationThreshold, err = ParseDec(field+".LiquidationThreshold", v.LiquidationThreshold); err != nil {
			return nil, err
		}
		capAmount, err := ParseInt(field+".DepositCap", v.DepositCap)
		if err != nil {
			return nil, err
		}
		vc.DepositCap = types.NewCoin(v.BaseDenom, capAmount)
		if vc.Hls, err = v.Hls.params(field); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, nil
}

// ZapperPools converts the pool section.
func (g Genesis) ZapperPools() []zapper.Pool {
	out := make([]zapper.Pool, 0, len(g.Pools))
	for _, p := range g.Pools {
		out = append(out, zapper.Pool{LpDenom: p.LpDenom, Denoms: append([]string(nil), p.Denoms...)})
	}
	return out
}

// InitialBalances groups the balance section by address.
func (g Genesis) InitialBalances() (map[string]types.Coins, error) {
	out := make(map[string]types.Coins)
	for i, b := range g.Balances {
		amount, err := ParseInt(fmt.Sprintf("balances[%d].Amount", i), b.Amount)
		if err != nil {
			return nil, err
		}
		out[b.Address] = out[b.Address].Add(types.NewCoin(b.Denom, amount))
	}
	return out, nil
}
