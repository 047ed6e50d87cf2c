package creditmanager

import (
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	"creditchain/core/types"
	"creditchain/native/health"
	"creditchain/native/oracle"
	"creditchain/native/params"
)

// Positions returns everything a credit account holds or owes.
func (e *Engine) Positions(ctx *core.Context, accountID string) (Positions, error) {
	kind, err := e.AccountKind(ctx, accountID)
	if err != nil {
		return Positions{}, err
	}
	deposits, err := e.coinBalances(ctx, accountID)
	if err != nil {
		return Positions{}, err
	}
	debts, err := e.deps.RedBank.UserDebts(ctx, e.self(), accountID)
	if err != nil {
		return Positions{}, err
	}
	lends, err := e.deps.RedBank.UserCollaterals(ctx, e.self(), accountID)
	if err != nil {
		return Positions{}, err
	}
	vaultPos, err := e.vaultPositions(ctx, accountID)
	if err != nil {
		return Positions{}, err
	}
	staked, err := e.deps.Incentives.StakedLpPositions(ctx, e.self(), accountID)
	if err != nil {
		return Positions{}, err
	}
	out := Positions{
		AccountID: accountID,
		Kind:      kind,
		Deposits:  deposits,
		Vaults:    vaultPos,
		StakedLP:  staked,
	}
	for _, d := range debts {
		if d.Amount.IsPositive() {
			out.Debts = append(out.Debts, DebtAmount{Denom: d.Denom, Shares: d.AmountScaled, Amount: d.Amount})
		}
	}
	for _, c := range lends {
		out.Lends = out.Lends.Add(types.NewCoin(c.Denom, c.Amount))
	}
	return out, nil
}

// computer builds the health computer of a credit account. Extra denoms get
// their parameters and prices loaded as well.
func (e *Engine) computer(ctx *core.Context, accountID string, kind oracle.Kind, extra ...string) (*health.Computer, error) {
	pos, err := e.Positions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	c := &health.Computer{
		Kind: pos.Kind.healthKind(),
		Positions: health.Positions{
			Deposits: pos.Deposits,
			Lends:    pos.Lends,
			StakedLP: pos.StakedLP,
		},
		AssetParams:      map[string]params.AssetParams{},
		VaultConfigs:     map[string]params.VaultConfig{},
		Prices:           map[string]sdkmath.LegacyDec{},
		EnforceWhitelist: true,
	}
	denoms := append([]string{}, extra...)
	denoms = append(denoms, pos.Deposits.Denoms()...)
	denoms = append(denoms, pos.Lends.Denoms()...)
	denoms = append(denoms, pos.StakedLP.Denoms()...)
	for _, d := range pos.Debts {
		c.Positions.Debts = append(c.Positions.Debts, health.Debt{Denom: d.Denom, Amount: d.Amount})
		denoms = append(denoms, d.Denom)
	}
	for _, vp := range pos.Vaults {
		v, err := e.vault(vp.Vault)
		if err != nil {
			return nil, err
		}
		info := v.Config()
		sharesBase := sdkmath.ZeroInt()
		if shares := vp.Shares(); shares.IsPositive() {
			if sharesBase, err = v.PreviewRedeem(ctx, shares); err != nil {
				return nil, err
			}
		}
		unlocking := sdkmath.ZeroInt()
		for _, u := range vp.Unlocking {
			unlocking = unlocking.Add(u.Coin.Amount)
		}
		vc, err := e.deps.Params.VaultConfig(ctx, vp.Vault)
		if err != nil {
			return nil, err
		}
		c.VaultConfigs[vp.Vault] = vc
		c.Positions.Vaults = append(c.Positions.Vaults, health.VaultPosition{
			Vault:         vp.Vault,
			BaseDenom:     info.BaseDenom,
			SharesBase:    sharesBase,
			UnlockingBase: unlocking,
		})
		if unlocking.IsPositive() {
			denoms = append(denoms, info.BaseDenom)
		} else if err := e.loadPrice(ctx, c, info.BaseDenom, kind); err != nil {
			return nil, err
		}
	}
	for _, denom := range denoms {
		if _, ok := c.AssetParams[denom]; ok {
			continue
		}
		ap, err := e.deps.Params.AssetParams(ctx, denom)
		if err != nil {
			return nil, err
		}
		c.AssetParams[denom] = ap
		if err := e.loadPrice(ctx, c, denom, kind); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (e *Engine) loadPrice(ctx *core.Context, c *health.Computer, denom string, kind oracle.Kind) error {
	if _, ok := c.Prices[denom]; ok {
		return nil
	}
	p, err := e.deps.Prices.Price(ctx, denom, kind)
	if err != nil {
		return err
	}
	c.Prices[denom] = p
	return nil
}

func (e *Engine) health(ctx *core.Context, accountID string, kind oracle.Kind) (health.Values, error) {
	c, err := e.computer(ctx, accountID, kind)
	if err != nil {
		return health.Values{}, err
	}
	return c.Compute()
}

// Health returns the health values of an account at default prices.
func (e *Engine) Health(ctx *core.Context, accountID string) (health.Values, error) {
	return e.health(ctx, accountID, oracle.KindDefault)
}

// EstimateMaxWithdraw returns how much of a deposited denom can leave the
// account without breaching the max-LTV health factor.
func (e *Engine) EstimateMaxWithdraw(ctx *core.Context, accountID, denom string) (sdkmath.Int, error) {
	c, err := e.computer(ctx, accountID, oracle.KindDefault)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return c.MaxWithdrawAmountEstimate(denom)
}

// EstimateMaxBorrow returns how much of denom the account can borrow.
func (e *Engine) EstimateMaxBorrow(ctx *core.Context, accountID, denom string, target health.BorrowTarget) (sdkmath.Int, error) {
	c, err := e.computer(ctx, accountID, oracle.KindDefault, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return c.MaxBorrowAmountEstimate(denom, target)
}
