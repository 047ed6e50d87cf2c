package app

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/types"
	"creditchain/native/health"
	"creditchain/native/oracle"
	"creditchain/native/vaults"
)

type queryFunc func(c *core.Context, args json.RawMessage) (any, error)

func route[A any](fn func(c *core.Context, args A) (any, error)) queryFunc {
	return func(c *core.Context, raw json.RawMessage) (any, error) {
		var args A
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, errorsmod.Wrap(cerrors.ErrValidation, err.Error())
			}
		}
		return fn(c, args)
	}
}

type none struct{}

type denomArgs struct {
	Denom string `json:"denom"`
}

type addressArgs struct {
	Address string `json:"address"`
	Denom   string `json:"denom,omitempty"`
}

type userArgs struct {
	User      string `json:"user"`
	AccountID string `json:"account_id,omitempty"`
	Denom     string `json:"denom,omitempty"`
	LpDenom   string `json:"lp_denom,omitempty"`
}

type amountArgs struct {
	Denom  string      `json:"denom"`
	Amount sdkmath.Int `json:"amount"`
}

type accountArgs struct {
	AccountID string              `json:"account_id"`
	Denom     string              `json:"denom,omitempty"`
	Target    health.BorrowTarget `json:"target,omitempty"`
}

type vaultArgs struct {
	Vault  string      `json:"vault"`
	Shares sdkmath.Int `json:"shares"`
	ID     uint64      `json:"id,omitempty"`
	Owner  string      `json:"owner,omitempty"`
}

// QueryRouter resolves named read-only queries against committed state.
// Modules are addressed by contract name; vault queries take the vault
// address as an argument.
type QueryRouter struct {
	app    *App
	routes map[string]map[string]queryFunc
}

func newQueryRouter(a *App) *QueryRouter {
	r := &QueryRouter{app: a, routes: make(map[string]map[string]queryFunc)}

	r.routes[NameBank] = map[string]queryFunc{
		"balance": route(func(c *core.Context, q addressArgs) (any, error) {
			amount, err := a.Bank.Balance(c, q.Address, q.Denom)
			if err != nil {
				return nil, err
			}
			return types.NewCoin(q.Denom, amount), nil
		}),
		"balances": route(func(c *core.Context, q addressArgs) (any, error) { return a.Bank.Balances(c, q.Address) }),
		"supply": route(func(c *core.Context, q denomArgs) (any, error) {
			amount, err := a.Bank.Supply(c, q.Denom)
			if err != nil {
				return nil, err
			}
			return types.NewCoin(q.Denom, amount), nil
		}),
	}

	r.routes[NameParams] = map[string]queryFunc{
		"asset_params":         route(func(c *core.Context, q denomArgs) (any, error) { return a.Params.AssetParams(c, q.Denom) }),
		"all_asset_params":     route(func(c *core.Context, _ none) (any, error) { return a.Params.AllAssetParams(c) }),
		"vault_config":         route(func(c *core.Context, q vaultArgs) (any, error) { return a.Params.VaultConfig(c, q.Vault) }),
		"all_vault_configs":    route(func(c *core.Context, _ none) (any, error) { return a.Params.AllVaultConfigs(c) }),
		"target_health_factor": route(func(c *core.Context, _ none) (any, error) { return a.Params.TargetHealthFactor(c) }),
		"max_close_factor":     route(func(c *core.Context, _ none) (any, error) { return a.Params.MaxCloseFactor(c) }),
		"pauses":               route(func(c *core.Context, _ none) (any, error) { return a.Params.Pauses(c) }),
		"owner":                route(func(c *core.Context, _ none) (any, error) { return a.Params.Owner(c) }),
	}

	r.routes[NameOracle] = map[string]queryFunc{
		"price": route(func(c *core.Context, q struct {
			Denom string      `json:"denom"`
			Kind  oracle.Kind `json:"kind"`
		}) (any, error) {
			return a.Oracle.Price(c, q.Denom, q.Kind)
		}),
		"all_prices": route(func(c *core.Context, _ none) (any, error) { return a.Oracle.AllPrices(c) }),
		"config":     route(func(c *core.Context, _ none) (any, error) { return a.Oracle.Config(c) }),
	}

	r.routes[NameRedBank] = map[string]queryFunc{
		"config":  route(func(c *core.Context, _ none) (any, error) { return a.RedBank.Config(c) }),
		"market":  route(func(c *core.Context, q denomArgs) (any, error) { return a.RedBank.Market(c, q.Denom) }),
		"markets": route(func(c *core.Context, _ none) (any, error) { return a.RedBank.Markets(c) }),
		"user_collateral": route(func(c *core.Context, q userArgs) (any, error) {
			return a.RedBank.UserCollateral(c, q.User, q.AccountID, q.Denom)
		}),
		"user_collaterals": route(func(c *core.Context, q userArgs) (any, error) {
			return a.RedBank.UserCollaterals(c, q.User, q.AccountID)
		}),
		"user_debt": route(func(c *core.Context, q userArgs) (any, error) {
			return a.RedBank.UserDebt(c, q.User, q.AccountID, q.Denom)
		}),
		"user_debts": route(func(c *core.Context, q userArgs) (any, error) {
			return a.RedBank.UserDebts(c, q.User, q.AccountID)
		}),
		"user_position": route(func(c *core.Context, q userArgs) (any, error) {
			return a.RedBank.UserPosition(c, q.User, q.AccountID)
		}),
		"uncollateralized_loan_limit": route(func(c *core.Context, q userArgs) (any, error) {
			return a.RedBank.UncollateralizedLoanLimit(c, q.User, q.Denom)
		}),
		"underlying_liquidity_amount": route(func(c *core.Context, q amountArgs) (any, error) {
			return a.RedBank.UnderlyingLiquidityAmount(c, q.Denom, q.Amount)
		}),
		"underlying_debt_amount": route(func(c *core.Context, q amountArgs) (any, error) {
			return a.RedBank.UnderlyingDebtAmount(c, q.Denom, q.Amount)
		}),
		"scaled_liquidity_amount": route(func(c *core.Context, q amountArgs) (any, error) {
			return a.RedBank.ScaledLiquidityAmount(c, q.Denom, q.Amount)
		}),
		"scaled_debt_amount": route(func(c *core.Context, q amountArgs) (any, error) {
			return a.RedBank.ScaledDebtAmount(c, q.Denom, q.Amount)
		}),
		"available_liquidity": route(func(c *core.Context, q denomArgs) (any, error) {
			return a.RedBank.AvailableLiquidity(c, q.Denom)
		}),
	}

	r.routes[NameCreditManager] = map[string]queryFunc{
		"config": route(func(c *core.Context, _ none) (any, error) { return a.CreditManager.Config(c) }),
		"account_kind": route(func(c *core.Context, q accountArgs) (any, error) {
			return a.CreditManager.AccountKind(c, q.AccountID)
		}),
		"positions": route(func(c *core.Context, q accountArgs) (any, error) {
			return a.CreditManager.Positions(c, q.AccountID)
		}),
		"health": route(func(c *core.Context, q accountArgs) (any, error) {
			return a.CreditManager.Health(c, q.AccountID)
		}),
		"positions_with_health": route(func(c *core.Context, q accountArgs) (any, error) {
			return a.CreditManager.PositionsWithHealth(c, q.AccountID)
		}),
		"estimate_max_withdraw": route(func(c *core.Context, q accountArgs) (any, error) {
			return a.CreditManager.EstimateMaxWithdraw(c, q.AccountID, q.Denom)
		}),
		"estimate_max_borrow": route(func(c *core.Context, q accountArgs) (any, error) {
			return a.CreditManager.EstimateMaxBorrow(c, q.AccountID, q.Denom, q.Target)
		}),
		"accounts": route(func(c *core.Context, q struct {
			Owner string `json:"owner"`
		}) (any, error) {
			return a.CreditManager.Accounts(c, q.Owner)
		}),
	}

	r.routes[NameAccountNFT] = map[string]queryFunc{
		"owner_of": route(func(c *core.Context, q struct {
			TokenID string `json:"token_id"`
		}) (any, error) {
			return a.AccountNFT.OwnerOf(c, q.TokenID)
		}),
		"next_id": route(func(c *core.Context, _ none) (any, error) { return a.AccountNFT.NextID(c) }),
		"tokens": route(func(c *core.Context, q struct {
			Owner string `json:"owner"`
		}) (any, error) {
			return a.AccountNFT.Tokens(c, q.Owner)
		}),
	}

	r.routes[NameIncentives] = map[string]queryFunc{
		"unclaimed_rewards": route(func(c *core.Context, q userArgs) (any, error) {
			return a.Incentives.UnclaimedRewards(c, q.User, q.AccountID)
		}),
		"staked_lp": route(func(c *core.Context, q userArgs) (any, error) {
			return a.Incentives.StakedLp(c, q.User, q.AccountID, q.LpDenom)
		}),
		"staked_lp_positions": route(func(c *core.Context, q userArgs) (any, error) {
			return a.Incentives.StakedLpPositions(c, q.User, q.AccountID)
		}),
		"emissions": route(func(c *core.Context, _ none) (any, error) { return a.Incentives.Emissions(c) }),
	}

	r.routes[NameSwapper] = map[string]queryFunc{
		"config": route(func(c *core.Context, _ none) (any, error) { return a.Swapper.Config(c) }),
		"estimate_exact_in": route(func(c *core.Context, q struct {
			CoinIn   types.Coin `json:"coin_in"`
			DenomOut string     `json:"denom_out"`
			Route    []string   `json:"route,omitempty"`
		}) (any, error) {
			return a.Swapper.EstimateExactIn(c, q.CoinIn, q.DenomOut, q.Route)
		}),
	}

	r.routes[NameZapper] = map[string]queryFunc{
		"pool": route(func(c *core.Context, q struct {
			LpDenom string `json:"lp_denom"`
		}) (any, error) {
			return a.Zapper.Pool(c, q.LpDenom)
		}),
		"estimate_provide_liquidity": route(func(c *core.Context, q struct {
			LpDenom string      `json:"lp_denom"`
			CoinsIn types.Coins `json:"coins_in"`
		}) (any, error) {
			return a.Zapper.EstimateProvideLiquidity(c, q.LpDenom, types.NewCoins(q.CoinsIn...))
		}),
		"estimate_withdraw_liquidity": route(func(c *core.Context, q struct {
			LpCoin types.Coin `json:"lp_coin"`
		}) (any, error) {
			return a.Zapper.EstimateWithdrawLiquidity(c, q.LpCoin)
		}),
	}

	r.routes["vaults"] = map[string]queryFunc{
		"info": route(func(c *core.Context, q vaultArgs) (any, error) {
			v, err := r.vault(q.Vault)
			if err != nil {
				return nil, err
			}
			return v.Info(c)
		}),
		"preview_redeem": route(func(c *core.Context, q vaultArgs) (any, error) {
			v, err := r.vault(q.Vault)
			if err != nil {
				return nil, err
			}
			return v.PreviewRedeem(c, q.Shares)
		}),
		"next_lockup_id": route(func(c *core.Context, q vaultArgs) (any, error) {
			v, err := r.vault(q.Vault)
			if err != nil {
				return nil, err
			}
			return v.NextLockupID(c)
		}),
		"lockup": route(func(c *core.Context, q vaultArgs) (any, error) {
			v, err := r.vault(q.Vault)
			if err != nil {
				return nil, err
			}
			return v.Lockup(c, q.ID)
		}),
		"lockups": route(func(c *core.Context, q vaultArgs) (any, error) {
			v, err := r.vault(q.Vault)
			if err != nil {
				return nil, err
			}
			return v.Lockups(c, q.Owner)
		}),
	}
	return r
}

func (r *QueryRouter) vault(name string) (*vaults.Engine, error) {
	addr, err := r.app.ContractAddress(name)
	if err != nil {
		return nil, err
	}
	v, ok := r.app.Vaults[addr]
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownContract, "%s is not a vault", name)
	}
	return v, nil
}

// Query runs module/name with JSON arguments at the current block.
func (r *QueryRouter) Query(ctx context.Context, module, name string, args json.RawMessage) (any, error) {
	module = strings.ToLower(strings.TrimSpace(module))
	queries, ok := r.routes[module]
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownContract, "%s", module)
	}
	fn, ok := queries[name]
	if !ok {
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "%s/%s", module, name)
	}
	var out any
	err := r.app.Query(ctx, func(c *core.Context) error {
		res, err := fn(c, args)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Modules lists the modules and their query names.
func (r *QueryRouter) Modules() map[string][]string {
	out := make(map[string][]string, len(r.routes))
	for module, queries := range r.routes {
		names := make([]string, 0, len(queries))
		for name := range queries {
			names = append(names, name)
		}
		sort.Strings(names)
		out[module] = names
	}
	return out
}
