// Package apptest builds a fully wired App over an in-memory database for
// integration tests.
package apptest

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"creditchain/app"
	"creditchain/core"
	"creditchain/core/types"
	"creditchain/crypto"
	"creditchain/native/creditmanager"
	"creditchain/native/health"
	"creditchain/native/oracle"
	"creditchain/native/params"
	"creditchain/native/redbank"
	"creditchain/native/vaults"
	"creditchain/native/zapper"
	"creditchain/storage"
)

// GenesisTime is the block time the harness starts at.
const GenesisTime = uint64(1_700_000_000)

// Denoms and vaults of the test genesis.
const (
	Osmo    = "uosmo"
	Atom    = "uatom"
	Usdc    = "uusdc"
	StAtom  = "ustatom"
	LpToken = "gamm/pool/1"

	VaultAtom   = "atom"
	VaultLocked = "osmo_locked"

	// LockedVaultLockup is the lockup of VaultLocked in seconds.
	LockedVaultLockup = uint64(86_400)
)

// Dec parses a decimal or panics.
func Dec(s string) sdkmath.LegacyDec {
	return sdkmath.LegacyMustNewDecFromStr(s)
}

// Coin builds an integer coin.
func Coin(denom string, amount int64) types.Coin {
	return types.NewInt64Coin(denom, amount)
}

// Addr derives a test account address.
func Addr(name string) string {
	return crypto.ModuleAddress("user/" + name)
}

// Owner is the protocol owner of the test genesis.
func Owner() string {
	return crypto.ModuleAddress("owner")
}

// Asset returns whitelisted, borrowable asset parameters.
func Asset(denom, ltv, lt string) params.AssetParams {
	return params.AssetParams{
		Denom:                denom,
		CreditManager:        params.CreditManagerSettings{Whitelisted: true},
		RedBank:              params.RedBankSettings{DepositEnabled: true, BorrowEnabled: true},
		MaxLoanToValue:       Dec(ltv),
		LiquidationThreshold: Dec(lt),
		LiquidationBonus: params.LiquidationBonus{
			StartingLB: sdkmath.LegacyZeroDec(),
			Slope:      Dec("2"),
			MinLB:      sdkmath.LegacyZeroDec(),
			MaxLB:      Dec("0.1"),
		},
		ProtocolLiquidationFee: Dec("0.1"),
		DepositCap:             sdkmath.NewInt(1_000_000_000_000_000),
	}
}

// Market lists denom in the money market with the test interest rate model.
func Market(denom string) redbank.InitAsset {
	return redbank.InitAsset{
		Denom: denom,
		Params: redbank.MarketParams{
			ReserveFactor: Dec("0.1"),
			InterestRateModel: redbank.InterestRateModel{
				OptimalUtilizationRate: Dec("0.8"),
				Base:                   sdkmath.LegacyZeroDec(),
				Slope1:                 Dec("0.2"),
				Slope2:                 Dec("1"),
			},
		},
	}
}

// Genesis is the default test genesis: four coins with money markets on
// three of them, an LP pool, a vault without lockup over uatom and a locked
// vault over uosmo.
func Genesis() app.Genesis {
	owner := Owner()
	atomVault := vaults.Address(VaultAtom)
	lockedVault := vaults.Address(VaultLocked)

	atom := Asset(Atom, "0.7", "0.78")
	atom.CreditManager.Hls = &params.HlsParams{
		MaxLoanToValue:       Dec("0.8"),
		LiquidationThreshold: Dec("0.85"),
		Correlations:         []params.HlsCorrelation{{Denom: StAtom}, {Vault: atomVault}},
	}
	stAtom := Asset(StAtom, "0.6", "0.7")
	stAtom.RedBank = params.RedBankSettings{}
	stAtom.CreditManager.Hls = &params.HlsParams{
		MaxLoanToValue:       Dec("0.85"),
		LiquidationThreshold: Dec("0.9"),
		Correlations:         []params.HlsCorrelation{{Denom: Atom}},
	}
	lp := Asset(LpToken, "0.5", "0.6")
	lp.RedBank = params.RedBankSettings{}

	vaultCfg := func(addr, denom string, hls *params.HlsParams) params.VaultConfig {
		return params.VaultConfig{
			Addr:                 addr,
			DepositCap:           types.NewInt64Coin(denom, 1_000_000_000_000),
			MaxLoanToValue:       Dec("0.6"),
			LiquidationThreshold: Dec("0.7"),
			Whitelisted:          true,
			Hls:                  hls,
		}
	}
	supply := sdkmath.NewInt(1_000_000_000_000_000)
	treasury := types.NewCoins(
		types.NewCoin(Osmo, supply), types.NewCoin(Atom, supply),
		types.NewCoin(Usdc, supply), types.NewCoin(StAtom, supply),
	)
	return app.Genesis{
		Time:                  GenesisTime,
		Owner:                 owner,
		TargetHealthFactor:    Dec("1.2"),
		MaxCloseFactor:        Dec("0.5"),
		SwapFee:               Dec("0.003"),
		MaxUnlockingPositions: 10,
		MaxSlippage:           Dec("0.05"),
		Assets:                []params.AssetParams{Asset(Osmo, "0.6", "0.7"), atom, Asset(Usdc, "0.8", "0.85"), stAtom, lp},
		Prices: []oracle.SetPrice{
			{Denom: Osmo, Price: Dec("1")},
			{Denom: Atom, Price: Dec("10")},
			{Denom: Usdc, Price: Dec("1")},
			{Denom: StAtom, Price: Dec("11")},
			{Denom: LpToken, Price: Dec("2")},
		},
		Markets: []redbank.InitAsset{Market(Osmo), Market(Atom), Market(Usdc)},
		Vaults: []app.VaultGenesis{
			{
				Name:   VaultAtom,
				Config: vaults.Config{Addr: atomVault, BaseDenom: Atom, VaultToken: "vault/atom/share"},
				Params: vaultCfg(atomVault, Atom, &params.HlsParams{
					MaxLoanToValue:       Dec("0.75"),
					LiquidationThreshold: Dec("0.8"),
					Correlations:         []params.HlsCorrelation{{Denom: Atom}},
				}),
			},
			{
				Name:   VaultLocked,
				Config: vaults.Config{Addr: lockedVault, BaseDenom: Osmo, VaultToken: "vault/osmo/share", Lockup: LockedVaultLockup},
				Params: vaultCfg(lockedVault, Osmo, nil),
			},
		},
		Pools: []zapper.Pool{{LpDenom: LpToken, Denoms: []string{Atom, Osmo}}},
		Balances: map[string]types.Coins{
			owner:                                treasury,
			crypto.ModuleAddress(app.NameSwapper): treasury,
		},
	}
}

// Liquidity is what the owner supplies to every money market at start.
var Liquidity = sdkmath.NewInt(1_000_000_000_000)

// Harness drives an App through messages and asserts on the results.
type Harness struct {
	T     testing.TB
	Ctx   context.Context
	App   *app.App
	Owner string
}

// New returns a harness over the default test genesis with liquidity in
// every market.
func New(t testing.TB) *Harness {
	return NewWithGenesis(t, Genesis())
}

// NewWithGenesis returns a harness over g. When g has markets the owner
// supplies Liquidity to each of them.
func NewWithGenesis(t testing.TB, g app.Genesis) *Harness {
	t.Helper()
	a := app.New(storage.NewMemDB(), "credit-test", nil)
	t.Cleanup(func() { _ = a.Close() })
	h := &Harness{T: t, Ctx: context.Background(), App: a, Owner: g.Owner}
	require.NoError(t, a.InitGenesis(h.Ctx, g))
	for _, m := range g.Markets {
		h.Exec(h.Owner, a.Addresses.RedBank, redbank.Deposit{}, types.NewCoin(m.Denom, Liquidity))
	}
	return h
}

// Try runs msg and returns the executor result.
func (h *Harness) Try(sender, contract string, msg any, funds ...types.Coin) (*core.Result, error) {
	return h.App.Execute(h.Ctx, sender, contract, msg, funds...)
}

// Exec runs msg and fails the test on error.
func (h *Harness) Exec(sender, contract string, msg any, funds ...types.Coin) *core.Result {
	h.T.Helper()
	res, err := h.Try(sender, contract, msg, funds...)
	require.NoError(h.T, err)
	return res
}

// Fund mints coins to addr.
func (h *Harness) Fund(addr string, coins ...types.Coin) {
	h.T.Helper()
	require.NoError(h.T, h.App.Update(h.Ctx, func(c *core.Context) error {
		return h.App.Bank.Mint(c, addr, types.NewCoins(coins...))
	}))
}

// CreateAccount opens a default credit account owned by owner.
func (h *Harness) CreateAccount(owner string) string {
	h.T.Helper()
	return h.CreateAccountKind(owner, creditmanager.AccountKind{Type: creditmanager.KindDefault})
}

// CreateAccountKind opens a credit account of kind owned by owner.
func (h *Harness) CreateAccountKind(owner string, kind creditmanager.AccountKind) string {
	h.T.Helper()
	res := h.Exec(owner, h.App.Addresses.CreditManager, creditmanager.UpdateCreditAccount{AccountKind: &kind})
	id, ok := res.Data.(string)
	require.True(h.T, ok, "account id missing from result")
	return id
}

// UpdateAccount runs actions on accountID as sender with funds attached.
func (h *Harness) UpdateAccount(sender, accountID string, funds types.Coins, actions ...creditmanager.Action) error {
	_, err := h.Try(sender, h.App.Addresses.CreditManager, creditmanager.UpdateCreditAccount{
		AccountID: accountID,
		Actions:   actions,
	}, funds...)
	return err
}

// MustUpdateAccount is UpdateAccount failing the test on error.
func (h *Harness) MustUpdateAccount(sender, accountID string, funds types.Coins, actions ...creditmanager.Action) {
	h.T.Helper()
	require.NoError(h.T, h.UpdateAccount(sender, accountID, funds, actions...))
}

// SetPrice moves the oracle price of denom.
func (h *Harness) SetPrice(denom, price string) {
	h.T.Helper()
	h.Exec(h.Owner, h.App.Addresses.Oracle, oracle.SetPrice{Denom: denom, Price: Dec(price)})
}

// UpdateAsset rewrites the parameters of denom with fn.
func (h *Harness) UpdateAsset(denom string, fn func(p *params.AssetParams)) {
	h.T.Helper()
	var p params.AssetParams
	h.query(func(c *core.Context) (err error) {
		p, err = h.App.Params.AssetParams(c, denom)
		return err
	})
	fn(&p)
	h.Exec(h.Owner, h.App.Addresses.Params, params.UpdateAssetParams{Params: p})
}

// SetMaxCloseFactor changes the close factor ceiling.
func (h *Harness) SetMaxCloseFactor(v string) {
	h.T.Helper()
	h.Exec(h.Owner, h.App.Addresses.Params, params.UpdateMaxCloseFactor{Value: Dec(v)})
}

func (h *Harness) query(fn func(c *core.Context) error) {
	h.T.Helper()
	require.NoError(h.T, h.App.Query(h.Ctx, fn))
}

// Balance returns the bank balance of addr in denom.
func (h *Harness) Balance(addr, denom string) sdkmath.Int {
	h.T.Helper()
	var out sdkmath.Int
	h.query(func(c *core.Context) (err error) {
		out, err = h.App.Bank.Balance(c, addr, denom)
		return err
	})
	return out
}

// Positions returns the positions of a credit account.
func (h *Harness) Positions(accountID string) creditmanager.Positions {
	h.T.Helper()
	var out creditmanager.Positions
	h.query(func(c *core.Context) (err error) {
		out, err = h.App.CreditManager.Positions(c, accountID)
		return err
	})
	return out
}

// Health returns the health values of a credit account.
func (h *Harness) Health(accountID string) health.Values {
	h.T.Helper()
	var out health.Values
	h.query(func(c *core.Context) (err error) {
		out, err = h.App.CreditManager.Health(c, accountID)
		return err
	})
	return out
}

// Debt returns the debt of a credit account in denom, zero when none.
func (h *Harness) Debt(accountID, denom string) sdkmath.Int {
	h.T.Helper()
	for _, d := range h.Positions(accountID).Debts {
		if d.Denom == denom {
			return d.Amount
		}
	}
	return sdkmath.ZeroInt()
}

// VaultPosition returns the position of a credit account in a named vault.
func (h *Harness) VaultPosition(accountID, vaultName string) creditmanager.VaultPosition {
	h.T.Helper()
	addr := vaults.Address(vaultName)
	for _, v := range h.Positions(accountID).Vaults {
		if v.Vault == addr {
			return v
		}
	}
	return creditmanager.VaultPosition{Vault: addr, Unlocked: sdkmath.ZeroInt(), Locked: sdkmath.ZeroInt()}
}

// UserDebt returns the red bank debt of a wallet in denom.
func (h *Harness) UserDebt(user, denom string) redbank.Debt {
	h.T.Helper()
	var out redbank.Debt
	h.query(func(c *core.Context) (err error) {
		out, err = h.App.RedBank.UserDebt(c, user, "", denom)
		return err
	})
	return out
}

// UserCollateral returns the red bank collateral of a wallet in denom.
func (h *Harness) UserCollateral(user, denom string) redbank.Collateral {
	h.T.Helper()
	var out redbank.Collateral
	h.query(func(c *core.Context) (err error) {
		out, err = h.App.RedBank.UserCollateral(c, user, "", denom)
		return err
	})
	return out
}
