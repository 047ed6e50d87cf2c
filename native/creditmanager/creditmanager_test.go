package creditmanager_test

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"creditchain/app/apptest"
	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/types"
	"creditchain/native/accountnft"
	cm "creditchain/native/creditmanager"
	"creditchain/native/params"
	"creditchain/native/vaults"
)

func coins(cs ...types.Coin) types.Coins { return types.NewCoins(cs...) }

func atomCoin(n int64) types.Coin { return apptest.Coin(apptest.Atom, n) }
func osmoCoin(n int64) types.Coin { return apptest.Coin(apptest.Osmo, n) }
func usdcCoin(n int64) types.Coin { return apptest.Coin(apptest.Usdc, n) }

func collectorAccount(t *testing.T, h *apptest.Harness) string {
	t.Helper()
	var cfg cm.Config
	require.NoError(t, h.App.Query(h.Ctx, func(c *core.Context) (err error) {
		cfg, err = h.App.CreditManager.Config(c)
		return err
	}))
	require.NotEmpty(t, cfg.RewardsCollector.AccountID)
	return cfg.RewardsCollector.AccountID
}

func deposit(h *apptest.Harness, accountID, denom string) sdkmath.Int {
	return h.Positions(accountID).Deposits.AmountOf(denom)
}

func TestCreateAccount(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")

	id := h.CreateAccount(alice)
	require.Equal(t, "2", id, "the rewards collector holds the first account")

	var owner string
	require.NoError(t, h.App.Query(h.Ctx, func(c *core.Context) (err error) {
		owner, err = h.App.AccountNFT.OwnerOf(c, id)
		return err
	}))
	require.Equal(t, alice, owner)

	pos := h.Positions(id)
	require.Equal(t, cm.KindDefault, pos.Kind.Type)
	require.True(t, pos.Deposits.Empty())
	require.Empty(t, pos.Debts)

	second := h.CreateAccountKind(alice, cm.AccountKind{Type: cm.KindHighLeveredStrategy})
	require.Equal(t, "3", second)
	require.Equal(t, cm.KindHighLeveredStrategy, h.Positions(second).Kind.Type)
}

func TestCreateAndActInOneMessage(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	h.Fund(alice, osmoCoin(1_000))

	res := h.Exec(alice, h.App.Addresses.CreditManager, cm.UpdateCreditAccount{
		Actions: []cm.Action{cm.Deposit{Coin: osmoCoin(1_000)}},
	}, osmoCoin(1_000))
	id, ok := res.Data.(string)
	require.True(t, ok)
	require.Equal(t, sdkmath.NewInt(1_000), deposit(h, id, apptest.Osmo))
	require.True(t, h.Balance(alice, apptest.Osmo).IsZero())
}

func TestOnlyOwnerMayUpdate(t *testing.T) {
	h := apptest.New(t)
	alice, bob := apptest.Addr("alice"), apptest.Addr("bob")
	id := h.CreateAccount(alice)
	h.Fund(bob, osmoCoin(10))

	err := h.UpdateAccount(bob, id, coins(osmoCoin(10)), cm.Deposit{Coin: osmoCoin(10)})
	require.ErrorIs(t, err, cerrors.ErrUnauthorized)

	// Transferring the token moves control of the account.
	h.Exec(alice, h.App.Addresses.AccountNFT, accountnft.TransferNft{TokenID: id, Recipient: bob})
	h.MustUpdateAccount(bob, id, coins(osmoCoin(10)), cm.Deposit{Coin: osmoCoin(10)})
}

func TestCallbacksRejectOutsiders(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)

	_, err := h.Try(alice, h.App.Addresses.CreditManager, cm.Callback{Msg: cm.RemoveReentrancyGuard{}})
	require.ErrorIs(t, err, cerrors.ErrExternalInvocation)

	_, err = h.Try(alice, h.App.Addresses.CreditManager, cm.Callback{Msg: cm.BorrowIntoAccount{AccountID: id, Coin: usdcCoin(1)}})
	require.ErrorIs(t, err, cerrors.ErrExternalInvocation)
}

func TestExtraFundsReceived(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, osmoCoin(100), atomCoin(5))

	err := h.UpdateAccount(alice, id, coins(osmoCoin(100)), cm.Deposit{Coin: osmoCoin(50)})
	require.ErrorIs(t, err, cerrors.ErrExtraFundsReceived)

	err = h.UpdateAccount(alice, id, coins(osmoCoin(100), atomCoin(5)), cm.Deposit{Coin: osmoCoin(100)})
	require.ErrorIs(t, err, cerrors.ErrExtraFundsReceived)

	// Declaring more than was attached is the same mismatch.
	err = h.UpdateAccount(alice, id, coins(osmoCoin(50)), cm.Deposit{Coin: osmoCoin(100)})
	require.ErrorIs(t, err, cerrors.ErrExtraFundsReceived)

	err = h.UpdateAccount(alice, id, coins(osmoCoin(50)), cm.Deposit{Coin: atomCoin(5)})
	require.ErrorIs(t, err, cerrors.ErrExtraFundsReceived)

	// Failed batches leave the wallet untouched.
	require.Equal(t, sdkmath.NewInt(100), h.Balance(alice, apptest.Osmo))
	require.True(t, h.Positions(id).Deposits.Empty())
}

var errRollback = errors.New("rollback")

// A batch dispatched while another one holds the reentrancy guard fails.
func TestUpdateCreditAccountIsNotReentrant(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	update := cm.UpdateCreditAccount{AccountID: id, Actions: []cm.Action{cm.Deposit{Coin: osmoCoin(10)}}}
	info := core.MessageInfo{Sender: alice, Funds: coins(osmoCoin(10))}

	err := h.App.Update(h.Ctx, func(c *core.Context) error {
		_, err := h.App.CreditManager.Execute(c, info, update)
		require.NoError(t, err)
		_, err = h.App.CreditManager.Execute(c, info, update)
		require.ErrorIs(t, err, cerrors.ErrGuardActive)
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	// Through the executor the queued callback releases the guard.
	h.Fund(alice, osmoCoin(20))
	h.MustUpdateAccount(alice, id, coins(osmoCoin(10)), cm.Deposit{Coin: osmoCoin(10)})
	h.MustUpdateAccount(alice, id, coins(osmoCoin(10)), cm.Deposit{Coin: osmoCoin(10)})
	require.Equal(t, sdkmath.NewInt(20), deposit(h, id, apptest.Osmo))
}

// The account checks are queued after every action, in a fixed order.
func TestAccountChecksQueuedLast(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccountKind(alice, cm.AccountKind{Type: cm.KindHighLeveredStrategy})
	stAtom := apptest.Coin(apptest.StAtom, 1_000)
	update := cm.UpdateCreditAccount{AccountID: id, Actions: []cm.Action{
		cm.Deposit{Coin: stAtom},
		cm.Borrow{Coin: atomCoin(500)},
	}}

	var queued []cm.CallbackMsg
	err := h.App.Update(h.Ctx, func(c *core.Context) error {
		resp, err := h.App.CreditManager.Execute(c, core.MessageInfo{Sender: alice, Funds: coins(stAtom)}, update)
		require.NoError(t, err)
		for _, msg := range resp.Messages {
			exec, ok := msg.(core.ExecuteMsg)
			require.True(t, ok, "unexpected %T", msg)
			require.Equal(t, h.App.Addresses.CreditManager, exec.Contract)
			cb, ok := exec.Msg.(cm.Callback)
			require.True(t, ok, "unexpected %T", exec.Msg)
			queued = append(queued, cb.Msg)
		}
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	require.Len(t, queued, 5)
	require.IsType(t, cm.BorrowIntoAccount{}, queued[0])
	require.Equal(t, []cm.CallbackMsg{
		cm.AssertHlsRules{AccountID: id},
		cm.AssertMaxLTV{AccountID: id},
		cm.AssertDepositCaps{Denoms: []string{apptest.StAtom}},
		cm.RemoveReentrancyGuard{},
	}, queued[1:])
}

func TestDepositRequiresWhitelist(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, osmoCoin(10))
	h.UpdateAsset(apptest.Osmo, func(p *params.AssetParams) { p.CreditManager.Whitelisted = false })

	err := h.UpdateAccount(alice, id, coins(osmoCoin(10)), cm.Deposit{Coin: osmoCoin(10)})
	require.ErrorIs(t, err, cerrors.ErrNotWhitelisted)
}

func TestBorrowWithdrawRepay(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, atomCoin(1_000))

	h.MustUpdateAccount(alice, id, coins(atomCoin(1_000)),
		cm.Deposit{Coin: atomCoin(1_000)},
		cm.Borrow{Coin: usdcCoin(2_000)},
		cm.Withdraw{Coin: cm.ActionCoin{Denom: apptest.Usdc, Amount: cm.Exact(1_500)}},
	)
	require.Equal(t, sdkmath.NewInt(2_000), h.Debt(id, apptest.Usdc))
	require.Equal(t, sdkmath.NewInt(500), deposit(h, id, apptest.Usdc))
	require.Equal(t, sdkmath.NewInt(1_500), h.Balance(alice, apptest.Usdc))

	hv := h.Health(id)
	require.NotNil(t, hv.MaxLTVHealthFactor)
	require.False(t, hv.Liquidatable)

	h.MustUpdateAccount(alice, id, coins(usdcCoin(1_500)),
		cm.Deposit{Coin: usdcCoin(1_500)},
		cm.Repay{Coin: cm.ActionCoin{Denom: apptest.Usdc, Amount: cm.AccountBalance()}},
	)
	require.True(t, h.Debt(id, apptest.Usdc).IsZero())
	require.True(t, deposit(h, id, apptest.Usdc).IsZero())
	require.Nil(t, h.Health(id).MaxLTVHealthFactor)
}

func TestRepayWithoutDebtFails(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, usdcCoin(10))

	err := h.UpdateAccount(alice, id, coins(usdcCoin(10)),
		cm.Deposit{Coin: usdcCoin(10)},
		cm.Repay{Coin: cm.ActionCoin{Denom: apptest.Usdc, Amount: cm.Exact(10)}},
	)
	require.ErrorIs(t, err, cerrors.ErrNoDebt)
}

func TestRepayForAnotherAccount(t *testing.T) {
	h := apptest.New(t)
	alice, bob := apptest.Addr("alice"), apptest.Addr("bob")
	debtor := h.CreateAccount(alice)
	payer := h.CreateAccount(bob)
	h.Fund(alice, atomCoin(100))
	h.Fund(bob, usdcCoin(800))

	h.MustUpdateAccount(alice, debtor, coins(atomCoin(100)),
		cm.Deposit{Coin: atomCoin(100)},
		cm.Borrow{Coin: usdcCoin(300)},
		cm.Withdraw{Coin: cm.ActionCoin{Denom: apptest.Usdc, Amount: cm.AccountBalance()}},
	)
	h.MustUpdateAccount(bob, payer, coins(usdcCoin(800)),
		cm.Deposit{Coin: usdcCoin(800)},
		cm.Repay{RecipientAccountID: debtor, Coin: cm.ActionCoin{Denom: apptest.Usdc, Amount: cm.AccountBalance()}},
	)
	require.True(t, h.Debt(debtor, apptest.Usdc).IsZero())
	require.Equal(t, sdkmath.NewInt(500), deposit(h, payer, apptest.Usdc))
}

func TestWithdrawBeyondMaxLTV(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, atomCoin(100_000))

	// 100k atom at 10 with ltv 0.7 plus 300k usdc at ltv 0.8 against 300k debt.
	h.MustUpdateAccount(alice, id, coins(atomCoin(100_000)),
		cm.Deposit{Coin: atomCoin(100_000)},
		cm.Borrow{Coin: usdcCoin(300_000)},
	)

	var estimate sdkmath.Int
	require.NoError(t, h.App.Query(h.Ctx, func(c *core.Context) (err error) {
		estimate, err = h.App.CreditManager.EstimateMaxWithdraw(c, id, apptest.Atom)
		return err
	}))
	require.Equal(t, sdkmath.NewInt(91_428), estimate)

	err := h.UpdateAccount(alice, id, nil, cm.Withdraw{Coin: cm.ActionCoin{Denom: apptest.Atom, Amount: cm.Exact(91_430)}})
	require.ErrorIs(t, err, cerrors.ErrAboveMaxLTV)

	h.MustUpdateAccount(alice, id, nil, cm.Withdraw{Coin: cm.ActionCoin{Denom: apptest.Atom, Amount: cm.ExactInt(estimate)}})
	require.Equal(t, sdkmath.NewInt(100_000-91_428), deposit(h, id, apptest.Atom))
	require.True(t, h.Health(id).MaxLTVHealthFactor.GTE(sdkmath.LegacyOneDec()))
}

func TestUnhealthyAccountMustNotGetWorse(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, osmoCoin(10_000), usdcCoin(100))

	h.MustUpdateAccount(alice, id, coins(osmoCoin(10_000)),
		cm.Deposit{Coin: osmoCoin(10_000)},
		cm.Borrow{Coin: atomCoin(500)},
		cm.Withdraw{Coin: cm.ActionCoin{Denom: apptest.Atom, Amount: cm.AccountBalance()}},
	)
	h.SetPrice(apptest.Atom, "13")
	require.True(t, h.Health(id).MaxLTVHealthFactor.LT(sdkmath.LegacyOneDec()))

	err := h.UpdateAccount(alice, id, nil, cm.Withdraw{Coin: cm.ActionCoin{Denom: apptest.Osmo, Amount: cm.Exact(1)}})
	require.ErrorIs(t, err, cerrors.ErrHealthNotImproved)

	// Adding collateral in a batch with a health check is accepted.
	h.MustUpdateAccount(alice, id, coins(usdcCoin(100)),
		cm.Deposit{Coin: usdcCoin(100)},
		cm.Lend{Coin: cm.ActionCoin{Denom: apptest.Usdc, Amount: cm.AccountBalance()}},
	)
}

func TestAccountDepositCap(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	stAtom := func(n int64) types.Coin { return apptest.Coin(apptest.StAtom, n) }
	h.Fund(alice, stAtom(13_000_000))
	h.UpdateAsset(apptest.StAtom, func(p *params.AssetParams) { p.DepositCap = sdkmath.NewInt(12_000_000) })

	h.MustUpdateAccount(alice, id, coins(stAtom(11_000_000)), cm.Deposit{Coin: stAtom(11_000_000)})

	err := h.UpdateAccount(alice, id, coins(stAtom(1_000_001)), cm.Deposit{Coin: stAtom(1_000_001)})
	require.ErrorIs(t, err, cerrors.ErrDepositCapExceeded)

	h.MustUpdateAccount(alice, id, coins(stAtom(999_999)), cm.Deposit{Coin: stAtom(999_999)})
	require.Equal(t, sdkmath.NewInt(11_999_999), deposit(h, id, apptest.StAtom))
}

func TestHighLeveredStrategyRules(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccountKind(alice, cm.AccountKind{Type: cm.KindHighLeveredStrategy})
	stAtom := apptest.Coin(apptest.StAtom, 1_000)
	h.Fund(alice, stAtom, osmoCoin(100))

	// ustatom is correlated with uatom; the borrowed atom itself is allowed.
	h.MustUpdateAccount(alice, id, coins(stAtom),
		cm.Deposit{Coin: stAtom},
		cm.Borrow{Coin: atomCoin(500)},
	)
	require.Equal(t, sdkmath.NewInt(500), h.Debt(id, apptest.Atom))

	// usdc has no HLS parameters.
	err := h.UpdateAccount(alice, id, nil, cm.Borrow{Coin: usdcCoin(100)})
	require.ErrorIs(t, err, cerrors.ErrValidation)

	// uosmo is not correlated with the atom debt.
	err = h.UpdateAccount(alice, id, coins(osmoCoin(100)), cm.Deposit{Coin: osmoCoin(100)})
	require.ErrorIs(t, err, cerrors.ErrValidation)
}

func TestFundManagerAccount(t *testing.T) {
	h := apptest.New(t)
	vault, manager := apptest.Addr("managed-vault"), apptest.Addr("manager")
	h.Fund(vault, atomCoin(1_000))
	h.Fund(manager, atomCoin(10))

	_, err := h.Try(manager, h.App.Addresses.CreditManager, cm.UpdateCreditAccount{
		AccountKind: &cm.AccountKind{Type: cm.KindFundManager, VaultAddr: vault},
	})
	require.ErrorIs(t, err, cerrors.ErrUnauthorized)

	id := h.CreateAccountKind(vault, cm.AccountKind{Type: cm.KindFundManager, VaultAddr: vault})
	h.Exec(vault, h.App.Addresses.AccountNFT, accountnft.TransferNft{TokenID: id, Recipient: manager})

	// The vault moves coins in and out; the token holder only manages them.
	h.MustUpdateAccount(vault, id, coins(atomCoin(1_000)), cm.Deposit{Coin: atomCoin(1_000)})
	err = h.UpdateAccount(manager, id, coins(atomCoin(10)), cm.Deposit{Coin: atomCoin(10)})
	require.ErrorIs(t, err, cerrors.ErrUnauthorized)
	err = h.UpdateAccount(manager, id, nil, cm.Withdraw{Coin: cm.ActionCoin{Denom: apptest.Atom, Amount: cm.Exact(1)}})
	require.ErrorIs(t, err, cerrors.ErrUnauthorized)
	err = h.UpdateAccount(manager, id, nil, cm.RefundAllCoinBalances{})
	require.ErrorIs(t, err, cerrors.ErrUnauthorized)

	h.MustUpdateAccount(manager, id, nil,
		cm.Borrow{Coin: usdcCoin(1_000)},
		cm.Lend{Coin: cm.ActionCoin{Denom: apptest.Usdc, Amount: cm.AccountBalance()}},
	)
	require.Equal(t, sdkmath.NewInt(1_000), h.Debt(id, apptest.Usdc))

	h.MustUpdateAccount(vault, id, nil, cm.Withdraw{Coin: cm.ActionCoin{Denom: apptest.Atom, Amount: cm.Exact(100)}})
	require.Equal(t, sdkmath.NewInt(100), h.Balance(vault, apptest.Atom))
}

func TestLendAndReclaim(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, osmoCoin(1_000))

	h.MustUpdateAccount(alice, id, coins(osmoCoin(1_000)),
		cm.Deposit{Coin: osmoCoin(1_000)},
		cm.Lend{Coin: cm.ActionCoin{Denom: apptest.Osmo, Amount: cm.Exact(600)}},
	)
	pos := h.Positions(id)
	require.Equal(t, sdkmath.NewInt(600), pos.Lends.AmountOf(apptest.Osmo))
	require.Equal(t, sdkmath.NewInt(400), pos.Deposits.AmountOf(apptest.Osmo))

	err := h.UpdateAccount(alice, id, nil, cm.Reclaim{Coin: cm.ActionCoin{Denom: apptest.Osmo, Amount: cm.Exact(601)}})
	require.ErrorIs(t, err, cerrors.ErrInsufficientFunds)

	h.MustUpdateAccount(alice, id, nil, cm.Reclaim{Coin: cm.ActionCoin{Denom: apptest.Osmo, Amount: cm.AccountBalance()}})
	pos = h.Positions(id)
	require.True(t, pos.Lends.Empty())
	require.Equal(t, sdkmath.NewInt(1_000), pos.Deposits.AmountOf(apptest.Osmo))
}

func TestSwap(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, osmoCoin(1_000))

	err := h.UpdateAccount(alice, id, coins(osmoCoin(1_000)),
		cm.Deposit{Coin: osmoCoin(1_000)},
		cm.SwapExactIn{CoinIn: cm.ActionCoin{Denom: apptest.Osmo, Amount: cm.AccountBalance()}, DenomOut: apptest.Atom, Slippage: apptest.Dec("0.06")},
	)
	require.ErrorIs(t, err, cerrors.ErrSlippageExceeded)

	h.MustUpdateAccount(alice, id, coins(osmoCoin(1_000)),
		cm.Deposit{Coin: osmoCoin(1_000)},
		cm.SwapExactIn{CoinIn: cm.ActionCoin{Denom: apptest.Osmo, Amount: cm.AccountBalance()}, DenomOut: apptest.Atom, Slippage: apptest.Dec("0.01")},
	)
	pos := h.Positions(id)
	require.True(t, pos.Deposits.AmountOf(apptest.Osmo).IsZero())
	// 1000 osmo at 1 less the 0.3% fee buys 99.7 atom at 10.
	require.Equal(t, sdkmath.NewInt(99), pos.Deposits.AmountOf(apptest.Atom))
}

func TestLiquidityProvisionAndStaking(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, atomCoin(100), osmoCoin(1_000))

	h.MustUpdateAccount(alice, id, coins(atomCoin(100), osmoCoin(1_000)),
		cm.Deposit{Coin: atomCoin(100)},
		cm.Deposit{Coin: osmoCoin(1_000)},
		cm.ProvideLiquidity{
			CoinsIn: []cm.ActionCoin{
				{Denom: apptest.Atom, Amount: cm.AccountBalance()},
				{Denom: apptest.Osmo, Amount: cm.AccountBalance()},
			},
			LpTokenOut: apptest.LpToken,
			Slippage:   apptest.Dec("0.01"),
		},
		cm.StakeLp{LpCoin: cm.ActionCoin{Denom: apptest.LpToken, Amount: cm.AccountBalance()}},
	)
	pos := h.Positions(id)
	require.True(t, pos.Deposits.Empty())
	require.Equal(t, sdkmath.NewInt(1_000), pos.StakedLP.AmountOf(apptest.LpToken))

	h.MustUpdateAccount(alice, id, nil,
		cm.UnstakeLp{LpCoin: cm.ActionCoin{Denom: apptest.LpToken, Amount: cm.Exact(400)}},
		cm.WithdrawLiquidity{LpToken: cm.ActionCoin{Denom: apptest.LpToken, Amount: cm.AccountBalance()}, Slippage: apptest.Dec("0.01")},
	)
	pos = h.Positions(id)
	require.Equal(t, sdkmath.NewInt(600), pos.StakedLP.AmountOf(apptest.LpToken))
	require.Equal(t, sdkmath.NewInt(40), pos.Deposits.AmountOf(apptest.Atom))
	require.Equal(t, sdkmath.NewInt(400), pos.Deposits.AmountOf(apptest.Osmo))
	require.True(t, pos.Deposits.AmountOf(apptest.LpToken).IsZero())
}

func TestVaultWithoutLockup(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, atomCoin(100))
	vault := vaults.Address(apptest.VaultAtom)

	h.MustUpdateAccount(alice, id, coins(atomCoin(100)),
		cm.Deposit{Coin: atomCoin(100)},
		cm.EnterVault{Vault: vault, Coin: cm.ActionCoin{Denom: apptest.Atom, Amount: cm.AccountBalance()}},
	)
	shares := sdkmath.NewInt(100 * vaults.InitialSharesPerBase)
	require.Equal(t, shares, h.VaultPosition(id, apptest.VaultAtom).Unlocked)

	err := h.UpdateAccount(alice, id, nil, cm.RequestVaultUnlock{Vault: vault, Amount: shares})
	require.ErrorIs(t, err, cerrors.ErrValidation)

	h.MustUpdateAccount(alice, id, nil, cm.ExitVault{Vault: vault, Amount: shares})
	require.True(t, h.VaultPosition(id, apptest.VaultAtom).Unlocked.IsZero())
	require.Equal(t, sdkmath.NewInt(100), deposit(h, id, apptest.Atom))
}

func TestVaultLockupLifecycle(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, osmoCoin(1_000))
	vault := vaults.Address(apptest.VaultLocked)

	h.MustUpdateAccount(alice, id, coins(osmoCoin(1_000)),
		cm.Deposit{Coin: osmoCoin(1_000)},
		cm.EnterVault{Vault: vault, Coin: cm.ActionCoin{Denom: apptest.Osmo, Amount: cm.AccountBalance()}},
	)
	shares := sdkmath.NewInt(1_000 * vaults.InitialSharesPerBase)
	require.Equal(t, shares, h.VaultPosition(id, apptest.VaultLocked).Locked)

	err := h.UpdateAccount(alice, id, nil, cm.ExitVault{Vault: vault, Amount: shares})
	require.ErrorIs(t, err, cerrors.ErrValidation)

	h.MustUpdateAccount(alice, id, nil, cm.RequestVaultUnlock{Vault: vault, Amount: shares})
	pos := h.VaultPosition(id, apptest.VaultLocked)
	require.True(t, pos.Locked.IsZero())
	require.Len(t, pos.Unlocking, 1)
	unlock := pos.Unlocking[0]
	require.Equal(t, sdkmath.NewInt(1_000), unlock.Coin.Amount)
	require.Equal(t, h.App.Env().Time+apptest.LockedVaultLockup, unlock.ReleaseAt)

	err = h.UpdateAccount(alice, id, nil, cm.ExitVaultUnlocked{ID: unlock.ID, Vault: vault})
	require.ErrorIs(t, err, cerrors.ErrUnlockNotReady)

	h.App.AdvanceTime(apptest.LockedVaultLockup)
	h.MustUpdateAccount(alice, id, nil, cm.ExitVaultUnlocked{ID: unlock.ID, Vault: vault})
	require.Empty(t, h.VaultPosition(id, apptest.VaultLocked).Unlocking)
	require.Equal(t, sdkmath.NewInt(1_000), deposit(h, id, apptest.Osmo))
}

func TestVaultDepositCap(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, atomCoin(200))
	vault := vaults.Address(apptest.VaultAtom)

	var vc params.VaultConfig
	require.NoError(t, h.App.Query(h.Ctx, func(c *core.Context) (err error) {
		vc, err = h.App.Params.VaultConfig(c, vault)
		return err
	}))
	vc.DepositCap = atomCoin(150)
	h.Exec(h.Owner, h.App.Addresses.Params, params.UpdateVaultConfig{Config: vc})

	h.MustUpdateAccount(alice, id, coins(atomCoin(100)),
		cm.Deposit{Coin: atomCoin(100)},
		cm.EnterVault{Vault: vault, Coin: cm.ActionCoin{Denom: apptest.Atom, Amount: cm.AccountBalance()}},
	)
	err := h.UpdateAccount(alice, id, coins(atomCoin(100)),
		cm.Deposit{Coin: atomCoin(100)},
		cm.EnterVault{Vault: vault, Coin: cm.ActionCoin{Denom: apptest.Atom, Amount: cm.AccountBalance()}},
	)
	require.ErrorIs(t, err, cerrors.ErrVaultDepositCapExceeded)
}

func TestRefundAllCoinBalances(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, osmoCoin(70), atomCoin(30))

	h.MustUpdateAccount(alice, id, coins(osmoCoin(70), atomCoin(30)),
		cm.Deposit{Coin: osmoCoin(70)},
		cm.Deposit{Coin: atomCoin(30)},
	)
	h.MustUpdateAccount(alice, id, nil, cm.RefundAllCoinBalances{})
	require.True(t, h.Positions(id).Deposits.Empty())
	require.Equal(t, sdkmath.NewInt(70), h.Balance(alice, apptest.Osmo))
	require.Equal(t, sdkmath.NewInt(30), h.Balance(alice, apptest.Atom))
}

// openOsmoAtomPosition leaves an account holding osmo collateral in the
// given place against 500 atom of debt, then lifts atom to 15 which drops
// the liquidation health factor to 7000/7500.
func openOsmoAtomPosition(t *testing.T, h *apptest.Harness, place func(id string) []cm.Action) string {
	t.Helper()
	owner := apptest.Addr("liquidatee")
	id := h.CreateAccount(owner)
	h.Fund(owner, osmoCoin(10_000))
	actions := append([]cm.Action{cm.Deposit{Coin: osmoCoin(10_000)}}, place(id)...)
	actions = append(actions,
		cm.Borrow{Coin: atomCoin(500)},
		cm.Withdraw{Coin: cm.ActionCoin{Denom: apptest.Atom, Amount: cm.AccountBalance()}},
	)
	h.MustUpdateAccount(owner, id, coins(osmoCoin(10_000)), actions...)
	require.False(t, h.Health(id).Liquidatable)

	h.SetPrice(apptest.Atom, "15")
	hv := h.Health(id)
	require.True(t, hv.Liquidatable)
	require.Equal(t, "0.933333333333333333", hv.LiquidationHealthFactor.String())
	return id
}

func newLiquidator(t *testing.T, h *apptest.Harness, debt types.Coin) (string, string) {
	t.Helper()
	owner := apptest.Addr("liquidator")
	id := h.CreateAccount(owner)
	h.Fund(owner, debt)
	h.MustUpdateAccount(owner, id, coins(debt), cm.Deposit{Coin: debt})
	return owner, id
}

func TestLiquidateDeposit(t *testing.T) {
	h := apptest.New(t)
	liquidatee := openOsmoAtomPosition(t, h, func(string) []cm.Action { return nil })
	owner, liquidator := newLiquidator(t, h, atomCoin(100))
	collector := collectorAccount(t, h)

	err := h.UpdateAccount(owner, liquidator, nil, cm.Liquidate{
		LiquidateeAccountID: liquidator,
		DebtCoin:            atomCoin(100),
		Request:             cm.LiquidateDeposit(apptest.Osmo),
	})
	require.ErrorIs(t, err, cerrors.ErrSelfLiquidation)

	before := h.Health(liquidatee).LiquidationHealthFactor
	h.MustUpdateAccount(owner, liquidator, nil, cm.Liquidate{
		LiquidateeAccountID: liquidatee,
		DebtCoin:            atomCoin(100),
		Request:             cm.LiquidateDeposit(apptest.Osmo),
	})

	// 100 atom at 15 with a 10% bonus seizes 1650 osmo, a tenth of which is
	// the protocol fee.
	require.Equal(t, sdkmath.NewInt(400), h.Debt(liquidatee, apptest.Atom))
	require.Equal(t, sdkmath.NewInt(8_350), deposit(h, liquidatee, apptest.Osmo))
	require.Equal(t, sdkmath.NewInt(1_485), deposit(h, liquidator, apptest.Osmo))
	require.True(t, deposit(h, liquidator, apptest.Atom).IsZero())
	require.Equal(t, sdkmath.NewInt(165), deposit(h, collector, apptest.Osmo))

	after := h.Health(liquidatee).LiquidationHealthFactor
	require.True(t, after.GT(*before))
}

func TestLiquidateHealthyAccountFails(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, osmoCoin(10_000))
	h.MustUpdateAccount(alice, id, coins(osmoCoin(10_000)),
		cm.Deposit{Coin: osmoCoin(10_000)},
		cm.Borrow{Coin: atomCoin(100)},
	)
	owner, liquidator := newLiquidator(t, h, atomCoin(10))

	err := h.UpdateAccount(owner, liquidator, nil, cm.Liquidate{
		LiquidateeAccountID: id,
		DebtCoin:            atomCoin(10),
		Request:             cm.LiquidateDeposit(apptest.Osmo),
	})
	require.ErrorIs(t, err, cerrors.ErrNotLiquidatable)
}

func TestLiquidateLend(t *testing.T) {
	h := apptest.New(t)
	liquidatee := openOsmoAtomPosition(t, h, func(string) []cm.Action {
		return []cm.Action{cm.Lend{Coin: cm.ActionCoin{Denom: apptest.Osmo, Amount: cm.AccountBalance()}}}
	})
	owner, liquidator := newLiquidator(t, h, atomCoin(100))
	collector := collectorAccount(t, h)

	err := h.UpdateAccount(owner, liquidator, nil, cm.Liquidate{
		LiquidateeAccountID: liquidatee,
		DebtCoin:            atomCoin(100),
		Request:             cm.LiquidateDeposit(apptest.Osmo),
	})
	require.ErrorIs(t, err, cerrors.ErrNoCollateral)

	h.MustUpdateAccount(owner, liquidator, nil, cm.Liquidate{
		LiquidateeAccountID: liquidatee,
		DebtCoin:            atomCoin(100),
		Request:             cm.LiquidateLend(apptest.Osmo),
	})
	require.Equal(t, sdkmath.NewInt(400), h.Debt(liquidatee, apptest.Atom))
	require.Equal(t, sdkmath.NewInt(8_350), h.Positions(liquidatee).Lends.AmountOf(apptest.Osmo))
	require.Equal(t, sdkmath.NewInt(1_485), h.Positions(liquidator).Lends.AmountOf(apptest.Osmo))
	require.Equal(t, sdkmath.NewInt(165), h.Positions(collector).Lends.AmountOf(apptest.Osmo))
}

func TestLiquidateVaultShares(t *testing.T) {
	h := apptest.New(t)
	vault := vaults.Address(apptest.VaultAtom)
	owner := apptest.Addr("liquidatee")
	liquidatee := h.CreateAccount(owner)
	h.Fund(owner, atomCoin(1_000))
	h.MustUpdateAccount(owner, liquidatee, coins(atomCoin(1_000)),
		cm.Deposit{Coin: atomCoin(1_000)},
		cm.EnterVault{Vault: vault, Coin: cm.ActionCoin{Denom: apptest.Atom, Amount: cm.AccountBalance()}},
		cm.Borrow{Coin: usdcCoin(5_000)},
		cm.Withdraw{Coin: cm.ActionCoin{Denom: apptest.Usdc, Amount: cm.AccountBalance()}},
	)
	// 1000 atom at 6.5 with the vault threshold of 0.7 against 5000 usdc.
	h.SetPrice(apptest.Atom, "6.5")
	require.Equal(t, "0.910000000000000000", h.Health(liquidatee).LiquidationHealthFactor.String())

	liqOwner, liquidator := newLiquidator(t, h, usdcCoin(1_000))
	collector := collectorAccount(t, h)

	err := h.UpdateAccount(liqOwner, liquidator, nil, cm.Liquidate{
		LiquidateeAccountID: liquidatee,
		DebtCoin:            usdcCoin(1_000),
		Request:             cm.LiquidateVault(vault, cm.PositionLocked),
	})
	require.ErrorIs(t, err, cerrors.ErrMismatchedVaultType)

	h.MustUpdateAccount(liqOwner, liquidator, nil, cm.Liquidate{
		LiquidateeAccountID: liquidatee,
		DebtCoin:            usdcCoin(1_000),
		Request:             cm.LiquidateVault(vault, cm.PositionUnlocked),
	})

	// 1000 usdc with a 10% bonus is worth 169 atom of shares; 16 atom of
	// it goes to the protocol.
	perBase := int64(vaults.InitialSharesPerBase)
	require.Equal(t, sdkmath.NewInt(4_000), h.Debt(liquidatee, apptest.Usdc))
	require.Equal(t, sdkmath.NewInt(831*perBase), h.VaultPosition(liquidatee, apptest.VaultAtom).Unlocked)
	require.Equal(t, sdkmath.NewInt(153*perBase), h.VaultPosition(liquidator, apptest.VaultAtom).Unlocked)
	require.Equal(t, sdkmath.NewInt(16*perBase), h.VaultPosition(collector, apptest.VaultAtom).Unlocked)
}

func TestLiquidateUnlockingPositions(t *testing.T) {
	h := apptest.New(t)
	vault := vaults.Address(apptest.VaultLocked)
	perBase := int64(vaults.InitialSharesPerBase)
	liquidatee := openOsmoAtomPosition(t, h, func(string) []cm.Action {
		return []cm.Action{cm.EnterVault{Vault: vault, Coin: cm.ActionCoin{Denom: apptest.Osmo, Amount: cm.AccountBalance()}}}
	})
	// Unlocking keeps the collateral value, so the account may do it while
	// underwater.
	owner := apptest.Addr("liquidatee")
	for _, base := range []int64{100, 500, 1_000, 8_400} {
		h.MustUpdateAccount(owner, liquidatee, nil, cm.RequestVaultUnlock{Vault: vault, Amount: sdkmath.NewInt(base * perBase)})
		h.App.AdvanceBlocks(1)
	}
	pos := h.VaultPosition(liquidatee, apptest.VaultLocked)
	require.True(t, pos.Locked.IsZero())
	require.Len(t, pos.Unlocking, 4)
	last := pos.Unlocking[3]

	liqOwner, liquidator := newLiquidator(t, h, atomCoin(100))
	collector := collectorAccount(t, h)

	err := h.UpdateAccount(liqOwner, liquidator, nil, cm.Liquidate{
		LiquidateeAccountID: liquidatee,
		DebtCoin:            atomCoin(100),
		Request:             cm.LiquidateVault(vault, cm.PositionUnlocked),
	})
	require.ErrorIs(t, err, cerrors.ErrMismatchedVaultType)

	h.MustUpdateAccount(liqOwner, liquidator, nil, cm.Liquidate{
		LiquidateeAccountID: liquidatee,
		DebtCoin:            atomCoin(100),
		Request:             cm.LiquidateVault(vault, cm.PositionUnlocking),
	})

	// 1650 osmo drains the three earliest positions and 50 of the last.
	pos = h.VaultPosition(liquidatee, apptest.VaultLocked)
	require.Len(t, pos.Unlocking, 1)
	require.Equal(t, last.ID, pos.Unlocking[0].ID)
	require.Equal(t, sdkmath.NewInt(8_350), pos.Unlocking[0].Coin.Amount)
	require.Equal(t, sdkmath.NewInt(400), h.Debt(liquidatee, apptest.Atom))
	require.Equal(t, sdkmath.NewInt(1_485), deposit(h, liquidator, apptest.Osmo))
	require.Equal(t, sdkmath.NewInt(165), deposit(h, collector, apptest.Osmo))
}

func TestPausedModuleRejectsUpdates(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	id := h.CreateAccount(alice)
	h.Fund(alice, osmoCoin(10))

	h.Exec(h.Owner, h.App.Addresses.Params, params.SetPaused{Pauses: params.Pauses{CreditManager: true}})
	err := h.UpdateAccount(alice, id, coins(osmoCoin(10)), cm.Deposit{Coin: osmoCoin(10)})
	require.ErrorIs(t, err, cerrors.ErrModulePaused)

	h.Exec(h.Owner, h.App.Addresses.Params, params.SetPaused{Pauses: params.Pauses{}})
	h.MustUpdateAccount(alice, id, coins(osmoCoin(10)), cm.Deposit{Coin: osmoCoin(10)})
}

func TestAccountsQuery(t *testing.T) {
	h := apptest.New(t)
	alice := apptest.Addr("alice")
	first := h.CreateAccount(alice)
	second := h.CreateAccountKind(alice, cm.AccountKind{Type: cm.KindHighLeveredStrategy})

	var got []cm.AccountSummary
	require.NoError(t, h.App.Query(h.Ctx, func(c *core.Context) (err error) {
		got, err = h.App.CreditManager.Accounts(c, alice)
		return err
	}))
	require.Equal(t, []cm.AccountSummary{
		{AccountID: first, Kind: cm.AccountKind{Type: cm.KindDefault}},
		{AccountID: second, Kind: cm.AccountKind{Type: cm.KindHighLeveredStrategy}},
	}, got)
}
