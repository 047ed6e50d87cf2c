package creditmanager

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/types"
	"creditchain/native/liquidation"
	"creditchain/native/oracle"
	"creditchain/native/params"
	"creditchain/native/redbank"
	"creditchain/native/vaults"
	"creditchain/observability"
)

// seizable is the collateral a liquidation request can draw from, in the
// denom the liquidation math runs in.
type seizable struct {
	denom     string
	available sdkmath.Int
	params    params.AssetParams
	vault     Vault
	position  VaultPosition
}

func (e *Engine) seizable(ctx *core.Context, accountID string, req LiquidateRequest) (seizable, error) {
	switch req.Bucket {
	case BucketDeposit:
		ap, err := e.deps.Params.AssetParams(ctx, req.Denom)
		if err != nil {
			return seizable{}, err
		}
		balance, err := e.coinBalance(ctx, accountID, req.Denom)
		if err != nil {
			return seizable{}, err
		}
		return seizable{denom: req.Denom, available: balance, params: ap}, nil
	case BucketLend:
		ap, err := e.deps.Params.AssetParams(ctx, req.Denom)
		if err != nil {
			return seizable{}, err
		}
		lent, err := e.deps.RedBank.UserCollateral(ctx, e.self(), accountID, req.Denom)
		if err != nil {
			return seizable{}, err
		}
		return seizable{denom: req.Denom, available: lent.Amount, params: ap}, nil
	case BucketVault:
		return e.seizableVault(ctx, accountID, req)
	default:
		return seizable{}, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: unknown liquidation bucket %d", req.Bucket)
	}
}

func (e *Engine) seizableVault(ctx *core.Context, accountID string, req LiquidateRequest) (seizable, error) {
	v, err := e.vault(req.Vault)
	if err != nil {
		return seizable{}, err
	}
	info := v.Config()
	switch {
	case info.Lockup == 0 && req.PositionType != PositionUnlocked,
		info.Lockup > 0 && req.PositionType == PositionUnlocked:
		return seizable{}, errorsmod.Wrapf(cerrors.ErrMismatchedVaultType, "creditmanager: vault %s has no %s positions", req.Vault, req.PositionType)
	}
	vc, err := e.deps.Params.VaultConfig(ctx, req.Vault)
	if err != nil {
		return seizable{}, err
	}
	ap, err := e.deps.Params.AssetParams(ctx, info.BaseDenom)
	if err != nil {
		return seizable{}, err
	}
	ap.LiquidationThreshold = vc.LiquidationThreshold
	pos, err := e.vaultPosition(ctx, accountID, req.Vault)
	if err != nil {
		return seizable{}, err
	}
	available := sdkmath.ZeroInt()
	switch req.PositionType {
	case PositionUnlocked, PositionLocked:
		shares := pos.Unlocked
		if req.PositionType == PositionLocked {
			shares = pos.Locked
		}
		if shares.IsPositive() {
			if available, err = v.PreviewRedeem(ctx, shares); err != nil {
				return seizable{}, err
			}
		}
	case PositionUnlocking:
		for _, u := range pos.Unlocking {
			available = available.Add(u.Coin.Amount)
		}
	}
	return seizable{denom: info.BaseDenom, available: available, params: ap, vault: v, position: pos}, nil
}

func (e *Engine) liquidate(ctx *core.Context, m LiquidateAccount) (*core.Response, error) {
	if m.LiquidatorAccountID == m.LiquidateeAccountID {
		return nil, errorsmod.Wrap(cerrors.ErrSelfLiquidation, "creditmanager")
	}
	if _, err := e.AccountKind(ctx, m.LiquidateeAccountID); err != nil {
		return nil, err
	}
	coll, err := e.seizable(ctx, m.LiquidateeAccountID, m.Request)
	if err != nil {
		return nil, err
	}
	if !coll.available.IsPositive() {
		return nil, errorsmod.Wrapf(cerrors.ErrNoCollateral, "creditmanager: account %s has no %s collateral in %s", m.LiquidateeAccountID, coll.denom, m.Request.Bucket)
	}
	computer, err := e.computer(ctx, m.LiquidateeAccountID, oracle.KindLiquidation, m.DebtCoin.Denom, coll.denom)
	if err != nil {
		return nil, err
	}
	before, err := computer.Compute()
	if err != nil {
		return nil, err
	}
	if !before.Liquidatable {
		return nil, errorsmod.Wrapf(cerrors.ErrNotLiquidatable, "creditmanager: account %s is healthy", m.LiquidateeAccountID)
	}
	debt, err := e.deps.RedBank.UserDebt(ctx, e.self(), m.LiquidateeAccountID, m.DebtCoin.Denom)
	if err != nil {
		return nil, err
	}
	if !debt.Amount.IsPositive() {
		return nil, errorsmod.Wrapf(cerrors.ErrNoDebt, "creditmanager: account %s owes no %s", m.LiquidateeAccountID, m.DebtCoin.Denom)
	}
	thf, err := e.deps.Params.TargetHealthFactor(ctx)
	if err != nil {
		return nil, err
	}
	maxCF, err := e.deps.Params.MaxCloseFactor(ctx)
	if err != nil {
		return nil, err
	}
	res, err := liquidation.Compute(liquidation.Input{
		Requested:            m.DebtCoin.Amount,
		Debt:                 debt.Amount,
		Collateral:           coll.available,
		DebtPrice:            computer.Prices[m.DebtCoin.Denom],
		CollateralPrice:      computer.Prices[coll.denom],
		HealthFactor:         *before.LiquidationHealthFactor,
		TotalCollateralValue: before.TotalCollateralValue,
		TotalDebtValue:       before.TotalDebtValue,
		CollateralParams:     coll.params,
		TargetHF:             thf,
		MaxCloseFactor:       maxCF,
	})
	if err != nil {
		return nil, err
	}
	cfg, err := e.Config(ctx)
	if err != nil {
		return nil, err
	}
	collector := cfg.RewardsCollector.AccountID
	if res.ProtocolFee.IsPositive() {
		if _, err := e.AccountKind(ctx, collector); err != nil {
			return nil, errorsmod.Wrap(err, "creditmanager: rewards collector account")
		}
	}

	repaid := types.NewCoin(m.DebtCoin.Denom, res.DebtToRepay)
	if err := e.decrementCoin(ctx, m.LiquidatorAccountID, repaid); err != nil {
		return nil, err
	}
	resp := core.NewResponse().AddExecute(e.addrs.RedBank, redbank.Repay{AccountID: m.LiquidateeAccountID}, repaid)

	t := seizure{
		liquidatee: m.LiquidateeAccountID,
		liquidator: m.LiquidatorAccountID,
		collector:  collector,
		res:        res,
	}
	switch m.Request.Bucket {
	case BucketDeposit:
		err = e.seizeDeposit(ctx, t, coll.denom)
	case BucketLend:
		e.seizeLend(resp, t, coll.denom)
	case BucketVault:
		if m.Request.PositionType == PositionUnlocking {
			err = e.seizeUnlocking(ctx, resp, t, coll)
		} else {
			err = e.seizeShares(ctx, t, coll, m.Request.PositionType)
		}
	}
	if err != nil {
		return nil, err
	}

	e.queue(resp, AssertLiquidationImproved{AccountID: m.LiquidateeAccountID, PrevHealthFactor: *before.LiquidationHealthFactor})
	ctx.EmitEvent(events.CreditAccountLiquidation{
		LiquidatorAccountID: m.LiquidatorAccountID,
		LiquidateeAccountID: m.LiquidateeAccountID,
		Bucket:              m.Request.Bucket.String(),
		DebtRepaid:          repaid,
		CollateralSeized:    types.NewCoin(coll.denom, res.CollateralSeized),
		ProtocolFee:         types.NewCoin(coll.denom, res.ProtocolFee),
		HealthFactor:        *before.LiquidationHealthFactor,
		Bonus:               res.Bonus,
	})
	observability.Protocol().RecordLiquidation("creditmanager", m.Request.Bucket.String())
	ctx.Logger().Info("credit account liquidated",
		"liquidatee", m.LiquidateeAccountID,
		"liquidator", m.LiquidatorAccountID,
		"bucket", m.Request.Bucket.String(),
		"debt_repaid", repaid.String(),
		"collateral_seized", res.CollateralSeized.String())
	return resp, nil
}

// seizure carries the accounts and amounts of one liquidation.
type seizure struct {
	liquidatee string
	liquidator string
	collector  string
	res        liquidation.Result
}

func (e *Engine) seizeDeposit(ctx *core.Context, t seizure, denom string) error {
	if err := e.decrementCoin(ctx, t.liquidatee, types.NewCoin(denom, t.res.CollateralSeized)); err != nil {
		return err
	}
	if err := e.incrementCoin(ctx, t.liquidator, types.NewCoin(denom, t.res.LiquidatorCollateral)); err != nil {
		return err
	}
	return e.incrementCoin(ctx, t.collector, types.NewCoin(denom, t.res.ProtocolFee))
}

func (e *Engine) seizeLend(resp *core.Response, t seizure, denom string) {
	var legs []redbank.CollateralTransfer
	if t.res.LiquidatorCollateral.IsPositive() {
		legs = append(legs, redbank.CollateralTransfer{AccountID: t.liquidator, Amount: t.res.LiquidatorCollateral})
	}
	if t.res.ProtocolFee.IsPositive() {
		legs = append(legs, redbank.CollateralTransfer{AccountID: t.collector, Amount: t.res.ProtocolFee})
	}
	resp.AddExecute(e.addrs.RedBank, redbank.TransferCollateral{Denom: denom, FromAccountID: t.liquidatee, To: legs})
}

// seizeShares moves the shares backing the seized base amount. The fee is
// carved out of the seized shares in the same proportion.
func (e *Engine) seizeShares(ctx *core.Context, t seizure, coll seizable, kind VaultPositionType) error {
	pos := coll.position
	held := pos.Unlocked
	if kind == PositionLocked {
		held = pos.Locked
	}
	shares := held
	if t.res.CollateralSeized.LT(coll.available) {
		shares = held.Mul(t.res.CollateralSeized).Quo(coll.available)
	}
	feeShares := shares.Mul(t.res.ProtocolFee).Quo(t.res.CollateralSeized)
	if kind == PositionLocked {
		pos.Locked = pos.Locked.Sub(shares)
	} else {
		pos.Unlocked = pos.Unlocked.Sub(shares)
	}
	if err := e.setVaultPosition(ctx, t.liquidatee, pos); err != nil {
		return err
	}
	credit := func(accountID string, amount sdkmath.Int) error {
		if !amount.IsPositive() {
			return nil
		}
		p, err := e.vaultPosition(ctx, accountID, pos.Vault)
		if err != nil {
			return err
		}
		if kind == PositionLocked {
			p.Locked = p.Locked.Add(amount)
		} else {
			p.Unlocked = p.Unlocked.Add(amount)
		}
		return e.setVaultPosition(ctx, accountID, p)
	}
	if err := credit(t.liquidator, shares.Sub(feeShares)); err != nil {
		return err
	}
	return credit(t.collector, feeShares)
}

// seizeUnlocking drains unlocking positions oldest release first and force
// withdraws the drained base amounts from the vault.
func (e *Engine) seizeUnlocking(ctx *core.Context, resp *core.Response, t seizure, coll seizable) error {
	pos := coll.position
	kept, taken, err := drainUnlocking(pos.Unlocking, t.res.CollateralSeized)
	if err != nil {
		return err
	}
	pos.Unlocking = kept
	if err := e.setVaultPosition(ctx, t.liquidatee, pos); err != nil {
		return err
	}
	for _, u := range taken {
		amount := u.Coin.Amount
		resp.AddExecute(pos.Vault, vaults.ForceWithdrawUnlocking{LockupID: u.ID, Amount: &amount})
	}
	if err := e.incrementCoin(ctx, t.liquidator, types.NewCoin(coll.denom, t.res.LiquidatorCollateral)); err != nil {
		return err
	}
	return e.incrementCoin(ctx, t.collector, types.NewCoin(coll.denom, t.res.ProtocolFee))
}
