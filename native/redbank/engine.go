// Package redbank implements the money market: per-denom pools where users
// deposit collateral, borrow against it, repay and get liquidated. Balances
// are stored scaled by a liquidity or borrow index so interest accrues
// without touching every position.
package redbank

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/types"
	"creditchain/native/common"
	"creditchain/native/oracle"
	"creditchain/native/params"
)

const moduleName = params.ModuleRedBank

const (
	marketPrefix     = "redbank/market/"
	collateralPrefix = "redbank/collateral/"
	debtPrefix       = "redbank/debt/"
	limitPrefix      = "redbank/uncollateralized_limit/"
)

var ownerKey = []byte("redbank/owner")

// ParamsSource is the read-only view of the parameters registry.
type ParamsSource interface {
	AssetParams(ctx *core.Context, denom string) (params.AssetParams, error)
	TargetHealthFactor(ctx *core.Context) (sdkmath.LegacyDec, error)
	MaxCloseFactor(ctx *core.Context) (sdkmath.LegacyDec, error)
	common.PauseSource
}

// PriceSource resolves oracle prices.
type PriceSource interface {
	Price(ctx *core.Context, denom string, kind oracle.Kind) (sdkmath.LegacyDec, error)
}

// Config is returned by the config query.
type Config struct {
	Owner     string           `json:"owner"`
	Addresses common.Addresses `json:"addresses"`
}

// Engine is the money market. It holds no state of its own; everything is
// read from and written to the context store.
type Engine struct {
	addrs     common.Addresses
	params    ParamsSource
	prices    PriceSource
	migration common.FlagGuard
}

// NewEngine returns a money market bound to its collaborators.
func NewEngine(addrs common.Addresses, params ParamsSource, prices PriceSource) *Engine {
	return &Engine{
		addrs:     addrs,
		params:    params,
		prices:    prices,
		migration: common.NewFlagGuard("redbank_migration"),
	}
}

// InitGenesis stores the owner.
func (e *Engine) InitGenesis(ctx *core.Context, owner string) error {
	return ctx.Store().KVPut(ownerKey, owner)
}

// Config returns the owner and collaborator addresses.
func (e *Engine) Config(ctx *core.Context) (Config, error) {
	owner, err := e.owner(ctx)
	if err != nil {
		return Config{}, err
	}
	return Config{Owner: owner, Addresses: e.addrs}, nil
}

func (e *Engine) owner(ctx *core.Context) (string, error) {
	var owner string
	ok, err := ctx.Store().KVGet(ownerKey, &owner)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("redbank: owner not configured")
	}
	return owner, nil
}

func (e *Engine) requireOwner(ctx *core.Context, sender string) error {
	owner, err := e.owner(ctx)
	if err != nil {
		return err
	}
	if sender != owner {
		return errorsmod.Wrapf(cerrors.ErrUnauthorized, "redbank: %s is not the owner", sender)
	}
	return nil
}

// guard rejects user-facing mutations while migrating or paused.
func (e *Engine) guard(ctx *core.Context) error {
	if err := e.migration.AssertUnlocked(ctx.Store()); err != nil {
		return err
	}
	return common.GuardContext(ctx, e.params, moduleName)
}

func (e *Engine) isCreditManager(addr string) bool {
	return e.addrs.CreditManager != "" && addr == e.addrs.CreditManager
}

// checkAccount rejects account ids from anyone but the credit manager.
func (e *Engine) checkAccount(sender, accountID string) error {
	if accountID != "" && !e.isCreditManager(sender) {
		return errorsmod.Wrap(cerrors.ErrUnauthorized, "redbank: account ids are reserved for the credit manager")
	}
	return nil
}

func singleCoin(info core.MessageInfo) (types.Coin, error) {
	if len(info.Funds) != 1 {
		return types.Coin{}, errorsmod.Wrapf(cerrors.ErrValidation, "redbank: attach exactly one coin, got %d", len(info.Funds))
	}
	coin := info.Funds[0]
	if !coin.Amount.IsPositive() {
		return types.Coin{}, errorsmod.Wrap(cerrors.ErrValidation, "redbank: attached coin is zero")
	}
	return coin, nil
}

// Execute implements core.Handler.
func (e *Engine) Execute(ctx *core.Context, info core.MessageInfo, msg any) (*core.Response, error) {
	switch m := msg.(type) {
	case InitAsset:
		return e.initAsset(ctx, info, m)
	case UpdateAsset:
		return e.updateAsset(ctx, info, m)
	case UpdateUncollateralizedLoanLimit:
		return e.updateLimit(ctx, info, m)
	case UpdateMigrationGuard:
		if err := e.requireOwner(ctx, info.Sender); err != nil {
			return nil, err
		}
		if m.Lock {
			return core.NewResponse(), e.migration.TryLock(ctx.Store())
		}
		return core.NewResponse(), e.migration.TryUnlock(ctx.Store())
	case Deposit:
		return e.deposit(ctx, info, m)
	case Withdraw:
		return e.withdraw(ctx, info, m)
	case Borrow:
		return e.borrow(ctx, info, m)
	case Repay:
		return e.repay(ctx, info, m)
	case UpdateAssetCollateralStatus:
		return e.updateCollateralStatus(ctx, info, m)
	case Liquidate:
		return e.liquidate(ctx, info, m)
	case TransferCollateral:
		return e.transferCollateral(ctx, info, m)
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "redbank: %T", msg)
	}
}
