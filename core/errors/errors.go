package errors

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace groups every protocol error code.
const Codespace = "credit"

// Error kinds shared by the money market, the credit manager and their
// collaborators. Call sites wrap these with errorsmod.Wrap so callers can
// match the kind with errors.Is.
var (
	ErrUnauthorized                    = errorsmod.Register(Codespace, 2, "unauthorized")
	ErrExternalInvocation              = errorsmod.Register(Codespace, 3, "callback invoked by external address")
	ErrValidation                      = errorsmod.Register(Codespace, 4, "validation error")
	ErrAssetNotInitialized             = errorsmod.Register(Codespace, 5, "asset not initialized")
	ErrAssetAlreadyInitialized         = errorsmod.Register(Codespace, 6, "asset already initialized")
	ErrDepositNotEnabled               = errorsmod.Register(Codespace, 7, "deposits not enabled")
	ErrBorrowNotEnabled                = errorsmod.Register(Codespace, 8, "borrowing not enabled")
	ErrNotWhitelisted                  = errorsmod.Register(Codespace, 9, "not whitelisted")
	ErrDepositCapExceeded              = errorsmod.Register(Codespace, 10, "deposit cap exceeded")
	ErrInvalidBorrowAmount             = errorsmod.Register(Codespace, 11, "insufficient liquidity for borrow")
	ErrNoDebt                          = errorsmod.Register(Codespace, 12, "no debt")
	ErrNotLiquidatable                 = errorsmod.Register(Codespace, 13, "account not liquidatable")
	ErrAboveMaxLTV                     = errorsmod.Register(Codespace, 14, "account above max ltv")
	ErrHealthNotImproved               = errorsmod.Register(Codespace, 15, "health factor not improved")
	ErrMismatchedVaultType             = errorsmod.Register(Codespace, 16, "mismatched vault position type")
	ErrUserHasCollateralizedDebt       = errorsmod.Register(Codespace, 17, "user has collateralized debt")
	ErrInvalidHealthFactorAfterDisable = errorsmod.Register(Codespace, 18, "health factor below one after disabling collateral")
	ErrExtraFundsReceived              = errorsmod.Register(Codespace, 19, "extra funds received")
	ErrGuardActive                     = errorsmod.Register(Codespace, 20, "guard active")
	ErrGuardInactive                   = errorsmod.Register(Codespace, 21, "guard inactive")
	ErrOverflow                        = errorsmod.Register(Codespace, 22, "arithmetic overflow")

	ErrInsufficientFunds                = errorsmod.Register(Codespace, 30, "insufficient funds")
	ErrNoCollateral                     = errorsmod.Register(Codespace, 31, "no collateral balance")
	ErrInvalidHealthFactorAfterWithdraw = errorsmod.Register(Codespace, 32, "health factor below one after withdraw")
	ErrBorrowExceedsCollateral          = errorsmod.Register(Codespace, 33, "borrow exceeds given collateral")
	ErrUncollateralizedLimitExceeded    = errorsmod.Register(Codespace, 34, "borrow exceeds uncollateralized loan limit")
	ErrUnlockNotReady                   = errorsmod.Register(Codespace, 35, "unlocking position not ready")
	ErrSlippageExceeded                 = errorsmod.Register(Codespace, 36, "slippage exceeded")
	ErrPriceNotFound                    = errorsmod.Register(Codespace, 37, "price not found")
	ErrStalePrice                       = errorsmod.Register(Codespace, 38, "stale price")
	ErrVaultDepositCapExceeded          = errorsmod.Register(Codespace, 39, "vault deposit cap exceeded")
	ErrAccountNotFound                  = errorsmod.Register(Codespace, 40, "credit account not found")
	ErrRepayOnBehalfOfCreditManager     = errorsmod.Register(Codespace, 41, "cannot repay on behalf of the credit manager")
	ErrSelfLiquidation                  = errorsmod.Register(Codespace, 42, "self liquidation")
	ErrModulePaused                     = errorsmod.Register(Codespace, 43, "module paused")
	ErrUnknownContract                  = errorsmod.Register(Codespace, 44, "unknown contract")
	ErrUnknownMessage                   = errorsmod.Register(Codespace, 45, "unknown message")
)
