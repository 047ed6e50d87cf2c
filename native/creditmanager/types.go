package creditmanager

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	cerrors "creditchain/core/errors"
	"creditchain/core/types"
	"creditchain/native/health"
)

// KindType enumerates the account kinds.
type KindType uint8

const (
	KindDefault KindType = iota
	KindHighLeveredStrategy
	KindFundManager
)

func (k KindType) String() string {
	switch k {
	case KindHighLeveredStrategy:
		return "high_levered_strategy"
	case KindFundManager:
		return "fund_manager"
	default:
		return "default"
	}
}

// AccountKind constrains what a credit account may hold and who may act on
// it. VaultAddr is only set for fund manager accounts.
type AccountKind struct {
	Type      KindType `json:"type"`
	VaultAddr string   `json:"vault_addr,omitempty"`
}

func (k AccountKind) String() string { return k.Type.String() }

func (k AccountKind) healthKind() health.Kind {
	if k.Type == KindHighLeveredStrategy {
		return health.KindHighLeveredStrategy
	}
	return health.KindDefault
}

type kindRecord struct {
	Type      uint8
	VaultAddr string
}

// ActionAmount is either an exact amount or whatever the account holds at
// the time the action runs.
type ActionAmount struct {
	Exact          *sdkmath.Int `json:"exact,omitempty"`
	AccountBalance bool         `json:"account_balance,omitempty"`
}

// Exact returns an ActionAmount of exactly n.
func Exact(n int64) ActionAmount {
	v := sdkmath.NewInt(n)
	return ActionAmount{Exact: &v}
}

// ExactInt returns an ActionAmount of exactly n.
func ExactInt(n sdkmath.Int) ActionAmount {
	return ActionAmount{Exact: &n}
}

// AccountBalance resolves to the full balance available to the action.
func AccountBalance() ActionAmount {
	return ActionAmount{AccountBalance: true}
}

func (a ActionAmount) validate() error {
	if a.AccountBalance == (a.Exact != nil) {
		return errorsmod.Wrap(cerrors.ErrValidation, "creditmanager: set exactly one of exact or account_balance")
	}
	if a.Exact != nil && (a.Exact.IsNil() || !a.Exact.IsPositive()) {
		return errorsmod.Wrap(cerrors.ErrValidation, "creditmanager: amount must be positive")
	}
	return nil
}

// resolve returns the amount to use given the available balance. Exact
// amounts are returned as is; the caller checks them against available.
func (a ActionAmount) resolve(available sdkmath.Int) sdkmath.Int {
	if a.AccountBalance {
		return available
	}
	return *a.Exact
}

// ActionCoin is a coin whose amount may be AccountBalance.
type ActionCoin struct {
	Denom  string       `json:"denom"`
	Amount ActionAmount `json:"amount"`
}

func (c ActionCoin) validate() error {
	if err := types.ValidateDenom(c.Denom); err != nil {
		return errorsmod.Wrap(cerrors.ErrValidation, err.Error())
	}
	return c.Amount.validate()
}

// VaultPositionType selects a bucket of a vault position.
type VaultPositionType uint8

const (
	PositionUnlocked VaultPositionType = iota
	PositionLocked
	PositionUnlocking
)

func (t VaultPositionType) String() string {
	switch t {
	case PositionLocked:
		return "locked"
	case PositionUnlocking:
		return "unlocking"
	default:
		return "unlocked"
	}
}

// UnlockingPosition is a vault lockup owned by a credit account.
type UnlockingPosition struct {
	ID        uint64     `json:"id"`
	Coin      types.Coin `json:"coin"`
	ReleaseAt uint64     `json:"release_at"`
}

// VaultPosition is the share balance of one account in one vault.
type VaultPosition struct {
	Vault     string              `json:"vault"`
	Unlocked  sdkmath.Int         `json:"unlocked"`
	Locked    sdkmath.Int         `json:"locked"`
	Unlocking []UnlockingPosition `json:"unlocking"`
}

func (v VaultPosition) empty() bool {
	return v.Unlocked.IsZero() && v.Locked.IsZero() && len(v.Unlocking) == 0
}

// Shares returns the unlocked and locked shares.
func (v VaultPosition) Shares() sdkmath.Int {
	return v.Unlocked.Add(v.Locked)
}

type unlockingRecord struct {
	ID        uint64
	Amount    *big.Int
	ReleaseAt uint64
}

type vaultRecord struct {
	Unlocked  *big.Int
	Locked    *big.Int
	Unlocking []unlockingRecord
}

// DebtAmount is a credit account's borrow in the money market.
type DebtAmount struct {
	Denom  string      `json:"denom"`
	Shares sdkmath.Int `json:"shares"`
	Amount sdkmath.Int `json:"amount"`
}

// Positions is everything a credit account holds or owes.
type Positions struct {
	AccountID string          `json:"account_id"`
	Kind      AccountKind     `json:"kind"`
	Deposits  types.Coins     `json:"deposits"`
	Debts     []DebtAmount    `json:"debts"`
	Lends     types.Coins     `json:"lends"`
	Vaults    []VaultPosition `json:"vaults"`
	StakedLP  types.Coins     `json:"staked_lp"`
}

// RewardsCollector is the credit account protocol liquidation fees are
// credited to.
type RewardsCollector struct {
	Address   string `json:"address"`
	AccountID string `json:"account_id"`
}

// Config is the credit manager configuration.
type Config struct {
	Owner                 string            `json:"owner"`
	MaxUnlockingPositions uint64            `json:"max_unlocking_positions"`
	MaxSlippage           sdkmath.LegacyDec `json:"max_slippage"`
	RewardsCollector      RewardsCollector  `json:"rewards_collector"`
}

// Validate checks the configuration predicates.
func (c Config) Validate() error {
	if c.Owner == "" {
		return errorsmod.Wrap(cerrors.ErrValidation, "creditmanager: owner must be set")
	}
	if c.MaxUnlockingPositions == 0 {
		return errorsmod.Wrap(cerrors.ErrValidation, "creditmanager: max unlocking positions must be positive")
	}
	if c.MaxSlippage.IsNil() || !c.MaxSlippage.IsPositive() || c.MaxSlippage.GTE(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrap(cerrors.ErrValidation, "creditmanager: max slippage must be in (0, 1)")
	}
	return nil
}

type configRecord struct {
	Owner                 string
	MaxUnlockingPositions uint64
	MaxSlippage           *big.Int
	CollectorAddress      string
	CollectorAccountID    string
}

func (c Config) record() configRecord {
	return configRecord{
		Owner:                 c.Owner,
		MaxUnlockingPositions: c.MaxUnlockingPositions,
		MaxSlippage:           types.DecToBig(c.MaxSlippage),
		CollectorAddress:      c.RewardsCollector.Address,
		CollectorAccountID:    c.RewardsCollector.AccountID,
	}
}

func (r configRecord) config() Config {
	return Config{
		Owner:                 r.Owner,
		MaxUnlockingPositions: r.MaxUnlockingPositions,
		MaxSlippage:           types.BigToDec(r.MaxSlippage),
		RewardsCollector:      RewardsCollector{Address: r.CollectorAddress, AccountID: r.CollectorAccountID},
	}
}
