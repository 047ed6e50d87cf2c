package events

import (
	"strconv"

	"creditchain/core/types"
)

const (
	// TypeVaultDeposited is emitted when vault shares are minted.
	TypeVaultDeposited = "vault.deposited"
	// TypeVaultRedeemed is emitted when shares of an unlocked vault are burned.
	TypeVaultRedeemed = "vault.redeemed"
	// TypeVaultUnlockRequested is emitted when a lockup starts.
	TypeVaultUnlockRequested = "vault.unlock_requested"
	// TypeVaultUnlocked is emitted when lockup coins are paid out.
	TypeVaultUnlocked = "vault.unlocked"
)

type VaultDeposited struct {
	Vault  string
	Sender string
	Base   types.Coin
	Shares types.Coin
}

func (VaultDeposited) EventType() string { return TypeVaultDeposited }

func (e VaultDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDeposited,
		Attributes: map[string]string{
			"vault":  trim(e.Vault),
			"sender": trim(e.Sender),
			"base":   e.Base.String(),
			"shares": e.Shares.String(),
		},
	}
}

type VaultRedeemed struct {
	Vault     string
	Recipient string
	Shares    types.Coin
	Base      types.Coin
}

func (VaultRedeemed) EventType() string { return TypeVaultRedeemed }

func (e VaultRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultRedeemed,
		Attributes: map[string]string{
			"vault":     trim(e.Vault),
			"recipient": trim(e.Recipient),
			"shares":    e.Shares.String(),
			"base":      e.Base.String(),
		},
	}
}

type VaultUnlockRequested struct {
	Vault     string
	Owner     string
	LockupID  uint64
	Base      types.Coin
	ReleaseAt uint64
}

func (VaultUnlockRequested) EventType() string { return TypeVaultUnlockRequested }

func (e VaultUnlockRequested) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultUnlockRequested,
		Attributes: map[string]string{
			"vault":      trim(e.Vault),
			"owner":      trim(e.Owner),
			"lockup_id":  strconv.FormatUint(e.LockupID, 10),
			"base":       e.Base.String(),
			"release_at": strconv.FormatUint(e.ReleaseAt, 10),
		},
	}
}

type VaultUnlocked struct {
	Vault    string
	Owner    string
	LockupID uint64
	Base     types.Coin
}

func (VaultUnlocked) EventType() string { return TypeVaultUnlocked }

func (e VaultUnlocked) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultUnlocked,
		Attributes: map[string]string{
			"vault":     trim(e.Vault),
			"owner":     trim(e.Owner),
			"lockup_id": strconv.FormatUint(e.LockupID, 10),
			"base":      e.Base.String(),
		},
	}
}
