package events

import "creditchain/core/types"

const (
	// TypeBankTransfer is emitted for every coin movement between addresses.
	TypeBankTransfer = "bank.transfer"
	// TypeBankMint is emitted when new coins are created.
	TypeBankMint = "bank.mint"
	// TypeBankBurn is emitted when coins are destroyed.
	TypeBankBurn = "bank.burn"
)

type BankTransfer struct {
	From   string
	To     string
	Amount types.Coins
}

func (BankTransfer) EventType() string { return TypeBankTransfer }

func (e BankTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeBankTransfer,
		Attributes: map[string]string{
			"from":   trim(e.From),
			"to":     trim(e.To),
			"amount": e.Amount.String(),
		},
	}
}

type BankMint struct {
	To     string
	Amount types.Coins
}

func (BankMint) EventType() string { return TypeBankMint }

func (e BankMint) Event() *types.Event {
	return &types.Event{
		Type:       TypeBankMint,
		Attributes: map[string]string{"to": trim(e.To), "amount": e.Amount.String()},
	}
}

type BankBurn struct {
	From   string
	Amount types.Coins
}

func (BankBurn) EventType() string { return TypeBankBurn }

func (e BankBurn) Event() *types.Event {
	return &types.Event{
		Type:       TypeBankBurn,
		Attributes: map[string]string{"from": trim(e.From), "amount": e.Amount.String()},
	}
}
