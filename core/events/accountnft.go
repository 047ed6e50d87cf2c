package events

import "creditchain/core/types"

const (
	// TypeAccountMinted is emitted when a credit-account token is created.
	TypeAccountMinted = "accountnft.minted"
	// TypeAccountTransferred is emitted when a token changes owner.
	TypeAccountTransferred = "accountnft.transferred"
)

type AccountMinted struct {
	TokenID string
	Owner   string
}

func (AccountMinted) EventType() string { return TypeAccountMinted }

func (e AccountMinted) Event() *types.Event {
	return &types.Event{
		Type:       TypeAccountMinted,
		Attributes: map[string]string{"token_id": e.TokenID, "owner": trim(e.Owner)},
	}
}

type AccountTransferred struct {
	TokenID string
	From    string
	To      string
}

func (AccountTransferred) EventType() string { return TypeAccountTransferred }

func (e AccountTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeAccountTransferred,
		Attributes: map[string]string{
			"token_id": e.TokenID,
			"from":     trim(e.From),
			"to":       trim(e.To),
		},
	}
}
