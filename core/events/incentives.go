package events

import "creditchain/core/types"

const (
	// TypeRewardsClaimed is emitted when accrued incentives are paid out.
	TypeRewardsClaimed = "incentives.claimed"
	// TypeLpStaked is emitted when a credit account stakes LP coins.
	TypeLpStaked = "incentives.lp_staked"
	// TypeLpUnstaked is emitted when a credit account unstakes LP coins.
	TypeLpUnstaked = "incentives.lp_unstaked"
)

type RewardsClaimed struct {
	User      string
	AccountID string
	Amount    types.Coins
}

func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsClaimed,
		Attributes: map[string]string{
			"user":       trim(e.User),
			"account_id": e.AccountID,
			"amount":     e.Amount.String(),
		},
	}
}

type LpStaked struct {
	AccountID string
	Coin      types.Coin
}

func (LpStaked) EventType() string { return TypeLpStaked }

func (e LpStaked) Event() *types.Event {
	return &types.Event{
		Type:       TypeLpStaked,
		Attributes: map[string]string{"account_id": e.AccountID, "coin": e.Coin.String()},
	}
}

type LpUnstaked struct {
	AccountID string
	Coin      types.Coin
}

func (LpUnstaked) EventType() string { return TypeLpUnstaked }

func (e LpUnstaked) Event() *types.Event {
	return &types.Event{
		Type:       TypeLpUnstaked,
		Attributes: map[string]string{"account_id": e.AccountID, "coin": e.Coin.String()},
	}
}
