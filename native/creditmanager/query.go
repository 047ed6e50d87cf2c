package creditmanager

import (
	"sort"
	"strconv"

	"creditchain/core"
	"creditchain/native/health"
)

// AccountSummary is one row of the accounts query.
type AccountSummary struct {
	AccountID string      `json:"account_id"`
	Kind      AccountKind `json:"kind"`
}

// Accounts lists the credit accounts held by owner, ordered by id.
func (e *Engine) Accounts(ctx *core.Context, owner string) ([]AccountSummary, error) {
	ids, err := e.deps.Accounts.Tokens(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]AccountSummary, 0, len(ids))
	for _, id := range ids {
		kind, err := e.AccountKind(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, AccountSummary{AccountID: id, Kind: kind})
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].AccountID, out[j].AccountID) })
	return out, nil
}

// lessID orders numeric ids numerically and anything else lexically.
func lessID(a, b string) bool {
	x, errA := strconv.ParseUint(a, 10, 64)
	y, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}

// AccountHealth pairs the positions of an account with its health.
type AccountHealth struct {
	Positions Positions     `json:"positions"`
	Health    health.Values `json:"health"`
}

// PositionsWithHealth returns positions and health in one read.
func (e *Engine) PositionsWithHealth(ctx *core.Context, accountID string) (AccountHealth, error) {
	pos, err := e.Positions(ctx, accountID)
	if err != nil {
		return AccountHealth{}, err
	}
	values, err := e.Health(ctx, accountID)
	if err != nil {
		return AccountHealth{}, err
	}
	return AccountHealth{Positions: pos, Health: values}, nil
}
