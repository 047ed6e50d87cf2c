package creditmanager

import (
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	cerrors "creditchain/core/errors"
)

// Actions travel as single-key objects, {"deposit": {...}}.
var actionDecoders = map[string]func(json.RawMessage) (Action, error){
	Deposit{}.actionName():               decodeAction[Deposit],
	Withdraw{}.actionName():              decodeAction[Withdraw],
	Borrow{}.actionName():                decodeAction[Borrow],
	Repay{}.actionName():                 decodeAction[Repay],
	Lend{}.actionName():                  decodeAction[Lend],
	Reclaim{}.actionName():               decodeAction[Reclaim],
	ClaimRewards{}.actionName():          decodeAction[ClaimRewards],
	SwapExactIn{}.actionName():           decodeAction[SwapExactIn],
	EnterVault{}.actionName():            decodeAction[EnterVault],
	ExitVault{}.actionName():             decodeAction[ExitVault],
	RequestVaultUnlock{}.actionName():    decodeAction[RequestVaultUnlock],
	ExitVaultUnlocked{}.actionName():     decodeAction[ExitVaultUnlocked],
	Liquidate{}.actionName():             decodeAction[Liquidate],
	ProvideLiquidity{}.actionName():      decodeAction[ProvideLiquidity],
	WithdrawLiquidity{}.actionName():     decodeAction[WithdrawLiquidity],
	StakeLp{}.actionName():               decodeAction[StakeLp],
	UnstakeLp{}.actionName():             decodeAction[UnstakeLp],
	RefundAllCoinBalances{}.actionName(): decodeAction[RefundAllCoinBalances],
}

func decodeAction[T Action](raw json.RawMessage) (Action, error) {
	var v T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// MarshalAction encodes a as {"<name>": a}.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, "creditmanager: nil action")
	}
	return json.Marshal(map[string]Action{a.actionName(): a})
}

// UnmarshalAction decodes one single-key action object.
func UnmarshalAction(data []byte) (Action, error) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, errorsmod.Wrap(cerrors.ErrValidation, err.Error())
	}
	if len(wrapper) != 1 {
		return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: action must have exactly one key, got %d", len(wrapper))
	}
	for name, raw := range wrapper {
		decode, ok := actionDecoders[name]
		if !ok {
			return nil, errorsmod.Wrapf(cerrors.ErrValidation, "creditmanager: unknown action %q", name)
		}
		a, err := decode(raw)
		if err != nil {
			return nil, errorsmod.Wrap(cerrors.ErrValidation, fmt.Sprintf("creditmanager: %s: %v", name, err))
		}
		return a, nil
	}
	return nil, nil
}

type updateCreditAccountJSON struct {
	AccountID   string            `json:"account_id,omitempty"`
	AccountKind *AccountKind      `json:"account_kind,omitempty"`
	Actions     []json.RawMessage `json:"actions"`
}

// MarshalJSON encodes the action list as tagged objects.
func (m UpdateCreditAccount) MarshalJSON() ([]byte, error) {
	out := updateCreditAccountJSON{AccountID: m.AccountID, AccountKind: m.AccountKind, Actions: []json.RawMessage{}}
	for _, a := range m.Actions {
		raw, err := MarshalAction(a)
		if err != nil {
			return nil, err
		}
		out.Actions = append(out.Actions, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes tagged action objects.
func (m *UpdateCreditAccount) UnmarshalJSON(data []byte) error {
	var in updateCreditAccountJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.AccountID = in.AccountID
	m.AccountKind = in.AccountKind
	m.Actions = make([]Action, 0, len(in.Actions))
	for _, raw := range in.Actions {
		a, err := UnmarshalAction(raw)
		if err != nil {
			return err
		}
		m.Actions = append(m.Actions, a)
	}
	return nil
}
