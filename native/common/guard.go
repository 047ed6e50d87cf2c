package common

import (
	errorsmod "cosmossdk.io/errors"

	"creditchain/core"
	cerrors "creditchain/core/errors"
)

// ErrModulePaused is returned by Guard when the module is paused.
var ErrModulePaused = cerrors.ErrModulePaused

// PauseView reports the pause state of protocol modules.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutations on a paused module.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return errorsmod.Wrapf(ErrModulePaused, "%s", module)
	}
	return nil
}

// PauseSource loads the pause switches visible to a transaction.
type PauseSource interface {
	PauseView(ctx *core.Context) (PauseView, error)
}

// GuardContext resolves the pause view from src and applies Guard.
func GuardContext(ctx *core.Context, src PauseSource, module string) error {
	if src == nil {
		return nil
	}
	view, err := src.PauseView(ctx)
	if err != nil {
		return err
	}
	return Guard(view, module)
}
