package common

import (
	errorsmod "cosmossdk.io/errors"

	cerrors "creditchain/core/errors"
	"creditchain/core/state"
)

// FlagGuard is a single boolean stored at a fixed key. An absent key reads as
// unlocked, so no initialisation is required.
type FlagGuard struct {
	name string
	key  []byte
}

// NewFlagGuard returns a guard stored under the given name.
func NewFlagGuard(name string) FlagGuard {
	return FlagGuard{name: name, key: []byte("guard/" + name)}
}

// Name identifies the guard in errors.
func (g FlagGuard) Name() string { return g.name }

// IsLocked reports whether the guard is currently held.
func (g FlagGuard) IsLocked(store *state.Manager) (bool, error) {
	var locked bool
	ok, err := store.KVGet(g.key, &locked)
	if err != nil {
		return false, err
	}
	return ok && locked, nil
}

// TryLock acquires the guard or fails with ErrGuardActive.
func (g FlagGuard) TryLock(store *state.Manager) error {
	if err := g.AssertUnlocked(store); err != nil {
		return err
	}
	return store.KVPut(g.key, true)
}

// TryUnlock releases the guard or fails with ErrGuardInactive.
func (g FlagGuard) TryUnlock(store *state.Manager) error {
	if err := g.AssertLocked(store); err != nil {
		return err
	}
	return store.KVDelete(g.key)
}

// AssertLocked fails with ErrGuardInactive when the guard is not held.
func (g FlagGuard) AssertLocked(store *state.Manager) error {
	locked, err := g.IsLocked(store)
	if err != nil {
		return err
	}
	if !locked {
		return errorsmod.Wrapf(cerrors.ErrGuardInactive, "%s", g.name)
	}
	return nil
}

// AssertUnlocked fails with ErrGuardActive when the guard is held.
func (g FlagGuard) AssertUnlocked(store *state.Manager) error {
	locked, err := g.IsLocked(store)
	if err != nil {
		return err
	}
	if locked {
		return errorsmod.Wrapf(cerrors.ErrGuardActive, "%s", g.name)
	}
	return nil
}
