package state

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"creditchain/storage"
)

// ErrReadOnly is returned when a write is attempted through a query view.
var ErrReadOnly = errors.New("kv: read-only view")

// keySeparator joins composite key parts. Denoms and addresses never contain
// a zero byte, so prefixes of composite keys are unambiguous.
const keySeparator = 0x00

// Manager exposes RLP-encoded records on top of a storage view. A Manager is
// bound to one transaction for the duration of an execution.
type Manager struct {
	kv storage.KV
}

// NewManager binds a Manager to the supplied writable view.
func NewManager(kv storage.KV) *Manager {
	return &Manager{kv: kv}
}

// NewReadOnlyManager binds a Manager to a reader. All writes fail with
// ErrReadOnly.
func NewReadOnlyManager(r storage.Reader) *Manager {
	return &Manager{kv: readOnlyKV{Reader: r}}
}

// Key assembles a composite key from a module prefix and ordered parts.
func Key(prefix string, parts ...string) []byte {
	buf := bytes.NewBufferString(prefix)
	for _, part := range parts {
		buf.WriteString(part)
		buf.WriteByte(keySeparator)
	}
	return buf.Bytes()
}

// SplitKey returns the composite parts that follow prefix in key.
func SplitKey(prefix string, key []byte) []string {
	rest := bytes.TrimPrefix(key, []byte(prefix))
	rest = bytes.TrimSuffix(rest, []byte{keySeparator})
	if len(rest) == 0 {
		return nil
	}
	raw := bytes.Split(rest, []byte{keySeparator})
	parts := make([]string, len(raw))
	for i, p := range raw {
		parts[i] = string(p)
	}
	return parts
}

// KVPut stores the RLP encoding of value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("kv: encode %q: %w", key, err)
	}
	return m.kv.Put(key, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.kv.Get(key)
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("kv: decode %q: %w", key, err)
	}
	return true, nil
}

// KVDelete removes key. Deleting an absent key is not an error.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.kv.Delete(key)
}

// KVIterate calls fn for every key under prefix in ascending key order. The
// callback receives copies and may decode the value with rlp.DecodeBytes.
func (m *Manager) KVIterate(prefix []byte, fn func(key, value []byte) error) error {
	it := m.kv.NewIterator(prefix)
	defer it.Release()
	for it.Next() {
		key := append([]byte(nil), it.Key()...)
		value := append([]byte(nil), it.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return it.Error()
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	list, err := m.KVGetList(key)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVRemove drops value from the list stored under key.
func (m *Manager) KVRemove(key []byte, value []byte) error {
	list, err := m.KVGetList(key)
	if err != nil {
		return err
	}
	kept := make([][]byte, 0, len(list))
	for _, existing := range list {
		if !bytes.Equal(existing, value) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, kept)
}

// KVGetList returns the byte slice list stored under key.
func (m *Manager) KVGetList(key []byte) ([][]byte, error) {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// ParamStoreSet stores a raw parameter value.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	return m.kv.Put(paramKey(name), append([]byte(nil), value...))
}

// ParamStoreGet returns a raw parameter value.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	data, err := m.kv.Get(paramKey(name))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// ParamStoreIterate walks every parameter whose name starts with prefix.
func (m *Manager) ParamStoreIterate(prefix string, fn func(name string, value []byte) error) error {
	return m.KVIterate(paramKey(prefix), func(key, value []byte) error {
		return fn(string(bytes.TrimPrefix(key, []byte(paramPrefix))), value)
	})
}

const paramPrefix = "params/"

func paramKey(name string) []byte {
	return []byte(paramPrefix + name)
}

type readOnlyKV struct {
	storage.Reader
}

func (readOnlyKV) Put([]byte, []byte) error { return ErrReadOnly }

func (readOnlyKV) Delete([]byte) error { return ErrReadOnly }
