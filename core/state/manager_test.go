package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"creditchain/storage"
)

type record struct {
	Amount  *big.Int
	Enabled bool
}

func TestKVRoundTripAndIterate(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	m := NewManager(db)

	require.NoError(t, m.KVPut(Key("c/", "alice", "", "uatom"), record{Amount: big.NewInt(10), Enabled: true}))
	require.NoError(t, m.KVPut(Key("c/", "alice", "", "uosmo"), record{Amount: big.NewInt(20)}))
	require.NoError(t, m.KVPut(Key("c/", "alice", "7", "uatom"), record{Amount: big.NewInt(30)}))

	var got record
	ok, err := m.KVGet(Key("c/", "alice", "", "uatom"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(10), got.Amount.Int64())
	require.True(t, got.Enabled)

	var denoms []string
	err = m.KVIterate(Key("c/", "alice", ""), func(key, value []byte) error {
		var r record
		if err := rlp.DecodeBytes(value, &r); err != nil {
			return err
		}
		parts := SplitKey("c/", key)
		denoms = append(denoms, parts[2])
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"uatom", "uosmo"}, denoms)

	require.NoError(t, m.KVDelete(Key("c/", "alice", "", "uatom")))
	ok, err = m.KVGet(Key("c/", "alice", "", "uatom"), &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVListAndReadOnly(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	m := NewManager(db)

	key := Key("owners/", "bob")
	require.NoError(t, m.KVAppend(key, []byte("1")))
	require.NoError(t, m.KVAppend(key, []byte("2")))
	require.NoError(t, m.KVAppend(key, []byte("1")))
	list, err := m.KVGetList(key)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, m.KVRemove(key, []byte("1")))
	list, err = m.KVGetList(key)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("2")}, list)

	ro := NewReadOnlyManager(db)
	require.ErrorIs(t, ro.KVPut(key, []byte("x")), ErrReadOnly)
	require.ErrorIs(t, ro.ParamStoreSet("x", []byte("1")), ErrReadOnly)
}
