package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactionCommitAndDiscard(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("a/1"), []byte("one")))
	got, err := tx.Get([]byte("a/1"))
	require.NoError(t, err)
	require.Equal(t, []byte("one"), got)
	tx.Discard()

	_, err = db.Get([]byte("a/1"))
	require.True(t, IsNotFound(err))

	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("a/1"), []byte("one")))
	require.NoError(t, tx.Put([]byte("a/2"), []byte("two")))
	require.NoError(t, tx.Put([]byte("b/1"), []byte("other")))
	require.NoError(t, tx.Commit())

	ok, err := db.Has([]byte("a/2"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPrefixIteration(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	for _, k := range []string{"p/c", "p/a", "q/a", "p/b"} {
		require.NoError(t, db.Put([]byte(k), []byte(k)))
	}
	it := db.NewIterator([]byte("p/"))
	defer it.Release()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Error())
	require.Equal(t, []string{"p/a", "p/b", "p/c"}, keys)

	require.NoError(t, db.Delete([]byte("p/b")))
	_, err := db.Get([]byte("p/b"))
	require.True(t, IsNotFound(err))
}
