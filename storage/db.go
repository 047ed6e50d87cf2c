package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = leveldb.ErrNotFound

// Iterator walks a key range in ascending order. Keys and values are only
// valid until the next call to Next.
type Iterator = iterator.Iterator

// Reader is the read half of a key-value view.
type Reader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	NewIterator(prefix []byte) Iterator
}

// KV is a readable and writable key-value view.
type KV interface {
	Reader
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Tx is an isolated batch of writes that becomes visible on Commit.
type Tx interface {
	KV
	Commit() error
	Discard()
}

// Database is a generic interface for a key-value store.
// In-memory and on-disk instances share the LevelDB implementation.
type Database interface {
	KV
	Begin() (Tx, error)
	Close() error
}

// LevelDB is a key-value store backed by goleveldb.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

// NewMemDB returns a LevelDB instance held entirely in memory, used by tests
// and ephemeral nodes.
func NewMemDB() *LevelDB {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		// Opening memory storage only fails on programmer error.
		panic(fmt.Sprintf("storage: open memory db: %v", err))
	}
	return &LevelDB{db: db}
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	return ldb.db.Get(key, nil)
}

// Has reports whether the key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Delete removes the key if present.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// NewIterator iterates over every key starting with prefix.
func (ldb *LevelDB) NewIterator(prefix []byte) Iterator {
	return ldb.db.NewIterator(util.BytesPrefix(prefix), nil)
}

// Begin opens a write transaction. Only one transaction may be open at a
// time; concurrent callers block until the previous one commits or discards.
func (ldb *LevelDB) Begin() (Tx, error) {
	tr, err := ldb.db.OpenTransaction()
	if err != nil {
		return nil, fmt.Errorf("storage: open transaction: %w", err)
	}
	return &levelTx{tr: tr}, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() error {
	return ldb.db.Close()
}

type levelTx struct {
	tr *leveldb.Transaction
}

func (t *levelTx) Get(key []byte) ([]byte, error) { return t.tr.Get(key, nil) }

func (t *levelTx) Has(key []byte) (bool, error) { return t.tr.Has(key, nil) }

func (t *levelTx) Put(key []byte, value []byte) error { return t.tr.Put(key, value, nil) }

func (t *levelTx) Delete(key []byte) error { return t.tr.Delete(key, nil) }

func (t *levelTx) NewIterator(prefix []byte) Iterator {
	return t.tr.NewIterator(util.BytesPrefix(prefix), nil)
}

func (t *levelTx) Commit() error { return t.tr.Commit() }

func (t *levelTx) Discard() { t.tr.Discard() }

// IsNotFound reports whether err signals a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
