package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// ErrKeyNotFound is returned by Get when no value exists for the key. Both
// backends normalise their native miss signal to this sentinel so callers can
// treat absence uniformly.
var ErrKeyNotFound = errors.New("storage: key not found")

// Database is the key-value contract backing the state manager. The node runs
// on LevelDB; tests run on the in-memory implementation.
type Database interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Close()
}

// BatchWrite is a single pending key-value pair in a batched write.
type BatchWrite struct {
	Key   []byte
	Value []byte
}

// BatchWriter is implemented by backends that can apply a group of writes as
// one atomic unit. Overlay.Commit prefers this path so a transition's writes
// land together.
type BatchWriter interface {
	WriteBatch(writes []BatchWrite) error
}

// MemDB is an in-memory Database used by tests and ephemeral nodes.
type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

func (db *MemDB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// WriteBatch applies all writes under a single lock acquisition.
func (db *MemDB) WriteBatch(writes []BatchWrite) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, w := range writes {
		db.data[string(w.Key)] = append([]byte(nil), w.Value...)
	}
	return nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {}

// LevelDB is the persistent Database used by a running node.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (ldb *LevelDB) Put(key, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

// WriteBatch applies all writes through a leveldb batch, which the store
// commits atomically.
func (ldb *LevelDB) WriteBatch(writes []BatchWrite) error {
	batch := new(leveldb.Batch)
	for _, w := range writes {
		batch.Put(w.Key, w.Value)
	}
	return ldb.db.Write(batch, nil)
}

func (ldb *LevelDB) Close() {
	_ = ldb.db.Close()
}
