// Package leveldb implements the ability to read and write the encoded chain
// to a LevelDB database. Every write is also kept in a history so earlier
// snapshots of the chain can be inspected.
package leveldb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrInvalidName is returned when a chain name is empty or holds the key
// separator. A name like "a:b" would share the history prefix of "a".
var ErrInvalidName = errors.New("chain name must be non-empty and must not contain ':'")

// keySep separates the parts of every key.
const keySep = ":"

// LevelDB represents the serialization implementation for reading and
// storing the chain under a named key in LevelDB. This implements the
// storage.Serializer interface.
type LevelDB struct {
	db      *leveldb.DB
	key     []byte
	history []byte
	seq     uint64
	owned   bool
}

// New opens (or creates) the database at the specified path and stores the
// chain under the specified name.
func New(path string, name string) (*LevelDB, error) {
	if name == "" || strings.Contains(name, keySep) {
		return nil, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	ldb, err := newLevelDB(db, name)
	if err != nil {
		db.Close()
		return nil, err
	}
	ldb.owned = true

	return ldb, nil
}

// NewFromDB stores the chain under the specified name in an already open
// database. Closing the value doesn't close the database.
func NewFromDB(db *leveldb.DB, name string) (*LevelDB, error) {
	return newLevelDB(db, name)
}

func newLevelDB(db *leveldb.DB, name string) (*LevelDB, error) {
	if name == "" || strings.Contains(name, keySep) {
		return nil, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	ldb := LevelDB{
		db:      db,
		key:     []byte("chain" + keySep + name),
		history: []byte("history" + keySep + name + keySep),
	}

	// Pick up the history sequence where the last process left off.
	iter := db.NewIterator(util.BytesPrefix(ldb.history), nil)
	if iter.Last() {
		ldb.seq = binary.BigEndian.Uint64(iter.Key()[len(ldb.history):])
	}
	iter.Release()

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return &ldb, nil
}

// Close closes the database if it was opened by this value.
func (l *LevelDB) Close() error {
	if !l.owned {
		return nil
	}
	return l.db.Close()
}

// Write stores the data as the current chain and appends it to the history.
// Both keys are written in a single batch.
func (l *LevelDB) Write(data []byte) error {
	seq := l.seq + 1

	batch := new(leveldb.Batch)
	batch.Put(l.key, data)
	batch.Put(l.historyKey(seq), data)

	if err := l.db.Write(batch, nil); err != nil {
		return err
	}
	l.seq = seq

	return nil
}

// Read returns the current chain. If nothing has been written,
// storage.ErrNoData is returned.
func (l *LevelDB) Read() ([]byte, error) {
	data, err := l.db.Get(l.key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, storage.ErrNoData
		}
		return nil, err
	}

	return data, nil
}

// History returns the sequence number of every stored snapshot, oldest first.
func (l *LevelDB) History() ([]uint64, error) {
	iter := l.db.NewIterator(util.BytesPrefix(l.history), nil)
	defer iter.Release()

	var seqs []uint64
	for iter.Next() {
		seqs = append(seqs, binary.BigEndian.Uint64(iter.Key()[len(l.history):]))
	}

	if err := iter.Error(); err != nil {
		return nil, err
	}

	return seqs, nil
}

// ReadVersion returns the snapshot stored under the specified sequence number.
func (l *LevelDB) ReadVersion(seq uint64) ([]byte, error) {
	data, err := l.db.Get(l.historyKey(seq), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, fmt.Errorf("version %d: %w", seq, storage.ErrNoData)
		}
		return nil, err
	}

	return data, nil
}

// historyKey forms the key for the specified sequence number. The number is
// stored big endian so keys iterate in write order.
func (l *LevelDB) historyKey(seq uint64) []byte {
	key := make([]byte, len(l.history)+8)
	copy(key, l.history)
	binary.BigEndian.PutUint64(key[len(l.history):], seq)
	return key
}
