// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
)

// Set of error variables for mempool operations.
var (
	ErrEmptyMempool = errors.New("no transactions in mempool")
	ErrNotFound     = errors.New("transaction not found")
)

// Mempool represents a first in, first out queue of transactions waiting to
// be mined into a block. The mempool does no locking of its own, the owner
// of the chain is responsible for serializing access.
type Mempool struct {
	pool []database.Tx
}

// New constructs a new, empty mempool.
func New() *Mempool {
	return &Mempool{}
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	return len(mp.pool)
}

// Enqueue adds a transaction to the back of the pool and returns the new
// number of pending transactions.
func (mp *Mempool) Enqueue(tx database.Tx) int {
	mp.pool = append(mp.pool, tx)
	return len(mp.pool)
}

// Append adds the set of transactions to the back of the pool in order.
func (mp *Mempool) Append(txs ...database.Tx) {
	mp.pool = append(mp.pool, txs...)
}

// Front returns the transaction at the head of the pool without removing it.
func (mp *Mempool) Front() (database.Tx, error) {
	if len(mp.pool) == 0 {
		return database.Tx{}, ErrEmptyMempool
	}

	return mp.pool[0], nil
}

// DequeueFront removes and returns the transaction at the head of the pool.
func (mp *Mempool) DequeueFront() (database.Tx, error) {
	if len(mp.pool) == 0 {
		return database.Tx{}, ErrEmptyMempool
	}

	tx := mp.pool[0]

	// Clear the slot so the backing array doesn't hold on to the strings.
	mp.pool[0] = database.Tx{}
	mp.pool = mp.pool[1:]

	return tx, nil
}

// TxByIndex returns the transaction at the specified position in the queue.
func (mp *Mempool) TxByIndex(index int) (database.Tx, error) {
	if index < 0 || index >= len(mp.pool) {
		return database.Tx{}, fmt.Errorf("index %d, pending %d: %w", index, len(mp.pool), ErrNotFound)
	}

	return mp.pool[index], nil
}

// Remove deletes the first pending transaction equal to the specified
// transaction and reports if one was found.
func (mp *Mempool) Remove(tx database.Tx) bool {
	for i, pending := range mp.pool {
		if pending == tx {
			mp.pool = append(mp.pool[:i:i], mp.pool[i+1:]...)
			return true
		}
	}

	return false
}

// Copy returns a copy of the pending transactions in queue order.
func (mp *Mempool) Copy() []database.Tx {
	txs := make([]database.Tx, len(mp.pool))
	copy(txs, mp.pool)
	return txs
}

// Clone returns an independent mempool with the same pending transactions.
func (mp *Mempool) Clone() *Mempool {
	return &Mempool{pool: mp.Copy()}
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.pool = nil
}
