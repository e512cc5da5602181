package state

import (
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
)

// QueryLength returns the number of blocks in the canonical chain.
func (s *State) QueryLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.canonical.Length()
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.canonical.MempoolLength()
}

// QueryBlockByIndex returns the canonical block at the specified index.
func (s *State) QueryBlockByIndex(index int) (database.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.canonical.BlockByIndex(index)
}

// QueryBlocks returns a copy of the canonical chain.
func (s *State) QueryBlocks() []database.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.canonical.Blocks()
}

// QueryTxByIndex returns the pending transaction at the specified position.
func (s *State) QueryTxByIndex(index int) (database.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.canonical.TxByIndex(index)
}
