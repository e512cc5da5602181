package chain

import (
	"fmt"

	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
)

// Length returns the number of blocks in the chain.
func (c *Chain) Length() int {
	return len(c.blocks)
}

// Head returns the last block in the chain.
func (c *Chain) Head() database.Block {
	return c.blocks[len(c.blocks)-1]
}

// First returns the first block in the chain.
func (c *Chain) First() database.Block {
	return c.blocks[0]
}

// BlockByIndex returns the block at the specified index.
func (c *Chain) BlockByIndex(index int) (database.Block, error) {
	if index < 0 || index >= len(c.blocks) {
		return database.Block{}, fmt.Errorf("index %d, length %d: %w", index, len(c.blocks), ErrNotFound)
	}

	return c.blocks[index], nil
}

// Blocks returns a copy of the blocks in the chain.
func (c *Chain) Blocks() []database.Block {
	blocks := make([]database.Block, len(c.blocks))
	copy(blocks, c.blocks)
	return blocks
}

// FindBlock searches the chain from the tip backwards for the block with
// the specified hash.
func (c *Chain) FindBlock(hash string) (int, bool) {
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].Hash == hash {
			return i, true
		}
	}

	return -1, false
}

// Mempool returns a copy of the pending transactions in queue order.
func (c *Chain) Mempool() []database.Tx {
	return c.mempool.Copy()
}

// MempoolLength returns the number of pending transactions.
func (c *Chain) MempoolLength() int {
	return c.mempool.Count()
}

// TxByIndex returns the pending transaction at the specified position.
func (c *Chain) TxByIndex(index int) (database.Tx, error) {
	return c.mempool.TxByIndex(index)
}

// AppendMempool adds the set of transactions to the back of the mempool.
func (c *Chain) AppendMempool(txs ...database.Tx) {
	c.mempool.Append(txs...)
}

// RemoveTx removes the first pending transaction equal to the specified
// transaction. This is used when the transaction was sealed in a block that
// was mined outside the chain.
func (c *Chain) RemoveTx(tx database.Tx) bool {
	return c.mempool.Remove(tx)
}

// TruncateMempool clears every pending transaction.
func (c *Chain) TruncateMempool() {
	c.mempool.Truncate()
}
