// Package chain implements an append-only sequence of blocks rooted at a
// genesis block, along with the mempool feeding new blocks into it.
package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ardanlabs/forkchain/foundation/blockchain/mempool"
)

// Set of error variables for chain operations.
var (
	ErrHashMismatch = errors.New("block parent hash doesn't match the chain tip")
	ErrInvalidBlock = errors.New("block hash is invalid")
	ErrNotFound     = errors.New("block not found")
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Config represents the capabilities a chain needs from its host.
type Config struct {
	Rand      io.Reader
	Now       func() time.Time
	EvHandler EventHandler
}

// Snapshot is the complete state of a chain, used for persistence.
type Snapshot struct {
	Blocks  []database.Block
	Mempool []database.Tx
}

// Chain manages an ordered set of blocks and the pending transactions
// waiting to become blocks. A Chain does no locking, only one owner may
// mutate a Chain at any given time.
type Chain struct {
	blocks  []database.Block
	mempool *mempool.Mempool
	cfg     Config
}

// New constructs a chain that only contains the genesis block.
func New(cfg Config) *Chain {
	cfg = cfg.withDefaults()
	return NewFromBlock(cfg, database.Genesis(cfg.Now()))
}

// NewFromBlock constructs a chain whose first block is the specified seed.
// This is used to start branches from the tip of another chain.
func NewFromBlock(cfg Config, seed database.Block) *Chain {
	return &Chain{
		blocks:  []database.Block{seed},
		mempool: mempool.New(),
		cfg:     cfg.withDefaults(),
	}
}

// Restore rebuilds a chain from a snapshot, validating the blocks link.
func Restore(cfg Config, snap Snapshot) (*Chain, error) {
	if len(snap.Blocks) == 0 {
		return nil, fmt.Errorf("restore: %w: snapshot has no blocks", ErrNotFound)
	}

	c := Chain{
		blocks:  make([]database.Block, len(snap.Blocks)),
		mempool: mempool.New(),
		cfg:     cfg.withDefaults(),
	}
	copy(c.blocks, snap.Blocks)
	c.mempool.Append(snap.Mempool...)

	if err := c.ValidateLinkage(); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}

	return &c, nil
}

// =============================================================================

// SubmitTransaction adds a new transaction to the back of the mempool.
func (c *Chain) SubmitTransaction(from string, to string, amount uint64) database.Tx {
	tx := database.NewTx(from, to, amount)
	n := c.mempool.Enqueue(tx)

	c.cfg.EvHandler("chain: SubmitTransaction: tx[%s]: pending[%d]", tx, n)

	return tx
}

// Mint mines the transaction at the head of the mempool on top of the
// current tip and appends the new block. If the mempool is empty, nothing
// changes and mempool.ErrEmptyMempool is returned. If mining is cancelled,
// the transaction stays in the mempool.
func (c *Chain) Mint(ctx context.Context) (database.Block, error) {
	c.cfg.EvHandler("chain: Mint: MINING: check mempool count")

	tx, err := c.mempool.Front()
	if err != nil {
		return database.Block{}, err
	}

	block, err := database.POW(ctx, c.mineConfig(), c.Head().Hash, tx)
	if err != nil {
		return database.Block{}, err
	}

	// The transaction only leaves the pool once it is sealed in a block.
	if _, err := c.mempool.DequeueFront(); err != nil {
		return database.Block{}, err
	}
	c.blocks = append(c.blocks, block)

	c.cfg.EvHandler("chain: Mint: MINING: appended blk[%d]: hash[%s]", len(c.blocks)-1, block.Hash)

	return block, nil
}

// AppendExternal validates a block received from elsewhere and appends it
// to the chain if it extends the current tip.
func (c *Chain) AppendExternal(block database.Block) error {
	c.cfg.EvHandler("chain: AppendExternal: started: blk[%s]", block)
	defer c.cfg.EvHandler("chain: AppendExternal: completed")

	if err := c.validateNext(block); err != nil {
		return err
	}

	c.blocks = append(c.blocks, block)

	return nil
}

// Splice appends a sequence of blocks that must chain onto the tip. Either
// every block is appended or none are.
func (c *Chain) Splice(blocks []database.Block) error {
	prev := c.Head()
	for i, block := range blocks {
		if block.PrevHash != prev.Hash {
			return &BlockError{Block: block, Err: fmt.Errorf("splice position %d: %w", i, ErrHashMismatch)}
		}
		prev = block
	}

	c.blocks = append(c.blocks, blocks...)

	return nil
}

// DropTip removes the last block from the chain. The first block can't
// be dropped.
func (c *Chain) DropTip() (database.Block, error) {
	if len(c.blocks) <= 1 {
		return database.Block{}, fmt.Errorf("drop tip: %w: chain only holds its first block", ErrNotFound)
	}

	tip := c.blocks[len(c.blocks)-1]
	c.blocks = c.blocks[:len(c.blocks)-1]

	return tip, nil
}

// TruncateAfter drops every block past the specified index.
func (c *Chain) TruncateAfter(index int) error {
	if index < 0 || index >= len(c.blocks) {
		return fmt.Errorf("truncate index %d, length %d: %w", index, len(c.blocks), ErrNotFound)
	}

	c.blocks = c.blocks[:index+1]

	return nil
}

// Clone returns a deep copy of the chain, sharing only the configuration.
func (c *Chain) Clone() *Chain {
	blocks := make([]database.Block, len(c.blocks))
	copy(blocks, c.blocks)

	return &Chain{
		blocks:  blocks,
		mempool: c.mempool.Clone(),
		cfg:     c.cfg,
	}
}

// Snapshot returns a copy of the state of the chain.
func (c *Chain) Snapshot() Snapshot {
	return Snapshot{
		Blocks:  c.Blocks(),
		Mempool: c.mempool.Copy(),
	}
}

// ValidateLinkage checks every block points at the hash of the block
// before it. The first block is not checked since it has no parent here.
func (c *Chain) ValidateLinkage() error {
	for i := 1; i < len(c.blocks); i++ {
		if c.blocks[i].PrevHash != c.blocks[i-1].Hash {
			return &BlockError{Block: c.blocks[i], Err: fmt.Errorf("block %d: %w", i, ErrHashMismatch)}
		}
	}

	return nil
}

// Validate checks the chain starts at a genesis block, every block links
// to its parent and every block after genesis carries a solved hash.
func (c *Chain) Validate() error {
	if !c.blocks[0].IsGenesis() {
		return &BlockError{Block: c.blocks[0], Err: fmt.Errorf("block 0 is not genesis: %w", ErrInvalidBlock)}
	}

	if err := c.ValidateLinkage(); err != nil {
		return err
	}

	for i := 1; i < len(c.blocks); i++ {
		if err := c.blocks[i].ValidateHash(); err != nil {
			return &BlockError{Block: c.blocks[i], Err: fmt.Errorf("block %d: %w: %w", i, ErrInvalidBlock, err)}
		}
	}

	return nil
}

// =============================================================================

// validateNext checks the block can become the next block in the chain.
func (c *Chain) validateNext(block database.Block) error {
	tip := c.Head()

	c.cfg.EvHandler("chain: validateNext: blk[%s]: check: parent hash does match tip", block)

	if block.PrevHash != tip.Hash {
		return &BlockError{Block: block, Err: fmt.Errorf("got %s, exp %s: %w", block.PrevHash, tip.Hash, ErrHashMismatch)}
	}

	c.cfg.EvHandler("chain: validateNext: blk[%s]: check: block hash has been solved", block)

	if err := block.ValidateHash(); err != nil {
		return &BlockError{Block: block, Err: fmt.Errorf("%w: %w", ErrInvalidBlock, err)}
	}

	return nil
}

// mineConfig converts the chain configuration for the proof of work.
func (c *Chain) mineConfig() database.MineConfig {
	return database.MineConfig{
		Rand:      c.cfg.Rand,
		Now:       c.cfg.Now,
		EvHandler: c.cfg.EvHandler,
	}
}

// withDefaults fills in the production capabilities for anything the
// caller left out.
func (cfg Config) withDefaults() Config {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.EvHandler == nil {
		cfg.EvHandler = func(v string, args ...any) {}
	}

	return cfg
}
