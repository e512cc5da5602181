package chain

import (
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
)

// BlockError represents an error on a block that could not be added.
type BlockError struct {
	Block database.Block
	Err   error
}

// Error implements the error interface.
func (be *BlockError) Error() string {
	return "blk[" + be.Block.Hash + "]: " + be.Err.Error()
}

// Unwrap provides support for errors.Is and errors.As.
func (be *BlockError) Unwrap() error {
	return be.Err
}
