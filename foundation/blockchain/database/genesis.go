package database

import (
	"strconv"
	"time"
)

// Genesis transaction values. These are fixed for every chain.
const (
	GenesisFrom   = "Satoshi"
	GenesisTo     = "GENESIS"
	GenesisAmount = 100_000_000

	// GenesisPrevHash is the parent hash recorded on the genesis block.
	GenesisPrevHash = "0"
)

// Genesis constructs the first block of a chain created at the specified
// time. No proof of work is applied: the genesis hash is the creation time
// in unix seconds and is never validated as a digest.
func Genesis(now time.Time) Block {
	return Block{
		Header: BlockHeader{
			TimeStamp: "0",
		},
		Tx:       NewTx(GenesisFrom, GenesisTo, GenesisAmount),
		Hash:     strconv.FormatInt(now.UTC().Unix(), 10),
		PrevHash: GenesisPrevHash,
	}
}

// IsGenesis reports whether the block follows the genesis rule.
func (b Block) IsGenesis() bool {
	return b.PrevHash == GenesisPrevHash && b.Tx == NewTx(GenesisFrom, GenesisTo, GenesisAmount)
}
