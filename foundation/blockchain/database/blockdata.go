package database

import (
	"fmt"

	"github.com/holiman/uint256"
)

// BlockData represents what is serialized to JSON when a block is sent
// between nodes or returned by the web api. The nonce is carried as a
// decimal string.
type BlockData struct {
	Header   BlockHeaderData `json:"header"`
	Tx       Tx              `json:"tr_data"`
	Hash     string          `json:"hash" validate:"required"`
	PrevHash string          `json:"prev_hash" validate:"required"`
}

// BlockHeaderData represents the header of a serialized block.
type BlockHeaderData struct {
	TimeStamp string `json:"timestamp" validate:"required"`
	Nonce     string `json:"nonce" validate:"required,number"`
}

// NewBlockData constructs block data from a block.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Header: BlockHeaderData{
			TimeStamp: block.Header.TimeStamp,
			Nonce:     block.Header.Nonce.Dec(),
		},
		Tx:       block.Tx,
		Hash:     block.Hash,
		PrevHash: block.PrevHash,
	}
}

// ToBlock converts the block data back into a block. The nonce must fit
// in 128 bits.
func ToBlock(bd BlockData) (Block, error) {
	nonce, err := uint256.FromDecimal(bd.Header.Nonce)
	if err != nil {
		return Block{}, fmt.Errorf("parsing nonce: %w", err)
	}

	if nonce.BitLen() > nonceBytes*8 {
		return Block{}, fmt.Errorf("nonce exceeds %d bits", nonceBytes*8)
	}

	block := Block{
		Header: BlockHeader{
			TimeStamp: bd.Header.TimeStamp,
			Nonce:     *nonce,
		},
		Tx:       bd.Tx,
		Hash:     bd.Hash,
		PrevHash: bd.PrevHash,
	}

	return block, nil
}
