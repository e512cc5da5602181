// Package storage handles the encoding of a chain into a compact binary form
// and moving those bytes in and out of a serializer.
package storage

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Set of error variables for storage operations.
var (
	ErrDecode = errors.New("malformed chain data")
	ErrNoData = errors.New("no chain data has been saved")
)

// nonceBits is the largest nonce a block can carry.
const nonceBits = 128

// Serializer is the behavior required to persist the encoded chain.
type Serializer interface {
	Write(data []byte) error
	Read() ([]byte, error)
	Close() error
}

// =============================================================================

// Save encodes the chain and its mempool and writes the bytes to the serializer.
func Save(s Serializer, c *chain.Chain) error {
	data, err := Encode(c.Snapshot())
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if err := s.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	return nil
}

// Load reads the bytes from the serializer and rebuilds the chain. If
// nothing was ever saved, ErrNoData is returned.
func Load(s Serializer, cfg chain.Config) (*chain.Chain, error) {
	data, err := s.Read()
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	snap, err := Decode(data)
	if err != nil {
		return nil, err
	}

	c, err := chain.Restore(cfg, snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return c, nil
}

// =============================================================================

// Encode converts the snapshot into its RLP representation. The same
// snapshot always produces the same bytes.
func Encode(snap chain.Snapshot) ([]byte, error) {
	cd := chainData{
		Blocks:  make([]blockData, len(snap.Blocks)),
		Mempool: make([]txData, len(snap.Mempool)),
	}

	for i, block := range snap.Blocks {
		cd.Blocks[i] = blockData{
			Header: headerData{
				TimeStamp: block.Header.TimeStamp,
				Nonce:     block.Header.Nonce.ToBig(),
			},
			Tx:       toTxData(block.Tx),
			Hash:     block.Hash,
			PrevHash: block.PrevHash,
		}
	}

	for i, tx := range snap.Mempool {
		cd.Mempool[i] = toTxData(tx)
	}

	return rlp.EncodeToBytes(cd)
}

// Decode converts the RLP representation back into a snapshot. Every
// failure is reported as ErrDecode.
func Decode(data []byte) (chain.Snapshot, error) {
	var cd chainData
	if err := rlp.DecodeBytes(data, &cd); err != nil {
		return chain.Snapshot{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if len(cd.Blocks) == 0 {
		return chain.Snapshot{}, fmt.Errorf("%w: chain has no blocks", ErrDecode)
	}

	snap := chain.Snapshot{
		Blocks:  make([]database.Block, len(cd.Blocks)),
		Mempool: make([]database.Tx, len(cd.Mempool)),
	}

	for i, bd := range cd.Blocks {
		if bd.Header.Nonce == nil || bd.Header.Nonce.BitLen() > nonceBits {
			return chain.Snapshot{}, fmt.Errorf("%w: block %d: nonce exceeds %d bits", ErrDecode, i, nonceBits)
		}

		var nonce uint256.Int
		nonce.SetFromBig(bd.Header.Nonce)

		block := database.Block{
			Header: database.BlockHeader{
				TimeStamp: bd.Header.TimeStamp,
				Nonce:     nonce,
			},
			Tx:       bd.Tx.toTx(),
			Hash:     bd.Hash,
			PrevHash: bd.PrevHash,
		}

		if i > 0 {
			if block.PrevHash != snap.Blocks[i-1].Hash {
				return chain.Snapshot{}, fmt.Errorf("%w: block %d: parent hash does not match", ErrDecode, i)
			}
			if err := block.ValidateHash(); err != nil {
				return chain.Snapshot{}, fmt.Errorf("%w: block %d: %w", ErrDecode, i, err)
			}
		}

		snap.Blocks[i] = block
	}

	for i, td := range cd.Mempool {
		snap.Mempool[i] = td.toTx()
	}

	return snap, nil
}

// =============================================================================

// chainData is the on-disk layout of a chain and its mempool.
type chainData struct {
	Blocks  []blockData
	Mempool []txData
}

type blockData struct {
	Header   headerData
	Tx       txData
	Hash     string
	PrevHash string
}

type headerData struct {
	TimeStamp string
	Nonce     *big.Int
}

type txData struct {
	From   string
	To     string
	Amount uint64
}

func toTxData(tx database.Tx) txData {
	return txData{
		From:   tx.From,
		To:     tx.To,
		Amount: tx.Amount,
	}
}

func (td txData) toTx() database.Tx {
	return database.NewTx(td.From, td.To, td.Amount)
}
