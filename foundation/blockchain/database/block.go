// Package database maintains the data model of the blockchain: transactions,
// blocks, the genesis rule and the proof of work used to seal a block.
package database

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// ErrMiningCancelled is returned from POW when the search for a nonce is
// stopped before a solution is found.
var ErrMiningCancelled = errors.New("mining cancelled")

// difficulty is the number of '1' characters a block hash must contain.
const difficulty = 6

// nonceBytes is the size of the nonce domain, 128 bits.
const nonceBytes = 16

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	TimeStamp string      `json:"timestamp"` // Unix seconds the block was mined, as a decimal string.
	Nonce     uint256.Int `json:"nonce"`     // Value identified to solve the hash solution. Only 128 bits are used.
}

// Block represents a single transaction sealed into the chain.
type Block struct {
	Header   BlockHeader `json:"header"`
	Tx       Tx          `json:"tr_data"`
	Hash     string      `json:"hash"`
	PrevHash string      `json:"prev_hash"`
}

// MineConfig provides the capabilities the proof of work needs from its host.
type MineConfig struct {
	Rand      io.Reader
	Now       func() time.Time
	EvHandler func(v string, args ...any)
}

// POW constructs a new Block on top of the specified previous hash and
// performs the work to find a nonce that solves the puzzle.
func POW(ctx context.Context, cfg MineConfig, prevHash string, tx Tx) (Block, error) {
	cfg = cfg.withDefaults()

	nb := Block{
		Tx:       tx,
		PrevHash: prevHash,
	}

	if err := nb.performPOW(ctx, cfg); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for the block.
// Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, cfg MineConfig) error {
	ev := cfg.EvHandler

	ev("database: PerformPOW: MINING: started: tx[%s]", b.Tx)
	defer ev("database: PerformPOW: MINING: completed")

	var buf [nonceBytes]byte
	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Did we timeout trying to solve the problem.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return fmt.Errorf("%w: %w", ErrMiningCancelled, context.Cause(ctx))
		}

		// Every attempt draws a brand new nonce over the full domain.
		if _, err := io.ReadFull(cfg.Rand, buf[:]); err != nil {
			return fmt.Errorf("reading nonce entropy: %w", err)
		}
		b.Header.Nonce.SetBytes(buf[:])

		hash := CalculateHash(b.PrevHash, b.Tx, &b.Header.Nonce)
		if !IsHashSolved(hash) {
			continue
		}

		b.Hash = hash
		b.Header.TimeStamp = strconv.FormatInt(cfg.Now().UTC().Unix(), 10)

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", b.PrevHash, hash, attempts)

		return nil
	}
}

// ValidateHash re-derives the hash from the block content and checks it
// matches the sealed hash and solves the puzzle.
func (b Block) ValidateHash() error {
	if b.Header.Nonce.BitLen() > nonceBytes*8 {
		return fmt.Errorf("nonce exceeds %d bits", nonceBytes*8)
	}

	hash := CalculateHash(b.PrevHash, b.Tx, &b.Header.Nonce)
	if hash != b.Hash {
		return fmt.Errorf("block hash doesn't match content, got %s, exp %s", b.Hash, hash)
	}

	if !IsHashSolved(hash) {
		return fmt.Errorf("%s invalid block hash", hash)
	}

	return nil
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("%s<-%s", b.Hash, b.PrevHash)
}

// =============================================================================

// CalculateHash returns the hex encoded SHA-256 digest of the previous hash,
// the transaction fields and the nonce, concatenated in that order.
func CalculateHash(prevHash string, tx Tx, nonce *uint256.Int) string {
	var sb strings.Builder
	sb.WriteString(prevHash)
	sb.WriteString(tx.From)
	sb.WriteString(tx.To)
	sb.WriteString(strconv.FormatUint(tx.Amount, 10))
	sb.WriteString(nonce.Dec())

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// IsHashSolved checks the hash to make sure it complies with the POW rules.
// We need to find at least difficulty number of 1's anywhere in the hash.
func IsHashSolved(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}

	return strings.Count(hash, "1") >= difficulty
}

// =============================================================================

// withDefaults fills in the production capabilities for anything the
// caller left out.
func (cfg MineConfig) withDefaults() MineConfig {
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.EvHandler == nil {
		cfg.EvHandler = func(v string, args ...any) {}
	}

	return cfg
}
