package state

import (
	"strconv"

	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ardanlabs/forkchain/foundation/blockchain/forkset"
	"github.com/ardanlabs/forkchain/foundation/blockchain/peer"
)

// NeedsPeerChain reports whether this node should replace its canonical
// chain with the one held by the specified peer. Only a node whose
// canonical chain is still just genesis takes on a peer's chain. It does so
// when the peer is ahead, or when both hold only genesis and the peer's
// genesis is older.
func (s *State) NeedsPeerChain(ps peer.PeerStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.needsPeerChain(ps.Length, ps.GenesisHash)
}

// AdoptPeerChain validates the blocks retrieved from a peer and makes them
// the canonical chain. Transactions sealed in the local branches are put
// back in the mempool ahead of the pending ones, minus any the peer's chain
// already holds. It reports false when the node no longer needs the chain.
func (s *State) AdoptPeerChain(blocks []database.Block) (bool, error) {
	s.evHandler("state: AdoptPeerChain: started: blocks[%d]", len(blocks))
	defer s.evHandler("state: AdoptPeerChain: completed")

	if len(blocks) == 0 {
		return false, nil
	}

	// The tip the mining G works on is about to disappear.
	done := s.Worker.SignalCancelMining()
	defer func() {
		s.evHandler("state: AdoptPeerChain: signal runMiningOperation to terminate")
		done()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.needsPeerChain(len(blocks), blocks[0].Hash) {
		s.evHandler("state: AdoptPeerChain: canonical len[%d]: peer chain not needed", s.canonical.Length())
		return false, nil
	}

	snap := chain.Snapshot{
		Blocks:  blocks,
		Mempool: append(s.branchTxs(), s.canonical.Mempool()...),
	}

	c, err := chain.Restore(s.chainCfg, snap)
	if err != nil {
		return false, err
	}

	if err := c.Validate(); err != nil {
		return false, err
	}

	for _, block := range blocks {
		c.RemoveTx(block.Tx)
	}

	s.canonical = c
	s.forks = forkset.New(c, s.forkCfg)

	s.evHandler("state: AdoptPeerChain: genesis[%s]: canonical len[%d]: mempool[%d]", c.First().Hash, c.Length(), c.MempoolLength())

	if err := s.save(); err != nil {
		return true, err
	}

	return true, nil
}

// =============================================================================

// needsPeerChain holds the adoption rule. The caller must hold the lock.
func (s *State) needsPeerChain(length int, genesisHash string) bool {
	if s.canonical.Length() != 1 || genesisHash == "" {
		return false
	}

	if length > 1 {
		return true
	}

	return olderGenesis(genesisHash, s.canonical.First().Hash)
}

// branchTxs returns the transactions sealed in the blocks of every branch
// in the order they were sealed. Blocks shared between branches are only
// counted once. The caller must hold the lock.
func (s *State) branchTxs() []database.Tx {
	seen := make(map[string]struct{})
	var txs []database.Tx

	for i := range s.forks.Branches() {
		branch, err := s.forks.Branch(i)
		if err != nil {
			continue
		}

		for _, block := range branch.Blocks()[1:] {
			if _, exists := seen[block.Hash]; exists {
				continue
			}
			seen[block.Hash] = struct{}{}
			txs = append(txs, block.Tx)
		}
	}

	return txs
}

// olderGenesis reports whether genesis hash a was created before b. The
// hashes are creation times in unix seconds. Anything else is compared as
// text so every node makes the same choice.
func olderGenesis(a string, b string) bool {
	ua, errA := strconv.ParseInt(a, 10, 64)
	ub, errB := strconv.ParseInt(b, 10, 64)
	if errA != nil || errB != nil || ua == ub {
		return a < b
	}

	return ua < ub
}
