package state

import (
	"context"

	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ardanlabs/forkchain/foundation/blockchain/forkset"
	"github.com/ardanlabs/forkchain/foundation/blockchain/mempool"
)

// MineNewBlock attempts to seal the transaction at the head of the mempool
// in a new block on top of the longest branch. The lock is not held while
// the proof of work runs, so the branches may change underneath. The block
// is then attached wherever its parent still lives.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: check mempool count")

	s.mu.Lock()

	if s.canonical.MempoolLength() == 0 {
		s.mu.Unlock()
		return database.Block{}, mempool.ErrEmptyMempool
	}

	tx, err := s.canonical.TxByIndex(0)
	if err != nil {
		s.mu.Unlock()
		return database.Block{}, err
	}

	branch, tip := s.forks.Tip()

	mineCfg := database.MineConfig{
		Rand:      s.chainCfg.Rand,
		Now:       s.chainCfg.Now,
		EvHandler: s.evHandler,
	}

	s.mu.Unlock()

	s.evHandler("state: MineNewBlock: MINING: perform POW: branch[%d]: tip[%s]", branch, tip)

	block, err := database.POW(ctx, mineCfg, tip.Hash, tx)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.forks.Receive(block); err != nil {
		return database.Block{}, err
	}
	s.canonical.RemoveTx(tx)

	return block, nil
}

// ProcessProposedBlock takes a block received from a peer, validates it and
// if that passes, attaches it to the branch holding its parent. A block
// whose parent is unknown is held as an orphan and ErrOrphanBlock is
// returned.
func (s *State) ProcessProposedBlock(block database.Block) error {
	s.evHandler("state: ProcessProposedBlock: started: blk[%s]", block)
	defer s.evHandler("state: ProcessProposedBlock: completed")

	// If a mining operation is running it needs to stop since the tip it is
	// building on may change. The mining G will not return until done is
	// called, so the state changes complete before new mining starts.
	done := s.Worker.SignalCancelMining()
	defer func() {
		s.evHandler("state: ProcessProposedBlock: signal runMiningOperation to terminate")
		done()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.forks.Receive(block); err != nil {
		return err
	}

	// The peer may have sealed a transaction this node is also holding.
	if s.canonical.RemoveTx(block.Tx) {
		s.evHandler("state: ProcessProposedBlock: tx[%s] sealed by peer: removed from mempool", block.Tx)
	}

	return nil
}

// ResolveForks keeps the longest branches and merges the winner into the
// canonical chain once a single branch is left. The canonical chain is
// saved only when blocks were merged.
func (s *State) ResolveForks() (forkset.ResolveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.forks.Resolve()
	if err != nil {
		return res, err
	}

	// A lone seed branch converges without merging anything.
	if res.Merged > 0 {
		if err := s.save(); err != nil {
			return res, err
		}
	}

	return res, nil
}
