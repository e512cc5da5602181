// Package forkset simulates competing branches growing on top of a chain
// and resolves them back into the chain by keeping the longest branch.
package forkset

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
)

// Set of error variables for fork set operations.
var (
	ErrOrphanBlock = errors.New("block parent not found in any branch")
	ErrSeedBranch  = errors.New("branch only holds its seed block")
	ErrStaleBlock  = errors.New("block parent is already below the fork point")
	ErrKnownBlock  = errors.New("block already exists in a branch")
)

// Simulated transaction values used when a branch is extended.
const (
	simFrom   = "sender"
	simTo     = "receiver"
	amountMax = 100_000_000

	defaultMaxOrphans = 64
)

// errNoParent is returned internally when a block can't be attached.
var errNoParent = errors.New("no parent")

// =============================================================================

// Config represents the configuration for a fork set.
type Config struct {
	Rand        *rand.Rand
	ChainConfig chain.Config
	MaxOrphans  int
	AmountMax   uint64
}

// ResolveResult describes what happened during a resolve.
type ResolveResult struct {
	Longest   int  // Length of the longest branch.
	Pruned    int  // Number of branches discarded.
	Survivors int  // Number of branches left.
	Merged    int  // Number of blocks added to the canonical chain.
	Converged bool // A single branch survived and was merged.
}

// ForkSet manages a set of branches that all start at the same seed block,
// the tip of the canonical chain. A ForkSet does no locking, only one owner
// may mutate a ForkSet at any given time.
type ForkSet struct {
	canonical *chain.Chain
	branches  []*chain.Chain
	orphans   []database.Block
	rnd       *rand.Rand
	cfg       Config
}

// New constructs a fork set seeded from the tip of the canonical chain.
func New(canonical *chain.Chain, cfg Config) *ForkSet {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}

	if cfg.MaxOrphans <= 0 {
		cfg.MaxOrphans = defaultMaxOrphans
	}

	if cfg.AmountMax == 0 {
		cfg.AmountMax = amountMax
	}

	if cfg.ChainConfig.EvHandler == nil {
		cfg.ChainConfig.EvHandler = func(v string, args ...any) {}
	}

	fs := ForkSet{
		canonical: canonical,
		rnd:       cfg.Rand,
		cfg:       cfg,
	}
	fs.reseed()

	return &fs
}

// =============================================================================

// Extend picks a branch at random and mints a new block on it.
func (fs *ForkSet) Extend(ctx context.Context) (int, database.Block, error) {
	i := fs.rnd.IntN(len(fs.branches))

	block, err := fs.ExtendBranch(ctx, i)
	return i, block, err
}

// ExtendBranch mints a new block with a random transaction onto the
// specified branch.
func (fs *ForkSet) ExtendBranch(ctx context.Context, index int) (database.Block, error) {
	branch, err := fs.branch(index)
	if err != nil {
		return database.Block{}, err
	}

	branch.SubmitTransaction(simFrom, simTo, fs.rnd.Uint64N(fs.cfg.AmountMax))

	block, err := branch.Mint(ctx)
	if err != nil {
		return database.Block{}, err
	}

	fs.ev("forkset: ExtendBranch: branch[%d]: len[%d]", index, branch.Length())

	return block, nil
}

// Diverge picks a branch at random and forks it. A branch holding only its
// seed block can't be forked and ErrSeedBranch is returned.
func (fs *ForkSet) Diverge(ctx context.Context) (int, error) {
	i := fs.rnd.IntN(len(fs.branches))
	return fs.DivergeBranch(ctx, i)
}

// DivergeBranch clones the specified branch, replaces its tip with a block
// holding a different transaction and adds the clone as a new branch. The
// index of the new branch is returned.
func (fs *ForkSet) DivergeBranch(ctx context.Context, index int) (int, error) {
	branch, err := fs.branch(index)
	if err != nil {
		return -1, err
	}

	if branch.Length() <= 1 {
		return -1, ErrSeedBranch
	}

	fork := branch.Clone()
	dropped, err := fork.DropTip()
	if err != nil {
		return -1, err
	}

	amount := fs.rnd.Uint64N(fs.cfg.AmountMax)
	if amount == dropped.Tx.Amount {
		amount = (amount + 1) % fs.cfg.AmountMax
	}

	// The fork must mine this transaction next, not anything left over.
	fork.TruncateMempool()
	fork.SubmitTransaction(simFrom, simTo, amount)

	if _, err := fork.Mint(ctx); err != nil {
		return -1, err
	}

	fs.branches = append(fs.branches, fork)

	fs.ev("forkset: DivergeBranch: branch[%d] forked into branch[%d]: branches[%d]", index, len(fs.branches)-1, len(fs.branches))

	return len(fs.branches) - 1, nil
}

// Resolve discards every branch shorter than the longest. When a single
// branch is left, it is merged into the canonical chain and the fork set is
// reseeded from the new tip.
func (fs *ForkSet) Resolve() (ResolveResult, error) {
	var longest int
	for _, branch := range fs.branches {
		longest = max(longest, branch.Length())
	}

	survivors := make([]*chain.Chain, 0, len(fs.branches))
	for _, branch := range fs.branches {
		if branch.Length() == longest {
			survivors = append(survivors, branch)
		}
	}

	res := ResolveResult{
		Longest:   longest,
		Pruned:    len(fs.branches) - len(survivors),
		Survivors: len(survivors),
	}
	fs.branches = survivors

	fs.ev("forkset: Resolve: longest[%d]: pruned[%d]: survivors[%d]", res.Longest, res.Pruned, res.Survivors)

	if len(survivors) != 1 {
		return res, nil
	}

	winner := survivors[0]

	// The first block of the branch is the canonical tip it grew from.
	blocks := winner.Blocks()[1:]
	if err := fs.canonical.Splice(blocks); err != nil {
		return res, fmt.Errorf("merging branch: %w", err)
	}
	fs.canonical.AppendMempool(winner.Mempool()...)

	res.Merged = len(blocks)
	res.Converged = true

	fs.ev("forkset: Resolve: merged[%d]: canonical len[%d]", res.Merged, fs.canonical.Length())

	fs.reseed()

	return res, nil
}

// =============================================================================

// Receive attaches a block received from elsewhere to the branch holding its
// parent. A block whose parent is a branch tip extends that branch, a block
// whose parent is inside a branch starts a new branch from that point. A
// block with no known parent is buffered and ErrOrphanBlock is returned.
func (fs *ForkSet) Receive(block database.Block) error {
	fs.ev("forkset: Receive: started: blk[%s]", block)
	defer fs.ev("forkset: Receive: completed")

	if err := block.ValidateHash(); err != nil {
		return &chain.BlockError{Block: block, Err: fmt.Errorf("%w: %w", chain.ErrInvalidBlock, err)}
	}

	err := fs.attach(block)
	switch {
	case err == nil:
		fs.retryOrphans()
		return nil

	case errors.Is(err, errNoParent):
		fs.bufferOrphan(block)
		return &chain.BlockError{Block: block, Err: ErrOrphanBlock}
	}

	return err
}

// attach performs a bounded search over every branch for the parent of the
// block. Tips are checked before history.
func (fs *ForkSet) attach(block database.Block) error {
	for _, branch := range fs.branches {
		if _, exists := branch.FindBlock(block.Hash); exists {
			return &chain.BlockError{Block: block, Err: ErrKnownBlock}
		}
	}

	for i, branch := range fs.branches {
		if branch.Head().Hash == block.PrevHash {
			fs.ev("forkset: attach: blk[%s]: extends branch[%d]", block, i)
			return branch.AppendExternal(block)
		}
	}

	for i, branch := range fs.branches {
		idx, found := branch.FindBlock(block.PrevHash)
		if !found {
			continue
		}

		fork := branch.Clone()
		if err := fork.TruncateAfter(idx); err != nil {
			return err
		}
		fork.TruncateMempool()

		if err := fork.AppendExternal(block); err != nil {
			return err
		}
		fs.branches = append(fs.branches, fork)

		fs.ev("forkset: attach: blk[%s]: forks branch[%d] at index[%d]", block, i, idx)

		return nil
	}

	if _, found := fs.canonical.FindBlock(block.PrevHash); found {
		return &chain.BlockError{Block: block, Err: ErrStaleBlock}
	}

	return errNoParent
}

// bufferOrphan holds on to a block until its parent shows up. The oldest
// orphan is dropped when the buffer is full.
func (fs *ForkSet) bufferOrphan(block database.Block) {
	for _, orphan := range fs.orphans {
		if orphan.Hash == block.Hash {
			return
		}
	}

	if len(fs.orphans) >= fs.cfg.MaxOrphans {
		fs.ev("forkset: bufferOrphan: dropping orphan[%s]", fs.orphans[0])
		fs.orphans = fs.orphans[1:]
	}

	fs.orphans = append(fs.orphans, block)
}

// retryOrphans attempts to attach buffered orphans after a successful
// receive. Every pass either removes an orphan or stops.
func (fs *ForkSet) retryOrphans() {
	for progress := true; progress; {
		progress = false

		for i, orphan := range fs.orphans {
			err := fs.attach(orphan)
			if errors.Is(err, errNoParent) {
				continue
			}

			if err != nil {
				fs.ev("forkset: retryOrphans: dropping orphan[%s]: %s", orphan, err)
			}

			fs.orphans = append(fs.orphans[:i:i], fs.orphans[i+1:]...)
			progress = true
			break
		}
	}
}

// =============================================================================

// Canonical returns the canonical chain the fork set merges into.
func (fs *ForkSet) Canonical() *chain.Chain {
	return fs.canonical
}

// Branches returns the length of every branch.
func (fs *ForkSet) Branches() []int {
	lengths := make([]int, len(fs.branches))
	for i, branch := range fs.branches {
		lengths[i] = branch.Length()
	}
	return lengths
}

// Tip returns the index and head of the first of the longest branches. This
// is the block new work should be built on.
func (fs *ForkSet) Tip() (int, database.Block) {
	var idx int
	for i, branch := range fs.branches {
		if branch.Length() > fs.branches[idx].Length() {
			idx = i
		}
	}

	return idx, fs.branches[idx].Head()
}

// Branch returns a copy of the specified branch.
func (fs *ForkSet) Branch(index int) (*chain.Chain, error) {
	branch, err := fs.branch(index)
	if err != nil {
		return nil, err
	}
	return branch.Clone(), nil
}

// Orphans returns the number of buffered orphan blocks.
func (fs *ForkSet) Orphans() int {
	return len(fs.orphans)
}

// =============================================================================

// reseed replaces the branches with a single branch holding the canonical tip.
func (fs *ForkSet) reseed() {
	fs.branches = []*chain.Chain{chain.NewFromBlock(fs.cfg.ChainConfig, fs.canonical.Head())}
}

// branch returns the branch at the specified index.
func (fs *ForkSet) branch(index int) (*chain.Chain, error) {
	if index < 0 || index >= len(fs.branches) {
		return nil, fmt.Errorf("branch %d, branches %d: %w", index, len(fs.branches), chain.ErrNotFound)
	}
	return fs.branches[index], nil
}

// ev sends an event through the configured handler.
func (fs *ForkSet) ev(v string, args ...any) {
	fs.cfg.ChainConfig.EvHandler(v, args...)
}
