// Package state is the core API for the blockchain node. It owns the
// canonical chain and the set of competing branches and serializes all
// access to them.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/forkset"
	"github.com/ardanlabs/forkchain/foundation/blockchain/peer"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, fork resolution and peer updates.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining() (done func())
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Host        string
	Storage     storage.Serializer
	KnownPeers  *peer.PeerSet
	ChainConfig chain.Config
	ForkConfig  forkset.Config
	EvHandler   EventHandler
}

// State manages the blockchain.
type State struct {
	mu sync.Mutex

	host       string
	evHandler  EventHandler
	chainCfg   chain.Config
	forkCfg    forkset.Config
	canonical  *chain.Chain
	forks      *forkset.ForkSet
	storage    storage.Serializer
	knownPeers *peer.PeerSet

	Worker Worker
}

// New constructs a new blockchain for data management. The canonical chain
// is loaded from storage, or started from genesis if nothing was saved.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}

	if cfg.KnownPeers == nil {
		cfg.KnownPeers = peer.NewPeerSet()
	}

	cfg.ChainConfig.EvHandler = chain.EventHandler(ev)
	cfg.ForkConfig.ChainConfig = cfg.ChainConfig

	canonical, err := storage.Load(cfg.Storage, cfg.ChainConfig)
	switch {
	case errors.Is(err, storage.ErrNoData):
		ev("state: New: no chain in storage: starting from genesis")
		canonical = chain.New(cfg.ChainConfig)

		if err := storage.Save(cfg.Storage, canonical); err != nil {
			return nil, fmt.Errorf("saving genesis: %w", err)
		}

	case err != nil:
		return nil, fmt.Errorf("loading chain: %w", err)
	}

	ev("state: New: canonical len[%d]: head[%s]", canonical.Length(), canonical.Head())

	state := State{
		host:       cfg.Host,
		evHandler:  ev,
		chainCfg:   cfg.ChainConfig,
		forkCfg:    cfg.ForkConfig,
		canonical:  canonical,
		forks:      forkset.New(canonical, cfg.ForkConfig),
		storage:    cfg.Storage,
		knownPeers: cfg.KnownPeers,
		Worker:     idleWorker{},
	}

	// The Worker is set to an idle worker here. The call to worker.Run will
	// assign itself and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down. The canonical chain is saved
// before the storage is closed.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	defer s.storage.Close()

	return s.Save()
}

// Save writes the canonical chain and its mempool to storage.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save()
}

// save writes the canonical chain to storage. The caller must hold the lock.
func (s *State) save() error {
	if err := storage.Save(s.storage, s.canonical); err != nil {
		return fmt.Errorf("saving chain: %w", err)
	}

	s.evHandler("state: save: canonical len[%d]", s.canonical.Length())

	return nil
}

// =============================================================================

// idleWorker is used until a real worker registers itself.
type idleWorker struct{}

func (idleWorker) Shutdown()                         {}
func (idleWorker) SignalStartMining()                {}
func (idleWorker) SignalCancelMining() (done func()) { return func() {} }
