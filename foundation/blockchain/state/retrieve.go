package state

import (
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ardanlabs/forkchain/foundation/blockchain/peer"
)

// ForkStatus represents the state of the competing branches.
type ForkStatus struct {
	Branches  []int
	Orphans   int
	TipBranch int
	Tip       database.Block
}

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveLatestBlock returns a copy the current head of the canonical chain.
func (s *State) RetrieveLatestBlock() database.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.canonical.Head()
}

// RetrieveMempool returns a copy of the mempool in queue order.
func (s *State) RetrieveMempool() []database.Tx {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.canonical.Mempool()
}

// RetrieveForkStatus returns the current state of the competing branches.
func (s *State) RetrieveForkStatus() ForkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, tip := s.forks.Tip()

	return ForkStatus{
		Branches:  s.forks.Branches(),
		Orphans:   s.forks.Orphans(),
		TipBranch: idx,
		Tip:       tip,
	}
}

// RetrievePeerStatus returns the status this node reports to its peers.
func (s *State) RetrievePeerStatus() peer.PeerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return peer.PeerStatus{
		GenesisHash:     s.canonical.First().Hash,
		LatestBlockHash: s.canonical.Head().Hash,
		Length:          s.canonical.Length(),
		Branches:        s.forks.Branches(),
		Orphans:         s.forks.Orphans(),
		KnownPeers:      s.RetrieveKnownPeers(),
	}
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}
