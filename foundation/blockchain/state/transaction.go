package state

import (
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ardanlabs/forkchain/foundation/blockchain/peer"
)

// SubmitTransaction accepts a transaction for inclusion and signals the
// worker to start mining. Transactions are trusted at face value.
func (s *State) SubmitTransaction(tx database.Tx) int {
	s.mu.Lock()
	s.canonical.AppendMempool(tx)
	pending := s.canonical.MempoolLength()
	s.mu.Unlock()

	s.evHandler("state: SubmitTransaction: tx[%s]: pending[%d]", tx, pending)

	s.Worker.SignalStartMining()

	return pending
}

// AddKnownPeer provides the ability to add a new peer.
func (s *State) AddKnownPeer(peer peer.Peer) bool {
	return s.knownPeers.Add(peer)
}

// RemoveKnownPeer provides the ability to remove a peer.
func (s *State) RemoveKnownPeer(peer peer.Peer) {
	s.knownPeers.Remove(peer)
}
