package worker

import (
	"github.com/ardanlabs/forkchain/foundation/blockchain/peer"
)

// Sync updates the peer list before the node starts mining. A node still
// holding only its own genesis takes on the chain of the first peer that
// is ahead, so it shares an ancestor with the rest of the network.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	for _, peer := range w.state.RetrieveKnownPeers() {

		// Retrieve the status of this peer.
		peerStatus, err := w.state.NetRequestPeerStatus(peer)
		if err != nil {
			w.evHandler("worker: sync: queryPeerStatus: %s: ERROR: %s", peer.Host, err)
			continue
		}

		// Add new peers to this nodes list.
		w.addNewPeers(peerStatus.KnownPeers)

		w.syncChain(peer, peerStatus)
	}
}

// syncChain retrieves and adopts the peer's canonical chain when this node
// needs it. Peers that are ahead otherwise reach this node through block
// sharing.
func (w *Worker) syncChain(pr peer.Peer, ps peer.PeerStatus) {
	if !w.state.NeedsPeerChain(ps) {
		if length := w.state.QueryLength(); ps.Length > length {
			w.evHandler("worker: syncChain: peer[%s] is ahead: length[%d]: ours[%d]", pr.Host, ps.Length, length)
		}
		return
	}

	w.evHandler("worker: syncChain: peer[%s]: genesis[%s]: length[%d]: retrieving chain", pr.Host, ps.GenesisHash, ps.Length)

	blocks, err := w.state.NetRetrievePeerBlocks(pr)
	if err != nil {
		w.evHandler("worker: syncChain: NetRetrievePeerBlocks: %s: ERROR: %s", pr.Host, err)
		return
	}

	adopted, err := w.state.AdoptPeerChain(blocks)
	if err != nil {
		w.evHandler("worker: syncChain: AdoptPeerChain: %s: ERROR: %s", pr.Host, err)
		return
	}

	if adopted {
		w.evHandler("worker: syncChain: peer[%s]: adopted chain: length[%d]", pr.Host, len(blocks))
	}
}
