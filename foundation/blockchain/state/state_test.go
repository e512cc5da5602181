package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ardanlabs/forkchain/foundation/blockchain/forkset"
	"github.com/ardanlabs/forkchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/forkchain/foundation/blockchain/peer"
	"github.com/ardanlabs/forkchain/foundation/blockchain/state"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/forkchain/foundation/logger"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func ifErrFailNow(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func newState(t *testing.T, seed byte, strg storage.Serializer) *state.State {
	t.Helper()

	return newStateAt(t, seed, strg, 1_700_000_000)
}

// newStateAt constructs a node whose clock is fixed at the specified unix
// second. The clock decides the genesis hash.
func newStateAt(t *testing.T, seed byte, strg storage.Serializer, unix int64) *state.State {
	t.Helper()

	log, err := logger.New("TEST")
	ifErrFailNow(t, err)
	t.Cleanup(func() { log.Sync() })

	ev := func(v string, args ...any) {
		log.Debugw(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
	}

	now := time.Unix(unix, 0)

	st, err := state.New(state.Config{
		Host:    fmt.Sprintf("node%d", seed),
		Storage: strg,
		ChainConfig: chain.Config{
			Rand: rand.NewChaCha8([32]byte{seed}),
			Now:  func() time.Time { return now },
		},
		ForkConfig: forkset.Config{
			Rand: rand.New(rand.NewPCG(uint64(seed), 0)),
		},
		EvHandler: ev,
	})
	ifErrFailNow(t, err)

	return st
}

// =============================================================================

func Test_MineAndResolve(t *testing.T) {
	t.Log("Given the need to mine and settle a block.")
	{
		strg := memory.New()
		st := newState(t, 1, strg)

		if _, err := storage.Load(strg, chain.Config{}); err != nil {
			t.Fatalf("\t%s\tShould save genesis on first start: %s", failed, err)
		}
		t.Logf("\t%s\tShould save genesis on first start.", success)

		if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, mempool.ErrEmptyMempool) {
			t.Fatalf("\t%s\tShould get ErrEmptyMempool, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould get ErrEmptyMempool with nothing to mine.", success)

		tx := database.NewTx("Alice", "Bob", 100000)
		st.SubmitTransaction(tx)

		block, err := st.MineNewBlock(context.Background())
		ifErrFailNow(t, err)

		if block.Tx != tx || st.QueryMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould seal the pending transaction.", failed)
		}
		t.Logf("\t%s\tShould seal the pending transaction.", success)

		status := st.RetrieveForkStatus()
		if len(status.Branches) != 1 || status.Branches[0] != 2 || status.Tip != block {
			t.Fatalf("\t%s\tShould hold the block in a branch, got %v.", failed, status.Branches)
		}
		t.Logf("\t%s\tShould hold the block in a branch until resolved.", success)

		res, err := st.ResolveForks()
		ifErrFailNow(t, err)

		if !res.Converged || st.QueryLength() != 2 || st.RetrieveLatestBlock() != block {
			t.Fatalf("\t%s\tShould merge the block into the canonical chain: %+v", failed, res)
		}
		t.Logf("\t%s\tShould merge the block into the canonical chain.", success)

		loaded, err := storage.Load(strg, chain.Config{})
		ifErrFailNow(t, err)

		if loaded.Length() != 2 || loaded.Head() != block {
			t.Fatalf("\t%s\tShould save the chain after the merge, got %d blocks.", failed, loaded.Length())
		}
		t.Logf("\t%s\tShould save the chain after the merge.", success)

		restarted := newState(t, 2, strg)
		if restarted.QueryLength() != 2 {
			t.Fatalf("\t%s\tShould load the saved chain on restart, got %d blocks.", failed, restarted.QueryLength())
		}
		t.Logf("\t%s\tShould load the saved chain on restart.", success)
	}
}

func Test_ProposedBlock(t *testing.T) {
	t.Log("Given the need to process blocks proposed by a peer.")
	{
		node := newState(t, 3, memory.New())
		peer := newState(t, 4, memory.New())

		shared := database.NewTx("Alice", "Bob", 7)
		node.SubmitTransaction(shared)
		peer.SubmitTransaction(shared)

		peerBlock, err := peer.MineNewBlock(context.Background())
		ifErrFailNow(t, err)

		t.Logf("\tTest 0:\tWhen the block extends the node's tip.")
		{
			if err := node.ProcessProposedBlock(peerBlock); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the block: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the block.", success)

			if node.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould drop the transaction the peer sealed.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould drop the transaction the peer sealed.", success)

			if err := node.ProcessProposedBlock(peerBlock); !errors.Is(err, forkset.ErrKnownBlock) {
				t.Fatalf("\t%s\tTest 0:\tShould get ErrKnownBlock on a resend, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get ErrKnownBlock on a resend.", success)
		}

		t.Logf("\tTest 1:\tWhen the node mines a competing block.")
		{
			rival := newState(t, 5, memory.New())
			rival.SubmitTransaction(database.NewTx("Carol", "Dave", 9))

			rivalBlock, err := rival.MineNewBlock(context.Background())
			ifErrFailNow(t, err)

			if err := node.ProcessProposedBlock(rivalBlock); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould accept the competing block: %s", failed, err)
			}

			status := node.RetrieveForkStatus()
			if len(status.Branches) != 2 || status.Branches[0] != 2 || status.Branches[1] != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould hold two branches of length 2, got %v.", failed, status.Branches)
			}
			t.Logf("\t%s\tTest 1:\tShould hold two branches of length 2.", success)

			res, err := node.ResolveForks()
			ifErrFailNow(t, err)

			if res.Converged || res.Survivors != 2 || node.QueryLength() != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould keep both branches on a tie: %+v", failed, res)
			}
			t.Logf("\t%s\tTest 1:\tShould keep both branches on a tie.", success)
		}

		t.Logf("\tTest 2:\tWhen the block has an unknown parent.")
		{
			peer.SubmitTransaction(database.NewTx("Alice", "Bob", 8))
			peer.SubmitTransaction(database.NewTx("Alice", "Bob", 9))

			_, err := peer.MineNewBlock(context.Background())
			ifErrFailNow(t, err)

			grandchild, err := peer.MineNewBlock(context.Background())
			ifErrFailNow(t, err)

			if err := node.ProcessProposedBlock(grandchild); !errors.Is(err, forkset.ErrOrphanBlock) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrOrphanBlock, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould get ErrOrphanBlock.", success)

			if node.RetrieveForkStatus().Orphans != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould hold on to the orphan.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould hold on to the orphan.", success)
		}
	}
}

// countingStorage counts the writes made to the storage.
type countingStorage struct {
	*memory.Memory
	writes int
}

func (cs *countingStorage) Write(data []byte) error {
	cs.writes++
	return cs.Memory.Write(data)
}

func Test_ResolveSaves(t *testing.T) {
	t.Log("Given the need to only save the chain when a resolve changes it.")
	{
		strg := countingStorage{Memory: memory.New()}
		st := newState(t, 15, &strg)

		t.Logf("\tTest 0:\tWhen the only branch is the bare seed.")
		{
			res, err := st.ResolveForks()
			ifErrFailNow(t, err)

			if !res.Converged || res.Merged != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould converge without merging: %+v", failed, res)
			}

			if strg.writes != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould not write past genesis, got %d writes.", failed, strg.writes)
			}
			t.Logf("\t%s\tTest 0:\tShould not write past genesis.", success)
		}

		t.Logf("\tTest 1:\tWhen a mined block is merged.")
		{
			st.SubmitTransaction(database.NewTx("Alice", "Bob", 3))

			_, err := st.MineNewBlock(context.Background())
			ifErrFailNow(t, err)

			res, err := st.ResolveForks()
			ifErrFailNow(t, err)

			if res.Merged != 1 || strg.writes != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould write once for the merge, got %d writes: %+v", failed, strg.writes, res)
			}
			t.Logf("\t%s\tTest 1:\tShould write once for the merge.", success)
		}
	}
}

func Test_PeerChain(t *testing.T) {
	t.Log("Given the need for nodes started in different seconds to share a chain.")
	{
		older := newStateAt(t, 21, memory.New(), 1_700_000_000)

		newerStrg := memory.New()
		newer := newStateAt(t, 22, newerStrg, 1_700_000_001)

		older.SubmitTransaction(database.NewTx("Alice", "Bob", 100_000))

		block, err := older.MineNewBlock(context.Background())
		ifErrFailNow(t, err)

		t.Logf("\tTest 0:\tWhen the nodes hold different genesis blocks.")
		{
			if err := newer.ProcessProposedBlock(block); !errors.Is(err, forkset.ErrOrphanBlock) {
				t.Fatalf("\t%s\tTest 0:\tShould get ErrOrphanBlock, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get ErrOrphanBlock.", success)

			if older.NeedsPeerChain(newer.RetrievePeerStatus()) {
				t.Fatalf("\t%s\tTest 0:\tShould keep the older genesis.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould keep the older genesis.", success)

			if !newer.NeedsPeerChain(older.RetrievePeerStatus()) {
				t.Fatalf("\t%s\tTest 0:\tShould need the chain with the older genesis.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould need the chain with the older genesis.", success)
		}

		t.Logf("\tTest 1:\tWhen the newer node adopts the chain of the older node.")
		{
			local := database.NewTx("Carol", "Dave", 9)
			newer.SubmitTransaction(local)

			_, err := newer.MineNewBlock(context.Background())
			ifErrFailNow(t, err)

			_, err = older.ResolveForks()
			ifErrFailNow(t, err)

			adopted, err := newer.AdoptPeerChain(older.QueryBlocks())
			ifErrFailNow(t, err)

			if !adopted || newer.QueryLength() != 2 || newer.RetrieveLatestBlock() != block {
				t.Fatalf("\t%s\tTest 1:\tShould adopt the chain, got %d blocks.", failed, newer.QueryLength())
			}
			t.Logf("\t%s\tTest 1:\tShould adopt the chain.", success)

			genesis, err := newer.QueryBlockByIndex(0)
			ifErrFailNow(t, err)

			if genesis.Hash != "1700000000" {
				t.Fatalf("\t%s\tTest 1:\tShould share the older genesis, got %s.", failed, genesis.Hash)
			}
			t.Logf("\t%s\tTest 1:\tShould share the older genesis.", success)

			mp := newer.RetrieveMempool()
			if len(mp) != 1 || mp[0] != local {
				t.Fatalf("\t%s\tTest 1:\tShould put the locally sealed transaction back, got %v.", failed, mp)
			}
			t.Logf("\t%s\tTest 1:\tShould put the locally sealed transaction back.", success)

			loaded, err := storage.Load(newerStrg, chain.Config{})
			ifErrFailNow(t, err)

			if loaded.Length() != 2 || loaded.First().Hash != "1700000000" {
				t.Fatalf("\t%s\tTest 1:\tShould save the adopted chain.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould save the adopted chain.", success)

			if newer.NeedsPeerChain(older.RetrievePeerStatus()) {
				t.Fatalf("\t%s\tTest 1:\tShould not need the chain again.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not need the chain again.", success)
		}

		t.Logf("\tTest 2:\tWhen the older node proposes its next block.")
		{
			older.SubmitTransaction(database.NewTx("Alice", "Bob", 5))

			next, err := older.MineNewBlock(context.Background())
			ifErrFailNow(t, err)

			if err := newer.ProcessProposedBlock(next); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould accept the block: %s", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould accept the block.", success)
		}

		third := newStateAt(t, 23, memory.New(), 1_700_000_002)

		t.Logf("\tTest 3:\tWhen the retrieved chain was tampered with.")
		{
			blocks := older.QueryBlocks()
			blocks[1].Tx.Amount = 1

			adopted, err := third.AdoptPeerChain(blocks)
			if adopted || !errors.Is(err, chain.ErrInvalidBlock) {
				t.Fatalf("\t%s\tTest 3:\tShould get ErrInvalidBlock, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould get ErrInvalidBlock.", success)

			genesis, err := third.QueryBlockByIndex(0)
			ifErrFailNow(t, err)

			if third.QueryLength() != 1 || genesis.Hash != "1700000002" {
				t.Fatalf("\t%s\tTest 3:\tShould keep its own chain.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould keep its own chain.", success)
		}

		t.Logf("\tTest 4:\tWhen the chain is retrieved over the network.")
		{
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/node/block/list" {
					http.NotFound(w, r)
					return
				}

				var blocksData []database.BlockData
				for _, block := range older.QueryBlocks() {
					blocksData = append(blocksData, database.NewBlockData(block))
				}
				json.NewEncoder(w).Encode(blocksData)
			}))
			defer srv.Close()

			pr := peer.New(strings.TrimPrefix(srv.URL, "http://"))

			blocks, err := third.NetRetrievePeerBlocks(pr)
			ifErrFailNow(t, err)

			if len(blocks) != older.QueryLength() || blocks[1] != block {
				t.Fatalf("\t%s\tTest 4:\tShould retrieve the peer's blocks, got %d.", failed, len(blocks))
			}
			t.Logf("\t%s\tTest 4:\tShould retrieve the peer's blocks.", success)

			adopted, err := third.AdoptPeerChain(blocks)
			ifErrFailNow(t, err)

			if !adopted || third.RetrieveLatestBlock() != older.RetrieveLatestBlock() {
				t.Fatalf("\t%s\tTest 4:\tShould adopt the retrieved chain.", failed)
			}
			t.Logf("\t%s\tTest 4:\tShould adopt the retrieved chain.", success)
		}

		t.Logf("\tTest 5:\tWhen the node already merged blocks of its own.")
		{
			ancient := newStateAt(t, 24, memory.New(), 1_699_999_999)

			if older.NeedsPeerChain(ancient.RetrievePeerStatus()) {
				t.Fatalf("\t%s\tTest 5:\tShould not need another chain.", failed)
			}
			t.Logf("\t%s\tTest 5:\tShould not need another chain.", success)

			adopted, err := older.AdoptPeerChain(ancient.QueryBlocks())
			ifErrFailNow(t, err)

			if adopted || older.QueryLength() != 2 {
				t.Fatalf("\t%s\tTest 5:\tShould keep its own chain.", failed)
			}
			t.Logf("\t%s\tTest 5:\tShould keep its own chain.", success)
		}
	}
}
