package worker_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ardanlabs/forkchain/foundation/blockchain/state"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/forkchain/foundation/blockchain/worker"
	"github.com/ardanlabs/forkchain/foundation/logger"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_MineAndResolve(t *testing.T) {
	log, err := logger.New("TEST")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a logger: %s", failed, err)
	}
	defer log.Sync()

	ev := func(v string, args ...any) {
		log.Debugw(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
	}

	t.Log("Given the need to mine and resolve in the background.")
	{
		st, err := state.New(state.Config{
			Host:      "localhost:9080",
			Storage:   memory.New(),
			EvHandler: ev,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %s", failed, err)
		}

		worker.Run(st, worker.Config{MineTimeout: 10 * time.Second, ResolveEvery: time.Second}, ev)

		st.SubmitTransaction(database.NewTx("Alice", "Bob", 100000))

		deadline := time.Now().Add(15 * time.Second)
		for st.QueryLength() < 2 {
			if time.Now().After(deadline) {
				t.Fatalf("\t%s\tShould merge the mined block, got length %d: branches%v.", failed, st.QueryLength(), st.RetrieveForkStatus().Branches)
			}
			time.Sleep(50 * time.Millisecond)
		}
		t.Logf("\t%s\tShould merge the mined block into the canonical chain.", success)

		if st.QueryMempoolLength() != 0 {
			t.Fatalf("\t%s\tShould leave the mempool empty, got %d.", failed, st.QueryMempoolLength())
		}
		t.Logf("\t%s\tShould leave the mempool empty.", success)

		if err := st.Shutdown(); err != nil {
			t.Fatalf("\t%s\tShould shut down cleanly: %s", failed, err)
		}
		t.Logf("\t%s\tShould shut down cleanly.", success)
	}
}
