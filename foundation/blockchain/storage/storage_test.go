package storage_test

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage/memory"
	"github.com/holiman/uint256"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func newChain(t *testing.T, seed byte, blocks int, pending int) *chain.Chain {
	t.Helper()

	now := time.Unix(1_700_000_000, 0)

	c := chain.New(chain.Config{
		Rand: rand.NewChaCha8([32]byte{seed}),
		Now:  func() time.Time { return now },
	})

	for i := range blocks {
		c.SubmitTransaction("sender", "receiver", uint64(i+1)*1000)
		if _, err := c.Mint(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to mint block %d: %s", failed, i, err)
		}
	}

	for i := range pending {
		c.SubmitTransaction("Alice", "Bob", uint64(i))
	}

	return c
}

func sameChain(a *chain.Chain, b *chain.Chain) bool {
	if a.Length() != b.Length() || a.MempoolLength() != b.MempoolLength() {
		return false
	}

	ab, bb := a.Blocks(), b.Blocks()
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}

	am, bm := a.Mempool(), b.Mempool()
	for i := range am {
		if am[i] != bm[i] {
			return false
		}
	}

	return true
}

// =============================================================================

func Test_SaveLoad(t *testing.T) {
	type table struct {
		name    string
		blocks  int
		pending int
	}

	tt := []table{
		{name: "genesis", blocks: 0, pending: 0},
		{name: "empty mempool", blocks: 3, pending: 0},
		{name: "pending mempool", blocks: 3, pending: 4},
	}

	t.Log("Given the need to save and load a chain.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling a chain with %d blocks and %d pending.", testID, tst.blocks+1, tst.pending)
				{
					c := newChain(t, byte(testID+1), tst.blocks, tst.pending)
					mem := memory.New()

					if err := storage.Save(mem, c); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to save the chain: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to save the chain.", success, testID)

					loaded, err := storage.Load(mem, chain.Config{})
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to load the chain: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to load the chain.", success, testID)

					if !sameChain(c, loaded) {
						t.Fatalf("\t%s\tTest %d:\tShould load the same chain that was saved.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould load the same chain that was saved.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Encode(t *testing.T) {
	t.Log("Given the need to encode a chain deterministically.")
	{
		c := newChain(t, 9, 2, 1)

		b1, err := storage.Encode(c.Snapshot())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the chain: %s", failed, err)
		}

		b2, err := storage.Encode(c.Snapshot())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the chain twice: %s", failed, err)
		}

		if !bytes.Equal(b1, b2) {
			t.Fatalf("\t%s\tShould produce the same bytes for the same chain.", failed)
		}
		t.Logf("\t%s\tShould produce the same bytes for the same chain.", success)
	}
}

func Test_NoData(t *testing.T) {
	t.Log("Given the need to load before anything was saved.")
	{
		if _, err := storage.Load(memory.New(), chain.Config{}); !errors.Is(err, storage.ErrNoData) {
			t.Fatalf("\t%s\tShould get ErrNoData, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould get ErrNoData.", success)
	}
}

func Test_Decode(t *testing.T) {
	c := newChain(t, 10, 3, 2)

	good, err := storage.Encode(c.Snapshot())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to encode the chain: %s", failed, err)
	}

	encode := func(snap chain.Snapshot) []byte {
		data, err := storage.Encode(snap)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the snapshot: %s", failed, err)
		}
		return data
	}

	bigNonce := c.Snapshot()
	bigNonce.Blocks[1].Header.Nonce.Lsh(uint256.NewInt(1), 128)

	broken := c.Snapshot()
	broken.Blocks[2].PrevHash = broken.Blocks[0].Hash

	tampered := c.Snapshot()
	tampered.Blocks[3].Tx.Amount++

	type table struct {
		name string
		data []byte
	}

	tt := []table{
		{name: "empty", data: []byte{}},
		{name: "garbage", data: []byte{0xff, 0x01, 0x02}},
		{name: "truncated", data: good[:len(good)-1]},
		{name: "trailing", data: append(append([]byte(nil), good...), 0x80)},
		{name: "no blocks", data: encode(chain.Snapshot{})},
		{name: "nonce too big", data: encode(bigNonce)},
		{name: "broken linkage", data: encode(broken)},
		{name: "tampered block", data: encode(tampered)},
	}

	t.Log("Given the need to reject malformed chain data.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen decoding %s data.", testID, tst.name)
				{
					if _, err := storage.Decode(tst.data); !errors.Is(err, storage.ErrDecode) {
						t.Fatalf("\t%s\tTest %d:\tShould get ErrDecode, got %v.", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get ErrDecode.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}

		t.Logf("\tTest %d:\tWhen decoding random data.", len(tt))
		{
			rnd := rand.New(rand.NewPCG(1, 2))
			for range 500 {
				data := make([]byte, rnd.IntN(64))
				for i := range data {
					data[i] = byte(rnd.Uint32())
				}

				if _, err := storage.Decode(data); err != nil && !errors.Is(err, storage.ErrDecode) {
					t.Fatalf("\t%s\tTest %d:\tShould only report ErrDecode, got %v.", failed, len(tt), err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould decode random data without panicking.", success, len(tt))
		}
	}
}
