package public

import "github.com/ardanlabs/forkchain/foundation/blockchain/database"

// newTx is what a client submits to be added to the mempool. Any sender
// and receiver name is accepted, empty ones included.
type newTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type submitted struct {
	Status  string      `json:"status"`
	Tx      database.Tx `json:"tx"`
	Pending int         `json:"pending"`
}

type block struct {
	Index int `json:"index"`
	database.BlockData
}

type forkStatus struct {
	Branches  []int              `json:"branches"`
	Orphans   int                `json:"orphans"`
	TipBranch int                `json:"tip_branch"`
	Tip       database.BlockData `json:"tip"`
}

func toBlocks(blocks []database.Block) []block {
	out := make([]block, len(blocks))
	for i, blk := range blocks {
		out[i] = block{
			Index:     i,
			BlockData: database.NewBlockData(blk),
		}
	}
	return out
}
