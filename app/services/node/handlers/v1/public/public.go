// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/forkchain/business/web/errs"
	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ardanlabs/forkchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/forkchain/foundation/blockchain/state"
	"github.com/ardanlabs/forkchain/foundation/events"
	"github.com/ardanlabs/forkchain/foundation/validate"
	"github.com/ardanlabs/forkchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// This provides a channel for receiving events from the blockchain.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting to receive events from the blockchain or ticker.
	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitTransaction adds a new transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nt newTx
	if err := web.Decode(r, &nt); err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tx := database.NewTx(nt.From, nt.To, nt.Amount)

	h.Log.Infow("add tran", "traceid", v.TraceID, "from", tx.From, "to", tx.To, "amount", tx.Amount)
	pending := h.State.SubmitTransaction(tx)

	resp := submitted{
		Status:  "transaction added to mempool",
		Tx:      tx,
		Pending: pending,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions in queue order.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.State.RetrieveMempool()
	return web.Respond(ctx, w, txs, http.StatusOK)
}

// TxByIndex returns the uncommitted transaction at the specified position.
func (h Handlers) TxByIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := indexParam(r)
	if err != nil {
		return err
	}

	tx, err := h.State.QueryTxByIndex(index)
	if err != nil {
		if errors.Is(err, mempool.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("query tx: index[%d]: %w", index, err)
	}

	return web.Respond(ctx, w, tx, http.StatusOK)
}

// Head returns the last block of the canonical chain.
func (h Handlers) Head(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.QueryBlocks()

	resp := block{
		Index:     len(blocks) - 1,
		BlockData: database.NewBlockData(blocks[len(blocks)-1]),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Blocks returns the canonical chain.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.QueryBlocks()
	return web.Respond(ctx, w, toBlocks(blocks), http.StatusOK)
}

// BlockByIndex returns the canonical block at the specified index.
func (h Handlers) BlockByIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := indexParam(r)
	if err != nil {
		return err
	}

	blk, err := h.State.QueryBlockByIndex(index)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("query block: index[%d]: %w", index, err)
	}

	resp := block{
		Index:     index,
		BlockData: database.NewBlockData(blk),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ForkStatus returns the state of the competing branches.
func (h Handlers) ForkStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status := h.State.RetrieveForkStatus()

	resp := forkStatus{
		Branches:  status.Branches,
		Orphans:   status.Orphans,
		TipBranch: status.TipBranch,
		Tip:       database.NewBlockData(status.Tip),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SignalMining signals the worker to start mining the mempool.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.State.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining signalled",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

// indexParam parses the index route parameter.
func indexParam(r *http.Request) (int, error) {
	index, err := strconv.Atoi(web.Param(r, "index"))
	if err != nil {
		return 0, errs.NewTrusted(fmt.Errorf("invalid index: %w", err), http.StatusBadRequest)
	}
	return index, nil
}
