// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ardanlabs/forkchain/business/web/errs"
	"github.com/ardanlabs/forkchain/foundation/blockchain/chain"
	"github.com/ardanlabs/forkchain/foundation/blockchain/database"
	"github.com/ardanlabs/forkchain/foundation/blockchain/forkset"
	"github.com/ardanlabs/forkchain/foundation/blockchain/state"
	"github.com/ardanlabs/forkchain/foundation/validate"
	"github.com/ardanlabs/forkchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// ProposeBlock takes a block received from a peer, validates it and
// if that passes, attaches it to the branch holding its parent.
func (h Handlers) ProposeBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Decode the JSON in the post call into block data.
	var blockData database.BlockData
	if err := web.Decode(r, &blockData); err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, err := database.ToBlock(blockData)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode block: %w", err), http.StatusBadRequest)
	}

	h.Log.Infow("propose block", "traceid", v.TraceID, "block", block.String())

	// Ask the state package to validate the proposed block. If the block
	// passes validation, it will be added to one of the branches.
	status := "accepted"
	statusCode := http.StatusOK

	if err := h.State.ProcessProposedBlock(block); err != nil {
		switch {
		case errors.Is(err, forkset.ErrKnownBlock):
			status = "known"

		case errors.Is(err, forkset.ErrOrphanBlock):
			status = "orphaned"
			statusCode = http.StatusAccepted

		case errors.Is(err, forkset.ErrStaleBlock):
			return errs.NewTrusted(err, http.StatusConflict)

		case errors.Is(err, chain.ErrInvalidBlock), errors.Is(err, chain.ErrHashMismatch):
			return errs.NewTrusted(err, http.StatusNotAcceptable)

		default:
			return err
		}
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: status,
	}

	return web.Respond(ctx, w, resp, statusCode)
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrievePeerStatus(), http.StatusOK)
}

// BlockList returns the blocks of the canonical chain so a peer can take
// it on.
func (h Handlers) BlockList(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.QueryBlocks()

	blocksData := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		blocksData[i] = database.NewBlockData(block)
	}

	return web.Respond(ctx, w, blocksData, http.StatusOK)
}
