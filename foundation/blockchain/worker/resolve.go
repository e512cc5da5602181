package worker

import (
	"time"

	"github.com/ardanlabs/forkchain/foundation/blockchain/forkset"
)

// resolveOperations resolves the competing branches on the wall clock
// schedule. Every node using the same schedule resolves in the same second.
func (w *Worker) resolveOperations() {
	w.evHandler("worker: resolveOperations: G started")
	defer w.evHandler("worker: resolveOperations: G completed")

	if w.cfg.ResolveEvery < time.Second {
		w.evHandler("worker: resolveOperations: resolve disabled: every[%v]", w.cfg.ResolveEvery)
		<-w.shut
		return
	}

	var last int64
	for {
		select {
		case now := <-w.resolveTicker.C:
			if w.isShutdown() {
				continue
			}

			// A ticker can fire twice within the same second.
			if !forkset.ResolveSlot(now, w.cfg.ResolveEvery) || now.Unix() == last {
				continue
			}
			last = now.Unix()

			w.runResolveOperation()

		case <-w.shut:
			w.evHandler("worker: resolveOperations: received shut signal")
			return
		}
	}
}

// runResolveOperation resolves the competing branches.
func (w *Worker) runResolveOperation() {
	w.evHandler("worker: runResolveOperation: started")
	defer w.evHandler("worker: runResolveOperation: completed")

	res, err := w.state.ResolveForks()
	if err != nil {
		w.evHandler("worker: runResolveOperation: ERROR: %s", err)
		return
	}

	w.evHandler("worker: runResolveOperation: survivors[%d]: merged[%d]: converged[%t]", res.Survivors, res.Merged, res.Converged)
}
