package scheduler

import (
	"sync"

	"kelora/internal/event"
	"kelora/internal/stage"
)

// BatchResult is one worker's output for a Batch: the surviving events in
// production order, tagged with the Batcher's Seq so Reorderer can
// restore input order across concurrently-finishing workers.
type BatchResult struct {
	Seq    int64
	Events []*event.Event
}

// Reorderer buffers out-of-order BatchResults until the next contiguous
// Seq is available, then flushes to sink (spec.md §5 "Parallel ordered
// mode (default): workers produce outputs tagged with the global batch
// index assigned by the batcher; the reorderer buffers out-of-order
// batches until contiguous, then flushes to the sink. Memory bound:
// max_outstanding_batches × batch_size").
//
// maxOutstanding is stored but not enforced: Submit never blocks, so the
// pending set grows without limit while an earlier batch is still
// outstanding.
//
// No direct teacher analog exists for this stage — the dispatcher's
// sinks never needed to restore an ordering contract — so this is built
// from the spec's description directly, in the idiom of the package's
// other mutex-guarded stages.
type Reorderer struct {
	mu      sync.Mutex
	next    int64
	pending map[int64]BatchResult
	sink    stage.Sink

	maxOutstanding int
}

func NewReorderer(sink stage.Sink, maxOutstanding int) *Reorderer {
	return &Reorderer{pending: make(map[int64]BatchResult), sink: sink, maxOutstanding: maxOutstanding}
}

// Submit delivers one worker's result; it is written immediately if it is
// the next expected sequence (and any already-buffered successors become
// contiguous as a result), or held until earlier-sequenced batches arrive.
func (r *Reorderer) Submit(res BatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[res.Seq] = res
	for {
		next, ok := r.pending[r.next]
		if !ok {
			break
		}
		delete(r.pending, r.next)
		r.next++
		if err := r.writeAll(next.Events); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reorderer) writeAll(events []*event.Event) error {
	for _, ev := range events {
		if err := r.sink.Write(ev); err != nil {
			return err
		}
	}
	return nil
}

// Outstanding reports how many not-yet-contiguous batches are buffered,
// for diagnostics and backpressure.
func (r *Reorderer) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
