package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// Batch is a group of Records tagged with a monotonic sequence number
// (used by Reorderer to restore input order in parallel ordered mode) and
// a diagnostic UUID correlating the batch across logs and traces.
type Batch struct {
	Seq     int64
	ID      uuid.UUID
	Records []Record
}

// BatchConfig controls the size/idle flush triggers (spec.md §5
// "Batcher flush trigger: size >= batch_size OR idle >= batch_timeout
// (default 200 ms)").
type BatchConfig struct {
	Size    int
	Timeout time.Duration
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{Size: 200, Timeout: 200 * time.Millisecond}
}

// Batcher groups Records from a Chunker into Batches, flushing on size or
// idle timeout. Grounded on the teacher's dispatcher.worker() batch+timer
// select loop (internal/dispatcher/dispatcher.go), lifted out of the
// combined batch-and-deliver loop into its own stage feeding the worker
// pool over Batches().
type Batcher struct {
	cfg BatchConfig
	out chan Batch
	seq int64
}

func NewBatcher(cfg BatchConfig) *Batcher {
	if cfg.Size <= 0 {
		cfg.Size = 200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 200 * time.Millisecond
	}
	return &Batcher{cfg: cfg, out: make(chan Batch, 8)}
}

// Batches returns the channel of completed batches, closed once Run's
// source is drained.
func (b *Batcher) Batches() <-chan Batch { return b.out }

// Run reads records from src until closed, accumulating them into batches
// per cfg, and closes Batches() on exit.
func (b *Batcher) Run(src <-chan Record) {
	defer close(b.out)

	batch := make([]Record, 0, b.cfg.Size)
	timer := time.NewTimer(b.cfg.Timeout)
	if !timer.Stop() {
		<-timer.C
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		b.out <- Batch{Seq: b.seq, ID: uuid.New(), Records: batch}
		b.seq++
		batch = make([]Record, 0, b.cfg.Size)
	}

	for {
		select {
		case rec, ok := <-src:
			if !ok {
				drainTimer(timer)
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) == 1 {
				timer.Reset(b.cfg.Timeout)
			}
			if len(batch) >= b.cfg.Size {
				drainTimer(timer)
				flush()
			}
		case <-timer.C:
			flush()
		}
	}
}
