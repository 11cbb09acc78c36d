package scheduler

import (
	"context"
	"runtime"
	"sync"

	"kelora/internal/event"
	"kelora/internal/parser"
	"kelora/internal/script"
	"kelora/internal/stage"
	"kelora/internal/tracker"
)

// PipelineFactory builds one worker's isolated Pipeline bound to a freshly
// cloned Engine and a fresh per-worker Tracker (spec.md §5 "Workers each
// own a cloned scripting engine, a local tracker, and a local window
// buffer"). internal/pipelineconfig supplies the concrete factory that
// recompiles every configured Filter/Exec/Span/Window expression against
// the cloned engine, since a Program compiled against one Engine's cel.Env
// closes over that Engine's helper-function bindings specifically.
type PipelineFactory func(eng *script.Engine, tr *tracker.Tracker) (*stage.Pipeline, error)

// ParallelConfig configures the worker pool (spec.md §6.1 "--parallel
// [N]", "--unordered", "--batch-size", "--batch-timeout").
type ParallelConfig struct {
	Workers        int
	Unordered      bool
	Batch          BatchConfig
	MaxOutstanding int // handed to the Reorderer in ordered mode; Reorderer does not enforce it
}

func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Workers:        runtime.NumCPU(),
		Batch:          DefaultBatchConfig(),
		MaxOutstanding: 64,
	}
}

// Parallel runs the multi-worker scheduling mode (spec.md §5 "2.
// Parallel. Threads: 1 reader, 1 chunker/batcher, W workers (default =
// CPU count, bounded), optional reorderer, 1 sink."). Grounded on the
// teacher's dispatcher worker-pool shape (N goroutines reading a shared
// channel, internal/dispatcher/dispatcher.go Start/worker), generalized
// from a fixed batch-then-send-to-sinks body into one that clones a
// scripting Engine and Tracker per worker and optionally routes output
// through a Reorderer instead of writing directly.
type Parallel struct {
	cfg     ParallelConfig
	source  LineSource
	chunker *Chunker
	batcher *Batcher
	parse   parser.Parser
	baseEng *script.Engine
	factory PipelineFactory
	sink    stage.Sink
	strict  bool

	onParseError func(*parser.ParseError)

	mergedTracker *tracker.Tracker
	reorder       *Reorderer
}

func NewParallel(cfg ParallelConfig, source LineSource, chunker *Chunker, p parser.Parser, baseEng *script.Engine, factory PipelineFactory, sink stage.Sink, strict bool, onParseError func(*parser.ParseError)) *Parallel {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	pr := &Parallel{
		cfg:           cfg,
		source:        source,
		chunker:       chunker,
		batcher:       NewBatcher(cfg.Batch),
		parse:         p,
		baseEng:       baseEng,
		factory:       factory,
		sink:          sink,
		strict:        strict,
		onParseError:  onParseError,
		mergedTracker: tracker.New(strict),
	}
	if !cfg.Unordered {
		pr.reorder = NewReorderer(sink, cfg.MaxOutstanding)
	}
	return pr
}

// MergedTracker returns the coordinator's combined tracker, fully
// populated once Run has returned (spec.md §5 "The coordinator merges
// trackers and diagnostics on shutdown").
func (p *Parallel) MergedTracker() *tracker.Tracker { return p.mergedTracker }

// Run fans Records out across cfg.Workers goroutines via the shared
// Batches() channel, each batch landing on exactly one worker, and blocks
// until every worker has drained the batch channel or ctx is cancelled.
func (p *Parallel) Run(ctx context.Context) error {
	go p.chunker.Run(p.source.Lines())
	go p.batcher.Run(p.chunker.Records())

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	recordErr := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recordErr(p.runWorker(ctx))
		}()
	}

	wg.Wait()

	if err := p.source.Err(); err != nil {
		recordErr(err)
	}
	return firstErr
}

func (p *Parallel) runWorker(ctx context.Context) error {
	eng, err := p.baseEng.Clone()
	if err != nil {
		return err
	}
	tr := tracker.New(p.strict)
	eng.SetTracker(tr)

	pipeline, err := p.factory(eng, tr)
	if err != nil {
		return err
	}
	defer p.mergeTracker(tr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-p.batcher.Batches():
			if !ok {
				return nil
			}
			events, err := p.processBatch(ctx, pipeline, batch)
			if err != nil {
				return err
			}
			if err := p.deliver(batch.Seq, events); err != nil {
				return err
			}
		}
	}
}

func (p *Parallel) processBatch(ctx context.Context, pipeline *stage.Pipeline, batch Batch) ([]*event.Event, error) {
	var out []*event.Event
	for _, rec := range batch.Records {
		ev, err := p.parse.Parse(rec.Text, rec.Filename, rec.LineNumber)
		if err != nil {
			if pe, ok := err.(*parser.ParseError); ok && p.onParseError != nil {
				p.onParseError(pe)
			}
			if p.strict {
				return nil, err
			}
			continue
		}
		survivors, err := pipeline.Run(ctx, ev)
		if err != nil {
			return nil, err
		}
		out = append(out, survivors...)
	}
	return out, nil
}

func (p *Parallel) deliver(seq int64, events []*event.Event) error {
	if p.reorder != nil {
		return p.reorder.Submit(BatchResult{Seq: seq, Events: events})
	}
	for _, ev := range events {
		if err := p.sink.Write(ev); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parallel) mergeTracker(tr *tracker.Tracker) {
	_ = p.mergedTracker.Merge(tr)
}
