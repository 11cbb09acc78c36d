package source

import (
	"sync"

	"kelora/internal/scheduler"
)

// Runner is implemented by every concrete source (StaticFile, Stdin,
// FollowFile): it owns the blocking read loop and must be started in its
// own goroutine via Run.
type Runner interface {
	Run(doneCh <-chan struct{})
	Lines() <-chan scheduler.Line
	Err() error
}

// Multi fans multiple sources' Lines channels into one, matching spec.md
// §6.1's "one or more input files" — the scheduler itself only ever
// talks to a single scheduler.LineSource, so multiple files are merged
// here rather than the scheduler needing to know about more than one.
type Multi struct {
	sources []Runner
	doneCh  chan struct{}
	out     chan scheduler.Line
	wg      sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

func NewMulti(sources ...Runner) *Multi {
	return &Multi{sources: sources, doneCh: make(chan struct{}), out: make(chan scheduler.Line, 256)}
}

// Start launches every source's Run loop plus a fan-in goroutine that
// closes Lines() once all sources are drained.
func (m *Multi) Start() {
	for _, s := range m.sources {
		m.wg.Add(1)
		go func(s Runner) {
			defer m.wg.Done()
			s.Run(m.doneCh)
		}(s)
	}
	go func() {
		var pump sync.WaitGroup
		for _, s := range m.sources {
			pump.Add(1)
			go func(s Runner) {
				defer pump.Done()
				for line := range s.Lines() {
					select {
					case <-m.doneCh:
						return
					case m.out <- line:
					}
				}
				if err := s.Err(); err != nil {
					m.mu.Lock()
					m.errs = append(m.errs, err)
					m.mu.Unlock()
				}
			}(s)
		}
		pump.Wait()
		close(m.out)
	}()
}

// Stop signals every source's doneCh, used for --take/EOF coordinated
// shutdown (spec.md §4.4.6) and SIGINT/SIGTERM draining
// (internal/lifecycle).
func (m *Multi) Stop() { close(m.doneCh) }

func (m *Multi) Lines() <-chan scheduler.Line { return m.out }

// Err returns the first source error observed, if any; --strict runs
// treat a non-nil Err as fatal (spec.md §7).
func (m *Multi) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) == 0 {
		return nil
	}
	return m.errs[0]
}
