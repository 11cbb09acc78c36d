// Package lifecycle implements the two-phase SIGINT/SIGTERM shutdown
// contract of spec.md §5 "Signals": the first signal requests a graceful
// drain, a second SIGINT within 2s escalates to an immediate abort, and
// span-close execution can defer delivery of a signal that arrives
// mid-evaluation.
//
// Grounded on the teacher's App.Run (internal/app/app.go): a single
// signal.Notify(SIGINT, SIGTERM) feeding a blocking receive that triggers
// Stop(). This package generalizes that one-shot receive into a small
// state machine distinguishing first-signal-graceful from
// second-signal-immediate, and adds the guard window the spec requires
// around span-close.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownKind distinguishes a graceful drain request from an immediate
// abort (spec.md §5 "Shutdown{immediate:false}" / "Shutdown{immediate:true}").
type ShutdownKind int

const (
	ShutdownGraceful ShutdownKind = iota
	ShutdownImmediate
)

func (k ShutdownKind) String() string {
	if k == ShutdownImmediate {
		return "immediate"
	}
	return "graceful"
}

// Signal is one shutdown request delivered on Controller.Ctrl().
type Signal struct {
	Kind ShutdownKind
}

// Controller watches for SIGINT/SIGTERM and exposes a Ctrl() channel every
// pipeline stage's select loop listens on (spec.md §5 "A Ctrl channel is
// selected against data channels in each stage loop").
type Controller struct {
	logger *logrus.Logger

	osCh   chan os.Signal
	ctrlCh chan Signal

	secondWindow time.Duration

	mu       sync.Mutex
	guarded  bool
	pending  *Signal
	sawFirst bool
	firstAt  time.Time
	exitCode int
}

// New builds a Controller. logger may be nil, in which case shutdown
// events are not logged.
func New(logger *logrus.Logger) *Controller {
	return &Controller{
		logger:       logger,
		osCh:         make(chan os.Signal, 2),
		ctrlCh:       make(chan Signal, 2),
		secondWindow: 2 * time.Second,
	}
}

// Ctrl returns the shutdown-request channel.
func (c *Controller) Ctrl() <-chan Signal { return c.ctrlCh }

// ExitCode reports the process exit code implied by signal handling so
// far: 130 once any SIGINT/SIGTERM has been observed, 0 otherwise
// (spec.md §6.2 "130 on graceful SIGINT").
func (c *Controller) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}

// Watch begins listening for SIGINT/SIGTERM and stops when ctx is done.
func (c *Controller) Watch(ctx context.Context) {
	signal.Notify(c.osCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			select {
			case <-ctx.Done():
				signal.Stop(c.osCh)
				return
			case <-c.osCh:
				c.handleSignal()
			}
		}
	}()
}

func (c *Controller) handleSignal() {
	c.mu.Lock()
	now := time.Now()
	kind := ShutdownGraceful
	if c.sawFirst && now.Sub(c.firstAt) <= c.secondWindow {
		kind = ShutdownImmediate
	}
	if kind == ShutdownGraceful {
		c.sawFirst = true
		c.firstAt = now
	}
	c.exitCode = 130

	if c.guarded {
		sig := Signal{Kind: kind}
		c.pending = &sig
		c.mu.Unlock()
		c.log(kind, true)
		return
	}
	c.mu.Unlock()
	c.log(kind, false)
	c.dispatch(Signal{Kind: kind})
}

func (c *Controller) log(kind ShutdownKind, deferred bool) {
	if c.logger == nil {
		return
	}
	entry := c.logger.WithField("shutdown_kind", kind.String())
	if deferred {
		entry.Warn("shutdown signal received during guarded section, deferring delivery")
		return
	}
	entry.Info("shutdown signal received")
}

func (c *Controller) dispatch(sig Signal) {
	select {
	case c.ctrlCh <- sig:
	default:
		// A signal is already queued; consumers only need to observe the
		// most severe request once, not one per repeated keypress.
	}
}

// Guard runs fn with signal delivery deferred, then delivers any signal
// that arrived during fn once it returns (spec.md §5 "set a
// deferred-signal guard during span-close execution" — protects a
// --span-close hook's single evaluation from being interrupted
// mid-expression while still honoring the signal immediately after).
func (c *Controller) Guard(fn func()) {
	c.mu.Lock()
	c.guarded = true
	c.mu.Unlock()

	fn()

	c.mu.Lock()
	c.guarded = false
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		c.dispatch(*pending)
	}
}
