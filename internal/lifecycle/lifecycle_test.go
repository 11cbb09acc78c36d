package lifecycle

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSignalFirstIsGraceful(t *testing.T) {
	c := New(nil)
	c.handleSignal()

	select {
	case sig := <-c.Ctrl():
		assert.Equal(t, ShutdownGraceful, sig.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a graceful shutdown signal")
	}
	assert.Equal(t, 130, c.ExitCode())
}

func TestHandleSignalSecondWithinWindowIsImmediate(t *testing.T) {
	c := New(nil)
	c.secondWindow = time.Minute

	c.handleSignal()
	<-c.Ctrl()
	c.handleSignal()

	select {
	case sig := <-c.Ctrl():
		assert.Equal(t, ShutdownImmediate, sig.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected an immediate shutdown signal")
	}
}

func TestHandleSignalAfterWindowIsGracefulAgain(t *testing.T) {
	c := New(nil)
	c.secondWindow = 10 * time.Millisecond

	c.handleSignal()
	<-c.Ctrl()
	time.Sleep(20 * time.Millisecond)
	c.handleSignal()

	select {
	case sig := <-c.Ctrl():
		assert.Equal(t, ShutdownGraceful, sig.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a graceful shutdown signal outside the escalation window")
	}
}

func TestGuardDefersSignalUntilReleased(t *testing.T) {
	c := New(nil)
	released := make(chan struct{})

	go func() {
		c.Guard(func() {
			<-released
		})
	}()

	time.Sleep(20 * time.Millisecond)
	c.handleSignal()

	select {
	case <-c.Ctrl():
		t.Fatal("signal must not be delivered while guarded")
	case <-time.After(50 * time.Millisecond):
	}

	close(released)

	select {
	case sig := <-c.Ctrl():
		assert.Equal(t, ShutdownGraceful, sig.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected the deferred signal to be delivered after Guard returns")
	}
}

func TestWatchDeliversOSSignal(t *testing.T) {
	c := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Watch(ctx)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))

	select {
	case sig := <-c.Ctrl():
		assert.Equal(t, ShutdownGraceful, sig.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected Watch to observe the delivered SIGINT")
	}
}
