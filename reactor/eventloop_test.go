package reactor

import (
	"testing"
	"time"
)

// startTestLoop constructs an EventLoop and calls Run on the same
// goroutine, per spec §4.E ("construction records the creator thread's
// identity; this is the loop thread"). It returns once the loop is ready
// to accept RunInLoop/QueueInLoop calls from the test goroutine.
func startTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	ready := make(chan *EventLoop, 1)
	errCh := make(chan error, 1)
	go func() {
		el, err := NewEventLoop()
		if err != nil {
			errCh <- err
			return
		}
		ready <- el
		el.Run()
	}()

	select {
	case el := <-ready:
		t.Cleanup(func() {
			el.Quit()
			time.Sleep(20 * time.Millisecond)
			el.Close()
		})
		return el
	case err := <-errCh:
		t.Fatalf("NewEventLoop: %v", err)
		return nil
	case <-time.After(2 * time.Second):
		t.Fatal("timed out starting loop")
		return nil
	}
}

func TestEventLoopQueueInLoopRunsOnLoopGoroutine(t *testing.T) {
	el := startTestLoop(t)

	var sawLoopGoroutine bool
	done := make(chan struct{})
	el.QueueInLoop(func() {
		sawLoopGoroutine = el.IsInLoopGoroutine()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queued task")
	}
	if !sawLoopGoroutine {
		t.Errorf("task did not run on loop goroutine")
	}
}

func TestEventLoopRunAfterFires(t *testing.T) {
	el := startTestLoop(t)

	fired := make(chan struct{})
	el.RunAfter(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestEventLoopCancelTimerBestEffort(t *testing.T) {
	el := startTestLoop(t)

	fired := make(chan struct{}, 1)
	id := el.RunAfter(50*time.Millisecond, func() { fired <- struct{}{} })
	el.CancelTimer(id)

	select {
	case <-fired:
		t.Errorf("canceled timer fired")
	case <-time.After(150 * time.Millisecond):
		// expected: no firing
	}
}
