// File: reactor/eventloop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventLoop owns a Poller and runs the reactor's single dispatch thread
// (spec §4.E, §5). All Channel/Poller mutation happens on the loop
// goroutine; other goroutines hand off work via RunInLoop/QueueInLoop and
// a wakeup fd.

package reactor

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-ws/control"
)

// DefaultPollTimeout caps how long a single Poll call blocks when no
// timer is pending sooner.
const DefaultPollTimeout = 10 * time.Second

// goroutineID extracts the calling goroutine's numeric id by parsing the
// header line of runtime.Stack. Backs the loop-thread identity check
// (IsInLoopGoroutine/AssertInLoopGoroutine, §4.E/§9 "single-writer
// reactor"), which runs on every RunInLoop/QueueInLoop/Send call and in
// the per-event read/write handlers.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// EventLoop is the single-threaded reactor described in spec §3/§4.E.
type EventLoop struct {
	poller        Poller
	loopGoroutine uint64

	running int32
	quit    int32

	wakeupFD     wakeupFD
	wakeupChan   *Channel

	mu                     sync.Mutex
	pendingTasks           []func()
	callingPendingFunctors bool

	timers *timerQueue

	activeChannels []*Channel

	iterations      uint64
	eventDispatches uint64

	counters *control.RuntimeCounters
}

// SetCounters installs the §6 operational counter sink. Publishing
// happens once per poll iteration, not per event, to keep the per-event
// hot path allocation-free.
func (el *EventLoop) SetCounters(c *control.RuntimeCounters) { el.counters = c }

// NewEventLoop constructs an EventLoop bound to the calling goroutine.
// The calling goroutine becomes the "loop goroutine": per spec §4.E/§9,
// every later Channel/Poller mutation must happen on it (enforced by
// AssertInLoopGoroutine).
func NewEventLoop() (*EventLoop, error) {
	p, err := NewPoller()
	if err != nil {
		return nil, fmt.Errorf("reactor: new poller: %w", err)
	}
	wfd, err := newWakeupFD()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("reactor: new wakeup fd: %w", err)
	}
	el := &EventLoop{
		poller:        p,
		loopGoroutine: goroutineID(),
		wakeupFD:      wfd,
		timers:        newTimerQueue(),
	}
	el.wakeupChan = NewChannel(el, wfd.readFD())
	el.wakeupChan.SetReadCallback(el.handleWakeup)
	el.wakeupChan.EnableReading()
	return el, nil
}

// AssertInLoopGoroutine panics if the caller is not the loop goroutine.
// Guards every public Channel/Poller mutator per spec §9.
func (el *EventLoop) AssertInLoopGoroutine() {
	if !el.IsInLoopGoroutine() {
		panic("reactor: EventLoop method called from outside the loop goroutine")
	}
}

// IsInLoopGoroutine reports whether the caller is the loop goroutine.
func (el *EventLoop) IsInLoopGoroutine() bool {
	return goroutineID() == el.loopGoroutine
}

func (el *EventLoop) handleWakeup() {
	var buf [512]byte
	for {
		n, err := el.wakeupFD.drain(buf[:])
		if n == 0 || err != nil {
			return
		}
	}
}

// Run executes the reactor's main loop until Quit is called. Must be
// called from the loop goroutine (normally the one that constructed the
// EventLoop).
func (el *EventLoop) Run() error {
	el.AssertInLoopGoroutine()
	if !atomic.CompareAndSwapInt32(&el.running, 0, 1) {
		return fmt.Errorf("reactor: EventLoop already running")
	}
	defer atomic.StoreInt32(&el.running, 0)

	for atomic.LoadInt32(&el.quit) == 0 {
		timeout := el.nextTimeout()
		var err error
		el.activeChannels, err = el.poller.Poll(int(timeout.Milliseconds()), el.activeChannels[:0])
		if err != nil {
			return fmt.Errorf("reactor: poll: %w", err)
		}
		atomic.AddUint64(&el.iterations, 1)

		for _, ch := range el.activeChannels {
			ch.HandleEvent()
			atomic.AddUint64(&el.eventDispatches, 1)
		}

		el.runPendingTasks()
		el.runExpiredTimers()

		if el.counters != nil {
			el.counters.SetLoopIterations(int64(atomic.LoadUint64(&el.iterations)))
			el.counters.SetEventDispatches(int64(atomic.LoadUint64(&el.eventDispatches)))
		}
	}
	return nil
}

func (el *EventLoop) nextTimeout() time.Duration {
	deadline, ok := el.timers.nextDeadline()
	if !ok {
		return DefaultPollTimeout
	}
	d := time.Until(deadline)
	if d < 0 {
		return 0
	}
	if d > DefaultPollTimeout {
		return DefaultPollTimeout
	}
	return d
}

func (el *EventLoop) runPendingTasks() {
	el.mu.Lock()
	tasks := el.pendingTasks
	el.pendingTasks = nil
	el.callingPendingFunctors = true
	el.mu.Unlock()

	for _, t := range tasks {
		t()
	}

	el.mu.Lock()
	el.callingPendingFunctors = false
	el.mu.Unlock()
}

func (el *EventLoop) runExpiredTimers() {
	for _, t := range el.timers.expired(time.Now()) {
		t.fn()
	}
}

// RunInLoop runs task immediately if called from the loop goroutine, or
// queues it otherwise (spec §4.E).
func (el *EventLoop) RunInLoop(task func()) {
	if el.IsInLoopGoroutine() {
		task()
		return
	}
	el.QueueInLoop(task)
}

// QueueInLoop appends task to the pending queue and wakes the loop if
// necessary: when called off the loop goroutine, or when called while
// pending functors are already executing (so the new task is not missed
// this iteration).
func (el *EventLoop) QueueInLoop(task func()) {
	el.mu.Lock()
	el.pendingTasks = append(el.pendingTasks, task)
	needWake := !el.IsInLoopGoroutine() || el.callingPendingFunctors
	el.mu.Unlock()

	if needWake {
		el.wakeupFD.wake()
	}
}

// Quit asks the loop to stop after its current iteration. Safe to call
// from any goroutine.
func (el *EventLoop) Quit() {
	atomic.StoreInt32(&el.quit, 1)
	if !el.IsInLoopGoroutine() {
		el.wakeupFD.wake()
	}
}

// RunAfter schedules fn to run once after delay. Safe to call from any
// goroutine: the timer is registered on the loop goroutine, and RunAfter
// blocks until that registration has happened so the returned TimerID is
// always valid.
func (el *EventLoop) RunAfter(delay time.Duration, fn func()) TimerID {
	idCh := make(chan TimerID, 1)
	el.RunInLoop(func() {
		idCh <- el.timers.add(time.Now().Add(delay), 0, fn)
	})
	return <-idCh
}

// RunEvery schedules fn to run every interval, starting after one
// interval has elapsed. Safe to call from any goroutine; see RunAfter.
func (el *EventLoop) RunEvery(interval time.Duration, fn func()) TimerID {
	idCh := make(chan TimerID, 1)
	el.RunInLoop(func() {
		idCh <- el.timers.add(time.Now().Add(interval), interval, fn)
	})
	return <-idCh
}

// CancelTimer cancels a previously scheduled timer. Best-effort: a
// concurrent firing already popped off the heap may still run.
func (el *EventLoop) CancelTimer(id TimerID) {
	el.RunInLoop(func() {
		el.timers.cancel(id)
	})
}

func (el *EventLoop) updateChannel(ch *Channel) {
	el.AssertInLoopGoroutine()
	if err := el.poller.Update(ch); err != nil {
		// Loop creation/poller failures are fatal per §7; a failed
		// runtime Update is not. The error is dropped and no callback is
		// told: the channel's interest in the kernel simply didn't change.
		_ = err
	}
}

func (el *EventLoop) removeChannel(ch *Channel) {
	el.AssertInLoopGoroutine()
	_ = el.poller.Remove(ch)
}

// Close releases the poller and wakeup fd. Quit must be called first.
func (el *EventLoop) Close() error {
	if atomic.LoadInt32(&el.running) == 1 {
		return fmt.Errorf("reactor: Close called while loop is running")
	}
	el.wakeupFD.close()
	return el.poller.Close()
}

// Iterations returns the number of completed poll iterations.
func (el *EventLoop) Iterations() uint64 { return atomic.LoadUint64(&el.iterations) }

// EventDispatches returns the number of Channel.HandleEvent calls made.
func (el *EventLoop) EventDispatches() uint64 { return atomic.LoadUint64(&el.eventDispatches) }

// Pending returns the number of tasks currently queued for the loop
// goroutine. Useful for tests and metrics, not part of the hot path.
func (el *EventLoop) Pending() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.pendingTasks)
}
