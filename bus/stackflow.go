// File: bus/stackflow.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// StackFlow is the event queue + handler registry + workflow registry
// described in spec §3/§4.J-K: a bounded FIFO guarded by a mutex and
// condition variable, drained by one dedicated worker goroutine.

package bus

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-ws/control"
)

// DefaultQueueCapacity bounds the event FIFO when the caller does not
// specify one. Publishing past capacity blocks the publisher, matching
// the teacher's backpressure-over-drop preference elsewhere in the tree.
const DefaultQueueCapacity = 4096

// StackFlow owns one worker goroutine that drains a bounded FIFO of
// Events, dispatching each to its registered handlers and then to any
// workflow willing to accept it as a trigger.
type StackFlow struct {
	name string
	log  *zap.Logger

	mu            sync.Mutex
	cond          *sync.Cond
	q             *queue.Queue
	capacity      int
	running       bool
	stopRequested bool

	handlersMu sync.RWMutex
	handlers   map[Tag][]EventHandler

	workflowsMu sync.RWMutex
	workflows   map[string]*WorkflowStep

	wg sync.WaitGroup

	eventsProcessed int64
	workflowsRun    int64
	errors          int64

	counters *control.RuntimeCounters
}

// SetCounters installs the §6 operational counter sink. nil disables
// counting (the default).
func (sf *StackFlow) SetCounters(c *control.RuntimeCounters) { sf.counters = c }

// NewStackFlow constructs a StackFlow with the given bounded capacity (<=0
// uses DefaultQueueCapacity).
func NewStackFlow(name string, capacity int, log *zap.Logger) *StackFlow {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if log == nil {
		log = zap.NewNop()
	}
	sf := &StackFlow{
		name:      name,
		log:       log,
		q:         queue.New(),
		capacity:  capacity,
		handlers:  make(map[Tag][]EventHandler),
		workflows: make(map[string]*WorkflowStep),
	}
	sf.cond = sync.NewCond(&sf.mu)
	return sf
}

// RegisterHandler appends h to the ordered list for every tag it
// supports. Multiple handlers per tag are allowed; dispatch order is
// registration order (spec §3).
func (sf *StackFlow) RegisterHandler(h EventHandler) {
	sf.handlersMu.Lock()
	defer sf.handlersMu.Unlock()
	for _, tag := range h.SupportedTags() {
		sf.handlers[tag] = append(sf.handlers[tag], h)
	}
}

// UnregisterHandler removes every registration for h by name.
func (sf *StackFlow) UnregisterHandler(name string) {
	sf.handlersMu.Lock()
	defer sf.handlersMu.Unlock()
	for tag, list := range sf.handlers {
		filtered := list[:0]
		for _, h := range list {
			if h.Name() != name {
				filtered = append(filtered, h)
			}
		}
		sf.handlers[tag] = filtered
	}
}

// RegisterWorkflow adds a named workflow root.
func (sf *StackFlow) RegisterWorkflow(name string, root *WorkflowStep) {
	sf.workflowsMu.Lock()
	defer sf.workflowsMu.Unlock()
	sf.workflows[name] = root
}

// Start launches the worker goroutine. No-op if already running.
func (sf *StackFlow) Start() {
	sf.mu.Lock()
	if sf.running {
		sf.mu.Unlock()
		return
	}
	sf.running = true
	sf.stopRequested = false
	sf.mu.Unlock()

	sf.wg.Add(1)
	go sf.loop()
}

// Stop sets the stop flag, wakes the worker, and joins it. Any events
// still queued are dropped — StackFlow offers non-durable semantics
// (spec §4.J-K).
func (sf *StackFlow) Stop() {
	sf.mu.Lock()
	sf.stopRequested = true
	sf.cond.Signal()
	sf.mu.Unlock()
	sf.wg.Wait()
}

// Publish inserts e into the bounded FIFO, blocking while full, and
// notifies the worker. Callers that want to honor spec §7's QueueFull
// edge case (publish fails rather than blocks) should use TryPublish
// instead.
func (sf *StackFlow) Publish(e Event) {
	sf.mu.Lock()
	for sf.q.Length() >= sf.capacity && !sf.stopRequested {
		sf.cond.Wait()
	}
	sf.q.Add(e)
	sf.cond.Signal()
	sf.mu.Unlock()
}

// TryPublish inserts e into the bounded FIFO without blocking, returning
// ErrQueueFull immediately if the queue is at capacity (spec §7
// QueueFull).
func (sf *StackFlow) TryPublish(e Event) error {
	sf.mu.Lock()
	if sf.q.Length() >= sf.capacity {
		sf.mu.Unlock()
		return ErrQueueFull
	}
	sf.q.Add(e)
	sf.cond.Signal()
	sf.mu.Unlock()
	return nil
}

func (sf *StackFlow) loop() {
	defer sf.wg.Done()
	for {
		sf.mu.Lock()
		for sf.q.Length() == 0 && !sf.stopRequested {
			sf.cond.Wait()
		}
		if sf.stopRequested {
			// Drop whatever is still queued and wake any publisher still
			// blocked on capacity.
			sf.q = queue.New()
			sf.running = false
			sf.cond.Broadcast()
			sf.mu.Unlock()
			return
		}
		e := sf.q.Peek().(Event)
		sf.q.Remove()
		sf.cond.Signal() // wake any publisher blocked on capacity
		sf.mu.Unlock()

		sf.dispatch(e)
	}
}

func (sf *StackFlow) dispatch(e Event) {
	sf.handlersMu.RLock()
	snapshot := append([]EventHandler(nil), sf.handlers[e.Tag]...)
	sf.handlersMu.RUnlock()

	for _, h := range snapshot {
		if !h.Handle(e) {
			atomic.AddInt64(&sf.errors, 1)
			if sf.counters != nil {
				sf.counters.AddErrors(1)
			}
			sf.log.Warn("stackflow: handler returned false",
				zap.String("stackflow", sf.name),
				zap.String("handler", h.Name()),
				zap.String("tag", string(e.Tag)))
		}
	}
	atomic.AddInt64(&sf.eventsProcessed, 1)
	if sf.counters != nil {
		sf.counters.AddEventsProcessed(1)
	}

	sf.workflowsMu.RLock()
	workflows := make(map[string]*WorkflowStep, len(sf.workflows))
	for k, v := range sf.workflows {
		workflows[k] = v
	}
	sf.workflowsMu.RUnlock()

	for name, root := range workflows {
		if root.acceptsTrigger(e) {
			root.run(e)
			atomic.AddInt64(&sf.workflowsRun, 1)
			if sf.counters != nil {
				sf.counters.AddWorkflowsExecuted(1)
			}
			sf.log.Debug("stackflow: workflow executed",
				zap.String("stackflow", sf.name),
				zap.String("workflow", name),
				zap.String("status", string(root.Status())))
		}
	}
}

// EventsProcessed returns the cumulative processed-event counter.
func (sf *StackFlow) EventsProcessed() int64 { return atomic.LoadInt64(&sf.eventsProcessed) }

// WorkflowsExecuted returns the cumulative workflow-execution counter.
func (sf *StackFlow) WorkflowsExecuted() int64 { return atomic.LoadInt64(&sf.workflowsRun) }

// Errors returns the cumulative handler-error counter.
func (sf *StackFlow) Errors() int64 { return atomic.LoadInt64(&sf.errors) }
