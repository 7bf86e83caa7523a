// File: bus/workflow.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WorkflowStep implements the composable Condition/Action/Sequential/
// Parallel step tree of spec §3/§4.L, plus a per-step timeout
// (SPEC_FULL.md "Supplemented features") absent from the distilled spec.

package bus

import (
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// StepKind enumerates the WorkflowStep variants.
type StepKind int

const (
	KindCondition StepKind = iota
	KindAction
	KindSequential
	KindParallel
)

// StepStatus enumerates the WorkflowStep lifecycle. The transition graph
// is Pending -> Running -> (Completed | Failed | Skipped); reset() walks
// back to Pending.
type StepStatus string

const (
	StatusPending   StepStatus = "Pending"
	StatusRunning   StepStatus = "Running"
	StatusCompleted StepStatus = "Completed"
	StatusFailed    StepStatus = "Failed"
	StatusSkipped   StepStatus = "Skipped"
)

// Predicate evaluates whether a Condition step (or the root's implicit
// trigger gate) should proceed, given the triggering event.
type Predicate func(Event) bool

// Action performs a WorkflowStep's side effect; a false return marks the
// step Failed.
type Action func(Event) bool

// WorkflowStep is a single node in the workflow tree.
type WorkflowStep struct {
	Name      string
	Kind      StepKind
	Condition Predicate
	Act       Action
	Children  []*WorkflowStep

	// Timeout, if nonzero, bounds how long Act or the children's
	// combined execution may take before this step is forced to Failed.
	// Supplements the distilled spec, which names no cancellation model
	// for long-running steps (spec §9 "Open Questions").
	Timeout time.Duration

	mu     sync.Mutex
	status StepStatus
}

// NewWorkflowStep constructs a step with StatusPending.
func NewWorkflowStep(name string, kind StepKind) *WorkflowStep {
	return &WorkflowStep{Name: name, Kind: kind, status: StatusPending}
}

// Status returns the step's current status.
func (w *WorkflowStep) Status() StepStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *WorkflowStep) setStatus(s StepStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}

// finishStatus transitions w out of Running into a terminal status, but
// only if it is still Running. Used to resolve the race between a
// Timeout firing and the running body completing on its own: whichever
// of the two calls finishStatus first wins, the other is a no-op.
func (w *WorkflowStep) finishStatus(s StepStatus) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != StatusRunning {
		return false
	}
	w.status = s
	return true
}

// Reset performs a post-order walk setting this step and all descendants
// back to Pending.
func (w *WorkflowStep) Reset() {
	for _, c := range w.Children {
		c.Reset()
	}
	w.setStatus(StatusPending)
}

// acceptsTrigger decides whether this root step should run for e. Per
// spec §4.J "acceptance is whatever the workflow's root condition
// decides": a Condition-kind root gates on its own predicate; any other
// kind has no gate and always accepts (decided as an Open Question,
// recorded in the design ledger).
func (w *WorkflowStep) acceptsTrigger(e Event) bool {
	if w.Kind == KindCondition && w.Condition != nil {
		return w.Condition(e)
	}
	return true
}

// Execute runs the workflow synchronously from the caller's perspective
// and returns whether the root reached Completed (spec §4.L
// "execute_workflow ... returns the root's terminal status as a
// boolean").
func (w *WorkflowStep) Execute(trigger Event) bool {
	w.run(trigger)
	return w.Status() == StatusCompleted
}

func (w *WorkflowStep) run(e Event) {
	w.setStatus(StatusRunning)

	if w.Timeout > 0 {
		done := make(chan struct{})
		go func() {
			defer close(done)
			w.runBody(e)
		}()
		select {
		case <-done:
		case <-time.After(w.Timeout):
			// runBody keeps executing in the background (Action carries no
			// cancellation signal); finishStatus ensures whichever of the
			// two — this timeout or runBody's own terminal write — lands
			// first wins, and the other is a no-op.
			w.finishStatus(StatusFailed)
		}
		return
	}
	w.runBody(e)
}

func (w *WorkflowStep) runBody(e Event) {
	switch w.Kind {
	case KindCondition:
		if w.Condition == nil || !w.Condition(e) {
			w.finishStatus(StatusSkipped)
			return
		}
		w.runChildrenSequential(e)

	case KindAction:
		ok := true
		if w.Act != nil {
			ok = w.Act(e)
		}
		if !ok {
			w.finishStatus(StatusFailed)
			return
		}
		if len(w.Children) > 0 {
			w.runChildrenSequential(e)
			return
		}
		w.finishStatus(StatusCompleted)

	case KindSequential:
		w.runChildrenSequential(e)

	case KindParallel:
		w.runChildrenParallel(e)

	default:
		w.finishStatus(StatusFailed)
	}
}

func (w *WorkflowStep) runChildrenSequential(e Event) {
	for _, c := range w.Children {
		c.run(e)
		if c.Status() == StatusFailed {
			w.finishStatus(StatusFailed)
			return
		}
	}
	w.finishStatus(StatusCompleted)
}

// runChildrenParallel executes every child concurrently on a short-lived
// pool and joins on a barrier before resolving the parent, per spec
// §4.L: "the step Completed iff all children complete; a Failed child
// marks the step Failed but others still run to completion."
func (w *WorkflowStep) runChildrenParallel(e Event) {
	p := pool.New()
	for _, child := range w.Children {
		c := child
		p.Go(func() { c.run(e) })
	}
	p.Wait()

	failed := false
	for _, c := range w.Children {
		if c.Status() == StatusFailed {
			failed = true
		}
	}
	if failed {
		w.finishStatus(StatusFailed)
		return
	}
	w.finishStatus(StatusCompleted)
}
