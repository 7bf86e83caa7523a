// File: bus/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WorkflowScheduler triggers registered StackFlow workflows on a cron
// schedule, supplementing spec §4.L (which names no time-based trigger)
// per SPEC_FULL.md's "Supplemented features".

package bus

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// WorkflowScheduler wires cron expressions to (StackFlow, workflow name,
// synthetic trigger event) triples.
type WorkflowScheduler struct {
	cronSched *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewWorkflowScheduler constructs a scheduler using the standard
// five-field cron parser.
func NewWorkflowScheduler() *WorkflowScheduler {
	return &WorkflowScheduler{
		cronSched: cron.New(),
		entries:   make(map[string]cron.EntryID),
	}
}

// Start begins firing scheduled triggers.
func (s *WorkflowScheduler) Start() { s.cronSched.Start() }

// Stop halts the scheduler and waits for any in-flight trigger to finish.
func (s *WorkflowScheduler) Stop() { <-s.cronSched.Stop().Done() }

// ScheduleWorkflow arranges for sf to execute the named workflow on
// cronExpr, using trigger as the synthetic event passed to Execute.
func (s *WorkflowScheduler) ScheduleWorkflow(name, cronExpr string, sf *StackFlow, workflowName string, trigger Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.entries[name]; exists {
		s.cronSched.Remove(id)
		delete(s.entries, name)
	}

	sf.workflowsMu.RLock()
	root, ok := sf.workflows[workflowName]
	sf.workflowsMu.RUnlock()
	if !ok {
		return fmt.Errorf("bus: scheduler: workflow %q not registered on stackflow %q", workflowName, sf.name)
	}

	id, err := s.cronSched.AddFunc(cronExpr, func() { root.Execute(trigger) })
	if err != nil {
		return fmt.Errorf("bus: scheduler: invalid cron expression %q: %w", cronExpr, err)
	}
	s.entries[name] = id
	return nil
}

// Cancel removes a previously scheduled entry by name.
func (s *WorkflowScheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cronSched.Remove(id)
		delete(s.entries, name)
	}
}
