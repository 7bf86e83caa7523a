// File: control/counters.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RuntimeCounters is the sole operational-observability surface (spec
// §6): events processed, workflows executed, errors; bytes sent/
// received, connections created/closed, loop iterations, event
// dispatches. It is a thin, named view over MetricsRegistry so the
// fixed counter set gets typed accessors while still sharing the
// registry's dynamic snapshot/export machinery with the rest of this
// package.

package control

import "sync/atomic"

// counter names as stored in the underlying MetricsRegistry.
const (
	keyEventsProcessed    = "bus.events_processed"
	keyWorkflowsExecuted  = "bus.workflows_executed"
	keyBusErrors          = "bus.errors"
	keyBytesSent          = "netsrv.bytes_sent"
	keyBytesReceived      = "netsrv.bytes_received"
	keyConnectionsCreated = "netsrv.connections_created"
	keyConnectionsClosed  = "netsrv.connections_closed"
	keyLoopIterations     = "reactor.loop_iterations"
	keyEventDispatches    = "reactor.event_dispatches"
)

// RuntimeCounters exposes the fixed §6 counter set as atomic int64
// fields, publishing each update into an owned MetricsRegistry so the
// values also show up in DumpState/GetSnapshot-based introspection.
type RuntimeCounters struct {
	registry *MetricsRegistry

	eventsProcessed    int64
	workflowsExecuted  int64
	errors             int64
	bytesSent          int64
	bytesReceived      int64
	connectionsCreated int64
	connectionsClosed  int64
	loopIterations     int64
	eventDispatches    int64
}

// NewRuntimeCounters constructs a zeroed counter set backed by registry.
// A nil registry is replaced with a fresh private one.
func NewRuntimeCounters(registry *MetricsRegistry) *RuntimeCounters {
	if registry == nil {
		registry = NewMetricsRegistry()
	}
	return &RuntimeCounters{registry: registry}
}

func (rc *RuntimeCounters) publish(key string, v int64) {
	rc.registry.Set(key, v)
}

// AddEventsProcessed increments the bus events-processed counter by n.
func (rc *RuntimeCounters) AddEventsProcessed(n int64) {
	rc.publish(keyEventsProcessed, atomic.AddInt64(&rc.eventsProcessed, n))
}

// AddWorkflowsExecuted increments the workflows-executed counter by n.
func (rc *RuntimeCounters) AddWorkflowsExecuted(n int64) {
	rc.publish(keyWorkflowsExecuted, atomic.AddInt64(&rc.workflowsExecuted, n))
}

// AddErrors increments the bus error counter by n.
func (rc *RuntimeCounters) AddErrors(n int64) {
	rc.publish(keyBusErrors, atomic.AddInt64(&rc.errors, n))
}

// AddBytesSent increments the cumulative bytes-sent counter by n.
func (rc *RuntimeCounters) AddBytesSent(n int64) {
	rc.publish(keyBytesSent, atomic.AddInt64(&rc.bytesSent, n))
}

// AddBytesReceived increments the cumulative bytes-received counter by n.
func (rc *RuntimeCounters) AddBytesReceived(n int64) {
	rc.publish(keyBytesReceived, atomic.AddInt64(&rc.bytesReceived, n))
}

// AddConnectionsCreated increments the connections-created counter by n.
func (rc *RuntimeCounters) AddConnectionsCreated(n int64) {
	rc.publish(keyConnectionsCreated, atomic.AddInt64(&rc.connectionsCreated, n))
}

// AddConnectionsClosed increments the connections-closed counter by n.
func (rc *RuntimeCounters) AddConnectionsClosed(n int64) {
	rc.publish(keyConnectionsClosed, atomic.AddInt64(&rc.connectionsClosed, n))
}

// SetLoopIterations records the reactor's current iteration count.
func (rc *RuntimeCounters) SetLoopIterations(n int64) {
	atomic.StoreInt64(&rc.loopIterations, n)
	rc.publish(keyLoopIterations, n)
}

// SetEventDispatches records the reactor's current dispatch count.
func (rc *RuntimeCounters) SetEventDispatches(n int64) {
	atomic.StoreInt64(&rc.eventDispatches, n)
	rc.publish(keyEventDispatches, n)
}

// Snapshot returns the full §6 counter set as a plain struct, safe to
// serialize or compare in tests.
type CounterSnapshot struct {
	EventsProcessed    int64
	WorkflowsExecuted  int64
	Errors             int64
	BytesSent          int64
	BytesReceived      int64
	ConnectionsCreated int64
	ConnectionsClosed  int64
	LoopIterations     int64
	EventDispatches    int64
}

// Snapshot reads every counter atomically (each field independently;
// the set as a whole is not a single consistent point-in-time view).
func (rc *RuntimeCounters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		EventsProcessed:    atomic.LoadInt64(&rc.eventsProcessed),
		WorkflowsExecuted:  atomic.LoadInt64(&rc.workflowsExecuted),
		Errors:             atomic.LoadInt64(&rc.errors),
		BytesSent:          atomic.LoadInt64(&rc.bytesSent),
		BytesReceived:      atomic.LoadInt64(&rc.bytesReceived),
		ConnectionsCreated: atomic.LoadInt64(&rc.connectionsCreated),
		ConnectionsClosed:  atomic.LoadInt64(&rc.connectionsClosed),
		LoopIterations:     atomic.LoadInt64(&rc.loopIterations),
		EventDispatches:    atomic.LoadInt64(&rc.eventDispatches),
	}
}
