// File: bus/event.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package bus implements the typed event/workflow layer of spec §3/§4.J-M:
// Event, EventHandler, StackFlow, WorkflowStep, and the Channel/
// ChannelManager topic router.

package bus

import (
	"time"

	"github.com/google/uuid"
)

// Tag enumerates the built-in event kinds (spec §3).
type Tag string

const (
	TagSystemStart          Tag = "SystemStart"
	TagSystemStop           Tag = "SystemStop"
	TagServiceRegister      Tag = "ServiceRegister"
	TagServiceUnregister    Tag = "ServiceUnregister"
	TagMessageReceived      Tag = "MessageReceived"
	TagConnectionEstablished Tag = "ConnectionEstablished"
	TagConnectionLost       Tag = "ConnectionLost"
	TagErrorOccurred        Tag = "ErrorOccurred"
	TagCustom               Tag = "Custom"
)

// Event is the bus's value type: a tagged kind, source/target, a string
// key/value map, a monotonic timestamp, and a priority where larger means
// more urgent.
type Event struct {
	ID        string
	Tag       Tag
	Source    string
	Target    string
	Data      map[string]string
	Timestamp time.Time
	Priority  uint32
}

// NewEvent constructs an Event with a fresh id and the current time.
func NewEvent(tag Tag, source, target string) Event {
	return Event{
		ID:        uuid.NewString(),
		Tag:       tag,
		Source:    source,
		Target:    target,
		Data:      make(map[string]string),
		Timestamp: time.Now(),
	}
}

// WithData sets a single key/value pair and returns the event for
// chaining.
func (e Event) WithData(key, value string) Event {
	if e.Data == nil {
		e.Data = make(map[string]string)
	}
	e.Data[key] = value
	return e
}

// WithPriority sets the event's priority and returns it for chaining.
func (e Event) WithPriority(p uint32) Event {
	e.Priority = p
	return e
}
