// File: bus/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bus

// EventHandler is the capability set spec §3 requires of anything
// registered with a StackFlow: handle an event, report a stable name, and
// report which tags it wants to receive.
type EventHandler interface {
	Handle(Event) bool
	Name() string
	SupportedTags() []Tag
}

// HandlerFunc adapts a plain function to EventHandler, for the
// inline-closure handler variant spec §3 calls out alongside
// user-defined handler types.
type HandlerFunc struct {
	FuncName string
	Tags     []Tag
	Fn       func(Event) bool
}

// Handle invokes the wrapped function.
func (h HandlerFunc) Handle(e Event) bool { return h.Fn(e) }

// Name returns the handler's registered name.
func (h HandlerFunc) Name() string { return h.FuncName }

// SupportedTags returns the tags this handler was registered for.
func (h HandlerFunc) SupportedTags() []Tag { return h.Tags }
