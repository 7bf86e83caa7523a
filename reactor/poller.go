// File: reactor/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poller is the fd-event demultiplexer contract described in spec §4.C.
// It is not thread-safe and is owned by exactly one EventLoop.

package reactor

// Poller demultiplexes readiness events across registered Channels.
type Poller interface {
	// Update registers or modifies interest for ch with the kernel.
	Update(ch *Channel) error

	// Remove unregisters ch from the kernel. Safe to call even if ch was
	// never added (Index() == indexNew).
	Remove(ch *Channel) error

	// Poll blocks up to timeoutMs (a negative value blocks indefinitely)
	// and appends ready Channels, with SetRevents already called, to dst.
	// Returns the (possibly grown) slice.
	Poll(timeoutMs int, dst []*Channel) ([]*Channel, error)

	// Close releases the poller's kernel resources.
	Close() error
}
