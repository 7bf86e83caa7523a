// File: reactor/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel is the per-fd dispatch record described in spec §3/§4.D: an
// interest mask, a readiness mask filled in by the owning EventLoop's
// Poller, and four optional callbacks. A Channel is only ever mutated by
// its owner loop's thread.

package reactor

// Flag is a bitmask of readiness/interest conditions.
type Flag uint32

const (
	FlagNone  Flag = 0
	FlagRead  Flag = 1 << iota
	FlagWrite
	FlagClose
	FlagError
)

// pollerIndex is opaque bookkeeping the Poller uses to tell a fresh
// Channel from one already registered with the kernel.
type pollerIndex int

const (
	indexNew pollerIndex = iota - 1
	indexAdded
	indexDeleted
)

// Channel binds one fd to a loop, an interest mask, and callbacks.
type Channel struct {
	loop *EventLoop
	fd   int

	events  Flag
	revents Flag
	index   pollerIndex

	readCallback  func()
	writeCallback func()
	closeCallback func()
	errorCallback func()

	eventHandling bool // re-entrancy guard while HandleEvent runs
	addedToLoop   bool
}

// NewChannel creates a Channel for fd, owned by loop. It is not yet
// registered with the Poller until an Enable* call triggers an update.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, index: indexNew}
}

// FD returns the channel's file descriptor.
func (c *Channel) FD() int { return c.fd }

// SetReadCallback registers the read-readiness callback.
func (c *Channel) SetReadCallback(fn func()) { c.readCallback = fn }

// SetWriteCallback registers the write-readiness callback.
func (c *Channel) SetWriteCallback(fn func()) { c.writeCallback = fn }

// SetCloseCallback registers the peer-closed callback.
func (c *Channel) SetCloseCallback(fn func()) { c.closeCallback = fn }

// SetErrorCallback registers the error callback.
func (c *Channel) SetErrorCallback(fn func()) { c.errorCallback = fn }

// Events returns the current interest mask.
func (c *Channel) Events() Flag { return c.events }

// SetRevents is called by the Poller to record which conditions are
// ready for this Channel after a Poll call.
func (c *Channel) SetRevents(r Flag) { c.revents = r }

// Index returns the Poller's opaque bookkeeping value.
func (c *Channel) Index() int { return int(c.index) }

// SetIndex sets the Poller's opaque bookkeeping value.
func (c *Channel) SetIndex(i int) { c.index = pollerIndex(i) }

// IsNone reports whether the channel has no interest registered.
func (c *Channel) IsNone() bool { return c.events == FlagNone }

// IsReading reports whether read interest is enabled.
func (c *Channel) IsReading() bool { return c.events&FlagRead != 0 }

// IsWriting reports whether write interest is enabled.
func (c *Channel) IsWriting() bool { return c.events&FlagWrite != 0 }

// EnableReading enables read interest and pushes the change to the Poller.
func (c *Channel) EnableReading() {
	c.events |= FlagRead
	c.update()
}

// DisableReading disables read interest.
func (c *Channel) DisableReading() {
	c.events &^= FlagRead
	c.update()
}

// EnableWriting enables write interest.
func (c *Channel) EnableWriting() {
	c.events |= FlagWrite
	c.update()
}

// DisableWriting disables write interest.
func (c *Channel) DisableWriting() {
	c.events &^= FlagWrite
	c.update()
}

// DisableAll clears all interest.
func (c *Channel) DisableAll() {
	c.events = FlagNone
	c.update()
}

func (c *Channel) update() {
	c.addedToLoop = true
	c.loop.updateChannel(c)
}

// Remove takes the channel out of its loop's Poller. Must be called from
// the loop thread, and only once handle_event is not currently running
// for this channel (enforced by the eventHandling guard).
func (c *Channel) Remove() {
	if c.eventHandling {
		panic("reactor: Channel.Remove called from within HandleEvent")
	}
	if c.addedToLoop {
		c.loop.removeChannel(c)
		c.addedToLoop = false
	}
}

// HandleEvent dispatches callbacks for the last-recorded readiness mask,
// in the fixed order Close, Error, Read, Write (spec §4.D). A re-entrancy
// guard prevents the channel from being torn down mid-dispatch.
func (c *Channel) HandleEvent() {
	c.eventHandling = true
	defer func() { c.eventHandling = false }()

	rev := c.revents
	if rev&FlagClose != 0 && c.closeCallback != nil {
		c.closeCallback()
	}
	if rev&FlagError != 0 && c.errorCallback != nil {
		c.errorCallback()
	}
	if rev&FlagRead != 0 && c.readCallback != nil {
		c.readCallback()
	}
	if rev&FlagWrite != 0 && c.writeCallback != nil {
		c.writeCallback()
	}
}
