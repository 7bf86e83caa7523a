// File: bus/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// InprocTransport is the one concrete Transport this repo supplies: an
// in-process, dedicated-goroutine delivery loop. It stands in for the
// out-of-scope brokered backend (ZeroMQ et al., spec §1 non-goals) while
// preserving the behavior user code must tolerate: delivery happens on a
// goroutine the caller does not control.

package bus

import (
	"errors"
	"sync"
)

// InprocTransport delivers messages to its owning Channel on a dedicated
// goroutine via a buffered channel, mirroring spec §4.M's description of
// the ZeroMQ-backed channel's receive-thread behavior.
type InprocTransport struct {
	owner   *Channel
	inbox   chan ChannelMessage
	closeCh chan struct{}
	once    sync.Once
}

// NewInprocTransport constructs a transport bound to owner with the
// given inbox buffer size.
func NewInprocTransport(owner *Channel, bufSize int) *InprocTransport {
	if bufSize <= 0 {
		bufSize = 64
	}
	t := &InprocTransport{
		owner:   owner,
		inbox:   make(chan ChannelMessage, bufSize),
		closeCh: make(chan struct{}),
	}
	go t.receiveLoop()
	return t
}

// SetOwner binds the transport to its owning Channel. Needed because a
// Channel's constructor requires a Transport while InprocTransport's
// receive loop requires a Channel to notify — callers construct the
// transport first, then the channel, then call SetOwner.
func (t *InprocTransport) SetOwner(owner *Channel) { t.owner = owner }

// Deliver enqueues msg for the receive loop. Implements Transport.
func (t *InprocTransport) Deliver(msg ChannelMessage) error {
	select {
	case t.inbox <- msg:
		return nil
	case <-t.closeCh:
		return errTransportClosed
	}
}

func (t *InprocTransport) receiveLoop() {
	for {
		select {
		case msg := <-t.inbox:
			t.owner.notifyMessageReceived(msg)
		case <-t.closeCh:
			return
		}
	}
}

// Close stops the receive loop. Idempotent.
func (t *InprocTransport) Close() {
	t.once.Do(func() { close(t.closeCh) })
}

var errTransportClosed = errors.New("bus: transport closed")
