// File: bus/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel (bus) is a named transport endpoint with a composable filter
// chain (spec §3/§4.M). The concrete brokered transport (e.g. a ZeroMQ
// backend) is explicitly out of scope (spec §1 non-goals): Channel here
// is the abstract capability the router dispatches through, with an
// in-memory Transport as the one concrete implementation this repo
// supplies.

package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/hioload-ws/pool"
)

// historyCapacity bounds the ring of recently-sent messages each Channel
// retains for inspection (replay/debugging visibility into a channel's
// recent traffic without a full message broker).
const historyCapacity = 64

// ChannelType enumerates the bus channel kinds spec §3 names.
type ChannelType int

const (
	PointToPoint ChannelType = iota
	PublishSubscribe
	RequestResponse
	Broadcast
	Multicast
)

// ChannelMessage is one unit of transport over a Channel.
type ChannelMessage struct {
	ID        string
	Topic     string
	Payload   []byte
	Timestamp time.Time
	// ExpiresAt, if nonzero, marks a message TTL (SPEC_FULL.md
	// "Supplemented features"): a filter stage drops messages whose TTL
	// has elapsed before the remaining filter chain runs.
	ExpiresAt time.Time
}

// NewChannelMessage constructs a message with a fresh id and timestamp.
func NewChannelMessage(topic string, payload []byte) ChannelMessage {
	return ChannelMessage{ID: uuid.NewString(), Topic: topic, Payload: payload, Timestamp: time.Now()}
}

// Filter is a composable predicate over a message; all filters in a
// Channel's chain must accept for delivery to proceed.
type Filter func(ChannelMessage) bool

// NotExpiredFilter drops messages whose ExpiresAt has passed. Zero
// ExpiresAt means "never expires".
func NotExpiredFilter(now func() time.Time) Filter {
	return func(m ChannelMessage) bool {
		if m.ExpiresAt.IsZero() {
			return true
		}
		return now().Before(m.ExpiresAt)
	}
}

// Transport is the concrete delivery mechanism a Channel sends through
// once its filter chain accepts a message.
type Transport interface {
	Deliver(ChannelMessage) error
}

// MessageCallback fires once per message this channel receives from its
// Transport.
type MessageCallback func(ChannelMessage)

// ErrorCallback fires when Send's filter chain rejects a message or the
// Transport returns an error.
type ErrorCallback func(ChannelMessage, error)

// Channel is a named bus endpoint.
type Channel struct {
	Name      string
	Type      ChannelType
	transport Transport

	active int32 // atomic bool

	filters []Filter

	messageCB MessageCallback
	errorCB   ErrorCallback

	subscriptions map[string]bool

	sent     uint64
	rejected uint64

	historyMu sync.Mutex
	history   *pool.RingBuffer[ChannelMessage]
}

// NewChannel constructs an active Channel of the given type, delivering
// through transport.
func NewChannel(name string, typ ChannelType, transport Transport) *Channel {
	c := &Channel{
		Name:          name,
		Type:          typ,
		transport:     transport,
		subscriptions: make(map[string]bool),
		history:       pool.NewRingBuffer[ChannelMessage](historyCapacity),
	}
	atomic.StoreInt32(&c.active, 1)
	return c
}

// AddFilter appends f to the filter chain.
func (c *Channel) AddFilter(f Filter) { c.filters = append(c.filters, f) }

// SetMessageCallback registers the inbound-message callback.
func (c *Channel) SetMessageCallback(cb MessageCallback) { c.messageCB = cb }

// SetErrorCallback registers the send-rejection/transport-error callback.
func (c *Channel) SetErrorCallback(cb ErrorCallback) { c.errorCB = cb }

// Active reports whether this channel currently accepts sends.
func (c *Channel) Active() bool { return atomic.LoadInt32(&c.active) == 1 }

// SetActive toggles the channel's active flag.
func (c *Channel) SetActive(on bool) {
	if on {
		atomic.StoreInt32(&c.active, 1)
	} else {
		atomic.StoreInt32(&c.active, 0)
	}
}

// Send runs msg through the full filter chain; if every filter accepts,
// it is handed to the Transport. A send rejected by a filter or failed by
// the Transport fires the error callback, never the message callback; a
// send on an inactive channel returns an error without firing either.
func (c *Channel) Send(msg ChannelMessage) error {
	if !c.Active() {
		atomic.AddUint64(&c.rejected, 1)
		return errChannelInactive(c.Name)
	}
	for _, f := range c.filters {
		if !f(msg) {
			atomic.AddUint64(&c.rejected, 1)
			if c.errorCB != nil {
				c.errorCB(msg, errFilterRejected)
			}
			return errFilterRejected
		}
	}
	if err := c.transport.Deliver(msg); err != nil {
		atomic.AddUint64(&c.rejected, 1)
		if c.errorCB != nil {
			c.errorCB(msg, err)
		}
		return err
	}
	atomic.AddUint64(&c.sent, 1)
	c.recordHistory(msg)
	return nil
}

// recordHistory pushes msg into the bounded recent-traffic ring, evicting
// the oldest entry when full.
func (c *Channel) recordHistory(msg ChannelMessage) {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	if c.history.Len() == c.history.Cap() {
		c.history.Dequeue()
	}
	c.history.Enqueue(msg)
}

// RecentMessages returns up to historyCapacity of the most recently sent
// messages, oldest first.
func (c *Channel) RecentMessages() []ChannelMessage {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	out := make([]ChannelMessage, 0, c.history.Len())
	for {
		m, ok := c.history.Dequeue()
		if !ok {
			break
		}
		out = append(out, m)
	}
	for _, m := range out {
		c.history.Enqueue(m)
	}
	return out
}

// notifyMessageReceived is invoked by the Transport when a message
// arrives. Per spec §4.M, a dedicated-thread transport (the ZeroMQ-style
// backend) invokes this on its own receive thread — callers must be
// prepared for that, just as the distilled spec requires.
func (c *Channel) notifyMessageReceived(msg ChannelMessage) {
	if c.messageCB != nil {
		c.messageCB(msg)
	}
}

// Subscribe is only meaningful for PublishSubscribe and Multicast
// channels (spec §4.M); other kinds return false. Whether Multicast
// should permit subscribe was left implementation-defined by the
// distilled spec — decided here as "yes", since a Multicast channel's
// whole purpose is group membership by topic (recorded as an Open
// Question decision in the design ledger).
func (c *Channel) Subscribe(topic string) bool {
	if c.Type != PublishSubscribe && c.Type != Multicast {
		return false
	}
	c.subscriptions[topic] = true
	return true
}

// Unsubscribe mirrors Subscribe's kind restriction.
func (c *Channel) Unsubscribe(topic string) bool {
	if c.Type != PublishSubscribe && c.Type != Multicast {
		return false
	}
	delete(c.subscriptions, topic)
	return true
}

// Sent returns the cumulative count of messages accepted by the filter
// chain and handed to the transport.
func (c *Channel) Sent() uint64 { return atomic.LoadUint64(&c.sent) }

// Rejected returns the cumulative count of messages dropped by the
// filter chain, an inactive channel, or a transport error.
func (c *Channel) Rejected() uint64 { return atomic.LoadUint64(&c.rejected) }
