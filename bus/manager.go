// File: bus/manager.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ChannelManager is the topic -> channel-name routing table of spec
// §3/§4.M.

package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ChannelManager owns a registry of named Channels and a topic routing
// table over them.
type ChannelManager struct {
	log *zap.Logger

	mu       sync.RWMutex
	channels map[string]*Channel
	routes   map[string][]string // topic -> ordered, deduplicated channel names

	// messageTTL, if nonzero, bounds how long a routed or broadcast
	// message may sit before a channel accepts it (SPEC_FULL.md
	// "Supplemented features"). Zero disables the filter stage.
	messageTTL time.Duration

	routingMiss uint64
	routeErrors uint64
	delivered   uint64
}

// NewChannelManager constructs an empty manager.
func NewChannelManager(log *zap.Logger) *ChannelManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChannelManager{
		log:      log,
		channels: make(map[string]*Channel),
		routes:   make(map[string][]string),
	}
}

// SetMessageTTL installs the optional filter stage that drops a message
// ahead of the topic-routing table once it has sat longer than ttl. ttl<=0
// disables the stage (the default).
func (m *ChannelManager) SetMessageTTL(ttl time.Duration) {
	m.mu.Lock()
	m.messageTTL = ttl
	m.mu.Unlock()
}

// stampTTL sets msg.ExpiresAt from the manager's configured TTL, if any.
func (m *ChannelManager) stampTTL(msg *ChannelMessage) {
	m.mu.RLock()
	ttl := m.messageTTL
	m.mu.RUnlock()
	if ttl > 0 {
		msg.ExpiresAt = msg.Timestamp.Add(ttl)
	}
}

// Register adds or replaces a named channel.
func (m *ChannelManager) Register(c *Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[c.Name] = c
}

// Unregister removes a channel by name. Existing routes referencing it
// are left in place and will simply fail to resolve at send time (spec
// §4.M "removing routes is tolerant of absence" applies symmetrically to
// a channel vanishing out from under a route).
func (m *ChannelManager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, name)
}

// AddRoute appends channelName to topic's ordered list, collapsing
// duplicates to a single edge per (topic, channel). The channel need not
// already be registered — spec §4.M: "adding a route for an unregistered
// channel name is accepted but produces a routing error at send time."
func (m *ChannelManager) AddRoute(topic, channelName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.routes[topic] {
		if existing == channelName {
			return
		}
	}
	m.routes[topic] = append(m.routes[topic], channelName)
}

// RemoveRoute removes channelName from topic's list, if present.
func (m *ChannelManager) RemoveRoute(topic, channelName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.routes[topic]
	filtered := list[:0]
	for _, name := range list {
		if name != channelName {
			filtered = append(filtered, name)
		}
	}
	m.routes[topic] = filtered
}

// RouteMessage resolves topic to its channel-name list and sends payload
// to each in order. An empty or missing route bumps RoutingMiss and
// drops the message. A route naming an unregistered channel bumps the
// route-error counter but does not stop delivery to the remaining
// channels in the list.
func (m *ChannelManager) RouteMessage(topic string, payload []byte) int {
	m.mu.RLock()
	names := append([]string(nil), m.routes[topic]...)
	m.mu.RUnlock()

	if len(names) == 0 {
		m.bump(&m.routingMiss)
		return 0
	}

	msg := NewChannelMessage(topic, payload)
	m.stampTTL(&msg)

	expiry := NotExpiredFilter(time.Now)
	delivered := 0
	for _, name := range names {
		if !expiry(msg) {
			m.bump(&m.routeErrors)
			m.log.Debug("channelmanager: route dropped expired message",
				zap.String("topic", topic), zap.String("channel", name))
			continue
		}
		m.mu.RLock()
		ch, ok := m.channels[name]
		m.mu.RUnlock()
		if !ok {
			m.bump(&m.routeErrors)
			m.log.Warn("channelmanager: route references unregistered channel",
				zap.String("topic", topic), zap.String("channel", name))
			continue
		}
		if err := m.sendWithRetry(ch, msg); err != nil {
			m.bump(&m.routeErrors)
			continue
		}
		delivered++
	}
	m.bumpBy(&m.delivered, uint64(delivered))
	return delivered
}

// sendWithRetry retries a transient send failure with exponential
// backoff (SPEC_FULL.md "Supplemented features" — the distilled spec
// names no retry policy for routing failures).
func (m *ChannelManager) sendWithRetry(ch *Channel, msg ChannelMessage) error {
	_, err := backoff.Retry(context.Background(),
		func() (struct{}, error) { return struct{}{}, ch.Send(msg) },
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(routingRetryDeadline),
		backoff.WithMaxTries(3))
	if err != nil {
		return fmt.Errorf("bus: route to %q failed after retries: %w", ch.Name, err)
	}
	return nil
}

// routingRetryDeadline bounds how long RouteMessage will retry a single
// channel's transient send failure.
const routingRetryDeadline = 200 * time.Millisecond

// Broadcast ignores routing and sends payload to every registered active
// channel concurrently, joining on a barrier before returning the count of
// successful deliveries.
func (m *ChannelManager) Broadcast(topic string, payload []byte) int {
	m.mu.RLock()
	targets := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		if ch.Active() {
			targets = append(targets, ch)
		}
	}
	m.mu.RUnlock()

	msg := NewChannelMessage(topic, payload)
	m.stampTTL(&msg)
	if !NotExpiredFilter(time.Now)(msg) {
		return 0
	}

	var delivered int64
	p := pool.New()
	for _, target := range targets {
		ch := target
		p.Go(func() {
			if err := ch.Send(msg); err == nil {
				m.bumpBy(&m.delivered, 1)
				atomic.AddInt64(&delivered, 1)
			} else {
				m.bump(&m.routeErrors)
			}
		})
	}
	p.Wait()
	return int(delivered)
}

func (m *ChannelManager) bump(counter *uint64) {
	m.mu.Lock()
	*counter++
	m.mu.Unlock()
}

func (m *ChannelManager) bumpBy(counter *uint64, n uint64) {
	m.mu.Lock()
	*counter += n
	m.mu.Unlock()
}

// RoutingMiss returns the cumulative count of RouteMessage calls whose
// topic resolved to no channels.
func (m *ChannelManager) RoutingMiss() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routingMiss
}

// RouteErrors returns the cumulative count of per-channel send failures
// (unregistered target or transport error) encountered during routing.
func (m *ChannelManager) RouteErrors() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routeErrors
}

// Delivered returns the cumulative count of successful per-channel
// deliveries across RouteMessage and Broadcast.
func (m *ChannelManager) Delivered() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delivered
}
