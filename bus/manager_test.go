package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	owner    *Channel
	received []ChannelMessage
}

func (r *recordingTransport) Deliver(m ChannelMessage) error {
	r.received = append(r.received, m)
	return nil
}

func newTestChannel(name string) (*Channel, *recordingTransport) {
	rt := &recordingTransport{}
	c := NewChannel(name, PointToPoint, rt)
	rt.owner = c
	return c, rt
}

func TestRouteMessageDeliversToAllListedChannels(t *testing.T) {
	m := NewChannelManager(nil)
	c1, t1 := newTestChannel("c1")
	c2, t2 := newTestChannel("c2")
	c3, t3 := newTestChannel("c3")
	m.Register(c1)
	m.Register(c2)
	m.Register(c3)
	m.AddRoute("topic", "c1")
	m.AddRoute("topic", "c2")

	delivered := m.RouteMessage("topic", []byte("payload"))

	require.Equal(t, 2, delivered)
	require.Len(t, t1.received, 1)
	require.Len(t, t2.received, 1)
	require.Empty(t, t3.received)
}

func TestRouteMessageMissIncrementsCounter(t *testing.T) {
	m := NewChannelManager(nil)
	delivered := m.RouteMessage("nowhere", []byte("x"))
	require.Zero(t, delivered)
	require.EqualValues(t, 1, m.RoutingMiss())
}

func TestAddRouteCollapsesDuplicates(t *testing.T) {
	m := NewChannelManager(nil)
	c1, t1 := newTestChannel("c1")
	m.Register(c1)
	m.AddRoute("topic", "c1")
	m.AddRoute("topic", "c1")

	m.RouteMessage("topic", []byte("x"))
	require.Len(t, t1.received, 1)
}

func TestBroadcastIgnoresRouting(t *testing.T) {
	m := NewChannelManager(nil)
	c1, t1 := newTestChannel("c1")
	c2, t2 := newTestChannel("c2")
	m.Register(c1)
	m.Register(c2)

	delivered := m.Broadcast("ignored-topic", []byte("x"))
	require.Equal(t, 2, delivered)
	require.Len(t, t1.received, 1)
	require.Len(t, t2.received, 1)
}

func TestRouteMessageDropsExpiredMessageUnderTTL(t *testing.T) {
	m := NewChannelManager(nil)
	c1, t1 := newTestChannel("c1")
	m.Register(c1)
	m.AddRoute("topic", "c1")
	m.SetMessageTTL(1 * time.Nanosecond) // already expired by the time it's checked

	delivered := m.RouteMessage("topic", []byte("x"))
	require.Zero(t, delivered)
	require.Empty(t, t1.received)
	require.EqualValues(t, 1, m.RouteErrors())
}

func TestBroadcastConcurrentFanOutDeliversToAllActive(t *testing.T) {
	m := NewChannelManager(nil)
	c1, t1 := newTestChannel("c1")
	c2, t2 := newTestChannel("c2")
	c3, t3 := newTestChannel("c3")
	c3.SetActive(false)
	m.Register(c1)
	m.Register(c2)
	m.Register(c3)

	delivered := m.Broadcast("topic", []byte("x"))
	require.Equal(t, 2, delivered)
	require.Len(t, t1.received, 1)
	require.Len(t, t2.received, 1)
	require.Empty(t, t3.received)
}

func TestChannelFilterChainRejectsMessage(t *testing.T) {
	c, rt := newTestChannel("c1")
	c.AddFilter(func(ChannelMessage) bool { return false })

	err := c.Send(NewChannelMessage("t", []byte("x")))
	require.Error(t, err)
	require.Empty(t, rt.received)
	require.EqualValues(t, 1, c.Rejected())
}

func TestChannelSubscribeOnlyForPubSubAndMulticast(t *testing.T) {
	p2p, _ := newTestChannel("p2p")
	require.False(t, p2p.Subscribe("topic"))

	pubsub := NewChannel("pubsub", PublishSubscribe, &recordingTransport{})
	require.True(t, pubsub.Subscribe("topic"))

	multicast := NewChannel("multicast", Multicast, &recordingTransport{})
	require.True(t, multicast.Subscribe("topic"))
}
