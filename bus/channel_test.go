package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelRecentMessagesOrderAndEviction(t *testing.T) {
	c, _ := newTestChannel("hist")

	for i := 0; i < historyCapacity+5; i++ {
		require.NoError(t, c.Send(NewChannelMessage("t", []byte{byte(i)})))
	}

	recent := c.RecentMessages()
	require.Len(t, recent, historyCapacity)
	require.Equal(t, byte(5), recent[0].Payload[0])
	require.Equal(t, byte(historyCapacity+4), recent[len(recent)-1].Payload[0])
}

func TestChannelRecentMessagesSkipsRejected(t *testing.T) {
	c, _ := newTestChannel("hist2")
	c.SetActive(false)
	require.Error(t, c.Send(NewChannelMessage("t", []byte("x"))))
	require.Empty(t, c.RecentMessages())
}
