package netsrv

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-ws/addr"
	"github.com/momentics/hioload-ws/reactor"
	"github.com/stretchr/testify/require"
)

func startTestLoop(t *testing.T) *reactor.EventLoop {
	t.Helper()
	ready := make(chan *reactor.EventLoop, 1)
	errCh := make(chan error, 1)
	go func() {
		el, err := reactor.NewEventLoop()
		if err != nil {
			errCh <- err
			return
		}
		ready <- el
		el.Run()
	}()

	select {
	case el := <-ready:
		t.Cleanup(func() {
			el.Quit()
			time.Sleep(20 * time.Millisecond)
			el.Close()
		})
		return el
	case err := <-errCh:
		t.Fatalf("NewEventLoop: %v", err)
		return nil
	case <-time.After(2 * time.Second):
		t.Fatal("timed out starting loop")
		return nil
	}
}

func TestEchoServerRoundTrip(t *testing.T) {
	loop := startTestLoop(t)

	bindAddr, err := addr.FromString("127.0.0.1:0")
	require.NoError(t, err)

	srv, err := NewTcpServer(loop, "echo", bindAddr)
	require.NoError(t, err)

	received := make(chan []byte, 1)
	srv.SetMessageCallback(func(c *TcpConnection, buf *reactor.Buffer) {
		data := buf.RetrieveAsBytes()
		c.Send(data)
		received <- data
	})

	srv.Start(16)

	var serverAddr addr.Address
	require.Eventually(t, func() bool {
		serverAddr, err = srv.LocalAddr()
		return err == nil && serverAddr.Port() != 0
	}, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", serverAddr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case got := <-received:
		require.Equal(t, "hello", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive message")
	}

	buf := make([]byte, 5)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))

	require.Eventually(t, func() bool { return srv.TotalConnections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSendToConnectionAndBroadcast(t *testing.T) {
	loop := startTestLoop(t)

	bindAddr, err := addr.FromString("127.0.0.1:0")
	require.NoError(t, err)

	srv, err := NewTcpServer(loop, "bc", bindAddr)
	require.NoError(t, err)
	srv.Start(16)

	var serverAddr addr.Address
	require.Eventually(t, func() bool {
		serverAddr, err = srv.LocalAddr()
		return err == nil && serverAddr.Port() != 0
	}, 2*time.Second, 10*time.Millisecond)

	c1, err := net.Dial("tcp", serverAddr.String())
	require.NoError(t, err)
	defer c1.Close()

	require.Eventually(t, func() bool { return srv.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	srv.BroadcastMessage([]byte("ping"))

	require.NoError(t, c1.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4)
	_, err = c1.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))

	srv.SendToConnection("bc#1", []byte("pong"))

	require.NoError(t, c1.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = c1.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf))
}
