// File: netsrv/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TcpConnection is the per-connection state machine of spec §3/§4.G,
// built atop a reactor.Channel, a sock.Socket, and two reactor.Buffers.

package netsrv

import (
	"errors"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/momentics/hioload-ws/addr"
	"github.com/momentics/hioload-ws/reactor"
	"github.com/momentics/hioload-ws/sock"
)

// ConnState enumerates the TcpConnection lifecycle (spec §3).
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnectionCallback fires when a connection becomes Connected, and again
// (conceptually, via CloseCallback) when it is torn down.
type ConnectionCallback func(*TcpConnection)

// MessageCallback fires once per handleRead drain with the accumulated
// input buffer; the callback is responsible for consuming (Retrieve-ing)
// whatever bytes it processed.
type MessageCallback func(*TcpConnection, *reactor.Buffer)

// CloseCallback fires exactly once, when the connection reaches
// Disconnected.
type CloseCallback func(*TcpConnection)

// WriteCompleteCallback fires when sent data has been fully written to the
// socket: right away when a direct write takes all of it, or once the
// output buffer has drained after backpressure.
type WriteCompleteCallback func(*TcpConnection)

// HighWaterMarkCallback fires when the output buffer grows past a
// configured threshold (optional backpressure signal, spec §4.G).
type HighWaterMarkCallback func(*TcpConnection, int)

// TcpConnection is a full-duplex TCP session owned by a single
// reactor.EventLoop.
type TcpConnection struct {
	loop *reactor.EventLoop
	name string

	socket  *sock.Socket
	channel *reactor.Channel

	inputBuf  *reactor.Buffer
	outputBuf *reactor.Buffer

	localAddr, peerAddr addr.Address

	state int32 // atomic ConnState

	connectionCB   ConnectionCallback
	messageCB      MessageCallback
	closeCB        CloseCallback
	writeCompleteCB WriteCompleteCallback
	highWaterMarkCB HighWaterMarkCallback
	highWaterMark   int

	connectTime time.Time

	bytesSent     int64
	bytesReceived int64
}

// NewTcpConnection constructs a connection over an already-accepted,
// non-blocking socket. The caller (normally TcpServer) is responsible for
// calling ConnectEstablished once it has finished wiring callbacks.
func NewTcpConnection(loop *reactor.EventLoop, name string, s *sock.Socket, local, peer addr.Address) *TcpConnection {
	c := &TcpConnection{
		loop:      loop,
		name:      name,
		socket:    s,
		inputBuf:  reactor.NewBuffer(),
		outputBuf: reactor.NewBuffer(),
		localAddr: local,
		peerAddr:  peer,
	}
	atomic.StoreInt32(&c.state, int32(StateConnecting))
	c.channel = reactor.NewChannel(loop, s.FD())
	c.channel.SetReadCallback(c.handleRead)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetCloseCallback(c.handleClose)
	c.channel.SetErrorCallback(c.handleError)
	return c
}

// Name returns the connection's stable identifier.
func (c *TcpConnection) Name() string { return c.name }

// LocalAddr returns the local endpoint.
func (c *TcpConnection) LocalAddr() addr.Address { return c.localAddr }

// PeerAddr returns the remote endpoint.
func (c *TcpConnection) PeerAddr() addr.Address { return c.peerAddr }

// State returns the current lifecycle state.
func (c *TcpConnection) State() ConnState { return ConnState(atomic.LoadInt32(&c.state)) }

// SetConnectionCallback registers the connected/established callback.
func (c *TcpConnection) SetConnectionCallback(cb ConnectionCallback) { c.connectionCB = cb }

// SetMessageCallback registers the inbound-data callback.
func (c *TcpConnection) SetMessageCallback(cb MessageCallback) { c.messageCB = cb }

// SetCloseCallback registers the teardown callback.
func (c *TcpConnection) SetCloseCallback(cb CloseCallback) { c.closeCB = cb }

// SetWriteCompleteCallback registers the output-drained callback.
func (c *TcpConnection) SetWriteCompleteCallback(cb WriteCompleteCallback) { c.writeCompleteCB = cb }

// SetHighWaterMarkCallback registers the backpressure callback, firing on
// each buffered send that leaves outputBuf.ReadableBytes() at or above mark.
func (c *TcpConnection) SetHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) {
	c.highWaterMarkCB = cb
	c.highWaterMark = mark
}

// BytesSent returns the cumulative bytes written to the peer.
func (c *TcpConnection) BytesSent() int64 { return atomic.LoadInt64(&c.bytesSent) }

// BytesReceived returns the cumulative bytes read from the peer.
func (c *TcpConnection) BytesReceived() int64 { return atomic.LoadInt64(&c.bytesReceived) }

// SetTCPNoDelay toggles Nagle's algorithm.
func (c *TcpConnection) SetTCPNoDelay(on bool) error { return c.socket.SetNoDelay(on) }

// SetKeepAlive toggles SO_KEEPALIVE. idleSeconds is accepted for parity
// with the richer keep-alive knob the original implementation exposed
// (SPEC_FULL.md "Supplemented features"); platforms without a per-socket
// idle-interval option simply ignore it.
func (c *TcpConnection) SetKeepAlive(on bool, idleSeconds int) error {
	if err := c.socket.SetKeepAlive(on); err != nil {
		return err
	}
	if on && idleSeconds > 0 {
		_ = syscall.SetsockoptInt(c.socket.FD(), syscall.IPPROTO_TCP, syscall.TCP_KEEPIDLE, idleSeconds)
	}
	return nil
}

// ConnectEstablished transitions Connecting -> Connected, enables
// reading, and fires the connection callback. Must run on the loop
// goroutine.
func (c *TcpConnection) ConnectEstablished() {
	c.loop.AssertInLoopGoroutine()
	if c.State() != StateConnecting {
		return
	}
	atomic.StoreInt32(&c.state, int32(StateConnected))
	c.connectTime = time.Now()
	c.channel.EnableReading()
	if c.connectionCB != nil {
		c.connectionCB(c)
	}
}

// connectDestroyed detaches the channel from the loop; scheduled after
// close so the TcpConnection object outlives the stack frame of its own
// close handler (spec §4.I, §9).
func (c *TcpConnection) connectDestroyed() {
	c.loop.AssertInLoopGoroutine()
	if c.State() == StateConnected {
		atomic.StoreInt32(&c.state, int32(StateDisconnected))
		c.channel.DisableAll()
	}
	c.channel.Remove()
	c.socket.Close()
}

func (c *TcpConnection) handleRead() {
	c.loop.AssertInLoopGoroutine()
	for {
		n, err := c.inputBuf.ReadFromFD(c.socket.FD())
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
				break
			}
			c.handleError()
			return
		}
		if n == 0 {
			c.handleClose()
			return
		}
		atomic.AddInt64(&c.bytesReceived, int64(n))
		if n < readBurstHint {
			break // likely drained the socket for this readiness round
		}
	}
	if c.inputBuf.ReadableBytes() > 0 && c.messageCB != nil {
		c.messageCB(c, c.inputBuf)
	}
}

// readBurstHint: a ReadFromFD() shorter than this suggests the socket is
// drained; used only to cut an extra syscall, never for correctness.
const readBurstHint = 65536

func (c *TcpConnection) handleWrite() {
	c.loop.AssertInLoopGoroutine()
	if !c.channel.IsWriting() {
		return
	}
	n, err := c.socket.Send(c.outputBuf.Peek())
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			return
		}
		c.handleError()
		return
	}
	c.outputBuf.Retrieve(n)
	atomic.AddInt64(&c.bytesSent, int64(n))
	if c.outputBuf.ReadableBytes() == 0 {
		c.channel.DisableWriting()
		if c.writeCompleteCB != nil {
			c.writeCompleteCB(c)
		}
		if c.State() == StateDisconnecting {
			c.shutdownWrite()
		}
	}
}

func (c *TcpConnection) handleClose() {
	c.loop.AssertInLoopGoroutine()
	if c.State() == StateDisconnected {
		return
	}
	atomic.StoreInt32(&c.state, int32(StateDisconnected))
	c.channel.DisableAll()
	if c.closeCB != nil {
		c.closeCB(c)
	}
	c.loop.QueueInLoop(c.connectDestroyed)
}

func (c *TcpConnection) handleError() {
	c.loop.AssertInLoopGoroutine()
	c.handleClose()
}

// Send enqueues data for transmission. Thread-safe: if called off the
// loop goroutine, data is copied and a trampoline is posted via
// RunInLoop. A zero-length payload is a no-op, safe from any goroutine.
func (c *TcpConnection) Send(data []byte) {
	if len(data) == 0 {
		return
	}
	if c.loop.IsInLoopGoroutine() {
		c.sendInLoop(data)
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.loop.QueueInLoop(func() { c.sendInLoop(cp) })
}

func (c *TcpConnection) sendInLoop(data []byte) {
	if c.State() == StateDisconnected {
		return
	}
	var (
		wrote    int
		writeErr error
	)
	if !c.channel.IsWriting() && c.outputBuf.ReadableBytes() == 0 {
		n, err := c.socket.Send(data)
		if err != nil && !errors.Is(err, syscall.EAGAIN) && !errors.Is(err, syscall.EWOULDBLOCK) {
			writeErr = err
		} else {
			wrote = n
			if wrote == len(data) && c.writeCompleteCB != nil {
				c.writeCompleteCB(c)
			}
		}
	}
	if writeErr != nil {
		c.handleError()
		return
	}
	if wrote < len(data) {
		c.outputBuf.Append(data[wrote:])
		if c.highWaterMarkCB != nil && c.highWaterMark > 0 && c.outputBuf.ReadableBytes() >= c.highWaterMark {
			c.highWaterMarkCB(c, c.outputBuf.ReadableBytes())
		}
		if !c.channel.IsWriting() {
			c.channel.EnableWriting()
		}
	}
}

// Shutdown transitions Connected -> Disconnecting and shuts down the
// write half once the output buffer drains (or immediately if already
// drained). No-op unless currently Connected.
func (c *TcpConnection) Shutdown() {
	c.loop.RunInLoop(func() {
		if c.State() != StateConnected {
			return
		}
		atomic.StoreInt32(&c.state, int32(StateDisconnecting))
		if !c.channel.IsWriting() {
			c.shutdownWrite()
		}
	})
}

func (c *TcpConnection) shutdownWrite() {
	syscall.Shutdown(c.socket.FD(), syscall.SHUT_WR)
}

// ForceClose transitions directly to Disconnected without waiting for
// the output buffer to drain.
func (c *TcpConnection) ForceClose() {
	c.loop.RunInLoop(func() {
		if c.State() == StateConnected || c.State() == StateDisconnecting {
			c.handleClose()
		}
	})
}
