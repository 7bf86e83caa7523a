// File: netsrv/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TcpServer owns an Acceptor and tracks live connections by name (spec
// §3/§4.I).

package netsrv

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-ws/addr"
	"github.com/momentics/hioload-ws/control"
	"github.com/momentics/hioload-ws/reactor"
	"github.com/momentics/hioload-ws/sock"
)

// TcpServer accepts connections on one address and dispatches
// connection-level callbacks, forwarded from each TcpConnection.
type TcpServer struct {
	name string
	loop *reactor.EventLoop
	log  *zap.Logger

	acceptor *Acceptor

	mu          sync.Mutex // guards conns; only ever touched from the loop goroutine, kept for clarity at call sites that assert ownership
	conns       map[string]*TcpConnection
	nextConnID  uint64

	started int32

	connectionCB ConnectionCallback
	messageCB    MessageCallback
	closeCB      CloseCallback

	totalConnections int64
	activeConnections int64

	counters *control.RuntimeCounters
}

// NewTcpServer constructs a server bound to bindAddr, owned by loop.
func NewTcpServer(loop *reactor.EventLoop, name string, bindAddr addr.Address) (*TcpServer, error) {
	acc, err := NewAcceptor(loop, bindAddr)
	if err != nil {
		return nil, fmt.Errorf("netsrv: server %s: %w", name, err)
	}
	s := &TcpServer{
		name:     name,
		loop:     loop,
		log:      zap.NewNop(),
		acceptor: acc,
		conns:    make(map[string]*TcpConnection),
	}
	acc.SetAcceptCallback(s.newConnection)
	return s, nil
}

// SetLogger installs a structured logger for connection lifecycle
// events. Accepting connections and tearing them down happens far less
// often than reading/writing on them, so unlike the reactor's hot path
// this is an acceptable place to log.
func (s *TcpServer) SetLogger(log *zap.Logger) {
	if log != nil {
		s.log = log
	}
}

// SetCounters installs the §6 operational counter sink. nil disables
// counting (the default).
func (s *TcpServer) SetCounters(c *control.RuntimeCounters) { s.counters = c }

// SetConnectionCallback registers the server-level connected callback,
// forwarded to every TcpConnection this server creates.
func (s *TcpServer) SetConnectionCallback(cb ConnectionCallback) { s.connectionCB = cb }

// SetMessageCallback registers the server-level message callback.
func (s *TcpServer) SetMessageCallback(cb MessageCallback) { s.messageCB = cb }

// SetCloseCallback registers the server-level close callback, invoked
// before the per-connection bookkeeping is torn down.
func (s *TcpServer) SetCloseCallback(cb CloseCallback) { s.closeCB = cb }

// SetRateLimiter installs an admission rate limiter on the underlying
// Acceptor (SPEC_FULL.md domain-stack wiring for golang.org/x/time/rate).
func (s *TcpServer) SetRateLimiter(l *rate.Limiter) { s.acceptor.SetRateLimiter(l) }

// Start posts listen+enable to the loop thread. Idempotent.
func (s *TcpServer) Start(backlog int) {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return
	}
	s.loop.RunInLoop(func() {
		if err := s.acceptor.Listen(backlog); err != nil {
			atomic.StoreInt32(&s.started, 0)
		}
	})
}

func (s *TcpServer) newConnection(sk *sock.Socket, peer addr.Address) {
	s.loop.AssertInLoopGoroutine()
	s.nextConnID++
	name := fmt.Sprintf("%s#%d", s.name, s.nextConnID)

	var local addr.Address
	if la, err := sk.LocalAddr(); err == nil {
		local = la
	}

	conn := NewTcpConnection(s.loop, name, sk, local, peer)
	conn.SetConnectionCallback(s.connectionCB)
	conn.SetMessageCallback(s.messageCB)
	conn.SetCloseCallback(s.removeConnection)

	s.mu.Lock()
	s.conns[name] = conn
	s.mu.Unlock()
	atomic.AddInt64(&s.totalConnections, 1)
	atomic.AddInt64(&s.activeConnections, 1)
	if s.counters != nil {
		s.counters.AddConnectionsCreated(1)
	}
	s.log.Info("netsrv: connection accepted", zap.String("server", s.name), zap.String("conn", name), zap.String("peer", peer.String()))

	conn.ConnectEstablished()
}

// removeConnection is installed as every connection's CloseCallback. It
// fires the server-level close callback first, then removes the
// connection from the map (already on the loop goroutine, since
// TcpConnection.handleClose runs there) — the connection's own
// connectDestroyed trampoline, scheduled by handleClose, keeps the object
// alive until after this returns.
func (s *TcpServer) removeConnection(conn *TcpConnection) {
	s.loop.AssertInLoopGoroutine()
	if s.closeCB != nil {
		s.closeCB(conn)
	}
	s.mu.Lock()
	delete(s.conns, conn.Name())
	s.mu.Unlock()
	atomic.AddInt64(&s.activeConnections, -1)
	if s.counters != nil {
		s.counters.AddConnectionsClosed(1)
		s.counters.AddBytesSent(conn.BytesSent())
		s.counters.AddBytesReceived(conn.BytesReceived())
	}
	s.log.Info("netsrv: connection closed", zap.String("server", s.name), zap.String("conn", conn.Name()))
}

// Stop gracefully shuts down every live connection and stops accepting.
// Every connection transitions to Disconnected and its close callback
// fires exactly once (spec §8 scenario 6).
func (s *TcpServer) Stop() {
	s.loop.RunInLoop(func() {
		s.acceptor.Close()
		s.mu.Lock()
		snapshot := make([]*TcpConnection, 0, len(s.conns))
		for _, c := range s.conns {
			snapshot = append(snapshot, c)
		}
		s.mu.Unlock()
		for _, c := range snapshot {
			c.ForceClose()
		}
	})
}

// BroadcastMessage sends data to every currently connected peer.
// Thread-safe.
func (s *TcpServer) BroadcastMessage(data []byte) {
	s.loop.RunInLoop(func() {
		s.mu.Lock()
		targets := make([]*TcpConnection, 0, len(s.conns))
		for _, c := range s.conns {
			targets = append(targets, c)
		}
		s.mu.Unlock()
		for _, c := range targets {
			c.Send(data)
		}
	})
}

// SendToConnection sends data to a single named connection, if still
// live. Thread-safe.
func (s *TcpServer) SendToConnection(name string, data []byte) {
	s.loop.RunInLoop(func() {
		s.mu.Lock()
		c, ok := s.conns[name]
		s.mu.Unlock()
		if ok {
			c.Send(data)
		}
	})
}

// LocalAddr returns the server's bound listening address. It returns an
// error until the listen that Start posts to the loop goroutine has run,
// so a nil error means the socket is accepting connections.
func (s *TcpServer) LocalAddr() (addr.Address, error) {
	if s.acceptor.listener.State() != sock.StateListening {
		return addr.Address{}, fmt.Errorf("netsrv: server %s: not listening", s.name)
	}
	return s.acceptor.LocalAddr()
}

// TotalConnections returns the cumulative count of accepted connections.
func (s *TcpServer) TotalConnections() int64 { return atomic.LoadInt64(&s.totalConnections) }

// ActiveConnections returns the number of currently live connections.
func (s *TcpServer) ActiveConnections() int64 { return atomic.LoadInt64(&s.activeConnections) }
