// Package sock wraps a raw, non-blocking BSD socket file descriptor.
//
// Socket is move-only: copying the struct by value is harmless but using
// two copies concurrently is a bug the caller must avoid, since Close is
// only safe to call once and ownership of the fd is meant to be unique.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sock

import (
	"fmt"
	"net"
	"sync/atomic"
	"syscall"

	"github.com/momentics/hioload-ws/addr"
)

// State enumerates the Socket lifecycle.
type State int32

const (
	StateUnopened State = iota
	StateOpen
	StateListening
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultBacklog is used by Listen when the caller passes backlog <= 0.
const DefaultBacklog = 128

// Socket owns exactly one OS file descriptor.
type Socket struct {
	fd     int
	state  int32 // atomic State
	closed int32 // atomic bool, guards Close idempotence
}

// Create opens an IPv4 stream socket in non-blocking mode. Non-blocking
// mode is mandatory before a Socket can be handed to a reactor.Channel.
func Create() (*Socket, error) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("sock: socket: %w", err)
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("sock: set nonblock: %w", err)
	}
	s := &Socket{fd: fd}
	s.setState(StateOpen)
	return s, nil
}

// FromFD wraps an already-created, already-non-blocking fd (e.g. one
// returned by accept(2)).
func FromFD(fd int) *Socket {
	s := &Socket{fd: fd}
	s.setState(StateConnected)
	return s
}

func (s *Socket) setState(st State) { atomic.StoreInt32(&s.state, int32(st)) }

// State reports the current lifecycle state.
func (s *Socket) State() State { return State(atomic.LoadInt32(&s.state)) }

// FD returns the underlying file descriptor for registration with a
// reactor.Poller. The caller must not close it directly.
func (s *Socket) FD() int { return s.fd }

// SetReuseAddr toggles SO_REUSEADDR.
func (s *Socket) SetReuseAddr(on bool) error {
	return s.setBoolOpt(syscall.SOL_SOCKET, syscall.SO_REUSEADDR, on)
}

// SetKeepAlive toggles SO_KEEPALIVE.
func (s *Socket) SetKeepAlive(on bool) error {
	return s.setBoolOpt(syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, on)
}

// SetNoDelay toggles TCP_NODELAY (disables Nagle's algorithm).
func (s *Socket) SetNoDelay(on bool) error {
	return s.setBoolOpt(syscall.IPPROTO_TCP, syscall.TCP_NODELAY, on)
}

func (s *Socket) setBoolOpt(level, opt int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := syscall.SetsockoptInt(s.fd, level, opt, v); err != nil {
		return fmt.Errorf("sock: setsockopt(%d,%d): %w", level, opt, err)
	}
	return nil
}

// Bind binds the socket to the given address.
func (s *Socket) Bind(a addr.Address) error {
	sa := &syscall.SockaddrInet4{Port: int(a.Port())}
	ip := a.TCPAddr().IP.To4()
	copy(sa.Addr[:], ip)
	if err := syscall.Bind(s.fd, sa); err != nil {
		return fmt.Errorf("sock: bind %s: %w", a, err)
	}
	return nil
}

// Listen marks the socket as a passive listening socket. backlog <= 0
// uses DefaultBacklog.
func (s *Socket) Listen(backlog int) error {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if err := syscall.Listen(s.fd, backlog); err != nil {
		return fmt.Errorf("sock: listen: %w", err)
	}
	s.setState(StateListening)
	return nil
}

// Accept accepts one pending connection, returning a new non-blocking
// Socket and the peer's address. Returns syscall.EAGAIN (unwrapped) when
// no connection is pending — callers loop until this error, as
// netsrv.Acceptor does.
func (s *Socket) Accept() (*Socket, addr.Address, error) {
	nfd, sa, err := syscall.Accept(s.fd)
	if err != nil {
		return nil, addr.Address{}, err // caller inspects for EAGAIN/EMFILE
	}
	if err := syscall.SetNonblock(nfd, true); err != nil {
		syscall.Close(nfd)
		return nil, addr.Address{}, fmt.Errorf("sock: accept set nonblock: %w", err)
	}
	var peer addr.Address
	if sa4, ok := sa.(*syscall.SockaddrInet4); ok {
		ipCopy := sa4.Addr
		peer, _ = addr.FromTCPAddr(&net.TCPAddr{IP: net.IP(ipCopy[:]), Port: sa4.Port})
	}
	return FromFD(nfd), peer, nil
}

// LocalAddr returns the socket's bound local address via getsockname(2).
// Used by TcpServer to populate a TcpConnection's local endpoint after
// accept, since accept(2) itself only yields the peer address.
func (s *Socket) LocalAddr() (addr.Address, error) {
	sa, err := syscall.Getsockname(s.fd)
	if err != nil {
		return addr.Address{}, fmt.Errorf("sock: getsockname: %w", err)
	}
	sa4, ok := sa.(*syscall.SockaddrInet4)
	if !ok {
		return addr.Address{}, fmt.Errorf("sock: getsockname: unexpected sockaddr type %T", sa)
	}
	ipCopy := sa4.Addr
	return addr.FromTCPAddr(&net.TCPAddr{IP: net.IP(ipCopy[:]), Port: sa4.Port})
}

// Connect begins a non-blocking connect. Per BSD semantics this returns
// syscall.EINPROGRESS (unwrapped) immediately; the caller waits for writability on
// the reactor before considering the connection established.
func (s *Socket) Connect(a addr.Address) error {
	sa := &syscall.SockaddrInet4{Port: int(a.Port())}
	ip := a.TCPAddr().IP.To4()
	copy(sa.Addr[:], ip)
	err := syscall.Connect(s.fd, sa)
	if err != nil && err != syscall.EINPROGRESS {
		return fmt.Errorf("sock: connect %s: %w", a, err)
	}
	s.setState(StateConnected)
	return err // nil or EINPROGRESS
}

// Send writes data to the socket. Returns (n, nil) for a partial or full
// write, (0, err) with err wrapping syscall.EAGAIN for transient
// would-block, and (0, err) for a hard error. A zero-length payload is a
// thread-safe no-op.
func (s *Socket) Send(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	n, err := syscall.Write(s.fd, data)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Recv reads into buf. The convention matches §4.A-B: n > 0 is bytes read,
// n == 0 means the peer closed the connection (EOF), n < 0 is reserved for
// callers that want to distinguish retry-needed via LastError instead of a
// returned error; this implementation always returns (0, err) on
// would-block so callers test errors.Is(err, syscall.EAGAIN).
func (s *Socket) Recv(buf []byte) (int, error) {
	n, err := syscall.Read(s.fd, buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the underlying fd. Idempotent: a second call is a no-op.
func (s *Socket) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	s.setState(StateClosed)
	if err := syscall.Close(s.fd); err != nil {
		return fmt.Errorf("sock: close: %w", err)
	}
	return nil
}
