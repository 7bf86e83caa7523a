// File: netsrv/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acceptor owns a listening socket and accepts connections until EAGAIN,
// with graceful degradation under fd exhaustion (spec §4.H) and optional
// admission rate limiting (SPEC_FULL.md domain-stack wiring for
// golang.org/x/time/rate).

package netsrv

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-ws/addr"
	"github.com/momentics/hioload-ws/reactor"
	"github.com/momentics/hioload-ws/sock"
)

// AcceptCallback is invoked once per accepted connection with the new
// socket and the peer's address.
type AcceptCallback func(s *sock.Socket, peer addr.Address)

// Acceptor listens on one address and fans out accepted connections.
type Acceptor struct {
	loop     *reactor.EventLoop
	listener *sock.Socket
	channel  *reactor.Channel

	acceptCB AcceptCallback
	limiter  *rate.Limiter

	// idleFD is a reserved fd kept closed-then-reopened to clear the
	// accept backlog under EMFILE (spec §4.H "graceful degradation").
	idleFD int

	listening bool
}

// NewAcceptor binds and prepares (but does not yet Listen on) a socket
// for addr. Call Listen to start accepting.
func NewAcceptor(loop *reactor.EventLoop, bindAddr addr.Address) (*Acceptor, error) {
	s, err := sock.Create()
	if err != nil {
		return nil, fmt.Errorf("netsrv: acceptor: %w", err)
	}
	if err := s.SetReuseAddr(true); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Bind(bindAddr); err != nil {
		s.Close()
		return nil, err
	}
	idleFD, err := syscall.Open("/dev/null", syscall.O_RDONLY, 0)
	if err != nil {
		idleFD = -1
	}
	a := &Acceptor{loop: loop, listener: s, idleFD: idleFD}
	a.channel = reactor.NewChannel(loop, s.FD())
	a.channel.SetReadCallback(a.handleRead)
	return a, nil
}

// SetAcceptCallback registers the per-connection callback.
func (a *Acceptor) SetAcceptCallback(cb AcceptCallback) { a.acceptCB = cb }

// SetRateLimiter installs an admission rate limiter; nil disables
// limiting (the default). When set, accept(2) results that exceed the
// limiter's budget are closed immediately rather than handed to the
// accept callback.
func (a *Acceptor) SetRateLimiter(l *rate.Limiter) { a.limiter = l }

// Listen marks the socket listening and enables the accept channel. Must
// run on the loop goroutine (spec §4.I posts this from TcpServer.Start).
func (a *Acceptor) Listen(backlog int) error {
	a.loop.AssertInLoopGoroutine()
	if err := a.listener.Listen(backlog); err != nil {
		return err
	}
	a.listening = true
	a.channel.EnableReading()
	return nil
}

// LocalAddr returns the listening socket's bound address, useful after
// binding to an ephemeral port (":0") to discover the assigned one.
func (a *Acceptor) LocalAddr() (addr.Address, error) {
	return a.listener.LocalAddr()
}

// Close stops accepting and releases the listening socket.
func (a *Acceptor) Close() error {
	a.channel.DisableAll()
	a.channel.Remove()
	if a.idleFD >= 0 {
		syscall.Close(a.idleFD)
	}
	return a.listener.Close()
}

func (a *Acceptor) handleRead() {
	a.loop.AssertInLoopGoroutine()
	for {
		s, peer, err := a.listener.Accept()
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
				return
			}
			if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
				a.degradeUnderFDExhaustion()
				return
			}
			return // other hard errors: stop this round, try again next readiness
		}
		if a.limiter != nil && !a.limiter.Allow() {
			s.Close()
			continue
		}
		if a.acceptCB != nil {
			a.acceptCB(s, peer)
		}
	}
}

// degradeUnderFDExhaustion implements spec §4.H: close the reserved idle
// fd to free one descriptor, accept-and-immediately-close to drain one
// backlog entry, then reopen the reserved fd so a future EMFILE has
// headroom again. Reopening is retried with exponential backoff in case
// /dev/null itself is momentarily unavailable under the same exhaustion.
func (a *Acceptor) degradeUnderFDExhaustion() {
	if a.idleFD >= 0 {
		syscall.Close(a.idleFD)
		a.idleFD = -1
	}
	conn, _, err := a.listener.Accept()
	if err == nil {
		conn.Close()
	}

	fd, err := backoff.Retry(context.Background(),
		func() (int, error) { return syscall.Open("/dev/null", syscall.O_RDONLY, 0) },
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(idleFDReopenDeadline),
		backoff.WithMaxTries(3))
	if err == nil {
		a.idleFD = fd
	}
}

// idleFDReopenDeadline bounds how long the accept path will retry
// reopening its fd-exhaustion reserve before giving up for this round.
const idleFDReopenDeadline = 500 * time.Millisecond
