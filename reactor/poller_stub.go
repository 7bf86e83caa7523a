//go:build !linux
// +build !linux

// File: reactor/poller_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The spec's Poller contract (a single fd-keyed readiness demultiplexer
// with Update/Remove/Poll) maps directly onto epoll; it does not map onto
// Windows IOCP, which is a completion-based model with no equivalent
// "interest mask for a fd" concept. Rather than fake an incompatible
// contract, non-Linux platforms get an explicit unsupported error, as the
// teacher repo did for its own unsupported-platform case.

package reactor

import "errors"

// ErrUnsupportedPlatform is returned by NewPoller on platforms without a
// Linux epoll-equivalent backend wired in.
var ErrUnsupportedPlatform = errors.New("reactor: poller not implemented for this platform")

// NewPoller returns ErrUnsupportedPlatform outside Linux.
func NewPoller() (Poller, error) {
	return nil, ErrUnsupportedPlatform
}
