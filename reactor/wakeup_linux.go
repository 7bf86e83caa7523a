//go:build linux
// +build linux

// File: reactor/wakeup_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-goroutine wakeup via eventfd(2): writing any 8-byte value to the
// fd makes it readable, rousing a blocked epoll_wait.

package reactor

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

type wakeupFD struct {
	fd int
}

func newWakeupFD() (wakeupFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return wakeupFD{}, fmt.Errorf("reactor: eventfd: %w", err)
	}
	return wakeupFD{fd: fd}, nil
}

func (w wakeupFD) readFD() int { return w.fd }

func (w wakeupFD) wake() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	unix.Write(w.fd, buf[:])
}

func (w wakeupFD) drain(buf []byte) (int, error) {
	if len(buf) < 8 {
		buf = make([]byte, 8)
	}
	return unix.Read(w.fd, buf[:8])
}

func (w wakeupFD) close() {
	unix.Close(w.fd)
}
