//go:build linux
// +build linux

// File: reactor/buffer_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "golang.org/x/sys/unix"

// readvPlatform issues a single readv(2) syscall spanning all iovecs.
func readvPlatform(fd int, iov [][]byte) (int, error) {
	return unix.Readv(fd, iov)
}
