//go:build !linux
// +build !linux

// File: reactor/wakeup_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

type wakeupFD struct{}

func newWakeupFD() (wakeupFD, error) {
	return wakeupFD{}, ErrUnsupportedPlatform
}

func (w wakeupFD) readFD() int             { return -1 }
func (w wakeupFD) wake()                   {}
func (w wakeupFD) drain([]byte) (int, error) { return 0, nil }
func (w wakeupFD) close()                  {}
