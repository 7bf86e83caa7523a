// File: bus/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package bus

import "fmt"

var errFilterRejected = fmt.Errorf("bus: message rejected by filter chain")

// ErrQueueFull is returned by StackFlow.TryPublish when the bounded event
// FIFO is at capacity (spec §7 QueueFull: rejected, caller decides policy).
var ErrQueueFull = fmt.Errorf("bus: event queue full")

func errChannelInactive(name string) error {
	return fmt.Errorf("bus: channel %q is inactive", name)
}
