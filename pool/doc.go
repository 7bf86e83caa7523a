// Package pool
// Author: momentics <momentics@gmail.com>
//
// Generic object pooling (used by wireframe to recycle encode scratch
// buffers) and a fixed-capacity ring buffer (used by bus for a channel's
// recent-message history). See objpool.go and ring.go.
package pool
