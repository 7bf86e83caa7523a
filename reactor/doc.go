// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor implements a single-threaded, non-blocking I/O reactor:
// a Poller (fd-event demultiplexer), Channel (per-fd interest/callback
// record), EventLoop (owns the Poller, runs the dispatch loop, accepts
// cross-thread work via a wakeup fd and task queue, and schedules timers),
// and Buffer (a growable byte buffer for connection-level I/O staging).
package reactor
