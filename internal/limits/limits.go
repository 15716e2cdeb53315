// Package limits implements the atomic resource counters that guard
// against exhaustion of fixed-size kernel tables. The process table
// (proc.Kernel.Procs) is the only user; file descriptor slots, pipe
// buffers and mailbox slots are bounded by their own packages.
package limits

import (
	"sync/atomic"

	"novakern/internal/defs"
)

// Counter tracks how much of a fixed resource has been handed out
// against a hard ceiling, the way the teacher's Sysatomic_t does for
// its global syscall limits.
type Counter struct {
	given int64
	max   int64
}

// NewCounter returns a Counter with the given ceiling.
func NewCounter(max int64) *Counter {
	return &Counter{max: max}
}

// Take reserves n units, returning ENOMEM if the ceiling would be
// exceeded.
func (c *Counter) Take(n int64) defs.Err_t {
	for {
		cur := atomic.LoadInt64(&c.given)
		if cur+n > c.max {
			return -defs.ENOMEM
		}
		if atomic.CompareAndSwapInt64(&c.given, cur, cur+n) {
			return 0
		}
	}
}

// Give releases n units previously reserved with Take.
func (c *Counter) Give(n int64) {
	atomic.AddInt64(&c.given, -n)
}

// Given returns the number of units currently outstanding.
func (c *Counter) Given() int64 {
	return atomic.LoadInt64(&c.given)
}

// Max returns the counter's ceiling.
func (c *Counter) Max() int64 {
	return c.max
}
