package lockfree

import "sync/atomic"

// AtomicCounter is a monotonically increasing counter written by one
// goroutine and readable from any.
type AtomicCounter struct {
	value atomic.Int64
}

// Increment atomically increments the counter by one.
func (c *AtomicCounter) Increment() {
	c.value.Add(1)
}

// Add atomically adds delta to the counter.
func (c *AtomicCounter) Add(delta int64) {
	c.value.Add(delta)
}

// Get returns the current value of the counter atomically.
func (c *AtomicCounter) Get() int64 {
	return c.value.Load()
}
