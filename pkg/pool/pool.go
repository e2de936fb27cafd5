// Package pool provides typed object pooling for the encode and compression
// paths. Column chunks are encoded into pooled scratch buffers and copied out
// once their final size is known, which keeps the consumer goroutine from
// allocating a fresh buffer per column per row group.
//
// Example usage:
//
//	buf := pool.GetBuffer()
//	defer pool.PutBuffer(buf)
//
//	buf.Write(values)
//	out := append([]byte(nil), buf.Bytes()...)
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and an optional reset
// function. The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a new typed pool. The new function is called when the pool is
// empty; reset, if not nil, is called before an object goes back to the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, creating one if needed.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool after resetting it.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects ever allocated, currently checked out,
// and the total number of Get calls.
func (p *Pool[T]) Stats() (allocated, inUse, gets int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.gets)
}

// maxPooledBuffer caps what goes back into the buffer pool so one oversized
// row group does not pin its memory for the life of the process.
const maxPooledBuffer = 64 << 20

// Buffers pools scratch buffers used while encoding and compressing chunks.
var Buffers = New(
	func() *bytes.Buffer {
		return bytes.NewBuffer(make([]byte, 0, 64<<10))
	},
	func(b *bytes.Buffer) {
		b.Reset()
	},
)

// GetBuffer returns an empty scratch buffer.
func GetBuffer() *bytes.Buffer {
	return Buffers.Get()
}

// PutBuffer returns a scratch buffer to the pool. Buffers that grew beyond
// the pooling cap are dropped.
func PutBuffer(b *bytes.Buffer) {
	if b == nil {
		return
	}
	if b.Cap() > maxPooledBuffer {
		atomic.AddInt64(&Buffers.stats.inUse, -1)
		return
	}
	Buffers.Put(b)
}
