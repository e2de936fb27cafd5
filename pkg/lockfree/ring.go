// Package lockfree provides the single-producer single-consumer record ring
// that decouples a latency-sensitive producer from the sink's writer
// goroutine.
package lockfree

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

var (
	// ErrClosed is returned by Push after Close, and by PopBlocking once the
	// ring is closed and drained.
	ErrClosed = &flowerrors.Error{Code: flowerrors.CodeNotOpen, Message: "ring buffer closed"}

	// ErrInterrupted is returned by PopBlocking when its cancel channel fires.
	ErrInterrupted = errors.New("ring buffer wait interrupted")
)

// RingBuffer is a fixed-capacity FIFO of variable-length byte records.
//
// Exactly one goroutine may call Push and exactly one goroutine may call the
// pop side (TryPop, Peek, Advance, PopBlocking). Any other use is undefined;
// it is not guarded at runtime.
//
// One slot is kept empty to tell full from empty, so a ring of capacity N
// holds at most N-1 records.
type RingBuffer struct {
	// Separate head and tail on different cache lines to avoid false sharing
	head      atomic.Uint64
	_padding1 [7]uint64 //nolint:unused // 56 bytes padding to separate cache lines

	tail      atomic.Uint64
	_padding2 [7]uint64 //nolint:unused // 56 bytes padding

	slots    [][]byte
	capacity uint64
	mask     uint64

	notify    chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewRingBuffer returns a ring with the given number of slots, which must be
// a power of two and at least 2.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		return nil, flowerrors.Newf(flowerrors.CodeInvalidArgument,
			"ring buffer size must be a power of two >= 2, got %d", capacity)
	}
	return &RingBuffer{
		slots:    make([][]byte, capacity),
		capacity: uint64(capacity),
		mask:     uint64(capacity - 1),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Push copies rec into the next slot. It never blocks: when the ring is full
// it returns flowerrors.ErrFull and the record is dropped. Slot storage is
// reused, so steady-state pushes do not allocate.
func (r *RingBuffer) Push(rec []byte) error {
	if r.closed.Load() {
		return ErrClosed
	}
	tail := r.tail.Load()
	next := (tail + 1) & r.mask
	if next == r.head.Load() {
		return flowerrors.ErrFull
	}

	r.slots[tail] = append(r.slots[tail][:0], rec...)
	r.tail.Store(next)

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Peek returns the oldest record without removing it. The slice aliases
// ring storage and stays valid until Advance.
func (r *RingBuffer) Peek() ([]byte, bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return nil, false
	}
	return r.slots[head], true
}

// Advance releases the slot returned by the last Peek to the producer.
func (r *RingBuffer) Advance() {
	head := r.head.Load()
	if head == r.tail.Load() {
		return
	}
	r.head.Store((head + 1) & r.mask)
}

// TryPop copies the oldest record into dst and removes it.
func (r *RingBuffer) TryPop(dst []byte) ([]byte, bool) {
	rec, ok := r.Peek()
	if !ok {
		return dst, false
	}
	dst = append(dst[:0], rec...)
	r.Advance()
	return dst, true
}

// PopBlocking waits for a record and returns it in a copy appended to
// dst[:0]. It returns ErrInterrupted as soon as cancel is ready, even when
// records are waiting, so a control request is never starved by a busy
// producer. After Close it drains what is left and then returns ErrClosed.
func (r *RingBuffer) PopBlocking(dst []byte, cancel <-chan struct{}) ([]byte, error) {
	for {
		select {
		case <-cancel:
			return dst, ErrInterrupted
		default:
		}

		if rec, ok := r.TryPop(dst); ok {
			return rec, nil
		}
		if r.closed.Load() {
			// A push may have landed before the close.
			if rec, ok := r.TryPop(dst); ok {
				return rec, nil
			}
			return dst, ErrClosed
		}

		select {
		case <-r.notify:
		case <-r.done:
		case <-cancel:
			return dst, ErrInterrupted
		}
	}
}

// Close stops further pushes and wakes a blocked consumer. Records already
// in the ring can still be popped.
func (r *RingBuffer) Close() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
	})
}

// Closed reports whether Close was called.
func (r *RingBuffer) Closed() bool {
	return r.closed.Load()
}

// Len returns the number of buffered records. It is exact only when called
// from the producer or the consumer.
func (r *RingBuffer) Len() int {
	return int((r.tail.Load() - r.head.Load()) & r.mask)
}

// Cap returns the maximum number of records the ring can hold.
func (r *RingBuffer) Cap() int {
	return int(r.capacity - 1)
}

// Slots returns the configured slot count.
func (r *RingBuffer) Slots() int {
	return int(r.capacity)
}
