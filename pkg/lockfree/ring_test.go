package lockfree

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

func TestNewRingBufferValidatesCapacity(t *testing.T) {
	for _, n := range []int{0, 1, 3, 6, 1000} {
		_, err := NewRingBuffer(n)
		assert.Equal(t, flowerrors.CodeInvalidArgument, flowerrors.CodeOf(err), "capacity %d", n)
	}
	r, err := NewRingBuffer(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, 1<<20-1, r.Cap())
}

func TestPushFullAtCapacityMinusOne(t *testing.T) {
	r, err := NewRingBuffer(4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Push([]byte{byte(i)}))
	}
	err = r.Push([]byte{9})
	assert.ErrorIs(t, err, flowerrors.ErrFull)
	assert.True(t, flowerrors.IsRecoverable(err))
	assert.Equal(t, 3, r.Len())

	rec, ok := r.TryPop(nil)
	require.True(t, ok)
	assert.Equal(t, []byte{0}, rec)

	// The freed slot is immediately reusable and nothing was overwritten.
	require.NoError(t, r.Push([]byte{3}))
	for want := byte(1); want <= 3; want++ {
		rec, ok = r.TryPop(rec)
		require.True(t, ok)
		assert.Equal(t, []byte{want}, rec)
	}
	_, ok = r.TryPop(nil)
	assert.False(t, ok)
}

func TestPushCopiesRecord(t *testing.T) {
	r, err := NewRingBuffer(2)
	require.NoError(t, err)

	buf := []byte("abc")
	require.NoError(t, r.Push(buf))
	buf[0] = 'z'

	rec, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), rec)
	r.Advance()
	assert.Zero(t, r.Len())
}

func TestPopBlockingWakesOnPush(t *testing.T) {
	r, err := NewRingBuffer(8)
	require.NoError(t, err)

	got := make(chan []byte, 1)
	go func() {
		rec, err := r.PopBlocking(nil, nil)
		if err == nil {
			got <- rec
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, r.Push([]byte("hello")))

	select {
	case rec := <-got:
		assert.Equal(t, []byte("hello"), rec)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer was not woken")
	}
}

func TestPopBlockingInterrupt(t *testing.T) {
	r, err := NewRingBuffer(8)
	require.NoError(t, err)
	require.NoError(t, r.Push([]byte("pending")))

	cancel := make(chan struct{})
	close(cancel)
	_, err = r.PopBlocking(nil, cancel)
	assert.True(t, errors.Is(err, ErrInterrupted))
	assert.Equal(t, 1, r.Len())
}

func TestCloseDrainsThenReportsClosed(t *testing.T) {
	r, err := NewRingBuffer(8)
	require.NoError(t, err)
	require.NoError(t, r.Push([]byte("a")))
	require.NoError(t, r.Push([]byte("b")))
	r.Close()
	r.Close()

	assert.ErrorIs(t, r.Push([]byte("c")), ErrClosed)

	rec, err := r.PopBlocking(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), rec)
	rec, err = r.PopBlocking(rec, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), rec)
	_, err = r.PopBlocking(rec, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, r.Closed())
}

func TestConcurrentFIFO(t *testing.T) {
	const n = 200000
	r, err := NewRingBuffer(64)
	require.NoError(t, err)

	go func() {
		var buf [8]byte
		for i := uint64(0); i < n; {
			binary.LittleEndian.PutUint64(buf[:], i)
			if r.Push(buf[:]) == nil {
				i++
			}
		}
		r.Close()
	}()

	var rec []byte
	for want := uint64(0); ; want++ {
		rec, err = r.PopBlocking(rec, nil)
		if errors.Is(err, ErrClosed) {
			assert.Equal(t, uint64(n), want)
			return
		}
		require.NoError(t, err)
		require.Equal(t, want, binary.LittleEndian.Uint64(rec))
	}
}

func TestProperty_AcceptedPushesPopInOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// ops: true pushes the next sequence number, false pops.
	properties.Property("pops return exactly the accepted pushes in order", prop.ForAll(
		func(ops []bool, sizeExp uint8) bool {
			r, err := NewRingBuffer(1 << (1 + sizeExp%5))
			if err != nil {
				return false
			}
			var accepted, popped []byte
			seq := byte(0)
			for _, push := range ops {
				if push {
					err := r.Push([]byte{seq})
					switch {
					case err == nil:
						accepted = append(accepted, seq)
					case !errors.Is(err, flowerrors.ErrFull):
						return false
					case r.Len() != r.Cap():
						return false
					}
					seq++
					continue
				}
				if rec, ok := r.TryPop(nil); ok {
					popped = append(popped, rec[0])
				}
			}
			for {
				rec, ok := r.TryPop(nil)
				if !ok {
					break
				}
				popped = append(popped, rec[0])
			}
			return string(accepted) == string(popped)
		},
		gen.SliceOf(gen.Bool()),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
