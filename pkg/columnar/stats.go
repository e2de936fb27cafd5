package columnar

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

// Statistics summarizes one chunk. Min and Max hold plain value bytes in
// the column's physical encoding; they are unset when no slot holds a
// comparable value. Distinct counts are not tracked.
//
// INT96 and FIXED_BYTE_ARRAY order by raw little-endian bytes, so INT96
// bounds are not numeric bounds.
type Statistics struct {
	Min       []byte
	Max       []byte
	NullCount int64
	HasMinMax bool
}

// Statistics computes min, max and null count over the buffered slots.
// Null slots and empty lists count as nulls and are skipped for min/max,
// as are NaN floats.
func (b *ChunkBuffer) Statistics() Statistics {
	var st Statistics
	var min, max []byte
	cmp := comparator(b.def.PhysicalType)

	slots := b.Slots()
	for i := 0; i < slots; i++ {
		if !b.defined(i) {
			st.NullCount++
			continue
		}
		v := b.Value(i)
		if isNaN(b.def.PhysicalType, v) {
			continue
		}
		if min == nil || cmp(v, min) < 0 {
			min = v
		}
		if max == nil || cmp(v, max) > 0 {
			max = v
		}
	}
	if min != nil {
		st.Min = append([]byte{}, min...)
		st.Max = append([]byte{}, max...)
		st.HasMinMax = true
	}
	return st
}

// Compare orders two plain values of type t.
func Compare(t schema.PhysicalType, a, b []byte) int {
	return comparator(t)(a, b)
}

func comparator(t schema.PhysicalType) func(a, b []byte) int {
	switch t {
	case schema.Int32:
		return func(a, b []byte) int {
			return cmpOrdered(int32(binary.LittleEndian.Uint32(a)), int32(binary.LittleEndian.Uint32(b)))
		}
	case schema.Int64:
		return func(a, b []byte) int {
			return cmpOrdered(int64(binary.LittleEndian.Uint64(a)), int64(binary.LittleEndian.Uint64(b)))
		}
	case schema.Float:
		return func(a, b []byte) int {
			return cmpOrdered(math.Float32frombits(binary.LittleEndian.Uint32(a)), math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
	case schema.Double:
		return func(a, b []byte) int {
			return cmpOrdered(math.Float64frombits(binary.LittleEndian.Uint64(a)), math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
	default:
		// BOOL 0/1 bytes, INT96 and byte arrays order lexicographically.
		return bytes.Compare
	}
}

func cmpOrdered[T int32 | int64 | float32 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isNaN(t schema.PhysicalType, v []byte) bool {
	switch t {
	case schema.Float:
		f := math.Float32frombits(binary.LittleEndian.Uint32(v))
		return f != f
	case schema.Double:
		return math.IsNaN(math.Float64frombits(binary.LittleEndian.Uint64(v)))
	}
	return false
}
