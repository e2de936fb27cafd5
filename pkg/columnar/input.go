package columnar

import (
	"encoding/binary"
	"math"
)

// ColumnInput is the caller's view of one column of one row group. All
// slices are borrowed; ChunkBuffer.Append copies what it keeps.
type ColumnInput struct {
	// Values holds fixed-width little-endian values, slots*width bytes, or
	// the concatenated bytes of a BYTE_ARRAY column.
	Values []byte
	// Offsets delimits BYTE_ARRAY values, slots+1 entries. Must be nil for
	// every other type.
	Offsets []uint32
	// DefLevels has one entry per slot for OPTIONAL and REPEATED columns.
	DefLevels []uint8
	// RepLevels has one entry per slot for REPEATED columns.
	RepLevels []uint8
}

// Slots returns the number of value slots the input describes, as implied
// by the levels or offsets. width is the column's fixed value width, 0 for
// BYTE_ARRAY.
func (in ColumnInput) Slots(width int) int {
	switch {
	case in.RepLevels != nil:
		return len(in.RepLevels)
	case in.DefLevels != nil:
		return len(in.DefLevels)
	case in.Offsets != nil:
		return len(in.Offsets) - 1
	case width > 0:
		return len(in.Values) / width
	}
	return 0
}

// WithDefLevels returns a copy of in carrying the given definition levels.
func (in ColumnInput) WithDefLevels(levels []uint8) ColumnInput {
	in.DefLevels = levels
	return in
}

// WithRepLevels returns a copy of in carrying the given repetition levels.
func (in ColumnInput) WithRepLevels(levels []uint8) ColumnInput {
	in.RepLevels = levels
	return in
}

// Bools packs booleans one byte each.
func Bools(vs ...bool) ColumnInput {
	out := make([]byte, len(vs))
	for i, v := range vs {
		if v {
			out[i] = 1
		}
	}
	return ColumnInput{Values: out}
}

// Int32s packs int32 values.
func Int32s(vs ...int32) ColumnInput {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(v))
	}
	return ColumnInput{Values: out}
}

// Int64s packs int64 values.
func Int64s(vs ...int64) ColumnInput {
	out := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(out[8*i:], uint64(v))
	}
	return ColumnInput{Values: out}
}

// Int96s packs 12-byte values as given.
func Int96s(vs ...[12]byte) ColumnInput {
	out := make([]byte, 0, 12*len(vs))
	for _, v := range vs {
		out = append(out, v[:]...)
	}
	return ColumnInput{Values: out}
}

// Float32s packs float32 values.
func Float32s(vs ...float32) ColumnInput {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return ColumnInput{Values: out}
}

// Float64s packs float64 values.
func Float64s(vs ...float64) ColumnInput {
	out := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return ColumnInput{Values: out}
}

// ByteArrays concatenates vs and builds the matching offsets.
func ByteArrays(vs ...[]byte) ColumnInput {
	offsets := make([]uint32, len(vs)+1)
	size := 0
	for i, v := range vs {
		size += len(v)
		offsets[i+1] = uint32(size)
	}
	values := make([]byte, 0, size)
	for _, v := range vs {
		values = append(values, v...)
	}
	return ColumnInput{Values: values, Offsets: offsets}
}

// Strings is ByteArrays for string values.
func Strings(vs ...string) ColumnInput {
	bs := make([][]byte, len(vs))
	for i, s := range vs {
		bs[i] = []byte(s)
	}
	return ByteArrays(bs...)
}

// NullableByteArrays is ByteArrays for an OPTIONAL column where a nil
// element is null.
func NullableByteArrays(vs ...[]byte) ColumnInput {
	in := ByteArrays(vs...)
	in.DefLevels = make([]uint8, len(vs))
	for i, v := range vs {
		if v != nil {
			in.DefLevels[i] = 1
		}
	}
	return in
}

// FixedByteArrays concatenates equal-length values.
func FixedByteArrays(vs ...[]byte) ColumnInput {
	var out []byte
	for _, v := range vs {
		out = append(out, v...)
	}
	return ColumnInput{Values: out}
}

// Present builds definition levels from a validity mask.
func Present(valid ...bool) []uint8 {
	out := make([]uint8, len(valid))
	for i, v := range valid {
		if v {
			out[i] = 1
		}
	}
	return out
}
