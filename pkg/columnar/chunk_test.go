package columnar

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/parquetflow/pkg/compression"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

var (
	idCol   = schema.ColumnDef{Name: "id", PhysicalType: schema.Int64}
	nameCol = schema.ColumnDef{Name: "name", PhysicalType: schema.ByteArray, Repetition: schema.Optional}
	pxCol   = schema.ColumnDef{Name: "px", PhysicalType: schema.Double, Repetition: schema.Optional}
	tagsCol = schema.ColumnDef{Name: "tags", PhysicalType: schema.ByteArray, Repetition: schema.Repeated}
	hashCol = schema.ColumnDef{Name: "hash", PhysicalType: schema.FixedByteArray, TypeLength: 4}
	flagCol = schema.ColumnDef{Name: "flag", PhysicalType: schema.Boolean}
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		def   schema.ColumnDef
		rows  int
		in    ColumnInput
		slots int
		bad   bool
	}{
		{name: "required ok", def: idCol, rows: 3, in: Int64s(1, 2, 3), slots: 3},
		{name: "required short values", def: idCol, rows: 3, in: Int64s(1, 2), bad: true},
		{name: "required with def levels", def: idCol, rows: 2, in: Int64s(1, 2).WithDefLevels([]uint8{1, 1}), bad: true},
		{name: "required with rep levels", def: idCol, rows: 2, in: Int64s(1, 2).WithRepLevels([]uint8{0, 0}), bad: true},
		{name: "offsets on fixed column", def: idCol, rows: 1, in: ColumnInput{Values: make([]byte, 8), Offsets: []uint32{0, 8}}, bad: true},
		{name: "optional def mismatch", def: pxCol, rows: 3, in: Float64s(1, 2, 3).WithDefLevels([]uint8{1, 1}), bad: true},
		{name: "optional def out of range", def: pxCol, rows: 1, in: Float64s(1).WithDefLevels([]uint8{2}), bad: true},
		{name: "optional without levels", def: pxCol, rows: 2, in: Float64s(1, 2), slots: 2},
		{name: "optional rep levels", def: pxCol, rows: 1, in: Float64s(1).WithRepLevels([]uint8{0}), bad: true},
		{name: "nullable strings", def: nameCol, rows: 3, in: NullableByteArrays([]byte("a"), nil, []byte("bc")), slots: 3},
		{name: "null with value", def: nameCol, rows: 1, in: Strings("x").WithDefLevels([]uint8{0}), bad: true},
		{name: "offsets wrong length", def: nameCol, rows: 2, in: Strings("x"), bad: true},
		{name: "offsets decreasing", def: nameCol, rows: 2, in: ColumnInput{Values: []byte("ab"), Offsets: []uint32{0, 2, 1}}, bad: true},
		{name: "offsets not ending at len", def: nameCol, rows: 1, in: ColumnInput{Values: []byte("abc"), Offsets: []uint32{0, 2}}, bad: true},
		{name: "offsets nonzero start", def: nameCol, rows: 1, in: ColumnInput{Values: []byte("ab"), Offsets: []uint32{1, 2}}, bad: true},
		{name: "byte array without offsets", def: nameCol, rows: 1, in: ColumnInput{Values: []byte("ab")}, bad: true},
		{
			name:  "repeated ok",
			def:   tagsCol,
			rows:  3,
			in:    Strings("a", "b", "", "c").WithRepLevels([]uint8{0, 1, 0, 0}).WithDefLevels([]uint8{1, 1, 0, 1}),
			slots: 4,
		},
		{name: "repeated without rep", def: tagsCol, rows: 1, in: Strings("a"), bad: true},
		{name: "repeated first rep nonzero", def: tagsCol, rows: 1, in: Strings("a").WithRepLevels([]uint8{1}), bad: true},
		{name: "repeated row count mismatch", def: tagsCol, rows: 2, in: Strings("a", "b").WithRepLevels([]uint8{0, 1}), bad: true},
		{
			name: "empty list shares row",
			def:  tagsCol,
			rows: 1,
			in:   Strings("", "b").WithRepLevels([]uint8{0, 1}).WithDefLevels([]uint8{0, 1}),
			bad:  true,
		},
		{name: "repeated zero rows", def: tagsCol, rows: 0, in: ColumnInput{}, slots: 0},
		{name: "fixed ok", def: hashCol, rows: 2, in: FixedByteArrays([]byte("abcd"), []byte("efgh")), slots: 2},
		{name: "fixed wrong width", def: hashCol, rows: 2, in: FixedByteArrays([]byte("abc"), []byte("efgh")), bad: true},
		{name: "bool out of range", def: flagCol, rows: 1, in: ColumnInput{Values: []byte{2}}, bad: true},
		{name: "negative rows", def: idCol, rows: -1, in: ColumnInput{}, bad: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := Validate(tt.def, tt.rows, tt.in)
			if tt.bad {
				require.Error(t, err)
				assert.Equal(t, flowerrors.CodeInvalidArgument, flowerrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.slots, slots)
		})
	}
}

func TestAppendFailureLeavesBufferUnchanged(t *testing.T) {
	b := NewChunkBuffer(idCol)
	require.NoError(t, b.Append(2, Int64s(1, 2)))
	require.Error(t, b.Append(2, Int64s(3)))
	assert.Equal(t, 2, b.Rows())
	assert.Equal(t, 2, b.Slots())
}

func TestMultipleAppendsRebaseOffsets(t *testing.T) {
	b := NewChunkBuffer(nameCol)
	require.NoError(t, b.Append(2, NullableByteArrays([]byte("ab"), nil)))
	require.NoError(t, b.Append(1, NullableByteArrays([]byte("cde"))))
	assert.Equal(t, 3, b.Rows())
	assert.Equal(t, []byte("ab"), b.Value(0))
	assert.Empty(t, b.Value(1))
	assert.Equal(t, []byte("cde"), b.Value(2))
}

func TestEncodePlainLayout(t *testing.T) {
	b := NewChunkBuffer(nameCol)
	require.NoError(t, b.Append(2, NullableByteArrays([]byte("hi"), nil)))

	plain := b.EncodePlain()
	want := []byte{
		2, 0, 0, 0, 'h', 'i', // slot 0
		0, 0, 0, 0, // slot 1, null
		1, 0, // def levels
	}
	assert.Equal(t, want, plain)
	assert.Equal(t, len(want), b.PlainSize())
}

func TestStatistics(t *testing.T) {
	t.Run("ints signed", func(t *testing.T) {
		b := NewChunkBuffer(idCol)
		require.NoError(t, b.Append(3, Int64s(5, -7, 3)))
		st := b.Statistics()
		require.True(t, st.HasMinMax)
		assert.Equal(t, int64(-7), int64(binary.LittleEndian.Uint64(st.Min)))
		assert.Equal(t, int64(5), int64(binary.LittleEndian.Uint64(st.Max)))
		assert.Zero(t, st.NullCount)
	})

	t.Run("optional floats skip nulls and NaN", func(t *testing.T) {
		b := NewChunkBuffer(pxCol)
		in := Float64s(100, 1.5, math.NaN(), -2).WithDefLevels([]uint8{0, 1, 1, 1})
		require.NoError(t, b.Append(4, in))
		st := b.Statistics()
		require.True(t, st.HasMinMax)
		assert.Equal(t, -2.0, math.Float64frombits(binary.LittleEndian.Uint64(st.Min)))
		assert.Equal(t, 1.5, math.Float64frombits(binary.LittleEndian.Uint64(st.Max)))
		assert.Equal(t, int64(1), st.NullCount)
	})

	t.Run("all null", func(t *testing.T) {
		b := NewChunkBuffer(nameCol)
		require.NoError(t, b.Append(2, NullableByteArrays(nil, nil)))
		st := b.Statistics()
		assert.False(t, st.HasMinMax)
		assert.Equal(t, int64(2), st.NullCount)
	})

	t.Run("byte arrays lexicographic", func(t *testing.T) {
		b := NewChunkBuffer(tagsCol)
		in := Strings("m", "", "b", "z").
			WithRepLevels([]uint8{0, 0, 0, 1}).
			WithDefLevels([]uint8{1, 0, 1, 1})
		require.NoError(t, b.Append(3, in))
		st := b.Statistics()
		assert.Equal(t, []byte("b"), st.Min)
		assert.Equal(t, []byte("z"), st.Max)
		assert.Equal(t, int64(1), st.NullCount)
	})

	t.Run("bools", func(t *testing.T) {
		b := NewChunkBuffer(flagCol)
		require.NoError(t, b.Append(3, Bools(true, false, true)))
		st := b.Statistics()
		assert.Equal(t, []byte{0}, st.Min)
		assert.Equal(t, []byte{1}, st.Max)
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	comp, err := compression.NewCompressor(compression.Zstd, compression.Default)
	require.NoError(t, err)

	cases := []struct {
		def  schema.ColumnDef
		rows int
		in   ColumnInput
	}{
		{idCol, 3, Int64s(1, 2, 3)},
		{pxCol, 3, Float64s(1, 0, 3).WithDefLevels([]uint8{1, 0, 1})},
		{nameCol, 3, NullableByteArrays([]byte("x"), nil, []byte("yz"))},
		{tagsCol, 2, Strings("a", "b", "").WithRepLevels([]uint8{0, 1, 0}).WithDefLevels([]uint8{1, 1, 0})},
		{hashCol, 2, FixedByteArrays([]byte("abcd"), []byte("efgh"))},
		{flagCol, 2, Bools(true, false)},
		{schema.ColumnDef{Name: "i32", PhysicalType: schema.Int32}, 2, Int32s(-1, 7)},
		{schema.ColumnDef{Name: "f32", PhysicalType: schema.Float}, 1, Float32s(2.5)},
		{schema.ColumnDef{Name: "i96", PhysicalType: schema.Int96}, 1, Int96s([12]byte{1, 2, 3})},
	}

	for _, tc := range cases {
		t.Run(tc.def.Name, func(t *testing.T) {
			b := NewChunkBuffer(tc.def)
			require.NoError(t, b.Append(tc.rows, tc.in))

			chunk, err := b.Encode(comp)
			require.NoError(t, err)
			assert.Equal(t, tc.rows, chunk.RowCount)

			got, err := DecodeChunk(tc.def, comp, chunk.Data, chunk.UncompressedSize, chunk.NumValues)
			require.NoError(t, err)
			assert.Equal(t, tc.in.Values, got.Values)
			assert.Equal(t, tc.in.DefLevels, got.DefLevels)
			assert.Equal(t, tc.in.RepLevels, got.RepLevels)
			if tc.def.PhysicalType == schema.ByteArray {
				assert.Equal(t, tc.in.Offsets, got.Offsets)
			}

			slots, err := Validate(tc.def, tc.rows, got)
			require.NoError(t, err)
			assert.Equal(t, chunk.NumValues, slots)
		})
	}
}

func TestDecodeRejectsCorruptPayload(t *testing.T) {
	b := NewChunkBuffer(nameCol)
	require.NoError(t, b.Append(1, NullableByteArrays([]byte("abc"))))
	plain := b.EncodePlain()

	_, err := Decode(nameCol, plain[:len(plain)-1], 1)
	assert.Equal(t, flowerrors.CodeIO, flowerrors.CodeOf(err))

	_, err = Decode(nameCol, append(plain, 0), 1)
	assert.Equal(t, flowerrors.CodeIO, flowerrors.CodeOf(err))
}

func TestReset(t *testing.T) {
	b := NewChunkBuffer(nameCol)
	require.NoError(t, b.Append(1, NullableByteArrays([]byte("abc"))))
	b.Reset()
	assert.Zero(t, b.Rows())
	assert.Zero(t, b.Slots())
	assert.Empty(t, b.EncodePlain())
}

func TestAppendRejectsByteArrayChunkOverflow(t *testing.T) {
	saved := maxChunkBytes
	maxChunkBytes = 8
	defer func() { maxChunkBytes = saved }()

	b := NewChunkBuffer(nameCol)
	require.NoError(t, b.Append(2, NullableByteArrays([]byte("abcd"), nil)))

	err := b.Append(1, NullableByteArrays([]byte("efghi")))
	require.Error(t, err)
	assert.Equal(t, flowerrors.CodeInvalidArgument, flowerrors.CodeOf(err))
	assert.Equal(t, 2, b.Rows())
	assert.Equal(t, 2, b.Slots())

	require.NoError(t, b.Append(1, NullableByteArrays([]byte("efgh"))))
	assert.Equal(t, []byte("efgh"), b.Value(2))

	fixed := NewChunkBuffer(idCol)
	require.NoError(t, fixed.Append(2, Int64s(1, 2)), "fixed-width columns have no offsets to overflow")
}

func TestInt96StatisticsOrderByRawBytes(t *testing.T) {
	var small, large [12]byte
	small[0] = 1 // 1
	large[1] = 1 // 256

	b := NewChunkBuffer(schema.ColumnDef{Name: "ts96", PhysicalType: schema.Int96})
	require.NoError(t, b.Append(2, Int96s(small, large)))

	st := b.Statistics()
	require.True(t, st.HasMinMax)
	assert.Equal(t, large[:], st.Min)
	assert.Equal(t, small[:], st.Max)
}
