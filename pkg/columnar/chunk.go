package columnar

import (
	"encoding/binary"
	"math"

	"github.com/ajitpratap0/parquetflow/pkg/compression"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

// maxChunkBytes is the largest BYTE_ARRAY value stream a chunk can address
// with uint32 offsets.
var maxChunkBytes uint64 = math.MaxUint32

// ChunkBuffer accumulates the values and levels of one column of one row
// group. Inputs are validated on Append and never trusted afterwards.
type ChunkBuffer struct {
	def   schema.ColumnDef
	width int

	rows      int
	values    []byte
	offsets   []uint32
	defLevels []uint8
	repLevels []uint8
}

// EncodedChunk is a finished column chunk ready to be written.
type EncodedChunk struct {
	// Data is the codec output.
	Data []byte
	// UncompressedSize is the length of the plain encoding before the codec.
	UncompressedSize int
	// NumValues is the slot count.
	NumValues int
	// RowCount is the number of logical rows.
	RowCount int
	Stats    Statistics
}

// NewChunkBuffer returns an empty buffer for def.
func NewChunkBuffer(def schema.ColumnDef) *ChunkBuffer {
	b := &ChunkBuffer{
		def:   def,
		width: def.ValueWidth(),
	}
	b.Reset()
	return b
}

// Column returns the column definition.
func (b *ChunkBuffer) Column() schema.ColumnDef { return b.def }

// Rows returns the logical row count appended so far.
func (b *ChunkBuffer) Rows() int { return b.rows }

// Slots returns the number of value slots appended so far.
func (b *ChunkBuffer) Slots() int {
	switch {
	case b.def.PhysicalType == schema.ByteArray:
		return len(b.offsets) - 1
	case b.width > 0:
		return len(b.values) / b.width
	}
	return 0
}

// Reset empties the buffer and keeps its capacity.
func (b *ChunkBuffer) Reset() {
	b.rows = 0
	b.values = b.values[:0]
	b.defLevels = b.defLevels[:0]
	b.repLevels = b.repLevels[:0]
	if b.def.PhysicalType == schema.ByteArray {
		b.offsets = append(b.offsets[:0], 0)
	}
}

// Append validates in as rows logical rows of this column and copies it into
// the buffer. On error the buffer is unchanged.
func (b *ChunkBuffer) Append(rows int, in ColumnInput) error {
	slots, err := Validate(b.def, rows, in)
	if err != nil {
		return err
	}
	if b.def.PhysicalType == schema.ByteArray && uint64(len(b.values))+uint64(len(in.Values)) > maxChunkBytes {
		return invalid(b.def, "column %q: chunk would hold %d value bytes, limit is %d",
			b.def.Name, len(b.values)+len(in.Values), maxChunkBytes)
	}

	b.values = append(b.values, in.Values...)
	if b.def.PhysicalType == schema.ByteArray && slots > 0 {
		base := b.offsets[len(b.offsets)-1]
		for _, off := range in.Offsets[1:] {
			b.offsets = append(b.offsets, base+off)
		}
	}
	if b.def.HasDefLevels() {
		if in.DefLevels != nil {
			b.defLevels = append(b.defLevels, in.DefLevels...)
		} else {
			for i := 0; i < slots; i++ {
				b.defLevels = append(b.defLevels, 1)
			}
		}
	}
	if b.def.HasRepLevels() {
		b.repLevels = append(b.repLevels, in.RepLevels...)
	}
	b.rows += rows
	return nil
}

func invalid(def schema.ColumnDef, format string, args ...interface{}) error {
	return flowerrors.Newf(flowerrors.CodeInvalidArgument, format, args...).
		WithDetail("column", def.Name)
}

// Validate checks in against def for rows logical rows and returns the slot
// count. Every length and level invariant is enforced here.
func Validate(def schema.ColumnDef, rows int, in ColumnInput) (int, error) {
	if rows < 0 {
		return 0, invalid(def, "column %q: negative row count %d", def.Name, rows)
	}
	if in.Offsets != nil && def.PhysicalType != schema.ByteArray {
		return 0, invalid(def, "column %q: offsets given for %s column", def.Name, def.PhysicalType)
	}

	var slots int
	switch def.Repetition {
	case schema.Required:
		if in.DefLevels != nil {
			return 0, invalid(def, "column %q: definition levels given for REQUIRED column", def.Name)
		}
		if in.RepLevels != nil {
			return 0, invalid(def, "column %q: repetition levels given for REQUIRED column", def.Name)
		}
		slots = rows
	case schema.Optional:
		if in.RepLevels != nil {
			return 0, invalid(def, "column %q: repetition levels given for OPTIONAL column", def.Name)
		}
		if in.DefLevels != nil && len(in.DefLevels) != rows {
			return 0, invalid(def, "column %q: %d definition levels for %d rows", def.Name, len(in.DefLevels), rows)
		}
		slots = rows
	case schema.Repeated:
		n, err := validateRepLevels(def, rows, in)
		if err != nil {
			return 0, err
		}
		slots = n
	}

	if in.DefLevels != nil {
		for i, d := range in.DefLevels {
			if d > 1 {
				return 0, invalid(def, "column %q: definition level %d at slot %d out of range", def.Name, d, i)
			}
		}
	}

	if def.PhysicalType == schema.ByteArray {
		return slots, validateOffsets(def, slots, in)
	}

	width := def.ValueWidth()
	if len(in.Values) != slots*width {
		return 0, invalid(def, "column %q: %d value bytes, expected %d slots of %d bytes", def.Name, len(in.Values), slots, width)
	}
	if def.PhysicalType == schema.Boolean {
		for i, v := range in.Values {
			if v > 1 {
				return 0, invalid(def, "column %q: boolean value %d at slot %d", def.Name, v, i)
			}
		}
	}
	return slots, nil
}

func validateRepLevels(def schema.ColumnDef, rows int, in ColumnInput) (int, error) {
	if in.RepLevels == nil {
		if rows == 0 && in.DefLevels == nil && len(in.Values) == 0 {
			return 0, nil
		}
		return 0, invalid(def, "column %q: REPEATED column requires repetition levels", def.Name)
	}
	slots := len(in.RepLevels)
	if in.DefLevels != nil && len(in.DefLevels) != slots {
		return 0, invalid(def, "column %q: %d definition levels for %d slots", def.Name, len(in.DefLevels), slots)
	}
	if slots > 0 && in.RepLevels[0] != 0 {
		return 0, invalid(def, "column %q: first repetition level must be 0", def.Name)
	}

	starts := 0
	for i, r := range in.RepLevels {
		switch r {
		case 0:
			starts++
		case 1:
		default:
			return 0, invalid(def, "column %q: repetition level %d at slot %d out of range", def.Name, r, i)
		}
		if in.DefLevels != nil && in.DefLevels[i] == 0 {
			// An empty list is the whole row.
			if r != 0 || (i+1 < slots && in.RepLevels[i+1] != 0) {
				return 0, invalid(def, "column %q: empty list marker at slot %d shares its row", def.Name, i)
			}
		}
	}
	if starts != rows {
		return 0, invalid(def, "column %q: repetition levels describe %d rows, expected %d", def.Name, starts, rows)
	}
	return slots, nil
}

func validateOffsets(def schema.ColumnDef, slots int, in ColumnInput) error {
	if in.Offsets == nil {
		if slots == 0 && len(in.Values) == 0 {
			return nil
		}
		return invalid(def, "column %q: BYTE_ARRAY column requires offsets", def.Name)
	}
	if len(in.Offsets) != slots+1 {
		return invalid(def, "column %q: %d offsets for %d slots", def.Name, len(in.Offsets), slots)
	}
	if in.Offsets[0] != 0 {
		return invalid(def, "column %q: first offset must be 0", def.Name)
	}
	for i := 1; i < len(in.Offsets); i++ {
		if in.Offsets[i] < in.Offsets[i-1] {
			return invalid(def, "column %q: offsets decrease at %d", def.Name, i)
		}
		if in.DefLevels != nil && in.DefLevels[i-1] == 0 && in.Offsets[i] != in.Offsets[i-1] {
			return invalid(def, "column %q: null slot %d has a value", def.Name, i-1)
		}
	}
	if int(in.Offsets[slots]) != len(in.Values) {
		return invalid(def, "column %q: last offset %d does not match %d value bytes", def.Name, in.Offsets[slots], len(in.Values))
	}
	return nil
}

// Value returns the raw bytes stored in slot i.
func (b *ChunkBuffer) Value(i int) []byte {
	if b.def.PhysicalType == schema.ByteArray {
		return b.values[b.offsets[i]:b.offsets[i+1]]
	}
	return b.values[i*b.width : (i+1)*b.width]
}

// defined reports whether slot i holds a value.
func (b *ChunkBuffer) defined(i int) bool {
	return len(b.defLevels) == 0 || b.defLevels[i] != 0
}

// PlainSize returns the length of the uncompressed encoding.
func (b *ChunkBuffer) PlainSize() int {
	slots := b.Slots()
	size := len(b.values)
	if b.def.PhysicalType == schema.ByteArray || b.def.PhysicalType == schema.FixedByteArray {
		size += 4 * slots
	}
	return size + len(b.defLevels) + len(b.repLevels)
}

// EncodePlain returns the uncompressed chunk payload: values stream, then
// definition levels, then repetition levels.
func (b *ChunkBuffer) EncodePlain() []byte {
	out := make([]byte, 0, b.PlainSize())
	switch b.def.PhysicalType {
	case schema.ByteArray, schema.FixedByteArray:
		slots := b.Slots()
		for i := 0; i < slots; i++ {
			v := b.Value(i)
			out = binary.LittleEndian.AppendUint32(out, uint32(len(v)))
			out = append(out, v...)
		}
	default:
		out = append(out, b.values...)
	}
	out = append(out, b.defLevels...)
	out = append(out, b.repLevels...)
	return out
}

// Encode produces the finished chunk using comp as the file codec.
func (b *ChunkBuffer) Encode(comp compression.Compressor) (EncodedChunk, error) {
	chunk := b.EncodeUncompressed()
	data, err := comp.Compress(chunk.Data)
	if err != nil {
		return EncodedChunk{}, flowerrors.Wrap(err, flowerrors.CodeInternal, "compress column chunk").
			WithDetail("column", b.def.Name)
	}
	chunk.Data = data
	return chunk, nil
}

// EncodeUncompressed is Encode without the codec step. The row group writer
// uses it to compress all chunks of a group together.
func (b *ChunkBuffer) EncodeUncompressed() EncodedChunk {
	plain := b.EncodePlain()
	return EncodedChunk{
		Data:             plain,
		UncompressedSize: len(plain),
		NumValues:        b.Slots(),
		RowCount:         b.rows,
		Stats:            b.Statistics(),
	}
}
