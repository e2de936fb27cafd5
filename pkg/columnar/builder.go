package columnar

import (
	"math"

	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

// Builder assembles a ColumnInput one row at a time. The streaming sink
// uses one per column while staging records for the next row group.
type Builder struct {
	def   schema.ColumnDef
	width int
	rows  int
	in    ColumnInput
}

// NewBuilder returns an empty builder for def.
func NewBuilder(def schema.ColumnDef) *Builder {
	b := &Builder{def: def, width: def.ValueWidth()}
	b.Reset()
	return b
}

// Reset drops staged rows and keeps capacity.
func (b *Builder) Reset() {
	b.rows = 0
	b.in.Values = b.in.Values[:0]
	if b.def.PhysicalType == schema.ByteArray {
		b.in.Offsets = append(b.in.Offsets[:0], 0)
	}
	if b.def.HasDefLevels() {
		b.in.DefLevels = b.in.DefLevels[:0]
	}
	if b.def.HasRepLevels() {
		b.in.RepLevels = b.in.RepLevels[:0]
	}
}

// Rows returns the number of staged rows.
func (b *Builder) Rows() int { return b.rows }

// Room returns how many more value bytes a BYTE_ARRAY builder can stage
// before its offsets would overflow. Other types have no such limit.
func (b *Builder) Room() uint64 {
	if b.def.PhysicalType != schema.ByteArray {
		return math.MaxUint64
	}
	if n := uint64(len(b.in.Values)); n < maxChunkBytes {
		return maxChunkBytes - n
	}
	return 0
}

func (b *Builder) slot(v []byte, def, rep uint8) {
	if b.def.PhysicalType == schema.ByteArray {
		b.in.Values = append(b.in.Values, v...)
		b.in.Offsets = append(b.in.Offsets, uint32(len(b.in.Values)))
	} else if def == 0 {
		for i := 0; i < b.width; i++ {
			b.in.Values = append(b.in.Values, 0)
		}
	} else {
		b.in.Values = append(b.in.Values, v...)
	}
	if b.def.HasDefLevels() {
		b.in.DefLevels = append(b.in.DefLevels, def)
	}
	if b.def.HasRepLevels() {
		b.in.RepLevels = append(b.in.RepLevels, rep)
	}
}

// Value stages one row holding v. For fixed-width columns v must be exactly
// the value width; the caller has already checked it.
func (b *Builder) Value(v []byte) {
	b.slot(v, 1, 0)
	b.rows++
}

// Null stages one null row, or an empty list for a REPEATED column.
func (b *Builder) Null() {
	b.slot(nil, 0, 0)
	b.rows++
}

// List stages one REPEATED row holding the given elements.
func (b *Builder) List(elems [][]byte) {
	if len(elems) == 0 {
		b.Null()
		return
	}
	for i, e := range elems {
		var rep uint8
		if i > 0 {
			rep = 1
		}
		b.slot(e, 1, rep)
	}
	b.rows++
}

// ListElement stages one element of a REPEATED row without building the
// whole list first. first starts a new row.
func (b *Builder) ListElement(v []byte, first bool) {
	if first {
		b.slot(v, 1, 0)
		b.rows++
		return
	}
	b.slot(v, 1, 1)
}

// Input returns a view of the staged data. It is valid until the next
// call that mutates the builder.
func (b *Builder) Input() ColumnInput {
	return b.in
}
