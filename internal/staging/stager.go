// Package staging transcodes row-major sink records into per-column inputs
// for the next row group.
//
// A record holds, for each column in schema order:
//
//	REQUIRED fixed width   value bytes
//	REQUIRED BYTE_ARRAY    u32 length, bytes
//	OPTIONAL               presence byte (0 or 1), then the value as above;
//	                       a null fixed-width value still carries its width
//	                       in ignored bytes, a null BYTE_ARRAY carries nothing
//	REPEATED               u32 element count, then each element as above
//
// Integers are little-endian. A record with truncated fields or trailing
// bytes is malformed.
package staging

import (
	"encoding/binary"

	"github.com/ajitpratap0/parquetflow/pkg/columnar"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

// Stager accumulates decoded records column by column. It is owned by the
// sink's consumer goroutine.
type Stager struct {
	schema   *schema.Schema
	builders []*columnar.Builder
	inputs   []columnar.ColumnInput
	pending  []uint64
	room     func(col int) uint64
}

// New returns an empty stager for s.
func New(s *schema.Schema) *Stager {
	st := &Stager{
		schema:   s,
		builders: make([]*columnar.Builder, s.NumColumns()),
		inputs:   make([]columnar.ColumnInput, s.NumColumns()),
		pending:  make([]uint64, s.NumColumns()),
	}
	for i := range st.builders {
		st.builders[i] = columnar.NewBuilder(s.Column(i))
	}
	st.room = func(col int) uint64 { return st.builders[col].Room() }
	return st
}

// Rows returns the number of staged rows.
func (st *Stager) Rows() int {
	return st.builders[0].Rows()
}

// Append decodes rec and stages it as the next row. A malformed record is
// rejected with CodeSchema and nothing is staged. A record whose BYTE_ARRAY
// values would not fit the staged chunk is rejected with
// CodeInvalidArgument; it may fit once the staged rows are written.
func (st *Stager) Append(rec []byte) error {
	if err := st.walk(rec, false); err != nil {
		return err
	}
	// The first pass proved the record well formed.
	_ = st.walk(rec, true)
	return nil
}

// Inputs returns the staged columns. The slices alias stager storage and
// stay valid until the next Append or Reset.
func (st *Stager) Inputs() []columnar.ColumnInput {
	for i, b := range st.builders {
		st.inputs[i] = b.Input()
	}
	return st.inputs
}

// Reset drops all staged rows.
func (st *Stager) Reset() {
	for _, b := range st.builders {
		b.Reset()
	}
}

func malformed(col schema.ColumnDef, format string, args ...interface{}) error {
	return flowerrors.Newf(flowerrors.CodeSchema, format, args...).WithDetail("column", col.Name)
}

// walk parses rec. With apply false it only validates; with apply true it
// also stages every field.
func (st *Stager) walk(rec []byte, apply bool) error {
	pos := 0
	for i := range st.pending {
		st.pending[i] = 0
	}
	for i := 0; i < st.schema.NumColumns(); i++ {
		col := st.schema.Column(i)
		b := st.builders[i]

		switch col.Repetition {
		case schema.Required:
			v, n, err := st.readLimited(i, col, rec[pos:], apply)
			if err != nil {
				return err
			}
			pos += n
			if apply {
				b.Value(v)
			}

		case schema.Optional:
			if pos >= len(rec) {
				return malformed(col, "column %q: missing presence byte", col.Name)
			}
			present := rec[pos]
			pos++
			switch present {
			case 1:
				v, n, err := st.readLimited(i, col, rec[pos:], apply)
				if err != nil {
					return err
				}
				pos += n
				if apply {
					b.Value(v)
				}
			case 0:
				if w := col.ValueWidth(); w > 0 {
					if len(rec)-pos < w {
						return malformed(col, "column %q: truncated null placeholder", col.Name)
					}
					pos += w
				}
				if apply {
					b.Null()
				}
			default:
				return malformed(col, "column %q: presence byte %d", col.Name, present)
			}

		case schema.Repeated:
			if len(rec)-pos < 4 {
				return malformed(col, "column %q: missing element count", col.Name)
			}
			count := int(binary.LittleEndian.Uint32(rec[pos:]))
			pos += 4
			if count == 0 {
				if apply {
					b.Null()
				}
				continue
			}
			for e := 0; e < count; e++ {
				v, n, err := st.readLimited(i, col, rec[pos:], apply)
				if err != nil {
					return err
				}
				pos += n
				if apply {
					b.ListElement(v, e == 0)
				}
			}
		}
	}
	if pos != len(rec) {
		return flowerrors.Newf(flowerrors.CodeSchema, "record has %d trailing bytes", len(rec)-pos)
	}
	return nil
}

// readLimited reads one value of column i. While validating it also checks
// that the record's values fit the room left in the column's chunk.
func (st *Stager) readLimited(i int, col schema.ColumnDef, p []byte, apply bool) ([]byte, int, error) {
	v, n, err := readValue(col, p)
	if err != nil || apply || col.PhysicalType != schema.ByteArray {
		return v, n, err
	}
	st.pending[i] += uint64(len(v))
	if st.pending[i] > st.room(i) {
		return nil, 0, flowerrors.Newf(flowerrors.CodeInvalidArgument,
			"column %q: staged values would exceed the chunk size limit", col.Name).WithDetail("column", col.Name)
	}
	return v, n, nil
}

// readValue returns one value from the front of p and the bytes it spans.
func readValue(col schema.ColumnDef, p []byte) ([]byte, int, error) {
	if col.PhysicalType == schema.ByteArray {
		if len(p) < 4 {
			return nil, 0, malformed(col, "column %q: missing length prefix", col.Name)
		}
		n := binary.LittleEndian.Uint32(p)
		if uint64(n) > uint64(len(p)-4) {
			return nil, 0, malformed(col, "column %q: value of %d bytes overruns record", col.Name, n)
		}
		return p[4 : 4+n], 4 + int(n), nil
	}

	w := col.ValueWidth()
	if len(p) < w {
		return nil, 0, malformed(col, "column %q: truncated %s value", col.Name, col.PhysicalType)
	}
	if col.PhysicalType == schema.Boolean && p[0] > 1 {
		return nil, 0, malformed(col, "column %q: boolean byte %d", col.Name, p[0])
	}
	return p[:w], w, nil
}
