package sink

import (
	"encoding/binary"
	"math"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

// RecordBuilder encodes one row-major streaming record per a schema. Values
// are supplied column by column in schema order:
//
//	rb := sink.NewRecordBuilder(s)
//	rec, err := rb.Int64(ts).Float64(px).Null().List(2).Bytes(a).Bytes(b).Build()
//
// For a REPEATED column, List(n) announces n elements which the next n
// value calls supply; List(0) or Null() writes an empty list. The first
// mistake is kept and returned by Build.
type RecordBuilder struct {
	schema   *schema.Schema
	buf      []byte
	col      int
	listLeft int
	err      error
}

// NewRecordBuilder returns a builder for s.
func NewRecordBuilder(s *schema.Schema) *RecordBuilder {
	return &RecordBuilder{schema: s, buf: make([]byte, 0, s.MinRecordSize())}
}

// Reset starts a new record and keeps the buffer capacity.
func (b *RecordBuilder) Reset() *RecordBuilder {
	b.buf = b.buf[:0]
	b.col = 0
	b.listLeft = 0
	b.err = nil
	return b
}

// Build returns the encoded record. The slice is reused by the next Reset.
func (b *RecordBuilder) Build() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.listLeft > 0 {
		return nil, b.fail("column %q: %d list elements missing", b.schema.Column(b.col).Name, b.listLeft)
	}
	if b.col != b.schema.NumColumns() {
		return nil, b.fail("record has %d of %d columns", b.col, b.schema.NumColumns())
	}
	return b.buf, nil
}

func (b *RecordBuilder) fail(format string, args ...interface{}) error {
	if b.err == nil {
		b.err = flowerrors.Newf(flowerrors.CodeSchema, format, args...)
	}
	return b.err
}

// current returns the column the next call fills, or false after a failure.
func (b *RecordBuilder) current() (schema.ColumnDef, bool) {
	if b.err != nil {
		return schema.ColumnDef{}, false
	}
	if b.col >= b.schema.NumColumns() {
		b.fail("record already has all %d columns", b.schema.NumColumns())
		return schema.ColumnDef{}, false
	}
	return b.schema.Column(b.col), true
}

// check validates a value of n bytes for the current column and writes its
// presence byte.
func (b *RecordBuilder) check(pt schema.PhysicalType, n int) bool {
	col, ok := b.current()
	if !ok {
		return false
	}
	if col.PhysicalType != pt {
		b.fail("column %q is %s, got %s", col.Name, col.PhysicalType, pt)
		return false
	}
	if pt == schema.FixedByteArray && n != int(col.TypeLength) {
		b.fail("column %q: value of %d bytes, want %d", col.Name, n, col.TypeLength)
		return false
	}
	b.prefix(col)
	return b.err == nil
}

func (b *RecordBuilder) value(pt schema.PhysicalType, v []byte) *RecordBuilder {
	if !b.check(pt, len(v)) {
		return b
	}
	b.appendValue(pt, v)
	b.advance()
	return b
}

func (b *RecordBuilder) appendValue(pt schema.PhysicalType, v []byte) {
	if pt == schema.ByteArray {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(v)))
	}
	b.buf = append(b.buf, v...)
}

// Null writes a null for an OPTIONAL column or an empty list for a
// REPEATED one.
func (b *RecordBuilder) Null() *RecordBuilder {
	col, ok := b.current()
	if !ok {
		return b
	}
	if b.listLeft > 0 {
		b.fail("column %q: list elements cannot be null", col.Name)
		return b
	}
	switch col.Repetition {
	case schema.Required:
		b.fail("column %q is required", col.Name)
		return b
	case schema.Optional:
		b.buf = append(b.buf, 0)
		for i := 0; i < col.ValueWidth(); i++ {
			b.buf = append(b.buf, 0)
		}
	case schema.Repeated:
		b.buf = binary.LittleEndian.AppendUint32(b.buf, 0)
	}
	b.col++
	return b
}

// List starts a REPEATED column holding n elements.
func (b *RecordBuilder) List(n int) *RecordBuilder {
	col, ok := b.current()
	if !ok {
		return b
	}
	if b.listLeft > 0 {
		b.fail("column %q: nested lists are not supported", col.Name)
		return b
	}
	if col.Repetition != schema.Repeated {
		b.fail("column %q is not repeated", col.Name)
		return b
	}
	if n < 0 || uint64(n) > math.MaxUint32 {
		b.fail("column %q: invalid list length %d", col.Name, n)
		return b
	}
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(n))
	if n == 0 {
		b.col++
		return b
	}
	b.listLeft = n
	return b
}

// Bool writes a BOOL value.
func (b *RecordBuilder) Bool(v bool) *RecordBuilder {
	var x [1]byte
	if v {
		x[0] = 1
	}
	return b.value(schema.Boolean, x[:])
}

// Int32 writes an I32 value.
func (b *RecordBuilder) Int32(v int32) *RecordBuilder {
	var x [4]byte
	binary.LittleEndian.PutUint32(x[:], uint32(v))
	return b.value(schema.Int32, x[:])
}

// Int64 writes an I64 value.
func (b *RecordBuilder) Int64(v int64) *RecordBuilder {
	var x [8]byte
	binary.LittleEndian.PutUint64(x[:], uint64(v))
	return b.value(schema.Int64, x[:])
}

// Int96 writes an I96 value.
func (b *RecordBuilder) Int96(v [12]byte) *RecordBuilder {
	return b.value(schema.Int96, v[:])
}

// Float32 writes an F32 value.
func (b *RecordBuilder) Float32(v float32) *RecordBuilder {
	var x [4]byte
	binary.LittleEndian.PutUint32(x[:], math.Float32bits(v))
	return b.value(schema.Float, x[:])
}

// Float64 writes an F64 value.
func (b *RecordBuilder) Float64(v float64) *RecordBuilder {
	var x [8]byte
	binary.LittleEndian.PutUint64(x[:], math.Float64bits(v))
	return b.value(schema.Double, x[:])
}

// Bytes writes a BYTE_ARRAY value.
func (b *RecordBuilder) Bytes(v []byte) *RecordBuilder {
	return b.value(schema.ByteArray, v)
}

// String writes a BYTE_ARRAY value without converting v to a slice.
func (b *RecordBuilder) String(v string) *RecordBuilder {
	if !b.check(schema.ByteArray, len(v)) {
		return b
	}
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(v)))
	b.buf = append(b.buf, v...)
	b.advance()
	return b
}

// prefix writes the presence byte of an OPTIONAL value or rejects a value
// for a REPEATED column outside a list.
func (b *RecordBuilder) prefix(col schema.ColumnDef) {
	if b.listLeft > 0 {
		return
	}
	switch col.Repetition {
	case schema.Optional:
		b.buf = append(b.buf, 1)
	case schema.Repeated:
		b.fail("column %q is repeated, call List first", col.Name)
	}
}

func (b *RecordBuilder) advance() {
	if b.listLeft > 0 {
		if b.listLeft--; b.listLeft > 0 {
			return
		}
	}
	b.col++
}

// Fixed writes a FIXED_BYTE_ARRAY value of exactly type_length bytes.
func (b *RecordBuilder) Fixed(v []byte) *RecordBuilder {
	return b.value(schema.FixedByteArray, v)
}
