package sink

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/parquetflow/internal/staging"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

var allTypes = schema.MustDefine(
	schema.ColumnDef{Name: "b", PhysicalType: schema.Boolean},
	schema.ColumnDef{Name: "i32", PhysicalType: schema.Int32, Repetition: schema.Optional},
	schema.ColumnDef{Name: "i96", PhysicalType: schema.Int96},
	schema.ColumnDef{Name: "f32", PhysicalType: schema.Float},
	schema.ColumnDef{Name: "hash", PhysicalType: schema.FixedByteArray, Repetition: schema.Optional, TypeLength: 4},
	schema.ColumnDef{Name: "sizes", PhysicalType: schema.Int64, Repetition: schema.Repeated},
	schema.ColumnDef{Name: "raw", PhysicalType: schema.ByteArray},
)

func TestRecordBuilderLayout(t *testing.T) {
	rb := NewRecordBuilder(allTypes)
	var i96 [12]byte
	i96[0] = 7

	rec, err := rb.Bool(true).
		Int32(-2).
		Int96(i96).
		Float32(1.5).
		Null().
		List(2).Int64(10).Int64(20).
		Bytes([]byte("xy")).
		Build()
	require.NoError(t, err)

	var want []byte
	want = append(want, 1)
	want = append(want, 1)
	want = binary.LittleEndian.AppendUint32(want, uint32(0xfffffffe))
	want = append(want, i96[:]...)
	want = binary.LittleEndian.AppendUint32(want, math.Float32bits(1.5))
	want = append(want, 0, 0, 0, 0, 0)
	want = binary.LittleEndian.AppendUint32(want, 2)
	want = binary.LittleEndian.AppendUint64(want, 10)
	want = binary.LittleEndian.AppendUint64(want, 20)
	want = binary.LittleEndian.AppendUint32(want, 2)
	want = append(want, "xy"...)
	assert.Equal(t, want, rec)

	st := staging.New(allTypes)
	require.NoError(t, st.Append(rec))
	in := st.Inputs()
	assert.Equal(t, []uint8{1}, in[1].DefLevels)
	assert.Equal(t, []uint8{0}, in[4].DefLevels)
	assert.Equal(t, []uint8{0, 1}, in[5].RepLevels)
}

func TestRecordBuilderEmptyListAndReset(t *testing.T) {
	rb := NewRecordBuilder(allTypes)
	build := func() ([]byte, error) {
		return rb.Reset().Bool(false).Null().Int96([12]byte{}).Float32(0).
			Fixed([]byte("abcd")).List(0).String("").Build()
	}
	first, err := build()
	require.NoError(t, err)
	firstCopy := append([]byte(nil), first...)

	second, err := build()
	require.NoError(t, err)
	assert.Equal(t, firstCopy, second)

	st := staging.New(allTypes)
	require.NoError(t, st.Append(second))
	assert.Equal(t, []uint8{0}, st.Inputs()[5].DefLevels)
}

func TestRecordBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(*RecordBuilder) *RecordBuilder
	}{
		{"wrong type", func(rb *RecordBuilder) *RecordBuilder { return rb.Int64(1) }},
		{"null for required", func(rb *RecordBuilder) *RecordBuilder { return rb.Null() }},
		{"missing columns", func(rb *RecordBuilder) *RecordBuilder { return rb.Bool(true) }},
		{"value for repeated without list", func(rb *RecordBuilder) *RecordBuilder {
			return rb.Bool(true).Null().Int96([12]byte{}).Float32(0).Null().Int64(1)
		}},
		{"list on optional", func(rb *RecordBuilder) *RecordBuilder { return rb.Bool(true).List(1) }},
		{"short list", func(rb *RecordBuilder) *RecordBuilder {
			return rb.Bool(true).Null().Int96([12]byte{}).Float32(0).Null().List(2).Int64(1)
		}},
		{"null list element", func(rb *RecordBuilder) *RecordBuilder {
			return rb.Bool(true).Null().Int96([12]byte{}).Float32(0).Null().List(2).Null()
		}},
		{"fixed width mismatch", func(rb *RecordBuilder) *RecordBuilder {
			return rb.Bool(true).Null().Int96([12]byte{}).Float32(0).Fixed([]byte("abc"))
		}},
		{"too many columns", func(rb *RecordBuilder) *RecordBuilder {
			return rb.Bool(true).Null().Int96([12]byte{}).Float32(0).Null().List(0).String("x").String("y")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build(NewRecordBuilder(allTypes)).Build()
			require.Error(t, err)
			assert.Equal(t, flowerrors.CodeSchema, flowerrors.CodeOf(err))
		})
	}
}

func TestRecordBuilderKeepsFirstError(t *testing.T) {
	rb := NewRecordBuilder(allTypes)
	_, err := rb.Int32(1).Bool(true).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "b" is BOOL, got I32`)
}
