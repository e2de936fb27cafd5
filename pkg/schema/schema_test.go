package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

func TestDefine(t *testing.T) {
	tests := []struct {
		name    string
		columns []ColumnDef
		wantErr flowerrors.Code
	}{
		{
			name:    "empty",
			columns: nil,
			wantErr: flowerrors.CodeInvalidArgument,
		},
		{
			name: "duplicate names",
			columns: []ColumnDef{
				{Name: "id", PhysicalType: Int64},
				{Name: "id", PhysicalType: Int32},
			},
			wantErr: flowerrors.CodeInvalidArgument,
		},
		{
			name:    "fixed without length",
			columns: []ColumnDef{{Name: "hash", PhysicalType: FixedByteArray}},
			wantErr: flowerrors.CodeInvalidArgument,
		},
		{
			name:    "length on non fixed",
			columns: []ColumnDef{{Name: "px", PhysicalType: Double, TypeLength: 8}},
			wantErr: flowerrors.CodeInvalidArgument,
		},
		{
			name:    "bad type code",
			columns: []ColumnDef{{Name: "x", PhysicalType: PhysicalType(42)}},
			wantErr: flowerrors.CodeInvalidArgument,
		},
		{
			name:    "bad repetition code",
			columns: []ColumnDef{{Name: "x", PhysicalType: Int32, Repetition: Repetition(9)}},
			wantErr: flowerrors.CodeInvalidArgument,
		},
		{
			name: "valid",
			columns: []ColumnDef{
				{Name: "id", PhysicalType: Int64},
				{Name: "name", PhysicalType: ByteArray, Repetition: Optional},
				{Name: "hash", PhysicalType: FixedByteArray, TypeLength: 16},
				{Name: "tags", PhysicalType: ByteArray, Repetition: Repeated},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Define(tt.columns)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, flowerrors.CodeOf(err))
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.columns), s.NumColumns())
		})
	}
}

func TestSchemaIsFrozen(t *testing.T) {
	cols := []ColumnDef{{Name: "id", PhysicalType: Int64}}
	s, err := Define(cols)
	require.NoError(t, err)

	cols[0].Name = "changed"
	assert.Equal(t, "id", s.Column(0).Name)

	out := s.Columns()
	out[0].Name = "changed"
	assert.Equal(t, "id", s.Column(0).Name)

	i, ok := s.Lookup("id")
	assert.True(t, ok)
	assert.Equal(t, 0, i)
}

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddColumn(ColumnDef{Name: "ts", PhysicalType: Int64}))
	require.NoError(t, b.AddColumn(ColumnDef{Name: "px", PhysicalType: Double}))

	err := b.AddColumn(ColumnDef{Name: "px", PhysicalType: Double})
	assert.Equal(t, flowerrors.CodeInvalidArgument, flowerrors.CodeOf(err))

	s, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 2, s.NumColumns())

	err = b.AddColumn(ColumnDef{Name: "qty", PhysicalType: Int32})
	assert.Equal(t, flowerrors.CodeSchema, flowerrors.CodeOf(err))

	again, err := b.Build()
	require.NoError(t, err)
	assert.Same(t, s, again)
}

func TestRecordSizes(t *testing.T) {
	fixed := MustDefine(
		ColumnDef{Name: "ts", PhysicalType: Int64},
		ColumnDef{Name: "px", PhysicalType: Double, Repetition: Optional},
		ColumnDef{Name: "side", PhysicalType: Boolean},
		ColumnDef{Name: "venue", PhysicalType: FixedByteArray, TypeLength: 4},
	)
	size, ok := fixed.FixedRecordSize()
	assert.True(t, ok)
	assert.Equal(t, 8+1+8+1+4, size)
	assert.Equal(t, size, fixed.MinRecordSize())

	variable := MustDefine(
		ColumnDef{Name: "sym", PhysicalType: ByteArray},
		ColumnDef{Name: "levels", PhysicalType: Double, Repetition: Repeated},
	)
	_, ok = variable.FixedRecordSize()
	assert.False(t, ok)
	assert.Equal(t, 8, variable.MinRecordSize())
}

func TestParse(t *testing.T) {
	pt, err := ParsePhysicalType("double")
	require.NoError(t, err)
	assert.Equal(t, Double, pt)

	_, err = ParsePhysicalType("decimal")
	assert.Equal(t, flowerrors.CodeInvalidArgument, flowerrors.CodeOf(err))

	rep, err := ParseRepetition("nullable")
	require.NoError(t, err)
	assert.Equal(t, Optional, rep)

	assert.Equal(t, "FIXED_BYTE_ARRAY", FixedByteArray.String())
	assert.Equal(t, "REPEATED", Repeated.String())
}

func TestEqual(t *testing.T) {
	a := MustDefine(ColumnDef{Name: "id", PhysicalType: Int64})
	b := MustDefine(ColumnDef{Name: "id", PhysicalType: Int64})
	c := MustDefine(ColumnDef{Name: "id", PhysicalType: Int32})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
