// Package schema declares the column model shared by the batch writer and the
// streaming sink. A Schema is an ordered, immutable list of column
// definitions; it is validated once by Define and never reordered.
package schema

import (
	"fmt"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

// PhysicalType is the storage type of a column. The numeric values are the
// codes written to the file footer.
type PhysicalType uint8

const (
	Boolean        PhysicalType = 0
	Int32          PhysicalType = 1
	Int64          PhysicalType = 2
	Int96          PhysicalType = 3
	Float          PhysicalType = 4
	Double         PhysicalType = 5
	ByteArray      PhysicalType = 6
	FixedByteArray PhysicalType = 7
)

var physicalTypeNames = map[PhysicalType]string{
	Boolean:        "BOOL",
	Int32:          "I32",
	Int64:          "I64",
	Int96:          "I96",
	Float:          "F32",
	Double:         "F64",
	ByteArray:      "BYTE_ARRAY",
	FixedByteArray: "FIXED_BYTE_ARRAY",
}

// String returns the canonical type name.
func (t PhysicalType) String() string {
	if name, ok := physicalTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PhysicalType(%d)", uint8(t))
}

// Valid reports whether t is one of the declared physical types.
func (t PhysicalType) Valid() bool {
	_, ok := physicalTypeNames[t]
	return ok
}

// Width returns the fixed byte width of a value, or 0 for variable-length
// byte arrays. FixedByteArray width comes from the column's TypeLength.
func (t PhysicalType) Width() int {
	switch t {
	case Boolean:
		return 1
	case Int32, Float:
		return 4
	case Int64, Double:
		return 8
	case Int96:
		return 12
	default:
		return 0
	}
}

// ParsePhysicalType accepts the canonical names plus a few common aliases
// used in configuration files.
func ParsePhysicalType(s string) (PhysicalType, error) {
	switch s {
	case "BOOL", "BOOLEAN", "bool", "boolean":
		return Boolean, nil
	case "I32", "INT32", "i32", "int32":
		return Int32, nil
	case "I64", "INT64", "i64", "int64":
		return Int64, nil
	case "I96", "INT96", "i96", "int96":
		return Int96, nil
	case "F32", "FLOAT", "f32", "float", "float32":
		return Float, nil
	case "F64", "DOUBLE", "f64", "double", "float64":
		return Double, nil
	case "BYTE_ARRAY", "byte_array", "bytes", "string":
		return ByteArray, nil
	case "FIXED_BYTE_ARRAY", "FIXED_LEN_BYTE_ARRAY", "fixed_byte_array", "fixed":
		return FixedByteArray, nil
	}
	return 0, flowerrors.Newf(flowerrors.CodeInvalidArgument, "unknown physical type %q", s)
}

// Repetition describes whether a column may be null or hold a list.
type Repetition uint8

const (
	Required Repetition = 0
	Optional Repetition = 1
	Repeated Repetition = 2
)

// String returns the canonical repetition name.
func (r Repetition) String() string {
	switch r {
	case Required:
		return "REQUIRED"
	case Optional:
		return "OPTIONAL"
	case Repeated:
		return "REPEATED"
	}
	return fmt.Sprintf("Repetition(%d)", uint8(r))
}

// Valid reports whether r is one of the declared repetition kinds.
func (r Repetition) Valid() bool {
	return r <= Repeated
}

// ParseRepetition parses a repetition name.
func ParseRepetition(s string) (Repetition, error) {
	switch s {
	case "", "REQUIRED", "required":
		return Required, nil
	case "OPTIONAL", "optional", "nullable":
		return Optional, nil
	case "REPEATED", "repeated", "list":
		return Repeated, nil
	}
	return 0, flowerrors.Newf(flowerrors.CodeInvalidArgument, "unknown repetition %q", s)
}

// ColumnDef declares one column.
type ColumnDef struct {
	Name         string
	PhysicalType PhysicalType
	Repetition   Repetition
	// TypeLength is the value width of a FixedByteArray column and must be
	// zero for every other type.
	TypeLength uint32
}

// ValueWidth returns the fixed byte width of one value, 0 for ByteArray.
func (c ColumnDef) ValueWidth() int {
	if c.PhysicalType == FixedByteArray {
		return int(c.TypeLength)
	}
	return c.PhysicalType.Width()
}

// HasDefLevels reports whether chunks of this column carry definition levels.
func (c ColumnDef) HasDefLevels() bool {
	return c.Repetition != Required
}

// HasRepLevels reports whether chunks of this column carry repetition levels.
func (c ColumnDef) HasRepLevels() bool {
	return c.Repetition == Repeated
}

// Validate checks a single column definition in isolation.
func (c ColumnDef) Validate() error {
	if c.Name == "" {
		return flowerrors.New(flowerrors.CodeInvalidArgument, "column name is empty")
	}
	if !c.PhysicalType.Valid() {
		return flowerrors.Newf(flowerrors.CodeInvalidArgument, "column %q: invalid physical type %d", c.Name, c.PhysicalType)
	}
	if !c.Repetition.Valid() {
		return flowerrors.Newf(flowerrors.CodeInvalidArgument, "column %q: invalid repetition %d", c.Name, c.Repetition)
	}
	if c.PhysicalType == FixedByteArray && c.TypeLength == 0 {
		return flowerrors.Newf(flowerrors.CodeInvalidArgument, "column %q: FIXED_BYTE_ARRAY requires type_length > 0", c.Name)
	}
	if c.PhysicalType != FixedByteArray && c.TypeLength != 0 {
		return flowerrors.Newf(flowerrors.CodeInvalidArgument, "column %q: type_length must be 0 for %s", c.Name, c.PhysicalType)
	}
	return nil
}

// Schema is an ordered, immutable sequence of column definitions.
type Schema struct {
	columns []ColumnDef
	index   map[string]int
}

// Define validates columns and returns a frozen Schema. It fails with
// CodeInvalidArgument on an empty list, duplicate names, or a type_length
// inconsistent with the physical type.
func Define(columns []ColumnDef) (*Schema, error) {
	if len(columns) == 0 {
		return nil, flowerrors.New(flowerrors.CodeInvalidArgument, "schema has no columns")
	}

	s := &Schema{
		columns: make([]ColumnDef, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if err := col.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[col.Name]; dup {
			return nil, flowerrors.Newf(flowerrors.CodeInvalidArgument, "duplicate column name %q", col.Name)
		}
		s.index[col.Name] = i
		s.columns[i] = col
	}
	return s, nil
}

// MustDefine is Define for static schemas in tests and examples.
func MustDefine(columns ...ColumnDef) *Schema {
	s, err := Define(columns)
	if err != nil {
		panic(err)
	}
	return s
}

// NumColumns returns the number of columns.
func (s *Schema) NumColumns() int {
	return len(s.columns)
}

// Column returns the i-th column definition.
func (s *Schema) Column(i int) ColumnDef {
	return s.columns[i]
}

// Columns returns a copy of the column definitions.
func (s *Schema) Columns() []ColumnDef {
	out := make([]ColumnDef, len(s.columns))
	copy(out, s.columns)
	return out
}

// Lookup returns the index of the named column.
func (s *Schema) Lookup(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Equal reports whether two schemas declare identical columns in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.columns) != len(other.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != other.columns[i] {
			return false
		}
	}
	return true
}

// FixedRecordSize returns the byte size of a streaming record when every
// column has a fixed width and none repeats. ok is false otherwise.
func (s *Schema) FixedRecordSize() (size int, ok bool) {
	for _, col := range s.columns {
		if col.PhysicalType == ByteArray || col.Repetition == Repeated {
			return 0, false
		}
		if col.Repetition == Optional {
			size++
		}
		size += col.ValueWidth()
	}
	return size, true
}

// MinRecordSize returns the smallest possible streaming record for the schema.
func (s *Schema) MinRecordSize() int {
	size := 0
	for _, col := range s.columns {
		switch col.Repetition {
		case Required:
			if col.PhysicalType == ByteArray {
				size += 4
			} else {
				size += col.ValueWidth()
			}
		case Optional:
			size++
			if col.PhysicalType != ByteArray {
				size += col.ValueWidth()
			}
		case Repeated:
			size += 4
		}
	}
	return size
}
