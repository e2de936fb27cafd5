package schema

import "github.com/ajitpratap0/parquetflow/pkg/flowerrors"

// Builder accumulates columns one at a time and freezes them with Build.
// Once built, any further AddColumn fails with CodeSchema.
type Builder struct {
	columns []ColumnDef
	frozen  *Schema
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddColumn appends a column. The definition is checked immediately so the
// caller learns which column is wrong.
func (b *Builder) AddColumn(def ColumnDef) error {
	if b.frozen != nil {
		return flowerrors.New(flowerrors.CodeSchema, "schema already frozen").
			WithDetail("column", def.Name)
	}
	if err := def.Validate(); err != nil {
		return err
	}
	for _, c := range b.columns {
		if c.Name == def.Name {
			return flowerrors.Newf(flowerrors.CodeInvalidArgument, "duplicate column name %q", def.Name)
		}
	}
	b.columns = append(b.columns, def)
	return nil
}

// Len returns the number of columns added so far.
func (b *Builder) Len() int {
	return len(b.columns)
}

// Build validates and freezes the schema. Calling Build again returns the
// same schema.
func (b *Builder) Build() (*Schema, error) {
	if b.frozen != nil {
		return b.frozen, nil
	}
	s, err := Define(b.columns)
	if err != nil {
		return nil, err
	}
	b.frozen = s
	return s, nil
}
