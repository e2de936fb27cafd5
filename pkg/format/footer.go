package format

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ajitpratap0/parquetflow/pkg/compression"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

const (
	// Magic opens and closes every file.
	Magic = "PFL1"
	// FormatVersion is written into every footer.
	FormatVersion = 1

	// trailerSize is footer length, footer checksum and the closing magic.
	trailerSize = 4 + 8 + len(Magic)
)

// ChunkMeta locates and summarizes one column chunk.
type ChunkMeta struct {
	Offset           int64  `json:"offset"`
	CompressedSize   int64  `json:"compressed_size"`
	UncompressedSize int64  `json:"uncompressed_size"`
	NumValues        int64  `json:"num_values"`
	NullCount        int64  `json:"null_count"`
	Min              []byte `json:"min,omitempty"`
	Max              []byte `json:"max,omitempty"`
	HasStats         bool   `json:"has_stats"`
}

// RowGroupMeta describes one row group.
type RowGroupMeta struct {
	Offset     int64       `json:"offset"`
	TotalBytes int64       `json:"total_bytes"`
	NumRows    int64       `json:"num_rows"`
	Columns    []ChunkMeta `json:"columns"`
}

// FileMetadata is the footer of a finished file.
type FileMetadata struct {
	Version   uint32             `json:"version"`
	CreatedBy string             `json:"created_by"`
	FileID    string             `json:"file_id"`
	Codec     compression.Codec  `json:"codec"`
	NumRows   int64              `json:"num_rows"`
	Columns   []schema.ColumnDef `json:"columns"`
	RowGroups []RowGroupMeta     `json:"row_groups"`
}

// Schema rebuilds the validated schema recorded in the footer.
func (m *FileMetadata) Schema() (*schema.Schema, error) {
	return schema.Define(m.Columns)
}

// Clone returns a deep copy.
func (m *FileMetadata) Clone() *FileMetadata {
	out := *m
	out.Columns = append([]schema.ColumnDef(nil), m.Columns...)
	out.RowGroups = make([]RowGroupMeta, len(m.RowGroups))
	for i, rg := range m.RowGroups {
		rg.Columns = append([]ChunkMeta(nil), rg.Columns...)
		out.RowGroups[i] = rg
	}
	return &out
}

// Footer field numbers.
const (
	fileVersion   protowire.Number = 1
	fileCreatedBy protowire.Number = 2
	fileID        protowire.Number = 3
	fileCodec     protowire.Number = 4
	fileNumRows   protowire.Number = 5
	fileColumn    protowire.Number = 6
	fileRowGroup  protowire.Number = 7

	colName       protowire.Number = 1
	colType       protowire.Number = 2
	colRepetition protowire.Number = 3
	colTypeLength protowire.Number = 4

	rgOffset     protowire.Number = 1
	rgTotalBytes protowire.Number = 2
	rgNumRows    protowire.Number = 3
	rgChunk      protowire.Number = 4

	chunkOffset           protowire.Number = 1
	chunkCompressedSize   protowire.Number = 2
	chunkUncompressedSize protowire.Number = 3
	chunkNumValues        protowire.Number = 4
	chunkNullCount        protowire.Number = 5
	chunkMin              protowire.Number = 6
	chunkMax              protowire.Number = 7
	chunkHasStats         protowire.Number = 8
)

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// MarshalFooter encodes m in the footer wire format.
func MarshalFooter(m *FileMetadata) []byte {
	var b []byte
	b = appendVarintField(b, fileVersion, uint64(m.Version))
	b = appendBytesField(b, fileCreatedBy, []byte(m.CreatedBy))
	b = appendBytesField(b, fileID, []byte(m.FileID))
	b = appendVarintField(b, fileCodec, uint64(m.Codec))
	b = appendVarintField(b, fileNumRows, uint64(m.NumRows))

	for _, c := range m.Columns {
		var cb []byte
		cb = appendBytesField(cb, colName, []byte(c.Name))
		cb = appendVarintField(cb, colType, uint64(c.PhysicalType))
		cb = appendVarintField(cb, colRepetition, uint64(c.Repetition))
		cb = appendVarintField(cb, colTypeLength, uint64(c.TypeLength))
		b = appendBytesField(b, fileColumn, cb)
	}

	for _, rg := range m.RowGroups {
		var rb []byte
		rb = appendVarintField(rb, rgOffset, uint64(rg.Offset))
		rb = appendVarintField(rb, rgTotalBytes, uint64(rg.TotalBytes))
		rb = appendVarintField(rb, rgNumRows, uint64(rg.NumRows))
		for _, ch := range rg.Columns {
			var kb []byte
			kb = appendVarintField(kb, chunkOffset, uint64(ch.Offset))
			kb = appendVarintField(kb, chunkCompressedSize, uint64(ch.CompressedSize))
			kb = appendVarintField(kb, chunkUncompressedSize, uint64(ch.UncompressedSize))
			kb = appendVarintField(kb, chunkNumValues, uint64(ch.NumValues))
			kb = appendVarintField(kb, chunkNullCount, uint64(ch.NullCount))
			if ch.HasStats {
				kb = appendBytesField(kb, chunkMin, ch.Min)
				kb = appendBytesField(kb, chunkMax, ch.Max)
				kb = appendVarintField(kb, chunkHasStats, 1)
			}
			rb = appendBytesField(rb, rgChunk, kb)
		}
		b = appendBytesField(b, fileRowGroup, rb)
	}
	return b
}

// AppendTrailer appends the footer length, checksum and closing magic.
func AppendTrailer(b []byte, footer []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(footer)))
	b = binary.LittleEndian.AppendUint64(b, xxhash.Sum64(footer))
	return append(b, Magic...)
}

func footerError(format string, args ...interface{}) error {
	return flowerrors.Newf(flowerrors.CodeIO, "corrupt footer: "+format, args...)
}

// walkFields calls fn for every field of one message.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return footerError("bad tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			x, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return footerError("field %d: %v", num, protowire.ParseError(m))
			}
			if err := fn(num, typ, nil, x); err != nil {
				return err
			}
			b = b[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return footerError("field %d: %v", num, protowire.ParseError(m))
			}
			if err := fn(num, typ, v, 0); err != nil {
				return err
			}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return footerError("field %d: %v", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return nil
}

// UnmarshalFooter decodes a footer produced by MarshalFooter. Unknown fields
// are skipped.
func UnmarshalFooter(b []byte) (*FileMetadata, error) {
	m := &FileMetadata{}
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, v []byte, x uint64) error {
		switch num {
		case fileVersion:
			m.Version = uint32(x)
		case fileCreatedBy:
			m.CreatedBy = string(v)
		case fileID:
			m.FileID = string(v)
		case fileCodec:
			m.Codec = compression.Codec(x)
		case fileNumRows:
			m.NumRows = int64(x)
		case fileColumn:
			c, err := unmarshalColumn(v)
			if err != nil {
				return err
			}
			m.Columns = append(m.Columns, c)
		case fileRowGroup:
			rg, err := unmarshalRowGroup(v)
			if err != nil {
				return err
			}
			m.RowGroups = append(m.RowGroups, rg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Version != FormatVersion {
		return nil, footerError("unsupported format version %d", m.Version)
	}
	if !m.Codec.Valid() {
		return nil, footerError("unknown codec id %d", m.Codec)
	}
	if _, err := m.Schema(); err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeIO, "corrupt footer schema")
	}
	for i, rg := range m.RowGroups {
		if len(rg.Columns) != len(m.Columns) {
			return nil, footerError("row group %d has %d chunks for %d columns", i, len(rg.Columns), len(m.Columns))
		}
	}
	return m, nil
}

func unmarshalColumn(b []byte) (schema.ColumnDef, error) {
	var c schema.ColumnDef
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, v []byte, x uint64) error {
		switch num {
		case colName:
			c.Name = string(v)
		case colType:
			c.PhysicalType = schema.PhysicalType(x)
		case colRepetition:
			c.Repetition = schema.Repetition(x)
		case colTypeLength:
			c.TypeLength = uint32(x)
		}
		return nil
	})
	return c, err
}

func unmarshalRowGroup(b []byte) (RowGroupMeta, error) {
	var rg RowGroupMeta
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, v []byte, x uint64) error {
		switch num {
		case rgOffset:
			rg.Offset = int64(x)
		case rgTotalBytes:
			rg.TotalBytes = int64(x)
		case rgNumRows:
			rg.NumRows = int64(x)
		case rgChunk:
			ch, err := unmarshalChunk(v)
			if err != nil {
				return err
			}
			rg.Columns = append(rg.Columns, ch)
		}
		return nil
	})
	return rg, err
}

func unmarshalChunk(b []byte) (ChunkMeta, error) {
	var ch ChunkMeta
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, v []byte, x uint64) error {
		switch num {
		case chunkOffset:
			ch.Offset = int64(x)
		case chunkCompressedSize:
			ch.CompressedSize = int64(x)
		case chunkUncompressedSize:
			ch.UncompressedSize = int64(x)
		case chunkNumValues:
			ch.NumValues = int64(x)
		case chunkNullCount:
			ch.NullCount = int64(x)
		case chunkMin:
			ch.Min = append([]byte{}, v...)
		case chunkMax:
			ch.Max = append([]byte{}, v...)
		case chunkHasStats:
			ch.HasStats = x != 0
		}
		return nil
	})
	return ch, err
}
