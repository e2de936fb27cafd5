package columnar

import (
	"encoding/binary"

	"github.com/ajitpratap0/parquetflow/pkg/compression"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

func corrupt(def schema.ColumnDef, format string, args ...interface{}) error {
	return flowerrors.Newf(flowerrors.CodeIO, format, args...).WithDetail("column", def.Name)
}

// DecodeChunk decompresses data with comp and decodes the plain payload.
func DecodeChunk(def schema.ColumnDef, comp compression.Compressor, data []byte, uncompressedSize, slots int) (ColumnInput, error) {
	plain, err := comp.Decompress(data, uncompressedSize)
	if err != nil {
		return ColumnInput{}, flowerrors.Wrap(err, flowerrors.CodeIO, "decompress column chunk").
			WithDetail("column", def.Name)
	}
	return Decode(def, plain, slots)
}

// Decode parses an uncompressed chunk payload holding slots value slots.
// The returned input validates against def.
func Decode(def schema.ColumnDef, plain []byte, slots int) (ColumnInput, error) {
	var in ColumnInput
	pos := 0

	switch def.PhysicalType {
	case schema.ByteArray, schema.FixedByteArray:
		if def.PhysicalType == schema.ByteArray {
			in.Offsets = make([]uint32, slots+1)
		}
		for i := 0; i < slots; i++ {
			if pos+4 > len(plain) {
				return ColumnInput{}, corrupt(def, "column %q: truncated length at slot %d", def.Name, i)
			}
			n := int(binary.LittleEndian.Uint32(plain[pos:]))
			pos += 4
			if n > len(plain)-pos {
				return ColumnInput{}, corrupt(def, "column %q: value at slot %d overruns chunk", def.Name, i)
			}
			if def.PhysicalType == schema.FixedByteArray && n != int(def.TypeLength) {
				return ColumnInput{}, corrupt(def, "column %q: fixed value of %d bytes at slot %d", def.Name, n, i)
			}
			in.Values = append(in.Values, plain[pos:pos+n]...)
			pos += n
			if in.Offsets != nil {
				in.Offsets[i+1] = uint32(len(in.Values))
			}
		}
		if in.Values == nil {
			in.Values = []byte{}
		}
	default:
		n := slots * def.ValueWidth()
		if n > len(plain) {
			return ColumnInput{}, corrupt(def, "column %q: values stream truncated", def.Name)
		}
		in.Values = append([]byte{}, plain[:n]...)
		pos = n
	}

	if def.HasDefLevels() {
		if pos+slots > len(plain) {
			return ColumnInput{}, corrupt(def, "column %q: definition levels truncated", def.Name)
		}
		in.DefLevels = append([]uint8{}, plain[pos:pos+slots]...)
		pos += slots
	}
	if def.HasRepLevels() {
		if pos+slots > len(plain) {
			return ColumnInput{}, corrupt(def, "column %q: repetition levels truncated", def.Name)
		}
		in.RepLevels = append([]uint8{}, plain[pos:pos+slots]...)
		pos += slots
	}
	if pos != len(plain) {
		return ColumnInput{}, corrupt(def, "column %q: %d trailing bytes", def.Name, len(plain)-pos)
	}
	return in, nil
}
