package format

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/parquetflow/pkg/columnar"
	"github.com/ajitpratap0/parquetflow/pkg/compression"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

// ReadFileMetadata verifies the magic bytes and footer checksum of the file
// at path and returns its metadata.
func ReadFileMetadata(path string) (*FileMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeIO, "open file").WithDetail("path", path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeIO, "stat file").WithDetail("path", path)
	}
	return readMetadata(f, st.Size())
}

func readMetadata(r io.ReaderAt, size int64) (*FileMetadata, error) {
	if size < int64(len(Magic)+trailerSize) {
		return nil, footerError("file of %d bytes is too short", size)
	}

	head := make([]byte, len(Magic))
	if _, err := r.ReadAt(head, 0); err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeIO, "read magic header")
	}
	if string(head) != Magic {
		return nil, footerError("bad header magic %q", head)
	}

	tail := make([]byte, trailerSize)
	if _, err := r.ReadAt(tail, size-int64(trailerSize)); err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeIO, "read trailer")
	}
	if string(tail[12:]) != Magic {
		return nil, footerError("bad trailing magic %q, file was not closed", tail[12:])
	}

	footerLen := int64(binary.LittleEndian.Uint32(tail[0:4]))
	sum := binary.LittleEndian.Uint64(tail[4:12])
	footerStart := size - int64(trailerSize) - footerLen
	if footerStart < int64(len(Magic)) {
		return nil, footerError("footer length %d exceeds file", footerLen)
	}

	footer := make([]byte, footerLen)
	if _, err := r.ReadAt(footer, footerStart); err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeIO, "read footer")
	}
	if xxhash.Sum64(footer) != sum {
		return nil, footerError("checksum mismatch")
	}

	m, err := UnmarshalFooter(footer)
	if err != nil {
		return nil, err
	}
	for i, rg := range m.RowGroups {
		for j, ch := range rg.Columns {
			if ch.Offset < int64(len(Magic)) || ch.Offset+ch.CompressedSize > footerStart {
				return nil, footerError("row group %d column %d lies outside the data region", i, j)
			}
		}
	}
	return m, nil
}

// ReadColumnChunk reads and decodes one chunk of the file at path.
func ReadColumnChunk(path string, m *FileMetadata, rowGroup, column int) (columnar.ColumnInput, error) {
	ch, err := chunkMeta(m, rowGroup, column)
	if err != nil {
		return columnar.ColumnInput{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return columnar.ColumnInput{}, flowerrors.Wrap(err, flowerrors.CodeIO, "open file").WithDetail("path", path)
	}
	defer f.Close()

	data := make([]byte, ch.CompressedSize)
	if _, err := f.ReadAt(data, ch.Offset); err != nil {
		return columnar.ColumnInput{}, flowerrors.Wrap(err, flowerrors.CodeIO, "read column chunk")
	}
	return decodeChunk(m, column, ch, data)
}

func chunkMeta(m *FileMetadata, rowGroup, column int) (ChunkMeta, error) {
	if rowGroup < 0 || rowGroup >= len(m.RowGroups) {
		return ChunkMeta{}, flowerrors.Newf(flowerrors.CodeInvalidArgument, "row group %d out of range", rowGroup)
	}
	if column < 0 || column >= len(m.Columns) {
		return ChunkMeta{}, flowerrors.Newf(flowerrors.CodeInvalidArgument, "column %d out of range", column)
	}
	return m.RowGroups[rowGroup].Columns[column], nil
}

func decodeChunk(m *FileMetadata, column int, ch ChunkMeta, data []byte) (columnar.ColumnInput, error) {
	comp, err := compression.NewCompressor(m.Codec, compression.Default)
	if err != nil {
		return columnar.ColumnInput{}, err
	}
	return columnar.DecodeChunk(m.Columns[column], comp, data, int(ch.UncompressedSize), int(ch.NumValues))
}
