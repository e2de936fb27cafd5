package format

import (
	"context"
	"io"

	"github.com/ajitpratap0/parquetflow/pkg/columnar"
	"github.com/ajitpratap0/parquetflow/pkg/compression"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

// offsetWriter tracks the absolute file offset of everything written.
type offsetWriter struct {
	w   io.Writer
	off int64
}

func (o *offsetWriter) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	o.off += int64(n)
	return n, err
}

// RowGroupWriter encodes and writes row groups for one schema. It keeps one
// chunk buffer per column and reuses them across groups.
type RowGroupWriter struct {
	schema  *schema.Schema
	comp    *compression.ParallelCompressor
	buffers []*columnar.ChunkBuffer
}

// NewRowGroupWriter returns a writer for s compressing with comp.
func NewRowGroupWriter(s *schema.Schema, comp *compression.ParallelCompressor) *RowGroupWriter {
	buffers := make([]*columnar.ChunkBuffer, s.NumColumns())
	for i := range buffers {
		buffers[i] = columnar.NewChunkBuffer(s.Column(i))
	}
	return &RowGroupWriter{schema: s, comp: comp, buffers: buffers}
}

// Prepare validates inputs and encodes every chunk without touching the
// output. Argument errors therefore never leave partial bytes behind.
func (w *RowGroupWriter) Prepare(ctx context.Context, rowCount int, inputs []columnar.ColumnInput) ([]columnar.EncodedChunk, error) {
	if len(inputs) != w.schema.NumColumns() {
		return nil, flowerrors.Newf(flowerrors.CodeInvalidArgument,
			"row group has %d column inputs, schema has %d columns", len(inputs), w.schema.NumColumns())
	}
	if rowCount <= 0 {
		return nil, flowerrors.Newf(flowerrors.CodeInvalidArgument, "row group row count must be positive, got %d", rowCount)
	}

	chunks := make([]columnar.EncodedChunk, len(inputs))
	plain := make([][]byte, len(inputs))
	for i, in := range inputs {
		buf := w.buffers[i]
		buf.Reset()
		if err := buf.Append(rowCount, in); err != nil {
			return nil, err
		}
		chunks[i] = buf.EncodeUncompressed()
		plain[i] = chunks[i].Data
	}

	compressed, err := w.comp.CompressChunks(ctx, plain)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Data = compressed[i]
	}
	return chunks, nil
}

// writeChunks appends prepared chunks to out in schema order and returns the
// row group metadata. Any write failure is CodeIO and fatal to the file.
func (w *RowGroupWriter) writeChunks(out *offsetWriter, rowCount int, chunks []columnar.EncodedChunk) (RowGroupMeta, error) {
	rg := RowGroupMeta{
		Offset:  out.off,
		NumRows: int64(rowCount),
		Columns: make([]ChunkMeta, len(chunks)),
	}
	for i, ch := range chunks {
		start := out.off
		if _, err := out.Write(ch.Data); err != nil {
			return RowGroupMeta{}, flowerrors.Wrap(err, flowerrors.CodeIO, "write column chunk").
				WithDetail("column", w.schema.Column(i).Name)
		}
		rg.Columns[i] = ChunkMeta{
			Offset:           start,
			CompressedSize:   int64(len(ch.Data)),
			UncompressedSize: int64(ch.UncompressedSize),
			NumValues:        int64(ch.NumValues),
			NullCount:        ch.Stats.NullCount,
			Min:              ch.Stats.Min,
			Max:              ch.Stats.Max,
			HasStats:         ch.Stats.HasMinMax,
		}
	}
	rg.TotalBytes = out.off - rg.Offset
	return rg, nil
}
