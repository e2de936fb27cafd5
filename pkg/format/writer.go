// Package format writes and reads the columnar file layout:
//
//	[magic][row group 1]...[row group N][footer][u32 footer_len][u64 xxhash64(footer)][magic]
//
// Each row group is the column chunks of its rows in schema order. The footer
// carries the schema, the codec id, and the offset, sizes and statistics of
// every chunk; it is written once by Close.
package format

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parquetflow/pkg/columnar"
	"github.com/ajitpratap0/parquetflow/pkg/compression"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

// DefaultCreatedBy is recorded in the footer unless overridden.
const DefaultCreatedBy = "parquetflow"

// State is the lifecycle state of a FileWriter.
type State int

const (
	StateCreated State = iota
	StateSchemaSet
	StateOpen
	StateClosed
	// StateFailed follows an I/O error. The file has no footer and the writer
	// accepts nothing but Destroy.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSchemaSet:
		return "schema_set"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type options struct {
	logger      *zap.Logger
	createdBy   string
	level       compression.Level
	parallelism int
	bufferSize  int
	sync        bool
}

// Option configures a FileWriter.
type Option func(*options)

// WithLogger sets the writer's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCreatedBy overrides the footer's created_by string.
func WithCreatedBy(s string) Option {
	return func(o *options) { o.createdBy = s }
}

// WithCompressionLevel sets the codec level.
func WithCompressionLevel(l compression.Level) Option {
	return func(o *options) { o.level = l }
}

// WithParallelism sets how many chunks of a row group compress at once.
// 1 compresses inline on the calling goroutine.
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

// WithBufferSize sets the write buffer size in bytes.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// WithSync controls whether Close fsyncs the file. Default true.
func WithSync(enabled bool) Option {
	return func(o *options) { o.sync = enabled }
}

// FileWriter owns one output file through Created -> SchemaSet -> Open ->
// Closed. It is not safe for concurrent use.
type FileWriter struct {
	path  string
	codec compression.Codec
	opts  options

	logger *zap.Logger
	file   *os.File
	bw     *bufio.Writer
	out    offsetWriter

	state     State
	destroyed bool
	builder   *schema.Builder
	schema    *schema.Schema
	rg        *RowGroupWriter
	comp      *compression.ParallelCompressor
	meta      FileMetadata
	lastErr   error
}

// NewFileWriter creates the file at path and returns a writer in the
// Created state. codec must be a known id.
func NewFileWriter(path string, codec compression.Codec, opts ...Option) (*FileWriter, error) {
	o := options{
		createdBy:   DefaultCreatedBy,
		parallelism: 1,
		bufferSize:  1 << 20,
		sync:        true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if path == "" {
		return nil, flowerrors.New(flowerrors.CodeInvalidArgument, "output path is empty")
	}
	comp, err := compression.NewCompressor(codec, o.level)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeIO, "create output file").WithDetail("path", path)
	}

	w := &FileWriter{
		path:    path,
		codec:   codec,
		opts:    o,
		logger:  o.logger.With(zap.String("component", "file_writer"), zap.String("path", path)),
		file:    f,
		bw:      bufio.NewWriterSize(f, o.bufferSize),
		builder: schema.NewBuilder(),
		comp:    compression.NewParallelCompressor(comp, o.parallelism, o.logger),
	}
	w.out.w = w.bw
	return w, nil
}

// Path returns the output path.
func (w *FileWriter) Path() string { return w.path }

// State returns the lifecycle state.
func (w *FileWriter) State() State { return w.state }

// Codec returns the file codec.
func (w *FileWriter) Codec() compression.Codec { return w.codec }

// LastError returns the text of the most recent failure, or "".
func (w *FileWriter) LastError() string {
	if w == nil || w.lastErr == nil {
		return ""
	}
	return w.lastErr.Error()
}

func (w *FileWriter) fail(err error) error {
	w.lastErr = err
	return err
}

// AddColumn appends one column definition. Valid in Created and SchemaSet.
func (w *FileWriter) AddColumn(def schema.ColumnDef) error {
	if w.state != StateCreated && w.state != StateSchemaSet {
		return w.fail(flowerrors.Newf(flowerrors.CodeSchema, "cannot add column %q in state %s", def.Name, w.state))
	}
	if err := w.builder.AddColumn(def); err != nil {
		return w.fail(err)
	}
	w.state = StateSchemaSet
	return nil
}

// SetSchema replaces any columns added so far with s.
func (w *FileWriter) SetSchema(s *schema.Schema) error {
	if w.state != StateCreated && w.state != StateSchemaSet {
		return w.fail(flowerrors.Newf(flowerrors.CodeSchema, "cannot set schema in state %s", w.state))
	}
	if s == nil {
		return w.fail(flowerrors.New(flowerrors.CodeInvalidArgument, "schema is nil"))
	}
	b := schema.NewBuilder()
	for _, c := range s.Columns() {
		if err := b.AddColumn(c); err != nil {
			return w.fail(err)
		}
	}
	w.builder = b
	w.state = StateSchemaSet
	return nil
}

// Schema returns the frozen schema once the writer is open, else nil.
func (w *FileWriter) Schema() *schema.Schema { return w.schema }

// Open freezes the schema and writes the magic header.
func (w *FileWriter) Open() error {
	switch w.state {
	case StateCreated:
		return w.fail(flowerrors.New(flowerrors.CodeSchema, "open before any column was defined"))
	case StateSchemaSet:
	default:
		return w.fail(flowerrors.Newf(flowerrors.CodeInvalidState, "open in state %s", w.state))
	}

	s, err := w.builder.Build()
	if err != nil {
		return w.fail(err)
	}
	if _, err := w.out.Write([]byte(Magic)); err != nil {
		w.abandon()
		return w.fail(flowerrors.Wrap(err, flowerrors.CodeIO, "write magic header").WithDetail("path", w.path))
	}

	w.schema = s
	w.rg = NewRowGroupWriter(s, w.comp)
	w.meta = FileMetadata{
		Version:   FormatVersion,
		CreatedBy: w.opts.createdBy,
		FileID:    uuid.NewString(),
		Codec:     w.codec,
		Columns:   s.Columns(),
	}
	w.state = StateOpen
	w.logger.Debug("file opened",
		zap.Int("columns", s.NumColumns()),
		zap.String("codec", w.codec.String()))
	return nil
}

// WriteRowGroup encodes inputs as one row group of rowCount rows and appends
// it to the file. Argument errors leave the file untouched and the writer
// usable; an I/O error moves the writer to StateFailed.
func (w *FileWriter) WriteRowGroup(rowCount int, inputs []columnar.ColumnInput) error {
	return w.WriteRowGroupContext(context.Background(), rowCount, inputs)
}

// WriteRowGroupContext is WriteRowGroup with a context for the compression
// step.
func (w *FileWriter) WriteRowGroupContext(ctx context.Context, rowCount int, inputs []columnar.ColumnInput) error {
	if w.state != StateOpen {
		return w.fail(w.notOpen("write row group"))
	}

	chunks, err := w.rg.Prepare(ctx, rowCount, inputs)
	if err != nil {
		return w.fail(err)
	}

	rg, err := w.rg.writeChunks(&w.out, rowCount, chunks)
	if err == nil {
		if ferr := w.bw.Flush(); ferr != nil {
			err = flowerrors.Wrap(ferr, flowerrors.CodeIO, "flush row group")
		}
	}
	if err != nil {
		w.abandon()
		w.logger.Error("row group write failed, file abandoned", zap.Error(err))
		return w.fail(err)
	}

	w.meta.RowGroups = append(w.meta.RowGroups, rg)
	w.meta.NumRows += rg.NumRows
	return nil
}

func (w *FileWriter) notOpen(op string) error {
	if w.state == StateFailed {
		return flowerrors.Wrap(w.lastErr, flowerrors.CodeInvalidState, op+" after a failed write")
	}
	return flowerrors.Newf(flowerrors.CodeNotOpen, "%s: file is %s", op, w.state)
}

// RowsWritten returns the rows in all row groups written so far.
func (w *FileWriter) RowsWritten() int64 { return w.meta.NumRows }

// RowGroups returns the number of row groups written so far.
func (w *FileWriter) RowGroups() int { return len(w.meta.RowGroups) }

// BytesWritten returns the current file size as seen by the writer.
func (w *FileWriter) BytesWritten() int64 { return w.out.off }

// Metadata returns a copy of the footer accumulated so far.
func (w *FileWriter) Metadata() *FileMetadata { return w.meta.Clone() }

// Close writes the footer and trailing magic and releases the file. It fails
// with CodeNotOpen unless the writer is open.
func (w *FileWriter) Close() error {
	if w.state != StateOpen {
		return w.fail(w.notOpen("close"))
	}

	footer := MarshalFooter(&w.meta)
	tail := AppendTrailer(footer, footer)
	if _, err := w.out.Write(tail); err != nil {
		w.abandon()
		return w.fail(flowerrors.Wrap(err, flowerrors.CodeIO, "write footer"))
	}
	if err := w.bw.Flush(); err != nil {
		w.abandon()
		return w.fail(flowerrors.Wrap(err, flowerrors.CodeIO, "flush footer"))
	}
	if w.opts.sync {
		if err := w.file.Sync(); err != nil {
			w.abandon()
			return w.fail(flowerrors.Wrap(err, flowerrors.CodeIO, "sync file"))
		}
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		w.state = StateFailed
		return w.fail(flowerrors.Wrap(err, flowerrors.CodeIO, "close file"))
	}

	w.state = StateClosed
	w.logger.Debug("file closed",
		zap.Int64("rows", w.meta.NumRows),
		zap.Int("row_groups", len(w.meta.RowGroups)),
		zap.Int64("bytes", w.out.off))
	return nil
}

// abandon drops the file handle without a footer.
func (w *FileWriter) abandon() {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	w.state = StateFailed
}

// Destroy releases the writer. An open writer is closed first so its data
// stays readable; the close is logged as a warning since callers should
// Close explicitly. Destroy on a nil or already destroyed writer is a no-op.
func (w *FileWriter) Destroy() {
	if w == nil || w.destroyed {
		return
	}
	w.destroyed = true

	if w.state == StateOpen {
		w.logger.Warn("file writer destroyed while open, closing",
			zap.Int64("rows", w.meta.NumRows))
		if err := w.Close(); err != nil {
			w.logger.Error("auto-close on destroy failed", zap.Error(err))
		}
		return
	}
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
}

// WriteFile writes one row group of rowCount rows to a new file at path and
// closes it.
func WriteFile(path string, s *schema.Schema, codec compression.Codec, rowCount int, inputs []columnar.ColumnInput, opts ...Option) (*FileMetadata, error) {
	w, err := NewFileWriter(path, codec, opts...)
	if err != nil {
		return nil, err
	}
	defer w.Destroy()

	if err := w.SetSchema(s); err != nil {
		return nil, err
	}
	if err := w.Open(); err != nil {
		return nil, err
	}
	if err := w.WriteRowGroup(rowCount, inputs); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Metadata(), nil
}
