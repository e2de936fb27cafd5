// Package sink implements the non-blocking streaming path: a producer logs
// row-major records into a lock-free ring and a single consumer goroutine
// transcodes them into columns, writes row groups and rotates files.
//
// # Lifecycle
//
//	Created -> SchemaSet -> Started -> Running <-> Flushing -> Stopped
//
// Log, Flush and Stop must be called from one goroutine at a time, the
// producer. Log never blocks; Flush and Stop block until the consumer
// acknowledges. The file writer is touched only by the consumer once the
// sink has started.
//
// # Basic Usage
//
//	s, err := sink.New(sink.Config{OutputDir: "/data/ticks", BatchSize: 4096},
//	    sink.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer s.Destroy()
//
//	if err := s.SetSchema(tickSchema); err != nil {
//	    return err
//	}
//	if err := s.Start(); err != nil {
//	    return err
//	}
//
//	rb := sink.NewRecordBuilder(tickSchema)
//	rec, _ := rb.Reset().Int64(ts).Float64(px).Build()
//	if err := s.Log(rec); flowerrors.IsRecoverable(err) {
//	    // dropped under backpressure
//	}
//
//	return s.Stop()
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parquetflow/internal/staging"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/format"
	"github.com/ajitpratap0/parquetflow/pkg/lockfree"
	"github.com/ajitpratap0/parquetflow/pkg/metrics"
	"github.com/ajitpratap0/parquetflow/pkg/observability"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
)

// State is the lifecycle state of a Sink.
type State int32

const (
	StateCreated State = iota
	StateSchemaSet
	StateStarted
	StateRunning
	StateFlushing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSchemaSet:
		return "schema_set"
	case StateStarted:
		return "started"
	case StateRunning:
		return "running"
	case StateFlushing:
		return "flushing"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Preallocated so Log never allocates.
var (
	errSchemaUnset = &flowerrors.Error{Code: flowerrors.CodeSchema, Message: "log before schema was set"}
	errStopped     = &flowerrors.Error{Code: flowerrors.CodeNotOpen, Message: "sink is stopped"}
	errShortRecord = &flowerrors.Error{Code: flowerrors.CodeSchema, Message: "record is shorter than the schema allows"}
)

// malformedLogEvery rate-limits the malformed-record warning.
const malformedLogEvery = 1000

// FileClosedFunc is called on the consumer goroutine after a file has been
// closed with a valid footer.
type FileClosedFunc func(path string, md *format.FileMetadata)

type options struct {
	logger         *zap.Logger
	onFileClosed   FileClosedFunc
	tracerProvider trace.TracerProvider
	fileOpts       []format.Option
}

// Option configures a Sink.
type Option func(*options)

// WithLogger sets the sink's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOnFileClosed registers fn to run after every successful file close.
// It runs on the consumer goroutine and delays the next write, so it should
// hand long work off.
func WithOnFileClosed(fn FileClosedFunc) Option {
	return func(o *options) { o.onFileClosed = fn }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithFileOptions passes extra options to every file writer.
func WithFileOptions(opts ...format.Option) Option {
	return func(o *options) { o.fileOpts = append(o.fileOpts, opts...) }
}

// Sink is a streaming columnar writer fed through a ring buffer.
type Sink struct {
	cfg     Config
	opts    options
	logger  *zap.Logger
	metrics *metrics.SinkMetrics
	tracer  *observability.SinkTracer

	state     atomic.Int32
	ring      *lockfree.RingBuffer
	minRecord int
	wake      chan struct{}
	ctrl      chan chan error
	exited    chan struct{}
	stopOnce  sync.Once
	finalErr  error
	destroyed atomic.Bool

	// Owned by the consumer goroutine once started.
	schema   *schema.Schema
	stager   *staging.Stager
	writer   *format.FileWriter
	seq      int
	fileRows int64
	rec      []byte
	failErr  error

	filesWritten   lockfree.AtomicCounter
	entriesWritten lockfree.AtomicCounter
	dropped        lockfree.AtomicCounter
	malformed      lockfree.AtomicCounter
	droppedFailed  lockfree.AtomicCounter
	lastErr        atomic.Pointer[string]
}

// New validates cfg, allocates the ring and creates the first output file.
func New(cfg Config, opts ...Option) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	ring, err := lockfree.NewRingBuffer(cfg.RingBufferSize)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		cfg:     cfg,
		opts:    o,
		logger:  o.logger.With(zap.String("component", "sink"), zap.String("sink", cfg.Name)),
		metrics: metrics.ForSink(cfg.Name),
		tracer:  observability.NewSinkTracer(cfg.Name, o.tracerProvider),
		ring:    ring,
		wake:    make(chan struct{}, 1),
		ctrl:    make(chan chan error, 1),
		exited:  make(chan struct{}),
	}

	w, err := format.NewFileWriter(cfg.FilePath(0), cfg.Compression, s.fileOptions()...)
	if err != nil {
		return nil, err
	}
	s.writer = w
	return s, nil
}

func (s *Sink) fileOptions() []format.Option {
	opts := []format.Option{
		format.WithLogger(s.logger),
		format.WithCompressionLevel(s.cfg.CompressionLevel),
		format.WithParallelism(s.cfg.Parallelism),
	}
	return append(opts, s.opts.fileOpts...)
}

// Name returns the configured sink name.
func (s *Sink) Name() string { return s.cfg.Name }

// State returns the current lifecycle state.
func (s *Sink) State() State { return State(s.state.Load()) }

// FilesWritten returns the number of files closed with a valid footer.
func (s *Sink) FilesWritten() int64 { return s.filesWritten.Get() }

// EntriesWritten returns the number of records written to row groups.
func (s *Sink) EntriesWritten() int64 { return s.entriesWritten.Get() }

// Dropped returns the number of records rejected by Log because the ring
// was full.
func (s *Sink) Dropped() int64 { return s.dropped.Get() }

// Malformed returns the number of records the consumer could not transcode.
func (s *Sink) Malformed() int64 { return s.malformed.Get() }

// DroppedFailed returns the number of records discarded after a fatal
// write error.
func (s *Sink) DroppedFailed() int64 { return s.droppedFailed.Get() }

// Pending returns the number of records waiting in the ring.
func (s *Sink) Pending() int { return s.ring.Len() }

// LastError returns the text of the most recent failure, or "".
func (s *Sink) LastError() string {
	if p := s.lastErr.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *Sink) fail(err error) error {
	if err != nil {
		msg := err.Error()
		s.lastErr.Store(&msg)
	}
	return err
}

// SetSchema fixes the schema of every file the sink writes. It is valid
// only once, before Start.
func (s *Sink) SetSchema(sc *schema.Schema) error {
	if st := s.State(); st != StateCreated {
		return s.fail(flowerrors.Newf(flowerrors.CodeSchema, "schema already set, sink is %s", st))
	}
	if sc == nil {
		return s.fail(flowerrors.New(flowerrors.CodeInvalidArgument, "schema is nil"))
	}
	if err := s.writer.SetSchema(sc); err != nil {
		return s.fail(err)
	}
	s.schema = sc
	s.stager = staging.New(sc)
	s.minRecord = sc.MinRecordSize()
	s.state.Store(int32(StateSchemaSet))
	return nil
}

// Start opens the first file and launches the consumer goroutine.
func (s *Sink) Start() error {
	switch st := s.State(); st {
	case StateSchemaSet:
	case StateCreated:
		return s.fail(flowerrors.New(flowerrors.CodeSchema, "start before schema was set"))
	default:
		return s.fail(flowerrors.Newf(flowerrors.CodeInvalidState, "start in state %s", st))
	}
	if err := s.openFirst(); err != nil {
		return err
	}
	s.state.Store(int32(StateStarted))
	go s.run()
	return nil
}

func (s *Sink) openFirst() error {
	if err := s.writer.Open(); err != nil {
		return s.fail(err)
	}
	s.logger.Info("file opened", zap.String("path", s.writer.Path()), zap.Int("seq", s.seq))
	return nil
}

// Log hands rec to the consumer. It never blocks: a full ring returns
// flowerrors.ErrFull and the record is dropped. rec is copied and may be
// reused by the caller.
func (s *Sink) Log(rec []byte) error {
	switch State(s.state.Load()) {
	case StateCreated:
		return errSchemaUnset
	case StateStopped:
		return errStopped
	}
	if len(rec) < s.minRecord {
		return errShortRecord
	}
	if err := s.ring.Push(rec); err != nil {
		if err == flowerrors.ErrFull {
			s.dropped.Increment()
			s.metrics.DroppedFull.Inc()
		}
		return err
	}
	s.metrics.RecordsLogged.Inc()
	return nil
}

// Flush writes everything logged so far, including a partial batch, and
// waits for the write. It returns the sticky write error, if any.
func (s *Sink) Flush() error {
	return s.FlushContext(context.Background())
}

// FlushContext is Flush bounded by ctx.
func (s *Sink) FlushContext(ctx context.Context) error {
	switch st := s.State(); st {
	case StateCreated:
		return s.fail(flowerrors.New(flowerrors.CodeSchema, "flush before schema was set"))
	case StateSchemaSet:
		return s.fail(flowerrors.New(flowerrors.CodeInvalidState, "flush before start"))
	case StateStopped:
		return s.fail(errStopped)
	}

	if done, err := s.exitedResult(); done {
		return err
	}
	reply := make(chan error, 1)
	select {
	case s.ctrl <- reply:
	case <-s.exited:
		return s.finalErr
	case <-ctx.Done():
		return s.notAcknowledged(ctx, "flush")
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-reply:
		return err
	case <-s.exited:
		return s.finalErr
	case <-ctx.Done():
	}
	select {
	case err := <-reply:
		return err
	default:
	}
	return s.notAcknowledged(ctx, "flush")
}

// Stop drains every logged record, writes the final partial batch, closes
// the current file and joins the consumer. Later Log calls fail with
// CodeNotOpen. Stop is idempotent and returns the same result every time.
func (s *Sink) Stop() error {
	return s.StopContext(context.Background())
}

// StopContext is Stop bounded by ctx. When ctx expires the consumer keeps
// draining in the background; a later Stop waits for it.
func (s *Sink) StopContext(ctx context.Context) error {
	s.stopOnce.Do(s.initiateStop)

	if done, err := s.exitedResult(); done {
		return err
	}
	select {
	case <-s.exited:
		return s.finalErr
	case <-ctx.Done():
	}
	return s.notAcknowledged(ctx, "stop")
}

// exitedResult reports whether the consumer has exited, and its final error.
// A finished sink wins over an expired context.
func (s *Sink) exitedResult() (bool, error) {
	select {
	case <-s.exited:
		return true, s.finalErr
	default:
		return false, nil
	}
}

// notAcknowledged is the result of a wait whose ctx expired. A consumer that
// exited in the meantime still reports its own result.
func (s *Sink) notAcknowledged(ctx context.Context, op string) error {
	if done, err := s.exitedResult(); done {
		return err
	}
	return s.fail(flowerrors.Wrap(ctx.Err(), flowerrors.CodeInvalidState, op+" not acknowledged"))
}

func (s *Sink) initiateStop() {
	prev := State(s.state.Swap(int32(StateStopped)))
	s.ring.Close()

	switch prev {
	case StateCreated:
		// Nothing can have been written without a schema.
		path := s.writer.Path()
		s.writer.Destroy()
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove unused output file", zap.String("path", path), zap.Error(err))
		}
		close(s.exited)

	case StateSchemaSet:
		// Records logged before Start are still written.
		if err := s.openFirst(); err != nil {
			s.finalErr = err
			s.writer.Destroy()
			close(s.exited)
			return
		}
		go s.run()
	}
	s.logger.Debug("stop requested", zap.String("state", prev.String()))
}

// Destroy stops the sink if needed and releases it. It is safe on a nil or
// already destroyed sink.
func (s *Sink) Destroy() {
	if s == nil || !s.destroyed.CompareAndSwap(false, true) {
		return
	}
	st := s.State()
	err := s.Stop()
	if st != StateStopped {
		s.logger.Warn("sink destroyed without stop, stopped it", zap.String("state", st.String()))
		if err != nil {
			s.logger.Error("stop on destroy failed", zap.Error(err))
		}
	}
}

// Close stops and destroys the sink and returns the stop error.
func (s *Sink) Close() error {
	err := s.Stop()
	s.Destroy()
	return err
}

// run is the consumer loop.
func (s *Sink) run() {
	defer close(s.exited)
	s.state.CompareAndSwap(int32(StateStarted), int32(StateRunning))
	ctx := context.Background()

	for {
		rec, err := s.ring.PopBlocking(s.rec, s.wake)
		switch {
		case err == nil:
			s.rec = rec
			s.consume(ctx, rec)
		case errors.Is(err, lockfree.ErrInterrupted):
			s.serveFlushes(ctx)
		default:
			s.finalErr = s.finish(ctx)
			return
		}
	}
}

func (s *Sink) serveFlushes(ctx context.Context) {
	for {
		select {
		case reply := <-s.ctrl:
			reply <- s.flush(ctx)
		default:
			return
		}
	}
}

// flush consumes the records that were in the ring when it was called and
// writes the partial batch.
func (s *Sink) flush(ctx context.Context) error {
	s.state.CompareAndSwap(int32(StateRunning), int32(StateFlushing))
	defer s.state.CompareAndSwap(int32(StateFlushing), int32(StateRunning))

	for n := s.ring.Len(); n > 0; n-- {
		rec, ok := s.ring.TryPop(s.rec)
		if !ok {
			break
		}
		s.rec = rec
		s.consume(ctx, rec)
	}
	if s.failErr == nil {
		s.writeBatch(ctx)
	}
	return s.failErr
}

func (s *Sink) consume(ctx context.Context, rec []byte) {
	if s.failErr != nil {
		s.discard(1)
		return
	}
	if s.cfg.MaxRowsPerFile > 0 && s.fileRows >= s.cfg.MaxRowsPerFile {
		if err := s.rotate(ctx); err != nil {
			s.discard(1)
			return
		}
	}

	err := s.stager.Append(rec)
	if flowerrors.IsCode(err, flowerrors.CodeInvalidArgument) && s.stager.Rows() > 0 {
		// The staged chunk is full; write it and retry into an empty one.
		s.writeBatch(ctx)
		if s.failErr != nil {
			s.discard(1)
			return
		}
		err = s.stager.Append(rec)
	}
	if err != nil {
		s.malformed.Increment()
		s.metrics.DroppedMalformed.Inc()
		s.fail(err)
		if n := s.malformed.Get(); n == 1 || n%malformedLogEvery == 0 {
			s.logger.Warn("malformed record dropped", zap.Int64("malformed_total", n), zap.Error(err))
		}
		return
	}

	if int64(s.stager.Rows()) >= s.batchTarget() {
		s.writeBatch(ctx)
	}
}

// batchTarget is the staged row count that triggers a row group: the batch
// size, capped by the room left in the current file.
func (s *Sink) batchTarget() int64 {
	t := int64(s.cfg.BatchSize)
	if s.cfg.MaxRowsPerFile > 0 {
		if room := s.cfg.MaxRowsPerFile - s.fileRows; room < t {
			t = room
		}
	}
	return t
}

func (s *Sink) discard(n int) {
	s.droppedFailed.Add(int64(n))
	s.metrics.DroppedFailed.Add(float64(n))
}

// setFailed makes err sticky. The current file is abandoned and every later
// record is discarded.
func (s *Sink) setFailed(err error, msg string) {
	if s.failErr != nil {
		return
	}
	s.failErr = s.fail(err)
	s.logger.Error(msg,
		zap.String("path", s.writer.Path()),
		zap.Int64("entries_written", s.entriesWritten.Get()),
		zap.Error(err))
}

func (s *Sink) writeBatch(ctx context.Context) {
	rows := s.stager.Rows()
	if rows == 0 {
		return
	}

	before := s.writer.BytesWritten()
	timer := metrics.NewTimer()
	err := s.tracer.TraceRowGroup(ctx, s.writer.Path(), rows, func(ctx context.Context) error {
		return s.writer.WriteRowGroupContext(ctx, rows, s.stager.Inputs())
	})
	s.stager.Reset()
	if err != nil {
		s.setFailed(err, "row group write failed")
		s.discard(rows)
		return
	}

	timer.ObserveDuration(s.metrics.RowGroupWrite)
	s.fileRows += int64(rows)
	s.entriesWritten.Add(int64(rows))
	s.metrics.RowsWritten.Add(float64(rows))
	s.metrics.RowGroupsWritten.Inc()
	s.metrics.BytesWritten.Add(float64(s.writer.BytesWritten() - before))
	s.metrics.RingDepth.Set(float64(s.ring.Len()))
	s.logger.Debug("row group written",
		zap.Int("rows", rows),
		zap.Int("row_group", s.writer.RowGroups()-1),
		zap.Int64("file_rows", s.fileRows))
}

func (s *Sink) rotate(ctx context.Context) error {
	return s.tracer.TraceRotation(ctx, s.writer.Path(), s.seq+1, func(context.Context) error {
		if err := s.closeFile(); err != nil {
			return err
		}
		return s.openFile(s.seq + 1)
	})
}

func (s *Sink) closeFile() error {
	path := s.writer.Path()
	if err := s.writer.Close(); err != nil {
		s.setFailed(err, "file close failed")
		return err
	}
	md := s.writer.Metadata()
	s.writer.Destroy()

	s.filesWritten.Increment()
	s.metrics.FilesWritten.Inc()
	s.logger.Info("file closed",
		zap.String("path", path),
		zap.Int64("rows", md.NumRows),
		zap.Int("row_groups", len(md.RowGroups)))
	if s.opts.onFileClosed != nil {
		s.opts.onFileClosed(path, md)
	}
	return nil
}

func (s *Sink) openFile(seq int) error {
	w, err := format.NewFileWriter(s.cfg.FilePath(seq), s.cfg.Compression, s.fileOptions()...)
	if err == nil {
		if err = w.SetSchema(s.schema); err == nil {
			err = w.Open()
		}
		if err != nil {
			w.Destroy()
		}
	}
	if err != nil {
		s.setFailed(err, "open next file failed")
		return err
	}

	s.writer = w
	s.seq = seq
	s.fileRows = 0
	s.logger.Info("file opened", zap.String("path", w.Path()), zap.Int("seq", seq))
	return nil
}

// finish runs once the ring is closed and drained.
func (s *Sink) finish(ctx context.Context) error {
	s.serveFlushes(ctx)
	if s.failErr == nil {
		s.writeBatch(ctx)
	}
	if s.failErr == nil {
		_ = s.closeFile()
	} else {
		s.writer.Destroy()
	}
	s.metrics.RingDepth.Set(0)
	s.logger.Info("sink stopped",
		zap.Int64("files_written", s.filesWritten.Get()),
		zap.Int64("entries_written", s.entriesWritten.Get()),
		zap.Int64("dropped", s.dropped.Get()),
		zap.Int64("malformed", s.malformed.Get()),
		zap.Int64("dropped_failed", s.droppedFailed.Get()))
	return s.failErr
}
