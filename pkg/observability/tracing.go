package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/parquetflow/pkg/sink"

// Span wraps a trace span and batches its attributes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// End records the outcome and ends the span.
func (s *Span) End(err error) {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// Elapsed returns the time since the span started.
func (s *Span) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// SinkTracer provides sink-specific spans and OpenTelemetry instruments for
// the consumer goroutine.
type SinkTracer struct {
	sinkName string
	tracer   trace.Tracer
	rows     metric.Int64Histogram
}

// NewSinkTracer creates a tracer for the named sink. A nil provider means
// the global one.
func NewSinkTracer(sinkName string, tp trace.TracerProvider) *SinkTracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	st := &SinkTracer{
		sinkName: sinkName,
		tracer:   tp.Tracer(instrumentationName),
	}
	// The global meter is a no-op unless the process installs a provider.
	if h, err := otel.Meter(instrumentationName).Int64Histogram(
		"pqflow.row_group.rows",
		metric.WithDescription("Rows per written row group"),
	); err == nil {
		st.rows = h
	}
	return st
}

// StartSpan starts a sink-specific span
func (st *SinkTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := st.tracer.Start(ctx, "sink."+operation)
	s := &Span{span: span, startTime: time.Now()}
	s.SetAttribute("sink.name", st.sinkName)
	return ctx, s
}

// TraceRowGroup traces one row group write of rows rows into file.
func (st *SinkTracer) TraceRowGroup(ctx context.Context, file string, rows int, fn func(context.Context) error) error {
	ctx, span := st.StartSpan(ctx, "write_row_group")
	span.SetAttribute("file.path", file)
	span.SetAttribute("row_group.rows", rows)

	err := fn(ctx)
	if err == nil && st.rows != nil {
		st.rows.Record(ctx, int64(rows), metric.WithAttributes(attribute.String("sink.name", st.sinkName)))
	}
	span.End(err)
	return err
}

// TraceRotation traces closing file and opening the next sequence number.
func (st *SinkTracer) TraceRotation(ctx context.Context, file string, nextSeq int, fn func(context.Context) error) error {
	ctx, span := st.StartSpan(ctx, "rotate")
	span.SetAttribute("file.path", file)
	span.SetAttribute("file.next_seq", nextSeq)

	err := fn(ctx)
	span.End(err)
	return err
}
