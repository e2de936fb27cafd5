// Package parquetflow writes row-grouped, compressed columnar files and
// streams row-major records into them from a lock-free ring buffer.
//
// # Architecture
//
// The write path is layered bottom-up:
//
//	pkg/schema       - column definitions and validation
//	pkg/columnar     - column chunk validation, encoding and statistics
//	pkg/compression  - codecs (snappy, gzip, zstd, lz4, s2)
//	pkg/format       - row group writer, file writer and footer
//	pkg/lockfree     - single producer, single consumer ring buffer
//	internal/staging - row-major record to column transcoding
//	pkg/sink         - streaming sink with batching and file rotation
//
// Around it sit the ambient packages: pkg/flowerrors for typed errors,
// pkg/logger for zap logging, pkg/metrics for Prometheus counters,
// pkg/observability for OpenTelemetry spans, pkg/config for YAML
// configuration and pkg/shipper for uploading closed files to S3.
//
// # Quick Start
//
// Write one file from column vectors:
//
//	s := schema.MustDefine(
//	    schema.ColumnDef{Name: "id", PhysicalType: schema.Int64},
//	    schema.ColumnDef{Name: "name", PhysicalType: schema.ByteArray, Repetition: schema.Optional},
//	)
//	_, err := format.WriteFile("out.pqf", s, compression.Zstd, 3, []columnar.ColumnInput{
//	    columnar.Int64s(1, 2, 3),
//	    columnar.NullableByteArrays([]byte("a"), nil, []byte("c")),
//	})
//
// Stream records through a sink:
//
//	snk, err := sink.New(sink.Config{OutputDir: "/data/ticks", Compression: compression.Zstd})
//	if err != nil {
//	    return err
//	}
//	defer snk.Close()
//	_ = snk.SetSchema(s)
//	_ = snk.Start()
//
//	rb := sink.NewRecordBuilder(s)
//	rec, _ := rb.Reset().Int64(1).String("a").Build()
//	if err := snk.Log(rec); flowerrors.IsRecoverable(err) {
//	    // ring full, the record was dropped and counted
//	}
//
// The pqflow command in cmd/pqflow generates synthetic data through a
// configured sink and inspects finished files.
package parquetflow
