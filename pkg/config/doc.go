// Package config loads the YAML description of a streaming sink.
//
// A file names the output location, the codec, the ring and batch sizes and
// the column list. ${VAR_NAME} references are replaced from the environment
// before parsing.
//
//	name: ticks
//	output_dir: /var/lib/pqflow/ticks
//	compression: zstd
//	compression_level: fastest
//	batch_size: 65536
//	max_rows_per_file: 10000000
//	columns:
//	  - {name: ts, type: I64}
//	  - {name: px, type: F64, nullable: true}
//	  - {name: venue, type: BYTE_ARRAY}
//	shipper:
//	  kind: s3
//	  bucket: ${PQFLOW_BUCKET}
//
// LoadSink applies NewSinkConfig defaults, parses the file and validates it.
// SinkOptions and Schema turn the result into the values sink.New and
// Sink.SetSchema expect.
package config
