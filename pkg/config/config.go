package config

import (
	"fmt"
	"runtime"

	"github.com/ajitpratap0/parquetflow/pkg/compression"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/logger"
	"github.com/ajitpratap0/parquetflow/pkg/observability"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
	"github.com/ajitpratap0/parquetflow/pkg/sink"
)

// SinkConfig is the file-level configuration of one streaming sink. It is
// loaded from YAML and turned into a sink.Config plus a schema.
type SinkConfig struct {
	// Name labels metrics and logs
	Name string `yaml:"name" json:"name"`

	// OutputPath is the base file path; rotation inserts -<seq> before the extension
	OutputPath string `yaml:"output_path" json:"output_path"`
	// OutputDir writes part-<seq>.pqf files into a directory
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Compression selects the codec (none, snappy, gzip, zstd, lz4, s2)
	Compression string `yaml:"compression" json:"compression"`
	// CompressionLevel is fastest, default, better, best or 0-9
	CompressionLevel string `yaml:"compression_level" json:"compression_level"`

	// RingBufferSize is the ring slot count, a power of two
	RingBufferSize int `yaml:"ring_buffer_size" json:"ring_buffer_size"`
	// BatchSize is the number of rows per row group
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// MaxRowsPerFile rotates files at this many rows (0 = unlimited)
	MaxRowsPerFile int64 `yaml:"max_rows_per_file" json:"max_rows_per_file"`
	// Parallelism sets how many goroutines compress the chunks of a row group
	Parallelism int `yaml:"parallelism" json:"parallelism"`

	// Columns declares the schema in order
	Columns []ColumnConfig `yaml:"columns" json:"columns"`

	Logging logger.Config               `yaml:"logging" json:"logging"`
	Tracing observability.TracingConfig `yaml:"tracing" json:"tracing"`
	Shipper ShipperConfig               `yaml:"shipper" json:"shipper"`
}

// ColumnConfig declares one column.
type ColumnConfig struct {
	Name string `yaml:"name" json:"name"`
	// Type is a physical type name such as I64, F64 or BYTE_ARRAY
	Type string `yaml:"type" json:"type"`
	// Repetition is REQUIRED, OPTIONAL or REPEATED
	Repetition string `yaml:"repetition" json:"repetition"`
	// Nullable is shorthand for repetition OPTIONAL
	Nullable bool `yaml:"nullable" json:"nullable"`
	// TypeLength is the width of a FIXED_BYTE_ARRAY column
	TypeLength uint32 `yaml:"type_length" json:"type_length"`
}

// ShipperConfig selects where closed files are uploaded.
type ShipperConfig struct {
	// Kind is none or s3
	Kind     string `yaml:"kind" json:"kind"`
	Bucket   string `yaml:"bucket" json:"bucket"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	Region   string `yaml:"region" json:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Workers is the number of concurrent uploads
	Workers int `yaml:"workers" json:"workers"`
	// DeleteAfterUpload removes the local file once shipped
	DeleteAfterUpload bool `yaml:"delete_after_upload" json:"delete_after_upload"`
}

// NewSinkConfig returns a configuration with production defaults. Output
// and columns still have to be filled in.
func NewSinkConfig(name string) *SinkConfig {
	return &SinkConfig{
		Name:             name,
		Compression:      "zstd",
		CompressionLevel: "default",
		RingBufferSize:   sink.DefaultRingBufferSize,
		BatchSize:        sink.DefaultBatchSize,
		Parallelism:      runtime.NumCPU(),
		Logging:          logger.DefaultConfig(),
		Tracing:          observability.DefaultTracingConfig(),
		Shipper:          ShipperConfig{Kind: "none", Workers: 2},
	}
}

// Validate checks the configuration and the column list. Errors carry
// flowerrors.CodeInvalidArgument.
func (c *SinkConfig) Validate() error {
	// NewSinkConfig fills both, so zero here was written explicitly.
	if c.BatchSize <= 0 {
		return flowerrors.Newf(flowerrors.CodeInvalidArgument, "batch_size must be > 0, got %d", c.BatchSize)
	}
	if c.RingBufferSize <= 0 {
		return flowerrors.Newf(flowerrors.CodeInvalidArgument,
			"ring_buffer_size must be a power of two >= 2, got %d", c.RingBufferSize)
	}
	sc, err := c.SinkOptions()
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	if _, err := c.Schema(); err != nil {
		return err
	}
	switch c.Shipper.Kind {
	case "", "none":
	case "s3":
		if c.Shipper.Bucket == "" {
			return flowerrors.New(flowerrors.CodeInvalidArgument, "shipper.bucket is required for s3")
		}
	default:
		return flowerrors.Newf(flowerrors.CodeInvalidArgument, "unknown shipper kind %q", c.Shipper.Kind)
	}
	return nil
}

// SinkOptions converts the file configuration into a sink.Config.
func (c *SinkConfig) SinkOptions() (sink.Config, error) {
	codec, err := compression.ParseCodec(c.Compression)
	if err != nil {
		return sink.Config{}, err
	}
	level, err := compression.ParseLevel(c.CompressionLevel)
	if err != nil {
		return sink.Config{}, err
	}
	return sink.Config{
		Name:             c.Name,
		OutputPath:       c.OutputPath,
		OutputDir:        c.OutputDir,
		Compression:      codec,
		CompressionLevel: level,
		RingBufferSize:   c.RingBufferSize,
		BatchSize:        c.BatchSize,
		MaxRowsPerFile:   c.MaxRowsPerFile,
		Parallelism:      c.Parallelism,
	}, nil
}

// Schema builds and validates the declared columns.
func (c *SinkConfig) Schema() (*schema.Schema, error) {
	b := schema.NewBuilder()
	for i, col := range c.Columns {
		def, err := col.Def()
		if err != nil {
			return nil, flowerrors.Wrap(err, flowerrors.CodeInvalidArgument, fmt.Sprintf("columns[%d]", i))
		}
		if err := b.AddColumn(def); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// Def converts the column to a schema.ColumnDef.
func (c ColumnConfig) Def() (schema.ColumnDef, error) {
	pt, err := schema.ParsePhysicalType(c.Type)
	if err != nil {
		return schema.ColumnDef{}, err
	}
	rep, err := schema.ParseRepetition(c.Repetition)
	if err != nil {
		return schema.ColumnDef{}, err
	}
	if c.Nullable {
		if rep == schema.Repeated {
			return schema.ColumnDef{}, flowerrors.Newf(flowerrors.CodeInvalidArgument, "column %q: nullable conflicts with REPEATED", c.Name)
		}
		rep = schema.Optional
	}
	return schema.ColumnDef{Name: c.Name, PhysicalType: pt, Repetition: rep, TypeLength: c.TypeLength}, nil
}
