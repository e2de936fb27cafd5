package sink

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/parquetflow/pkg/compression"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

const (
	// DefaultRingBufferSize is the ring capacity used when none is configured.
	DefaultRingBufferSize = 1 << 20
	// DefaultBatchSize is the row group size used when none is configured.
	DefaultBatchSize = 65536
	// FileExt is the extension of files written in directory mode.
	FileExt = ".pqf"
)

// Config is the construction-time configuration of a Sink.
type Config struct {
	// Name labels metrics, spans and logs. Defaults to "default".
	Name string

	// Exactly one of OutputPath and OutputDir is set. OutputPath "a/ticks.pqf"
	// yields a/ticks-00000.pqf, a/ticks-00001.pqf, ...; OutputDir "a" yields
	// a/part-00000.pqf, ...
	OutputPath string
	OutputDir  string

	Compression      compression.Codec
	CompressionLevel compression.Level

	// RingBufferSize is the slot count, a power of two. Zero means default.
	RingBufferSize int
	// BatchSize is the target rows per row group. Zero means default.
	BatchSize int
	// MaxRowsPerFile rotates output files at this many rows; 0 is unlimited.
	MaxRowsPerFile int64
	// Parallelism is the number of goroutines compressing the chunks of one
	// row group. Zero or one compresses inline.
	Parallelism int
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.RingBufferSize == 0 {
		c.RingBufferSize = DefaultRingBufferSize
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Parallelism == 0 {
		c.Parallelism = 1
	}
	return c
}

// Validate checks c after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()

	invalid := func(format string, args ...interface{}) error {
		return flowerrors.Newf(flowerrors.CodeInvalidArgument, format, args...)
	}
	switch {
	case c.OutputPath == "" && c.OutputDir == "":
		return invalid("one of output_path and output_dir is required")
	case c.OutputPath != "" && c.OutputDir != "":
		return invalid("output_path and output_dir are mutually exclusive")
	case c.RingBufferSize < 2 || c.RingBufferSize&(c.RingBufferSize-1) != 0:
		return invalid("ring_buffer_size %d is not a power of two >= 2", c.RingBufferSize)
	case c.BatchSize < 0:
		return invalid("batch_size must be > 0, got %d", c.BatchSize)
	case c.MaxRowsPerFile < 0:
		return invalid("max_rows_per_file must be >= 0, got %d", c.MaxRowsPerFile)
	case c.Parallelism < 0:
		return invalid("parallelism must be >= 0, got %d", c.Parallelism)
	case !c.Compression.Valid():
		return invalid("unknown compression codec %d", c.Compression)
	}
	return nil
}

// FilePath returns the output path for rotation sequence number seq.
func (c Config) FilePath(seq int) string {
	if c.OutputDir != "" {
		return filepath.Join(c.OutputDir, fmt.Sprintf("part-%05d%s", seq, FileExt))
	}
	ext := filepath.Ext(c.OutputPath)
	stem := strings.TrimSuffix(c.OutputPath, ext)
	return fmt.Sprintf("%s-%05d%s", stem, seq, ext)
}
