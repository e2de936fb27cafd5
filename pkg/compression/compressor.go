// Package compression provides the codecs a file applies to its column
// chunks. A codec is chosen once per file, recorded in the footer by its
// numeric id, and applied uniformly to every chunk.
//
// # Codec ids
//
// The ids are stable on disk:
//
//	NONE   = 0
//	SNAPPY = 1
//	GZIP   = 2
//	ZSTD   = 6
//	LZ4    = 7
//	S2     = 8
//
// Ids outside this set are rejected with CodeInvalidArgument.
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(compression.Zstd, compression.Default)
//	compressed, err := comp.Compress(chunk)
//	original, err := comp.Decompress(compressed, len(chunk))
//
// Speed (fastest to slowest): LZ4 > Snappy/S2 > Zstd > Gzip.
// Compression ratio (best to worst): Zstd > Gzip > S2 > Snappy > LZ4.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/pool"
)

// Codec identifies a compression algorithm by its on-disk id.
type Codec uint8

const (
	// None stores chunks uncompressed.
	None Codec = 0
	// Snappy is the block snappy format.
	Snappy Codec = 1
	// Gzip is RFC 1952 gzip.
	Gzip Codec = 2
	// Zstd is zstandard.
	Zstd Codec = 6
	// LZ4 is the lz4 frame format.
	LZ4 Codec = 7
	// S2 is the snappy-compatible s2 block format.
	S2 Codec = 8
)

var codecNames = map[Codec]string{
	None:   "none",
	Snappy: "snappy",
	Gzip:   "gzip",
	Zstd:   "zstd",
	LZ4:    "lz4",
	S2:     "s2",
}

// String returns the lower-case codec name.
func (c Codec) String() string {
	if name, ok := codecNames[c]; ok {
		return name
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// Valid reports whether c is a known codec id.
func (c Codec) Valid() bool {
	_, ok := codecNames[c]
	return ok
}

// ParseCodec accepts a codec name, case-insensitively. The empty string
// means None.
func ParseCodec(s string) (Codec, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || name == "uncompressed" {
		return None, nil
	}
	for c, n := range codecNames {
		if n == name {
			return c, nil
		}
	}
	return None, flowerrors.Newf(flowerrors.CodeInvalidArgument, "unknown compression codec %q", s)
}

// CodecFromID validates a raw numeric id.
func CodecFromID(id int) (Codec, error) {
	if id < 0 || id > 255 || !Codec(id).Valid() {
		return None, flowerrors.Newf(flowerrors.CodeInvalidArgument, "unknown compression codec id %d", id)
	}
	return Codec(id), nil
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Default balances speed and compression.
	Default Level = 0
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// ParseLevel accepts a level name or an integer from 0 to 9.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return Default, nil
	case "fastest", "fast":
		return Fastest, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 9 {
		return 0, flowerrors.Newf(flowerrors.CodeInvalidArgument, "unknown compression level %q", s)
	}
	return Level(n), nil
}

// Compressor compresses and decompresses whole chunks.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress returns a newly allocated compressed copy of data.
	Compress(data []byte) ([]byte, error)

	// Decompress reverses Compress. size is the expected uncompressed length
	// and bounds how much output is produced.
	Decompress(data []byte, size int) ([]byte, error)

	// Codec returns the codec id.
	Codec() Codec
}

// NewCompressor returns a compressor for codec at the given level. Level is
// ignored by codecs that have no levels.
func NewCompressor(codec Codec, level Level) (Compressor, error) {
	switch codec {
	case None:
		return noneCompressor{}, nil
	case Snappy:
		return snappyCompressor{}, nil
	case Gzip:
		return newGzipCompressor(level), nil
	case Zstd:
		return newZstdCompressor(level)
	case LZ4:
		return &lz4Compressor{level: mapLZ4Level(level)}, nil
	case S2:
		return s2Compressor{better: level >= Better}, nil
	default:
		return nil, flowerrors.Newf(flowerrors.CodeInvalidArgument, "unsupported compression codec id %d", uint8(codec))
	}
}

func corrupt(codec Codec, err error) error {
	return flowerrors.Wrap(err, flowerrors.CodeIO, codec.String()+" decompress failed")
}

func checkSize(codec Codec, out []byte, size int) ([]byte, error) {
	if len(out) != size {
		return nil, flowerrors.Newf(flowerrors.CodeIO, "%s: decompressed %d bytes, expected %d", codec, len(out), size)
	}
	return out, nil
}

type noneCompressor struct{}

func (noneCompressor) Codec() Codec { return None }

func (noneCompressor) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (noneCompressor) Decompress(data []byte, size int) ([]byte, error) {
	return checkSize(None, data, size)
}

type snappyCompressor struct{}

func (snappyCompressor) Codec() Codec { return Snappy }

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte, size int) ([]byte, error) {
	out, err := snappy.Decode(make([]byte, size), data)
	if err != nil {
		return nil, corrupt(Snappy, err)
	}
	return checkSize(Snappy, out, size)
}

type s2Compressor struct {
	better bool
}

func (s2Compressor) Codec() Codec { return S2 }

func (sc s2Compressor) Compress(data []byte) ([]byte, error) {
	if sc.better {
		return s2.EncodeBetter(nil, data), nil
	}
	return s2.Encode(nil, data), nil
}

func (s2Compressor) Decompress(data []byte, size int) ([]byte, error) {
	out, err := s2.Decode(make([]byte, size), data)
	if err != nil {
		return nil, corrupt(S2, err)
	}
	return checkSize(S2, out, size)
}

type gzipCompressor struct {
	writerPool sync.Pool
	readerPool sync.Pool
}

func newGzipCompressor(level Level) *gzipCompressor {
	gl := mapGzipLevel(level)
	gc := &gzipCompressor{}
	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gl)
		return w
	}
	gc.readerPool.New = func() interface{} {
		return new(gzip.Reader)
	}
	return gc
}

func (*gzipCompressor) Codec() Codec { return Gzip }

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	w.Reset(buf)
	if _, err := w.Write(data); err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeInternal, "gzip compress failed")
	}
	if err := w.Close(); err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeInternal, "gzip compress failed")
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func (gc *gzipCompressor) Decompress(data []byte, size int) ([]byte, error) {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)

	if err := r.Reset(bytes.NewReader(data)); err != nil {
		return nil, corrupt(Gzip, err)
	}
	return readBounded(Gzip, r, size)
}

// readBounded reads exactly size bytes and fails if the stream holds more.
func readBounded(codec Codec, r io.Reader, size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, corrupt(codec, err)
	}
	var probe [1]byte
	if n, _ := r.Read(probe[:]); n != 0 {
		return nil, flowerrors.Newf(flowerrors.CodeIO, "%s: decompressed data exceeds %d bytes", codec, size)
	}
	return out, nil
}

type lz4Compressor struct {
	level lz4.CompressionLevel
}

func (*lz4Compressor) Codec() Codec { return LZ4 }

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	w := lz4.NewWriter(buf)
	if err := w.Apply(lz4.CompressionLevelOption(lc.level)); err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeInternal, "lz4 configure failed")
	}
	if _, err := w.Write(data); err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeInternal, "lz4 compress failed")
	}
	if err := w.Close(); err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeInternal, "lz4 compress failed")
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func (lc *lz4Compressor) Decompress(data []byte, size int) ([]byte, error) {
	return readBounded(LZ4, lz4.NewReader(bytes.NewReader(data)), size)
}

type zstdCompressor struct {
	encoderPool sync.Pool
	decoderPool sync.Pool
}

func newZstdCompressor(level Level) (*zstdCompressor, error) {
	zl := mapZstdLevel(level)

	// Fail fast on a bad option set instead of inside the pool.
	probe, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zl))
	if err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeInternal, "zstd encoder init failed")
	}

	zc := &zstdCompressor{}
	zc.encoderPool.Put(probe)
	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zl))
		return enc
	}
	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}
	return zc, nil
}

func (*zstdCompressor) Codec() Codec { return Zstd }

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	return enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte, size int) ([]byte, error) {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	out, err := dec.DecodeAll(data, make([]byte, 0, size))
	if err != nil {
		return nil, corrupt(Zstd, err)
	}
	return checkSize(Zstd, out, size)
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Better:
		return 7
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Better:
		return lz4.Level7
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
