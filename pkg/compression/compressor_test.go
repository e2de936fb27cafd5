package compression

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

var sample = bytes.Repeat([]byte("ts=1700000000 sym=BTC-USD px=42000.5 qty=0.25;"), 200)

func TestRoundTrip(t *testing.T) {
	for _, codec := range []Codec{None, Snappy, Gzip, Zstd, LZ4, S2} {
		for _, level := range []Level{Default, Fastest, Best} {
			t.Run(codec.String(), func(t *testing.T) {
				comp, err := NewCompressor(codec, level)
				require.NoError(t, err)
				assert.Equal(t, codec, comp.Codec())

				compressed, err := comp.Compress(sample)
				require.NoError(t, err)
				if codec != None {
					assert.Less(t, len(compressed), len(sample))
				}

				out, err := comp.Decompress(compressed, len(sample))
				require.NoError(t, err)
				assert.Equal(t, sample, out)
			})
		}
	}
}

func TestEmptyInput(t *testing.T) {
	for _, codec := range []Codec{None, Snappy, Gzip, Zstd, LZ4, S2} {
		comp, err := NewCompressor(codec, Default)
		require.NoError(t, err)
		compressed, err := comp.Compress(nil)
		require.NoError(t, err, codec.String())
		out, err := comp.Decompress(compressed, 0)
		require.NoError(t, err, codec.String())
		assert.Empty(t, out)
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	for _, codec := range []Codec{None, Snappy, Gzip, Zstd, LZ4} {
		comp, err := NewCompressor(codec, Default)
		require.NoError(t, err)
		compressed, err := comp.Compress(sample)
		require.NoError(t, err)

		_, err = comp.Decompress(compressed, len(sample)-1)
		assert.Equal(t, flowerrors.CodeIO, flowerrors.CodeOf(err), codec.String())
	}
}

func TestUnknownCodec(t *testing.T) {
	_, err := NewCompressor(Codec(3), Default)
	assert.Equal(t, flowerrors.CodeInvalidArgument, flowerrors.CodeOf(err))

	_, err = CodecFromID(5)
	assert.Equal(t, flowerrors.CodeInvalidArgument, flowerrors.CodeOf(err))

	c, err := CodecFromID(6)
	require.NoError(t, err)
	assert.Equal(t, Zstd, c)
}

func TestParseCodec(t *testing.T) {
	tests := map[string]Codec{
		"":       None,
		"none":   None,
		"SNAPPY": Snappy,
		"gzip":   Gzip,
		" zstd ": Zstd,
		"lz4":    LZ4,
		"s2":     S2,
	}
	for in, want := range tests {
		got, err := ParseCodec(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCodec("brotli")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{"": Default, "fastest": Fastest, "Best": Best, "better": Better, "3": Level(3)}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"10", "-1", "max"} {
		_, err := ParseLevel(bad)
		assert.Error(t, err, bad)
	}
}

func TestParallelCompressorKeepsOrder(t *testing.T) {
	comp, err := NewCompressor(Zstd, Default)
	require.NoError(t, err)
	pc := NewParallelCompressor(comp, 4, zaptest.NewLogger(t))

	chunks := make([][]byte, 16)
	for i := range chunks {
		chunks[i] = bytes.Repeat([]byte{byte(i)}, 1000+i)
	}

	out, err := pc.CompressChunks(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, out, len(chunks))
	for i, c := range out {
		plain, err := comp.Decompress(c, len(chunks[i]))
		require.NoError(t, err)
		assert.Equal(t, chunks[i], plain)
	}

	in, compressed := pc.Stats()
	assert.Greater(t, in, compressed)
	assert.Greater(t, pc.Ratio(), 0.0)
}

func TestParallelCompressorCancelled(t *testing.T) {
	comp, err := NewCompressor(Gzip, Default)
	require.NoError(t, err)
	pc := NewParallelCompressor(comp, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pc.CompressChunks(ctx, [][]byte{sample, sample, sample})
	assert.Error(t, err)
}
