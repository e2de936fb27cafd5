package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

func writeTemp(t *testing.T, body []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(p, body, 0o600))
	return p
}

func TestReaderReadAtAndSlice(t *testing.T) {
	r, err := Open(writeTemp(t, []byte("0123456789")))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(10), r.Size())

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))

	n, err = r.ReadAt(buf, 8)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, n)

	_, err = r.ReadAt(buf, 10)
	assert.Equal(t, io.EOF, err)

	s, err := r.Slice(2, 3)
	require.NoError(t, err)
	assert.Equal(t, "234", string(s))
	assert.Equal(t, 3, cap(s))

	_, err = r.Slice(8, 5)
	assert.Equal(t, flowerrors.CodeInvalidArgument, flowerrors.CodeOf(err))

	r.WillNeed(0, 10)
	r.WillNeed(50, 10)
}

func TestReaderClose(t *testing.T) {
	r, err := Open(writeTemp(t, []byte("abc")))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.ReadAt(make([]byte, 1), 0)
	assert.Equal(t, flowerrors.CodeNotOpen, flowerrors.CodeOf(err))
	_, err = r.Slice(0, 1)
	assert.Equal(t, flowerrors.CodeNotOpen, flowerrors.CodeOf(err))
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, flowerrors.CodeIO, flowerrors.CodeOf(err))

	_, err = Open(writeTemp(t, nil))
	assert.Equal(t, flowerrors.CodeInvalidArgument, flowerrors.CodeOf(err))
}
