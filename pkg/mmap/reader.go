// Package mmap provides read-only memory-mapped access to finished files.
package mmap

import (
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

// Reader maps a whole file read-only. It implements io.ReaderAt and hands
// out zero-copy slices with Slice. Slices are invalid after Close.
type Reader struct {
	file *os.File
	data []byte
	size int64

	mu     sync.RWMutex
	closed bool
}

// Open maps the file at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path) //nolint:gosec // caller controls the path
	if err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeIO, "failed to open file").WithDetail("path", path)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, flowerrors.Wrap(err, flowerrors.CodeIO, "failed to stat file").WithDetail("path", path)
	}

	size := stat.Size()
	if size == 0 {
		_ = file.Close()
		return nil, flowerrors.New(flowerrors.CodeInvalidArgument, "file is empty").WithDetail("path", path)
	}

	data, err := mmap(file, int(size))
	if err != nil {
		_ = file.Close()
		return nil, flowerrors.Wrap(err, flowerrors.CodeIO, "failed to mmap file").WithDetail("path", path)
	}

	// Footers are read from the end and chunks in offset order.
	_ = madvise(data, adviceSequential)

	return &Reader{file: file, data: data, size: size}, nil
}

// Size returns the mapped length.
func (r *Reader) Size() int64 {
	return r.size
}

// ReadAt implements io.ReaderAt.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, flowerrors.New(flowerrors.CodeNotOpen, "mmap reader is closed")
	}
	if off < 0 {
		return 0, flowerrors.Newf(flowerrors.CodeInvalidArgument, "negative offset %d", off)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Slice returns data[off:off+n] without copying.
func (r *Reader) Slice(off, n int64) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, flowerrors.New(flowerrors.CodeNotOpen, "mmap reader is closed")
	}
	if off < 0 || n < 0 || off+n > r.size {
		return nil, flowerrors.Newf(flowerrors.CodeInvalidArgument,
			"range [%d, %d) out of bounds [0, %d)", off, off+n, r.size)
	}
	return r.data[off : off+n : off+n], nil
}

// WillNeed asks the kernel to prefetch a range. Errors are ignored.
func (r *Reader) WillNeed(off, n int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || off < 0 || n <= 0 || off >= r.size {
		return
	}
	page := int64(os.Getpagesize())
	start := off / page * page
	end := off + n
	if end > r.size {
		end = r.size
	}
	_ = madvise(r.data[start:end], adviceWillNeed)
}

// Close unmaps the file. It is safe to call more than once.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	if err := munmap(r.data); err != nil {
		firstErr = flowerrors.Wrap(err, flowerrors.CodeIO, "failed to unmap file")
	}
	r.data = nil
	if err := r.file.Close(); err != nil && firstErr == nil {
		firstErr = flowerrors.Wrap(err, flowerrors.CodeIO, "failed to close file")
	}
	return firstErr
}
