//go:build linux

package mmap

import (
	"os"
	"syscall"
)

const (
	adviceSequential = syscall.MADV_SEQUENTIAL
	adviceWillNeed   = syscall.MADV_WILLNEED
)

func mmap(f *os.File, length int) ([]byte, error) {
	return syscall.Mmap(int(f.Fd()), 0, length, syscall.PROT_READ, syscall.MAP_SHARED)
}

func munmap(b []byte) error {
	return syscall.Munmap(b)
}

func madvise(b []byte, advice int) error {
	return syscall.Madvise(b, advice)
}
