//go:build linux

package mmap

import (
	"os"
	"syscall"
)

func mapFile(f *os.File, size int) ([]byte, error) {
	data, err := syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	// row access is random; advice failures are harmless
	_ = syscall.Madvise(data, syscall.MADV_RANDOM)
	return data, nil
}

func unmap(b []byte) error {
	return syscall.Munmap(b)
}
