// Package mmap maps container files read-only into memory so rows can be
// sliced out without copying.
package mmap

import (
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/zfits/pkg/errors"
)

// File is a read-only memory-mapped file.
type File struct {
	mu   sync.RWMutex
	path string
	file *os.File
	data []byte
}

// Open maps path. Empty files are mapped as an empty slice.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").WithDetail("path", path)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").WithDetail("path", path)
	}

	m := &File{path: path, file: f}
	if size := stat.Size(); size > 0 {
		m.data, err = mapFile(f, int(size))
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to map file").WithDetail("path", path)
		}
	}
	return m, nil
}

// Path returns the mapped file's path.
func (m *File) Path() string {
	return m.path
}

// Size returns the file size in bytes.
func (m *File) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// Slice returns length bytes at offset without copying. The slice is only
// valid until Close.
func (m *File) Slice(offset int64, length int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.file == nil {
		return nil, errors.New(errors.ErrorTypeFile, "file is closed").WithDetail("path", m.path)
	}
	end := offset + int64(length)
	if offset < 0 || length < 0 || end > int64(len(m.data)) {
		return nil, errors.Newf(errors.ErrorTypeFile, "range [%d, %d) outside file of %d bytes", offset, end, len(m.data)).
			WithDetail("path", m.path)
	}
	return m.data[offset:end:end], nil
}

// ReadAt implements io.ReaderAt over the mapping.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if off < 0 {
		return 0, errors.Newf(errors.ErrorTypeFile, "negative offset %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps and closes the file. It is safe to call more than once.
func (m *File) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil {
		return nil
	}
	var err error
	if m.data != nil {
		err = unmap(m.data)
		m.data = nil
	}
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	m.file = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close mapping").WithDetail("path", m.path)
	}
	return nil
}
