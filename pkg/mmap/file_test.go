package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/zfits/pkg/errors"
)

func TestOpenAndSlice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(10), f.Size())

	b, err := f.Slice(2, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("234"), b)

	_, err = f.Slice(8, 5)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 8)
	assert.Equal(t, 2, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, []byte("89"), buf[:n])
}

func TestEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.Size())
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}

func TestSliceAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))

	f, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = f.Slice(0, 1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.bin"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
