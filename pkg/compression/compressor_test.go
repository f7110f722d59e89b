package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/zfits/pkg/errors"
)

func TestRoundTrip(t *testing.T) {
	row := bytes.Repeat([]byte("camera event waveform 0123456789 "), 64)

	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2} {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			t.Run(string(alg)+"/"+level.String(), func(t *testing.T) {
				comp, err := NewCompressor(&Config{Algorithm: alg, Level: level})
				require.NoError(t, err)
				assert.Equal(t, alg, comp.Algorithm())

				packed, err := comp.Compress(row)
				require.NoError(t, err)
				if alg != None {
					assert.Less(t, len(packed), len(row))
				}

				got, err := comp.Decompress(packed, len(row))
				require.NoError(t, err)
				assert.Equal(t, row, got)
			})
		}
	}
}

func TestEmptyPayload(t *testing.T) {
	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2} {
		comp, err := NewCompressor(&Config{Algorithm: alg})
		require.NoError(t, err)

		packed, err := comp.Compress(nil)
		require.NoError(t, err, alg)
		got, err := comp.Decompress(packed, 0)
		require.NoError(t, err, alg)
		assert.Empty(t, got, alg)
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	row := bytes.Repeat([]byte{7}, 1000)

	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2} {
		comp, err := NewCompressor(&Config{Algorithm: alg})
		require.NoError(t, err)

		packed, err := comp.Compress(row)
		require.NoError(t, err)

		_, err = comp.Decompress(packed, 10)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData), "%s: %v", alg, err)
	}
}

func TestDecompressGarbage(t *testing.T) {
	for _, alg := range []Algorithm{Gzip, Snappy, LZ4, Zstd, S2} {
		comp, err := NewCompressor(&Config{Algorithm: alg})
		require.NoError(t, err)
		_, err = comp.Decompress([]byte("definitely not compressed"), 100)
		assert.Error(t, err, alg)
	}
}

func TestParse(t *testing.T) {
	a, err := ParseAlgorithm(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	_, err = ParseAlgorithm("brotli")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	l, err := ParseLevel("best")
	require.NoError(t, err)
	assert.Equal(t, Best, l)

	_, err = ParseLevel("extreme")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewCompressor(&Config{Algorithm: "brotli"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
