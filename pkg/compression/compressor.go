// Package compression compresses container row payloads.
//
// Every row of a zfile table is compressed on its own with the table's
// algorithm, so a single row can be read without touching its neighbours.
// The uncompressed size is stored next to each row and bounds
// decompression.
//
// # Algorithm Selection
//
//   - LZ4, Snappy, S2: fastest, moderate ratio
//   - Zstd: best ratio at good speed, the default for written files
//   - Gzip: wide compatibility
//   - None: raw rows
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Default,
//	})
//	packed, err := comp.Compress(row)
//	row, err = comp.Decompress(packed, len(row))
package compression

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/pool"
)

// Algorithm names a compression algorithm. The name is stored in file footers.
type Algorithm string

const (
	// None stores rows uncompressed
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level trades speed for ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return "unknown"
	}
}

// ParseAlgorithm converts a configuration string to an Algorithm. The
// empty string means None.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case "":
		return None, nil
	case None, Gzip, Snappy, LZ4, Zstd, S2:
		return a, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", s)
	}
}

// ParseLevel converts a configuration string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fastest":
		return Fastest, nil
	case "", "default":
		return Default, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "unsupported compression level: %s", s)
	}
}

// Compressor compresses and decompresses single payloads. Implementations
// are safe for concurrent use.
type Compressor interface {
	// Compress returns the compressed form of data. data is not modified.
	Compress(data []byte) ([]byte, error)

	// Decompress returns the original payload. rawSize is the expected
	// uncompressed length; output longer than that is an error.
	Decompress(data []byte, rawSize int) ([]byte, error)

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm
}

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm
	Level     Level
}

// DefaultConfig returns zstd at the default level.
func DefaultConfig() *Config {
	return &Config{Algorithm: Zstd, Level: Default}
}

// NewCompressor creates a compressor. A nil config uses DefaultConfig.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Algorithm {
	case None, "":
		return noneCompressor{}, nil
	case Gzip:
		return newGzipCompressor(config.Level), nil
	case Snappy:
		return snappyCompressor{}, nil
	case LZ4:
		return lz4Compressor{level: mapLZ4Level(config.Level)}, nil
	case Zstd:
		return newZstdCompressor(config.Level)
	case S2:
		return s2Compressor{}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", config.Algorithm)
	}
}

func checkSize(out []byte, rawSize int, alg Algorithm) ([]byte, error) {
	if rawSize >= 0 && len(out) != rawSize {
		return nil, errors.Newf(errors.ErrorTypeData,
			"%s payload decompressed to %d bytes, want %d", alg, len(out), rawSize)
	}
	return out, nil
}

// readAll copies at most rawSize+1 bytes so oversized payloads are detected
// without being fully inflated.
func readAll(r io.Reader, rawSize int, alg Algorithm) ([]byte, error) {
	var buf bytes.Buffer
	if rawSize >= 0 {
		buf.Grow(rawSize)
		r = io.LimitReader(r, int64(rawSize)+1)
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "decompression failed").
			WithDetail("algorithm", string(alg))
	}
	return checkSize(buf.Bytes(), rawSize, alg)
}

type noneCompressor struct{}

func (noneCompressor) Algorithm() Algorithm { return None }

func (noneCompressor) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (noneCompressor) Decompress(data []byte, rawSize int) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return checkSize(out, rawSize, None)
}

type gzipCompressor struct {
	level   int
	writers *pool.Pool[*gzip.Writer]
}

func newGzipCompressor(level Level) *gzipCompressor {
	gc := &gzipCompressor{level: mapGzipLevel(level)}
	gc.writers = pool.New(
		func() *gzip.Writer {
			w, _ := gzip.NewWriterLevel(nil, gc.level)
			return w
		},
		func(w *gzip.Writer) { w.Reset(nil) },
	)
	return gc
}

func (gc *gzipCompressor) Algorithm() Algorithm { return Gzip }

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	w := gc.writers.Get()
	defer gc.writers.Put(w)
	buf := pool.Buffers.Get()
	defer pool.Buffers.Put(buf)

	w.Reset(buf)
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "gzip compression failed")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "gzip compression failed")
	}
	return bytes.Clone(buf.Bytes()), nil
}

func (gc *gzipCompressor) Decompress(data []byte, rawSize int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid gzip payload")
	}
	defer r.Close()
	return readAll(r, rawSize, Gzip)
}

type snappyCompressor struct{}

func (snappyCompressor) Algorithm() Algorithm { return Snappy }

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte, rawSize int) ([]byte, error) {
	if n, err := snappy.DecodedLen(data); err == nil && rawSize >= 0 && n != rawSize {
		return nil, errors.Newf(errors.ErrorTypeData, "snappy payload holds %d bytes, want %d", n, rawSize)
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid snappy payload")
	}
	return checkSize(out, rawSize, Snappy)
}

type s2Compressor struct{}

func (s2Compressor) Algorithm() Algorithm { return S2 }

func (s2Compressor) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (s2Compressor) Decompress(data []byte, rawSize int) ([]byte, error) {
	if n, err := s2.DecodedLen(data); err == nil && rawSize >= 0 && n != rawSize {
		return nil, errors.Newf(errors.ErrorTypeData, "s2 payload holds %d bytes, want %d", n, rawSize)
	}
	out, err := s2.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid s2 payload")
	}
	return checkSize(out, rawSize, S2)
}

type lz4Compressor struct {
	level lz4.CompressionLevel
}

func (lz4Compressor) Algorithm() Algorithm { return LZ4 }

func (lc lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lc.level)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid lz4 level")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "lz4 compression failed")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "lz4 compression failed")
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(data []byte, rawSize int) ([]byte, error) {
	return readAll(lz4.NewReader(bytes.NewReader(data)), rawSize, LZ4)
}

type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// newZstdCompressor shares one encoder and decoder; EncodeAll and DecodeAll
// are safe for concurrent use.
func newZstdCompressor(level Level) (*zstdCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(mapZstdLevel(level)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create zstd decoder")
	}
	return &zstdCompressor{encoder: enc, decoder: dec}, nil
}

func (zc *zstdCompressor) Algorithm() Algorithm { return Zstd }

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return zc.encoder.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte, rawSize int) ([]byte, error) {
	var dst []byte
	if rawSize > 0 {
		dst = make([]byte, 0, rawSize)
	}
	out, err := zc.decoder.DecodeAll(data, dst)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid zstd payload")
	}
	return checkSize(out, rawSize, Zstd)
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
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
