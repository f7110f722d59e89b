// Package zfile is a file-backed container. Each row is compressed on its
// own so any row can be read without its neighbours; a JSON footer at the
// end of the file holds every table header and the row index.
//
// Layout:
//
//	magic | row payloads ... | footer JSON | footer length (uint64 LE) | magic
package zfile

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/zfits/pkg/compression"
	"github.com/ajitpratap0/zfits/pkg/container"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/json"
)

const (
	magic         = "ZFITSGO\x01"
	formatVersion = 1
	trailerSize   = 8 + len(magic)
)

type rowEntry struct {
	Offset  int64  `json:"o"`
	Size    int    `json:"c"`
	RawSize int    `json:"r"`
	Hash    uint64 `json:"h"`
}

type extension struct {
	Header      map[string]string     `json:"header"`
	Compression compression.Algorithm `json:"compression"`
	Rows        []rowEntry            `json:"rows"`
}

type footer struct {
	Version    int               `json:"version"`
	Primary    map[string]string `json:"primary"`
	Extensions []*extension      `json:"extensions"`
}

func (f *footer) headers() []map[string]string {
	out := make([]map[string]string, len(f.Extensions))
	for i, ext := range f.Extensions {
		out[i] = ext.Header
	}
	return out
}

func checksum(b []byte) uint64 {
	return xxhash.Sum64(b)
}

func encodeTrailer(footerLen int) []byte {
	b := make([]byte, trailerSize)
	binary.LittleEndian.PutUint64(b, uint64(footerLen))
	copy(b[8:], magic)
	return b
}

// parseFooter locates and decodes the footer of a whole-file image.
func parseFooter(path string, data []byte) (*footer, error) {
	if len(data) < len(magic)+trailerSize || string(data[:len(magic)]) != magic {
		return nil, errors.New(errors.ErrorTypeFile, "not a zfile container").WithDetail("path", path)
	}
	tail := data[len(data)-trailerSize:]
	if string(tail[8:]) != magic {
		return nil, errors.New(errors.ErrorTypeFile, "truncated zfile container").WithDetail("path", path)
	}
	size := binary.LittleEndian.Uint64(tail[:8])
	end := uint64(len(data) - trailerSize)
	if size > end-uint64(len(magic)) {
		return nil, errors.Newf(errors.ErrorTypeFile, "footer length %d exceeds file", size).WithDetail("path", path)
	}

	var f footer
	if err := json.Unmarshal(data[end-size:end], &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to decode footer").WithDetail("path", path)
	}
	if f.Version != formatVersion {
		return nil, errors.Newf(errors.ErrorTypeFile, "unsupported zfile version %d", f.Version).WithDetail("path", path)
	}
	limit := int64(end - size)
	for _, ext := range f.Extensions {
		if ext.Header == nil {
			ext.Header = map[string]string{}
		}
		for i, row := range ext.Rows {
			if row.Offset < int64(len(magic)) || row.Size < 0 || row.Offset+int64(row.Size) > limit {
				return nil, errors.Newf(errors.ErrorTypeFile, "row %d of %q points outside the data section", i+1, ext.Header[container.KeyExtName]).
					WithDetail("path", path)
			}
		}
	}
	return &f, nil
}
