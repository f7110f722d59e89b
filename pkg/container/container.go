// Package container defines the contracts between the record layer and the
// storage that holds serialized rows.
//
// A container is a file holding one or more named binary tables. A Reader
// has exactly one current table at a time; code reading several tables of
// one container through a shared Reader must reopen the table it wants
// before every read (see table.File). Row indexes are 1-based at this
// boundary.
package container

import (
	"sort"
	"strconv"

	"github.com/ajitpratap0/zfits/pkg/errors"
)

// Header keys used to describe a binary table.
const (
	KeyExtension   = "XTENSION"
	KeyExtName     = "EXTNAME"
	KeyMessageType = "PBFHEAD"
	KeyRows        = "ZNAXIS2"
	KeyTypeTag     = "PBFTAG"

	// BinTable is the KeyExtension value of row tables.
	BinTable = "BINTABLE"
)

// TableDescriptor describes one binary table of a container.
type TableDescriptor struct {
	Path        string            `json:"path"`
	ExtName     string            `json:"extname"`
	MessageType string            `json:"message_type"`
	Rows        int               `json:"rows"`
	Header      map[string]string `json:"header"`
}

// Lister lists the binary tables of a container.
type Lister interface {
	ListTables(path string) ([]TableDescriptor, error)
}

// Reader reads rows of the current table of one open container.
type Reader interface {
	// Path returns the container path.
	Path() string
	// Open makes extName the current table and rewinds it.
	Open(extName string) error
	// Current returns the current table name, "" before the first Open.
	Current() string
	// NumRows returns the row count of the current table.
	NumRows() int
	// ReadNextRow returns the next row; ok is false at the end of the table.
	ReadNextRow() (row []byte, ok bool, err error)
	// ReadRowAt returns row index (1-based) and positions the cursor after it.
	ReadRowAt(index int) ([]byte, error)
	// Rewind moves the cursor back to the first row.
	Rewind() error
	Close() error
}

// Sink receives rows for new tables.
type Sink interface {
	// DeclareTable starts a new table and makes it the append target.
	DeclareTable(name, typeTag string) error
	AppendRow(data []byte) error
	// Close finishes the container and makes it readable.
	Close() error
	// Abort discards the partly written container. Close and Abort are
	// no-ops once either has run.
	Abort() error
}

// Driver opens containers by path.
type Driver interface {
	Lister
	OpenReader(path string) (Reader, error)
	CreateSink(path string) (Sink, error)
}

// Describe builds descriptors from raw extension headers, keeping binary
// tables only.
func Describe(path string, headers []map[string]string) ([]TableDescriptor, error) {
	var out []TableDescriptor
	for _, h := range headers {
		if h[KeyExtension] != BinTable {
			continue
		}
		rows := 0
		if v, ok := h[KeyRows]; ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, errors.Newf(errors.ErrorTypeFile, "table %q has invalid %s %q", h[KeyExtName], KeyRows, v).
					WithDetail("path", path)
			}
			rows = n
		}
		header := make(map[string]string, len(h))
		for k, v := range h {
			header[k] = v
		}
		out = append(out, TableDescriptor{
			Path:        path,
			ExtName:     h[KeyExtName],
			MessageType: h[KeyMessageType],
			Rows:        rows,
			Header:      header,
		})
	}
	return out, nil
}

// TableHeader returns the header of a freshly declared binary table.
func TableHeader(name, messageType, typeTag string, rows int) map[string]string {
	return map[string]string{
		KeyExtension:   BinTable,
		KeyExtName:     name,
		KeyMessageType: messageType,
		KeyTypeTag:     typeTag,
		KeyRows:        strconv.Itoa(rows),
	}
}

// HeaderKeys returns the keys of h sorted.
func HeaderKeys(h map[string]string) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckRowIndex validates a 1-based row index against a row count.
func CheckRowIndex(index, rows int) error {
	if index < 1 || index > rows {
		return errors.Newf(errors.ErrorTypeValidation, "row %d out of range [1, %d]", index, rows)
	}
	return nil
}
