// Package export writes record streams to interchange formats: JSON lines
// and Avro object container files.
package export

import (
	"io"
	"strings"

	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/record"
	"github.com/ajitpratap0/zfits/pkg/schema"
)

// Format names an export format.
type Format string

const (
	// JSON writes one JSON object per line
	JSON Format = "json"
	// Avro writes an Avro object container file
	Avro Format = "avro"
)

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case JSON, Avro:
		return f, nil
	case "jsonl", "ndjson":
		return JSON, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown export format %q", s)
	}
}

// Exporter writes records of one message type.
type Exporter interface {
	Write(r *record.Record) error
	// Count returns the number of records written.
	Count() int
	// Close flushes buffered output. It does not close the underlying writer.
	Close() error
}

// New creates an exporter for records of typeName.
func New(format Format, w io.Writer, reg *schema.Registry, typeName string) (Exporter, error) {
	switch format {
	case JSON:
		return NewJSONLines(w), nil
	case Avro:
		a, err := NewAvro(w, reg, typeName)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown export format %q", format)
	}
}
