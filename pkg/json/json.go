// Package json wraps goccy/go-json for container footers and record export.
package json

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// Marshal is a drop-in replacement for encoding/json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// StreamingEncoder writes values as a JSON array or as JSON lines.
type StreamingEncoder struct {
	writer  io.Writer
	encoder *gojson.Encoder
	isArray bool
	count   int
	closed  bool
}

// NewStreamingEncoder creates an encoder writing to w. With isArray the
// output is one JSON array; otherwise one value per line.
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &StreamingEncoder{writer: w, encoder: enc, isArray: isArray}
}

// Encode writes one value.
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.isArray {
		sep := []byte{','}
		if se.count == 0 {
			sep = []byte{'['}
		}
		if _, err := se.writer.Write(sep); err != nil {
			return err
		}
	}
	se.count++
	return se.encoder.Encode(v)
}

// Count returns the number of values written.
func (se *StreamingEncoder) Count() int {
	return se.count
}

// Close terminates an array. It does not close the underlying writer.
func (se *StreamingEncoder) Close() error {
	if se.closed || !se.isArray {
		se.closed = true
		return nil
	}
	se.closed = true
	end := "]\n"
	if se.count == 0 {
		end = "[]\n"
	}
	_, err := io.WriteString(se.writer, end)
	return err
}
