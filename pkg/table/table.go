// Package table gives typed, 0-based access to the binary tables of a
// container.
//
// A container.Reader has a single current table. Tables that share a
// Reader share a cursor guard: every read checks whether the Reader is
// still positioned for this table and reopens and seeks it when it is not.
package table

import (
	"iter"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/zfits/pkg/container"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/metrics"
	"github.com/ajitpratap0/zfits/pkg/record"
)

// cursor serializes access to one Reader and remembers which table last
// positioned it.
type cursor struct {
	mu     sync.Mutex
	reader container.Reader
	owner  *Table
}

// Table is a handle on one binary table.
type Table struct {
	cur    *cursor
	desc   container.TableDescriptor
	codec  *record.Codec
	logger *zap.Logger
	pos    int // 0-based index of the next row returned by Next
}

// New wraps a Reader for the table described by desc. The Reader is not
// shared with any other table.
func New(r container.Reader, desc container.TableDescriptor, codec *record.Codec, log *zap.Logger) (*Table, error) {
	return newTable(&cursor{reader: r}, desc, codec, log)
}

func newTable(cur *cursor, desc container.TableDescriptor, codec *record.Codec, log *zap.Logger) (*Table, error) {
	if codec == nil {
		codec = record.NewCodec(nil, log)
	}
	if _, err := codec.Registry().Resolve(desc.MessageType); err != nil {
		return nil, errors.Wrap(err, errors.TypeOf(err), "table declares an unusable message type").
			WithDetail("table", desc.ExtName).
			WithDetail("path", desc.Path)
	}
	return &Table{
		cur:    cur,
		desc:   desc,
		codec:  codec,
		logger: logger.OrDefault(log, "table").With(zap.String("table", desc.ExtName), zap.String("path", desc.Path)),
	}, nil
}

// Name returns the table (extension) name.
func (t *Table) Name() string { return t.desc.ExtName }

// Path returns the container path.
func (t *Table) Path() string { return t.desc.Path }

// MessageType returns the declared message type of every row.
func (t *Table) MessageType() string { return t.desc.MessageType }

// Len returns the number of rows.
func (t *Table) Len() int { return t.desc.Rows }

// Header returns a copy of the table header.
func (t *Table) Header() map[string]string {
	h := make(map[string]string, len(t.desc.Header))
	for k, v := range t.desc.Header {
		h[k] = v
	}
	return h
}

// Descriptor returns the table descriptor.
func (t *Table) Descriptor() container.TableDescriptor { return t.desc }

// NextRaw returns the next serialized row. ok is false at the end of the table.
func (t *Table) NextRaw() (row []byte, ok bool, err error) {
	t.cur.mu.Lock()
	defer t.cur.mu.Unlock()

	if t.pos >= t.desc.Rows {
		return nil, false, nil
	}
	if t.cur.owner == t {
		row, ok, err = t.cur.reader.ReadNextRow()
	} else {
		row, err = t.seek(t.pos + 1)
		ok = err == nil
	}
	if err != nil {
		t.cur.owner = nil
		metrics.RowsRead.WithLabelValues(t.desc.ExtName, metrics.StatusFailure).Inc()
		return nil, false, err
	}
	if !ok {
		t.logger.Debug("reader ended before the declared row count", zap.Int("rows", t.pos))
		t.pos = t.desc.Rows
		return nil, false, nil
	}
	t.pos++
	metrics.RowsRead.WithLabelValues(t.desc.ExtName, metrics.StatusSuccess).Inc()
	return row, true, nil
}

// Next decodes the next row. ok is false at the end of the table.
func (t *Table) Next() (*record.Record, bool, error) {
	row, ok, err := t.NextRaw()
	if err != nil || !ok {
		return nil, ok, err
	}
	r, err := t.decode(row)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// Rewind restarts Next at the first row.
func (t *Table) Rewind() {
	t.cur.mu.Lock()
	defer t.cur.mu.Unlock()
	t.pos = 0
	if t.cur.owner == t {
		t.cur.owner = nil
	}
}

// RawAt returns the serialized row at a 0-based index; negative indexes
// count from the end. It does not move the Next position.
func (t *Table) RawAt(index int) ([]byte, error) {
	i, err := t.normalize(index)
	if err != nil {
		return nil, err
	}
	t.cur.mu.Lock()
	defer t.cur.mu.Unlock()

	row, err := t.seek(i + 1)
	// The reader now sits after row i, not at t.pos.
	t.cur.owner = nil
	return row, err
}

// At decodes the row at a 0-based index; negative indexes count from the end.
func (t *Table) At(index int) (*record.Record, error) {
	row, err := t.RawAt(index)
	if err != nil {
		return nil, err
	}
	return t.decode(row)
}

func (t *Table) decode(row []byte) (*record.Record, error) {
	r, err := t.codec.Unmarshal(t.desc.MessageType, row)
	if err != nil {
		metrics.CodecErrors.WithLabelValues("decode", string(errors.TypeOf(err))).Inc()
		return nil, err
	}
	return r, nil
}

// Slice decodes rows [start, stop). Bounds are clamped like Go slicing of
// a sequence of Len rows, with negative values counting from the end.
func (t *Table) Slice(start, stop int) ([]*record.Record, error) {
	start, stop = t.clamp(start), t.clamp(stop)
	if stop <= start {
		return nil, nil
	}
	idx := make([]int, 0, stop-start)
	for i := start; i < stop; i++ {
		idx = append(idx, i)
	}
	return t.Rows(idx)
}

// Rows decodes the rows at the given 0-based indexes, in the given order.
func (t *Table) Rows(indexes []int) ([]*record.Record, error) {
	out := make([]*record.Record, 0, len(indexes))
	for _, i := range indexes {
		r, err := t.At(i)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// All iterates the remaining rows from the current Next position. Iteration
// stops after the first error.
func (t *Table) All() iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		for {
			r, ok, err := t.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok || !yield(r, nil) {
				return
			}
		}
	}
}

// seek opens the table on the reader and reads the 1-based row index,
// leaving the reader positioned after it. Callers hold cur.mu.
func (t *Table) seek(index int) ([]byte, error) {
	if t.cur.reader.Current() != t.desc.ExtName {
		if err := t.cur.reader.Open(t.desc.ExtName); err != nil {
			return nil, err
		}
	}
	row, err := t.cur.reader.ReadRowAt(index)
	if err != nil {
		return nil, err
	}
	t.cur.owner = t
	return row, nil
}

func (t *Table) normalize(index int) (int, error) {
	i := index
	if i < 0 {
		i += t.desc.Rows
	}
	if i < 0 || i >= t.desc.Rows {
		return 0, errors.Newf(errors.ErrorTypeValidation, "index %d out of range for %d rows", index, t.desc.Rows).
			WithDetail("table", t.desc.ExtName)
	}
	return i, nil
}

func (t *Table) clamp(i int) int {
	if i < 0 {
		i += t.desc.Rows
	}
	return max(0, min(i, t.desc.Rows))
}
