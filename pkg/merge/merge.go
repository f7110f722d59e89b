// Package merge interleaves rows of several tables by a monotonic sequence
// key, as if they were one stream.
package merge

import (
	"container/heap"
	"iter"

	"go.uber.org/zap"

	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/metrics"
	"github.com/ajitpratap0/zfits/pkg/record"
)

// Source is one input stream. *table.Table implements it.
type Source interface {
	Path() string
	Len() int
	Header() map[string]string
	Next() (*record.Record, bool, error)
}

// cursor is the head of one source.
type cursor struct {
	src   Source
	order int // registration order, breaks key ties
	head  *record.Record
	key   uint64
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].order < h[j].order
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) {
	*h = append(*h, x.(*cursor))
}

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// Merge yields rows of all sources in non-decreasing key order. A Merge
// must not be advanced from more than one goroutine.
type Merge struct {
	sources []Source
	active  cursorHeap
	key     KeyFunc
	total   int
	logger  *zap.Logger
	err     error
}

// New primes every source with its first row and returns the merge.
// A nil key uses DefaultKey.
func New(sources []Source, key KeyFunc, log *zap.Logger) (*Merge, error) {
	if key == nil {
		key = DefaultKey
	}
	m := &Merge{
		sources: sources,
		key:     key,
		logger:  logger.OrDefault(log, "merge"),
	}
	for i, src := range sources {
		m.total += src.Len()
		c := &cursor{src: src, order: i}
		ok, err := m.advance(c)
		if err != nil {
			return nil, err
		}
		if ok {
			m.active = append(m.active, c)
		}
	}
	heap.Init(&m.active)
	m.logger.Debug("merge started", zap.Int("sources", len(sources)), zap.Int("rows", m.total))
	return m, nil
}

// Len returns the total row count of all sources. It does not change as
// rows are consumed.
func (m *Merge) Len() int { return m.total }

// Next returns the row with the smallest key. ok is false once every
// source is exhausted. After an error the merge stays failed.
func (m *Merge) Next() (*record.Record, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	if len(m.active) == 0 {
		return nil, false, nil
	}

	c := m.active[0]
	out := c.head
	ok, err := m.advance(c)
	if err != nil {
		m.err = err
		return nil, false, err
	}
	if ok {
		heap.Fix(&m.active, 0)
	} else {
		heap.Pop(&m.active)
		m.logger.Debug("source exhausted", zap.String("path", c.src.Path()))
	}
	metrics.RowsMerged.Inc()
	return out, true, nil
}

// All iterates the remaining rows. Iteration stops after the first error.
func (m *Merge) All() iter.Seq2[*record.Record, error] {
	return func(yield func(*record.Record, error) bool) {
		for {
			r, ok, err := m.Next()
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

// Headers returns every header key of the sources, mapped by source path
// to its value.
func (m *Merge) Headers() map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, src := range m.sources {
		for k, v := range src.Header() {
			byPath, ok := out[k]
			if !ok {
				byPath = make(map[string]string, len(m.sources))
				out[k] = byPath
			}
			byPath[src.Path()] = v
		}
	}
	return out
}

// advance loads the next head of c. It reports false when the source is
// exhausted.
func (m *Merge) advance(c *cursor) (bool, error) {
	r, ok, err := c.src.Next()
	if err != nil {
		return false, errors.Wrap(err, errors.TypeOf(err), "failed to read merge source").WithDetail("path", c.src.Path())
	}
	if !ok {
		c.head = nil
		return false, nil
	}
	key, err := m.key(r)
	if err != nil {
		return false, errors.Wrap(err, errors.TypeOf(err), "failed to extract sequence key").WithDetail("path", c.src.Path())
	}
	c.head, c.key = r, key
	return true, nil
}
