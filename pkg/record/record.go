// Package record holds decoded container rows as immutable typed records and
// converts them to and from catalog protobuf messages.
//
// A Record keeps its fields in schema declaration order; equality ignores
// order. Records are built with a Builder or produced by Codec.Decode and
// are not modified afterwards.
package record

import (
	"iter"
	"strings"

	"github.com/ajitpratap0/zfits/pkg/anyarray"
)

// Record is a decoded message: a type name plus ordered named values.
type Record struct {
	typeName string
	names    []string
	values   map[string]Value
}

// TypeName returns the message type the record was decoded from or built for.
func (r *Record) TypeName() string {
	if r == nil {
		return ""
	}
	return r.typeName
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Fields returns the field names in order.
func (r *Record) Fields() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Get returns the named value.
func (r *Record) Get(name string) (Value, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[name]
	return v, ok
}

// Lookup follows a dotted path through nested records, e.g. "hiGain.waveforms.samples".
func (r *Record) Lookup(path string) (Value, bool) {
	cur := r
	for {
		head, rest, nested := strings.Cut(path, ".")
		v, ok := cur.Get(head)
		if !ok {
			return nil, false
		}
		if !nested {
			return v, true
		}
		cur, ok = v.(*Record)
		if !ok {
			return nil, false
		}
		path = rest
	}
}

// All iterates over fields in order.
func (r *Record) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if r == nil {
			return
		}
		for _, name := range r.names {
			if !yield(name, r.values[name]) {
				return
			}
		}
	}
}

// Equal reports whether both records have the same type and the same
// field values, regardless of field order.
func (r *Record) Equal(o *Record) bool {
	if r == o {
		return true
	}
	if r == nil || o == nil || r.typeName != o.typeName || len(r.values) != len(o.values) {
		return false
	}
	for name, v := range r.values {
		w, ok := o.values[name]
		if !ok || !Equal(v, w) {
			return false
		}
	}
	return true
}

// Int returns a signed integer field, converting Uint when it fits.
func (r *Record) Int(path string) (int64, bool) {
	v, _ := r.Lookup(path)
	switch x := v.(type) {
	case Int:
		return int64(x), true
	case Uint:
		if uint64(x) <= 1<<63-1 {
			return int64(x), true
		}
	}
	return 0, false
}

// Uint returns an unsigned integer field, converting non-negative Int.
func (r *Record) Uint(path string) (uint64, bool) {
	v, _ := r.Lookup(path)
	switch x := v.(type) {
	case Uint:
		return uint64(x), true
	case Int:
		if x >= 0 {
			return uint64(x), true
		}
	}
	return 0, false
}

// Float returns a floating point field.
func (r *Record) Float(path string) (float64, bool) {
	v, _ := r.Lookup(path)
	x, ok := v.(Float)
	return float64(x), ok
}

// Enum returns the label of an enum field.
func (r *Record) Enum(path string) (string, bool) {
	v, _ := r.Lookup(path)
	x, ok := v.(Enum)
	return string(x), ok
}

// Array returns an array field.
func (r *Record) Array(path string) (anyarray.Array, bool) {
	v, _ := r.Lookup(path)
	x, ok := v.(Array)
	return x.Array, ok
}

// Record returns a nested record field.
func (r *Record) Record(path string) (*Record, bool) {
	v, _ := r.Lookup(path)
	x, ok := v.(*Record)
	return x, ok && x != nil
}

// Map converts the record to nested plain Go maps, see Native.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, r.Len())
	for name, v := range r.All() {
		out[name] = Native(v)
	}
	return out
}

func (r *Record) String() string {
	if r == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(r.typeName)
	b.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(formatValue(r.values[name]))
	}
	b.WriteByte('}')
	return b.String()
}

// Builder assembles a Record. Setting a field twice replaces its value but
// keeps its original position.
type Builder struct {
	rec   *Record
	built bool
}

// NewBuilder starts a record of typeName.
func NewBuilder(typeName string) *Builder {
	return &Builder{rec: &Record{typeName: typeName, values: make(map[string]Value)}}
}

// Set adds or replaces a field.
func (b *Builder) Set(name string, v Value) *Builder {
	if b.built {
		b.rec = b.rec.clone()
		b.built = false
	}
	if _, ok := b.rec.values[name]; !ok {
		b.rec.names = append(b.rec.names, name)
	}
	b.rec.values[name] = v
	return b
}

// Build returns the record. The builder may keep being used; later Sets
// do not affect records already built.
func (b *Builder) Build() *Record {
	b.built = true
	return b.rec
}

func (r *Record) clone() *Record {
	c := &Record{
		typeName: r.typeName,
		names:    make([]string, len(r.names)),
		values:   make(map[string]Value, len(r.values)),
	}
	copy(c.names, r.names)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}
