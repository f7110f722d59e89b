package record

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ajitpratap0/zfits/pkg/anyarray"
)

// Value is one field value of a Record. The set of implementations is
// closed: Int, Uint, Float, Bool, String, Bytes, Enum, Array and *Record.
type Value interface {
	isValue()
}

// Int holds any signed integer field.
type Int int64

// Uint holds any unsigned integer field.
type Uint uint64

// Float holds float and double fields.
type Float float64

// Bool holds a boolean field.
type Bool bool

// String holds a string field.
type String string

// Bytes holds a raw bytes field.
type Bytes []byte

// Enum holds the label of an enum field.
type Enum string

// Array holds a decoded tagged numeric array.
type Array struct {
	anyarray.Array
}

// ArrayOf wraps a typed slice as an Array value.
func ArrayOf[T anyarray.Number](s []T) Array {
	return Array{anyarray.Of(s)}
}

func (Int) isValue()     {}
func (Uint) isValue()    {}
func (Float) isValue()   {}
func (Bool) isValue()    {}
func (String) isValue()  {}
func (Bytes) isValue()   {}
func (Enum) isValue()    {}
func (Array) isValue()   {}
func (*Record) isValue() {}

// Equal compares two values of the same variant. Floats compare by bit
// pattern so NaN payloads survive a round trip check.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Float:
		y, ok := b.(Float)
		return ok && math.Float64bits(float64(x)) == math.Float64bits(float64(y))
	case Bytes:
		y, ok := b.(Bytes)
		return ok && bytes.Equal(x, y)
	case Array:
		y, ok := b.(Array)
		return ok && x.Array.Equal(y.Array)
	case *Record:
		y, ok := b.(*Record)
		return ok && x.Equal(y)
	default:
		return a == b
	}
}

// Native converts a value to plain Go data: numbers, bools and strings as
// themselves, arrays as their typed slice, records as map[string]any.
func Native(v Value) any {
	switch x := v.(type) {
	case Int:
		return int64(x)
	case Uint:
		return uint64(x)
	case Float:
		return float64(x)
	case Bool:
		return bool(x)
	case String:
		return string(x)
	case Bytes:
		return []byte(x)
	case Enum:
		return string(x)
	case Array:
		if x.Values() == nil {
			return []int8{}
		}
		return x.Values()
	case *Record:
		return x.Map()
	default:
		return nil
	}
}

func formatValue(v Value) string {
	switch x := v.(type) {
	case *Record:
		return x.String()
	case Enum:
		return string(x)
	case String:
		return fmt.Sprintf("%q", string(x))
	case Array:
		return x.Array.String()
	default:
		return fmt.Sprint(x)
	}
}
