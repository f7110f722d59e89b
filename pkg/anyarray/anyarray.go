// Package anyarray converts the container's tagged flat numeric arrays to and
// from typed Go slices.
//
// On the wire an array is a type tag plus a little-endian byte buffer (Raw).
// Decoded, it is an Array holding one of []int8, []uint8, []int16, []uint16,
// []int32, []uint32, []int64, []uint64, []float32 or []float64.
//
// Tag 0 (None) is the untyped empty array: it decodes to a zero-length Array
// when the buffer is empty and is an error otherwise. The boolean tag is
// rejected because its packing has no verified one-to-one mapping onto a
// flat slice.
package anyarray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ajitpratap0/zfits/pkg/errors"
)

// Type is the element type tag stored next to the array bytes.
type Type int32

const (
	None    Type = 0
	Int8    Type = 1
	Uint8   Type = 2
	Int16   Type = 3
	Uint16  Type = 4
	Int32   Type = 5
	Uint32  Type = 6
	Int64   Type = 7
	Uint64  Type = 8
	Float32 Type = 9
	Float64 Type = 10
	Bool    Type = 11
)

var typeNames = map[Type]string{
	None:    "none",
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Bool:    "bool",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int32(t))
}

// ElemSize returns the size in bytes of one element, or 0 for None and unknown tags.
func (t Type) ElemSize() int {
	switch t {
	case Int8, Uint8, Bool:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// Number is the set of element types an Array can hold.
type Number interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// Raw is the serialized form: a tag and its little-endian payload.
type Raw struct {
	Type Type
	Data []byte
}

// Array is a decoded homogeneous numeric array. The zero value is the
// untyped empty array.
type Array struct {
	typ    Type
	values any
}

// Of wraps a typed slice. The slice is not copied.
func Of[T Number](s []T) Array {
	if s == nil {
		s = []T{}
	}
	return Array{typ: typeOf[T](), values: s}
}

// Values returns the underlying slice when the array holds elements of type T.
func Values[T Number](a Array) ([]T, bool) {
	s, ok := a.values.([]T)
	return s, ok
}

// Type returns the element type tag.
func (a Array) Type() Type { return a.typ }

// Values returns the underlying slice as an interface, nil for an untyped array.
func (a Array) Values() any { return a.values }

// Len returns the number of elements.
func (a Array) Len() int {
	switch s := a.values.(type) {
	case []int8:
		return len(s)
	case []uint8:
		return len(s)
	case []int16:
		return len(s)
	case []uint16:
		return len(s)
	case []int32:
		return len(s)
	case []uint32:
		return len(s)
	case []int64:
		return len(s)
	case []uint64:
		return len(s)
	case []float32:
		return len(s)
	case []float64:
		return len(s)
	default:
		return 0
	}
}

// Equal reports whether both arrays have the same tag and bit-identical elements.
func (a Array) Equal(b Array) bool {
	if a.typ != b.typ {
		return false
	}
	ra, errA := a.Raw()
	rb, errB := b.Raw()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ra.Data, rb.Data)
}

// Raw serializes the array.
func (a Array) Raw() (Raw, error) {
	if a.typ == None {
		return Raw{}, nil
	}
	return Encode(a.values)
}

func (a Array) String() string {
	return fmt.Sprintf("%s%v", a.typ, a.values)
}

// Decode interprets r.Data as little-endian elements of r.Type.
func Decode(r Raw) (Array, error) {
	switch r.Type {
	case None:
		if len(r.Data) > 0 {
			return Array{}, errors.Newf(errors.ErrorTypeUndefinedArrayType,
				"array has no type but carries %d bytes", len(r.Data))
		}
		return Array{}, nil
	case Bool:
		return Array{}, errors.New(errors.ErrorTypeUnsupportedArrayType,
			"boolean arrays have no verified flat representation")
	}

	size := r.Type.ElemSize()
	if size == 0 {
		return Array{}, errors.Newf(errors.ErrorTypeUnsupportedArrayType, "unknown array type tag %d", int32(r.Type))
	}
	if len(r.Data)%size != 0 {
		return Array{}, errors.Newf(errors.ErrorTypeInvalidShape,
			"%d bytes is not a multiple of %s element size %d", len(r.Data), r.Type, size).
			WithDetail("type", r.Type.String())
	}

	d := r.Data
	switch r.Type {
	case Int8:
		return Of(decodeFixed(d, 1, func(b []byte) int8 { return int8(b[0]) })), nil
	case Uint8:
		out := make([]uint8, len(d))
		copy(out, d)
		return Of(out), nil
	case Int16:
		return Of(decodeFixed(d, 2, func(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) })), nil
	case Uint16:
		return Of(decodeFixed(d, 2, binary.LittleEndian.Uint16)), nil
	case Int32:
		return Of(decodeFixed(d, 4, func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) })), nil
	case Uint32:
		return Of(decodeFixed(d, 4, binary.LittleEndian.Uint32)), nil
	case Int64:
		return Of(decodeFixed(d, 8, func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) })), nil
	case Uint64:
		return Of(decodeFixed(d, 8, binary.LittleEndian.Uint64)), nil
	case Float32:
		return Of(decodeFixed(d, 4, func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) })), nil
	default: // Float64
		return Of(decodeFixed(d, 8, func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) })), nil
	}
}

// Encode serializes a typed slice (or an Array) using the same byte order as Decode.
func Encode(values any) (Raw, error) {
	switch s := values.(type) {
	case Array:
		return s.Raw()
	case []int8:
		return Raw{Type: Int8, Data: encodeFixed(s, 1, func(b []byte, v int8) { b[0] = byte(v) })}, nil
	case []uint8:
		out := make([]byte, len(s))
		copy(out, s)
		return Raw{Type: Uint8, Data: out}, nil
	case []int16:
		return Raw{Type: Int16, Data: encodeFixed(s, 2, func(b []byte, v int16) { binary.LittleEndian.PutUint16(b, uint16(v)) })}, nil
	case []uint16:
		return Raw{Type: Uint16, Data: encodeFixed(s, 2, binary.LittleEndian.PutUint16)}, nil
	case []int32:
		return Raw{Type: Int32, Data: encodeFixed(s, 4, func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) })}, nil
	case []uint32:
		return Raw{Type: Uint32, Data: encodeFixed(s, 4, binary.LittleEndian.PutUint32)}, nil
	case []int64:
		return Raw{Type: Int64, Data: encodeFixed(s, 8, func(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) })}, nil
	case []uint64:
		return Raw{Type: Uint64, Data: encodeFixed(s, 8, binary.LittleEndian.PutUint64)}, nil
	case []float32:
		return Raw{Type: Float32, Data: encodeFixed(s, 4, func(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) })}, nil
	case []float64:
		return Raw{Type: Float64, Data: encodeFixed(s, 8, func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) })}, nil
	default:
		return Raw{}, errors.Newf(errors.ErrorTypeUnsupportedElementType, "no array type for %T", values)
	}
}

func decodeFixed[T any](data []byte, size int, get func([]byte) T) []T {
	out := make([]T, len(data)/size)
	for i := range out {
		out[i] = get(data[i*size : (i+1)*size])
	}
	return out
}

func encodeFixed[T any](values []T, size int, put func([]byte, T)) []byte {
	out := make([]byte, len(values)*size)
	for i, v := range values {
		put(out[i*size:(i+1)*size], v)
	}
	return out
}

func typeOf[T Number]() Type {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	default:
		return Float64
	}
}
