package record

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder("R1.CameraEvent").Set("event_id", Uint(1)).Set("ped_id", Uint(2))
	first := b.Build()

	b.Set("event_id", Uint(3)).Set("trigger_type", Uint(4))
	second := b.Build()

	assert.Equal(t, []string{"event_id", "ped_id"}, first.Fields())
	id, _ := first.Uint("event_id")
	assert.Equal(t, uint64(1), id)

	assert.Equal(t, []string{"event_id", "ped_id", "trigger_type"}, second.Fields())
	id, _ = second.Uint("event_id")
	assert.Equal(t, uint64(3), id)
}

func TestEqual(t *testing.T) {
	a := NewBuilder("T.A").Set("x", Int(1)).Set("y", Float(math.NaN())).Build()
	b := NewBuilder("T.A").Set("y", Float(math.NaN())).Set("x", Int(1)).Build()
	assert.True(t, a.Equal(b))

	assert.False(t, a.Equal(NewBuilder("T.B").Set("x", Int(1)).Set("y", Float(math.NaN())).Build()))
	assert.False(t, a.Equal(NewBuilder("T.A").Set("x", Uint(1)).Set("y", Float(math.NaN())).Build()))
	assert.False(t, a.Equal(NewBuilder("T.A").Set("x", Int(1)).Build()))
	assert.False(t, a.Equal(nil))

	arr := NewBuilder("T.A").Set("a", ArrayOf([]int8{1})).Set("b", Bytes(nil)).Build()
	assert.True(t, arr.Equal(NewBuilder("T.A").Set("a", ArrayOf([]int8{1})).Set("b", Bytes{}).Build()))
	assert.False(t, arr.Equal(NewBuilder("T.A").Set("a", ArrayOf([]uint8{1})).Set("b", Bytes{}).Build()))
}

func TestLookup(t *testing.T) {
	inner := NewBuilder("T.Inner").Set("n", Int(-5)).Set("e", Enum("ON")).Build()
	outer := NewBuilder("T.Outer").Set("inner", inner).Set("f", Float(1.5)).Build()

	v, ok := outer.Lookup("inner.n")
	require.True(t, ok)
	assert.Equal(t, Int(-5), v)

	_, ok = outer.Lookup("inner.missing")
	assert.False(t, ok)
	_, ok = outer.Lookup("f.deeper")
	assert.False(t, ok)

	label, ok := outer.Enum("inner.e")
	assert.True(t, ok)
	assert.Equal(t, "ON", label)

	_, ok = outer.Uint("inner.n")
	assert.False(t, ok)
	_, ok = outer.Int("f")
	assert.False(t, ok)

	got, ok := outer.Record("inner")
	require.True(t, ok)
	assert.Same(t, inner, got)
}

func TestMapAndString(t *testing.T) {
	rec := NewBuilder("T.A").
		Set("id", Uint(7)).
		Set("kind", Enum("PHYSICAL")).
		Set("data", ArrayOf([]uint16{1, 2})).
		Set("empty", Array{}).
		Set("inner", NewBuilder("T.B").Set("name", String("x")).Build()).
		Build()

	m := rec.Map()
	assert.Equal(t, uint64(7), m["id"])
	assert.Equal(t, "PHYSICAL", m["kind"])
	assert.Equal(t, []uint16{1, 2}, m["data"])
	assert.Equal(t, []int8{}, m["empty"])
	assert.Equal(t, map[string]any{"name": "x"}, m["inner"])

	assert.Equal(t, `T.A{id: 7, kind: PHYSICAL, data: uint16[1 2], empty: none<nil>, inner: T.B{name: "x"}}`, rec.String())
}

func TestAllStopsEarly(t *testing.T) {
	rec := NewBuilder("T.A").Set("a", Int(1)).Set("b", Int(2)).Set("c", Int(3)).Build()
	var seen []string
	for name := range rec.All() {
		seen = append(seen, name)
		if name == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}
