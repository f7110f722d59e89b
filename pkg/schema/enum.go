package schema

import "google.golang.org/protobuf/reflect/protoreflect"

// EnumTable maps enum labels to numbers and back.
type EnumTable struct {
	Name     string
	labels   []string
	byNumber map[int32]string
	byLabel  map[string]int32
}

func newEnumTable(ed protoreflect.EnumDescriptor) *EnumTable {
	values := ed.Values()
	t := &EnumTable{
		Name:     string(ed.FullName()),
		labels:   make([]string, 0, values.Len()),
		byNumber: make(map[int32]string, values.Len()),
		byLabel:  make(map[string]int32, values.Len()),
	}
	for i := 0; i < values.Len(); i++ {
		v := values.Get(i)
		label, n := string(v.Name()), int32(v.Number())
		t.labels = append(t.labels, label)
		t.byLabel[label] = n
		// first declared label wins for aliased numbers
		if _, ok := t.byNumber[n]; !ok {
			t.byNumber[n] = label
		}
	}
	return t
}

// Label returns the label for n.
func (t *EnumTable) Label(n int32) (string, bool) {
	l, ok := t.byNumber[n]
	return l, ok
}

// Number returns the number for label.
func (t *EnumTable) Number(label string) (int32, bool) {
	n, ok := t.byLabel[label]
	return n, ok
}

// Labels returns the labels in declaration order.
func (t *EnumTable) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Equal reports whether both tables hold the same mapping.
func (t *EnumTable) Equal(o *EnumTable) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.Name != o.Name || len(t.byLabel) != len(o.byLabel) {
		return false
	}
	for l, n := range t.byLabel {
		if m, ok := o.byLabel[l]; !ok || m != n {
			return false
		}
	}
	return true
}
