// Package schema resolves catalog message types into ordered field schemas.
//
// A Schema lists the fields of one message type in declaration order with
// their kind: plain scalar, tagged numeric array, enum or nested message.
// Schemas are built once per type name by a Registry and shared read-only
// afterwards; nested message types are resolved lazily when a codec first
// walks into them.
package schema

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/ajitpratap0/zfits/pkg/catalog"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/logger"
)

// Kind classifies how a field's value is represented in a record.
type Kind int

const (
	// KindScalar is a number, bool, string or bytes value copied as is
	KindScalar Kind = iota
	// KindArray is a tagged numeric array
	KindArray
	// KindEnum is a named integer constant exposed by label
	KindEnum
	// KindMessage is a nested message
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindEnum:
		return "enum"
	case KindMessage:
		return "message"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field describes one declared field of a message type.
type Field struct {
	Name  string
	Index int
	Kind  Kind
	// MessageType is the nested type's full name for KindMessage fields.
	MessageType string
	// Enum is the label table for KindEnum fields.
	Enum       *EnumTable
	Descriptor protoreflect.FieldDescriptor
}

// Schema is the ordered field list of one message type.
type Schema struct {
	TypeName string
	Fields   []Field
	byName   map[string]int
}

// Field returns the named field.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Equal compares two schemas field by field.
func (s *Schema) Equal(o *Schema) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil || s.TypeName != o.TypeName || len(s.Fields) != len(o.Fields) {
		return false
	}
	for i, f := range s.Fields {
		g := o.Fields[i]
		if f.Name != g.Name || f.Index != g.Index || f.Kind != g.Kind || f.MessageType != g.MessageType {
			return false
		}
		if !f.Enum.Equal(g.Enum) {
			return false
		}
	}
	return true
}

type enumKey struct {
	typeName string
	field    string
}

// Registry builds and caches schemas for a catalog. It is safe for
// concurrent use; concurrent first resolutions of one type share a single
// build.
type Registry struct {
	catalog *catalog.Catalog
	logger  *zap.Logger

	mu      sync.RWMutex
	schemas map[string]*Schema
	enums   map[enumKey]*EnumTable

	group singleflight.Group
}

// NewRegistry creates a registry over cat. A nil logger uses the global one.
func NewRegistry(cat *catalog.Catalog, log *zap.Logger) *Registry {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Registry{
		catalog: cat,
		logger:  logger.OrDefault(log, "schema"),
		schemas: make(map[string]*Schema),
		enums:   make(map[enumKey]*EnumTable),
	}
}

// Catalog returns the catalog the registry resolves against.
func (r *Registry) Catalog() *catalog.Catalog {
	return r.catalog
}

// Resolve returns the schema for typeName, building it on first use.
func (r *Registry) Resolve(typeName string) (*Schema, error) {
	name, err := r.catalog.Canonical(typeName)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	s, ok := r.schemas[name]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := r.group.Do(name, func() (interface{}, error) {
		r.mu.RLock()
		s, ok := r.schemas[name]
		r.mu.RUnlock()
		if ok {
			return s, nil
		}

		s, err := r.build(name)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.schemas[name] = s
		r.mu.Unlock()

		r.logger.Debug("schema resolved",
			zap.String("type", name),
			zap.Int("fields", len(s.Fields)))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Schema), nil
}

// ResolveAll resolves typeName and every message type reachable from it.
func (r *Registry) ResolveAll(typeName string) ([]*Schema, error) {
	seen := make(map[string]bool)
	var out []*Schema

	var walk func(string) error
	walk = func(name string) error {
		s, err := r.Resolve(name)
		if err != nil {
			return err
		}
		if seen[s.TypeName] {
			return nil
		}
		seen[s.TypeName] = true
		out = append(out, s)
		for _, f := range s.Fields {
			if f.Kind == KindMessage {
				if err := walk(f.MessageType); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(typeName); err != nil {
		return nil, err
	}
	return out, nil
}

// Enum returns the cached label table for a field, if it has been built.
func (r *Registry) Enum(typeName, field string) (*EnumTable, bool) {
	name, err := r.catalog.Canonical(typeName)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.enums[enumKey{name, field}]
	return t, ok
}

func (r *Registry) build(name string) (*Schema, error) {
	md, err := r.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}

	fds := md.Fields()
	s := &Schema{
		TypeName: name,
		Fields:   make([]Field, 0, fds.Len()),
		byName:   make(map[string]int, fds.Len()),
	}
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		if fd.IsList() || fd.IsMap() {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"field %s.%s: repeated and map fields are not supported", name, fd.Name()).
				WithDetail("type", name)
		}

		f := Field{
			Name:       string(fd.Name()),
			Index:      i,
			Descriptor: fd,
		}

		switch fd.Kind() {
		case protoreflect.MessageKind, protoreflect.GroupKind:
			if catalog.IsAnyArray(fd.Message()) {
				f.Kind = KindArray
			} else {
				f.Kind = KindMessage
				f.MessageType = string(fd.Message().FullName())
			}
		case protoreflect.EnumKind:
			f.Kind = KindEnum
			f.Enum = r.enumTable(name, f.Name, fd.Enum())
		default:
			f.Kind = KindScalar
		}

		s.byName[f.Name] = len(s.Fields)
		s.Fields = append(s.Fields, f)
	}

	return s, nil
}

func (r *Registry) enumTable(typeName, field string, ed protoreflect.EnumDescriptor) *EnumTable {
	key := enumKey{typeName, field}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.enums[key]; ok {
		return t
	}
	t := newEnumTable(ed)
	r.enums[key] = t
	return t
}
