package record

import (
	"math"

	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/ajitpratap0/zfits/pkg/anyarray"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/schema"
)

// Codec converts between catalog messages and Records using a schema registry.
type Codec struct {
	registry *schema.Registry
	logger   *zap.Logger
}

// NewCodec creates a codec. A nil registry uses a fresh one over the default catalog.
func NewCodec(reg *schema.Registry, log *zap.Logger) *Codec {
	log = logger.OrDefault(log, "record")
	if reg == nil {
		reg = schema.NewRegistry(nil, log)
	}
	return &Codec{registry: reg, logger: log}
}

// Registry returns the schema registry used by the codec.
func (c *Codec) Registry() *schema.Registry {
	return c.registry
}

// Unmarshal parses one serialized row of typeName and decodes it.
func (c *Codec) Unmarshal(typeName string, data []byte) (*Record, error) {
	msg, err := c.registry.Catalog().NewMessage(typeName)
	if err != nil {
		return nil, err
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse row").
			WithDetail("type", typeName)
	}
	return c.Decode(msg)
}

// Marshal encodes r under its own type name and serializes it.
func (c *Codec) Marshal(r *Record) ([]byte, error) {
	msg, err := c.Encode(r, "")
	if err != nil {
		return nil, err
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize row").
			WithDetail("type", r.TypeName())
	}
	return data, nil
}

// Decode converts msg into a Record holding every schema field in
// declaration order. Unset fields decode to their defaults; an unset nested
// message decodes to a record of defaults.
func (c *Codec) Decode(msg protoreflect.Message) (*Record, error) {
	s, err := c.registry.Resolve(string(msg.Descriptor().FullName()))
	if err != nil {
		return nil, err
	}
	return c.decode(msg, s)
}

func (c *Codec) decode(msg protoreflect.Message, s *schema.Schema) (*Record, error) {
	rec := &Record{
		typeName: s.TypeName,
		names:    make([]string, 0, len(s.Fields)),
		values:   make(map[string]Value, len(s.Fields)),
	}

	for _, f := range s.Fields {
		v, err := c.decodeField(msg, s, f)
		if err != nil {
			return nil, err
		}
		rec.names = append(rec.names, f.Name)
		rec.values[f.Name] = v
	}
	return rec, nil
}

func (c *Codec) decodeField(msg protoreflect.Message, s *schema.Schema, f schema.Field) (Value, error) {
	fd := f.Descriptor
	switch f.Kind {
	case schema.KindArray:
		if !msg.Has(fd) {
			return Array{}, nil
		}
		raw := rawArray(msg.Get(fd).Message())
		arr, err := anyarray.Decode(raw)
		if err != nil {
			return nil, fieldError(err, s.TypeName, f.Name)
		}
		return Array{arr}, nil

	case schema.KindEnum:
		n := int32(msg.Get(fd).Enum())
		label, ok := f.Enum.Label(n)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeUnknownEnumValue,
				"%s.%s: no label for enum value %d", s.TypeName, f.Name, n).
				WithDetail("enum", f.Enum.Name)
		}
		return Enum(label), nil

	case schema.KindMessage:
		nested, err := c.registry.Resolve(f.MessageType)
		if err != nil {
			return nil, err
		}
		return c.decode(msg.Get(fd).Message(), nested)

	default:
		return scalarValue(fd, msg.Get(fd)), nil
	}
}

func rawArray(m protoreflect.Message) anyarray.Raw {
	fields := m.Descriptor().Fields()
	return anyarray.Raw{
		Type: anyarray.Type(m.Get(fields.ByName("type")).Enum()),
		Data: m.Get(fields.ByName("data")).Bytes(),
	}
}

func scalarValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) Value {
	switch fd.Kind() {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return Int(v.Int())
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return Uint(v.Uint())
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return Float(v.Float())
	case protoreflect.BoolKind:
		return Bool(v.Bool())
	case protoreflect.StringKind:
		return String(v.String())
	default: // BytesKind
		b := v.Bytes()
		out := make([]byte, len(b))
		copy(out, b)
		return Bytes(out)
	}
}

// Encode builds a catalog message of typeName from r. An empty typeName
// uses r.TypeName(). Fields missing from r keep their defaults, fields
// whose value equals the declared default are left unset, and fields the
// schema does not declare are rejected.
func (c *Codec) Encode(r *Record, typeName string) (*dynamicpb.Message, error) {
	if typeName == "" {
		typeName = r.TypeName()
	}
	s, err := c.registry.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	if r.TypeName() != "" {
		own, err := c.registry.Catalog().Canonical(r.TypeName())
		if err != nil {
			return nil, err
		}
		if own != s.TypeName {
			return nil, errors.Newf(errors.ErrorTypeFieldTypeMismatch,
				"record of type %s cannot be encoded as %s", r.TypeName(), s.TypeName)
		}
	}

	md, err := c.registry.Catalog().Lookup(s.TypeName)
	if err != nil {
		return nil, err
	}
	msg := dynamicpb.NewMessage(md)
	if err := c.encode(r, s, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *Codec) encode(r *Record, s *schema.Schema, msg protoreflect.Message) error {
	for name, v := range r.All() {
		f, ok := s.Field(name)
		if !ok {
			return errors.Newf(errors.ErrorTypeUnknownField, "%s has no field %q", s.TypeName, name).
				WithDetail("type", s.TypeName)
		}
		if err := c.encodeField(msg, s, f, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) encodeField(msg protoreflect.Message, s *schema.Schema, f schema.Field, v Value) error {
	fd := f.Descriptor
	switch f.Kind {
	case schema.KindArray:
		a, ok := v.(Array)
		if !ok {
			return mismatch(s, f, v)
		}
		raw, err := a.Raw()
		if err != nil {
			return fieldError(err, s.TypeName, f.Name)
		}
		if raw.Type == anyarray.None {
			return nil
		}
		sub := msg.Mutable(fd).Message()
		fields := sub.Descriptor().Fields()
		sub.Set(fields.ByName("type"), protoreflect.ValueOfEnum(protoreflect.EnumNumber(raw.Type)))
		if len(raw.Data) > 0 {
			sub.Set(fields.ByName("data"), protoreflect.ValueOfBytes(raw.Data))
		}
		return nil

	case schema.KindEnum:
		label, ok := v.(Enum)
		if !ok {
			return mismatch(s, f, v)
		}
		n, ok := f.Enum.Number(string(label))
		if !ok {
			return errors.Newf(errors.ErrorTypeUnknownEnumValue,
				"%s.%s: unknown enum label %q", s.TypeName, f.Name, string(label)).
				WithDetail("enum", f.Enum.Name)
		}
		if protoreflect.EnumNumber(n) != fd.Default().Enum() {
			msg.Set(fd, protoreflect.ValueOfEnum(protoreflect.EnumNumber(n)))
		}
		return nil

	case schema.KindMessage:
		nested, ok := v.(*Record)
		if !ok || nested == nil {
			return mismatch(s, f, v)
		}
		if nested.TypeName() != "" {
			own, err := c.registry.Catalog().Canonical(nested.TypeName())
			if err != nil || own != f.MessageType {
				return mismatch(s, f, v)
			}
		}
		ns, err := c.registry.Resolve(f.MessageType)
		if err != nil {
			return err
		}
		sub := msg.Mutable(fd).Message()
		if err := c.encode(nested, ns, sub); err != nil {
			return err
		}
		if isEmpty(sub) {
			msg.Clear(fd)
		}
		return nil

	default:
		pv, err := protoScalar(fd, v)
		if err != nil {
			return mismatch(s, f, v)
		}
		if !isDefault(fd, pv) {
			msg.Set(fd, pv)
		}
		return nil
	}
}

// isDefault reports whether pv equals the field default. Floats compare by
// bits so that -0 is kept.
func isDefault(fd protoreflect.FieldDescriptor, pv protoreflect.Value) bool {
	switch fd.Kind() {
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return math.Float64bits(pv.Float()) == math.Float64bits(fd.Default().Float())
	}
	return pv.Equal(fd.Default())
}

func isEmpty(m protoreflect.Message) bool {
	empty := true
	m.Range(func(protoreflect.FieldDescriptor, protoreflect.Value) bool {
		empty = false
		return false
	})
	return empty
}

var errOutOfRange = errors.New(errors.ErrorTypeFieldTypeMismatch, "value out of range")

// protoScalar converts v to the protobuf value for fd. Int and Uint are
// interchangeable when the value fits the field's width.
func protoScalar(fd protoreflect.FieldDescriptor, v Value) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		n, ok := signed(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return protoreflect.Value{}, errOutOfRange
		}
		return protoreflect.ValueOfInt32(int32(n)), nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		n, ok := signed(v)
		if !ok {
			return protoreflect.Value{}, errOutOfRange
		}
		return protoreflect.ValueOfInt64(n), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		n, ok := unsigned(v)
		if !ok || n > math.MaxUint32 {
			return protoreflect.Value{}, errOutOfRange
		}
		return protoreflect.ValueOfUint32(uint32(n)), nil
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		n, ok := unsigned(v)
		if !ok {
			return protoreflect.Value{}, errOutOfRange
		}
		return protoreflect.ValueOfUint64(n), nil
	case protoreflect.FloatKind:
		x, ok := v.(Float)
		if !ok {
			break
		}
		f := float64(x)
		if !math.IsNaN(f) && float64(float32(f)) != f {
			return protoreflect.Value{}, errOutOfRange
		}
		return protoreflect.ValueOfFloat32(float32(f)), nil
	case protoreflect.DoubleKind:
		if x, ok := v.(Float); ok {
			return protoreflect.ValueOfFloat64(float64(x)), nil
		}
	case protoreflect.BoolKind:
		if x, ok := v.(Bool); ok {
			return protoreflect.ValueOfBool(bool(x)), nil
		}
	case protoreflect.StringKind:
		if x, ok := v.(String); ok {
			return protoreflect.ValueOfString(string(x)), nil
		}
	case protoreflect.BytesKind:
		if x, ok := v.(Bytes); ok {
			return protoreflect.ValueOfBytes([]byte(x)), nil
		}
	}
	return protoreflect.Value{}, errOutOfRange
}

func signed(v Value) (int64, bool) {
	switch x := v.(type) {
	case Int:
		return int64(x), true
	case Uint:
		return int64(x), uint64(x) <= math.MaxInt64
	}
	return 0, false
}

func unsigned(v Value) (uint64, bool) {
	switch x := v.(type) {
	case Uint:
		return uint64(x), true
	case Int:
		return uint64(x), x >= 0
	}
	return 0, false
}

func mismatch(s *schema.Schema, f schema.Field, v Value) error {
	return errors.Newf(errors.ErrorTypeFieldTypeMismatch,
		"%s.%s: %s field cannot hold %T", s.TypeName, f.Name, f.Kind, v).
		WithDetail("type", s.TypeName)
}

func fieldError(err error, typeName, field string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.WithDetail("field", typeName+"."+field)
	}
	return err
}
