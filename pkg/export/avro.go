package export

import (
	"io"

	"github.com/linkedin/goavro/v2"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/json"
	"github.com/ajitpratap0/zfits/pkg/record"
	"github.com/ajitpratap0/zfits/pkg/schema"
)

// anyArrayRecord is the Avro name of the tagged array record.
const anyArrayRecord = "CoreMessages.AnyArray"

// AvroFile writes records into an Avro object container file (snappy
// blocks). Tagged arrays are written losslessly as {dtype, data} records
// holding the little-endian payload.
type AvroFile struct {
	writer   *goavro.OCFWriter
	registry *schema.Registry
	typeName string
	count    int
}

// NewAvro derives the Avro schema of typeName and writes the OCF header.
func NewAvro(w io.Writer, reg *schema.Registry, typeName string) (*AvroFile, error) {
	if reg == nil {
		reg = schema.NewRegistry(nil, nil)
	}
	s, err := reg.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	avroSchema, err := AvroSchema(reg, s.TypeName)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro codec").WithDetail("type", s.TypeName)
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: goavro.CompressionSnappyLabel,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create Avro writer")
	}
	return &AvroFile{writer: ocf, registry: reg, typeName: s.TypeName}, nil
}

func (a *AvroFile) Write(r *record.Record) error {
	own, err := a.registry.Catalog().Canonical(r.TypeName())
	if err != nil {
		return err
	}
	if own != a.typeName {
		return errors.Newf(errors.ErrorTypeTableTypeMismatch, "Avro file holds %s, cannot write %s", a.typeName, own)
	}
	datum, err := a.native(r, a.typeName)
	if err != nil {
		return err
	}
	if err := a.writer.Append([]interface{}{datum}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write Avro record").WithDetail("type", a.typeName)
	}
	a.count++
	return nil
}

func (a *AvroFile) Count() int { return a.count }

// Close is a no-op: OCF blocks are flushed on every Append.
func (a *AvroFile) Close() error { return nil }

// native converts r into the map form goavro encodes. Fields missing from
// r take their declared defaults.
func (a *AvroFile) native(r *record.Record, typeName string) (map[string]interface{}, error) {
	s, err := a.registry.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := r.Get(f.Name)
		switch f.Kind {
		case schema.KindMessage:
			nested, _ := v.(*record.Record)
			if nested == nil {
				nested = record.NewBuilder(f.MessageType).Build()
			}
			m, err := a.native(nested, f.MessageType)
			if err != nil {
				return nil, err
			}
			out[f.Name] = m
		case schema.KindArray:
			arr, _ := v.(record.Array)
			raw, err := arr.Raw()
			if err != nil {
				return nil, err
			}
			data := raw.Data
			if data == nil {
				data = []byte{}
			}
			out[f.Name] = map[string]interface{}{"dtype": raw.Type.String(), "data": data}
		case schema.KindEnum:
			label, isEnum := v.(record.Enum)
			if !ok {
				l, _ := f.Enum.Label(int32(f.Descriptor.Default().Enum()))
				label, isEnum = record.Enum(l), true
			}
			if !isEnum {
				return nil, errors.Newf(errors.ErrorTypeFieldTypeMismatch, "%s.%s is not an enum label", typeName, f.Name)
			}
			if _, known := f.Enum.Number(string(label)); !known {
				return nil, errors.Newf(errors.ErrorTypeUnknownEnumValue, "%q is not a %s label", label, f.Enum.Name)
			}
			out[f.Name] = string(label)
		default:
			if !ok {
				out[f.Name] = avroScalar(f.Descriptor, f.Descriptor.Default())
				continue
			}
			x, err := scalarDatum(f.Descriptor, v)
			if err != nil {
				return nil, errors.Wrap(err, errors.TypeOf(err), "bad scalar").WithDetail("field", typeName+"."+f.Name)
			}
			out[f.Name] = x
		}
	}
	return out, nil
}

func scalarDatum(fd protoreflect.FieldDescriptor, v record.Value) (interface{}, error) {
	switch x := v.(type) {
	case record.Int:
		return intDatum(fd, int64(x))
	case record.Uint:
		return intDatum(fd, int64(x))
	case record.Float:
		if fd.Kind() == protoreflect.FloatKind {
			return float32(x), nil
		}
		if fd.Kind() == protoreflect.DoubleKind {
			return float64(x), nil
		}
	case record.Bool:
		if fd.Kind() == protoreflect.BoolKind {
			return bool(x), nil
		}
	case record.String:
		if fd.Kind() == protoreflect.StringKind {
			return string(x), nil
		}
	case record.Bytes:
		if fd.Kind() == protoreflect.BytesKind {
			if x == nil {
				return []byte{}, nil
			}
			return []byte(x), nil
		}
	}
	return nil, errors.Newf(errors.ErrorTypeFieldTypeMismatch, "%T does not fit a %s field", v, fd.Kind())
}

func intDatum(fd protoreflect.FieldDescriptor, n int64) (interface{}, error) {
	switch avroScalarType(fd) {
	case "int":
		return int32(n), nil
	case "long":
		return n, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeFieldTypeMismatch, "integer does not fit a %s field", fd.Kind())
	}
}

// avroScalar converts a protobuf default value to its Avro datum.
func avroScalar(fd protoreflect.FieldDescriptor, v protoreflect.Value) interface{} {
	switch fd.Kind() {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return int32(v.Int())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind, protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return int64(v.Uint())
	case protoreflect.FloatKind:
		return float32(v.Float())
	case protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.StringKind:
		return v.String()
	default:
		if b := v.Bytes(); b != nil {
			return b
		}
		return []byte{}
	}
}

// avroScalarType maps a protobuf scalar kind to an Avro primitive. Unsigned
// 32-bit values widen to long; uint64 values above MaxInt64 wrap.
func avroScalarType(fd protoreflect.FieldDescriptor) string {
	switch fd.Kind() {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return "int"
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.Uint32Kind, protoreflect.Fixed32Kind, protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return "long"
	case protoreflect.FloatKind:
		return "float"
	case protoreflect.DoubleKind:
		return "double"
	case protoreflect.BoolKind:
		return "boolean"
	case protoreflect.StringKind:
		return "string"
	default:
		return "bytes"
	}
}

// AvroSchema derives the Avro schema JSON of typeName. Named types (nested
// records, enums and the array record) are defined on first use and
// referenced by full name afterwards.
func AvroSchema(reg *schema.Registry, typeName string) (string, error) {
	defined := make(map[string]bool)
	root, err := avroRecord(reg, typeName, defined)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(root)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode Avro schema")
	}
	return string(b), nil
}

func avroRecord(reg *schema.Registry, typeName string, defined map[string]bool) (interface{}, error) {
	s, err := reg.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	if defined[s.TypeName] {
		return s.TypeName, nil
	}
	defined[s.TypeName] = true

	fields := make([]map[string]interface{}, 0, len(s.Fields))
	for _, f := range s.Fields {
		var typ interface{}
		switch f.Kind {
		case schema.KindMessage:
			if typ, err = avroRecord(reg, f.MessageType, defined); err != nil {
				return nil, err
			}
		case schema.KindArray:
			typ = anyArrayType(defined)
		case schema.KindEnum:
			typ = enumType(f.Enum, defined)
		default:
			typ = avroScalarType(f.Descriptor)
		}
		fields = append(fields, map[string]interface{}{"name": f.Name, "type": typ})
	}
	return map[string]interface{}{
		"type":   "record",
		"name":   s.TypeName,
		"fields": fields,
	}, nil
}

func anyArrayType(defined map[string]bool) interface{} {
	if defined[anyArrayRecord] {
		return anyArrayRecord
	}
	defined[anyArrayRecord] = true
	return map[string]interface{}{
		"type": "record",
		"name": anyArrayRecord,
		"fields": []map[string]interface{}{
			{"name": "dtype", "type": "string"},
			{"name": "data", "type": "bytes"},
		},
	}
}

func enumType(t *schema.EnumTable, defined map[string]bool) interface{} {
	if defined[t.Name] {
		return t.Name
	}
	defined[t.Name] = true
	return map[string]interface{}{
		"type":    "enum",
		"name":    t.Name,
		"symbols": t.Labels(),
	}
}
