package export

import (
	"io"
	"math"

	"github.com/ajitpratap0/zfits/pkg/anyarray"
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/json"
	"github.com/ajitpratap0/zfits/pkg/record"
)

// JSONLines writes each record as one JSON object per line, fields in
// declaration order. Non-finite floats are written as null and byte arrays
// as number lists.
type JSONLines struct {
	enc *json.StreamingEncoder
}

// NewJSONLines creates a JSON lines exporter.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewStreamingEncoder(w, false)}
}

func (j *JSONLines) Write(r *record.Record) error {
	if err := j.enc.Encode(jsonObject(r)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write JSON record").WithDetail("type", r.TypeName())
	}
	return nil
}

func (j *JSONLines) Count() int { return j.enc.Count() }

func (j *JSONLines) Close() error { return j.enc.Close() }

// object keeps the record's field order when marshalled.
type object struct {
	keys   []string
	values []any
}

func (o object) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range o.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

func jsonObject(r *record.Record) object {
	o := object{keys: make([]string, 0, r.Len()), values: make([]any, 0, r.Len())}
	for name, v := range r.All() {
		o.keys = append(o.keys, name)
		o.values = append(o.values, jsonValue(v))
	}
	return o
}

func jsonValue(v record.Value) any {
	switch x := v.(type) {
	case record.Float:
		return finite(float64(x))
	case record.Bytes:
		return []byte(x)
	case record.Array:
		return jsonArray(x.Array)
	case *record.Record:
		if x == nil {
			return nil
		}
		return jsonObject(x)
	default:
		return record.Native(v)
	}
}

func jsonArray(a anyarray.Array) any {
	switch s := a.Values().(type) {
	case []uint8:
		out := make([]uint16, len(s))
		for i, b := range s {
			out[i] = uint16(b)
		}
		return out
	case []float32, []float64:
		values := anyarray.Float64s(a)
		out := make([]any, len(values))
		for i, f := range values {
			out[i] = finite(f)
		}
		return out
	case nil:
		return []int8{}
	default:
		return s
	}
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
