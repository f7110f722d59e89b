package merge

import (
	"github.com/ajitpratap0/zfits/pkg/errors"
	"github.com/ajitpratap0/zfits/pkg/record"
)

// KeyFunc extracts the sequence key of a row.
type KeyFunc func(*record.Record) (uint64, error)

// DefaultKeyFields are tried in order by DefaultKey.
var DefaultKeyFields = []string{"event_id", "eventNumber"}

// DefaultKey uses the first of DefaultKeyFields the row's type declares.
var DefaultKey = FieldKey(DefaultKeyFields...)

// FieldKey returns a KeyFunc reading the first of fields that the row's
// type declares. Fields may be dotted paths into nested records. Negative
// signed values are rejected.
func FieldKey(fields ...string) KeyFunc {
	return func(r *record.Record) (uint64, error) {
		for _, f := range fields {
			v, ok := r.Lookup(f)
			if !ok {
				continue
			}
			switch v := v.(type) {
			case record.Uint:
				return uint64(v), nil
			case record.Int:
				if v < 0 {
					return 0, errors.Newf(errors.ErrorTypeData, "negative sequence key %d in %s", int64(v), f).
						WithDetail("type", r.TypeName())
				}
				return uint64(v), nil
			default:
				return 0, errors.Newf(errors.ErrorTypeFieldTypeMismatch, "sequence key field %s is not an integer", f).
					WithDetail("type", r.TypeName())
			}
		}
		return 0, errors.Newf(errors.ErrorTypeUnknownField, "%s has none of the sequence key fields %v", r.TypeName(), fields)
	}
}
