package anyarray

// Float64s converts every element to float64. An untyped array yields an
// empty slice.
func Float64s(a Array) []float64 {
	switch s := a.values.(type) {
	case []int8:
		return convert[int8, float64](s)
	case []uint8:
		return convert[uint8, float64](s)
	case []int16:
		return convert[int16, float64](s)
	case []uint16:
		return convert[uint16, float64](s)
	case []int32:
		return convert[int32, float64](s)
	case []uint32:
		return convert[uint32, float64](s)
	case []int64:
		return convert[int64, float64](s)
	case []uint64:
		return convert[uint64, float64](s)
	case []float32:
		return convert[float32, float64](s)
	case []float64:
		return append([]float64{}, s...)
	default:
		return []float64{}
	}
}

// Int64s converts integer elements to int64. ok is false for float arrays.
// uint64 values above math.MaxInt64 wrap.
func Int64s(a Array) ([]int64, bool) {
	switch s := a.values.(type) {
	case []int8:
		return convert[int8, int64](s), true
	case []uint8:
		return convert[uint8, int64](s), true
	case []int16:
		return convert[int16, int64](s), true
	case []uint16:
		return convert[uint16, int64](s), true
	case []int32:
		return convert[int32, int64](s), true
	case []uint32:
		return convert[uint32, int64](s), true
	case []int64:
		return append([]int64{}, s...), true
	case []uint64:
		return convert[uint64, int64](s), true
	case []float32, []float64:
		return nil, false
	default:
		return []int64{}, true
	}
}

func convert[T, U Number](s []T) []U {
	out := make([]U, len(s))
	for i, v := range s {
		out[i] = U(v)
	}
	return out
}
