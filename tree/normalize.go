package tree

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Normalize converts a Go value into one of the canonical tree kinds.
// Integers become int64, floats float64, maps become *Tree (sorted keys,
// since Go maps carry no order), slices and arrays become []any.
// Values of any other type are kept as they are.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, int64, float64, string:
		return val
	case *Tree:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val <= 1<<63-1 {
			return int64(val)
		}
		return float64(val)
	case float32:
		return float64(val)
	case time.Duration:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case map[string]any:
		return FromMap(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		t := New()
		for _, k := range keys {
			t.Set(k, rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
		}
		return t
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Normalize(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}
	return v
}
