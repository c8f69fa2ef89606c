package sandbox

import (
	"fmt"
	"math"
	"reflect"

	"go.starlark.net/starlark"
)

// ToGo converts a Starlark value to plain Go.
// Returns: string, int64, float64, bool, []any, map[string]any, or nil.
// Dict keys that are not strings are rendered with their Starlark repr.
// NaN and infinite floats are rejected because a report output must be
// representable as JSON.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case nil, starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Bytes:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			// Very large integers keep their decimal form.
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return finite(float64(val))

	case starlark.Bool:
		return bool(val), nil

	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				key = starlark.String(item[0].String())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil

	case starlark.Indexable: // list, tuple, range
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Set:
		result := make([]any, 0, val.Len())
		iter := val.Iterate()
		defer iter.Done()
		var x starlark.Value
		for iter.Next(&x) {
			gv, err := ToGo(x)
			if err != nil {
				return nil, err
			}
			result = append(result, gv)
		}
		return result, nil

	case starlark.HasAttrs:
		// Structs and match objects become mappings of their attributes.
		result := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil || attr == nil {
				continue
			}
			if _, isFunc := attr.(starlark.Callable); isFunc {
				continue
			}
			gv, err := ToGo(attr)
			if err != nil {
				return nil, fmt.Errorf("attr %q: %w", name, err)
			}
			result[name] = gv
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported value of type %s", v.Type())
	}
}

// finite returns f, or an error if f is NaN or infinite.
func finite(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("float %v has no JSON representation", f)
	}
	return f, nil
}

// normalizeGo converts a value returned by interpreted Go code into the same
// plain representation ToGo produces.
func normalizeGo(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil //nolint:gosec // G115: generated values are small
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			gv, err := normalizeGo(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = gv
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			gv, err := normalizeGo(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("map key %q: %w", key, err)
			}
			out[key] = gv
		}
		return out, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeGo(rv.Elem().Interface())
	}
	return fmt.Sprint(v), nil
}
