// Package layering merges and deep-copies feature settings. Stored settings
// are layered over the defaults declared by a feature type so that keys added
// to a type after an asset was saved still surface with their default value.
//
// Settings are YAML/JSON documents: maps keyed by string, lists and scalars.
package layering

import "reflect"

// Settings layers stored over defaults and returns a detached map. Either
// argument may be nil; the result never is.
func Settings(stored, defaults map[string]any) map[string]any {
	out := Overlay(stored, defaults)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// Overlay merges documents ordered from strongest to weakest. A key set in a
// stronger layer wins unless both sides hold a nested map, in which case the
// maps are merged key by key. Lists are replaced, never concatenated. The
// result shares nothing with the layers and is nil when every layer is nil.
func Overlay(layers ...map[string]any) map[string]any {
	var out map[string]any
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] == nil {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(layers[i]))
		}
		overlayInto(out, layers[i])
	}
	return out
}

func overlayInto(dst, src map[string]any) {
	for key, value := range src {
		nested, isMap := value.(map[string]any)
		existing, hasMap := dst[key].(map[string]any)
		if isMap && hasMap && nested != nil {
			overlayInto(existing, nested)
			continue
		}
		dst[key] = Value(value)
	}
}

// Map returns a deep copy of m. A nil map stays nil.
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, value := range m {
		out[key] = Value(value)
	}
	return out
}

// Value returns a deep copy of a settings value. Scalars are returned as is.
// Typed slices and maps produced by callers rather than a decoder are copied
// element by element.
func Value(value any) any {
	switch v := value.(type) {
	case nil, bool, string, int, int64, float32, float64:
		return v
	case map[string]any:
		return Map(v)
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Value(item)
		}
		return out
	case map[any]any:
		if v == nil {
			return v
		}
		out := make(map[any]any, len(v))
		for key, item := range v {
			out[key] = Value(item)
		}
		return out
	}
	return copyReflect(reflect.ValueOf(value)).Interface()
}

func copyReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyElem(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyElem(iter.Value()))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(copyElem(v.Elem()))
		return out
	}
	return v
}

// copyElem copies an element while keeping its static type, so an interface
// element holding a map is copied as a map but stored as the interface.
func copyElem(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(reflect.ValueOf(Value(v.Interface())))
		return out
	}
	return copyReflect(v)
}
