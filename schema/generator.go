// Package schema derives JSON Schema documents for feature settings.
package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	rdata "github.com/goliatone/go-rendererdata"
	"github.com/goliatone/go-rendererdata/layering"
)

// Draft is the dialect declared by generated documents.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// ForType returns the settings schema of info. A schema declared on the type
// wins; otherwise one is derived from the type's defaults, with every default
// recorded under the property's "default" keyword.
func ForType(info rdata.TypeInfo) (map[string]any, error) {
	if info.Schema != nil {
		return layering.Map(info.Schema), nil
	}

	properties := make(map[string]any, len(info.Defaults))
	for _, name := range sortedKeys(info.Defaults) {
		value := info.Defaults[name]
		property, err := Generate(value)
		if err != nil {
			return nil, fmt.Errorf("schema: %s.%s: %w", info.Name, name, err)
		}
		if value != nil {
			property["default"] = layering.Value(value)
		}
		properties[name] = property
	}

	doc := object(properties)
	doc["$schema"] = Draft
	doc["title"] = rdata.MenuName(info)
	if info.Description != "" {
		doc["description"] = info.Description
	}
	return doc, nil
}

// Generate describes the shape of a settings value. Decoded documents
// (maps, lists and scalars) are handled directly; other Go values are
// described through reflection using their json tags.
func Generate(value any) (map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return typed("null"), nil
	case bool:
		return typed("boolean"), nil
	case string:
		return typed("string"), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return typed("integer"), nil
	case float32, float64:
		return typed("number"), nil
	case time.Time:
		return map[string]any{"type": "string", "format": "date-time"}, nil
	case map[string]any:
		if v == nil {
			return object(map[string]any{}), nil
		}
		properties := make(map[string]any, len(v))
		for _, name := range sortedKeys(v) {
			child, err := Generate(v[name])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			properties[name] = child
		}
		return object(properties), nil
	case []any:
		return array(len(v), func(i int) any { return v[i] })
	}
	return reflected(reflect.ValueOf(value))
}

func reflected(rv reflect.Value) (map[string]any, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return typed("null"), nil
		}
		return Generate(rv.Elem().Interface())
	case reflect.Bool, reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
		// named scalar types
		return Generate(rv.Convert(basicType(rv.Kind())).Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return map[string]any{"type": "string", "contentEncoding": "base64"}, nil
		}
		return array(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s unsupported", rv.Type().Key())
		}
		properties := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			name := iter.Key().String()
			child, err := Generate(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			properties[name] = child
		}
		return object(properties), nil
	case reflect.Struct:
		properties := map[string]any{}
		for i := 0; i < rv.NumField(); i++ {
			field := rv.Type().Field(i)
			name, ok := jsonName(field)
			if !ok {
				continue
			}
			child, err := Generate(rv.Field(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			properties[name] = child
		}
		return object(properties), nil
	}
	return nil, fmt.Errorf("%s values are not supported", rv.Type())
}

// array describes a list by its first element.
func array(n int, at func(int) any) (map[string]any, error) {
	items := map[string]any{}
	if n > 0 {
		var err error
		if items, err = Generate(at(0)); err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
	}
	return map[string]any{"type": "array", "items": items}, nil
}

func jsonName(field reflect.StructField) (string, bool) {
	if !field.IsExported() {
		return "", false
	}
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return "", false
	case "":
		return field.Name, true
	}
	return name, true
}

func basicType(kind reflect.Kind) reflect.Type {
	switch kind {
	case reflect.Bool:
		return reflect.TypeOf(false)
	case reflect.String:
		return reflect.TypeOf("")
	case reflect.Float32, reflect.Float64:
		return reflect.TypeOf(float64(0))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.TypeOf(uint64(0))
	}
	return reflect.TypeOf(int64(0))
}

func typed(name string) map[string]any {
	return map[string]any{"type": name}
}

func object(properties map[string]any) map[string]any {
	return map[string]any{"type": "object", "properties": properties}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
